package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths holds the resolved filesystem locations used by a run
type Paths struct {
	OutputDir   string
	LogFile     string
	CatalogFile string
}

// ResolvePaths turns the configured locations into absolute paths relative
// to the working directory
func (c *Config) ResolvePaths() (*Paths, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(wd, p)
	}
	return &Paths{
		OutputDir:   abs(c.Output.Dir),
		LogFile:     abs(c.Logging.FilePath),
		CatalogFile: abs(c.Pipeline.CatalogFile),
	}, nil
}

// EnsureDirectories creates the output directory and the log directory.
// The CSV writer itself never creates directories.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{p.OutputDir}
	if p.LogFile != "" {
		dirs = append(dirs, filepath.Dir(p.LogFile))
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LogPathResolution writes the resolved paths at debug level
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Debug("paths resolved",
		slog.String("output_dir", p.OutputDir),
		slog.String("log_file", p.LogFile),
		slog.String("catalog_file", p.CatalogFile))
}
