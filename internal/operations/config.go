package operations

import (
	"time"

	"covidetl/internal/config"
)

// Config controls how the manager runs datasets
type Config struct {
	// OutputDir is used when a dataset does not name its own directory
	OutputDir string `json:"output_dir"`

	// Overwrite forces replacement of existing outputs for every dataset
	Overwrite bool `json:"overwrite"`

	// ContinueOnError keeps RunAll going after a dataset fails
	ContinueOnError bool `json:"continue_on_error"`

	// Timeouts applied when a dataset source leaves them unset
	ConnectTimeout time.Duration `json:"connect_timeout"`
	ReadTimeout    time.Duration `json:"read_timeout"`
}

// NewConfig returns the default operation configuration
func NewConfig() *Config {
	return &Config{
		OutputDir:       config.DefaultOutputDir,
		ContinueOnError: true,
		ConnectTimeout:  config.DefaultConnectTimeout,
		ReadTimeout:     config.DefaultReadTimeout,
	}
}

// ConfigFrom derives the manager configuration from the application config
func ConfigFrom(cfg *config.Config) *Config {
	return &Config{
		OutputDir:       cfg.Output.Dir,
		Overwrite:       cfg.Output.Overwrite,
		ContinueOnError: cfg.Pipeline.ContinueOnError,
		ConnectTimeout:  cfg.Fetch.ConnectTimeout,
		ReadTimeout:     cfg.Fetch.ReadTimeout,
	}
}

func (c *Config) outputDir(spec OutputSpec) string {
	if spec.Dir != "" {
		return spec.Dir
	}
	return c.OutputDir
}

func (c *Config) connectTimeout(src SourceSpec) time.Duration {
	if src.ConnectTimeout > 0 {
		return src.ConnectTimeout
	}
	return c.ConnectTimeout
}

func (c *Config) readTimeout(src SourceSpec) time.Duration {
	if src.ReadTimeout > 0 {
		return src.ReadTimeout
	}
	return c.ReadTimeout
}
