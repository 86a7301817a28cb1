package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"covidetl/internal/config"
)

var (
	defaultLogger *slog.Logger
	initOnce      sync.Once

	// logFile is the file behind "file" and "both" outputs; CloseLogFile
	// releases it.
	logFile   *os.File
	logFileMu sync.Mutex
)

// InitializeLogger builds the process logger once and makes it the slog
// default. Later calls return the first logger and ignore cfg.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var err error
	initOnce.Do(func() {
		var l *slog.Logger
		if l, err = NewLogger(cfg, os.Stdout); err == nil {
			defaultLogger = l
			slog.SetDefault(l)
		}
	})
	return defaultLogger, err
}

// NewLogger builds a logger writing to console (stdout), a file, or both.
// Records logged with a context carry its trace_id and run_id.
func NewLogger(cfg config.LoggingConfig, stdout io.Writer) (*slog.Logger, error) {
	w, err := logWriter(cfg, stdout)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(contextHandler{h}), nil
}

func logWriter(cfg config.LoggingConfig, stdout io.Writer) (io.Writer, error) {
	output := strings.ToLower(cfg.Output)
	if output != "file" && output != "both" {
		return stdout, nil
	}
	f, err := openLogFile(cfg.FilePath)
	if err != nil {
		return nil, err
	}
	if output == "both" {
		return io.MultiWriter(stdout, f), nil
	}
	return f, nil
}

// contextHandler copies the run identifiers in a record's context onto it
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, f := range contextFields {
		if id := idFrom(ctx, f.key); id != "" {
			r.AddAttrs(slog.String(f.attr, id))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// CloseLogFile closes the log file opened by NewLogger, if any.
func CloseLogFile() error {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// ResetLoggerForTesting drops the process logger so tests can initialise
// it again.
func ResetLoggerForTesting() {
	_ = CloseLogFile()
	defaultLogger = nil
	initOnce = sync.Once{}
}

// openLogFile appends to path, creating parent directories. A previously
// opened log file is closed.
func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, errors.New("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}

	logFileMu.Lock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	logFileMu.Unlock()
	return f, nil
}
