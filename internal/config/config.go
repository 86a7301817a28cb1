package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "covidetl/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Fetch     FetchConfig     `yaml:"fetch" envconfig:"FETCH"`
	Output    OutputConfig    `yaml:"output" envconfig:"OUTPUT"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output console"`
}

// FetchConfig controls remote retrieval. Zero timeouts wait indefinitely.
type FetchConfig struct {
	ConnectTimeout    time.Duration `yaml:"connect_timeout" envconfig:"CONNECT_TIMEOUT" validate:"min=0"`
	ReadTimeout       time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"min=0"`
	MaxAttempts       int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS" validate:"min=1,max=10"`
	RetryDelay        time.Duration `yaml:"retry_delay" envconfig:"RETRY_DELAY" validate:"min=0"`
	RequestsPerMinute int           `yaml:"requests_per_minute" envconfig:"REQUESTS_PER_MINUTE" validate:"min=0"`
}

// OutputConfig controls where cleaned tables are written
type OutputConfig struct {
	Dir       string `yaml:"dir" envconfig:"DIR"`
	Overwrite bool   `yaml:"overwrite" envconfig:"OVERWRITE"`
}

// DatabaseConfig enables the optional Postgres sink when URL is set
type DatabaseConfig struct {
	URL      string `yaml:"url" envconfig:"URL" validate:"omitempty,url"`
	Schema   string `yaml:"schema" envconfig:"SCHEMA"`
	MaxConns int32  `yaml:"max_conns" envconfig:"MAX_CONNS" validate:"min=0"`
}

// Enabled reports whether the Postgres sink is configured
func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// TelemetryConfig controls metrics, tracing and the status endpoint
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	TracingEnabled bool   `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
	MetricsAddr    string `yaml:"metrics_addr" envconfig:"METRICS_ADDR" validate:"omitempty,hostname_port"`
}

// PipelineConfig controls dataset orchestration
type PipelineConfig struct {
	ContinueOnError bool     `yaml:"continue_on_error" envconfig:"CONTINUE_ON_ERROR"`
	CatalogFile     string   `yaml:"catalog_file" envconfig:"CATALOG_FILE"`
	Datasets        []string `yaml:"datasets" envconfig:"DATASETS"`
	ReportHistory   int      `yaml:"report_history" envconfig:"REPORT_HISTORY" validate:"min=1"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: DefaultLogFile,
		},
		Fetch: FetchConfig{
			ConnectTimeout: DefaultConnectTimeout,
			ReadTimeout:    DefaultReadTimeout,
			MaxAttempts:    DefaultMaxAttempts,
			RetryDelay:     DefaultRetryDelay,
		},
		Output: OutputConfig{
			Dir: DefaultOutputDir,
		},
		Telemetry: TelemetryConfig{
			ServiceName: DefaultServiceName,
		},
		Pipeline: PipelineConfig{
			ContinueOnError: true,
			ReportHistory:   DefaultReportHistory,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (or ETL_CONFIG_FILE, or a well-known location), then ETL_* environment
// variables. Later sources win.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, apperrors.New(apperrors.TypeConfig, "load", "failed to load config from file "+path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.New(apperrors.TypeConfig, "load", "failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file
// keep their current value
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

var validate = validator.New()

// Validate checks every field and reports all failures at once
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return apperrors.New(apperrors.TypeConfig, "validate", "config validation failed", err)
	}
	msgs := make([]string, len(verrs))
	fields := make([]string, len(verrs))
	for i, fe := range verrs {
		fields[i] = fe.Namespace()
		msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
	}
	return apperrors.New(apperrors.TypeConfig, "validate", strings.Join(msgs, "; "), nil).
		WithDetail("fields", fields)
}

// getConfigFilePath returns the first config file found in a common location
func getConfigFilePath() string {
	locations := []string{
		"etl.yaml",
		"config.yaml",
		"configs/etl.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}
