package config

import "time"

// Application constants
const (
	AppName   = "covid-etl"
	EnvPrefix = "ETL"

	// ConfigFileEnv names a YAML file when -config is not given
	ConfigFileEnv = "ETL_CONFIG_FILE"

	// Retrieval
	DefaultConnectTimeout = 200 * time.Second
	DefaultReadTimeout    = 200 * time.Second
	DefaultMaxAttempts    = 3
	DefaultRetryDelay     = 30 * time.Second

	// Output
	DefaultOutputDir = "data"
	DefaultLogFile   = "logs/etl.log"

	// Run bookkeeping
	DefaultReportHistory = 50

	// Telemetry
	DefaultServiceName = "covid-etl"
)
