// Package config loads the ETL configuration.
//
// # Configuration Sources
//
// Configuration is assembled in order of increasing precedence:
//
//  1. Built-in defaults (Default)
//  2. A YAML file: the -config flag, ETL_CONFIG_FILE, or etl.yaml/config.yaml
//  3. Environment variables with the ETL_ prefix
//
// # Environment Variables
//
// Nested sections map to underscore-joined names:
//
//	ETL_LOGGING_LEVEL=debug
//	ETL_FETCH_RETRY_DELAY=30s
//	ETL_OUTPUT_DIR=/srv/etl/data
//	ETL_DATABASE_URL=postgres://etl@localhost/etl
//	ETL_TELEMETRY_METRICS_ADDR=:9090
//	ETL_PIPELINE_DATASETS=chile,usa
//
// # Validation
//
// Validate runs go-playground/validator over the struct tags and reports
// every failing field in one error of type config.
package config
