// Package config loads varquery settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	LogLevel string `envconfig:"VARQUERY_LOG_LEVEL" default:"info"`

	Import struct {
		// Workers of 0 uses the number of performance cores
		Workers          int    `envconfig:"VARQUERY_IMPORT_WORKERS" default:"0"`
		RowGroupSize     int    `envconfig:"VARQUERY_IMPORT_ROW_GROUP_SIZE" default:"50000"`
		SkipBadRows      bool   `envconfig:"VARQUERY_IMPORT_SKIP_BAD_ROWS" default:"false"`
		IncludeReference bool   `envconfig:"VARQUERY_IMPORT_INCLUDE_REFERENCE" default:"false"`
		Genome           string `envconfig:"VARQUERY_IMPORT_GENOME" default:"hg38"`
	}
	Query struct {
		Timeout    time.Duration `envconfig:"VARQUERY_QUERY_TIMEOUT" default:"0s"`
		QueueSize  int           `envconfig:"VARQUERY_QUERY_QUEUE_SIZE" default:"1000"`
		PutTimeout time.Duration `envconfig:"VARQUERY_QUERY_PUT_TIMEOUT" default:"1s"`
		MaxRetries int           `envconfig:"VARQUERY_QUERY_MAX_RETRIES" default:"60"`
		SortBuffer int           `envconfig:"VARQUERY_QUERY_SORT_BUFFER" default:"100000"`
	}
	DuckDB struct {
		Path string `envconfig:"VARQUERY_DUCKDB_PATH" default:":memory:"`
	}
	Impala struct {
		Host     string `envconfig:"VARQUERY_IMPALA_HOST"`
		Port     int    `envconfig:"VARQUERY_IMPALA_PORT" default:"21050"`
		Database string `envconfig:"VARQUERY_IMPALA_DB" default:"default"`
		PoolSize int    `envconfig:"VARQUERY_IMPALA_POOL_SIZE" default:"4"`
	}
	S3 struct {
		Region string `envconfig:"VARQUERY_S3_REGION"`
	}
}

// Load reads Settings from the environment and checks value ranges
func Load() (*Settings, error) {
	var cfg Settings
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Settings) Validate() error {
	switch {
	case s.Import.Workers < 0:
		return fmt.Errorf("VARQUERY_IMPORT_WORKERS must be >= 0")
	case s.Import.RowGroupSize < 1:
		return fmt.Errorf("VARQUERY_IMPORT_ROW_GROUP_SIZE must be >= 1")
	case s.Query.QueueSize < 1:
		return fmt.Errorf("VARQUERY_QUERY_QUEUE_SIZE must be >= 1")
	case s.Query.PutTimeout <= 0:
		return fmt.Errorf("VARQUERY_QUERY_PUT_TIMEOUT must be positive")
	case s.Query.MaxRetries < 1:
		return fmt.Errorf("VARQUERY_QUERY_MAX_RETRIES must be >= 1")
	case s.Query.Timeout < 0:
		return fmt.Errorf("VARQUERY_QUERY_TIMEOUT must not be negative")
	}
	return nil
}
