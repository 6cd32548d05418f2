package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
// Service specific keys live under [dynamodb] and [kinesis].
type FileConfig struct {
	MaxBatchSize       *int   `toml:"max_batch_size"`
	FlushOnFull        *bool  `toml:"flush_on_full"`
	IndividualRetries  *int   `toml:"individual_retries"`
	NestedBatchRetries *int   `toml:"nested_batch_retries"`
	RetryBackoff       string `toml:"retry_backoff"`
	Region             string `toml:"region"`
	EndpointURL        string `toml:"endpoint_url"`
	Input              string `toml:"input"`
	Follow             *bool  `toml:"follow"`
	IdleFlush          *bool  `toml:"idle_flush"`
	MetricsAddr        string `toml:"metrics_addr"`
	LogLevel           string `toml:"log_level"`

	DynamoDB DynamoDBFileConfig `toml:"dynamodb"`
	Kinesis  KinesisFileConfig  `toml:"kinesis"`
}

// DynamoDBFileConfig holds the [dynamodb] table.
type DynamoDBFileConfig struct {
	Table                string `toml:"table"`
	PrimaryKey           string `toml:"primary_key"`
	KeyType              string `toml:"key_type"`
	PartitionKeyLocation string `toml:"partition_key_location"`
}

// KinesisFileConfig holds the [kinesis] table.
type KinesisFileConfig struct {
	Stream            string `toml:"stream"`
	PartitionKeyField string `toml:"partition_key_field"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.batchship/config.toml, or "" if the user home
// directory is not accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".batchship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map). Only the
// section matching cfg.Service is read.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	switch cfg.Service {
	case ServiceDynamoDB:
		s.setString("table", fc.DynamoDB.Table, &cfg.Table)
		s.setString("primary-key", fc.DynamoDB.PrimaryKey, &cfg.PrimaryKey)
		s.setString("key-type", fc.DynamoDB.KeyType, &cfg.KeyType)
		s.setString("partition-key-location", fc.DynamoDB.PartitionKeyLocation, &cfg.PartitionKeyLocation)
	case ServiceKinesis:
		s.setString("stream", fc.Kinesis.Stream, &cfg.Stream)
		s.setString("partition-key-field", fc.Kinesis.PartitionKeyField, &cfg.PartitionKeyField)
	}

	s.setString("region", fc.Region, &cfg.Region)
	s.setString("endpoint-url", fc.EndpointURL, &cfg.EndpointURL)
	s.setString("input", fc.Input, &cfg.Input)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("retry-backoff", fc.RetryBackoff, &cfg.RetryBackoff); err != nil {
		return err
	}

	s.setInt("max-batch-size", fc.MaxBatchSize, &cfg.MaxBatchSize)
	s.setInt("individual-retries", fc.IndividualRetries, &cfg.IndividualRetries)
	s.setInt("nested-batch-retries", fc.NestedBatchRetries, &cfg.NestedBatchRetries)

	s.setBool("flush-on-full", fc.FlushOnFull, &cfg.FlushOnFull)
	s.setBool("follow", fc.Follow, &cfg.Follow)
	s.setBool("idle-flush", fc.IdleFlush, &cfg.IdleFlush)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
