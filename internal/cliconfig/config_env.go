package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (BATCHSHIP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	switch cfg.Service {
	case ServiceDynamoDB:
		s.setString("table", os.Getenv("BATCHSHIP_TABLE"), &cfg.Table)
		s.setString("primary-key", os.Getenv("BATCHSHIP_PRIMARY_KEY"), &cfg.PrimaryKey)
		s.setString("key-type", os.Getenv("BATCHSHIP_KEY_TYPE"), &cfg.KeyType)
		s.setString("partition-key-location", os.Getenv("BATCHSHIP_PARTITION_KEY_LOCATION"), &cfg.PartitionKeyLocation)
	case ServiceKinesis:
		s.setString("stream", os.Getenv("BATCHSHIP_STREAM"), &cfg.Stream)
		s.setString("partition-key-field", os.Getenv("BATCHSHIP_PARTITION_KEY_FIELD"), &cfg.PartitionKeyField)
	}

	s.setString("region", os.Getenv("BATCHSHIP_REGION"), &cfg.Region)
	s.setString("endpoint-url", os.Getenv("BATCHSHIP_ENDPOINT_URL"), &cfg.EndpointURL)
	s.setString("input", os.Getenv("BATCHSHIP_INPUT"), &cfg.Input)
	s.setString("metrics-addr", os.Getenv("BATCHSHIP_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", os.Getenv("BATCHSHIP_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("retry-backoff", os.Getenv("BATCHSHIP_RETRY_BACKOFF"), &cfg.RetryBackoff); err != nil {
		return err
	}

	if err := s.setIntFromString("max-batch-size", os.Getenv("BATCHSHIP_MAX_BATCH_SIZE"), &cfg.MaxBatchSize); err != nil {
		return err
	}
	if err := s.setIntFromString("individual-retries", os.Getenv("BATCHSHIP_INDIVIDUAL_RETRIES"), &cfg.IndividualRetries); err != nil {
		return err
	}
	if err := s.setIntFromString("nested-batch-retries", os.Getenv("BATCHSHIP_NESTED_BATCH_RETRIES"), &cfg.NestedBatchRetries); err != nil {
		return err
	}

	s.setBoolFromString("flush-on-full", os.Getenv("BATCHSHIP_FLUSH_ON_FULL"), &cfg.FlushOnFull)
	s.setBoolFromString("follow", os.Getenv("BATCHSHIP_FOLLOW"), &cfg.Follow)
	s.setBoolFromString("idle-flush", os.Getenv("BATCHSHIP_IDLE_FLUSH"), &cfg.IdleFlush)

	return nil
}
