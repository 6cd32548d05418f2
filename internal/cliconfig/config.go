package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/batchship/internal/app"
	"github.com/bft-labs/batchship/pkg/dispatch"
	"github.com/bft-labs/batchship/pkg/dynamo"
	"github.com/bft-labs/batchship/pkg/stream"
)

// Services a Config can target.
const (
	ServiceDynamoDB = dynamo.ServiceName
	ServiceKinesis  = stream.ServiceName
)

// StdinInput reads records from standard input.
const StdinInput = app.StdinInput

// Config holds CLI configuration for one batchship run.
type Config struct {
	Service string

	// DynamoDB
	Table                string
	PrimaryKey           string
	KeyType              string
	PartitionKeyLocation string

	// Kinesis
	Stream            string
	PartitionKeyField string

	MaxBatchSize       int
	FlushOnFull        bool
	IndividualRetries  int
	NestedBatchRetries int
	RetryBackoff       time.Duration

	Region      string
	EndpointURL string

	Input     string
	Follow    bool
	IdleFlush bool

	MetricsAddr string
	LogLevel    string
}

// DefaultConfig returns a Config with the defaults of service.
func DefaultConfig(service string) Config {
	cfg := Config{
		Service:            service,
		FlushOnFull:        true,
		NestedBatchRetries: dispatch.DefaultNestedBatchRetries,
		Input:              StdinInput,
		IdleFlush:          true,
		LogLevel:           zerolog.LevelInfoValue,
	}

	switch service {
	case ServiceDynamoDB:
		cfg.KeyType = "string"
		cfg.PartitionKeyLocation = dynamo.DefaultPartitionKeyLocation
		cfg.MaxBatchSize = dynamo.BatchWriteLimit
		cfg.IndividualRetries = dynamo.DefaultIndividualRetries
	case ServiceKinesis:
		cfg.PartitionKeyField = stream.DefaultPartitionKeyField
		cfg.MaxBatchSize = stream.DefaultMaxBatchSize
		cfg.IndividualRetries = dispatch.DefaultIndividualRetries
	}
	return cfg
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	switch c.Service {
	case ServiceDynamoDB:
		if c.Table == "" {
			return fmt.Errorf("table is required")
		}
		if c.PrimaryKey == "" {
			return fmt.Errorf("primary-key is required")
		}
		if _, err := dynamo.ParseKeyType(c.KeyType); err != nil {
			return err
		}
		if c.MaxBatchSize > dynamo.BatchWriteLimit {
			return fmt.Errorf("max-batch-size %d exceeds the dynamodb limit of %d", c.MaxBatchSize, dynamo.BatchWriteLimit)
		}
	case ServiceKinesis:
		if c.Stream == "" {
			return fmt.Errorf("stream is required")
		}
		if c.PartitionKeyField == "" {
			c.PartitionKeyField = stream.DefaultPartitionKeyField
		}
		if c.MaxBatchSize > stream.PutRecordsLimit {
			return fmt.Errorf("max-batch-size %d exceeds the kinesis limit of %d", c.MaxBatchSize, stream.PutRecordsLimit)
		}
	default:
		return fmt.Errorf("unknown service %q", c.Service)
	}

	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("max-batch-size must be positive")
	}
	if c.IndividualRetries < 0 {
		return fmt.Errorf("individual-retries must not be negative")
	}
	if c.NestedBatchRetries < 0 {
		return fmt.Errorf("nested-batch-retries must not be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry-backoff must not be negative")
	}

	if c.Input == "" {
		c.Input = StdinInput
	}
	if c.Follow && c.Input == StdinInput {
		return fmt.Errorf("follow needs an input file")
	}

	if c.LogLevel == "" {
		c.LogLevel = zerolog.LevelInfoValue
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}

	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if not nil and flag not changed.
func (s *configSetter) setInt(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Zero is a meaningful value for retry budgets, so it is applied.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// Target returns the table or stream name the run writes to.
func (c *Config) Target() string {
	if c.Service == ServiceKinesis {
		return c.Stream
	}
	return c.Table
}
