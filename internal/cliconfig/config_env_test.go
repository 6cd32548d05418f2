package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies dynamodb env vars",
			envVars: map[string]string{
				"BATCHSHIP_TABLE":                  "readings",
				"BATCHSHIP_PRIMARY_KEY":            "pk",
				"BATCHSHIP_KEY_TYPE":               "number",
				"BATCHSHIP_PARTITION_KEY_LOCATION": "device",
				"BATCHSHIP_STREAM":                 "ignored",
				"BATCHSHIP_MAX_BATCH_SIZE":         "10",
				"BATCHSHIP_INDIVIDUAL_RETRIES":     "0",
				"BATCHSHIP_RETRY_BACKOFF":          "250ms",
				"BATCHSHIP_FLUSH_ON_FULL":          "false",
			},
			changed: map[string]bool{},
			initial: Config{Service: ServiceDynamoDB, IndividualRetries: 4, FlushOnFull: true},
			expected: Config{
				Service:              ServiceDynamoDB,
				Table:                "readings",
				PrimaryKey:           "pk",
				KeyType:              "number",
				PartitionKeyLocation: "device",
				MaxBatchSize:         10,
				IndividualRetries:    0,
				RetryBackoff:         250 * time.Millisecond,
				FlushOnFull:          false,
			},
		},
		{
			name: "applies kinesis env vars",
			envVars: map[string]string{
				"BATCHSHIP_STREAM":               "events",
				"BATCHSHIP_PARTITION_KEY_FIELD":  "device",
				"BATCHSHIP_TABLE":                "ignored",
				"BATCHSHIP_NESTED_BATCH_RETRIES": "3",
				"BATCHSHIP_REGION":               "eu-west-1",
				"BATCHSHIP_ENDPOINT_URL":         "http://localhost:4566",
				"BATCHSHIP_INPUT":                "/data/in.ndjson",
				"BATCHSHIP_FOLLOW":               "1",
				"BATCHSHIP_IDLE_FLUSH":           "0",
				"BATCHSHIP_METRICS_ADDR":         ":9100",
				"BATCHSHIP_LOG_LEVEL":            "debug",
			},
			changed: map[string]bool{},
			initial: Config{Service: ServiceKinesis, IdleFlush: true},
			expected: Config{
				Service:            ServiceKinesis,
				Stream:             "events",
				PartitionKeyField:  "device",
				NestedBatchRetries: 3,
				Region:             "eu-west-1",
				EndpointURL:        "http://localhost:4566",
				Input:              "/data/in.ndjson",
				Follow:             true,
				IdleFlush:          false,
				MetricsAddr:        ":9100",
				LogLevel:           "debug",
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"BATCHSHIP_STREAM": "env-stream",
				"BATCHSHIP_REGION": "us-east-2",
			},
			changed:  map[string]bool{"stream": true},
			initial:  Config{Service: ServiceKinesis, Stream: "flag-stream"},
			expected: Config{Service: ServiceKinesis, Stream: "flag-stream", Region: "us-east-2"},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"BATCHSHIP_RETRY_BACKOFF": "not-a-duration"},
			changed: map[string]bool{},
			initial: Config{Service: ServiceKinesis},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int",
			envVars: map[string]string{"BATCHSHIP_MAX_BATCH_SIZE": "lots"},
			changed: map[string]bool{},
			initial: Config{Service: ServiceKinesis},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() =\n%+v\nwant\n%+v", cfg, tt.expected)
			}
		})
	}
}

// Integration test: precedence order (CLI > Env > File)
func TestConfigPrecedence(t *testing.T) {
	trueVal := true

	fileConf := FileConfig{
		Region:   "file-region",
		Input:    "/file/in.ndjson",
		Follow:   &trueVal,
		LogLevel: "warn",
		Kinesis:  KinesisFileConfig{Stream: "file-stream"},
	}

	t.Setenv("BATCHSHIP_STREAM", "env-stream")
	t.Setenv("BATCHSHIP_REGION", "env-region")
	t.Setenv("BATCHSHIP_LOG_LEVEL", "debug")

	changed := map[string]bool{
		"stream": true,
	}

	cfg := DefaultConfig(ServiceKinesis)
	cfg.Stream = "cli-stream"

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.Stream != "cli-stream" {
		t.Errorf("Stream = %v, want cli-stream (CLI should win)", cfg.Stream)
	}
	if cfg.Region != "env-region" {
		t.Errorf("Region = %v, want env-region (env should override file)", cfg.Region)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug (env should override file)", cfg.LogLevel)
	}
	if cfg.Input != "/file/in.ndjson" || !cfg.Follow {
		t.Errorf("Input = %v, Follow = %v, want file values", cfg.Input, cfg.Follow)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
