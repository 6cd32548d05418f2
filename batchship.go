// Package batchship batches records into DynamoDB tables and Kinesis streams.
//
// Example usage:
//
//	awsCfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	d, err := batchship.NewDynamoDB(dynamodb.NewFromConfig(awsCfg),
//	    dynamo.DefaultConfig("readings", "pk"),
//	    batchship.WithLogger(batchlog.NewZerologAdapter(os.Stderr, zerolog.InfoLevel)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = d.Submit(ctx, map[string]any{"Id": "probe-1", "temp": 36.6})
//	d.Flush(ctx)
//
// A dispatcher is not safe for concurrent use; drive each one from a single
// goroutine and call Flush before discarding it.
package batchship

import (
	"time"

	"github.com/bft-labs/batchship/pkg/dispatch"
	"github.com/bft-labs/batchship/pkg/dynamo"
	"github.com/bft-labs/batchship/pkg/log"
	"github.com/bft-labs/batchship/pkg/stream"
)

// Option configures logging, metrics and retry pacing of a dispatcher.
type Option = dispatch.Option

// Stats counts what a dispatcher has sent, retried and dropped.
type Stats = dispatch.Stats

// Recorder receives dispatch events for metrics.
type Recorder = dispatch.Recorder

// Errors returned by constructors and Submit.
var (
	ErrInvalidConfig   = dispatch.ErrInvalidConfig
	ErrMissingField    = dispatch.ErrMissingField
	ErrPayloadTooLarge = dispatch.ErrPayloadTooLarge
)

// NewDynamoDB creates a dispatcher writing to one DynamoDB table.
func NewDynamoDB(client dynamo.API, cfg dynamo.Config, opts ...Option) (*dynamo.Dispatcher, error) {
	return dynamo.New(client, cfg, opts...)
}

// NewKinesis creates a dispatcher putting records on one Kinesis stream.
func NewKinesis(client stream.API, cfg stream.Config, opts ...Option) (*stream.Dispatcher, error) {
	return stream.New(client, cfg, opts...)
}

// WithLogger sets the logger for send, retry and drop reports.
func WithLogger(logger log.Logger) Option {
	return dispatch.WithLogger(logger)
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return dispatch.WithRecorder(r)
}

// WithRetryBackoff waits between individual retries, starting at initial and
// doubling up to max.
func WithRetryBackoff(initial, max time.Duration) Option {
	return dispatch.WithRetryBackoff(initial, max)
}
