package stream

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"

	"github.com/bft-labs/batchship/pkg/dispatch"
	"github.com/bft-labs/batchship/pkg/numeric"
)

// Service limits.
const (
	// DefaultMaxBatchSize is the default number of records per PutRecords call.
	DefaultMaxBatchSize = 250

	// PutRecordsLimit is the most records PutRecords accepts per call.
	PutRecordsLimit = 500

	// MaxRecordBytes is the largest record (data plus partition key).
	MaxRecordBytes = 1 << 20

	// MaxBatchBytes is the largest PutRecords request.
	MaxBatchBytes = 5 << 20

	// DefaultPartitionKeyField is the payload field used as partition key.
	DefaultPartitionKeyField = "Id"

	// MaxPartitionKeyLength is the longest partition key, in Unicode
	// characters, PutRecords accepts.
	MaxPartitionKeyLength = 256
)

// ServiceName labels Kinesis dispatchers in logs and metrics.
const ServiceName = "kinesis"

// API is the subset of the Kinesis client the dispatcher uses.
type API interface {
	PutRecords(ctx context.Context, params *kinesis.PutRecordsInput, optFns ...func(*kinesis.Options)) (*kinesis.PutRecordsOutput, error)
	PutRecord(ctx context.Context, params *kinesis.PutRecordInput, optFns ...func(*kinesis.Options)) (*kinesis.PutRecordOutput, error)
}

var _ API = (*kinesis.Client)(nil)

// Config configures a Dispatcher.
type Config struct {
	// Stream is the target stream name.
	Stream string

	// PartitionKeyField is the payload field copied into the partition key.
	PartitionKeyField string

	MaxBatchSize        int
	FlushOnMaxBatchSize bool
	IndividualRetries   int
	NestedBatchRetries  int
}

// DefaultConfig returns a Config for stream with the service defaults.
func DefaultConfig(stream string) Config {
	return Config{
		Stream:              stream,
		PartitionKeyField:   DefaultPartitionKeyField,
		MaxBatchSize:        DefaultMaxBatchSize,
		FlushOnMaxBatchSize: true,
		IndividualRetries:   dispatch.DefaultIndividualRetries,
		NestedBatchRetries:  dispatch.DefaultNestedBatchRetries,
	}
}

// Dispatcher batches records for one stream.
type Dispatcher struct {
	cfg    Config
	client API
	engine *dispatch.Engine[types.PutRecordsRequestEntry, *kinesis.PutRecordsOutput]
}

// New creates a Dispatcher writing through client.
func New(client API, cfg Config, opts ...dispatch.Option) (*Dispatcher, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: kinesis client is required", dispatch.ErrInvalidConfig)
	}
	if cfg.Stream == "" {
		return nil, fmt.Errorf("%w: stream is required", dispatch.ErrInvalidConfig)
	}
	if cfg.PartitionKeyField == "" {
		cfg.PartitionKeyField = DefaultPartitionKeyField
	}

	d := &Dispatcher{cfg: cfg, client: client}

	engineCfg := dispatch.Config{
		Service:             ServiceName,
		Target:              cfg.Stream,
		MaxBatchSize:        cfg.MaxBatchSize,
		FlushOnMaxBatchSize: cfg.FlushOnMaxBatchSize,
		IndividualRetries:   cfg.IndividualRetries,
		NestedBatchRetries:  cfg.NestedBatchRetries,
		MaxItemBytes:        MaxRecordBytes,
		MaxBatchBytes:       MaxBatchBytes,
	}
	ops := dispatch.Ops[types.PutRecordsRequestEntry, *kinesis.PutRecordsOutput]{
		Batch:      d.putRecords,
		Individual: d.putRecord,
		Reconcile:  failedRecords,
		Size:       entrySize,
		Ceiling:    PutRecordsLimit,
	}

	engine, err := dispatch.New(engineCfg, ops, opts...)
	if err != nil {
		return nil, err
	}
	d.engine = engine
	return d, nil
}

// Submit serializes payload and queues it. It returns
// dispatch.ErrMissingField when the partition key field is absent.
func (d *Dispatcher) Submit(ctx context.Context, payload map[string]any) error {
	key, ok := payload[d.cfg.PartitionKeyField]
	if !ok || key == nil {
		return fmt.Errorf("%w: payload has no partition key field %q", dispatch.ErrMissingField, d.cfg.PartitionKeyField)
	}
	partitionKey := fmt.Sprint(key)
	if partitionKey == "" {
		return fmt.Errorf("%w: partition key field %q is empty", dispatch.ErrMissingField, d.cfg.PartitionKeyField)
	}
	if n := utf8.RuneCountInString(partitionKey); n > MaxPartitionKeyLength {
		return fmt.Errorf("%w: partition key is %d characters, limit is %d",
			dispatch.ErrPayloadTooLarge, n, MaxPartitionKeyLength)
	}

	data, err := numeric.MarshalJSON(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	return d.engine.Submit(ctx, types.PutRecordsRequestEntry{
		Data:         data,
		PartitionKey: aws.String(partitionKey),
	})
}

// Flush sends every pending record.
func (d *Dispatcher) Flush(ctx context.Context) {
	d.engine.Flush(ctx)
}

// Pending returns the number of queued records.
func (d *Dispatcher) Pending() int {
	return d.engine.Pending()
}

// Stats returns the engine counters.
func (d *Dispatcher) Stats() dispatch.Stats {
	return d.engine.Stats()
}

func (d *Dispatcher) putRecords(ctx context.Context, batch []types.PutRecordsRequestEntry) (*kinesis.PutRecordsOutput, error) {
	return d.client.PutRecords(ctx, &kinesis.PutRecordsInput{
		StreamName: aws.String(d.cfg.Stream),
		Records:    batch,
	})
}

func (d *Dispatcher) putRecord(ctx context.Context, entry types.PutRecordsRequestEntry) error {
	_, err := d.client.PutRecord(ctx, &kinesis.PutRecordInput{
		StreamName:      aws.String(d.cfg.Stream),
		Data:            entry.Data,
		PartitionKey:    entry.PartitionKey,
		ExplicitHashKey: entry.ExplicitHashKey,
	})
	return err
}

// failedRecords picks the entries whose result carries an error code. The
// response lists results in request order.
func failedRecords(batch []types.PutRecordsRequestEntry, resp *kinesis.PutRecordsOutput) dispatch.Outcome[types.PutRecordsRequestEntry] {
	var out dispatch.Outcome[types.PutRecordsRequestEntry]
	if resp == nil {
		return out
	}
	for i, r := range resp.Records {
		if i >= len(batch) {
			break
		}
		if r.ErrorCode != nil && *r.ErrorCode != "" {
			out.Rebatch = append(out.Rebatch, batch[i])
		}
	}
	return out
}

func entrySize(e types.PutRecordsRequestEntry) int {
	return len(e.Data) + len(aws.ToString(e.PartitionKey))
}
