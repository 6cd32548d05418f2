package dynamo

import (
	"context"
	"fmt"
	"maps"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/bft-labs/batchship/pkg/dispatch"
	"github.com/bft-labs/batchship/pkg/numeric"
)

// Service limits.
const (
	// BatchWriteLimit is the most items BatchWriteItem accepts per call.
	BatchWriteLimit = 25

	// MaxItemBytes is the largest item DynamoDB stores.
	MaxItemBytes = 400 * 1024

	// MaxBatchBytes is the largest BatchWriteItem request.
	MaxBatchBytes = 16 * 1024 * 1024

	// DefaultIndividualRetries is the PutItem retry budget for unprocessed items.
	DefaultIndividualRetries = 4

	// DefaultPartitionKeyLocation is the field a missing primary key is copied from.
	DefaultPartitionKeyLocation = "Id"

	// MaxPartitionKeyBytes is the longest string partition key DynamoDB accepts.
	MaxPartitionKeyBytes = 2048
)

// ServiceName labels DynamoDB dispatchers in logs and metrics.
const ServiceName = "dynamodb"

// API is the subset of the DynamoDB client the dispatcher uses.
type API interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Config configures a Dispatcher.
type Config struct {
	// Table is the target table name.
	Table string

	// PrimaryKey is the partition key attribute name.
	PrimaryKey string

	// KeyConverter converts a derived key value. Defaults to StringKey.
	KeyConverter KeyConverter

	// PartitionKeyLocation is the field Submit copies a missing primary
	// key from.
	PartitionKeyLocation string

	MaxBatchSize        int
	FlushOnMaxBatchSize bool
	IndividualRetries   int
}

// DefaultConfig returns a Config for table keyed by primaryKey with the
// service defaults.
func DefaultConfig(table, primaryKey string) Config {
	return Config{
		Table:                table,
		PrimaryKey:           primaryKey,
		KeyConverter:         StringKey,
		PartitionKeyLocation: DefaultPartitionKeyLocation,
		MaxBatchSize:         BatchWriteLimit,
		FlushOnMaxBatchSize:  true,
		IndividualRetries:    DefaultIndividualRetries,
	}
}

// Dispatcher batches PutRequests for one table.
type Dispatcher struct {
	cfg    Config
	client API
	engine *dispatch.Engine[types.WriteRequest, *dynamodb.BatchWriteItemOutput]
}

// New creates a Dispatcher writing through client.
func New(client API, cfg Config, opts ...dispatch.Option) (*Dispatcher, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: dynamodb client is required", dispatch.ErrInvalidConfig)
	}
	if cfg.Table == "" {
		return nil, fmt.Errorf("%w: table is required", dispatch.ErrInvalidConfig)
	}
	if cfg.PrimaryKey == "" {
		return nil, fmt.Errorf("%w: primary key is required", dispatch.ErrInvalidConfig)
	}
	if cfg.KeyConverter == nil {
		cfg.KeyConverter = StringKey
	}
	if cfg.PartitionKeyLocation == "" {
		cfg.PartitionKeyLocation = DefaultPartitionKeyLocation
	}

	d := &Dispatcher{cfg: cfg, client: client}

	engineCfg := dispatch.Config{
		Service:             ServiceName,
		Target:              cfg.Table,
		MaxBatchSize:        cfg.MaxBatchSize,
		FlushOnMaxBatchSize: cfg.FlushOnMaxBatchSize,
		IndividualRetries:   cfg.IndividualRetries,
		MaxItemBytes:        MaxItemBytes,
		MaxBatchBytes:       MaxBatchBytes,
	}
	ops := dispatch.Ops[types.WriteRequest, *dynamodb.BatchWriteItemOutput]{
		Batch:      d.batchWrite,
		Individual: d.putItem,
		Reconcile:  d.unprocessed,
		Size:       requestSize,
		Ceiling:    BatchWriteLimit,
	}

	engine, err := dispatch.New(engineCfg, ops, opts...)
	if err != nil {
		return nil, err
	}
	d.engine = engine
	return d, nil
}

// Submit queues record, deriving a missing primary key from the configured
// PartitionKeyLocation.
func (d *Dispatcher) Submit(ctx context.Context, record map[string]any) error {
	return d.SubmitFrom(ctx, record, d.cfg.PartitionKeyLocation)
}

// SubmitFrom queues record, deriving a missing primary key from location.
// It returns dispatch.ErrMissingField when neither the key nor location is
// present, or the key ends up null or empty. The caller's map is not modified.
func (d *Dispatcher) SubmitFrom(ctx context.Context, record map[string]any, location string) error {
	rec := maps.Clone(record)
	if rec == nil {
		rec = map[string]any{}
	}

	if _, ok := rec[d.cfg.PrimaryKey]; !ok {
		src, ok := rec[location]
		if !ok || src == nil {
			return fmt.Errorf("%w: record has neither primary key %q nor %q to derive it from",
				dispatch.ErrMissingField, d.cfg.PrimaryKey, location)
		}
		key, err := d.cfg.KeyConverter(src)
		if err != nil {
			return fmt.Errorf("derive primary key %q from %q: %w", d.cfg.PrimaryKey, location, err)
		}
		rec[d.cfg.PrimaryKey] = key
	}
	if err := checkKey(d.cfg.PrimaryKey, rec[d.cfg.PrimaryKey]); err != nil {
		return err
	}

	converted, err := numeric.ConvertRecord(rec)
	if err != nil {
		return fmt.Errorf("convert record: %w", err)
	}
	item, err := encodeItem(converted)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	return d.engine.Submit(ctx, types.WriteRequest{
		PutRequest: &types.PutRequest{Item: item},
	})
}

// Flush writes every pending item.
func (d *Dispatcher) Flush(ctx context.Context) {
	d.engine.Flush(ctx)
}

// Pending returns the number of queued items.
func (d *Dispatcher) Pending() int {
	return d.engine.Pending()
}

// Stats returns the engine counters.
func (d *Dispatcher) Stats() dispatch.Stats {
	return d.engine.Stats()
}

// checkKey rejects key values BatchWriteItem would refuse for the whole
// request, so one bad record cannot fail the records batched with it.
func checkKey(name string, v any) error {
	switch k := v.(type) {
	case nil:
		return fmt.Errorf("%w: primary key %q is null", dispatch.ErrMissingField, name)
	case string:
		if k == "" {
			return fmt.Errorf("%w: primary key %q is empty", dispatch.ErrMissingField, name)
		}
		if len(k) > MaxPartitionKeyBytes {
			return fmt.Errorf("%w: primary key %q is %d bytes, limit is %d",
				dispatch.ErrPayloadTooLarge, name, len(k), MaxPartitionKeyBytes)
		}
	}
	return nil
}

func (d *Dispatcher) batchWrite(ctx context.Context, batch []types.WriteRequest) (*dynamodb.BatchWriteItemOutput, error) {
	return d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{d.cfg.Table: batch},
	})
}

func (d *Dispatcher) putItem(ctx context.Context, req types.WriteRequest) error {
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.cfg.Table),
		Item:      req.PutRequest.Item,
	})
	return err
}

// unprocessed returns this table's unprocessed put requests for individual
// retry.
func (d *Dispatcher) unprocessed(_ []types.WriteRequest, resp *dynamodb.BatchWriteItemOutput) dispatch.Outcome[types.WriteRequest] {
	if resp == nil {
		return dispatch.Outcome[types.WriteRequest]{}
	}
	var out dispatch.Outcome[types.WriteRequest]
	for _, req := range resp.UnprocessedItems[d.cfg.Table] {
		if req.PutRequest == nil {
			continue
		}
		out.Individual = append(out.Individual, req)
	}
	return out
}

func requestSize(req types.WriteRequest) int {
	if req.PutRequest == nil {
		return 0
	}
	return itemSize(req.PutRequest.Item)
}
