package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/batchship/pkg/dispatch"
	"github.com/bft-labs/batchship/pkg/log"
)

type fakeClient struct {
	batches [][]types.WriteRequest
	puts    []*dynamodb.PutItemInput

	// unprocessed returns the indices of the n-th batch to report back.
	unprocessed func(n int) []int
	putErr      error
	batchErr    error
}

func (f *fakeClient) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if len(in.RequestItems) != 1 {
		return nil, fmt.Errorf("expected one table, got %d", len(in.RequestItems))
	}
	var table string
	var reqs []types.WriteRequest
	for t, r := range in.RequestItems {
		table, reqs = t, r
	}
	n := len(f.batches)
	f.batches = append(f.batches, reqs)
	if f.batchErr != nil {
		return nil, f.batchErr
	}

	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	if f.unprocessed != nil {
		for _, i := range f.unprocessed(n) {
			out.UnprocessedItems[table] = append(out.UnprocessedItems[table], reqs[i])
		}
	}
	return out, nil
}

func (f *fakeClient) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func attrS(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	v, ok := item[key].(*types.AttributeValueMemberS)
	require.True(t, ok, "%s is %T, want S", key, item[key])
	return v.Value
}

func attrN(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	v, ok := item[key].(*types.AttributeValueMemberN)
	require.True(t, ok, "%s is %T, want N", key, item[key])
	return v.Value
}

func newDispatcher(t *testing.T, client API, mutate func(*Config), opts ...dispatch.Option) *Dispatcher {
	t.Helper()
	cfg := DefaultConfig("readings", "pk")
	if mutate != nil {
		mutate(&cfg)
	}
	d, err := New(client, cfg, opts...)
	require.NoError(t, err)
	return d
}

func TestNew_Validation(t *testing.T) {
	client := &fakeClient{}

	_, err := New(nil, DefaultConfig("t", "pk"))
	assert.True(t, errors.Is(err, dispatch.ErrInvalidConfig))

	_, err = New(client, DefaultConfig("", "pk"))
	assert.True(t, errors.Is(err, dispatch.ErrInvalidConfig))

	_, err = New(client, DefaultConfig("t", ""))
	assert.True(t, errors.Is(err, dispatch.ErrInvalidConfig))

	cfg := DefaultConfig("t", "pk")
	cfg.MaxBatchSize = BatchWriteLimit + 1
	_, err = New(client, cfg)
	assert.True(t, errors.Is(err, dispatch.ErrInvalidConfig), "batch size above the service limit")
}

func TestSubmit_FloatsBecomeExactDecimals(t *testing.T) {
	client := &fakeClient{}
	d := newDispatcher(t, client, nil)

	require.NoError(t, d.Submit(context.Background(), map[string]any{"Id": "probe-1", "temp": 36.6}))
	d.Flush(context.Background())

	require.Len(t, client.batches, 1)
	item := client.batches[0][0].PutRequest.Item
	assert.Equal(t, "36.6", attrN(t, item, "temp"))
	assert.Equal(t, "probe-1", attrS(t, item, "pk"))
}

func TestSubmit_NestedValues(t *testing.T) {
	client := &fakeClient{}
	d := newDispatcher(t, client, nil)

	record := map[string]any{
		"pk":     "a",
		"tags":   []any{"x", 0.1},
		"meta":   map[string]any{"ratio": 0.25, "ok": true},
		"nothin": nil,
	}
	require.NoError(t, d.Submit(context.Background(), record))
	d.Flush(context.Background())

	item := client.batches[0][0].PutRequest.Item
	tags := item["tags"].(*types.AttributeValueMemberL).Value
	assert.Equal(t, "x", tags[0].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "0.1", tags[1].(*types.AttributeValueMemberN).Value)

	meta := item["meta"].(*types.AttributeValueMemberM).Value
	assert.Equal(t, "0.25", attrN(t, meta, "ratio"))
	assert.Equal(t, true, meta["ok"].(*types.AttributeValueMemberBOOL).Value)
	assert.IsType(t, &types.AttributeValueMemberNULL{}, item["nothin"])
}

func TestSubmit_TypedSliceOfRecords(t *testing.T) {
	client := &fakeClient{}
	d := newDispatcher(t, client, nil)

	record := map[string]any{"pk": "a", "rows": []map[string]any{{"x": json.Number("1.5")}}}
	require.NoError(t, d.Submit(context.Background(), record))
	d.Flush(context.Background())

	rows := client.batches[0][0].PutRequest.Item["rows"].(*types.AttributeValueMemberL).Value
	assert.Equal(t, "1.5", attrN(t, rows[0].(*types.AttributeValueMemberM).Value, "x"))
}

func TestSubmit_PrimaryKeyDerivation(t *testing.T) {
	tests := []struct {
		name     string
		record   map[string]any
		location string
		keyType  KeyConverter
		wantErr  error
		check    func(t *testing.T, item map[string]types.AttributeValue)
	}{
		{
			name:     "missing key and location fails",
			record:   map[string]any{"value": 10},
			location: "Id",
			wantErr:  dispatch.ErrMissingField,
		},
		{
			name:     "derived from alternate field",
			record:   map[string]any{"value": 10},
			location: "value",
			check: func(t *testing.T, item map[string]types.AttributeValue) {
				assert.Equal(t, "10", attrS(t, item, "pk"))
				assert.Equal(t, "10", attrN(t, item, "value"))
			},
		},
		{
			name:     "derived from Id as text",
			record:   map[string]any{"Id": 42},
			location: "Id",
			check: func(t *testing.T, item map[string]types.AttributeValue) {
				assert.Equal(t, "42", attrS(t, item, "pk"))
			},
		},
		{
			name:     "derived as number",
			record:   map[string]any{"Id": "42"},
			location: "Id",
			keyType:  NumberKey,
			check: func(t *testing.T, item map[string]types.AttributeValue) {
				assert.Equal(t, "42", attrN(t, item, "pk"))
			},
		},
		{
			name:     "null key fails",
			record:   map[string]any{"pk": nil, "v": 1},
			location: "Id",
			wantErr:  dispatch.ErrMissingField,
		},
		{
			name:     "empty key fails",
			record:   map[string]any{"pk": "", "Id": "other"},
			location: "Id",
			wantErr:  dispatch.ErrMissingField,
		},
		{
			name:     "empty derived key fails",
			record:   map[string]any{"Id": ""},
			location: "Id",
			wantErr:  dispatch.ErrMissingField,
		},
		{
			name:     "null source field fails",
			record:   map[string]any{"Id": nil},
			location: "Id",
			wantErr:  dispatch.ErrMissingField,
		},
		{
			name:     "oversized key fails",
			record:   map[string]any{"pk": strings.Repeat("k", MaxPartitionKeyBytes+1)},
			location: "Id",
			wantErr:  dispatch.ErrPayloadTooLarge,
		},
		{
			name:     "existing key is kept",
			record:   map[string]any{"pk": "keep", "Id": "other"},
			location: "Id",
			check: func(t *testing.T, item map[string]types.AttributeValue) {
				assert.Equal(t, "keep", attrS(t, item, "pk"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{}
			d := newDispatcher(t, client, func(c *Config) {
				if tt.keyType != nil {
					c.KeyConverter = tt.keyType
				}
			})

			err := d.SubmitFrom(context.Background(), tt.record, tt.location)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "err = %v", err)
				assert.Equal(t, 0, d.Pending())
				return
			}
			require.NoError(t, err)
			d.Flush(context.Background())
			tt.check(t, client.batches[0][0].PutRequest.Item)
		})
	}
}

func TestSubmit_BadKeyDoesNotSinkItsBatch(t *testing.T) {
	client := &fakeClient{}
	d := newDispatcher(t, client, func(c *Config) { c.FlushOnMaxBatchSize = false })

	require.NoError(t, d.Submit(context.Background(), map[string]any{"Id": "a"}))
	assert.Error(t, d.Submit(context.Background(), map[string]any{"pk": nil}))
	require.NoError(t, d.Submit(context.Background(), map[string]any{"Id": "b"}))
	d.Flush(context.Background())

	require.Len(t, client.batches, 1)
	assert.Len(t, client.batches[0], 2)
	assert.Equal(t, 2, d.Stats().Submitted)
}

func TestSubmit_DoesNotModifyRecord(t *testing.T) {
	d := newDispatcher(t, &fakeClient{}, nil)
	record := map[string]any{"Id": "a", "temp": 1.5}

	require.NoError(t, d.Submit(context.Background(), record))

	assert.Equal(t, map[string]any{"Id": "a", "temp": 1.5}, record)
}

func TestSubmit_OversizedItem(t *testing.T) {
	d := newDispatcher(t, &fakeClient{}, nil)

	err := d.Submit(context.Background(), map[string]any{"Id": "a", "blob": strings.Repeat("x", MaxItemBytes)})
	assert.True(t, errors.Is(err, dispatch.ErrPayloadTooLarge), "err = %v", err)
}

func TestFlushOnFull_OneBatchOf25(t *testing.T) {
	client := &fakeClient{}
	d := newDispatcher(t, client, nil)

	for i := 0; i < BatchWriteLimit; i++ {
		require.NoError(t, d.Submit(context.Background(), map[string]any{"Id": i}))
	}

	require.Len(t, client.batches, 1)
	assert.Len(t, client.batches[0], BatchWriteLimit)
	assert.Equal(t, 0, d.Pending())
}

func TestUnprocessedItems_ResentIndividually(t *testing.T) {
	client := &fakeClient{unprocessed: func(n int) []int {
		if n == 0 {
			return []int{1, 3}
		}
		return nil
	}}
	logger := log.NewMemoryLogger()
	d := newDispatcher(t, client, func(c *Config) { c.MaxBatchSize = 5 }, dispatch.WithLogger(logger))

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Submit(context.Background(), map[string]any{"Id": fmt.Sprintf("r%d", i)}))
	}

	require.Len(t, client.batches, 1)
	require.Len(t, client.puts, 2, "only the unprocessed items are resent")
	assert.Equal(t, "r1", attrS(t, client.puts[0].Item, "pk"))
	assert.Equal(t, "r3", attrS(t, client.puts[1].Item, "pk"))
	assert.Equal(t, "readings", *client.puts[0].TableName)
	assert.Contains(t, logger.Messages(log.LevelWarn), "batch partially rejected")
}

func TestUnprocessedItems_RetryBudget(t *testing.T) {
	client := &fakeClient{
		unprocessed: func(int) []int { return []int{0} },
		putErr:      errors.New("ProvisionedThroughputExceeded"),
	}
	logger := log.NewMemoryLogger()
	d := newDispatcher(t, client, func(c *Config) { c.MaxBatchSize = 1 }, dispatch.WithLogger(logger))

	require.NoError(t, d.Submit(context.Background(), map[string]any{"Id": "x"}))

	assert.Len(t, client.puts, DefaultIndividualRetries+1)
	assert.Equal(t, 1, d.Stats().Dropped)
	assert.Equal(t, 1, logger.Count(log.LevelError))
}

func TestBatchFailure_NotRetried(t *testing.T) {
	client := &fakeClient{batchErr: errors.New("connection reset")}
	d := newDispatcher(t, client, func(c *Config) { c.FlushOnMaxBatchSize = false })

	require.NoError(t, d.Submit(context.Background(), map[string]any{"Id": "x"}))
	d.Flush(context.Background())

	assert.Len(t, client.batches, 1)
	assert.Empty(t, client.puts)
	assert.Equal(t, 1, d.Stats().BatchFailures)
}

func TestNumberKey_IntegerKinds(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{int(-7), "-7"},
		{int8(-8), "-8"},
		{int16(16), "16"},
		{int32(32), "32"},
		{int64(-64), "-64"},
		{uint(7), "7"},
		{uint8(255), "255"},
		{uint16(65535), "65535"},
		{uint32(32), "32"},
		{uint64(18446744073709551615), "18446744073709551615"},
		{json.Number("12.50"), "12.5"},
		{"42", "42"},
	}

	for _, tt := range tests {
		got, err := NumberKey(tt.in)
		require.NoError(t, err, "%T", tt.in)
		assert.Equal(t, tt.want, got.(decimal.Decimal).String(), "%T", tt.in)
	}

	_, err := NumberKey(true)
	assert.Error(t, err)
}

func TestParseKeyType(t *testing.T) {
	for _, name := range []string{"", "string", "number", "N"} {
		_, err := ParseKeyType(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseKeyType("binary")
	assert.Error(t, err)
}
