package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"github.com/bft-labs/batchship/pkg/chunk"
	"github.com/bft-labs/batchship/pkg/log"
)

// Engine accumulates items of type T and dispatches them in batches whose
// responses have type R.
type Engine[T, R any] struct {
	cfg      Config
	ops      Ops[T, R]
	logger   log.Logger
	recorder Recorder
	backoff  *backoffConfig

	pending      []T
	pendingBytes int
	stats        Stats
}

// New creates an Engine. It returns ErrInvalidConfig if cfg does not fit
// ops.Ceiling or a required operation is missing.
func New[T, R any](cfg Config, ops Ops[T, R], opts ...Option) (*Engine[T, R], error) {
	if err := cfg.Validate(ops.Ceiling); err != nil {
		return nil, err
	}
	if ops.Batch == nil {
		return nil, fmt.Errorf("%w: batch operation is required", ErrInvalidConfig)
	}
	if ops.Reconcile == nil {
		return nil, fmt.Errorf("%w: reconcile operation is required", ErrInvalidConfig)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine[T, R]{
		cfg:      cfg,
		ops:      ops,
		logger:   log.With(o.logger, log.String("service", cfg.Service), log.String("target", cfg.Target)),
		recorder: o.recorder,
		backoff:  o.backoff,
	}
	e.logger.Debug("batch dispatch initialised",
		log.Int("max_batch_size", cfg.MaxBatchSize),
		log.Bool("flush_on_max_batch_size", cfg.FlushOnMaxBatchSize))
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine[T, R]) Config() Config {
	return e.cfg
}

// Pending returns the number of items waiting to be flushed.
func (e *Engine[T, R]) Pending() int {
	return len(e.pending)
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine[T, R]) Stats() Stats {
	return e.stats
}

// Submit appends item to the pending list and flushes when the list reaches
// MaxBatchSize with flush-on-full enabled. It returns an error only for an
// item over MaxItemBytes; remote failures during a triggered flush are
// reported, not returned.
func (e *Engine[T, R]) Submit(ctx context.Context, item T) error {
	size := 0
	if e.ops.Size != nil {
		size = e.ops.Size(item)
		if e.cfg.MaxItemBytes > 0 && size > e.cfg.MaxItemBytes {
			return fmt.Errorf("%w: %d bytes exceeds the %s limit of %d bytes",
				ErrPayloadTooLarge, size, e.cfg.Service, e.cfg.MaxItemBytes)
		}
		if e.cfg.MaxBatchBytes > 0 && len(e.pending) > 0 && e.pendingBytes+size > e.cfg.MaxBatchBytes {
			e.logger.Debug("payload would exceed the batch byte limit, flushing first",
				log.Int("payload_bytes", size),
				log.Int("pending_bytes", e.pendingBytes),
				log.Int("max_batch_bytes", e.cfg.MaxBatchBytes))
			e.Flush(ctx)
		}
	}

	e.pending = append(e.pending, item)
	e.pendingBytes += size
	e.stats.Submitted++
	e.recorder.Submitted()

	e.logger.Debug("payload added to pending list",
		log.Int("pending", len(e.pending)),
		log.Int("max_batch_size", e.cfg.MaxBatchSize))

	if e.cfg.FlushOnMaxBatchSize && len(e.pending) == e.cfg.MaxBatchSize {
		e.logger.Debug("max batch size reached, flushing")
		e.Flush(ctx)
	}
	return nil
}

// Flush sends every pending item, chunk by chunk in submission order, and
// leaves the pending list empty whatever the outcome.
func (e *Engine[T, R]) Flush(ctx context.Context) {
	if len(e.pending) == 0 {
		e.logger.Info("no payloads to flush")
		return
	}

	items := e.pending
	e.pending = nil
	e.pendingBytes = 0

	chunks, err := chunk.Chunks(items, e.cfg.MaxBatchSize)
	if err != nil {
		// Unreachable: MaxBatchSize is validated in New.
		e.logger.Error("cannot chunk pending payloads", log.Err(err), log.Int("records", len(items)))
		return
	}

	e.logger.Debug("flushing pending payloads",
		log.Int("records", len(items)),
		log.Int("batches", chunk.Count(len(items), e.cfg.MaxBatchSize)))

	for c := range chunks {
		e.dispatchChunk(ctx, c)
	}
}

// dispatchChunk sends one chunk and reconciles its response. Records the
// adapter wants rebatched are resent in the same loop until a response
// reports no failures or the nested budget runs out.
func (e *Engine[T, R]) dispatchChunk(ctx context.Context, batch []T) {
	for nested := 0; ; nested++ {
		e.stats.Batches++
		resp, err := e.ops.Batch(ctx, batch)
		if err != nil {
			// Whole-batch failures are not retried.
			e.stats.BatchFailures++
			e.stats.LostInFailedBatches += len(batch)
			e.recorder.BatchFailed(len(batch))
			e.logger.Error("batch send failed, records not retried",
				append(errorFields(err), log.Int("records", len(batch)), log.Bool("nested", nested > 0))...)
			return
		}

		out := e.ops.Reconcile(batch, resp)
		rejected := out.Rejected()
		e.recorder.BatchSent(len(batch), rejected)

		if rejected == 0 && nested > 0 {
			e.logger.Info("partial batch completed without error",
				log.Int("records", len(batch)), log.Int("nested", nested))
			return
		}
		if sent := len(batch) - rejected; sent > 0 {
			e.logger.Info("batch sent", log.Int("records", sent), log.Int("nested", nested))
		}
		if rejected == 0 {
			return
		}

		e.stats.Rejected += rejected
		e.logger.Warn("batch partially rejected",
			log.Int("records", len(batch)),
			log.Int("rejected", rejected),
			log.Int("individual", len(out.Individual)),
			log.Int("rebatch", len(out.Rebatch)))

		for _, item := range out.Individual {
			e.sendIndividual(ctx, item, e.cfg.IndividualRetries)
		}

		if len(out.Rebatch) == 0 {
			return
		}
		if nested >= e.cfg.NestedBatchRetries {
			e.logger.Warn("nested batch retries exhausted, sending remaining records individually",
				log.Int("records", len(out.Rebatch)),
				log.Int("nested_batch_retries", e.cfg.NestedBatchRetries))
			for _, item := range out.Rebatch {
				e.sendIndividual(ctx, item, e.cfg.IndividualRetries)
			}
			return
		}
		batch = out.Rebatch
	}
}

// sendIndividual makes at most retries+1 attempts to send item. Every failed
// attempt is reported; exhausting the budget drops the item.
func (e *Engine[T, R]) sendIndividual(ctx context.Context, item T, retries int) {
	if e.ops.Individual == nil {
		e.drop(item, errors.New("no individual dispatch operation"), 0)
		return
	}

	var wait *backoff
	if e.backoff != nil {
		wait = newBackoff(*e.backoff)
	}

	for attempt, remaining := 1, retries; ; attempt, remaining = attempt+1, remaining-1 {
		e.stats.IndividualAttempts++
		err := e.ops.Individual(ctx, item)
		e.recorder.IndividualAttempt(err)
		if err == nil {
			e.logger.Debug("individual send succeeded", log.Int("attempt", attempt))
			return
		}

		e.stats.IndividualFailures++
		e.logger.Warn("individual send attempt failed",
			append(errorFields(err), log.Int("attempt", attempt), log.Int("retries_remaining", remaining))...)

		if remaining == 0 {
			e.drop(item, err, attempt)
			return
		}
		if wait != nil {
			wait.Wait(ctx)
		}
	}
}

func (e *Engine[T, R]) drop(item T, cause error, attempts int) {
	e.stats.Dropped++
	e.recorder.Dropped()
	e.logger.Error("dropping item, no retries remaining",
		append(errorFields(cause), log.Int("attempts", attempts), log.Any("item", item))...)
}

// errorFields returns the error plus the service error code when the SDK
// provides one.
func errorFields(err error) []log.Field {
	fields := []log.Field{log.Err(err)}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		fields = append(fields, log.String("code", apiErr.ErrorCode()))
	}
	return fields
}
