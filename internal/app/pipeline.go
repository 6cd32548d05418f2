// Package app runs the CLI pipeline: records read from the input are fed to a
// dispatcher, which is flushed once the input ends.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bft-labs/batchship/internal/source"
	"github.com/bft-labs/batchship/pkg/dispatch"
	"github.com/bft-labs/batchship/pkg/log"
)

// StdinInput selects standard input as the record source.
const StdinInput = "-"

// Sink is a dispatcher the pipeline feeds.
type Sink interface {
	Submit(ctx context.Context, record map[string]any) error
	Flush(ctx context.Context)
	Pending() int
	Stats() dispatch.Stats
}

// Config contains configuration for the pipeline.
type Config struct {
	// Input is a file path or StdinInput.
	Input string

	// Follow keeps reading records appended to Input until the context is
	// done.
	Follow bool

	// IdleFlush flushes pending records after each burst of appended
	// records in follow mode.
	IdleFlush bool

	// Stdin replaces os.Stdin when Input is StdinInput.
	Stdin io.Reader
}

// Result summarises a run.
type Result struct {
	Stats   dispatch.Stats
	Skipped int
}

// Pipeline feeds one Sink from one input.
type Pipeline struct {
	cfg    Config
	sink   Sink
	logger log.Logger

	skipped int
}

// NewPipeline creates a pipeline writing into sink.
func NewPipeline(cfg Config, sink Sink, logger log.Logger) *Pipeline {
	if cfg.Input == "" {
		cfg.Input = StdinInput
	}
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Pipeline{cfg: cfg, sink: sink, logger: logger}
}

// Run reads the input until it ends or ctx is done, then flushes whatever is
// pending. Sends started after ctx is done still complete, so records read
// before a shutdown are not abandoned.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	sendCtx := context.WithoutCancel(ctx)

	handle := func(rec source.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.sink.Submit(sendCtx, rec); err != nil {
			p.skipped++
			p.logger.Warn("skipping record", log.Err(err))
		}
		return nil
	}

	err := p.read(ctx, sendCtx, handle)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		p.logger.Info("input interrupted, flushing pending records", log.Int("pending", p.sink.Pending()))
		err = nil
	}

	p.sink.Flush(sendCtx)

	res := Result{Stats: p.sink.Stats(), Skipped: p.skipped}
	p.logger.Info("dispatch summary",
		log.Int("submitted", res.Stats.Submitted),
		log.Int("skipped", res.Skipped),
		log.Int("batches", res.Stats.Batches),
		log.Int("batch_failures", res.Stats.BatchFailures),
		log.Int("lost_in_failed_batches", res.Stats.LostInFailedBatches),
		log.Int("rejected", res.Stats.Rejected),
		log.Int("individual_attempts", res.Stats.IndividualAttempts),
		log.Int("dropped", res.Stats.Dropped))
	return res, err
}

func (p *Pipeline) read(ctx, sendCtx context.Context, handle source.Handler) error {
	if p.cfg.Input == StdinInput {
		return source.Read(p.cfg.Stdin, p.logger, handle)
	}

	if p.cfg.Follow {
		var idle func()
		if p.cfg.IdleFlush {
			idle = func() {
				if p.sink.Pending() > 0 {
					p.sink.Flush(sendCtx)
				}
			}
		}
		return source.Follow(ctx, p.cfg.Input, p.logger, handle, idle)
	}

	f, err := os.Open(p.cfg.Input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return source.Read(f, p.logger, handle)
}
