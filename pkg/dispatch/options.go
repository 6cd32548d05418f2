package dispatch

import (
	"time"

	"github.com/bft-labs/batchship/pkg/log"
)

// Option configures optional behavior of an Engine.
type Option func(*options)

type options struct {
	logger   log.Logger
	recorder Recorder
	backoff  *backoffConfig
}

func defaultOptions() options {
	return options{
		logger:   log.NoopLogger{},
		recorder: NoopRecorder{},
	}
}

// WithLogger sets the logger that receives every send, rejection, retry and
// drop report. If not provided, a no-op logger is used.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder. If not provided, nothing is recorded
// beyond Stats.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithRetryBackoff waits between individual retry attempts, starting at
// initial and doubling up to max. Without it, retries are immediate.
func WithRetryBackoff(initial, max time.Duration) Option {
	return func(o *options) {
		if initial <= 0 {
			o.backoff = nil
			return
		}
		if max < initial {
			max = initial
		}
		o.backoff = &backoffConfig{initial: initial, max: max}
	}
}
