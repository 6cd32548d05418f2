package dispatch

import "fmt"

// Default retry budgets.
const (
	DefaultIndividualRetries  = 5
	DefaultNestedBatchRetries = 10
)

// Config holds the per-engine settings. It is copied at construction and
// never changes afterwards.
type Config struct {
	// Service names the remote service, used in logs and metrics.
	Service string

	// Target names the table or stream, used in logs and metrics.
	Target string

	// MaxBatchSize is the number of items per dispatch call and the
	// flush-on-full threshold.
	MaxBatchSize int

	// FlushOnMaxBatchSize flushes the pending list as soon as it holds
	// MaxBatchSize items. When false, items wait for an explicit Flush.
	FlushOnMaxBatchSize bool

	// IndividualRetries is how many times a rejected item is retried after
	// its first individual attempt fails.
	IndividualRetries int

	// NestedBatchRetries bounds how many nested batches a single chunk may
	// spawn. Records still failing afterwards fall back to individual sends.
	NestedBatchRetries int

	// MaxItemBytes rejects single items larger than this. Zero disables.
	MaxItemBytes int

	// MaxBatchBytes flushes the pending list before it would grow past this
	// many bytes. Zero disables.
	MaxBatchBytes int
}

// DefaultConfig returns a Config with flush-on-full enabled and the default
// retry budgets.
func DefaultConfig(service, target string, maxBatchSize int) Config {
	return Config{
		Service:             service,
		Target:              target,
		MaxBatchSize:        maxBatchSize,
		FlushOnMaxBatchSize: true,
		IndividualRetries:   DefaultIndividualRetries,
		NestedBatchRetries:  DefaultNestedBatchRetries,
	}
}

// Validate checks the configuration against the service's batch ceiling.
// A ceiling of zero means the service imposes none.
func (c Config) Validate(ceiling int) error {
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("%w: max batch size %d must be positive", ErrInvalidConfig, c.MaxBatchSize)
	}
	if ceiling > 0 && c.MaxBatchSize > ceiling {
		return fmt.Errorf("%w: max batch size %d exceeds the %s maximum of %d",
			ErrInvalidConfig, c.MaxBatchSize, c.Service, ceiling)
	}
	if c.IndividualRetries < 0 {
		return fmt.Errorf("%w: individual retries %d must not be negative", ErrInvalidConfig, c.IndividualRetries)
	}
	if c.NestedBatchRetries < 0 {
		return fmt.Errorf("%w: nested batch retries %d must not be negative", ErrInvalidConfig, c.NestedBatchRetries)
	}
	if c.MaxItemBytes < 0 || c.MaxBatchBytes < 0 {
		return fmt.Errorf("%w: byte limits must not be negative", ErrInvalidConfig)
	}
	if c.MaxItemBytes > 0 && c.MaxBatchBytes > 0 && c.MaxItemBytes > c.MaxBatchBytes {
		return fmt.Errorf("%w: max item bytes %d exceeds max batch bytes %d",
			ErrInvalidConfig, c.MaxItemBytes, c.MaxBatchBytes)
	}
	return nil
}
