package dispatch

import "context"

// BatchFunc sends one batch through the service's multi-record call.
// An error means the call itself failed; per-item failures belong in R.
type BatchFunc[T, R any] func(ctx context.Context, batch []T) (R, error)

// IndividualFunc sends exactly one item.
type IndividualFunc[T any] func(ctx context.Context, item T) error

// ReconcileFunc maps a successful batch response to the items that still
// need delivering.
type ReconcileFunc[T, R any] func(batch []T, resp R) Outcome[T]

// SizeFunc reports the encoded size of an item in bytes.
type SizeFunc[T any] func(item T) int

// Outcome lists the items a batch response did not accept.
type Outcome[T any] struct {
	// Individual items are resent one at a time with the retry budget.
	Individual []T

	// Rebatch items are resent together as a nested batch.
	Rebatch []T
}

// Rejected returns the number of items in the outcome.
func (o Outcome[T]) Rejected() int {
	return len(o.Individual) + len(o.Rebatch)
}

// Ops is the capability set an adapter supplies to the engine.
type Ops[T, R any] struct {
	// Batch is required.
	Batch BatchFunc[T, R]

	// Individual is optional. Without it, items routed to individual
	// retry are dropped and reported.
	Individual IndividualFunc[T]

	// Reconcile is required.
	Reconcile ReconcileFunc[T, R]

	// Size is optional and enables the byte limits in Config.
	Size SizeFunc[T]

	// Ceiling is the service's hard batch size limit. Zero means none.
	Ceiling int
}
