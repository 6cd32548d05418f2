// Package dispatch implements the generic batch accumulation and dispatch
// engine shared by every service adapter.
//
// An Engine owns an in-memory pending list. Submit appends to it and flushes
// once the list reaches the configured batch size (unless flush-on-full is
// disabled). Flush splits the list into chunks, sends each chunk through the
// adapter's batch operation and reconciles the response: rejected items are
// resent one at a time with a bounded retry budget, or resent together as a
// nested batch when the adapter asks for it.
//
// # Item lifecycle
//
//	Pending → InBatch → Acknowledged
//	                  → RejectedByBatch → IndividualAttempt → Acknowledged
//	                                                       → IndividualAttempt (budget - 1)
//	                                                       → Dropped (budget exhausted)
//
// Remote failures never surface as errors from Submit or Flush. They are
// reported through the injected log.Logger and Recorder, which are the only
// signals that a record was not delivered. Unflushed records live only in
// memory and are lost if the process exits.
//
// # Concurrency
//
// An Engine is not safe for concurrent use. Every call blocks the caller
// until the remote service answers, including retries.
package dispatch
