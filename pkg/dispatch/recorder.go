package dispatch

// Recorder receives delivery metrics from an Engine.
type Recorder interface {
	// Submitted is called once per accepted Submit.
	Submitted()

	// BatchSent is called after a batch call returns, with the number of
	// records sent and how many the response rejected.
	BatchSent(records, rejected int)

	// BatchFailed is called when a batch call fails outright.
	BatchFailed(records int)

	// IndividualAttempt is called after every individual send. err is nil on
	// success.
	IndividualAttempt(err error)

	// Dropped is called once per item given up on.
	Dropped()
}

// NoopRecorder discards all metrics.
type NoopRecorder struct{}

func (NoopRecorder) Submitted()                      {}
func (NoopRecorder) BatchSent(records, rejected int) {}
func (NoopRecorder) BatchFailed(records int)         {}
func (NoopRecorder) IndividualAttempt(err error)     {}
func (NoopRecorder) Dropped()                        {}

// Stats is a snapshot of an Engine's counters.
type Stats struct {
	// Submitted counts items accepted by Submit.
	Submitted int

	// Batches counts batch calls, nested ones included.
	Batches int

	// BatchFailures counts batch calls that failed outright. Their
	// records are not retried.
	BatchFailures int

	// LostInFailedBatches counts records carried by failed batch calls.
	LostInFailedBatches int

	// Rejected counts items named as unprocessed by batch responses.
	Rejected int

	// IndividualAttempts counts individual sends, successful or not.
	IndividualAttempts int

	// IndividualFailures counts individual sends that failed.
	IndividualFailures int

	// Dropped counts items given up on after retries or for lack of an
	// individual operation.
	Dropped int
}
