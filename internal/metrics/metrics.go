// Package metrics exports dispatcher delivery counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/batchship/pkg/dispatch"
)

const namespace = "batchship"

// Collector owns the counter vectors shared by every dispatcher in a process.
type Collector struct {
	submitted          *prometheus.CounterVec
	batches            *prometheus.CounterVec
	recordsSent        *prometheus.CounterVec
	recordsRejected    *prometheus.CounterVec
	batchFailures      *prometheus.CounterVec
	individualAttempts *prometheus.CounterVec
	dropped            *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewCollector creates the counters and registers them on a fresh registry.
func NewCollector() *Collector {
	labels := []string{"service", "target"}
	counter := func(name, help string, extra ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, append(append([]string{}, labels...), extra...))
	}

	c := &Collector{
		submitted:          counter("records_submitted_total", "Records accepted by Submit."),
		batches:            counter("batches_total", "Batch calls that returned a response, nested batches included."),
		recordsSent:        counter("batch_records_total", "Records carried by batch calls that returned a response."),
		recordsRejected:    counter("batch_records_rejected_total", "Records a batch response reported as not processed."),
		batchFailures:      counter("batch_failures_total", "Batch calls that failed outright; their records are not retried."),
		individualAttempts: counter("individual_attempts_total", "Individual sends by result.", "result"),
		dropped:            counter("records_dropped_total", "Records given up on after exhausting retries."),
		registry:           prometheus.NewRegistry(),
	}
	c.registry.MustRegister(
		c.submitted,
		c.batches,
		c.recordsSent,
		c.recordsRejected,
		c.batchFailures,
		c.individualAttempts,
		c.dropped,
	)
	return c
}

// Registry returns the registry holding the counters.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Server returns an HTTP server exposing /metrics on addr.
func (c *Collector) Server(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Recorder returns a dispatch.Recorder labelled for one dispatcher.
func (c *Collector) Recorder(service, target string) *Recorder {
	l := prometheus.Labels{"service": service, "target": target}
	return &Recorder{
		submitted:         c.submitted.With(l),
		batches:           c.batches.With(l),
		recordsSent:       c.recordsSent.With(l),
		recordsRejected:   c.recordsRejected.With(l),
		batchFailures:     c.batchFailures.With(l),
		individualOK:      c.individualAttempts.MustCurryWith(l).WithLabelValues("success"),
		individualFailure: c.individualAttempts.MustCurryWith(l).WithLabelValues("failure"),
		dropped:           c.dropped.With(l),
	}
}

// Recorder implements dispatch.Recorder on top of a Collector.
type Recorder struct {
	submitted         prometheus.Counter
	batches           prometheus.Counter
	recordsSent       prometheus.Counter
	recordsRejected   prometheus.Counter
	batchFailures     prometheus.Counter
	individualOK      prometheus.Counter
	individualFailure prometheus.Counter
	dropped           prometheus.Counter
}

var _ dispatch.Recorder = (*Recorder)(nil)

func (r *Recorder) Submitted() { r.submitted.Inc() }

func (r *Recorder) BatchSent(records, rejected int) {
	r.batches.Inc()
	r.recordsSent.Add(float64(records))
	r.recordsRejected.Add(float64(rejected))
}

// BatchFailed counts the failed call only; the records it carried are
// visible as submitted but never sent.
func (r *Recorder) BatchFailed(records int) { r.batchFailures.Inc() }

func (r *Recorder) IndividualAttempt(err error) {
	if err != nil {
		r.individualFailure.Inc()
		return
	}
	r.individualOK.Inc()
}

func (r *Recorder) Dropped() { r.dropped.Inc() }
