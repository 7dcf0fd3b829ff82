package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	outstanding *prometheus.GaugeVec
	aged        *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// SetWarkatAging publishes the latest aging scan for one company and direction.
func (m *Metrics) SetWarkatAging(company, direction string, outstanding, aged int) {
	if m == nil {
		return
	}
	if company == "" {
		company = "unknown"
	}
	m.outstanding.WithLabelValues(company, direction).Set(float64(outstanding))
	m.aged.WithLabelValues(company, direction).Set(float64(aged))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradechain_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradechain_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradechain_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	outstanding := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradechain_warkat_outstanding",
		Help: "Submitted warkat without clearance date at the last aging scan.",
	}, []string{"company", "direction"})
	aged := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradechain_warkat_aged",
		Help: "Outstanding warkat older than the aging threshold at the last scan.",
	}, []string{"company", "direction"})
	registerer.MustRegister(runs, failures, duration, outstanding, aged)
	return &Metrics{runs: runs, failures: failures, duration: duration, outstanding: outstanding, aged: aged}
}
