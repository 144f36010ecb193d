package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alimatrix"

// Metrics groups the application's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	steps       *prometheus.CounterVec
	saveRetries prometheus.Counter
	fallbacks   *prometheus.CounterVec
	submissions *prometheus.CounterVec
	submitTime  prometheus.Histogram
	swept       *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWith(reg, reg)
}

// NewWith registers the collectors on reg and serves g.
func NewWith(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: g,
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wizard_steps_total",
			Help:      "Wizard step submissions by step and result.",
		}, []string{"step", "result"}),
		saveRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_save_retries_total",
			Help:      "Draft save attempts beyond the first.",
		}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_fallback_saves_total",
			Help:      "Simplified draft saves after retries ran out.",
		}, []string{"result"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submission pipeline outcomes.",
		}, []string{"outcome"}),
		submitTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_seconds",
			Help:      "Time spent in the submission pipeline.",
			Buckets:   prometheus.DefBuckets,
		}),
		swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_entries_total",
			Help:      "Entries removed by background sweeps.",
		}, []string{"store"}),
	}
	reg.MustRegister(m.steps, m.saveRetries, m.fallbacks, m.submissions, m.submitTime, m.swept)
	return m
}

func (m *Metrics) Step(step, result string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(step, result).Inc()
}

func (m *Metrics) SaveRetry() {
	if m == nil {
		return
	}
	m.saveRetries.Inc()
}

func (m *Metrics) Fallback(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.fallbacks.WithLabelValues(result).Inc()
}

func (m *Metrics) Submission(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
	m.submitTime.Observe(seconds)
}

func (m *Metrics) Swept(store string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.WithLabelValues(store).Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
