package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry      *prom.Registry
	stageDuration *prom.HistogramVec
	buildDuration prom.Histogram
	buildOutcome  *prom.CounterVec
	lockResults   *prom.CounterVec
	queueRejected prom.Counter
	queueDepth    prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them on reg
// (a fresh registry when reg is nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "verticalbuilder",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "verticalbuilder",
			Name:      "build_duration_seconds",
			Help:      "Total build duration from queued to final receipt",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "verticalbuilder",
			Name:      "build_outcomes_total",
			Help:      "Builds by final receipt status",
		}, []string{"status"}),
		lockResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "verticalbuilder",
			Name:      "lock_acquire_total",
			Help:      "Lock acquisition attempts by result",
		}, []string{"result"}),
		queueRejected: prom.NewCounter(prom.CounterOpts{
			Namespace: "verticalbuilder",
			Name:      "queue_rejected_total",
			Help:      "Jobs rejected at intake because the queue was full",
		}),
		queueDepth: prom.NewGauge(prom.GaugeOpts{
			Namespace: "verticalbuilder",
			Name:      "queue_depth",
			Help:      "Jobs waiting in the work queue",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.buildOutcome, pr.lockResults, pr.queueRejected, pr.queueDepth)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(status string) {
	p.buildOutcome.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncLockResult(result string) {
	p.lockResults.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) IncQueueRejected() { p.queueRejected.Inc() }

func (p *PrometheusRecorder) SetQueueDepth(n int) { p.queueDepth.Set(float64(n)) }

// Handler exposes the registry for scraping.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
