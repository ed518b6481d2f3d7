package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	reg           *prom.Registry
	stageDuration *prom.HistogramVec
	runDuration   prom.Histogram
	runOutcome    *prom.CounterVec
	fetches       *prom.CounterVec
	rateLimited   prom.Counter
	nodeResults   *prom.CounterVec
	assetResults  *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docs2static",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual sync stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docs2static",
			Name:      "run_duration_seconds",
			Help:      "Total sync run duration",
			Buckets:   prom.DefBuckets,
		})
		pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docs2static",
			Name:      "run_outcomes_total",
			Help:      "Sync runs by final status",
		}, []string{"outcome"})
		pr.fetches = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docs2static",
			Name:      "fetches_total",
			Help:      "Remote fetches by source (cache or network)",
		}, []string{"source"})
		pr.rateLimited = prom.NewCounter(prom.CounterOpts{
			Namespace: "docs2static",
			Name:      "rate_limited_total",
			Help:      "Responses answered with HTTP 429",
		})
		pr.nodeResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docs2static",
			Name:      "documents_total",
			Help:      "Processed documents by result",
		}, []string{"result"})
		pr.assetResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docs2static",
			Name:      "assets_total",
			Help:      "Localized assets by result",
		}, []string{"result"})
		reg.MustRegister(pr.stageDuration, pr.runDuration, pr.runOutcome, pr.fetches, pr.rateLimited, pr.nodeResults, pr.assetResults)
	})
	return pr
}

// Registry returns the registry the metrics were registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncFetch(source string) {
	if p == nil || p.fetches == nil {
		return
	}
	p.fetches.WithLabelValues(source).Inc()
}

func (p *PrometheusRecorder) IncRateLimited() {
	if p == nil || p.rateLimited == nil {
		return
	}
	p.rateLimited.Inc()
}

func (p *PrometheusRecorder) IncNodeResult(result ResultLabel) {
	if p == nil || p.nodeResults == nil {
		return
	}
	p.nodeResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncAssetResult(success bool) {
	if p == nil || p.assetResults == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.assetResults.WithLabelValues(res).Inc()
}

// WriteTextfile writes the gathered metrics in the text exposition format,
// atomically replacing path.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.reg)
}
