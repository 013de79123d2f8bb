package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors updated by pipeline runs. A nil
// *Metrics records nothing.
type Metrics struct {
	Resolutions      *prometheus.CounterVec
	ResolveAttempts  prometheus.Histogram
	Downloads        *prometheus.CounterVec
	Analyses         *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
	EventsMerged     *prometheus.CounterVec
	Runs             *prometheus.CounterVec
	LastRun          *prometheus.GaugeVec
}

// NewMetrics creates the pipeline collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulletin_resolutions_total",
			Help: "Bulletin page resolutions by outcome.",
		}, []string{"result"}),
		ResolveAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bulletin_resolve_attempts",
			Help:    "Attempts spent resolving one bulletin page.",
			Buckets: []float64{1, 2, 3, 5, 8, 10},
		}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulletin_downloads_total",
			Help: "Bulletin downloads by outcome.",
		}, []string{"result"}),
		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulletin_analyses_total",
			Help: "Bulletin analyses by mode and outcome.",
		}, []string{"mode", "result"}),
		AnalysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bulletin_analysis_duration_seconds",
			Help:    "Time spent analyzing one bulletin.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"mode"}),
		EventsMerged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulletin_events_merged_total",
			Help: "Events merged into the persisted set.",
		}, []string{"kind"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulletin_runs_total",
			Help: "Pipeline runs by mode and status.",
		}, []string{"mode", "status"}),
		LastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bulletin_last_run_timestamp_seconds",
			Help: "Unix time of the last finished run.",
		}, []string{"mode"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Resolutions,
			m.ResolveAttempts,
			m.Downloads,
			m.Analyses,
			m.AnalysisDuration,
			m.EventsMerged,
			m.Runs,
			m.LastRun,
		)
	}
	return m
}

func (m *Metrics) observeResolution(resolved bool, attempts int) {
	if m == nil {
		return
	}
	result := "resolved"
	if !resolved {
		result = "unresolved"
	}
	m.Resolutions.WithLabelValues(result).Inc()
	m.ResolveAttempts.Observe(float64(attempts))
}

func (m *Metrics) observeDownloads(ok, failed int) {
	if m == nil {
		return
	}
	m.Downloads.WithLabelValues("ok").Add(float64(ok))
	m.Downloads.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) observeAnalysis(mode string, err error, took time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.Analyses.WithLabelValues(mode, result).Inc()
	m.AnalysisDuration.WithLabelValues(mode).Observe(took.Seconds())
}

func (m *Metrics) observeMerge(added, updated int) {
	if m == nil {
		return
	}
	m.EventsMerged.WithLabelValues("new").Add(float64(added))
	m.EventsMerged.WithLabelValues("updated").Add(float64(updated))
}

func (m *Metrics) observeRun(mode, status string, at time.Time) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(mode, status).Inc()
	m.LastRun.WithLabelValues(mode).Set(float64(at.Unix()))
}
