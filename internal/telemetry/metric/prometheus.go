package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "picoretain"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultEmpty = "empty"
)

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	// Snapshot metrics
	SnapshotsTotal   *prometheus.CounterVec
	SnapshotDuration prometheus.Histogram

	// Restore metrics
	RestoresTotal   *prometheus.CounterVec
	RestoreDuration prometheus.Histogram
	DroppedEntities *prometheus.CounterVec

	// Region metrics
	RegionBytes    *prometheus.GaugeVec
	RegionEntities *prometheus.GaugeVec
	RegionCapacity *prometheus.GaugeVec

	// Phase is the numeric orchestrator phase.
	Phase prometheus.Gauge
}

// NewRegistry creates a registry with every application metric and the Go
// runtime collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		SnapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "total",
			Help:      "Snapshot attempts by result",
		}, []string{"result"}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "duration_seconds",
			Help:      "Time spent encoding and syncing a snapshot",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		RestoresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "restore",
			Name:      "total",
			Help:      "Restore attempts by result",
		}, []string{"result"}),
		RestoreDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "restore",
			Name:      "duration_seconds",
			Help:      "Time spent decoding and binding a restored session",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		DroppedEntities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "restore",
			Name:      "dropped_entities_total",
			Help:      "Entities dropped on restore because a callback or codec was not registered",
		}, []string{"region"}),
		RegionBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "region",
			Name:      "used_bytes",
			Help:      "Body bytes written to each region by the last snapshot",
		}, []string{"region"}),
		RegionEntities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "region",
			Name:      "entities",
			Help:      "Entities written to each region by the last snapshot",
		}, []string{"region"}),
		RegionCapacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "region",
			Name:      "capacity_bytes",
			Help:      "Configured size of each region",
		}, []string{"region"}),
		Phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase",
			Help:      "Snapshot orchestrator phase",
		}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.SnapshotsTotal,
		r.SnapshotDuration,
		r.RestoresTotal,
		r.RestoreDuration,
		r.DroppedEntities,
		r.RegionBytes,
		r.RegionEntities,
		r.RegionCapacity,
		r.Phase,
	)
	return r
}

// Registerer exposes the underlying registry for components that register
// their own collectors.
func (r *Registry) Registerer() prometheus.Registerer { return r.reg }

// Gatherer exposes the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
