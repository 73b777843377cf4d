// Package metric provides Prometheus metrics for picoretain.
//
//   - prometheus.go: the metric registry and the /metrics handler
//   - collector.go: a scrape-time collector over the retained regions
//
// Metrics include snapshot and restore outcomes and durations, per-region
// usage and capacity, and dropped entities.
package metric
