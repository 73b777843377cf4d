package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/picoretain/internal/storage/region"
)

// RegionCollector reports the header status of every region at scrape time.
type RegionCollector struct {
	table *region.Table
	mem   func() []byte
	valid *prometheus.Desc
}

// NewRegionCollector creates a collector over the retained bytes returned
// by mem, laid out by table.
func NewRegionCollector(table *region.Table, mem func() []byte) *RegionCollector {
	return &RegionCollector{
		table: table,
		mem:   mem,
		valid: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "region", "valid"),
			"1 if the region header and checksum are valid",
			[]string{"region", "status"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *RegionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.valid
}

// Collect implements prometheus.Collector.
func (c *RegionCollector) Collect(ch chan<- prometheus.Metric) {
	mem := c.mem()
	for _, r := range c.table.Regions() {
		b, err := c.table.Slice(mem, r.Name)
		if err != nil {
			continue
		}
		st := region.Check(b)
		v := 0.0
		if st == region.StatusValid {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.valid, prometheus.GaugeValue, v, string(r.Name), st.String())
	}
}
