package arena

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports arena statistics as Prometheus gauges. The source is
// sampled on every scrape, so it must be safe to call from the scraping
// goroutine: use a SafeArena or another synchronized StatsSource.
type Collector struct {
	source StatsSource

	usedBytes   *prometheus.Desc
	capacity    *prometheus.Desc
	chunks      *prometheus.Desc
	utilization *prometheus.Desc
}

// NewCollector returns a Collector for source. constLabels are attached to
// every metric, typically to tell several arenas apart.
func NewCollector(source StatsSource, constLabels prometheus.Labels) *Collector {
	return &Collector{
		source: source,
		usedBytes: prometheus.NewDesc(
			"arena_used_bytes",
			"Bytes bumped in the arena, alignment padding included.",
			nil, constLabels),
		capacity: prometheus.NewDesc(
			"arena_capacity_bytes",
			"Usable capacity of all chunks held by the arena.",
			nil, constLabels),
		chunks: prometheus.NewDesc(
			"arena_chunks",
			"Number of chunks held by the arena.",
			nil, constLabels),
		utilization: prometheus.NewDesc(
			"arena_utilization_ratio",
			"Ratio of used bytes to capacity.",
			nil, constLabels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.usedBytes
	ch <- c.capacity
	ch <- c.chunks
	ch <- c.utilization
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.usedBytes, prometheus.GaugeValue, float64(s.UsedBytes))
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity))
	ch <- prometheus.MustNewConstMetric(c.chunks, prometheus.GaugeValue, float64(s.NumChunks))
	ch <- prometheus.MustNewConstMetric(c.utilization, prometheus.GaugeValue, s.Utilization)
}
