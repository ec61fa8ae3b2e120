package metric

import "github.com/prometheus/client_golang/prometheus"

// KeyCounter reports the current number of keys.
type KeyCounter interface {
	Len() int
}

// Collector exports the key space size at scrape time.
type Collector struct {
	src  KeyCounter
	desc *prometheus.Desc
}

// NewCollector creates a collector reading from src.
func NewCollector(src KeyCounter) *Collector {
	return &Collector{
		src: src,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "keys"),
			"Keys currently held, including expired keys not yet compacted.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	n := 0
	if c.src != nil {
		n = c.src.Len()
	}
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n))
}
