package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the top level scheduler metrics.
type Metrics struct {
	*runMetrics
}

func New() *Metrics {
	return &Metrics{
		runMetrics: newRunMetrics(),
	}
}

// Describe is necessary to implement the prometheus.Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.runMetrics.describe(ch)
}

// Collect is necessary to implement the prometheus.Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.runMetrics.collect(ch)
}
