// Package prommetrics exports recordkv operation metrics to Prometheus.
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/recordkv"
)

var _ recordkv.MetricsCollector = (*Collector)(nil)

// Collector implements recordkv.MetricsCollector.
type Collector struct {
	opLatency *prometheus.HistogramVec
	records   *prometheus.CounterVec
}

// New creates a collector and registers its metrics with reg.
// namespace prefixes the metric names; it defaults to "recordkv".
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if namespace == "" {
		namespace = "recordkv"
	}
	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of adapter operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records processed by successful operations",
		}, []string{"op"}),
	}
	for _, col := range []prometheus.Collector{c.opLatency, c.records} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RecordSave implements recordkv.MetricsCollector.
func (c *Collector) RecordSave(records int, d time.Duration, err error) {
	c.observe("save", records, d, err)
}

// RecordFetch implements recordkv.MetricsCollector.
func (c *Collector) RecordFetch(records int, d time.Duration, err error) {
	c.observe("fetch", records, d, err)
}

// RecordDestroy implements recordkv.MetricsCollector.
func (c *Collector) RecordDestroy(records int, d time.Duration, err error) {
	c.observe("destroy", records, d, err)
}

func (c *Collector) observe(op string, records int, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.opLatency.WithLabelValues(op, status).Observe(d.Seconds())
	if err == nil {
		c.records.WithLabelValues(op).Add(float64(records))
	}
}
