package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LiveStats provides the collector access to runtime state.
type LiveStats interface {
	SubscriberCount() int
}

// Connectivity reports whether an optional upstream is connected.
type Connectivity interface {
	IsConnected() bool
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	live LiveStats
	mqtt Connectivity

	sseSubscribers *prometheus.Desc
	mqttConnected  *prometheus.Desc
}

// NewCollector creates a collector. Either argument may be nil (reports 0).
func NewCollector(live LiveStats, mqtt Connectivity) *Collector {
	return &Collector{
		live: live,
		mqtt: mqtt,
		sseSubscribers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "sse_subscribers_active"),
			"Current number of live stream subscribers.",
			nil, nil,
		),
		mqttConnected: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "mqtt", "connected"),
			"1 if the MQTT ingest client is connected.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sseSubscribers
	ch <- c.mqttConnected
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	subs := 0.0
	if c.live != nil {
		subs = float64(c.live.SubscriberCount())
	}
	ch <- prometheus.MustNewConstMetric(c.sseSubscribers, prometheus.GaugeValue, subs)

	connected := 0.0
	if c.mqtt != nil && c.mqtt.IsConnected() {
		connected = 1
	}
	ch <- prometheus.MustNewConstMetric(c.mqttConnected, prometheus.GaugeValue, connected)
}
