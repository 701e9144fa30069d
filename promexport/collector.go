// Package promexport adapts a msgbus.Bus to a prometheus.Collector, so a
// process embedding the bus can expose its lane, reliability, and health
// metrics on a standard /metrics endpoint without the bus itself taking a
// dependency on any particular scrape protocol.
//
// Grounded on github.com/simeonmiteff/go-tcpinfo's
// pkg/exporter/exporter.go (part of the runZeroInc-sockstats retrieval):
// a custom prometheus.Collector that pulls live values from a live data
// source on every Collect call rather than mirroring them into
// prometheus-native metric types on every bus operation, the same
// pull-on-scrape shape used there for per-connection TCP_INFO counters.
package promexport

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/behrlich/msgbus"
	"github.com/behrlich/msgbus/internal/lane"
)

// ComponentLabels maps a component ID the Bus reports health/faults
// against to the label value a Collector should export it under. Callers
// that register additional producer/consumer IDs with the bus (outside
// the four lanes and the reliability/persist/offload components the Bus
// itself reports against) can extend this map to have them scraped too.
type ComponentLabels map[uint32]string

// DefaultComponentLabels returns the label set for the components the Bus
// itself always reports against: the four lanes plus the reliability,
// persist, and offload hooks.
func DefaultComponentLabels() ComponentLabels {
	labels := ComponentLabels{
		msgbus.ComponentReliability: "reliability",
		msgbus.ComponentPersist:     "persist",
		msgbus.ComponentOffload:     "offload",
	}
	for _, k := range lane.Kinds {
		labels[msgbus.LaneComponentID(k)] = "lane_" + k.String()
	}
	return labels
}

var (
	descBusOps = prometheus.NewDesc(
		"msgbus_ops_total", "Bus-wide operation counters.",
		[]string{"op"}, nil)
	descReliability = prometheus.NewDesc(
		"msgbus_reliability_total", "Reliability overlay counters.",
		[]string{"counter"}, nil)
	descReliabilityPending = prometheus.NewDesc(
		"msgbus_reliability_pending", "In-flight reliability table entries.",
		nil, nil)
	descReliabilityAckLatency = prometheus.NewDesc(
		"msgbus_reliability_ack_latency_us", "EWMA of reliability ACK latency, in microseconds.",
		nil, nil)
	descSystemHealth = prometheus.NewDesc(
		"msgbus_system_health", "Weighted system health aggregate in [0,1].",
		nil, nil)
	descComponentHealth = prometheus.NewDesc(
		"msgbus_component_health_score", "Per-component health score in [0,1].",
		[]string{"component"}, nil)
	descComponentHealthy = prometheus.NewDesc(
		"msgbus_component_healthy", "1 if the component is currently healthy, else 0.",
		[]string{"component"}, nil)
	descLaneMessages = prometheus.NewDesc(
		"msgbus_lane_messages", "Current occupied slot count (head-tail) per lane.",
		[]string{"lane"}, nil)
	descLaneTotalMessages = prometheus.NewDesc(
		"msgbus_lane_messages_total", "Total messages ever submitted to a lane.",
		[]string{"lane"}, nil)
	descLaneTotalBytes = prometheus.NewDesc(
		"msgbus_lane_bytes_total", "Total payload bytes ever submitted to a lane.",
		[]string{"lane"}, nil)
	descLaneAvgLatency = prometheus.NewDesc(
		"msgbus_lane_submit_latency_us", "EWMA of lane submit latency, in microseconds.",
		[]string{"lane"}, nil)
	descLaneMaxLatency = prometheus.NewDesc(
		"msgbus_lane_submit_max_latency_us", "Max observed lane submit latency, in microseconds.",
		[]string{"lane"}, nil)
	descLaneCongestion = prometheus.NewDesc(
		"msgbus_lane_congestion_events_total", "Count of lane submits exceeding 2x the lane's latency target.",
		[]string{"lane"}, nil)
)

// Collector implements prometheus.Collector over a live *msgbus.Bus. It
// holds no state of its own beyond the bus reference and the component
// label map; every Collect call reads fresh snapshots, matching the bus's
// own "no caching, snapshot on demand" style (Bus.GetMetrics,
// Lane.GetMetrics, Registry.GetStats all follow the same pull shape).
type Collector struct {
	bus       *msgbus.Bus
	component ComponentLabels
}

// NewCollector returns a Collector scraping bus, labeling ComponentHealth
// series with the given component map. Pass nil to use
// DefaultComponentLabels.
func NewCollector(bus *msgbus.Bus, components ComponentLabels) *Collector {
	if components == nil {
		components = DefaultComponentLabels()
	}
	return &Collector{bus: bus, component: components}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descBusOps
	ch <- descReliability
	ch <- descReliabilityPending
	ch <- descReliabilityAckLatency
	ch <- descSystemHealth
	ch <- descComponentHealth
	ch <- descComponentHealthy
	ch <- descLaneMessages
	ch <- descLaneTotalMessages
	ch <- descLaneTotalBytes
	ch <- descLaneAvgLatency
	ch <- descLaneMaxLatency
	ch <- descLaneCongestion
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.bus.GetMetrics()
	ch <- prometheus.MustNewConstMetric(descBusOps, prometheus.CounterValue, float64(snap.SubmitOps), "submit")
	ch <- prometheus.MustNewConstMetric(descBusOps, prometheus.CounterValue, float64(snap.SubmitErrors), "submit_error")
	ch <- prometheus.MustNewConstMetric(descBusOps, prometheus.CounterValue, float64(snap.DrainOps), "drain")
	ch <- prometheus.MustNewConstMetric(descBusOps, prometheus.CounterValue, float64(snap.DrainMisses), "drain_miss")
	ch <- prometheus.MustNewConstMetric(descBusOps, prometheus.CounterValue, float64(snap.FaultsReported), "fault_reported")
	ch <- prometheus.MustNewConstMetric(descBusOps, prometheus.CounterValue, float64(snap.FaultsRecovered), "fault_recovered")

	rel := c.bus.ReliabilityStats()
	ch <- prometheus.MustNewConstMetric(descReliability, prometheus.CounterValue, float64(rel.TotalMessages), "sent")
	ch <- prometheus.MustNewConstMetric(descReliability, prometheus.CounterValue, float64(rel.SuccessfulAcks), "acked")
	ch <- prometheus.MustNewConstMetric(descReliability, prometheus.CounterValue, float64(rel.FailedDeliveries), "failed")
	ch <- prometheus.MustNewConstMetric(descReliability, prometheus.CounterValue, float64(rel.Timeouts), "timed_out")
	ch <- prometheus.MustNewConstMetric(descReliability, prometheus.CounterValue, float64(rel.Retries), "retried")
	ch <- prometheus.MustNewConstMetric(descReliabilityPending, prometheus.GaugeValue, float64(rel.PendingCount))
	ch <- prometheus.MustNewConstMetric(descReliabilityAckLatency, prometheus.GaugeValue, rel.AckLatencyUs)

	ch <- prometheus.MustNewConstMetric(descSystemHealth, prometheus.GaugeValue, c.bus.GetSystemHealth())

	for id, label := range c.component {
		hs, ok := c.bus.ComponentHealth(id)
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(descComponentHealth, prometheus.GaugeValue, hs.HealthScore, label)
		healthy := 0.0
		if c.bus.IsComponentHealthy(id) {
			healthy = 1.0
		}
		ch <- prometheus.MustNewConstMetric(descComponentHealthy, prometheus.GaugeValue, healthy, label)
	}

	for _, k := range lane.Kinds {
		m := c.bus.LaneMetrics(k)
		label := k.String()
		ch <- prometheus.MustNewConstMetric(descLaneMessages, prometheus.GaugeValue, float64(m.MessageCount), label)
		ch <- prometheus.MustNewConstMetric(descLaneTotalMessages, prometheus.CounterValue, float64(m.TotalMessages), label)
		ch <- prometheus.MustNewConstMetric(descLaneTotalBytes, prometheus.CounterValue, float64(m.TotalBytes), label)
		ch <- prometheus.MustNewConstMetric(descLaneAvgLatency, prometheus.GaugeValue, m.AvgLatencyUs, label)
		ch <- prometheus.MustNewConstMetric(descLaneMaxLatency, prometheus.GaugeValue, m.MaxLatencyUs, label)
		ch <- prometheus.MustNewConstMetric(descLaneCongestion, prometheus.CounterValue, float64(m.CongestionEvents), label)
	}
}

var _ prometheus.Collector = (*Collector)(nil)
