// Package metrics implements the daemon's internal Prometheus exporter: a pull-based collector computed fresh on every scrape from the
// live application services, rather than a write-through metric store.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/service"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/tier"
)

// allTiers is iterated to emit the one-hot tier gauge.
var allTiers = []tier.Tier{tier.Active, tier.Warm, tier.Cool, tier.Cold, tier.Dormant}

// IdleSource is the subset of idle.Machine the collector reads.
type IdleSource interface {
	CurrentTier() tier.Tier
	IdleDuration() time.Duration
}

// IngestCounters is the subset of ingest.Ingest the collector reads.
type IngestCounters interface {
	Counters() CountersView
}

// CountersView mirrors ingest.Counters without importing the ingest
// package's concrete type, keeping this collector's import surface to
// domain types plus small structural interfaces.
type CountersView struct {
	ErrorsTotal            int64
	WarningsTotal          int64
	LogsTotal              int64
	MetricsTotal           int64
	BroadcastFailuresTotal int64
}

// ServiceLister is the subset of supervisor.Supervisor the collector
// reads: a read-only snapshot, never triggering reconciliation itself
// (the scrape path must never mutate service state).
type ServiceLister interface {
	Snapshot() []ServiceStatusView
}

// ServiceStatusView is one supervised service's current status, as read
// by the collector.
type ServiceStatusView struct {
	ID       string
	Status   service.Status
	CPUPct   float64
	MemoryMB float64
}

// PeerCounter is the subset of broadcast.Broadcaster the collector reads.
type PeerCounter interface {
	PeerCount() int
}

// Collector implements prometheus.Collector, computing every metric at
// scrape time from the live subsystems rather than maintaining its own
// counters (the subsystems already own the canonical values).
type Collector struct {
	idle     IdleSource
	ingest   IngestCounters
	services ServiceLister
	peers    PeerCounter

	tierGauge      *prometheus.Desc
	idleSeconds    *prometheus.Desc
	serviceStatus  *prometheus.Desc
	serviceCPU     *prometheus.Desc
	serviceMemory  *prometheus.Desc
	logsTotal      *prometheus.Desc
	errorsTotal    *prometheus.Desc
	warningsTotal  *prometheus.Desc
	metricsTotal   *prometheus.Desc
	broadcastFails *prometheus.Desc
	peerCount      *prometheus.Desc
}

// New constructs a Collector. Register it with a prometheus.Registry (or
// prometheus.DefaultRegisterer) and expose it via promhttp.Handler.
//
// Params:
//   - idle: the idle machine read for tier/idle-duration gauges.
//   - ingest: the ingest service read for counters.
//   - services: the supervisor snapshot read for per-service gauges.
//   - peers: the broadcaster read for the connected-peer gauge.
//
// Returns:
//   - *Collector: the constructed collector.
func New(idle IdleSource, ingest IngestCounters, services ServiceLister, peers PeerCounter) *Collector {
	const ns = "mgmtd"
	return &Collector{
		idle:     idle,
		ingest:   ingest,
		services: services,
		peers:    peers,

		tierGauge:      prometheus.NewDesc(ns+"_idle_tier", "1 if the daemon currently occupies this energy tier, else 0.", []string{"tier"}, nil),
		idleSeconds:    prometheus.NewDesc(ns+"_idle_seconds", "Seconds since the last recorded activity.", nil, nil),
		serviceStatus:  prometheus.NewDesc(ns+"_service_status", "1 if the service is currently in this status, else 0.", []string{"service_id", "status"}, nil),
		serviceCPU:     prometheus.NewDesc(ns+"_service_cpu_percent", "Most recent CPU usage percent sample for the service.", []string{"service_id"}, nil),
		serviceMemory:  prometheus.NewDesc(ns+"_service_memory_mb", "Most recent RSS memory sample in MB for the service.", []string{"service_id"}, nil),
		logsTotal:      prometheus.NewDesc(ns+"_ingest_logs_total", "Total log entries ingested.", nil, nil),
		errorsTotal:    prometheus.NewDesc(ns+"_ingest_errors_total", "Total ERROR/CRITICAL log entries ingested.", nil, nil),
		warningsTotal:  prometheus.NewDesc(ns+"_ingest_warnings_total", "Total WARNING log entries ingested.", nil, nil),
		metricsTotal:   prometheus.NewDesc(ns+"_ingest_metrics_total", "Total metrics snapshots ingested.", nil, nil),
		broadcastFails: prometheus.NewDesc(ns+"_broadcast_failures_total", "Total WebSocket peer sends that failed.", nil, nil),
		peerCount:      prometheus.NewDesc(ns+"_ws_peers", "Number of currently connected WebSocket peers.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
//
// Params:
//   - ch: the channel every metric descriptor is sent to.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tierGauge
	ch <- c.idleSeconds
	ch <- c.serviceStatus
	ch <- c.serviceCPU
	ch <- c.serviceMemory
	ch <- c.logsTotal
	ch <- c.errorsTotal
	ch <- c.warningsTotal
	ch <- c.metricsTotal
	ch <- c.broadcastFails
	ch <- c.peerCount
}

// Collect implements prometheus.Collector.
//
// Params:
//   - ch: the channel every computed metric sample is sent to.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	current := c.idle.CurrentTier()
	for _, t := range allTiers {
		v := 0.0
		if t == current {
			v = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.tierGauge, prometheus.GaugeValue, v, t.String())
	}
	ch <- prometheus.MustNewConstMetric(c.idleSeconds, prometheus.GaugeValue, c.idle.IdleDuration().Seconds())

	for _, svc := range c.services.Snapshot() {
		for _, st := range []service.Status{service.StatusStopped, service.StatusStarting, service.StatusRunning, service.StatusError} {
			v := 0.0
			if st == svc.Status {
				v = 1.0
			}
			ch <- prometheus.MustNewConstMetric(c.serviceStatus, prometheus.GaugeValue, v, svc.ID, string(st))
		}
		ch <- prometheus.MustNewConstMetric(c.serviceCPU, prometheus.GaugeValue, svc.CPUPct, svc.ID)
		ch <- prometheus.MustNewConstMetric(c.serviceMemory, prometheus.GaugeValue, svc.MemoryMB, svc.ID)
	}

	counters := c.ingest.Counters()
	ch <- prometheus.MustNewConstMetric(c.logsTotal, prometheus.CounterValue, float64(counters.LogsTotal))
	ch <- prometheus.MustNewConstMetric(c.errorsTotal, prometheus.CounterValue, float64(counters.ErrorsTotal))
	ch <- prometheus.MustNewConstMetric(c.warningsTotal, prometheus.CounterValue, float64(counters.WarningsTotal))
	ch <- prometheus.MustNewConstMetric(c.metricsTotal, prometheus.CounterValue, float64(counters.MetricsTotal))
	ch <- prometheus.MustNewConstMetric(c.broadcastFails, prometheus.CounterValue, float64(counters.BroadcastFailuresTotal))

	ch <- prometheus.MustNewConstMetric(c.peerCount, prometheus.GaugeValue, float64(c.peers.PeerCount()))
}
