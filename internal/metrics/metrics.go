// Package metrics holds the Prometheus collectors exposed by both the
// coordinator and shard processes. Registration happens once, at process
// start, via Coordinator() or Shard(); handlers and background workers
// just record against the package-level vars afterwards.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CoordinatorRequestsTotal counts every coordinator HTTP request by
	// method, route path and final status code.
	CoordinatorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_requests_total",
			Help: "Total coordinator HTTP requests by method, path and status.",
		},
		[]string{"method", "path", "status"},
	)

	// DispatchDuration measures how long a dispatch operation (write,
	// read, quorum read) takes end-to-end, including the upstream hop.
	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coordinator_dispatch_duration_seconds",
			Help:    "Dispatch operation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// QuorumReadsTotal counts quorum read outcomes.
	QuorumReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_quorum_reads_total",
			Help: "Quorum read outcomes: quorum_met, insufficient_replicas, quorum_unavailable.",
		},
		[]string{"outcome"},
	)

	// ShardRequestsTotal counts every shard HTTP request.
	ShardRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shard_requests_total",
			Help: "Total shard HTTP requests by method, path and status.",
		},
		[]string{"method", "path", "status"},
	)

	// WALOffset is the current high-water mark of the local WAL.
	WALOffset = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shard_wal_offset",
			Help: "Current WAL high-water mark (last durable offset).",
		},
	)

	// WALAppendsTotal counts WAL appends by operation (PUT/DELETE).
	WALAppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shard_wal_appends_total",
			Help: "Total WAL entries appended, by op.",
		},
		[]string{"op"},
	)

	// ReplicationLag is the follower's leader-offset-minus-local-watermark,
	// refreshed on every replication tick. Zero on a leader.
	ReplicationLag = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shard_replication_lag",
			Help: "Offsets the follower is behind its leader (0 on leaders).",
		},
	)

	// KeysTotal is the number of live (non-tombstoned) keys resident in memory.
	KeysTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shard_keys_total",
			Help: "Number of live keys currently held in memory.",
		},
	)
)

// Coordinator registers the collectors the coordinator process emits
// against reg. Pass prometheus.DefaultRegisterer so GET /metrics
// (served via promhttp.Handler, which reads the default registry) sees
// them.
func Coordinator(reg prometheus.Registerer) {
	reg.MustRegister(CoordinatorRequestsTotal, DispatchDuration, QuorumReadsTotal)
}

// Shard registers the collectors a shard process emits against reg.
func Shard(reg prometheus.Registerer) {
	reg.MustRegister(ShardRequestsTotal, WALOffset, WALAppendsTotal, ReplicationLag, KeysTotal)
}
