/*
Package metrics provides Prometheus metrics collection and exposition for nexuscore.

The metrics package defines and registers all nexuscore metrics using the Prometheus
client library, providing observability into cluster health, resource utilization,
operation latency, and system performance. Metrics are exposed via HTTP endpoint
for scraping by Prometheus servers.

# Architecture

nexuscore's metrics system follows Prometheus best practices with comprehensive
instrumentation across all components:

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (node count)         │          │
	│  │  Counter: Monotonic increases (requests)    │          │
	│  │  Histogram: Distributions (latency)         │          │
	│  │  Summary: Quantiles (percentiles)           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Config: Entries, history, apply outcomes   │          │
	│  │  Listener: Waiters, sweep latency, notify   │          │
	│  │  Subscription: Active client subscriptions  │          │
	│  │  Raft: Leader status, log index, peers      │          │
	│  │  Peer: Node validity, ping latency, cascade │          │
	│  │  Naming: Instances, route latency           │          │
	│  │  Transport: Queue depth, send outcomes      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Prometheus Server                   │          │
	│  │  - Scrapes /metrics every 15s               │          │
	│  │  - Stores time series data                  │          │
	│  │  - Provides PromQL query interface          │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Metric Registry:
  - Global Prometheus DefaultRegistry
  - All metrics registered at package init
  - Automatic collection of Go runtime metrics
  - Thread-safe for concurrent updates

Gauge Metrics:
  - Instant value that can go up or down
  - Examples: config entries, listener waiters, Raft leader status
  - Operations: Set, Inc, Dec, Add, Sub

Counter Metrics:
  - Monotonically increasing value
  - Examples: config applies, listener timeouts, peer cascade invalidations
  - Operations: Inc, Add (cannot decrease)

Histogram Metrics:
  - Distribution of observed values
  - Buckets for latency percentiles (p50, p95, p99)
  - Examples: Raft apply duration, naming route duration
  - Includes: sum, count, buckets

Timer Helper:
  - Convenience wrapper for timing operations
  - Start timer, observe duration to histogram
  - Supports label values for histogram vectors

# Metrics Catalog

Config Store Metrics:

nexuscore_config_entries_total:
  - Type: Gauge
  - Description: Total number of config entries held in the cache
  - Example: nexuscore_config_entries_total 482

nexuscore_config_history_total:
  - Type: Gauge
  - Description: Total number of config history records persisted
  - Example: nexuscore_config_history_total 9301

nexuscore_config_apply_total{op, outcome}:
  - Type: Counter
  - Description: Total config FSM applies by operation and outcome
  - Labels: op ("set", "delete"), outcome ("applied", "no_change")
  - Example: nexuscore_config_apply_total{op="set",outcome="applied"} 120

Listener Engine Metrics:

nexuscore_listener_waiters_active:
  - Type: Gauge
  - Description: Number of long-poll waiters currently parked
  - Example: nexuscore_listener_waiters_active 37

nexuscore_listener_sweep_duration_seconds:
  - Type: Histogram
  - Description: Time taken to sweep expired listener waiters

nexuscore_listener_notify_total:
  - Type: Counter
  - Description: Total waiter resolutions not made by the timeout sweep (change notification, or immediate resolution at submit)

nexuscore_listener_timeout_total:
  - Type: Counter
  - Description: Total waiters resolved empty by the sweep timer

Subscription Registry Metrics:

nexuscore_subscriptions_active:
  - Type: Gauge
  - Description: Number of active client subscriptions

Raft Metrics:

nexuscore_raft_is_leader:
  - Type: Gauge
  - Description: Whether this node is Raft leader (1=leader, 0=follower)
  - Example: nexuscore_raft_is_leader 1

nexuscore_raft_peers_total:
  - Type: Gauge
  - Description: Total Raft peers in cluster

nexuscore_raft_log_index:
  - Type: Gauge
  - Description: Current Raft log index

nexuscore_raft_applied_index:
  - Type: Gauge
  - Description: Last applied Raft log index

nexuscore_raft_apply_duration_seconds:
  - Type: Histogram
  - Description: Time to apply a Raft log entry

nexuscore_raft_commit_duration_seconds:
  - Type: Histogram
  - Description: Time to commit a Raft log entry

nexuscore_raft_not_leader_total:
  - Type: Counter
  - Description: Total writes rejected and forwarded because this node was not leader

Peer Manager / Naming Metrics:

nexuscore_peer_nodes_total{state}:
  - Type: Gauge
  - Description: Total known peer nodes by validity state
  - Labels: state ("valid", "invalid")

nexuscore_peer_ping_duration_seconds:
  - Type: Histogram
  - Description: Time taken to fan out a liveness ping to peers

nexuscore_peer_cascade_invalidate_total:
  - Type: Counter
  - Description: Total peer invalid transitions that triggered a naming client-set purge

nexuscore_naming_instances_total:
  - Type: Gauge
  - Description: Total number of registered naming instances

nexuscore_naming_route_duration_seconds{outcome}:
  - Type: Histogram
  - Description: Time taken to hash-route a naming write, by outcome
  - Labels: outcome

Transport Metrics:

nexuscore_transport_queue_depth{peer_id}:
  - Type: Gauge
  - Description: Current depth of the per-peer send queue
  - Labels: peer_id

nexuscore_transport_send_total{type_tag, outcome}:
  - Type: Counter
  - Description: Total peer RPC frames sent by type and outcome
  - Labels: type_tag, outcome

# Usage

Updating Gauge Metrics:

	import "github.com/nexuscore/nexuscore/pkg/metrics"

	// Set absolute value
	metrics.ConfigEntriesTotal.Set(482)

	// Increment/decrement
	metrics.ListenerWaitersActive.Inc()
	metrics.ListenerWaitersActive.Dec()

Updating Counter Metrics:

	// Increment by 1
	metrics.ListenerNotifyTotal.Inc()

	// Add arbitrary value
	metrics.ConfigApplyTotal.WithLabelValues("set", "applied").Add(1)

Recording Histogram Observations:

	// Direct observation
	metrics.PeerPingDuration.Observe(0.125) // 125ms

	// Using Timer helper
	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.RaftApplyDuration)

Using Timer with Labels:

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDurationVec(metrics.NamingRouteDuration, "routed")

Complete Example:

	package main

	import (
		"net/http"
		"github.com/nexuscore/nexuscore/pkg/metrics"
	)

	func main() {
		// Update config store metrics
		metrics.ConfigEntriesTotal.Set(482)
		metrics.PeerNodesTotal.WithLabelValues("valid").Set(3)

		// Time an operation
		timer := metrics.NewTimer()
		applyConfig()
		timer.ObserveDuration(metrics.RaftApplyDuration)

		// Expose metrics endpoint
		http.Handle("/metrics", metrics.Handler())
		http.ListenAndServe(":9090", nil)
	}

	func applyConfig() {
		// Config apply logic
	}

# Integration Points

This package integrates with:

  - internal/configstore: Updates config entry/history/apply metrics
  - internal/listener: Reports waiter counts and sweep latency
  - internal/subscribe: Reports active subscription count
  - internal/raftcluster: Updates leader status, log indices, apply duration
  - internal/peermgr: Reports peer validity and cascade invalidations
  - internal/naming: Reports instance counts and route duration
  - internal/transport: Reports send queue depth and outcomes
  - Prometheus: Scrapes /metrics endpoint

# Design Patterns

Package Init Registration:
  - All metrics registered in init() function
  - MustRegister panics on duplicate registration
  - Ensures metrics available before main()
  - No runtime registration needed

Label Discipline:
  - Use WithLabelValues for cardinality-bounded labels
  - Avoid high-cardinality labels (IDs, timestamps)
  - Document label values in metric description
  - Keep label count low (< 5 per metric)

Timer Pattern:
  - Create timer at operation start
  - Defer or explicitly call ObserveDuration
  - Automatically calculates elapsed time
  - Supports both simple and vector histograms

Global Metrics:
  - Package-level variables for all metrics
  - Accessible from any nexuscore package
  - Thread-safe concurrent updates
  - No initialization required by callers

# Performance Characteristics

Metric Update Overhead:
  - Gauge set/inc: ~50ns per operation
  - Counter inc: ~50ns per operation
  - Histogram observe: ~200ns per operation
  - Labels: +100ns per label value
  - Negligible impact on hot path

Memory Usage:
  - Per metric: ~1KB baseline
  - Per label combination: ~100 bytes
  - Histogram buckets: ~50 bytes each
  - Total: ~1-5MB for typical nexuscore cluster

Scrape Performance:
  - Metrics gathering: ~1-5ms for full scrape
  - HTTP response: ~10ms for typical metric set
  - Recommendation: Scrape interval ≥ 15s
  - Concurrent scrapes: Safe (read-only)

Cardinality Management:
  - Low cardinality: role, status, state (< 10 values)
  - Medium cardinality: method, host (< 100 values)
  - Avoid: task IDs, timestamps (unbounded)
  - Best practice: Aggregate high-cardinality in logs

# Troubleshooting

Common Issues:

Missing Metrics:
  - Symptom: Metric not appearing in /metrics output
  - Check: Metric registered in init() function
  - Check: MustRegister called (panics if duplicate)
  - Solution: Verify metric variable is exported

High Cardinality:
  - Symptom: Prometheus memory usage grows
  - Cause: Using IDs or unbounded values as labels
  - Check: Label cardinality (count unique combinations)
  - Solution: Remove high-cardinality labels, aggregate differently

Histogram Bucket Mismatch:
  - Symptom: No data in desired percentiles
  - Cause: Buckets don't cover observed value range
  - Check: Histogram sum / count for average
  - Solution: Customize buckets for value range

Stale Metrics:
  - Symptom: Metrics not updating
  - Cause: Code not calling metric update methods
  - Check: Add logging around metric updates
  - Solution: Instrument code paths correctly

# Monitoring

Prometheus Queries (PromQL):

Config Store Health:
  - Total entries: nexuscore_config_entries_total
  - Apply rate: rate(nexuscore_config_apply_total[1m])
  - No-op write ratio: rate(nexuscore_config_apply_total{outcome="no_change"}[5m])

Listener Performance:
  - Active waiters: nexuscore_listener_waiters_active
  - Timeout ratio: rate(nexuscore_listener_timeout_total[5m]) / rate(nexuscore_listener_notify_total[5m])
  - p95 sweep latency: histogram_quantile(0.95, nexuscore_listener_sweep_duration_seconds_bucket)

Raft Health:
  - Has leader: max(nexuscore_raft_is_leader) > 0
  - Leader changes: changes(nexuscore_raft_is_leader[10m])
  - Log lag: nexuscore_raft_log_index - nexuscore_raft_applied_index
  - Peer count: nexuscore_raft_peers_total
  - Forwarded-not-leader rate: rate(nexuscore_raft_not_leader_total[1m])

Naming Cluster Health:
  - Valid peers: nexuscore_peer_nodes_total{state="valid"}
  - Invalid peers: nexuscore_peer_nodes_total{state="invalid"}
  - Cascade invalidation rate: rate(nexuscore_peer_cascade_invalidate_total[5m])
  - p95 route latency: histogram_quantile(0.95, nexuscore_naming_route_duration_seconds_bucket)

# Alerting Rules

Recommended Prometheus alerts:

No Raft Leader:
  - Alert: max(nexuscore_raft_is_leader) == 0
  - Description: Cluster has no Raft leader
  - Action: Check peer connectivity, quorum status

Frequent Leader Changes:
  - Alert: changes(nexuscore_raft_is_leader[10m]) > 3
  - Description: Leader changed more than 3 times in 10 minutes
  - Action: Check network latency between nodes

Peer Cascade Invalidation Spike:
  - Alert: rate(nexuscore_peer_cascade_invalidate_total[5m]) > 0
  - Description: One or more peers went invalid and their clients were purged
  - Action: Check the affected peer's liveness and network path

High Listener Timeout Ratio:
  - Alert: rate(nexuscore_listener_timeout_total[5m]) > rate(nexuscore_listener_notify_total[5m])
  - Description: More waiters are timing out than being resolved by change notifications
  - Action: Check config change rate against expected long-poll deadlines

# Grafana Dashboards

Recommended dashboard panels:

Config Store Overview:
  - Gauge: Total config entries
  - Gauge: Total history records
  - Time series: Apply rate by operation and outcome

Listener Performance:
  - Time series: Active waiters
  - Time series: Notify vs. timeout rate
  - Heatmap: Sweep latency distribution

Raft Health:
  - Single stat: Leader status (yes/no)
  - Time series: Log index and applied index
  - Single stat: Peer count
  - Time series: Leader changes

Naming Cluster Health:
  - Time series: Valid vs. invalid peer count
  - Time series: Cascade invalidation rate
  - Heatmap: Route latency distribution

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
  - PromQL tutorial: https://prometheus.io/docs/prometheus/latest/querying/basics/
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
