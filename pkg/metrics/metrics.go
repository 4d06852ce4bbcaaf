package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Config store metrics
	ConfigEntriesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexuscore_config_entries_total",
			Help: "Total number of config entries held in the cache",
		},
	)

	ConfigHistoryTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexuscore_config_history_total",
			Help: "Total number of config history records persisted",
		},
	)

	ConfigApplyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexuscore_config_apply_total",
			Help: "Total number of config FSM applies by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	// Listener engine metrics
	ListenerWaitersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexuscore_listener_waiters_active",
			Help: "Number of long-poll waiters currently parked",
		},
	)

	ListenerSweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nexuscore_listener_sweep_duration_seconds",
			Help:    "Time taken to sweep expired listener waiters",
			Buckets: prometheus.DefBuckets,
		},
	)

	ListenerNotifyTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nexuscore_listener_notify_total",
			Help: "Total number of waiter resolutions not made by the timeout sweep (change notification, or immediate resolution at submit)",
		},
	)

	ListenerTimeoutTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nexuscore_listener_timeout_total",
			Help: "Total number of waiters resolved empty by the sweep timer",
		},
	)

	// Subscription registry metrics
	SubscriptionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexuscore_subscriptions_active",
			Help: "Number of active client subscriptions",
		},
	)

	// Raft adapter metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexuscore_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexuscore_raft_peers_total",
			Help: "Total number of Raft peers in the cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexuscore_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexuscore_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nexuscore_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RaftCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nexuscore_raft_commit_duration_seconds",
			Help:    "Time taken to commit a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RaftNotLeaderTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nexuscore_raft_not_leader_total",
			Help: "Total number of writes rejected and forwarded because this node was not leader",
		},
	)

	// Peer manager / naming metrics
	PeerNodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nexuscore_peer_nodes_total",
			Help: "Total number of known peer nodes by validity state",
		},
		[]string{"state"},
	)

	PeerPingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nexuscore_peer_ping_duration_seconds",
			Help:    "Time taken to fan out a liveness ping to peers",
			Buckets: prometheus.DefBuckets,
		},
	)

	PeerCascadeInvalidateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nexuscore_peer_cascade_invalidate_total",
			Help: "Total number of peer invalid transitions that triggered a naming client-set purge",
		},
	)

	NamingInstancesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexuscore_naming_instances_total",
			Help: "Total number of registered naming instances",
		},
	)

	NamingRouteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nexuscore_naming_route_duration_seconds",
			Help:    "Time taken to hash-route a naming write, by outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// Peer RPC sender pool metrics
	TransportQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nexuscore_transport_queue_depth",
			Help: "Current depth of the per-peer send queue",
		},
		[]string{"peer_id"},
	)

	TransportSendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexuscore_transport_send_total",
			Help: "Total number of peer RPC frames sent by type and outcome",
		},
		[]string{"type_tag", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		ConfigEntriesTotal,
		ConfigHistoryTotal,
		ConfigApplyTotal,
		ListenerWaitersActive,
		ListenerSweepDuration,
		ListenerNotifyTotal,
		ListenerTimeoutTotal,
		SubscriptionsActive,
		RaftLeader,
		RaftPeers,
		RaftLogIndex,
		RaftAppliedIndex,
		RaftApplyDuration,
		RaftCommitDuration,
		RaftNotLeaderTotal,
		PeerNodesTotal,
		PeerPingDuration,
		PeerCascadeInvalidateTotal,
		NamingInstancesTotal,
		NamingRouteDuration,
		TransportQueueDepth,
		TransportSendTotal,
	)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
