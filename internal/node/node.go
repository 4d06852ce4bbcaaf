// Package node wires the nine components into one running process: the
// embedded KV store, the config state machine and its Raft FSM, the
// listener engine and subscription registry, the peer transport, the peer
// manager and naming router, the Raft adapter, and the heartbeat scheduler
// that drives their periodic ticks.
package node

import (
	"fmt"
	"time"

	"github.com/nexuscore/nexuscore/internal/config"
	"github.com/nexuscore/nexuscore/internal/configstore"
	"github.com/nexuscore/nexuscore/internal/coreerrors"
	"github.com/nexuscore/nexuscore/internal/heartbeat"
	"github.com/nexuscore/nexuscore/internal/listener"
	"github.com/nexuscore/nexuscore/internal/naming"
	"github.com/nexuscore/nexuscore/internal/peermgr"
	"github.com/nexuscore/nexuscore/internal/raftcluster"
	"github.com/nexuscore/nexuscore/internal/subscribe"
	"github.com/nexuscore/nexuscore/internal/transport"
	"github.com/nexuscore/nexuscore/pkg/api"
	"github.com/nexuscore/nexuscore/pkg/kvstore"
	"github.com/nexuscore/nexuscore/pkg/log"
	"github.com/nexuscore/nexuscore/pkg/metrics"
	"github.com/nexuscore/nexuscore/pkg/types"
)

// Node owns every component of one cluster member's process.
type Node struct {
	cfg config.Node

	kv     *kvstore.BoltStore
	store  *configstore.ConfigStore
	engine *listener.Engine
	subs   *subscribe.Registry
	pool   *transport.Pool
	ln     *transport.Listener
	peers  *peermgr.Manager
	names  *naming.Router
	raft   *raftcluster.Adapter
	sched  *heartbeat.Scheduler
	health *api.HealthServer
}

// New constructs every component and wires their interdependencies, but
// starts nothing: call Start to bring the process up.
func New(cfg config.Node) (*Node, error) {
	kv, err := kvstore.NewBoltStore(cfg.Raft.DataDir)
	if err != nil {
		metrics.RegisterComponent("kvstore", false, err.Error())
		return nil, fmt.Errorf("open kv store: %w", err)
	}
	metrics.RegisterComponent("kvstore", true, "")

	store, err := configstore.New(kv)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("build config store: %w", err)
	}

	// The Listener Engine and Subscription Registry both need to read the
	// store they are about to register against, so they are built after
	// it and wired in with AddNotifier rather than threaded through
	// ConfigStore's constructor.
	engine := listener.New(store)
	subs := subscribe.New(logOnlyNotifier{})
	store.AddNotifier(engine)
	store.AddNotifier(subs)

	pool := transport.NewPool()
	ln := transport.NewListener()

	// peermgr.Manager and naming.Router each need a reference to the other
	// (the Manager's cascade invalidation calls into the Router; the Router
	// hashes against the Manager's valid-node ordering), so the Manager is
	// built first with no purger and wired in once the Router exists.
	peers := peermgr.New(cfg.Raft.NodeID, pool, nil)
	names := naming.New(cfg.Raft.NodeID, peers, pool)
	peers.SetPurger(names)
	names.RegisterHandlers(ln)

	// Raft membership is re-synced wholesale from raft.GetConfiguration()
	// on every heartbeat tick via Adapter.RefreshMetrics -> UpdateMembership,
	// so the FSM's onNodeAddr hook has nothing additional to feed the Peer
	// Manager and is left nil.
	fsm := configstore.NewFSM(store, nil)

	raftAdapter, err := raftcluster.New(cfg.Raft, fsm, pool, ln, peers)
	if err != nil {
		metrics.RegisterComponent("raft", false, err.Error())
		_ = kv.Close()
		return nil, fmt.Errorf("build raft adapter: %w", err)
	}
	metrics.RegisterComponent("raft", true, "")
	raftAdapter.SetPeerToucher(peers)

	health := api.NewHealthServer(raftAdapter)
	sched := heartbeat.New(raftAdapter, engine, peers)

	return &Node{
		cfg:    cfg,
		kv:     kv,
		store:  store,
		engine: engine,
		subs:   subs,
		pool:   pool,
		ln:     ln,
		peers:  peers,
		names:  names,
		raft:   raftAdapter,
		sched:  sched,
		health: health,
	}, nil
}

// Start opens the peer listener, the metrics/health HTTP endpoint, and the
// heartbeat scheduler.
func (n *Node) Start() error {
	if err := n.ln.Serve(n.cfg.NamingBindAddr); err != nil {
		return fmt.Errorf("start peer listener: %w", err)
	}
	go func() {
		if err := n.health.Start(n.cfg.MetricsAddr); err != nil {
			log.Warn(fmt.Sprintf("node: health server stopped: %v", err))
		}
	}()
	n.sched.Start()
	return nil
}

// Stop halts the heartbeat scheduler, Raft, the peer listener, and closes
// the underlying KV store.
func (n *Node) Stop() error {
	n.sched.Stop()
	if err := n.raft.Shutdown(); err != nil {
		log.Warn(fmt.Sprintf("node: raft shutdown error: %v", err))
	}
	metrics.UpdateComponent("raft", false, "shut down")
	_ = n.ln.Close()
	err := n.kv.Close()
	metrics.UpdateComponent("kvstore", false, "shut down")
	return err
}

// SetConfig proposes a config write through Raft, leader-only. Unlike
// RemoveConfig, this cannot use Adapter.Propose's generic forward-once path:
// history_id must be leader-generated (section 9), and a follower has no way
// to fill that field before forwarding. A follower instead rejects
// immediately with a NotLeaderError so the caller redirects to the leader.
func (n *Node) SetConfig(key types.ConfigKey, content string) (types.ApplyResult, error) {
	if !n.raft.IsLeader() {
		return types.ApplyResult{}, &coreerrors.NotLeaderError{LeaderAddr: n.raft.LeaderAddr()}
	}

	histID, err := n.store.NextHistoryID()
	if err != nil {
		return types.ApplyResult{}, err
	}
	payload := types.ConfigAddPayload{
		Key:       key,
		Content:   content,
		MD5:       configstore.HashContent(content),
		HistoryID: histID,
	}
	return n.raft.Propose(types.OpConfigAdd, payload)
}

// RemoveConfig proposes a config delete through Raft. A follower gets the
// same forward-then-NotLeaderError treatment as Propose itself, since the
// remove payload needs no leader-assigned sequence number.
func (n *Node) RemoveConfig(key types.ConfigKey) (types.ApplyResult, error) {
	return n.raft.Propose(types.OpConfigRemove, types.ConfigRemovePayload{Key: key})
}

// Submit is the long-poll entry point, delegated straight to the listener
// engine.
func (n *Node) Submit(items map[types.ConfigKey]string, deadline time.Time, sink listener.ResultSink) {
	n.engine.Submit(items, deadline, sink)
}

// Store exposes the read-only config cache for query/get operations.
func (n *Node) Store() *configstore.ConfigStore { return n.store }

// Naming exposes the naming router for register/deregister operations.
func (n *Node) Naming() *naming.Router { return n.names }

// Subscriptions exposes the subscription registry.
func (n *Node) Subscriptions() *subscribe.Registry { return n.subs }

// IsLeader reports whether this node currently holds Raft leadership.
func (n *Node) IsLeader() bool { return n.raft.IsLeader() }
