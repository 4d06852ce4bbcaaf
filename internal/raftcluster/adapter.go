// Package raftcluster wraps the consensus library (C2): it bootstraps or
// joins a cluster, proposes commands on behalf of every other component,
// forwards a rejected follower write to the known leader, and dispatches
// inbound join/forward RPCs received over the peer transport.
package raftcluster

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"

	"github.com/nexuscore/nexuscore/internal/codec"
	"github.com/nexuscore/nexuscore/internal/configstore"
	"github.com/nexuscore/nexuscore/internal/coreerrors"
	"github.com/nexuscore/nexuscore/internal/transport"
	"github.com/nexuscore/nexuscore/pkg/log"
	"github.com/nexuscore/nexuscore/pkg/metrics"
	"github.com/nexuscore/nexuscore/pkg/types"
)

const (
	heartbeatTimeout   = 500 * time.Millisecond
	electionTimeout    = 1500 * time.Millisecond // raft randomizes in [x, 2x), matching the spec's [1500,3000]ms window
	leaderLeaseTimeout = 500 * time.Millisecond
	applyTimeout       = 5 * time.Second
	joinSettleDelay    = 500 * time.Millisecond
	snapshotRetain     = 2
)

// Config holds the five raft_* options the spec recognises as external
// configuration (section 6).
type Config struct {
	NodeID   string
	NodeAddr string
	AutoInit bool
	JoinAddr string
	DataDir  string
}

// MembershipObserver learns the authoritative (node_id, addr) set whenever
// it changes, the Peer Manager's input.
type MembershipObserver interface {
	UpdateMembership(members []types.NodeAddrPayload)
}

// PeerToucher refreshes a peer's liveness on any inbound message from it,
// the Peer Manager's active-node tick.
type PeerToucher interface {
	Touch(nodeID string)
}

// Adapter is the C2 actor.
type Adapter struct {
	cfg      Config
	raft     *raft.Raft
	fsm      *configstore.FSM
	pool     *transport.Pool
	listener *transport.Listener
	observer MembershipObserver
	toucher  PeerToucher
	logger   zerolog.Logger
}

// New wires up the raft.Raft instance (network transport riding the shared
// peer Listener, boltdb log/stable stores, file snapshot store) and
// registers the join/forward/ping handlers on ln. toucher may be nil until
// the Peer Manager exists; set it with SetPeerToucher once it does.
func New(cfg Config, fsm *configstore.FSM, pool *transport.Pool, ln *transport.Listener, observer MembershipObserver) (*Adapter, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)
	raftCfg.HeartbeatTimeout = heartbeatTimeout
	raftCfg.ElectionTimeout = electionTimeout
	raftCfg.LeaderLeaseTimeout = leaderLeaseTimeout

	stream := newStreamLayer(ln, raft.ServerAddress(cfg.NodeAddr))
	rtransport := raft.NewNetworkTransport(stream, 3, 10*time.Second, os.Stderr)

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, snapshotRetain, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("create raft log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("create raft stable store: %w", err)
	}

	hadState, err := raft.HasExistingState(logStore, stableStore, snapshotStore)
	if err != nil {
		return nil, fmt.Errorf("probe existing raft state: %w", err)
	}

	r, err := raft.NewRaft(raftCfg, fsm, logStore, stableStore, snapshotStore, rtransport)
	if err != nil {
		return nil, fmt.Errorf("create raft node: %w", err)
	}

	a := &Adapter{cfg: cfg, raft: r, fsm: fsm, pool: pool, listener: ln, observer: observer, logger: log.WithComponent("raftcluster")}
	ln.RegisterHandler(joinNodeTypeTag, a.handleJoinNode)
	ln.RegisterHandler(raftForwardTypeTag, a.handleRaftForward)
	ln.RegisterHandler(pingTypeTag, a.handlePing)

	if !hadState {
		if err := a.firstStart(); err != nil {
			return nil, err
		}
	} else {
		a.reproposeSingleMemberAddr()
	}

	return a, nil
}

// firstStart implements the two startup branches in section 4.7 for a node
// with an empty Raft log.
func (a *Adapter) firstStart() error {
	switch {
	case a.cfg.AutoInit:
		cfgFuture := a.raft.BootstrapCluster(raft.Configuration{
			Servers: []raft.Server{{ID: raft.ServerID(a.cfg.NodeID), Address: raft.ServerAddress(a.cfg.NodeAddr)}},
		})
		if err := cfgFuture.Error(); err != nil {
			return fmt.Errorf("bootstrap cluster: %w", err)
		}
		go a.proposeOwnAddrWhenLeader()
		return nil

	case a.cfg.JoinAddr != "":
		go a.joinExisting()
		return nil

	default:
		a.logger.Warn().Msg("node started with no existing state, raft_auto_init=false, and no raft_join_addr; it will not become part of any cluster until joined")
		return nil
	}
}

// proposeOwnAddrWhenLeader waits for this freshly bootstrapped single-member
// cluster to elect itself leader, then proposes its own NodeAddr. The FSM
// passes an applied NodeAddr only to its onNodeAddr hook; it is not kept in
// the config cache or in snapshots.
func (a *Adapter) proposeOwnAddrWhenLeader() {
	deadline := time.After(10 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if a.raft.State() == raft.Leader {
				_, err := a.Propose(types.OpNodeAddr, types.NodeAddrPayload{NodeID: a.cfg.NodeID, Addr: a.cfg.NodeAddr})
				if err != nil {
					a.logger.Warn().Err(err).Msg("failed to propose own node address")
				}
				return
			}
		case <-deadline:
			a.logger.Warn().Msg("timed out waiting to become leader of bootstrapped single-member cluster")
			return
		}
	}
}

// joinExisting implements the follower-side of a join: after a settle
// delay it asks cfg.JoinAddr's node to add it as a voter.
func (a *Adapter) joinExisting() {
	time.Sleep(joinSettleDelay)

	payload := types.NodeAddrPayload{NodeID: a.cfg.NodeID, Addr: a.cfg.NodeAddr}
	data, err := codec.EncodeCommand(types.OpNodeAddr, payload)
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed to encode join request")
		return
	}
	if err := sendOnce(a.cfg.JoinAddr, joinNodeTypeTag, data); err != nil {
		a.logger.Warn().Err(err).Str("join_addr", a.cfg.JoinAddr).Msg("join request failed")
	}
}

// reproposeSingleMemberAddr implements the third startup branch: a restart
// with existing state and a single-member configuration re-proposes the
// leader's own address, refreshing it after e.g. an IP change.
func (a *Adapter) reproposeSingleMemberAddr() {
	future := a.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return
	}
	servers := future.Configuration().Servers
	if len(servers) != 1 {
		return
	}
	go a.proposeOwnAddrWhenLeader()
}

// IsLeader reports whether this node currently holds Raft leadership.
func (a *Adapter) IsLeader() bool {
	return a.raft.State() == raft.Leader
}

// LeaderAddr returns the advertised address of the current leader, or "" if
// none is known.
func (a *Adapter) LeaderAddr() string {
	return string(a.raft.Leader())
}

// Propose submits a command to the Raft log. On a follower that knows the
// leader it performs one best-effort forward of the encoded command to the
// leader over a one-off connection (sendOnce), not through the peer RPC
// sender pool, and then returns a NotLeaderError whatever the forward's
// outcome.
func (a *Adapter) Propose(op types.RaftCommandOp, payload interface{}) (types.ApplyResult, error) {
	data, err := codec.EncodeCommand(op, payload)
	if err != nil {
		return types.ApplyResult{}, err
	}

	if a.raft.State() != raft.Leader {
		metrics.RaftNotLeaderTotal.Inc()
		leaderAddr := a.LeaderAddr()
		if leaderAddr != "" {
			if err := sendOnce(leaderAddr, raftForwardTypeTag, data); err != nil {
				a.logger.Warn().Err(err).Str("leader_addr", leaderAddr).Msg("forward to leader failed")
			}
		}
		return types.ApplyResult{}, &coreerrors.NotLeaderError{LeaderAddr: leaderAddr}
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RaftApplyDuration)

	future := a.raft.Apply(data, applyTimeout)
	if err := future.Error(); err != nil {
		return types.ApplyResult{}, fmt.Errorf("%w: %v", coreerrors.ErrConsensus, err)
	}

	resp, _ := future.Response().(*types.ApplyResult)
	if resp == nil {
		return types.ApplyResult{Changed: true}, nil
	}
	return *resp, resp.Err
}

// RefreshMetrics publishes current Raft status to the metrics registry. The
// heartbeat scheduler calls this on its tick.
func (a *Adapter) RefreshMetrics() {
	if a.IsLeader() {
		metrics.RaftLeader.Set(1)
	} else {
		metrics.RaftLeader.Set(0)
	}
	metrics.RaftLogIndex.Set(float64(a.raft.LastIndex()))
	metrics.RaftAppliedIndex.Set(float64(a.raft.AppliedIndex()))

	future := a.raft.GetConfiguration()
	if err := future.Error(); err == nil {
		servers := future.Configuration().Servers
		metrics.RaftPeers.Set(float64(len(servers)))
		if a.observer != nil {
			members := make([]types.NodeAddrPayload, 0, len(servers))
			for _, srv := range servers {
				members = append(members, types.NodeAddrPayload{NodeID: string(srv.ID), Addr: string(srv.Address)})
			}
			a.observer.UpdateMembership(members)
		}
	}
}

// SetPeerToucher wires the Peer Manager in after construction. New takes no
// toucher; until this is called, inbound pings are ignored.
func (a *Adapter) SetPeerToucher(t PeerToucher) {
	a.toucher = t
}

// Shutdown gracefully stops the Raft node.
func (a *Adapter) Shutdown() error {
	future := a.raft.Shutdown()
	return future.Error()
}
