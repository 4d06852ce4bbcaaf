// Package peermgr owns the naming cluster's membership table: liveness
// tracking, index assignment by ascending node id, and cascade invalidation
// of a dead peer's registered clients (C6).
package peermgr

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexuscore/nexuscore/internal/transport"
	"github.com/nexuscore/nexuscore/pkg/log"
	"github.com/nexuscore/nexuscore/pkg/metrics"
	"github.com/nexuscore/nexuscore/pkg/types"
)

const (
	livenessTick    = 3 * time.Second
	invalidAfter    = 15 * time.Second
	pingTypeTag     = "ping"
)

// NamingPurger is the Naming Router's client-purge hook, invoked for every
// client id owned by a peer that just transitioned to Invalid.
type NamingPurger interface {
	PurgeClient(clientID string)
}

// Manager is the C6 actor: all state below is owned exclusively by mu.
type Manager struct {
	localID string
	pool    *transport.Pool
	purger  NamingPurger
	logger  zerolog.Logger

	mu    sync.RWMutex
	nodes map[string]*types.ClusterNode

	stopCh chan struct{}
}

// New constructs a Manager for localID, sending liveness pings and
// forwarding purge instructions through pool and purger respectively.
// purger may be nil until the Naming Router exists; set it with SetPurger.
func New(localID string, pool *transport.Pool, purger NamingPurger) *Manager {
	return &Manager{
		localID: localID,
		pool:    pool,
		purger:  purger,
		logger:  log.WithComponent("peermgr"),
		nodes:   make(map[string]*types.ClusterNode),
		stopCh:  make(chan struct{}),
	}
}

// SetPurger wires the Naming Router in after construction, breaking the
// natural initialization cycle (the Router needs the Manager's valid-node
// ordering, and is usually built right after it).
func (m *Manager) SetPurger(p NamingPurger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purger = p
}

// Run drives the 3s liveness tick until Stop is called.
func (m *Manager) Run() {
	ticker := time.NewTicker(livenessTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.tick()
		case <-m.stopCh:
			return
		}
	}
}

// Stop halts the liveness loop.
func (m *Manager) Stop() {
	close(m.stopCh)
}

// UpdateMembership reconciles the table against the Raft membership's
// authoritative (node_id, addr) list: dropped nodes are removed (their
// sender torn down), survivors' addresses are refreshed, new peers get a
// sender started, and index is recomputed over ascending node_id.
func (m *Manager) UpdateMembership(members []types.NodeAddrPayload) {
	seen := make(map[string]struct{}, len(members))

	m.mu.Lock()
	for _, mem := range members {
		seen[mem.NodeID] = struct{}{}
		if n, ok := m.nodes[mem.NodeID]; ok {
			n.Addr = mem.Addr
			continue
		}
		n := &types.ClusterNode{
			NodeID:         mem.NodeID,
			Addr:           mem.Addr,
			State:          types.NodeStateValid,
			IsLocal:        mem.NodeID == m.localID,
			LastActiveTime: time.Now(),
			ClientSet:      make(map[string]struct{}),
		}
		m.nodes[mem.NodeID] = n
		if !n.IsLocal {
			m.pool.EnsureSender(mem.NodeID, mem.Addr)
		}
	}

	for id := range m.nodes {
		if _, ok := seen[id]; !ok {
			delete(m.nodes, id)
			if id != m.localID {
				m.pool.RemoveSender(id)
			}
		}
	}

	m.reindexLocked()
	m.mu.Unlock()

	m.refreshMetrics()
}

// reindexLocked assigns Index = position in ascending node_id order over
// the Valid set, satisfying I4: index values are a permutation of 0..n-1.
func (m *Manager) reindexLocked() {
	ids := make([]string, 0, len(m.nodes))
	for id, n := range m.nodes {
		if n.State == types.NodeStateValid {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for i, id := range ids {
		m.nodes[id].Index = i
	}
}

// ValidNodesOrdered returns the ascending-node_id ordered list of Valid
// nodes, the ordering the Naming Router hashes against.
func (m *Manager) ValidNodesOrdered() []types.ClusterNode {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.ClusterNode, 0, len(m.nodes))
	for _, n := range m.nodes {
		if n.State == types.NodeStateValid {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// RegisterClient records that clientID's instances were published through
// peer nodeID, so a later cascade-invalidate knows to purge them.
func (m *Manager) RegisterClient(nodeID, clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nodes[nodeID]; ok {
		n.ClientSet[clientID] = struct{}{}
	}
}

// Touch implements the active-node tick: receiving any peer message
// refreshes last-active time and flips an Invalid peer back to Valid.
func (m *Manager) Touch(nodeID string) {
	m.mu.Lock()
	n, ok := m.nodes[nodeID]
	if !ok {
		m.mu.Unlock()
		return
	}
	n.LastActiveTime = time.Now()
	wasInvalid := n.State == types.NodeStateInvalid
	if wasInvalid {
		n.State = types.NodeStateValid
		m.reindexLocked()
	}
	m.mu.Unlock()

	if wasInvalid {
		m.refreshMetrics()
	}
}

func (m *Manager) tick() {
	timer := metrics.NewTimer()
	m.pingValidPeers()
	timer.ObserveDuration(metrics.PeerPingDuration)
	m.sweepInvalid()
}

func (m *Manager) pingValidPeers() {
	m.mu.RLock()
	peers := make([]string, 0, len(m.nodes))
	for id, n := range m.nodes {
		if !n.IsLocal && n.State == types.NodeStateValid {
			peers = append(peers, id)
		}
	}
	m.mu.RUnlock()

	for _, peerID := range peers {
		if err := m.pool.Send(peerID, pingTypeTag, []byte(m.localID)); err != nil {
			m.logger.Warn().Err(err).Str("peer_id", peerID).Msg("ping failed")
		}
	}
}

// sweepInvalid marks peers silent for more than invalidAfter as Invalid
// and cascade-invalidates their registered clients.
func (m *Manager) sweepInvalid() {
	now := time.Now()

	m.mu.Lock()
	var toPurge []string
	changed := false
	for id, n := range m.nodes {
		if n.IsLocal || n.State == types.NodeStateInvalid {
			continue
		}
		if now.Sub(n.LastActiveTime) >= invalidAfter {
			n.State = types.NodeStateInvalid
			for clientID := range n.ClientSet {
				toPurge = append(toPurge, clientID)
			}
			n.ClientSet = make(map[string]struct{})
			changed = true
			m.logger.Warn().Str("peer_id", id).Dur("silence", invalidAfter).Msg("peer marked invalid")
		}
	}
	if changed {
		m.reindexLocked()
	}
	purger := m.purger
	m.mu.Unlock()

	if len(toPurge) > 0 && purger != nil {
		metrics.PeerCascadeInvalidateTotal.Inc()
		for _, clientID := range toPurge {
			purger.PurgeClient(clientID)
		}
	}
	if changed {
		m.refreshMetrics()
	}
}

func (m *Manager) refreshMetrics() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var valid, invalid int
	for _, n := range m.nodes {
		if n.State == types.NodeStateValid {
			valid++
		} else {
			invalid++
		}
	}
	metrics.PeerNodesTotal.WithLabelValues(string(types.NodeStateValid)).Set(float64(valid))
	metrics.PeerNodesTotal.WithLabelValues(string(types.NodeStateInvalid)).Set(float64(invalid))
}
