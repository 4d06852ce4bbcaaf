package peermgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/nexuscore/internal/transport"
	"github.com/nexuscore/nexuscore/pkg/types"
)

type recordingPurger struct {
	purged []string
}

func (p *recordingPurger) PurgeClient(clientID string) {
	p.purged = append(p.purged, clientID)
}

func newTestManager(localID string) *Manager {
	pool := transport.NewPool()
	return New(localID, pool, nil)
}

// I4: reindexing over the Valid set assigns Index as a permutation of
// 0..n-1 in ascending node_id order, regardless of insertion order.
func TestUpdateMembershipAssignsAscendingIndex(t *testing.T) {
	m := newTestManager("node-2")
	m.UpdateMembership([]types.NodeAddrPayload{
		{NodeID: "node-3", Addr: "127.0.0.1:1"},
		{NodeID: "node-1", Addr: "127.0.0.1:2"},
		{NodeID: "node-2", Addr: "127.0.0.1:3"},
	})

	ordered := m.ValidNodesOrdered()
	require.Len(t, ordered, 3)
	for i, n := range ordered {
		require.Equal(t, i, n.Index)
	}
	require.Equal(t, "node-1", ordered[0].NodeID)
	require.Equal(t, "node-2", ordered[1].NodeID)
	require.Equal(t, "node-3", ordered[2].NodeID)
}

func TestUpdateMembershipDropsRemovedNodes(t *testing.T) {
	m := newTestManager("node-1")
	m.UpdateMembership([]types.NodeAddrPayload{
		{NodeID: "node-1", Addr: "a"},
		{NodeID: "node-2", Addr: "b"},
	})
	m.UpdateMembership([]types.NodeAddrPayload{
		{NodeID: "node-1", Addr: "a"},
	})

	ordered := m.ValidNodesOrdered()
	require.Len(t, ordered, 1)
	require.Equal(t, "node-1", ordered[0].NodeID)
}

func TestTouchRevivesInvalidPeer(t *testing.T) {
	m := newTestManager("node-1")
	m.UpdateMembership([]types.NodeAddrPayload{
		{NodeID: "node-1", Addr: "a"},
		{NodeID: "node-2", Addr: "b"},
	})

	m.mu.Lock()
	m.nodes["node-2"].State = types.NodeStateInvalid
	m.nodes["node-2"].LastActiveTime = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	m.Touch("node-2")

	m.mu.RLock()
	state := m.nodes["node-2"].State
	m.mu.RUnlock()
	require.Equal(t, types.NodeStateValid, state)
}

// Scenario 5: a peer silent past invalidAfter transitions to Invalid and
// cascade-invalidates every client it had registered, clearing the set.
func TestSweepInvalidCascadeInvalidatesClientSet(t *testing.T) {
	m := newTestManager("node-1")
	purger := &recordingPurger{}
	m.SetPurger(purger)

	m.UpdateMembership([]types.NodeAddrPayload{
		{NodeID: "node-1", Addr: "a"},
		{NodeID: "node-2", Addr: "b"},
	})
	m.RegisterClient("node-2", "client-1")
	m.RegisterClient("node-2", "client-2")

	m.mu.Lock()
	m.nodes["node-2"].LastActiveTime = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	m.sweepInvalid()

	require.ElementsMatch(t, []string{"client-1", "client-2"}, purger.purged)

	m.mu.RLock()
	defer m.mu.RUnlock()
	require.Equal(t, types.NodeStateInvalid, m.nodes["node-2"].State)
	require.Empty(t, m.nodes["node-2"].ClientSet)
}

func TestSweepInvalidIgnoresLocalNode(t *testing.T) {
	m := newTestManager("node-1")
	m.UpdateMembership([]types.NodeAddrPayload{{NodeID: "node-1", Addr: "a"}})

	m.mu.Lock()
	m.nodes["node-1"].LastActiveTime = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	m.sweepInvalid()

	m.mu.RLock()
	defer m.mu.RUnlock()
	require.Equal(t, types.NodeStateValid, m.nodes["node-1"].State)
}
