package node

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/nexuscore/internal/config"
	"github.com/nexuscore/nexuscore/internal/coreerrors"
	"github.com/nexuscore/nexuscore/internal/raftcluster"
	"github.com/nexuscore/nexuscore/pkg/types"
)

func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func newTestNodeConfig(t *testing.T, autoInit bool) config.Node {
	// Raft RPCs and naming/join/forward traffic share one physical
	// listener, so NodeAddr and NamingBindAddr must match.
	bindAddr := freePort(t)
	return config.Node{
		Raft: raftcluster.Config{
			NodeID:   "node-1",
			NodeAddr: bindAddr,
			AutoInit: autoInit,
			DataDir:  t.TempDir(),
		},
		NamingBindAddr: bindAddr,
		MetricsAddr:    freePort(t),
	}
}

func waitForLeader(t *testing.T, n *Node) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if n.IsLeader() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("node never became leader")
}

func TestNodeSetConfigThenRemoveConfig(t *testing.T) {
	n, err := New(newTestNodeConfig(t, true))
	require.NoError(t, err)
	require.NoError(t, n.Start())
	t.Cleanup(func() { _ = n.Stop() })

	waitForLeader(t, n)

	key := types.ConfigKey{DataID: "app.properties", Group: "DEFAULT_GROUP"}
	result, err := n.SetConfig(key, "timeout=3000")
	require.NoError(t, err)
	require.NoError(t, result.Err)

	val, ok := n.Store().Get(key)
	require.True(t, ok)
	require.Equal(t, "timeout=3000", val.Content)

	_, err = n.RemoveConfig(key)
	require.NoError(t, err)
	_, ok = n.Store().Get(key)
	require.False(t, ok)
}

func TestNodeSetConfigRejectsWhenNotLeader(t *testing.T) {
	n, err := New(newTestNodeConfig(t, false))
	require.NoError(t, err)
	require.NoError(t, n.Start())
	t.Cleanup(func() { _ = n.Stop() })

	_, err = n.SetConfig(types.ConfigKey{DataID: "a", Group: "g"}, "v")
	require.Error(t, err)
	require.ErrorIs(t, err, coreerrors.ErrNotLeader)
}
