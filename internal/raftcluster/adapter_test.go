package raftcluster

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/nexuscore/internal/configstore"
	"github.com/nexuscore/nexuscore/internal/transport"
	"github.com/nexuscore/nexuscore/pkg/kvstore"
	"github.com/nexuscore/nexuscore/pkg/types"
)

// freePort finds an ephemeral port by briefly binding to one and releasing
// it; the shared peer listener needs a fixed address up front for bootstrap.
func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func newBootstrappedAdapter(t *testing.T) (*Adapter, *configstore.ConfigStore) {
	t.Helper()
	kv, err := kvstore.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	store, err := configstore.New(kv)
	require.NoError(t, err)
	fsm := configstore.NewFSM(store, nil)

	pool := transport.NewPool()
	ln := transport.NewListener()

	addr := freePort(t)
	require.NoError(t, ln.Serve(addr))
	t.Cleanup(func() { _ = ln.Close() })

	cfg := Config{
		NodeID:   "node-1",
		NodeAddr: addr,
		AutoInit: true,
		DataDir:  t.TempDir(),
	}
	adapter, err := New(cfg, fsm, pool, ln, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Shutdown() })
	return adapter, store
}

func waitForLeader(t *testing.T, a *Adapter) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if a.IsLeader() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("adapter never became leader")
}

func TestAutoInitBootstrapsAsLeader(t *testing.T) {
	adapter, _ := newBootstrappedAdapter(t)
	waitForLeader(t, adapter)
	require.Equal(t, adapter.cfg.NodeAddr, adapter.LeaderAddr())
}

func TestProposeAppliesOnLeader(t *testing.T) {
	adapter, store := newBootstrappedAdapter(t)
	waitForLeader(t, adapter)

	key := types.ConfigKey{DataID: "app.properties", Group: "DEFAULT_GROUP"}
	result, err := adapter.Propose(types.OpConfigAdd, types.ConfigAddPayload{
		Key: key, Content: "v", MD5: configstore.HashContent("v"), HistoryID: 1,
	})
	require.NoError(t, err)
	require.NoError(t, result.Err)
	require.True(t, result.Changed)

	val, ok := store.Get(key)
	require.True(t, ok)
	require.Equal(t, "v", val.Content)
}

func TestRefreshMetricsReportsLeadership(t *testing.T) {
	adapter, _ := newBootstrappedAdapter(t)
	waitForLeader(t, adapter)

	adapter.RefreshMetrics()
	require.True(t, adapter.IsLeader())
}
