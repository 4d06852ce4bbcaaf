package raftcluster

import (
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/require"

	"github.com/nexuscore/nexuscore/internal/transport"
)

func TestStreamLayerDialAndAcceptRoundTrip(t *testing.T) {
	ln := transport.NewListener()
	defer ln.Close()
	require.NoError(t, ln.Serve("127.0.0.1:0"))
	addr := ln.Addr().String()

	layer := newStreamLayer(ln, raft.ServerAddress(addr))
	require.Equal(t, addr, layer.Addr().String())
	require.Equal(t, "tcp", layer.Addr().Network())

	accepted := make(chan error, 1)
	go func() {
		_, err := layer.Accept()
		accepted <- err
	}()

	conn, err := layer.Dial(raft.ServerAddress(addr), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case err := <-accepted:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Accept never returned")
	}
}
