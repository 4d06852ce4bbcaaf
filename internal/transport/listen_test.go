package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListenerDispatchesFrameToRegisteredHandler(t *testing.T) {
	ln := NewListener()
	defer ln.Close()

	received := make(chan Frame, 1)
	ln.RegisterHandler("ping", func(remoteAddr string, f Frame) {
		received <- f
	})

	require.NoError(t, ln.Serve("127.0.0.1:0"))
	addr := ln.Addr().String()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, WriteFrame(conn, Frame{TypeTag: "ping", Body: []byte("x")}))

	select {
	case f := <-received:
		require.Equal(t, "ping", f.TypeTag)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked")
	}
}

func TestListenerRoutesRaftMagicConnectionToAcceptRaft(t *testing.T) {
	ln := NewListener()
	defer ln.Close()

	require.NoError(t, ln.Serve("127.0.0.1:0"))
	addr := ln.Addr().String()

	acceptErr := make(chan error, 1)
	acceptedConn := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.AcceptRaft()
		if err != nil {
			acceptErr <- err
			return
		}
		acceptedConn <- conn
	}()

	conn, err := DialRaftStream(addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case c := <-acceptedConn:
		defer c.Close()
	case err := <-acceptErr:
		t.Fatalf("AcceptRaft failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("AcceptRaft never returned a connection")
	}
}

func TestListenerRaftConnectionBodyReadableAfterMagicByte(t *testing.T) {
	ln := NewListener()
	defer ln.Close()

	require.NoError(t, ln.Serve("127.0.0.1:0"))
	addr := ln.Addr().String()

	serverSide := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.AcceptRaft()
		if err == nil {
			serverSide <- conn
		}
	}()

	conn, err := DialRaftStream(addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("payload"))
	require.NoError(t, err)

	select {
	case server := <-serverSide:
		defer server.Close()
		buf := make([]byte, len("payload"))
		_, err := server.Read(buf)
		require.NoError(t, err)
		require.Equal(t, "payload", string(buf))
	case <-time.After(2 * time.Second):
		t.Fatal("raft connection never accepted")
	}
}

func TestAcceptRaftReturnsErrorAfterClose(t *testing.T) {
	ln := NewListener()
	require.NoError(t, ln.Serve("127.0.0.1:0"))
	require.NoError(t, ln.Close())

	_, err := ln.AcceptRaft()
	require.Error(t, err)
}
