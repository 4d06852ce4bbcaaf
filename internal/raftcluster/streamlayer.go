package raftcluster

import (
	"net"
	"time"

	"github.com/hashicorp/raft"

	"github.com/nexuscore/nexuscore/internal/transport"
)

// streamLayer implements raft.StreamLayer over the same peer Listener that
// naming and join/forward RPCs already share, so Raft never opens a second
// socket. Inbound connections arrive via Listener.AcceptRaft, which the
// Listener's accept loop routes there by a one-byte magic prefix; outbound
// connections are tagged with that same prefix by transport.DialRaftStream.
type streamLayer struct {
	ln        *transport.Listener
	localAddr raft.ServerAddress
}

func newStreamLayer(ln *transport.Listener, localAddr raft.ServerAddress) *streamLayer {
	return &streamLayer{ln: ln, localAddr: localAddr}
}

// Accept waits for and returns the next raft connection routed by Listener.
func (s *streamLayer) Accept() (net.Conn, error) {
	return s.ln.AcceptRaft()
}

// Close is a no-op: the underlying Listener's lifecycle is owned by the
// node, not by raft, since naming traffic keeps using it after raft shuts
// down.
func (s *streamLayer) Close() error {
	return nil
}

// Addr reports this node's advertised raft address.
func (s *streamLayer) Addr() net.Addr {
	return rpcAddr(s.localAddr)
}

// Dial opens a tagged connection to address's peer Listener.
func (s *streamLayer) Dial(address raft.ServerAddress, timeout time.Duration) (net.Conn, error) {
	return transport.DialRaftStream(string(address), timeout)
}

// rpcAddr adapts a raft.ServerAddress (a bare host:port string) to net.Addr
// for raft.NetworkTransport's LocalAddr/advertise bookkeeping.
type rpcAddr string

func (a rpcAddr) Network() string { return "tcp" }
func (a rpcAddr) String() string  { return string(a) }
