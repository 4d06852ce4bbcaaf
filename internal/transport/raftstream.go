package transport

import (
	"fmt"
	"net"
	"time"
)

// DialRaftStream opens a raw connection to addr and tags it with the raft
// magic byte so the remote Listener routes it to its raft transport instead
// of the Frame dispatch loop. It bypasses Pool entirely: Pool is an async,
// fire-and-forget sender, while raft RPCs are synchronous request/response.
func DialRaftStream(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial raft stream to %s: %w", addr, err)
	}

	if _, err := conn.Write([]byte{raftMagic}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write raft magic to %s: %w", addr, err)
	}

	return conn, nil
}
