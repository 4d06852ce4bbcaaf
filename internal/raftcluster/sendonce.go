package raftcluster

import (
	"net"
	"time"

	"github.com/nexuscore/nexuscore/internal/transport"
)

const dialTimeout = 5 * time.Second

// sendOnce opens a throwaway connection to addr, writes a single frame, and
// closes it. Used for join and leader-forward RPCs sent to a node not yet
// tracked by the sender pool, where per-peer FIFO ordering is moot.
func sendOnce(addr, typeTag string, body []byte) error {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(dialTimeout))
	return transport.WriteFrame(conn, transport.Frame{TypeTag: typeTag, Body: body})
}
