package transport

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nexuscore/nexuscore/pkg/log"
)

// raftMagic prefixes a connection dialed by DialRaftStream so Listener can
// route it to the raft transport instead of the Frame dispatch loop. A
// Frame's first byte is the high byte of a 4-byte big-endian length prefix;
// that byte is 0xFF only for a length of at least 0xFF000000 bytes (about
// 4 GiB), which frame payloads never approach, so this value never collides
// with a real frame length.
const raftMagic byte = 0xFF

// Handler processes one inbound frame from remoteAddr. Handlers run on the
// connection's own goroutine; a slow handler only blocks that one peer.
type Handler func(remoteAddr string, f Frame)

// Listener accepts inbound peer connections and dispatches frames by
// type_tag to registered handlers, the receiving half of the sender pool's
// (type_tag, body) wire protocol. It also demultiplexes raft RPC
// connections off the same socket: raft and naming traffic share one
// listener instead of binding a second port.
type Listener struct {
	mu       sync.RWMutex
	handlers map[string]Handler

	ln        net.Listener
	raftConns chan net.Conn
	stopCh    chan struct{}
	closeOnce sync.Once
	logger    zerolog.Logger
}

// NewListener constructs an empty Listener.
func NewListener() *Listener {
	return &Listener{
		handlers:  make(map[string]Handler),
		raftConns: make(chan net.Conn),
		stopCh:    make(chan struct{}),
		logger:    log.WithComponent("transport"),
	}
}

// RegisterHandler installs h for every inbound frame tagged typeTag,
// replacing any previous handler for that tag.
func (l *Listener) RegisterHandler(typeTag string, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[typeTag] = h
}

// Serve listens on addr and dispatches inbound frames until Close is called.
func (l *Listener) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	l.ln = ln

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go l.routeConn(conn)
		}
	}()
	return nil
}

// Addr returns the listener's bound address, or nil before Serve succeeds.
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// AcceptRaft blocks until a connection dialed by DialRaftStream arrives, or
// the listener is closed.
func (l *Listener) AcceptRaft() (net.Conn, error) {
	select {
	case conn, ok := <-l.raftConns:
		if !ok {
			return nil, fmt.Errorf("transport: listener closed")
		}
		return conn, nil
	case <-l.stopCh:
		return nil, fmt.Errorf("transport: listener closed")
	}
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() { close(l.stopCh) })
	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}

// routeConn peeks the connection's first byte to decide whether it belongs
// to the raft stream layer or the Frame dispatch loop, without consuming
// the byte on the Frame path.
func (l *Listener) routeConn(conn net.Conn) {
	br := bufio.NewReader(conn)
	magic, err := br.Peek(1)
	if err != nil {
		conn.Close()
		return
	}

	if magic[0] == raftMagic {
		br.Discard(1)
		select {
		case l.raftConns <- &bufferedConn{Conn: conn, r: br}:
		case <-l.stopCh:
			conn.Close()
		}
		return
	}

	l.serveConn(&bufferedConn{Conn: conn, r: br})
}

func (l *Listener) serveConn(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()

	for {
		f, err := ReadFrame(conn)
		if err != nil {
			return
		}

		l.mu.RLock()
		h, ok := l.handlers[f.TypeTag]
		l.mu.RUnlock()
		if !ok {
			l.logger.Warn().Str("type_tag", f.TypeTag).Str("remote_addr", remote).Msg("no handler registered for frame type")
			continue
		}
		h(remote, f)
	}
}

// bufferedConn lets a net.Conn be read through a bufio.Reader that already
// consumed leading bytes for protocol sniffing, while Write and the rest of
// net.Conn pass through untouched.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (b *bufferedConn) Read(p []byte) (int, error) {
	return b.r.Read(p)
}
