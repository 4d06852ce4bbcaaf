package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexuscore/nexuscore/internal/coreerrors"
	"github.com/nexuscore/nexuscore/pkg/log"
	"github.com/nexuscore/nexuscore/pkg/metrics"
)

const (
	// fleetConnectionCapacity bounds the total number of simultaneously
	// open peer connections, independent of how many peers are configured.
	fleetConnectionCapacity = 60
	sendQueueDepth          = 1024
	dialTimeout             = 5 * time.Second
	writeTimeout            = 5 * time.Second
)

// Pool is the Peer RPC Sender Pool (C1): one long-lived, queue-backed
// sender per peer, sharing a fleet-wide bounded connection factory. Send is
// fire-and-forget from the caller's perspective; per-peer FIFO is
// guaranteed, cross-peer ordering is not.
type Pool struct {
	mu      sync.Mutex
	senders map[string]*sender
	conns   chan struct{} // fleet-wide connection capacity semaphore
	logger  zerolog.Logger
}

// NewPool constructs an empty Pool.
func NewPool() *Pool {
	return &Pool{
		senders: make(map[string]*sender),
		conns:   make(chan struct{}, fleetConnectionCapacity),
		logger:  log.WithComponent("transport"),
	}
}

// EnsureSender starts (or updates the address of) the sender for peerID.
func (p *Pool) EnsureSender(peerID, addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.senders[peerID]; ok {
		s.mu.Lock()
		s.addr = addr
		s.mu.Unlock()
		return
	}

	s := &sender{
		peerID: peerID,
		addr:   addr,
		queue:  make(chan Frame, sendQueueDepth),
		stopCh: make(chan struct{}),
		conns:  p.conns,
		logger: p.logger,
	}
	p.senders[peerID] = s
	go s.run()
}

// RemoveSender stops peerID's sender, dropping any queued frames.
func (p *Pool) RemoveSender(peerID string) {
	p.mu.Lock()
	s, ok := p.senders[peerID]
	if ok {
		delete(p.senders, peerID)
	}
	p.mu.Unlock()

	if ok {
		s.stop()
	}
	metrics.TransportQueueDepth.DeleteLabelValues(peerID)
}

// Send enqueues a fire-and-forget frame for peerID. It returns
// coreerrors.ErrTransport if the peer is unknown or its queue is full.
func (p *Pool) Send(peerID, typeTag string, body []byte) error {
	p.mu.Lock()
	s, ok := p.senders[peerID]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no sender for peer %s", coreerrors.ErrTransport, peerID)
	}

	select {
	case s.queue <- Frame{TypeTag: typeTag, Body: body}:
		metrics.TransportQueueDepth.WithLabelValues(peerID).Set(float64(len(s.queue)))
		return nil
	default:
		metrics.TransportSendTotal.WithLabelValues(typeTag, "queue_full").Inc()
		return fmt.Errorf("%w: send queue full for peer %s", coreerrors.ErrTransport, peerID)
	}
}

// sender owns one peer's outbound queue and connection.
type sender struct {
	peerID string
	conns  chan struct{}
	logger zerolog.Logger

	mu   sync.Mutex
	addr string
	conn net.Conn

	queue  chan Frame
	stopCh chan struct{}
}

func (s *sender) run() {
	for {
		select {
		case f := <-s.queue:
			s.deliver(f)
		case <-s.stopCh:
			s.closeConn()
			return
		}
	}
}

func (s *sender) stop() {
	close(s.stopCh)
}

func (s *sender) deliver(f Frame) {
	conn, err := s.ensureConn()
	if err != nil {
		metrics.TransportSendTotal.WithLabelValues(f.TypeTag, "dial_error").Inc()
		s.logger.Warn().Err(err).Str("peer_id", s.peerID).Msg("dial failed")
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := WriteFrame(conn, f); err != nil {
		metrics.TransportSendTotal.WithLabelValues(f.TypeTag, "write_error").Inc()
		s.logger.Warn().Err(err).Str("peer_id", s.peerID).Msg("write failed, resetting connection")
		s.closeConn()
		return
	}

	metrics.TransportSendTotal.WithLabelValues(f.TypeTag, "ok").Inc()
}

func (s *sender) ensureConn() (net.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return s.conn, nil
	}

	select {
	case s.conns <- struct{}{}:
	default:
		return nil, fmt.Errorf("fleet connection capacity exhausted")
	}

	conn, err := net.DialTimeout("tcp", s.addr, dialTimeout)
	if err != nil {
		<-s.conns
		return nil, err
	}
	s.conn = conn
	return conn, nil
}

func (s *sender) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
		select {
		case <-s.conns:
		default:
		}
	}
}
