// Package heartbeat implements the Heartbeat Scheduler (C8): the single
// clock that drives Raft metrics/membership refresh on its own tick,
// alongside the Listener Engine's 500ms sweep and the Peer Manager's 3s
// liveness tick, which each already own their cadence. Starting and
// stopping all three together from one place keeps a node's background
// loops on one lifecycle instead of three independently-managed goroutines.
package heartbeat

import (
	"sync"
	"time"
)

const raftMetricsTick = 2 * time.Second

// RaftRefresher is the slice of raftcluster.Adapter the scheduler needs:
// publish current Raft gauges and push the membership list to peermgr.
type RaftRefresher interface {
	RefreshMetrics()
}

// Runnable is satisfied by components that own their own ticker and just
// need a start/stop lifecycle, such as listener.Engine and peermgr.Manager.
type Runnable interface {
	Run()
	Stop()
}

// Scheduler owns process-wide background ticking for one node.
type Scheduler struct {
	raft      RaftRefresher
	runnables []Runnable

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New constructs a Scheduler that refreshes raft's gauges/membership on its
// own tick and starts every runnable (e.g. the listener engine, the peer
// manager) alongside it.
func New(raft RaftRefresher, runnables ...Runnable) *Scheduler {
	return &Scheduler{
		raft:      raft,
		runnables: runnables,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the Raft metrics tick and every runnable's own loop.
func (s *Scheduler) Start() {
	for _, r := range s.runnables {
		s.wg.Add(1)
		go func(r Runnable) {
			defer s.wg.Done()
			r.Run()
		}(r)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runRaftTick()
	}()
}

// Stop halts every runnable and the Raft metrics tick, blocking until all
// goroutines have returned.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	for _, r := range s.runnables {
		r.Stop()
	}
	s.wg.Wait()
}

func (s *Scheduler) runRaftTick() {
	ticker := time.NewTicker(raftMetricsTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.raft.RefreshMetrics()
		case <-s.stopCh:
			return
		}
	}
}
