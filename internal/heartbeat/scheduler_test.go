package heartbeat

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls int32
}

func (r *countingRefresher) RefreshMetrics() {
	atomic.AddInt32(&r.calls, 1)
}

type fakeRunnable struct {
	mu      sync.Mutex
	running bool
	started chan struct{}
	stopCh  chan struct{}
}

func newFakeRunnable() *fakeRunnable {
	return &fakeRunnable{started: make(chan struct{}), stopCh: make(chan struct{})}
}

func (f *fakeRunnable) Run() {
	f.mu.Lock()
	f.running = true
	f.mu.Unlock()
	close(f.started)
	<-f.stopCh
}

func (f *fakeRunnable) Stop() {
	close(f.stopCh)
}

func (f *fakeRunnable) isRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func TestStartRunsEveryRunnable(t *testing.T) {
	r1 := newFakeRunnable()
	r2 := newFakeRunnable()
	sched := New(&countingRefresher{}, r1, r2)

	sched.Start()
	defer sched.Stop()

	select {
	case <-r1.started:
	case <-time.After(time.Second):
		t.Fatal("runnable 1 never started")
	}
	select {
	case <-r2.started:
	case <-time.After(time.Second):
		t.Fatal("runnable 2 never started")
	}
	require.True(t, r1.isRunning())
	require.True(t, r2.isRunning())
}

func TestStopHaltsAllRunnablesAndWaits(t *testing.T) {
	r1 := newFakeRunnable()
	sched := New(&countingRefresher{}, r1)

	sched.Start()
	<-r1.started

	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop never returned")
	}
}

func TestRaftTickCallsRefreshMetricsRepeatedly(t *testing.T) {
	refresher := &countingRefresher{}
	sched := New(refresher)

	sched.Start()
	defer sched.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&refresher.calls) >= 1
	}, 3*time.Second, 50*time.Millisecond)
}
