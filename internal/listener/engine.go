// Package listener implements the long-poll waiter engine (C4): a client
// submits a set of (ConfigKey, md5) items and a deadline; the engine
// resolves the caller's sink immediately on a fast-path mismatch, or parks
// it until either a watched key changes or the deadline sweep reaps it.
package listener

import (
	"container/heap"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/nexuscore/pkg/metrics"
	"github.com/nexuscore/nexuscore/pkg/types"
)

const (
	sweepInterval     = 500 * time.Millisecond
	maxBucketsPerTick = 10000
)

// CacheReader is the read-only slice of ConfigStore the engine needs for
// its fast-path comparison.
type CacheReader interface {
	Get(key types.ConfigKey) (types.ConfigValue, bool)
}

// ResultSink receives a waiter's outcome exactly once. A nil or empty
// changed slice means the deadline elapsed with no change observed.
type ResultSink interface {
	Resolve(changed []types.ConfigKey)
}

// Engine is the C4 actor: all state below is owned exclusively by mu.
type Engine struct {
	cache CacheReader

	mu              sync.Mutex
	byKey           map[types.ConfigKey]map[uuid.UUID]struct{}
	waiterKeys      map[uuid.UUID][]types.ConfigKey
	sinks           map[uuid.UUID]ResultSink
	deadlineBuckets map[int64]map[uuid.UUID]struct{}
	bucketHeap      bucketHeap

	stopCh chan struct{}
}

// New constructs an Engine reading current values from cache.
func New(cache CacheReader) *Engine {
	return &Engine{
		cache:           cache,
		byKey:           make(map[types.ConfigKey]map[uuid.UUID]struct{}),
		waiterKeys:      make(map[uuid.UUID][]types.ConfigKey),
		sinks:           make(map[uuid.UUID]ResultSink),
		deadlineBuckets: make(map[int64]map[uuid.UUID]struct{}),
		stopCh:          make(chan struct{}),
	}
}

// Run drives the 500ms deadline sweep until Stop is called.
func (e *Engine) Run() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.sweep(time.Now())
		case <-e.stopCh:
			return
		}
	}
}

// Stop halts the sweep loop.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// Submit is the long-poll entry point. items maps each watched key to the
// md5 the caller already knows. A deadline that is not strictly in the
// future resolves synchronously (B3).
func (e *Engine) Submit(items map[types.ConfigKey]string, deadline time.Time, sink ResultSink) {
	changed := e.fastPathChanges(items)
	if len(changed) > 0 || !deadline.After(time.Now()) {
		metrics.ListenerNotifyTotal.Inc()
		sink.Resolve(changed)
		return
	}
	e.park(items, deadline, sink)
}

func (e *Engine) fastPathChanges(items map[types.ConfigKey]string) []types.ConfigKey {
	var changed []types.ConfigKey
	for key, knownMD5 := range items {
		cur, ok := e.cache.Get(key)
		switch {
		case ok && cur.MD5 == knownMD5:
			// unchanged
		case ok && cur.MD5 != knownMD5:
			changed = append(changed, key)
		case !ok && knownMD5 != "":
			changed = append(changed, key)
		}
	}
	return changed
}

func (e *Engine) park(items map[types.ConfigKey]string, deadline time.Time, sink ResultSink) {
	keys := make([]types.ConfigKey, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}

	id := uuid.New()

	e.mu.Lock()
	for _, k := range keys {
		set, ok := e.byKey[k]
		if !ok {
			set = make(map[uuid.UUID]struct{})
			e.byKey[k] = set
		}
		set[id] = struct{}{}
	}
	e.waiterKeys[id] = keys
	e.sinks[id] = sink

	bucket := deadline.UnixMilli()
	ids, ok := e.deadlineBuckets[bucket]
	if !ok {
		ids = make(map[uuid.UUID]struct{})
		e.deadlineBuckets[bucket] = ids
		heap.Push(&e.bucketHeap, bucket)
	}
	ids[id] = struct{}{}
	e.mu.Unlock()

	metrics.ListenerWaitersActive.Inc()
}

// NotifyChange implements configstore.ChangeNotifier. It resolves every
// still-parked waiter watching key with a single-element change set.
func (e *Engine) NotifyChange(key types.ConfigKey) {
	e.mu.Lock()
	ids := e.byKey[key]
	resolved := make([]uuid.UUID, 0, len(ids))
	sinks := make([]ResultSink, 0, len(ids))
	for id := range ids {
		if sink, ok := e.resolveLocked(id); ok {
			resolved = append(resolved, id)
			sinks = append(sinks, sink)
		}
	}
	e.mu.Unlock()

	for _, sink := range sinks {
		metrics.ListenerNotifyTotal.Inc()
		sink.Resolve([]types.ConfigKey{key})
	}
	_ = resolved
}

// resolveLocked removes waiter id from every index and returns its sink if
// it was still parked. Callers must hold e.mu and must not call sink.Resolve
// while still holding it.
func (e *Engine) resolveLocked(id uuid.UUID) (ResultSink, bool) {
	sink, ok := e.sinks[id]
	if !ok {
		return nil, false
	}
	delete(e.sinks, id)

	for _, k := range e.waiterKeys[id] {
		if set, ok := e.byKey[k]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(e.byKey, k)
			}
		}
	}
	delete(e.waiterKeys, id)
	metrics.ListenerWaitersActive.Dec()
	return sink, true
}

// sweep reaps at most maxBucketsPerTick expired deadline buckets (B4); any
// remainder is left for the next tick.
func (e *Engine) sweep(now time.Time) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ListenerSweepDuration)

	nowMillis := now.UnixMilli()

	e.mu.Lock()
	var toResolve []uuid.UUID
	processed := 0
	for processed < maxBucketsPerTick && e.bucketHeap.Len() > 0 && e.bucketHeap[0] < nowMillis {
		bucket := heap.Pop(&e.bucketHeap).(int64)
		processed++
		ids, ok := e.deadlineBuckets[bucket]
		if !ok {
			continue
		}
		delete(e.deadlineBuckets, bucket)
		for id := range ids {
			toResolve = append(toResolve, id)
		}
	}

	sinks := make([]ResultSink, 0, len(toResolve))
	for _, id := range toResolve {
		if sink, ok := e.resolveLocked(id); ok {
			sinks = append(sinks, sink)
		}
	}
	e.mu.Unlock()

	for _, sink := range sinks {
		metrics.ListenerTimeoutTotal.Inc()
		sink.Resolve(nil)
	}
}
