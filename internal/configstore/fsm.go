package configstore

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hashicorp/raft"

	"github.com/nexuscore/nexuscore/internal/codec"
	"github.com/nexuscore/nexuscore/pkg/types"
)

// FSM adapts a ConfigStore to raft.FSM. Apply must be deterministic and
// idempotent: replaying the same log on any node produces the same cache
// and tenant index, which is why every sequence number it touches
// (history ids) arrives pre-assigned in the command payload.
type FSM struct {
	store      *ConfigStore
	onNodeAddr func(types.NodeAddrPayload)
}

// NewFSM wraps store for use as a raft.FSM. onNodeAddr, if non-nil, is
// invoked for every committed OpNodeAddr command so the Peer Manager learns
// persisted peer addresses on replay.
func NewFSM(store *ConfigStore, onNodeAddr func(types.NodeAddrPayload)) *FSM {
	return &FSM{store: store, onNodeAddr: onNodeAddr}
}

// Apply implements raft.FSM.
func (f *FSM) Apply(l *raft.Log) interface{} {
	cmd, err := codec.DecodeCommand(l.Data)
	if err != nil {
		return &types.ApplyResult{Err: err}
	}

	switch cmd.Op {
	case types.OpConfigAdd:
		p, err := codec.DecodeConfigAdd(cmd.Data)
		if err != nil {
			return &types.ApplyResult{Err: err}
		}
		changed, err := f.store.applyConfigAdd(p)
		return &types.ApplyResult{Err: err, Changed: changed}

	case types.OpConfigRemove:
		p, err := codec.DecodeConfigRemove(cmd.Data)
		if err != nil {
			return &types.ApplyResult{Err: err}
		}
		err = f.store.applyConfigRemove(p)
		return &types.ApplyResult{Err: err, Changed: err == nil}

	case types.OpNodeAddr:
		p, err := codec.DecodeNodeAddr(cmd.Data)
		if err != nil {
			return &types.ApplyResult{Err: err}
		}
		if f.onNodeAddr != nil {
			f.onNodeAddr(p)
		}
		return &types.ApplyResult{Changed: true}

	case types.OpApplySnapshot:
		return &types.ApplyResult{Changed: true}

	default:
		return &types.ApplyResult{Err: fmt.Errorf("unknown raft command op: %s", cmd.Op)}
	}
}

// Snapshot implements raft.FSM. It copies the live cache under lock into a
// plain map so Persist can run without holding the store's mutex.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.store.mu.RLock()
	defer f.store.mu.RUnlock()

	entries := make([]storedEntry, 0, len(f.store.cache))
	for key, v := range f.store.cache {
		if v.Tmp {
			continue
		}
		entries = append(entries, storedEntry{Key: key, Value: v})
	}
	return &fsmSnapshot{entries: entries}, nil
}

// Restore implements raft.FSM. It rebuilds the cache and tenant index from
// the snapshot contents and re-persists every snapshot entry as a primary
// record. Primary records in the KV store that the snapshot does not
// contain are left in place.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var entries []storedEntry
	if err := json.NewDecoder(rc).Decode(&entries); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	f.store.mu.Lock()
	f.store.cache = make(map[types.ConfigKey]types.ConfigValue, len(entries))
	f.store.tenantIndex = make(map[string]map[types.ConfigKey]struct{})
	for _, e := range entries {
		f.store.cache[e.Key] = e.Value
		f.store.indexInsertLocked(e.Key)
	}
	f.store.mu.Unlock()

	for _, e := range entries {
		primaryKey := append([]byte(primaryPrefix), []byte(e.Key.Encode())...)
		val, err := encodeStoredValue(storedValue{Content: e.Value.Content, MD5: e.Value.MD5, Tmp: false, Version: e.Value.Version, UpdatedAt: e.Value.UpdatedAt})
		if err != nil {
			return fmt.Errorf("encode restored record: %w", err)
		}
		if err := f.store.kv.Put(primaryKey, val); err != nil {
			f.store.logger.Warn().Err(err).Str("encoded_key", e.Key.Encode()).Msg("restore write failed")
		}
	}
	return nil
}

type storedEntry struct {
	Key   types.ConfigKey
	Value types.ConfigValue
}

// fsmSnapshot implements raft.FSMSnapshot over a point-in-time entry copy.
type fsmSnapshot struct {
	entries []storedEntry
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s.entries); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *fsmSnapshot) Release() {}
