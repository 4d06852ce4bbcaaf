// Package configstore owns the in-memory config cache, its tenant
// secondary index, and the append-only history log, and applies committed
// Raft commands to them. It is the only component that writes the "cfg"
// and "cfghist" key ranges of the shared kvstore.Store.
package configstore

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexuscore/nexuscore/internal/coreerrors"
	"github.com/nexuscore/nexuscore/pkg/kvstore"
	"github.com/nexuscore/nexuscore/pkg/log"
	"github.com/nexuscore/nexuscore/pkg/metrics"
	"github.com/nexuscore/nexuscore/pkg/types"
)

const (
	primaryPrefix  = "cfg\x00"
	historyPrefix  = "cfghist\x00"
	historySeqName = "cfghistseq"
)

// ChangeNotifier receives a key whose value just changed under apply. The
// Listener Engine and Subscription Registry both implement it. Apply calls
// each registered notifier in turn, synchronously, after the KV writes, so a
// slow notifier delays the ones after it and the apply itself.
type ChangeNotifier interface {
	NotifyChange(key types.ConfigKey)
}

// ConfigStore is the actor-owned state for C3: a local cache, its tenant
// index, and the history log, guarded by a single mutex. Raft delivers
// mutations through Apply; reads never touch Raft.
type ConfigStore struct {
	mu          sync.RWMutex
	kv          kvstore.Store
	cache       map[types.ConfigKey]types.ConfigValue
	tenantIndex map[string]map[types.ConfigKey]struct{}
	notifiers   []ChangeNotifier
	logger      zerolog.Logger
}

// New constructs a ConfigStore and rebuilds its cache and tenant index from
// a full scan of the persisted primary records. This scan runs on cold start
// only; FSM.Restore rebuilds the cache from the snapshot contents instead and
// does not scan the KV store.
func New(kv kvstore.Store, notifiers ...ChangeNotifier) (*ConfigStore, error) {
	s := &ConfigStore{
		kv:          kv,
		cache:       make(map[types.ConfigKey]types.ConfigValue),
		tenantIndex: make(map[string]map[types.ConfigKey]struct{}),
		notifiers:   notifiers,
		logger:      log.WithComponent("configstore"),
	}
	if err := s.rebuildFromKV(); err != nil {
		return nil, err
	}
	return s, nil
}

// AddNotifier registers n for every future change. Breaks the construction
// cycle between ConfigStore and notifiers (such as the Listener Engine)
// that themselves read the store's cache: build the store first, build the
// notifier against it, then wire the notifier in before the first Apply.
// Not safe to call once Apply traffic has started.
func (s *ConfigStore) AddNotifier(n ChangeNotifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifiers = append(s.notifiers, n)
}

func (s *ConfigStore) rebuildFromKV() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache = make(map[types.ConfigKey]types.ConfigValue)
	s.tenantIndex = make(map[string]map[types.ConfigKey]struct{})

	return s.kv.Scan([]byte(primaryPrefix), func(k, v []byte) bool {
		encoded := string(k[len(primaryPrefix):])
		key, ok := types.DecodeConfigKey(encoded)
		if !ok {
			s.logger.Warn().Str("encoded_key", encoded).Msg("skipping malformed primary key on rebuild")
			return true
		}
		var val storedValue
		if err := decodeStoredValue(v, &val); err != nil {
			s.logger.Warn().Err(err).Str("encoded_key", encoded).Msg("skipping unreadable record on rebuild")
			return true
		}
		cv := types.ConfigValue{Key: key, Content: val.Content, MD5: val.MD5, Tmp: val.Tmp, Version: val.Version, UpdatedAt: val.UpdatedAt}
		s.cache[key] = cv
		s.indexInsertLocked(key)
		return true
	})
}

func (s *ConfigStore) indexInsertLocked(key types.ConfigKey) {
	set, ok := s.tenantIndex[key.Tenant]
	if !ok {
		set = make(map[types.ConfigKey]struct{})
		s.tenantIndex[key.Tenant] = set
	}
	set[key] = struct{}{}
}

func (s *ConfigStore) indexRemoveLocked(key types.ConfigKey) {
	if set, ok := s.tenantIndex[key.Tenant]; ok {
		delete(set, key)
		if len(set) == 0 {
			delete(s.tenantIndex, key.Tenant)
		}
	}
}

// cacheLen returns the cache size. It takes s.mu itself, so callers must not
// hold it; applyConfigAdd/applyConfigRemove call it after their own critical
// sections have released the lock.
func (s *ConfigStore) cacheLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// Get returns the current cached value for key, if any. It is a local,
// leader-or-follower read; it never consults Raft.
func (s *ConfigStore) Get(key types.ConfigKey) (types.ConfigValue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cache[key]
	return v, ok
}

// NextHistoryID allocates the next global history sequence number. Only the
// Raft leader calls this, before proposing a ConfigAdd, so every replica
// applies the identical id.
func (s *ConfigStore) NextHistoryID() (uint64, error) {
	id, err := s.kv.NextSeq([]byte(historySeqName))
	if err != nil {
		return 0, fmt.Errorf("%w: allocate history id: %v", coreerrors.ErrStorage, err)
	}
	return id, nil
}

// HashContent returns the hex md5 digest used as the change-detection token.
func HashContent(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// applyConfigAdd is the C3 "Set algorithm": no-op on unchanged non-tmp
// content, otherwise a cache + tenant-index update under s.mu, then the
// primary record and the history record written as two separate kv.Put
// calls, followed by notification of every registered ChangeNotifier. The
// two KV writes are not one atomic write: a failed Put is logged and the
// other write still happens.
func (s *ConfigStore) applyConfigAdd(p types.ConfigAddPayload) (changed bool, err error) {
	s.mu.Lock()
	existing, had := s.cache[p.Key]
	if had && !existing.Tmp && existing.MD5 == p.MD5 {
		s.mu.Unlock()
		metrics.ConfigApplyTotal.WithLabelValues("set", "no_change").Inc()
		return false, nil
	}

	now := time.Now()
	cv := types.ConfigValue{Key: p.Key, Content: p.Content, MD5: p.MD5, Tmp: false, Version: p.HistoryID, UpdatedAt: now}
	s.cache[p.Key] = cv
	s.indexInsertLocked(p.Key)
	s.mu.Unlock()

	primaryKey := append([]byte(primaryPrefix), []byte(p.Key.Encode())...)
	primaryVal, encErr := encodeStoredValue(storedValue{Content: p.Content, MD5: p.MD5, Tmp: false, Version: p.HistoryID, UpdatedAt: now})
	if encErr != nil {
		return true, fmt.Errorf("%w: encode primary record: %v", coreerrors.ErrEncoding, encErr)
	}
	if err := s.kv.Put(primaryKey, primaryVal); err != nil {
		s.logger.Warn().Err(err).Str("encoded_key", p.Key.Encode()).Msg("primary write failed")
	}

	hist := types.ConfigHistoryEntry{Key: p.Key, Seq: p.HistoryID, Content: p.Content, MD5: p.MD5, Op: "set", Timestamp: now}
	histKey := historyKey(p.HistoryID)
	histVal, encErr := encodeHistoryEntry(hist)
	if encErr != nil {
		return true, fmt.Errorf("%w: encode history record: %v", coreerrors.ErrEncoding, encErr)
	}
	if err := s.kv.Put(histKey, histVal); err != nil {
		s.logger.Warn().Err(err).Uint64("history_id", p.HistoryID).Msg("history write failed")
	}

	metrics.ConfigApplyTotal.WithLabelValues("set", "applied").Inc()
	metrics.ConfigHistoryTotal.Inc()
	metrics.ConfigEntriesTotal.Set(float64(s.cacheLen()))

	for _, n := range s.notifiers {
		n.NotifyChange(p.Key)
	}
	return true, nil
}

// applyConfigRemove is idempotent: a missing key is not an error.
func (s *ConfigStore) applyConfigRemove(p types.ConfigRemovePayload) error {
	s.mu.Lock()
	_, had := s.cache[p.Key]
	delete(s.cache, p.Key)
	s.indexRemoveLocked(p.Key)
	s.mu.Unlock()

	if !had {
		return nil
	}

	primaryKey := append([]byte(primaryPrefix), []byte(p.Key.Encode())...)
	if err := s.kv.Delete(primaryKey); err != nil {
		s.logger.Warn().Err(err).Str("encoded_key", p.Key.Encode()).Msg("primary delete failed")
	}

	metrics.ConfigApplyTotal.WithLabelValues("delete", "applied").Inc()
	metrics.ConfigEntriesTotal.Set(float64(s.cacheLen()))

	for _, n := range s.notifiers {
		n.NotifyChange(p.Key)
	}
	return nil
}

// SetTmp writes a local-only, unreplicated value, bypassing Raft entirely.
// A later committed ConfigAdd for the same key always overwrites it, even
// when the md5 happens to match, per the tmp-flag invariant.
func (s *ConfigStore) SetTmp(key types.ConfigKey, content string) {
	md5sum := HashContent(content)
	s.mu.Lock()
	s.cache[key] = types.ConfigValue{Key: key, Content: content, MD5: md5sum, Tmp: true, UpdatedAt: time.Now()}
	s.indexInsertLocked(key)
	s.mu.Unlock()
}

// QueryParams pages the tenant index in ascending (group, data_id) order.
type QueryParams struct {
	Tenant         string
	GroupLike      string
	DataIDLike     string
	Offset         int
	Limit          int
	IncludeContent bool
}

// QueryResult is a page of matches plus the pre-paging total match count.
type QueryResult struct {
	Entries []types.ConfigValue
	Total   int
}

// Query returns a deterministically ordered page of the tenant index.
func (s *ConfigStore) Query(p QueryParams) QueryResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.tenantIndex[p.Tenant]
	matches := make([]types.ConfigValue, 0, len(set))
	for key := range set {
		if p.GroupLike != "" && !containsSubstr(key.Group, p.GroupLike) {
			continue
		}
		if p.DataIDLike != "" && !containsSubstr(key.DataID, p.DataIDLike) {
			continue
		}
		matches = append(matches, s.cache[key])
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Key.Group != matches[j].Key.Group {
			return matches[i].Key.Group < matches[j].Key.Group
		}
		return matches[i].Key.DataID < matches[j].Key.DataID
	})

	total := len(matches)
	start := p.Offset
	if start > total {
		start = total
	}
	end := start + p.Limit
	if p.Limit <= 0 || end > total {
		end = total
	}
	page := make([]types.ConfigValue, end-start)
	copy(page, matches[start:end])
	if !p.IncludeContent {
		for i := range page {
			page[i].Content = ""
		}
	}
	return QueryResult{Entries: page, Total: total}
}

func containsSubstr(haystack, needle string) bool {
	return len(needle) == 0 || indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	n, m := len(haystack), len(needle)
	if m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if haystack[i:i+m] == needle {
			return i
		}
	}
	return -1
}

func historyKey(seq uint64) []byte {
	buf := make([]byte, len(historyPrefix)+8)
	copy(buf, historyPrefix)
	binary.BigEndian.PutUint64(buf[len(historyPrefix):], seq)
	return buf
}
