package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/workforce-sim/workforce-sim/coord"
)

// Observer receives cache traffic notifications. The metric package
// provides a Prometheus-backed implementation; a nil observer is valid.
type Observer interface {
	OnHit(tier Tier)
	OnMiss()
	OnPromotion(from, to Tier)
	OnDemotion(from, to Tier)
	OnEviction(tier Tier)
}

// tierState is one level of the hierarchy. Each tier is guarded
// independently; multi-tier moves acquire tier locks in ascending order.
type tierState struct {
	mu        sync.RWMutex
	entries   map[string]*Entry
	usedBytes int64

	maxEntries    int
	maxBytes      int64
	maxEntryBytes int64
	policy        EvictionPolicy
}

// Manager owns the three cache tiers and implements placement, promotion,
// demotion, eviction and cascading invalidation.
//
// Locking protocol: the index mutex serializes key→tier lookups; each tier
// has its own RWMutex; structural moves (promotion, demotion, eviction
// chains, invalidation) hold every tier lock in ascending tier order so an
// entry is never absent from all tiers or present in two.
type Manager struct {
	tiers [3]*tierState

	indexMu sync.RWMutex
	index   map[string]Tier

	weights            ScoreWeights
	promotionThreshold float64
	demotionThreshold  float64

	codecs *codecRegistry
	comp   payloadCompressor
	store  PersistentStore

	observer Observer
	now      func() time.Time

	hits          atomic.Int64
	misses        atomic.Int64
	promotions    atomic.Int64
	demotions     atomic.Int64
	evictions     atomic.Int64
	invalidations atomic.Int64
}

// Option customizes Manager construction.
type Option func(*Manager)

// WithPersistentStore replaces the default in-memory persistent backing.
func WithPersistentStore(s PersistentStore) Option {
	return func(m *Manager) { m.store = s }
}

// WithObserver attaches a traffic observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithScoreWeights overrides the promotion score weights.
func WithScoreWeights(w ScoreWeights) Option {
	return func(m *Manager) { m.weights = w }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// withCompressor overrides the compression codec (tests).
func withCompressor(c payloadCompressor) Option {
	return func(m *Manager) { m.comp = c }
}

// NewManager builds a three-tier cache manager from the coordination
// cache configuration.
func NewManager(cfg coord.CacheConfig, opts ...Option) (*Manager, error) {
	comp, err := newZstdCompressor()
	if err != nil {
		return nil, err
	}
	m := &Manager{
		index:              make(map[string]Tier),
		weights:            DefaultScoreWeights(),
		promotionThreshold: cfg.PromotionThreshold,
		demotionThreshold:  cfg.DemotionThreshold,
		codecs:             newCodecRegistry(),
		comp:               comp,
		store:              NewMemoryStore(),
		now:                time.Now,
	}
	for i, tc := range []coord.TierConfig{cfg.Fast, cfg.Compressed, cfg.Persistent} {
		m.tiers[i] = &tierState{
			entries:       make(map[string]*Entry),
			maxEntries:    tc.MaxEntries,
			maxBytes:      tc.MaxBytes,
			maxEntryBytes: tc.MaxEntryBytes,
			policy:        ParseEvictionPolicy(tc.EvictionPolicy),
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// RegisterCodec installs a serialization codec for an entry type.
func (m *Manager) RegisterCodec(t EntryType, c Codec) { m.codecs.register(t, c) }

// PutOption customizes a single Put.
type PutOption func(*putOptions)

type putOptions struct {
	ttl         time.Duration
	dependsOn   []string
	invalidates []string
	lowPriority bool
}

// WithTTL sets an expiry on the entry.
func WithTTL(d time.Duration) PutOption {
	return func(o *putOptions) { o.ttl = d }
}

// WithDependsOn records the keys this entry was derived from; invalidating
// any of them cascades to this entry.
func WithDependsOn(keys ...string) PutOption {
	return func(o *putOptions) { o.dependsOn = append(o.dependsOn, keys...) }
}

// WithInvalidates lists keys made stale by this write; they are removed
// when the entry is stored.
func WithInvalidates(keys ...string) PutOption {
	return func(o *putOptions) { o.invalidates = append(o.invalidates, keys...) }
}

// WithLowPriority places the entry directly in the persistent tier.
func WithLowPriority() PutOption {
	return func(o *putOptions) { o.lowPriority = true }
}

const minKeyLength = 8

// Put serializes and stores a payload. It reports false when the payload
// cannot be placed (bad key, unknown type, serialization failure, or an
// unplaceable size); a full cache is handled by eviction, never by error.
func (m *Manager) Put(key string, payload any, typ EntryType, cost time.Duration, opts ...PutOption) bool {
	if len(key) < minKeyLength {
		logrus.Warnf("cache: rejecting key %q: shorter than %d chars", key, minKeyLength)
		return false
	}
	var po putOptions
	for _, opt := range opts {
		opt(&po)
	}

	codec, err := m.codecs.lookup(typ)
	if err != nil {
		logrus.Warnf("cache: %v", err)
		return false
	}
	raw, err := codec.Marshal(payload)
	if err != nil {
		logrus.Warnf("cache: marshal %q failed: %v", key, err)
		return false
	}

	now := m.now()
	e := &Entry{
		Key:              key,
		ContentHash:      hashPayload(raw),
		Type:             typ,
		Data:             raw,
		UncompressedSize: int64(len(raw)),
		CreatedAt:        now,
		LastAccess:       now,
		ComputationCost:  cost,
	}
	if po.ttl > 0 {
		e.ExpiresAt = now.Add(po.ttl)
	}
	if len(po.dependsOn) > 0 {
		e.DependsOn = make(map[string]struct{}, len(po.dependsOn))
		for _, k := range po.dependsOn {
			e.DependsOn[k] = struct{}{}
		}
	}
	if len(po.invalidates) > 0 {
		e.Invalidates = make(map[string]struct{}, len(po.invalidates))
		for _, k := range po.invalidates {
			e.Invalidates[k] = struct{}{}
		}
	}

	target := m.placementTier(e, po.lowPriority)
	if target != TierFast {
		m.compressEntry(e)
	}

	m.lockAll()
	defer m.unlockAll()

	// a re-put moves the key: drop the old entry first
	if old, ok := m.lookupLocked(key); ok {
		m.removeLocked(key, old)
	}
	for k := range e.Invalidates {
		if t, ok := m.lookupLocked(k); ok {
			m.removeLocked(k, t)
			m.invalidations.Add(1)
		}
	}
	return m.insertLocked(e, target)
}

// Get returns the decoded payload for key, updating access metadata via
// copy-on-write and opportunistically promoting hot entries.
func (m *Manager) Get(key string, typ EntryType) (any, bool) {
	// the index read and the tier lock race against concurrent moves;
	// retry until the picture is stable
	for attempt := 0; attempt < 3; attempt++ {
		m.indexMu.RLock()
		tier, ok := m.index[key]
		m.indexMu.RUnlock()
		if !ok {
			m.misses.Add(1)
			if m.observer != nil {
				m.observer.OnMiss()
			}
			return nil, false
		}

		ts := m.tiers[tier]
		ts.mu.Lock()
		e, present := ts.entries[key]
		if !present {
			ts.mu.Unlock()
			continue // moved between index read and tier lock
		}
		now := m.now()
		if e.Type != typ || e.Expired(now) {
			ts.mu.Unlock()
			if e.Expired(now) {
				m.Invalidate(key, false)
			}
			m.misses.Add(1)
			if m.observer != nil {
				m.observer.OnMiss()
			}
			return nil, false
		}

		updated := e.withAccess(now)
		ts.entries[key] = updated
		score := promotionScore(updated, m.weights, now)
		data := updated.Data
		compressed := updated.Compressed

		// the persistent payload is read while the tier lock is still
		// held: promotion out of the persistent tier deletes the backing
		// record, and every such move needs this lock
		if tier == TierPersistent {
			stored, ok := m.store.Load(key)
			if !ok {
				ts.mu.Unlock()
				logrus.Warnf("cache: persistent record for %q missing", key)
				m.misses.Add(1)
				if m.observer != nil {
					m.observer.OnMiss()
				}
				return nil, false
			}
			data = stored
		}
		ts.mu.Unlock()

		m.hits.Add(1)
		if m.observer != nil {
			m.observer.OnHit(tier)
		}

		if tier > TierFast && score >= m.promotionThreshold {
			m.promote(key, tier)
		}
		if compressed {
			var err error
			data, err = m.comp.decompress(data)
			if err != nil {
				logrus.Errorf("cache: decompress %q failed: %v", key, err)
				return nil, false
			}
		}
		codec, err := m.codecs.lookup(typ)
		if err != nil {
			return nil, false
		}
		payload, err := codec.Unmarshal(data)
		if err != nil {
			logrus.Errorf("cache: decode %q failed: %v", key, err)
			return nil, false
		}
		return payload, true
	}
	m.misses.Add(1)
	return nil, false
}

// Invalidate removes key. With cascade it also removes every entry whose
// DependsOn set transitively reaches key. Returns the count removed; an
// unknown key is not an error and returns 0.
func (m *Manager) Invalidate(key string, cascade bool) int {
	m.lockAll()
	defer m.unlockAll()

	tier, ok := m.lookupLocked(key)
	if !ok {
		return 0
	}
	removed := map[string]struct{}{key: {}}
	m.removeLocked(key, tier)

	if cascade {
		// BFS over reverse dependency edges until no entry depends on
		// anything already removed
		for {
			var next []string
			for _, ts := range m.tiers {
				for k, e := range ts.entries {
					if _, gone := removed[k]; gone {
						continue
					}
					for dep := range e.DependsOn {
						if _, hit := removed[dep]; hit {
							next = append(next, k)
							break
						}
					}
				}
			}
			if len(next) == 0 {
				break
			}
			for _, k := range next {
				if t, ok := m.lookupLocked(k); ok {
					m.removeLocked(k, t)
					removed[k] = struct{}{}
				}
			}
		}
	}
	n := len(removed)
	m.invalidations.Add(int64(n))
	return n
}

// PlacementReport summarizes one OptimizePlacement pass.
type PlacementReport struct {
	Examined int
	Promoted int
	Demoted  int
	Evicted  int
	Duration time.Duration
}

// OptimizePlacement rescores every entry and executes the promotions and
// demotions the scores call for.
func (m *Manager) OptimizePlacement() PlacementReport {
	start := m.now()
	m.lockAll()

	now := m.now()
	var report PlacementReport
	type move struct {
		key      string
		from, to Tier
	}
	var moves []move
	for ti, ts := range m.tiers {
		tier := Tier(ti)
		for k, e := range ts.entries {
			report.Examined++
			score := promotionScore(e, m.weights, now)
			switch {
			case tier > TierFast && score >= m.promotionThreshold:
				moves = append(moves, move{k, tier, tier - 1})
			case tier < TierPersistent && score < m.demotionThreshold:
				moves = append(moves, move{k, tier, tier + 1})
			}
		}
	}
	evictedBefore := m.evictions.Load()
	for _, mv := range moves {
		if !m.moveLocked(mv.key, mv.from, mv.to) {
			continue
		}
		if mv.to < mv.from {
			report.Promoted++
			m.promotions.Add(1)
			if m.observer != nil {
				m.observer.OnPromotion(mv.from, mv.to)
			}
		} else {
			report.Demoted++
			m.demotions.Add(1)
			if m.observer != nil {
				m.observer.OnDemotion(mv.from, mv.to)
			}
		}
	}
	report.Evicted = int(m.evictions.Load() - evictedBefore)
	m.unlockAll()

	report.Duration = m.now().Sub(start)
	logrus.Debugf("cache: placement pass examined=%d promoted=%d demoted=%d evicted=%d",
		report.Examined, report.Promoted, report.Demoted, report.Evicted)
	return report
}

// Clear empties one tier and returns the number of entries removed.
func (m *Manager) Clear(tier Tier) int {
	m.lockAll()
	defer m.unlockAll()
	return m.clearLocked(tier)
}

// ClearAll empties every tier.
func (m *Manager) ClearAll() int {
	m.lockAll()
	defer m.unlockAll()
	n := 0
	for t := TierFast; t <= TierPersistent; t++ {
		n += m.clearLocked(t)
	}
	return n
}

// TierStats describes one tier's occupancy.
type TierStats struct {
	Entries   int
	UsedBytes int64
}

// Stats is a point-in-time view of cache state and traffic counters.
type Stats struct {
	Tiers         map[Tier]TierStats
	Hits          int64
	Misses        int64
	Promotions    int64
	Demotions     int64
	Evictions     int64
	Invalidations int64
}

// HitRate returns hits/(hits+misses), or 0 before any traffic.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats snapshots occupancy and counters.
func (m *Manager) Stats() Stats {
	s := Stats{
		Tiers:         make(map[Tier]TierStats, 3),
		Hits:          m.hits.Load(),
		Misses:        m.misses.Load(),
		Promotions:    m.promotions.Load(),
		Demotions:     m.demotions.Load(),
		Evictions:     m.evictions.Load(),
		Invalidations: m.invalidations.Load(),
	}
	for ti, ts := range m.tiers {
		ts.mu.RLock()
		s.Tiers[Tier(ti)] = TierStats{Entries: len(ts.entries), UsedBytes: ts.usedBytes}
		ts.mu.RUnlock()
	}
	return s
}

// TierOf reports which tier currently holds key.
func (m *Manager) TierOf(key string) (Tier, bool) {
	m.indexMu.RLock()
	defer m.indexMu.RUnlock()
	t, ok := m.index[key]
	return t, ok
}

// ---- internals (all *Locked helpers require lockAll to be held) ----

func (m *Manager) lockAll() {
	for _, ts := range m.tiers {
		ts.mu.Lock()
	}
	m.indexMu.Lock()
}

func (m *Manager) unlockAll() {
	m.indexMu.Unlock()
	for i := len(m.tiers) - 1; i >= 0; i-- {
		m.tiers[i].mu.Unlock()
	}
}

func (m *Manager) lookupLocked(key string) (Tier, bool) {
	t, ok := m.index[key]
	return t, ok
}

// placementTier decides the initial tier for a new entry. Size and
// computation cost jointly decide: anything over the fast tier's per-entry
// budget is compressed, and cheap-to-recompute entries near the budget are
// not worth fast-tier space either.
func (m *Manager) placementTier(e *Entry, lowPriority bool) Tier {
	if lowPriority {
		return TierPersistent
	}
	budget := m.tiers[TierFast].maxEntryBytes
	if budget > 0 {
		if e.UncompressedSize > budget {
			return TierCompressed
		}
		if e.ComputationCost < time.Millisecond && e.UncompressedSize > budget/2 {
			return TierCompressed
		}
	}
	return TierFast
}

// compressEntry compresses the entry payload in place, falling back to the
// raw bytes when compression fails.
func (m *Manager) compressEntry(e *Entry) {
	packed, err := m.comp.compress(e.Data)
	if err != nil {
		logrus.Warnf("cache: compress %q failed, storing uncompressed: %v", e.Key, err)
		e.CompressionFailed = true
		return
	}
	e.Data = packed
	e.CompressedSize = int64(len(packed))
	e.Compressed = true
}

// insertLocked places the entry in tier, evicting as needed. Eviction
// demotes the victim one tier down; a persistent-tier victim is dropped.
func (m *Manager) insertLocked(e *Entry, tier Tier) bool {
	ts := m.tiers[tier]
	size := e.StoredBytes()
	if ts.maxBytes > 0 && size > ts.maxBytes {
		logrus.Warnf("cache: %q (%d bytes) exceeds %s tier budget, refusing", e.Key, size, tier)
		return false
	}

	for (ts.maxEntries > 0 && len(ts.entries) >= ts.maxEntries) ||
		(ts.maxBytes > 0 && ts.usedBytes+size > ts.maxBytes) {
		victim := selectVictim(ts.entries, ts.policy, m.weights, m.now())
		if victim == "" {
			return false
		}
		m.evictLocked(victim, tier)
	}

	stored := e.withTier(tier)
	if tier == TierPersistent {
		if err := m.store.Store(e.Key, stored.Data); err != nil {
			logrus.Warnf("cache: persistent store %q failed: %v", e.Key, err)
			return false
		}
		stored.Data = nil
	}
	ts.entries[e.Key] = stored
	ts.usedBytes += size
	m.index[e.Key] = tier
	return true
}

// removeLocked deletes the entry from its tier and the index.
func (m *Manager) removeLocked(key string, tier Tier) {
	ts := m.tiers[tier]
	if e, ok := ts.entries[key]; ok {
		ts.usedBytes -= e.StoredBytes()
		delete(ts.entries, key)
	}
	if tier == TierPersistent {
		m.store.Delete(key)
	}
	delete(m.index, key)
}

// evictLocked pushes the victim one tier down, dropping it entirely when
// evicted from the persistent tier.
func (m *Manager) evictLocked(key string, tier Tier) {
	m.evictions.Add(1)
	if m.observer != nil {
		m.observer.OnEviction(tier)
	}
	if tier == TierPersistent {
		m.removeLocked(key, tier)
		return
	}
	// a victim the next tier cannot take is dropped outright, keeping the
	// eviction loop terminating
	if !m.moveLocked(key, tier, tier+1) {
		m.removeLocked(key, tier)
	}
}

// moveLocked relocates an entry between tiers as a single step: removal
// from the source and insertion into the destination happen under the same
// lock set, so no observer sees the entry absent or duplicated.
func (m *Manager) moveLocked(key string, from, to Tier) bool {
	src := m.tiers[from]
	e, ok := src.entries[key]
	if !ok {
		return false
	}
	var data []byte
	if from == TierPersistent {
		data, ok = m.store.Load(key)
		if !ok {
			m.removeLocked(key, from)
			return false
		}
	} else {
		data = e.Data
	}

	moved := *e
	moved.Data = data

	// compression state follows the destination: fast holds raw bytes,
	// compressed/persistent hold packed bytes
	if to == TierFast && moved.Compressed {
		raw, err := m.comp.decompress(moved.Data)
		if err != nil {
			logrus.Errorf("cache: decompress on promote %q failed: %v", key, err)
			return false
		}
		moved.Data = raw
		moved.Compressed = false
		moved.CompressedSize = 0
	} else if to != TierFast && !moved.Compressed && !moved.CompressionFailed {
		m.compressEntry(&moved)
	}

	// the entry must never vanish mid-move: refuse before removing the
	// source when the destination cannot hold it
	dst := m.tiers[to]
	if dst.maxBytes > 0 && moved.StoredBytes() > dst.maxBytes {
		return false
	}

	m.removeLocked(key, from)
	return m.insertLocked(&moved, to)
}

// promote moves a hot entry one tier up after its Get released the tier
// lock; the move re-verifies residency under the full lock set.
func (m *Manager) promote(key string, from Tier) {
	m.lockAll()
	defer m.unlockAll()
	if t, ok := m.lookupLocked(key); !ok || t != from {
		return
	}
	if m.moveLocked(key, from, from-1) {
		m.promotions.Add(1)
		if m.observer != nil {
			m.observer.OnPromotion(from, from-1)
		}
	}
}

func (m *Manager) clearLocked(tier Tier) int {
	ts := m.tiers[tier]
	n := len(ts.entries)
	for k := range ts.entries {
		if tier == TierPersistent {
			m.store.Delete(k)
		}
		delete(m.index, k)
	}
	ts.entries = make(map[string]*Entry)
	ts.usedBytes = 0
	return n
}
