package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/altowierigge/maestro/internal/core"
	"github.com/altowierigge/maestro/internal/events"
	"github.com/altowierigge/maestro/internal/logging"
)

// Store is a keyed artifact store with metadata, dependency edges, and
// cascading invalidation. Payloads are written atomically (temp, fsync,
// rename) before the index is updated; readers never observe a torn
// payload. All mutations are serialized by an internal lock.
type Store struct {
	root          string
	defaultExpiry time.Duration

	index      map[string]*EntryMetadata
	dependents map[string]map[string]bool // key -> keys that depend on it

	stats  Stats
	logger *logging.Logger
	bus    *events.Bus
	mu     sync.Mutex

	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultExpiry sets the default entry lifetime. Zero disables the
// default expiry entirely.
func WithDefaultExpiry(d time.Duration) Option {
	return func(s *Store) {
		s.defaultExpiry = d
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithBus attaches an event bus for cache observations.
func WithBus(bus *events.Bus) Option {
	return func(s *Store) {
		s.bus = bus
	}
}

// NewStore opens (or creates) a cache rooted at the given directory and
// loads the persisted index.
func NewStore(root string, opts ...Option) (*Store, error) {
	s := &Store{
		root:          root,
		defaultExpiry: 72 * time.Hour,
		index:         make(map[string]*EntryMetadata),
		dependents:    make(map[string]map[string]bool),
		logger:        logging.NewNop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, dir := range []string{"metadata", "brainstorming", "architecture", "phases", "integration", "files"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o750); err != nil {
			return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
		}
	}

	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	s.rebuildDependents()

	s.logger.Info("cache store initialized", "root", root, "entries", len(s.index))
	return s, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// Get returns the payload for a key, or (nil, false) on a miss. A hit
// requires the payload to be readable and unexpired; with
// validateDependencies, every direct dependency must additionally be
// readable and unexpired (one level, not recursive). Any failed check
// invalidates the entry in place.
func (s *Store) Get(key string, validateDependencies bool) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.index[key]
	if !ok {
		s.stats.Misses++
		s.publish(events.TypeCacheMiss, "", key, nil)
		return nil, false
	}

	if status := s.validateEntry(meta, validateDependencies); status != StatusValid {
		s.logger.Warn("invalid cache entry", "key", key, "status", string(status))
		s.invalidateEntry(key)
		s.saveIndex()
		s.stats.Misses++
		s.publish(events.TypeCacheMiss, meta.SessionID, key, nil)
		return nil, false
	}

	data, err := os.ReadFile(s.payloadPath(key))
	if err != nil {
		s.invalidateEntry(key)
		s.saveIndex()
		s.stats.Misses++
		return nil, false
	}

	now := s.now()
	meta.AccessCount++
	meta.LastAccessed = &now
	s.stats.Hits++
	s.stats.APICallsSaved++
	s.publish(events.TypeCacheHit, meta.SessionID, key, nil)

	out := make(json.RawMessage, len(data))
	copy(out, data)
	return out, true
}

// GetString returns a string payload, unwrapping the {"content": ...}
// envelope used for bare strings.
func (s *Store) GetString(key string, validateDependencies bool) (string, bool) {
	raw, ok := s.Get(key, validateDependencies)
	if !ok {
		return "", false
	}
	var envelope struct {
		Content *string `json:"content"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Content != nil {
		return *envelope.Content, true
	}
	return string(raw), true
}

// GetJSON unmarshals the payload for a key into v.
func (s *Store) GetJSON(key string, validateDependencies bool, v any) bool {
	raw, ok := s.Get(key, validateDependencies)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.logger.Warn("cache payload unmarshal failed", "key", key, "error", err)
		return false
	}
	return true
}

// Set stores a value with metadata and dependency tracking. String
// values are wrapped in a {"content": ...} envelope; everything else is
// marshaled as JSON. Declared dependencies that would make the graph
// cyclic are rejected.
func (s *Store) Set(key string, value any, opts SetOptions) error {
	payload, err := marshalPayload(value)
	if err != nil {
		return core.ErrValidation(core.CodeParseFailed, "cache payload not serializable").WithCause(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkForCycle(key, opts.Dependencies); err != nil {
		return err
	}

	path := s.payloadPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating cache directory for %s: %w", key, err)
	}
	if err := renameio.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("writing cache payload %s: %w", key, err)
	}

	now := s.now()
	hash := sha256.Sum256(payload)
	meta := &EntryMetadata{
		CacheKey:         key,
		CreatedAt:        now,
		UpdatedAt:        now,
		AgentType:        opts.AgentType,
		PromptHash:       hex.EncodeToString(hash[:]),
		Dependencies:     append([]string(nil), opts.Dependencies...),
		SessionID:        opts.SessionID,
		ValidationStatus: opts.ValidationStatus,
		FileCount:        opts.FileCount,
		SizeBytes:        int64(len(payload)),
		Tags:             append([]string(nil), opts.Tags...),
	}
	if prev, ok := s.index[key]; ok {
		meta.CreatedAt = prev.CreatedAt
		meta.AccessCount = prev.AccessCount
	}

	switch {
	case opts.ExpiryHours == NoExpiry:
		// No expiry for this entry.
	case opts.ExpiryHours > 0:
		t := now.Add(time.Duration(opts.ExpiryHours) * time.Hour)
		meta.ExpiryTime = &t
	case s.defaultExpiry > 0:
		t := now.Add(s.defaultExpiry)
		meta.ExpiryTime = &t
	}

	// Unlink the previous dependency edges before recording the new ones.
	if prev, ok := s.index[key]; ok {
		for _, dep := range prev.Dependencies {
			delete(s.dependents[dep], key)
		}
	}
	s.index[key] = meta
	for _, dep := range opts.Dependencies {
		if s.dependents[dep] == nil {
			s.dependents[dep] = make(map[string]bool)
		}
		s.dependents[dep][key] = true
	}

	s.saveIndex()
	s.logger.Info("cached", "key", key, "size_bytes", meta.SizeBytes)
	return nil
}

// Invalidate removes an entry. With cascade, every key whose dependency
// closure transitively includes the key is removed first. The removed
// keys are returned.
func (s *Store) Invalidate(key string, cascade bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make([]string, 0, 1)
	if cascade {
		for _, dep := range s.transitiveDependents(key) {
			s.invalidateEntry(dep)
			removed = append(removed, dep)
		}
	}
	s.invalidateEntry(key)
	removed = append(removed, key)

	s.stats.Invalidations += int64(len(removed))
	s.saveIndex()
	s.publish(events.TypeCacheInvalidated, "", key, removed)
	s.logger.Info("invalidated cache entries", "count", len(removed))
	return removed
}

// Cleanup sweeps all entries, removing expired and corrupted ones, and
// rewrites the persisted index.
func (s *Store) Cleanup() CleanupStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats CleanupStats
	now := s.now()

	keys := make([]string, 0, len(s.index))
	for key := range s.index {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		meta := s.index[key]
		switch {
		case meta.Expired(now):
			stats.ExpiredCount++
			stats.BytesFreed += meta.SizeBytes
			s.invalidateEntry(key)
		case s.corrupted(key):
			stats.CorruptedCount++
			stats.BytesFreed += meta.SizeBytes
			s.invalidateEntry(key)
		default:
			stats.KeptCount++
		}
	}

	s.saveIndex()
	s.logger.Info("cache cleanup completed",
		"expired", stats.ExpiredCount,
		"corrupted", stats.CorruptedCount,
		"kept", stats.KeptCount,
	)
	return stats
}

// Entries returns a snapshot of all entry metadata.
func (s *Store) Entries() []EntryMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]EntryMetadata, 0, len(s.index))
	for _, meta := range s.index {
		out = append(out, *meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CacheKey < out[j].CacheKey })
	return out
}

// Close persists the index.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveIndexErr()
}

// validateEntry checks payload existence, expiry, and optionally the
// direct validity of each declared dependency. Dependency validation is
// deliberately one level deep.
func (s *Store) validateEntry(meta *EntryMetadata, validateDependencies bool) EntryStatus {
	if meta.Expired(s.now()) {
		return StatusExpired
	}
	if _, err := os.Stat(s.payloadPath(meta.CacheKey)); err != nil {
		return StatusCorrupted
	}
	if validateDependencies {
		for _, dep := range meta.Dependencies {
			depMeta, ok := s.index[dep]
			if !ok {
				return StatusMissingDependencies
			}
			if s.validateEntry(depMeta, false) != StatusValid {
				return StatusMissingDependencies
			}
		}
	}
	return StatusValid
}

// invalidateEntry removes one entry and its graph edges. Callers hold
// the lock and are responsible for persisting the index afterwards.
func (s *Store) invalidateEntry(key string) {
	meta, ok := s.index[key]
	if !ok {
		return
	}
	_ = os.Remove(s.payloadPath(key))
	for _, dep := range meta.Dependencies {
		delete(s.dependents[dep], key)
	}
	delete(s.dependents, key)
	delete(s.index, key)
}

// transitiveDependents returns every key whose dependency closure
// includes the given key, leaves-last.
func (s *Store) transitiveDependents(key string) []string {
	seen := map[string]bool{key: true}
	queue := []string{key}
	result := make([]string, 0)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		deps := make([]string, 0, len(s.dependents[current]))
		for dep := range s.dependents[current] {
			deps = append(deps, dep)
		}
		sort.Strings(deps)
		for _, dep := range deps {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			result = append(result, dep)
			queue = append(queue, dep)
		}
	}
	return result
}

// checkForCycle rejects dependency declarations whose closure reaches
// back to the key being set.
func (s *Store) checkForCycle(key string, deps []string) error {
	seen := make(map[string]bool)
	queue := append([]string(nil), deps...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == key {
			return core.ErrConfiguration(core.CodeCacheCycle,
				fmt.Sprintf("dependencies of %s transitively include itself", key))
		}
		if seen[current] {
			continue
		}
		seen[current] = true
		if meta, ok := s.index[current]; ok {
			queue = append(queue, meta.Dependencies...)
		}
	}
	return nil
}

func (s *Store) corrupted(key string) bool {
	data, err := os.ReadFile(s.payloadPath(key))
	if err != nil {
		return true
	}
	return !json.Valid(data)
}

func (s *Store) payloadPath(key string) string {
	return filepath.Join(s.root, pathForKey(key))
}

func (s *Store) loadIndex() error {
	path := filepath.Join(s.root, indexPath)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading cache index: %w", err)
	}
	index := make(map[string]*EntryMetadata)
	if err := json.Unmarshal(data, &index); err != nil {
		s.logger.Warn("cache index unreadable, starting empty", "error", err)
		return nil
	}
	s.index = index
	return nil
}

func (s *Store) rebuildDependents() {
	s.dependents = make(map[string]map[string]bool)
	for key, meta := range s.index {
		for _, dep := range meta.Dependencies {
			if s.dependents[dep] == nil {
				s.dependents[dep] = make(map[string]bool)
			}
			s.dependents[dep][key] = true
		}
	}
}

func (s *Store) saveIndex() {
	if err := s.saveIndexErr(); err != nil {
		s.logger.Error("failed to save cache index", "error", err)
	}
}

func (s *Store) saveIndexErr() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(filepath.Join(s.root, indexPath), data, 0o600)
}

func (s *Store) publish(eventType, sessionID, key string, keys []string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.NewCacheEvent(eventType, sessionID, key, keys))
}

func marshalPayload(value any) ([]byte, error) {
	if str, ok := value.(string); ok {
		return json.Marshal(map[string]string{"content": str})
	}
	return json.MarshalIndent(value, "", "  ")
}
