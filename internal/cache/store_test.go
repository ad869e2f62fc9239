package cache

import (
	"encoding/json"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestStore_SetGet_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("A", "hello", SetOptions{AgentType: "manager", SessionID: "s1"}))

	got, ok := store.GetString("A", false)
	require.True(t, ok)
	assert.Equal(t, "hello", got)
}

func TestStore_Set_Overwrite(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("A", "v1", SetOptions{}))
	require.NoError(t, store.Set("A", "v2", SetOptions{}))

	got, ok := store.GetString("A", false)
	require.True(t, ok)
	assert.Equal(t, "v2", got)
}

func TestStore_Get_Miss(t *testing.T) {
	store := newTestStore(t)

	_, ok := store.Get("missing", false)
	assert.False(t, ok)
	assert.Equal(t, int64(1), store.StatsSnapshot().Misses)
}

func TestStore_GetJSON(t *testing.T) {
	store := newTestStore(t)

	files := map[string]string{"main.go": "package main"}
	require.NoError(t, store.Set(PhaseCodeKey("phase_001"), files, SetOptions{FileCount: 1}))

	var got map[string]string
	require.True(t, store.GetJSON(PhaseCodeKey("phase_001"), false, &got))
	assert.Equal(t, files, got)
}

func TestStore_Expiry(t *testing.T) {
	store := newTestStore(t)
	current := time.Now()
	store.now = func() time.Time { return current }

	require.NoError(t, store.Set("A", "v", SetOptions{ExpiryHours: 1}))

	_, ok := store.Get("A", false)
	require.True(t, ok)

	current = current.Add(2 * time.Hour)
	_, ok = store.Get("A", false)
	assert.False(t, ok, "expired entry must miss")

	// Invalidated in place: gone even after the clock rolls back.
	current = current.Add(-2 * time.Hour)
	_, ok = store.Get("A", false)
	assert.False(t, ok)
}

func TestStore_NoExpiry(t *testing.T) {
	store := newTestStore(t)
	current := time.Now()
	store.now = func() time.Time { return current }

	require.NoError(t, store.Set("A", "v", SetOptions{ExpiryHours: NoExpiry}))
	current = current.Add(1000 * time.Hour)

	_, ok := store.Get("A", false)
	assert.True(t, ok)
}

func TestStore_DependencyValidation_MissingDependency(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("A", "a", SetOptions{}))
	require.NoError(t, store.Set("B", "b", SetOptions{Dependencies: []string{"A"}}))

	store.Invalidate("A", false)

	_, ok := store.Get("B", true)
	assert.False(t, ok, "entry with missing dependency is invalid")

	// B was invalidated in place.
	_, ok = store.Get("B", false)
	assert.False(t, ok)
}

func TestStore_DependencyValidation_OneLevelOnly(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("A", "a", SetOptions{}))
	require.NoError(t, store.Set("B", "b", SetOptions{Dependencies: []string{"A"}}))
	require.NoError(t, store.Set("C", "c", SetOptions{Dependencies: []string{"B"}}))

	// Corrupt A's payload: B's direct validity check does not read
	// payload content of A's own dependencies, only A's.
	require.NoError(t, os.Remove(store.payloadPath("A")))

	// C validates B directly; B's payload is fine, so C still hits.
	_, ok := store.Get("C", true)
	assert.True(t, ok, "dependency validation is one level deep")

	// B itself validates A, which is now corrupted.
	_, ok = store.Get("B", true)
	assert.False(t, ok)
}

func TestStore_SkipDependencyValidation(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("A", "a", SetOptions{}))
	require.NoError(t, store.Set("B", "b", SetOptions{Dependencies: []string{"A"}}))
	store.Invalidate("A", false)

	_, ok := store.Get("B", false)
	assert.True(t, ok, "validation disabled ignores dependencies")
}

func TestStore_Invalidate_Cascade(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("A", "a", SetOptions{}))
	require.NoError(t, store.Set("B", "b", SetOptions{Dependencies: []string{"A"}}))
	require.NoError(t, store.Set("C", "c", SetOptions{Dependencies: []string{"B"}}))

	removed := store.Invalidate("A", true)
	sort.Strings(removed)
	assert.Equal(t, []string{"A", "B", "C"}, removed)

	for _, key := range []string{"A", "B", "C"} {
		_, ok := store.Get(key, false)
		assert.False(t, ok, "key %s must be gone", key)
	}
}

func TestStore_Invalidate_NoCascade(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("A", "a", SetOptions{}))
	require.NoError(t, store.Set("B", "b", SetOptions{Dependencies: []string{"A"}}))

	removed := store.Invalidate("A", false)
	assert.Equal(t, []string{"A"}, removed)
}

func TestStore_Set_RejectsDependencyCycle(t *testing.T) {
	store := newTestStore(t)

	err := store.Set("A", "a", SetOptions{Dependencies: []string{"A"}})
	require.Error(t, err, "direct self-dependency")

	require.NoError(t, store.Set("A", "a", SetOptions{}))
	require.NoError(t, store.Set("B", "b", SetOptions{Dependencies: []string{"A"}}))
	err = store.Set("A", "a2", SetOptions{Dependencies: []string{"B"}})
	require.Error(t, err, "transitive cycle through B")
}

func TestStore_Cleanup(t *testing.T) {
	store := newTestStore(t)
	current := time.Now()
	store.now = func() time.Time { return current }

	require.NoError(t, store.Set("expired", "v", SetOptions{ExpiryHours: 1}))
	require.NoError(t, store.Set("kept", "v", SetOptions{ExpiryHours: 100}))
	require.NoError(t, store.Set("corrupt", "v", SetOptions{ExpiryHours: 100}))

	require.NoError(t, os.WriteFile(store.payloadPath("corrupt"), []byte("{not json"), 0o600))
	current = current.Add(2 * time.Hour)

	stats := store.Cleanup()
	assert.Equal(t, 1, stats.ExpiredCount)
	assert.Equal(t, 1, stats.CorruptedCount)
	assert.Equal(t, 1, stats.KeptCount)
	assert.Greater(t, stats.BytesFreed, int64(0))
}

func TestStore_PersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("A", "persisted", SetOptions{AgentType: "manager"}))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	got, ok := reopened.GetString("A", false)
	require.True(t, ok)
	assert.Equal(t, "persisted", got)

	entries := reopened.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "manager", entries[0].AgentType)
}

func TestStore_AccessStats(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("A", "v", SetOptions{}))
	for i := 0; i < 3; i++ {
		_, ok := store.Get("A", false)
		require.True(t, ok)
	}

	entries := store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].AccessCount)
	assert.NotNil(t, entries[0].LastAccessed)

	stats := store.StatsSnapshot()
	assert.Equal(t, int64(3), stats.Hits)
	assert.Equal(t, int64(3), stats.APICallsSaved)
}

func TestStore_PayloadEnvelope(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("A", "bare string", SetOptions{}))
	raw, ok := store.Get("A", false)
	require.True(t, ok)

	var envelope map[string]string
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, "bare string", envelope["content"])
}
