package cache

import "time"

// EntryStatus reports the outcome of validating a cache entry.
type EntryStatus string

const (
	StatusValid               EntryStatus = "valid"
	StatusExpired             EntryStatus = "expired"
	StatusCorrupted           EntryStatus = "corrupted"
	StatusMissingDependencies EntryStatus = "missing_dependencies"
)

// EntryMetadata describes a cached artifact. Payload bytes live in a
// separate file; the metadata is persisted in the index document.
type EntryMetadata struct {
	CacheKey         string     `json:"cache_key"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	AgentType        string     `json:"agent_type"`
	PromptHash       string     `json:"prompt_hash"`
	Dependencies     []string   `json:"dependencies"`
	SessionID        string     `json:"session_id"`
	ValidationStatus string     `json:"validation_status"`
	ExpiryTime       *time.Time `json:"expiry_time,omitempty"`
	FileCount        int        `json:"file_count"`
	SizeBytes        int64      `json:"size_bytes"`
	AccessCount      int        `json:"access_count"`
	LastAccessed     *time.Time `json:"last_accessed,omitempty"`
	Tags             []string   `json:"tags"`
}

// Expired reports whether the entry is past its expiry time.
func (m *EntryMetadata) Expired(now time.Time) bool {
	return m.ExpiryTime != nil && now.After(*m.ExpiryTime)
}

// SetOptions carries the caller-supplied metadata for a Set call.
type SetOptions struct {
	AgentType        string
	SessionID        string
	ValidationStatus string
	FileCount        int
	Tags             []string

	// Dependencies lists cache keys this entry depends on. Cascading
	// invalidation of any of them removes this entry too.
	Dependencies []string

	// ExpiryHours overrides the store default. Zero means use the
	// default; NoExpiry disables expiry for this entry.
	ExpiryHours int
}

// NoExpiry disables expiry when used as SetOptions.ExpiryHours.
const NoExpiry = -1

// CleanupStats summarizes a cleanup sweep.
type CleanupStats struct {
	ExpiredCount   int   `json:"expired_count"`
	CorruptedCount int   `json:"corrupted_count"`
	BytesFreed     int64 `json:"bytes_freed"`
	KeptCount      int   `json:"kept_count"`
}
