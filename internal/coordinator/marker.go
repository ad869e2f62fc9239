package coordinator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/altowierigge/maestro/internal/core"
)

// resumeMarker persists the last-completed coordinator state alongside
// the cache. On resume the marker is only read and logged; it does not
// decide which states are skipped. Each state is skipped solely when
// its own cached artifacts are found.
type resumeMarker struct {
	SessionID     string                `json:"session_id"`
	LastCompleted core.CoordinatorPhase `json:"last_completed"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

func markerPath(dir, sessionID string) string {
	return filepath.Join(dir, "coordinator", sessionID+".json")
}

func loadMarker(dir, sessionID string) (*resumeMarker, error) {
	data, err := os.ReadFile(markerPath(dir, sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var marker resumeMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return nil, core.ErrState(core.CodeStateCorrupted, "resume marker unreadable").WithCause(err)
	}
	return &marker, nil
}

func saveMarker(dir string, marker *resumeMarker) error {
	path := markerPath(dir, marker.SessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	marker.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o600)
}
