// Package docs implements the documentation collaborator: an
// append-only per-session phase log plus the architecture plan file.
// Two backends are provided, JSON files and SQLite, selected by the
// factory.
package docs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/altowierigge/maestro/internal/core"
	"github.com/altowierigge/maestro/internal/logging"
)

// JSONRecorder stores documentation as JSON files under
// {root}/sessions/{session}/. Phase records are numbered to preserve
// append order and never rewritten.
type JSONRecorder struct {
	root   string
	logger *logging.Logger
	mu     sync.Mutex
}

// NewJSONRecorder creates a JSON-file documentation recorder.
func NewJSONRecorder(root string, logger *logging.Logger) (*JSONRecorder, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("creating documentation root: %w", err)
	}
	return &JSONRecorder{root: root, logger: logger}, nil
}

// RecordPhase appends one phase record for a session.
func (r *JSONRecorder) RecordPhase(_ context.Context, sessionID string, doc core.PhaseDocumentation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := r.phasesDir(sessionID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	existing, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%03d_%s.json", len(existing)+1, sanitizeName(doc.PhaseName))

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
		return err
	}
	r.logger.Info("phase documented", "session_id", sessionID, "phase", doc.PhaseName)
	return nil
}

// PhaseDocs returns all phase records for a session in append order.
func (r *JSONRecorder) PhaseDocs(_ context.Context, sessionID string) ([]core.PhaseDocumentation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := r.phasesDir(sessionID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	docs := make([]core.PhaseDocumentation, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var doc core.PhaseDocumentation
		if err := json.Unmarshal(data, &doc); err != nil {
			r.logger.Warn("unreadable phase record skipped", "file", name, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ArchitecturePlan returns the session's plan file, or nil when absent.
func (r *JSONRecorder) ArchitecturePlan(_ context.Context, sessionID string) (*core.ArchitecturePlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.planPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var plan core.ArchitecturePlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("unreadable architecture plan: %w", err)
	}
	return &plan, nil
}

// SaveArchitecturePlan writes the session's plan file.
func (r *JSONRecorder) SaveArchitecturePlan(_ context.Context, plan *core.ArchitecturePlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.planPath(plan.SessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o600)
}

// ImplementationGuide returns the plan entry for a micro-phase, or an
// empty map when the plan has none.
func (r *JSONRecorder) ImplementationGuide(ctx context.Context, sessionID, phaseID string) (map[string]any, error) {
	plan, err := r.ArchitecturePlan(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return map[string]any{}, nil
	}
	if guide := plan.GuideForPhase(phaseID); guide != nil {
		return guide, nil
	}
	return map[string]any{}, nil
}

// Close is a no-op for the JSON backend.
func (r *JSONRecorder) Close() error {
	return nil
}

func (r *JSONRecorder) phasesDir(sessionID string) string {
	return filepath.Join(r.root, "sessions", sanitizeName(sessionID), "phases")
}

func (r *JSONRecorder) planPath(sessionID string) string {
	return filepath.Join(r.root, "sessions", sanitizeName(sessionID), "architecture_plan.json")
}

func sanitizeName(name string) string {
	replacer := strings.NewReplacer("/", "_", ":", "_", " ", "_", "\\", "_", "..", "_")
	return strings.ToLower(replacer.Replace(name))
}
