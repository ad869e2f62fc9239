package docs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/altowierigge/maestro/internal/core"
	"github.com/altowierigge/maestro/internal/logging"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS phase_docs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	phase_name  TEXT NOT NULL,
	doc         TEXT NOT NULL,
	created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_phase_docs_session ON phase_docs(session_id);

CREATE TABLE IF NOT EXISTS architecture_plans (
	session_id  TEXT PRIMARY KEY,
	plan        TEXT NOT NULL,
	updated_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteRecorder stores documentation in a SQLite database. Phase
// records are append-only rows; the architecture plan is upserted per
// session as planning refines it.
type SQLiteRecorder struct {
	db     *sql.DB
	logger *logging.Logger
	mu     sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the documentation database.
func NewSQLiteRecorder(dbPath string, logger *logging.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating documentation directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening documentation database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing documentation schema: %w", err)
	}
	return &SQLiteRecorder{db: db, logger: logger}, nil
}

// RecordPhase appends one phase record for a session.
func (r *SQLiteRecorder) RecordPhase(ctx context.Context, sessionID string, doc core.PhaseDocumentation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO phase_docs (session_id, phase_name, doc) VALUES (?, ?, ?)`,
		sessionID, doc.PhaseName, string(data),
	)
	if err != nil {
		return fmt.Errorf("recording phase %s: %w", doc.PhaseName, err)
	}
	r.logger.Info("phase documented", "session_id", sessionID, "phase", doc.PhaseName)
	return nil
}

// PhaseDocs returns all phase records for a session in append order.
func (r *SQLiteRecorder) PhaseDocs(ctx context.Context, sessionID string) ([]core.PhaseDocumentation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT doc FROM phase_docs WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []core.PhaseDocumentation
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var doc core.PhaseDocumentation
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			r.logger.Warn("unreadable phase record skipped", "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ArchitecturePlan returns the session's plan, or nil when absent.
func (r *SQLiteRecorder) ArchitecturePlan(ctx context.Context, sessionID string) (*core.ArchitecturePlan, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT plan FROM architecture_plans WHERE session_id = ?`,
		sessionID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var plan core.ArchitecturePlan
	if err := json.Unmarshal([]byte(data), &plan); err != nil {
		return nil, fmt.Errorf("unreadable architecture plan: %w", err)
	}
	return &plan, nil
}

// SaveArchitecturePlan upserts the session's plan.
func (r *SQLiteRecorder) SaveArchitecturePlan(ctx context.Context, plan *core.ArchitecturePlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO architecture_plans (session_id, plan, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(session_id) DO UPDATE SET plan = excluded.plan, updated_at = CURRENT_TIMESTAMP`,
		plan.SessionID, string(data),
	)
	return err
}

// ImplementationGuide returns the plan entry for a micro-phase, or an
// empty map when the plan has none.
func (r *SQLiteRecorder) ImplementationGuide(ctx context.Context, sessionID, phaseID string) (map[string]any, error) {
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

// Close closes the database.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
