package docs

import (
	"fmt"
	"path/filepath"

	"github.com/altowierigge/maestro/internal/core"
	"github.com/altowierigge/maestro/internal/logging"
)

// Recorder is a documentation collaborator with a closeable backend.
type Recorder interface {
	core.DocumentationCollaborator
	Close() error
}

// NewRecorder creates a documentation recorder for the given backend,
// "json" (default) or "sqlite".
func NewRecorder(backend, root string, logger *logging.Logger) (Recorder, error) {
	switch backend {
	case "", "json":
		return NewJSONRecorder(root, logger)
	case "sqlite":
		return NewSQLiteRecorder(filepath.Join(root, "docs.db"), logger)
	default:
		return nil, core.ErrConfiguration(core.CodeInvalidConfig,
			fmt.Sprintf("unknown documentation backend %q", backend))
	}
}
