package engine

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/altowierigge/maestro/internal/logging"
)

// ActiveWorkflowName is the file that takes precedence over the default
// workflow when present in the workflows directory. Switching workflows
// is done by rewriting this file.
const ActiveWorkflowName = "active.yaml"

// ResolveWorkflowPath returns the active workflow file when one exists
// in the directory of the given path, the given path otherwise.
func ResolveWorkflowPath(path string) string {
	active := filepath.Join(filepath.Dir(path), ActiveWorkflowName)
	if _, err := LoadDefinition(active); err == nil {
		return active
	}
	return path
}

// Watcher observes a workflows directory and reloads the definition
// when the active workflow file is created or rewritten.
type Watcher struct {
	dir    string
	logger *logging.Logger
	onLoad func(*WorkflowDefinition)
}

// NewWatcher creates a workflow file watcher. onLoad receives each
// successfully loaded definition.
func NewWatcher(dir string, logger *logging.Logger, onLoad func(*WorkflowDefinition)) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{dir: dir, logger: logger, onLoad: onLoad}
}

// Run watches until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info("watching workflow directory", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != ActiveWorkflowName {
				continue
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			def, err := LoadDefinition(event.Name)
			if err != nil {
				w.logger.Warn("active workflow not loadable", "error", err)
				continue
			}
			w.logger.Info("active workflow switched", "workflow", def.Name, "version", def.Version)
			if w.onLoad != nil {
				w.onLoad(def)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("workflow watcher error", "error", err)
		}
	}
}
