package cache

import (
	"path/filepath"
	"strings"
)

// Well-known cache keys reserved for coordinator states and per-phase
// outputs.
const (
	KeyBrainstormingFeatures   = "brainstorming_features"
	KeySystemArchitecturePlan  = "system_architecture_plan"
	KeyProjectMicroPhases      = "project_micro_phases"
	KeyFinalIntegrationSummary = "final_integration_summary"
	KeyArchitecturePlanFile    = "architecture_plan_file"
)

// PhaseCodeKey returns the generated-code key for a micro-phase.
func PhaseCodeKey(phaseID string) string {
	return "phase-" + phaseID + "-generated_code"
}

// PhaseValidationKey returns the validation-report key for a micro-phase.
func PhaseValidationKey(phaseID string) string {
	return "phase-" + phaseID + "-validation_report"
}

// indexPath is the location of the persisted index document, relative
// to the cache root.
const indexPath = "metadata/cache_index.json"

// pathForKey maps a cache key to its on-disk payload location relative
// to the cache root. Well-known keys use semantic locations; everything
// else falls back to a sanitized key-as-filename scheme.
func pathForKey(key string) string {
	switch key {
	case KeyBrainstormingFeatures:
		return filepath.Join("brainstorming", "features.json")
	case KeySystemArchitecturePlan:
		return filepath.Join("architecture", "plan.json")
	case KeyProjectMicroPhases:
		return filepath.Join("metadata", "micro_phases.json")
	case KeyFinalIntegrationSummary:
		return filepath.Join("integration", "summary.json")
	}

	if id, ok := phaseKeyID(key, "-generated_code"); ok {
		return filepath.Join("phases", "phase_"+id, "generated_code.json")
	}
	if id, ok := phaseKeyID(key, "-validation_report"); ok {
		return filepath.Join("phases", "phase_"+id, "validation_report.json")
	}

	return filepath.Join("files", sanitizeKey(key)+".json")
}

// phaseKeyID extracts the phase ID from a "phase-{id}{suffix}" key.
func phaseKeyID(key, suffix string) (string, bool) {
	if !strings.HasPrefix(key, "phase-") || !strings.HasSuffix(key, suffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, "phase-"), suffix)
	if id == "" {
		return "", false
	}
	return sanitizeKey(id), true
}

// sanitizeKey makes a cache key safe for use as a filename component.
func sanitizeKey(key string) string {
	replacer := strings.NewReplacer("/", "_", ":", "_", "\\", "_", "..", "_")
	return replacer.Replace(key)
}
