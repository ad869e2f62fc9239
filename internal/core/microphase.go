package core

import (
	"fmt"
)

// MicroPhase is a small, independently implementable unit of development
// produced by the planning phase and consumed by the coordinator.
type MicroPhase struct {
	ID                     string   `json:"id" yaml:"id"`
	Name                   string   `json:"name" yaml:"name"`
	Description            string   `json:"description" yaml:"description"`
	PhaseType              string   `json:"phase_type" yaml:"phase_type"`
	FilesToGenerate        []string `json:"files_to_generate" yaml:"files_to_generate"`
	Dependencies           []string `json:"dependencies" yaml:"dependencies"`
	Priority               int      `json:"priority" yaml:"priority"`
	EstimatedDuration      int      `json:"estimated_duration" yaml:"estimated_duration"` // minutes
	AcceptanceCriteria     []string `json:"acceptance_criteria" yaml:"acceptance_criteria"`
	BranchName             string   `json:"branch_name" yaml:"branch_name"`
	ImplementationApproach string   `json:"implementation_approach" yaml:"implementation_approach"`
}

// Validate checks micro-phase invariants.
func (m *MicroPhase) Validate() error {
	if m.ID == "" {
		return ErrValidation("PHASE_ID_REQUIRED", "micro-phase ID cannot be empty")
	}
	if m.Name == "" {
		return ErrValidation("PHASE_NAME_REQUIRED", fmt.Sprintf("micro-phase %s has no name", m.ID))
	}
	return nil
}

// ValidationResult is the structured outcome of a validator agent run.
type ValidationResult struct {
	IsValid        bool           `json:"is_valid"`
	ValidationType string         `json:"validation_type"`
	IssuesFound    []string       `json:"issues_found"`
	Suggestions    []string       `json:"suggestions"`
	FilesChecked   []string       `json:"files_checked"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// SortMicroPhases returns the phases in dependency order using Kahn's
// algorithm. Phases at the same depth keep their input order. An error
// is returned when the dependency graph contains a cycle or references
// an unknown phase ID.
func SortMicroPhases(phases []MicroPhase) ([]MicroPhase, error) {
	byID := make(map[string]int, len(phases))
	for i, p := range phases {
		if _, dup := byID[p.ID]; dup {
			return nil, ErrValidation("DUPLICATE_PHASE_ID", fmt.Sprintf("micro-phase ID %s declared twice", p.ID))
		}
		byID[p.ID] = i
	}

	inDegree := make(map[string]int, len(phases))
	dependents := make(map[string][]string)
	for _, p := range phases {
		inDegree[p.ID] = 0
	}
	for _, p := range phases {
		for _, dep := range p.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, ErrValidation(CodeUnresolvedDep,
					fmt.Sprintf("micro-phase %s depends on unknown phase %s", p.ID, dep))
			}
			inDegree[p.ID]++
			dependents[dep] = append(dependents[dep], p.ID)
		}
	}

	queue := make([]string, 0, len(phases))
	for _, p := range phases {
		if inDegree[p.ID] == 0 {
			queue = append(queue, p.ID)
		}
	}

	sorted := make([]MicroPhase, 0, len(phases))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, phases[byID[id]])
		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(sorted) != len(phases) {
		return nil, ErrValidation(CodePhaseCycle, "micro-phase dependency graph contains a cycle")
	}
	return sorted, nil
}
