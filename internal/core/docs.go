package core

import "time"

// PhaseDocumentation is an append-only record of one executed phase.
// Never mutated after being written.
type PhaseDocumentation struct {
	PhaseName string    `json:"phase_name"`
	PhaseType string    `json:"phase_type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`

	Summary      string   `json:"summary"`
	Objectives   []string `json:"objectives"`
	Deliverables []string `json:"deliverables"`
	Dependencies []string `json:"dependencies"`

	GeneratedFiles map[string]string `json:"generated_files,omitempty"`
	Artifacts      []string          `json:"artifacts,omitempty"`

	Status          string  `json:"status"`
	DurationSeconds float64 `json:"duration_seconds"`
	Agent           string  `json:"agent"`
	CostEstimate    float64 `json:"cost_estimate,omitempty"`

	References       []string `json:"references,omitempty"`
	PlanFileLocation string   `json:"plan_file_location,omitempty"`
}

// ArchitecturePlan is the structured plan file derived from the
// architecture design phase. The prompt enhancer reads it to give later
// phases context about earlier decisions; the planning phase appends
// per-micro-phase implementation guides.
type ArchitecturePlan struct {
	ProjectName string    `json:"project_name"`
	SessionID   string    `json:"session_id"`
	CreatedAt   time.Time `json:"created_at"`

	SystemOverview       string            `json:"system_overview"`
	TechnologyStack      map[string]string `json:"technology_stack"`
	ArchitecturePatterns []string          `json:"architecture_patterns"`

	Components   []map[string]any `json:"components"`
	DataModels   []map[string]any `json:"data_models"`
	APIEndpoints []map[string]any `json:"api_endpoints"`

	ProjectStructure map[string]any `json:"project_structure"`

	DevelopmentPhases []map[string]any `json:"development_phases"`

	// MicroPhasePlans holds one implementation guide per micro-phase,
	// keyed by the "id" entry inside each guide.
	MicroPhasePlans []map[string]any `json:"micro_phase_plans,omitempty"`
}

// GuideForPhase returns the implementation guide for a micro-phase ID,
// or nil when the plan has no entry for it.
func (p *ArchitecturePlan) GuideForPhase(phaseID string) map[string]any {
	for _, guide := range p.MicroPhasePlans {
		if id, ok := guide["id"].(string); ok && id == phaseID {
			return guide
		}
	}
	return nil
}
