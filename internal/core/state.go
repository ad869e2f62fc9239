package core

import (
	"fmt"
	"time"
)

// PhaseStatus represents the state of a phase within a session.
type PhaseStatus string

const (
	PhasePending    PhaseStatus = "pending"
	PhaseInProgress PhaseStatus = "in_progress"
	PhaseCompleted  PhaseStatus = "completed"
	PhaseFailed     PhaseStatus = "failed"
	PhaseSkipped    PhaseStatus = "skipped"
)

// CoordinatorPhase is one state of the fixed micro-phase workflow.
type CoordinatorPhase string

const (
	PhaseRepositorySetup      CoordinatorPhase = "repository_setup"
	PhaseJointBrainstorming   CoordinatorPhase = "joint_brainstorming"
	PhaseArchitectureDesign   CoordinatorPhase = "architecture_design"
	PhaseArchitectureReview   CoordinatorPhase = "architecture_review"
	PhaseMicroPhasePlanning   CoordinatorPhase = "micro_phase_planning"
	PhaseMicroPhaseValidation CoordinatorPhase = "micro_phase_validation"
	PhaseIterativeDevelopment CoordinatorPhase = "iterative_development"
	PhaseFinalIntegration     CoordinatorPhase = "final_integration"
)

// CoordinatorPhases returns the fixed sequence in execution order.
func CoordinatorPhases() []CoordinatorPhase {
	return []CoordinatorPhase{
		PhaseRepositorySetup,
		PhaseJointBrainstorming,
		PhaseArchitectureDesign,
		PhaseArchitectureReview,
		PhaseMicroPhasePlanning,
		PhaseMicroPhaseValidation,
		PhaseIterativeDevelopment,
		PhaseFinalIntegration,
	}
}

// PhaseOrder returns the numeric order of a coordinator phase (0-indexed),
// or -1 for an unknown phase.
func PhaseOrder(p CoordinatorPhase) int {
	for i, candidate := range CoordinatorPhases() {
		if candidate == p {
			return i
		}
	}
	return -1
}

// NextPhase returns the phase following p, or "" when p is the last one.
func NextPhase(p CoordinatorPhase) CoordinatorPhase {
	order := PhaseOrder(p)
	phases := CoordinatorPhases()
	if order < 0 || order+1 >= len(phases) {
		return ""
	}
	return phases[order+1]
}

// ParseCoordinatorPhase converts a string to a CoordinatorPhase with validation.
func ParseCoordinatorPhase(s string) (CoordinatorPhase, error) {
	p := CoordinatorPhase(s)
	if PhaseOrder(p) < 0 {
		return "", fmt.Errorf("invalid coordinator phase: %s", s)
	}
	return p, nil
}

// String returns the string representation of the phase.
func (p CoordinatorPhase) String() string {
	return string(p)
}

// WorkflowState tracks the progress of one session. It is owned by the
// session's coordinator or engine; all mutations happen on a single
// logical thread of control per session.
type WorkflowState struct {
	SessionID    string                           `json:"session_id"`
	CurrentPhase CoordinatorPhase                 `json:"current_phase"`
	PhaseStatus  map[CoordinatorPhase]PhaseStatus `json:"phase_status"`
	Requirements string                           `json:"requirements"`

	// Artifacts accumulates phase outputs by artifact name.
	Artifacts map[string]string `json:"artifacts"`

	// Micro-phase tracking.
	ProposedMicroPhases []MicroPhase   `json:"proposed_micro_phases,omitempty"`
	ApprovedMicroPhases []MicroPhase   `json:"approved_micro_phases,omitempty"`
	CompletedPhases     []string       `json:"completed_phases"`
	PhaseResults        map[string]any `json:"phase_results"`

	// Integration outputs.
	IntegrationResults map[string]any `json:"integration_results"`
	RepositoryURL      string         `json:"repository_url,omitempty"`

	Errors    []string  `json:"errors,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWorkflowState creates an initial state for a session.
func NewWorkflowState(sessionID, requirements string) *WorkflowState {
	status := make(map[CoordinatorPhase]PhaseStatus, len(CoordinatorPhases()))
	for _, p := range CoordinatorPhases() {
		status[p] = PhasePending
	}
	now := time.Now()
	return &WorkflowState{
		SessionID:          sessionID,
		CurrentPhase:       PhaseRepositorySetup,
		PhaseStatus:        status,
		Requirements:       requirements,
		Artifacts:          make(map[string]string),
		PhaseResults:       make(map[string]any),
		IntegrationResults: make(map[string]any),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// BeginPhase marks a phase in progress and makes it current.
func (s *WorkflowState) BeginPhase(p CoordinatorPhase) {
	s.CurrentPhase = p
	s.PhaseStatus[p] = PhaseInProgress
	s.UpdatedAt = time.Now()
}

// CompletePhase marks a phase completed.
func (s *WorkflowState) CompletePhase(p CoordinatorPhase) {
	s.PhaseStatus[p] = PhaseCompleted
	s.UpdatedAt = time.Now()
}

// FailPhase marks a phase failed and records the error.
func (s *WorkflowState) FailPhase(p CoordinatorPhase, err error) {
	s.PhaseStatus[p] = PhaseFailed
	if err != nil {
		s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", p, err))
	}
	s.UpdatedAt = time.Now()
}

// SetArtifact stores a named artifact produced by a phase.
func (s *WorkflowState) SetArtifact(name, content string) {
	s.Artifacts[name] = content
	s.UpdatedAt = time.Now()
}

// Artifact returns a named artifact, or "" when absent.
func (s *WorkflowState) Artifact(name string) string {
	return s.Artifacts[name]
}

// LastCompleted returns the last phase of the unbroken run of completed
// coordinator phases from the start of the fixed order, or "" when the
// first phase is not completed. A completed phase after a gap is not
// counted.
func (s *WorkflowState) LastCompleted() CoordinatorPhase {
	var last CoordinatorPhase
	for _, p := range CoordinatorPhases() {
		if s.PhaseStatus[p] == PhaseCompleted {
			last = p
		} else {
			break
		}
	}
	return last
}
