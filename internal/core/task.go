package core

import (
	"time"
)

// TaskType identifies the kind of work an agent is asked to perform.
type TaskType string

const (
	TaskRequirementsRefinement TaskType = "requirements_refinement"
	TaskBrainstorming          TaskType = "brainstorming"
	TaskTechnicalPlanning      TaskType = "technical_planning"
	TaskPlanComparison         TaskType = "plan_comparison"
	TaskConsultation           TaskType = "consultation"
	TaskJustification          TaskType = "justification"
	TaskVoting                 TaskType = "voting"
	TaskImplementation         TaskType = "implementation"
	TaskTesting                TaskType = "testing"

	// Micro-phase task types used by the coordinator.
	TaskMicroPhasePlanning       TaskType = "micro_phase_planning"
	TaskMicroPhaseValidation     TaskType = "micro_phase_validation"
	TaskMicroPhaseImplementation TaskType = "micro_phase_implementation"
	TaskCodeValidation           TaskType = "code_validation"
	TaskStructureValidation      TaskType = "structure_validation"
	TaskGitOperation             TaskType = "git_operation"
	TaskBranchManagement         TaskType = "branch_management"
	TaskPullRequestCreation      TaskType = "pull_request_creation"
	TaskIntegrationValidation    TaskType = "integration_validation"
	TaskFinalAssembly            TaskType = "final_assembly"
)

// allTaskTypes is the closed set accepted by workflow definitions.
var allTaskTypes = map[TaskType]bool{
	TaskRequirementsRefinement:   true,
	TaskBrainstorming:            true,
	TaskTechnicalPlanning:        true,
	TaskPlanComparison:           true,
	TaskConsultation:             true,
	TaskJustification:            true,
	TaskVoting:                   true,
	TaskImplementation:           true,
	TaskTesting:                  true,
	TaskMicroPhasePlanning:       true,
	TaskMicroPhaseValidation:     true,
	TaskMicroPhaseImplementation: true,
	TaskCodeValidation:           true,
	TaskStructureValidation:      true,
	TaskGitOperation:             true,
	TaskBranchManagement:         true,
	TaskPullRequestCreation:      true,
	TaskIntegrationValidation:    true,
	TaskFinalAssembly:            true,
}

// ValidTaskType reports whether s names a known task type.
func ValidTaskType(s string) bool {
	return allTaskTypes[TaskType(s)]
}

// AgentRole identifies the specialization of an agent.
type AgentRole string

const (
	RoleManager    AgentRole = "manager"
	RoleValidator  AgentRole = "validator"
	RoleGitAgent   AgentRole = "git_agent"
	RoleIntegrator AgentRole = "integration_agent"
	RoleDeveloper  AgentRole = "developer"
	RoleFrontend   AgentRole = "frontend_expert"
	RoleBackend    AgentRole = "backend_expert"
)

// Task is an immutable unit of work dispatched to an agent.
// The (SessionID, PhaseID) pair uniquely identifies the work within a session.
type Task struct {
	Type         TaskType
	Prompt       string
	Context      map[string]any
	Requirements map[string]any
	SessionID    string
	PhaseID      string
	Dependencies []string
}

// NewTask creates a task with the required fields.
func NewTask(t TaskType, prompt, sessionID string) Task {
	return Task{
		Type:      t,
		Prompt:    prompt,
		SessionID: sessionID,
	}
}

// WithContext returns a copy of the task with the given context mapping.
func (t Task) WithContext(ctx map[string]any) Task {
	t.Context = ctx
	return t
}

// WithRequirements returns a copy of the task with the given requirements.
func (t Task) WithRequirements(req map[string]any) Task {
	t.Requirements = req
	return t
}

// WithPhase returns a copy of the task bound to a micro-phase.
func (t Task) WithPhase(phaseID string, deps []string) Task {
	t.PhaseID = phaseID
	t.Dependencies = deps
	return t
}

// ContextString returns a string context value, or "" when absent.
func (t Task) ContextString(key string) string {
	if t.Context == nil {
		return ""
	}
	if s, ok := t.Context[key].(string); ok {
		return s
	}
	return ""
}

// Response is the standardized result of a single agent execution.
// Exactly one of Success with non-empty Content, or !Success with a
// non-empty ErrorMessage, holds for a well-formed response.
type Response struct {
	Content      string
	TaskType     TaskType
	AgentRole    AgentRole
	Metadata     map[string]any
	Timestamp    time.Time
	Success      bool
	ErrorMessage string
}

// Validate checks the response invariant.
func (r *Response) Validate() error {
	if r.Success && r.Content == "" {
		return ErrValidation("EMPTY_RESPONSE", "successful response has no content")
	}
	if !r.Success && r.ErrorMessage == "" {
		return ErrValidation("MISSING_ERROR", "failed response has no error message")
	}
	return nil
}

// ExecutionTime returns the recorded execution time metadata, or zero.
func (r *Response) ExecutionTime() time.Duration {
	if r.Metadata == nil {
		return 0
	}
	if d, ok := r.Metadata["execution_time"].(time.Duration); ok {
		return d
	}
	return 0
}
