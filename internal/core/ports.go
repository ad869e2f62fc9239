package core

import (
	"context"
)

// Agent is a runtime variant that speaks to one remote LLM service.
// One agent instance may serve multiple concurrent tasks; implementations
// must be safe for concurrent callers.
type Agent interface {
	// Name returns the configured agent name (registry key).
	Name() string

	// Role returns the agent's specialization.
	Role() AgentRole

	// Capabilities returns the task types this agent can handle.
	Capabilities() []TaskType

	// ExecuteTask runs a task against the remote service. API failures
	// after retry exhaustion are reported through Response.Success=false;
	// a non-nil error is returned only for context cancellation.
	ExecuteTask(ctx context.Context, task Task) (*Response, error)

	// ValidateResponse performs a lightweight task-type-specific shape
	// check on response content. Called by the engine, not by the agent.
	ValidateResponse(content string, taskType TaskType) bool

	// Cleanup releases held resources.
	Cleanup() error
}

// PromptEnhancerFunc augments a formatted prompt with session context
// before dispatch. It reports whether enhancement was applied.
type PromptEnhancerFunc func(ctx context.Context, prompt string, task Task) (string, bool)

// RepoState describes a repository prepared for a session.
type RepoState struct {
	RepositoryName  string   `json:"repository_name"`
	RepositoryURL   string   `json:"repository_url"`
	DefaultBranch   string   `json:"default_branch"`
	CreatedBranches []string `json:"created_branches,omitempty"`
}

// ProjectSetupConfig configures repository provisioning for a session.
type ProjectSetupConfig struct {
	ProjectName  string   `json:"project_name"`
	SessionID    string   `json:"session_id"`
	Description  string   `json:"description"`
	TechStack    []string `json:"tech_stack,omitempty"`
	EnableCI     bool     `json:"enable_ci"`
	PrivateRepo  bool     `json:"private_repo"`
}

// MicroPhaseCommit is the result of committing one micro-phase.
type MicroPhaseCommit struct {
	Branch        string `json:"branch"`
	CommitID      string `json:"commit_id"`
	PullRequest   string `json:"pull_request,omitempty"`
	RepositoryURL string `json:"repository_url"`
}

// IntegrationResult is the result of finalizing a session's repository.
type IntegrationResult struct {
	RepositoryURL string `json:"repository_url"`
	MergedSummary string `json:"merged_summary"`
}

// RepositoryCollaborator abstracts the external repository integration.
// Implementations must be idempotent per (session, phase).
type RepositoryCollaborator interface {
	SetupProject(ctx context.Context, cfg ProjectSetupConfig) (*RepoState, error)
	ExecuteMicroPhaseWorkflow(ctx context.Context, sessionID string, phase MicroPhase, files map[string]string) (*MicroPhaseCommit, error)
	FinalizeIntegration(ctx context.Context, sessionID string) (*IntegrationResult, error)
}

// DocumentationCollaborator records and serves phase documentation and
// the architecture plan file. Records are append-only.
type DocumentationCollaborator interface {
	RecordPhase(ctx context.Context, sessionID string, doc PhaseDocumentation) error
	PhaseDocs(ctx context.Context, sessionID string) ([]PhaseDocumentation, error)
	ArchitecturePlan(ctx context.Context, sessionID string) (*ArchitecturePlan, error)
	SaveArchitecturePlan(ctx context.Context, plan *ArchitecturePlan) error
	ImplementationGuide(ctx context.Context, sessionID, phaseID string) (map[string]any, error)
}
