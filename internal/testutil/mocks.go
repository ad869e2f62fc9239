// Package testutil provides mocks and helpers shared by tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/altowierigge/maestro/internal/core"
)

// MockCall records one call to a mock.
type MockCall struct {
	Method    string
	TaskType  core.TaskType
	PhaseID   string
	Timestamp time.Time
}

// MockAgent implements core.Agent for testing. Responses come from an
// optional execute function or a default canned reply; every call is
// recorded.
type MockAgent struct {
	name        string
	role        core.AgentRole
	caps        []core.TaskType
	executeFunc func(context.Context, core.Task) (*core.Response, error)
	calls       []MockCall
	mu          sync.Mutex
}

// NewMockAgent creates a mock agent.
func NewMockAgent(name string) *MockAgent {
	return &MockAgent{
		name: name,
		role: core.RoleDeveloper,
	}
}

// WithRole sets the mock's role.
func (m *MockAgent) WithRole(role core.AgentRole) *MockAgent {
	m.role = role
	return m
}

// WithExecuteFunc sets a custom execute function.
func (m *MockAgent) WithExecuteFunc(fn func(context.Context, core.Task) (*core.Response, error)) *MockAgent {
	m.executeFunc = fn
	return m
}

// WithCapabilities sets the advertised capabilities.
func (m *MockAgent) WithCapabilities(caps ...core.TaskType) *MockAgent {
	m.caps = caps
	return m
}

// Name returns the mock name.
func (m *MockAgent) Name() string { return m.name }

// Role returns the mock role.
func (m *MockAgent) Role() core.AgentRole { return m.role }

// Capabilities returns the advertised capabilities.
func (m *MockAgent) Capabilities() []core.TaskType { return m.caps }

// ExecuteTask records the call and produces the scripted response.
func (m *MockAgent) ExecuteTask(ctx context.Context, task core.Task) (*core.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{
		Method:    "ExecuteTask",
		TaskType:  task.Type,
		PhaseID:   task.PhaseID,
		Timestamp: time.Now(),
	})
	m.mu.Unlock()

	if m.executeFunc != nil {
		return m.executeFunc(ctx, task)
	}

	return &core.Response{
		Content:   fmt.Sprintf("mock response for %s", task.Type),
		TaskType:  task.Type,
		AgentRole: m.role,
		Metadata:  map[string]any{"attempts": 1},
		Timestamp: time.Now(),
		Success:   true,
	}, nil
}

// ValidateResponse accepts any non-empty content.
func (m *MockAgent) ValidateResponse(content string, _ core.TaskType) bool {
	return content != ""
}

// Cleanup is a no-op.
func (m *MockAgent) Cleanup() error { return nil }

// Calls returns a copy of the recorded calls.
func (m *MockAgent) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of ExecuteTask calls.
func (m *MockAgent) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// MockAgentSource resolves names to mock agents for engine tests.
type MockAgentSource struct {
	Agents map[string]core.Agent
}

// Get returns the agent registered under the name.
func (s *MockAgentSource) Get(name string) (core.Agent, error) {
	agent, ok := s.Agents[name]
	if !ok {
		return nil, core.ErrNotFound("agent", name)
	}
	return agent, nil
}

// MockRepository implements core.RepositoryCollaborator, recording
// per-phase commits.
type MockRepository struct {
	mu      sync.Mutex
	Commits []string
}

// SetupProject returns a deterministic repo state.
func (m *MockRepository) SetupProject(_ context.Context, cfg core.ProjectSetupConfig) (*core.RepoState, error) {
	return &core.RepoState{
		RepositoryName: cfg.ProjectName,
		RepositoryURL:  "https://example.invalid/" + cfg.ProjectName,
		DefaultBranch:  "main",
	}, nil
}

// ExecuteMicroPhaseWorkflow records the phase commit. Idempotent per
// (session, phase).
func (m *MockRepository) ExecuteMicroPhaseWorkflow(_ context.Context, sessionID string, phase core.MicroPhase, _ map[string]string) (*core.MicroPhaseCommit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sessionID + "/" + phase.ID
	for _, existing := range m.Commits {
		if existing == key {
			return m.commitFor(phase), nil
		}
	}
	m.Commits = append(m.Commits, key)
	return m.commitFor(phase), nil
}

func (m *MockRepository) commitFor(phase core.MicroPhase) *core.MicroPhaseCommit {
	return &core.MicroPhaseCommit{
		Branch:        phase.BranchName,
		CommitID:      "commit-" + phase.ID,
		RepositoryURL: "https://example.invalid/repo",
	}
}

// FinalizeIntegration returns a deterministic result.
func (m *MockRepository) FinalizeIntegration(_ context.Context, sessionID string) (*core.IntegrationResult, error) {
	return &core.IntegrationResult{
		RepositoryURL: "https://example.invalid/repo",
		MergedSummary: "merged session " + sessionID,
	}, nil
}
