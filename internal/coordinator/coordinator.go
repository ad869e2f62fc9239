// Package coordinator drives the fixed micro-phase workflow: a linear
// state machine from repository setup through brainstorming,
// architecture, planning, iterative per-phase development, and final
// integration. Each state checks the cache for its canonical artifact
// before invoking agents, writes results back with dependency edges,
// and records phase documentation.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/altowierigge/maestro/internal/cache"
	"github.com/altowierigge/maestro/internal/core"
	"github.com/altowierigge/maestro/internal/events"
	"github.com/altowierigge/maestro/internal/logging"
)

// Cache keys for coordinator states without a reserved semantic path.
const (
	keyArchitectureReview   = "architecture_review_feedback"
	keyMicroPhaseValidation = "micro_phase_validation_report"
)

// Agents groups the specialized agents the coordinator drives.
type Agents struct {
	Manager    core.Agent // brainstorm synthesis, reviews, breakdown validation
	Developer  core.Agent // architecture, planning, implementation
	Validator  core.Agent // per-phase code validation
	Integrator core.Agent // final assembly
}

func (a Agents) validate() error {
	if a.Manager == nil || a.Developer == nil || a.Validator == nil || a.Integrator == nil {
		return core.ErrConfiguration(core.CodeInvalidConfig, "coordinator requires manager, developer, validator, and integrator agents")
	}
	return nil
}

// Coordinator owns the per-session workflow state and the fixed state
// machine. All mutations of a session's state happen on the calling
// goroutine.
type Coordinator struct {
	agents Agents
	store  *cache.Store
	docs   core.DocumentationCollaborator
	repo   core.RepositoryCollaborator
	bus    *events.Bus
	logger *logging.Logger

	// stateDir holds resume markers, alongside the cache.
	stateDir string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRepository attaches the repository collaborator.
func WithRepository(repo core.RepositoryCollaborator) Option {
	return func(c *Coordinator) {
		c.repo = repo
	}
}

// WithBus attaches an event bus.
func WithBus(bus *events.Bus) Option {
	return func(c *Coordinator) {
		c.bus = bus
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithStateDir overrides where resume markers are persisted.
func WithStateDir(dir string) Option {
	return func(c *Coordinator) {
		c.stateDir = dir
	}
}

// New creates a coordinator.
func New(agents Agents, store *cache.Store, docs core.DocumentationCollaborator, opts ...Option) (*Coordinator, error) {
	if err := agents.validate(); err != nil {
		return nil, err
	}
	c := &Coordinator{
		agents:   agents,
		store:    store,
		docs:     docs,
		logger:   logging.NewNop(),
		stateDir: store.Root(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start begins a new session for the given project requirements and
// runs it to completion or first failure.
func (c *Coordinator) Start(ctx context.Context, requirements string) (*core.WorkflowState, error) {
	return c.Resume(ctx, uuid.NewString(), requirements)
}

// Resume runs a session, reusing cached artifacts from any prior run.
// A session that previously failed continues from the last successfully
// cached state.
func (c *Coordinator) Resume(ctx context.Context, sessionID, requirements string) (*core.WorkflowState, error) {
	state := core.NewWorkflowState(sessionID, requirements)
	logger := c.logger.WithSession(sessionID)

	if marker, err := loadMarker(c.stateDir, sessionID); err != nil {
		logger.Warn("resume marker unreadable, starting fresh", "error", err)
	} else if marker != nil {
		logger.Info("resuming session", "last_completed", string(marker.LastCompleted))
	}

	logger.Info("starting micro-phase workflow", "requirements_length", len(requirements))

	transitions := []struct {
		phase core.CoordinatorPhase
		run   func(context.Context, *core.WorkflowState) error
	}{
		{core.PhaseRepositorySetup, c.phaseRepositorySetup},
		{core.PhaseJointBrainstorming, c.phaseJointBrainstorming},
		{core.PhaseArchitectureDesign, c.phaseArchitectureDesign},
		{core.PhaseArchitectureReview, c.phaseArchitectureReview},
		{core.PhaseMicroPhasePlanning, c.phaseMicroPhasePlanning},
		{core.PhaseMicroPhaseValidation, c.phaseMicroPhaseValidation},
		{core.PhaseIterativeDevelopment, c.phaseIterativeDevelopment},
		{core.PhaseFinalIntegration, c.phaseFinalIntegration},
	}

	for _, t := range transitions {
		if err := c.runPhase(ctx, state, t.phase, t.run); err != nil {
			return state, err
		}
	}

	logger.Info("workflow completed", "completed_micro_phases", len(state.CompletedPhases))
	return state, nil
}

// runPhase wraps one state: status transitions, events, the resume
// marker, and failure semantics. No cache entry is written for a failed
// state; a later run resumes from the last successfully cached one.
func (c *Coordinator) runPhase(ctx context.Context, state *core.WorkflowState, phase core.CoordinatorPhase, fn func(context.Context, *core.WorkflowState) error) error {
	start := time.Now()
	state.BeginPhase(phase)
	c.publish(events.NewPhaseStarted(state.SessionID, phase.String(), ""))

	if err := fn(ctx, state); err != nil {
		state.FailPhase(phase, err)
		c.publish(events.NewPhaseFailed(
			state.SessionID,
			phase.String(),
			string(core.GetCategory(err)),
			err.Error(),
			0,
			time.Since(start),
		))
		return fmt.Errorf("phase %s failed: %w", phase, err)
	}

	if state.PhaseStatus[phase] != core.PhaseSkipped {
		state.CompletePhase(phase)
	}
	c.publish(events.NewPhaseCompleted(state.SessionID, phase.String(), time.Since(start)))
	if err := saveMarker(c.stateDir, &resumeMarker{SessionID: state.SessionID, LastCompleted: phase}); err != nil {
		c.logger.Warn("failed to persist resume marker", "error", err)
	}
	return nil
}

// executeAgent dispatches a task and converts an unsuccessful response
// into an error. Context cancellation propagates unchanged.
func (c *Coordinator) executeAgent(ctx context.Context, agent core.Agent, task core.Task) (*core.Response, error) {
	resp, err := agent.ExecuteTask(ctx, task)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &core.DomainError{
			Category: core.ErrCatTransport,
			Code:     core.CodeAgentFailed,
			Message:  fmt.Sprintf("%s: %s", agent.Name(), resp.ErrorMessage),
		}
	}
	return resp, nil
}

func (c *Coordinator) publish(event events.Event) {
	if c.bus != nil {
		c.bus.Publish(event)
	}
}

// recordDoc appends a phase documentation record.
func (c *Coordinator) recordDoc(ctx context.Context, state *core.WorkflowState, doc core.PhaseDocumentation) {
	doc.SessionID = state.SessionID
	doc.Timestamp = time.Now()
	if doc.Status == "" {
		doc.Status = string(core.PhaseCompleted)
	}
	if err := c.docs.RecordPhase(ctx, state.SessionID, doc); err != nil {
		c.logger.Warn("failed to record phase documentation", "phase", doc.PhaseName, "error", err)
	}
}
