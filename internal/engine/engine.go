// Package engine executes declarative workflow definitions: it
// schedules phases honoring dependencies, parallel groups, and
// conditions, routes inputs and outputs through the workflow state,
// and validates per-phase results.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/altowierigge/maestro/internal/core"
	"github.com/altowierigge/maestro/internal/events"
	"github.com/altowierigge/maestro/internal/logging"
)

// AgentSource resolves agent names to runtime agents.
type AgentSource interface {
	Get(name string) (core.Agent, error)
}

// Engine interprets one workflow definition. The definition is loaded
// once and read-only during execution; each Execute call runs an
// independent session.
type Engine struct {
	def    *WorkflowDefinition
	agents AgentSource
	logger *logging.Logger
	bus    *events.Bus

	maxParallel     int
	interPhaseDelay time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithBus attaches an event bus.
func WithBus(bus *events.Bus) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithMaxParallel bounds the parallel-group fan-out.
func WithMaxParallel(n int) Option {
	return func(e *Engine) {
		e.maxParallel = n
	}
}

// WithInterPhaseDelay sets the cooperative pause between phases.
func WithInterPhaseDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.interPhaseDelay = d
	}
}

// New creates an engine for a validated workflow definition.
func New(def *WorkflowDefinition, agents AgentSource, opts ...Option) *Engine {
	e := &Engine{
		def:             def,
		agents:          agents,
		logger:          logging.NewNop(),
		maxParallel:     4,
		interPhaseDelay: 200 * time.Millisecond,
	}
	if def.Settings.MaxParallel > 0 {
		e.maxParallel = def.Settings.MaxParallel
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run holds the mutable execution state of one session.
type run struct {
	state     map[string]any
	completed map[string]bool // includes disabled phases for dependency resolution
	executed  []string
	skipped   []string
	failed    []string
	sessionID string
}

// Execute runs the workflow against a state map seeded with the initial
// inputs and returns the final state. A failed required phase aborts
// with an error; blocked phases terminate the loop without error and
// are reported in the returned state.
func (e *Engine) Execute(ctx context.Context, initial map[string]any) (map[string]any, error) {
	r := &run{
		state:     make(map[string]any, len(initial)),
		completed: make(map[string]bool),
	}
	for k, v := range initial {
		r.state[k] = v
	}
	r.sessionID, _ = r.state["session_id"].(string)

	start := time.Now()
	e.logger.Info("starting workflow execution",
		"workflow", e.def.Name,
		"version", e.def.Version,
		"phases", len(e.def.Phases),
	)

	remaining := make([]*PhaseDefinition, 0, len(e.def.Phases))
	for i := range e.def.Phases {
		remaining = append(remaining, &e.def.Phases[i])
	}

	for len(remaining) > 0 {
		select {
		case <-ctx.Done():
			return r.state, ctx.Err()
		default:
		}

		ready, rest := e.readyPhases(r, remaining)
		remaining = rest
		if len(ready) == 0 {
			if len(remaining) > 0 {
				e.reportBlocked(r, remaining)
			}
			break
		}

		sequential, groups := groupPhases(ready)
		for _, phase := range sequential {
			if err := e.runSequential(ctx, r, phase); err != nil {
				return r.state, err
			}
		}
		for _, tag := range sortedKeys(groups) {
			if err := e.runParallelGroup(ctx, r, tag, groups[tag]); err != nil {
				return r.state, err
			}
		}
	}

	r.state["execution_summary"] = map[string]any{
		"total_time":       time.Since(start).Seconds(),
		"completed_phases": append([]string(nil), r.executed...),
		"failed_phases":    append([]string(nil), r.failed...),
		"skipped_phases":   append([]string(nil), r.skipped...),
		"phase_count":      len(e.def.Phases),
	}
	e.logger.Info("workflow execution completed",
		"completed", len(r.executed),
		"failed", len(r.failed),
	)
	return r.state, nil
}

// readyPhases partitions remaining phases into the ready set and the
// still-waiting rest. Disabled phases are consumed here: they count as
// completed for dependency resolution but produce no outputs.
func (e *Engine) readyPhases(r *run, remaining []*PhaseDefinition) (ready, rest []*PhaseDefinition) {
	for _, phase := range remaining {
		if !phase.IsEnabled() {
			e.logger.Info("skipping disabled phase", "phase", phase.Name)
			r.completed[phase.Name] = true
			r.skipped = append(r.skipped, phase.Name)
			continue
		}
		if !e.dependenciesMet(r, phase) {
			rest = append(rest, phase)
			continue
		}
		if phase.Condition != "" && !e.conditionTrue(phase.Condition, r.state) {
			rest = append(rest, phase)
			continue
		}
		ready = append(ready, phase)
	}
	return ready, rest
}

func (e *Engine) dependenciesMet(r *run, phase *PhaseDefinition) bool {
	for _, dep := range phase.DependsOn {
		if !r.completed[dep] {
			return false
		}
	}
	return true
}

func (e *Engine) conditionTrue(expr string, state map[string]any) bool {
	cond, err := ParseCondition(expr)
	if err != nil {
		// Definitions are validated at load; an unparseable condition
		// here means the definition was mutated. Treat as false.
		e.logger.Error("condition no longer parseable", "condition", expr, "error", err)
		return false
	}
	return cond.Eval(conditionEnv{state: state, settings: e.def.Settings})
}

// groupPhases splits the ready set into the sequential bucket and one
// group per parallel tag, preserving definition order.
func groupPhases(ready []*PhaseDefinition) (sequential []*PhaseDefinition, groups map[string][]*PhaseDefinition) {
	groups = make(map[string][]*PhaseDefinition)
	for _, phase := range ready {
		if phase.Parallel && phase.ParallelGroup != "" {
			groups[phase.ParallelGroup] = append(groups[phase.ParallelGroup], phase)
		} else {
			sequential = append(sequential, phase)
		}
	}
	return sequential, groups
}

func (e *Engine) runSequential(ctx context.Context, r *run, phase *PhaseDefinition) error {
	outputs, err := e.executePhase(ctx, r.sessionID, phase, r.state)
	if err != nil {
		return e.recordFailure(r, phase, err)
	}
	e.recordSuccess(r, phase, outputs)
	return e.pause(ctx)
}

// runParallelGroup executes one parallel group concurrently under the
// fan-out bound. Every phase sees a snapshot of the state taken before
// the group began; outputs become visible only after the whole group
// completes.
func (e *Engine) runParallelGroup(ctx context.Context, r *run, tag string, phases []*PhaseDefinition) error {
	e.logger.Info("executing parallel group", "group", tag, "phases", len(phases))

	snapshot := make(map[string]any, len(r.state))
	for k, v := range r.state {
		snapshot[k] = v
	}

	type phaseResult struct {
		phase   *PhaseDefinition
		outputs map[string]any
		err     error
	}
	results := make([]phaseResult, len(phases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxParallel)
	var mu sync.Mutex
	for i, phase := range phases {
		g.Go(func() error {
			outputs, err := e.executePhase(gctx, r.sessionID, phase, snapshot)
			mu.Lock()
			results[i] = phaseResult{phase: phase, outputs: outputs, err: err}
			mu.Unlock()
			if err != nil && phase.IsRequired() {
				// Cancel siblings; the failure is handled below.
				return err
			}
			return nil
		})
	}
	groupErr := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var abort error
	for _, res := range results {
		if res.phase == nil {
			continue
		}
		if res.err != nil {
			// Prefer the genuine failure over sibling cancellations
			// triggered by it.
			if err := e.recordFailure(r, res.phase, res.err); err != nil &&
				(abort == nil || errors.Is(abort, context.Canceled)) {
				abort = err
			}
			continue
		}
		e.recordSuccess(r, res.phase, res.outputs)
	}
	if abort != nil {
		return abort
	}
	if groupErr != nil {
		return groupErr
	}
	return e.pause(ctx)
}

func (e *Engine) recordSuccess(r *run, phase *PhaseDefinition, outputs map[string]any) {
	for name, value := range outputs {
		r.state[name] = value
	}
	r.completed[phase.Name] = true
	r.executed = append(r.executed, phase.Name)
	r.state["completed_phases"] = append([]string(nil), r.executed...)
}

// recordFailure registers a failed phase. A required failure aborts the
// run; an optional one is recorded and execution continues.
func (e *Engine) recordFailure(r *run, phase *PhaseDefinition, err error) error {
	r.failed = append(r.failed, phase.Name)
	e.logger.Error("phase failed", "phase", phase.Name, "error", err)

	if phase.IsRequired() {
		r.state["error"] = map[string]any{
			"message":          err.Error(),
			"failed_phase":     phase.Name,
			"error_kind":       string(core.GetCategory(err)),
			"completed_phases": append([]string(nil), r.executed...),
		}
		return fmt.Errorf("required phase %s failed: %w", phase.Name, err)
	}
	// Optional phases count as resolved so dependents are not blocked
	// forever; their outputs stay absent.
	r.completed[phase.Name] = true
	return nil
}

// executePhase resolves inputs, dispatches the agent task bounded by the
// phase timeout, validates the result, and returns the declared outputs.
func (e *Engine) executePhase(ctx context.Context, sessionID string, phase *PhaseDefinition, state map[string]any) (map[string]any, error) {
	start := time.Now()
	e.publish(events.NewPhaseStarted(sessionID, phase.Name, phase.Agent))
	e.logger.Info("executing phase", "phase", phase.Name, "agent", phase.Agent)

	task, err := e.buildTask(sessionID, phase, state)
	if err != nil {
		return nil, e.failPhase(sessionID, phase, err, 0, start)
	}

	agent, err := e.agents.Get(phase.Agent)
	if err != nil {
		return nil, e.failPhase(sessionID, phase, err, 0, start)
	}

	// The phase timeout bounds total wall-clock including retries.
	phaseCtx, cancel := context.WithTimeout(ctx, phase.Timeout())
	defer cancel()

	resp, err := e.dispatch(phaseCtx, agent, phase, task)
	attempts := responseAttempts(resp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if phaseCtx.Err() == context.DeadlineExceeded {
			err = core.ErrTimeout(fmt.Sprintf("phase %s exceeded timeout %s", phase.Name, phase.Timeout()))
		}
		return nil, e.failPhase(sessionID, phase, err, attempts, start)
	}

	if !agent.ValidateResponse(resp.Content, task.Type) {
		err := core.ErrValidation("RESPONSE_SHAPE",
			fmt.Sprintf("response failed %s shape check", task.Type))
		return nil, e.failPhase(sessionID, phase, err, attempts, start)
	}
	if err := ValidateContent(resp.Content, phase.Validation); err != nil {
		return nil, e.failPhase(sessionID, phase, err, attempts, start)
	}

	outputs, err := e.collectOutputs(phase, resp)
	if err != nil {
		return nil, e.failPhase(sessionID, phase, err, attempts, start)
	}

	elapsed := time.Since(start)
	e.publish(events.NewPhaseCompleted(sessionID, phase.Name, elapsed))
	e.logger.Info("phase completed", "phase", phase.Name, "duration", elapsed)
	return outputs, nil
}

// dispatch runs the agent task, re-dispatching on retryable failures up
// to the phase retry override when one is declared. The agent's own
// retry policy still applies within each dispatch.
func (e *Engine) dispatch(ctx context.Context, agent core.Agent, phase *PhaseDefinition, task core.Task) (*core.Response, error) {
	attempts := phase.RetryConfig.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	var resp *core.Response
	for attempt := 1; attempt <= attempts; attempt++ {
		var err error
		resp, err = agent.ExecuteTask(ctx, task)
		if err != nil {
			return resp, err
		}
		if resp.Success {
			return resp, nil
		}
		lastErr = &core.DomainError{
			Category:  core.ErrCatTransport,
			Code:      core.CodeAgentFailed,
			Message:   resp.ErrorMessage,
			Retryable: true,
		}
		if attempt < attempts {
			if err := sleepCtx(ctx, time.Duration(phase.RetryConfig.BaseDelay*float64(time.Second))); err != nil {
				return resp, err
			}
		}
	}
	return resp, lastErr
}

func (e *Engine) failPhase(sessionID string, phase *PhaseDefinition, err error, attempts int, start time.Time) error {
	elapsed := time.Since(start)
	e.publish(events.NewPhaseFailed(
		sessionID,
		phase.Name,
		string(core.GetCategory(err)),
		err.Error(),
		attempts,
		elapsed,
	))
	return err
}

// buildTask applies each declared input: the canonical prompt slots
// become Task.Prompt, everything else lands in Task.Context.
func (e *Engine) buildTask(sessionID string, phase *PhaseDefinition, state map[string]any) (core.Task, error) {
	prompt := ""
	context := map[string]any{"phase_name": phase.Name}

	for _, input := range phase.Inputs {
		value, err := resolveInput(input, state)
		if err != nil {
			return core.Task{}, err
		}
		switch input.Name {
		case "refined_requirements", "user_request", "prompt":
			prompt = fmt.Sprintf("%v", value)
		default:
			context[input.Name] = value
		}
	}

	task := core.NewTask(core.TaskType(phase.TaskType), prompt, sessionID)
	return task.WithContext(context), nil
}

// resolveInput sources one input value per the reserved source strings.
func resolveInput(input InputSpec, state map[string]any) (any, error) {
	var value any
	switch {
	case input.Source == "user_input":
		value = stateString(state, "user_request")
	case input.Source == "workflow_state":
		value = state
	case len(input.Source) > len("workflow_state.") && input.Source[:len("workflow_state.")] == "workflow_state.":
		key := input.Source[len("workflow_state."):]
		if v, ok := state[key]; ok {
			value = v
		} else {
			value = ""
		}
	case input.Value != nil:
		value = *input.Value
	default:
		value = ""
	}

	if input.Parser != "" {
		parsed, err := applyParser(input.Parser, value)
		if err != nil {
			return nil, err
		}
		value = parsed
	}
	return value, nil
}

// collectOutputs applies each declared output to the response content.
func (e *Engine) collectOutputs(phase *PhaseDefinition, resp *core.Response) (map[string]any, error) {
	outputs := make(map[string]any, len(phase.Outputs))
	for _, output := range phase.Outputs {
		var value any = resp.Content
		if output.Parser != "" {
			parsed, err := applyParser(output.Parser, value)
			if err != nil {
				return nil, err
			}
			value = parsed
		}
		// The only supported destination is the workflow state; the
		// output name is the state key.
		outputs[output.Name] = value
	}
	return outputs, nil
}

func (e *Engine) reportBlocked(r *run, remaining []*PhaseDefinition) {
	unmet := make(map[string][]string, len(remaining))
	for _, phase := range remaining {
		missing := make([]string, 0, len(phase.DependsOn))
		for _, dep := range phase.DependsOn {
			if !r.completed[dep] {
				missing = append(missing, dep)
			}
		}
		unmet[phase.Name] = missing
		e.logger.Warn("phase blocked", "phase", phase.Name, "waiting_for", missing)
	}
	r.state["blocked_phases"] = unmet
	e.publish(events.NewPhaseBlocked(r.sessionID, unmet))
}

func (e *Engine) pause(ctx context.Context) error {
	if e.interPhaseDelay <= 0 {
		return nil
	}
	return sleepCtx(ctx, e.interPhaseDelay)
}

func (e *Engine) publish(event events.Event) {
	if e.bus != nil {
		e.bus.Publish(event)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func responseAttempts(resp *core.Response) int {
	if resp == nil || resp.Metadata == nil {
		return 0
	}
	if n, ok := resp.Metadata["attempts"].(int); ok {
		return n
	}
	return 0
}

func stateString(state map[string]any, key string) string {
	if v, ok := state[key].(string); ok {
		return v
	}
	return ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
