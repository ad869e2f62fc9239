package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altowierigge/maestro/internal/core"
	"github.com/altowierigge/maestro/internal/testutil"
)

func boolPtr(b bool) *bool { return &b }

func respond(content string) func(context.Context, core.Task) (*core.Response, error) {
	return func(_ context.Context, task core.Task) (*core.Response, error) {
		return &core.Response{
			Content:   content,
			TaskType:  task.Type,
			Metadata:  map[string]any{"attempts": 1},
			Timestamp: time.Now(),
			Success:   true,
		}, nil
	}
}

func newEngine(t *testing.T, def *WorkflowDefinition, agents map[string]core.Agent) *Engine {
	t.Helper()
	require.NoError(t, def.Validate())
	return New(def, &testutil.MockAgentSource{Agents: agents}, WithInterPhaseDelay(0))
}

func TestEngine_SequentialOutputsVisible(t *testing.T) {
	def := &WorkflowDefinition{
		Name:    "seq",
		Version: "1",
		Phases: []PhaseDefinition{
			{
				Name: "first", Agent: "a", TaskType: "brainstorming",
				Inputs:  []InputSpec{{Name: "user_request", Source: "user_input"}},
				Outputs: []OutputSpec{{Name: "first_output"}},
			},
			{
				Name: "second", Agent: "a", TaskType: "technical_planning",
				DependsOn: []string{"first"},
				Inputs: []InputSpec{
					{Name: "prompt", Source: "workflow_state.first_output"},
					{Name: "extra", Source: "workflow_state.first_output"},
				},
				Outputs: []OutputSpec{{Name: "second_output"}},
			},
		},
	}

	var secondTask core.Task
	agent := testutil.NewMockAgent("a").WithExecuteFunc(func(ctx context.Context, task core.Task) (*core.Response, error) {
		if task.Type == core.TaskTechnicalPlanning {
			secondTask = task
		}
		return respond("output of " + string(task.Type))(ctx, task)
	})

	eng := newEngine(t, def, map[string]core.Agent{"a": agent})
	state, err := eng.Execute(context.Background(), map[string]any{
		"session_id":   "s1",
		"user_request": "build a thing",
	})
	require.NoError(t, err)

	// First phase's output was visible when the second resolved inputs.
	assert.Equal(t, "output of brainstorming", secondTask.Prompt)
	assert.Equal(t, "output of brainstorming", secondTask.Context["extra"])
	assert.Equal(t, "output of technical_planning", state["second_output"])
	assert.Equal(t, []string{"first", "second"}, state["completed_phases"])
}

func TestEngine_ParallelGroupOrdering(t *testing.T) {
	def := &WorkflowDefinition{
		Name:    "diamond",
		Version: "1",
		Phases: []PhaseDefinition{
			{Name: "p1", Agent: "a", TaskType: "brainstorming", Outputs: []OutputSpec{{Name: "p1_out"}}},
			{Name: "p2", Agent: "a", TaskType: "technical_planning", Parallel: true, ParallelGroup: "g", DependsOn: []string{"p1"}, Outputs: []OutputSpec{{Name: "p2_out"}}},
			{Name: "p3", Agent: "a", TaskType: "technical_planning", Parallel: true, ParallelGroup: "g", DependsOn: []string{"p1"}, Outputs: []OutputSpec{{Name: "p3_out"}}},
			{Name: "p4", Agent: "a", TaskType: "plan_comparison", DependsOn: []string{"p2", "p3"}},
		},
	}

	var mu sync.Mutex
	var dispatched []string
	groupArrivals := make(chan struct{}, 2)

	agent := testutil.NewMockAgent("a").WithExecuteFunc(func(ctx context.Context, task core.Task) (*core.Response, error) {
		name, _ := task.Context["phase_name"].(string)
		mu.Lock()
		dispatched = append(dispatched, name)
		mu.Unlock()

		if name == "p2" || name == "p3" {
			// Both group members must be in flight in the same
			// scheduling tick: wait until the sibling arrives.
			groupArrivals <- struct{}{}
			deadline := time.After(2 * time.Second)
			for {
				mu.Lock()
				n := 0
				for _, d := range dispatched {
					if d == "p2" || d == "p3" {
						n++
					}
				}
				mu.Unlock()
				if n == 2 {
					break
				}
				select {
				case <-deadline:
					return nil, fmt.Errorf("sibling never dispatched concurrently")
				case <-time.After(time.Millisecond):
				}
			}
		}
		return respond("done " + name)(ctx, task)
	})

	eng := newEngine(t, def, map[string]core.Agent{"a": agent})
	state, err := eng.Execute(context.Background(), map[string]any{"session_id": "s1"})
	require.NoError(t, err)

	require.Len(t, dispatched, 4)
	assert.Equal(t, "p1", dispatched[0], "p1 completes before the group dispatches")
	assert.Equal(t, "p4", dispatched[3], "p4 dispatches only after the group completes")
	assert.ElementsMatch(t, []string{"p2", "p3"}, dispatched[1:3])
	assert.Equal(t, "done p2", state["p2_out"])
	assert.Equal(t, "done p3", state["p3_out"])
}

func TestEngine_ParallelSnapshotIsolation(t *testing.T) {
	def := &WorkflowDefinition{
		Name:    "snapshot",
		Version: "1",
		Phases: []PhaseDefinition{
			{Name: "p2", Agent: "a", TaskType: "voting", Parallel: true, ParallelGroup: "g",
				Inputs:  []InputSpec{{Name: "sibling", Source: "workflow_state.p3_out"}},
				Outputs: []OutputSpec{{Name: "p2_out"}}},
			{Name: "p3", Agent: "a", TaskType: "voting", Parallel: true, ParallelGroup: "g",
				Inputs:  []InputSpec{{Name: "sibling", Source: "workflow_state.p2_out"}},
				Outputs: []OutputSpec{{Name: "p3_out"}}},
		},
	}

	var mu sync.Mutex
	siblings := map[string]any{}
	agent := testutil.NewMockAgent("a").WithExecuteFunc(func(ctx context.Context, task core.Task) (*core.Response, error) {
		name, _ := task.Context["phase_name"].(string)
		mu.Lock()
		siblings[name] = task.Context["sibling"]
		mu.Unlock()
		return respond("VOTE: 1")(ctx, task)
	})

	eng := newEngine(t, def, map[string]core.Agent{"a": agent})
	state, err := eng.Execute(context.Background(), map[string]any{"session_id": "s1"})
	require.NoError(t, err)

	// Group members see only state from before the group began.
	assert.Equal(t, "", siblings["p2"])
	assert.Equal(t, "", siblings["p3"])
	// After the group, both outputs are visible.
	assert.Equal(t, "VOTE: 1", state["p2_out"])
	assert.Equal(t, "VOTE: 1", state["p3_out"])
}

func TestEngine_SinglePhaseParallelGroup(t *testing.T) {
	def := &WorkflowDefinition{
		Name:    "solo-group",
		Version: "1",
		Phases: []PhaseDefinition{
			{Name: "only", Agent: "a", TaskType: "voting", Parallel: true, ParallelGroup: "g",
				Outputs: []OutputSpec{{Name: "out"}}},
		},
	}

	agent := testutil.NewMockAgent("a").WithExecuteFunc(respond("VOTE: 1"))
	eng := newEngine(t, def, map[string]core.Agent{"a": agent})
	state, err := eng.Execute(context.Background(), map[string]any{"session_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, "VOTE: 1", state["out"])
	assert.Equal(t, 1, agent.CallCount())
}

func TestEngine_DisabledPhaseSkipped(t *testing.T) {
	def := &WorkflowDefinition{
		Name:    "disabled",
		Version: "1",
		Phases: []PhaseDefinition{
			{Name: "off", Agent: "a", TaskType: "voting", Enabled: boolPtr(false),
				Outputs: []OutputSpec{{Name: "off_out"}}},
			{Name: "after", Agent: "a", TaskType: "voting", DependsOn: []string{"off"},
				Outputs: []OutputSpec{{Name: "after_out"}}},
		},
	}

	agent := testutil.NewMockAgent("a").WithExecuteFunc(respond("VOTE: 1"))
	eng := newEngine(t, def, map[string]core.Agent{"a": agent})
	state, err := eng.Execute(context.Background(), map[string]any{"session_id": "s1"})
	require.NoError(t, err)

	// The disabled phase resolved its dependents but left no outputs.
	assert.Equal(t, 1, agent.CallCount())
	_, present := state["off_out"]
	assert.False(t, present)
	assert.Equal(t, "VOTE: 1", state["after_out"])
}

func TestEngine_ValidationFailure_RequiredAborts(t *testing.T) {
	def := &WorkflowDefinition{
		Name:    "validate",
		Version: "1",
		Phases: []PhaseDefinition{
			{Name: "brainstorm", Agent: "a", TaskType: "brainstorming",
				Outputs:    []OutputSpec{{Name: "features"}},
				Validation: ValidationRules{RequiredSections: []string{"CORE_FEATURES", "USER_STORIES"}}},
		},
	}

	agent := testutil.NewMockAgent("a").WithExecuteFunc(respond("CORE_FEATURES: login, search"))
	eng := newEngine(t, def, map[string]core.Agent{"a": agent})
	state, err := eng.Execute(context.Background(), map[string]any{"session_id": "s1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "USER_STORIES")
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))

	// Failed phase wrote nothing into state.
	_, present := state["features"]
	assert.False(t, present)

	errRecord, ok := state["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "brainstorm", errRecord["failed_phase"])
}

func TestEngine_OptionalFailureContinues(t *testing.T) {
	def := &WorkflowDefinition{
		Name:    "optional",
		Version: "1",
		Phases: []PhaseDefinition{
			{Name: "flaky", Agent: "a", TaskType: "voting", Required: boolPtr(false),
				Outputs: []OutputSpec{{Name: "flaky_out"}}},
			{Name: "next", Agent: "a", TaskType: "voting", DependsOn: []string{"flaky"},
				Outputs: []OutputSpec{{Name: "next_out"}}},
		},
	}

	agent := testutil.NewMockAgent("a").WithExecuteFunc(func(ctx context.Context, task core.Task) (*core.Response, error) {
		if name, _ := task.Context["phase_name"].(string); name == "flaky" {
			return &core.Response{
				TaskType:     task.Type,
				Success:      false,
				ErrorMessage: "boom",
				Timestamp:    time.Now(),
			}, nil
		}
		return respond("VOTE: 1")(ctx, task)
	})

	eng := newEngine(t, def, map[string]core.Agent{"a": agent})
	state, err := eng.Execute(context.Background(), map[string]any{"session_id": "s1"})
	require.NoError(t, err)

	_, present := state["flaky_out"]
	assert.False(t, present)
	assert.Equal(t, "VOTE: 1", state["next_out"])

	summary := state["execution_summary"].(map[string]any)
	assert.Equal(t, []string{"flaky"}, summary["failed_phases"])
	assert.Equal(t, []string{"next"}, summary["completed_phases"])
}

func TestEngine_BlockedPhasesReported(t *testing.T) {
	def := &WorkflowDefinition{
		Name:    "blocked",
		Version: "1",
		Phases: []PhaseDefinition{
			{Name: "first", Agent: "a", TaskType: "voting"},
			{Name: "gated", Agent: "a", TaskType: "voting",
				DependsOn: []string{"first"},
				Condition: "disagreements_exist"},
		},
	}

	agent := testutil.NewMockAgent("a").WithExecuteFunc(respond("VOTE: 1"))
	eng := newEngine(t, def, map[string]core.Agent{"a": agent})
	state, err := eng.Execute(context.Background(), map[string]any{"session_id": "s1"})
	require.NoError(t, err, "blocked phases end the loop without error")

	blocked, ok := state["blocked_phases"].(map[string][]string)
	require.True(t, ok)
	_, gated := blocked["gated"]
	assert.True(t, gated)
	assert.Equal(t, 1, agent.CallCount(), "the gated phase never dispatched")
}

func TestEngine_ConditionTrueAtScheduling(t *testing.T) {
	def := &WorkflowDefinition{
		Name:     "conditional",
		Version:  "1",
		Settings: Settings{EnableVoting: true},
		Phases: []PhaseDefinition{
			{Name: "compare", Agent: "a", TaskType: "plan_comparison",
				Outputs: []OutputSpec{
					{Name: "comparison"},
					{Name: "disagreements", Parser: "disagreement_parser"},
				}},
			{Name: "vote", Agent: "a", TaskType: "voting",
				DependsOn: []string{"compare"},
				Condition: "voting_enabled",
				Outputs:   []OutputSpec{{Name: "vote_result", Parser: "vote_parser"}}},
		},
	}

	agent := testutil.NewMockAgent("a").WithExecuteFunc(func(ctx context.Context, task core.Task) (*core.Response, error) {
		if task.Type == core.TaskPlanComparison {
			return respond("DISAGREEMENTS: REST vs GraphQL")(ctx, task)
		}
		return respond("VOTE: 2")(ctx, task)
	})

	eng := newEngine(t, def, map[string]core.Agent{"a": agent})
	state, err := eng.Execute(context.Background(), map[string]any{"session_id": "s1"})
	require.NoError(t, err)

	vote, ok := state["vote_result"].(map[string]any)
	require.True(t, ok, "voting ran because disagreements existed")
	assert.Equal(t, 2, vote["choice"])
}

func TestEngine_PhaseTimeout(t *testing.T) {
	def := &WorkflowDefinition{
		Name:    "slow",
		Version: "1",
		Phases: []PhaseDefinition{
			{Name: "hang", Agent: "a", TaskType: "voting", TimeoutSec: 1},
		},
	}

	agent := testutil.NewMockAgent("a").WithExecuteFunc(func(ctx context.Context, _ core.Task) (*core.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	eng := newEngine(t, def, map[string]core.Agent{"a": agent})
	start := time.Now()
	_, err := eng.Execute(context.Background(), map[string]any{"session_id": "s1"})
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestEngine_Cancellation(t *testing.T) {
	def := &WorkflowDefinition{
		Name:    "cancel",
		Version: "1",
		Phases: []PhaseDefinition{
			{Name: "hang", Agent: "a", TaskType: "voting", TimeoutSec: 600},
		},
	}

	agent := testutil.NewMockAgent("a").WithExecuteFunc(func(ctx context.Context, _ core.Task) (*core.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	eng := newEngine(t, def, map[string]core.Agent{"a": agent})
	_, err := eng.Execute(ctx, map[string]any{"session_id": "s1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_PhaseRetryOverride(t *testing.T) {
	def := &WorkflowDefinition{
		Name:    "phase-retry",
		Version: "1",
		Phases: []PhaseDefinition{
			{Name: "flaky", Agent: "a", TaskType: "voting",
				RetryConfig: RetryConfig{MaxAttempts: 3, BaseDelay: 0.001},
				Outputs:     []OutputSpec{{Name: "out"}}},
		},
	}

	calls := 0
	agent := testutil.NewMockAgent("a").WithExecuteFunc(func(ctx context.Context, task core.Task) (*core.Response, error) {
		calls++
		if calls < 3 {
			return &core.Response{TaskType: task.Type, Success: false, ErrorMessage: "transient", Timestamp: time.Now()}, nil
		}
		return respond("VOTE: 1")(ctx, task)
	})

	eng := newEngine(t, def, map[string]core.Agent{"a": agent})
	state, err := eng.Execute(context.Background(), map[string]any{"session_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "VOTE: 1", state["out"])
}

func TestEngine_LiteralInputValue(t *testing.T) {
	literal := "fixed value"
	def := &WorkflowDefinition{
		Name:    "literal",
		Version: "1",
		Phases: []PhaseDefinition{
			{Name: "p", Agent: "a", TaskType: "voting",
				Inputs:  []InputSpec{{Name: "mode", Value: &literal}},
				Outputs: []OutputSpec{{Name: "out"}}},
		},
	}

	var seen core.Task
	agent := testutil.NewMockAgent("a").WithExecuteFunc(func(ctx context.Context, task core.Task) (*core.Response, error) {
		seen = task
		return respond("VOTE: 1")(ctx, task)
	})

	eng := newEngine(t, def, map[string]core.Agent{"a": agent})
	_, err := eng.Execute(context.Background(), map[string]any{"session_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, "fixed value", seen.Context["mode"])
}
