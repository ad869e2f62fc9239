package coordinator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altowierigge/maestro/internal/cache"
	"github.com/altowierigge/maestro/internal/core"
	"github.com/altowierigge/maestro/internal/docs"
	"github.com/altowierigge/maestro/internal/testutil"
)

const planningJSON = `[
  {"id": "phase_001", "name": "Foundation", "description": "project setup",
   "phase_type": "foundation", "files_to_generate": ["go.mod"], "dependencies": [],
   "priority": 1, "estimated_duration": 60, "acceptance_criteria": ["builds"],
   "branch_name": "feature/foundation", "implementation_approach": "standard"},
  {"id": "phase_002", "name": "API", "description": "endpoints",
   "phase_type": "api", "files_to_generate": ["api.go"], "dependencies": ["phase_001"],
   "priority": 1, "estimated_duration": 90, "acceptance_criteria": ["responds"],
   "branch_name": "feature/api", "implementation_approach": "REST"}
]`

const implementationOutput = `===== src/impl.go =====
package impl

func Run() {}
`

// scripted returns an execute function answering by task type.
func scripted(responses map[core.TaskType]string) func(context.Context, core.Task) (*core.Response, error) {
	return func(_ context.Context, task core.Task) (*core.Response, error) {
		content, ok := responses[task.Type]
		if !ok {
			content = "generic response for " + string(task.Type)
		}
		return &core.Response{
			Content:   content,
			TaskType:  task.Type,
			Metadata:  map[string]any{"attempts": 1},
			Timestamp: time.Now(),
			Success:   true,
		}, nil
	}
}

type fixture struct {
	manager    *testutil.MockAgent
	developer  *testutil.MockAgent
	validator  *testutil.MockAgent
	integrator *testutil.MockAgent
	repo       *testutil.MockRepository
	store      *cache.Store
	recorder   *docs.JSONRecorder
	coord      *Coordinator
}

func newFixture(t *testing.T, cacheDir, docsDir string) *fixture {
	t.Helper()

	store, err := cache.NewStore(cacheDir)
	require.NoError(t, err)
	recorder, err := docs.NewJSONRecorder(docsDir, nil)
	require.NoError(t, err)

	f := &fixture{
		manager: testutil.NewMockAgent("manager").WithRole(core.RoleManager).WithExecuteFunc(scripted(map[core.TaskType]string{
			core.TaskBrainstorming:        "manager feature ideas",
			core.TaskPlanComparison:       "unified feature list",
			core.TaskMicroPhaseValidation: "APPROVED: phases look right",
		})),
		developer: testutil.NewMockAgent("developer").WithRole(core.RoleDeveloper).WithExecuteFunc(scripted(map[core.TaskType]string{
			core.TaskBrainstorming:            "developer feature ideas",
			core.TaskTechnicalPlanning:        "The system is a web service.\n\n- backend: Go\n- database: SQLite\n",
			core.TaskMicroPhasePlanning:       planningJSON,
			core.TaskMicroPhaseImplementation: implementationOutput,
		})),
		validator: testutil.NewMockAgent("validator").WithRole(core.RoleValidator).WithExecuteFunc(scripted(map[core.TaskType]string{
			core.TaskCodeValidation: "VALID\nacceptance criteria satisfied",
		})),
		integrator: testutil.NewMockAgent("integrator").WithRole(core.RoleIntegrator).WithExecuteFunc(scripted(map[core.TaskType]string{
			core.TaskFinalAssembly: "integration complete",
		})),
		repo:     &testutil.MockRepository{},
		store:    store,
		recorder: recorder,
	}

	coord, err := New(Agents{
		Manager:    f.manager,
		Developer:  f.developer,
		Validator:  f.validator,
		Integrator: f.integrator,
	}, store, recorder, WithRepository(f.repo))
	require.NoError(t, err)
	f.coord = coord
	return f
}

func (f *fixture) totalAgentCalls() int {
	return f.manager.CallCount() + f.developer.CallCount() +
		f.validator.CallCount() + f.integrator.CallCount()
}

func TestCoordinator_FullRun(t *testing.T) {
	f := newFixture(t, t.TempDir(), t.TempDir())

	state, err := f.coord.Start(context.Background(), "build a todo app")
	require.NoError(t, err)

	for _, phase := range core.CoordinatorPhases() {
		assert.Equal(t, core.PhaseCompleted, state.PhaseStatus[phase], string(phase))
	}
	assert.Equal(t, []string{"phase_001", "phase_002"}, state.CompletedPhases)
	assert.Equal(t, "unified feature list", state.Artifact("unified_features"))
	assert.NotEmpty(t, state.RepositoryURL)
	assert.Len(t, f.repo.Commits, 2)

	// Canonical artifacts landed in the cache with their dependencies.
	_, ok := f.store.Get(cache.KeyBrainstormingFeatures, false)
	assert.True(t, ok)
	_, ok = f.store.Get(cache.KeySystemArchitecturePlan, true)
	assert.True(t, ok)
	_, ok = f.store.Get(cache.PhaseCodeKey("phase_001"), true)
	assert.True(t, ok)
	_, ok = f.store.Get(cache.KeyFinalIntegrationSummary, true)
	assert.True(t, ok)

	// Documentation recorded for the agent-driven phases.
	phaseDocs, err := f.recorder.PhaseDocs(context.Background(), state.SessionID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(phaseDocs), 5)

	// The plan file gained per-phase implementation guides.
	guide, err := f.recorder.ImplementationGuide(context.Background(), state.SessionID, "phase_002")
	require.NoError(t, err)
	assert.Equal(t, "API", guide["name"])
}

func TestCoordinator_ResumeFromCache_NoAgentCalls(t *testing.T) {
	cacheDir, docsDir := t.TempDir(), t.TempDir()

	first := newFixture(t, cacheDir, docsDir)
	state, err := first.coord.Start(context.Background(), "build a todo app")
	require.NoError(t, err)
	require.Greater(t, first.totalAgentCalls(), 0)

	firstDocs, err := first.recorder.PhaseDocs(context.Background(), state.SessionID)
	require.NoError(t, err)

	// Fresh coordinator and agents, same cache: the workflow state is
	// gone but every artifact is cached.
	second := newFixture(t, cacheDir, docsDir)
	resumed, err := second.coord.Resume(context.Background(), state.SessionID, "build a todo app")
	require.NoError(t, err)

	assert.Equal(t, 0, second.totalAgentCalls(), "cached run performs zero agent calls")
	assert.Equal(t, state.CompletedPhases, resumed.CompletedPhases)
	assert.Equal(t, state.Artifact("unified_features"), resumed.Artifact("unified_features"))

	secondDocs, err := second.recorder.PhaseDocs(context.Background(), state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, len(firstDocs), len(secondDocs), "cached run appends no new records")
	for i := range firstDocs {
		assert.Equal(t, firstDocs[i].PhaseName, secondDocs[i].PhaseName)
		assert.Equal(t, firstDocs[i].Summary, secondDocs[i].Summary)
	}
}

func TestCoordinator_FailureAbortsWithoutCacheWrite(t *testing.T) {
	cacheDir, docsDir := t.TempDir(), t.TempDir()
	f := newFixture(t, cacheDir, docsDir)

	// Architecture design fails after retries are exhausted.
	f.developer.WithExecuteFunc(func(_ context.Context, task core.Task) (*core.Response, error) {
		if task.Type == core.TaskTechnicalPlanning {
			return &core.Response{
				TaskType:     task.Type,
				Success:      false,
				ErrorMessage: "upstream unavailable",
				Timestamp:    time.Now(),
			}, nil
		}
		return scripted(map[core.TaskType]string{
			core.TaskBrainstorming: "developer ideas",
		})(context.Background(), task)
	})

	state, err := f.coord.Start(context.Background(), "build a thing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "architecture_design")
	assert.Equal(t, core.PhaseFailed, state.PhaseStatus[core.PhaseArchitectureDesign])

	// The failed state cached nothing; the earlier state did.
	_, ok := f.store.Get(cache.KeyBrainstormingFeatures, false)
	assert.True(t, ok)
	_, ok = f.store.Get(cache.KeySystemArchitecturePlan, false)
	assert.False(t, ok)
}

func TestCoordinator_ResumeAfterFailure(t *testing.T) {
	cacheDir, docsDir := t.TempDir(), t.TempDir()

	broken := newFixture(t, cacheDir, docsDir)
	broken.developer.WithExecuteFunc(func(_ context.Context, task core.Task) (*core.Response, error) {
		if task.Type == core.TaskTechnicalPlanning {
			return &core.Response{TaskType: task.Type, Success: false, ErrorMessage: "down", Timestamp: time.Now()}, nil
		}
		return scripted(map[core.TaskType]string{core.TaskBrainstorming: "ideas"})(context.Background(), task)
	})

	state, err := broken.coord.Start(context.Background(), "build a thing")
	require.Error(t, err)
	sessionID := state.SessionID

	// A later run with a healthy agent resumes past brainstorming.
	fixed := newFixture(t, cacheDir, docsDir)
	resumed, err := fixed.coord.Resume(context.Background(), sessionID, "build a thing")
	require.NoError(t, err)

	assert.Equal(t, 0, countTaskType(fixed.manager, core.TaskBrainstorming), "brainstorming came from cache")
	assert.Equal(t, 1, countTaskType(fixed.developer, core.TaskTechnicalPlanning), "architecture ran once")
	assert.Equal(t, core.PhaseCompleted, resumed.PhaseStatus[core.PhaseFinalIntegration])
}

func TestCoordinator_InvalidPlanningResponseFails(t *testing.T) {
	f := newFixture(t, t.TempDir(), t.TempDir())
	f.developer.WithExecuteFunc(scripted(map[core.TaskType]string{
		core.TaskBrainstorming:      "ideas",
		core.TaskTechnicalPlanning:  "an architecture",
		core.TaskMicroPhasePlanning: "no JSON in this response",
	}))

	state, err := f.coord.Start(context.Background(), "build a thing")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "micro_phase_planning"), "got %v", err)
	assert.Equal(t, core.PhaseFailed, state.PhaseStatus[core.PhaseMicroPhasePlanning])
}

func countTaskType(agent *testutil.MockAgent, taskType core.TaskType) int {
	n := 0
	for _, call := range agent.Calls() {
		if call.TaskType == taskType {
			n++
		}
	}
	return n
}
