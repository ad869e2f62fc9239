package prompt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altowierigge/maestro/internal/core"
	"github.com/altowierigge/maestro/internal/docs"
)

func newEnhancer(t *testing.T) (*Enhancer, *docs.JSONRecorder) {
	t.Helper()
	recorder, err := docs.NewJSONRecorder(t.TempDir(), nil)
	require.NoError(t, err)
	return NewEnhancer(recorder, nil), recorder
}

func TestEnhance_DefaultPassThrough(t *testing.T) {
	enhancer, _ := newEnhancer(t)

	task := core.NewTask(core.TaskVoting, "vote", "s1")
	got, enhanced := enhancer.Enhance(context.Background(), "base prompt", task)

	assert.False(t, enhanced)
	assert.Equal(t, "base prompt", got)
}

func TestEnhance_ArchitectureIncludesBrainstorming(t *testing.T) {
	enhancer, _ := newEnhancer(t)

	task := core.NewTask(core.TaskTechnicalPlanning, "plan", "s1").
		WithContext(map[string]any{"unified_features": "login, search, export"})
	got, enhanced := enhancer.Enhance(context.Background(), "base prompt", task)

	assert.True(t, enhanced)
	assert.Contains(t, got, "base prompt")
	assert.Contains(t, got, "login, search, export")
	assert.Contains(t, got, "ARCHITECTURE DESIGN REQUIREMENTS")
}

func TestEnhance_PlanningIncludesPlanFile(t *testing.T) {
	enhancer, recorder := newEnhancer(t)

	require.NoError(t, recorder.SaveArchitecturePlan(context.Background(), &core.ArchitecturePlan{
		SessionID:       "s1",
		CreatedAt:       time.Now(),
		TechnologyStack: map[string]string{"backend": "Go"},
	}))

	task := core.NewTask(core.TaskMicroPhasePlanning, "break it down", "s1").
		WithContext(map[string]any{"approved_architecture": "three tiers"})
	got, enhanced := enhancer.Enhance(context.Background(), "base", task)

	assert.True(t, enhanced)
	assert.Contains(t, got, "three tiers")
	assert.Contains(t, got, "Technology Stack")
	assert.Contains(t, got, "backend: Go")
}

func TestEnhance_ImplementationIncludesGuideAndHistory(t *testing.T) {
	enhancer, recorder := newEnhancer(t)
	ctx := context.Background()

	require.NoError(t, recorder.SaveArchitecturePlan(ctx, &core.ArchitecturePlan{
		SessionID: "s1",
		MicroPhasePlans: []map[string]any{
			{"id": "phase_002", "name": "API", "implementation_approach": "REST first"},
		},
	}))
	require.NoError(t, recorder.RecordPhase(ctx, "s1", core.PhaseDocumentation{
		PhaseName: "Foundation",
		Status:    "completed",
		Summary:   "project scaffolding in place",
	}))

	task := core.NewTask(core.TaskMicroPhaseImplementation, "implement", "s1").
		WithPhase("phase_002", []string{"phase_001"})
	got, enhanced := enhancer.Enhance(ctx, "base", task)

	assert.True(t, enhanced)
	assert.Contains(t, got, "REST first")
	assert.Contains(t, got, "Foundation")
	assert.Contains(t, got, "project scaffolding in place")
}

func TestEnhance_ImplementationWithoutHistory(t *testing.T) {
	enhancer, _ := newEnhancer(t)

	task := core.NewTask(core.TaskMicroPhaseImplementation, "implement", "s1").
		WithPhase("phase_001", nil)
	got, enhanced := enhancer.Enhance(context.Background(), "base", task)

	assert.True(t, enhanced)
	assert.Contains(t, got, "base")
}
