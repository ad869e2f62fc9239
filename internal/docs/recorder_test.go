package docs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altowierigge/maestro/internal/core"
)

// recorder backends share one behavioral contract; run the same suite
// against both.
func backends(t *testing.T) map[string]Recorder {
	t.Helper()

	jsonRec, err := NewJSONRecorder(t.TempDir(), nil)
	require.NoError(t, err)
	sqliteRec, err := NewRecorder("sqlite", t.TempDir(), nil)
	require.NoError(t, err)

	return map[string]Recorder{
		"json":   jsonRec,
		"sqlite": sqliteRec,
	}
}

func TestRecorder_AppendOrderPreserved(t *testing.T) {
	for name, rec := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, phase := range []string{"brainstorming", "architecture", "planning"} {
				require.NoError(t, rec.RecordPhase(ctx, "s1", core.PhaseDocumentation{
					PhaseName: phase,
					Summary:   "summary of " + phase,
					Status:    "completed",
				}))
			}

			got, err := rec.PhaseDocs(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, "brainstorming", got[0].PhaseName)
			assert.Equal(t, "architecture", got[1].PhaseName)
			assert.Equal(t, "planning", got[2].PhaseName)
		})
	}
}

func TestRecorder_SessionsIsolated(t *testing.T) {
	for name, rec := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, rec.RecordPhase(ctx, "s1", core.PhaseDocumentation{PhaseName: "a"}))
			require.NoError(t, rec.RecordPhase(ctx, "s2", core.PhaseDocumentation{PhaseName: "b"}))

			got, err := rec.PhaseDocs(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "a", got[0].PhaseName)
		})
	}
}

func TestRecorder_EmptySession(t *testing.T) {
	for name, rec := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := rec.PhaseDocs(context.Background(), "nobody")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestRecorder_ArchitecturePlanRoundTrip(t *testing.T) {
	for name, rec := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			got, err := rec.ArchitecturePlan(ctx, "s1")
			require.NoError(t, err)
			assert.Nil(t, got, "no plan recorded yet")

			plan := &core.ArchitecturePlan{
				SessionID:       "s1",
				ProjectName:     "demo",
				TechnologyStack: map[string]string{"backend": "Go"},
				MicroPhasePlans: []map[string]any{
					{"id": "phase_001", "name": "Foundation"},
				},
			}
			require.NoError(t, rec.SaveArchitecturePlan(ctx, plan))

			got, err = rec.ArchitecturePlan(ctx, "s1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "demo", got.ProjectName)
			assert.Equal(t, "Go", got.TechnologyStack["backend"])
		})
	}
}

func TestRecorder_ArchitecturePlanUpsert(t *testing.T) {
	for name, rec := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, rec.SaveArchitecturePlan(ctx, &core.ArchitecturePlan{SessionID: "s1", ProjectName: "v1"}))
			require.NoError(t, rec.SaveArchitecturePlan(ctx, &core.ArchitecturePlan{SessionID: "s1", ProjectName: "v2"}))

			got, err := rec.ArchitecturePlan(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "v2", got.ProjectName)
		})
	}
}

func TestRecorder_ImplementationGuide(t *testing.T) {
	for name, rec := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, rec.SaveArchitecturePlan(ctx, &core.ArchitecturePlan{
				SessionID: "s1",
				MicroPhasePlans: []map[string]any{
					{"id": "phase_001", "name": "Foundation", "implementation_approach": "bottom up"},
				},
			}))

			guide, err := rec.ImplementationGuide(ctx, "s1", "phase_001")
			require.NoError(t, err)
			assert.Equal(t, "bottom up", guide["implementation_approach"])

			missing, err := rec.ImplementationGuide(ctx, "s1", "phase_999")
			require.NoError(t, err)
			assert.Empty(t, missing)
		})
	}
}

func TestNewRecorder_UnknownBackend(t *testing.T) {
	_, err := NewRecorder("bogus", t.TempDir(), nil)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatConfig))
}
