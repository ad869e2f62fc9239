package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalExpr(t *testing.T, expr string, state map[string]any, settings Settings) bool {
	t.Helper()
	cond, err := ParseCondition(expr)
	require.NoError(t, err)
	return cond.Eval(conditionEnv{state: state, settings: settings})
}

func TestParseCondition_Rejected(t *testing.T) {
	for _, expr := range []string{
		"",
		"unknown_predicate",
		"disagreements_exist AND unknown",
		"workflow_state.key == unquoted",
		"workflow_state. == \"x\"",
		"__import__('os')",
		"1 + 1",
	} {
		_, err := ParseCondition(expr)
		assert.Error(t, err, "expr %q should be rejected", expr)
	}
}

func TestCondition_Predicates(t *testing.T) {
	empty := map[string]any{}
	withDisagreements := map[string]any{
		"disagreements": []any{map[string]any{"description": "d"}},
	}

	assert.False(t, evalExpr(t, "disagreements_exist", empty, Settings{}))
	assert.True(t, evalExpr(t, "disagreements_exist", withDisagreements, Settings{}))

	assert.False(t, evalExpr(t, "voting_enabled", withDisagreements, Settings{EnableVoting: false}))
	assert.True(t, evalExpr(t, "voting_enabled", withDisagreements, Settings{EnableVoting: true}))
	assert.False(t, evalExpr(t, "voting_enabled", empty, Settings{EnableVoting: true}))
}

func TestCondition_TieExists(t *testing.T) {
	tie := map[string]any{
		"votes": map[string]any{"a": 1, "b": 2},
	}
	agreement := map[string]any{
		"votes": map[string]any{"a": 1, "b": 1},
	}
	single := map[string]any{
		"votes": map[string]any{"a": 1},
	}

	assert.True(t, evalExpr(t, "tie_exists", tie, Settings{}))
	assert.False(t, evalExpr(t, "tie_exists", agreement, Settings{}))
	assert.False(t, evalExpr(t, "tie_exists", single, Settings{}))

	assert.True(t, evalExpr(t, "consensus_reached", agreement, Settings{}))
	assert.False(t, evalExpr(t, "consensus_reached", tie, Settings{}))
}

func TestCondition_BooleanOperators(t *testing.T) {
	state := map[string]any{
		"disagreements": []any{"d"},
	}

	assert.False(t, evalExpr(t, "NOT disagreements_exist", state, Settings{}))
	assert.True(t, evalExpr(t, "NOT tie_exists", state, Settings{}))
	assert.True(t, evalExpr(t, "disagreements_exist OR tie_exists", state, Settings{}))
	assert.False(t, evalExpr(t, "disagreements_exist AND tie_exists", state, Settings{}))
}

func TestCondition_StateEquals(t *testing.T) {
	state := map[string]any{"mode": "fast"}

	assert.True(t, evalExpr(t, `workflow_state.mode == "fast"`, state, Settings{}))
	assert.False(t, evalExpr(t, `workflow_state.mode == "slow"`, state, Settings{}))
	assert.False(t, evalExpr(t, `workflow_state.absent == "x"`, state, Settings{}))
}
