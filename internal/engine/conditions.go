package engine

import (
	"fmt"
	"strings"

	"github.com/altowierigge/maestro/internal/core"
)

// Condition grammar (closed): a named predicate, `NOT name`,
// `name AND name`, `name OR name`, or a state comparison of the form
// `workflow_state.<key> == "literal"`. Anything else is a configuration
// error at load time; there is no general-purpose evaluation.

type conditionKind int

const (
	condPredicate conditionKind = iota
	condNot
	condAnd
	condOr
	condStateEquals
)

// Condition is a parsed condition expression.
type Condition struct {
	kind    conditionKind
	name    string     // predicate name for condPredicate
	left    *Condition // operands for NOT/AND/OR
	right   *Condition
	key     string // state key for condStateEquals
	literal string
}

// namedPredicates is the closed set of predicate names.
var namedPredicates = map[string]bool{
	"disagreements_exist": true,
	"voting_enabled":      true,
	"tie_exists":          true,
	"consensus_reached":   true,
}

// KnownPredicate reports whether a predicate name is in the closed set.
func KnownPredicate(name string) bool {
	return namedPredicates[name]
}

// ParseCondition parses a condition expression into its AST form.
func ParseCondition(expr string) (*Condition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, core.ErrConfiguration(core.CodeUnknownCondition, "empty condition expression")
	}

	if idx := findOperator(expr, " AND "); idx >= 0 {
		return parseBinary(expr, idx, " AND ", condAnd)
	}
	if idx := findOperator(expr, " OR "); idx >= 0 {
		return parseBinary(expr, idx, " OR ", condOr)
	}
	if rest, ok := strings.CutPrefix(expr, "NOT "); ok {
		inner, err := ParseCondition(rest)
		if err != nil {
			return nil, err
		}
		return &Condition{kind: condNot, left: inner}, nil
	}
	if strings.HasPrefix(expr, "workflow_state.") {
		return parseStateEquals(expr)
	}
	if !KnownPredicate(expr) {
		return nil, core.ErrConfiguration(core.CodeUnknownCondition,
			fmt.Sprintf("unknown condition predicate %q", expr))
	}
	return &Condition{kind: condPredicate, name: expr}, nil
}

func findOperator(expr, op string) int {
	// Operators never occur inside the quoted literal of a comparison,
	// so a plain index before any quote is safe for this grammar.
	idx := strings.Index(expr, op)
	if idx < 0 {
		return -1
	}
	if quote := strings.Index(expr, `"`); quote >= 0 && quote < idx {
		return -1
	}
	return idx
}

func parseBinary(expr string, idx int, op string, kind conditionKind) (*Condition, error) {
	left, err := ParseCondition(expr[:idx])
	if err != nil {
		return nil, err
	}
	right, err := ParseCondition(expr[idx+len(op):])
	if err != nil {
		return nil, err
	}
	return &Condition{kind: kind, left: left, right: right}, nil
}

func parseStateEquals(expr string) (*Condition, error) {
	parts := strings.SplitN(expr, "==", 2)
	if len(parts) != 2 {
		return nil, core.ErrConfiguration(core.CodeUnknownCondition,
			fmt.Sprintf("unsupported condition expression %q", expr))
	}
	key := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(parts[0]), "workflow_state."))
	literal := strings.TrimSpace(parts[1])
	if key == "" || len(literal) < 2 || !strings.HasPrefix(literal, `"`) || !strings.HasSuffix(literal, `"`) {
		return nil, core.ErrConfiguration(core.CodeUnknownCondition,
			fmt.Sprintf("unsupported condition expression %q", expr))
	}
	return &Condition{
		kind:    condStateEquals,
		key:     key,
		literal: strings.Trim(literal, `"`),
	}, nil
}

// conditionEnv supplies state and settings to condition evaluation.
type conditionEnv struct {
	state    map[string]any
	settings Settings
}

// Eval evaluates the condition against the workflow state.
func (c *Condition) Eval(env conditionEnv) bool {
	switch c.kind {
	case condNot:
		return !c.left.Eval(env)
	case condAnd:
		return c.left.Eval(env) && c.right.Eval(env)
	case condOr:
		return c.left.Eval(env) || c.right.Eval(env)
	case condStateEquals:
		value, _ := env.state[c.key].(string)
		return value == c.literal
	default:
		return evalPredicate(c.name, env)
	}
}

func evalPredicate(name string, env conditionEnv) bool {
	switch name {
	case "disagreements_exist":
		return disagreementsExist(env.state)
	case "voting_enabled":
		return env.settings.EnableVoting && disagreementsExist(env.state)
	case "tie_exists":
		return tieExists(env.state)
	case "consensus_reached":
		return len(voteValues(env.state)) > 0 && !tieExists(env.state)
	default:
		return false
	}
}

func disagreementsExist(state map[string]any) bool {
	switch v := state["disagreements"].(type) {
	case []any:
		return len(v) > 0
	case []map[string]any:
		return len(v) > 0
	default:
		return false
	}
}

// tieExists reports a tie when at least two votes exist and every vote
// picked a distinct choice.
func tieExists(state map[string]any) bool {
	values := voteValues(state)
	if len(values) < 2 {
		return false
	}
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

func voteValues(state map[string]any) []string {
	votes, ok := state["votes"].(map[string]any)
	if !ok {
		return nil
	}
	values := make([]string, 0, len(votes))
	for _, v := range votes {
		values = append(values, fmt.Sprintf("%v", v))
	}
	return values
}
