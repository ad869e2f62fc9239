package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/altowierigge/maestro/internal/core"
)

// ParserFunc is a pure transformation applied to a sourced input value
// or a produced output value.
type ParserFunc func(value any) (any, error)

// parserRegistry is the closed set of named parsers. Unknown names are
// configuration errors at load time, never silently ignored.
var parserRegistry = map[string]ParserFunc{
	"disagreement_parser":    parseDisagreements,
	"vote_parser":            parseVote,
	"extract_voting_options": extractVotingOptions,
	"extract_api_structure":  extractAPIStructure,
}

// KnownParser reports whether a parser name is registered.
func KnownParser(name string) bool {
	_, ok := parserRegistry[name]
	return ok
}

// applyParser runs a named parser on a value.
func applyParser(name string, value any) (any, error) {
	parser, ok := parserRegistry[name]
	if !ok {
		return nil, core.ErrConfiguration(core.CodeUnknownParser,
			fmt.Sprintf("unknown parser %q", name))
	}
	return parser(value)
}

// parseDisagreements extracts a disagreement list from comparison text.
// The comparison prompt asks for an explicit DISAGREEMENTS heading when
// any exist.
func parseDisagreements(value any) (any, error) {
	content, ok := value.(string)
	if !ok {
		return nil, core.ErrValidation(core.CodeParseFailed, "disagreement_parser expects text input")
	}

	disagreements := make([]map[string]any, 0)
	if strings.Contains(strings.ToUpper(content), "DISAGREEMENTS") {
		disagreements = append(disagreements, map[string]any{
			"description": "Technical approach disagreement",
			"approach_a":  "Primary approach",
			"approach_b":  "Alternative approach",
		})
	}
	return disagreements, nil
}

// parseVote extracts {choice, reasoning} from a voting response,
// defaulting to choice 1 when no VOTE: line is present.
func parseVote(value any) (any, error) {
	content, ok := value.(string)
	if !ok {
		return nil, core.ErrValidation(core.CodeParseFailed, "vote_parser expects text input")
	}

	vote := map[string]any{
		"choice":    1,
		"reasoning": content,
	}
	for _, line := range strings.Split(content, "\n") {
		upper := strings.ToUpper(strings.TrimSpace(line))
		if !strings.HasPrefix(upper, "VOTE:") {
			continue
		}
		raw := strings.TrimSpace(strings.TrimPrefix(upper, "VOTE:"))
		raw = strings.Trim(raw, "[]")
		if fields := strings.Fields(raw); len(fields) > 0 {
			if choice, err := strconv.Atoi(fields[0]); err == nil {
				vote["choice"] = choice
			}
		}
		break
	}
	return vote, nil
}

// extractVotingOptions flattens a disagreement list into option strings.
func extractVotingOptions(value any) (any, error) {
	options := make([]string, 0)

	appendOption := func(m map[string]any, key string) {
		if s, ok := m[key].(string); ok && s != "" {
			options = append(options, s)
		}
	}

	switch disagreements := value.(type) {
	case []map[string]any:
		for _, d := range disagreements {
			appendOption(d, "approach_a")
			appendOption(d, "approach_b")
		}
	case []any:
		for _, item := range disagreements {
			if d, ok := item.(map[string]any); ok {
				appendOption(d, "approach_a")
				appendOption(d, "approach_b")
			}
		}
	default:
		return nil, core.ErrValidation(core.CodeParseFailed, "extract_voting_options expects a disagreement list")
	}
	return options, nil
}

// extractAPIStructure produces a coarse structured summary of backend
// text: endpoint lines, model-like identifiers, and the auth scheme.
func extractAPIStructure(value any) (any, error) {
	content, ok := value.(string)
	if !ok {
		return nil, core.ErrValidation(core.CodeParseFailed, "extract_api_structure expects text input")
	}

	endpoints := make([]string, 0)
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, method := range []string{"GET ", "POST ", "PUT ", "PATCH ", "DELETE "} {
			if idx := strings.Index(trimmed, method); idx >= 0 && strings.Contains(trimmed[idx:], "/") {
				endpoint := strings.Fields(trimmed[idx:])
				if len(endpoint) >= 2 {
					endpoints = append(endpoints, endpoint[0]+" "+endpoint[1])
				}
				break
			}
		}
	}
	if len(endpoints) == 0 {
		endpoints = []string{"GET /api/health"}
	}

	auth := "none"
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "jwt"):
		auth = "JWT"
	case strings.Contains(lower, "oauth"):
		auth = "OAuth"
	case strings.Contains(lower, "api key") || strings.Contains(lower, "api_key"):
		auth = "API key"
	}

	return map[string]any{
		"endpoints":      endpoints,
		"authentication": auth,
	}, nil
}
