package coordinator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/altowierigge/maestro/internal/core"
)

// fileDelimiterPrefix marks the start of one generated file in agent
// output: ===== path/to/file =====
const fileDelimiterPrefix = "====="

// parseMicroPhases extracts the micro-phase list from a planning
// response. The response is expected to carry a JSON array, optionally
// inside a markdown code fence.
func parseMicroPhases(content string) ([]core.MicroPhase, error) {
	payload := extractJSONArray(content)
	if payload == "" {
		return nil, core.ErrValidation(core.CodeParseFailed, "planning response contains no JSON array")
	}

	var phases []core.MicroPhase
	if err := json.Unmarshal([]byte(payload), &phases); err != nil {
		return nil, core.ErrValidation(core.CodeParseFailed, "planning response is not a valid micro-phase array").WithCause(err)
	}
	if len(phases) == 0 {
		return nil, core.ErrValidation(core.CodeParseFailed, "planning response contains no micro-phases")
	}

	for i := range phases {
		if phases[i].ID == "" {
			phases[i].ID = fmt.Sprintf("phase_%03d", i+1)
		}
		if phases[i].BranchName == "" {
			phases[i].BranchName = "feature/" + sanitizeBranch(phases[i].Name)
		}
		if err := phases[i].Validate(); err != nil {
			return nil, err
		}
	}
	return core.SortMicroPhases(phases)
}

// extractJSONArray returns the outermost JSON array in the text,
// stripping any surrounding markdown fence.
func extractJSONArray(content string) string {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

// parseGeneratedFiles splits delimited agent output into a file map.
// Content without delimiters becomes a single file named after the
// micro-phase.
func parseGeneratedFiles(content, phaseName string) map[string]string {
	files := make(map[string]string)

	var current string
	var body strings.Builder
	flush := func() {
		if current != "" {
			files[current] = strings.TrimSpace(body.String()) + "\n"
		}
		body.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, fileDelimiterPrefix) && strings.HasSuffix(trimmed, fileDelimiterPrefix) && len(trimmed) > 2*len(fileDelimiterPrefix) {
			flush()
			current = strings.TrimSpace(strings.Trim(trimmed, "= "))
			continue
		}
		if current != "" {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	flush()

	if len(files) == 0 {
		files[fmt.Sprintf("src/%s.txt", sanitizeBranch(phaseName))] = content
	}
	return files
}

// parseValidationReport interprets a validator response. The validator
// prompt asks for a leading VALID or INVALID line; bullet lines in an
// invalid report become the issue list.
func parseValidationReport(content string, filesChecked []string) core.ValidationResult {
	upper := strings.ToUpper(strings.TrimSpace(content))
	valid := !strings.HasPrefix(upper, "INVALID")

	var issues []string
	if !valid {
		for _, line := range strings.Split(content, "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
				issues = append(issues, strings.TrimSpace(trimmed[2:]))
			}
		}
	}

	return core.ValidationResult{
		IsValid:        valid,
		ValidationType: "code_validation",
		IssuesFound:    issues,
		FilesChecked:   filesChecked,
		Metadata:       map[string]any{"details": content},
	}
}

// reviewRejected reports whether a review/validation response starts
// with an explicit rejection.
func reviewRejected(content string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(content)), "REJECTED")
}

func sanitizeBranch(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	var sb strings.Builder
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ', r == '_', r == '-', r == '/':
			sb.WriteRune('-')
		}
	}
	out := strings.Trim(sb.String(), "-")
	if out == "" {
		return "phase"
	}
	return out
}

// parseArchitecturePlan derives a coarse structured plan from the
// architecture text. The extraction is heuristic: section content feeds
// the overview, and stack lines of the form "backend: ..." populate the
// technology stack.
func parseArchitecturePlan(content, sessionID string) *core.ArchitecturePlan {
	plan := &core.ArchitecturePlan{
		ProjectName:     fmt.Sprintf("project-%s", shortID(sessionID)),
		SessionID:       sessionID,
		SystemOverview:  firstParagraph(content),
		TechnologyStack: make(map[string]string),
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-* "))
		lower := strings.ToLower(trimmed)
		for _, key := range []string{"backend", "frontend", "database", "deployment", "authentication", "testing"} {
			if strings.HasPrefix(lower, key+":") {
				plan.TechnologyStack[key] = strings.TrimSpace(trimmed[len(key)+1:])
			}
		}
	}
	return plan
}

func firstParagraph(content string) string {
	for _, para := range strings.Split(content, "\n\n") {
		trimmed := strings.TrimSpace(para)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			if len(trimmed) > 500 {
				return trimmed[:500]
			}
			return trimmed
		}
	}
	return ""
}

func shortID(sessionID string) string {
	if len(sessionID) > 8 {
		return sessionID[:8]
	}
	return sessionID
}
