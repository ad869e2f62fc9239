package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/altowierigge/maestro/internal/core"
)

// formatContext renders a task context mapping as indented JSON for
// inclusion in prompts. Returns "{}" for empty context.
func formatContext(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", m)
	}
	return string(data)
}

// votingPrompt renders the option list and the required response format.
// Responses must carry the "VOTE:" marker the vote parser looks for.
func votingPrompt(task core.Task, perspective string) string {
	var sb strings.Builder
	sb.WriteString("Vote on the best technical approach from these options:\n\n")

	if options, ok := task.Context["voting_options"].([]string); ok {
		for i, option := range options {
			fmt.Fprintf(&sb, "OPTION %d: %s\n\n", i+1, option)
		}
	} else if options, ok := task.Context["voting_options"].([]any); ok {
		for i, option := range options {
			fmt.Fprintf(&sb, "OPTION %d: %v\n\n", i+1, option)
		}
	}

	fmt.Fprintf(&sb, `As a %s, weigh each option on technical merit, maintenance
cost, and integration risk.

Provide your vote in this format:
VOTE: [Option Number]
REASONING: [Your detailed technical reasoning]
`, perspective)
	return sb.String()
}

// justificationPrompt renders a disagreement defense prompt.
func justificationPrompt(task core.Task) string {
	return fmt.Sprintf(`There is a disagreement about the following technical decision:

DISAGREEMENT: %s

YOUR APPROACH: %s

ALTERNATIVE APPROACH: %s

Provide a detailed justification for your approach covering technical
advantages, development efficiency, future maintenance, and performance
impact. Be objective about trade-offs while advocating for your approach.
`,
		task.ContextString("disagreement"),
		task.ContextString("my_approach"),
		task.ContextString("alternative_approach"),
	)
}

// implementationPrompt renders an implementation request that carries
// the technical plan and any counterpart API structure from context.
func implementationPrompt(task core.Task) string {
	return fmt.Sprintf(`Implement production-ready code based on this technical plan:

TECHNICAL PLAN:
%s

API STRUCTURE:
%s

PROJECT REQUIREMENTS:
%s

Generate complete, runnable code with clear file organization. Separate
files with delimiters of the form:
===== path/to/file =====

Include configuration, error handling, and tests alongside the
implementation. Follow best practices for the chosen stack.
`,
		task.ContextString("technical_plan"),
		task.ContextString("backend_api"),
		task.Prompt,
	)
}

// microPhaseImplementationPrompt renders the per-micro-phase
// implementation request with the plan-file guidance from context.
func microPhaseImplementationPrompt(task core.Task) string {
	guide := ""
	if g, ok := task.Context["implementation_guide"]; ok {
		guide = formatContext(map[string]any{"implementation_guide": g})
	}
	return fmt.Sprintf(`Implement the following micro-phase of the project:

MICRO-PHASE:
%s

PROJECT ARCHITECTURE:
%s

IMPLEMENTATION GUIDANCE:
%s

PROJECT REQUIREMENTS:
%s

Generate only the files this micro-phase owns, complete and immediately
usable. Separate files with delimiters of the form:
===== path/to/file =====
`,
		formatContext(map[string]any{"micro_phase": task.Context["micro_phase"]}),
		task.ContextString("project_architecture"),
		guide,
		task.Prompt,
	)
}

// microPhasePlanningPrompt renders the breakdown request. The response
// must be a JSON array so the coordinator can parse the phases back.
func microPhasePlanningPrompt(task core.Task) string {
	return fmt.Sprintf(`Break the project below into small, independently implementable
micro-phases.

APPROVED ARCHITECTURE:
%s

UNIFIED FEATURES:
%s

PROJECT REQUIREMENTS:
%s

Respond with a JSON array of micro-phase objects, each with fields:
id, name, description, phase_type, files_to_generate, dependencies,
priority, estimated_duration, acceptance_criteria, branch_name,
implementation_approach. Dependencies must reference earlier phase ids
and must not form cycles.
`,
		task.ContextString("approved_architecture"),
		task.ContextString("unified_features"),
		task.Prompt,
	)
}

// codeValidationPrompt renders the validator request for generated files.
func codeValidationPrompt(task core.Task) string {
	return fmt.Sprintf(`Validate the following micro-phase implementation against its
acceptance criteria.

GENERATED FILES:
%s

MICRO-PHASE:
%s

ACCEPTANCE CRITERIA:
%s

Report concrete issues and suggestions. Start your response with either
"VALID" or "INVALID" on its own line.
`,
		formatContext(map[string]any{"generated_files": task.Context["generated_files"]}),
		formatContext(map[string]any{"micro_phase": task.Context["micro_phase"]}),
		formatContext(map[string]any{"acceptance_criteria": task.Context["acceptance_criteria"]}),
	)
}

// comparisonPrompt renders a synthesis/review request over two prior
// artifacts named in context.
func comparisonPrompt(task core.Task) string {
	var sections []string
	for key, value := range task.Context {
		if s, ok := value.(string); ok && s != "" {
			sections = append(sections, fmt.Sprintf("### %s\n%s", strings.ToUpper(key), s))
		}
	}
	return fmt.Sprintf(`Compare and synthesize the perspectives below into a single
unified result for the project:

PROJECT REQUIREMENTS:
%s

%s

Call out agreements, disagreements (under a DISAGREEMENTS heading when
any exist), and the consolidated outcome.
`, task.Prompt, strings.Join(sections, "\n\n"))
}
