// Package prompt implements the prompt enhancer: additive string
// composition that augments formatted prompts with prior-phase records
// and the architecture plan. It has no network I/O and never mutates
// the documentation it reads.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/altowierigge/maestro/internal/core"
	"github.com/altowierigge/maestro/internal/logging"
)

// Enhancer augments prompts with session context from the documentation
// collaborator. Enhancement is purely additive and keyed on task type;
// task types without a template pass through unchanged.
type Enhancer struct {
	docs   core.DocumentationCollaborator
	logger *logging.Logger
}

// NewEnhancer creates a prompt enhancer backed by the documentation
// collaborator.
func NewEnhancer(docs core.DocumentationCollaborator, logger *logging.Logger) *Enhancer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Enhancer{docs: docs, logger: logger}
}

// Func adapts the enhancer to the function form threaded through
// ExecuteTask.
func (e *Enhancer) Func() core.PromptEnhancerFunc {
	return e.Enhance
}

// Enhance applies the task-type template. It reports whether any
// enhancement was added.
func (e *Enhancer) Enhance(ctx context.Context, prompt string, task core.Task) (string, bool) {
	switch task.Type {
	case core.TaskTechnicalPlanning:
		return e.enhanceArchitecture(prompt, task), true
	case core.TaskMicroPhasePlanning:
		return e.enhancePlanning(ctx, prompt, task)
	case core.TaskMicroPhaseImplementation:
		return e.enhanceImplementation(ctx, prompt, task)
	default:
		return prompt, false
	}
}

// enhanceArchitecture appends the brainstorming context and the
// structure the downstream plan parser expects.
func (e *Enhancer) enhanceArchitecture(prompt string, task core.Task) string {
	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n\n## CONTEXT FROM PREVIOUS PHASES\n")

	if features := task.ContextString("unified_features"); features != "" {
		sb.WriteString("\n### Brainstorming Results\n")
		sb.WriteString(features)
		sb.WriteString("\n")
	}

	sb.WriteString(`
## ARCHITECTURE DESIGN REQUIREMENTS

Structure the plan with these sections: SYSTEM OVERVIEW, TECHNOLOGY
STACK, COMPONENT ARCHITECTURE, DATA MODELS, API DESIGN, PROJECT
STRUCTURE, IMPLEMENTATION PLAN, CODING STANDARDS, QUALITY REQUIREMENTS.
Use clear sections and structured data so the plan can be parsed into
implementation guides.
`)
	return sb.String()
}

// enhancePlanning appends the approved architecture and the plan file
// details to the micro-phase breakdown request.
func (e *Enhancer) enhancePlanning(ctx context.Context, prompt string, task core.Task) (string, bool) {
	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n\n## CONTEXT FROM PREVIOUS PHASES\n")

	if arch := task.ContextString("approved_architecture"); arch != "" {
		sb.WriteString("\n### Approved Architecture\n")
		sb.WriteString(arch)
		sb.WriteString("\n")
	}

	plan, err := e.docs.ArchitecturePlan(ctx, task.SessionID)
	if err != nil {
		e.logger.Warn("architecture plan unavailable", "error", err)
	}
	if plan != nil {
		sb.WriteString("\n### Architecture Plan Details\n")
		writeYAMLSection(&sb, "Technology Stack", plan.TechnologyStack)
		writeYAMLSection(&sb, "Components", plan.Components)
		writeYAMLSection(&sb, "Project Structure", plan.ProjectStructure)
		writeYAMLSection(&sb, "Development Phases", plan.DevelopmentPhases)
	}
	return sb.String(), true
}

// enhanceImplementation appends the implementation guide and a summary
// of completed phases to a micro-phase implementation request.
func (e *Enhancer) enhanceImplementation(ctx context.Context, prompt string, task core.Task) (string, bool) {
	var sb strings.Builder
	sb.WriteString(prompt)

	if task.PhaseID != "" {
		guide, err := e.docs.ImplementationGuide(ctx, task.SessionID, task.PhaseID)
		if err != nil {
			e.logger.Warn("implementation guide unavailable", "phase_id", task.PhaseID, "error", err)
		}
		if len(guide) > 0 {
			sb.WriteString("\n\n## PLAN FILE GUIDANCE\n")
			writeYAMLSection(&sb, "Implementation Guide", guide)
		}
	}

	phaseDocs, err := e.docs.PhaseDocs(ctx, task.SessionID)
	if err != nil {
		e.logger.Warn("phase documentation unavailable", "error", err)
	}
	if len(phaseDocs) > 0 {
		sb.WriteString("\n## COMPLETED PHASES\n")
		for _, doc := range phaseDocs {
			fmt.Fprintf(&sb, "- %s (%s): %s\n", doc.PhaseName, doc.Status, doc.Summary)
		}
		sb.WriteString("\nKeep the implementation consistent with the decisions above.\n")
	}
	return sb.String(), true
}

func writeYAMLSection(sb *strings.Builder, title string, value any) {
	data, err := yaml.Marshal(value)
	if err != nil || len(data) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n**%s:**\n```yaml\n%s```\n", title, string(data))
}
