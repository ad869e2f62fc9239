package agent

import (
	"context"
	"fmt"

	"github.com/altowierigge/maestro/internal/core"
)

// anthropicVersion is the fixed API version header value.
const anthropicVersion = "2023-06-01"

// AnthropicAgent speaks the messages API shape: POST {base}/v1/messages
// with x-api-key auth and a fixed version header.
type AnthropicAgent struct {
	*base
	systemPrompts map[core.TaskType]string
}

// NewAnthropicAgent creates an agent for an Anthropic-style endpoint.
func NewAnthropicAgent(cfg Config, deps Deps) (core.Agent, error) {
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-sonnet-20241022"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	a := &AnthropicAgent{
		systemPrompts: map[core.TaskType]string{
			core.TaskTechnicalPlanning:      "You are a senior software architect producing complete technical plans: system overview, technology stack, component architecture, data models, API design, project structure, and an implementation plan broken into phases.",
			core.TaskBrainstorming:          "You are a senior engineer brainstorming technical approaches. Ground every feature in implementation reality and call out hidden complexity early.",
			core.TaskImplementation:         "You are a senior full-stack developer. Write actual, working code — not templates — following best practices for the chosen stack, and only add features that are requested or needed.",
			core.TaskJustification:          "You are providing technical justification for architecture decisions. Address trade-offs honestly while advocating for your approach.",
			core.TaskVoting:                 "You are voting on technical approaches from an implementation perspective. Consider maintainability, performance, and delivery risk.",
			core.TaskMicroPhasePlanning:     "You are decomposing a project into small, independently testable micro-phases that minimize dependencies and maximize development efficiency.",
			core.TaskMicroPhaseImplementation: "You are implementing one specific micro-phase. Generate complete, production-ready code that integrates seamlessly with existing components.",
		},
	}
	a.base = newBase(cfg, deps, []core.TaskType{
		core.TaskTechnicalPlanning,
		core.TaskBrainstorming,
		core.TaskImplementation,
		core.TaskJustification,
		core.TaskVoting,
		core.TaskMicroPhasePlanning,
		core.TaskMicroPhaseImplementation,
	})
	a.base.req = a
	return a, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (a *AnthropicAgent) request(ctx context.Context, prompt string, taskType core.TaskType) (string, error) {
	payload := anthropicRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.taskTemperature(taskType),
		System:      a.systemPrompt(taskType),
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}

	headers := map[string]string{
		"anthropic-version": anthropicVersion,
	}
	if a.cfg.APIKey != "" {
		headers["x-api-key"] = a.cfg.APIKey
	}

	var out anthropicResponse
	url := fmt.Sprintf("%s/v1/messages", a.cfg.BaseURL)
	if err := a.doJSON(ctx, "POST", url, headers, payload, &out); err != nil {
		return "", err
	}
	if len(out.Content) == 0 {
		return "", core.ErrProtocol("MALFORMED_RESPONSE", "response has no content blocks")
	}
	return out.Content[0].Text, nil
}

func (a *AnthropicAgent) systemPrompt(taskType core.TaskType) string {
	if p, ok := a.systemPrompts[taskType]; ok {
		return p
	}
	return "You are an AI software developer capable of implementing any type of software. Adapt to the project requirements, write actual working code, and deliver high-quality software incrementally."
}

func (a *AnthropicAgent) formatPrompt(task core.Task) string {
	switch task.Type {
	case core.TaskTechnicalPlanning:
		return fmt.Sprintf(`Create a comprehensive technical plan for the following project:

Project Brief: %s

Requirements: %s
Context: %s

Cover: SYSTEM OVERVIEW, TECHNOLOGY STACK, COMPONENT ARCHITECTURE,
DATA MODELS, API DESIGN, PROJECT STRUCTURE, IMPLEMENTATION PLAN,
CODING STANDARDS, and QUALITY REQUIREMENTS. Provide specific
technology recommendations with justifications.
`, task.Prompt, formatContext(task.Requirements), formatContext(task.Context))
	case core.TaskImplementation:
		return implementationPrompt(task)
	case core.TaskJustification:
		return justificationPrompt(task)
	case core.TaskVoting:
		return votingPrompt(task, "senior developer")
	case core.TaskMicroPhasePlanning:
		return microPhasePlanningPrompt(task)
	case core.TaskMicroPhaseImplementation:
		return microPhaseImplementationPrompt(task)
	default:
		return task.Prompt
	}
}
