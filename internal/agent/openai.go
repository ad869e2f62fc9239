package agent

import (
	"context"
	"fmt"

	"github.com/altowierigge/maestro/internal/core"
)

// OpenAIAgent speaks the chat-completions API shape: POST
// {base}/chat/completions with bearer-token auth.
type OpenAIAgent struct {
	*base
	systemPrompts map[core.TaskType]string
}

// NewOpenAIAgent creates an agent for an OpenAI-style endpoint.
func NewOpenAIAgent(cfg Config, deps Deps) (core.Agent, error) {
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	a := &OpenAIAgent{
		systemPrompts: map[core.TaskType]string{
			core.TaskRequirementsRefinement: "You are a requirements analyst. Turn vague requests into precise, testable requirements with explicit scope boundaries.",
			core.TaskBrainstorming:          "You are a product strategist brainstorming software features. Balance user value against implementation cost and keep scope realistic.",
			core.TaskPlanComparison:         "You are reviewing technical plans from multiple experts. Identify agreements, surface disagreements explicitly, and synthesize a unified outcome.",
			core.TaskConsultation:           "You are making executive technical decisions. Weigh trade-offs honestly and commit to one recommendation with clear reasoning.",
			core.TaskVoting:                 "You are voting on technical approaches. Make informed decisions based on technical merit and project constraints.",
			core.TaskTesting:                "You are a test automation expert. Generate comprehensive test suites covering edge cases with proper setup and teardown.",
			core.TaskMicroPhaseValidation:   "You are validating a micro-phase breakdown. Check that phases are small, independently implementable, and correctly ordered by dependency.",
			core.TaskCodeValidation:         "You are validating generated code against acceptance criteria. Report concrete, actionable issues.",
			core.TaskFinalAssembly:          "You are integrating independently developed components into a coherent, deployable project.",
		},
	}
	a.base = newBase(cfg, deps, []core.TaskType{
		core.TaskRequirementsRefinement,
		core.TaskBrainstorming,
		core.TaskPlanComparison,
		core.TaskConsultation,
		core.TaskVoting,
		core.TaskTesting,
		core.TaskMicroPhaseValidation,
		core.TaskCodeValidation,
		core.TaskIntegrationValidation,
		core.TaskFinalAssembly,
	})
	a.base.req = a
	return a, nil
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (a *OpenAIAgent) request(ctx context.Context, prompt string, taskType core.TaskType) (string, error) {
	payload := openAIRequest{
		Model: a.cfg.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: a.systemPrompt(taskType)},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.taskTemperature(taskType),
	}

	headers := map[string]string{}
	if a.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + a.cfg.APIKey
	}

	var out openAIResponse
	url := fmt.Sprintf("%s/chat/completions", a.cfg.BaseURL)
	if err := a.doJSON(ctx, "POST", url, headers, payload, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", core.ErrProtocol("MALFORMED_RESPONSE", "response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func (a *OpenAIAgent) systemPrompt(taskType core.TaskType) string {
	if p, ok := a.systemPrompts[taskType]; ok {
		return p
	}
	return "You are an AI project manager specializing in software development orchestration. Manage multi-agent workflows, refine requirements, compare technical plans, and make executive decisions. Always provide clear, actionable responses."
}

func (a *OpenAIAgent) formatPrompt(task core.Task) string {
	switch task.Type {
	case core.TaskRequirementsRefinement:
		return fmt.Sprintf(`Refine the following project request into precise requirements:

%s

Context: %s

List functional requirements, non-functional requirements, explicit
exclusions, and open questions that need user input.
`, task.Prompt, formatContext(task.Context))
	case core.TaskPlanComparison:
		return comparisonPrompt(task)
	case core.TaskVoting:
		return votingPrompt(task, "project manager")
	case core.TaskMicroPhaseValidation:
		return fmt.Sprintf(`Validate the proposed micro-phase breakdown for this project:

PROPOSED MICRO-PHASES:
%s

APPROVED ARCHITECTURE:
%s

PROJECT REQUIREMENTS:
%s

Check phase sizing, dependency ordering, and coverage of the
architecture. Start your response with "APPROVED" or "REJECTED".
`,
			formatContext(map[string]any{"proposed_micro_phases": task.Context["proposed_micro_phases"]}),
			task.ContextString("approved_architecture"),
			task.Prompt,
		)
	case core.TaskCodeValidation:
		return codeValidationPrompt(task)
	case core.TaskFinalAssembly:
		return fmt.Sprintf(`Integrate the completed micro-phases into the final project:

COMPLETED PHASES:
%s

Summarize the integrated result, deployment readiness, and any
remaining risks.
`, formatContext(task.Context))
	default:
		return task.Prompt
	}
}
