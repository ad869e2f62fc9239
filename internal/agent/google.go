package agent

import (
	"context"
	"fmt"
	"net/url"

	"github.com/altowierigge/maestro/internal/core"
)

// GoogleAgent speaks the generateContent API shape: POST
// {base}/models/{model}:generateContent?key=... with a combined
// system+user text part.
type GoogleAgent struct {
	*base
	systemPrompts map[core.TaskType]string
}

// NewGoogleAgent creates an agent for a Google-style endpoint.
func NewGoogleAgent(cfg Config, deps Deps) (core.Agent, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-pro"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	a := &GoogleAgent{
		systemPrompts: map[core.TaskType]string{
			core.TaskTechnicalPlanning: "You are a senior frontend architect designing modern, accessible, performant user interfaces. Focus on user experience, framework selection, and maintainable component architecture.",
			core.TaskImplementation:    "You are a senior frontend developer implementing production-ready applications. Write clean, modern, accessible code with attention to performance and user experience.",
			core.TaskJustification:     "You are providing technical justification for frontend architecture decisions. Consider user experience, performance, accessibility, and development efficiency.",
			core.TaskVoting:            "You are voting on technical approaches from a frontend perspective. Consider user experience, performance, accessibility, and development complexity.",
		},
	}
	a.base = newBase(cfg, deps, []core.TaskType{
		core.TaskTechnicalPlanning,
		core.TaskImplementation,
		core.TaskJustification,
		core.TaskVoting,
	})
	a.base.req = a
	return a, nil
}

type googleRequest struct {
	Contents         []googleContent        `json:"contents"`
	GenerationConfig googleGenerationConfig `json:"generationConfig"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type googleResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (a *GoogleAgent) request(ctx context.Context, prompt string, taskType core.TaskType) (string, error) {
	payload := googleRequest{
		Contents: []googleContent{
			{Parts: []googlePart{
				{Text: fmt.Sprintf("System: %s\n\nUser: %s", a.systemPrompt(taskType), prompt)},
			}},
		},
		GenerationConfig: googleGenerationConfig{
			Temperature:     a.taskTemperature(taskType),
			MaxOutputTokens: a.cfg.MaxTokens,
		},
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", a.cfg.BaseURL, a.cfg.Model)
	if a.cfg.APIKey != "" {
		endpoint += "?key=" + url.QueryEscape(a.cfg.APIKey)
	}

	var out googleResponse
	if err := a.doJSON(ctx, "POST", endpoint, nil, payload, &out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", core.ErrProtocol("MALFORMED_RESPONSE", "response has no candidates")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

func (a *GoogleAgent) systemPrompt(taskType core.TaskType) string {
	if p, ok := a.systemPrompts[taskType]; ok {
		return p
	}
	return "You are a senior frontend engineer with expertise in modern web development, user experience design, and frontend architecture."
}

func (a *GoogleAgent) formatPrompt(task core.Task) string {
	switch task.Type {
	case core.TaskTechnicalPlanning:
		return fmt.Sprintf(`Create a comprehensive frontend technical plan for the following project:

Project Brief: %s

Requirements: %s
Context: %s

Your response must include the exact section markers "ui_architecture",
"framework_choice", and "user_experience". Cover application
architecture, framework selection with justification, design system and
accessibility strategy, API integration, performance optimization,
testing strategy, and build pipeline.
`, task.Prompt, formatContext(task.Requirements), formatContext(task.Context))
	case core.TaskImplementation:
		return implementationPrompt(task)
	case core.TaskJustification:
		return justificationPrompt(task)
	case core.TaskVoting:
		return votingPrompt(task, "frontend expert")
	default:
		return task.Prompt
	}
}
