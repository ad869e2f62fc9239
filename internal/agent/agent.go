// Package agent implements the uniform capability layer around
// heterogeneous LLM HTTP APIs. Variants share transport, retry, rate
// limiting, and response assembly through composition; each variant
// supplies its endpoint shape, headers, system prompts, and prompt
// formatting.
package agent

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/altowierigge/maestro/internal/core"
	"github.com/altowierigge/maestro/internal/events"
	"github.com/altowierigge/maestro/internal/logging"
	"github.com/altowierigge/maestro/internal/service"
)

// Provider identifies the remote API shape an agent speaks.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// Config holds per-agent configuration.
type Config struct {
	Name        string
	Provider    Provider
	Role        core.AgentRole
	Model       string
	BaseURL     string
	APIKey      string
	MaxTokens   int
	Temperature float64 // 0 means use the per-task-type policy
	Timeout     time.Duration

	// Retry configuration.
	MaxAttempts int
	Strategy    service.WaitStrategy
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Rate limiting.
	RequestsPerMinute int
	RequestsPerHour   int
}

// applyDefaults fills zero values with the defaults used across agents.
func (c *Config) applyDefaults() {
	if c.MaxTokens == 0 {
		c.MaxTokens = 4000
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.Strategy == "" {
		c.Strategy = service.WaitExponential
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.RequestsPerMinute == 0 {
		c.RequestsPerMinute = 60
	}
	if c.RequestsPerHour == 0 {
		c.RequestsPerHour = 1000
	}
}

// requester is the variant-specific half of an agent: the HTTP request
// shape and the prompt formatting templates.
type requester interface {
	request(ctx context.Context, prompt string, taskType core.TaskType) (string, error)
	formatPrompt(task core.Task) string
}

// base provides the common execution path shared by all variants.
type base struct {
	cfg      Config
	client   *http.Client
	limiter  *service.RateLimiter
	retry    *service.RetryPolicy
	breaker  *gobreaker.CircuitBreaker
	logger   *logging.Logger
	bus      *events.Bus
	enhancer core.PromptEnhancerFunc
	caps     []core.TaskType
	req      requester
}

// Deps carries shared collaborators injected into agents.
type Deps struct {
	Logger   *logging.Logger
	Bus      *events.Bus
	Enhancer core.PromptEnhancerFunc
}

func newBase(cfg Config, deps Deps, caps []core.TaskType) *base {
	cfg.applyDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &base{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		limiter: service.NewRateLimiter(service.RateLimiterConfig{
			RequestsPerMinute: cfg.RequestsPerMinute,
			RequestsPerHour:   cfg.RequestsPerHour,
		}),
		retry: service.NewRetryPolicy(
			service.WithMaxAttempts(cfg.MaxAttempts),
			service.WithStrategy(cfg.Strategy),
			service.WithBaseDelay(cfg.BaseDelay),
			service.WithMaxDelay(cfg.MaxDelay),
		),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: cfg.Name,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
		logger:   logger.WithAgent(cfg.Name),
		bus:      deps.Bus,
		enhancer: deps.Enhancer,
		caps:     caps,
	}
}

// Name returns the configured agent name.
func (b *base) Name() string {
	return b.cfg.Name
}

// Role returns the agent's specialization.
func (b *base) Role() core.AgentRole {
	return b.cfg.Role
}

// Capabilities returns the task types this agent can handle.
func (b *base) Capabilities() []core.TaskType {
	out := make([]core.TaskType, len(b.caps))
	copy(out, b.caps)
	return out
}

// Cleanup releases held resources.
func (b *base) Cleanup() error {
	b.client.CloseIdleConnections()
	return nil
}

// ExecuteTask runs a task against the remote service: rate limit, format
// the prompt, enhance it if an enhancer is attached, dispatch through the
// retry policy, and assemble the standardized response. API failures
// after retry exhaustion produce Success=false; a non-nil error is
// returned only for context cancellation.
func (b *base) ExecuteTask(ctx context.Context, task core.Task) (*core.Response, error) {
	start := time.Now()
	b.logger.Info("executing task",
		"task_type", string(task.Type),
		"session_id", task.SessionID,
	)

	if err := b.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	prompt := b.req.formatPrompt(task)
	enhanced := false
	if b.enhancer != nil {
		prompt, enhanced = b.enhancer(ctx, prompt, task)
	}

	b.publishRequest(task, prompt)

	var content string
	var attempts int
	err := b.retry.ExecuteWithNotify(ctx,
		func(ctx context.Context) error {
			attempts++
			out, reqErr := b.req.request(ctx, prompt, task.Type)
			if reqErr != nil {
				return reqErr
			}
			content = out
			return nil
		},
		func(attempt int, err error, delay time.Duration) {
			b.logger.Warn("retrying after error",
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
		},
	)

	elapsed := time.Since(start)
	metadata := map[string]any{
		"execution_time": elapsed,
		"session_id":     task.SessionID,
		"model":          b.cfg.Model,
		"prompt_length":  len(prompt),
		"enhanced":       enhanced,
		"attempts":       attempts,
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		b.logger.Error("task failed",
			"task_type", string(task.Type),
			"error", err,
			"attempts", attempts,
		)
		b.publishResponse(task, false, 0, elapsed)
		return &core.Response{
			TaskType:     task.Type,
			AgentRole:    b.cfg.Role,
			Metadata:     metadata,
			Timestamp:    time.Now(),
			Success:      false,
			ErrorMessage: err.Error(),
		}, nil
	}

	b.logger.Info("task completed",
		"task_type", string(task.Type),
		"duration", elapsed,
	)
	b.publishResponse(task, true, len(content), elapsed)
	return &core.Response{
		Content:   content,
		TaskType:  task.Type,
		AgentRole: b.cfg.Role,
		Metadata:  metadata,
		Timestamp: time.Now(),
		Success:   true,
	}, nil
}

// ValidateResponse performs lightweight task-type-specific shape checks.
func (b *base) ValidateResponse(content string, taskType core.TaskType) bool {
	return ValidateResponse(content, taskType)
}

// taskTemperature returns the sampling temperature for a task type.
// An explicit non-zero config temperature overrides the policy.
func (b *base) taskTemperature(taskType core.TaskType) float64 {
	if b.cfg.Temperature > 0 {
		return b.cfg.Temperature
	}
	switch taskType {
	case core.TaskImplementation, core.TaskMicroPhaseImplementation:
		return 0.1
	case core.TaskTechnicalPlanning:
		return 0.1
	case core.TaskBrainstorming, core.TaskMicroPhasePlanning:
		return 0.3
	default:
		return 0.2
	}
}

func (b *base) publishRequest(task core.Task, prompt string) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(events.NewAgentRequest(task.SessionID, b.cfg.Name, string(task.Type), b.cfg.Model, len(prompt)))
}

func (b *base) publishResponse(task core.Task, success bool, length int, elapsed time.Duration) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(events.NewAgentResponse(task.SessionID, b.cfg.Name, string(task.Type), success, length, elapsed))
}

// userAgent returns the User-Agent header value for this agent.
func (b *base) userAgent() string {
	return fmt.Sprintf("maestro-%s/1.0", b.cfg.Role)
}
