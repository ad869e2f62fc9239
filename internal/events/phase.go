package events

import "time"

// Event type names published by the engine and coordinator.
const (
	TypePhaseStarted   = "phase.started"
	TypePhaseCompleted = "phase.completed"
	TypePhaseFailed    = "phase.failed"
	TypePhaseBlocked   = "phase.blocked"
	TypeAgentRequest   = "agent.request"
	TypeAgentResponse  = "agent.response"
	TypeCacheHit       = "cache.hit"
	TypeCacheMiss      = "cache.miss"
	TypeCacheInvalidated = "cache.invalidated"
)

// PhaseStarted is published when a phase begins executing.
type PhaseStarted struct {
	BaseEvent
	PhaseName string `json:"phase_name"`
	Agent     string `json:"agent"`
}

// NewPhaseStarted creates a phase started event.
func NewPhaseStarted(sessionID, phaseName, agent string) PhaseStarted {
	return PhaseStarted{
		BaseEvent: NewBaseEvent(TypePhaseStarted, sessionID),
		PhaseName: phaseName,
		Agent:     agent,
	}
}

// PhaseCompleted is published when a phase finishes successfully.
type PhaseCompleted struct {
	BaseEvent
	PhaseName string        `json:"phase_name"`
	Elapsed   time.Duration `json:"elapsed"`
}

// NewPhaseCompleted creates a phase completed event.
func NewPhaseCompleted(sessionID, phaseName string, elapsed time.Duration) PhaseCompleted {
	return PhaseCompleted{
		BaseEvent: NewBaseEvent(TypePhaseCompleted, sessionID),
		PhaseName: phaseName,
		Elapsed:   elapsed,
	}
}

// PhaseFailed carries the terminal failure observation for a phase.
type PhaseFailed struct {
	BaseEvent
	PhaseName    string        `json:"phase_name"`
	ErrorKind    string        `json:"error_kind"`
	Message      string        `json:"message"`
	AttemptCount int           `json:"attempt_count"`
	Elapsed      time.Duration `json:"elapsed"`
}

// NewPhaseFailed creates a phase failed event.
func NewPhaseFailed(sessionID, phaseName, errorKind, message string, attempts int, elapsed time.Duration) PhaseFailed {
	return PhaseFailed{
		BaseEvent:    NewBaseEvent(TypePhaseFailed, sessionID),
		PhaseName:    phaseName,
		ErrorKind:    errorKind,
		Message:      message,
		AttemptCount: attempts,
		Elapsed:      elapsed,
	}
}

// PhaseBlocked is published when remaining phases cannot make progress.
type PhaseBlocked struct {
	BaseEvent
	// UnmetDependencies maps each blocked phase to its missing dependencies.
	UnmetDependencies map[string][]string `json:"unmet_dependencies"`
}

// NewPhaseBlocked creates a phase blocked event.
func NewPhaseBlocked(sessionID string, unmet map[string][]string) PhaseBlocked {
	return PhaseBlocked{
		BaseEvent:         NewBaseEvent(TypePhaseBlocked, sessionID),
		UnmetDependencies: unmet,
	}
}

// AgentRequest is published before an agent HTTP dispatch.
type AgentRequest struct {
	BaseEvent
	Agent        string `json:"agent"`
	TaskType     string `json:"task_type"`
	Model        string `json:"model"`
	PromptLength int    `json:"prompt_length"`
}

// NewAgentRequest creates an agent request event.
func NewAgentRequest(sessionID, agent, taskType, model string, promptLength int) AgentRequest {
	return AgentRequest{
		BaseEvent:    NewBaseEvent(TypeAgentRequest, sessionID),
		Agent:        agent,
		TaskType:     taskType,
		Model:        model,
		PromptLength: promptLength,
	}
}

// AgentResponse is published after an agent execution completes.
type AgentResponse struct {
	BaseEvent
	Agent          string        `json:"agent"`
	TaskType       string        `json:"task_type"`
	Success        bool          `json:"success"`
	ResponseLength int           `json:"response_length"`
	Elapsed        time.Duration `json:"elapsed"`
}

// NewAgentResponse creates an agent response event.
func NewAgentResponse(sessionID, agent, taskType string, success bool, responseLength int, elapsed time.Duration) AgentResponse {
	return AgentResponse{
		BaseEvent:      NewBaseEvent(TypeAgentResponse, sessionID),
		Agent:          agent,
		TaskType:       taskType,
		Success:        success,
		ResponseLength: responseLength,
		Elapsed:        elapsed,
	}
}

// CacheEvent is published on cache hits, misses, and invalidations.
type CacheEvent struct {
	BaseEvent
	Key  string   `json:"key"`
	Keys []string `json:"keys,omitempty"` // invalidation sets
}

// NewCacheEvent creates a cache event of the given type.
func NewCacheEvent(eventType, sessionID, key string, keys []string) CacheEvent {
	return CacheEvent{
		BaseEvent: NewBaseEvent(eventType, sessionID),
		Key:       key,
		Keys:      keys,
	}
}
