package agent

import (
	"strings"

	"github.com/altowierigge/maestro/internal/core"
)

// minPlanningLength is the minimum character count for a substantial
// technical planning response.
const minPlanningLength = 100

// ValidateResponse performs lightweight task-type-specific shape checks
// on response content. Called by the engine, not by agents themselves.
func ValidateResponse(content string, taskType core.TaskType) bool {
	if strings.TrimSpace(content) == "" {
		return false
	}

	switch taskType {
	case core.TaskVoting:
		return strings.Contains(strings.ToLower(content), "vote:")
	case core.TaskTechnicalPlanning:
		return len(content) > minPlanningLength
	default:
		return true
	}
}
