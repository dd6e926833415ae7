package contract

import "errors"

var (
	ErrInitialization    = errors.New("component initialization failed")
	ErrNoAgentAvailable  = errors.New("no agent available")
	ErrTimeout           = errors.New("task timed out")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTaskFailed        = errors.New("task failed")
	ErrAgentBusy         = errors.New("agent is busy")
	ErrAgentOffline      = errors.New("agent is offline")
	ErrAgentNotFound     = errors.New("agent not found")
	ErrUnknownCapability = errors.New("unknown capability")
	ErrNotInitialized    = errors.New("system not initialized")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrQueueFull         = errors.New("call queue is full")
	ErrSessionNotFound   = errors.New("call session not found")
	ErrInvalidTransition = errors.New("invalid call transition")
)

// Machine-readable failure reasons carried by Result.Reason.
const (
	ReasonNoAgentAvailable  = "no_agent_available"
	ReasonTimeout           = "timeout"
	ReasonInvalidInput      = "invalid_input"
	ReasonTaskFailed        = "task_failed"
	ReasonNotInitialized    = "not_initialized"
	ReasonUnknownCapability = "unknown_capability"
)

// ReasonOf classifies err into one of the Reason constants. Errors that match no
// sentinel are task failures.
func ReasonOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return ReasonInvalidInput
	case errors.Is(err, ErrUnknownCapability):
		return ReasonUnknownCapability
	case errors.Is(err, ErrNotInitialized):
		return ReasonNotInitialized
	case errors.Is(err, ErrNoAgentAvailable):
		return ReasonNoAgentAvailable
	case errors.Is(err, ErrTimeout):
		return ReasonTimeout
	default:
		return ReasonTaskFailed
	}
}
