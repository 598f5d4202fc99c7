// Package runtime implements the per-agent streaming execution loop
// (C3): one Runtime wraps a transport.Client and a Config, and turns
// each activation into a channel of Events the caller drains to
// completion.
package runtime

import (
	"github.com/kestrelai/kestrel/llm"
)

// HistoryMode controls how much prior conversation is replayed into a
// Request's prompt.
type HistoryMode int

const (
	// HistoryFull replays the entire accumulated transcript.
	HistoryFull HistoryMode = iota
	// HistorySummaryOnly replays only the excerpt of prior turns the
	// caller passes as the injected argument, verbatim.
	HistorySummaryOnly
	// HistoryNone starts a fresh turn with no prior transcript.
	HistoryNone
)

// EventKind discriminates the variant carried by an Event.
type EventKind int

const (
	// EventRequest marks the start of a new turn.
	EventRequest EventKind = iota
	// EventStatus carries a human-readable lifecycle note (e.g. "thinking").
	EventStatus
	// EventText carries one streamed text delta.
	EventText
	// EventResponse carries the finished Response for this turn.
	EventResponse
	// EventError carries a terminal error for this turn.
	EventError
	// EventCompleted marks that no further events will be sent on this channel.
	EventCompleted
)

// Event is one value emitted on a Runtime's event channel during a turn.
type Event struct {
	Kind     EventKind
	Status   string    // set on EventStatus
	Text     string    // set on EventText
	Response *Response // set on EventResponse
	Err      error     // set on EventError
}

// ResponseType indicates the terminal state of one agent turn.
type ResponseType int

const (
	ResponseSuccess ResponseType = iota
	ResponseFailure
	ResponseTimeout
)

// Metadata carries execution accounting alongside a Response.
type Metadata struct {
	ExecutionTimeMs uint64
	AgentName       string
	TokenUsage      *llm.TokenUsage
	LLMCalls        int
}

// Response is the tri-state result of one agent turn: exactly one of
// Result, Error, or PartialResult is meaningful, selected by Type.
type Response struct {
	Type          ResponseType
	Result        string // for Success
	Error         string // for Failure
	PartialResult string // for Timeout
	Metadata      Metadata
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(result string, executionTimeMs uint64, agentName string, tokenUsage *llm.TokenUsage, llmCalls int) Response {
	return Response{
		Type:   ResponseSuccess,
		Result: result,
		Metadata: Metadata{
			ExecutionTimeMs: executionTimeMs,
			AgentName:       agentName,
			TokenUsage:      tokenUsage,
			LLMCalls:        llmCalls,
		},
	}
}

// NewFailureResponse creates a failure response.
func NewFailureResponse(err string, executionTimeMs uint64, agentName string) Response {
	return Response{
		Type:  ResponseFailure,
		Error: err,
		Metadata: Metadata{
			ExecutionTimeMs: executionTimeMs,
			AgentName:       agentName,
		},
	}
}

// NewTimeoutResponse creates a timeout response.
func NewTimeoutResponse(partial string, executionTimeMs uint64, agentName string, tokenUsage *llm.TokenUsage, llmCalls int) Response {
	return Response{
		Type:          ResponseTimeout,
		PartialResult: partial,
		Metadata: Metadata{
			ExecutionTimeMs: executionTimeMs,
			AgentName:       agentName,
			TokenUsage:      tokenUsage,
			LLMCalls:        llmCalls,
		},
	}
}

// ResultText returns the result string (for success), error (for
// failure), or partial result (for timeout) — whichever the Type
// selects.
func (r Response) ResultText() string {
	switch r.Type {
	case ResponseSuccess:
		return r.Result
	case ResponseFailure:
		return r.Error
	case ResponseTimeout:
		return r.PartialResult
	default:
		return ""
	}
}

// IsSuccess checks if the response was successful.
func (r Response) IsSuccess() bool {
	return r.Type == ResponseSuccess
}
