// Package wire implements the pure request/event codec for the
// Anthropic-shaped streaming chat protocol. It performs no I/O: encoding
// turns a Request into request bytes, decoding turns one SSE "data:"
// line into an Event. Network and concurrency concerns live in the
// transport package, one layer up.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Message is one turn in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the wire shape of a chat completion request.
type Request struct {
	Model       string    `json:"model"`
	MaxTokens   int64     `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
}

// EncodeRequest serializes a Request to the JSON body sent on the wire.
func EncodeRequest(req Request) ([]byte, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("wire: encode request: model is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("wire: encode request: at least one message is required")
	}
	return json.Marshal(req)
}

// EventType discriminates the shape of an Event.
type EventType string

const (
	EventMessageStart      EventType = "message_start"
	EventContentBlockStart EventType = "content_block_start"
	EventContentBlockDelta EventType = "content_block_delta"
	EventContentBlockStop  EventType = "content_block_stop"
	EventMessageDelta      EventType = "message_delta"
	EventMessageStop       EventType = "message_stop"
	EventErrorType         EventType = "error"
)

// Usage carries token counts as reported by the provider at whichever
// point in the stream they become available.
type Usage struct {
	InputTokens  int64 `json:"input_tokens,omitempty"`
	OutputTokens int64 `json:"output_tokens,omitempty"`
}

// Event is one decoded SSE frame.
type Event struct {
	Type      EventType
	TextDelta string // set on EventContentBlockDelta
	Usage     *Usage // set on EventMessageStart (input) and EventMessageDelta (output)
	Message   string // set on EventErrorType
}

type rawEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Usage Usage `json:"usage"`
	} `json:"message,omitempty"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta,omitempty"`
	Usage *Usage `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

var (
	dataPrefix = []byte("data:")
	doneMarker = []byte("[DONE]")
)

// DecodeSSELine parses a single line of an SSE stream into an Event.
// Non-"data:" lines (comments, blank keep-alives, "event:" lines) are
// skipped by returning ok=false with a nil error. The "data: [DONE]"
// sentinel returns io.EOF to signal clean stream termination. Malformed
// JSON on a data line is skipped rather than surfaced, matching the
// provider's own tolerance for stray frames.
func DecodeSSELine(line []byte) (Event, bool, error) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, dataPrefix) {
		return Event{}, false, nil
	}
	payload := bytes.TrimSpace(bytes.TrimPrefix(line, dataPrefix))
	if len(payload) == 0 {
		return Event{}, false, nil
	}
	if bytes.Equal(payload, doneMarker) {
		return Event{}, false, io.EOF
	}

	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Event{}, false, nil
	}

	switch EventType(raw.Type) {
	case EventMessageStart:
		ev := Event{Type: EventMessageStart}
		if raw.Message != nil {
			u := raw.Message.Usage
			ev.Usage = &u
		}
		return ev, true, nil
	case EventContentBlockDelta:
		if raw.Delta == nil || raw.Delta.Type != "text_delta" {
			return Event{}, false, nil
		}
		return Event{Type: EventContentBlockDelta, TextDelta: raw.Delta.Text}, true, nil
	case EventMessageDelta:
		ev := Event{Type: EventMessageDelta}
		if raw.Usage != nil {
			ev.Usage = raw.Usage
		}
		return ev, true, nil
	case EventMessageStop:
		return Event{Type: EventMessageStop}, true, nil
	case EventContentBlockStart, EventContentBlockStop:
		return Event{Type: EventType(raw.Type)}, true, nil
	case EventErrorType:
		msg := ""
		if raw.Error != nil {
			msg = raw.Error.Message
		}
		return Event{Type: EventErrorType, Message: msg}, true, nil
	default:
		return Event{}, false, nil
	}
}
