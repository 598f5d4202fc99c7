// Agent runtime execution loop.
//
// This is THE canonical implementation of one agent's streamed turn.
// All agent activation goes through this module.
//
// Information Hiding:
// - LLM communication hidden behind transport.Client
// - Prompt-swap synchronization hidden
// - History replay policy hidden behind HistoryMode
package runtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/kestrelai/kestrel/llm"
	"github.com/kestrelai/kestrel/transport"
	"github.com/kestrelai/kestrel/wire"
)

// Runtime drives one agent's streamed turns against a transport.Client.
// Following Dave's naming advice: just runtime.Runtime, not runtime.AgentRuntime.
type Runtime struct {
	mu                sync.RWMutex
	config            Config
	currentPromptText string

	client      *transport.Client
	model       string
	maxTokens   int64
	temperature float64

	history   *HistoryCache
	sessionID string
}

// New creates a new runtime for the given configuration and backend.
func New(config Config, client *transport.Client, model string, maxTokens int64, temperature float64) *Runtime {
	return &Runtime{
		config:            config,
		currentPromptText: config.SystemPrompt,
		client:            client,
		model:             model,
		maxTokens:         maxTokens,
		temperature:       temperature,
		history:           NewHistoryCache(),
	}
}

// Name returns the agent's name.
func (r *Runtime) Name() string { return r.config.Name }

// Description returns the agent's description.
func (r *Runtime) Description() string { return r.config.Description }

// WithSession binds this runtime's scratch transcript to a session ID.
func (r *Runtime) WithSession(sessionID string) *Runtime {
	r.sessionID = sessionID
	return r
}

// SessionTranscript returns a copy of this runtime's accumulated
// transcript for its bound session, for callers (e.g. the
// orchestrator) that need to excerpt recent turns into another
// agent's injected history.
func (r *Runtime) SessionTranscript() []wire.Message {
	if r.sessionID == "" {
		return nil
	}
	return r.history.Transcript(r.sessionID)
}

// SwapPrompt atomically replaces the runtime's active system prompt
// text. Turns started after the swap use the new text; a turn already
// in flight keeps the prompt it built its request with. No teardown or
// transcript loss occurs, so a prompt version bump never interrupts
// the running agent.
func (r *Runtime) SwapPrompt(newPromptText string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentPromptText = newPromptText
}

func (r *Runtime) promptText() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentPromptText
}

// Request runs one turn and streams its lifecycle on the returned
// channel. The runtime closes the channel after emitting EventCompleted
// (or immediately, if ctx is cancelled before that point). injected
// carries a caller-built excerpt of another transcript for
// HistorySummaryOnly turns, preserving its original role alternation
// rather than collapsing it into one message.
func (r *Runtime) Request(ctx context.Context, input string, mode HistoryMode, injected []wire.Message) <-chan Event {
	out := make(chan Event)
	go r.run(ctx, input, mode, injected, out)
	return out
}

func (r *Runtime) run(ctx context.Context, input string, mode HistoryMode, injected []wire.Message, out chan<- Event) {
	defer close(out)
	start := time.Now()

	send := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !send(Event{Kind: EventRequest}) {
		return
	}
	if !send(Event{Kind: EventStatus, Status: "thinking"}) {
		return
	}

	var transcript []wire.Message
	switch mode {
	case HistoryFull:
		if r.sessionID != "" {
			transcript = r.history.Transcript(r.sessionID)
		}
	case HistorySummaryOnly:
		transcript = injected
	case HistoryNone:
		// No prior transcript replayed.
	}

	messages := append(append([]wire.Message{}, transcript...), wire.Message{Role: "user", Content: input})

	req := wire.Request{
		Model:       r.model,
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
		System:      r.promptText(),
		Messages:    messages,
		Stream:      true,
	}

	events, errc := r.client.SendStreaming(ctx, req)

	var text strings.Builder
	var usage wire.Usage
	var providerErrMsg string

	for ev := range events {
		switch ev.Type {
		case wire.EventContentBlockDelta:
			text.WriteString(ev.TextDelta)
			if !send(Event{Kind: EventText, Text: ev.TextDelta}) {
				return
			}
		case wire.EventMessageStart:
			if ev.Usage != nil {
				usage.InputTokens = ev.Usage.InputTokens
			}
		case wire.EventMessageDelta:
			if ev.Usage != nil {
				usage.OutputTokens = ev.Usage.OutputTokens
			}
		case wire.EventErrorType:
			providerErrMsg = ev.Message
		}
	}
	streamErr := <-errc

	elapsed := uint64(time.Since(start).Milliseconds())
	tokenUsage := &llm.TokenUsage{
		PromptTokens:     uint32(usage.InputTokens),
		CompletionTokens: uint32(usage.OutputTokens),
		TotalTokens:      uint32(usage.InputTokens + usage.OutputTokens),
	}

	var resp Response
	switch {
	case errors.Is(streamErr, context.DeadlineExceeded):
		resp = NewTimeoutResponse(text.String(), elapsed, r.config.Name, tokenUsage, 1)
	case streamErr != nil:
		resp = NewFailureResponse(streamErr.Error(), elapsed, r.config.Name)
	case providerErrMsg != "":
		resp = NewFailureResponse(providerErrMsg, elapsed, r.config.Name)
	default:
		resp = NewSuccessResponse(text.String(), elapsed, r.config.Name, tokenUsage, 1)
	}

	if resp.IsSuccess() && r.sessionID != "" && mode == HistoryFull {
		r.history.Append(r.sessionID,
			wire.Message{Role: "user", Content: input},
			wire.Message{Role: "assistant", Content: resp.Result},
		)
	}

	if !send(Event{Kind: EventResponse, Response: &resp}) {
		return
	}
	send(Event{Kind: EventCompleted})
}
