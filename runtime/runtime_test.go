package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelai/kestrel/transport"
	"github.com/kestrelai/kestrel/wire"
)

// fakeBackend and fakeSession let Runtime be tested without any network,
// mirroring the fakes transport's own test suite uses.
type fakeBackend struct {
	events []wire.Event
}

type fakeSession struct {
	events []wire.Event
	idx    int
}

func (b *fakeBackend) Open(ctx context.Context, req wire.Request) (transport.Session, error) {
	return &fakeSession{events: b.events}, nil
}

func (s *fakeSession) Next() (wire.Event, bool) {
	if s.idx >= len(s.events) {
		return wire.Event{}, false
	}
	ev := s.events[s.idx]
	s.idx++
	return ev, true
}
func (s *fakeSession) Err() error   { return nil }
func (s *fakeSession) Close() error { return nil }

func successEvents(text string) []wire.Event {
	return []wire.Event{
		{Type: wire.EventMessageStart, Usage: &wire.Usage{InputTokens: 5}},
		{Type: wire.EventContentBlockDelta, TextDelta: text},
		{Type: wire.EventMessageDelta, Usage: &wire.Usage{OutputTokens: 2}},
		{Type: wire.EventMessageStop},
	}
}

func drain(t *testing.T, ch <-chan Event, timeout time.Duration) []Event {
	t.Helper()
	var got []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-deadline:
			t.Fatal("timed out draining event channel")
		}
	}
}

func TestRuntimeRequestSuccess(t *testing.T) {
	backend := &fakeBackend{events: successEvents("hello there")}
	rt := New(Config{Name: "scout", SystemPrompt: "be terse"}, transport.NewClient(backend), "m", 100, 0.2)
	rt.WithSession("s1")

	events := drain(t, rt.Request(context.Background(), "hi", HistoryFull, nil), 2*time.Second)

	var resp *Response
	var textSeen string
	for _, ev := range events {
		if ev.Kind == EventText {
			textSeen += ev.Text
		}
		if ev.Kind == EventResponse {
			resp = ev.Response
		}
	}
	if resp == nil {
		t.Fatal("expected an EventResponse")
	}
	if !resp.IsSuccess() {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp.Result != "hello there" {
		t.Errorf("expected accumulated result, got %q", resp.Result)
	}
	if textSeen != "hello there" {
		t.Errorf("expected streamed text to match result, got %q", textSeen)
	}
	if resp.Metadata.TokenUsage.PromptTokens != 5 || resp.Metadata.TokenUsage.CompletionTokens != 2 {
		t.Errorf("expected usage 5/2, got %+v", resp.Metadata.TokenUsage)
	}
	if events[len(events)-1].Kind != EventCompleted {
		t.Errorf("expected last event to be EventCompleted, got %v", events[len(events)-1].Kind)
	}

	transcript := rt.history.Transcript("s1")
	if len(transcript) != 2 {
		t.Fatalf("expected 2 messages appended to history under HistoryFull, got %d", len(transcript))
	}
}

func TestRuntimeRequestProviderError(t *testing.T) {
	backend := &fakeBackend{events: []wire.Event{
		{Type: wire.EventErrorType, Message: "overloaded_error"},
	}}
	rt := New(Config{Name: "scout", SystemPrompt: "be terse"}, transport.NewClient(backend), "m", 100, 0.2)

	events := drain(t, rt.Request(context.Background(), "hi", HistoryNone, nil), 2*time.Second)

	var resp *Response
	for _, ev := range events {
		if ev.Kind == EventResponse {
			resp = ev.Response
		}
	}
	if resp == nil {
		t.Fatal("expected an EventResponse")
	}
	if resp.Type != ResponseFailure {
		t.Fatalf("expected failure, got %+v", resp)
	}
	if resp.Error != "overloaded_error" {
		t.Errorf("expected provider error text preserved, got %q", resp.Error)
	}
}

func TestRuntimeSwapPromptTakesEffectImmediately(t *testing.T) {
	rt := New(Config{Name: "scout", SystemPrompt: "v1"}, transport.NewClient(&fakeBackend{}), "m", 100, 0.2)
	if rt.promptText() != "v1" {
		t.Fatalf("expected initial prompt v1, got %q", rt.promptText())
	}
	rt.SwapPrompt("v2")
	if rt.promptText() != "v2" {
		t.Fatalf("expected swapped prompt v2, got %q", rt.promptText())
	}
}

func TestRuntimeHistoryNoneLeavesPersistentHistoryUnchanged(t *testing.T) {
	rt := New(Config{Name: "scout", SystemPrompt: "v1"}, transport.NewClient(&fakeBackend{events: successEvents("ack")}), "m", 100, 0.2)
	rt.WithSession("s1")
	rt.history.Append("s1", wire.Message{Role: "user", Content: "stale"})

	drain(t, rt.Request(context.Background(), "hi", HistoryNone, nil), 2*time.Second)

	// A stateless turn must neither replay nor persist anything: the
	// agent's history after the request is byte-for-byte what it was
	// before.
	transcript := rt.history.Transcript("s1")
	if len(transcript) != 1 {
		t.Fatalf("expected persistent history unchanged by a HistoryNone turn, got %d messages", len(transcript))
	}
	if transcript[0].Content != "stale" {
		t.Errorf("expected prior note left untouched, got %q", transcript[0].Content)
	}
}

func TestRuntimeHistorySummaryOnlyLeavesPersistentHistoryUnchanged(t *testing.T) {
	rt := New(Config{Name: "scout", SystemPrompt: "v1"}, transport.NewClient(&fakeBackend{events: successEvents("ack")}), "m", 100, 0.2)
	rt.WithSession("s1")
	rt.history.Append("s1", wire.Message{Role: "user", Content: "stale"})

	drain(t, rt.Request(context.Background(), "hi", HistorySummaryOnly, []wire.Message{{Role: "user", Content: "injected excerpt"}}), 2*time.Second)

	// A session-aware turn replays only the caller-supplied excerpt; it
	// must not fold its own turn into the runtime's persistent history
	// either, since that mutation is reserved for HistoryFull.
	transcript := rt.history.Transcript("s1")
	if len(transcript) != 1 {
		t.Fatalf("expected persistent history unchanged by a HistorySummaryOnly turn, got %d messages", len(transcript))
	}
}
