package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kestrelai/kestrel/wire"
)

func TestAnthropicBackendSendUnary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") == "" {
			t.Errorf("expected x-api-key header to be set")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`data: {"type":"message_start","message":{"usage":{"input_tokens":10}}}`,
			`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"Hello, "}}`,
			`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"world"}}`,
			`data: {"type":"message_delta","usage":{"output_tokens":3}}`,
			`data: {"type":"message_stop"}`,
		}
		for _, f := range frames {
			w.Write([]byte(f + "\n"))
		}
	}))
	defer server.Close()

	backend := NewAnthropicBackend("test-key", nil).WithBaseURL(server.URL)
	client := NewClient(backend)

	resp, err := client.SendUnary(context.Background(), wire.Request{
		Model:     "claude-opus-4-5-20251101",
		MaxTokens: 100,
		Messages:  []wire.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "Hello, world" {
		t.Errorf("expected accumulated text, got %q", resp.Text)
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 3 {
		t.Errorf("expected usage 10/3, got %+v", resp.Usage)
	}
}

func TestAnthropicBackendSurfacesErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`data: {"type":"error","error":{"message":"overloaded_error"}}` + "\n"))
	}))
	defer server.Close()

	backend := NewAnthropicBackend("test-key", nil).WithBaseURL(server.URL)
	client := NewClient(backend)

	_, err := client.SendUnary(context.Background(), wire.Request{
		Model:     "claude-opus-4-5-20251101",
		MaxTokens: 100,
		Messages:  []wire.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil || !strings.Contains(err.Error(), "overloaded_error") {
		t.Fatalf("expected overloaded_error to surface, got %v", err)
	}
}

func TestAnthropicBackendNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer server.Close()

	backend := NewAnthropicBackend("bad-key", nil).WithBaseURL(server.URL)
	_, err := backend.Open(context.Background(), wire.Request{
		Model:     "claude-opus-4-5-20251101",
		MaxTokens: 10,
		Messages:  []wire.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for non-OK status")
	}
}

// fakeBackend lets the generic Client be tested without any network.
type fakeBackend struct {
	events []wire.Event
}

type fakeSession struct {
	events []wire.Event
	idx    int
}

func (b *fakeBackend) Open(ctx context.Context, req wire.Request) (Session, error) {
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

func TestClientSendStreamingStopsOnCancel(t *testing.T) {
	backend := &fakeBackend{events: []wire.Event{
		{Type: wire.EventContentBlockDelta, TextDelta: "a"},
		{Type: wire.EventContentBlockDelta, TextDelta: "b"},
	}}
	client := NewClient(backend)

	ctx, cancel := context.WithCancel(context.Background())
	events, errc := client.SendStreaming(ctx, wire.Request{Model: "m", MaxTokens: 1, Messages: []wire.Message{{Role: "user", Content: "x"}}})

	cancel()
	// Drain — the channel should close without blocking forever.
	for range events {
	}
	select {
	case err := <-errc:
		if err == nil {
			t.Fatal("expected a non-nil error after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error channel to close")
	}
}
