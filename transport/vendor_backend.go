package transport

import (
	"context"
	"sync"

	"github.com/kestrelai/kestrel/llm"
	"github.com/kestrelai/kestrel/wire"
)

// VendorBackend adapts an llm.Provider (the teacher's official-SDK
// abstraction over OpenAI/Gemini/DeepSeek) into the wire.Event-shaped
// Session this package expects, by synthesizing message_start and
// message_delta framing around the provider's native text-chunk
// streaming. Anthropic uses AnthropicBackend directly instead, since C1
// is specified against its wire shape; the other vendors' SSE framing
// is internal to their own SDKs and has no independent wire format to
// reimplement here.
type VendorBackend struct {
	provider llm.Provider
}

// NewVendorBackend wraps a configured provider.
func NewVendorBackend(provider llm.Provider) *VendorBackend {
	return &VendorBackend{provider: provider}
}

func (b *VendorBackend) Open(ctx context.Context, req wire.Request) (Session, error) {
	messages := make([]llm.ChatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, llm.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		messages = append(messages, llm.ChatMessage{Role: m.Role, Content: m.Content})
	}

	chunks := make(chan string, 16)
	done := make(chan struct{})
	sess := &vendorSession{chunks: chunks, done: done}

	go func() {
		defer close(chunks)
		usage, err := b.provider.StreamChat(ctx, messages, chunks)
		sess.mu.Lock()
		sess.usage = usage
		sess.err = err
		sess.mu.Unlock()
		close(done)
	}()

	return sess, nil
}

type vendorSession struct {
	chunks chan string
	done   chan struct{}

	mu           sync.Mutex
	usage        *llm.TokenUsage
	err          error
	startEmitted bool
	stopEmitted  bool
}

func (s *vendorSession) Next() (wire.Event, bool) {
	if !s.startEmitted {
		s.startEmitted = true
		return wire.Event{Type: wire.EventMessageStart}, true
	}

	if text, ok := <-s.chunks; ok {
		return wire.Event{Type: wire.EventContentBlockDelta, TextDelta: text}, true
	}

	<-s.done
	if !s.stopEmitted {
		s.stopEmitted = true
		s.mu.Lock()
		usage := s.usage
		s.mu.Unlock()

		ev := wire.Event{Type: wire.EventMessageDelta}
		if usage != nil {
			ev.Usage = &wire.Usage{
				InputTokens:  int64(usage.PromptTokens),
				OutputTokens: int64(usage.CompletionTokens),
			}
		}
		return ev, true
	}

	return wire.Event{}, false
}

func (s *vendorSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *vendorSession) Close() error { return nil }

var _ Backend = (*VendorBackend)(nil)
