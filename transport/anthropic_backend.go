package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kestrelai/kestrel/wire"
)

const (
	defaultAnthropicURL     = "https://api.anthropic.com/v1/messages"
	defaultAnthropicVersion = "2023-06-01"
)

// AnthropicBackend speaks the Anthropic Messages API directly over
// net/http and bufio, decoding each "data:" line with wire.DecodeSSELine.
// This is a from-scratch wire-level client (not a wrapped SDK) since C1
// and C2 are components in their own right.
type AnthropicBackend struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	apiVersion string
}

// NewAnthropicBackend constructs a backend for the given API key. A nil
// httpClient falls back to a client with a generous per-request timeout;
// cancellation is still driven by the caller's context.
func NewAnthropicBackend(apiKey string, httpClient *http.Client) *AnthropicBackend {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &AnthropicBackend{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    defaultAnthropicURL,
		apiVersion: defaultAnthropicVersion,
	}
}

// WithBaseURL overrides the endpoint, used by tests against httptest servers.
func (b *AnthropicBackend) WithBaseURL(url string) *AnthropicBackend {
	b.baseURL = url
	return b
}

// Open starts a streaming request and returns a Session over the HTTP
// response body.
func (b *AnthropicBackend) Open(ctx context.Context, req wire.Request) (Session, error) {
	req.Stream = true
	body, err := wire.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-api-key", b.apiKey)
	httpReq.Header.Set("anthropic-version", b.apiVersion)
	httpReq.Header.Set("accept", "text/event-stream")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transport: request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("transport: anthropic backend returned status %d: %s", resp.StatusCode, msg)
	}

	return &anthropicSession{
		ctx:     ctx,
		body:    resp.Body,
		scanner: bufio.NewScanner(resp.Body),
	}, nil
}

type anthropicSession struct {
	ctx     context.Context
	body    io.ReadCloser
	scanner *bufio.Scanner
	err     error
}

func (s *anthropicSession) Next() (wire.Event, bool) {
	for {
		select {
		case <-s.ctx.Done():
			s.err = ErrCancelled
			return wire.Event{}, false
		default:
		}

		if !s.scanner.Scan() {
			s.err = s.scanner.Err()
			return wire.Event{}, false
		}

		ev, ok, err := wire.DecodeSSELine(s.scanner.Bytes())
		if err != nil {
			if errors.Is(err, io.EOF) {
				return wire.Event{}, false
			}
			s.err = err
			return wire.Event{}, false
		}
		if !ok {
			continue
		}
		return ev, true
	}
}

func (s *anthropicSession) Err() error   { return s.err }
func (s *anthropicSession) Close() error { return s.body.Close() }

var _ Backend = (*AnthropicBackend)(nil)
