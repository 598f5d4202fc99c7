// Package transport implements the streaming chat client (C2): a
// Backend opens a provider-specific Session that yields wire.Event
// values one at a time, and Client turns that into either a live
// channel of events or an accumulated unary response.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/kestrelai/kestrel/wire"
)

// ErrCancelled is returned by a Session after the caller's context is
// cancelled mid-stream.
var ErrCancelled = errors.New("transport: stream cancelled")

// Session pulls decoded events from one in-flight request.
type Session interface {
	// Next returns the next event, or ok=false at end of stream or on
	// error — callers must check Err() after a false return.
	Next() (wire.Event, bool)
	Err() error
	Close() error
}

// Backend opens a Session for one request against a specific provider.
type Backend interface {
	Open(ctx context.Context, req wire.Request) (Session, error)
}

// Client adapts a Backend into channel- and unary-shaped APIs.
type Client struct {
	backend Backend
}

// NewClient wraps a Backend.
func NewClient(backend Backend) *Client {
	return &Client{backend: backend}
}

// SendStreaming opens the request and relays events onto the returned
// channel in arrival order. The error channel receives exactly one
// value (nil on clean completion) and then both channels close. No
// event is sent after ctx is observed done.
func (c *Client) SendStreaming(ctx context.Context, req wire.Request) (<-chan wire.Event, <-chan error) {
	events := make(chan wire.Event)
	errc := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errc)

		session, err := c.backend.Open(ctx, req)
		if err != nil {
			errc <- err
			return
		}
		defer session.Close()

		for {
			ev, ok := session.Next()
			if !ok {
				break
			}
			if err := ctx.Err(); err != nil {
				errc <- err
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
		errc <- session.Err()
	}()

	return events, errc
}

// FullResponse is the accumulated result of a drained stream.
type FullResponse struct {
	Text  string
	Usage wire.Usage
}

// SendUnary drains SendStreaming, accumulating text and usage until the
// stream ends, and surfaces a provider-reported error event as a Go
// error.
func (c *Client) SendUnary(ctx context.Context, req wire.Request) (FullResponse, error) {
	req.Stream = true
	events, errc := c.SendStreaming(ctx, req)

	var resp FullResponse
	var streamErr error
	for ev := range events {
		switch ev.Type {
		case wire.EventContentBlockDelta:
			resp.Text += ev.TextDelta
		case wire.EventMessageStart:
			if ev.Usage != nil {
				resp.Usage.InputTokens = ev.Usage.InputTokens
			}
		case wire.EventMessageDelta:
			if ev.Usage != nil {
				resp.Usage.OutputTokens = ev.Usage.OutputTokens
			}
		case wire.EventErrorType:
			streamErr = fmt.Errorf("transport: provider error: %s", ev.Message)
		}
	}
	if err := <-errc; err != nil {
		return resp, err
	}
	return resp, streamErr
}
