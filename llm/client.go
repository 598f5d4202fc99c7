// LLMClient - rate-limited wrapper around providers.

package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// Client wraps a Provider with a simple interface and a per-client
// request rate limit. Providers hide retry/backoff internally; the
// limiter here bounds how often this process opens a new request
// against the provider at all.
type Client struct {
	provider Provider
	limiter  *rate.Limiter
}

// NewClient creates a new LLM client from a provider with no rate limit.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider, limiter: rate.NewLimiter(rate.Inf, 0)}
}

// NewRateLimitedClient creates a client that waits for a token before
// every request, allowing at most ratePerSecond requests/sec with the
// given burst.
func NewRateLimitedClient(provider Provider, ratePerSecond float64, burst int) *Client {
	return &Client{provider: provider, limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Chat sends a chat completion request and returns just the content.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	response, err := c.provider.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// ChatWithUsage sends a chat completion request and returns content with token usage.
func (c *Client) ChatWithUsage(ctx context.Context, messages []ChatMessage) (string, *TokenUsage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", nil, err
	}
	response, err := c.provider.Chat(ctx, messages)
	if err != nil {
		return "", nil, err
	}
	return response.Content, response.Usage, nil
}

// ChatWithFormat sends a chat completion request with response format
// and returns just the content.
func (c *Client) ChatWithFormat(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	response, err := c.provider.ChatWithFormat(ctx, messages, format)
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// StreamChat streams a chat completion.
func (c *Client) StreamChat(ctx context.Context, messages []ChatMessage, chunks chan<- string) (*TokenUsage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.provider.StreamChat(ctx, messages, chunks)
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}
