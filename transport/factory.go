package transport

import (
	"fmt"

	"github.com/kestrelai/kestrel/llm"
)

// NewBackend builds the Backend for a given provider type and API key,
// mirroring llm.ProviderType's FromEnv/APIKey builder entry points one
// layer down: Anthropic gets the wire-level backend (C1/C2 proper),
// every other vendor is adapted from its official SDK via VendorBackend.
func NewBackend(providerType llm.ProviderType, apiKey, model string, maxTokens uint32, temperature float32) (Backend, error) {
	if providerType == llm.ProviderAnthropic {
		return NewAnthropicBackend(apiKey, nil), nil
	}

	provider, err := llm.NewProviderBuilder(providerType).
		Model(model).
		MaxTokens(maxTokens).
		Temperature(temperature).
		APIKey(apiKey)
	if err != nil {
		return nil, fmt.Errorf("transport: build provider: %w", err)
	}
	return NewVendorBackend(provider), nil
}
