// Agent config builder for fluent configuration.
//
// Information Hiding:
// - Builder state management hidden
// - Default value application hidden
package runtime

import (
	"encoding/json"
	"fmt"
)

// Builder provides fluent configuration for creating agent configs.
// Usage: runtime.NewBuilder("name") - no stutter.
type Builder struct {
	name           string
	description    string
	systemPrompt   string
	responseSchema json.RawMessage
}

// NewBuilder creates a new agent builder with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Description sets the agent's description.
func (b *Builder) Description(description string) *Builder {
	b.description = description
	return b
}

// SystemPrompt sets the agent's system prompt.
func (b *Builder) SystemPrompt(prompt string) *Builder {
	b.systemPrompt = prompt
	return b
}

// ResponseSchema sets the JSON schema for structured outputs.
func (b *Builder) ResponseSchema(schema json.RawMessage) *Builder {
	b.responseSchema = schema
	return b
}

// Build creates the agent configuration.
func (b *Builder) Build() Config {
	description := b.description
	if description == "" {
		description = fmt.Sprintf("Agent: %s", b.name)
	}

	systemPrompt := b.systemPrompt
	if systemPrompt == "" {
		systemPrompt = fmt.Sprintf(
			"You are an agent named %s.",
			b.name,
		)
	}

	return Config{
		Name:           b.name,
		Description:    description,
		SystemPrompt:   systemPrompt,
		ResponseSchema: b.responseSchema,
	}
}

// Name returns the builder's agent name.
func (b *Builder) Name() string {
	return b.name
}

// Collection manages multiple agent configurations, e.g. while bootstrapping
// a team from base prompts.
type Collection struct {
	configs []Config
}

// NewCollection creates an empty agent collection.
func NewCollection() *Collection {
	return &Collection{configs: []Config{}}
}

// Add adds an agent from a builder.
func (c *Collection) Add(builder *Builder) *Collection {
	c.configs = append(c.configs, builder.Build())
	return c
}

// AddConfig adds a pre-built config.
func (c *Collection) AddConfig(config Config) *Collection {
	c.configs = append(c.configs, config)
	return c
}

// Build returns all configurations.
func (c *Collection) Build() []Config {
	return c.configs
}

// Len returns the number of agents.
func (c *Collection) Len() int {
	return len(c.configs)
}

// AgentInfo describes an agent's basic information.
type AgentInfo struct {
	Name        string
	Description string
}

// List returns agent names and descriptions.
func (c *Collection) List() []AgentInfo {
	result := make([]AgentInfo, len(c.configs))
	for i, cfg := range c.configs {
		result[i] = AgentInfo{Name: cfg.Name, Description: cfg.Description}
	}
	return result
}
