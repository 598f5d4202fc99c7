// Agent runtime configuration types.
//
// Information Hiding:
// - Configuration validation logic hidden
// - Default values hidden
package runtime

import "encoding/json"

// Config holds the static configuration an agent's Runtime is built
// from — everything the orchestrator needs to know to construct and
// invoke the agent, independent of any particular session.
type Config struct {
	// Name is a unique identifier for the agent.
	Name string

	// Description explains what this agent does. Runtime does not add it
	// to any request.
	Description string

	// SystemPrompt guides the agent's behavior. Versioned copies of this
	// text are what the persistence store tracks as AgentVersion rows.
	SystemPrompt string

	// ResponseSchema is an optional JSON schema for agents expected to
	// produce structured output. Runtime does not add it to the system
	// prompt or to any request.
	ResponseSchema json.RawMessage
}

// DefaultConfig returns a basic agent configuration.
func DefaultConfig() Config {
	return Config{
		Name:         "agent",
		Description:  "A general-purpose agent",
		SystemPrompt: "You are a helpful assistant.",
	}
}

// HasResponseSchema returns true if a response schema is configured.
func (c *Config) HasResponseSchema() bool {
	return len(c.ResponseSchema) > 0
}
