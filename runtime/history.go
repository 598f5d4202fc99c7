// In-process conversation scratch space for a live Runtime. This is
// deliberately non-durable: the orchestrator is responsible for
// committing each finished turn to the persistence store as an
// Interaction row. HistoryCache only keeps a session's transcript
// available for replay within the current process, and optionally a
// short list of past-turn notes an agent can recall while still in the
// same run.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface
package runtime

import (
	"sync"

	"github.com/kestrelai/kestrel/wire"
)

// HistoryCache holds per-session transcripts in memory.
type HistoryCache struct {
	mu       sync.RWMutex
	sessions map[string][]wire.Message
	notes    map[string][]string
}

// NewHistoryCache creates an empty cache.
func NewHistoryCache() *HistoryCache {
	return &HistoryCache{
		sessions: make(map[string][]wire.Message),
		notes:    make(map[string][]string),
	}
}

// Append adds one turn's messages to a session's transcript.
func (c *HistoryCache) Append(sessionID string, messages ...wire.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = append(c.sessions[sessionID], messages...)
}

// Transcript returns a copy of a session's accumulated transcript.
func (c *HistoryCache) Transcript(sessionID string) []wire.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	existing := c.sessions[sessionID]
	copied := make([]wire.Message, len(existing))
	copy(copied, existing)
	return copied
}

// Reset clears a session's transcript, e.g. after a prompt swap that
// should not carry over stale few-shot context.
func (c *HistoryCache) Reset(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
}

// AddNote records a short recall note (e.g. a one-line summary of a
// completed turn) for a session, bounded to the most recent limit.
func (c *HistoryCache) AddNote(sessionID, note string, limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	notes := append(c.notes[sessionID], note)
	if len(notes) > limit {
		notes = notes[len(notes)-limit:]
	}
	c.notes[sessionID] = notes
}

// Notes returns a session's recall notes, oldest first.
func (c *HistoryCache) Notes(sessionID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	existing := c.notes[sessionID]
	copied := make([]string, len(existing))
	copy(copied, existing)
	return copied
}
