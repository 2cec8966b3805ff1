package model

import (
	"fmt"
	"sync"
)

// Conversations maps each (model, instance) pair to the continuation handle
// of its conversation. One Conversations belongs to one run; it is safe for
// concurrent use by dispatch workers.
type Conversations struct {
	runID string

	mu      sync.Mutex
	handles map[string]string
}

// NewConversations returns an empty mapping for the run identified by runID.
func NewConversations(runID string) *Conversations {
	return &Conversations{
		runID:   runID,
		handles: make(map[string]string),
	}
}

// RunID returns the identifier of the run owning this mapping.
func (c *Conversations) RunID() string {
	if c == nil {
		return ""
	}
	return c.runID
}

// Get returns the handle recorded for (model, instance), or "".
func (c *Conversations) Get(model string, instance int) string {
	if c == nil {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles[key(model, instance)]
}

// Record stores handle for (model, instance) unless one is already present
// or handle is empty. It reports whether the handle was stored.
func (c *Conversations) Record(model string, instance int, handle string) bool {
	if c == nil || handle == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(model, instance)
	if _, ok := c.handles[k]; ok {
		return false
	}
	c.handles[k] = handle
	return true
}

// Len returns the number of recorded conversations.
func (c *Conversations) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

func key(model string, instance int) string {
	return fmt.Sprintf("%s-%d", model, instance)
}
