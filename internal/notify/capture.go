package notify

import (
	"context"
	"sync"
)

// Capture is an in-memory Sink for tests.
type Capture struct {
	mu      sync.Mutex
	intents []Intent
}

func (c *Capture) Notify(_ context.Context, intent Intent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intents = append(c.intents, intent)
	return nil
}

// Intents returns a copy of everything captured so far.
func (c *Capture) Intents() []Intent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Intent, len(c.intents))
	copy(out, c.intents)
	return out
}

// Reset clears captured intents.
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intents = nil
}
