package core

import (
	"fmt"
	"sync"
)

// EngineCallLimiter enforces a maximum number of allowed engine calls per run.
type EngineCallLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewEngineCallLimiter creates a new limiter with a max number of calls.
// If max == 0, unlimited calls are allowed.
func NewEngineCallLimiter(max int) *EngineCallLimiter {
	return &EngineCallLimiter{max: max}
}

// Increment increases the call counter and returns an error if the limit is exceeded.
func (el *EngineCallLimiter) Increment() error {
	el.mu.Lock()
	defer el.mu.Unlock()

	el.count++
	if el.max > 0 && el.count > el.max {
		return fmt.Errorf("exceeded max engine calls: %d", el.max)
	}

	return nil
}

// Count returns the current number of calls made.
func (el *EngineCallLimiter) Count() int {
	el.mu.Lock()
	defer el.mu.Unlock()

	return el.count
}

// Remaining returns how many calls are left before hitting the limit.
func (el *EngineCallLimiter) Remaining() int {
	el.mu.Lock()
	defer el.mu.Unlock()

	if el.max == 0 {
		return -1 // unlimited
	}

	return el.max - el.count
}
