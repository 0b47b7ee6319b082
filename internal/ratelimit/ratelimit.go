// Package ratelimit implements the per-agent fixed-window admission counter.
package ratelimit

import (
	"sync"
	"time"
)

// Window is the fixed rate-limit window length.
const Window = time.Hour

// Limit returns the number of calls per window for a tier. Unknown tiers get
// the sandbox limit.
func Limit(tier string) int {
	switch tier {
	case "core":
		return 1000
	case "verified":
		return 100
	default:
		return 10
	}
}

type window struct {
	start time.Time
	count int
}

// Keyed is a fixed-window rate limiter keyed by agent domain. Windows expire
// lazily on the next admission check; there is no sweeper. The tier is read
// at call time, so a tier change takes effect immediately, mid-window.
type Keyed struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// New creates an empty keyed limiter.
func New() *Keyed {
	return &Keyed{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Admit reports whether the agent may make another call under its current
// tier's limit. The check-and-increment is atomic per key, and a rejected
// call does not grow the window counter past the limit.
func (k *Keyed) Admit(agent, tier string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	w, ok := k.windows[agent]
	if !ok || now.Sub(w.start) >= Window {
		k.windows[agent] = &window{start: now, count: 1}
		return true
	}
	if w.count >= Limit(tier) {
		return false
	}
	w.count++
	return true
}
