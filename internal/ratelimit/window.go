package ratelimit

import (
	"sync"
	"time"

	"github.com/sakif/life-tracker/internal/clock"
)

// SlidingWindow allows at most limit requests per key within any trailing
// window. Only allowed requests are recorded, so a rejected burst does not
// extend the wait.
type SlidingWindow struct {
	limit  int
	window time.Duration
	clock  clock.Clock

	mu   sync.Mutex
	hits map[string][]time.Time

	janitor *janitor
}

func NewSlidingWindow(limit int, window time.Duration, clk clock.Clock) *SlidingWindow {
	s := &SlidingWindow{
		limit:  limit,
		window: window,
		clock:  clk,
		hits:   make(map[string][]time.Time),
	}
	s.janitor = newJanitor(window, s.evictIdle)
	return s
}

// Allow records a request for key and reports whether it is within the
// limit. A non-positive limit disables limiting.
func (s *SlidingWindow) Allow(key string) bool {
	if s.limit <= 0 {
		return true
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	recent := prune(s.hits[key], now.Add(-s.window))
	if len(recent) >= s.limit {
		s.hits[key] = recent
		return false
	}
	s.hits[key] = append(recent, now)
	return true
}

// Start launches the janitor that drops keys with no recent requests.
func (s *SlidingWindow) Start() { s.janitor.start() }

func (s *SlidingWindow) Stop() { s.janitor.stop() }

// Keys reports how many keys are tracked.
func (s *SlidingWindow) Keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hits)
}

func (s *SlidingWindow) evictIdle() {
	cutoff := s.clock.Now().Add(-s.window)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, ts := range s.hits {
		recent := prune(ts, cutoff)
		if len(recent) == 0 {
			delete(s.hits, key)
			continue
		}
		s.hits[key] = recent
	}
}

// prune drops timestamps at or before cutoff; ts is in ascending order.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}
