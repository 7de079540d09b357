package admission

import (
	"context"
	"sync"
	"time"
)

// StatsEvent describes one admission decision.
type StatsEvent struct {
	Key     ClientKey
	Allowed bool
	Method  string
	Path    string
	At      time.Time
}

// StatsRecorder persists admission decisions for later inspection.
// Recording is best-effort; the middleware logs and ignores errors.
type StatsRecorder interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// Counters is an allowed/denied pair.
type Counters struct {
	Allowed int64
	Denied  int64
}

// MemoryStats keeps decision counters in process memory, in total and per key.
type MemoryStats struct {
	mu    sync.Mutex
	total Counters
	byKey map[ClientKey]Counters
}

// NewMemoryStats returns an empty recorder.
func NewMemoryStats() *MemoryStats {
	return &MemoryStats{byKey: make(map[ClientKey]Counters)}
}

// Record implements StatsRecorder.
func (s *MemoryStats) Record(_ context.Context, ev StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byKey[ev.Key]
	if ev.Allowed {
		s.total.Allowed++
		c.Allowed++
	} else {
		s.total.Denied++
		c.Denied++
	}
	s.byKey[ev.Key] = c
	return nil
}

// Total returns the overall counters.
func (s *MemoryStats) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// ByKey returns a copy of the per-key counters.
func (s *MemoryStats) ByKey() map[ClientKey]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[ClientKey]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}
