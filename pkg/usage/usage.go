// Package usage keeps process-wide, per-backend call accounting.
package usage

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Stats is the accounting for one backend.
type Stats struct {
	Calls    int64     `json:"calls"`
	Failures int64     `json:"failures"`
	Routed   int64     `json:"routed"`
	Tokens   int64     `json:"tokens"`
	LastUsed time.Time `json:"last_used"`
}

// Counter tracks Stats per backend id. It is safe for concurrent use and
// is never persisted.
type Counter struct {
	mu    sync.RWMutex
	stats map[string]*Stats
	now   func() time.Time
}

// NewCounter creates a counter with a zeroed entry for every id.
func NewCounter(ids []string) *Counter {
	c := &Counter{
		stats: make(map[string]*Stats, len(ids)),
		now:   time.Now,
	}
	for _, id := range ids {
		c.stats[id] = &Stats{}
	}
	return c
}

func (c *Counter) entry(id string) *Stats {
	s, ok := c.stats[id]
	if !ok {
		s = &Stats{}
		c.stats[id] = s
	}
	return s
}

// RecordCall counts one attempted call, successful or not.
func (c *Counter) RecordCall(id string, tokens int, success bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.entry(id)
	s.Calls++
	if !success {
		s.Failures++
	}
	if tokens > 0 {
		s.Tokens += int64(tokens)
	}
	s.LastUsed = c.now()
}

// MarkRouted counts one routing decision that selected id.
func (c *Counter) MarkRouted(id string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.entry(id)
	s.Routed++
	s.LastUsed = c.now()
}

// Get returns a copy of the stats for id.
func (c *Counter) Get(id string) (Stats, bool) {
	if c == nil {
		return Stats{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.stats[id]
	if !ok {
		return Stats{}, false
	}
	return *s, true
}

// Stats returns a copy of every backend's stats.
func (c *Counter) Stats() map[string]Stats {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Stats, len(c.stats))
	for id, s := range c.stats {
		out[id] = *s
	}
	return out
}

// Totals sums every backend's stats. LastUsed is the most recent use.
func (c *Counter) Totals() Stats {
	var total Stats
	for _, s := range c.Stats() {
		total.Calls += s.Calls
		total.Failures += s.Failures
		total.Routed += s.Routed
		total.Tokens += s.Tokens
		if s.LastUsed.After(total.LastUsed) {
			total.LastUsed = s.LastUsed
		}
	}
	return total
}

// Active returns ids that have been routed to or called, busiest first.
func (c *Counter) Active() []string {
	stats := c.Stats()
	var ids []string
	for id, s := range stats {
		if s.Calls > 0 || s.Routed > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := stats[ids[i]], stats[ids[j]]
		if a.Calls == b.Calls {
			return ids[i] < ids[j]
		}
		return a.Calls > b.Calls
	})
	return ids
}

// ApproxTokens estimates a token count as the number of words in texts.
func ApproxTokens(texts ...string) int {
	n := 0
	for _, t := range texts {
		n += len(strings.Fields(t))
	}
	return n
}
