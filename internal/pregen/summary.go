package pregen

import (
	"sort"
	"sync"
	"time"
)

// Failure describes one failed work item.
type Failure struct {
	ItemID   string `json:"item_id"`
	Provider string `json:"provider"`
	Voice    string `json:"voice"`
	Language string `json:"language"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// Summary is the result of one run. Attempted equals the number of selected
// items; Succeeded + Failed + Skipped equals Attempted.
type Summary struct {
	Attempted  int            `json:"attempted"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	Duplicates int            `json:"duplicates"`
	Partial    bool           `json:"partial"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	DurationMS int64          `json:"duration_ms"`
	ByKind     map[string]int `json:"by_kind"`
	Failures   []Failure      `json:"failures"`
}

// collector aggregates outcomes from concurrent workers. Every operation
// is a commutative count so completion order does not matter. Dispatched
// items stay open until their outcome is recorded; once the collector is
// closed, late outcomes are dropped.
type collector struct {
	mu     sync.Mutex
	s      Summary
	open   map[int]WorkItem
	closed bool
}

func newCollector(started time.Time, attempted int) *collector {
	return &collector{
		s: Summary{
			Attempted: attempted,
			StartedAt: started,
			ByKind:    map[string]int{},
			Failures:  []Failure{},
		},
		open: map[int]WorkItem{},
	}
}

func (c *collector) dispatched(idx int, item WorkItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open[idx] = item
}

// settle marks idx as done and reports whether its outcome still counts.
// Callers hold c.mu.
func (c *collector) settle(idx int) bool {
	if c.closed {
		return false
	}
	delete(c.open, idx)
	return true
}

func (c *collector) succeeded(idx int, duplicate bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.settle(idx) {
		return
	}
	c.s.Succeeded++
	if duplicate {
		c.s.Duplicates++
	}
}

func (c *collector) failed(idx int, f Failure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.settle(idx) {
		return
	}
	c.addFailure(f)
}

func (c *collector) addFailure(f Failure) {
	c.s.Failed++
	c.s.ByKind[f.Kind]++
	c.s.Failures = append(c.s.Failures, f)
}

// abandon records every still-open item as failed with the failure built by
// fn and closes the collector. It returns the number of abandoned items.
func (c *collector) abandon(fn func(WorkItem) Failure) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.open)
	for _, item := range c.open {
		c.addFailure(fn(item))
	}
	clear(c.open)
	c.closed = true
	if n > 0 {
		c.s.Partial = true
	}
	return n
}

func (c *collector) skipped(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Skipped += n
	c.s.Partial = true
}

func (c *collector) finish(finished time.Time) *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.s
	s.FinishedAt = finished
	s.DurationMS = finished.Sub(s.StartedAt).Milliseconds()
	s.Failures = append([]Failure(nil), c.s.Failures...)
	sort.Slice(s.Failures, func(i, j int) bool {
		a, b := s.Failures[i], s.Failures[j]
		if a.ItemID != b.ItemID {
			return a.ItemID < b.ItemID
		}
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		return a.Voice < b.Voice
	})
	byKind := make(map[string]int, len(c.s.ByKind))
	for k, v := range c.s.ByKind {
		byKind[k] = v
	}
	s.ByKind = byKind
	return &s
}
