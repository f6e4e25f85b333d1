// Package perf keeps the most recent request and query timings in memory
// and summarises them for GET /api/admin/perf.
package perf

import (
	"cmp"
	"math"
	"slices"
	"sync"
	"time"
)

// DefaultRingSize is how many timings the server keeps.
const DefaultRingSize = 10000

// EntryKind tells HTTP requests from database work.
type EntryKind uint8

const (
	KindRequest EntryKind = iota
	KindQuery
)

// Entry is one timed unit.
type Entry struct {
	Kind     EntryKind
	Key      string // "METHOD /route" for requests, a statement label for queries
	Status   int    // HTTP status; 0 for queries
	Duration time.Duration
	At       time.Time
}

func (e Entry) ms() float64 { return float64(e.Duration.Microseconds()) / 1000 }

// Collector overwrites its oldest entry once full. Record never waits on Snapshot
// for longer than one slice copy.
type Collector struct {
	mu    sync.Mutex
	ring  []Entry
	next  int
	total int64
}

// NewCollector keeps the last size entries; size <= 0 means DefaultRingSize.
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{ring: make([]Entry, size)}
}

// Record stores e, evicting the oldest entry when the ring is full.
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.ring[c.next] = e
	c.next = (c.next + 1) % len(c.ring)
	c.total++
	c.mu.Unlock()
}

// TotalRecorded counts every Record call since start, evicted entries included.
func (c *Collector) TotalRecorded() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Snapshot summarises the entries inside a time window.
type Snapshot struct {
	Since          time.Time `json:"since"`
	TotalRequests  int64     `json:"totalRequests"`
	ServerErrors   int       `json:"serverErrors"`
	RequestP50Ms   float64   `json:"requestP50Ms"`
	RequestP95Ms   float64   `json:"requestP95Ms"`
	RequestP99Ms   float64   `json:"requestP99Ms"`
	SlowestRoutes  []Stat    `json:"slowestRoutes"`
	SlowestQueries []Stat    `json:"slowestQueries"`
}

// Stat aggregates one route or statement.
type Stat struct {
	Key     string  `json:"key"`
	Count   int     `json:"count"`
	AvgMs   float64 `json:"avgMs"`
	MaxMs   float64 `json:"maxMs"`
	TotalMs float64 `json:"totalMs"`
}

type statsByKey map[string]*Stat

func (s statsByKey) add(e Entry) {
	st := s[e.Key]
	if st == nil {
		st = &Stat{Key: e.Key}
		s[e.Key] = st
	}
	ms := e.ms()
	st.Count++
	st.TotalMs += ms
	st.MaxMs = max(st.MaxMs, ms)
}

// slowest ranks by average, then key, and keeps n.
func (s statsByKey) slowest(n int) []Stat {
	out := make([]Stat, 0, len(s))
	for _, st := range s {
		st.AvgMs = st.TotalMs / float64(st.Count)
		out = append(out, *st)
	}
	slices.SortFunc(out, func(a, b Stat) int {
		return cmp.Or(cmp.Compare(b.AvgMs, a.AvgMs), cmp.Compare(a.Key, b.Key))
	})
	return out[:min(n, len(out))]
}

// Snapshot summarises entries at or after since, keeping the topN slowest
// routes and queries. It copies the ring, so call it per admin request only.
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	c.mu.Lock()
	entries := slices.Clone(c.ring)
	snap := Snapshot{Since: since, TotalRequests: c.total}
	c.mu.Unlock()

	routes, queries := statsByKey{}, statsByKey{}
	var requestMs []float64
	for _, e := range entries {
		if e.At.IsZero() || e.At.Before(since) {
			continue
		}
		if e.Kind == KindQuery {
			queries.add(e)
			continue
		}
		routes.add(e)
		requestMs = append(requestMs, e.ms())
		if e.Status >= 500 {
			snap.ServerErrors++
		}
	}

	snap.SlowestRoutes = routes.slowest(topN)
	snap.SlowestQueries = queries.slowest(topN)
	slices.Sort(requestMs)
	snap.RequestP50Ms = percentile(requestMs, 0.50)
	snap.RequestP95Ms = percentile(requestMs, 0.95)
	snap.RequestP99Ms = percentile(requestMs, 0.99)
	return snap
}

// percentile interpolates linearly between closest ranks. q is in [0, 1].
// PRE: sorted is ascending
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := q * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := min(lo+1, len(sorted)-1)
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
