package validate

import "sort"

// Stats aggregates per-rule decision counters for one validator (or one
// worker's validator). Not safe for concurrent use: parallel pipelines
// keep per-worker Stats and Merge them afterward.
type Stats struct {
	counts map[string]int
}

// NewStats returns an empty counter set.
func NewStats() *Stats {
	return &Stats{counts: make(map[string]int)}
}

func (s *Stats) bump(key string) {
	s.counts[key]++
}

// Bump increments one counter. Exposed for pipeline stages that record
// their own keys (extraction rule hits, malformed input lines) into the
// same report.
func (s *Stats) Bump(key string) {
	s.bump(key)
}

// Merge adds another counter set into this one.
func (s *Stats) Merge(other *Stats) {
	if other == nil {
		return
	}
	for k, v := range other.counts {
		s.counts[k] += v
	}
}

// Counts returns a copy of the counter map.
func (s *Stats) Counts() map[string]int {
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Get returns one counter value.
func (s *Stats) Get(key string) int {
	return s.counts[key]
}

// Keys returns the counter names in sorted order.
func (s *Stats) Keys() []string {
	keys := make([]string, 0, len(s.counts))
	for k := range s.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
