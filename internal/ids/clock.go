package ids

import (
	"sync"
	"time"
)

// Clock produces monotonically non-decreasing wall-clock timestamps,
// serialized as ISO-8601 UTC strings. When two calls land in the same
// wall-clock nanosecond, a tiebreaker nudges the later one forward so
// stored timestamps remain strictly ordered within a process, per
// the journal's chronology requirement.
type Clock struct {
	mu   sync.Mutex
	last time.Time
}

// NewClock creates a Clock with no prior observations.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current time, guaranteed to be strictly after any
// previously returned value from this Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	if !now.After(c.last) {
		now = c.last.Add(time.Nanosecond)
	}
	c.last = now
	return now
}

// FormatTimestamp renders t as the ISO-8601 UTC string used at every
// serialization boundary (journal entries, snapshots, API payloads).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses a timestamp previously produced by FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
