package metrics

import "sync/atomic"

// Counter is a monotonically increasing event count.
type Counter struct {
	name  string
	value atomic.Int64
}

func newCounter(name string) *Counter {
	return &Counter{name: name}
}

// Inc adds one to the counter.
func (c *Counter) Inc() {
	if !enabled.Load() {
		return
	}
	c.value.Add(1)
}

// Add adds n to the counter.
func (c *Counter) Add(n int64) {
	if !enabled.Load() {
		return
	}
	c.value.Add(n)
}

// Value returns the current count.
func (c *Counter) Value() int64 { return c.value.Load() }

// Name returns the counter name.
func (c *Counter) Name() string { return c.name }

// Reset sets the counter back to zero.
func (c *Counter) Reset() { c.value.Store(0) }

var (
	EventsQueued       = newCounter("events_queued")
	EventsCoalesced    = newCounter("events_coalesced")
	EventsStale        = newCounter("events_stale")
	Vetoes             = newCounter("vetoes")
	Evictions          = newCounter("evictions")
	EvictionsCancelled = newCounter("evictions_cancelled")
	CollaboratorPanics = newCounter("collaborator_panics")
)

// AllCounters returns all registered counters.
func AllCounters() []*Counter {
	return []*Counter{
		EventsQueued,
		EventsCoalesced,
		EventsStale,
		Vetoes,
		Evictions,
		EvictionsCancelled,
		CollaboratorPanics,
	}
}

// CounterValues returns a name -> value map of every non-zero counter.
func CounterValues() map[string]int64 {
	out := make(map[string]int64)
	for _, c := range AllCounters() {
		if v := c.Value(); v != 0 {
			out[c.name] = v
		}
	}
	return out
}
