package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestTimingMetric_RecordTracksMinMax(t *testing.T) {
	m := newTimingMetric("test")
	m.Record(3 * time.Millisecond)
	m.Record(1 * time.Millisecond)
	m.Record(5 * time.Millisecond)

	s := m.Stats()
	if s.Count != 3 {
		t.Fatalf("Count=%d, want 3", s.Count)
	}
	if s.MinMs != 1 {
		t.Errorf("MinMs=%v, want 1", s.MinMs)
	}
	if s.MaxMs != 5 {
		t.Errorf("MaxMs=%v, want 5", s.MaxMs)
	}
	if s.AvgMs != 3 {
		t.Errorf("AvgMs=%v, want 3", s.AvgMs)
	}
}

func TestTimingMetric_Disabled(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	m := newTimingMetric("off")
	m.Record(time.Millisecond)
	Timer(m)()
	if m.Count() != 0 {
		t.Errorf("expected no records while disabled, got %d", m.Count())
	}
}

func TestCounter_Concurrent(t *testing.T) {
	c := newCounter("c")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()
	if c.Value() != 800 {
		t.Errorf("Value=%d, want 800", c.Value())
	}
	c.Reset()
	if c.Value() != 0 {
		t.Errorf("Value after reset=%d", c.Value())
	}
}
