package metrics

import (
	"sync"
	"testing"
)

func TestCounterGetOrCreate(t *testing.T) {
	r := NewRegistry()
	c1 := r.Counter("gateway.stake.declared")
	c2 := r.Counter("gateway.stake.declared")
	if c1 != c2 {
		t.Fatal("same name must return the same counter")
	}
	c1.Inc()
	c1.Add(2)
	if c2.Value() != 3 {
		t.Errorf("counter value: got %d, want 3", c2.Value())
	}
}

func TestCounterIgnoresNegativeAdd(t *testing.T) {
	c := NewCounter("x")
	c.Add(-5)
	if c.Value() != 0 {
		t.Errorf("negative add must be ignored, got %d", c.Value())
	}
}

func TestGauge(t *testing.T) {
	r := NewRegistry()
	g := r.Gauge("gateway.messages.inflight")
	g.Set(5)
	g.Inc()
	g.Dec()
	g.Dec()
	if g.Value() != 4 {
		t.Errorf("gauge value: got %d, want 4", g.Value())
	}
}

func TestSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Counter("a").Inc()
	r.Gauge("b").Set(7)
	snap := r.Snapshot()
	if snap["a"] != 1 || snap["b"] != 7 {
		t.Errorf("snapshot mismatch: %v", snap)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Counter("shared").Inc()
			}
		}()
	}
	wg.Wait()
	if got := r.Counter("shared").Value(); got != 1600 {
		t.Errorf("concurrent increments: got %d, want 1600", got)
	}
}
