package generation

import (
	"sync"
	"testing"
)

func TestGuard_Advance(t *testing.T) {
	g := New()

	captured := g.Current()
	if !g.IsCurrent(captured) {
		t.Fatal("fresh capture should be current")
	}

	next := g.Advance()
	if next != captured+1 {
		t.Errorf("Advance() = %d, want %d", next, captured+1)
	}
	if g.IsCurrent(captured) {
		t.Error("old capture should be stale after Advance")
	}
	if !g.IsCurrent(next) {
		t.Error("new generation should be current")
	}
}

func TestGuard_ConcurrentAdvance(t *testing.T) {
	g := New()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Advance()
		}()
	}
	wg.Wait()

	if g.Current() != 100 {
		t.Errorf("Current() = %d, want 100", g.Current())
	}
}
