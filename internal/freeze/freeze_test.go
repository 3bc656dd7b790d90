package freeze

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestFreezeRunsHooksOnce(t *testing.T) {
	var g Guard
	var calls atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Freeze(func() { calls.Add(1) })
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("hooks ran %d times, want 1", calls.Load())
	}
	if !g.Frozen() {
		t.Fatal("guard should be frozen")
	}
}

func TestMustBeConfigurable(t *testing.T) {
	var g Guard

	// Before freeze: no panic.
	g.MustBeConfigurable()

	g.Freeze()

	defer func() {
		if r := recover(); r != ErrFrozen {
			t.Fatalf("expected ErrFrozen panic, got %v", r)
		}
	}()
	g.MustBeConfigurable()
}

func TestHooksSeeUnfrozenState(t *testing.T) {
	var g Guard
	g.Freeze(func() {
		if g.Frozen() {
			t.Error("guard reported frozen while hooks were still running")
		}
	})
	if !g.Frozen() {
		t.Fatal("guard not frozen after Freeze returned")
	}
}
