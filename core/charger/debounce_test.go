package charger

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerFiresImmediatelyWhenIdle(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(50*time.Millisecond, func() { fired.Add(1) })
	defer d.Stop()

	d.Trigger()
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 1 {
		t.Fatalf("expected immediate fire, got %d", fired.Load())
	}
}

func TestDebouncerCoalescesBursts(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(50*time.Millisecond, func() { fired.Add(1) })
	defer d.Stop()

	d.Trigger()
	d.Trigger()
	d.Trigger()
	d.Trigger()

	time.Sleep(150 * time.Millisecond)
	if got := fired.Load(); got != 2 {
		t.Fatalf("burst should collapse to immediate + one delayed fire, got %d", got)
	}
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(50*time.Millisecond, func() { fired.Add(1) })

	d.Trigger()
	d.Trigger()
	d.Stop()

	time.Sleep(150 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("stop should cancel the pending fire, got %d", got)
	}
}
