package watcher

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesBurst(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls atomic.Int32

	for i := 0; i < 5; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("callback ran %d times, want 1", got)
	}
}

func TestDebouncer_LastCallbackWins(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var got atomic.Int32

	d.Trigger(func() { got.Store(1) })
	d.Trigger(func() { got.Store(2) })

	time.Sleep(100 * time.Millisecond)
	if got.Load() != 2 {
		t.Errorf("got callback %d, want 2", got.Load())
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls atomic.Int32

	d.Trigger(func() { calls.Add(1) })
	d.Cancel()

	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("callback ran %d times after Cancel, want 0", got)
	}
}

func TestDebouncer_DefaultWindow(t *testing.T) {
	if w := NewDebouncer(0).Window(); w != DefaultDebounce {
		t.Errorf("Window() = %v, want %v", w, DefaultDebounce)
	}
}
