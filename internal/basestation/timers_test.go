package basestation

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestStartPollReplacesExisting(t *testing.T) {
	r := newTimerRegistry()
	defer r.stopAll()

	var first, second atomic.Int32
	r.startPoll("dev", 30*time.Millisecond, func(time.Duration) { first.Add(1) })
	r.startPoll("dev", 10*time.Millisecond, func(time.Duration) { second.Add(1) })

	if got := r.activePolls(); got != 1 {
		t.Fatalf("activePolls = %d, want 1", got)
	}

	time.Sleep(80 * time.Millisecond)

	if got := first.Load(); got != 0 {
		t.Errorf("replaced poll ticked %d times, want 0", got)
	}
	if got := second.Load(); got == 0 {
		t.Error("replacement poll never ticked")
	}
}

func TestStopPollEndsTicks(t *testing.T) {
	r := newTimerRegistry()

	var ticks atomic.Int32
	r.startPoll("dev", 10*time.Millisecond, func(time.Duration) { ticks.Add(1) })
	time.Sleep(35 * time.Millisecond)
	r.stopPoll("dev")

	if _, ok := r.pollElapsed("dev"); ok {
		t.Error("pollElapsed should report no poll after stop")
	}

	// Allow at most one in-flight tick to drain, then the count must hold.
	time.Sleep(20 * time.Millisecond)
	settled := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	if got := ticks.Load(); got != settled {
		t.Errorf("ticks kept arriving after stop: %d -> %d", settled, got)
	}
}

func TestPollElapsedCountsWholeIntervals(t *testing.T) {
	r := newTimerRegistry()
	defer r.stopAll()

	interval := 10 * time.Millisecond
	got := make(chan time.Duration, 16)
	r.startPoll("dev", interval, func(elapsed time.Duration) {
		select {
		case got <- elapsed:
		default:
		}
	})

	var prev time.Duration
	for i := 0; i < 3; i++ {
		select {
		case elapsed := <-got:
			if elapsed%interval != 0 {
				t.Errorf("elapsed = %v, want a multiple of %v", elapsed, interval)
			}
			if elapsed <= prev {
				t.Errorf("elapsed did not advance: %v then %v", prev, elapsed)
			}
			prev = elapsed
		case <-time.After(time.Second):
			t.Fatal("poll never ticked")
		}
	}
}

func TestOneShotReplacement(t *testing.T) {
	r := newTimerRegistry()
	defer r.stopAll()

	var first, second atomic.Int32
	r.startOneShot("dev", 30*time.Millisecond, func() { first.Add(1) })
	r.startOneShot("dev", 30*time.Millisecond, func() { second.Add(1) })

	time.Sleep(80 * time.Millisecond)

	if got := first.Load(); got != 0 {
		t.Errorf("replaced one-shot fired %d times, want 0", got)
	}
	if got := second.Load(); got != 1 {
		t.Errorf("replacement one-shot fired %d times, want 1", got)
	}
}

func TestOneShotClearsItself(t *testing.T) {
	r := newTimerRegistry()

	fired := make(chan struct{})
	r.startOneShot("dev", 10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("one-shot never fired")
	}

	r.mu.Lock()
	_, present := r.oneShots["dev"]
	r.mu.Unlock()
	if present {
		t.Error("one-shot entry should clear itself after firing")
	}
}

func TestStopAll(t *testing.T) {
	r := newTimerRegistry()

	var polls, shots atomic.Int32
	r.startPoll("a", 10*time.Millisecond, func(time.Duration) { polls.Add(1) })
	r.startPoll("b", 10*time.Millisecond, func(time.Duration) { polls.Add(1) })
	r.startOneShot("a", 30*time.Millisecond, func() { shots.Add(1) })

	r.stopAll()

	if got := r.activePolls(); got != 0 {
		t.Errorf("activePolls after stopAll = %d, want 0", got)
	}

	time.Sleep(60 * time.Millisecond)
	if got := shots.Load(); got != 0 {
		t.Errorf("one-shot fired %d times after stopAll, want 0", got)
	}
}

func TestTimersAreIndependentPerDevice(t *testing.T) {
	r := newTimerRegistry()
	defer r.stopAll()

	var a, b atomic.Int32
	r.startPoll("a", 10*time.Millisecond, func(time.Duration) { a.Add(1) })
	r.startPoll("b", 10*time.Millisecond, func(time.Duration) { b.Add(1) })
	r.stopPoll("a")

	time.Sleep(50 * time.Millisecond)

	if got := r.activePolls(); got != 1 {
		t.Errorf("activePolls = %d, want 1", got)
	}
	if got := b.Load(); got == 0 {
		t.Error("stopping a's poll also stopped b's")
	}
}
