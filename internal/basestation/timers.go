package basestation

import (
	"sync"
	"time"
)

// timerRegistry owns the per-device timers: one repeating poll timer and
// one one-shot timer per identifier. Starting a timer of a kind that is
// already running for an identifier stops the old one first, so there is
// never more than one of each kind per device.
type timerRegistry struct {
	mu       sync.Mutex
	polls    map[string]*pollTimer
	oneShots map[string]*time.Timer
}

type pollTimer struct {
	ticker  *time.Ticker
	stop    chan struct{}
	elapsed time.Duration // guarded by the registry mutex
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{
		polls:    make(map[string]*pollTimer),
		oneShots: make(map[string]*time.Timer),
	}
}

// startPoll schedules fn at the given interval, replacing any existing
// poll for id. fn receives the total elapsed time, counted in whole
// intervals. At most one tick already in flight may still deliver after
// stopPoll; callers must tolerate that.
func (r *timerRegistry) startPoll(id string, interval time.Duration, fn func(elapsed time.Duration)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopPollLocked(id)

	p := &pollTimer{
		ticker: time.NewTicker(interval),
		stop:   make(chan struct{}),
	}
	r.polls[id] = p

	go func() {
		for {
			select {
			case <-p.stop:
				return
			case <-p.ticker.C:
				r.mu.Lock()
				if r.polls[id] != p {
					// Stopped or replaced while this tick was in flight.
					r.mu.Unlock()
					return
				}
				p.elapsed += interval
				elapsed := p.elapsed
				r.mu.Unlock()
				fn(elapsed)
			}
		}
	}()
}

// pollElapsed reports how long the poll for id has been running, and
// whether one is active at all.
func (r *timerRegistry) pollElapsed(id string) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.polls[id]
	if !ok {
		return 0, false
	}
	return p.elapsed, true
}

func (r *timerRegistry) stopPoll(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopPollLocked(id)
}

func (r *timerRegistry) stopPollLocked(id string) {
	p, ok := r.polls[id]
	if !ok {
		return
	}
	delete(r.polls, id)
	p.ticker.Stop()
	close(p.stop)
}

// startOneShot schedules fn after d, replacing any existing one-shot for
// id. The entry clears itself before fn runs.
func (r *timerRegistry) startOneShot(id string, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopOneShotLocked(id)

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		r.mu.Lock()
		// A replacement may have raced the firing; only the current
		// entry gets to run its callback.
		if r.oneShots[id] != t {
			r.mu.Unlock()
			return
		}
		delete(r.oneShots, id)
		r.mu.Unlock()
		fn()
	})
	r.oneShots[id] = t
}

func (r *timerRegistry) stopOneShot(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopOneShotLocked(id)
}

func (r *timerRegistry) stopOneShotLocked(id string) {
	t, ok := r.oneShots[id]
	if !ok {
		return
	}
	delete(r.oneShots, id)
	t.Stop()
}

// stopAll cancels every timer of both kinds. This is the rescan and
// shutdown path.
func (r *timerRegistry) stopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.polls {
		r.stopPollLocked(id)
	}
	for id := range r.oneShots {
		r.stopOneShotLocked(id)
	}
}

// activePolls reports the number of live poll timers.
func (r *timerRegistry) activePolls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.polls)
}
