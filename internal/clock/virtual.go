package clock

import (
	"sync"
	"time"
)

// VirtualClock is a controllable clock for time-travel testing.
// It allows advancing time instantly without waiting, making
// debounce, throttle and monitor tests deterministic and fast.
//
// Timers registered with AfterFunc fire on the goroutine that calls
// Advance or Set, in deadline order, with Now() reporting each timer's
// own deadline while its callback runs.
//
// Thread-safe for concurrent use.
type VirtualClock struct {
	mu      sync.RWMutex
	current time.Time
	waiters []waiter
	nextID  uint64
}

type waiter struct {
	id       uint64
	deadline time.Time
	ch       chan time.Time // set for After
	fn       func()         // set for AfterFunc
}

// NewVirtualClock creates a VirtualClock starting at the given time.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{
		current: start,
	}
}

// Now returns the current virtual time.
func (c *VirtualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Since returns the virtual duration elapsed since t.
func (c *VirtualClock) Since(t time.Time) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Sub(t)
}

// After returns a channel that receives the virtual time once the clock
// has advanced past the current time plus d. The channel fires during
// Advance() or Set() calls when the deadline is reached.
func (c *VirtualClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)

	// If duration is zero or negative, fire immediately.
	if d <= 0 {
		ch <- c.current
		return ch
	}

	c.nextID++
	c.waiters = append(c.waiters, waiter{
		id:       c.nextID,
		deadline: c.current.Add(d),
		ch:       ch,
	})
	return ch
}

// AfterFunc schedules f to run once the clock reaches now+d.
// A non-positive d never runs f synchronously: it fires on the next
// Advance or Set, including Advance(0).
func (c *VirtualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d < 0 {
		d = 0
	}
	c.nextID++
	c.waiters = append(c.waiters, waiter{
		id:       c.nextID,
		deadline: c.current.Add(d),
		fn:       f,
	})
	return &virtualTimer{clock: c, id: c.nextID}
}

// Pending returns the number of timers and channels still waiting to fire.
func (c *VirtualClock) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.waiters)
}

// Advance moves the virtual clock forward by the given duration.
// It fires any waiters whose deadlines have been reached.
// Panics if d is negative.
func (c *VirtualClock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: cannot advance by negative duration")
	}

	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	c.runUntil(target)
}

// Set sets the virtual clock to an exact time.
// It fires any waiters whose deadlines have been reached.
// Panics if t is before the current time.
func (c *VirtualClock) Set(t time.Time) {
	c.mu.Lock()
	if t.Before(c.current) {
		c.mu.Unlock()
		panic("clock: cannot set time to the past")
	}
	c.mu.Unlock()

	c.runUntil(t)
}

// runUntil fires due waiters one at a time, earliest first, releasing the
// lock around each callback so it can read the clock or schedule more work.
func (c *VirtualClock) runUntil(target time.Time) {
	for {
		c.mu.Lock()
		idx := c.nextDue(target)
		if idx < 0 {
			if target.After(c.current) {
				c.current = target
			}
			c.mu.Unlock()
			return
		}

		w := c.waiters[idx]
		c.waiters = append(c.waiters[:idx], c.waiters[idx+1:]...)
		if w.deadline.After(c.current) {
			c.current = w.deadline
		}
		now := c.current
		c.mu.Unlock()

		if w.fn != nil {
			w.fn()
		} else {
			w.ch <- now
		}
	}
}

// nextDue returns the index of the earliest waiter due at or before target,
// or -1. Ties go to the waiter registered first.
// Must be called with c.mu held.
func (c *VirtualClock) nextDue(target time.Time) int {
	idx := -1
	for i, w := range c.waiters {
		if w.deadline.After(target) {
			continue
		}
		if idx < 0 || w.deadline.Before(c.waiters[idx].deadline) ||
			(w.deadline.Equal(c.waiters[idx].deadline) && w.id < c.waiters[idx].id) {
			idx = i
		}
	}
	return idx
}

func (c *VirtualClock) stop(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, w := range c.waiters {
		if w.id == id {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return true
		}
	}
	return false
}

type virtualTimer struct {
	clock *VirtualClock
	id    uint64
}

func (t *virtualTimer) Stop() bool {
	return t.clock.stop(t.id)
}
