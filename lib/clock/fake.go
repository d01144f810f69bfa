// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at initial. Time moves only when
// Advance is called; every scheduled operation registers a pending
// entry that fires when the clock crosses its deadline.
//
// FakeClock is safe for concurrent use.
func Fake(initial time.Time) *FakeClock {
	f := &FakeClock{now: initial}
	f.registered = sync.NewCond(&f.mu)
	return f
}

// FakeClock is a deterministic Clock for tests.
//
// AfterFunc callbacks run synchronously inside Advance, in deadline
// order. Calling Advance from inside a callback deadlocks.
type FakeClock struct {
	mu         sync.Mutex
	now        time.Time
	pending    []*pendingFire
	registered *sync.Cond
}

// pendingFire is one scheduled After, AfterFunc, or ticker entry.
type pendingFire struct {
	deadline time.Time

	// ch receives the fire time for After and ticker entries; nil for
	// AfterFunc entries.
	ch chan time.Time

	// fn runs synchronously during Advance for AfterFunc entries; nil
	// otherwise.
	fn func()

	// every is non-zero for tickers: after firing, the entry is
	// rescheduled at deadline + every.
	every time.Duration

	stopped bool
	fired   bool
}

// Now returns the frozen time.
func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// After registers a one-shot entry. A non-positive d fires immediately.
func (f *FakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- f.now
		return ch
	}
	f.pending = append(f.pending, &pendingFire{deadline: f.now.Add(d), ch: ch})
	f.registered.Broadcast()
	return ch
}

// AfterFunc registers fn to run when the clock crosses now+d. With a
// non-positive d, fn runs synchronously before AfterFunc returns.
func (f *FakeClock) AfterFunc(d time.Duration, fn func()) *Timer {
	f.mu.Lock()
	if d <= 0 {
		f.mu.Unlock()
		fn()
		return &Timer{stop: func() bool { return false }}
	}
	defer f.mu.Unlock()

	entry := &pendingFire{deadline: f.now.Add(d), fn: fn}
	f.pending = append(f.pending, entry)
	f.registered.Broadcast()

	return &Timer{stop: func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		if entry.stopped || entry.fired {
			return false
		}
		entry.stopped = true
		return true
	}}
}

// NewTicker registers a repeating entry. Panics if d <= 0.
func (f *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan time.Time, 1)
	entry := &pendingFire{deadline: f.now.Add(d), ch: ch, every: d}
	f.pending = append(f.pending, entry)
	f.registered.Broadcast()

	return &Ticker{
		C: ch,
		stop: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			entry.stopped = true
		},
		reset: func(d time.Duration) {
			f.mu.Lock()
			defer f.mu.Unlock()
			entry.every = d
			entry.deadline = f.now.Add(d)
			entry.stopped = false
		},
	}
}

// Advance moves the clock forward by d and fires every entry whose
// deadline now falls in the past, in deadline order. Channel sends are
// non-blocking so a full capacity-1 buffer drops the tick, matching
// time.Ticker. Tickers spanning several intervals fire once per
// interval.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	target := f.now
	f.mu.Unlock()

	for {
		due := f.takeDue(target)
		if len(due) == 0 {
			return
		}
		sort.Slice(due, func(i, j int) bool {
			return due[i].deadline.Before(due[j].deadline)
		})
		for _, entry := range due {
			if entry.fn != nil {
				entry.fn()
				continue
			}
			select {
			case entry.ch <- target:
			default:
			}
		}
	}
}

// takeDue removes due entries from the pending list, rescheduling
// tickers for their next interval.
func (f *FakeClock) takeDue(target time.Time) []*pendingFire {
	f.mu.Lock()
	defer f.mu.Unlock()

	var due, rest []*pendingFire
	for _, entry := range f.pending {
		if entry.stopped {
			continue
		}
		if entry.deadline.After(target) {
			rest = append(rest, entry)
			continue
		}
		due = append(due, entry)
	}
	for _, entry := range due {
		if entry.every > 0 {
			entry.deadline = entry.deadline.Add(entry.every)
			rest = append(rest, entry)
		} else {
			entry.fired = true
		}
	}
	f.pending = rest
	return due
}

// WaitForTimers blocks until at least n entries are pending. Use it
// before Advance when the scheduling happens on another goroutine.
func (f *FakeClock) WaitForTimers(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.activeLocked() < n {
		f.registered.Wait()
	}
}

// PendingCount returns the number of active pending entries.
func (f *FakeClock) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeLocked()
}

func (f *FakeClock) activeLocked() int {
	count := 0
	for _, entry := range f.pending {
		if !entry.stopped {
			count++
		}
	}
	return count
}
