// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var epoch = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNow(t *testing.T) {
	t.Parallel()
	fake := Fake(epoch)
	if got := fake.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	fake.Advance(5 * time.Second)
	want := epoch.Add(5 * time.Second)
	if got := fake.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	t.Parallel()
	fake := Fake(epoch)
	ch := fake.After(3 * time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	fake.Advance(3 * time.Second)

	select {
	case <-ch:
	default:
		t.Fatal("After did not fire after Advance")
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	t.Parallel()
	fake := Fake(epoch)
	for _, d := range []time.Duration{0, -time.Second} {
		select {
		case <-fake.After(d):
		default:
			t.Fatalf("After(%v) should fire immediately", d)
		}
	}
}

func TestFakeAfterPartialAdvance(t *testing.T) {
	t.Parallel()
	fake := Fake(epoch)
	ch := fake.After(10 * time.Second)

	fake.Advance(9 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before its deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case <-ch:
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterFunc(t *testing.T) {
	t.Parallel()
	fake := Fake(epoch)
	var calls atomic.Int32
	fake.AfterFunc(2*time.Second, func() { calls.Add(1) })

	fake.Advance(time.Second)
	if got := calls.Load(); got != 0 {
		t.Fatalf("callback ran %d times before deadline, want 0", got)
	}

	fake.Advance(time.Second)
	if got := calls.Load(); got != 1 {
		t.Fatalf("callback ran %d times, want 1", got)
	}

	// One-shot: further advances must not re-fire.
	fake.Advance(10 * time.Second)
	if got := calls.Load(); got != 1 {
		t.Fatalf("callback ran %d times after extra advance, want 1", got)
	}
}

func TestFakeAfterFuncZeroRunsSynchronously(t *testing.T) {
	t.Parallel()
	fake := Fake(epoch)
	ran := false
	fake.AfterFunc(0, func() { ran = true })
	if !ran {
		t.Fatal("AfterFunc(0) did not run synchronously")
	}
}

func TestFakeAfterFuncStop(t *testing.T) {
	t.Parallel()
	fake := Fake(epoch)
	var calls atomic.Int32
	timer := fake.AfterFunc(time.Second, func() { calls.Add(1) })

	if !timer.Stop() {
		t.Fatal("Stop() = false for a pending timer, want true")
	}
	if timer.Stop() {
		t.Fatal("second Stop() = true, want false")
	}

	fake.Advance(5 * time.Second)
	if got := calls.Load(); got != 0 {
		t.Fatalf("stopped callback ran %d times, want 0", got)
	}
}

func TestFakeAfterFuncStopAfterFire(t *testing.T) {
	t.Parallel()
	fake := Fake(epoch)
	timer := fake.AfterFunc(time.Second, func() {})
	fake.Advance(time.Second)
	if timer.Stop() {
		t.Fatal("Stop() = true after the timer fired, want false")
	}
}

func TestFakeTicker(t *testing.T) {
	t.Parallel()
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Minute)
	defer ticker.Stop()

	fake.Advance(time.Minute)
	select {
	case <-ticker.C:
	default:
		t.Fatal("no tick after one interval")
	}

	fake.Advance(time.Minute)
	select {
	case <-ticker.C:
	default:
		t.Fatal("no tick after second interval")
	}
}

func TestFakeTickerStop(t *testing.T) {
	t.Parallel()
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Second)
	ticker.Stop()

	fake.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker delivered a tick")
	default:
	}
}

func TestFakeTickerReset(t *testing.T) {
	t.Parallel()
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Minute)
	defer ticker.Stop()

	ticker.Reset(time.Second)
	fake.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("no tick after Reset to a shorter interval")
	}
}

func TestFakeTickerPanicsOnNonPositive(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatal("NewTicker(0) did not panic")
		}
	}()
	Fake(epoch).NewTicker(0)
}

func TestFakeTickerDropsMissedTicks(t *testing.T) {
	t.Parallel()
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Second)
	defer ticker.Stop()

	// Three intervals with nobody reading: capacity 1 keeps one tick.
	fake.Advance(3 * time.Second)

	got := 0
	for {
		select {
		case <-ticker.C:
			got++
			continue
		default:
		}
		break
	}
	if got != 1 {
		t.Fatalf("buffered ticks = %d, want 1", got)
	}
}

func TestFakeMultipleDeadlinesFireInOrder(t *testing.T) {
	t.Parallel()
	fake := Fake(epoch)

	var mu sync.Mutex
	var order []int
	fake.AfterFunc(3*time.Second, func() { mu.Lock(); order = append(order, 3); mu.Unlock() })
	fake.AfterFunc(1*time.Second, func() { mu.Lock(); order = append(order, 1); mu.Unlock() })
	fake.AfterFunc(2*time.Second, func() { mu.Lock(); order = append(order, 2); mu.Unlock() })

	fake.Advance(3 * time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("fire order = %v, want [1 2 3]", order)
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	t.Parallel()
	fake := Fake(epoch)

	fired := make(chan struct{})
	go func() {
		<-fake.After(time.Second)
		close(fired)
	}()

	fake.WaitForTimers(1)
	fake.Advance(time.Second)

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("goroutine never observed the fired timer")
	}
}

func TestFakePendingCount(t *testing.T) {
	t.Parallel()
	fake := Fake(epoch)
	if got := fake.PendingCount(); got != 0 {
		t.Fatalf("PendingCount() = %d on a fresh clock, want 0", got)
	}

	timer := fake.AfterFunc(time.Second, func() {})
	fake.After(time.Second)
	if got := fake.PendingCount(); got != 2 {
		t.Fatalf("PendingCount() = %d, want 2", got)
	}

	timer.Stop()
	if got := fake.PendingCount(); got != 1 {
		t.Fatalf("PendingCount() after Stop = %d, want 1", got)
	}

	fake.Advance(time.Second)
	if got := fake.PendingCount(); got != 0 {
		t.Fatalf("PendingCount() after Advance = %d, want 0", got)
	}
}

func TestClockImplementations(t *testing.T) {
	t.Parallel()
	var _ Clock = Real()
	var _ Clock = Fake(epoch)
}

func TestFakeConcurrentAccess(t *testing.T) {
	t.Parallel()
	fake := Fake(epoch)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := fake.After(time.Millisecond)
			fake.Advance(time.Millisecond)
			<-ch
		}()
	}
	wg.Wait()
}
