/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package clock

import (
	"sync"
	"time"
)

// FakeClock is a manually advanced Clock for tests. Advance moves time
// forward and fires any tickers and timers whose deadlines pass, in deadline
// order.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	timers  []*fakeTimer
}

// NewFake returns a FakeClock pinned at the given instant.
func NewFake(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

// Set pins the clock at an instant without firing timers.
func (f *FakeClock) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = now
}

func (f *FakeClock) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTicker{
		mu:       &f.mu,
		interval: d,
		next:     f.now.Add(d),
		ch:       make(chan time.Time, 64),
	}
	f.tickers = append(f.tickers, t)

	return t
}

func (f *FakeClock) NewTimer(d time.Duration) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTimer{
		mu:       &f.mu,
		deadline: f.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	f.timers = append(f.timers, t)

	return t
}

// Advance moves the clock forward by d, delivering ticks and timer fires for
// every deadline crossed along the way.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)

	for {
		next, ok := f.nextDeadlineLocked(target)
		if !ok {
			break
		}

		f.now = next
		f.fireLocked(next)
	}

	f.now = target
	f.mu.Unlock()
}

func (f *FakeClock) nextDeadlineLocked(limit time.Time) (time.Time, bool) {
	var (
		best  time.Time
		found bool
	)

	consider := func(t time.Time) {
		if t.After(f.now) && !t.After(limit) && (!found || t.Before(best)) {
			best = t
			found = true
		}
	}

	for _, t := range f.tickers {
		if !t.stopped {
			consider(t.next)
		}
	}

	for _, t := range f.timers {
		if !t.stopped && !t.fired {
			consider(t.deadline)
		}
	}

	return best, found
}

func (f *FakeClock) fireLocked(now time.Time) {
	for _, t := range f.tickers {
		if !t.stopped && !t.next.After(now) {
			select {
			case t.ch <- now:
			default: // slow consumer drops ticks, same as time.Ticker
			}

			t.next = t.next.Add(t.interval)
		}
	}

	for _, t := range f.timers {
		if !t.stopped && !t.fired && !t.deadline.After(now) {
			t.fired = true
			t.ch <- now
		}
	}
}

type fakeTicker struct {
	mu       *sync.Mutex
	interval time.Duration
	next     time.Time
	ch       chan time.Time
	stopped  bool
}

func (t *fakeTicker) Chan() <-chan time.Time {
	return t.ch
}

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
}

type fakeTimer struct {
	mu       *sync.Mutex
	deadline time.Time
	ch       chan time.Time
	stopped  bool
	fired    bool
}

func (t *fakeTimer) Chan() <-chan time.Time {
	return t.ch
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	active := !t.stopped && !t.fired
	t.stopped = true

	return active
}
