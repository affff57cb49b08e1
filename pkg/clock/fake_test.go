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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch <-chan time.Time) []time.Time {
	var out []time.Time

	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}

func TestFakeClockAdvance(t *testing.T) {
	start := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFake(start)

	assert.Equal(t, start, clk.Now())

	clk.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), clk.Now())

	clk.Set(start)
	assert.Equal(t, start, clk.Now())
}

func TestFakeTickerFiresPerInterval(t *testing.T) {
	start := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFake(start)

	ticker := clk.NewTicker(time.Second)
	defer ticker.Stop()

	clk.Advance(3500 * time.Millisecond)

	ticks := drain(ticker.Chan())
	require.Len(t, ticks, 3)
	assert.Equal(t, start.Add(time.Second), ticks[0])
	assert.Equal(t, start.Add(2*time.Second), ticks[1])
	assert.Equal(t, start.Add(3*time.Second), ticks[2])

	ticker.Stop()
	clk.Advance(5 * time.Second)
	assert.Empty(t, drain(ticker.Chan()))
}

func TestFakeTimerFiresOnce(t *testing.T) {
	start := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFake(start)

	timer := clk.NewTimer(2 * time.Second)

	clk.Advance(time.Second)
	assert.Empty(t, drain(timer.Chan()))

	clk.Advance(time.Second)

	fires := drain(timer.Chan())
	require.Len(t, fires, 1)
	assert.Equal(t, start.Add(2*time.Second), fires[0])

	// One-shot: further advances never fire it again.
	clk.Advance(time.Minute)
	assert.Empty(t, drain(timer.Chan()))

	// Stop after firing reports the timer was already spent.
	assert.False(t, timer.Stop())
}

func TestFakeTimerStopBeforeDeadline(t *testing.T) {
	clk := NewFake(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))

	timer := clk.NewTimer(time.Second)
	assert.True(t, timer.Stop())

	clk.Advance(5 * time.Second)
	assert.Empty(t, drain(timer.Chan()))
}

func TestFakeClockFiresInDeadlineOrder(t *testing.T) {
	start := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFake(start)

	late := clk.NewTimer(3 * time.Second)
	early := clk.NewTimer(time.Second)
	ticker := clk.NewTicker(2 * time.Second)

	defer ticker.Stop()

	clk.Advance(3 * time.Second)

	earlyFires := drain(early.Chan())
	require.Len(t, earlyFires, 1)
	assert.Equal(t, start.Add(time.Second), earlyFires[0])

	ticks := drain(ticker.Chan())
	require.Len(t, ticks, 1)
	assert.Equal(t, start.Add(2*time.Second), ticks[0])

	lateFires := drain(late.Chan())
	require.Len(t, lateFires, 1)
	assert.Equal(t, start.Add(3*time.Second), lateFires[0])
}
