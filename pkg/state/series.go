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

package state

import "time"

// Sample is one resource-gauge observation for a device.
type Sample struct {
	At      time.Time `json:"at"`
	CPUPct  *float64  `json:"cpu_pct,omitempty"`
	MemPct  *float64  `json:"mem_pct,omitempty"`
	DiskPct *float64  `json:"disk_pct,omitempty"`
}

// series is a bounded FIFO of samples. Oldest samples fall off once the
// window is full, so memory stays flat however long a session runs.
type series struct {
	max     int
	samples []Sample
}

func newSeries(max int) *series {
	return &series{max: max}
}

func (s *series) append(sample Sample) {
	s.samples = append(s.samples, sample)

	if len(s.samples) > s.max {
		// Shift instead of re-slicing so the backing array does not pin
		// evicted samples.
		copy(s.samples, s.samples[len(s.samples)-s.max:])
		s.samples = s.samples[:s.max]
	}
}

func (s *series) snapshot() []Sample {
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)

	return out
}
