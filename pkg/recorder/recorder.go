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

// Package recorder captures the snapshot stream of an inspection session in
// a bounded in-memory buffer and renders it into CSV field reports.
package recorder

import (
	"sort"
	"sync"
	"time"

	"github.com/carverauto/rsemon/pkg/clock"
	"github.com/carverauto/rsemon/pkg/logger"
	"github.com/carverauto/rsemon/pkg/models"
)

// Record is one captured snapshot with its arrival time and original payload.
type Record struct {
	Snapshot *models.DeviceSnapshot
	Raw      []byte
	RecvAt   time.Time
}

// Stats describes the recorder's current capture.
type Stats struct {
	PacketCount int           `json:"packet_count"`
	Serials     []string      `json:"serials"`
	Duration    time.Duration `json:"duration"`
	Recording   bool          `json:"recording"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at"`
}

// Recorder is a fixed-capacity ring over the session's snapshots. Once full,
// each new record evicts the oldest; an inspection left running for days
// keeps the newest window instead of growing without bound.
type Recorder struct {
	cfg    models.RecorderConfig
	clk    clock.Clock
	logger logger.Logger

	mu        sync.Mutex
	rows      []Record
	head      int
	count     int
	startedAt time.Time
	endedAt   time.Time
}

const defaultMaxRows = 100_000

// New builds a stopped recorder. A non-positive MaxRows falls back to the
// default capacity so a zero-value config never yields an empty ring.
func New(cfg models.RecorderConfig, clk clock.Clock, log logger.Logger) *Recorder {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = defaultMaxRows
	}

	return &Recorder{
		cfg:    cfg,
		clk:    clk,
		logger: log.WithComponent("recorder"),
	}
}

// Start clears any previous capture and begins a new one.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rows = make([]Record, r.cfg.MaxRows)
	r.head = 0
	r.count = 0
	r.startedAt = r.clk.Now()
	r.endedAt = time.Time{}
}

// Stop ends the capture. Records added after Stop are dropped.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.startedAt.IsZero() || !r.endedAt.IsZero() {
		return
	}

	r.endedAt = r.clk.Now()
	r.logger.Info().Int("packets", r.count).Msg("Recording stopped")
}

// Add captures one snapshot. A no-op unless recording.
func (r *Recorder) Add(rec Record) {
	if rec.Snapshot == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.startedAt.IsZero() || !r.endedAt.IsZero() {
		return
	}

	idx := (r.head + r.count) % len(r.rows)
	r.rows[idx] = rec

	if r.count < len(r.rows) {
		r.count++
	} else {
		r.head = (r.head + 1) % len(r.rows)
	}
}

// Len returns the number of captured records.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.count
}

// Recording reports whether a capture is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return !r.startedAt.IsZero() && r.endedAt.IsZero()
}

// Records returns the capture in arrival order, oldest first.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.recordsLocked()
}

func (r *Recorder) recordsLocked() []Record {
	out := make([]Record, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.rows[(r.head+i)%len(r.rows)]
	}

	return out
}

// Serials lists the distinct serial numbers captured, sorted. Records whose
// snapshot lost its serial group under "unknown".
func (r *Recorder) Serials() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return serialsOf(r.recordsLocked())
}

func serialsOf(records []Record) []string {
	seen := make(map[string]struct{})

	for _, rec := range records {
		serial := rec.Snapshot.SerialNumber
		if serial == "" {
			serial = "unknown"
		}

		seen[serial] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}

	sort.Strings(out)

	return out
}

// Stats summarizes the capture.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		PacketCount: r.count,
		Serials:     serialsOf(r.recordsLocked()),
		Recording:   !r.startedAt.IsZero() && r.endedAt.IsZero(),
		StartedAt:   r.startedAt,
		EndedAt:     r.endedAt,
	}

	if !r.startedAt.IsZero() {
		end := r.endedAt
		if end.IsZero() {
			end = r.clk.Now()
		}

		stats.Duration = end.Sub(r.startedAt)
	}

	return stats
}

// Clear drops the capture and returns the recorder to its initial state.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rows = nil
	r.head = 0
	r.count = 0
	r.startedAt = time.Time{}
	r.endedAt = time.Time{}
}
