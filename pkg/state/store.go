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

// Package state keeps the live in-memory view of the fleet during an
// inspection session: latest item per device, bounded resource series, and
// the separate list of unregistered devices that showed up on the wire.
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/carverauto/rsemon/pkg/clock"
	"github.com/carverauto/rsemon/pkg/logger"
	"github.com/carverauto/rsemon/pkg/models"
)

// faultBelowPct is the health score under which a device counts as faulted
// rather than merely degraded.
const faultBelowPct = 70

// LiveStore holds the current state of every device seen this session.
// Writers are the intake pipeline and the stale watcher; everything else
// reads copies.
type LiveStore struct {
	cfg    models.StateConfig
	clk    clock.Clock
	logger logger.Logger

	mu           sync.Mutex
	items        map[string]*models.NormalizedItem
	series       map[string]*series
	rates        map[string]rateState
	unregistered map[string]*models.UnregisteredDevice

	onChange func()

	watchStop chan struct{}
}

type rateState struct {
	rxTotal float64
	at      time.Time
}

// NewLiveStore builds an empty store.
func NewLiveStore(cfg models.StateConfig, clk clock.Clock, log logger.Logger) *LiveStore {
	return &LiveStore{
		cfg:          cfg,
		clk:          clk,
		logger:       log.WithComponent("state"),
		items:        make(map[string]*models.NormalizedItem),
		series:       make(map[string]*series),
		rates:        make(map[string]rateState),
		unregistered: make(map[string]*models.UnregisteredDevice),
	}
}

// SetOnChange registers a single callback fired after any visible change.
// Suppressed no-op upserts do not fire it.
func (s *LiveStore) SetOnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onChange = fn
}

// Upsert merges one normalized item into the store, computes its message
// rate from the device's receive counter, and appends a resource sample.
// Returns true when the update changed anything a reader can see; pure
// timestamp refreshes are suppressed.
func (s *LiveStore) Upsert(item *models.NormalizedItem) bool {
	if item == nil || item.ID == "" {
		return false
	}

	s.mu.Lock()

	item.MsgPerSec = s.updateRateLocked(item)

	prev := s.items[item.ID]
	changed := prev == nil || meaningfulChange(prev, item)
	s.items[item.ID] = item

	sr, ok := s.series[item.ID]
	if !ok {
		sr = newSeries(s.cfg.SeriesMaxSamples)
		s.series[item.ID] = sr
	}

	sr.append(Sample{
		At:      item.UpdatedAt,
		CPUPct:  item.CPUTotalPct,
		MemPct:  item.MemUsedPct,
		DiskPct: item.DiskUsedPct,
	})

	notify := s.onChange
	s.mu.Unlock()

	if changed && notify != nil {
		notify()
	}

	return changed
}

// updateRateLocked derives messages/second from the device's cumulative
// receive counter. Counter resets (device reboot) clamp to zero instead of
// going negative.
func (s *LiveStore) updateRateLocked(item *models.NormalizedItem) float64 {
	if item.Raw == nil || item.Raw.RSEStatus == nil {
		return 0
	}

	rx, ok := item.Raw.RSEStatus.RxTotal.Float()
	if !ok {
		return 0
	}

	prev, seen := s.rates[item.ID]
	s.rates[item.ID] = rateState{rxTotal: rx, at: item.UpdatedAt}

	if !seen {
		return 0
	}

	dt := item.UpdatedAt.Sub(prev.at).Seconds()
	if dt <= 0 {
		return 0
	}

	rate := (rx - prev.rxTotal) / dt
	if rate < 0 {
		return 0
	}

	return rate
}

// UpsertUnregistered records a sighting of a serial the registry does not
// know. These never join the primary item list.
func (s *LiveStore) UpsertUnregistered(serial string, snap *models.DeviceSnapshot, id string) {
	now := s.clk.Now()

	s.mu.Lock()

	dev, ok := s.unregistered[serial]
	if !ok {
		dev = &models.UnregisteredDevice{
			ID:        id,
			Serial:    serial,
			FirstSeen: now,
		}
		s.unregistered[serial] = dev

		s.logger.Warn().Str("serial", serial).Msg("Snapshot from unregistered device")
	}

	dev.Count++
	dev.LastSeen = now
	dev.Raw = snap

	notify := s.onChange
	s.mu.Unlock()

	if !ok && notify != nil {
		notify()
	}
}

// Item returns a copy of one device's latest item.
func (s *LiveStore) Item(id string) (models.NormalizedItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return models.NormalizedItem{}, false
	}

	return *item, true
}

// Items returns copies of every item, ordered by device ID for stable
// iteration.
func (s *LiveStore) Items() []models.NormalizedItem {
	s.mu.Lock()
	out := make([]models.NormalizedItem, 0, len(s.items))

	for _, item := range s.items {
		out = append(out, *item)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// Unregistered returns copies of the unregistered sightings, ordered by
// serial.
func (s *LiveStore) Unregistered() []models.UnregisteredDevice {
	s.mu.Lock()
	out := make([]models.UnregisteredDevice, 0, len(s.unregistered))

	for _, dev := range s.unregistered {
		out = append(out, *dev)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Serial < out[j].Serial })

	return out
}

// Series returns a copy of one device's resource samples.
func (s *LiveStore) Series(id string) []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr, ok := s.series[id]
	if !ok {
		return nil
	}

	return sr.snapshot()
}

// RemoveByID drops one device and its series from the store.
func (s *LiveStore) RemoveByID(id string) {
	s.mu.Lock()
	_, had := s.items[id]
	delete(s.items, id)
	delete(s.series, id)
	delete(s.rates, id)
	notify := s.onChange
	s.mu.Unlock()

	if had && notify != nil {
		notify()
	}
}

// Clear empties the store between sessions.
func (s *LiveStore) Clear() {
	s.mu.Lock()
	s.items = make(map[string]*models.NormalizedItem)
	s.series = make(map[string]*series)
	s.rates = make(map[string]rateState)
	s.unregistered = make(map[string]*models.UnregisteredDevice)
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// StatusOf buckets one item for fleet statistics.
func StatusOf(item *models.NormalizedItem) models.DeviceStatus {
	switch {
	case item == nil:
		return models.StatusUnknown
	case !item.Active:
		return models.StatusInactive
	case item.Health.Pct < faultBelowPct:
		return models.StatusFault
	case item.Health.Pct < 100 || len(item.Warnings) > 0:
		return models.StatusWarning
	default:
		return models.StatusOK
	}
}

// Statistics aggregates the store into fleet-level counts.
func (s *LiveStore) Statistics() models.FleetStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := models.FleetStats{
		Registered:   len(s.items),
		Unregistered: len(s.unregistered),
		Total:        len(s.items) + len(s.unregistered),
	}

	for _, item := range s.items {
		switch StatusOf(item) {
		case models.StatusInactive:
			stats.Inactive++
		case models.StatusFault:
			stats.Active++
			stats.Fault++
		case models.StatusWarning:
			stats.Active++
			stats.Warning++
		case models.StatusOK, models.StatusUnknown:
			stats.Active++
			stats.OK++
		}

		if item.Coords != nil {
			stats.WithCoords++
		}
	}

	return stats
}

// StartStaleWatcher begins the sweep that flips devices inactive once their
// snapshots stop arriving. Call StopStaleWatcher to end it.
func (s *LiveStore) StartStaleWatcher() {
	s.mu.Lock()
	if s.watchStop != nil {
		s.mu.Unlock()
		return
	}

	stop := make(chan struct{})
	s.watchStop = stop
	s.mu.Unlock()

	go s.watch(stop)
}

// StopStaleWatcher ends the sweep. Safe to call when not running.
func (s *LiveStore) StopStaleWatcher() {
	s.mu.Lock()
	stop := s.watchStop
	s.watchStop = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
	}
}

func (s *LiveStore) watch(stop chan struct{}) {
	ticker := s.clk.NewTicker(time.Duration(s.cfg.StaleSweep))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.Chan():
			s.sweep(now)
		}
	}
}

func (s *LiveStore) sweep(now time.Time) {
	staleAfter := time.Duration(s.cfg.StaleAfter)

	s.mu.Lock()
	flipped := 0

	for _, item := range s.items {
		if item.Active && now.Sub(item.UpdatedAt) > staleAfter {
			item.Active = false
			item.MsgPerSec = 0
			flipped++
		}
	}

	notify := s.onChange
	s.mu.Unlock()

	if flipped > 0 {
		s.logger.Debug().Int("devices", flipped).Msg("Marked silent devices inactive")

		if notify != nil {
			notify()
		}
	}
}

// meaningfulChange reports whether next differs from prev in any field a
// reader displays. UpdatedAt alone never counts; at one snapshot per second
// per device that would make every upsert a change.
func meaningfulChange(prev, next *models.NormalizedItem) bool {
	if prev.Active != next.Active ||
		prev.Health.Pct != next.Health.Pct ||
		prev.Bars != next.Bars ||
		prev.CertState != next.CertState ||
		prev.SecurityEnabled != next.SecurityEnabled ||
		prev.IsFallback != next.IsFallback ||
		len(prev.Warnings) != len(next.Warnings) {
		return true
	}

	if (prev.Coords == nil) != (next.Coords == nil) {
		return true
	}

	if prev.Coords != nil && *prev.Coords != *next.Coords {
		return true
	}

	if !floatPtrEq(prev.TemperatureC, next.TemperatureC) ||
		!floatPtrEq(prev.CPUTotalPct, next.CPUTotalPct) ||
		!floatPtrEq(prev.MemUsedPct, next.MemUsedPct) ||
		!floatPtrEq(prev.DiskUsedPct, next.DiskUsedPct) {
		return true
	}

	return false
}

func floatPtrEq(a, b *float64) bool {
	if (a == nil) != (b == nil) {
		return false
	}

	return a == nil || *a == *b
}
