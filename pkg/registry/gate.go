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

package registry

import (
	"context"
	"sync"
	"time"

	"github.com/carverauto/rsemon/pkg/clock"
	"github.com/carverauto/rsemon/pkg/logger"
	"github.com/carverauto/rsemon/pkg/models"
)

// UnregisteredPrefix marks synthetic identifiers for devices the registry
// does not know.
const UnregisteredPrefix = "unregistered_"

// UnregisteredID builds the synthetic identifier for an unknown serial.
func UnregisteredID(serial string) string {
	return UnregisteredPrefix + serial
}

type cacheEntry struct {
	record    *models.DeviceRecord
	fetchedAt time.Time
}

// Gate answers "is this serial one of ours" with a TTL cache in front of the
// store. Both hits and misses are cached; store errors are not, and a lookup
// that errors reports the device as not registered. An unknown device must
// never slip into the monitored set just because the store was down.
type Gate struct {
	store  DeviceStore
	ttl    time.Duration
	clk    clock.Clock
	logger logger.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewGate builds a gate over store.
func NewGate(store DeviceStore, cfg models.RegistryConfig, clk clock.Clock, log logger.Logger) *Gate {
	return &Gate{
		store:  store,
		ttl:    time.Duration(cfg.CacheTTL),
		clk:    clk,
		logger: log.WithComponent("registry"),
		cache:  make(map[string]cacheEntry),
	}
}

// Lookup returns the registration record for serial, or (nil, nil) when the
// serial is not registered.
func (g *Gate) Lookup(ctx context.Context, serial string) (*models.DeviceRecord, error) {
	now := g.clk.Now()

	g.mu.Lock()
	if entry, ok := g.cache[serial]; ok && now.Sub(entry.fetchedAt) < g.ttl {
		g.mu.Unlock()
		return entry.record, nil
	}
	g.mu.Unlock()

	record, err := g.store.GetBySerial(ctx, serial)
	if err != nil {
		g.logger.Error().Err(err).Str("serial", serial).Msg("Registry lookup failed")
		return nil, err
	}

	g.mu.Lock()
	g.cache[serial] = cacheEntry{record: record, fetchedAt: now}
	g.mu.Unlock()

	return record, nil
}

// IsRegistered reports whether serial belongs to a registered device. A
// store error reads as not registered alongside the error.
func (g *Gate) IsRegistered(ctx context.Context, serial string) (bool, error) {
	record, err := g.Lookup(ctx, serial)
	if err != nil {
		return false, err
	}

	return record != nil, nil
}

// DeviceID resolves the canonical identifier for serial: the registration ID
// for known devices, the synthetic unregistered ID otherwise.
func (g *Gate) DeviceID(ctx context.Context, serial string) (string, error) {
	record, err := g.Lookup(ctx, serial)
	if err != nil {
		return "", err
	}

	if record == nil {
		return UnregisteredID(serial), nil
	}

	return record.ID, nil
}

// Invalidate drops cached entries. Registration edits pass both the old and
// new serial so a renamed device neither lingers as registered under its old
// serial nor stays unknown under its new one.
func (g *Gate) Invalidate(serials ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, s := range serials {
		delete(g.cache, s)
	}
}

// InvalidateAll clears the whole cache.
func (g *Gate) InvalidateAll() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cache = make(map[string]cacheEntry)
}
