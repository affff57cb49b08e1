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

package telemetry

import (
	"time"

	"github.com/carverauto/rsemon/pkg/health"
	"github.com/carverauto/rsemon/pkg/models"
)

// ItemOptions parameterize snapshot-to-item conversion.
type ItemOptions struct {
	// ID is the canonical device identifier from the registry.
	ID string
	// Fallback is the provisioned install location, used when the
	// snapshot has no usable GNSS fix.
	Fallback *models.Coordinates
	// Thresholds for the health evaluation; zero value means defaults.
	Thresholds health.Thresholds
	Now        time.Time
}

// ToItem derives the display item for one snapshot: health summary, security
// warnings, signal bars, certificate state, position, and resource gauges.
func ToItem(snap *models.DeviceSnapshot, opts ItemOptions) *models.NormalizedItem {
	if snap == nil {
		return nil
	}

	th := opts.Thresholds
	if th == (health.Thresholds{}) {
		th = health.DefaultThresholds()
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	summary := health.Evaluate(snap, th)
	daysLeft := health.CertDaysLeft(snap.Certificate, now)

	item := &models.NormalizedItem{
		ID:     opts.ID,
		Serial: snap.SerialNumber,
		Active: isActive(snap),

		Health:   summary,
		Warnings: health.DetectWarnings(snap, daysLeft),

		SecurityEnabled: health.SecurityEnabled(snap.Certificate),
		CertDaysLeft:    daysLeft,

		UpdatedAt: now,
		Raw:       snap,
	}

	item.CertState = health.CertStateOf(item.SecurityEnabled, daysLeft)

	if snap.LTE != nil {
		if rssi, ok := snap.LTE.RSSIDbm.Float(); ok {
			v := rssi
			item.RSSIDbm = &v
			item.Bars = SignalBars(rssi)
		}
	}

	if coords := ExtractCoordinates(snap.GNSS); coords != nil {
		item.Coords = coords
	} else if opts.Fallback != nil {
		fb := *opts.Fallback
		item.Coords = &fb
		item.IsFallback = true
	}

	if snap.Temperature != nil {
		item.TemperatureC = flexPtr(snap.Temperature.CelsiusC)
	}

	if snap.CPUUsage != nil {
		item.CPUTotalPct = flexPtr(snap.CPUUsage.TotalPercent)
	}

	if snap.MemoryUsage != nil {
		item.MemUsedPct = flexPtr(snap.MemoryUsage.UsedPercent)
	}

	if snap.StorageUsage != nil {
		item.DiskUsedPct = flexPtr(snap.StorageUsage.UsedPercent)
	}

	return item
}

// isActive reports whether the radio side of the unit is alive: either the
// V2X transmitter is ready or the GNSS antenna is up.
func isActive(snap *models.DeviceSnapshot) bool {
	txReady := snap.LTEV2XTxReadyStatus != nil && *snap.LTEV2XTxReadyStatus
	gnssUp := snap.GNSSAntennaStatus != nil && *snap.GNSSAntennaStatus

	return txReady || gnssUp
}

func flexPtr(v models.FlexFloat) *float64 {
	value, ok := v.Float()
	if !ok {
		return nil
	}

	return &value
}
