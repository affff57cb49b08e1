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
	"math"
	"time"

	"github.com/carverauto/rsemon/pkg/models"
)

// IEEE 1609.2 time base; V2X certificate timestamps count seconds from it.
var epoch2004 = time.Date(2004, time.January, 1, 0, 0, 0, 0, time.UTC)

// EpochAuto resolves a seconds value against the ambiguous epoch base. Some
// firmware counts from the Unix epoch, some from 2004-01-01; the reading
// itself does not say which. Both interpretations are computed and the one
// closer to now wins, with ties going to the 2004 base. The heuristic breaks
// down for instants between the two bases' plausibility midpoint, which for
// certificate lifetimes never occurs in practice.
func EpochAuto(sec models.FlexFloat, now time.Time) (time.Time, bool) {
	n, ok := sec.Float()
	if !ok {
		return time.Time{}, false
	}

	d := time.Duration(n * float64(time.Second))
	as1970 := time.Unix(0, 0).UTC().Add(d)
	as2004 := epoch2004.Add(d)

	if absDuration(now.Sub(as2004)) <= absDuration(now.Sub(as1970)) {
		return as2004, true
	}

	return as1970, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}

	return d
}

// ExtractCoordinates descale the GNSS fix to WGS84 degrees. Readings are
// 1e7-scaled integers on the wire, but some firmware revisions send plain
// degrees; a value already inside the valid degree range passes through
// unscaled so it is never divided twice. Nil when either axis is absent or
// lands outside the valid range even after descaling.
func ExtractCoordinates(gnss *models.GNSSData) *models.Coordinates {
	if gnss == nil {
		return nil
	}

	lat, latOK := descaleDegrees(gnss.Latitude, 90)
	lon, lonOK := descaleDegrees(gnss.Longitude, 180)

	if !latOK || !lonOK {
		return nil
	}

	return &models.Coordinates{Lat: lat, Lon: lon}
}

func descaleDegrees(v models.FlexFloat, limit float64) (float64, bool) {
	raw, ok := v.Float()
	if !ok {
		return 0, false
	}

	if math.Abs(raw) <= limit {
		return raw, true
	}

	scaled := raw / 1e7
	if math.Abs(scaled) <= limit {
		return scaled, true
	}

	return 0, false
}

// AltitudeM converts a centimeter altitude reading to meters.
func AltitudeM(altCm models.FlexFloat) (float64, bool) {
	v, ok := altCm.Float()
	if !ok {
		return 0, false
	}

	return v / 100, true
}

// SpeedKmh converts a centimeters-per-second speed reading to km/h.
func SpeedKmh(speedCms models.FlexFloat) (float64, bool) {
	v, ok := speedCms.Float()
	if !ok {
		return 0, false
	}

	return v * 0.036, true
}

// HeadingDeg converts a centi-degree heading reading to degrees.
func HeadingDeg(headingCdeg models.FlexFloat) (float64, bool) {
	v, ok := headingCdeg.Float()
	if !ok {
		return 0, false
	}

	return v / 100, true
}

// SignalBars maps backhaul RSSI to the 4-bar scale field crews read.
func SignalBars(rssiDbm float64) int {
	switch {
	case rssiDbm >= -55:
		return 4
	case rssiDbm >= -65:
		return 3
	case rssiDbm >= -75:
		return 2
	default:
		return 1
	}
}

// DeviceTimestamp rebuilds the GNSS UTC calendar fields into a time. False
// when the device never got a fix and reports no year.
func DeviceTimestamp(gnss *models.GNSSData) (time.Time, bool) {
	if gnss == nil || gnss.Year == nil {
		return time.Time{}, false
	}

	month := 1
	if gnss.Month != nil {
		month = *gnss.Month
	}

	day := 1
	if gnss.Day != nil {
		day = *gnss.Day
	}

	t := time.Date(*gnss.Year, time.Month(month), day,
		intOr(gnss.Hour, 0), intOr(gnss.Min, 0), intOr(gnss.Sec, 0), 0, time.UTC)

	return t, true
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}

	return *v
}

// NetworkAddresses are the IPs pulled out of the interface table.
type NetworkAddresses struct {
	// Primary is the first non-loopback address in interface order.
	Primary string
	Eth0    string
	LTEV2X0 string
}

// ExtractAddresses walks the snapshot's interface table.
func ExtractAddresses(info *models.InterfaceInfo) NetworkAddresses {
	var addrs NetworkAddresses

	if info == nil {
		return addrs
	}

	for _, iface := range info.Interfaces {
		if addrs.Primary == "" && iface.IPAddr != "" && iface.IPAddr != "127.0.0.1" {
			addrs.Primary = iface.IPAddr
		}

		switch iface.Name {
		case "eth0":
			addrs.Eth0 = iface.IPAddr
		case "ltev2x0":
			addrs.LTEV2X0 = iface.IPAddr
		}
	}

	return addrs
}

// DeviceIP picks the address used for direct device sessions: the V2X radio
// interface when it has one, then wired, then whatever non-loopback address
// the table shows first.
func DeviceIP(snap *models.DeviceSnapshot) string {
	if snap == nil {
		return ""
	}

	addrs := ExtractAddresses(snap.Interfaces)

	switch {
	case addrs.LTEV2X0 != "":
		return addrs.LTEV2X0
	case addrs.Eth0 != "":
		return addrs.Eth0
	default:
		return addrs.Primary
	}
}
