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

// Package health derives pass/fail hardware summaries, certificate state, and
// security warnings from raw device snapshots.
package health

import (
	"math"

	"github.com/carverauto/rsemon/pkg/models"
)

// Thresholds are the resource ceilings a healthy unit must stay under.
type Thresholds struct {
	CPUMaxPct  float64
	MemMaxPct  float64
	DiskMaxPct float64
	TempMaxC   float64
}

// DefaultThresholds match the limits roadside units are provisioned against.
func DefaultThresholds() Thresholds {
	return Thresholds{CPUMaxPct: 85, MemMaxPct: 85, DiskMaxPct: 85, TempMaxC: 80}
}

// Check names, in the fixed order the summary enumerates them. The order is
// part of the report format and must not change between releases.
const (
	CheckGNSSAntenna = "gnssAntenna"
	CheckLTEAntenna1 = "lteAntenna1"
	CheckLTEAntenna2 = "lteAntenna2"
	CheckV2XUSB      = "v2xUsb"
	CheckV2XSPI      = "v2xSpi"
	CheckSRAMVBat    = "sramVbat"
	CheckPPSSync     = "ppsSync"
	CheckCPU         = "cpuOk"
	CheckMemory      = "memOk"
	CheckDisk        = "diskOk"
	CheckTemperature = "tempOk"
)

// CheckOrder enumerates every health check in evaluation order.
var CheckOrder = []string{
	CheckGNSSAntenna,
	CheckLTEAntenna1,
	CheckLTEAntenna2,
	CheckV2XUSB,
	CheckV2XSPI,
	CheckSRAMVBat,
	CheckPPSSync,
	CheckCPU,
	CheckMemory,
	CheckDisk,
	CheckTemperature,
}

var checkLabels = map[string]string{
	CheckGNSSAntenna: "GNSS antenna",
	CheckLTEAntenna1: "LTE-V2X antenna 1",
	CheckLTEAntenna2: "LTE-V2X antenna 2",
	CheckV2XUSB:      "V2X USB link",
	CheckV2XSPI:      "V2X SPI link",
	CheckSRAMVBat:    "SRAM backup battery",
	CheckPPSSync:     "1PPS time sync",
	CheckCPU:         "CPU usage",
	CheckMemory:      "Memory usage",
	CheckDisk:        "Storage usage",
	CheckTemperature: "Temperature",
}

// Label returns the human-readable name of a check.
func Label(check string) string {
	if l, ok := checkLabels[check]; ok {
		return l
	}

	return check
}

// Evaluate runs every check against one snapshot. A reading the device did
// not report, or reported as garbage, fails its check: an unknown state on a
// roadside unit is treated as a fault, never as a pass.
func Evaluate(snap *models.DeviceSnapshot, th Thresholds) models.HealthSummary {
	flags := make(map[string]bool, len(CheckOrder))

	if snap != nil {
		flags[CheckGNSSAntenna] = boolCheck(snap.GNSSAntennaStatus)
		flags[CheckLTEAntenna1] = boolCheck(snap.LTEV2XAntenna1Status)
		flags[CheckLTEAntenna2] = boolCheck(snap.LTEV2XAntenna2Status)
		flags[CheckV2XUSB] = boolCheck(snap.V2XUSBStatus)
		flags[CheckV2XSPI] = boolCheck(snap.V2XSPIStatus)
		flags[CheckSRAMVBat] = boolCheck(snap.SRAMVBatStatus)
		flags[CheckPPSSync] = boolCheck(snap.Secton1PPSStatus)

		if snap.CPUUsage != nil {
			flags[CheckCPU] = underCeiling(snap.CPUUsage.TotalPercent, th.CPUMaxPct)
		}

		if snap.MemoryUsage != nil {
			flags[CheckMemory] = underCeiling(snap.MemoryUsage.UsedPercent, th.MemMaxPct)
		}

		if snap.StorageUsage != nil {
			flags[CheckDisk] = underCeiling(snap.StorageUsage.UsedPercent, th.DiskMaxPct)
		}

		if snap.Temperature != nil {
			flags[CheckTemperature] = underCeiling(snap.Temperature.CelsiusC, th.TempMaxC)
		}
	}

	passed := 0

	var issues []string

	for _, check := range CheckOrder {
		if flags[check] {
			passed++
		} else {
			flags[check] = false
			issues = append(issues, Label(check))
		}
	}

	pct := int(math.Round(float64(passed) * 100 / float64(len(CheckOrder))))

	return models.HealthSummary{Pct: pct, Flags: flags, Issues: issues}
}

func boolCheck(v *bool) bool {
	return v != nil && *v
}

func underCeiling(v models.FlexFloat, max float64) bool {
	value, ok := v.Float()
	return ok && value <= max
}
