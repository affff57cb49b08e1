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

package recorder

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/carverauto/rsemon/pkg/models"
	"github.com/carverauto/rsemon/pkg/telemetry"
)

// Alert thresholds for the report preamble. Tighter than the live health
// thresholds: a report flags trends worth scheduling a visit for, not just
// outright faults.
const (
	alertHealthBelowPct = 95
	alertCPUAbovePct    = 90
	alertMemAbovePct    = 80
	alertTempAboveC     = 70
	alertSatsBelow      = 5
)

type summary struct {
	meta        metaInfo
	hardware    hardwareStats
	performance perfStats
	location    locationStats
	certificate certInfo
	alerts      []string
}

type metaInfo struct {
	serial, hwVersion, osVersion, fwVersion string
	totalPackets                            int
	firstTimestamp, lastTimestamp           string
	durationSeconds                         float64
}

type hardwareStats struct {
	rates   []rateEntry
	overall string
}

type rateEntry struct {
	label string
	rate  string
}

type perfStats struct {
	cpu, mem, storage, temp tripleStat
}

type tripleStat struct {
	avg, min, max string
}

type locationStats struct {
	latAvg, lonAvg, altAvg   string
	speedAvg, speedMax       string
	satsAvg, satsMin         string
	hdopAvg, hdopMax         string
}

type certInfo struct {
	securityEnabled        string
	validStart, validEnd   string
}

func buildSummary(records []Record) summary {
	if len(records) == 0 {
		return summary{
			meta:   metaInfo{serial: "N/A", hwVersion: "N/A", osVersion: "N/A", fwVersion: "N/A"},
			alerts: []string{"No data available"},
		}
	}

	first := records[0].Snapshot
	last := records[len(records)-1].Snapshot

	s := summary{
		meta:        buildMeta(first, last, len(records)),
		hardware:    buildHardware(records),
		performance: buildPerformance(records),
		location:    buildLocation(records),
		certificate: buildCertificate(records[0]),
	}

	s.alerts = detectAlerts(records, s)

	return s
}

func buildMeta(first, last *models.DeviceSnapshot, total int) metaInfo {
	meta := metaInfo{
		serial:         orNA(first.SerialNumber),
		hwVersion:      orNA(first.HardwareVersion),
		osVersion:      orNA(first.OSVersion),
		fwVersion:      orNA(first.FirmwareVersion),
		totalPackets:   total,
		firstTimestamp: gnssTimeLabel(first.GNSS),
		lastTimestamp:  gnssTimeLabel(last.GNSS),
	}

	firstTS, firstOK := telemetry.DeviceTimestamp(first.GNSS)
	lastTS, lastOK := telemetry.DeviceTimestamp(last.GNSS)

	if firstOK && lastOK {
		if d := lastTS.Sub(firstTS).Seconds(); d > 0 {
			meta.durationSeconds = d
		}
	}

	return meta
}

func buildHardware(records []Record) hardwareStats {
	type check struct {
		label string
		get   func(*models.DeviceSnapshot) *bool
	}

	checks := []check{
		{"GNSS Antenna OK Rate", func(s *models.DeviceSnapshot) *bool { return s.GNSSAntennaStatus }},
		{"LTE-V2X Ant1 OK Rate", func(s *models.DeviceSnapshot) *bool { return s.LTEV2XAntenna1Status }},
		{"LTE-V2X Ant2 OK Rate", func(s *models.DeviceSnapshot) *bool { return s.LTEV2XAntenna2Status }},
		{"PPS Sync OK Rate", func(s *models.DeviceSnapshot) *bool { return s.Secton1PPSStatus }},
		{"Temperature OK Rate", func(s *models.DeviceSnapshot) *bool {
			if s.Temperature == nil {
				return nil
			}
			return s.Temperature.OK
		}},
		{"V2X USB OK Rate", func(s *models.DeviceSnapshot) *bool { return s.V2XUSBStatus }},
		{"V2X SPI OK Rate", func(s *models.DeviceSnapshot) *bool { return s.V2XSPIStatus }},
		{"SRAM VBAT OK Rate", func(s *models.DeviceSnapshot) *bool { return s.SRAMVBatStatus }},
		{"LTE-V2X TX Ready Rate", func(s *models.DeviceSnapshot) *bool { return s.LTEV2XTxReadyStatus }},
		{"Tamper Secure OK Rate", func(s *models.DeviceSnapshot) *bool { return s.TamperSecureStatus }},
	}

	var stats hardwareStats

	allOK, allTotal := 0, 0

	for _, c := range checks {
		ok := 0

		for _, rec := range records {
			if v := c.get(rec.Snapshot); v != nil && *v {
				ok++
			}
		}

		allOK += ok
		allTotal += len(records)

		stats.rates = append(stats.rates, rateEntry{
			label: c.label,
			rate:  num(float64(ok)/float64(len(records))*100, 2),
		})
	}

	stats.overall = num(float64(allOK)/float64(allTotal)*100, 2)

	return stats
}

func buildPerformance(records []Record) perfStats {
	var cpus, mems, stors, temps []float64

	for _, rec := range records {
		snap := rec.Snapshot

		if snap.CPUUsage != nil {
			appendValid(&cpus, snap.CPUUsage.TotalPercent)
		}

		if snap.MemoryUsage != nil {
			appendValid(&mems, snap.MemoryUsage.UsedPercent)
		}

		if snap.StorageUsage != nil {
			appendValid(&stors, snap.StorageUsage.UsedPercent)
		}

		if snap.Temperature != nil {
			appendValid(&temps, snap.Temperature.CelsiusC)
		}
	}

	return perfStats{
		cpu:     tripleOf(cpus, 2),
		mem:     tripleOf(mems, 2),
		storage: tripleOf(stors, 2),
		temp:    tripleOf(temps, 1),
	}
}

func buildLocation(records []Record) locationStats {
	var lats, lons, alts, speeds, sats, hdops []float64

	for _, rec := range records {
		gnss := rec.Snapshot.GNSS
		if gnss == nil {
			continue
		}

		if coords := telemetry.ExtractCoordinates(gnss); coords != nil {
			lats = append(lats, coords.Lat)
			lons = append(lons, coords.Lon)
		}

		if alt, ok := telemetry.AltitudeM(gnss.AltMSL); ok {
			alts = append(alts, alt)
		}

		if speed, ok := telemetry.SpeedKmh(gnss.Speed); ok {
			speeds = append(speeds, speed)
		}

		appendValid(&sats, gnss.NumUsedSatellites)
		appendValid(&hdops, gnss.HDOP)
	}

	return locationStats{
		latAvg:   num(avg(lats), 7),
		lonAvg:   num(avg(lons), 7),
		altAvg:   num(avg(alts), 2),
		speedAvg: num(avg(speeds), 2),
		speedMax: num(maxOf(speeds), 2),
		satsAvg:  num(avg(sats), 1),
		satsMin:  num(minOf(sats), 0),
		hdopAvg:  num(avg(hdops), 3),
		hdopMax:  num(maxOf(hdops), 3),
	}
}

func buildCertificate(rec Record) certInfo {
	info := certInfo{securityEnabled: "NO", validStart: "N/A", validEnd: "N/A"}

	cert := rec.Snapshot.Certificate
	if cert == nil {
		return info
	}

	if cert.SecurityEnable != nil && *cert.SecurityEnable {
		info.securityEnabled = "YES"
	}

	info.validStart = certTimeLabel(cert.ValidStart, rec.RecvAt)
	info.validEnd = certTimeLabel(cert.ValidEnd, rec.RecvAt)

	return info
}

// certTimeLabel resolves a certificate validity epoch the same way the data
// columns do, anchored on the packet's arrival time.
func certTimeLabel(v models.FlexFloat, recvAt time.Time) string {
	t, ok := telemetry.EpochAuto(v, recvAt)
	if !ok {
		return "N/A"
	}

	return t.Format("2006-01-02 15:04:05")
}

func detectAlerts(records []Record, s summary) []string {
	var alerts []string

	if v, err := strconv.ParseFloat(s.hardware.overall, 64); err == nil && v < alertHealthBelowPct {
		alerts = append(alerts, fmt.Sprintf("Hardware health below %d%%: %s%%", alertHealthBelowPct, s.hardware.overall))
	}

	if v, err := strconv.ParseFloat(s.performance.cpu.max, 64); err == nil && v > alertCPUAbovePct {
		alerts = append(alerts, fmt.Sprintf("High CPU usage detected: %s%%", s.performance.cpu.max))
	}

	if v, err := strconv.ParseFloat(s.performance.mem.max, 64); err == nil && v > alertMemAbovePct {
		alerts = append(alerts, fmt.Sprintf("High memory usage detected: %s%%", s.performance.mem.max))
	}

	if v, err := strconv.ParseFloat(s.performance.temp.max, 64); err == nil && v > alertTempAboveC {
		alerts = append(alerts, fmt.Sprintf("High temperature detected: %s°C", s.performance.temp.max))
	}

	if v, err := strconv.ParseFloat(s.location.satsMin, 64); err == nil && v < alertSatsBelow {
		alerts = append(alerts, fmt.Sprintf("Low satellite count detected: %s sats", s.location.satsMin))
	}

	if len(alerts) == 0 {
		return []string{"No critical alerts"}
	}

	return alerts
}

func gnssTimeLabel(gnss *models.GNSSData) string {
	t, ok := telemetry.DeviceTimestamp(gnss)
	if !ok {
		return "N/A"
	}

	return t.Format("2006-01-02 15:04:05")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}

	return s
}

func appendValid(dst *[]float64, v models.FlexFloat) {
	if value, ok := v.Float(); ok {
		*dst = append(*dst, value)
	}
}

func tripleOf(values []float64, digits int) tripleStat {
	return tripleStat{
		avg: num(avg(values), digits),
		min: num(minOf(values), digits),
		max: num(maxOf(values), digits),
	}
}

// num renders a statistic, empty when there was no data to compute it from.
func num(v float64, digits int) string {
	if math.IsNaN(v) {
		return ""
	}

	return strconv.FormatFloat(v, 'f', digits, 64)
}

func avg(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}

	return m
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}

	return m
}
