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
	"strings"

	"github.com/carverauto/rsemon/pkg/models"
	"github.com/carverauto/rsemon/pkg/telemetry"
)

const (
	summaryTitle = "=== INSPECTION REPORT SUMMARY ==="
	dataTitle    = "=== DETAILED DATA ==="
)

// ReportBuilder renders captured records into the two-section CSV report:
// a key/value summary preamble, a blank line, then the data table.
type ReportBuilder struct {
	cfg models.RecorderConfig
}

// NewReportBuilder builds a report builder with the recorder's options.
func NewReportBuilder(cfg models.RecorderConfig) *ReportBuilder {
	return &ReportBuilder{cfg: cfg}
}

// Build renders one report over all records.
func (b *ReportBuilder) Build(records []Record) string {
	var sections []string

	if b.cfg.IncludeSummary {
		sections = append(sections, b.summarySection(buildSummary(records)), "")
	}

	sections = append(sections, b.dataSection(records))

	return strings.Join(sections, "\r\n")
}

// BuildBySerial renders one report per device, keyed by serial number.
func (b *ReportBuilder) BuildBySerial(records []Record) map[string]string {
	grouped := make(map[string][]Record)

	for _, rec := range records {
		serial := rec.Snapshot.SerialNumber
		if serial == "" {
			serial = "unknown"
		}

		grouped[serial] = append(grouped[serial], rec)
	}

	out := make(map[string]string, len(grouped))
	for serial, recs := range grouped {
		out[serial] = b.Build(recs)
	}

	return out
}

func (b *ReportBuilder) summarySection(s summary) string {
	var lines []string

	push := func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	lines = append(lines, summaryTitle, "")

	push("## BASIC INFORMATION")
	push("Serial Number,%s", telemetry.CSVEscape(s.meta.serial))
	push("Hardware Version,%s", telemetry.CSVEscape(s.meta.hwVersion))
	push("OS Version,%s", telemetry.CSVEscape(s.meta.osVersion))
	push("Firmware Version,%s", telemetry.CSVEscape(s.meta.fwVersion))
	push("Total Packets,%d", s.meta.totalPackets)
	push("First Timestamp,%s", s.meta.firstTimestamp)
	push("Last Timestamp,%s", s.meta.lastTimestamp)
	push("Duration (seconds),%g", s.meta.durationSeconds)
	lines = append(lines, "")

	push("## HARDWARE HEALTH")
	push("Overall Health,%%,%s", s.hardware.overall)

	for _, entry := range s.hardware.rates {
		push("%s,%%,%s", entry.label, entry.rate)
	}

	lines = append(lines, "")

	push("## PERFORMANCE STATISTICS")
	push("CPU Usage,Avg/Min/Max,%%,%s/%s/%s", s.performance.cpu.avg, s.performance.cpu.min, s.performance.cpu.max)
	push("Memory Usage,Avg/Min/Max,%%,%s/%s/%s", s.performance.mem.avg, s.performance.mem.min, s.performance.mem.max)
	push("Storage Usage,Avg/Min/Max,%%,%s/%s/%s", s.performance.storage.avg, s.performance.storage.min, s.performance.storage.max)
	push("Temperature,Avg/Min/Max,°C,%s/%s/%s", s.performance.temp.avg, s.performance.temp.min, s.performance.temp.max)
	lines = append(lines, "")

	push("## LOCATION STATISTICS")
	push("Average Position,Lat/Lon,,%s/%s", s.location.latAvg, s.location.lonAvg)
	push("Average Altitude,m,,%s", s.location.altAvg)
	push("Speed,Avg/Max,km/h,%s/%s", s.location.speedAvg, s.location.speedMax)
	push("Satellites Used,Avg/Min,,%s/%s", s.location.satsAvg, s.location.satsMin)
	push("HDOP,Avg/Max,,%s/%s", s.location.hdopAvg, s.location.hdopMax)
	lines = append(lines, "")

	push("## CERTIFICATE")
	push("Security Enabled,,%s", s.certificate.securityEnabled)
	push("Valid Start,UTC,,%s", s.certificate.validStart)
	push("Valid End,UTC,,%s", s.certificate.validEnd)
	lines = append(lines, "")

	push("## ALERTS")

	for i, alert := range s.alerts {
		push("Alert %d,,%s", i+1, telemetry.CSVEscape(alert))
	}

	lines = append(lines, "")

	return strings.Join(lines, "\r\n")
}

func (b *ReportBuilder) dataSection(records []Record) string {
	var lines []string

	lines = append(lines, dataTitle, "")

	header := telemetry.CSVHeader(b.cfg.IncludeRawJSON)

	headerCells := make([]string, len(header))
	for i, h := range header {
		headerCells[i] = telemetry.CSVEscape(h)
	}

	lines = append(lines, strings.Join(headerCells, ","))

	for _, rec := range records {
		row := telemetry.SnapshotRow(rec.Snapshot, rec.RecvAt, rec.Raw, b.cfg.IncludeRawJSON)

		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = telemetry.CSVEscape(c)
		}

		lines = append(lines, strings.Join(cells, ","))
	}

	return strings.Join(lines, "\r\n")
}
