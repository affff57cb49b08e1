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
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/rsemon/pkg/models"
)

// csvTimeLayout renders timestamps with millisecond precision and the local
// UTC offset, the format field tooling ingests.
const csvTimeLayout = "2006-01-02T15:04:05.000-07:00"

// baseCSVHeader is the report column order. Downstream tooling matches on
// position, so the order is frozen.
var baseCSVHeader = []string{
	"serial",
	"recv_at",
	"device_ts",
	"hw_version",
	"os_version",
	"fw_version",

	"gnss_antenna_ok",
	"ltev2x_ant1_ok",
	"ltev2x_ant2_ok",
	"pps_sync",
	"temp_ok",
	"temp_c",
	"v2x_usb_ok",
	"v2x_spi_ok",
	"sram_vbat_ok",
	"tamper_secure",
	"ltev2x_tx_ready",

	"cpu_total_pct",
	"cpu_core_0_pct",
	"cpu_core_1_pct",
	"cpu_core_2_pct",
	"cpu_core_3_pct",

	"mem_used_pct",
	"mem_total_mb",
	"mem_used_mb",

	"storage_used_pct",
	"storage_total_gb",
	"storage_used_gb",

	"cert_security_enable",
	"cert_valid_start",
	"cert_valid_end",

	"lat",
	"lon",
	"alt_m",
	"speed_kmh",
	"heading_deg",

	"pdop",
	"hdop",
	"vdop",
	"hacc_m",
	"vacc_m",
	"pacc",

	"num_sats",
	"num_sats_used",

	"primary_ip",
	"eth0_ip",
	"ltev2x0_ip",
}

// CSVHeader returns the report header, optionally with the trailing raw
// payload column.
func CSVHeader(includeRaw bool) []string {
	header := make([]string, len(baseCSVHeader), len(baseCSVHeader)+1)
	copy(header, baseCSVHeader)

	if includeRaw {
		header = append(header, "raw_json")
	}

	return header
}

// SnapshotRow flattens one snapshot into a report row matching CSVHeader.
// Readings the device did not report render as empty cells, never as "NaN".
func SnapshotRow(snap *models.DeviceSnapshot, recvAt time.Time, raw []byte, includeRaw bool) []string {
	row := make([]string, 0, len(baseCSVHeader)+1)

	row = append(row,
		snap.SerialNumber,
		formatTime(recvAt),
		formatDeviceTime(snap.GNSS),
		snap.HardwareVersion,
		snap.OSVersion,
		snap.FirmwareVersion,
	)

	var temp models.TemperatureStatus
	if snap.Temperature != nil {
		temp = *snap.Temperature
	}

	row = append(row,
		formatBool(snap.GNSSAntennaStatus),
		formatBool(snap.LTEV2XAntenna1Status),
		formatBool(snap.LTEV2XAntenna2Status),
		formatBool(snap.Secton1PPSStatus),
		formatBool(temp.OK),
		formatFlex(temp.CelsiusC, 1),
		formatBool(snap.V2XUSBStatus),
		formatBool(snap.V2XSPIStatus),
		formatBool(snap.SRAMVBatStatus),
		formatBool(snap.TamperSecureStatus),
		formatBool(snap.LTEV2XTxReadyStatus),
	)

	row = append(row, performanceCells(snap)...)
	row = append(row, certificateCells(snap.Certificate, recvAt)...)
	row = append(row, locationCells(snap.GNSS)...)

	addrs := ExtractAddresses(snap.Interfaces)
	row = append(row, addrs.Primary, addrs.Eth0, addrs.LTEV2X0)

	if includeRaw {
		row = append(row, string(raw))
	}

	return row
}

func performanceCells(snap *models.DeviceSnapshot) []string {
	var (
		cpu  models.CPUUsageStatus
		mem  models.MemoryUsageStatus
		stor models.StorageUsageStatus
	)

	if snap.CPUUsage != nil {
		cpu = *snap.CPUUsage
	}

	if snap.MemoryUsage != nil {
		mem = *snap.MemoryUsage
	}

	if snap.StorageUsage != nil {
		stor = *snap.StorageUsage
	}

	cells := []string{formatFlex(cpu.TotalPercent, 2)}

	// Four core columns regardless of how many the device reports.
	for i := 0; i < 4; i++ {
		var core models.FlexFloat
		if i < len(cpu.CorePercent) {
			core = cpu.CorePercent[i]
		}

		cells = append(cells, formatFlex(core, 2))
	}

	return append(cells,
		formatFlex(mem.UsedPercent, 2),
		formatFlex(mem.TotalMB, -1),
		formatFlex(mem.UsedMB, -1),
		formatFlex(stor.UsedPercent, 2),
		formatFlex(stor.TotalGB, 3),
		formatFlex(stor.UsedGB, 3),
	)
}

func certificateCells(cert *models.Certificate, now time.Time) []string {
	var c models.Certificate
	if cert != nil {
		c = *cert
	}

	start := ""
	if t, ok := EpochAuto(c.ValidStart, now); ok {
		start = formatTime(t)
	}

	end := ""
	if t, ok := EpochAuto(c.ValidEnd, now); ok {
		end = formatTime(t)
	}

	return []string{formatBool(c.SecurityEnable), start, end}
}

func locationCells(gnss *models.GNSSData) []string {
	var g models.GNSSData
	if gnss != nil {
		g = *gnss
	}

	lat, lon := "", ""
	if coords := ExtractCoordinates(gnss); coords != nil {
		lat = strconv.FormatFloat(coords.Lat, 'f', 7, 64)
		lon = strconv.FormatFloat(coords.Lon, 'f', 7, 64)
	}

	altM, altOK := AltitudeM(g.AltMSL)
	speedKmh, speedOK := SpeedKmh(g.Speed)
	headingDeg, headingOK := HeadingDeg(g.Heading)

	return []string{
		lat,
		lon,
		formatConverted(altM, altOK, 2),
		formatConverted(speedKmh, speedOK, 2),
		formatConverted(headingDeg, headingOK, 2),
		formatFlex(g.PDOP, 3),
		formatFlex(g.HDOP, 3),
		formatFlex(g.VDOP, 3),
		formatFlex(g.HAcc, 3),
		formatFlex(g.VAcc, 3),
		formatFlex(g.PAcc, 3),
		formatFlex(g.NumSatellites, -1),
		formatFlex(g.NumUsedSatellites, -1),
	}
}

func formatTime(t time.Time) string {
	return t.Format(csvTimeLayout)
}

func formatDeviceTime(gnss *models.GNSSData) string {
	t, ok := DeviceTimestamp(gnss)
	if !ok {
		return ""
	}

	return formatTime(t)
}

// formatFlex renders a reading with a fixed number of decimals, or the
// shortest exact form when digits is negative. Invalid readings render empty.
func formatFlex(v models.FlexFloat, digits int) string {
	value, ok := v.Float()
	if !ok {
		return ""
	}

	return strconv.FormatFloat(value, 'f', digits, 64)
}

func formatConverted(v float64, ok bool, digits int) string {
	if !ok {
		return ""
	}

	return strconv.FormatFloat(v, 'f', digits, 64)
}

func formatBool(v *bool) string {
	switch {
	case v == nil:
		return ""
	case *v:
		return "1"
	default:
		return "0"
	}
}

// CSVEscape quotes a cell when it contains a delimiter, quote, or line
// break, doubling embedded quotes.
func CSVEscape(s string) string {
	if !strings.ContainsAny(s, "\",\r\n") {
		return s
	}

	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// BuildCSV joins header and rows into CRLF-terminated CSV text.
func BuildCSV(header []string, rows [][]string) string {
	var b strings.Builder

	writeRow := func(cells []string) {
		for i, c := range cells {
			if i > 0 {
				b.WriteByte(',')
			}

			b.WriteString(CSVEscape(c))
		}

		b.WriteString("\r\n")
	}

	writeRow(header)

	for _, row := range rows {
		writeRow(row)
	}

	return b.String()
}
