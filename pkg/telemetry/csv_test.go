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
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/rsemon/pkg/models"
)

func TestCSVHeader(t *testing.T) {
	header := CSVHeader(false)

	assert.Len(t, header, 47)
	assert.Equal(t, "serial", header[0])
	assert.Equal(t, "ltev2x0_ip", header[len(header)-1])

	withRaw := CSVHeader(true)
	assert.Len(t, withRaw, 48)
	assert.Equal(t, "raw_json", withRaw[len(withRaw)-1])

	// CSVHeader hands out copies; mutating one must not leak.
	header[0] = "mutated"
	assert.Equal(t, "serial", CSVHeader(false)[0])
}

func TestSnapshotRowMatchesHeader(t *testing.T) {
	recvAt := time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC)

	boolPtr := func(v bool) *bool { return &v }
	intPtr := func(v int) *int { return &v }

	snap := &models.DeviceSnapshot{
		SerialNumber:         "RSE-001",
		HardwareVersion:      "2.1",
		OSVersion:            "5.10",
		FirmwareVersion:      "1.4.2",
		GNSSAntennaStatus:    boolPtr(true),
		LTEV2XAntenna1Status: boolPtr(false),
		Secton1PPSStatus:     boolPtr(true),
		TamperSecureStatus:   boolPtr(true),
		LTEV2XTxReadyStatus:  boolPtr(true),
		CPUUsage: &models.CPUUsageStatus{
			TotalPercent: models.FiniteFloat(25.5),
			CorePercent:  []models.FlexFloat{models.FiniteFloat(20), models.FiniteFloat(31)},
		},
		MemoryUsage: &models.MemoryUsageStatus{
			UsedPercent: models.FiniteFloat(42.1),
			TotalMB:     models.FiniteFloat(4096),
			UsedMB:      models.FiniteFloat(1724),
		},
		StorageUsage: &models.StorageUsageStatus{
			UsedPercent: models.FiniteFloat(61.8),
			TotalGB:     models.FiniteFloat(32),
			UsedGB:      models.FiniteFloat(19.776),
		},
		Temperature: &models.TemperatureStatus{OK: boolPtr(true), CelsiusC: models.FiniteFloat(48.26)},
		GNSS: &models.GNSSData{
			Latitude:          models.FiniteFloat(375665070),
			Longitude:         models.FiniteFloat(1269780830),
			AltMSL:            models.FiniteFloat(5230),
			Speed:             models.FiniteFloat(0),
			Heading:           models.FiniteFloat(9050),
			HDOP:              models.FiniteFloat(0.8),
			NumSatellites:     models.FiniteFloat(12),
			NumUsedSatellites: models.FiniteFloat(9),
			Year:              intPtr(2025), Month: intPtr(6), Day: intPtr(1),
			Hour: intPtr(9), Min: intPtr(29), Sec: intPtr(58),
		},
		Interfaces: &models.InterfaceInfo{Interfaces: []models.NetworkInterface{
			{Name: "eth0", IPAddr: "192.168.1.10"},
			{Name: "ltev2x0", IPAddr: "10.0.0.5"},
		}},
	}

	row := SnapshotRow(snap, recvAt, []byte(`{"serial_number":"RSE-001"}`), false)
	header := CSVHeader(false)

	require.Len(t, row, len(header))

	cell := func(name string) string {
		for i, h := range header {
			if h == name {
				return row[i]
			}
		}

		t.Fatalf("no column %q", name)

		return ""
	}

	assert.Equal(t, "RSE-001", cell("serial"))
	assert.Equal(t, "1", cell("gnss_antenna_ok"))
	assert.Equal(t, "0", cell("ltev2x_ant1_ok"))
	assert.Equal(t, "", cell("ltev2x_ant2_ok")) // unreported renders empty
	assert.Equal(t, "48.3", cell("temp_c"))
	assert.Equal(t, "25.50", cell("cpu_total_pct"))
	assert.Equal(t, "20.00", cell("cpu_core_0_pct"))
	assert.Equal(t, "31.00", cell("cpu_core_1_pct"))
	assert.Equal(t, "", cell("cpu_core_2_pct")) // only two cores reported
	assert.Equal(t, "4096", cell("mem_total_mb"))
	assert.Equal(t, "19.776", cell("storage_used_gb"))
	assert.Equal(t, "37.5665070", cell("lat"))
	assert.Equal(t, "126.9780830", cell("lon"))
	assert.Equal(t, "52.30", cell("alt_m"))
	assert.Equal(t, "0.00", cell("speed_kmh"))
	assert.Equal(t, "90.50", cell("heading_deg"))
	assert.Equal(t, "0.800", cell("hdop"))
	assert.Equal(t, "12", cell("num_sats"))
	assert.Equal(t, "192.168.1.10", cell("primary_ip"))
	assert.Equal(t, "10.0.0.5", cell("ltev2x0_ip"))
	assert.Contains(t, cell("device_ts"), "2025-06-01T09:29:58.000")
}

func TestSnapshotRowEmptySnapshot(t *testing.T) {
	row := SnapshotRow(&models.DeviceSnapshot{}, time.Now(), nil, false)

	require.Len(t, row, len(CSVHeader(false)))

	// No reading ever renders as "NaN".
	for i, c := range row {
		assert.NotContains(t, c, "NaN", "column %d", i)
	}
}

func TestSnapshotRowIncludesRaw(t *testing.T) {
	raw := []byte(`{"serial_number":"RSE-001"}`)
	row := SnapshotRow(&models.DeviceSnapshot{SerialNumber: "RSE-001"}, time.Now(), raw, true)

	require.Len(t, row, len(CSVHeader(true)))
	assert.Equal(t, string(raw), row[len(row)-1])
}

func TestCSVEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: "", want: ""},
		{in: "a,b", want: `"a,b"`},
		{in: `say "hi"`, want: `"say ""hi"""`},
		{in: "line\nbreak", want: "\"line\nbreak\""},
		{in: "cr\rhere", want: "\"cr\rhere\""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CSVEscape(tt.in))
	}
}

func TestBuildCSVRoundTrips(t *testing.T) {
	header := []string{"a", "b", "c"}
	rows := [][]string{
		{"1", "two,with,commas", `quote " inside`},
		{"", "empty first", "last"},
	}

	text := BuildCSV(header, rows)

	assert.True(t, strings.HasSuffix(text, "\r\n"))

	parsed, err := csv.NewReader(strings.NewReader(text)).ReadAll()
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	assert.Equal(t, header, parsed[0])
	assert.Equal(t, rows[0], parsed[1])
	assert.Equal(t, rows[1], parsed[2])
}
