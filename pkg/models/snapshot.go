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

package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FlexFloat is a numeric reading reported by a device. Firmware emits these
// as JSON numbers, quoted numbers, or string sentinels ("NaN", "none", "N/A")
// depending on the sensor driver, so absence and garbage both decode to an
// invalid value instead of failing the whole snapshot.
type FlexFloat struct {
	Value float64
	Valid bool
}

// Float returns the reading and whether it is usable.
func (f FlexFloat) Float() (float64, bool) {
	return f.Value, f.Valid
}

// FiniteFloat builds a valid FlexFloat. Non-finite input yields an invalid one.
func FiniteFloat(v float64) FlexFloat {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return FlexFloat{}
	}

	return FlexFloat{Value: v, Valid: true}
}

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		*f = FlexFloat{}
		return nil // tolerate anything; a bad reading is an absent reading
	}

	switch value := v.(type) {
	case float64:
		*f = FiniteFloat(value)
	case string:
		s := strings.TrimSpace(value)
		if isNaNSentinel(s) {
			*f = FlexFloat{}
			return nil
		}

		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = FlexFloat{}
			return nil
		}

		*f = FiniteFloat(parsed)
	default:
		*f = FlexFloat{}
	}

	return nil
}

func (f FlexFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}

	return json.Marshal(f.Value)
}

func isNaNSentinel(s string) bool {
	switch strings.ToLower(s) {
	case "", "nan", "-nan", "none", "null", "n/a":
		return true
	default:
		return false
	}
}

// DeviceSnapshot is one raw status message from an RSE device. Every field is
// optional on the wire; consumers must treat nil / invalid as "not reported".
type DeviceSnapshot struct {
	SerialNumber    string `json:"serial_number,omitempty"`
	HardwareVersion string `json:"hardware_version,omitempty"`
	OSVersion       string `json:"os_version,omitempty"`
	FirmwareVersion string `json:"firmware_version,omitempty"`

	GNSSAntennaStatus    *bool `json:"gnss_antenna_status,omitempty"`
	LTEV2XAntenna1Status *bool `json:"ltev2x_antenna1_status,omitempty"`
	LTEV2XAntenna2Status *bool `json:"ltev2x_antenna2_status,omitempty"`
	V2XUSBStatus         *bool `json:"v2x_usb_status,omitempty"`
	V2XSPIStatus         *bool `json:"v2x_spi_status,omitempty"`
	SRAMVBatStatus       *bool `json:"sram_vbat_status,omitempty"`
	Secton1PPSStatus     *bool `json:"secton_1pps_status,omitempty"`
	TamperSecureStatus   *bool `json:"tamper_secure_status,omitempty"`
	LTEV2XTxReadyStatus  *bool `json:"ltev2x_tx_ready_status,omitempty"`

	CPUUsage     *CPUUsageStatus     `json:"cpu_usage_status,omitempty"`
	MemoryUsage  *MemoryUsageStatus  `json:"memory_usage_status,omitempty"`
	StorageUsage *StorageUsageStatus `json:"storage_usage_status,omitempty"`
	Temperature  *TemperatureStatus  `json:"temperature_status,omitempty"`

	GNSS        *GNSSData        `json:"gnss_data,omitempty"`
	Certificate *Certificate     `json:"certificate,omitempty"`
	LTE         *LTEStatus       `json:"lte,omitempty"`
	RSEStatus   *RSECounters     `json:"rse_status,omitempty"`
	Interfaces  *InterfaceInfo   `json:"interface_info,omitempty"`
}

type CPUUsageStatus struct {
	TotalPercent FlexFloat   `json:"cpu_usage_total_percent,omitempty"`
	CorePercent  []FlexFloat `json:"cpu_usage_core_percent,omitempty"`
}

type MemoryUsageStatus struct {
	UsedPercent FlexFloat `json:"memory_usage_percent,omitempty"`
	TotalMB     FlexFloat `json:"memory_usage_total_mb,omitempty"`
	UsedMB      FlexFloat `json:"memory_usage_used_mb,omitempty"`
}

type StorageUsageStatus struct {
	UsedPercent FlexFloat `json:"storage_usage_percent,omitempty"`
	TotalGB     FlexFloat `json:"storage_usage_total_gb,omitempty"`
	UsedGB      FlexFloat `json:"storage_usage_used_gb,omitempty"`
}

type TemperatureStatus struct {
	OK       *bool     `json:"temperature_status,omitempty"`
	CelsiusC FlexFloat `json:"temperature_celsius,omitempty"`
}

// GNSSData carries the positioning block. Latitude/longitude are 1e7-scaled
// integers, altitude is centimeters, speed centimeters/second, heading
// centi-degrees. Time parts are UTC calendar fields, not an epoch.
type GNSSData struct {
	Mode   *int `json:"mode,omitempty"`
	Status *int `json:"status,omitempty"`

	Latitude  FlexFloat `json:"latitude,omitempty"`
	Longitude FlexFloat `json:"longitude,omitempty"`
	AltHAE    FlexFloat `json:"altHAE,omitempty"`
	AltMSL    FlexFloat `json:"altMSL,omitempty"`
	Speed     FlexFloat `json:"speed,omitempty"`
	Heading   FlexFloat `json:"heading,omitempty"`

	PDOP FlexFloat `json:"pdop,omitempty"`
	HDOP FlexFloat `json:"hdop,omitempty"`
	VDOP FlexFloat `json:"vdop,omitempty"`
	HAcc FlexFloat `json:"hacc,omitempty"`
	VAcc FlexFloat `json:"vacc,omitempty"`
	PAcc FlexFloat `json:"pacc,omitempty"`

	NumSatellites     FlexFloat `json:"numSatellites,omitempty"`
	NumUsedSatellites FlexFloat `json:"numUsedSatellites,omitempty"`

	Year    *int `json:"year,omitempty"`
	Month   *int `json:"month,omitempty"`
	Day     *int `json:"day,omitempty"`
	Hour    *int `json:"hour,omitempty"`
	Min     *int `json:"min,omitempty"`
	Sec     *int `json:"sec,omitempty"`
	NanoSec *int `json:"nanosec,omitempty"`
}

// Certificate validity bounds are seconds since an ambiguous epoch base;
// see telemetry.EpochAuto for how the base is resolved.
type Certificate struct {
	SecurityEnable *bool     `json:"ltev2x_cert_status_security_enable,omitempty"`
	ValidStart     FlexFloat `json:"ltev2x_cert_valid_start,omitempty"`
	ValidEnd       FlexFloat `json:"ltev2x_cert_valid_end,omitempty"`
}

type LTEStatus struct {
	RSSIDbm FlexFloat `json:"rssi_dbm,omitempty"`
}

type RSECounters struct {
	RxTotal FlexFloat `json:"ltev2x_rx_total_cnt,omitempty"`
	TxTotal FlexFloat `json:"ltev2x_tx_total_cnt,omitempty"`
}

type InterfaceInfo struct {
	Interfaces []NetworkInterface `json:"interface_array,omitempty"`
}

type NetworkInterface struct {
	Name      string             `json:"name,omitempty"`
	IPAddr    string             `json:"ip_addr,omitempty"`
	Addresses []InterfaceAddress `json:"addr_array,omitempty"`
}

type InterfaceAddress struct {
	Addr      string `json:"addr,omitempty"`
	Family    int    `json:"family,omitempty"`
	PrefixLen int    `json:"prefix_len,omitempty"`
}
