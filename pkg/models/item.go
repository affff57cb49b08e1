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

import "time"

// HealthSummary is the derived pass/fail view of one snapshot.
// Pct is always an integer in [0, 100]; Issues holds the human-readable
// labels of failed checks in the fixed check enumeration order.
type HealthSummary struct {
	Pct    int             `json:"pct"`
	Flags  map[string]bool `json:"flags"`
	Issues []string        `json:"issues"`
}

// CertState classifies the certificate block of a snapshot.
type CertState string

const (
	CertOK       CertState = "ok"
	CertExpired  CertState = "expired"
	CertDisabled CertState = "disabled"
	// CertUnknown means security is enabled but no usable validity end
	// was reported.
	CertUnknown CertState = "unknown"
)

// WarningType identifies a derived security/communication warning.
type WarningType string

const (
	WarnSecurityDisabled WarningType = "SECURITY_DISABLED"
	WarnCertExpired      WarningType = "CERT_EXPIRED"
	WarnCertExpiring     WarningType = "CERT_EXPIRING"
	WarnWeakSignal       WarningType = "WEAK_SIGNAL"
	WarnAntennaIssue     WarningType = "ANTENNA_ISSUE"
)

type SecurityWarning struct {
	Type     WarningType `json:"type"`
	Category string      `json:"category"`
	Message  string      `json:"message"`
	DaysLeft *int        `json:"days_left,omitempty"`
	RSSIDbm  *float64    `json:"rssi_dbm,omitempty"`
	Affected []string    `json:"affected,omitempty"`
}

// Coordinates is a descaled WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NormalizedItem is the latest derived state of one registered device.
// Overwritten on each accepted snapshot; the raw snapshot rides along for
// drill-down views.
type NormalizedItem struct {
	ID     string `json:"id"`
	Serial string `json:"serial"`
	Active bool   `json:"active"`

	Health   HealthSummary     `json:"health"`
	Warnings []SecurityWarning `json:"warnings,omitempty"`

	Bars    int      `json:"bars"`
	RSSIDbm *float64 `json:"rssi_dbm,omitempty"`

	SecurityEnabled bool      `json:"security_enabled"`
	CertDaysLeft    *int      `json:"cert_days_left,omitempty"`
	CertState       CertState `json:"cert_state"`

	Coords     *Coordinates `json:"coords,omitempty"`
	IsFallback bool         `json:"is_fallback,omitempty"`

	TemperatureC *float64 `json:"temperature_c,omitempty"`
	CPUTotalPct  *float64 `json:"cpu_total_pct,omitempty"`
	MemUsedPct   *float64 `json:"mem_used_pct,omitempty"`
	DiskUsedPct  *float64 `json:"disk_used_pct,omitempty"`

	MsgPerSec float64   `json:"msg_per_sec"`
	UpdatedAt time.Time `json:"updated_at"`

	Raw *DeviceSnapshot `json:"-"`
}

// DeviceStatus buckets a device for fleet-level statistics.
type DeviceStatus string

const (
	StatusOK       DeviceStatus = "ok"
	StatusFault    DeviceStatus = "fault"
	StatusWarning  DeviceStatus = "warning"
	StatusUnknown  DeviceStatus = "unknown"
	StatusInactive DeviceStatus = "inactive"
)

// FleetStats is an aggregate over the live store.
type FleetStats struct {
	Total        int `json:"total"`
	Registered   int `json:"registered"`
	Unregistered int `json:"unregistered"`
	Active       int `json:"active"`
	Inactive     int `json:"inactive"`
	OK           int `json:"ok"`
	Fault        int `json:"fault"`
	Warning      int `json:"warning"`
	WithCoords   int `json:"with_coords"`
}

// UnregisteredDevice is the minimal record kept for snapshots whose serial is
// not in the registry. These never enter the primary monitoring list or the
// recorder.
type UnregisteredDevice struct {
	ID        string          `json:"id"`
	Serial    string          `json:"serial"`
	Count     int             `json:"count"`
	FirstSeen time.Time       `json:"first_seen"`
	LastSeen  time.Time       `json:"last_seen"`
	Raw       *DeviceSnapshot `json:"-"`
}
