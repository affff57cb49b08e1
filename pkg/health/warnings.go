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

package health

import (
	"fmt"

	"github.com/carverauto/rsemon/pkg/models"
)

const (
	// certExpiryWarnDays is how far ahead an expiring certificate starts
	// raising a warning.
	certExpiryWarnDays = 30

	// weakSignalDbm is the RSSI floor below which the backhaul link is
	// flagged.
	weakSignalDbm = -100
)

// DetectWarnings derives the security and communication warnings for one
// snapshot. daysLeft comes from CertDaysLeft on the same snapshot.
func DetectWarnings(snap *models.DeviceSnapshot, daysLeft *int) []models.SecurityWarning {
	if snap == nil {
		return nil
	}

	var warnings []models.SecurityWarning

	enabled := SecurityEnabled(snap.Certificate)

	if snap.Certificate != nil && snap.Certificate.SecurityEnable != nil && !enabled {
		warnings = append(warnings, models.SecurityWarning{
			Type:     models.WarnSecurityDisabled,
			Category: "security",
			Message:  "V2X message security is disabled",
		})
	}

	if enabled && daysLeft != nil {
		switch {
		case *daysLeft <= 0:
			warnings = append(warnings, models.SecurityWarning{
				Type:     models.WarnCertExpired,
				Category: "security",
				Message:  "LTE-V2X certificate has expired",
				DaysLeft: daysLeft,
			})
		case *daysLeft < certExpiryWarnDays:
			warnings = append(warnings, models.SecurityWarning{
				Type:     models.WarnCertExpiring,
				Category: "security",
				Message:  fmt.Sprintf("LTE-V2X certificate expires in %d days", *daysLeft),
				DaysLeft: daysLeft,
			})
		}
	}

	if snap.LTE != nil {
		if rssi, ok := snap.LTE.RSSIDbm.Float(); ok && rssi < weakSignalDbm {
			v := rssi
			warnings = append(warnings, models.SecurityWarning{
				Type:     models.WarnWeakSignal,
				Category: "communication",
				Message:  fmt.Sprintf("Backhaul signal is weak (%.0f dBm)", rssi),
				RSSIDbm:  &v,
			})
		}
	}

	if affected := failedAntennas(snap); len(affected) > 0 {
		warnings = append(warnings, models.SecurityWarning{
			Type:     models.WarnAntennaIssue,
			Category: "communication",
			Message:  "Antenna fault reported",
			Affected: affected,
		})
	}

	return warnings
}

// failedAntennas lists the antenna checks the device explicitly reported as
// failed. Unreported antennas are not listed here; Evaluate already counts
// them against the health score.
func failedAntennas(snap *models.DeviceSnapshot) []string {
	var affected []string

	reportedDown := func(v *bool) bool { return v != nil && !*v }

	if reportedDown(snap.GNSSAntennaStatus) {
		affected = append(affected, Label(CheckGNSSAntenna))
	}

	if reportedDown(snap.LTEV2XAntenna1Status) {
		affected = append(affected, Label(CheckLTEAntenna1))
	}

	if reportedDown(snap.LTEV2XAntenna2Status) {
		affected = append(affected, Label(CheckLTEAntenna2))
	}

	return affected
}
