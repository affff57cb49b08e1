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

// Package telemetry decodes raw device status messages and normalizes them
// into display items and report rows: GNSS descaling, epoch resolution, unit
// conversion, and CSV formatting.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/carverauto/rsemon/pkg/models"
)

var errMissingSerial = errors.New("snapshot has no serial_number")

// DecodeSnapshot parses one status payload. Field-level garbage is tolerated
// (bad readings decode as absent), but a payload without a serial number
// cannot be attributed to a device and is rejected.
func DecodeSnapshot(payload []byte) (*models.DeviceSnapshot, error) {
	var snap models.DeviceSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	snap.SerialNumber = strings.TrimSpace(snap.SerialNumber)
	if snap.SerialNumber == "" {
		return nil, errMissingSerial
	}

	return &snap, nil
}
