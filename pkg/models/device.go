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

// DeviceRecord is a registered device as stored by the persistence
// collaborator. The core only reads these; registration edits happen outside
// the pipeline and must be followed by a cache invalidation.
type DeviceRecord struct {
	ID           string    `json:"id"`
	Serial       string    `json:"serial"`
	Model        string    `json:"model,omitempty"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	IPv4         string    `json:"ipv4,omitempty"`
	Gateway      string    `json:"gateway,omitempty"`
	DNS          string    `json:"dns,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// InspectionPhase is the inspection session state machine phase.
type InspectionPhase string

const (
	PhaseIdle       InspectionPhase = "idle"
	PhaseRequesting InspectionPhase = "requesting"
	PhaseRunning    InspectionPhase = "running"
	PhaseStopping   InspectionPhase = "stopping"
	PhaseError      InspectionPhase = "error"
)

// InspectionSession is the externally visible session state. Exactly one
// exists per process; only the inspection controller mutates it.
type InspectionSession struct {
	Phase      InspectionPhase `json:"phase"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	RetryCount int             `json:"retry_count"`
	Error      string          `json:"error,omitempty"`
}
