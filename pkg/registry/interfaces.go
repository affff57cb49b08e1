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

// Package registry decides which devices the pipeline trusts. Snapshot intake
// consults the gate on every message; lookups are cached so the backing store
// is not hit at telemetry rate.
package registry

import (
	"context"

	"github.com/carverauto/rsemon/pkg/models"
)

//go:generate mockgen -destination=mock_registry.go -package=registry github.com/carverauto/rsemon/pkg/registry DeviceStore

// DeviceStore is the persistence collaborator holding device registrations.
// GetBySerial returns (nil, nil) when the serial is not registered; an error
// means the store could not answer at all.
type DeviceStore interface {
	GetBySerial(ctx context.Context, serial string) (*models.DeviceRecord, error)
}
