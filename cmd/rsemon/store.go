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

package main

import (
	"context"

	"github.com/carverauto/rsemon/pkg/models"
)

// staticStore serves device registrations straight from the config file. The
// headless runner has no registration database; an embedding application
// supplies its own store.
type staticStore struct {
	bySerial map[string]models.DeviceRecord
}

func newStaticStore(devices []models.DeviceRecord) *staticStore {
	s := &staticStore{bySerial: make(map[string]models.DeviceRecord, len(devices))}
	for _, d := range devices {
		s.bySerial[d.Serial] = d
	}

	return s
}

func (s *staticStore) GetBySerial(_ context.Context, serial string) (*models.DeviceRecord, error) {
	d, ok := s.bySerial[serial]
	if !ok {
		return nil, nil
	}

	return &d, nil
}
