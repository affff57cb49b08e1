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
	"github.com/carverauto/rsemon/pkg/logger"
	"github.com/carverauto/rsemon/pkg/models"
)

// Config is the runner's top-level configuration file layout.
type Config struct {
	Logger     *logger.Config          `json:"logger,omitempty"`
	MQTT       models.MQTTConfig       `json:"mqtt"`
	Registry   models.RegistryConfig   `json:"registry,omitempty"`
	State      models.StateConfig      `json:"state,omitempty"`
	Recorder   models.RecorderConfig   `json:"recorder,omitempty"`
	Inspection models.InspectionConfig `json:"inspection,omitempty"`
	Devices    []models.DeviceRecord   `json:"devices,omitempty"`
	ReportDir  string                  `json:"report_dir,omitempty"`
}

// Validate normalizes every section's defaults.
func (c *Config) Validate() error {
	if err := c.MQTT.Validate(); err != nil {
		return err
	}

	if err := c.Registry.Validate(); err != nil {
		return err
	}

	if err := c.State.Validate(); err != nil {
		return err
	}

	if err := c.Recorder.Validate(); err != nil {
		return err
	}

	return c.Inspection.Validate()
}
