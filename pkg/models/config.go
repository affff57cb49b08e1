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
	"errors"
	"fmt"
	"time"
)

var (
	errInvalidDuration = errors.New("invalid duration")
	errNoBrokerURL     = errors.New("broker_url is required")
)

// Duration wraps time.Duration so JSON configs can use either nanosecond
// numbers or strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// MQTTConfig configures the shared hub session.
type MQTTConfig struct {
	BrokerURL            string   `json:"broker_url"`
	ClientID             string   `json:"client_id,omitempty"`
	Username             string   `json:"username,omitempty"`
	Password             string   `json:"password,omitempty"`
	KeepAlive            Duration `json:"keep_alive,omitempty"`
	PingTimeout          Duration `json:"ping_timeout,omitempty"`
	ConnectTimeout       Duration `json:"connect_timeout,omitempty"`
	ConnectRetryInterval Duration `json:"connect_retry_interval,omitempty"`
}

func (c *MQTTConfig) Validate() error {
	if c.BrokerURL == "" {
		return errNoBrokerURL
	}

	if c.KeepAlive == 0 {
		c.KeepAlive = Duration(30 * time.Second)
	}

	if c.PingTimeout == 0 {
		c.PingTimeout = Duration(10 * time.Second)
	}

	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = Duration(5 * time.Second)
	}

	if c.ConnectRetryInterval == 0 {
		c.ConnectRetryInterval = Duration(5 * time.Second)
	}

	return nil
}

// DirectConfig configures on-demand sessions straight to a device, bypassing
// the hub.
type DirectConfig struct {
	Port           int      `json:"port,omitempty"`
	ConnectTimeout Duration `json:"connect_timeout,omitempty"`
	IdleTimeout    Duration `json:"idle_timeout,omitempty"`
	GCInterval     Duration `json:"gc_interval,omitempty"`
}

func (c *DirectConfig) Validate() error {
	if c.Port == 0 {
		c.Port = 1883
	}

	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = Duration(5 * time.Second)
	}

	if c.IdleTimeout == 0 {
		c.IdleTimeout = Duration(2 * time.Minute)
	}

	if c.GCInterval == 0 {
		c.GCInterval = Duration(30 * time.Second)
	}

	return nil
}

// RegistryConfig bounds the registration cache.
type RegistryConfig struct {
	CacheTTL Duration `json:"cache_ttl,omitempty"`
}

func (c *RegistryConfig) Validate() error {
	if c.CacheTTL == 0 {
		c.CacheTTL = Duration(30 * time.Second)
	}

	return nil
}

// StateConfig bounds the live store.
type StateConfig struct {
	SeriesMaxSamples int      `json:"series_max_samples,omitempty"`
	StaleAfter       Duration `json:"stale_after,omitempty"`
	StaleSweep       Duration `json:"stale_sweep,omitempty"`
}

func (c *StateConfig) Validate() error {
	if c.SeriesMaxSamples == 0 {
		c.SeriesMaxSamples = 180
	}

	if c.StaleAfter == 0 {
		c.StaleAfter = Duration(3 * time.Second)
	}

	if c.StaleSweep == 0 {
		c.StaleSweep = Duration(time.Second)
	}

	return nil
}

// RecorderConfig bounds the in-memory inspection recorder.
type RecorderConfig struct {
	MaxRows        int  `json:"max_rows,omitempty"`
	IncludeRawJSON bool `json:"include_raw_json,omitempty"`
	IncludeSummary bool `json:"include_summary"`
}

func (c *RecorderConfig) Validate() error {
	if c.MaxRows == 0 {
		c.MaxRows = 100_000
	}

	return nil
}

// InspectionConfig drives the start/stop handshake.
type InspectionConfig struct {
	RequestInterval Duration `json:"request_interval,omitempty"`
	AckWait         Duration `json:"ack_wait,omitempty"`
	StopTimeout     Duration `json:"stop_timeout,omitempty"`
	QoS             byte     `json:"qos,omitempty"`
}

func (c *InspectionConfig) Validate() error {
	if c.RequestInterval == 0 {
		c.RequestInterval = Duration(time.Second)
	}

	if c.AckWait == 0 {
		c.AckWait = Duration(3 * time.Second)
	}

	if c.StopTimeout == 0 {
		c.StopTimeout = Duration(10 * time.Second)
	}

	return nil
}
