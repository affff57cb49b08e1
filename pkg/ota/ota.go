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

// Package ota drives maintenance operations against a single device over a
// direct session: certificate bundle installs, software updates, version
// queries, tamper control, and reboots.
package ota

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/carverauto/rsemon/pkg/clock"
	"github.com/carverauto/rsemon/pkg/logger"
	"github.com/carverauto/rsemon/pkg/rpc"
	"github.com/carverauto/rsemon/pkg/transport"
)

// Topic pairs for operations that go straight to the device. The path
// encodes source and destination process areas; responses come back with the
// two swapped.
const (
	TopicCertApplyReq = "fac/V2X_MAINTENANCE_HUB_CLIENT_PA/SS_DOT2_SVC_PA/ssDot2ApplyDot2BundleCertZip/req"
	TopicCertApplyRes = "fac/SS_DOT2_SVC_PA/V2X_MAINTENANCE_HUB_CLIENT_PA/ssDot2ApplyDot2BundleCertZip/resp"

	TopicRebootReq = "fac/V2X_MAINTENANCE_HUB_CLIENT_PA/SYS_CTRL_PA/systemRestart/req"
	TopicRebootRes = "fac/SYS_CTRL_PA/V2X_MAINTENANCE_HUB_CLIENT_PA/systemRestart/resp"

	TopicTamperEnable  = "fac/V2X_MAINTENANCE_HUB_CLIENT_PA/TAMPER_SECURE_PA/tamperSecureEnable/req"
	TopicTamperDisable = "fac/V2X_MAINTENANCE_HUB_CLIENT_PA/TAMPER_SECURE_PA/tamperSecureDisable/req"

	TopicVersionReq = "fac/V2X_MAINTENANCE_HUB_CLIENT_PA/SW_MGR_PA/swVersionInfo/req"
	TopicVersionRes = "fac/SW_MGR_PA/V2X_MAINTENANCE_HUB_CLIENT_PA/swVersionInfo/resp"

	TopicUpdateReq = "fac/V2X_MAINTENANCE_HUB_CLIENT_PA/SW_MGR_PA/swUpdateApply/req"
	TopicUpdateRes = "fac/SW_MGR_PA/V2X_MAINTENANCE_HUB_CLIENT_PA/swUpdateApply/resp"
)

// Envelope is the header every direct-device request carries.
type Envelope struct {
	Ver           string `json:"VER"`
	TransactionID int    `json:"TRANSACTION_ID"`
	TS            string `json:"TS"`
}

// envelopeTimeLayout is ISO-8601 with the local UTC offset.
const envelopeTimeLayout = "2006-01-02T15:04:05.000-07:00"

var txCounter atomic.Uint32

// nextTransactionID yields process-wide sequence numbers wrapping at 16 bits,
// the width the device firmware stores them in.
func nextTransactionID() int {
	return int(txCounter.Add(1) % 65536)
}

// Manager runs device maintenance calls over pooled direct sessions.
type Manager struct {
	pool   *transport.DirectPool
	clk    clock.Clock
	logger logger.Logger
}

// NewManager builds a manager over pool.
func NewManager(pool *transport.DirectPool, clk clock.Clock, log logger.Logger) *Manager {
	return &Manager{
		pool:   pool,
		clk:    clk,
		logger: log.WithComponent("ota"),
	}
}

func (m *Manager) envelope() Envelope {
	return Envelope{
		Ver:           "1.0",
		TransactionID: nextTransactionID(),
		TS:            m.clk.Now().Format(envelopeTimeLayout),
	}
}

func (m *Manager) call(ctx context.Context, addr, reqTopic, resTopic string, payload interface{}, timeout time.Duration) ([]byte, error) {
	session, err := m.pool.Session(ctx, addr)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	coord := rpc.NewCoordinator(session, m.clk, m.logger)

	return coord.Call(ctx, rpc.Request{
		RequestTopic:  reqTopic,
		ResponseTopic: resTopic,
		Payload:       body,
		QoS:           1,
		Timeout:       timeout,
	})
}

type certApplyRequest struct {
	Envelope
	DataBase64 string `json:"data_base64"`
}

// ApplyCertBundle installs a base64-encoded certificate bundle zip on the
// device. The install flashes secure storage, so it runs under the long
// timeout; it succeeds only when the device reports every bundle entry
// applied.
func (m *Manager) ApplyCertBundle(ctx context.Context, addr, bundleBase64 string) error {
	payload := certApplyRequest{Envelope: m.envelope(), DataBase64: bundleBase64}

	body, err := m.call(ctx, addr, TopicCertApplyReq, TopicCertApplyRes, payload, rpc.CertUploadTimeout)
	if err != nil {
		return fmt.Errorf("certificate apply failed: %w", err)
	}

	var resp UpdateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to decode certificate apply response: %w", err)
	}

	if failed := resp.Failed(); len(failed) > 0 {
		return fmt.Errorf("certificate apply rejected: %s", describeFailures(failed))
	}

	m.logger.Info().Str("device", addr).Msg("Certificate bundle applied")

	return nil
}

// Reboot asks the device to restart. Any well-formed response counts as
// accepted; the device drops off the air immediately after.
func (m *Manager) Reboot(ctx context.Context, addr string) error {
	if _, err := m.call(ctx, addr, TopicRebootReq, TopicRebootRes, m.envelope(), rpc.DefaultTimeout); err != nil {
		return fmt.Errorf("reboot request failed: %w", err)
	}

	m.logger.Info().Str("device", addr).Msg("Reboot requested")

	return nil
}

// SetTamperSecure toggles the tamper-secure latch. The device sends no
// response for this operation; success means the request was handed to the
// session.
func (m *Manager) SetTamperSecure(ctx context.Context, addr string, enable bool) error {
	session, err := m.pool.Session(ctx, addr)
	if err != nil {
		return err
	}

	topic := TopicTamperDisable
	if enable {
		topic = TopicTamperEnable
	}

	body, err := json.Marshal(m.envelope())
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	if !session.Publish(topic, body, transport.PublishOptions{QoS: 1}) {
		return fmt.Errorf("tamper request not sent: session to %s not connected", addr)
	}

	return nil
}

func describeFailures(failed []UpdateResult) string {
	parts := make([]string, 0, len(failed))
	for _, e := range failed {
		parts = append(parts, fmt.Sprintf("%s v%s code %s", e.SWID, e.Version, e.Code))
	}

	return strings.Join(parts, ", ")
}
