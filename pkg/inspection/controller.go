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

// Package inspection owns the session lifecycle: the start handshake with
// the hub, the snapshot intake pipeline while running, and the stop and
// report flow.
package inspection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/rsemon/pkg/clock"
	"github.com/carverauto/rsemon/pkg/health"
	"github.com/carverauto/rsemon/pkg/logger"
	"github.com/carverauto/rsemon/pkg/models"
	"github.com/carverauto/rsemon/pkg/recorder"
	"github.com/carverauto/rsemon/pkg/registry"
	"github.com/carverauto/rsemon/pkg/rpc"
	"github.com/carverauto/rsemon/pkg/state"
	"github.com/carverauto/rsemon/pkg/telemetry"
	"github.com/carverauto/rsemon/pkg/transport"
)

// Hub topic pairs for the system-check session, plus the snapshot stream
// every device publishes into while a check runs.
const (
	TopicStartReq = "fac/V2X_MAINTENANCE_HUB_CLIENT_PA/V2X_MAINTENANCE_HUB_PA/startSystemCheck/req"
	TopicStartRes = "fac/V2X_MAINTENANCE_HUB_PA/V2X_MAINTENANCE_HUB_CLIENT_PA/startSystemCheck/resp"

	TopicStopReq = "fac/V2X_MAINTENANCE_HUB_CLIENT_PA/V2X_MAINTENANCE_HUB_PA/stopSystemCheck/req"
	TopicStopRes = "fac/V2X_MAINTENANCE_HUB_PA/V2X_MAINTENANCE_HUB_CLIENT_PA/stopSystemCheck/resp"

	TopicStatus = "fac/SYS_MON_PA/V2X_MAINTENANCE_HUB_PA/systemSnapshot/jsonMsg"
)

var (
	errNotIdle    = errors.New("inspection already in progress")
	errNotRunning = errors.New("no inspection running")
	errHubDown    = errors.New("hub session is not connected")
)

// requestEnvelope is the header the hub expects on session commands.
type requestEnvelope struct {
	Ver           string `json:"VER"`
	TransactionID int    `json:"TRANSACTION_ID"`
	TS            string `json:"TS"`
}

var txCounter atomic.Uint32

// Controller runs the one inspection session this process may have. Phases
// move idle -> requesting -> running -> stopping -> idle; a failed start
// handshake lands in error, from which Start may be retried.
type Controller struct {
	session transport.Session
	gate    *registry.Gate
	store   *state.LiveStore
	rec     *recorder.Recorder
	coord   *rpc.Coordinator
	builder *recorder.ReportBuilder

	cfg models.InspectionConfig
	th  health.Thresholds

	clk    clock.Clock
	logger logger.Logger

	mu           sync.Mutex
	sess         models.InspectionSession
	hs           *rpc.Handshake
	removeIntake func()
	// startDone releases the ack waiter when a pending start is cancelled;
	// the handshake result channel never yields after Stop.
	startDone chan struct{}
}

// Deps collects the controller's collaborators.
type Deps struct {
	Session  transport.Session
	Gate     *registry.Gate
	Store    *state.LiveStore
	Recorder *recorder.Recorder
	Builder  *recorder.ReportBuilder
	Clock    clock.Clock
	Logger   logger.Logger
}

// NewController builds an idle controller.
func NewController(cfg models.InspectionConfig, th health.Thresholds, deps Deps) *Controller {
	return &Controller{
		session: deps.Session,
		gate:    deps.Gate,
		store:   deps.Store,
		rec:     deps.Recorder,
		builder: deps.Builder,
		coord:   rpc.NewCoordinator(deps.Session, deps.Clock, deps.Logger),
		cfg:     cfg,
		th:      th,
		clk:     deps.Clock,
		logger:  deps.Logger.WithComponent("inspection"),
		sess:    models.InspectionSession{Phase: models.PhaseIdle},
	}
}

// Session returns a copy of the current session state.
func (c *Controller) Session() models.InspectionSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.sess

	if c.hs != nil {
		sess.RetryCount = c.hs.Publishes()
	}

	return sess
}

// Start begins a session: it repeatedly publishes the start request until
// the hub acks, then turns on the snapshot intake pipeline, the recorder,
// and the stale watcher. A handshake that closes with no ack lands the
// session in the error phase with a connectivity message.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()

	if c.sess.Phase != models.PhaseIdle && c.sess.Phase != models.PhaseError {
		c.mu.Unlock()
		return fmt.Errorf("%w: phase %s", errNotIdle, c.sess.Phase)
	}

	if !c.session.Connected() {
		c.mu.Unlock()
		return errHubDown
	}

	now := c.clk.Now()
	c.sess = models.InspectionSession{Phase: models.PhaseRequesting, StartedAt: &now}

	hs := rpc.NewHandshake(c.session, c.clk, c.logger)
	done := make(chan struct{})
	c.hs = hs
	c.startDone = done
	c.mu.Unlock()

	payload, err := json.Marshal(requestEnvelope{
		Ver:           "1.0",
		TransactionID: int(txCounter.Add(1) % 65536),
		TS:            now.Format("2006-01-02T15:04:05.000-07:00"),
	})
	if err != nil {
		return fmt.Errorf("failed to encode start request: %w", err)
	}

	result, err := hs.Start(rpc.Request{
		RequestTopic:  TopicStartReq,
		ResponseTopic: TopicStartRes,
		Payload:       payload,
		QoS:           c.cfg.QoS,
	}, rpc.HandshakeConfig{
		RequestInterval: time.Duration(c.cfg.RequestInterval),
		AckWait:         time.Duration(c.cfg.AckWait),
		QoS:             c.cfg.QoS,
	})
	if err != nil {
		c.mu.Lock()
		c.sess = models.InspectionSession{Phase: models.PhaseError, Error: err.Error()}
		c.hs = nil
		c.startDone = nil
		c.mu.Unlock()

		return err
	}

	go c.awaitAck(result, done)

	c.logger.Info().Msg("Inspection start requested")

	return nil
}

func (c *Controller) awaitAck(result <-chan error, done <-chan struct{}) {
	var err error

	select {
	case err = <-result:
	case <-done:
		// Start cancelled before the hub answered; Stop already tore the
		// handshake down and the result channel will never yield.
		return
	}

	c.mu.Lock()

	if c.sess.Phase != models.PhaseRequesting {
		// Stopped while waiting; the handshake was already torn down.
		c.mu.Unlock()
		return
	}

	if err != nil {
		c.sess.Phase = models.PhaseError
		c.sess.Error = fmt.Sprintf("hub did not acknowledge start: %v", err)
		c.hs = nil
		c.mu.Unlock()

		c.logger.Error().Err(err).Msg("Inspection start failed")

		return
	}

	c.sess.Phase = models.PhaseRunning
	c.sess.Error = ""
	c.mu.Unlock()

	c.session.SubscribeTopics([]string{TopicStatus}, transport.SubscribeOptions{QoS: c.cfg.QoS})

	remove := c.session.AddMessageHandler(c.intake)

	c.mu.Lock()
	c.removeIntake = remove
	c.mu.Unlock()

	c.rec.Start()
	c.store.StartStaleWatcher()

	c.logger.Info().Msg("Inspection running")
}

// Stop ends a session. The hub is told via the stop call; if that call
// fails the teardown proceeds anyway so the controller can never wedge in
// stopping. The start handshake's keep-alive publishing ends here too.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()

	switch c.sess.Phase {
	case models.PhaseRequesting:
		// Never acked; cancel the handshake and fall back to idle.
		hs := c.hs
		c.hs = nil
		done := c.startDone
		c.startDone = nil
		c.sess = models.InspectionSession{Phase: models.PhaseIdle}
		c.mu.Unlock()

		if done != nil {
			close(done)
		}

		if hs != nil {
			hs.Stop()
		}

		c.logger.Info().Msg("Inspection start cancelled")

		return nil
	case models.PhaseRunning:
	default:
		phase := c.sess.Phase
		c.mu.Unlock()

		return fmt.Errorf("%w: phase %s", errNotRunning, phase)
	}

	c.sess.Phase = models.PhaseStopping
	hs := c.hs
	c.hs = nil
	c.startDone = nil
	remove := c.removeIntake
	c.removeIntake = nil
	c.mu.Unlock()

	if hs != nil {
		hs.Stop()
	}

	payload, _ := json.Marshal(requestEnvelope{
		Ver:           "1.0",
		TransactionID: int(txCounter.Add(1) % 65536),
		TS:            c.clk.Now().Format("2006-01-02T15:04:05.000-07:00"),
	})

	if _, err := c.coord.Call(ctx, rpc.Request{
		RequestTopic:  TopicStopReq,
		ResponseTopic: TopicStopRes,
		Payload:       payload,
		QoS:           c.cfg.QoS,
		Timeout:       time.Duration(c.cfg.StopTimeout),
	}); err != nil {
		// The hub may be gone; tear down locally regardless.
		c.logger.Warn().Err(err).Msg("Stop request not acknowledged, closing session anyway")
	}

	if remove != nil {
		remove()
	}

	c.session.UnsubscribeTopics([]string{TopicStatus})
	c.store.StopStaleWatcher()
	c.rec.Stop()

	c.mu.Lock()
	c.sess = models.InspectionSession{Phase: models.PhaseIdle}
	c.mu.Unlock()

	c.logger.Info().Int("packets", c.rec.Len()).Msg("Inspection stopped")

	return nil
}

// Report renders the session capture as one CSV report.
func (c *Controller) Report() string {
	return c.builder.Build(c.rec.Records())
}

// ReportsBySerial renders one CSV report per device.
func (c *Controller) ReportsBySerial() map[string]string {
	return c.builder.BuildBySerial(c.rec.Records())
}

// intake is the per-message pipeline while running: decode, gate, derive,
// store, record. Unregistered devices are tracked separately and never
// recorded; a registry outage drops the message rather than admitting an
// unverified device.
func (c *Controller) intake(topic string, payload []byte) {
	if topic != TopicStatus {
		return
	}

	snap, err := telemetry.DecodeSnapshot(payload)
	if err != nil {
		c.logger.Debug().Err(err).Msg("Dropped undecodable snapshot")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	record, err := c.gate.Lookup(ctx, snap.SerialNumber)
	if err != nil {
		c.logger.Warn().Err(err).Str("serial", snap.SerialNumber).
			Msg("Dropped snapshot, registry unavailable")
		return
	}

	now := c.clk.Now()

	if record == nil {
		c.store.UpsertUnregistered(snap.SerialNumber, snap, registry.UnregisteredID(snap.SerialNumber))
		return
	}

	var fallback *models.Coordinates
	if record.Latitude != nil && record.Longitude != nil {
		fallback = &models.Coordinates{Lat: *record.Latitude, Lon: *record.Longitude}
	}

	item := telemetry.ToItem(snap, telemetry.ItemOptions{
		ID:         record.ID,
		Fallback:   fallback,
		Thresholds: c.th,
		Now:        now,
	})

	c.store.Upsert(item)
	c.rec.Add(recorder.Record{Snapshot: snap, Raw: payload, RecvAt: now})
}
