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

package rpc

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/carverauto/rsemon/pkg/clock"
	"github.com/carverauto/rsemon/pkg/logger"
	"github.com/carverauto/rsemon/pkg/transport"
)

var errHandshakeActive = errors.New("handshake already in progress")

type handshakePhase int

const (
	handshakeIdle handshakePhase = iota
	handshakeWaiting
	handshakeAcked
	handshakeCancelled
)

// HandshakeConfig tunes the retry cadence. Zero values take the defaults the
// hub protocol expects: a request every second, three seconds to first ack.
type HandshakeConfig struct {
	RequestInterval time.Duration
	AckWait         time.Duration
	QoS             byte
}

func (c *HandshakeConfig) normalize() {
	if c.RequestInterval <= 0 {
		c.RequestInterval = time.Second
	}

	if c.AckWait <= 0 {
		c.AckWait = 3 * time.Second
	}
}

// Handshake repeatedly publishes a request until the peer acknowledges it.
//
// The request goes out immediately and then once per interval. If no ack
// arrives within the ack window the handshake cancels itself, stops
// publishing, and reports a TimeoutError. After the first ack it keeps
// publishing on the same cadence, which the peer treats as a keep-alive,
// until Stop is called. Stop is the single cancellation point for both the
// retry ticker and the ack timer.
type Handshake struct {
	session transport.Session
	clk     clock.Clock
	logger  logger.Logger

	mu            sync.Mutex
	phase         handshakePhase
	stopCh        chan struct{}
	result        chan error
	removeHandler func()
	resTopic      string
	started       time.Time
	publishes     int
}

// NewHandshake builds a handshake runner over session.
func NewHandshake(session transport.Session, clk clock.Clock, log logger.Logger) *Handshake {
	return &Handshake{
		session: session,
		clk:     clk,
		logger:  log.WithComponent("handshake"),
	}
}

// Start begins publishing the request. The returned channel yields exactly
// one value: nil once the peer acks, or a *TimeoutError if the ack window
// closes with no response. Starting while a handshake is active fails.
func (h *Handshake) Start(req Request, cfg HandshakeConfig) (<-chan error, error) {
	cfg.normalize()

	h.mu.Lock()
	if h.phase == handshakeWaiting || h.phase == handshakeAcked {
		h.mu.Unlock()
		return nil, errHandshakeActive
	}

	h.phase = handshakeWaiting
	h.stopCh = make(chan struct{})
	h.result = make(chan error, 1)
	h.resTopic = req.ResponseTopic
	h.started = h.clk.Now()
	h.publishes = 0
	result := h.result
	h.mu.Unlock()

	h.session.SubscribeTopics([]string{req.ResponseTopic}, transport.SubscribeOptions{QoS: cfg.QoS})

	remove := h.session.AddMessageHandler(func(topic string, payload []byte) {
		if topic != req.ResponseTopic || !json.Valid(payload) {
			return
		}

		if req.Match != nil && !req.Match(payload) {
			return
		}

		h.onAck()
	})

	h.mu.Lock()
	h.removeHandler = remove
	h.mu.Unlock()

	h.publish(req, cfg.QoS)

	go h.loop(req, cfg)

	return result, nil
}

// Stop cancels the handshake: the retry ticker, the ack timer, and the
// response subscription all go away. Safe to call at any phase, repeatedly.
func (h *Handshake) Stop() {
	h.mu.Lock()
	if h.phase != handshakeWaiting && h.phase != handshakeAcked {
		h.mu.Unlock()
		return
	}

	h.phase = handshakeCancelled
	close(h.stopCh)
	h.mu.Unlock()

	h.cleanup()
	h.logger.Debug().Msg("Handshake stopped")
}

// Acked reports whether the peer has acknowledged the current handshake.
func (h *Handshake) Acked() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.phase == handshakeAcked
}

func (h *Handshake) loop(req Request, cfg HandshakeConfig) {
	ticker := h.clk.NewTicker(cfg.RequestInterval)
	defer ticker.Stop()

	timer := h.clk.NewTimer(cfg.AckWait)
	defer timer.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.Chan():
			h.publish(req, cfg.QoS)
		case <-timer.Chan():
			if h.expire(cfg.AckWait, req.RequestTopic) {
				return
			}
		}
	}
}

func (h *Handshake) publish(req Request, qos byte) {
	h.mu.Lock()
	h.publishes++
	h.mu.Unlock()

	if !h.session.Publish(req.RequestTopic, req.Payload, transport.PublishOptions{QoS: qos}) {
		h.logger.Warn().Str("topic", req.RequestTopic).Msg("Handshake publish dropped")
	}
}

// Publishes counts the requests sent so far, the first included.
func (h *Handshake) Publishes() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.publishes
}

func (h *Handshake) onAck() {
	h.mu.Lock()
	if h.phase != handshakeWaiting {
		h.mu.Unlock()
		return
	}

	h.phase = handshakeAcked
	elapsed := h.clk.Now().Sub(h.started)
	h.result <- nil
	h.mu.Unlock()

	h.logger.Info().Dur("elapsed", elapsed).Msg("Handshake acknowledged")
}

// expire fires when the ack window closes. It reports true, and tears the
// handshake down, only if no ack ever arrived.
func (h *Handshake) expire(ackWait time.Duration, topic string) bool {
	h.mu.Lock()
	if h.phase != handshakeWaiting {
		h.mu.Unlock()
		return false
	}

	h.phase = handshakeCancelled
	close(h.stopCh)
	h.result <- &TimeoutError{Topic: topic, Elapsed: ackWait}
	h.mu.Unlock()

	h.cleanup()
	h.logger.Warn().Str("topic", topic).Dur("ack_wait", ackWait).
		Msg("Handshake timed out with no acknowledgement")

	return true
}

func (h *Handshake) cleanup() {
	h.mu.Lock()
	remove := h.removeHandler
	h.removeHandler = nil
	topic := h.resTopic
	h.mu.Unlock()

	if remove != nil {
		remove()
	}

	if topic != "" {
		h.session.UnsubscribeTopics([]string{topic})
	}
}
