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

// Package rpc layers request/response semantics over MQTT topic pairs. A call
// publishes on a request topic and resolves with the first well-formed
// message seen on the paired response topic, or with a TimeoutError.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/rsemon/pkg/clock"
	"github.com/carverauto/rsemon/pkg/logger"
	"github.com/carverauto/rsemon/pkg/transport"
)

const (
	// DefaultTimeout bounds ordinary device calls.
	DefaultTimeout = 6 * time.Second

	// CertUploadTimeout bounds certificate-bundle installs, which flash
	// the device's secure storage and run well past the ordinary bound.
	CertUploadTimeout = 12 * time.Second
)

var (
	errCallInflight = errors.New("a call on this topic pair is already in flight")
	errNotConnected = errors.New("session is not connected")
)

// TimeoutError reports a call or handshake that saw no response in time.
type TimeoutError struct {
	Topic   string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no response on %s after %s", e.Topic, e.Elapsed)
}

// Request describes one call over a request/response topic pair.
type Request struct {
	RequestTopic  string
	ResponseTopic string
	Payload       []byte
	QoS           byte
	// Timeout defaults to DefaultTimeout when zero.
	Timeout time.Duration
	// Match optionally narrows which response payloads complete the call,
	// for response topics shared between operations. Payloads that are
	// not valid JSON never match.
	Match func(payload []byte) bool
}

// Coordinator runs calls over a session. At most one call per topic pair may
// be in flight; a second concurrent call on the same pair fails fast.
type Coordinator struct {
	session transport.Session
	clk     clock.Clock
	logger  logger.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewCoordinator builds a coordinator over session.
func NewCoordinator(session transport.Session, clk clock.Clock, log logger.Logger) *Coordinator {
	return &Coordinator{
		session:  session,
		clk:      clk,
		logger:   log.WithComponent("rpc"),
		inflight: make(map[string]struct{}),
	}
}

// Call publishes the request and blocks until the first matching response,
// timeout, or ctx cancellation. The response subscription is removed on every
// exit path.
func (c *Coordinator) Call(ctx context.Context, req Request) ([]byte, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	key := req.RequestTopic + "|" + req.ResponseTopic

	c.mu.Lock()
	if _, busy := c.inflight[key]; busy {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", errCallInflight, req.RequestTopic)
	}

	c.inflight[key] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
	}()

	responses := make(chan []byte, 1)

	var once sync.Once

	c.session.SubscribeTopics([]string{req.ResponseTopic}, transport.SubscribeOptions{QoS: req.QoS})

	removeHandler := c.session.AddMessageHandler(func(topic string, payload []byte) {
		if topic != req.ResponseTopic || !json.Valid(payload) {
			return
		}

		if req.Match != nil && !req.Match(payload) {
			return
		}

		once.Do(func() {
			responses <- payload
		})
	})

	defer func() {
		removeHandler()
		c.session.UnsubscribeTopics([]string{req.ResponseTopic})
	}()

	if !c.session.Publish(req.RequestTopic, req.Payload, transport.PublishOptions{QoS: req.QoS}) {
		return nil, fmt.Errorf("%w: publish to %s", errNotConnected, req.RequestTopic)
	}

	timer := c.clk.NewTimer(timeout)
	defer timer.Stop()

	start := c.clk.Now()

	select {
	case payload := <-responses:
		c.logger.Debug().Str("topic", req.RequestTopic).
			Dur("elapsed", c.clk.Now().Sub(start)).Msg("Call completed")

		return payload, nil
	case <-timer.Chan():
		c.logger.Warn().Str("topic", req.RequestTopic).Dur("timeout", timeout).
			Msg("Call timed out")

		return nil, &TimeoutError{Topic: req.RequestTopic, Elapsed: timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
