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

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/carverauto/rsemon/pkg/clock"
	"github.com/carverauto/rsemon/pkg/logger"
	"github.com/carverauto/rsemon/pkg/models"
)

var errPoolClosed = fmt.Errorf("direct session pool is closed")

// DirectPool hands out sessions connected straight to a device, bypassing the
// hub. Sessions are created lazily on first use, keyed by device address, and
// evicted after sitting idle past the configured timeout.
type DirectPool struct {
	cfg    models.DirectConfig
	clk    clock.Clock
	logger logger.Logger

	mu       sync.Mutex
	sessions map[string]*DirectSession
	closed   bool

	stopGC    chan struct{}
	gcOnce    sync.Once
	newClient clientFactory
}

// NewDirectPool builds a pool and starts its idle-collection loop.
func NewDirectPool(cfg models.DirectConfig, clk clock.Clock, log logger.Logger) *DirectPool {
	p := &DirectPool{
		cfg:       cfg,
		clk:       clk,
		logger:    log.WithComponent("direct"),
		sessions:  make(map[string]*DirectSession),
		stopGC:    make(chan struct{}),
		newClient: mqtt.NewClient,
	}

	go p.gcLoop()

	return p
}

// Session returns the pooled session for addr, connecting one if needed.
func (p *DirectPool) Session(ctx context.Context, addr string) (*DirectSession, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, errPoolClosed
	}

	if s, ok := p.sessions[addr]; ok && s.Connected() {
		s.touch(p.clk.Now())
		p.mu.Unlock()

		return s, nil
	}

	delete(p.sessions, addr)
	p.mu.Unlock()

	s, err := p.connect(ctx, addr)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		s.Disconnect()

		return nil, errPoolClosed
	}

	p.sessions[addr] = s
	p.mu.Unlock()

	return s, nil
}

// Shutdown stops the collector and closes every pooled session.
func (p *DirectPool) Shutdown() {
	p.gcOnce.Do(func() { close(p.stopGC) })

	p.mu.Lock()
	p.closed = true
	sessions := p.sessions
	p.sessions = make(map[string]*DirectSession)
	p.mu.Unlock()

	for _, s := range sessions {
		s.Disconnect()
	}

	p.logger.Info().Int("sessions", len(sessions)).Msg("Direct session pool shut down")
}

func (p *DirectPool) connect(ctx context.Context, addr string) (*DirectSession, error) {
	url := fmt.Sprintf("tcp://%s:%d", addr, p.cfg.Port)

	s := &DirectSession{
		addr:      addr,
		url:       url,
		cfg:       p.cfg,
		clk:       p.clk,
		logger:    p.logger.WithComponent("direct-session"),
		handlers:  make(map[int]Handler),
		newClient: p.newClient,
		lastUsed:  p.clk.Now(),
	}

	connectCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.ConnectTimeout))
	defer cancel()

	if err := s.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("direct connect to %s failed: %w", addr, err)
	}

	p.logger.Info().Str("device", addr).Msg("Direct session established")

	return s, nil
}

func (p *DirectPool) gcLoop() {
	ticker := p.clk.NewTicker(time.Duration(p.cfg.GCInterval))
	defer ticker.Stop()

	for {
		select {
		case <-p.stopGC:
			return
		case now := <-ticker.Chan():
			p.collect(now)
		}
	}
}

func (p *DirectPool) collect(now time.Time) {
	idle := time.Duration(p.cfg.IdleTimeout)

	p.mu.Lock()
	var evicted []*DirectSession

	for addr, s := range p.sessions {
		if now.Sub(s.idleSince()) > idle {
			evicted = append(evicted, s)
			delete(p.sessions, addr)
		}
	}
	p.mu.Unlock()

	for _, s := range evicted {
		s.Disconnect()
		p.logger.Debug().Str("device", s.addr).Msg("Idle direct session evicted")
	}
}

// DirectSession is one connection to a single device. It satisfies Session so
// the RPC coordinator works over it unchanged.
type DirectSession struct {
	addr string
	url  string
	cfg  models.DirectConfig
	clk  clock.Clock

	logger logger.Logger

	mu        sync.Mutex
	client    mqtt.Client
	handlers  map[int]Handler
	handlerID int
	lastUsed  time.Time

	newClient clientFactory
}

var _ Session = (*DirectSession)(nil)

func (s *DirectSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.client != nil {
		s.mu.Unlock()
		return nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(s.url).
		SetClientID("rsemon-direct-" + uuid.NewString()).
		SetKeepAlive(30 * time.Second).
		SetConnectTimeout(time.Duration(s.cfg.ConnectTimeout)).
		SetAutoReconnect(true)

	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		s.dispatch(msg.Topic(), msg.Payload())
	})

	client := s.newClient(opts)
	s.client = client
	s.mu.Unlock()

	token := client.Connect()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			s.mu.Lock()
			s.client = nil
			s.mu.Unlock()

			return err
		}

		return nil
	case <-ctx.Done():
		client.Disconnect(0)

		s.mu.Lock()
		s.client = nil
		s.mu.Unlock()

		return ctx.Err()
	}
}

func (s *DirectSession) Disconnect() {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.handlers = make(map[int]Handler)
	s.mu.Unlock()

	if client != nil {
		client.Disconnect(250)
	}
}

func (s *DirectSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.client != nil && s.client.IsConnected()
}

func (s *DirectSession) Publish(topic string, payload []byte, opts PublishOptions) bool {
	s.mu.Lock()
	client := s.client
	s.lastUsed = s.clk.Now()
	s.mu.Unlock()

	if client == nil || !client.IsConnected() {
		s.logger.Warn().Str("device", s.addr).Str("topic", topic).
			Msg("Direct publish skipped, not connected")
		return false
	}

	token := client.Publish(topic, opts.QoS, opts.Retain, payload)

	go func() {
		<-token.Done()

		if err := token.Error(); err != nil {
			s.logger.Error().Err(err).Str("device", s.addr).Str("topic", topic).
				Msg("Direct publish failed")
		}
	}()

	return true
}

func (s *DirectSession) SubscribeTopics(topics []string, opts SubscribeOptions) {
	s.mu.Lock()
	client := s.client
	s.lastUsed = s.clk.Now()
	s.mu.Unlock()

	if client == nil {
		return
	}

	for _, t := range topics {
		client.Subscribe(t, opts.QoS, func(_ mqtt.Client, msg mqtt.Message) {
			s.dispatch(msg.Topic(), msg.Payload())
		})
	}
}

func (s *DirectSession) UnsubscribeTopics(topics []string) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	if client == nil {
		return
	}

	client.Unsubscribe(topics...)
}

func (s *DirectSession) AddMessageHandler(fn Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlerID++
	id := s.handlerID
	s.handlers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		delete(s.handlers, id)
	}
}

func (s *DirectSession) dispatch(topic string, payload []byte) {
	s.mu.Lock()
	handlers := make([]Handler, 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error().Str("topic", topic).Interface("panic", r).
						Msg("Direct message handler panicked")
				}
			}()

			h(topic, payload)
		}()
	}
}

func (s *DirectSession) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastUsed = now
}

func (s *DirectSession) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastUsed
}
