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

	"github.com/carverauto/rsemon/pkg/logger"
	"github.com/carverauto/rsemon/pkg/models"
)

var errConnectAborted = fmt.Errorf("mqtt connect aborted")

// clientFactory builds the underlying MQTT client; replaced in tests.
type clientFactory func(opts *mqtt.ClientOptions) mqtt.Client

// HubSession is the shared long-lived session to the field-management hub.
// Subscriptions are declarative: the wanted-topic set survives reconnects and
// topics added while offline are applied on the next connect.
type HubSession struct {
	cfg    models.MQTTConfig
	logger logger.Logger

	mu        sync.Mutex
	client    mqtt.Client
	subs      map[string]byte
	handlers  map[int]Handler
	handlerID int
	connected bool

	newClient clientFactory
}

// NewHubSession builds an unconnected hub session.
func NewHubSession(cfg models.MQTTConfig, log logger.Logger) *HubSession {
	return &HubSession{
		cfg:       cfg,
		logger:    log.WithComponent("transport"),
		subs:      make(map[string]byte),
		handlers:  make(map[int]Handler),
		newClient: mqtt.NewClient,
	}
}

// Connect establishes the session. Calling it while connected is a no-op.
// After the first success the paho layer reconnects automatically and the
// session re-applies its subscription set on every reconnect.
func (s *HubSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.client != nil {
		s.mu.Unlock()
		return nil
	}

	clientID := s.cfg.ClientID
	if clientID == "" {
		clientID = "rsemon-" + uuid.NewString()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.BrokerURL).
		SetClientID(clientID).
		SetOrderMatters(true).
		SetCleanSession(false).
		SetKeepAlive(time.Duration(s.cfg.KeepAlive)).
		SetPingTimeout(time.Duration(s.cfg.PingTimeout)).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(s.cfg.ConnectRetryInterval))

	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
	}

	if s.cfg.Password != "" {
		opts.SetPassword(s.cfg.Password)
	}

	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		s.dispatch(msg.Topic(), msg.Payload())
	})

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		s.mu.Lock()
		s.connected = true
		topics := make(map[string]byte, len(s.subs))
		for t, q := range s.subs {
			topics[t] = q
		}
		s.mu.Unlock()

		s.logger.Info().Str("broker", s.cfg.BrokerURL).Msg("Connected to hub")
		s.applySubscriptions(c, topics)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()

		s.logger.Warn().Err(err).Msg("Hub connection lost, reconnecting")
	})

	client := s.newClient(opts)
	s.client = client
	s.mu.Unlock()

	token := client.Connect()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to connect to %s: %w", s.cfg.BrokerURL, err)
		}

		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errConnectAborted, ctx.Err())
	}
}

// Disconnect tears down the connection and clears the local listener and
// subscription registries. Safe when not connected.
func (s *HubSession) Disconnect() {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.connected = false
	s.subs = make(map[string]byte)
	s.handlers = make(map[int]Handler)
	s.mu.Unlock()

	if client != nil {
		client.Disconnect(250)
		s.logger.Info().Msg("Hub session disconnected")
	}
}

func (s *HubSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.connected
}

// Publish sends one message. Returns false without error when the session is
// not connected; delivery past local queuing is not confirmed here.
func (s *HubSession) Publish(topic string, payload []byte, opts PublishOptions) bool {
	s.mu.Lock()
	client := s.client
	connected := s.connected
	s.mu.Unlock()

	if client == nil || !connected {
		s.logger.Warn().Str("topic", topic).Msg("Publish skipped, not connected")
		return false
	}

	token := client.Publish(topic, opts.QoS, opts.Retain, payload)

	go func() {
		<-token.Done()

		if err := token.Error(); err != nil {
			s.logger.Error().Err(err).Str("topic", topic).Msg("Publish failed")
		}
	}()

	return true
}

func (s *HubSession) SubscribeTopics(topics []string, opts SubscribeOptions) {
	s.mu.Lock()
	added := make(map[string]byte, len(topics))

	for _, t := range topics {
		if t == "" {
			continue
		}

		s.subs[t] = opts.QoS
		added[t] = opts.QoS
	}

	client := s.client
	connected := s.connected
	s.mu.Unlock()

	if client != nil && connected {
		s.applySubscriptions(client, added)
	}
}

func (s *HubSession) UnsubscribeTopics(topics []string) {
	s.mu.Lock()
	for _, t := range topics {
		delete(s.subs, t)
	}

	client := s.client
	connected := s.connected
	s.mu.Unlock()

	if client == nil || !connected {
		return
	}

	if token := client.Unsubscribe(topics...); token.WaitTimeout(time.Second) && token.Error() != nil {
		s.logger.Error().Err(token.Error()).Strs("topics", topics).Msg("Unsubscribe failed")
	}
}

func (s *HubSession) AddMessageHandler(fn Handler) func() {
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

func (s *HubSession) applySubscriptions(client mqtt.Client, topics map[string]byte) {
	if len(topics) == 0 {
		return
	}

	token := client.SubscribeMultiple(topics, func(_ mqtt.Client, msg mqtt.Message) {
		s.dispatch(msg.Topic(), msg.Payload())
	})

	go func() {
		<-token.Done()

		if err := token.Error(); err != nil {
			s.logger.Error().Err(err).Int("topics", len(topics)).Msg("Subscribe failed")
			return
		}

		s.logger.Debug().Int("topics", len(topics)).Msg("Subscriptions applied")
	}()
}

// dispatch fans one inbound message out to every registered handler. A
// handler panic is recovered so the remaining handlers still run.
func (s *HubSession) dispatch(topic string, payload []byte) {
	s.mu.Lock()
	handlers := make([]Handler, 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		s.invoke(h, topic, payload)
	}
}

func (s *HubSession) invoke(h Handler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("topic", topic).Interface("panic", r).
				Msg("Message handler panicked")
		}
	}()

	h(topic, payload)
}
