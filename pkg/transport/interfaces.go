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

// Package transport maintains MQTT sessions to the field-management hub and,
// on demand, directly to individual devices.
package transport

import "context"

//go:generate mockgen -destination=mock_transport.go -package=transport github.com/carverauto/rsemon/pkg/transport Session

// Handler receives every inbound message on a session. Handlers must not
// block; a panicking handler is recovered and does not stop delivery to the
// others.
type Handler func(topic string, payload []byte)

// PublishOptions mirror the MQTT publish flags the pipeline cares about.
type PublishOptions struct {
	QoS    byte
	Retain bool
}

// SubscribeOptions apply to declarative topic subscriptions.
type SubscribeOptions struct {
	QoS byte
}

// Session is a uniform send/receive surface over one broker connection.
//
// Publish reports whether the send was attempted, never whether it was
// delivered; callers that need delivery confirmation layer an application
// acknowledgement on top (see pkg/rpc).
type Session interface {
	// Connect is idempotent. It blocks until the first successful
	// connection or ctx expiry; reconnection afterwards is automatic.
	Connect(ctx context.Context) error
	// Disconnect tears the session down and clears the handler and
	// subscription registries. Safe to call when not connected.
	Disconnect()
	Connected() bool
	Publish(topic string, payload []byte, opts PublishOptions) bool
	// SubscribeTopics is declarative: topics added while disconnected are
	// applied on the next successful connect.
	SubscribeTopics(topics []string, opts SubscribeOptions)
	UnsubscribeTopics(topics []string)
	// AddMessageHandler registers fn for every inbound message and
	// returns its removal function.
	AddMessageHandler(fn Handler) func()
}
