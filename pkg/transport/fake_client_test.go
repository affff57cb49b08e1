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
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// doneToken is an already-resolved paho token.
type doneToken struct {
	err  error
	done chan struct{}
}

func newDoneToken(err error) *doneToken {
	ch := make(chan struct{})
	close(ch)

	return &doneToken{err: err, done: ch}
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

// fakeMessage is a minimal inbound mqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// fakeClient stands in for the paho client. Connect resolves immediately and
// fires the configured OnConnect handler, mirroring the real client's
// behavior closely enough for session-level tests.
type fakeClient struct {
	mu           sync.Mutex
	opts         *mqtt.ClientOptions
	connected    bool
	connectErr   error
	published    []publishedMsg
	subscribed   map[string]byte
	unsubscribed []string
	disconnects  int
}

type publishedMsg struct {
	topic   string
	payload []byte
	qos     byte
}

func newFakeClient(opts *mqtt.ClientOptions) *fakeClient {
	return &fakeClient{opts: opts, subscribed: make(map[string]byte)}
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

func (c *fakeClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	if c.connectErr != nil {
		err := c.connectErr
		c.mu.Unlock()

		return newDoneToken(err)
	}

	c.connected = true
	onConnect := c.opts.OnConnect
	c.mu.Unlock()

	if onConnect != nil {
		onConnect(c)
	}

	return newDoneToken(nil)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	c.disconnects++
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	body, _ := payload.([]byte)
	c.published = append(c.published, publishedMsg{topic: topic, payload: body, qos: qos})

	return newDoneToken(nil)
}

func (c *fakeClient) Subscribe(topic string, qos byte, _ mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscribed[topic] = qos

	return newDoneToken(nil)
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, _ mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	for t, q := range filters {
		c.subscribed[t] = q
	}

	return newDoneToken(nil)
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range topics {
		delete(c.subscribed, t)
		c.unsubscribed = append(c.unsubscribed, t)
	}

	return newDoneToken(nil)
}

func (c *fakeClient) AddRoute(string, mqtt.MessageHandler) {}

func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// receive injects an inbound message through the default publish handler, the
// path real messages take.
func (c *fakeClient) receive(topic string, payload []byte) {
	c.mu.Lock()
	handler := c.opts.DefaultPublishHandler
	c.mu.Unlock()

	if handler != nil {
		handler(c, &fakeMessage{topic: topic, payload: payload})
	}
}

// reconnect simulates a broker reconnect: paho fires OnConnect again.
func (c *fakeClient) reconnect() {
	c.mu.Lock()
	c.connected = true
	onConnect := c.opts.OnConnect
	c.mu.Unlock()

	if onConnect != nil {
		onConnect(c)
	}
}

// dropConnection simulates a lost connection without a clean disconnect. The
// broker-side subscription state is dropped with it so tests can observe the
// session re-applying its set on reconnect.
func (c *fakeClient) dropConnection(err error) {
	c.mu.Lock()
	c.connected = false
	c.subscribed = make(map[string]byte)
	onLost := c.opts.OnConnectionLost
	c.mu.Unlock()

	if onLost != nil {
		onLost(c, err)
	}
}

func (c *fakeClient) publishedTo(topic string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0

	for _, p := range c.published {
		if p.topic == topic {
			n++
		}
	}

	return n
}

func (c *fakeClient) isSubscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.subscribed[topic]

	return ok
}
