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
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carverauto/rsemon/pkg/transport"
)

// fakeSession is an in-memory transport.Session: it records publishes and
// subscriptions and lets tests inject inbound messages.
type fakeSession struct {
	mu        sync.Mutex
	publishOK bool
	handlers  map[int]transport.Handler
	nextID    int
	published []publishedMsg
	subbed    []string
	unsubbed  []string

	// onPublish, when set, runs outside the lock after each publish.
	onPublish func(topic string, payload []byte)
}

type publishedMsg struct {
	topic   string
	payload []byte
}

func newFakeSession() *fakeSession {
	return &fakeSession{publishOK: true, handlers: make(map[int]transport.Handler)}
}

func (f *fakeSession) Connect(context.Context) error { return nil }
func (f *fakeSession) Disconnect()                   {}
func (f *fakeSession) Connected() bool               { return true }

func (f *fakeSession) Publish(topic string, payload []byte, _ transport.PublishOptions) bool {
	f.mu.Lock()
	ok := f.publishOK
	if ok {
		f.published = append(f.published, publishedMsg{topic: topic, payload: payload})
	}
	hook := f.onPublish
	f.mu.Unlock()

	if ok && hook != nil {
		hook(topic, payload)
	}

	return ok
}

func (f *fakeSession) SubscribeTopics(topics []string, _ transport.SubscribeOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.subbed = append(f.subbed, topics...)
}

func (f *fakeSession) UnsubscribeTopics(topics []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.unsubbed = append(f.unsubbed, topics...)
}

func (f *fakeSession) AddMessageHandler(fn transport.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.handlers[id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()

		delete(f.handlers, id)
	}
}

// deliver feeds an inbound message to every registered handler.
func (f *fakeSession) deliver(topic string, payload []byte) {
	f.mu.Lock()
	handlers := make([]transport.Handler, 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(topic, payload)
	}
}

func (f *fakeSession) setOnPublish(hook func(topic string, payload []byte)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.onPublish = hook
}

func (f *fakeSession) handlerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.handlers)
}

func (f *fakeSession) publishCount(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0

	for _, p := range f.published {
		if p.topic == topic {
			n++
		}
	}

	return n
}

func (f *fakeSession) unsubscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range f.unsubbed {
		if t == topic {
			return true
		}
	}

	return false
}

// waitFor polls cond, failing the test if it never holds.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}

		time.Sleep(2 * time.Millisecond)
	}

	require.Fail(t, "condition not met in time")
}
