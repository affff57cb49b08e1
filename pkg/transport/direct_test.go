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
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/rsemon/pkg/clock"
	"github.com/carverauto/rsemon/pkg/logger"
	"github.com/carverauto/rsemon/pkg/models"
)

type poolFixture struct {
	pool *DirectPool
	clk  *clock.FakeClock

	mu       sync.Mutex
	clients  []*fakeClient
	onCreate func(c *fakeClient)
}

func newPoolFixture(t *testing.T) *poolFixture {
	t.Helper()

	cfg := models.DirectConfig{
		Port:           1883,
		ConnectTimeout: models.Duration(5 * time.Second),
		IdleTimeout:    models.Duration(60 * time.Second),
		GCInterval:     models.Duration(10 * time.Second),
	}

	f := &poolFixture{clk: clock.NewFake(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))}
	f.pool = NewDirectPool(cfg, f.clk, logger.NewTestLogger())

	f.pool.newClient = func(opts *mqtt.ClientOptions) mqtt.Client {
		f.mu.Lock()
		defer f.mu.Unlock()

		c := newFakeClient(opts)
		if f.onCreate != nil {
			f.onCreate(c)
		}

		f.clients = append(f.clients, c)

		return c
	}

	t.Cleanup(f.pool.Shutdown)

	return f
}

func (f *poolFixture) client(i int) *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.clients[i]
}

func (f *poolFixture) clientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.clients)
}

func (f *poolFixture) disconnects(i int) int {
	c := f.client(i)

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.disconnects
}

func TestPoolConnectsLazilyAndReuses(t *testing.T) {
	f := newPoolFixture(t)

	first, err := f.pool.Session(context.Background(), "10.0.0.5")
	require.NoError(t, err)
	require.Equal(t, 1, f.clientCount())

	// The session dials the device directly on the configured port.
	servers := f.client(0).opts.Servers
	require.Len(t, servers, 1)
	assert.Equal(t, "tcp://10.0.0.5:1883", servers[0].String())

	again, err := f.pool.Session(context.Background(), "10.0.0.5")
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, f.clientCount())

	// A different device gets its own session.
	other, err := f.pool.Session(context.Background(), "10.0.0.6")
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, f.clientCount())
}

func TestPoolReplacesDeadSessions(t *testing.T) {
	f := newPoolFixture(t)

	first, err := f.pool.Session(context.Background(), "10.0.0.5")
	require.NoError(t, err)

	f.client(0).dropConnection(errors.New("device rebooted"))
	require.False(t, first.Connected())

	replacement, err := f.pool.Session(context.Background(), "10.0.0.5")
	require.NoError(t, err)
	assert.NotSame(t, first, replacement)
	assert.Equal(t, 2, f.clientCount())
}

func TestPoolSurfacesConnectFailure(t *testing.T) {
	f := newPoolFixture(t)
	f.onCreate = func(c *fakeClient) { c.connectErr = errors.New("no route to host") }

	_, err := f.pool.Session(context.Background(), "10.0.0.99")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "10.0.0.99")
}

func TestPoolEvictsIdleSessions(t *testing.T) {
	f := newPoolFixture(t)

	_, err := f.pool.Session(context.Background(), "10.0.0.5")
	require.NoError(t, err)

	waitFor(t, func() bool {
		f.clk.Advance(10 * time.Second)
		return f.disconnects(0) == 1
	})

	// The next request connects a fresh session.
	_, err = f.pool.Session(context.Background(), "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, 2, f.clientCount())
}

func TestPoolPublishKeepsSessionAlive(t *testing.T) {
	f := newPoolFixture(t)

	sess, err := f.pool.Session(context.Background(), "10.0.0.5")
	require.NoError(t, err)

	// Five sweeps pass, but a publish before the idle cutoff resets it.
	for i := 0; i < 5; i++ {
		f.clk.Advance(10 * time.Second)
		time.Sleep(5 * time.Millisecond)
	}

	require.True(t, sess.Publish("fac/dev/cmd", []byte(`{}`), PublishOptions{}))

	for i := 0; i < 5; i++ {
		f.clk.Advance(10 * time.Second)
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, 0, f.disconnects(0))

	// Left alone past the timeout, it finally goes.
	waitFor(t, func() bool {
		f.clk.Advance(10 * time.Second)
		return f.disconnects(0) == 1
	})
}

func TestPoolShutdown(t *testing.T) {
	f := newPoolFixture(t)

	_, err := f.pool.Session(context.Background(), "10.0.0.5")
	require.NoError(t, err)
	_, err = f.pool.Session(context.Background(), "10.0.0.6")
	require.NoError(t, err)

	f.pool.Shutdown()

	assert.Equal(t, 1, f.disconnects(0))
	assert.Equal(t, 1, f.disconnects(1))

	_, err = f.pool.Session(context.Background(), "10.0.0.7")
	assert.ErrorIs(t, err, errPoolClosed)
}

func TestDirectSessionDispatch(t *testing.T) {
	f := newPoolFixture(t)

	sess, err := f.pool.Session(context.Background(), "10.0.0.5")
	require.NoError(t, err)

	sess.SubscribeTopics([]string{"fac/dev/resp"}, SubscribeOptions{QoS: 1})
	assert.True(t, f.client(0).isSubscribed("fac/dev/resp"))

	var mu sync.Mutex

	var got []string

	remove := sess.AddMessageHandler(func(topic string, payload []byte) {
		mu.Lock()
		defer mu.Unlock()

		got = append(got, topic+":"+string(payload))
	})

	f.client(0).receive("fac/dev/resp", []byte(`{"ok":true}`))

	mu.Lock()
	assert.Equal(t, []string{`fac/dev/resp:{"ok":true}`}, got)
	mu.Unlock()

	remove()
	f.client(0).receive("fac/dev/resp", []byte(`{}`))

	mu.Lock()
	assert.Len(t, got, 1)
	mu.Unlock()

	sess.UnsubscribeTopics([]string{"fac/dev/resp"})
	assert.False(t, f.client(0).isSubscribed("fac/dev/resp"))
}
