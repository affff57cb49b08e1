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

package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/rsemon/pkg/clock"
	"github.com/carverauto/rsemon/pkg/logger"
	"github.com/carverauto/rsemon/pkg/models"
)

var errStoreDown = errors.New("store down")

func newTestGate(t *testing.T) (*Gate, *MockDeviceStore, *clock.FakeClock) {
	t.Helper()

	ctrl := gomock.NewController(t)
	store := NewMockDeviceStore(ctrl)
	clk := clock.NewFake(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))

	cfg := models.RegistryConfig{CacheTTL: models.Duration(30 * time.Second)}
	gate := NewGate(store, cfg, clk, logger.NewTestLogger())

	return gate, store, clk
}

func TestGateCachesHits(t *testing.T) {
	gate, store, _ := newTestGate(t)

	record := &models.DeviceRecord{ID: "dev-1", Serial: "RSE-001"}
	store.EXPECT().GetBySerial(gomock.Any(), "RSE-001").Return(record, nil).Times(1)

	for i := 0; i < 5; i++ {
		got, err := gate.Lookup(context.Background(), "RSE-001")
		require.NoError(t, err)
		assert.Equal(t, record, got)
	}
}

func TestGateCachesMisses(t *testing.T) {
	gate, store, _ := newTestGate(t)

	store.EXPECT().GetBySerial(gomock.Any(), "RSE-404").Return(nil, nil).Times(1)

	for i := 0; i < 3; i++ {
		got, err := gate.Lookup(context.Background(), "RSE-404")
		require.NoError(t, err)
		assert.Nil(t, got)
	}
}

func TestGateTTLExpiryRefetches(t *testing.T) {
	gate, store, clk := newTestGate(t)

	record := &models.DeviceRecord{ID: "dev-1", Serial: "RSE-001"}
	store.EXPECT().GetBySerial(gomock.Any(), "RSE-001").Return(record, nil).Times(2)

	_, err := gate.Lookup(context.Background(), "RSE-001")
	require.NoError(t, err)

	clk.Advance(31 * time.Second)

	_, err = gate.Lookup(context.Background(), "RSE-001")
	require.NoError(t, err)
}

func TestGateErrorsAreNotCached(t *testing.T) {
	gate, store, _ := newTestGate(t)

	record := &models.DeviceRecord{ID: "dev-1", Serial: "RSE-001"}
	gomock.InOrder(
		store.EXPECT().GetBySerial(gomock.Any(), "RSE-001").Return(nil, errStoreDown),
		store.EXPECT().GetBySerial(gomock.Any(), "RSE-001").Return(record, nil),
	)

	_, err := gate.Lookup(context.Background(), "RSE-001")
	assert.ErrorIs(t, err, errStoreDown)

	got, err := gate.Lookup(context.Background(), "RSE-001")
	require.NoError(t, err)
	assert.Equal(t, record, got)
}

func TestGateIsRegisteredFailsClosed(t *testing.T) {
	gate, store, _ := newTestGate(t)

	store.EXPECT().GetBySerial(gomock.Any(), "RSE-001").Return(nil, errStoreDown)

	ok, err := gate.IsRegistered(context.Background(), "RSE-001")
	assert.False(t, ok)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestGateDeviceID(t *testing.T) {
	gate, store, _ := newTestGate(t)

	store.EXPECT().GetBySerial(gomock.Any(), "RSE-001").
		Return(&models.DeviceRecord{ID: "dev-1", Serial: "RSE-001"}, nil)
	store.EXPECT().GetBySerial(gomock.Any(), "RSE-404").Return(nil, nil)

	id, err := gate.DeviceID(context.Background(), "RSE-001")
	require.NoError(t, err)
	assert.Equal(t, "dev-1", id)

	id, err = gate.DeviceID(context.Background(), "RSE-404")
	require.NoError(t, err)
	assert.Equal(t, "unregistered_RSE-404", id)
}

func TestGateInvalidate(t *testing.T) {
	gate, store, _ := newTestGate(t)

	record := &models.DeviceRecord{ID: "dev-1", Serial: "RSE-001"}
	store.EXPECT().GetBySerial(gomock.Any(), "RSE-001").Return(record, nil).Times(2)
	store.EXPECT().GetBySerial(gomock.Any(), "RSE-002").Return(nil, nil).Times(1)

	_, err := gate.Lookup(context.Background(), "RSE-001")
	require.NoError(t, err)
	_, err = gate.Lookup(context.Background(), "RSE-002")
	require.NoError(t, err)

	// Only the invalidated serial refetches.
	gate.Invalidate("RSE-001")

	_, err = gate.Lookup(context.Background(), "RSE-001")
	require.NoError(t, err)
	_, err = gate.Lookup(context.Background(), "RSE-002")
	require.NoError(t, err)
}

func TestGateInvalidateAll(t *testing.T) {
	gate, store, _ := newTestGate(t)

	store.EXPECT().GetBySerial(gomock.Any(), "RSE-001").Return(nil, nil).Times(2)

	_, err := gate.Lookup(context.Background(), "RSE-001")
	require.NoError(t, err)

	gate.InvalidateAll()

	_, err = gate.Lookup(context.Background(), "RSE-001")
	require.NoError(t, err)
}
