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

package ota

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{name: "equal", a: "1.4.2", b: "1.4.2", want: 0},
		{name: "patch newer", a: "1.4.3", b: "1.4.2", want: 1},
		{name: "patch older", a: "1.4.1", b: "1.4.2", want: -1},
		{name: "major wins over minor", a: "2.0.0", b: "1.9.9", want: 1},
		{name: "missing segment reads as zero", a: "1.4", b: "1.4.0", want: 0},
		{name: "longer is newer", a: "1.4.0.1", b: "1.4", want: 1},
		{name: "double digit segments", a: "1.10.0", b: "1.9.0", want: 1},
		{name: "non-numeric reads as zero", a: "abc", b: "0", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareVersions(tt.a, tt.b))
		})
	}
}

func TestFindAvailableUpdates(t *testing.T) {
	device := &VersionInfo{Entries: []VersionEntry{
		{SWID: "v2x-stack", Version: "1.4.2", MD5OK: true},
		{SWID: "gnss-daemon", Version: "2.0.0", MD5OK: true},
		{SWID: "tamper-svc", Version: "3.1.0", MD5OK: true},
		{SWID: "vendor-blob", Version: "0.9", MD5OK: true},
	}}

	index := &LocalIndex{Services: []IndexService{
		{SWID: "v2x-stack", Version: "1.5.0", SWPath: "/pkg/v2x-stack-1.5.0.tar", SWMD5: "aabb"},
		{SWID: "gnss-daemon", Version: "2.0.0"},
		{SWID: "tamper-svc", Version: "2.9.9"},
	}}

	updates := FindAvailableUpdates(device, index)

	// Only the strictly-newer catalog entry qualifies: same version and
	// downgrades are skipped, as are components the catalog does not carry.
	require.Len(t, updates, 1)
	assert.Equal(t, AvailableUpdate{
		SWID:             "v2x-stack",
		CurrentVersion:   "1.4.2",
		AvailableVersion: "1.5.0",
		SWPath:           "/pkg/v2x-stack-1.5.0.tar",
		SWMD5:            "aabb",
	}, updates[0])
}

func TestFindAvailableUpdatesNilInputs(t *testing.T) {
	index := &LocalIndex{Services: []IndexService{{SWID: "x", Version: "1.0"}}}
	device := &VersionInfo{Entries: []VersionEntry{{SWID: "x", Version: "0.9"}}}

	assert.Nil(t, FindAvailableUpdates(nil, index))
	assert.Nil(t, FindAvailableUpdates(device, nil))
}

func TestUpdateResponseFailed(t *testing.T) {
	resp := &UpdateResponse{Entries: []UpdateResult{
		{SWID: "v2x-stack", Version: "1.5.0", Code: "200"},
		{SWID: "gnss-daemon", Version: "2.1.0", Code: "507"},
		{SWID: "tamper-svc", Version: "3.2.0", Code: "400"},
	}}

	failed := resp.Failed()

	require.Len(t, failed, 2)
	assert.Equal(t, "gnss-daemon", failed[0].SWID)
	assert.Equal(t, "tamper-svc", failed[1].SWID)

	assert.Empty(t, (&UpdateResponse{Entries: []UpdateResult{{Code: "200"}}}).Failed())
}

func TestNextTransactionIDStaysInDeviceRange(t *testing.T) {
	prev := nextTransactionID()

	for i := 0; i < 100; i++ {
		id := nextTransactionID()

		assert.GreaterOrEqual(t, id, 0)
		assert.Less(t, id, 65536)

		if prev != 65535 {
			assert.Equal(t, prev+1, id)
		}

		prev = id
	}
}
