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
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/carverauto/rsemon/pkg/rpc"
)

// VersionInfo is the device's installed software inventory.
type VersionInfo struct {
	Entries []VersionEntry `json:"entries"`
}

// VersionEntry describes one installed component.
type VersionEntry struct {
	SWID    string `json:"sw_id"`
	Version string `json:"version"`
	MD5OK   bool   `json:"md5_ok"`
}

// LocalIndex is the operator-side package catalog.
type LocalIndex struct {
	Services []IndexService `json:"services"`
}

// IndexService is one installable package in the catalog.
type IndexService struct {
	SWID    string `json:"sw_id"`
	Version string `json:"version"`
	SWPath  string `json:"sw_path"`
	SWMD5   string `json:"sw_md5"`
}

// AvailableUpdate pairs an installed component with a newer catalog version.
type AvailableUpdate struct {
	SWID             string
	CurrentVersion   string
	AvailableVersion string
	SWPath           string
	SWMD5            string
}

// UpdateRequest carries package payloads to the device.
type UpdateRequest struct {
	TransactionID int           `json:"transaction_id"`
	Entries       []UpdateEntry `json:"entries"`
}

// UpdateEntry is one package to install.
type UpdateEntry struct {
	SWID       string `json:"sw_id"`
	Version    string `json:"version"`
	SWMD5      string `json:"sw_md5"`
	DataBase64 string `json:"data_base64"`
}

// UpdateResponse is the device's per-entry install verdict.
type UpdateResponse struct {
	TransactionID int            `json:"transaction_id,omitempty"`
	Entries       []UpdateResult `json:"entries"`
}

// UpdateResult reports one entry's outcome; "200" is success.
type UpdateResult struct {
	SWID    string `json:"sw_id"`
	Version string `json:"version"`
	Code    string `json:"code"`
}

// Failed returns the entries the device rejected.
func (r *UpdateResponse) Failed() []UpdateResult {
	var failed []UpdateResult

	for _, e := range r.Entries {
		if e.Code != "200" {
			failed = append(failed, e)
		}
	}

	return failed
}

// QueryVersions asks the device for its installed software inventory.
func (m *Manager) QueryVersions(ctx context.Context, addr string) (*VersionInfo, error) {
	body, err := m.call(ctx, addr, TopicVersionReq, TopicVersionRes, m.envelope(), rpc.DefaultTimeout)
	if err != nil {
		return nil, fmt.Errorf("version query failed: %w", err)
	}

	var info VersionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode version response: %w", err)
	}

	return &info, nil
}

// UpdateSoftware pushes packages to the device and returns its per-entry
// verdict. Callers check Failed() on the response.
func (m *Manager) UpdateSoftware(ctx context.Context, addr string, req UpdateRequest) (*UpdateResponse, error) {
	if req.TransactionID == 0 {
		req.TransactionID = nextTransactionID()
	}

	body, err := m.call(ctx, addr, TopicUpdateReq, TopicUpdateRes, req, rpc.CertUploadTimeout)
	if err != nil {
		return nil, fmt.Errorf("software update failed: %w", err)
	}

	var resp UpdateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode update response: %w", err)
	}

	return &resp, nil
}

// FindAvailableUpdates diffs a device inventory against the catalog and
// returns the components the catalog can upgrade.
func FindAvailableUpdates(device *VersionInfo, index *LocalIndex) []AvailableUpdate {
	if device == nil || index == nil {
		return nil
	}

	byID := make(map[string]IndexService, len(index.Services))
	for _, svc := range index.Services {
		byID[svc.SWID] = svc
	}

	var updates []AvailableUpdate

	for _, entry := range device.Entries {
		svc, ok := byID[entry.SWID]
		if !ok {
			continue
		}

		if CompareVersions(svc.Version, entry.Version) > 0 {
			updates = append(updates, AvailableUpdate{
				SWID:             entry.SWID,
				CurrentVersion:   entry.Version,
				AvailableVersion: svc.Version,
				SWPath:           svc.SWPath,
				SWMD5:            svc.SWMD5,
			})
		}
	}

	return updates
}

// CompareVersions orders dotted numeric versions: -1, 0, or 1 as a is older
// than, equal to, or newer than b. Missing segments read as zero.
func CompareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}

	for i := 0; i < n; i++ {
		av, bv := 0, 0

		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}

		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}

		if av > bv {
			return 1
		}

		if av < bv {
			return -1
		}
	}

	return 0
}
