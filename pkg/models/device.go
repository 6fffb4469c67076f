/*
 * Copyright 2026 Carver Automation Corporation.
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

package models

import (
	"encoding/json"
	"time"
)

// Device is a feeder unit known to the sync core. The secret is stored only
// as an AES-GCM envelope plus a SHA-256 fingerprint of the plaintext; the two
// fields are always written together by the rotate operation.
type Device struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"owner_id"`
	Name            string          `json:"name"`
	SecretHash      string          `json:"-"`
	EncryptedSecret []byte          `json:"-"`
	LastSeenAt      *time.Time      `json:"last_seen_at,omitempty"`
	StatusJSON      json.RawMessage `json:"status,omitempty"`
	FirmwareVersion string          `json:"firmware_version,omitempty"`
	ActiveProfileID string          `json:"active_profile_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// DeviceSummary is the device list projection served to operators.
type DeviceSummary struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Online            bool       `json:"online"`
	LastSeenAt        *time.Time `json:"last_seen_at,omitempty"`
	RSSI              *int       `json:"rssi,omitempty"`
	FirmwareVersion   string     `json:"firmware_version,omitempty"`
	ActiveProfileName string     `json:"active_profile_name,omitempty"`
}
