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

// FeedLog is one append-only audit entry, written either by a device during
// a poll or by the server on management events (profile change, schedule
// update, secret rotation).
type FeedLog struct {
	ID       string          `json:"id"`
	DeviceID string          `json:"device_id"`
	TS       time.Time       `json:"ts"`
	Type     string          `json:"type"`
	Message  string          `json:"message"`
	Meta     json.RawMessage `json:"meta,omitempty"`
}
