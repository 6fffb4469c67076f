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

import "encoding/json"

// PollRequest is the body a feeder sends once per interval. Signatures are
// computed over the exact received byte sequence of this body, so devices
// must send it with deterministic key ordering and the server never
// re-serializes it before verification.
type PollRequest struct {
	DeviceID string         `json:"deviceId"`
	TS       int64          `json:"ts"`
	Status   *DeviceStatus  `json:"status,omitempty"`
	Log      []DeviceLogRow `json:"log,omitempty"`
	Ack      []string       `json:"ack,omitempty"`
}

// DeviceStatus is the device-reported health snapshot. Last write wins.
type DeviceStatus struct {
	FW         string `json:"fw,omitempty"`
	UptimeSec  int64  `json:"uptimeSec,omitempty"`
	RSSI       int    `json:"rssi,omitempty"`
	Error      string `json:"error,omitempty"`
	LastFeedTS int64  `json:"lastFeedTs,omitempty"`
}

// DeviceLogRow is one device-reported log line inside a poll.
type DeviceLogRow struct {
	TS   int64           `json:"ts"`
	Type string          `json:"type"`
	Msg  string          `json:"msg"`
	Meta json.RawMessage `json:"meta,omitempty"`
}

// PollResponse is the authoritative state handed back to the device. The
// config section is a full snapshot, not a delta; devices re-apply it
// idempotently on every poll.
type PollResponse struct {
	ServerTime  int64         `json:"serverTime"`
	IntervalSec int           `json:"intervalSec"`
	Commands    []PollCommand `json:"commands"`
	Config      PollConfig    `json:"config"`
}

// PollCommand is the wire form of a claimed command.
type PollCommand struct {
	ID          string          `json:"id"`
	CommandType CommandType     `json:"commandType"`
	Payload     json.RawMessage `json:"payloadJson"`
}

// PollConfig is the full configuration snapshot for a device.
type PollConfig struct {
	ActiveProfile string           `json:"activeProfile,omitempty"`
	Profiles      []ProfileConfig  `json:"profiles"`
	Schedule      []ScheduleConfig `json:"schedule"`
}

// ProfileConfig is one feeding profile in the snapshot.
type ProfileConfig struct {
	Name             string `json:"name"`
	DefaultPortionMs int    `json:"defaultPortionMs"`
}

// ScheduleConfig is one scheduled feeding slot in the snapshot.
type ScheduleConfig struct {
	ProfileName string `json:"profileName"`
	HH          int    `json:"hh"`
	MM          int    `json:"mm"`
	PortionMs   int    `json:"portionMs"`
}
