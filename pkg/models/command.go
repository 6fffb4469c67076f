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

// CommandType enumerates the instructions a feeder understands.
type CommandType string

const (
	CommandFeedNow           CommandType = "FEED_NOW"
	CommandSetProfile        CommandType = "SET_PROFILE"
	CommandSetSchedule       CommandType = "SET_SCHEDULE"
	CommandSetDefaultPortion CommandType = "SET_DEFAULT_PORTION"
	CommandReboot            CommandType = "REBOOT"
	CommandPing              CommandType = "PING"
)

// KnownCommandType reports whether t is a recognized command type.
func KnownCommandType(t CommandType) bool {
	switch t {
	case CommandFeedNow, CommandSetProfile, CommandSetSchedule,
		CommandSetDefaultPortion, CommandReboot, CommandPing:
		return true
	default:
		return false
	}
}

// CommandStatus is the per-command delivery state.
type CommandStatus string

const (
	CommandPending CommandStatus = "PENDING"
	CommandSent    CommandStatus = "SENT"
	CommandAcked   CommandStatus = "ACKED"
	CommandFailed  CommandStatus = "FAILED"
)

// Command is one queued server-to-device instruction. It is delivered on the
// device's next poll and re-delivered until the device acknowledges it.
type Command struct {
	ID        string          `json:"id"`
	DeviceID  string          `json:"device_id"`
	Type      CommandType     `json:"command_type"`
	Payload   json.RawMessage `json:"payload_json"`
	Status    CommandStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
	AckedAt   *time.Time      `json:"acked_at,omitempty"`
}
