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

import "time"

// Profile is a named feeding configuration owned by one device.
type Profile struct {
	ID               string    `json:"id"`
	DeviceID         string    `json:"device_id"`
	Name             string    `json:"name"`
	DefaultPortionMs int       `json:"default_portion_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// ScheduleSlot is one timed feeding event attached to a profile.
type ScheduleSlot struct {
	ID          string `json:"id"`
	ProfileID   string `json:"profile_id"`
	ProfileName string `json:"profile_name,omitempty"`
	HH          int    `json:"hh"`
	MM          int    `json:"mm"`
	PortionMs   int    `json:"portion_ms"`
}
