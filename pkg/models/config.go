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

// CoreServiceConfig is the top-level configuration for the feedsync core.
type CoreServiceConfig struct {
	ListenAddr string          `json:"listen_addr"`
	Database   *DatabaseConfig `json:"database"`
	DeviceAuth DeviceAuthConfig `json:"device_auth"`
	Logging    *LoggingConfig  `json:"logging,omitempty"`

	// SecretKey is the base64 master key for device secret envelopes.
	// Provided via FEEDSYNC_SECRET_KEY; never set in the config file.
	SecretKey string `json:"-"`

	// AdminAPIKey guards the management routes. Provided via
	// FEEDSYNC_ADMIN_API_KEY.
	AdminAPIKey string `json:"-"`
}

// LoggingConfig mirrors logger.Config so config files stay self-contained.
type LoggingConfig struct {
	Level      string `json:"level"`
	Debug      bool   `json:"debug"`
	Output     string `json:"output"`
	TimeFormat string `json:"time_format"`
}

// DatabaseConfig describes the PostgreSQL store.
type DatabaseConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	Database        string `json:"database"`
	Username        string `json:"username"`
	Password        string `json:"-"`
	SSLMode         string `json:"ssl_mode,omitempty"`
	ApplicationName string `json:"application_name,omitempty"`
	MaxConnections  int32  `json:"max_connections,omitempty"`
	MinConnections  int32  `json:"min_connections,omitempty"`
}

// DeviceAuthConfig controls the device synchronization protocol.
type DeviceAuthConfig struct {
	SignatureEnabled bool `json:"signature_enabled"`
	PollIntervalSec  int  `json:"poll_interval_sec"`
	NonceWindowSec   int64 `json:"nonce_window_sec"`
	MaxPollPerMinute int  `json:"max_poll_per_minute"`
}

// Normalize applies defaults for unset protocol settings.
func (c *DeviceAuthConfig) Normalize() {
	if c.PollIntervalSec <= 0 {
		c.PollIntervalSec = 60
	}

	if c.NonceWindowSec <= 0 {
		c.NonceWindowSec = 300
	}

	if c.MaxPollPerMinute <= 0 {
		c.MaxPollPerMinute = 6
	}
}
