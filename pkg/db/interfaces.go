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

package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/carverauto/feedsync/pkg/models"
)

// Service is the storage contract consumed by the sync core. It is an
// interface so orchestrator and queue logic can be tested against an
// in-memory fake.
type Service interface {
	// Devices.
	CreateDevice(ctx context.Context, device *models.Device) error
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)
	ListDevices(ctx context.Context, ownerID string) ([]models.DeviceSummary, error)
	UpdateDeviceStatus(ctx context.Context, deviceID string, seenAt time.Time, statusJSON json.RawMessage, firmware string) error
	RotateDeviceSecret(ctx context.Context, deviceID, secretHash string, encryptedSecret []byte) error
	SetActiveProfile(ctx context.Context, deviceID, profileID string) error

	// Nonce replay guard.
	RegisterNonce(ctx context.Context, deviceID, nonce string, tsEpoch int64) (bool, error)
	PurgeNoncesBefore(ctx context.Context, minEpochExclusive int64) error

	// Command queue.
	InsertCommand(ctx context.Context, cmd *models.Command) error
	ClaimDueCommands(ctx context.Context, deviceID string, limit int) ([]models.Command, error)
	AckCommands(ctx context.Context, deviceID string, commandIDs []string) error
	FailCommand(ctx context.Context, deviceID, commandID string) error
	ListCommands(ctx context.Context, deviceID string, limit int) ([]models.Command, error)

	// Feed logs.
	InsertFeedLogs(ctx context.Context, deviceID string, entries []models.FeedLog) error
	InsertFeedLog(ctx context.Context, deviceID string, entry models.FeedLog) error
	ListFeedLogs(ctx context.Context, deviceID, typeFilter string, limit, offset int) ([]models.FeedLog, error)

	// Profile/schedule read model.
	UpsertProfile(ctx context.Context, profile *models.Profile) error
	GetProfileByName(ctx context.Context, deviceID, name string) (*models.Profile, error)
	GetProfile(ctx context.Context, profileID string) (*models.Profile, error)
	ReplaceSchedule(ctx context.Context, profileID string, slots []models.ScheduleSlot) error
	GetConfigSnapshot(ctx context.Context, deviceID string) (*models.PollConfig, error)

	Close()
}
