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

// Package dbtest provides an in-memory db.Service for tests.
package dbtest

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/feedsync/pkg/db"
	"github.com/carverauto/feedsync/pkg/models"
)

// MemStore is an in-memory db.Service for orchestrator tests. It mirrors
// the store's observable contracts: insert-if-absent nonces, claim marks
// SENT, ack only from PENDING/SENT, and newest-first listings.
type MemStore struct {
	mu        sync.Mutex
	devices   map[string]*models.Device
	profiles  map[string]*models.Profile
	schedules map[string][]models.ScheduleSlot
	commands  []*models.Command
	logs      []models.FeedLog
	nonces    map[string]struct{}
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		devices:   make(map[string]*models.Device),
		profiles:  make(map[string]*models.Profile),
		schedules: make(map[string][]models.ScheduleSlot),
		nonces:    make(map[string]struct{}),
	}
}

func (f *MemStore) CreateDevice(_ context.Context, device *models.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.devices[device.ID]; ok {
		return db.ErrDeviceExists
	}

	cp := *device
	cp.CreatedAt = time.Now().UTC()
	f.devices[device.ID] = &cp

	return nil
}

func (f *MemStore) GetDevice(_ context.Context, deviceID string) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	device, ok := f.devices[deviceID]
	if !ok {
		return nil, db.ErrDeviceNotFound
	}

	cp := *device

	return &cp, nil
}

func (f *MemStore) ListDevices(_ context.Context, ownerID string) ([]models.DeviceSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.DeviceSummary

	for _, device := range f.devices {
		if ownerID != "" && device.OwnerID != ownerID {
			continue
		}

		out = append(out, models.DeviceSummary{
			ID:         device.ID,
			Name:       device.Name,
			LastSeenAt: device.LastSeenAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (f *MemStore) UpdateDeviceStatus(_ context.Context, deviceID string, seenAt time.Time, statusJSON json.RawMessage, firmware string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	device, ok := f.devices[deviceID]
	if !ok {
		return db.ErrDeviceNotFound
	}

	device.LastSeenAt = &seenAt

	if statusJSON != nil {
		device.StatusJSON = statusJSON
	}

	if firmware != "" {
		device.FirmwareVersion = firmware
	}

	return nil
}

func (f *MemStore) RotateDeviceSecret(_ context.Context, deviceID, secretHash string, encryptedSecret []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	device, ok := f.devices[deviceID]
	if !ok {
		return db.ErrDeviceNotFound
	}

	device.SecretHash = secretHash
	device.EncryptedSecret = encryptedSecret

	return nil
}

func (f *MemStore) SetActiveProfile(_ context.Context, deviceID, profileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	device, ok := f.devices[deviceID]
	if !ok {
		return db.ErrDeviceNotFound
	}

	device.ActiveProfileID = profileID

	return nil
}

func (f *MemStore) RegisterNonce(_ context.Context, deviceID, nonce string, _ int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := deviceID + "\x00" + nonce
	if _, ok := f.nonces[key]; ok {
		return false, nil
	}

	f.nonces[key] = struct{}{}

	return true, nil
}

func (f *MemStore) PurgeNoncesBefore(_ context.Context, _ int64) error { return nil }

func (f *MemStore) InsertCommand(_ context.Context, cmd *models.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cmd.ID = uuid.NewString()
	cmd.Status = models.CommandPending
	cmd.CreatedAt = time.Now().UTC()

	cp := *cmd
	f.commands = append(f.commands, &cp)

	return nil
}

func (f *MemStore) ClaimDueCommands(_ context.Context, deviceID string, limit int) ([]models.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Command

	for _, cmd := range f.commands {
		if len(out) >= limit {
			break
		}

		if cmd.DeviceID != deviceID {
			continue
		}

		if cmd.Status != models.CommandPending && cmd.Status != models.CommandSent {
			continue
		}

		cmd.Status = models.CommandSent
		out = append(out, *cmd)
	}

	return out, nil
}

func (f *MemStore) AckCommands(_ context.Context, deviceID string, commandIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	wanted := make(map[string]struct{}, len(commandIDs))
	for _, id := range commandIDs {
		wanted[id] = struct{}{}
	}

	for _, cmd := range f.commands {
		if cmd.DeviceID != deviceID {
			continue
		}

		if _, ok := wanted[cmd.ID]; !ok {
			continue
		}

		if cmd.Status == models.CommandPending || cmd.Status == models.CommandSent {
			cmd.Status = models.CommandAcked
		}
	}

	return nil
}

func (f *MemStore) FailCommand(_ context.Context, deviceID, commandID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := uuid.Parse(commandID); err != nil {
		return db.ErrCommandIDInvalid
	}

	for _, cmd := range f.commands {
		if cmd.DeviceID != deviceID || cmd.ID != commandID {
			continue
		}

		if cmd.Status == models.CommandPending || cmd.Status == models.CommandSent {
			cmd.Status = models.CommandFailed

			return nil
		}
	}

	return db.ErrCommandNotFound
}

func (f *MemStore) ListCommands(_ context.Context, deviceID string, limit int) ([]models.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Command

	for i := len(f.commands) - 1; i >= 0 && len(out) < limit; i-- {
		if f.commands[i].DeviceID == deviceID {
			out = append(out, *f.commands[i])
		}
	}

	return out, nil
}

func (f *MemStore) InsertFeedLogs(_ context.Context, deviceID string, entries []models.FeedLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, entry := range entries {
		entry.ID = uuid.NewString()
		entry.DeviceID = deviceID
		f.logs = append(f.logs, entry)
	}

	return nil
}

func (f *MemStore) InsertFeedLog(ctx context.Context, deviceID string, entry models.FeedLog) error {
	return f.InsertFeedLogs(ctx, deviceID, []models.FeedLog{entry})
}

func (f *MemStore) ListFeedLogs(_ context.Context, deviceID, typeFilter string, limit, offset int) ([]models.FeedLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []models.FeedLog

	for i := len(f.logs) - 1; i >= 0; i-- {
		entry := f.logs[i]
		if entry.DeviceID != deviceID {
			continue
		}

		if typeFilter != "" && !strings.EqualFold(entry.Type, typeFilter) {
			continue
		}

		matched = append(matched, entry)
	}

	if offset >= len(matched) {
		return nil, nil
	}

	matched = matched[offset:]

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

func (f *MemStore) UpsertProfile(_ context.Context, profile *models.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.profiles {
		if existing.DeviceID == profile.DeviceID && existing.Name == profile.Name {
			existing.DefaultPortionMs = profile.DefaultPortionMs
			profile.ID = existing.ID

			return nil
		}
	}

	profile.ID = uuid.NewString()
	profile.CreatedAt = time.Now().UTC()

	cp := *profile
	f.profiles[profile.ID] = &cp

	return nil
}

func (f *MemStore) GetProfileByName(_ context.Context, deviceID, name string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, profile := range f.profiles {
		if profile.DeviceID == deviceID && profile.Name == name {
			cp := *profile

			return &cp, nil
		}
	}

	return nil, db.ErrProfileNotFound
}

func (f *MemStore) GetProfile(_ context.Context, profileID string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	profile, ok := f.profiles[profileID]
	if !ok {
		return nil, db.ErrProfileNotFound
	}

	cp := *profile

	return &cp, nil
}

func (f *MemStore) ReplaceSchedule(_ context.Context, profileID string, slots []models.ScheduleSlot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.profiles[profileID]; !ok {
		return db.ErrProfileNotFound
	}

	cp := make([]models.ScheduleSlot, len(slots))
	copy(cp, slots)
	f.schedules[profileID] = cp

	return nil
}

func (f *MemStore) GetConfigSnapshot(_ context.Context, deviceID string) (*models.PollConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	device, ok := f.devices[deviceID]
	if !ok {
		return nil, db.ErrDeviceNotFound
	}

	snapshot := &models.PollConfig{
		Profiles: []models.ProfileConfig{},
		Schedule: []models.ScheduleConfig{},
	}

	if active, ok := f.profiles[device.ActiveProfileID]; ok {
		snapshot.ActiveProfile = active.Name
	}

	var ids []string

	for id, profile := range f.profiles {
		if profile.DeviceID == deviceID {
			ids = append(ids, id)
		}
	}

	sort.Slice(ids, func(i, j int) bool { return f.profiles[ids[i]].Name < f.profiles[ids[j]].Name })

	for _, id := range ids {
		profile := f.profiles[id]
		snapshot.Profiles = append(snapshot.Profiles, models.ProfileConfig{
			Name:             profile.Name,
			DefaultPortionMs: profile.DefaultPortionMs,
		})

		for _, slot := range f.schedules[id] {
			snapshot.Schedule = append(snapshot.Schedule, models.ScheduleConfig{
				ProfileName: profile.Name,
				HH:          slot.HH,
				MM:          slot.MM,
				PortionMs:   slot.PortionMs,
			})
		}
	}

	return snapshot, nil
}

func (f *MemStore) Close() {}

// CommandByID returns a copy of a stored command, for assertions.
func (f *MemStore) CommandByID(id string) *models.Command {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, cmd := range f.commands {
		if cmd.ID == id {
			cp := *cmd

			return &cp
		}
	}

	return nil
}

// LogsOfType returns stored feed log entries of one type, oldest first.
func (f *MemStore) LogsOfType(deviceID, logType string) []models.FeedLog {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.FeedLog

	for _, entry := range f.logs {
		if entry.DeviceID == deviceID && entry.Type == logType {
			out = append(out, entry)
		}
	}

	return out
}

var _ db.Service = (*MemStore)(nil)
