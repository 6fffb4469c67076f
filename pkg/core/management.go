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

package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/carverauto/feedsync/pkg/crypto/signature"
	"github.com/carverauto/feedsync/pkg/db"
	"github.com/carverauto/feedsync/pkg/dispatch"
	"github.com/carverauto/feedsync/pkg/models"
)

const deviceSecretBytes = 32

// CreateDeviceInput is the operator request to register a feeder.
type CreateDeviceInput struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name"`
	OwnerID  string `json:"ownerId,omitempty"`
}

// DeviceCredentials is returned exactly once, at registration or rotation.
// The plaintext secret is never retrievable afterwards.
type DeviceCredentials struct {
	DeviceID string `json:"deviceId"`
	Secret   string `json:"secret"`
}

// CreateDevice registers a feeder and mints its shared secret. The secret is
// stored only as an AES-GCM envelope plus fingerprint; the plaintext in the
// return value is the sole copy handed out.
func (s *Service) CreateDevice(ctx context.Context, in *CreateDeviceInput) (*DeviceCredentials, error) {
	deviceID := strings.TrimSpace(in.DeviceID)
	if deviceID == "" {
		return nil, BadRequest(CodeDeviceIDRequired)
	}

	if strings.TrimSpace(in.Name) == "" {
		return nil, BadRequest(CodeNameRequired)
	}

	secret, err := newDeviceSecret()
	if err != nil {
		return nil, err
	}

	envelope, err := s.cipher.Encrypt(secret)
	if err != nil {
		return nil, err
	}

	device := &models.Device{
		ID:              deviceID,
		OwnerID:         strings.TrimSpace(in.OwnerID),
		Name:            strings.TrimSpace(in.Name),
		SecretHash:      signature.Fingerprint(secret),
		EncryptedSecret: envelope,
	}

	if err := s.store.CreateDevice(ctx, device); err != nil {
		if errors.Is(err, db.ErrDeviceExists) {
			return nil, Conflict(CodeDeviceIDExists)
		}

		return nil, err
	}

	s.logger.Info().Str("device_id", deviceID).Msg("device registered")

	return &DeviceCredentials{DeviceID: deviceID, Secret: secret}, nil
}

// RotateSecret replaces a device's shared secret. The fingerprint and the
// envelope are written in one statement so no poll can observe a half-rotated
// device, and the rotation leaves an audit entry.
func (s *Service) RotateSecret(ctx context.Context, deviceID string) (*DeviceCredentials, error) {
	if _, err := s.getDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	secret, err := newDeviceSecret()
	if err != nil {
		return nil, err
	}

	envelope, err := s.cipher.Encrypt(secret)
	if err != nil {
		return nil, err
	}

	if err := s.store.RotateDeviceSecret(ctx, deviceID, signature.Fingerprint(secret), envelope); err != nil {
		return nil, err
	}

	if err := s.store.InsertFeedLog(ctx, deviceID, models.FeedLog{
		TS:      nowFunc().UTC(),
		Type:    "INFO",
		Message: "Secret rotated",
	}); err != nil {
		return nil, err
	}

	s.logger.Info().Str("device_id", deviceID).Msg("device secret rotated")

	return &DeviceCredentials{DeviceID: deviceID, Secret: secret}, nil
}

// EnqueueCommand queues an instruction for delivery on the device's next poll.
func (s *Service) EnqueueCommand(ctx context.Context, deviceID string, commandType models.CommandType, payload json.RawMessage) (*models.Command, error) {
	if _, err := s.getDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	cmd, err := s.queue.Enqueue(ctx, deviceID, commandType, payload)
	if err != nil {
		if errors.Is(err, dispatch.ErrUnknownCommandType) {
			return nil, BadRequest(CodeUnknownCommandType)
		}

		return nil, err
	}

	return cmd, nil
}

// FeedNow enqueues an immediate feed. When the caller leaves the portion
// unset, the device's active profile supplies it.
func (s *Service) FeedNow(ctx context.Context, deviceID string, portionMs *int) (*models.Command, error) {
	device, err := s.getDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	portion := 0

	switch {
	case portionMs != nil:
		portion = *portionMs
	case device.ActiveProfileID != "":
		profile, err := s.store.GetProfile(ctx, device.ActiveProfileID)
		if err != nil && !errors.Is(err, db.ErrProfileNotFound) {
			return nil, err
		}

		if profile != nil {
			portion = profile.DefaultPortionMs
		}
	}

	if portion <= 0 {
		return nil, BadRequest(CodePortionMustBePositive)
	}

	payload, err := json.Marshal(map[string]int{"portionMs": portion})
	if err != nil {
		return nil, err
	}

	return s.queue.Enqueue(ctx, deviceID, models.CommandFeedNow, payload)
}

// CancelCommand marks a not-yet-acked command FAILED so it is never delivered
// (or re-delivered) again.
func (s *Service) CancelCommand(ctx context.Context, deviceID, commandID string) error {
	if _, err := s.getDevice(ctx, deviceID); err != nil {
		return err
	}

	if err := s.queue.Cancel(ctx, deviceID, commandID); err != nil {
		switch {
		case errors.Is(err, db.ErrCommandIDInvalid):
			return BadRequest(CodeCommandNotFound)
		case errors.Is(err, db.ErrCommandNotFound):
			return NotFound(CodeCommandNotFound)
		}

		return err
	}

	return nil
}

// UpsertProfile creates or updates a named feeding profile and notifies the
// device of the new default portion.
func (s *Service) UpsertProfile(ctx context.Context, deviceID, name string, defaultPortionMs int) (*models.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, BadRequest(CodeProfileNameRequired)
	}

	if defaultPortionMs <= 0 {
		return nil, BadRequest(CodePortionMustBePositive)
	}

	if _, err := s.getDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	profile := &models.Profile{
		DeviceID:         deviceID,
		Name:             name,
		DefaultPortionMs: defaultPortionMs,
	}

	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"profileName":      name,
		"defaultPortionMs": defaultPortionMs,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.queue.Enqueue(ctx, deviceID, models.CommandSetDefaultPortion, payload); err != nil {
		return nil, err
	}

	return profile, nil
}

// SetActiveProfile switches the device to a profile it owns, queues the
// switch command, and records the change in the feed log.
func (s *Service) SetActiveProfile(ctx context.Context, deviceID, profileName string) error {
	if _, err := s.getDevice(ctx, deviceID); err != nil {
		return err
	}

	profile, err := s.store.GetProfileByName(ctx, deviceID, strings.TrimSpace(profileName))
	if err != nil {
		if errors.Is(err, db.ErrProfileNotFound) {
			return NotFound(CodeProfileNotFound)
		}

		return err
	}

	if err := s.store.SetActiveProfile(ctx, deviceID, profile.ID); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{"profileName": profile.Name})
	if err != nil {
		return err
	}

	if _, err := s.queue.Enqueue(ctx, deviceID, models.CommandSetProfile, payload); err != nil {
		return err
	}

	return s.store.InsertFeedLog(ctx, deviceID, models.FeedLog{
		TS:      nowFunc().UTC(),
		Type:    "PROFILE_CHANGED",
		Message: "Active profile set to " + profile.Name,
	})
}

// ScheduleSlotInput is one requested feeding slot for ReplaceSchedule.
type ScheduleSlotInput struct {
	HH        int `json:"hh"`
	MM        int `json:"mm"`
	PortionMs int `json:"portionMs"`
}

// ReplaceSchedule swaps a profile's entire schedule, queues the device
// update, and records the change in the feed log.
func (s *Service) ReplaceSchedule(ctx context.Context, profileID string, slots []ScheduleSlotInput) error {
	profile, err := s.store.GetProfile(ctx, strings.TrimSpace(profileID))
	if err != nil {
		if errors.Is(err, db.ErrProfileNotFound) || errors.Is(err, db.ErrProfileIDInvalid) {
			return NotFound(CodeProfileNotFound)
		}

		return err
	}

	replacement := make([]models.ScheduleSlot, 0, len(slots))

	for _, slot := range slots {
		if slot.HH < 0 || slot.HH > 23 {
			return BadRequest(CodeHourOutOfRange)
		}

		if slot.MM < 0 || slot.MM > 59 {
			return BadRequest(CodeMinuteOutOfRange)
		}

		if slot.PortionMs <= 0 {
			return BadRequest(CodePortionMustBePositive)
		}

		replacement = append(replacement, models.ScheduleSlot{
			ProfileID: profile.ID,
			HH:        slot.HH,
			MM:        slot.MM,
			PortionMs: slot.PortionMs,
		})
	}

	if err := s.store.ReplaceSchedule(ctx, profile.ID, replacement); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"profileName": profile.Name,
		"events":      slots,
	})
	if err != nil {
		return err
	}

	if _, err := s.queue.Enqueue(ctx, profile.DeviceID, models.CommandSetSchedule, payload); err != nil {
		return err
	}

	return s.store.InsertFeedLog(ctx, profile.DeviceID, models.FeedLog{
		TS:      nowFunc().UTC(),
		Type:    "SCHEDULE_UPDATED",
		Message: "Schedule replaced for profile " + profile.Name,
	})
}

// ListDevices returns the operator projection of registered feeders.
func (s *Service) ListDevices(ctx context.Context, ownerID string) ([]models.DeviceSummary, error) {
	return s.store.ListDevices(ctx, ownerID)
}

// ListCommands returns recent commands for a device, newest first.
func (s *Service) ListCommands(ctx context.Context, deviceID string, limit int) ([]models.Command, error) {
	if _, err := s.getDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	return s.store.ListCommands(ctx, deviceID, limit)
}

// ListLogs returns feed log entries for a device, newest first, optionally
// filtered by type.
func (s *Service) ListLogs(ctx context.Context, deviceID, typeFilter string, limit, offset int) ([]models.FeedLog, error) {
	if _, err := s.getDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	return s.store.ListFeedLogs(ctx, deviceID, strings.ToUpper(strings.TrimSpace(typeFilter)), limit, offset)
}

func (s *Service) getDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			return nil, NotFound(CodeDeviceNotFound)
		}

		return nil, err
	}

	return device, nil
}

func newDeviceSecret() (string, error) {
	buf := make([]byte, deviceSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
