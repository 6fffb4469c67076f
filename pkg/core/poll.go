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
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/carverauto/feedsync/pkg/auth"
	"github.com/carverauto/feedsync/pkg/db"
	"github.com/carverauto/feedsync/pkg/models"
)

// PollHeaders carries the authentication material from the transport layer.
// Body is the exact byte sequence received on the wire; signatures are
// verified over it, never over a re-serialization.
type PollHeaders struct {
	DeviceID  string
	Nonce     string
	Signature string
	Body      []byte
}

// Poll runs one synchronization cycle for a device. The pipeline order is
// fixed: rate limit and device lookup precede authentication, and all state
// mutations (status, logs, acks) precede the claim so a device that acks and
// polls in one request never sees its own acked commands again.
func (s *Service) Poll(ctx context.Context, req *models.PollRequest, hdr *PollHeaders) (*models.PollResponse, error) {
	if req == nil || strings.TrimSpace(req.DeviceID) == "" {
		return nil, BadRequest(CodeDeviceIDRequired)
	}

	if hdr == nil {
		hdr = &PollHeaders{}
	}

	deviceID := strings.TrimSpace(req.DeviceID)

	if !s.limiter.Allow(deviceID) {
		s.logger.Warn().Str("device_id", deviceID).Msg("poll rate limit exceeded")

		return nil, TooManyRequests(CodePollRateLimitExceeded)
	}

	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			return nil, Unauthorized(CodeUnknownDevice)
		}

		return nil, err
	}

	plainSecret, err := s.cipher.Decrypt(device.EncryptedSecret)
	if err != nil {
		// Stored envelope cannot be opened with the current master key.
		// Fail closed and leave the operator a trail.
		s.logger.Error().Err(err).Str("device_id", deviceID).Msg("device secret envelope decryption failed")

		return nil, err
	}

	if err := s.auth.Verify(ctx, &auth.VerifyInput{
		DeviceID:        deviceID,
		HeaderDeviceID:  hdr.DeviceID,
		Nonce:           hdr.Nonce,
		Signature:       hdr.Signature,
		RequestTS:       req.TS,
		Body:            hdr.Body,
		SecretHash:      device.SecretHash,
		DecryptedSecret: plainSecret,
	}); err != nil {
		if apiErr := authError(err); apiErr != nil {
			s.logger.Warn().Str("device_id", deviceID).Str("code", apiErr.Code).Msg("poll rejected")

			return nil, apiErr
		}

		return nil, err
	}

	now := nowFunc().UTC()

	if err := s.recordStatus(ctx, deviceID, req.Status, now); err != nil {
		return nil, err
	}

	if err := s.recordLogs(ctx, deviceID, req.Log, now); err != nil {
		return nil, err
	}

	if err := s.queue.Ack(ctx, deviceID, req.Ack); err != nil {
		return nil, err
	}

	claimed, err := s.queue.Claim(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.store.GetConfigSnapshot(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	resp := &models.PollResponse{
		ServerTime:  now.Unix(),
		IntervalSec: s.cfg.PollIntervalSec,
		Commands:    make([]models.PollCommand, 0, len(claimed)),
		Config:      *snapshot,
	}

	for _, cmd := range claimed {
		resp.Commands = append(resp.Commands, models.PollCommand{
			ID:          cmd.ID,
			CommandType: cmd.Type,
			Payload:     cmd.Payload,
		})
	}

	return resp, nil
}

// recordStatus persists the device-reported snapshot, last write wins. A
// poll without a status block still refreshes last_seen_at.
func (s *Service) recordStatus(ctx context.Context, deviceID string, status *models.DeviceStatus, seenAt time.Time) error {
	var (
		statusJSON json.RawMessage
		firmware   string
	)

	if status != nil {
		raw, err := json.Marshal(status)
		if err != nil {
			return err
		}

		statusJSON = raw
		firmware = status.FW
	}

	return s.store.UpdateDeviceStatus(ctx, deviceID, seenAt, statusJSON, firmware)
}

// recordLogs appends the poll's log batch. The batch is all-or-nothing; a
// failure rejects the whole poll so the device retries with the same batch.
func (s *Service) recordLogs(ctx context.Context, deviceID string, rows []models.DeviceLogRow, now time.Time) error {
	if len(rows) == 0 {
		return nil
	}

	entries := make([]models.FeedLog, 0, len(rows))

	for _, row := range rows {
		ts := now
		if row.TS > 0 {
			ts = time.Unix(row.TS, 0).UTC()
		}

		entries = append(entries, models.FeedLog{
			TS:      ts,
			Type:    normalizeLogType(row.Type),
			Message: row.Msg,
			Meta:    row.Meta,
		})
	}

	return s.store.InsertFeedLogs(ctx, deviceID, entries)
}

func normalizeLogType(t string) string {
	t = strings.ToUpper(strings.TrimSpace(t))
	if t == "" {
		return "INFO"
	}

	return t
}
