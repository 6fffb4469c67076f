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
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carverauto/feedsync/pkg/models"
)

const insertDeviceSQL = `
INSERT INTO devices (id, owner_id, name, secret_hash, encrypted_secret, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

const getDeviceSQL = `
SELECT id, owner_id, name, secret_hash, encrypted_secret, last_seen_at,
       status_json, firmware_version, active_profile_id, created_at
FROM devices
WHERE id = $1`

const listDevicesSQL = `
SELECT d.id,
       d.name,
       d.last_seen_at,
       (d.status_json->>'rssi')::int AS rssi,
       d.firmware_version,
       p.name AS active_profile_name
FROM devices d
LEFT JOIN profiles p ON p.id = d.active_profile_id
WHERE ($1 = '' OR d.owner_id = $1)
ORDER BY d.created_at`

const updateDeviceStatusSQL = `
UPDATE devices
SET last_seen_at = $2,
    status_json = COALESCE($3, status_json),
    firmware_version = COALESCE(NULLIF($4, ''), firmware_version)
WHERE id = $1`

// Secret rotation is a two-field invariant: hash and envelope change
// together in a single statement, never through separate setters.
const rotateDeviceSecretSQL = `
UPDATE devices
SET secret_hash = $2, encrypted_secret = $3
WHERE id = $1`

const setActiveProfileSQL = `
UPDATE devices SET active_profile_id = $2::uuid WHERE id = $1`

// onlineWindow is how recently a device must have polled to count as online.
const onlineWindow = 2 * time.Minute

func (db *DB) CreateDevice(ctx context.Context, device *models.Device) error {
	if device == nil || device.ID == "" {
		return ErrDeviceIDRequired
	}

	createdAt := device.CreatedAt
	if createdAt.IsZero() {
		createdAt = nowUTC()
	}

	_, err := db.pool.Exec(ctx, insertDeviceSQL,
		device.ID, device.OwnerID, device.Name,
		device.SecretHash, device.EncryptedSecret, createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDeviceExists
		}

		return fmt.Errorf("db: insert device: %w", err)
	}

	return nil
}

func (db *DB) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	var (
		device          models.Device
		lastSeen        *time.Time
		statusJSON      []byte
		firmware        *string
		activeProfileID *string
	)

	err := db.pool.QueryRow(ctx, getDeviceSQL, deviceID).Scan(
		&device.ID, &device.OwnerID, &device.Name,
		&device.SecretHash, &device.EncryptedSecret,
		&lastSeen, &statusJSON, &firmware, &activeProfileID, &device.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}

		return nil, fmt.Errorf("db: get device: %w", err)
	}

	device.LastSeenAt = lastSeen
	device.StatusJSON = statusJSON

	if firmware != nil {
		device.FirmwareVersion = *firmware
	}

	if activeProfileID != nil {
		device.ActiveProfileID = *activeProfileID
	}

	return &device, nil
}

func (db *DB) ListDevices(ctx context.Context, ownerID string) ([]models.DeviceSummary, error) {
	rows, err := db.pool.Query(ctx, listDevicesSQL, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db: list devices: %w", err)
	}
	defer rows.Close()

	now := nowUTC()
	summaries := make([]models.DeviceSummary, 0)

	for rows.Next() {
		var (
			s        models.DeviceSummary
			lastSeen *time.Time
			rssi     *int
			firmware *string
			profile  *string
		)

		if err := rows.Scan(&s.ID, &s.Name, &lastSeen, &rssi, &firmware, &profile); err != nil {
			return nil, fmt.Errorf("db: scan device summary: %w", err)
		}

		s.LastSeenAt = lastSeen
		s.RSSI = rssi
		s.Online = lastSeen != nil && lastSeen.After(now.Add(-onlineWindow))

		if firmware != nil {
			s.FirmwareVersion = *firmware
		}

		if profile != nil {
			s.ActiveProfileName = *profile
		}

		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: iterate devices: %w", err)
	}

	return summaries, nil
}

// UpdateDeviceStatus refreshes last_seen_at and, when the poll carried a
// status block, replaces the stored snapshot. An empty statusJSON maps to
// SQL NULL so the COALESCE keeps the previous snapshot.
func (db *DB) UpdateDeviceStatus(ctx context.Context, deviceID string, seenAt time.Time, statusJSON json.RawMessage, firmware string) error {
	var status []byte
	if len(statusJSON) > 0 {
		status = []byte(statusJSON)
	}

	tag, err := db.pool.Exec(ctx, updateDeviceStatusSQL, deviceID, seenAt, status, firmware)
	if err != nil {
		return fmt.Errorf("db: update device status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

func (db *DB) RotateDeviceSecret(ctx context.Context, deviceID, secretHash string, encryptedSecret []byte) error {
	tag, err := db.pool.Exec(ctx, rotateDeviceSecretSQL, deviceID, secretHash, encryptedSecret)
	if err != nil {
		return fmt.Errorf("db: rotate device secret: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

func (db *DB) SetActiveProfile(ctx context.Context, deviceID, profileID string) error {
	tag, err := db.pool.Exec(ctx, setActiveProfileSQL, deviceID, profileID)
	if err != nil {
		return fmt.Errorf("db: set active profile: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}

	return nil
}
