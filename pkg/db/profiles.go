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
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carverauto/feedsync/pkg/models"
)

const upsertProfileSQL = `
INSERT INTO profiles (id, device_id, name, default_portion_ms, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (device_id, name) DO UPDATE SET
	default_portion_ms = EXCLUDED.default_portion_ms
RETURNING id`

const getProfileByNameSQL = `
SELECT id, device_id, name, default_portion_ms, created_at
FROM profiles
WHERE device_id = $1 AND name = $2`

const getProfileSQL = `
SELECT id, device_id, name, default_portion_ms, created_at
FROM profiles
WHERE id = $1::uuid`

const deleteScheduleSQL = `
DELETE FROM schedule_events WHERE profile_id = $1::uuid`

const insertScheduleSlotSQL = `
INSERT INTO schedule_events (id, profile_id, hh, mm, portion_ms)
VALUES ($1, $2::uuid, $3, $4, $5)`

const activeProfileNameSQL = `
SELECT p.name
FROM devices d
LEFT JOIN profiles p ON p.id = d.active_profile_id
WHERE d.id = $1`

const listProfilesSQL = `
SELECT name, default_portion_ms
FROM profiles
WHERE device_id = $1
ORDER BY name`

const listScheduleSQL = `
SELECT p.name, se.hh, se.mm, se.portion_ms
FROM schedule_events se
JOIN profiles p ON p.id = se.profile_id
WHERE p.device_id = $1
ORDER BY p.name, se.hh, se.mm`

// UpsertProfile creates the profile or updates its default portion; the
// row id is written back into profile.ID.
func (db *DB) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}

	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = nowUTC()
	}

	var id uuid.UUID

	err := db.pool.QueryRow(ctx, upsertProfileSQL,
		profile.ID, profile.DeviceID, profile.Name,
		profile.DefaultPortionMs, profile.CreatedAt).Scan(&id)
	if err != nil {
		return fmt.Errorf("db: upsert profile: %w", err)
	}

	profile.ID = id.String()

	return nil
}

func (db *DB) GetProfileByName(ctx context.Context, deviceID, name string) (*models.Profile, error) {
	return db.scanProfile(db.pool.QueryRow(ctx, getProfileByNameSQL, deviceID, name))
}

func (db *DB) GetProfile(ctx context.Context, profileID string) (*models.Profile, error) {
	if _, err := uuid.Parse(profileID); err != nil {
		return nil, ErrProfileIDInvalid
	}

	return db.scanProfile(db.pool.QueryRow(ctx, getProfileSQL, profileID))
}

func (db *DB) scanProfile(row pgx.Row) (*models.Profile, error) {
	var (
		profile models.Profile
		id      uuid.UUID
	)

	err := row.Scan(&id, &profile.DeviceID, &profile.Name, &profile.DefaultPortionMs, &profile.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}

		return nil, fmt.Errorf("db: get profile: %w", err)
	}

	profile.ID = id.String()

	return &profile, nil
}

// ReplaceSchedule swaps the profile's schedule slots in one transaction.
func (db *DB) ReplaceSchedule(ctx context.Context, profileID string, slots []models.ScheduleSlot) error {
	if _, err := uuid.Parse(profileID); err != nil {
		return ErrProfileIDInvalid
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db: begin schedule replace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, deleteScheduleSQL, profileID); err != nil {
		return fmt.Errorf("db: delete schedule: %w", err)
	}

	for _, slot := range slots {
		if _, err := tx.Exec(ctx, insertScheduleSlotSQL,
			uuid.New(), profileID, slot.HH, slot.MM, slot.PortionMs); err != nil {
			return fmt.Errorf("db: insert schedule slot: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetConfigSnapshot assembles the full configuration snapshot a device
// re-applies on every poll: active profile name, all profiles, and the
// complete schedule.
func (db *DB) GetConfigSnapshot(ctx context.Context, deviceID string) (*models.PollConfig, error) {
	snapshot := &models.PollConfig{
		Profiles: make([]models.ProfileConfig, 0),
		Schedule: make([]models.ScheduleConfig, 0),
	}

	var activeName *string

	err := db.pool.QueryRow(ctx, activeProfileNameSQL, deviceID).Scan(&activeName)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("db: active profile name: %w", err)
	}

	if activeName != nil {
		snapshot.ActiveProfile = *activeName
	}

	profileRows, err := db.pool.Query(ctx, listProfilesSQL, deviceID)
	if err != nil {
		return nil, fmt.Errorf("db: list profiles: %w", err)
	}

	for profileRows.Next() {
		var p models.ProfileConfig

		if err := profileRows.Scan(&p.Name, &p.DefaultPortionMs); err != nil {
			profileRows.Close()
			return nil, fmt.Errorf("db: scan profile: %w", err)
		}

		snapshot.Profiles = append(snapshot.Profiles, p)
	}

	profileRows.Close()

	if err := profileRows.Err(); err != nil {
		return nil, fmt.Errorf("db: iterate profiles: %w", err)
	}

	scheduleRows, err := db.pool.Query(ctx, listScheduleSQL, deviceID)
	if err != nil {
		return nil, fmt.Errorf("db: list schedule: %w", err)
	}

	for scheduleRows.Next() {
		var s models.ScheduleConfig

		if err := scheduleRows.Scan(&s.ProfileName, &s.HH, &s.MM, &s.PortionMs); err != nil {
			scheduleRows.Close()
			return nil, fmt.Errorf("db: scan schedule slot: %w", err)
		}

		snapshot.Schedule = append(snapshot.Schedule, s)
	}

	scheduleRows.Close()

	if err := scheduleRows.Err(); err != nil {
		return nil, fmt.Errorf("db: iterate schedule: %w", err)
	}

	return snapshot, nil
}
