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
	"fmt"

	"github.com/google/uuid"

	"github.com/carverauto/feedsync/pkg/models"
)

const insertCommandSQL = `
INSERT INTO commands (id, device_id, command_type, payload_json, status, created_at)
VALUES ($1, $2, $3, $4, 'PENDING', $5)`

// claimDueCommandsSQL selects claimable rows oldest-first with a
// non-blocking row lock: a concurrent claimer skips rows this transaction
// holds instead of waiting, so two simultaneous polls can never receive the
// same command. Unacked SENT commands stay claimable and are re-delivered
// on every poll until the device acks them.
const claimDueCommandsSQL = `
SELECT id, command_type, payload_json, created_at
FROM commands
WHERE device_id = $1 AND status IN ('PENDING', 'SENT')
ORDER BY created_at
LIMIT $2
FOR UPDATE SKIP LOCKED`

const markSentSQL = `
UPDATE commands
SET status = 'SENT', sent_at = $2
WHERE id = ANY($1)`

// ackCommandsSQL only matches PENDING and SENT rows: acking is idempotent
// (already-ACKED ids are no-ops) and cannot revive a FAILED command that an
// operator cancelled before the device reported the id back.
const ackCommandsSQL = `
UPDATE commands
SET status = 'ACKED', acked_at = $3
WHERE device_id = $1 AND id = ANY($2) AND status IN ('PENDING', 'SENT')`

const failCommandSQL = `
UPDATE commands
SET status = 'FAILED'
WHERE device_id = $1 AND id = $2::uuid AND status IN ('PENDING', 'SENT')`

const listCommandsSQL = `
SELECT id, command_type, payload_json, status, created_at, sent_at, acked_at
FROM commands
WHERE device_id = $1
ORDER BY created_at DESC
LIMIT $2`

func (db *DB) InsertCommand(ctx context.Context, cmd *models.Command) error {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = nowUTC()
	}

	if len(cmd.Payload) == 0 {
		cmd.Payload = []byte(`{}`)
	}

	cmd.Status = models.CommandPending

	_, err := db.pool.Exec(ctx, insertCommandSQL,
		cmd.ID, cmd.DeviceID, string(cmd.Type), []byte(cmd.Payload), cmd.CreatedAt)
	if err != nil {
		return fmt.Errorf("db: insert command: %w", err)
	}

	return nil
}

// ClaimDueCommands atomically selects up to limit claimable commands for the
// device and transitions them to SENT. Select and transition run in one
// transaction; if the transition fails the select rolls back and the
// commands stay claimable rather than being lost.
func (db *DB) ClaimDueCommands(ctx context.Context, deviceID string, limit int) ([]models.Command, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("db: begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, claimDueCommandsSQL, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("db: select due commands: %w", err)
	}

	var claimed []models.Command

	for rows.Next() {
		var (
			cmd         models.Command
			id          uuid.UUID
			commandType string
		)

		if err := rows.Scan(&id, &commandType, &cmd.Payload, &cmd.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("db: scan due command: %w", err)
		}

		cmd.ID = id.String()
		cmd.DeviceID = deviceID
		cmd.Type = models.CommandType(commandType)
		cmd.Status = models.CommandSent
		claimed = append(claimed, cmd)
	}

	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: iterate due commands: %w", err)
	}

	if len(claimed) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]uuid.UUID, 0, len(claimed))
	for _, cmd := range claimed {
		ids = append(ids, uuid.MustParse(cmd.ID))
	}

	sentAt := nowUTC()
	if _, err := tx.Exec(ctx, markSentSQL, ids, sentAt); err != nil {
		return nil, fmt.Errorf("db: mark commands sent: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("db: commit claim: %w", err)
	}

	for i := range claimed {
		t := sentAt
		claimed[i].SentAt = &t
	}

	return claimed, nil
}

// AckCommands marks the given command ids ACKED. Unknown, malformed, or
// already-acked ids are ignored: devices resend acks after a dropped
// response, so acknowledgment must be idempotent and never an error.
func (db *DB) AckCommands(ctx context.Context, deviceID string, commandIDs []string) error {
	ids := make([]uuid.UUID, 0, len(commandIDs))

	for _, raw := range commandIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}

		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil
	}

	if _, err := db.pool.Exec(ctx, ackCommandsSQL, deviceID, ids, nowUTC()); err != nil {
		return fmt.Errorf("db: ack commands: %w", err)
	}

	return nil
}

// FailCommand is the operator-side cancellation: PENDING or SENT moves to
// FAILED. Commands already acked or failed are not found.
func (db *DB) FailCommand(ctx context.Context, deviceID, commandID string) error {
	if _, err := uuid.Parse(commandID); err != nil {
		return ErrCommandIDInvalid
	}

	tag, err := db.pool.Exec(ctx, failCommandSQL, deviceID, commandID)
	if err != nil {
		return fmt.Errorf("db: fail command: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrCommandNotFound
	}

	return nil
}

func (db *DB) ListCommands(ctx context.Context, deviceID string, limit int) ([]models.Command, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.pool.Query(ctx, listCommandsSQL, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("db: list commands: %w", err)
	}
	defer rows.Close()

	commands := make([]models.Command, 0)

	for rows.Next() {
		var (
			cmd         models.Command
			id          uuid.UUID
			commandType string
			status      string
		)

		if err := rows.Scan(&id, &commandType, &cmd.Payload, &status, &cmd.CreatedAt, &cmd.SentAt, &cmd.AckedAt); err != nil {
			return nil, fmt.Errorf("db: scan command: %w", err)
		}

		cmd.ID = id.String()
		cmd.DeviceID = deviceID
		cmd.Type = models.CommandType(commandType)
		cmd.Status = models.CommandStatus(status)
		commands = append(commands, cmd)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: iterate commands: %w", err)
	}

	return commands, nil
}
