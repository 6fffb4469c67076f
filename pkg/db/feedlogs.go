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
	"github.com/jackc/pgx/v5"

	"github.com/carverauto/feedsync/pkg/models"
)

const insertFeedLogSQL = `
INSERT INTO feed_logs (id, device_id, ts, type, message, meta_json)
VALUES ($1, $2, $3, $4, $5, $6)`

const listFeedLogsSQL = `
SELECT id, ts, type, message, meta_json
FROM feed_logs
WHERE device_id = $1 AND ($2 = '' OR type = $2)
ORDER BY ts DESC
LIMIT $3 OFFSET $4`

// InsertFeedLogs appends a batch of log entries in a single transaction.
// Logs are the audit trail for feeding events, so a partial insert aborts
// the whole batch rather than silently dropping a subset. Duplicate
// near-identical entries from client retries are stored as-is (fresh row id
// per entry), never deduplicated.
func (db *DB) InsertFeedLogs(ctx context.Context, deviceID string, entries []models.FeedLog) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	for _, entry := range entries {
		meta := entry.Meta
		if len(meta) == 0 {
			meta = []byte(`{}`)
		}

		ts := entry.TS
		if ts.IsZero() {
			ts = nowUTC()
		}

		batch.Queue(insertFeedLogSQL, uuid.New(), deviceID, ts, entry.Type, entry.Message, []byte(meta))
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db: begin feed log batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	results := tx.SendBatch(ctx, batch)

	for range entries {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("db: insert feed log: %w", err)
		}
	}

	if err := results.Close(); err != nil {
		return fmt.Errorf("db: close feed log batch: %w", err)
	}

	return tx.Commit(ctx)
}

// InsertFeedLog appends a single server-side event entry.
func (db *DB) InsertFeedLog(ctx context.Context, deviceID string, entry models.FeedLog) error {
	return db.InsertFeedLogs(ctx, deviceID, []models.FeedLog{entry})
}

func (db *DB) ListFeedLogs(ctx context.Context, deviceID, typeFilter string, limit, offset int) ([]models.FeedLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	if offset < 0 {
		offset = 0
	}

	rows, err := db.pool.Query(ctx, listFeedLogsSQL, deviceID, typeFilter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db: list feed logs: %w", err)
	}
	defer rows.Close()

	logs := make([]models.FeedLog, 0)

	for rows.Next() {
		var (
			entry models.FeedLog
			id    uuid.UUID
		)

		if err := rows.Scan(&id, &entry.TS, &entry.Type, &entry.Message, &entry.Meta); err != nil {
			return nil, fmt.Errorf("db: scan feed log: %w", err)
		}

		entry.ID = id.String()
		entry.DeviceID = deviceID
		logs = append(logs, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: iterate feed logs: %w", err)
	}

	return logs, nil
}
