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
	"github.com/jackc/pgx/v5/pgconn"
)

const registerNonceSQL = `
INSERT INTO device_nonces (id, device_id, nonce, ts_epoch)
VALUES ($1, $2, $3, $4)`

const purgeNoncesSQL = `
DELETE FROM device_nonces WHERE ts_epoch < $1`

// RegisterNonce is an atomic insert-if-absent against the (device_id, nonce)
// uniqueness constraint. It returns false on conflict instead of an error;
// a conflict means the nonce was already seen inside the active window.
// Correctness relies on the database constraint, not in-process bookkeeping,
// so multiple server instances cannot miss each other's nonces.
func (db *DB) RegisterNonce(ctx context.Context, deviceID, nonce string, tsEpoch int64) (bool, error) {
	_, err := db.pool.Exec(ctx, registerNonceSQL, uuid.New(), deviceID, nonce, tsEpoch)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}

		return false, fmt.Errorf("db: register nonce: %w", err)
	}

	return true, nil
}

// PurgeNoncesBefore deletes nonce records older than the window floor,
// keeping the table bounded.
func (db *DB) PurgeNoncesBefore(ctx context.Context, minEpochExclusive int64) error {
	if _, err := db.pool.Exec(ctx, purgeNoncesSQL, minEpochExclusive); err != nil {
		return fmt.Errorf("db: purge nonces: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
