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

// Package db implements the PostgreSQL store for devices, nonces, the
// command queue, feed logs, and the profile/schedule read model.
package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/feedsync/pkg/logger"
	"github.com/carverauto/feedsync/pkg/models"
)

// nowUTC is swappable in tests.
var nowUTC = func() time.Time { return time.Now().UTC() }

// DB is the pgx-backed store.
type DB struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// New dials the configured database, runs migrations, and returns the store.
func New(ctx context.Context, cfg *models.DatabaseConfig, log logger.Logger) (*DB, error) {
	pool, err := NewPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, pool, log); err != nil {
		pool.Close()
		return nil, err
	}

	return &DB{pool: pool, logger: log}, nil
}

// NewWithPool wraps an existing pool; used by tests against a prepared database.
func NewWithPool(pool *pgxpool.Pool, log logger.Logger) *DB {
	return &DB{pool: pool, logger: log}
}

// Close releases the connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

var _ Service = (*DB)(nil)
