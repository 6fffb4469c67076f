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

// Package config loads the service configuration from a JSON file and
// applies environment overrides for secret material.
package config

import (
	"context"
	"errors"
	"os"

	"github.com/carverauto/feedsync/pkg/models"
)

// Environment variables that carry secrets so they never live in the
// config file on disk.
const (
	EnvSecretKey   = "FEEDSYNC_SECRET_KEY"
	EnvAdminAPIKey = "FEEDSYNC_ADMIN_API_KEY"
	EnvDBPassword  = "FEEDSYNC_DB_PASSWORD"
)

var (
	ErrSecretKeyRequired = errors.New("FEEDSYNC_SECRET_KEY environment variable is required")
	ErrDatabaseRequired  = errors.New("database configuration is required")
)

// Load reads the core service configuration from path and merges
// environment-provided secrets.
func Load(ctx context.Context, path string) (*models.CoreServiceConfig, error) {
	var cfg models.CoreServiceConfig

	loader := &FileConfigLoader{}
	if err := loader.Load(ctx, path, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database == nil {
		return nil, ErrDatabaseRequired
	}

	cfg.DeviceAuth.Normalize()

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	cfg.SecretKey = os.Getenv(EnvSecretKey)
	if cfg.SecretKey == "" {
		return nil, ErrSecretKeyRequired
	}

	cfg.AdminAPIKey = os.Getenv(EnvAdminAPIKey)

	if pw := os.Getenv(EnvDBPassword); pw != "" {
		cfg.Database.Password = pw
	}

	return &cfg, nil
}
