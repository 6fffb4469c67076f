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

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/carverauto/feedsync/pkg/auth"
	"github.com/carverauto/feedsync/pkg/config"
	"github.com/carverauto/feedsync/pkg/core"
	"github.com/carverauto/feedsync/pkg/core/api"
	"github.com/carverauto/feedsync/pkg/crypto/secrets"
	"github.com/carverauto/feedsync/pkg/db"
	"github.com/carverauto/feedsync/pkg/dispatch"
	"github.com/carverauto/feedsync/pkg/lifecycle"
	"github.com/carverauto/feedsync/pkg/logger"
	"github.com/carverauto/feedsync/pkg/ratelimit"
	"github.com/carverauto/feedsync/pkg/version"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/feedsync/core.json", "Path to feedsync config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		return err
	}

	logCfg := logger.DefaultConfig()
	if cfg.Logging != nil {
		logCfg = &logger.Config{
			Level:      cfg.Logging.Level,
			Debug:      cfg.Logging.Debug,
			Output:     cfg.Logging.Output,
			TimeFormat: cfg.Logging.TimeFormat,
		}
	}

	appLogger, err := logger.New(logCfg)
	if err != nil {
		return err
	}

	appLogger.Info().Str("version", version.GetFullVersion()).Msg("starting feedsync core")

	cipher, err := secrets.NewCipherFromBase64(cfg.SecretKey)
	if err != nil {
		return err
	}

	database, err := db.New(ctx, cfg.Database, logger.NewComponentLogger(appLogger, "db"))
	if err != nil {
		return err
	}
	defer database.Close()

	svc := core.NewService(
		database,
		auth.New(cfg.DeviceAuth.SignatureEnabled, cfg.DeviceAuth.NonceWindowSec, database, logger.NewComponentLogger(appLogger, "auth")),
		ratelimit.NewPollLimiter(cfg.DeviceAuth.MaxPollPerMinute),
		cipher,
		dispatch.NewQueue(database, logger.NewComponentLogger(appLogger, "dispatch")),
		cfg.DeviceAuth,
		logger.NewComponentLogger(appLogger, "core"),
	)

	server := api.NewServer(svc, logger.NewComponentLogger(appLogger, "api"), api.WithAdminAPIKey(cfg.AdminAPIKey))

	return lifecycle.RunHTTPServer(ctx, server.HTTPServer(cfg.ListenAddr), appLogger)
}
