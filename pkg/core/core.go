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

// Package core orchestrates the device synchronization protocol: it runs the
// poll pipeline end to end and exposes the management operations that feed
// the command queue.
package core

import (
	"time"

	"github.com/carverauto/feedsync/pkg/auth"
	"github.com/carverauto/feedsync/pkg/crypto/secrets"
	"github.com/carverauto/feedsync/pkg/db"
	"github.com/carverauto/feedsync/pkg/dispatch"
	"github.com/carverauto/feedsync/pkg/logger"
	"github.com/carverauto/feedsync/pkg/models"
	"github.com/carverauto/feedsync/pkg/ratelimit"
)

var nowFunc = time.Now

// Service wires the protocol pieces together. One instance serves all
// devices; every dependency is safe for concurrent use.
type Service struct {
	store   db.Service
	auth    auth.Authenticator
	limiter *ratelimit.PollLimiter
	cipher  *secrets.Cipher
	queue   *dispatch.Queue
	cfg     models.DeviceAuthConfig
	logger  logger.Logger
}

// NewService builds the sync core from its dependencies.
func NewService(
	store db.Service,
	authenticator auth.Authenticator,
	limiter *ratelimit.PollLimiter,
	cipher *secrets.Cipher,
	queue *dispatch.Queue,
	cfg models.DeviceAuthConfig,
	log logger.Logger,
) *Service {
	cfg.Normalize()

	return &Service{
		store:   store,
		auth:    authenticator,
		limiter: limiter,
		cipher:  cipher,
		queue:   queue,
		cfg:     cfg,
		logger:  log,
	}
}
