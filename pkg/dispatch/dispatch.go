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

// Package dispatch is the command queue service. Each command is a small
// state machine: PENDING on enqueue, SENT when a poll claims it, ACKED when
// the device reports the id back, FAILED on operator cancellation. Unacked
// commands are re-delivered on every poll until the device acks them.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/carverauto/feedsync/pkg/logger"
	"github.com/carverauto/feedsync/pkg/models"
)

// MaxClaimBatch caps how many commands one poll response may carry.
const MaxClaimBatch = 10

// ErrUnknownCommandType rejects enqueues outside the command enum.
var ErrUnknownCommandType = errors.New("unknown command type")

// Store is the persistence the queue needs. Claim exclusivity under
// concurrency is the store's contract: simultaneous claims for the same
// device must never both receive the same command.
type Store interface {
	InsertCommand(ctx context.Context, cmd *models.Command) error
	ClaimDueCommands(ctx context.Context, deviceID string, limit int) ([]models.Command, error)
	AckCommands(ctx context.Context, deviceID string, commandIDs []string) error
	FailCommand(ctx context.Context, deviceID, commandID string) error
}

// Queue dispatches commands to devices through their poll cycle.
type Queue struct {
	store  Store
	logger logger.Logger
}

// NewQueue creates a dispatch queue over the given store.
func NewQueue(store Store, log logger.Logger) *Queue {
	return &Queue{store: store, logger: log}
}

// Enqueue creates a PENDING command for the device.
func (q *Queue) Enqueue(ctx context.Context, deviceID string, commandType models.CommandType, payload json.RawMessage) (*models.Command, error) {
	if !models.KnownCommandType(commandType) {
		return nil, ErrUnknownCommandType
	}

	cmd := &models.Command{
		DeviceID: deviceID,
		Type:     commandType,
		Payload:  payload,
	}

	if err := q.store.InsertCommand(ctx, cmd); err != nil {
		return nil, err
	}

	if q.logger != nil {
		q.logger.Info().
			Str("device_id", deviceID).
			Str("command_id", cmd.ID).
			Str("command_type", string(commandType)).
			Msg("command enqueued")
	}

	return cmd, nil
}

// Claim transitions up to MaxClaimBatch due commands to SENT for delivery
// in a poll response.
func (q *Queue) Claim(ctx context.Context, deviceID string) ([]models.Command, error) {
	return q.store.ClaimDueCommands(ctx, deviceID, MaxClaimBatch)
}

// Ack marks device-confirmed command ids ACKED. Idempotent: re-sent and
// unknown ids are no-ops.
func (q *Queue) Ack(ctx context.Context, deviceID string, commandIDs []string) error {
	if len(commandIDs) == 0 {
		return nil
	}

	return q.store.AckCommands(ctx, deviceID, commandIDs)
}

// Cancel is the operator-side PENDING|SENT -> FAILED transition.
func (q *Queue) Cancel(ctx context.Context, deviceID, commandID string) error {
	return q.store.FailCommand(ctx, deviceID, commandID)
}
