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

// Package auth implements the device authentication protocol for polls.
//
// The protocol is selected once at startup: Enforcer runs the full header,
// timestamp-window, replay, secret-integrity, and signature checks;
// Permissive performs none of them, preserving a frictionless bootstrap
// mode where only device existence is required (checked by the caller).
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/carverauto/feedsync/pkg/crypto/signature"
	"github.com/carverauto/feedsync/pkg/logger"
)

var nowFunc = time.Now

// NonceStore is the persistence the replay guard needs. Registration must
// be an atomic insert-if-absent enforced by the backing store.
type NonceStore interface {
	PurgeNoncesBefore(ctx context.Context, minEpochExclusive int64) error
	RegisterNonce(ctx context.Context, deviceID, nonce string, tsEpoch int64) (bool, error)
}

// VerifyInput carries everything one poll authentication needs. Body is the
// exact received byte sequence; the secret arrives already decrypted from
// its storage envelope.
type VerifyInput struct {
	DeviceID        string
	HeaderDeviceID  string
	Nonce           string
	Signature       string
	RequestTS       int64
	Body            []byte
	SecretHash      string
	DecryptedSecret string
}

// Authenticator validates a poll before any state mutation.
type Authenticator interface {
	Verify(ctx context.Context, in *VerifyInput) error
	Enabled() bool
}

// New selects the protocol implementation from the startup flag.
func New(signatureEnabled bool, windowSec int64, nonces NonceStore, log logger.Logger) Authenticator {
	if !signatureEnabled {
		return &Permissive{}
	}

	return &Enforcer{
		windowSec: windowSec,
		nonces:    nonces,
		logger:    log,
	}
}

// Permissive skips all protocol checks.
type Permissive struct{}

func (*Permissive) Verify(_ context.Context, _ *VerifyInput) error { return nil }
func (*Permissive) Enabled() bool                                  { return false }

// Enforcer runs the full check sequence, stopping on first failure. Cheap
// structural checks run before cryptographic ones, and replay registration
// happens before signature verification so a replayed-but-differently-signed
// request still lands in the nonce table.
type Enforcer struct {
	windowSec int64
	nonces    NonceStore
	logger    logger.Logger
}

func (*Enforcer) Enabled() bool { return true }

func (e *Enforcer) Verify(ctx context.Context, in *VerifyInput) error {
	if strings.TrimSpace(in.HeaderDeviceID) == "" || in.DeviceID != strings.TrimSpace(in.HeaderDeviceID) {
		return ErrInvalidDeviceHeader
	}

	if strings.TrimSpace(in.Nonce) == "" {
		return ErrNonceRequired
	}

	if strings.TrimSpace(in.Signature) == "" {
		return ErrSignatureRequired
	}

	now := nowFunc().Unix()

	delta := now - in.RequestTS
	if delta < 0 {
		delta = -delta
	}

	if delta > e.windowSec {
		return ErrTimestampOutOfWindow
	}

	if err := e.nonces.PurgeNoncesBefore(ctx, now-e.windowSec); err != nil {
		return err
	}

	accepted, err := e.nonces.RegisterNonce(ctx, in.DeviceID, strings.TrimSpace(in.Nonce), in.RequestTS)
	if err != nil {
		return err
	}

	if !accepted {
		if e.logger != nil {
			e.logger.Warn().Str("device_id", in.DeviceID).Msg("replayed nonce rejected")
		}

		return ErrReplayDetected
	}

	if !signature.FingerprintEqual(signature.Fingerprint(in.DecryptedSecret), in.SecretHash) {
		return ErrSecretIntegrity
	}

	if !signature.VerifyHex(in.Body, in.DecryptedSecret, in.Signature) {
		return ErrInvalidSignature
	}

	return nil
}
