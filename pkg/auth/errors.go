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

package auth

import "errors"

// Protocol failures. Error strings double as the machine-readable codes
// returned to devices; they intentionally say nothing beyond the code name.
var (
	ErrInvalidDeviceHeader  = errors.New("invalid_device_header")
	ErrNonceRequired        = errors.New("nonce_required")
	ErrSignatureRequired    = errors.New("signature_required")
	ErrTimestampOutOfWindow = errors.New("timestamp_out_of_window")
	ErrReplayDetected       = errors.New("replay_detected")
	ErrSecretIntegrity      = errors.New("secret_integrity_check_failed")
	ErrInvalidSignature     = errors.New("invalid_signature")
)
