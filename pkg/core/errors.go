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

package core

import (
	"errors"
	"net/http"

	"github.com/carverauto/feedsync/pkg/auth"
)

// Machine-readable error codes surfaced to clients. Codes deliberately
// carry no detail beyond their name, to limit what a probing client can
// learn from failures.
const (
	CodeDeviceIDRequired       = "device_id_required"
	CodePollRateLimitExceeded  = "poll_rate_limit_exceeded"
	CodeUnknownDevice          = "unknown_device"
	CodeDeviceIDExists         = "device_id_exists"
	CodeDeviceNotFound         = "device_not_found"
	CodeCommandNotFound        = "command_not_found"
	CodeProfileNotFound        = "profile_not_found"
	CodeUnknownCommandType     = "unknown_command_type"
	CodeNameRequired           = "name_required"
	CodeProfileNameRequired    = "profile_name_required"
	CodePortionMustBePositive  = "portion_ms_must_be_positive"
	CodeHourOutOfRange         = "hh_must_be_0_23"
	CodeMinuteOutOfRange       = "mm_must_be_0_59"
	CodeInternalError          = "internal_error"
)

// APIError is a client-visible failure: an HTTP status plus a short code.
// Anything that is not an APIError is an internal fault and is reported to
// the client only as CodeInternalError.
type APIError struct {
	Status int
	Code   string
}

func (e *APIError) Error() string { return e.Code }

func BadRequest(code string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: code}
}

func Unauthorized(code string) *APIError {
	return &APIError{Status: http.StatusUnauthorized, Code: code}
}

func Forbidden(code string) *APIError {
	return &APIError{Status: http.StatusForbidden, Code: code}
}

func NotFound(code string) *APIError {
	return &APIError{Status: http.StatusNotFound, Code: code}
}

func Conflict(code string) *APIError {
	return &APIError{Status: http.StatusConflict, Code: code}
}

func TooManyRequests(code string) *APIError {
	return &APIError{Status: http.StatusTooManyRequests, Code: code}
}

// authError maps a protocol failure to its client-visible form. Structural
// header failures are unauthorized; failures of checks that require knowing
// the secret or the replay window are forbidden, matching how much the
// caller has proven about itself by that point.
func authError(err error) *APIError {
	switch {
	case errors.Is(err, auth.ErrInvalidDeviceHeader),
		errors.Is(err, auth.ErrNonceRequired),
		errors.Is(err, auth.ErrSignatureRequired):
		return Unauthorized(err.Error())
	case errors.Is(err, auth.ErrTimestampOutOfWindow),
		errors.Is(err, auth.ErrReplayDetected),
		errors.Is(err, auth.ErrSecretIntegrity),
		errors.Is(err, auth.ErrInvalidSignature):
		return Forbidden(err.Error())
	default:
		return nil
	}
}
