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

import "errors"

var (

	// Lookup errors.

	ErrDeviceNotFound  = errors.New("device not found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrCommandNotFound = errors.New("command not found")

	// Write conflicts.

	ErrDeviceExists = errors.New("device id already exists")

	// Validation errors.

	ErrDeviceIDRequired  = errors.New("device id is required")
	ErrCommandIDInvalid  = errors.New("command id is not a valid uuid")
	ErrProfileIDInvalid  = errors.New("profile id is not a valid uuid")
	ErrDatabaseConfigNil = errors.New("database configuration is nil")
)
