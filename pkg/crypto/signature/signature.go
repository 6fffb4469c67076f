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

// Package signature implements HMAC-SHA-256 request signing for device
// polls plus the one-way secret fingerprint used as an independent
// integrity check on stored secrets.
//
// Signatures cover the exact byte sequence of the request body. The caller
// owns canonicalization: device firmware must serialize the body with
// deterministic key ordering and send those same bytes, and the server
// verifies against the bytes it received without re-serializing.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// SignHex computes the lowercase hex HMAC-SHA-256 of body under secret.
func SignHex(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHex reports whether candidateHex is the valid signature of body
// under secret. The comparison is constant-time; a length mismatch
// short-circuits to false without leaking timing about the expected value.
func VerifyHex(body []byte, secret, candidateHex string) bool {
	candidate := strings.ToLower(strings.TrimSpace(candidateHex))
	if candidate == "" {
		return false
	}

	expected := SignHex(body, secret)

	return subtle.ConstantTimeCompare([]byte(expected), []byte(candidate)) == 1
}

// Fingerprint returns the SHA-256 hex digest of a device secret. Business
// logic compares fingerprints, never plaintext secrets, to detect partial
// rotations or a broken decryption path before signatures are trusted.
func Fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))

	return hex.EncodeToString(sum[:])
}

// FingerprintEqual compares two fingerprints in constant time.
func FingerprintEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
