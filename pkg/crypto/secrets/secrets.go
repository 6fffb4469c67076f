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

// Package secrets wraps AES-GCM envelope encryption for device secrets.
// Secrets must be recoverable (HMAC verification needs the plaintext) yet
// never stored in clear, so they live in the database as
// nonce || ciphertext || tag, keyed by a server-held master key.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const nonceLength = 12

var (
	// ErrInvalidKeyLength indicates the master key is not an AES key size.
	ErrInvalidKeyLength = errors.New("secrets: master key must decode to 16, 24, or 32 bytes")
	// ErrCiphertextTooShort indicates the envelope is shorter than the nonce.
	ErrCiphertextTooShort = errors.New("secrets: envelope too short")
)

// Cipher encrypts and decrypts device secret envelopes.
type Cipher struct {
	key []byte
}

// NewCipher constructs a Cipher from raw key bytes (16, 24, or 32).
func NewCipher(key []byte) (*Cipher, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrInvalidKeyLength
	}

	buf := make([]byte, len(key))
	copy(buf, key)

	return &Cipher{key: buf}, nil
}

// NewCipherFromBase64 decodes the environment-provided master key and
// constructs a Cipher from it.
func NewCipherFromBase64(encoded string) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("secrets: decode master key: %w", err)
	}

	return NewCipher(key)
}

// Encrypt seals the plaintext secret and returns the envelope bytes with a
// freshly random nonce prepended. Two calls with the same input never
// produce the same envelope.
func (c *Cipher) Encrypt(plaintext string) ([]byte, error) {
	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("secrets: generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens an envelope produced by Encrypt. It fails closed on
// truncated input or authentication tag mismatch.
func (c *Cipher) Decrypt(envelope []byte) (string, error) {
	if len(envelope) < nonceLength {
		return "", ErrCiphertextTooShort
	}

	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonce := envelope[:nonceLength]
	ciphertext := envelope[nonceLength:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("secrets: decrypt envelope: %w", err)
	}

	return string(plaintext), nil
}

func (c *Cipher) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("secrets: create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: init gcm: %w", err)
	}

	return gcm, nil
}
