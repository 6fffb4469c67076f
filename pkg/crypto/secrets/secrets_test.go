package secrets

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(n int) []byte {
	key := make([]byte, n)
	for i := range key {
		key[i] = byte(i + 1)
	}

	return key
}

func TestRoundTrip(t *testing.T) {
	for _, size := range []int{16, 24, 32} {
		c, err := NewCipher(testKey(size))
		require.NoError(t, err)

		for _, secret := range []string{"", "s", "a-typical-device-secret-of-32b!!", "unicode-ключ"} {
			envelope, err := c.Encrypt(secret)
			require.NoError(t, err)

			got, err := c.Decrypt(envelope)
			require.NoError(t, err)
			assert.Equal(t, secret, got)
		}
	}
}

func TestEncryptNonceFreshness(t *testing.T) {
	c, err := NewCipher(testKey(32))
	require.NoError(t, err)

	first, err := c.Encrypt("same-input")
	require.NoError(t, err)

	second, err := c.Encrypt("same-input")
	require.NoError(t, err)

	assert.False(t, bytes.Equal(first, second))
}

func TestDecryptFailsClosed(t *testing.T) {
	c, err := NewCipher(testKey(32))
	require.NoError(t, err)

	envelope, err := c.Encrypt("device-secret")
	require.NoError(t, err)

	t.Run("truncated", func(t *testing.T) {
		_, err := c.Decrypt(envelope[:nonceLength-1])
		require.ErrorIs(t, err, ErrCiphertextTooShort)
	})

	t.Run("corrupted tag", func(t *testing.T) {
		mutated := append([]byte(nil), envelope...)
		mutated[len(mutated)-1] ^= 0x01

		_, err := c.Decrypt(mutated)
		require.Error(t, err)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := NewCipher(testKey(16))
		require.NoError(t, err)

		_, err = other.Decrypt(envelope)
		require.Error(t, err)
	})
}

func TestNewCipherRejectsBadKeyLength(t *testing.T) {
	for _, size := range []int{0, 8, 15, 33, 64} {
		_, err := NewCipher(testKey(size))
		require.ErrorIs(t, err, ErrInvalidKeyLength)
	}
}

func TestNewCipherFromBase64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(testKey(32))

	c, err := NewCipherFromBase64(encoded)
	require.NoError(t, err)
	require.NotNil(t, c)

	_, err = NewCipherFromBase64("%%%not-base64%%%")
	require.Error(t, err)

	_, err = NewCipherFromBase64(base64.StdEncoding.EncodeToString(testKey(10)))
	require.ErrorIs(t, err, ErrInvalidKeyLength)
}
