package signature

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	bodies := [][]byte{
		[]byte(""),
		[]byte("{}"),
		[]byte(`{"deviceId":"feeder-001","ts":1700000000}`),
	}
	secrets := []string{"s", "a-longer-device-secret", "пароль"}

	for _, body := range bodies {
		for _, secret := range secrets {
			sig := SignHex(body, secret)
			assert.True(t, VerifyHex(body, secret, sig))
		}
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"deviceId":"feeder-001"}`)

	sig := SignHex(body, "secret-a")
	assert.False(t, VerifyHex(body, "secret-b", sig))
}

func TestVerifyRejectsMutatedBody(t *testing.T) {
	body := []byte(`{"deviceId":"feeder-001","ts":1700000000}`)
	sig := SignHex(body, "secret")

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		assert.False(t, VerifyHex(mutated, "secret", sig), "mutation at byte %d accepted", i)
	}
}

func TestVerifyHexInputHandling(t *testing.T) {
	body := []byte("payload")
	sig := SignHex(body, "secret")

	assert.True(t, VerifyHex(body, "secret", strings.ToUpper(sig)), "uppercase hex should verify")
	assert.True(t, VerifyHex(body, "secret", "  "+sig+"\n"), "surrounding whitespace should be tolerated")
	assert.False(t, VerifyHex(body, "secret", ""))
	assert.False(t, VerifyHex(body, "secret", sig[:10]), "length mismatch must fail")
}

func TestSignHexShape(t *testing.T) {
	sig := SignHex([]byte("x"), "k")
	require.Len(t, sig, 64)

	_, err := hex.DecodeString(sig)
	require.NoError(t, err)
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("device-secret")
	require.Len(t, fp, 64)

	assert.Equal(t, fp, Fingerprint("device-secret"))
	assert.NotEqual(t, fp, Fingerprint("device-secret2"))
	assert.True(t, FingerprintEqual(fp, Fingerprint("device-secret")))
	assert.False(t, FingerprintEqual(fp, Fingerprint("other")))
}
