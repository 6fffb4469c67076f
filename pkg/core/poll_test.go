package core

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/feedsync/pkg/auth"
	"github.com/carverauto/feedsync/pkg/crypto/secrets"
	"github.com/carverauto/feedsync/pkg/crypto/signature"
	"github.com/carverauto/feedsync/pkg/db/dbtest"
	"github.com/carverauto/feedsync/pkg/dispatch"
	"github.com/carverauto/feedsync/pkg/logger"
	"github.com/carverauto/feedsync/pkg/models"
	"github.com/carverauto/feedsync/pkg/ratelimit"
)

const testDeviceSecret = "unit-test-device-secret"

func newTestService(t *testing.T, signatureEnabled bool, maxPollPerMinute int) (*Service, *dbtest.MemStore) {
	t.Helper()

	store := dbtest.NewMemStore()
	log := logger.NewTestLogger()

	cipher, err := secrets.NewCipher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	cfg := models.DeviceAuthConfig{
		SignatureEnabled: signatureEnabled,
		PollIntervalSec:  60,
		NonceWindowSec:   300,
		MaxPollPerMinute: maxPollPerMinute,
	}

	svc := NewService(
		store,
		auth.New(signatureEnabled, cfg.NonceWindowSec, store, log),
		ratelimit.NewPollLimiter(cfg.MaxPollPerMinute),
		cipher,
		dispatch.NewQueue(store, log),
		cfg,
		log,
	)

	return svc, store
}

func registerTestDevice(t *testing.T, svc *Service, store *dbtest.MemStore, deviceID string) {
	t.Helper()

	envelope, err := svc.cipher.Encrypt(testDeviceSecret)
	require.NoError(t, err)

	require.NoError(t, store.CreateDevice(context.Background(), &models.Device{
		ID:              deviceID,
		Name:            deviceID,
		SecretHash:      signature.Fingerprint(testDeviceSecret),
		EncryptedSecret: envelope,
	}))
}

func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()

	var apiErr *APIError

	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, status, apiErr.Status)
	assert.Equal(t, code, apiErr.Code)
}

func TestPollRequiresDeviceID(t *testing.T) {
	svc, _ := newTestService(t, false, 6)

	_, err := svc.Poll(context.Background(), &models.PollRequest{}, nil)
	requireAPIError(t, err, 400, CodeDeviceIDRequired)
}

func TestPollUnknownDevice(t *testing.T) {
	svc, _ := newTestService(t, false, 6)

	_, err := svc.Poll(context.Background(), &models.PollRequest{DeviceID: "ghost"}, nil)
	requireAPIError(t, err, 401, CodeUnknownDevice)
}

func TestPollRateLimitExceeded(t *testing.T) {
	svc, store := newTestService(t, false, 1)
	registerTestDevice(t, svc, store, "feeder-001")

	req := &models.PollRequest{DeviceID: "feeder-001", TS: time.Now().Unix()}

	_, err := svc.Poll(context.Background(), req, nil)
	require.NoError(t, err)

	_, err = svc.Poll(context.Background(), req, nil)
	requireAPIError(t, err, 429, CodePollRateLimitExceeded)
}

func TestPollPermissiveReturnsIntervalAndSnapshot(t *testing.T) {
	svc, store := newTestService(t, false, 6)
	registerTestDevice(t, svc, store, "feeder-001")

	resp, err := svc.Poll(context.Background(), &models.PollRequest{
		DeviceID: "feeder-001",
		TS:       time.Now().Unix(),
		Status:   &models.DeviceStatus{FW: "1.4.2", RSSI: -61},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 60, resp.IntervalSec)
	assert.NotZero(t, resp.ServerTime)
	assert.Empty(t, resp.Commands)
	assert.Empty(t, resp.Config.Profiles)

	device, err := store.GetDevice(context.Background(), "feeder-001")
	require.NoError(t, err)
	require.NotNil(t, device.LastSeenAt)
	assert.Equal(t, "1.4.2", device.FirmwareVersion)
	assert.JSONEq(t, `{"fw":"1.4.2","rssi":-61}`, string(device.StatusJSON))
}

func TestPollWithoutStatusKeepsPreviousSnapshot(t *testing.T) {
	svc, store := newTestService(t, false, 6)
	registerTestDevice(t, svc, store, "feeder-001")

	_, err := svc.Poll(context.Background(), &models.PollRequest{
		DeviceID: "feeder-001",
		TS:       time.Now().Unix(),
		Status:   &models.DeviceStatus{FW: "1.4.2", RSSI: -61},
	}, nil)
	require.NoError(t, err)

	_, err = svc.Poll(context.Background(), &models.PollRequest{
		DeviceID: "feeder-001",
		TS:       time.Now().Unix(),
	}, nil)
	require.NoError(t, err)

	device, err := store.GetDevice(context.Background(), "feeder-001")
	require.NoError(t, err)
	require.NotNil(t, device.LastSeenAt)
	assert.Equal(t, "1.4.2", device.FirmwareVersion, "status-less poll must not wipe firmware")
	assert.JSONEq(t, `{"fw":"1.4.2","rssi":-61}`, string(device.StatusJSON), "status-less poll must not wipe the snapshot")
}

func TestPollStoresLogsWithNormalizedTypes(t *testing.T) {
	svc, store := newTestService(t, false, 6)
	registerTestDevice(t, svc, store, "feeder-001")

	_, err := svc.Poll(context.Background(), &models.PollRequest{
		DeviceID: "feeder-001",
		TS:       time.Now().Unix(),
		Log: []models.DeviceLogRow{
			{TS: 1756200000, Type: "feed", Msg: "portion dispensed"},
			{Type: "", Msg: "no type, no timestamp"},
		},
	}, nil)
	require.NoError(t, err)

	feeds := store.LogsOfType("feeder-001", "FEED")
	require.Len(t, feeds, 1)
	assert.Equal(t, time.Unix(1756200000, 0).UTC(), feeds[0].TS)
	assert.Equal(t, "portion dispensed", feeds[0].Message)

	infos := store.LogsOfType("feeder-001", "INFO")
	require.Len(t, infos, 1)
	assert.False(t, infos[0].TS.IsZero())
}

func TestPollDeliversUntilAcked(t *testing.T) {
	svc, store := newTestService(t, false, 6)
	registerTestDevice(t, svc, store, "feeder-001")

	cmd, err := svc.EnqueueCommand(context.Background(), "feeder-001", models.CommandFeedNow, json.RawMessage(`{"portionMs":1500}`))
	require.NoError(t, err)

	first, err := svc.Poll(context.Background(), &models.PollRequest{DeviceID: "feeder-001", TS: time.Now().Unix()}, nil)
	require.NoError(t, err)
	require.Len(t, first.Commands, 1)
	assert.Equal(t, cmd.ID, first.Commands[0].ID)
	assert.Equal(t, models.CommandFeedNow, first.Commands[0].CommandType)

	// No ack yet: the same command comes back.
	second, err := svc.Poll(context.Background(), &models.PollRequest{DeviceID: "feeder-001", TS: time.Now().Unix()}, nil)
	require.NoError(t, err)
	require.Len(t, second.Commands, 1)
	assert.Equal(t, cmd.ID, second.Commands[0].ID)

	third, err := svc.Poll(context.Background(), &models.PollRequest{
		DeviceID: "feeder-001",
		TS:       time.Now().Unix(),
		Ack:      []string{cmd.ID},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, third.Commands)

	stored := store.CommandByID(cmd.ID)
	require.NotNil(t, stored)
	assert.Equal(t, models.CommandAcked, stored.Status)
}

func TestPollSignedHappyPath(t *testing.T) {
	svc, store := newTestService(t, true, 6)
	registerTestDevice(t, svc, store, "feeder-001")

	req := &models.PollRequest{DeviceID: "feeder-001", TS: time.Now().Unix()}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := svc.Poll(context.Background(), req, &PollHeaders{
		DeviceID:  "feeder-001",
		Nonce:     "nonce-1",
		Signature: signature.SignHex(body, testDeviceSecret),
		Body:      body,
	})
	require.NoError(t, err)
	assert.Equal(t, 60, resp.IntervalSec)
}

func TestPollSignedRejections(t *testing.T) {
	svc, store := newTestService(t, true, 60)
	registerTestDevice(t, svc, store, "feeder-001")

	sign := func(req *models.PollRequest) ([]byte, string) {
		body, err := json.Marshal(req)
		require.NoError(t, err)

		return body, signature.SignHex(body, testDeviceSecret)
	}

	t.Run("header mismatch", func(t *testing.T) {
		req := &models.PollRequest{DeviceID: "feeder-001", TS: time.Now().Unix()}
		body, sig := sign(req)

		_, err := svc.Poll(context.Background(), req, &PollHeaders{
			DeviceID: "other", Nonce: "n-mismatch", Signature: sig, Body: body,
		})
		requireAPIError(t, err, 401, "invalid_device_header")
	})

	t.Run("stale timestamp", func(t *testing.T) {
		req := &models.PollRequest{DeviceID: "feeder-001", TS: time.Now().Unix() - 3600}
		body, sig := sign(req)

		_, err := svc.Poll(context.Background(), req, &PollHeaders{
			DeviceID: "feeder-001", Nonce: "n-stale", Signature: sig, Body: body,
		})
		requireAPIError(t, err, 403, "timestamp_out_of_window")
	})

	t.Run("replayed nonce", func(t *testing.T) {
		req := &models.PollRequest{DeviceID: "feeder-001", TS: time.Now().Unix()}
		body, sig := sign(req)
		hdr := &PollHeaders{DeviceID: "feeder-001", Nonce: "n-replay", Signature: sig, Body: body}

		_, err := svc.Poll(context.Background(), req, hdr)
		require.NoError(t, err)

		_, err = svc.Poll(context.Background(), req, hdr)
		requireAPIError(t, err, 403, "replay_detected")
	})

	t.Run("tampered body", func(t *testing.T) {
		req := &models.PollRequest{DeviceID: "feeder-001", TS: time.Now().Unix()}
		_, sig := sign(req)
		tampered := []byte(`{"deviceId":"feeder-001","ts":0,"ack":["evil"]}`)

		_, err := svc.Poll(context.Background(), req, &PollHeaders{
			DeviceID: "feeder-001", Nonce: "n-tamper", Signature: sig, Body: tampered,
		})
		requireAPIError(t, err, 403, "invalid_signature")
	})
}
