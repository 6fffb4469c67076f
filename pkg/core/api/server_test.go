package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/feedsync/pkg/auth"
	"github.com/carverauto/feedsync/pkg/core"
	"github.com/carverauto/feedsync/pkg/crypto/secrets"
	"github.com/carverauto/feedsync/pkg/crypto/signature"
	"github.com/carverauto/feedsync/pkg/db/dbtest"
	"github.com/carverauto/feedsync/pkg/dispatch"
	"github.com/carverauto/feedsync/pkg/logger"
	"github.com/carverauto/feedsync/pkg/models"
	"github.com/carverauto/feedsync/pkg/ratelimit"
)

const testAdminKey = "admin-test-key"

func newTestServer(t *testing.T, signatureEnabled bool, maxPollPerMinute int) (*httptest.Server, *dbtest.MemStore) {
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

	svc := core.NewService(
		store,
		auth.New(signatureEnabled, cfg.NonceWindowSec, store, log),
		ratelimit.NewPollLimiter(cfg.MaxPollPerMinute),
		cipher,
		dispatch.NewQueue(store, log),
		cfg,
		log,
	)

	srv := httptest.NewServer(NewServer(svc, log, WithAdminAPIKey(testAdminKey)).Router())
	t.Cleanup(srv.Close)

	return srv, store
}

func adminRequest(t *testing.T, srv *httptest.Server, method, path string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testAdminKey)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)

	return resp
}

func decodeInto(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()

	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func createDevice(t *testing.T, srv *httptest.Server, deviceID string) core.DeviceCredentials {
	t.Helper()

	resp := adminRequest(t, srv, http.MethodPost, "/api/admin/devices", core.CreateDeviceInput{
		DeviceID: deviceID,
		Name:     deviceID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var creds core.DeviceCredentials

	decodeInto(t, resp, &creds)

	return creds
}

func poll(t *testing.T, srv *httptest.Server, body []byte, headers map[string]string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/device/poll", bytes.NewReader(body))
	require.NoError(t, err)

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)

	return resp
}

func TestAdminRoutesRequireAPIKey(t *testing.T) {
	srv, _ := newTestServer(t, false, 6)

	resp, err := srv.Client().Get(srv.URL + "/api/admin/devices")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPollUnknownDeviceOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, false, 6)

	body, _ := json.Marshal(models.PollRequest{DeviceID: "ghost", TS: time.Now().Unix()})

	resp := poll(t, srv, body, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var e struct {
		Error string `json:"error"`
	}

	decodeInto(t, resp, &e)
	assert.Equal(t, "unknown_device", e.Error)
}

func TestPollBootstrapScenario(t *testing.T) {
	srv, _ := newTestServer(t, false, 6)
	createDevice(t, srv, "feeder-001")

	body, _ := json.Marshal(models.PollRequest{
		DeviceID: "feeder-001",
		TS:       time.Now().Unix(),
		Status:   &models.DeviceStatus{FW: "1.4.2", RSSI: -58},
	})

	resp := poll(t, srv, body, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pr models.PollResponse

	decodeInto(t, resp, &pr)
	assert.Equal(t, 60, pr.IntervalSec)
	assert.NotZero(t, pr.ServerTime)
	assert.Empty(t, pr.Commands)
}

func TestCommandDeliveryScenario(t *testing.T) {
	srv, store := newTestServer(t, false, 60)
	createDevice(t, srv, "feeder-001")

	resp := adminRequest(t, srv, http.MethodPost, "/api/admin/devices/feeder-001/commands", map[string]interface{}{
		"commandType": "FEED_NOW",
		"payloadJson": map[string]int{"portionMs": 1500},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var cmd models.Command

	decodeInto(t, resp, &cmd)
	require.NotEmpty(t, cmd.ID)

	pollBody := func(ack ...string) []byte {
		b, err := json.Marshal(models.PollRequest{DeviceID: "feeder-001", TS: time.Now().Unix(), Ack: ack})
		require.NoError(t, err)

		return b
	}

	// First poll delivers the command.
	first := poll(t, srv, pollBody(), nil)
	require.Equal(t, http.StatusOK, first.StatusCode)

	var pr models.PollResponse

	decodeInto(t, first, &pr)
	require.Len(t, pr.Commands, 1)
	assert.Equal(t, cmd.ID, pr.Commands[0].ID)
	assert.JSONEq(t, `{"portionMs":1500}`, string(pr.Commands[0].Payload))

	// Unacked: the next poll re-delivers it.
	second := poll(t, srv, pollBody(), nil)
	require.Equal(t, http.StatusOK, second.StatusCode)
	decodeInto(t, second, &pr)
	require.Len(t, pr.Commands, 1)
	assert.Equal(t, cmd.ID, pr.Commands[0].ID)

	// Acked: gone for good.
	third := poll(t, srv, pollBody(cmd.ID), nil)
	require.Equal(t, http.StatusOK, third.StatusCode)
	decodeInto(t, third, &pr)
	assert.Empty(t, pr.Commands)

	stored := store.CommandByID(cmd.ID)
	require.NotNil(t, stored)
	assert.Equal(t, models.CommandAcked, stored.Status)
}

func TestSignedPollOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, true, 6)
	creds := createDevice(t, srv, "feeder-001")

	body, _ := json.Marshal(models.PollRequest{DeviceID: "feeder-001", TS: time.Now().Unix()})

	headers := map[string]string{
		"X-Device-Id": "feeder-001",
		"X-Nonce":     "nonce-http-1",
		"X-Sign":      signature.SignHex(body, creds.Secret),
	}

	resp := poll(t, srv, body, headers)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pr models.PollResponse

	decodeInto(t, resp, &pr)
	assert.Equal(t, 60, pr.IntervalSec)

	// Same nonce again: replay.
	replay := poll(t, srv, body, headers)
	assert.Equal(t, http.StatusForbidden, replay.StatusCode)

	var e struct {
		Error string `json:"error"`
	}

	decodeInto(t, replay, &e)
	assert.Equal(t, "replay_detected", e.Error)
}

func TestPollRateLimitOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, false, 2)
	createDevice(t, srv, "feeder-001")

	body, _ := json.Marshal(models.PollRequest{DeviceID: "feeder-001", TS: time.Now().Unix()})

	for i := 0; i < 2; i++ {
		resp := poll(t, srv, body, nil)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := poll(t, srv, body, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	var e struct {
		Error string `json:"error"`
	}

	decodeInto(t, resp, &e)
	assert.Equal(t, "poll_rate_limit_exceeded", e.Error)
}

func TestProfileAndScheduleRoutes(t *testing.T) {
	srv, _ := newTestServer(t, false, 60)
	createDevice(t, srv, "feeder-001")

	resp := adminRequest(t, srv, http.MethodPut, "/api/admin/devices/feeder-001/profiles", map[string]interface{}{
		"name":             "default",
		"defaultPortionMs": 1200,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var profile models.Profile

	decodeInto(t, resp, &profile)
	require.NotEmpty(t, profile.ID)

	resp = adminRequest(t, srv, http.MethodPut, "/api/admin/devices/feeder-001/active-profile", map[string]string{
		"profileName": "default",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = adminRequest(t, srv, http.MethodPut, fmt.Sprintf("/api/admin/profiles/%s/schedule", profile.ID), map[string]interface{}{
		"slots": []map[string]int{
			{"hh": 8, "mm": 0, "portionMs": 1000},
			{"hh": 18, "mm": 30, "portionMs": 1500},
		},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The device sees the full snapshot on its next poll.
	body, _ := json.Marshal(models.PollRequest{DeviceID: "feeder-001", TS: time.Now().Unix()})

	pollResp := poll(t, srv, body, nil)
	require.Equal(t, http.StatusOK, pollResp.StatusCode)

	var pr models.PollResponse

	decodeInto(t, pollResp, &pr)
	assert.Equal(t, "default", pr.Config.ActiveProfile)
	require.Len(t, pr.Config.Profiles, 1)
	assert.Equal(t, 1200, pr.Config.Profiles[0].DefaultPortionMs)
	require.Len(t, pr.Config.Schedule, 2)
	assert.Equal(t, 18, pr.Config.Schedule[1].HH)
}

func TestRotateSecretRoute(t *testing.T) {
	srv, store := newTestServer(t, true, 60)
	creds := createDevice(t, srv, "feeder-001")

	resp := adminRequest(t, srv, http.MethodPost, "/api/admin/devices/feeder-001/rotate-secret", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rotated core.DeviceCredentials

	decodeInto(t, resp, &rotated)
	require.NotEqual(t, creds.Secret, rotated.Secret)

	// Old secret no longer signs successfully; the new one does.
	body, _ := json.Marshal(models.PollRequest{DeviceID: "feeder-001", TS: time.Now().Unix()})

	stale := poll(t, srv, body, map[string]string{
		"X-Device-Id": "feeder-001",
		"X-Nonce":     "nonce-old",
		"X-Sign":      signature.SignHex(body, creds.Secret),
	})
	stale.Body.Close()
	assert.Equal(t, http.StatusForbidden, stale.StatusCode)

	fresh := poll(t, srv, body, map[string]string{
		"X-Device-Id": "feeder-001",
		"X-Nonce":     "nonce-new",
		"X-Sign":      signature.SignHex(body, rotated.Secret),
	})
	fresh.Body.Close()
	assert.Equal(t, http.StatusOK, fresh.StatusCode)

	audits := store.LogsOfType("feeder-001", "INFO")
	require.NotEmpty(t, audits)
	assert.Equal(t, "Secret rotated", audits[len(audits)-1].Message)
}

func TestCancelCommandRoute(t *testing.T) {
	srv, store := newTestServer(t, false, 60)
	createDevice(t, srv, "feeder-001")

	resp := adminRequest(t, srv, http.MethodPost, "/api/admin/devices/feeder-001/commands", map[string]interface{}{
		"commandType": "REBOOT",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var cmd models.Command

	decodeInto(t, resp, &cmd)

	del := adminRequest(t, srv, http.MethodDelete, "/api/admin/devices/feeder-001/commands/"+cmd.ID, nil)
	del.Body.Close()
	require.Equal(t, http.StatusNoContent, del.StatusCode)

	stored := store.CommandByID(cmd.ID)
	require.NotNil(t, stored)
	assert.Equal(t, models.CommandFailed, stored.Status)

	// A canceled command never reaches the device.
	body, _ := json.Marshal(models.PollRequest{DeviceID: "feeder-001", TS: time.Now().Unix()})

	pollResp := poll(t, srv, body, nil)
	require.Equal(t, http.StatusOK, pollResp.StatusCode)

	var pr models.PollResponse

	decodeInto(t, pollResp, &pr)
	assert.Empty(t, pr.Commands)
}
