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

package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/carverauto/feedsync/pkg/core"
	"github.com/carverauto/feedsync/pkg/models"
)

// Device protocol headers.
const (
	headerDeviceID  = "X-Device-Id"
	headerNonce     = "X-Nonce"
	headerSignature = "X-Sign"
)

// maxPollBodyBytes bounds a poll request body. Large log backlogs fit
// comfortably; anything bigger is not a feeder.
const maxPollBodyBytes = 1 << 20

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	// The signature covers the exact received bytes, so the body is read
	// raw first and unmarshaled second.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPollBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_body"})

		return
	}

	var req models.PollRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_body"})

		return
	}

	resp, err := s.core.Poll(r.Context(), &req, &core.PollHeaders{
		DeviceID:  r.Header.Get(headerDeviceID),
		Nonce:     r.Header.Get(headerNonce),
		Signature: r.Header.Get(headerSignature),
		Body:      body,
	})
	if err != nil {
		s.writeServiceError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, resp)
}
