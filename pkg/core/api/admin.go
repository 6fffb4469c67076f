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
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/carverauto/feedsync/pkg/core"
	"github.com/carverauto/feedsync/pkg/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func decodeBody(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_body"})

		return false
	}

	return true
}

func listLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}

	if limit > maxListLimit {
		return maxListLimit
	}

	return limit
}

func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var in core.CreateDeviceInput
	if !decodeBody(w, r, &in) {
		return
	}

	creds, err := s.core.CreateDevice(r.Context(), &in)
	if err != nil {
		s.writeServiceError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, creds)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.core.ListDevices(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		s.writeServiceError(w, r, err)

		return
	}

	if devices == nil {
		devices = []models.DeviceSummary{}
	}

	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleRotateSecret(w http.ResponseWriter, r *http.Request) {
	creds, err := s.core.RotateSecret(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, creds)
}

type enqueueCommandRequest struct {
	CommandType models.CommandType `json:"commandType"`
	Payload     json.RawMessage    `json:"payloadJson,omitempty"`
}

func (s *Server) handleEnqueueCommand(w http.ResponseWriter, r *http.Request) {
	var in enqueueCommandRequest
	if !decodeBody(w, r, &in) {
		return
	}

	cmd, err := s.core.EnqueueCommand(r.Context(), mux.Vars(r)["id"], in.CommandType, in.Payload)
	if err != nil {
		s.writeServiceError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, cmd)
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	cmds, err := s.core.ListCommands(r.Context(), mux.Vars(r)["id"], listLimit(r))
	if err != nil {
		s.writeServiceError(w, r, err)

		return
	}

	if cmds == nil {
		cmds = []models.Command{}
	}

	writeJSON(w, http.StatusOK, cmds)
}

func (s *Server) handleCancelCommand(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := s.core.CancelCommand(r.Context(), vars["id"], vars["cmdId"]); err != nil {
		s.writeServiceError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type feedNowRequest struct {
	PortionMs *int `json:"portionMs,omitempty"`
}

func (s *Server) handleFeedNow(w http.ResponseWriter, r *http.Request) {
	var in feedNowRequest

	// An empty body means "use the active profile's portion".
	if r.ContentLength > 0 && !decodeBody(w, r, &in) {
		return
	}

	cmd, err := s.core.FeedNow(r.Context(), mux.Vars(r)["id"], in.PortionMs)
	if err != nil {
		s.writeServiceError(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, cmd)
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	logs, err := s.core.ListLogs(r.Context(), mux.Vars(r)["id"], r.URL.Query().Get("type"), listLimit(r), offset)
	if err != nil {
		s.writeServiceError(w, r, err)

		return
	}

	if logs == nil {
		logs = []models.FeedLog{}
	}

	writeJSON(w, http.StatusOK, logs)
}

type upsertProfileRequest struct {
	Name             string `json:"name"`
	DefaultPortionMs int    `json:"defaultPortionMs"`
}

func (s *Server) handleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	var in upsertProfileRequest
	if !decodeBody(w, r, &in) {
		return
	}

	profile, err := s.core.UpsertProfile(r.Context(), mux.Vars(r)["id"], in.Name, in.DefaultPortionMs)
	if err != nil {
		s.writeServiceError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, profile)
}

type setActiveProfileRequest struct {
	ProfileName string `json:"profileName"`
}

func (s *Server) handleSetActiveProfile(w http.ResponseWriter, r *http.Request) {
	var in setActiveProfileRequest
	if !decodeBody(w, r, &in) {
		return
	}

	if err := s.core.SetActiveProfile(r.Context(), mux.Vars(r)["id"], in.ProfileName); err != nil {
		s.writeServiceError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type replaceScheduleRequest struct {
	Slots []core.ScheduleSlotInput `json:"slots"`
}

func (s *Server) handleReplaceSchedule(w http.ResponseWriter, r *http.Request) {
	var in replaceScheduleRequest
	if !decodeBody(w, r, &in) {
		return
	}

	if err := s.core.ReplaceSchedule(r.Context(), mux.Vars(r)["id"], in.Slots); err != nil {
		s.writeServiceError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
