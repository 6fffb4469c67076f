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

// Package api provides the HTTP API server for feedsync: the device poll
// endpoint plus the X-API-Key protected management routes.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/feedsync/pkg/core"
	fsHttp "github.com/carverauto/feedsync/pkg/http"
	"github.com/carverauto/feedsync/pkg/logger"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// Server exposes the sync core over HTTP.
type Server struct {
	router *mux.Router
	core   *core.Service
	logger logger.Logger

	adminAPIKey string
}

// NewServer creates the API server and registers its routes.
func NewServer(svc *core.Service, log logger.Logger, options ...func(*Server)) *Server {
	s := &Server{
		router: mux.NewRouter(),
		core:   svc,
		logger: log,
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

// WithAdminAPIKey sets the key required by the management routes. With no
// key configured the admin surface refuses every request rather than
// falling open.
func WithAdminAPIKey(key string) func(*Server) {
	return func(s *Server) {
		s.adminAPIKey = key
	}
}

func (s *Server) setupRoutes() {
	s.router.Use(fsHttp.RequestLogging(s.logger))

	// Device protocol. Authentication happens inside the poll pipeline,
	// over the raw body bytes, not here.
	s.router.HandleFunc("/api/device/poll", s.handlePoll).Methods(http.MethodPost)

	admin := s.router.PathPrefix("/api/admin").Subrouter()
	admin.Use(fsHttp.APIKeyMiddleware(s.adminAPIKey, s.logger))

	admin.HandleFunc("/devices", s.handleCreateDevice).Methods(http.MethodPost)
	admin.HandleFunc("/devices", s.handleListDevices).Methods(http.MethodGet)
	admin.HandleFunc("/devices/{id}/rotate-secret", s.handleRotateSecret).Methods(http.MethodPost)
	admin.HandleFunc("/devices/{id}/commands", s.handleEnqueueCommand).Methods(http.MethodPost)
	admin.HandleFunc("/devices/{id}/commands", s.handleListCommands).Methods(http.MethodGet)
	admin.HandleFunc("/devices/{id}/commands/{cmdId}", s.handleCancelCommand).Methods(http.MethodDelete)
	admin.HandleFunc("/devices/{id}/feed-now", s.handleFeedNow).Methods(http.MethodPost)
	admin.HandleFunc("/devices/{id}/logs", s.handleListLogs).Methods(http.MethodGet)
	admin.HandleFunc("/devices/{id}/profiles", s.handleUpsertProfile).Methods(http.MethodPut)
	admin.HandleFunc("/devices/{id}/active-profile", s.handleSetActiveProfile).Methods(http.MethodPut)
	admin.HandleFunc("/profiles/{id}/schedule", s.handleReplaceSchedule).Methods(http.MethodPut)
}

// Router returns the configured handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// HTTPServer builds the net/http server for the lifecycle runner.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError translates a core failure into the wire form. Internal
// faults get logged and collapsed into a generic code.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		writeJSON(w, apiErr.Status, errorResponse{Error: apiErr.Code})

		return
	}

	s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: core.CodeInternalError})
}
