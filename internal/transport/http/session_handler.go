// Copyright 2026 The Ciguard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ciguard/ciguard/internal/audit"
	"github.com/ciguard/ciguard/internal/observability/logger"
)

// CreateSessionRequest carries the raw API token to exchange
type CreateSessionRequest struct {
	Token string `json:"token" binding:"required" example:"cg_4f2c_9a31e0"`
}

// CreateSessionResponse is the minted session JWT
type CreateSessionResponse struct {
	SessionToken string    `json:"session_token"`
	TokenType    string    `json:"token_type" example:"Bearer"`
	ExpiresAt    time.Time `json:"expires_at"`
	Audiences    []string  `json:"audiences"`
}

// CreateSession exchanges an API token for a short-lived session JWT
// @Summary Create session
// @Description Exchange a raw API token for a session JWT carrying the same audiences
// @Tags Sessions
// @Accept json
// @Produce json
// @Param request body CreateSessionRequest true "API token"
// @Success 200 {object} CreateSessionResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /sessions [post]
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, "token is required")
		return
	}

	tok, err := h.tokenService.Authenticate(r.Context(), req.Token)
	if err != nil {
		status, message := sessionStatus(err)
		h.auditLogger.Log(r.Context(), audit.Event{
			Type:      audit.TypeSessionRejected,
			ActorID:   "unknown",
			Resource:  audit.ResourceSession,
			IPAddress: getIPAddress(r),
			UserAgent: r.UserAgent(),
			Metadata:  map[string]any{audit.AttrReason: message},
		})
		respondError(w, status, message)
		return
	}

	signed, expires, err := h.tokenService.IssueSession(r.Context(), tok)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to issue session",
			logger.Error(err),
			logger.TokenID(tok.ID),
		)
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	respondJSON(w, http.StatusOK, CreateSessionResponse{
		SessionToken: signed,
		TokenType:    "Bearer",
		ExpiresAt:    expires,
		Audiences:    tok.Audiences,
	})
}
