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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ciguard/ciguard/internal/observability/logger"
	"github.com/ciguard/ciguard/internal/token"
)

// CreateTokenRequest describes a new API token. ExpiresIn is in seconds;
// zero means the token never expires.
type CreateTokenRequest struct {
	Name      string   `json:"name" binding:"required" example:"jenkins-prod"`
	Audiences []string `json:"audiences" example:"decision"`
	ExpiresIn int64    `json:"expires_in" example:"2592000"`
}

// CreateTokenResponse returns the new token. Plaintext is shown exactly
// once; only its hash is stored.
type CreateTokenResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Audiences []string   `json:"audiences"`
	Plaintext string     `json:"plaintext"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// TokenView is one stored API token without its secret hash
type TokenView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Audiences  []string   `json:"audiences"`
	CreatedBy  string     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	IsRevoked  bool       `json:"is_revoked"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

func tokenView(t *token.APIToken) TokenView {
	return TokenView{
		ID:         t.ID,
		Name:       t.Name,
		Audiences:  t.Audiences,
		CreatedBy:  t.CreatedBy,
		CreatedAt:  t.CreatedAt,
		ExpiresAt:  t.ExpiresAt,
		IsRevoked:  t.IsRevoked,
		RevokedAt:  t.RevokedAt,
		LastUsedAt: t.LastUsedAt,
	}
}

// CreateToken mints a new API token
// @Summary Create an API token
// @Description Creates an API token for a calling system. The plaintext is returned once and never stored.
// @Tags Tokens
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTokenRequest true "Token description"
// @Success 201 {object} CreateTokenResponse
// @Failure 400 {object} map[string]string
// @Router /tokens [post]
func (h *Handler) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req CreateTokenRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ExpiresIn < 0 {
		respondError(w, http.StatusBadRequest, "expires_in must not be negative")
		return
	}

	caller, _ := GetCaller(r.Context())
	ttl := time.Duration(req.ExpiresIn) * time.Second

	tok, plaintext, err := h.tokenService.Create(r.Context(), req.Name, caller.Name, req.Audiences, ttl)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrInvalidName):
			respondError(w, http.StatusBadRequest, "token name must not be empty")
		case errors.Is(err, token.ErrInvalidAudience):
			respondError(w, http.StatusBadRequest, "audiences may only contain \"decision\" and \"admin\"")
		default:
			slog.ErrorContext(r.Context(), "failed to create token",
				logger.Error(err),
				logger.Username(caller.Name),
			)
			respondError(w, http.StatusInternalServerError, "failed to create token")
		}
		return
	}

	respondJSON(w, http.StatusCreated, CreateTokenResponse{
		ID:        tok.ID,
		Name:      tok.Name,
		Audiences: tok.Audiences,
		Plaintext: plaintext,
		ExpiresAt: tok.ExpiresAt,
	})
}

// ListTokens lists all API tokens
// @Summary List API tokens
// @Description Returns every API token, newest first, without secret material
// @Tags Tokens
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Router /tokens [get]
func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.tokenService.List(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list tokens", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list tokens")
		return
	}

	views := make([]TokenView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, tokenView(t))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"tokens": views,
	})
}

// GetToken returns one API token
// @Summary Get an API token
// @Description Returns a single API token by ID, without secret material
// @Tags Tokens
// @Produce json
// @Security BearerAuth
// @Param tokenID path string true "Token ID"
// @Success 200 {object} TokenView
// @Failure 404 {object} map[string]string
// @Router /tokens/{tokenID} [get]
func (h *Handler) GetToken(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tokenID")

	tok, err := h.tokenService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, token.ErrTokenNotFound) {
			respondError(w, http.StatusNotFound, "token not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to load token",
			logger.Error(err),
			logger.TokenID(id),
		)
		respondError(w, http.StatusInternalServerError, "failed to load token")
		return
	}

	respondJSON(w, http.StatusOK, tokenView(tok))
}

// RevokeToken revokes an API token
// @Summary Revoke an API token
// @Description Marks the token revoked; existing sessions minted from it expire on their own within the session TTL
// @Tags Tokens
// @Produce json
// @Security BearerAuth
// @Param tokenID path string true "Token ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /tokens/{tokenID} [delete]
func (h *Handler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tokenID")
	caller, _ := GetCaller(r.Context())

	if err := h.tokenService.Revoke(r.Context(), id, caller.Name); err != nil {
		if errors.Is(err, token.ErrTokenNotFound) {
			respondError(w, http.StatusNotFound, "token not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to revoke token",
			logger.Error(err),
			logger.TokenID(id),
		)
		respondError(w, http.StatusInternalServerError, "failed to revoke token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "token revoked",
	})
}
