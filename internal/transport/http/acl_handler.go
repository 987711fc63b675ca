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
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ciguard/ciguard/internal/authconfig"
	"github.com/ciguard/ciguard/internal/observability/logger"
)

// Replace documents above this size are rejected before parsing.
const maxACLDocumentBytes = 1 << 20

// ACLResponse is one authorization configuration version. UpdatedBy,
// Comment and CreatedAt are present only when the version was read from
// the store; the live view carries just the version and document.
type ACLResponse struct {
	Version   int        `json:"version"`
	Document  string     `json:"document"`
	UpdatedBy string     `json:"updated_by,omitempty"`
	Comment   string     `json:"comment,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// GetACL returns the authorization configuration
// @Summary Get the authorization configuration
// @Description Returns the live configuration as its canonical XML document, or a stored version when ?version= is given
// @Tags ACL
// @Produce json
// @Security BearerAuth
// @Param version query int false "Stored version to fetch instead of the live one"
// @Success 200 {object} ACLResponse
// @Failure 404 {object} map[string]string
// @Router /acl [get]
func (h *Handler) GetACL(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("version"); raw != "" {
		version, err := strconv.Atoi(raw)
		if err != nil || version < 1 {
			respondError(w, http.StatusBadRequest, "version must be a positive integer")
			return
		}

		stored, err := h.configService.GetVersion(r.Context(), version)
		if err != nil {
			if errors.Is(err, authconfig.ErrConfigNotFound) {
				respondError(w, http.StatusNotFound, "configuration version not found")
				return
			}
			respondError(w, http.StatusInternalServerError, "failed to load configuration")
			return
		}

		createdAt := stored.CreatedAt
		respondJSON(w, http.StatusOK, ACLResponse{
			Version:   stored.Version,
			Document:  string(stored.Document),
			UpdatedBy: stored.UpdatedBy,
			Comment:   stored.Comment,
			CreatedAt: &createdAt,
		})
		return
	}

	var buf bytes.Buffer
	if err := h.configService.EncodeCurrent(&buf); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode live configuration", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to encode configuration")
		return
	}

	respondJSON(w, http.StatusOK, ACLResponse{
		Version:  h.configService.CurrentVersion(),
		Document: buf.String(),
	})
}

// ReplaceACL installs a new authorization configuration
// @Summary Replace the authorization configuration
// @Description Parses the XML document in the body, stores it as the next version and makes it live atomically
// @Tags ACL
// @Accept xml
// @Produce json
// @Security BearerAuth
// @Param comment query string false "Change comment recorded with the version"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /acl [put]
func (h *Handler) ReplaceACL(w http.ResponseWriter, r *http.Request) {
	doc, err := io.ReadAll(io.LimitReader(r.Body, maxACLDocumentBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(doc) == 0 {
		respondError(w, http.StatusBadRequest, "request body must contain an authorization document")
		return
	}
	if len(doc) > maxACLDocumentBytes {
		respondError(w, http.StatusRequestEntityTooLarge, "authorization document too large")
		return
	}

	caller, _ := GetCaller(r.Context())
	comment := r.URL.Query().Get("comment")

	stored, err := h.configService.ReplaceXML(r.Context(), doc, caller.Name, comment)
	if err != nil {
		if errors.Is(err, authconfig.ErrInvalidConfig) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "failed to replace configuration",
			logger.Error(err),
			logger.Username(caller.Name),
		)
		respondError(w, http.StatusInternalServerError, "failed to replace configuration")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"version": stored.Version,
		"message": "authorization configuration replaced",
	})
}

// ACLHistoryEntry is one row of the version history; documents are
// fetched individually via GET /acl?version=
type ACLHistoryEntry struct {
	Version   int       `json:"version"`
	UpdatedBy string    `json:"updated_by"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}

// ACLHistory lists stored configuration versions, newest first
// @Summary List configuration history
// @Description Returns stored configuration versions without their documents, newest first
// @Tags ACL
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum entries to return (default 20, cap 100)"
// @Success 200 {object} map[string]any
// @Router /acl/history [get]
func (h *Handler) ACLHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > 100 {
		limit = 100
	}

	stored, err := h.configService.History(r.Context(), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list configuration history", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list configuration history")
		return
	}

	active := h.configService.CurrentVersion()
	entries := make([]ACLHistoryEntry, 0, len(stored))
	for _, cfg := range stored {
		entries = append(entries, ACLHistoryEntry{
			Version:   cfg.Version,
			UpdatedBy: cfg.UpdatedBy,
			Comment:   cfg.Comment,
			CreatedAt: cfg.CreatedAt,
			Active:    cfg.Version == active,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"history": entries,
	})
}

// ExternalAdminView is one synced registry administrator
type ExternalAdminView struct {
	Username string    `json:"username"`
	SyncedAt time.Time `json:"synced_at"`
}

// ListExternalAdmins returns the synced external admin snapshot
// @Summary List external registry administrators
// @Description Returns the last synced snapshot of registry administrators. The snapshot is informational; decisions never consult it.
// @Tags ACL
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Router /external-admins [get]
func (h *Handler) ListExternalAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.adminRepo.List()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list external admins", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list external admins")
		return
	}

	views := make([]ExternalAdminView, 0, len(admins))
	for _, admin := range admins {
		views = append(views, ExternalAdminView{
			Username: admin.Username,
			SyncedAt: admin.SyncedAt,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"use_external_admins": h.configService.Current().ACL.UseExternalAdmins(),
		"admins":              views,
	})
}
