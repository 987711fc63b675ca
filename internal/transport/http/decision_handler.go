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
	"net/http"

	"github.com/ciguard/ciguard/internal/acl"
	"github.com/ciguard/ciguard/internal/decision"
)

// DecideRequest describes the principal and the permission to check.
// ExtendedIdentity must be set only when the CI server holds a full
// identity for the user; a bare authenticated flag is classified as
// Logged In regardless of Username.
type DecideRequest struct {
	Authenticated    bool   `json:"authenticated"`
	ExtendedIdentity bool   `json:"extended_identity"`
	Username         string `json:"username,omitempty" example:"alice"`
	PermissionID     string `json:"permission_id" binding:"required" example:"job.build"`
}

// DecideResponse is the verdict
type DecideResponse struct {
	Allowed       bool   `json:"allowed"`
	Role          string `json:"role" example:"Logged In"`
	PermissionID  string `json:"permission_id"`
	ConfigVersion int    `json:"config_version"`
}

// Decide answers one authorization question
// @Summary Evaluate a permission decision
// @Description Classifies the principal into a role and reports whether the active configuration grants the permission to that role. Always answers; unknown permissions deny.
// @Tags Decisions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DecideRequest true "Decision request"
// @Success 200 {object} DecideResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /decisions [post]
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	var req DecideRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PermissionID == "" {
		respondError(w, http.StatusBadRequest, "permission_id is required")
		return
	}

	resp := h.decisionService.Decide(r.Context(), decision.Request{
		Authenticated:    req.Authenticated,
		ExtendedIdentity: req.ExtendedIdentity,
		Username:         req.Username,
		PermissionID:     req.PermissionID,
	})

	respondJSON(w, http.StatusOK, DecideResponse{
		Allowed:       resp.Allowed,
		Role:          string(resp.Role),
		PermissionID:  resp.PermissionID,
		ConfigVersion: resp.ConfigVersion,
	})
}

// PermissionView is one catalog entry with its per-role grant state
type PermissionView struct {
	ID          string          `json:"id" example:"job.build"`
	Group       string          `json:"group" example:"job"`
	Name        string          `json:"name" example:"build"`
	Description string          `json:"description"`
	Granted     map[string]bool `json:"granted"`
}

// PermissionsResponse lists the catalog against the active configuration
type PermissionsResponse struct {
	ConfigVersion int              `json:"config_version"`
	Permissions   []PermissionView `json:"permissions"`
}

// ListPermissions renders the permission catalog with grant state
// @Summary List the permission catalog
// @Description Returns every registered permission and, for each canonical role, whether the active configuration grants it
// @Tags Decisions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} PermissionsResponse
// @Failure 401 {object} map[string]string
// @Router /permissions [get]
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	engine := h.configService.Current().ACL

	perms := h.catalog.All()
	views := make([]PermissionView, 0, len(perms))
	for _, perm := range perms {
		granted := make(map[string]bool, len(acl.Roles))
		for _, role := range acl.Roles {
			granted[string(role)] = engine.IsPermissionSet(role, perm)
		}
		views = append(views, PermissionView{
			ID:          perm.ID(),
			Group:       perm.Group(),
			Name:        perm.Name(),
			Description: perm.Description(),
			Granted:     granted,
		})
	}

	respondJSON(w, http.StatusOK, PermissionsResponse{
		ConfigVersion: h.configService.CurrentVersion(),
		Permissions:   views,
	})
}
