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

// Package decision answers authorization questions against the running
// strategy. Deciding has no error mode: malformed questions and unknown
// permissions deny rather than fail.
package decision

import (
	"context"
	"log/slog"
	"time"

	"github.com/ciguard/ciguard/internal/acl"
	"github.com/ciguard/ciguard/internal/audit"
	"github.com/ciguard/ciguard/internal/observability/logger"
	"github.com/ciguard/ciguard/internal/observability/metrics"
	"github.com/ciguard/ciguard/internal/permission"
)

// StrategyProvider hands out the strategy decisions run against.
// *authconfig.Service implements it.
type StrategyProvider interface {
	Current() *acl.Strategy
	CurrentVersion() int
}

// Request describes one authorization question as the calling CI server
// sees its principal. ExtendedIdentity reports whether the caller holds a
// full identity for the principal; a bare authenticated flag without one
// classifies as Logged In no matter what Username says.
type Request struct {
	Authenticated    bool
	ExtendedIdentity bool
	Username         string
	PermissionID     string
}

// Response is the verdict for one Request.
type Response struct {
	Allowed       bool
	Role          acl.Role
	PermissionID  string
	ConfigVersion int
}

// Service evaluates requests against the current strategy
type Service struct {
	provider    StrategyProvider
	catalog     *permission.Catalog
	metrics     *metrics.DecisionMetrics
	auditLogger audit.Logger
}

// NewService creates a new decision service
func NewService(provider StrategyProvider, catalog *permission.Catalog, m *metrics.DecisionMetrics, auditLogger audit.Logger) *Service {
	return &Service{
		provider:    provider,
		catalog:     catalog,
		metrics:     m,
		auditLogger: auditLogger,
	}
}

// Decide classifies the principal and checks the requested permission.
// Total: every request gets a verdict, and denials carry the role that was
// classified so callers can see why.
func (s *Service) Decide(ctx context.Context, req Request) Response {
	start := time.Now()
	strategy := s.provider.Current()
	principal := req.principal()
	role := strategy.ACL.Classify(principal)

	perm, known := s.catalog.Resolve(req.PermissionID)
	allowed := known && strategy.ACL.HasPermission(principal, perm)

	s.metrics.RecordDecision(ctx, string(role), allowed, time.Since(start))

	if !allowed {
		reason := "permission not granted to role"
		if !known {
			reason = "unknown permission"
		}
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeDecisionDenied,
			ActorID:  req.actor(),
			Resource: audit.ResourceDecision,
			Metadata: map[string]any{
				audit.AttrPermission: req.PermissionID,
				audit.AttrRole:       string(role),
				audit.AttrReason:     reason,
			},
		})
	}

	slog.DebugContext(ctx, "authorization decision",
		logger.Username(req.Username),
		logger.RoleName(string(role)),
		logger.PermissionID(req.PermissionID),
		logger.Allowed(allowed),
	)

	return Response{
		Allowed:       allowed,
		Role:          role,
		PermissionID:  req.PermissionID,
		ConfigVersion: s.provider.CurrentVersion(),
	}
}

// principal maps the request onto the engine's principal shapes.
func (r Request) principal() acl.Principal {
	switch {
	case !r.Authenticated:
		return acl.Anonymous{}
	case r.ExtendedIdentity:
		return acl.User{Name: r.Username}
	default:
		return acl.Authenticated{}
	}
}

func (r Request) actor() string {
	if r.Username != "" {
		return r.Username
	}
	if r.Authenticated {
		return "authenticated"
	}
	return "anonymous"
}
