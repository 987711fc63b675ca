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

package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Event types
const (
	TypeConfigBootstrapped = "config_bootstrapped"
	TypeConfigReplaced     = "config_replaced"
	TypeDecisionDenied     = "decision_denied"
	TypeTokenCreated       = "token_created"
	TypeTokenRevoked       = "token_revoked"
	TypeSessionIssued      = "session_issued"
	TypeSessionRejected    = "session_rejected"
	TypeAdminSyncCompleted = "admin_sync_completed"
	TypeAdminSyncFailed    = "admin_sync_failed"
)

// Well-known actors for events not driven by a request principal
const (
	ActorBootstrap = "system:bootstrap"
	ActorSyncer    = "system:adminsync"
)

// Resources
const (
	ResourceStrategy      = "authorization_strategy"
	ResourceDecision      = "decision"
	ResourceToken         = "api_token"
	ResourceSession       = "session"
	ResourceAdminRegistry = "admin_registry"
)

// Metadata attribute keys
const (
	AttrVersion    = "config_version"
	AttrTokenID    = "token_id"
	AttrSubject    = "subject"
	AttrCount      = "count"
	AttrReason     = "reason"
	AttrPermission = "permission_id"
	AttrRole       = "role"
)

// Event represents an auditable action
type Event struct {
	Type      string
	ActorID   string
	Resource  string
	Metadata  map[string]any
	Timestamp time.Time
	IPAddress string
	UserAgent string
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger implements Logger using slog
type SlogLogger struct{}

// NewSlogLogger creates a new audit logger
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	// Ensure timestamp is set
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Prepare attributes
	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.String("actor_id", event.ActorID),
		slog.String("resource", event.Resource),
		slog.Time("timestamp", event.Timestamp),
	}

	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}

	// Flatten metadata
	if len(event.Metadata) > 0 {
		group := []any{}
		for k, v := range event.Metadata {
			// Redact secrets
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	// Log at INFO level with "audit" component
	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// isSecret checks if a key names credential material. The last
// underscore-separated word decides: password_hash carries a hash, while
// token_id is only an identifier about a token.
func isSecret(key string) bool {
	k := strings.ToLower(key)
	if i := strings.LastIndexByte(k, '_'); i >= 0 {
		k = k[i+1:]
	}
	secrets := []string{"password", "secret", "token", "key", "hash", "credential", "authorization"}
	for _, s := range secrets {
		if k == s {
			return true
		}
	}
	return false
}
