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

// Package token authenticates the callers of ciguard itself. The CI server
// and other hosts hold long-lived API tokens whose secrets are stored only
// as Argon2id hashes; presenting one yields a short-lived signed session
// token that the other endpoints accept. That keeps the expensive hash
// verification off the per-decision path.
package token

import (
	"errors"
	"strings"
	"time"
)

// Domain errors
var (
	ErrTokenNotFound   = errors.New("token not found")
	ErrTokenRevoked    = errors.New("token revoked")
	ErrTokenExpired    = errors.New("token expired")
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidSession  = errors.New("invalid session token")
	ErrAudienceMissing = errors.New("session token lacks the required audience")
	ErrInvalidAudience = errors.New("unknown audience")
	ErrInvalidName     = errors.New("token name must not be empty")
)

// Plaintext API tokens look like "cg_<id>_<secret>".
const Prefix = "cg"

// Audiences scope what a token's sessions may call.
const (
	// AudienceDecision covers the decision and catalog endpoints.
	AudienceDecision = "decision"

	// AudienceAdmin covers configuration and token management.
	AudienceAdmin = "admin"
)

// APIToken is a long-lived credential for a calling system. The secret
// itself is returned exactly once at creation time and kept only as a hash.
type APIToken struct {
	ID         string
	Name       string
	SecretHash string
	Audiences  []string
	CreatedBy  string
	ExpiresAt  *time.Time
	RevokedAt  *time.Time
	IsRevoked  bool
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// IsExpired checks if the token has passed its optional expiry.
func (t *APIToken) IsExpired() bool {
	return t.ExpiresAt != nil && time.Now().After(*t.ExpiresAt)
}

// HasAudience reports whether the token carries the audience.
func (t *APIToken) HasAudience(aud string) bool {
	for _, a := range t.Audiences {
		if a == aud {
			return true
		}
	}
	return false
}

// Repository defines the interface for API token persistence
type Repository interface {
	// Create persists a new API token
	Create(token *APIToken) error

	// GetByID retrieves a token by its public ID
	GetByID(id string) (*APIToken, error)

	// List retrieves all tokens, newest first
	List() ([]*APIToken, error)

	// Revoke marks a token revoked
	Revoke(id string, at time.Time) error

	// TouchLastUsed records when the token last authenticated
	TouchLastUsed(id string, at time.Time) error
}

// SessionClaims is the verified content of a session token.
type SessionClaims struct {
	TokenID   string
	Name      string
	Audiences []string
}

// HasAudience reports whether the session covers the audience.
func (c *SessionClaims) HasAudience(aud string) bool {
	for _, a := range c.Audiences {
		if a == aud {
			return true
		}
	}
	return false
}

// SplitPlaintext takes a presented "cg_<id>_<secret>" token apart. The
// secret may itself contain underscores; only the first two separate.
func SplitPlaintext(raw string) (id, secret string, err error) {
	parts := strings.SplitN(raw, "_", 3)
	if len(parts) != 3 || parts[0] != Prefix || parts[1] == "" || parts[2] == "" {
		return "", "", ErrInvalidToken
	}
	return parts[1], parts[2], nil
}

// NormalizeAudiences validates and dedupes a requested audience list. An
// empty request gets the decision audience only, so plain decision clients
// never accidentally hold admin rights.
func NormalizeAudiences(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return []string{AudienceDecision}, nil
	}
	seen := make(map[string]bool, len(requested))
	out := make([]string, 0, len(requested))
	for _, aud := range requested {
		switch aud {
		case AudienceDecision, AudienceAdmin:
		default:
			return nil, ErrInvalidAudience
		}
		if seen[aud] {
			continue
		}
		seen[aud] = true
		out = append(out, aud)
	}
	return out, nil
}
