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

package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ciguard/ciguard/internal/audit"
)

// Service provides API token and session token business logic
type Service struct {
	repo        Repository
	hasher      *SecretHasher
	auditLogger audit.Logger
	jwtSecret   []byte
	issuer      string
	sessionTTL  time.Duration
}

// NewService creates a new token service
func NewService(
	repo Repository,
	hasher *SecretHasher,
	auditLogger audit.Logger,
	jwtSecret []byte,
	issuer string,
	sessionTTL time.Duration,
) *Service {
	return &Service{
		repo:        repo,
		hasher:      hasher,
		auditLogger: auditLogger,
		jwtSecret:   jwtSecret,
		issuer:      issuer,
		sessionTTL:  sessionTTL,
	}
}

// Create mints a new API token and returns it together with the plaintext
// "cg_<id>_<secret>" credential. The plaintext is never stored and cannot be
// recovered later. A zero ttl means the token does not expire.
func (s *Service) Create(ctx context.Context, name, createdBy string, audiences []string, ttl time.Duration) (*APIToken, string, error) {
	if name == "" {
		return nil, "", ErrInvalidName
	}
	auds, err := NormalizeAudiences(audiences)
	if err != nil {
		return nil, "", err
	}

	// 1. Generate the credential material
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, "", fmt.Errorf("failed to generate token secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)

	secretHash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash token secret: %w", err)
	}

	tok := &APIToken{
		ID:         uuid.NewString(),
		Name:       name,
		SecretHash: secretHash,
		Audiences:  auds,
		CreatedBy:  createdBy,
		CreatedAt:  time.Now(),
	}
	if ttl > 0 {
		expires := time.Now().Add(ttl)
		tok.ExpiresAt = &expires
	}

	// 2. Persist
	if err := s.repo.Create(tok); err != nil {
		return nil, "", fmt.Errorf("failed to create token: %w", err)
	}

	// 3. Audit
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenCreated,
		ActorID:  createdBy,
		Resource: audit.ResourceToken,
		Metadata: map[string]any{
			audit.AttrTokenID: tok.ID,
			"name":            tok.Name,
			"audiences":       tok.Audiences,
		},
	})

	return tok, Prefix + "_" + tok.ID + "_" + secret, nil
}

// Authenticate verifies a presented plaintext token against the store. All
// failure modes that depend on the credential itself collapse into
// ErrInvalidToken so callers cannot probe which IDs exist.
func (s *Service) Authenticate(ctx context.Context, raw string) (*APIToken, error) {
	id, secret, err := SplitPlaintext(raw)
	if err != nil {
		return nil, err
	}

	tok, err := s.repo.GetByID(id)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if tok.IsRevoked {
		return nil, ErrTokenRevoked
	}
	if tok.IsExpired() {
		return nil, ErrTokenExpired
	}

	valid, err := s.hasher.Verify(secret, tok.SecretHash)
	if err != nil || !valid {
		return nil, ErrInvalidToken
	}

	// Best effort; a failed timestamp update must not fail authentication.
	_ = s.repo.TouchLastUsed(tok.ID, time.Now())

	return tok, nil
}

// IssueSession signs a short-lived session token for an authenticated API
// token. The session inherits the token's audiences.
func (s *Service) IssueSession(ctx context.Context, tok *APIToken) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(s.sessionTTL)

	claims := jwt.MapClaims{
		"iss":  s.issuer,
		"sub":  tok.ID,
		"name": tok.Name,
		"aud":  tok.Audiences,
		"iat":  now.Unix(),
		"exp":  expires.Unix(),
		"jti":  uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSessionIssued,
		ActorID:  tok.Name,
		Resource: audit.ResourceSession,
		Metadata: map[string]any{
			audit.AttrTokenID: tok.ID,
			"expires_at":      expires,
		},
	})

	return signed, expires, nil
}

// VerifySession validates a session token and, when requiredAudience is
// non-empty, checks that the session covers it.
func (s *Service) VerifySession(tokenString, requiredAudience string) (*SessionClaims, error) {
	parsed, err := jwt.Parse(tokenString,
		func(t *jwt.Token) (any, error) { return s.jwtSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidSession
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidSession
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrInvalidSession
	}
	auds, err := claims.GetAudience()
	if err != nil {
		return nil, ErrInvalidSession
	}
	name, _ := claims["name"].(string)

	sc := &SessionClaims{
		TokenID:   sub,
		Name:      name,
		Audiences: auds,
	}
	if requiredAudience != "" && !sc.HasAudience(requiredAudience) {
		return nil, ErrAudienceMissing
	}
	return sc, nil
}

// List returns all API tokens, newest first. Callers rendering them must
// not expose SecretHash.
func (s *Service) List(ctx context.Context) ([]*APIToken, error) {
	tokens, err := s.repo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	return tokens, nil
}

// Get retrieves one API token by ID.
func (s *Service) Get(ctx context.Context, id string) (*APIToken, error) {
	return s.repo.GetByID(id)
}

// Revoke permanently disables an API token. Sessions already issued from it
// remain valid until they expire, which is why session lifetimes are short.
func (s *Service) Revoke(ctx context.Context, id, actor string) error {
	if err := s.repo.Revoke(id, time.Now()); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenRevoked,
		ActorID:  actor,
		Resource: audit.ResourceToken,
		Metadata: map[string]any{audit.AttrTokenID: id},
	})

	return nil
}
