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

package token_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciguard/ciguard/internal/audit"
	"github.com/ciguard/ciguard/internal/token"
)

// mockRepository implements token.Repository in memory
type mockRepository struct {
	tokens  map[string]*token.APIToken
	touched []string
}

func newMockRepository() *mockRepository {
	return &mockRepository{tokens: make(map[string]*token.APIToken)}
}

func (m *mockRepository) Create(t *token.APIToken) error {
	m.tokens[t.ID] = t
	return nil
}

func (m *mockRepository) GetByID(id string) (*token.APIToken, error) {
	if t, ok := m.tokens[id]; ok {
		return t, nil
	}
	return nil, token.ErrTokenNotFound
}

func (m *mockRepository) List() ([]*token.APIToken, error) {
	out := make([]*token.APIToken, 0, len(m.tokens))
	for _, t := range m.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockRepository) Revoke(id string, at time.Time) error {
	t, ok := m.tokens[id]
	if !ok {
		return token.ErrTokenNotFound
	}
	t.IsRevoked = true
	t.RevokedAt = &at
	return nil
}

func (m *mockRepository) TouchLastUsed(id string, at time.Time) error {
	m.touched = append(m.touched, id)
	return nil
}

// recordingAudit captures audit events for assertions
type recordingAudit struct {
	events []audit.Event
}

func (a *recordingAudit) Log(ctx context.Context, event audit.Event) {
	a.events = append(a.events, event)
}

func (a *recordingAudit) typesSeen() []string {
	types := make([]string, 0, len(a.events))
	for _, e := range a.events {
		types = append(types, e.Type)
	}
	return types
}

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func newTestService(repo token.Repository, sink audit.Logger) *token.Service {
	return token.NewService(repo, testHasher(), sink, []byte(testJWTSecret), "ciguard-test", 15*time.Minute)
}

func TestService_CreateAndAuthenticate(t *testing.T) {
	repo := newMockRepository()
	sink := &recordingAudit{}
	svc := newTestService(repo, sink)
	ctx := context.Background()

	created, plaintext, err := svc.Create(ctx, "jenkins-prod", "alice", []string{token.AudienceDecision, token.AudienceAdmin}, 0)
	require.NoError(t, err)
	require.NotNil(t, created)

	id, secret, err := token.SplitPlaintext(plaintext)
	require.NoError(t, err)
	assert.Equal(t, created.ID, id)
	assert.NotContains(t, created.SecretHash, secret, "stored hash must not contain the secret")
	assert.Nil(t, created.ExpiresAt, "zero ttl means no expiry")

	authed, err := svc.Authenticate(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, created.ID, authed.ID)
	assert.Contains(t, repo.touched, created.ID, "authentication should record last use")

	_, err = svc.Authenticate(ctx, token.Prefix+"_"+created.ID+"_wrongsecret")
	assert.ErrorIs(t, err, token.ErrInvalidToken)

	_, err = svc.Authenticate(ctx, token.Prefix+"_no-such-id_secret")
	assert.ErrorIs(t, err, token.ErrInvalidToken)

	_, err = svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, token.ErrInvalidToken)

	assert.Contains(t, sink.typesSeen(), audit.TypeTokenCreated)
}

func TestService_CreateValidation(t *testing.T) {
	svc := newTestService(newMockRepository(), &recordingAudit{})
	ctx := context.Background()

	_, _, err := svc.Create(ctx, "", "alice", nil, 0)
	assert.ErrorIs(t, err, token.ErrInvalidName)

	_, _, err = svc.Create(ctx, "ci", "alice", []string{"superuser"}, 0)
	assert.ErrorIs(t, err, token.ErrInvalidAudience)

	created, _, err := svc.Create(ctx, "ci", "alice", nil, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{token.AudienceDecision}, created.Audiences, "default audience is decision only")
	require.NotNil(t, created.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *created.ExpiresAt, time.Minute)
}

func TestService_AuthenticateRevokedAndExpired(t *testing.T) {
	repo := newMockRepository()
	sink := &recordingAudit{}
	svc := newTestService(repo, sink)
	ctx := context.Background()

	_, plaintext, err := svc.Create(ctx, "short-lived", "alice", nil, time.Hour)
	require.NoError(t, err)

	id, _, err := token.SplitPlaintext(plaintext)
	require.NoError(t, err)

	// Force the expiry into the past.
	expired := time.Now().Add(-time.Minute)
	repo.tokens[id].ExpiresAt = &expired
	_, err = svc.Authenticate(ctx, plaintext)
	assert.ErrorIs(t, err, token.ErrTokenExpired)

	future := time.Now().Add(time.Hour)
	repo.tokens[id].ExpiresAt = &future
	require.NoError(t, svc.Revoke(ctx, id, "alice"))
	_, err = svc.Authenticate(ctx, plaintext)
	assert.ErrorIs(t, err, token.ErrTokenRevoked)

	assert.Contains(t, sink.typesSeen(), audit.TypeTokenRevoked)
}

// TestPurpose: Validates the session token lifecycle: issuance from an
// authenticated API token, verification, audience enforcement, and
// rejection of tampered or foreign tokens.
// Scope: Unit Test
// Security: Session authentication and audience separation (a
// decision-scoped caller must never pass an admin audience check)
// Expected: Sessions verify with their own audiences only; altered tokens
// and unsigned tokens are rejected.
// Test Case ID: TOK-02
func TestService_SessionLifecycle(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &recordingAudit{})
	ctx := context.Background()

	created, _, err := svc.Create(ctx, "jenkins-prod", "alice", []string{token.AudienceDecision}, 0)
	require.NoError(t, err)

	session, expires, err := svc.IssueSession(ctx, created)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expires, time.Minute)

	claims, err := svc.VerifySession(session, token.AudienceDecision)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.TokenID)
	assert.Equal(t, "jenkins-prod", claims.Name)

	_, err = svc.VerifySession(session, token.AudienceAdmin)
	assert.ErrorIs(t, err, token.ErrAudienceMissing)

	// Tampering with any part of the JWT must invalidate it.
	_, err = svc.VerifySession(session+"x", token.AudienceDecision)
	assert.ErrorIs(t, err, token.ErrInvalidSession)

	// Tokens signed with a different key are foreign.
	other := token.NewService(repo, testHasher(), &recordingAudit{}, []byte("another-secret-another-secret-32"), "ciguard-test", time.Minute)
	foreign, _, err := other.IssueSession(ctx, created)
	require.NoError(t, err)
	_, err = svc.VerifySession(foreign, token.AudienceDecision)
	assert.ErrorIs(t, err, token.ErrInvalidSession)
}

// TestPurpose: Validates that unsigned ("none" algorithm) and
// wrong-algorithm session tokens are rejected outright.
// Scope: Unit Test
// Security: JWT algorithm confusion defense
// Expected: VerifySession fails for alg=none tokens.
// Test Case ID: TOK-03
func TestService_VerifySessionRejectsNoneAlgorithm(t *testing.T) {
	svc := newTestService(newMockRepository(), &recordingAudit{})

	claims := jwt.MapClaims{
		"iss": "ciguard-test",
		"sub": "token-id",
		"aud": []string{token.AudienceDecision},
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.VerifySession(unsigned, token.AudienceDecision)
	assert.ErrorIs(t, err, token.ErrInvalidSession)
}

func TestService_VerifySessionIssuerMismatch(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &recordingAudit{})
	ctx := context.Background()

	created, _, err := svc.Create(ctx, "ci", "alice", nil, 0)
	require.NoError(t, err)

	otherIssuer := token.NewService(repo, testHasher(), &recordingAudit{}, []byte(testJWTSecret), "someone-else", time.Minute)
	session, _, err := otherIssuer.IssueSession(ctx, created)
	require.NoError(t, err)

	_, err = svc.VerifySession(session, "")
	assert.ErrorIs(t, err, token.ErrInvalidSession)
}

func TestSplitPlaintext(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantID  string
		wantSec string
		wantErr bool
	}{
		{name: "valid", raw: "cg_abc123_s3cret", wantID: "abc123", wantSec: "s3cret"},
		{name: "secret with underscores", raw: "cg_abc123_s3_cr_et", wantID: "abc123", wantSec: "s3_cr_et"},
		{name: "wrong prefix", raw: "xx_abc123_s3cret", wantErr: true},
		{name: "missing secret", raw: "cg_abc123", wantErr: true},
		{name: "empty id", raw: "cg__s3cret", wantErr: true},
		{name: "empty secret", raw: "cg_abc123_", wantErr: true},
		{name: "empty string", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, secret, err := token.SplitPlaintext(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, token.ErrInvalidToken) {
					t.Errorf("error = %v, want ErrInvalidToken", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tt.wantID || secret != tt.wantSec {
				t.Errorf("SplitPlaintext() = (%q, %q), want (%q, %q)", id, secret, tt.wantID, tt.wantSec)
			}
		})
	}
}

func TestNormalizeAudiences(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []string
		wantErr bool
	}{
		{name: "empty defaults to decision", in: nil, want: []string{token.AudienceDecision}},
		{name: "admin only", in: []string{token.AudienceAdmin}, want: []string{token.AudienceAdmin}},
		{name: "dedupes", in: []string{"decision", "decision", "admin"}, want: []string{"decision", "admin"}},
		{name: "unknown audience", in: []string{"decision", "root"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := token.NormalizeAudiences(tt.in)
			if tt.wantErr {
				if !errors.Is(err, token.ErrInvalidAudience) {
					t.Errorf("error = %v, want ErrInvalidAudience", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("NormalizeAudiences() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("NormalizeAudiences() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}
