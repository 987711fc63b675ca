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
	"fmt"
	"time"

	"github.com/ciguard/ciguard/internal/audit"
)

// BootstrapService seeds the first API token so an operator can reach the
// admin endpoints before any token exists to create one with.
type BootstrapService struct {
	repo        Repository
	hasher      *SecretHasher
	auditLogger audit.Logger
	plaintext   string
}

// NewBootstrapService creates a new bootstrap service. plaintext is the
// operator-chosen "cg_<id>_<secret>" credential; only its hash is stored.
// An empty plaintext disables token bootstrapping.
func NewBootstrapService(repo Repository, hasher *SecretHasher, auditLogger audit.Logger, plaintext string) *BootstrapService {
	return &BootstrapService{
		repo:        repo,
		hasher:      hasher,
		auditLogger: auditLogger,
		plaintext:   plaintext,
	}
}

// Bootstrap installs the bootstrap token if no token exists yet
func (s *BootstrapService) Bootstrap(ctx context.Context) error {
	if s.plaintext == "" {
		return nil
	}

	// 1. Check whether any token already exists
	existing, err := s.repo.List()
	if err != nil {
		return fmt.Errorf("failed to check for existing tokens: %w", err)
	}
	if len(existing) > 0 {
		// Already bootstrapped or tokens were created, skip silently
		return nil
	}

	// 2. Parse and hash the configured credential
	id, secret, err := SplitPlaintext(s.plaintext)
	if err != nil {
		return fmt.Errorf("bootstrap token is not in %s_<id>_<secret> form: %w", Prefix, err)
	}
	secretHash, err := s.hasher.Hash(secret)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap token: %w", err)
	}

	// 3. Store it with full audiences
	tok := &APIToken{
		ID:         id,
		Name:       "bootstrap-admin",
		SecretHash: secretHash,
		Audiences:  []string{AudienceDecision, AudienceAdmin},
		CreatedBy:  audit.ActorBootstrap,
		CreatedAt:  time.Now(),
	}
	if err := s.repo.Create(tok); err != nil {
		return fmt.Errorf("failed to store bootstrap token: %w", err)
	}

	// 4. Record audit log
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenCreated,
		ActorID:  audit.ActorBootstrap,
		Resource: audit.ResourceToken,
		Metadata: map[string]any{
			audit.AttrTokenID: tok.ID,
			"name":            tok.Name,
			"audiences":       tok.Audiences,
			"bootstrap":       true,
		},
	})

	return nil
}
