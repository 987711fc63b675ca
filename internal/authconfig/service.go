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

package authconfig

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ciguard/ciguard/internal/acl"
	"github.com/ciguard/ciguard/internal/audit"
	"github.com/ciguard/ciguard/internal/observability/metrics"
)

// live pairs an installed strategy with the stored version it came from.
type live struct {
	strategy *acl.Strategy
	version  int
}

// Service owns the running authorization strategy. Writes go through the
// repository and are swapped in atomically; reads on the decision path
// never take a lock and never observe a half-applied change.
type Service struct {
	repo        Repository
	codec       *acl.Codec
	auditLogger audit.Logger
	metrics     *metrics.DecisionMetrics
	current     atomic.Pointer[live]
}

// NewService creates a new config service. The service serves a deny-all
// strategy until Load or Replace installs a real one.
func NewService(repo Repository, codec *acl.Codec, auditLogger audit.Logger, m *metrics.DecisionMetrics) *Service {
	return &Service{
		repo:        repo,
		codec:       codec,
		auditLogger: auditLogger,
		metrics:     m,
	}
}

// emptyStrategy is what Current serves before anything is installed. It
// names no admins and grants nothing, so every check denies.
var emptyStrategy = &acl.Strategy{
	ACL:          acl.New("", false, nil),
	SyncInterval: acl.DefaultSyncInterval,
}

// Current returns the strategy decisions run against. Never nil.
func (s *Service) Current() *acl.Strategy {
	if l := s.current.Load(); l != nil {
		return l.strategy
	}
	return emptyStrategy
}

// CurrentVersion returns the stored version of the running strategy, or 0
// when nothing has been installed yet.
func (s *Service) CurrentVersion() int {
	if l := s.current.Load(); l != nil {
		return l.version
	}
	return 0
}

// Load reads the newest stored configuration and installs it. Returns
// ErrConfigNotFound when the store is empty; the bootstrap service handles
// that case.
func (s *Service) Load(ctx context.Context) error {
	stored, err := s.repo.GetLatest()
	if err != nil {
		return err
	}

	strategy, err := s.codec.DecodeXML(bytes.NewReader(stored.Document))
	if err != nil {
		// A document we wrote ourselves failed to parse; refuse to serve it.
		return fmt.Errorf("stored config version %d is corrupt: %w", stored.Version, err)
	}

	s.current.Store(&live{strategy: strategy, version: stored.Version})
	return nil
}

// Replace persists the strategy as the next version and makes it the
// running one. The stored document is the canonical re-encoding, not
// whatever bytes the caller started from.
func (s *Service) Replace(ctx context.Context, strategy *acl.Strategy, actor, comment string) (*StoredConfig, error) {
	stored, err := s.install(ctx, strategy, actor, comment)
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeConfigReplaced,
		ActorID:  actor,
		Resource: audit.ResourceStrategy,
		Metadata: map[string]any{
			audit.AttrVersion: stored.Version,
			"admin_count":     len(strategy.ACL.Admins()),
			"comment":         comment,
		},
	})

	return stored, nil
}

// ReplaceXML decodes a strategy document and installs it as the next
// version. Only malformed XML is rejected; unknown elements and
// unresolvable grants inside a well-formed document are dropped, matching
// DecodeXML.
func (s *Service) ReplaceXML(ctx context.Context, doc []byte, actor, comment string) (*StoredConfig, error) {
	strategy, err := s.codec.DecodeXML(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return s.Replace(ctx, strategy, actor, comment)
}

// History lists stored configuration versions, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]*StoredConfig, error) {
	return s.repo.List(limit)
}

// GetVersion returns one stored version including its document.
func (s *Service) GetVersion(ctx context.Context, version int) (*StoredConfig, error) {
	return s.repo.GetByVersion(version)
}

// EncodeCurrent writes the running strategy as its canonical document.
// Works before anything is installed too, rendering the deny-all default.
func (s *Service) EncodeCurrent(w io.Writer) error {
	return s.codec.EncodeXML(w, s.Current())
}

// install encodes, persists and swaps in a strategy without auditing;
// Replace and Bootstrap wrap it with their own events.
func (s *Service) install(ctx context.Context, strategy *acl.Strategy, actor, comment string) (*StoredConfig, error) {
	// 1. Canonicalize the document
	var buf bytes.Buffer
	if err := s.codec.EncodeXML(&buf, strategy); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	// 2. Determine the next version
	version := 1
	latest, err := s.repo.GetLatest()
	if err == nil {
		version = latest.Version + 1
	} else if !errors.Is(err, ErrConfigNotFound) {
		return nil, fmt.Errorf("failed to read latest config: %w", err)
	}

	// 3. Persist
	stored := &StoredConfig{
		ID:        uuid.NewString(),
		Version:   version,
		Document:  buf.Bytes(),
		UpdatedBy: actor,
		Comment:   comment,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(stored); err != nil {
		return nil, fmt.Errorf("failed to store config version %d: %w", version, err)
	}

	// 4. Swap the running strategy
	s.current.Store(&live{strategy: strategy, version: version})
	s.metrics.RecordConfigSwap(ctx)

	return stored, nil
}
