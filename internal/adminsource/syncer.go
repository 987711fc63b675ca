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

package adminsource

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ciguard/ciguard/internal/acl"
	"github.com/ciguard/ciguard/internal/audit"
	"github.com/ciguard/ciguard/internal/observability/logger"
	"github.com/ciguard/ciguard/internal/observability/metrics"
)

// StrategyProvider yields the running strategy; the syncer reads only its
// sync interval, re-checking every round so interval changes apply without
// a restart.
type StrategyProvider interface {
	Current() *acl.Strategy
}

// Syncer periodically copies the external registry's administrator list
// into the local snapshot.
type Syncer struct {
	source      Source
	repo        Repository
	provider    StrategyProvider
	auditLogger audit.Logger
	metrics     *metrics.DecisionMetrics

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSyncer creates a new syncer
func NewSyncer(source Source, repo Repository, provider StrategyProvider, auditLogger audit.Logger, m *metrics.DecisionMetrics) *Syncer {
	return &Syncer{
		source:      source,
		repo:        repo,
		provider:    provider,
		auditLogger: auditLogger,
		metrics:     m,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the sync loop. It syncs once immediately, then polls at the
// strategy's sync interval.
func (s *Syncer) Start(ctx context.Context) {
	if err := s.syncOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "initial admin sync failed", logger.Component("adminsource"), logger.Error(err))
	}

	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop halts the sync loop and waits for an in-flight sync to finish.
func (s *Syncer) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Syncer) loop(ctx context.Context) {
	defer s.wg.Done()
	timer := time.NewTimer(s.interval())
	defer timer.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := s.syncOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "admin sync failed", logger.Component("adminsource"), logger.Error(err))
			}
			timer.Reset(s.interval())
		}
	}
}

// interval reads the pacing from the running strategy.
func (s *Syncer) interval() time.Duration {
	if iv := s.provider.Current().SyncInterval; iv > 0 {
		return iv
	}
	return acl.DefaultSyncInterval
}

// syncOnce fetches the registry and replaces the snapshot. Usernames are
// deduplicated and sorted so the snapshot is stable across syncs.
func (s *Syncer) syncOnce(ctx context.Context) error {
	usernames, err := s.source.FetchAdmins(ctx)
	if err != nil {
		s.recordFailure(ctx, err)
		return err
	}

	seen := make(map[string]bool, len(usernames))
	unique := make([]string, 0, len(usernames))
	for _, name := range usernames {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		unique = append(unique, name)
	}
	sort.Strings(unique)

	if err := s.repo.ReplaceAll(unique, time.Now()); err != nil {
		s.recordFailure(ctx, err)
		return err
	}

	s.metrics.RecordAdminSync(ctx, true)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAdminSyncCompleted,
		ActorID:  audit.ActorSyncer,
		Resource: audit.ResourceAdminRegistry,
		Metadata: map[string]any{
			audit.AttrCount: len(unique),
		},
	})
	slog.InfoContext(ctx, "admin registry synced",
		logger.Component("adminsource"),
		logger.AdminCount(len(unique)),
		logger.SyncInterval(s.interval().String()),
	)
	return nil
}

func (s *Syncer) recordFailure(ctx context.Context, err error) {
	s.metrics.RecordAdminSync(ctx, false)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAdminSyncFailed,
		ActorID:  audit.ActorSyncer,
		Resource: audit.ResourceAdminRegistry,
		Metadata: map[string]any{
			audit.AttrReason: err.Error(),
		},
	})
}
