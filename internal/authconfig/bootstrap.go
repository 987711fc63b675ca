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
	"context"
	"errors"
	"fmt"

	"github.com/ciguard/ciguard/internal/acl"
	"github.com/ciguard/ciguard/internal/audit"
	"github.com/ciguard/ciguard/internal/permission"
)

// BootstrapService seeds the first authorization configuration
type BootstrapService struct {
	configService *Service
	catalog       *permission.Catalog
	auditLogger   audit.Logger
	admins        string
}

// NewBootstrapService creates a new bootstrap service. admins is the
// comma-separated allowlist for the seeded configuration; it may be empty,
// in which case the seeded config has no admins until someone replaces it
// through the API.
func NewBootstrapService(
	configService *Service,
	catalog *permission.Catalog,
	auditLogger audit.Logger,
	admins string,
) *BootstrapService {
	return &BootstrapService{
		configService: configService,
		catalog:       catalog,
		auditLogger:   auditLogger,
		admins:        admins,
	}
}

// Bootstrap installs the default strategy if no configuration exists yet
func (s *BootstrapService) Bootstrap(ctx context.Context) error {
	// 1. Check whether any configuration already exists
	_, err := s.configService.repo.GetLatest()
	if err == nil {
		// Already bootstrapped, skip silently
		return nil
	}
	if !errors.Is(err, ErrConfigNotFound) {
		return fmt.Errorf("failed to check for existing config: %w", err)
	}

	// 2. Build and install the default strategy as version 1
	strategy := DefaultStrategy(s.catalog, s.admins)
	stored, err := s.configService.install(ctx, strategy, audit.ActorBootstrap, "seeded default configuration")
	if err != nil {
		return fmt.Errorf("failed to install bootstrap config: %w", err)
	}

	// 3. Record audit log
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeConfigBootstrapped,
		ActorID:  audit.ActorBootstrap,
		Resource: audit.ResourceStrategy,
		Metadata: map[string]any{
			audit.AttrVersion: stored.Version,
			"admins":          strategy.ACL.AdminUsernames(),
		},
	})

	fmt.Printf("Successfully bootstrapped authorization config (admins: %q)\n", strategy.ACL.AdminUsernames())
	return nil
}

// DefaultStrategy is the configuration installed on first start: the named
// admins get every permission, authenticated users can see and run jobs,
// and anonymous users get nothing.
func DefaultStrategy(catalog *permission.Catalog, admins string) *acl.Strategy {
	table := acl.Table{}
	for _, p := range catalog.All() {
		table.Add(acl.RoleAdmin, p)
	}
	for _, id := range []string{
		"overall.read",
		"job.read",
		"job.build",
		"job.cancel",
		"view.read",
	} {
		if p, ok := catalog.Resolve(id); ok {
			table.Add(acl.RoleLoggedIn, p)
		}
	}

	return &acl.Strategy{
		ACL:          acl.New(admins, false, table),
		SyncInterval: acl.DefaultSyncInterval,
	}
}
