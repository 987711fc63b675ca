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

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ciguard/ciguard/internal/adminsource"
)

// ExternalAdminRepository implements adminsource.Repository
type ExternalAdminRepository struct {
	db *DB
}

// NewExternalAdminRepository creates a new external admin repository
func NewExternalAdminRepository(db *DB) *ExternalAdminRepository {
	return &ExternalAdminRepository{db: db}
}

// ReplaceAll replaces the whole snapshot in one transaction so readers
// never see a half-synced list.
func (r *ExternalAdminRepository) ReplaceAll(usernames []string, syncedAt time.Time) error {
	ctx := context.Background()

	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin sync transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM external_admins`); err != nil {
		return fmt.Errorf("failed to clear admin snapshot: %w", err)
	}

	for _, name := range usernames {
		if _, err := tx.Exec(ctx, `
			INSERT INTO external_admins (username, synced_at) VALUES ($1, $2)
		`, name, syncedAt); err != nil {
			return fmt.Errorf("failed to insert admin %s: %w", name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit sync transaction: %w", err)
	}

	return nil
}

// List returns the snapshot in alphabetical order
func (r *ExternalAdminRepository) List() ([]*adminsource.Admin, error) {
	ctx := context.Background()

	rows, err := r.db.pool.Query(ctx, `
		SELECT username, synced_at FROM external_admins ORDER BY username
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list external admins: %w", err)
	}
	defer rows.Close()

	var admins []*adminsource.Admin
	for rows.Next() {
		var a adminsource.Admin
		if err := rows.Scan(&a.Username, &a.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to read external admin: %w", err)
		}
		admins = append(admins, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read external admins: %w", err)
	}

	return admins, nil
}
