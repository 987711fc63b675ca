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

	"github.com/jackc/pgx/v5"

	"github.com/ciguard/ciguard/internal/authconfig"
)

// ConfigRepository implements authconfig.Repository
type ConfigRepository struct {
	db *DB
}

// NewConfigRepository creates a new config repository
func NewConfigRepository(db *DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Create persists a new configuration version
func (r *ConfigRepository) Create(cfg *authconfig.StoredConfig) error {
	ctx := context.Background()

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO authorization_configs (id, version, document, updated_by, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		cfg.ID, cfg.Version, string(cfg.Document), cfg.UpdatedBy, cfg.Comment, cfg.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create config version %d: %w", cfg.Version, err)
	}

	return nil
}

// GetLatest returns the highest-version configuration
func (r *ConfigRepository) GetLatest() (*authconfig.StoredConfig, error) {
	ctx := context.Background()

	row := r.db.pool.QueryRow(ctx, `
		SELECT id, version, document, updated_by, comment, created_at
		FROM authorization_configs
		ORDER BY version DESC
		LIMIT 1
	`)

	return scanConfig(row)
}

// GetByVersion returns a single stored configuration version
func (r *ConfigRepository) GetByVersion(version int) (*authconfig.StoredConfig, error) {
	ctx := context.Background()

	row := r.db.pool.QueryRow(ctx, `
		SELECT id, version, document, updated_by, comment, created_at
		FROM authorization_configs
		WHERE version = $1
	`, version)

	return scanConfig(row)
}

// List returns stored configurations, newest first, up to limit
func (r *ConfigRepository) List(limit int) ([]*authconfig.StoredConfig, error) {
	ctx := context.Background()

	rows, err := r.db.pool.Query(ctx, `
		SELECT id, version, document, updated_by, comment, created_at
		FROM authorization_configs
		ORDER BY version DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	defer rows.Close()

	var configs []*authconfig.StoredConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read configs: %w", err)
	}

	return configs, nil
}

func scanConfig(row pgx.Row) (*authconfig.StoredConfig, error) {
	var cfg authconfig.StoredConfig
	var document string

	err := row.Scan(&cfg.ID, &cfg.Version, &document, &cfg.UpdatedBy, &cfg.Comment, &cfg.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, authconfig.ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	cfg.Document = []byte(document)
	return &cfg, nil
}
