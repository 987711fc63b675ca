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
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ciguard/ciguard/internal/token"
)

// APITokenRepository implements token.Repository
type APITokenRepository struct {
	db *DB
}

// NewAPITokenRepository creates a new API token repository
func NewAPITokenRepository(db *DB) *APITokenRepository {
	return &APITokenRepository{db: db}
}

// Create creates a new API token
func (r *APITokenRepository) Create(t *token.APIToken) error {
	ctx := context.Background()

	var expiresAt, revokedAt, lastUsedAt sql.NullTime
	if t.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *t.ExpiresAt, Valid: true}
	}
	if t.RevokedAt != nil {
		revokedAt = sql.NullTime{Time: *t.RevokedAt, Valid: true}
	}
	if t.LastUsedAt != nil {
		lastUsedAt = sql.NullTime{Time: *t.LastUsedAt, Valid: true}
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO api_tokens (
			id, name, secret_hash, audiences, created_by,
			expires_at, revoked_at, is_revoked, last_used_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		t.ID, t.Name, t.SecretHash, t.Audiences, t.CreatedBy,
		expiresAt, revokedAt, t.IsRevoked, lastUsedAt, t.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create api token: %w", err)
	}

	return nil
}

// GetByID retrieves an API token
func (r *APITokenRepository) GetByID(id string) (*token.APIToken, error) {
	ctx := context.Background()

	row := r.db.pool.QueryRow(ctx, `
		SELECT
			id, name, secret_hash, audiences, created_by,
			expires_at, revoked_at, is_revoked, last_used_at, created_at
		FROM api_tokens
		WHERE id = $1
	`, id)

	return scanAPIToken(row)
}

// List returns all API tokens, newest first
func (r *APITokenRepository) List() ([]*token.APIToken, error) {
	ctx := context.Background()

	rows, err := r.db.pool.Query(ctx, `
		SELECT
			id, name, secret_hash, audiences, created_by,
			expires_at, revoked_at, is_revoked, last_used_at, created_at
		FROM api_tokens
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list api tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*token.APIToken
	for rows.Next() {
		t, err := scanAPIToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read api tokens: %w", err)
	}

	return tokens, nil
}

// Revoke revokes an API token
func (r *APITokenRepository) Revoke(id string, at time.Time) error {
	ctx := context.Background()

	result, err := r.db.pool.Exec(ctx, `
		UPDATE api_tokens SET is_revoked = true, revoked_at = $2
		WHERE id = $1
	`, id, at)

	if err != nil {
		return fmt.Errorf("failed to revoke api token: %w", err)
	}

	if result.RowsAffected() == 0 {
		return token.ErrTokenNotFound
	}

	return nil
}

// TouchLastUsed records when the token last authenticated
func (r *APITokenRepository) TouchLastUsed(id string, at time.Time) error {
	ctx := context.Background()

	result, err := r.db.pool.Exec(ctx, `
		UPDATE api_tokens SET last_used_at = $2
		WHERE id = $1
	`, id, at)

	if err != nil {
		return fmt.Errorf("failed to update api token last use: %w", err)
	}

	if result.RowsAffected() == 0 {
		return token.ErrTokenNotFound
	}

	return nil
}

func scanAPIToken(row pgx.Row) (*token.APIToken, error) {
	var t token.APIToken
	var expiresAt, revokedAt, lastUsedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.Name, &t.SecretHash, &t.Audiences, &t.CreatedBy,
		&expiresAt, &revokedAt, &t.IsRevoked, &lastUsedAt, &t.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, token.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get api token: %w", err)
	}

	if expiresAt.Valid {
		t.ExpiresAt = &expiresAt.Time
	}
	if revokedAt.Valid {
		t.RevokedAt = &revokedAt.Time
	}
	if lastUsedAt.Valid {
		t.LastUsedAt = &lastUsedAt.Time
	}

	return &t, nil
}
