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

// Package authconfig manages the persisted authorization strategy. Every
// accepted change becomes a new immutable version; the newest version is
// the one decisions run against.
package authconfig

import (
	"errors"
	"time"
)

// Domain errors
var (
	ErrConfigNotFound = errors.New("authorization config not found")
	ErrInvalidConfig  = errors.New("invalid authorization config")
)

// StoredConfig is one persisted version of the authorization strategy
// document. Document holds the canonical XML form. The highest version is
// the active one; older versions stay readable for the history view.
type StoredConfig struct {
	ID        string
	Version   int
	Document  []byte
	UpdatedBy string
	Comment   string
	CreatedAt time.Time
}

// Repository defines the interface for config persistence
type Repository interface {
	// Create persists a new configuration version
	Create(cfg *StoredConfig) error

	// GetLatest returns the highest-version configuration
	GetLatest() (*StoredConfig, error)

	// GetByVersion returns a single stored configuration version
	GetByVersion(version int) (*StoredConfig, error)

	// List returns stored configurations, newest first, up to limit
	List(limit int) ([]*StoredConfig, error)
}
