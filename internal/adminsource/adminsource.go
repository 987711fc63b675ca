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

// Package adminsource mirrors the administrator list of an external
// registry into a local snapshot. The snapshot is informational: operators
// can compare it against the configured allowlist, but authorization
// decisions never consult it.
package adminsource

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrSourceUnavailable = errors.New("admin source unavailable")
)

// Admin is one administrator username as reported by the external registry
type Admin struct {
	Username string
	SyncedAt time.Time
}

// Repository stores the local snapshot of the external registry
type Repository interface {
	// ReplaceAll replaces the whole snapshot with the given usernames
	ReplaceAll(usernames []string, syncedAt time.Time) error

	// List returns the snapshot in alphabetical order
	List() ([]*Admin, error)
}

// Source fetches the administrator usernames from the external registry
type Source interface {
	FetchAdmins(ctx context.Context) ([]string, error)
}
