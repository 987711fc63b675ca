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

// Package permission defines the catalog of guarded CI server actions.
//
// Permissions are registered once at startup and resolved by their stable
// string ID everywhere else: in persisted role grants, over the HTTP API,
// and by the decision engine. Unknown IDs never resolve, which is what makes
// stale grants in old configuration files harmless.
package permission

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	ErrDuplicate = errors.New("permission already registered")
	ErrInvalidID = errors.New("invalid permission id")
)

// Permission identifies a single guarded action, such as triggering a build
// or reconfiguring a job. Instances are created through Catalog.Register and
// compared by pointer identity; two lookups of the same ID on the same
// catalog return the same instance.
type Permission struct {
	id          string
	group       string
	name        string
	description string
}

// ID returns the stable identifier, e.g. "job.build". IDs survive in
// persisted configuration and must never be renamed for a released
// permission.
func (p *Permission) ID() string { return p.id }

// Group returns the UI grouping key, e.g. "job".
func (p *Permission) Group() string { return p.group }

// Name returns the short name within the group, e.g. "build".
func (p *Permission) Name() string { return p.name }

// Description returns the human-readable summary shown in the
// administration UI.
func (p *Permission) Description() string { return p.description }

func (p *Permission) String() string { return p.id }

// Catalog is the registry of all permissions known to a running server.
// Registration happens during startup wiring, before the catalog is shared;
// afterwards the catalog is read-only and safe for concurrent use.
type Catalog struct {
	byID    map[string]*Permission
	ordered []*Permission
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]*Permission)}
}

// Register adds a permission under the ID group+"."+name and returns it.
// Group and name must be non-empty and must not contain ':' or whitespace:
// persisted grants are written as "role:permission" pairs and a colon inside
// an ID would make them unparseable.
func (c *Catalog) Register(group, name, description string) (*Permission, error) {
	for _, part := range []string{group, name} {
		if part == "" || strings.ContainsAny(part, ": \t\n") {
			return nil, fmt.Errorf("%w: group=%q name=%q", ErrInvalidID, group, name)
		}
	}
	id := group + "." + name
	if _, exists := c.byID[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, id)
	}
	p := &Permission{id: id, group: group, name: name, description: description}
	c.byID[id] = p
	c.ordered = append(c.ordered, p)
	return p, nil
}

// Resolve looks up a permission by ID. The second return value reports
// whether the ID is known; callers that read persisted configuration are
// expected to skip unknown IDs rather than fail.
func (c *Catalog) Resolve(id string) (*Permission, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// All returns every registered permission in registration order. The caller
// must not modify the returned slice.
func (c *Catalog) All() []*Permission {
	return c.ordered
}
