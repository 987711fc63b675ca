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

// Package acl implements the role-based permission engine at the core of
// ciguard: principals are classified into exactly one of three roles and a
// decision is a lookup in the role's granted permission set.
//
// An ACL is immutable after construction. Reconfiguration replaces the whole
// value, so concurrent decision traffic never observes a half-updated table.
// Every operation is total: malformed or unknown input degrades to a denial
// or to the Anonymous role, never to an error.
package acl

import (
	"strings"

	"github.com/ciguard/ciguard/internal/permission"
)

// Table maps each role to the permissions granted to it. A role that is
// absent grants nothing. Keys outside the canonical role set are legal; they
// are carried through encode/decode but can never match a classified
// principal.
type Table map[Role][]*permission.Permission

// Grants reports whether the role holds the permission. A nil permission is
// never granted.
func (t Table) Grants(role Role, perm *permission.Permission) bool {
	if perm == nil {
		return false
	}
	for _, granted := range t[role] {
		if granted == perm {
			return true
		}
	}
	return false
}

// Add records a grant, ignoring nil permissions and duplicates.
func (t Table) Add(role Role, perm *permission.Permission) {
	if perm == nil || t.Grants(role, perm) {
		return
	}
	t[role] = append(t[role], perm)
}

// Clone returns a deep copy. Mutating the copy leaves the original alone.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for role, perms := range t {
		out[role] = append([]*permission.Permission(nil), perms...)
	}
	return out
}

// ACL decides whether a principal holds a permission. Values are immutable;
// build a new one (directly or through the codec) to change configuration and
// swap it in atomically at the call site.
//
// Permissions are compared by identity, so the table and the queried
// permissions must come from the same catalog.
type ACL struct {
	admins            []string
	adminSet          map[string]struct{}
	useExternalAdmins bool
	table             Table
}

// New builds an ACL from a comma-separated admin username list and a grant
// table. Each admin entry is trimmed of surrounding whitespace and empty
// entries are dropped, so " alice, , bob " admits exactly alice and bob. The
// table is copied; the caller may keep mutating its own map.
func New(adminUsernames string, useExternalAdmins bool, table Table) *ACL {
	a := &ACL{
		useExternalAdmins: useExternalAdmins,
		table:             table.Clone(),
		adminSet:          make(map[string]struct{}),
	}
	for _, name := range strings.Split(adminUsernames, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		a.admins = append(a.admins, name)
		a.adminSet[name] = struct{}{}
	}
	return a
}

// HasPermission is the decision function: classify the principal, then look
// the permission up in that role's grants. It never fails; anything the
// configuration does not explicitly allow is denied.
func (a *ACL) HasPermission(p Principal, perm *permission.Permission) bool {
	return a.table.Grants(a.Classify(p), perm)
}

// Classify sorts a principal into exactly one role. A nil or unauthenticated
// principal is Anonymous. An authenticated principal without a provider
// identity is LoggedIn. A provider-identified principal is Admin when its
// username is on the allowlist and LoggedIn otherwise.
func (a *ACL) Classify(p Principal) Role {
	if p == nil || !p.IsAuthenticated() {
		return RoleAnonymous
	}
	ident, ok := p.(Identified)
	if !ok {
		return RoleLoggedIn
	}
	if a.IsAdmin(ident.Username()) {
		return RoleAdmin
	}
	return RoleLoggedIn
}

// IsAdmin reports whether the exact username is on the admin allowlist.
// Matching is case-sensitive. The external admin registry is not consulted
// here even when UseExternalAdmins is set; see UseExternalAdmins.
func (a *ACL) IsAdmin(username string) bool {
	_, ok := a.adminSet[username]
	return ok
}

// IsPermissionSet reports whether the grant is present for the role exactly
// as configured. Unlike HasPermission it does not classify anything; the
// administration UI uses it to render the grant matrix.
func (a *ACL) IsPermissionSet(role Role, perm *permission.Permission) bool {
	return a.table.Grants(role, perm)
}

// Admins returns the allowlisted usernames in configuration order. The slice
// is a copy.
func (a *ACL) Admins() []string {
	return append([]string(nil), a.admins...)
}

// AdminUsernames returns the allowlist in its canonical persisted form: the
// entries joined with ", ". Feeding the result back to New yields the same
// allowlist.
func (a *ACL) AdminUsernames() string {
	return strings.Join(a.admins, ", ")
}

// UseExternalAdmins reports the persisted flag. The flag is carried and
// round-tripped so that existing configuration keeps its setting, but
// membership checks answer from the static allowlist only; the synced
// external admin registry is never consulted for a decision.
func (a *ACL) UseExternalAdmins() bool {
	return a.useExternalAdmins
}

// Grants returns a copy of the role table for rendering and encoding.
func (a *ACL) Grants() Table {
	return a.table.Clone()
}
