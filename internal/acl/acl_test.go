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

package acl_test

import (
	"reflect"
	"testing"

	"github.com/ciguard/ciguard/internal/acl"
	"github.com/ciguard/ciguard/internal/permission"
)

func mustResolve(t *testing.T, c *permission.Catalog, id string) *permission.Permission {
	t.Helper()
	p, ok := c.Resolve(id)
	if !ok {
		t.Fatalf("catalog is missing %s", id)
	}
	return p
}

func TestACL_Classify(t *testing.T) {
	engine := acl.New("alice, bob", false, acl.Table{})

	tests := []struct {
		name      string
		principal acl.Principal
		want      acl.Role
	}{
		{name: "nil principal", principal: nil, want: acl.RoleAnonymous},
		{name: "anonymous", principal: acl.Anonymous{}, want: acl.RoleAnonymous},
		{name: "authenticated without identity", principal: acl.Authenticated{}, want: acl.RoleLoggedIn},
		{name: "identified non-admin", principal: acl.User{Name: "carol"}, want: acl.RoleLoggedIn},
		{name: "identified admin", principal: acl.User{Name: "alice"}, want: acl.RoleAdmin},
		{name: "case mismatch is not admin", principal: acl.User{Name: "Alice"}, want: acl.RoleLoggedIn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engine.Classify(tt.principal); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestACL_HasPermission(t *testing.T) {
	catalog := permission.ServerCatalog()
	administer := mustResolve(t, catalog, "overall.administer")
	read := mustResolve(t, catalog, "overall.read")
	build := mustResolve(t, catalog, "job.build")

	table := acl.Table{}
	table.Add(acl.RoleAdmin, administer)
	table.Add(acl.RoleAdmin, read)
	table.Add(acl.RoleAdmin, build)
	table.Add(acl.RoleLoggedIn, read)
	table.Add(acl.RoleLoggedIn, build)
	table.Add(acl.RoleAnonymous, read)
	engine := acl.New("alice", false, table)

	tests := []struct {
		name      string
		principal acl.Principal
		perm      *permission.Permission
		want      bool
	}{
		{name: "admin can administer", principal: acl.User{Name: "alice"}, perm: administer, want: true},
		{name: "logged in cannot administer", principal: acl.User{Name: "carol"}, perm: administer, want: false},
		{name: "logged in can build", principal: acl.User{Name: "carol"}, perm: build, want: true},
		{name: "token principal can build", principal: acl.Authenticated{}, perm: build, want: true},
		{name: "anonymous can read", principal: acl.Anonymous{}, perm: read, want: true},
		{name: "anonymous cannot build", principal: acl.Anonymous{}, perm: build, want: false},
		{name: "nil principal is anonymous", principal: nil, perm: read, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engine.HasPermission(tt.principal, tt.perm); got != tt.want {
				t.Errorf("HasPermission() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestPurpose: Validates that every decision path denies when the
// configuration does not explicitly grant: empty tables, roles without an
// entry, and nil permissions all deny.
// Scope: Unit Test
// Security: Fail-closed authorization (prevents privilege through absence or
// corruption of configuration)
// Expected: HasPermission returns false on every path that lacks a grant.
// Test Case ID: ACL-01
func TestACL_FailClosed(t *testing.T) {
	catalog := permission.ServerCatalog()
	administer := mustResolve(t, catalog, "overall.administer")

	empty := acl.New("alice", false, nil)
	if empty.HasPermission(acl.User{Name: "alice"}, administer) {
		t.Error("empty table granted a permission to an admin")
	}
	if empty.HasPermission(acl.Anonymous{}, administer) {
		t.Error("empty table granted a permission to anonymous")
	}

	table := acl.Table{}
	table.Add(acl.RoleAdmin, administer)
	partial := acl.New("alice", false, table)
	if partial.HasPermission(acl.User{Name: "carol"}, administer) {
		t.Error("grant for Admin leaked to the LoggedIn role")
	}
	if partial.HasPermission(acl.User{Name: "alice"}, nil) {
		t.Error("nil permission was granted")
	}
}

func TestACL_AdminAllowlist(t *testing.T) {
	engine := acl.New(" alice, , bob ", true, nil)

	if got, want := engine.Admins(), []string{"alice", "bob"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Admins() = %v, want %v", got, want)
	}
	if got, want := engine.AdminUsernames(), "alice, bob"; got != want {
		t.Errorf("AdminUsernames() = %q, want %q", got, want)
	}
	if !engine.IsAdmin("alice") || !engine.IsAdmin("bob") {
		t.Error("allowlisted names were not admins")
	}
	if engine.IsAdmin("") {
		t.Error("empty username matched the allowlist")
	}
	if engine.IsAdmin(" alice") {
		t.Error("allowlist matching should be exact, not trimmed at query time")
	}

	if got := acl.New("", false, nil).AdminUsernames(); got != "" {
		t.Errorf("empty allowlist renders as %q, want empty", got)
	}
	if got := acl.New("   ", false, nil).Admins(); len(got) != 0 {
		t.Errorf("blank allowlist parsed to %v, want none", got)
	}

	// Duplicates are kept in the list for round-trip fidelity; membership
	// is still a plain contains-check.
	dup := acl.New("alice, bob, alice", false, nil)
	if got, want := dup.Admins(), []string{"alice", "bob", "alice"}; !reflect.DeepEqual(got, want) {
		t.Errorf("duplicated entry collapsed: Admins() = %v, want %v", got, want)
	}
	if got, want := dup.AdminUsernames(), "alice, bob, alice"; got != want {
		t.Errorf("AdminUsernames() = %q, want %q", got, want)
	}
	if !dup.IsAdmin("alice") {
		t.Error("duplicated name should still be an admin")
	}
}

// TestPurpose: Validates that the persisted external-admins flag is inert:
// it round-trips but never widens the admin allowlist.
// Scope: Unit Test
// Security: Disabled integration paths must not grant privileges.
// Expected: With the flag set, only allowlisted usernames classify as Admin.
// Test Case ID: ACL-02
func TestACL_ExternalAdminsFlagInert(t *testing.T) {
	engine := acl.New("alice", true, nil)

	if !engine.UseExternalAdmins() {
		t.Fatal("flag value was not preserved")
	}
	if got := engine.Classify(acl.User{Name: "external-root"}); got != acl.RoleLoggedIn {
		t.Errorf("non-allowlisted user classified as %q with flag set, want %q", got, acl.RoleLoggedIn)
	}
	if got := engine.Classify(acl.User{Name: "alice"}); got != acl.RoleAdmin {
		t.Errorf("allowlisted user classified as %q, want %q", got, acl.RoleAdmin)
	}
}

func TestACL_ImmutableAfterNew(t *testing.T) {
	catalog := permission.ServerCatalog()
	administer := mustResolve(t, catalog, "overall.administer")
	build := mustResolve(t, catalog, "job.build")

	table := acl.Table{}
	table.Add(acl.RoleLoggedIn, build)
	engine := acl.New("alice", false, table)

	// Mutations of the source table and of accessor copies must not show
	// up in the engine.
	table.Add(acl.RoleLoggedIn, administer)
	grants := engine.Grants()
	grants.Add(acl.RoleAnonymous, administer)
	admins := engine.Admins()
	admins[0] = "mallory"

	if engine.IsPermissionSet(acl.RoleLoggedIn, administer) {
		t.Error("mutating the source table changed the engine")
	}
	if engine.IsPermissionSet(acl.RoleAnonymous, administer) {
		t.Error("mutating a Grants() copy changed the engine")
	}
	if !engine.IsAdmin("alice") || engine.IsAdmin("mallory") {
		t.Error("mutating an Admins() copy changed the allowlist")
	}
}

func TestACL_IsPermissionSet(t *testing.T) {
	catalog := permission.ServerCatalog()
	read := mustResolve(t, catalog, "overall.read")
	build := mustResolve(t, catalog, "job.build")

	table := acl.Table{}
	table.Add(acl.RoleAnonymous, read)
	engine := acl.New("", false, table)

	if !engine.IsPermissionSet(acl.RoleAnonymous, read) {
		t.Error("configured grant not reported as set")
	}
	if engine.IsPermissionSet(acl.RoleAnonymous, build) {
		t.Error("unconfigured grant reported as set")
	}
	if engine.IsPermissionSet(acl.RoleAdmin, read) {
		t.Error("grant reported for a role with no entries")
	}
}

func TestRole_Valid(t *testing.T) {
	for _, role := range acl.Roles {
		if !role.Valid() {
			t.Errorf("canonical role %q reported invalid", role)
		}
	}
	if acl.Role("Project Owner").Valid() {
		t.Error("non-canonical role reported valid")
	}
}
