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

package permission_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/ciguard/ciguard/internal/permission"
)

func TestCatalog_RegisterAndResolve(t *testing.T) {
	c := permission.NewCatalog()

	p, err := c.Register("job", "build", "Trigger a new build of a job")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID() != "job.build" {
		t.Errorf("ID() = %q, want %q", p.ID(), "job.build")
	}
	if p.Group() != "job" || p.Name() != "build" {
		t.Errorf("Group()/Name() = %q/%q, want job/build", p.Group(), p.Name())
	}

	got, ok := c.Resolve("job.build")
	if !ok {
		t.Fatal("Resolve(job.build) not found after Register")
	}
	if got != p {
		t.Error("Resolve returned a different instance than Register")
	}
}

func TestCatalog_ResolveUnknown(t *testing.T) {
	c := permission.NewCatalog()
	if _, ok := c.Resolve("job.build"); ok {
		t.Error("Resolve on empty catalog should report not found")
	}
}

func TestCatalog_RegisterDuplicate(t *testing.T) {
	c := permission.NewCatalog()
	if _, err := c.Register("job", "build", "first"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := c.Register("job", "build", "second")
	if !errors.Is(err, permission.ErrDuplicate) {
		t.Errorf("duplicate Register error = %v, want ErrDuplicate", err)
	}
}

// TestPurpose: Validates that permission IDs containing the grant separator
// character or whitespace are rejected at registration time.
// Scope: Unit Test
// Security: Persisted grants are encoded as "role:permission" pairs; a colon
// inside an ID would corrupt every configuration file that stores it.
// Expected: Register fails with ErrInvalidID.
// Test Case ID: PRM-01
func TestCatalog_RegisterRejectsUnsafeIDs(t *testing.T) {
	tests := []struct {
		name     string
		group    string
		permName string
	}{
		{name: "colon in group", group: "job:extra", permName: "build"},
		{name: "colon in name", group: "job", permName: "bu:ild"},
		{name: "empty group", group: "", permName: "build"},
		{name: "empty name", group: "job", permName: ""},
		{name: "space in name", group: "job", permName: "build now"},
		{name: "tab in group", group: "jo\tb", permName: "build"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := permission.NewCatalog()
			_, err := c.Register(tt.group, tt.permName, "desc")
			if !errors.Is(err, permission.ErrInvalidID) {
				t.Errorf("Register(%q, %q) error = %v, want ErrInvalidID", tt.group, tt.permName, err)
			}
		})
	}
}

func TestServerCatalog(t *testing.T) {
	c := permission.ServerCatalog()

	for _, id := range []string{"overall.administer", "overall.read", "job.build", "agent.connect"} {
		if _, ok := c.Resolve(id); !ok {
			t.Errorf("built-in catalog is missing %q", id)
		}
	}

	if _, ok := c.Resolve("job.destroy-everything"); ok {
		t.Error("built-in catalog resolved an ID that was never registered")
	}

	all := c.All()
	if len(all) == 0 {
		t.Fatal("built-in catalog is empty")
	}
	for _, p := range all {
		if strings.Contains(p.ID(), ":") {
			t.Errorf("built-in ID %q contains the grant separator", p.ID())
		}
		if want := p.Group() + "." + p.Name(); p.ID() != want {
			t.Errorf("ID %q does not match group.name %q", p.ID(), want)
		}
		if p.Description() == "" {
			t.Errorf("built-in permission %q has no description", p.ID())
		}
	}
}
