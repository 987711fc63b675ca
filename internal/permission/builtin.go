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

package permission

// Groups used by the built-in catalog.
const (
	GroupOverall = "overall"
	GroupJob     = "job"
	GroupRun     = "run"
	GroupView    = "view"
	GroupAgent   = "agent"
	GroupSCM     = "scm"
)

// ServerCatalog returns the catalog of permissions guarding the CI server
// itself. The IDs are part of the persisted configuration format and of the
// HTTP API; removing or renaming one silently voids every grant that
// references it, so entries may only be added.
func ServerCatalog() *Catalog {
	c := NewCatalog()
	mustRegister(c, GroupOverall, "administer", "Administer the CI server and change its global configuration")
	mustRegister(c, GroupOverall, "read", "See the CI server dashboard at all")
	mustRegister(c, GroupJob, "build", "Trigger a new build of a job")
	mustRegister(c, GroupJob, "cancel", "Cancel a running build")
	mustRegister(c, GroupJob, "configure", "Change the configuration of a job")
	mustRegister(c, GroupJob, "create", "Create a new job")
	mustRegister(c, GroupJob, "delete", "Delete a job")
	mustRegister(c, GroupJob, "read", "See a job and its build history")
	mustRegister(c, GroupJob, "workspace", "Browse and download job workspace contents")
	mustRegister(c, GroupRun, "delete", "Delete a recorded build")
	mustRegister(c, GroupRun, "update", "Edit the description and metadata of a build")
	mustRegister(c, GroupView, "configure", "Change the configuration of a dashboard view")
	mustRegister(c, GroupView, "create", "Create a new dashboard view")
	mustRegister(c, GroupView, "delete", "Delete a dashboard view")
	mustRegister(c, GroupView, "read", "See a dashboard view")
	mustRegister(c, GroupAgent, "configure", "Change the configuration of a build agent")
	mustRegister(c, GroupAgent, "connect", "Connect a build agent to the server")
	mustRegister(c, GroupAgent, "delete", "Remove a build agent")
	mustRegister(c, GroupSCM, "tag", "Create a source control tag for a build")
	return c
}

// mustRegister panics on a conflicting built-in definition. That only
// happens when the table above is edited incorrectly, never at runtime.
func mustRegister(c *Catalog, group, name, description string) *Permission {
	p, err := c.Register(group, name, description)
	if err != nil {
		panic(err)
	}
	return p
}
