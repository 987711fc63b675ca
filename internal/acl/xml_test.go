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
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciguard/ciguard/internal/acl"
	"github.com/ciguard/ciguard/internal/permission"
)

func TestCodec_XMLRoundTrip(t *testing.T) {
	catalog := permission.ServerCatalog()
	codec := acl.NewCodec(catalog)

	table := acl.Table{}
	table.Add(acl.RoleAdmin, mustResolve(t, catalog, "overall.administer"))
	table.Add(acl.RoleLoggedIn, mustResolve(t, catalog, "job.build"))
	table.Add(acl.RoleAnonymous, mustResolve(t, catalog, "overall.read"))
	in := &acl.Strategy{
		ACL:           acl.New("alice, bob", true, table),
		SyncInterval:  30 * time.Minute,
		CreateFolders: true,
	}

	var buf bytes.Buffer
	require.NoError(t, codec.EncodeXML(&buf, in))

	doc := buf.String()
	assert.Contains(t, doc, "<authorization>")
	assert.Contains(t, doc, "<syncInterval>30m0s</syncInterval>")
	assert.Contains(t, doc, "<createFolders>true</createFolders>")
	assert.Contains(t, doc, "<admin>alice</admin>")
	assert.Contains(t, doc, "<permission>Logged In:job.build</permission>")

	out, err := codec.DecodeXML(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, in.SyncInterval, out.SyncInterval)
	assert.Equal(t, in.CreateFolders, out.CreateFolders)
	assert.Equal(t, in.ACL.AdminUsernames(), out.ACL.AdminUsernames())
	assert.Equal(t, in.ACL.UseExternalAdmins(), out.ACL.UseExternalAdmins())
	assert.Equal(t, codec.Encode(in.ACL), codec.Encode(out.ACL))
}

// TestPurpose: Validates that a hand-edited or partially stale strategy
// document loads with every unusable element dropped instead of failing.
// Scope: Unit Test
// Security: Tolerant configuration loading across versions.
// Expected: Unknown elements, bad durations and bad grants are skipped;
// valid content is preserved.
// Test Case ID: ACL-04
func TestCodec_XMLTolerantDecode(t *testing.T) {
	catalog := permission.ServerCatalog()
	codec := acl.NewCodec(catalog)

	const doc = `<?xml version="1.0" encoding="UTF-8"?>
<authorization>
  <formatVersion>7</formatVersion>
  <syncInterval>every tuesday</syncInterval>
  <createFolders>TRUE</createFolders>
  <acl>
    <useExternalAdmins>false</useExternalAdmins>
    <admin> alice </admin>
    <admin>bob</admin>
    <note>migrated 2025-11-02</note>
    <permission>Anonymous:overall.read</permission>
    <permission>Anonymous:job.obliterate</permission>
    <permission>Admin</permission>
    <permission>Admin:overall.administer<scope>global</scope></permission>
  </acl>
  <legacy><nested><deep>ignored</deep></nested></legacy>
</authorization>`

	out, err := codec.DecodeXML(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, acl.DefaultSyncInterval, out.SyncInterval, "bad duration should fall back to the default")
	assert.True(t, out.CreateFolders)
	assert.Equal(t, "alice, bob", out.ACL.AdminUsernames())
	assert.True(t, out.ACL.IsPermissionSet(acl.RoleAnonymous, mustResolve(t, catalog, "overall.read")))
	assert.True(t, out.ACL.IsPermissionSet(acl.RoleAdmin, mustResolve(t, catalog, "overall.administer")),
		"markup inside a record value should be skipped, not kill the record text")
	for _, p := range catalog.All() {
		if p.ID() == "overall.read" {
			continue
		}
		assert.Falsef(t, out.ACL.IsPermissionSet(acl.RoleAnonymous, p), "unexpected Anonymous grant %s", p.ID())
	}
}

func TestCodec_XMLDefaults(t *testing.T) {
	codec := acl.NewCodec(permission.ServerCatalog())

	out, err := codec.DecodeXML(strings.NewReader("<authorization></authorization>"))
	require.NoError(t, err)
	assert.Equal(t, acl.DefaultSyncInterval, out.SyncInterval)
	assert.False(t, out.CreateFolders)
	require.NotNil(t, out.ACL)
	assert.Empty(t, out.ACL.Admins())
	assert.False(t, out.ACL.UseExternalAdmins())
}

func TestCodec_XMLMalformed(t *testing.T) {
	codec := acl.NewCodec(permission.ServerCatalog())

	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty input", doc: ""},
		{name: "whitespace only", doc: "   \n  "},
		{name: "truncated document", doc: "<authorization><acl><admin>alice</admin>"},
		{name: "mismatched close", doc: "<authorization><acl></authorization></acl>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.DecodeXML(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestCodec_XMLEncodeNilACL(t *testing.T) {
	codec := acl.NewCodec(permission.ServerCatalog())

	var buf bytes.Buffer
	require.NoError(t, codec.EncodeXML(&buf, &acl.Strategy{SyncInterval: acl.DefaultSyncInterval}))

	out, err := codec.DecodeXML(&buf)
	require.NoError(t, err)
	require.NotNil(t, out.ACL)
	assert.Empty(t, out.ACL.Admins())
}
