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

package acl

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ciguard/ciguard/internal/permission"
)

// Tags of the persisted record stream. Exactly these three are ever written;
// anything else found while reading is dropped.
const (
	TagUseExternalAdmins = "useExternalAdmins"
	TagAdmin             = "admin"
	TagPermission        = "permission"
)

// Record is one tagged entry of the flat persisted form of an ACL.
type Record struct {
	Tag   string
	Value string
}

// Codec converts between ACL values and their persisted record stream.
// Decoding is deliberately forgiving: configuration written by an older or
// newer server, or referencing permissions this server no longer knows,
// still loads with the unusable entries silently dropped. What survives a
// decode is exactly what the engine will enforce.
type Codec struct {
	catalog *permission.Catalog
}

// NewCodec returns a codec resolving permission IDs against catalog.
func NewCodec(catalog *permission.Catalog) *Codec {
	return &Codec{catalog: catalog}
}

// Encode flattens an ACL into records: the external-admins flag first, then
// one admin record per allowlist entry in order, then one permission record
// per grant as "role:permission". Role blocks follow the canonical role
// order with any non-canonical roles sorted after them, so re-encoding a
// decoded stream reproduces it exactly.
func (c *Codec) Encode(a *ACL) []Record {
	records := []Record{{Tag: TagUseExternalAdmins, Value: strconv.FormatBool(a.useExternalAdmins)}}
	for _, name := range a.admins {
		records = append(records, Record{Tag: TagAdmin, Value: name})
	}
	for _, role := range tableRoles(a.table) {
		for _, perm := range a.table[role] {
			records = append(records, Record{Tag: TagPermission, Value: string(role) + ":" + perm.ID()})
		}
	}
	return records
}

// Decode rebuilds an ACL from records. It cannot fail: records with unknown
// tags, permission values that do not split into exactly role and ID on a
// single ':', and IDs the catalog does not resolve are skipped. When the
// flag record repeats, the last occurrence wins. Admin entries pass through
// New, so whitespace around names is normalized away.
func (c *Codec) Decode(records []Record) *ACL {
	var (
		admins      []string
		useExternal bool
	)
	table := make(Table)
	for _, rec := range records {
		switch rec.Tag {
		case TagUseExternalAdmins:
			useExternal = strings.EqualFold(rec.Value, "true")
		case TagAdmin:
			admins = append(admins, rec.Value)
		case TagPermission:
			parts := strings.Split(rec.Value, ":")
			if len(parts) != 2 {
				continue
			}
			perm, ok := c.catalog.Resolve(parts[1])
			if !ok {
				continue
			}
			table.Add(Role(parts[0]), perm)
		}
	}
	return New(strings.Join(admins, ", "), useExternal, table)
}

// tableRoles returns the table's keys, canonical roles first, extras sorted.
func tableRoles(t Table) []Role {
	ordered := make([]Role, 0, len(t))
	canonical := make(map[Role]bool, len(Roles))
	for _, role := range Roles {
		canonical[role] = true
		if _, ok := t[role]; ok {
			ordered = append(ordered, role)
		}
	}
	var extras []Role
	for role := range t {
		if !canonical[role] {
			extras = append(extras, role)
		}
	}
	sort.Slice(extras, func(i, j int) bool { return extras[i] < extras[j] })
	return append(ordered, extras...)
}
