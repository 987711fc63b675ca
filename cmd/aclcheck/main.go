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

// aclcheck answers authorization questions against an <authorization>
// document on disk, without a server or a database. It is meant for
// reviewing a document before uploading it: validate the XML, see the
// effective grants, and dry-run single decisions.
//
//	aclcheck --file strategy.xml
//	aclcheck --file strategy.xml --user alice --permission job.build
//	aclcheck --file strategy.xml --authenticated --permission overall.read
//
// With no --permission the document is validated and summarized. With
// --permission the exit code carries the decision: 0 allowed, 1 denied,
// 2 for usage or document errors.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ciguard/ciguard/internal/acl"
	"github.com/ciguard/ciguard/internal/permission"
)

func main() {
	fs := pflag.NewFlagSet("aclcheck", pflag.ContinueOnError)
	file := fs.StringP("file", "f", "", "path to the <authorization> XML document")
	permID := fs.StringP("permission", "p", "", "permission id to decide, e.g. job.build")
	user := fs.StringP("user", "u", "", "decide as this identified user")
	authenticated := fs.Bool("authenticated", false, "decide as an authenticated caller without an identity")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if *file == "" {
		fmt.Fprintln(os.Stderr, "aclcheck: --file is required")
		fs.Usage()
		os.Exit(2)
	}

	catalog := permission.ServerCatalog()
	codec := acl.NewCodec(catalog)

	f, err := os.Open(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "aclcheck: %v\n", err)
		os.Exit(2)
	}
	strategy, err := codec.DecodeXML(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "aclcheck: invalid document: %v\n", err)
		os.Exit(2)
	}

	if *permID == "" {
		summarize(strategy)
		return
	}

	perm, known := catalog.Resolve(*permID)
	if !known {
		fmt.Fprintf(os.Stderr, "aclcheck: unknown permission %q, denying\n", *permID)
	}

	principal := buildPrincipal(*user, *authenticated)
	role := strategy.ACL.Classify(principal)
	allowed := known && strategy.ACL.HasPermission(principal, perm)

	verdict := "DENY"
	if allowed {
		verdict = "ALLOW"
	}
	fmt.Printf("%s  principal=%s role=%q permission=%s\n", verdict, describePrincipal(principal), role, *permID)

	if !allowed {
		os.Exit(1)
	}
}

// buildPrincipal maps the flags onto the principal shapes the engine
// classifies. A username implies authentication, so --user wins over
// --authenticated when both are given.
func buildPrincipal(user string, authenticated bool) acl.Principal {
	switch {
	case user != "":
		return acl.User{Name: user}
	case authenticated:
		return acl.Authenticated{}
	default:
		return acl.Anonymous{}
	}
}

func describePrincipal(p acl.Principal) string {
	switch v := p.(type) {
	case acl.User:
		return v.Name
	case acl.Authenticated:
		return "<authenticated>"
	default:
		return "<anonymous>"
	}
}

func summarize(s *acl.Strategy) {
	fmt.Println("✓ document parses")
	fmt.Printf("admins:         %s\n", joinOrNone(s.ACL.Admins()))
	fmt.Printf("external sync:  %t\n", s.ACL.UseExternalAdmins())
	fmt.Printf("sync interval:  %s\n", s.SyncInterval)
	fmt.Printf("create folders: %t\n", s.CreateFolders)
	fmt.Println("grants:")
	table := s.ACL.Grants()
	for _, role := range acl.Roles {
		ids := make([]string, 0, len(table[role]))
		for _, perm := range table[role] {
			ids = append(ids, perm.ID())
		}
		fmt.Printf("  %-10s %s\n", string(role)+":", joinOrNone(ids))
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
