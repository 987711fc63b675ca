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

package http

import (
	"context"

	"github.com/ciguard/ciguard/internal/token"
)

type contextKey string

const callerKey contextKey = "caller"

// Caller identifies the authenticated API token behind a request.
type Caller struct {
	TokenID   string
	Name      string
	Audiences []string
}

// GetCaller retrieves the authenticated caller from context.
func GetCaller(ctx context.Context) (Caller, bool) {
	val, ok := ctx.Value(callerKey).(Caller)
	return val, ok
}

func withCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

func callerFromClaims(claims *token.SessionClaims) Caller {
	return Caller{
		TokenID:   claims.TokenID,
		Name:      claims.Name,
		Audiences: claims.Audiences,
	}
}

func callerFromToken(tok *token.APIToken) Caller {
	return Caller{
		TokenID:   tok.ID,
		Name:      tok.Name,
		Audiences: tok.Audiences,
	}
}
