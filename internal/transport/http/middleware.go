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
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ciguard/ciguard/internal/audit"
	"github.com/ciguard/ciguard/internal/observability/logger"
	"github.com/ciguard/ciguard/internal/token"
)

// Authentication Principles:
// 1. Bearer credentials only; no cookies, no ambient identity
// 2. A raw API token and a session JWT minted from it carry the same
//    audiences; audience decides route access, never the credential shape
// 3. Credential failures collapse to a uniform 401 so callers cannot
//    probe which token IDs exist

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Log request start
			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// RequireAudience authenticates the bearer credential and enforces that it
// covers at least one of the given audiences. The credential may be a raw
// API token (cg_ prefix) or a session JWT minted by POST /sessions; both
// resolve to the same Caller in the request context.
func (h *Handler) RequireAudience(audiences ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred := bearerCredential(r)
			if cred == "" {
				respondError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			caller, err := h.authenticate(r, cred)
			if err != nil {
				h.auditLogger.Log(r.Context(), audit.Event{
					Type:      audit.TypeSessionRejected,
					ActorID:   "unknown",
					Resource:  audit.ResourceSession,
					IPAddress: getIPAddress(r),
					UserAgent: r.UserAgent(),
					Metadata:  map[string]any{audit.AttrReason: err.Error()},
				})
				respondError(w, http.StatusUnauthorized, "invalid or expired credentials")
				return
			}

			if !coversAny(caller.Audiences, audiences) {
				h.auditLogger.Log(r.Context(), audit.Event{
					Type:      audit.TypeSessionRejected,
					ActorID:   caller.Name,
					Resource:  audit.ResourceSession,
					IPAddress: getIPAddress(r),
					Metadata: map[string]any{
						audit.AttrTokenID: caller.TokenID,
						audit.AttrReason:  "missing audience",
						"required":        audiences,
					},
				})
				respondError(w, http.StatusForbidden, "credential does not cover this endpoint")
				return
			}

			next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), caller)))
		})
	}
}

// authenticate resolves either credential shape. The cg_ prefix routes to
// the argon2-backed token check; everything else is treated as a session
// JWT. Audience enforcement happens in the caller, once, for both shapes.
func (h *Handler) authenticate(r *http.Request, cred string) (Caller, error) {
	if strings.HasPrefix(cred, token.Prefix+"_") {
		tok, err := h.tokenService.Authenticate(r.Context(), cred)
		if err != nil {
			return Caller{}, err
		}
		return callerFromToken(tok), nil
	}

	claims, err := h.tokenService.VerifySession(cred, "")
	if err != nil {
		return Caller{}, err
	}
	return callerFromClaims(claims), nil
}

func bearerCredential(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

func coversAny(have, want []string) bool {
	for _, w := range want {
		for _, a := range have {
			if a == w {
				return true
			}
		}
	}
	return false
}

// sessionStatus maps a token authentication failure to the response code
// for POST /sessions. Unlike the middleware, session creation reports
// revoked and expired tokens distinctly: the caller already proved it
// holds the credential, so there is nothing left to probe.
func sessionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, token.ErrTokenRevoked):
		return http.StatusUnauthorized, "token revoked"
	case errors.Is(err, token.ErrTokenExpired):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, token.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid credentials"
	default:
		return http.StatusInternalServerError, "failed to create session"
	}
}
