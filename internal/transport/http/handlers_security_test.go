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
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// DECISION API INPUT VALIDATION TESTS
// Category: Decision API - Input Validation & HTTP Behavior
// Type: Unit Test (UT)
// =============================================================================

// TestPurpose: Validates that malformed JSON in a decision request is rejected safely.
// Scope: Unit Test
// Security: JSON parsing safety (prevents parser exploits)
// Expected: Returns HTTP 400 Bad Request for malformed JSON.
// Test Case ID: API-01
func TestDecide_MalformedJSON_ReturnsBadRequest(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/v1/decisions", env.decideCred, `{invalid_json}`)

	assert.Equal(t, http.StatusBadRequest, w.Code,
		"API-01: Malformed JSON should return 400 Bad Request")
}

// TestPurpose: Validates that a decision request without a permission_id is rejected.
// Scope: Unit Test
// Security: Input validation boundary check
// Expected: Returns HTTP 400 Bad Request for a missing permission_id.
// Test Case ID: API-02
func TestDecide_MissingPermissionID_ReturnsBadRequest(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/v1/decisions", env.decideCred, map[string]any{
		"authenticated": true,
		"username":      "alice",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code,
		"API-02: Missing permission_id should return 400 Bad Request")
}

// TestPurpose: Validates that session creation requires a token in the body.
// Scope: Unit Test
// Security: Request body parsing and validation
// Expected: Returns HTTP 400 Bad Request for empty bodies and missing tokens.
// Test Case ID: API-03
func TestSession_EmptyBody_ReturnsBadRequest(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/v1/sessions", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code,
		"API-03: Empty body should return 400 Bad Request")

	w = env.do(t, "POST", "/api/v1/sessions", "", map[string]string{"token": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code,
		"API-03: Empty token should return 400 Bad Request")
}

// =============================================================================
// SECURITY TESTS - Credential Handling
// Category: Security - Authentication
// Type: Unit Test (UT)
// =============================================================================

// TestPurpose: Validates that credential failures on protected routes are indistinguishable,
// whether the token ID exists or the secret is wrong.
// Scope: Unit Test
// Security: Account/token enumeration prevention (CWE-204)
// Expected: Identical status and body for unknown-ID and wrong-secret credentials.
// Test Case ID: SEC-20
func TestSecurity_Auth_UniformCredentialFailure(t *testing.T) {
	env := newTestEnv(t)

	// Take a real token ID but break its secret.
	parts := strings.SplitN(env.decideCred, "_", 3)
	require.Len(t, parts, 3)
	wrongSecret := parts[0] + "_" + parts[1] + "_" + "not-the-secret"
	unknownID := "cg_no-such-id_whatever"

	w1 := env.do(t, "POST", "/api/v1/decisions", wrongSecret, map[string]any{"permission_id": "job.build"})
	w2 := env.do(t, "POST", "/api/v1/decisions", unknownID, map[string]any{"permission_id": "job.build"})

	assert.Equal(t, http.StatusUnauthorized, w1.Code, "SEC-20: wrong secret must 401")
	assert.Equal(t, http.StatusUnauthorized, w2.Code, "SEC-20: unknown ID must 401")
	assert.Equal(t, w1.Body.String(), w2.Body.String(),
		"SEC-20 SECURITY: failure responses must not reveal whether the token ID exists")
}

// TestPurpose: Validates that every admin-plane route fails closed without credentials.
// Scope: Unit Test
// Security: Fail-closed access control
// Expected: Returns HTTP 401 Unauthorized for every admin route with no Authorization header.
// Test Case ID: SEC-21
func TestSecurity_AdminPlane_FailsClosedWithoutCredentials(t *testing.T) {
	env := newTestEnv(t)

	routes := []struct{ method, path string }{
		{"GET", "/api/v1/acl"},
		{"PUT", "/api/v1/acl"},
		{"GET", "/api/v1/acl/history"},
		{"GET", "/api/v1/external-admins"},
		{"GET", "/api/v1/tokens"},
		{"POST", "/api/v1/tokens"},
		{"DELETE", "/api/v1/tokens/some-id"},
		{"POST", "/api/v1/decisions"},
		{"GET", "/api/v1/permissions"},
	}

	for _, route := range routes {
		w := env.do(t, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code,
			"SEC-21: %s %s must 401 without credentials", route.method, route.path)
	}
}

// TestPurpose: Validates that token listings never expose secret material.
// Scope: Unit Test
// Security: Credential storage isolation; only argon2id hashes exist at rest
// Expected: Neither the plaintext secret nor any hash field appears in list responses.
// Test Case ID: SEC-22
func TestSecurity_Tokens_ListNeverExposesSecrets(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/v1/tokens", env.adminCred, map[string]any{
		"name": "leak-probe",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody(t, w)
	plaintext, _ := created["plaintext"].(string)
	require.NotEmpty(t, plaintext)
	secretPart := plaintext[strings.LastIndex(plaintext, "_")+1:]

	w = env.do(t, "GET", "/api/v1/tokens", env.adminCred, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	assert.NotContains(t, body, secretPart,
		"SEC-22 SECURITY: token secret must not appear in listings")
	assert.NotContains(t, body, "secret_hash",
		"SEC-22 SECURITY: hash field must not be serialized")
	assert.NotContains(t, body, "$argon2id$",
		"SEC-22 SECURITY: argon2 hashes must not be serialized")
}

// TestPurpose: Validates that error responses do not leak sensitive internal details.
// Scope: Unit Test
// Security: Information disclosure prevention (CWE-209)
// Expected: Response body does not contain patterns like "panic", "/home/", "goroutine", etc.
// Test Case ID: SEC-23
func TestSecurity_ErrorHandling_NoSensitiveDataIsLeaked(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/v1/decisions", env.decideCred, `{invalid}`)

	body := w.Body.String()

	sensitivePatterns := []string{
		"panic",
		"/Users/",
		"/home/",
		"goroutine",
		"runtime.",
		".go:",
		"stack trace",
	}

	for _, pattern := range sensitivePatterns {
		assert.NotContains(t, strings.ToLower(body), strings.ToLower(pattern),
			"SEC-23 SECURITY: Response should not contain '%s'", pattern)
	}
}

// TestPurpose: Validates that JSON responses include the application/json Content-Type header.
// Scope: Unit Test
// Security: Prevents MIME sniffing attacks
// Expected: Content-Type header contains "application/json".
// Test Case ID: SEC-24
func TestSecurity_Headers_JSONContentTypeIsSet(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "GET", "/health", "", nil)

	contentType := w.Header().Get("Content-Type")
	assert.Contains(t, contentType, "application/json",
		"SEC-24: JSON responses must have application/json content type")
}

// TestPurpose: Validates that oversized configuration documents are rejected before parsing.
// Scope: Unit Test
// Security: Resource exhaustion prevention
// Expected: Returns HTTP 413 for documents above the size cap.
// Test Case ID: SEC-25
func TestSecurity_ACL_OversizedDocumentRejected(t *testing.T) {
	env := newTestEnv(t)

	huge := "<authorization>" + strings.Repeat("x", maxACLDocumentBytes) + "</authorization>"
	w := env.do(t, "PUT", "/api/v1/acl", env.adminCred, huge)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code,
		"SEC-25: oversized documents must be rejected")
}
