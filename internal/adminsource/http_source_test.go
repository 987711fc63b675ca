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

package adminsource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestHTTPSource_FetchAdmins(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"username": "root", "is_admin": true},
			{"username": "peon", "is_admin": false},
			{"username": "prefiltered"},
			{"username": ""}
		]`))
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, "registry-token", 5*time.Second)
	admins, err := source.FetchAdmins(context.Background())
	if err != nil {
		t.Fatalf("FetchAdmins() error: %v", err)
	}

	want := []string{"root", "prefiltered"}
	if !reflect.DeepEqual(admins, want) {
		t.Errorf("FetchAdmins() = %v, want %v", admins, want)
	}
	if gotAuth != "Bearer registry-token" {
		t.Errorf("Authorization header = %q", gotAuth)
	}
}

func TestHTTPSource_NoToken(t *testing.T) {
	var sawAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, "", 5*time.Second)
	if _, err := source.FetchAdmins(context.Background()); err != nil {
		t.Fatalf("FetchAdmins() error: %v", err)
	}
	if sawAuth {
		t.Error("empty token must not send an Authorization header")
	}
}

func TestHTTPSource_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, "", 5*time.Second)
	_, err := source.FetchAdmins(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("error = %v, want ErrSourceUnavailable", err)
	}
}

func TestHTTPSource_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not": "an array"}`))
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, "", 5*time.Second)
	if _, err := source.FetchAdmins(context.Background()); err == nil {
		t.Error("malformed response should fail")
	}
}

func TestHTTPSource_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := NewHTTPSource(server.URL, "", 5*time.Second)
	if _, err := source.FetchAdmins(ctx); err == nil {
		t.Error("canceled context should fail the fetch")
	}
}
