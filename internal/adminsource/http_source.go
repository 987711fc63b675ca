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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSource fetches administrators from a JSON registry endpoint. The
// endpoint returns an array of user objects; only "username" and the
// optional "is_admin" flag are read, which covers GitLab-style user
// listings both pre-filtered (no flag) and unfiltered (flag per user).
type HTTPSource struct {
	httpClient *http.Client
	url        string
	token      string
}

// NewHTTPSource creates a source for the given endpoint URL. token, when
// non-empty, is sent as a bearer credential.
func NewHTTPSource(url, token string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		token:      token,
	}
}

// userRecord is the slice of the registry's user object we care about.
// IsAdmin is a pointer so an absent flag (pre-filtered endpoint) is
// distinguishable from an explicit false.
type userRecord struct {
	Username string `json:"username"`
	IsAdmin  *bool  `json:"is_admin"`
}

// FetchAdmins retrieves the registry's administrator usernames.
func (s *HTTPSource) FetchAdmins(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20)) // 4MB limit
	if err != nil {
		return nil, fmt.Errorf("read registry response: %w", err)
	}

	var users []userRecord
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("decode registry response: %w", err)
	}

	usernames := make([]string, 0, len(users))
	for _, u := range users {
		if u.Username == "" {
			continue
		}
		if u.IsAdmin != nil && !*u.IsAdmin {
			continue
		}
		usernames = append(usernames, u.Username)
	}
	return usernames, nil
}
