// Copyright 2025 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/go-github/v61/github"

	"github.com/abcxyz/list-pager/pkg/paging"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/pointer"
)

const ghesSCIMURLPath = "/api/v3/scim/v2/"

// SCIMUser is a user provisioned through SCIM, identified by its SCIM
// userName.
type SCIMUser struct {
	UserName   string
	Attributes *github.SCIMUserAttributes
}

func (u *SCIMUser) ID() string {
	return u.UserName
}

// SCIMClient reads the GHES SCIM API.
// API doc: https://docs.github.com/en/enterprise-server@3.17/admin/managing-iam/provisioning-user-accounts-with-scim/provisioning-users-and-groups-with-scim-using-the-rest-api#provisioning-users-with-the-rest-api
type SCIMClient struct {
	httpClient *http.Client
	baseURL    *url.URL
	pageSize   int
}

// NewSCIMClient creates a new client for the GHES SCIM API. Only the page
// size option applies.
func NewSCIMClient(httpClient *http.Client, baseURL string, opts ...Opt) (*SCIMClient, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + ghesSCIMURLPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url %q: %w", baseURL, err)
	}
	config := &Config{pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(config)
	}
	return &SCIMClient{httpClient: httpClient, baseURL: u, pageSize: config.pageSize}, nil
}

// Users returns a loader over the SCIM provisioned users of the enterprise.
// SCIM pages by a 1-based start index, which is the cursor, and reports
// totalResults as the total.
func (c *SCIMClient) Users() paging.PageLoader[*SCIMUser, int] {
	return func(ctx context.Context, cursor *int) (*paging.Page[*SCIMUser, int], error) {
		startIndex := 1
		if cursor != nil {
			startIndex = *cursor
		}

		u := &url.URL{Path: "Users"}
		q := u.Query()
		q.Set("startIndex", strconv.Itoa(startIndex))
		q.Set("count", strconv.Itoa(c.pageSize))
		u.RawQuery = q.Encode()

		logger := logging.FromContext(ctx)
		logger.DebugContext(ctx, "fetching scim users page", "start_index", startIndex)

		var result github.SCIMProvisionedIdentities
		if err := c.get(ctx, c.baseURL.ResolveReference(u).String(), &result); err != nil {
			return nil, fmt.Errorf("failed to list scim users starting at index %d: %w", startIndex, err)
		}

		users := make([]*SCIMUser, 0, len(result.Resources))
		for _, r := range result.Resources {
			users = append(users, &SCIMUser{UserName: r.UserName, Attributes: r})
		}

		page := &paging.Page[*SCIMUser, int]{Items: users}
		if result.TotalResults != nil {
			page.Total = pointer.To(result.GetTotalResults())
		}
		// An empty page ends the list even if totalResults claims more.
		next := startIndex + len(result.Resources)
		if len(result.Resources) > 0 && next <= result.GetTotalResults() {
			page.HasMore = true
			page.NextCursor = pointer.To(next)
		}
		return page, nil
	}
}

// get is a helper to make a SCIM read request.
func (c *SCIMClient) get(ctx context.Context, url string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	// See headers in https://datatracker.ietf.org/doc/html/rfc7644
	req.Header.Set("Accept", "application/scim+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
