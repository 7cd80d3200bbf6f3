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
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-github/v61/github"
	"google.golang.org/protobuf/proto"

	"github.com/abcxyz/list-pager/pkg/paging"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/pointer"
	"github.com/abcxyz/pkg/testutil"
)

// fakeSCIM serves users from the GHES SCIM endpoint. When totalResults is
// set it is reported instead of the real count.
func fakeSCIM(users []string, totalResults *int) *httptest.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /api/v3/scim/v2/Users", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/scim+json" {
			w.WriteHeader(400)
			fmt.Fprintf(w, "unexpected accept header")
			return
		}
		startIndex, err := strconv.Atoi(r.FormValue("startIndex"))
		if err != nil || startIndex < 1 {
			w.WriteHeader(400)
			fmt.Fprintf(w, "invalid startIndex")
			return
		}
		count, err := strconv.Atoi(r.FormValue("count"))
		if err != nil {
			w.WriteHeader(400)
			fmt.Fprintf(w, "invalid count")
			return
		}

		start := min(startIndex-1, len(users))
		end := min(start+count, len(users))
		total := len(users)
		if totalResults != nil {
			total = *totalResults
		}
		result := &github.SCIMProvisionedIdentities{
			TotalResults: &total,
			StartIndex:   &startIndex,
		}
		for _, u := range users[start:end] {
			result.Resources = append(result.Resources, &github.SCIMUserAttributes{
				UserName: u,
				Active:   proto.Bool(true),
			})
		}
		writeJSON(w, result)
	}))
	return httptest.NewServer(mux)
}

func TestSCIMClient_Users(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		users        []string
		totalResults *int
		pageSize     int
		wantUsers    []string
		wantTotal    int
		wantPages    int
	}{
		{
			name:      "several_pages",
			users:     []string{"ada", "bob", "cy", "dee", "eve"},
			pageSize:  2,
			wantUsers: []string{"ada", "bob", "cy", "dee", "eve"},
			wantTotal: 5,
			wantPages: 3,
		},
		{
			name:      "exact_pages",
			users:     []string{"ada", "bob", "cy", "dee"},
			pageSize:  2,
			wantUsers: []string{"ada", "bob", "cy", "dee"},
			wantTotal: 4,
			wantPages: 2,
		},
		{
			name:      "no_users",
			pageSize:  2,
			wantUsers: []string{},
			wantTotal: 0,
			wantPages: 1,
		},
		{
			name:         "overstated_total",
			users:        []string{"ada", "bob", "cy"},
			totalResults: pointer.To(10),
			pageSize:     2,
			wantUsers:    []string{"ada", "bob", "cy"},
			wantTotal:    10,
			wantPages:    3,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := logging.WithLogger(context.Background(), logging.TestLogger(t))
			server := fakeSCIM(tc.users, tc.totalResults)
			t.Cleanup(server.Close)

			client, err := NewSCIMClient(server.Client(), server.URL, WithPageSize(tc.pageSize))
			if err != nil {
				t.Fatal(err)
			}

			var pages int
			loader := func(ctx context.Context, cursor *int) (*paging.Page[*SCIMUser, int], error) {
				pages++
				return client.Users()(ctx, cursor)
			}
			r, err := paging.New[*SCIMUser, string, int](ctx, loader)
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()
			for r.HasMore() {
				if err := r.LoadMore().Wait(ctx); err != nil {
					t.Fatal(err)
				}
			}

			got := make([]string, 0, r.Len())
			for _, u := range r.Items() {
				got = append(got, u.ID())
			}
			if diff := cmp.Diff(got, tc.wantUsers); diff != "" {
				t.Errorf("unexpected users (-got, +want):\n%s", diff)
			}
			if total, _ := r.Total(); total != tc.wantTotal {
				t.Errorf("Total() = %d, want %d", total, tc.wantTotal)
			}
			if pages != tc.wantPages {
				t.Errorf("loaded %d pages, want %d", pages, tc.wantPages)
			}
		})
	}
}

func TestSCIMClient_Users_Error(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	client, err := NewSCIMClient(server.Client(), server.URL)
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.Users()(context.Background(), nil)
	if diff := testutil.DiffErrString(err, "failed to list scim users starting at index 1: request failed with status 403"); diff != "" {
		t.Errorf("unexpected error (-got, +want):\n%s", diff)
	}
}
