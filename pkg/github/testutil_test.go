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
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/go-github/v61/github"
)

type fakeTokenSource struct {
	orgTokens map[int64]string
}

func (f *fakeTokenSource) TokenForOrg(ctx context.Context, orgID int64) (string, error) {
	return f.orgTokens[orgID], nil
}

// GitHubData is the state served by fakeGitHub. Member lists are keyed by org
// login and by "org/slug" for teams.
type GitHubData struct {
	orgs        map[string]*github.Organization
	teams       map[string]*github.Team
	orgMembers  map[string][]*github.User
	teamMembers map[string][]*github.User
	// failPages makes the member list endpoints fail for the given page
	// numbers.
	failPages map[int]bool

	mu       sync.Mutex
	requests []string
}

// SetFailPages replaces the set of failing page numbers.
func (d *GitHubData) SetFailPages(pages ...int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failPages = make(map[int]bool, len(pages))
	for _, p := range pages {
		d.failPages[p] = true
	}
}

func (d *GitHubData) pageFails(page int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failPages[page]
}

func (d *GitHubData) record(r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
}

func (d *GitHubData) Requests() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.requests...)
}

func githubClient(server *httptest.Server) *github.Client {
	client := github.NewClient(nil)
	baseURL, _ := url.Parse(server.URL + "/")
	client.BaseURL = baseURL
	return client
}

func fakeGitHub(githubData *GitHubData) *httptest.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /orgs/{org}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		githubData.record(r)
		org, ok := githubData.orgs[r.PathValue("org")]
		if !ok {
			w.WriteHeader(404)
			fmt.Fprintf(w, "org %s not found", r.PathValue("org"))
			return
		}
		writeJSON(w, org)
	}))
	mux.Handle("GET /orgs/{org}/members", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		githubData.record(r)
		if !authorized(w, r) {
			return
		}
		members, ok := githubData.orgMembers[r.PathValue("org")]
		if !ok {
			w.WriteHeader(404)
			fmt.Fprintf(w, "org %s not found", r.PathValue("org"))
			return
		}
		writePage(w, r, members, githubData.pageFails)
	}))
	mux.Handle("GET /orgs/{org}/teams/{slug}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		githubData.record(r)
		if !authorized(w, r) {
			return
		}
		key := r.PathValue("org") + "/" + r.PathValue("slug")
		team, ok := githubData.teams[key]
		if !ok {
			w.WriteHeader(404)
			fmt.Fprintf(w, "team %s not found", key)
			return
		}
		writeJSON(w, team)
	}))
	mux.Handle("GET /orgs/{org}/teams/{slug}/members", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		githubData.record(r)
		if !authorized(w, r) {
			return
		}
		key := r.PathValue("org") + "/" + r.PathValue("slug")
		members, ok := githubData.teamMembers[key]
		if !ok {
			w.WriteHeader(404)
			fmt.Fprintf(w, "team %s not found", key)
			return
		}
		writePage(w, r, members, githubData.pageFails)
	}))
	return httptest.NewServer(mux)
}

func authorized(w http.ResponseWriter, r *http.Request) bool {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		w.WriteHeader(500)
		fmt.Fprintf(w, "missing or malformed authorization header")
		return false
	}
	return true
}

// writePage serves the requested page of all and links to the next one the
// way the GitHub API does.
func writePage[T any](w http.ResponseWriter, r *http.Request, all []T, fails func(page int) bool) {
	page, err := strconv.Atoi(r.FormValue("page"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(r.FormValue("per_page"))
	if err != nil || perPage < 1 {
		perPage = 30
	}
	if fails(page) {
		w.WriteHeader(500)
		fmt.Fprintf(w, "page %d unavailable", page)
		return
	}

	start := min((page-1)*perPage, len(all))
	end := min(start+perPage, len(all))
	if end < len(all) {
		next := fmt.Sprintf("http://%s%s?page=%d&per_page=%d", r.Host, r.URL.Path, page+1, perPage)
		w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next"`, next))
	}
	writeJSON(w, all[start:end])
}

func writeJSON(w http.ResponseWriter, v any) {
	jsn, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintf(w, "failed to marshal response")
		return
	}
	_, err = w.Write(jsn)
	if err != nil {
		return
	}
}
