// Copyright 2024 The Authors (see AUTHORS file)
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

package gitlab

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/abcxyz/list-pager/pkg/github"
)

// GitLabData is the state served by fakeGitLab, keyed by group ID.
type GitLabData struct {
	groups       map[string]*gitlab.Group
	groupMembers map[string][]*gitlab.GroupMember
	subgroups    map[string][]*gitlab.Group
	// hideTotal drops the X-Total headers the way GitLab does for large
	// collections.
	hideTotal bool

	mu        sync.Mutex
	failPages map[int]bool
	requests  []string
}

func (d *GitLabData) SetFailPages(pages ...int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failPages = make(map[int]bool, len(pages))
	for _, p := range pages {
		d.failPages[p] = true
	}
}

func (d *GitLabData) pageFails(page int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failPages[page]
}

func (d *GitLabData) record(r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
}

func (d *GitLabData) Requests() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.requests...)
}

func gitlabClientProvider(server *httptest.Server) *ClientProvider {
	return NewGitLabClientProvider(server.URL, github.StaticKeyProvider("test-token"), server.Client(), gitlab.WithoutRetries())
}

func fakeGitLab(gitlabData *GitLabData) *httptest.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /api/v4/groups/{group_id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gitlabData.record(r)
		group, ok := gitlabData.groups[r.PathValue("group_id")]
		if !ok {
			w.WriteHeader(404)
			fmt.Fprintf(w, `{"message":"404 Group Not Found"}`)
			return
		}
		writeJSON(w, group)
	}))
	mux.Handle("GET /api/v4/groups/{group_id}/members", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gitlabData.record(r)
		members, ok := gitlabData.groupMembers[r.PathValue("group_id")]
		if !ok {
			w.WriteHeader(404)
			fmt.Fprintf(w, `{"message":"404 Group Not Found"}`)
			return
		}
		writePage(w, r, members, gitlabData)
	}))
	mux.Handle("GET /api/v4/groups/{group_id}/subgroups", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gitlabData.record(r)
		subgroups, ok := gitlabData.subgroups[r.PathValue("group_id")]
		if !ok {
			w.WriteHeader(404)
			fmt.Fprintf(w, `{"message":"404 Group Not Found"}`)
			return
		}
		writePage(w, r, subgroups, gitlabData)
	}))
	return httptest.NewServer(mux)
}

// writePage serves the requested page of all with GitLab's offset pagination
// headers.
func writePage[T any](w http.ResponseWriter, r *http.Request, all []T, gitlabData *GitLabData) {
	page, err := strconv.Atoi(r.FormValue("page"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(r.FormValue("per_page"))
	if err != nil || perPage < 1 {
		perPage = 20
	}
	if gitlabData.pageFails(page) {
		w.WriteHeader(403)
		fmt.Fprintf(w, `{"message":"page %d forbidden"}`, page)
		return
	}

	start := min((page-1)*perPage, len(all))
	end := min(start+perPage, len(all))
	w.Header().Set("X-Page", strconv.Itoa(page))
	w.Header().Set("X-Per-Page", strconv.Itoa(perPage))
	if end < len(all) {
		w.Header().Set("X-Next-Page", strconv.Itoa(page+1))
	}
	if !gitlabData.hideTotal {
		w.Header().Set("X-Total", strconv.Itoa(len(all)))
		w.Header().Set("X-Total-Pages", strconv.Itoa((len(all)+perPage-1)/perPage))
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
