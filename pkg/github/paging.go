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

package github

import (
	"github.com/google/go-github/v61/github"

	"github.com/abcxyz/list-pager/pkg/paging"
	"github.com/abcxyz/pkg/pointer"
)

// listOptions builds the request options for the page at cursor. A nil
// cursor requests the first page.
func listOptions(cursor *int, perPage int) github.ListOptions {
	opts := github.ListOptions{PerPage: perPage}
	if cursor != nil {
		opts.Page = *cursor
	}
	return opts
}

// toPage wraps one page of a GitHub list response. The page number of the
// next page is the cursor; a response without a next page ends the list.
func toPage[T any](content []T, resp *github.Response, total *int) *paging.Page[T, int] {
	page := &paging.Page[T, int]{
		Items: content,
		Total: total,
	}
	if resp != nil && resp.NextPage != 0 {
		page.HasMore = true
		page.NextCursor = pointer.To(resp.NextPage)
	}
	return page
}
