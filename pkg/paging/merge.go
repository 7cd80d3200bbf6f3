// Copyright 2026 The Authors (see AUTHORS file)
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

package paging

// mergeByID appends the elements of incoming whose IDs are not already
// present. The first element seen for an ID always wins, including duplicates
// within incoming itself.
func mergeByID[E Identifiable[K], K comparable](existing, incoming []E) []E {
	seen := make(map[K]struct{}, len(existing)+len(incoming))
	for _, e := range existing {
		seen[e.ID()] = struct{}{}
	}

	merged := existing
	for _, e := range incoming {
		id := e.ID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, e)
	}
	return merged
}

// dedupByID returns items with later duplicates removed.
func dedupByID[E Identifiable[K], K comparable](items []E) []E {
	return mergeByID[E, K](make([]E, 0, len(items)), items)
}
