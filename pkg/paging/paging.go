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

// Package paging defines a generic, cursor-based incremental pagination
// engine for lists that load a large remote collection a page at a time.
package paging

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMissingCursor is reported when a page claims more data is available
	// but carries no cursor to fetch it with.
	ErrMissingCursor = errors.New("page has more data but no next cursor")

	// ErrNilPage is reported when a PageLoader returns neither a page nor an
	// error.
	ErrNilPage = errors.New("page loader returned a nil page")

	// ErrClosed is reported by Paginate when the Response is closed before the
	// collection is exhausted.
	ErrClosed = errors.New("response is closed")
)

// Identifiable is implemented by elements that expose a stable identity.
type Identifiable[K comparable] interface {
	ID() K
}

// Page is a single batch of elements returned by a PageLoader.
type Page[E, C any] struct {
	// Items are the elements of this page, in server order.
	Items []E

	// Total is the best-effort size of the whole remote collection, nil when
	// the backend does not report one.
	Total *int

	// HasMore is authoritative: once false, no further pages are requested.
	HasMore bool

	// NextCursor is required when HasMore is true and ignored otherwise.
	NextCursor *C
}

// PageLoader fetches the page that starts at cursor. The cursor is nil for the
// first page and is the most recently returned NextCursor afterwards.
type PageLoader[E, C any] func(ctx context.Context, cursor *C) (*Page[E, C], error)

func validatePage[E, C any](page *Page[E, C]) error {
	if page == nil {
		return ErrNilPage
	}
	if page.HasMore && page.NextCursor == nil {
		return ErrMissingCursor
	}
	return nil
}

// Paginate loads every page of a collection and returns the de-duplicated
// elements in the order they were first received.
func Paginate[E Identifiable[K], K comparable, C any](ctx context.Context, loadPage PageLoader[E, C], opts ...Opt) ([]E, error) {
	r, err := New[E, K, C](ctx, loadPage, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	defer r.Close()

	for r.HasMore() {
		task := r.LoadMore()
		if task == nil {
			if task = r.Pending(); task == nil {
				// Either the last fetch finished between the two calls or the
				// response was closed underneath us.
				if r.isClosed() {
					return nil, ErrClosed
				}
				continue
			}
		}
		if err := task.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to get page: %w", err)
		}
	}
	return r.Items(), nil
}
