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

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/pointer"
)

// Snapshot is a consistent copy of the observable state of a Response.
type Snapshot[E any] struct {
	Items     []E
	Total     *int
	HasMore   bool
	IsLoading bool
	Err       error
}

// Response accumulates the pages of a remote collection for a list view. At
// most one page fetch is in flight at any time, elements are de-duplicated by
// ID with the first seen value kept, and the list may be mutated while a fetch
// is outstanding.
//
// All methods are safe for concurrent use.
type Response[E Identifiable[K], K comparable, C any] struct {
	loadPage          PageLoader[E, C]
	prefetchThreshold int

	// ctx is handed to every loader call after the first and is cancelled by
	// Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	items       []E
	total       *int
	hasMore     bool
	isLoading   bool
	err         error
	nextCursor  *C
	pending     *Task
	closed      bool
	subscribers map[int]chan struct{}
	nextSubID   int
}

// New creates a Response by loading the first page. If that load fails no
// Response is returned and the caller must retry construction.
//
// ctx bounds the lifetime of the Response: every later page load receives a
// context derived from it.
func New[E Identifiable[K], K comparable, C any](ctx context.Context, loadPage PageLoader[E, C], opts ...Opt) (*Response[E, K, C], error) {
	config := newConfig(opts)

	logger := logging.FromContext(ctx)
	logger.DebugContext(ctx, "loading first page")

	page, err := loadPage(ctx, nil)
	if err == nil {
		err = validatePage(page)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load first page: %w", err)
	}

	rctx, cancel := context.WithCancel(ctx)
	r := &Response[E, K, C]{
		loadPage:          loadPage,
		prefetchThreshold: config.prefetchThreshold,
		ctx:               rctx,
		cancel:            cancel,
		items:             dedupByID[E, K](page.Items),
		subscribers:       make(map[int]chan struct{}),
	}
	r.applyPageLocked(page)

	logger.DebugContext(ctx, "loaded first page",
		"items", len(r.items),
		"has_more", r.hasMore,
	)
	return r, nil
}

// LoadMore starts fetching the next page and returns a handle on the fetch.
// It returns nil, doing nothing, when the collection is exhausted, a fetch is
// already in flight, or the Response is closed.
//
// On failure the error is recorded in Err, reported by the Task, and the
// accumulated state is left as it was before the attempt.
func (r *Response[E, K, C]) LoadMore() *Task {
	r.mu.Lock()
	task, cursor := r.startLocked()
	r.mu.Unlock()

	if task != nil {
		go r.fetch(cursor, task)
	}
	return task
}

// OnRowAppeared is the prefetch policy for list views: it calls LoadMore when
// item is within the last rows of the loaded items, unless the last fetch
// failed. After a failure the next page is only requested by an explicit call
// to LoadMore.
func (r *Response[E, K, C]) OnRowAppeared(item E) *Task {
	r.mu.Lock()
	var (
		task   *Task
		cursor *C
	)
	if r.err == nil && r.nearEndLocked(item.ID()) {
		task, cursor = r.startLocked()
	}
	r.mu.Unlock()

	if task != nil {
		go r.fetch(cursor, task)
	}
	return task
}

// DeleteItem removes the element with the given ID and reports whether one
// was found. Total, when known, is decremented.
func (r *Response[E, K, C]) DeleteItem(id K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return false
	}
	r.items = slices.Delete(r.items, idx, idx+1)
	if r.total != nil {
		r.total = pointer.To(*r.total - 1)
	}
	r.notifyLocked()
	return true
}

// Replace overwrites the element that has the same ID as item, keeping its
// position. It reports whether such an element was found; nothing is inserted
// otherwise.
func (r *Response[E, K, C]) Replace(item E) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(item.ID())
	if idx < 0 {
		return false
	}
	r.items[idx] = item
	r.notifyLocked()
	return true
}

// Prepend inserts items at the front, in the given order. Total, when known,
// grows by len(items).
//
// Items are not checked against the elements already loaded; callers must not
// prepend an ID that is already present.
func (r *Response[E, K, C]) Prepend(items ...E) {
	if len(items) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	merged := make([]E, 0, len(items)+len(r.items))
	merged = append(merged, items...)
	r.items = append(merged, r.items...)
	if r.total != nil {
		r.total = pointer.To(*r.total + len(items))
	}
	r.notifyLocked()
}

// Items returns a copy of the accumulated elements.
func (r *Response[E, K, C]) Items() []E {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}

// Len returns the number of accumulated elements.
func (r *Response[E, K, C]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Total returns the size of the remote collection as last reported by the
// backend and adjusted by local mutations. ok is false when no page reported
// one.
func (r *Response[E, K, C]) Total() (total int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.total == nil {
		return 0, false
	}
	return *r.total, true
}

func (r *Response[E, K, C]) HasMore() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasMore
}

func (r *Response[E, K, C]) IsLoading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isLoading
}

// Err returns the error of the most recent page load, or nil if it succeeded
// or a new attempt is in flight.
func (r *Response[E, K, C]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Pending returns the in-flight fetch, or nil.
func (r *Response[E, K, C]) Pending() *Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// Snapshot returns a consistent copy of the observable state.
func (r *Response[E, K, C]) Snapshot() *Snapshot[E] {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Snapshot[E]{
		Items:     slices.Clone(r.items),
		HasMore:   r.hasMore,
		IsLoading: r.isLoading,
		Err:       r.err,
	}
	if r.total != nil {
		s.Total = pointer.To(*r.total)
	}
	return s
}

// Subscribe returns a channel that receives a value whenever the observable
// state changes. Notifications are coalesced, so receivers should read the
// current state with Snapshot. The returned function unsubscribes and closes
// the channel; Close closes all subscribed channels.
func (r *Response[E, K, C]) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		close(ch)
		return ch, func() {}
	}
	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = ch

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if c, ok := r.subscribers[id]; ok {
			delete(r.subscribers, id)
			close(c)
		}
	}
}

// Close cancels any in-flight fetch and stops all further fetches. A fetch
// that completes after Close leaves the accumulated state untouched.
func (r *Response[E, K, C]) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for id, ch := range r.subscribers {
		delete(r.subscribers, id)
		close(ch)
	}
	r.mu.Unlock()

	r.cancel()
}

func (r *Response[E, K, C]) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// startLocked claims the single in-flight slot and returns the task and the
// cursor to fetch with, or a nil task if no fetch may start.
func (r *Response[E, K, C]) startLocked() (*Task, *C) {
	if r.closed || !r.hasMore || r.isLoading {
		return nil, nil
	}

	r.err = nil
	r.isLoading = true
	r.pending = newTask()

	var cursor *C
	if r.nextCursor != nil {
		c := *r.nextCursor
		cursor = &c
	}
	r.notifyLocked()
	return r.pending, cursor
}

func (r *Response[E, K, C]) fetch(cursor *C, task *Task) {
	ctx := r.ctx
	logger := logging.FromContext(ctx)
	logger.DebugContext(ctx, "loading next page")

	page, err := r.loadPage(ctx, cursor)
	if err == nil {
		err = validatePage(page)
	}

	r.mu.Lock()
	r.isLoading = false
	r.pending = nil
	closed := r.closed
	switch {
	case closed:
		// The owner has discarded the list; keep its state as it was.
	case err != nil:
		r.err = err
	default:
		r.items = mergeByID[E, K](r.items, page.Items)
		r.applyPageLocked(page)
	}
	r.notifyLocked()
	count, hasMore := len(r.items), r.hasMore
	r.mu.Unlock()

	switch {
	case closed:
		logger.DebugContext(ctx, "discarded page loaded after close", "error", err)
	case err != nil:
		logger.WarnContext(ctx, "failed to load next page", "error", err)
	default:
		logger.DebugContext(ctx, "loaded next page",
			"items", count,
			"has_more", hasMore,
		)
	}
	task.finish(err)
}

// applyPageLocked replaces the pagination metadata with that of page.
func (r *Response[E, K, C]) applyPageLocked(page *Page[E, C]) {
	r.total = nil
	if page.Total != nil {
		r.total = pointer.To(*page.Total)
	}

	r.hasMore = page.HasMore
	r.nextCursor = nil
	if page.HasMore {
		c := *page.NextCursor
		r.nextCursor = &c
	}
}

func (r *Response[E, K, C]) nearEndLocked(id K) bool {
	start := max(len(r.items)-r.prefetchThreshold, 0)
	for _, e := range r.items[start:] {
		if e.ID() == id {
			return true
		}
	}
	return false
}

func (r *Response[E, K, C]) indexLocked(id K) int {
	return slices.IndexFunc(r.items, func(e E) bool {
		return e.ID() == id
	})
}

func (r *Response[E, K, C]) notifyLocked() {
	for _, ch := range r.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
