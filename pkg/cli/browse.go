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

package cli

import (
	"context"
	"fmt"

	"github.com/abcxyz/list-pager/pkg/paging"
	"github.com/abcxyz/pkg/logging"
)

// browse prints the rows of loadPage one at a time the way a list view would
// show them while scrolling. Every printed row is reported to the Response so
// that the next page is fetched ahead of time. When the printed rows catch up
// with the loaded ones, browse waits for the fetch in flight or starts one.
// A failed page is requested again up to c.retries times.
func browse[E paging.Identifiable[K], K comparable, C any](ctx context.Context, c *ListCommand, loadPage paging.PageLoader[E, C], render func(E) string) error {
	logger := logging.FromContext(ctx)

	r, err := paging.New[E, K, C](ctx, loadPage, paging.WithPrefetchThreshold(c.prefetch))
	if err != nil {
		return fmt.Errorf("failed to list: %w", err)
	}
	defer r.Close()

	var shown, retries int
	var lastErr error
	for c.rows == 0 || shown < c.rows {
		if items := r.Items(); shown < len(items) {
			item := items[shown]
			c.Outf("%s", render(item))
			r.OnRowAppeared(item)
			shown++
			continue
		}
		if !r.HasMore() {
			break
		}

		task := r.Pending()
		if task == nil {
			if err := r.Err(); err != nil {
				c.Errf("failed to load more rows: %s", err)
				if retries >= c.retries {
					lastErr = err
					break
				}
				retries++
				logger.InfoContext(ctx, "retrying failed page", "attempt", retries)
			}
			if task = r.LoadMore(); task == nil {
				break
			}
		}
		// A failed page surfaces through r.Err on the next iteration.
		if err := task.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("listing interrupted: %w", ctxErr)
			}
		}
	}

	// A prefetch started by the last rows shown may still be running.
	if task := r.Pending(); task != nil {
		if err := task.Wait(ctx); err != nil {
			logger.WarnContext(ctx, "prefetch after the last row failed", "error", err)
		}
	}

	if total, ok := r.Total(); ok {
		c.Outf("shown %d of %d", shown, total)
	} else {
		c.Outf("shown %d of ?", shown)
	}

	if lastErr != nil {
		return fmt.Errorf("giving up after %d retries: %w", retries, lastErr)
	}
	return nil
}
