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
	"context"
	"fmt"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/abcxyz/list-pager/pkg/paging"
	"github.com/abcxyz/pkg/cache"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/pointer"
)

const (
	// DefaultCacheDuration is the default time to live for the group cache.
	// We don't expect group info (group name etc.) to change frequently so a
	// time to live of 1 day is the default.
	DefaultCacheDuration = time.Hour * 24

	// DefaultPageSize is the number of entries requested per page. 100 is the
	// maximum GitLab accepts.
	DefaultPageSize = 100
)

type Config struct {
	cacheDuration time.Duration
	pageSize      int
}

type Opt func(config *Config)

// WithCacheDuration set the time to live for the group cache entries.
func WithCacheDuration(duration time.Duration) Opt {
	return func(config *Config) {
		config.cacheDuration = duration
	}
}

// WithPageSize sets the number of entries requested per page.
func WithPageSize(n int) Opt {
	return func(config *Config) {
		if n > 0 {
			config.pageSize = n
		}
	}
}

// Member is a direct user member of a GitLab group, identified by the
// numeric user ID.
type Member struct {
	UserID     int
	Username   string
	Attributes *gitlab.GroupMember
}

func (m *Member) ID() int {
	return m.UserID
}

// SubGroup is a direct subgroup of a GitLab group, identified by the numeric
// group ID.
type SubGroup struct {
	GroupID    int
	Path       string
	Attributes *gitlab.Group
}

func (g *SubGroup) ID() int {
	return g.GroupID
}

// Lister builds page loaders over GitLab group listings.
type Lister struct {
	clientProvider *ClientProvider
	groupCache     *cache.Cache[*gitlab.Group]
	pageSize       int
}

func NewLister(clientProvider *ClientProvider, opts ...Opt) *Lister {
	config := &Config{
		cacheDuration: DefaultCacheDuration,
		pageSize:      DefaultPageSize,
	}
	for _, opt := range opts {
		opt(config)
	}
	return &Lister{
		clientProvider: clientProvider,
		groupCache:     cache.New[*gitlab.Group](config.cacheDuration),
		pageSize:       config.pageSize,
	}
}

// GroupMembers returns a loader over the direct user members of the group
// with the given ID. The group is looked up before its first page so that an
// unknown group fails construction rather than producing an empty list.
func (l *Lister) GroupMembers(groupID string) paging.PageLoader[*Member, int] {
	return func(ctx context.Context, cursor *int) (*paging.Page[*Member, int], error) {
		client, err := l.clientForGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}

		opts := &gitlab.ListGroupMembersOptions{ListOptions: listOptions(cursor, l.pageSize)}
		logger := logging.FromContext(ctx)
		logger.DebugContext(ctx, "fetching group members page",
			"group_id", groupID,
			"page", opts.Page,
		)
		userMembers, resp, err := client.Groups.ListGroupMembers(groupID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch group members for %s: %w", groupID, err)
		}

		members := make([]*Member, 0, len(userMembers))
		for _, m := range userMembers {
			members = append(members, &Member{UserID: m.ID, Username: m.Username, Attributes: m})
		}
		return toPage(members, resp), nil
	}
}

// SubGroups returns a loader over the direct subgroups of the group with the
// given ID.
func (l *Lister) SubGroups(groupID string) paging.PageLoader[*SubGroup, int] {
	return func(ctx context.Context, cursor *int) (*paging.Page[*SubGroup, int], error) {
		client, err := l.clientForGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}

		opts := &gitlab.ListSubGroupsOptions{ListOptions: listOptions(cursor, l.pageSize)}
		logger := logging.FromContext(ctx)
		logger.DebugContext(ctx, "fetching subgroups page",
			"group_id", groupID,
			"page", opts.Page,
		)
		groups, resp, err := client.Groups.ListSubGroups(groupID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch subgroups for %s: %w", groupID, err)
		}

		subgroups := make([]*SubGroup, 0, len(groups))
		for _, g := range groups {
			subgroups = append(subgroups, &SubGroup{GroupID: g.ID, Path: g.FullPath, Attributes: g})
		}
		return toPage(subgroups, resp), nil
	}
}

func (l *Lister) clientForGroup(ctx context.Context, groupID string) (*gitlab.Client, error) {
	client, err := l.clientProvider.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gitlab client: %w", err)
	}
	if _, err := l.getGitLabGroup(ctx, client, groupID); err != nil {
		return nil, err
	}
	return client, nil
}

func (l *Lister) getGitLabGroup(ctx context.Context, client *gitlab.Client, groupID string) (*gitlab.Group, error) {
	group, err := l.groupCache.WriteThruLookup(groupID, func() (*gitlab.Group, error) {
		logger := logging.FromContext(ctx)
		logger.InfoContext(ctx, "fetching group", "group_id", groupID)
		group, _, err := client.Groups.GetGroup(groupID, &gitlab.GetGroupOptions{}, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch group %s: %w", groupID, err)
		}
		return group, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to lookup gitlab group: %w", err)
	}
	return group, nil
}

// listOptions builds the request options for the page at cursor. A nil
// cursor requests the first page.
func listOptions(cursor *int, perPage int) gitlab.ListOptions {
	opts := gitlab.ListOptions{PerPage: perPage}
	if cursor != nil {
		opts.Page = *cursor
	}
	return opts
}

// toPage wraps one page of a GitLab list response. GitLab omits the X-Total
// header for large collections, in which case the page carries no total.
func toPage[T any](content []T, resp *gitlab.Response) *paging.Page[T, int] {
	page := &paging.Page[T, int]{Items: content}
	if resp == nil {
		return page
	}
	if resp.Header.Get("X-Total") != "" {
		page.Total = pointer.To(resp.TotalItems)
	}
	if resp.NextPage != 0 {
		page.HasMore = true
		page.NextCursor = pointer.To(resp.NextPage)
	}
	return page
}
