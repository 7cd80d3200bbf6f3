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
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v61/github"

	"github.com/abcxyz/list-pager/pkg/paging"
	"github.com/abcxyz/pkg/cache"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/pointer"
)

const (
	// DefaultCacheDuration is the default time to live for the org and team caches.
	// We don't expect org info nor team info (team name etc.) to change
	// frequently so a time to live of 1 day is the default.
	DefaultCacheDuration = time.Hour * 24

	// DefaultPageSize is the number of members requested per page. 100 is
	// the maximum the GitHub API accepts.
	DefaultPageSize = 100

	// "all" used in queries to get users with all roles.
	RoleAll = "all"
)

type Config struct {
	cacheDuration time.Duration
	pageSize      int
}

type Opt func(config *Config)

// WithCacheDuration set the time to live for the org and team cache entries.
func WithCacheDuration(duration time.Duration) Opt {
	return func(config *Config) {
		config.cacheDuration = duration
	}
}

// WithPageSize sets the number of members requested per page.
func WithPageSize(n int) Opt {
	return func(config *Config) {
		if n > 0 {
			config.pageSize = n
		}
	}
}

// User is a GitHub account in a member list. It is identified by its login.
type User struct {
	Login      string
	Attributes *github.User
}

func (u *User) ID() string {
	return u.Login
}

// Lister builds page loaders over GitHub member lists.
type Lister struct {
	orgTokenSource OrgTokenSource
	client         *github.Client
	orgCache       *cache.Cache[*github.Organization]
	teamCache      *cache.Cache[*github.Team]
	pageSize       int
}

// NewLister creates a new Lister. Requests for an org's members are made with
// the token orgTokenSource returns for that org.
func NewLister(orgTokenSource OrgTokenSource, client *github.Client, opts ...Opt) *Lister {
	config := &Config{
		cacheDuration: DefaultCacheDuration,
		pageSize:      DefaultPageSize,
	}
	for _, opt := range opts {
		opt(config)
	}
	return &Lister{
		orgTokenSource: orgTokenSource,
		client:         client,
		orgCache:       cache.New[*github.Organization](config.cacheDuration),
		teamCache:      cache.New[*github.Team](config.cacheDuration),
		pageSize:       config.pageSize,
	}
}

// OrgMembers returns a loader over the members of the org with the given
// login. GitHub does not report a member count for this list, so pages carry
// no total.
func (l *Lister) OrgMembers(org string) paging.PageLoader[*User, int] {
	return func(ctx context.Context, cursor *int) (*paging.Page[*User, int], error) {
		client, err := l.githubClientForOrg(ctx, org)
		if err != nil {
			return nil, fmt.Errorf("could not create github client: %w", err)
		}

		opts := &github.ListMembersOptions{
			ListOptions: listOptions(cursor, l.pageSize),
		}
		logger := logging.FromContext(ctx)
		logger.DebugContext(ctx, "fetching org members page",
			"org", org,
			"page", opts.Page,
		)
		members, resp, err := client.Organizations.ListMembers(ctx, org, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list members of org %s: %w", org, err)
		}
		return toPage(toUsers(members), resp, nil), nil
	}
}

// TeamMembers returns a loader over the members of the team with the given
// slug. The team's member count is reported as the total.
func (l *Lister) TeamMembers(org, teamSlug string) paging.PageLoader[*User, int] {
	return func(ctx context.Context, cursor *int) (*paging.Page[*User, int], error) {
		client, err := l.githubClientForOrg(ctx, org)
		if err != nil {
			return nil, fmt.Errorf("could not create github client: %w", err)
		}
		team, err := l.getTeam(ctx, client, org, teamSlug)
		if err != nil {
			return nil, err
		}

		opts := &github.TeamListTeamMembersOptions{
			Role:        RoleAll,
			ListOptions: listOptions(cursor, l.pageSize),
		}
		logger := logging.FromContext(ctx)
		logger.DebugContext(ctx, "fetching team members page",
			"org", org,
			"team", teamSlug,
			"page", opts.Page,
		)
		members, resp, err := client.Teams.ListTeamMembersBySlug(ctx, org, teamSlug, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list team membership: %w", err)
		}

		var total *int
		if team.MembersCount != nil {
			total = pointer.To(team.GetMembersCount())
		}
		return toPage(toUsers(members), resp, total), nil
	}
}

func (l *Lister) getOrg(ctx context.Context, org string) (*github.Organization, error) {
	ghOrg, err := l.orgCache.WriteThruLookup(org, func() (*github.Organization, error) {
		logger := logging.FromContext(ctx)
		logger.InfoContext(ctx, "fetching org", "org", org)
		ghOrg, _, err := l.client.Organizations.Get(ctx, org)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch org %s: %w", org, err)
		}
		return ghOrg, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to lookup github org: %w", err)
	}
	return ghOrg, nil
}

func (l *Lister) getTeam(ctx context.Context, client *github.Client, org, teamSlug string) (*github.Team, error) {
	key := org + "/" + teamSlug
	team, err := l.teamCache.WriteThruLookup(key, func() (*github.Team, error) {
		logger := logging.FromContext(ctx)
		logger.InfoContext(ctx, "fetching team", "org", org, "team", teamSlug)
		team, _, err := client.Teams.GetTeamBySlug(ctx, org, teamSlug)
		if err != nil {
			return nil, fmt.Errorf("could not get team %s: %w", key, err)
		}
		return team, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to lookup github team: %w", err)
	}
	return team, nil
}

func (l *Lister) githubClientForOrg(ctx context.Context, org string) (*github.Client, error) {
	ghOrg, err := l.getOrg(ctx, org)
	if err != nil {
		return nil, err
	}
	token, err := l.orgTokenSource.TokenForOrg(ctx, ghOrg.GetID())
	if err != nil {
		return nil, fmt.Errorf("failed to get github token: %w", err)
	}
	return l.client.WithAuthToken(token), nil
}

func toUsers(members []*github.User) []*User {
	users := make([]*User, 0, len(members))
	for _, m := range members {
		// just checking, login should be provided for active members.
		if v := m.GetLogin(); v != "" {
			users = append(users, &User{Login: v, Attributes: m})
		}
	}
	return users
}
