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

// Package googlegroups lists Google Groups memberships page by page.
package googlegroups

import (
	"context"
	"fmt"

	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/cloudidentity/v1"

	"github.com/abcxyz/list-pager/pkg/paging"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/pointer"
)

const (
	MemberTypeUser  = "USER"
	MemberTypeGroup = "GROUP"

	// DefaultPageSize is the number of memberships requested per page. 200
	// is the largest page both APIs accept.
	DefaultPageSize = 200
)

type Config struct {
	pageSize int
}

type Opt func(config *Config)

// WithPageSize sets the number of memberships requested per page.
func WithPageSize(n int) Opt {
	return func(config *Config) {
		if n > 0 {
			config.pageSize = n
		}
	}
}

// Membership is a direct member of a group as reported by Cloud Identity. It
// is identified by the membership resource name, e.g.
// groups/{group}/memberships/{membership}.
type Membership struct {
	Name string
	// MemberKey is the member's preferred key, usually an email address.
	MemberKey  string
	Type       string
	Attributes *cloudidentity.Membership
}

func (m *Membership) ID() string {
	return m.Name
}

// DirectoryMember is a direct member of a group as reported by the Admin SDK
// Directory API, identified by the member's unique ID.
type DirectoryMember struct {
	MemberID   string
	Email      string
	Role       string
	Attributes *admin.Member
}

func (m *DirectoryMember) ID() string {
	return m.MemberID
}

// Lister builds page loaders over Google Groups memberships.
type Lister struct {
	identity *cloudidentity.Service
	admin    *admin.Service
	pageSize int64
}

// NewLister creates a new Lister.
func NewLister(identityService *cloudidentity.Service, adminService *admin.Service, opts ...Opt) *Lister {
	config := &Config{pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(config)
	}
	return &Lister{
		identity: identityService,
		admin:    adminService,
		pageSize: int64(config.pageSize),
	}
}

// Memberships returns a loader over the direct memberships of the group with
// the given resource name. The name must be of the form: groups/{group}.
// Members that are neither users nor groups are skipped.
func (l *Lister) Memberships(groupName string) paging.PageLoader[*Membership, string] {
	return func(ctx context.Context, cursor *string) (*paging.Page[*Membership, string], error) {
		logger := logging.FromContext(ctx)
		call := l.identity.Groups.Memberships.List(groupName).PageSize(l.pageSize).Context(ctx)
		if cursor != nil {
			call = call.PageToken(*cursor)
		}
		logger.DebugContext(ctx, "fetching memberships page", "group_id", groupName)
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("could not get group members: %w", err)
		}

		memberships := make([]*Membership, 0, len(resp.Memberships))
		for _, m := range resp.Memberships {
			if m.Type != MemberTypeUser && m.Type != MemberTypeGroup {
				logger.WarnContext(ctx, "unrecognized member type encountered",
					"group_id", groupName,
					"member", m.Name,
					"type", m.Type,
				)
				continue
			}
			var key string
			if m.PreferredMemberKey != nil {
				key = m.PreferredMemberKey.Id
			}
			memberships = append(memberships, &Membership{
				Name:       m.Name,
				MemberKey:  key,
				Type:       m.Type,
				Attributes: m,
			})
		}
		return toPage(memberships, resp.NextPageToken), nil
	}
}

// DirectoryMembers returns a loader over the direct members of the group with
// the given key, which is the group's email address or unique ID.
func (l *Lister) DirectoryMembers(groupKey string) paging.PageLoader[*DirectoryMember, string] {
	return func(ctx context.Context, cursor *string) (*paging.Page[*DirectoryMember, string], error) {
		call := l.admin.Members.List(groupKey).MaxResults(l.pageSize).Context(ctx)
		if cursor != nil {
			call = call.PageToken(*cursor)
		}
		logger := logging.FromContext(ctx)
		logger.DebugContext(ctx, "fetching directory members page", "group_key", groupKey)
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("could not list directory members of %s: %w", groupKey, err)
		}

		members := make([]*DirectoryMember, 0, len(resp.Members))
		for _, m := range resp.Members {
			members = append(members, &DirectoryMember{
				MemberID:   m.Id,
				Email:      m.Email,
				Role:       m.Role,
				Attributes: m,
			})
		}
		return toPage(members, resp.NextPageToken), nil
	}
}

// toPage wraps one page of a Google API list response. An empty next page
// token ends the list. Neither API reports a member count.
func toPage[T any](content []T, nextPageToken string) *paging.Page[T, string] {
	page := &paging.Page[T, string]{Items: content}
	if nextPageToken != "" {
		page.HasMore = true
		page.NextCursor = pointer.To(nextPageToken)
	}
	return page
}
