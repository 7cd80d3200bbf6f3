// Copyright 2022 Google LLC
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
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/abcxyz/list-pager/pkg/github"
	"github.com/abcxyz/list-pager/pkg/gitlab"
	"github.com/abcxyz/list-pager/pkg/googlegroups"
	"github.com/abcxyz/list-pager/pkg/paging"
	"github.com/abcxyz/pkg/cli"
	"github.com/abcxyz/pkg/logging"
)

const (
	SourceGitHub       = "github"
	SourceGitLab       = "gitlab"
	SourceGoogleGroups = "googlegroups"
)

var (
	_              cli.Command = (*ListCommand)(nil)
	allowedSources             = []string{SourceGitHub, SourceGitLab, SourceGoogleGroups}
)

type ListCommand struct {
	cli.BaseCommand

	githubConfig github.ClientConfig
	gitlabConfig gitlab.ClientConfig

	source           string
	githubOrg        string
	githubTeam       string
	githubSCIM       bool
	gitlabGroup      string
	gitlabSubgroups  bool
	googleGroup      string
	googleGroupEmail string
	pageSize         int
	rows             int
	prefetch         int
	retries          int
}

func (c *ListCommand) Desc() string {
	return `Scroll through the members of a group`
}

func (c *ListCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options]

  Print the members of a GitHub org or team, a GitLab group or a Google
  Group one row at a time, fetching further pages as the rows near the end
  of what has been loaded.

  List the members of a GitHub team:

    lpctl list \
      -source github \
      -github-org my-org \
      -github-team my-team

  List the first 50 members of a GitLab group:

    lpctl list \
      -source gitlab \
      -gitlab-group 1234 \
      -rows 50
`
}

func (c *ListCommand) Flags() *cli.FlagSet {
	set := c.NewFlagSet()

	// Command options
	f := set.NewSection("COMMAND OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "source",
		Target:  &c.source,
		Aliases: []string{"src", "s"},
		Example: "github",
		Usage:   `The system to list members from, one of: ` + strings.Join(allowedSources, ", "),
	})

	f.StringVar(&cli.StringVar{
		Name:    "github-org",
		Target:  &c.githubOrg,
		Example: "my-org",
		Usage:   `The GitHub org whose members are listed`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "github-team",
		Target:  &c.githubTeam,
		Example: "my-team",
		Usage:   `The slug of a team in -github-org; when set only the team's members are listed`,
	})

	f.BoolVar(&cli.BoolVar{
		Name:   "github-scim",
		Target: &c.githubSCIM,
		Usage: `List the SCIM provisioned users of the GitHub Enterprise Server ` +
			`instance at -github-server-endpoint instead of org members`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "gitlab-group",
		Target:  &c.gitlabGroup,
		Example: "1234",
		Usage:   `The ID of the GitLab group whose members are listed`,
	})

	f.BoolVar(&cli.BoolVar{
		Name:   "gitlab-subgroups",
		Target: &c.gitlabSubgroups,
		Usage:  `List the subgroups of -gitlab-group instead of its members`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "google-group",
		Target:  &c.googleGroup,
		Example: "groups/abc123",
		Usage:   `The Cloud Identity resource name of the Google Group whose memberships are listed`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "google-group-email",
		Target:  &c.googleGroupEmail,
		Example: "eng@example.com",
		Usage:   `The email of a Google Group whose members are listed through the Admin SDK directory`,
	})

	f.IntVar(&cli.IntVar{
		Name:   "page-size",
		Target: &c.pageSize,
		Usage:  `The number of rows requested per page; 0 uses the source's default`,
	})

	f.IntVar(&cli.IntVar{
		Name:   "rows",
		Target: &c.rows,
		Usage:  `The number of rows to scroll through; 0 scrolls to the end of the list`,
	})

	f.IntVar(&cli.IntVar{
		Name:    "prefetch",
		Target:  &c.prefetch,
		Default: paging.DefaultPrefetchThreshold,
		Usage:   `The next page is requested once a row this close to the end has been printed`,
	})

	f.IntVar(&cli.IntVar{
		Name:    "retries",
		Target:  &c.retries,
		Default: 1,
		Usage:   `The number of times a failed page is requested again before giving up`,
	})

	c.githubConfig.RegisterFlags(set)
	c.gitlabConfig.RegisterFlags(set)

	set.AfterParse(func(merr error) error {
		c.source = strings.ToLower(c.source)
		if !slices.Contains(allowedSources, c.source) {
			merr = errors.Join(merr, fmt.Errorf("source %q not in allowed list: %s", c.source, strings.Join(allowedSources, ",")))
		}
		switch c.source {
		case SourceGitHub:
			if c.githubOrg == "" && !c.githubSCIM {
				merr = errors.Join(merr, fmt.Errorf("-github-org or -github-scim is required with -source %s", SourceGitHub))
			}
		case SourceGitLab:
			if c.gitlabGroup == "" {
				merr = errors.Join(merr, fmt.Errorf("-gitlab-group is required with -source %s", SourceGitLab))
			}
		case SourceGoogleGroups:
			if (c.googleGroup == "") == (c.googleGroupEmail == "") {
				merr = errors.Join(merr, fmt.Errorf("exactly one of -google-group and -google-group-email is required with -source %s", SourceGoogleGroups))
			}
		}
		if c.pageSize < 0 {
			merr = errors.Join(merr, fmt.Errorf("-page-size must be zero or positive"))
		}
		if c.rows < 0 {
			merr = errors.Join(merr, fmt.Errorf("-rows must be zero or positive"))
		}
		if c.prefetch < 1 {
			merr = errors.Join(merr, fmt.Errorf("-prefetch must be positive"))
		}
		if c.retries < 0 {
			merr = errors.Join(merr, fmt.Errorf("-retries must be zero or positive"))
		}
		return merr
	})

	return set
}

func (c *ListCommand) Run(ctx context.Context, args []string) error {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	args = f.Args()
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %q", args)
	}

	logger := logging.FromContext(ctx)
	logger.DebugContext(ctx, "listing members",
		"source", c.source,
		"page_size", c.pageSize,
		"rows", c.rows,
	)

	switch c.source {
	case SourceGitHub:
		if c.githubSCIM {
			sc, err := github.NewGitHubSCIMClient(ctx, &c.githubConfig, github.WithPageSize(c.pageSize))
			if err != nil {
				return fmt.Errorf("failed to create SCIM client: %w", err)
			}
			return browse[*github.SCIMUser, string, int](ctx, c, sc.Users(), renderSCIMUser)
		}
		l, err := github.NewGitHubLister(ctx, &c.githubConfig, github.WithPageSize(c.pageSize))
		if err != nil {
			return err //nolint:wrapcheck // Want passthrough
		}
		loader := l.OrgMembers(c.githubOrg)
		if c.githubTeam != "" {
			loader = l.TeamMembers(c.githubOrg, c.githubTeam)
		}
		return browse[*github.User, string, int](ctx, c, loader, renderGitHubUser)

	case SourceGitLab:
		l := gitlab.NewLister(gitlab.ClientProviderFromConfig(&c.gitlabConfig), gitlab.WithPageSize(c.pageSize))
		if c.gitlabSubgroups {
			return browse[*gitlab.SubGroup, int, int](ctx, c, l.SubGroups(c.gitlabGroup), renderGitLabSubGroup)
		}
		return browse[*gitlab.Member, int, int](ctx, c, l.GroupMembers(c.gitlabGroup), renderGitLabMember)

	case SourceGoogleGroups:
		l, err := googlegroups.NewListerWithDefaultApplicationToken(ctx, googlegroups.WithPageSize(c.pageSize))
		if err != nil {
			return fmt.Errorf("failed to create Google Groups lister: %w", err)
		}
		if c.googleGroupEmail != "" {
			return browse[*googlegroups.DirectoryMember, string, string](ctx, c, l.DirectoryMembers(c.googleGroupEmail), renderDirectoryMember)
		}
		return browse[*googlegroups.Membership, string, string](ctx, c, l.Memberships(c.googleGroup), renderMembership)
	}
	return fmt.Errorf("unsupported source %q", c.source)
}

func renderGitHubUser(u *github.User) string {
	return u.Login
}

func renderSCIMUser(u *github.SCIMUser) string {
	if u.Attributes.GetActive() {
		return u.UserName
	}
	return u.UserName + "\t(inactive)"
}

func renderGitLabMember(m *gitlab.Member) string {
	return fmt.Sprintf("%d\t%s\t%s", m.UserID, m.Username, m.Role())
}

func renderGitLabSubGroup(g *gitlab.SubGroup) string {
	return fmt.Sprintf("%d\t%s", g.GroupID, g.Path)
}

func renderMembership(m *googlegroups.Membership) string {
	return fmt.Sprintf("%s\t%s", m.MemberKey, strings.ToLower(m.Type))
}

func renderDirectoryMember(m *googlegroups.DirectoryMember) string {
	return fmt.Sprintf("%s\t%s", m.Email, strings.ToLower(m.Role))
}
