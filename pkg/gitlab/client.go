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
	"net/http"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/abcxyz/list-pager/pkg/github"
	"github.com/abcxyz/pkg/cli"
)

// DefaultInstanceURL is the GitLab SaaS instance.
const DefaultInstanceURL = "https://gitlab.com"

// ClientConfig holds the flags needed to reach a GitLab instance.
type ClientConfig struct {
	InstanceURL string
	Token       string
}

func (c *ClientConfig) RegisterFlags(set *cli.FlagSet) {
	f := set.NewSection("GITLAB OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "gitlab-url",
		Target:  &c.InstanceURL,
		EnvVar:  "GITLAB_URL",
		Default: DefaultInstanceURL,
		Usage:   "The GitLab instance to list group members from.",
	})

	f.StringVar(&cli.StringVar{
		Name:   "gitlab-token",
		Target: &c.Token,
		EnvVar: "GITLAB_TOKEN",
		Usage:  "The personal access token used to read group members.",
	})
}

// ClientProvider provides a GitLab client.
type ClientProvider struct {
	httpClient  *http.Client
	instanceURL string
	keyProvider github.KeyProvider
	opts        []gitlab.ClientOptionFunc
}

// NewGitLabClientProvider creates a new ClientProvider. The key provider
// supplies the personal access token. A nil httpClient uses the library
// default.
func NewGitLabClientProvider(instanceURL string, keyProvider github.KeyProvider, httpClient *http.Client, opts ...gitlab.ClientOptionFunc) *ClientProvider {
	return &ClientProvider{
		httpClient:  httpClient,
		instanceURL: instanceURL,
		keyProvider: keyProvider,
		opts:        opts,
	}
}

// ClientProviderFromConfig creates a ClientProvider for the configured
// instance and token.
func ClientProviderFromConfig(c *ClientConfig) *ClientProvider {
	return NewGitLabClientProvider(c.InstanceURL, github.StaticKeyProvider(c.Token), nil)
}

// Client returns a GitLab client initialized with a PAT.
func (g *ClientProvider) Client(ctx context.Context) (*gitlab.Client, error) {
	token, err := g.keyProvider.Key(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GitLab token: %w", err)
	}
	opts := []gitlab.ClientOptionFunc{gitlab.WithBaseURL(g.instanceURL)}
	if g.httpClient != nil {
		opts = append(opts, gitlab.WithHTTPClient(g.httpClient))
	}
	opts = append(opts, g.opts...)
	gitlabClient, err := gitlab.NewClient(string(token), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}
	return gitlabClient, nil
}
