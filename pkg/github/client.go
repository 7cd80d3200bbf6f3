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

	"github.com/google/go-github/v61/github"
	"golang.org/x/oauth2"

	"github.com/abcxyz/pkg/cli"
)

const DefaultGitHubServerEndpoint = "https://github.com"

// ClientConfig is the config for github client.
type ClientConfig struct {
	Endpoint       string
	Token          string
	AppID          string
	PrivateKeyFile string
}

func (c *ClientConfig) RegisterFlags(set *cli.FlagSet) {
	f := set.NewSection("GITHUB OPTIONS")

	// The priority for parseing the flags are as follows.
	// It will use the value for toppest priority
	// 1. Read from input flags.
	// 2. Read from Envvars.
	// 3. Use default value.
	f.StringVar(&cli.StringVar{
		Name:    "github-server-endpoint",
		EnvVar:  "GITHUB_SERVER_URL",
		Target:  &c.Endpoint,
		Default: DefaultGitHubServerEndpoint,
		Usage:   `URL for github endpoint, example: "https://github.com"`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "github-client-auth-token",
		EnvVar: "GITHUB_TOKEN",
		Target: &c.Token,
		Usage:  `Token to authenticate with github`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "github-app-id",
		EnvVar: "GITHUB_APP_ID",
		Target: &c.AppID,
		Usage: `ID of the GitHub App to mint per-organization installation ` +
			`tokens with, instead of using a static token`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "github-app-private-key-file",
		EnvVar:  "GITHUB_APP_PRIVATE_KEY_FILE",
		Target:  &c.PrivateKeyFile,
		Example: "/etc/lpctl/app.pem",
		Usage:   `Path to the PEM encoded private key of the GitHub App`,
	})

	set.AfterParse(func(merr error) error {
		// In case user export GITHUB_SERVER_URL to empty string.
		if c.Endpoint == "" {
			c.Endpoint = DefaultGitHubServerEndpoint
		}
		if c.AppID != "" && c.PrivateKeyFile == "" {
			return fmt.Errorf("-github-app-private-key-file is required with -github-app-id")
		}
		return nil
	})
}

// NewGitHubClient create a github.Client base on ClientConfig.
func NewGitHubClient(ctx context.Context, c *ClientConfig) (*github.Client, error) {
	ghc := github.NewClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: c.Token,
	})))
	var err error
	if c.Endpoint != DefaultGitHubServerEndpoint {
		if ghc, err = ghc.WithEnterpriseURLs(c.Endpoint, c.Endpoint); err != nil {
			return nil, fmt.Errorf("failed to create github client with enterprise endpoint %s: %w", c.Endpoint, err)
		}
	}
	return ghc, nil
}

// OrgTokenSourceFromConfig returns an AppTokenSource when a GitHub App is
// configured and a StaticTokenSource otherwise.
func OrgTokenSourceFromConfig(c *ClientConfig) OrgTokenSource {
	if c.AppID != "" {
		return NewAppTokenSource(NewFileKeyProvider(c.PrivateKeyFile), c.AppID)
	}
	return NewStaticTokenSource(c.Token)
}

// NewGitHubLister creates a Lister for the GitHub instance described by c.
func NewGitHubLister(ctx context.Context, c *ClientConfig, opts ...Opt) (*Lister, error) {
	client, err := NewGitHubClient(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub lister: %w", err)
	}
	return NewLister(OrgTokenSourceFromConfig(c), client, opts...), nil
}

// NewGitHubSCIMClient creates a SCIMClient for the GitHub Enterprise Server
// instance described by c, authenticated with the configured token.
func NewGitHubSCIMClient(ctx context.Context, c *ClientConfig, opts ...Opt) (*SCIMClient, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: c.Token,
	}))
	return NewSCIMClient(httpClient, c.Endpoint, opts...)
}
