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
	"os"
	"strconv"

	"github.com/abcxyz/pkg/cache"
	"github.com/abcxyz/pkg/githubauth"
)

const privateKeyCacheKey = "github-app-private-key"

// KeyProvider provides a private key.
type KeyProvider interface {
	Key(ctx context.Context) ([]byte, error)
}

// StaticKeyProvider provides a fixed key.
type StaticKeyProvider []byte

func (k StaticKeyProvider) Key(ctx context.Context) ([]byte, error) {
	return k, nil
}

// FileKeyProvider reads the key from a file on every call.
type FileKeyProvider struct {
	path string
}

func NewFileKeyProvider(path string) *FileKeyProvider {
	return &FileKeyProvider{path: path}
}

func (p *FileKeyProvider) Key(ctx context.Context) ([]byte, error) {
	b, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return b, nil
}

type OrgTokenSource interface {
	// TokenForOrg returns a token that grants access to the given Org's resources.
	TokenForOrg(ctx context.Context, orgID int64) (string, error)
}

// StaticTokenSource returns the same token for every org.
type StaticTokenSource struct {
	token string
}

func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

func (s *StaticTokenSource) TokenForOrg(ctx context.Context, orgID int64) (string, error) {
	return s.token, nil
}

// AppTokenSource mints installation tokens of a GitHub App that can read the
// members of an org.
type AppTokenSource struct {
	keyProvider     KeyProvider
	appID           string
	privateKeyCache *cache.Cache[[]byte]
}

func NewAppTokenSource(keyProvider KeyProvider, appID string) *AppTokenSource {
	return &AppTokenSource{
		keyProvider:     keyProvider,
		appID:           appID,
		privateKeyCache: cache.New[[]byte](DefaultCacheDuration),
	}
}

func (s *AppTokenSource) TokenForOrg(ctx context.Context, orgID int64) (string, error) {
	privateKey, err := s.privateKeyCache.WriteThruLookup(privateKeyCacheKey, func() ([]byte, error) {
		return s.keyProvider.Key(ctx) //nolint:wrapcheck // Want passthrough
	})
	if err != nil {
		return "", fmt.Errorf("unable to get GitHub app private key: %w", err)
	}
	app, err := githubauth.NewApp(
		s.appID,
		string(privateKey),
	)
	if err != nil {
		return "", fmt.Errorf("unable to create GitHub app: %w", err)
	}
	appInstallation, err := app.InstallationForOrg(ctx, strconv.FormatInt(orgID, 10))
	if err != nil {
		return "", fmt.Errorf("failed to get installation for org %d: %w", orgID, err)
	}
	token, err := appInstallation.AccessTokenAllRepos(ctx, &githubauth.TokenRequestAllRepos{
		Permissions: map[string]string{
			"members": "read",
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get access token for org %d: %w", orgID, err)
	}
	return token, nil
}
