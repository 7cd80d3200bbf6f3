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

// DefaultPrefetchThreshold is the number of trailing rows that trigger a
// prefetch of the next page when one of them appears.
const DefaultPrefetchThreshold = 10

type Config struct {
	prefetchThreshold int
}

type Opt func(config *Config)

// WithPrefetchThreshold sets how close to the end of the loaded items a row
// must be for OnRowAppeared to request the next page. Values below 1 are
// ignored.
func WithPrefetchThreshold(n int) Opt {
	return func(config *Config) {
		if n > 0 {
			config.prefetchThreshold = n
		}
	}
}

func newConfig(opts []Opt) *Config {
	config := &Config{
		prefetchThreshold: DefaultPrefetchThreshold,
	}
	for _, opt := range opts {
		opt(config)
	}
	return config
}
