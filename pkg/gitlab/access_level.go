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
	"strconv"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// AccessLevelName returns the role name GitLab shows for an access level.
// Unknown levels are rendered as their number.
func AccessLevelName(level gitlab.AccessLevelValue) string {
	switch level {
	case gitlab.NoPermissions:
		return "none"
	case gitlab.MinimalAccessPermissions:
		return "minimal"
	case gitlab.GuestPermissions:
		return "guest"
	case gitlab.ReporterPermissions:
		return "reporter"
	case gitlab.DeveloperPermissions:
		return "developer"
	case gitlab.MaintainerPermissions:
		return "maintainer"
	case gitlab.OwnerPermissions:
		return "owner"
	default:
		return strconv.Itoa(int(level))
	}
}

// Role returns the member's role name.
func (m *Member) Role() string {
	if m.Attributes == nil {
		return AccessLevelName(gitlab.NoPermissions)
	}
	return AccessLevelName(m.Attributes.AccessLevel)
}
