// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package extractor

import "strings"

// classifyTestKind maps a test file's path to unit|integration|e2e by the
// common "integration"/"e2e" naming markers (directory or filename), falling
// back to unit - the large majority of tests in any of the four supported
// languages (spec §3 L5 test map).
func classifyTestKind(lowerPath string) string {
	switch {
	case strings.Contains(lowerPath, "integration"):
		return "integration"
	case strings.Contains(lowerPath, "e2e"):
		return "e2e"
	default:
		return "unit"
	}
}

// dirOf returns the directory prefix of a project-relative path (ending in
// "/", or "" at the project root). Indexer paths always use "/" separators
// (walker.Walker normalizes via filepath.ToSlash).
func dirOf(p string) string {
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[:idx+1]
	}
	return ""
}

// baseOf returns the filename component of a project-relative path.
func baseOf(p string) string {
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[idx+1:]
	}
	return p
}
