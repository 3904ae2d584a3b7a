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
package model

import (
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// ProjectID derives the stable 64-bit project identity from a canonical
// project root path, following the teacher's deterministic-ID convention
// (cie's GenerateFileID hashes a normalized path the same way).
func ProjectID(rootPath string) uint64 {
	clean := filepath.Clean(rootPath)
	return xxhash.Sum64String(clean)
}

// ContentHash computes the engine's fixed 64-bit content hash for a file's
// bytes. The hash algorithm is fixed per ArtifactVersion (spec §3).
func ContentHash(content []byte) uint64 {
	return xxhash.Sum64(content)
}

// ImportEdgeFromID builds the ImportEdge.FromID key: project_id + ":" + rel_path.
func ImportEdgeFromID(projectID uint64, relPath string) string {
	return ItoA(projectID) + ":" + relPath
}

// ItoA renders a uint64 in base 10 without importing strconv at call sites.
func ItoA(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
