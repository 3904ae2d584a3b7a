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

package indexer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// emptyTreeSHA is Git's fixed empty-tree object, used as the base to diff
// against when sinceRev is empty (grounded on delta.go's resolveRefs
// initial-commit special case).
const emptyTreeSHA = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

const gitDeltaTimeout = 10 * time.Second

// GitChangedPaths returns the set of project-relative paths git reports as
// added, modified, or renamed between sinceRev and the working tree's HEAD.
// Grounded on delta.go's DeltaDetector.runGitDiff/parseDiffOutput, reduced to
// the path set the Indexer needs (Pass-1 candidate restriction); deletions
// are discovered independently by the Walker/prior-Artifact diff, so this
// helper does not need to classify status kinds the way GitDelta does.
func GitChangedPaths(ctx context.Context, repoPath, sinceRev string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, gitDeltaTimeout)
	defer cancel()

	rev := sinceRev
	if rev == "" {
		rev = emptyTreeSHA
	}

	cmd := exec.CommandContext(ctx, "git", "diff", "--name-status", "-M", rev, "HEAD") //nolint:gosec // G204: rev is a caller-supplied git ref, repoPath sets cmd.Dir only
	cmd.Dir = repoPath

	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("git diff --name-status: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("git diff --name-status: %w", err)
	}

	var paths []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		status := parts[0]
		switch status[0] {
		case 'A', 'M', 'C':
			paths = append(paths, parts[len(parts)-1])
		case 'R':
			if len(parts) >= 3 {
				paths = append(paths, parts[2])
			}
		// 'D' (deleted) is intentionally omitted: the Indexer derives removals
		// by diffing the prior Artifact's file list against the current walk.
		default:
		}
	}
	return paths, scanner.Err()
}
