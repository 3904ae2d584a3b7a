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

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// hookMarker identifies rtk's block inside post-commit so a re-run of
// install-hook is idempotent instead of appending duplicate blocks.
const hookMarker = "# rtk memory refresh (managed block, do not edit)"

const hookBody = hookMarker + `
if command -v rtk >/dev/null 2>&1; then
  rtk memory refresh --project "$(git rev-parse --show-toplevel)" >/dev/null 2>&1 &
fi
# end rtk memory refresh
`

// newInstallHookCmd writes (or appends to) the repository's git post-commit
// hook so every commit triggers a background "memory refresh", keeping the
// cached artifact warm without the developer remembering to run it by hand.
func newInstallHookCmd(flags *memoryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "install-hook",
		Short: "install a git post-commit hook that refreshes the cache after each commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			gitDir, err := findGitDir(flags.project)
			if err != nil {
				return err
			}

			hooksDir := filepath.Join(gitDir, "hooks")
			if err := os.MkdirAll(hooksDir, 0o755); err != nil {
				return fmt.Errorf("create hooks directory: %w", err)
			}
			hookPath := filepath.Join(hooksDir, "post-commit")

			existing, err := os.ReadFile(hookPath)
			if err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("read existing hook: %w", err)
			}
			if strings.Contains(string(existing), hookMarker) {
				fmt.Fprintf(cmd.OutOrStdout(), "hook already installed at %s\n", hookPath)
				return nil
			}

			var out strings.Builder
			if len(existing) == 0 {
				out.WriteString("#!/bin/sh\n")
			} else {
				out.Write(existing)
				if !strings.HasSuffix(string(existing), "\n") {
					out.WriteString("\n")
				}
			}
			out.WriteString(hookBody)

			if err := os.WriteFile(hookPath, []byte(out.String()), 0o755); err != nil {
				return fmt.Errorf("write hook: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed post-commit hook at %s\n", hookPath)
			return nil
		},
	}
}

// findGitDir walks up from root looking for a .git entry, following the
// gitdir: pointer file worktrees and submodules use instead of a real
// .git directory.
func findGitDir(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	for dir := abs; ; {
		candidate := filepath.Join(dir, ".git")
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return candidate, nil
			}
			return resolveGitdirFile(candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no .git directory found above %s", root)
		}
		dir = parent
	}
}

func resolveGitdirFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	line := strings.TrimSpace(string(data))
	const prefix = "gitdir:"
	if !strings.HasPrefix(line, prefix) {
		return "", fmt.Errorf("%s does not contain a gitdir pointer", path)
	}
	return strings.TrimSpace(strings.TrimPrefix(line, prefix)), nil
}
