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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindGitDirLocatesRealGitDirectory(t *testing.T) {
	root := t.TempDir()
	gitDir := filepath.Join(root, ".git")
	require.NoError(t, os.MkdirAll(gitDir, 0o755))

	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	found, err := findGitDir(sub)
	require.NoError(t, err)
	require.Equal(t, gitDir, found)
}

func TestFindGitDirResolvesWorktreeGitdirFile(t *testing.T) {
	root := t.TempDir()
	realGitDir := filepath.Join(t.TempDir(), "worktrees", "feature")
	require.NoError(t, os.MkdirAll(realGitDir, 0o755))

	gitFile := filepath.Join(root, ".git")
	require.NoError(t, os.WriteFile(gitFile, []byte("gitdir: "+realGitDir+"\n"), 0o644))

	found, err := findGitDir(root)
	require.NoError(t, err)
	require.Equal(t, realGitDir, found)
}

func TestFindGitDirReturnsErrorWhenNoneFound(t *testing.T) {
	root := t.TempDir()
	_, err := findGitDir(root)
	require.Error(t, err)
}

func TestInstallHookWritesExecutablePostCommitHook(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))

	flags := &memoryFlags{project: root}
	cmd := newInstallHookCmd(flags)
	require.NoError(t, cmd.RunE(cmd, nil))

	hookPath := filepath.Join(root, ".git", "hooks", "post-commit")
	info, err := os.Stat(hookPath)
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&0o100, "hook should be executable")

	data, err := os.ReadFile(hookPath)
	require.NoError(t, err)
	require.Contains(t, string(data), hookMarker)
}

func TestInstallHookIsIdempotent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))

	flags := &memoryFlags{project: root}
	cmd := newInstallHookCmd(flags)
	require.NoError(t, cmd.RunE(cmd, nil))

	hookPath := filepath.Join(root, ".git", "hooks", "post-commit")
	before, err := os.ReadFile(hookPath)
	require.NoError(t, err)

	require.NoError(t, cmd.RunE(cmd, nil))
	after, err := os.ReadFile(hookPath)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestInstallHookPreservesExistingHookContent(t *testing.T) {
	root := t.TempDir()
	hooksDir := filepath.Join(root, ".git", "hooks")
	require.NoError(t, os.MkdirAll(hooksDir, 0o755))
	existing := "#!/bin/sh\necho existing-hook\n"
	require.NoError(t, os.WriteFile(filepath.Join(hooksDir, "post-commit"), []byte(existing), 0o755))

	flags := &memoryFlags{project: root}
	cmd := newInstallHookCmd(flags)
	require.NoError(t, cmd.RunE(cmd, nil))

	data, err := os.ReadFile(filepath.Join(hooksDir, "post-commit"))
	require.NoError(t, err)
	require.Contains(t, string(data), "echo existing-hook")
	require.Contains(t, string(data), hookMarker)
}
