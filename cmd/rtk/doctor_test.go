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

	"github.com/heAdz0r/rtk-sub001/internal/config"
)

func TestCheckProjectRootFailsOnMissingPath(t *testing.T) {
	c := checkProjectRoot(filepath.Join(t.TempDir(), "does-not-exist"))
	require.False(t, c.OK)
	require.NotEmpty(t, c.Issue)
}

func TestCheckProjectRootFailsOnFileNotDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte{}, 0o644))

	c := checkProjectRoot(file)
	require.False(t, c.OK)
}

func TestCheckProjectRootPassesOnRealDirectory(t *testing.T) {
	c := checkProjectRoot(t.TempDir())
	require.True(t, c.OK)
	require.Empty(t, c.Issue)
}

func TestRunDoctorChecksSandboxedEnvironment(t *testing.T) {
	t.Setenv(config.DataDirEnv, filepath.Join(t.TempDir(), "data"))
	t.Setenv(config.ConfigPathEnv, filepath.Join(t.TempDir(), "config.toml"))

	checks := runDoctorChecks(t.TempDir())
	require.NotEmpty(t, checks)
	for _, c := range checks {
		require.True(t, c.OK, "%s: %s", c.Name, c.Issue)
	}
}
