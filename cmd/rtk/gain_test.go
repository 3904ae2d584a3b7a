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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/heAdz0r/rtk-sub001/internal/config"
)

func sandboxDataDir(t *testing.T) {
	t.Helper()
	t.Setenv(config.DataDirEnv, filepath.Join(t.TempDir(), "data"))
	t.Setenv(config.ConfigPathEnv, filepath.Join(t.TempDir(), "config.toml"))
}

func newTempProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	return dir
}

func TestGainReportsZerosBeforeAnyExplore(t *testing.T) {
	sandboxDataDir(t)
	project := newTempProject(t)

	flags := &memoryFlags{project: project, format: "json"}
	cmd := newGainCmd(flags)
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, cmd.RunE(cmd, nil))
	require.Contains(t, out.String(), `"hits": 0`)
}

func TestGainReflectsExploreActivity(t *testing.T) {
	sandboxDataDir(t)
	project := newTempProject(t)

	exploreFlags := &memoryFlags{project: project, format: "json", detail: "normal", queryType: "general"}
	exploreCmd := newExploreCmd(exploreFlags)
	var exploreOut bytes.Buffer
	exploreCmd.SetOut(&exploreOut)
	require.NoError(t, exploreCmd.RunE(exploreCmd, nil))

	gainFlags := &memoryFlags{project: project, format: "json"}
	gainCmd := newGainCmd(gainFlags)
	var gainOut bytes.Buffer
	gainCmd.SetOut(&gainOut)
	require.NoError(t, gainCmd.RunE(gainCmd, nil))

	require.Contains(t, gainOut.String(), `"misses": 1`)
}
