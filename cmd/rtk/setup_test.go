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

func TestSetupWritesDefaultConfigAndDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	configDir := t.TempDir()
	t.Setenv(config.DataDirEnv, dataDir)
	t.Setenv(config.ConfigPathEnv, filepath.Join(configDir, "config.toml"))

	cmd := newSetupCmd(&memoryFlags{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, cmd.RunE(cmd, nil))

	require.DirExists(t, dataDir)

	configPath, err := config.DefaultConfigPath()
	require.NoError(t, err)
	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "[mem]")
}

func TestSetupLeavesExistingConfigUntouched(t *testing.T) {
	t.Setenv(config.DataDirEnv, filepath.Join(t.TempDir(), "data"))
	configPath := filepath.Join(t.TempDir(), "config.toml")
	t.Setenv(config.ConfigPathEnv, configPath)
	require.NoError(t, os.WriteFile(configPath, []byte("[mem]\ncache_ttl_secs = 1\n"), 0o644))

	cmd := newSetupCmd(&memoryFlags{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, cmd.RunE(cmd, nil))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	require.Equal(t, "[mem]\ncache_ttl_secs = 1\n", string(data))
	require.Contains(t, out.String(), "already exists")
}
