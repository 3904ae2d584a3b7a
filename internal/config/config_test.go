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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWhenConfigFileAbsent(t *testing.T) {
	cfg, _, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, 86400, cfg.Mem.CacheTTLSecs)
	require.Equal(t, 64, cfg.Mem.CacheMaxProjects)
	require.Equal(t, 128, cfg.Mem.MaxSymbolsPerFile)
	require.False(t, cfg.Mem.Features.StrictByDefault)
}

func TestLoadReadsConfigFileOverridingDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "[mem]\ncache_ttl_secs = 60\n\n[mem.features]\nstrict_by_default = true\ntype_graph = true\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, _, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 60, cfg.Mem.CacheTTLSecs)
	require.Equal(t, 64, cfg.Mem.CacheMaxProjects) // unset key keeps its default
	require.True(t, cfg.Mem.Features.StrictByDefault)
	require.True(t, cfg.Mem.Features.TypeGraph)
}

func TestLoadAppliesEnvOverrideForNestedKey(t *testing.T) {
	t.Setenv("RTK_MEM_CACHE_TTL_SECS", "120")

	cfg, _, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, 120, cfg.Mem.CacheTTLSecs)
}

func TestMemTTLConvertsSecondsToDuration(t *testing.T) {
	m := Mem{CacheTTLSecs: 120}
	require.Equal(t, 120_000_000_000, int(m.TTL()))

	zero := Mem{}
	require.Equal(t, 0, int(zero.TTL()))
}
