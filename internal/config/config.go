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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Features mirrors the six AND-only flags in spec §4.6/§6.
type Features struct {
	TypeGraph           bool `mapstructure:"type_graph"`
	TestMap             bool `mapstructure:"test_map"`
	DepManifest         bool `mapstructure:"dep_manifest"`
	CascadeInvalidation bool `mapstructure:"cascade_invalidation"`
	GitDelta            bool `mapstructure:"git_delta"`
	StrictByDefault     bool `mapstructure:"strict_by_default"`
}

// Mem is the `[mem]` section of config.toml (spec §6).
type Mem struct {
	CacheTTLSecs      int      `mapstructure:"cache_ttl_secs"`
	CacheMaxProjects  int      `mapstructure:"cache_max_projects"`
	MaxSymbolsPerFile int      `mapstructure:"max_symbols_per_file"`
	Features          Features `mapstructure:"features"`
}

// Config is the fully resolved, layered configuration: defaults, overridden
// by config.toml, overridden by RTK_MEM_* environment variables, overridden
// by CLI flags (the last layer is applied by cmd/rtk, which copies each
// explicitly set per-command flag onto the returned Config; see memoryFlags
// in cmd/rtk/memory.go).
type Config struct {
	Mem Mem `mapstructure:"mem"`
}

// TTL converts Mem.CacheTTLSecs to a time.Duration (0 means "use the
// package default", matching freshness.New's own zero-value handling).
func (m Mem) TTL() time.Duration {
	if m.CacheTTLSecs <= 0 {
		return 0
	}
	return time.Duration(m.CacheTTLSecs) * time.Second
}

func defaults() Config {
	return Config{Mem: Mem{
		CacheTTLSecs:      86400,
		CacheMaxProjects:  64,
		MaxSymbolsPerFile: 128,
	}}
}

// Load reads config.toml (if present) layered under defaults, then RTK_MEM_*
// environment overrides. It never errors on a missing config file - one is
// optional (spec §6 describes its location, not its mandatory presence) -
// but does error on a malformed one. Grounded on the pack's Viper-based
// config layering (`evalgo-org-eve`, `steveyegge-beads`); the teacher itself
// has no layered config of its own.
func Load(path string) (Config, *viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		dir, err := DefaultConfigDir()
		if err != nil {
			return Config{}, nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
	}

	// Viper prepends SetEnvPrefix + "_" to the dotted key before uppercasing,
	// so a nested key like "mem.cache_ttl_secs" needs the dot replaced with
	// an underscore too, or no real env var (e.g. RTK_MEM_CACHE_TTL_SECS)
	// will ever match the literal "RTK_MEM.CACHE_TTL_SECS" it looks up.
	v.SetEnvPrefix("RTK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := defaults()
	v.SetDefault("mem.cache_ttl_secs", cfg.Mem.CacheTTLSecs)
	v.SetDefault("mem.cache_max_projects", cfg.Mem.CacheMaxProjects)
	v.SetDefault("mem.max_symbols_per_file", cfg.Mem.MaxSymbolsPerFile)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil, fmt.Errorf("read config: %w", err)
		}
	}

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return Config{}, nil, fmt.Errorf("parse config: %w", err)
	}
	return out, v, nil
}
