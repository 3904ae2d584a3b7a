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

	"github.com/spf13/cobra"

	"github.com/heAdz0r/rtk-sub001/internal/config"
)

// defaultConfigTOML is written by `setup` when no config file exists yet.
// Values mirror internal/config.defaults() so a freshly scaffolded file
// documents every knob rather than starting empty.
const defaultConfigTOML = `[mem]
cache_ttl_secs = 86400
cache_max_projects = 64
max_symbols_per_file = 128

[mem.features]
type_graph = false
test_map = false
dep_manifest = false
cascade_invalidation = false
git_delta = false
strict_by_default = false
`

// newSetupCmd scaffolds the data directory and a commented default config
// file, the one-time step spec §6 assumes has already happened before any
// other verb runs. Grounded on the teacher's cmd/cie/init.go, which writes
// a similar starter config before the engine is used for the first time.
func newSetupCmd(flags *memoryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "scaffold the data directory and a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, err := config.EnsureDataDir()
			if err != nil {
				return err
			}

			configPath, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}

			w := cmd.OutOrStdout()
			if _, err := os.Stat(configPath); err == nil {
				fmt.Fprintf(w, "config already exists at %s, leaving it untouched\n", configPath)
			} else if os.IsNotExist(err) {
				if err := os.WriteFile(configPath, []byte(defaultConfigTOML), 0o644); err != nil {
					return fmt.Errorf("write default config: %w", err)
				}
				fmt.Fprintf(w, "wrote default config to %s\n", configPath)
			} else {
				return err
			}

			dbPath := filepath.Join(dataDir, "mem.db")
			fmt.Fprintf(w, "data directory ready at %s (database: %s)\n", dataDir, dbPath)
			return nil
		},
	}
}
