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

	"github.com/spf13/cobra"

	"github.com/heAdz0r/rtk-sub001/internal/config"
)

// doctorCheck is one diagnostic: a short label plus whatever went wrong, or
// empty on success.
type doctorCheck struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Issue string `json:"issue,omitempty"`
}

// newDoctorCmd runs a handful of environment sanity checks and exits with
// exitDoctorWarnings (2) rather than exitHardFailure (1) when checks fail,
// so scripts can distinguish "needs attention" from "crashed" (spec §6's
// exit code table). Cobra's default RunE error path always maps to exit 1,
// so this handler calls os.Exit directly instead of returning an error.
func newDoctorCmd(flags *memoryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "check the local environment for common problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := runDoctorChecks(flags.project)

			anyFailed := false
			for _, c := range checks {
				if !c.OK {
					anyFailed = true
				}
			}

			if flags.format == "json" {
				if err := printJSON(cmd, checks); err != nil {
					return err
				}
			} else {
				w := cmd.OutOrStdout()
				for _, c := range checks {
					if c.OK {
						fmt.Fprintf(w, "[ok]   %s\n", c.Name)
					} else {
						fmt.Fprintf(w, "[warn] %s: %s\n", c.Name, c.Issue)
					}
				}
			}

			if anyFailed {
				os.Exit(exitDoctorWarnings)
			}
			return nil
		},
	}
}

func runDoctorChecks(projectRoot string) []doctorCheck {
	var checks []doctorCheck

	checks = append(checks, checkProjectRoot(projectRoot))
	checks = append(checks, checkDataDir())
	checks = append(checks, checkDB())
	checks = append(checks, checkConfig())

	return checks
}

func checkProjectRoot(root string) doctorCheck {
	c := doctorCheck{Name: "project root"}
	info, err := os.Stat(root)
	if err != nil {
		c.Issue = err.Error()
		return c
	}
	if !info.IsDir() {
		c.Issue = fmt.Sprintf("%s is not a directory", root)
		return c
	}
	c.OK = true
	return c
}

func checkDataDir() doctorCheck {
	c := doctorCheck{Name: "data directory"}
	dir, err := config.EnsureDataDir()
	if err != nil {
		c.Issue = err.Error()
		return c
	}
	if _, err := os.Stat(dir); err != nil {
		c.Issue = err.Error()
		return c
	}
	c.OK = true
	return c
}

func checkDB() doctorCheck {
	c := doctorCheck{Name: "sqlite store"}
	dbPath, err := config.DefaultDBPath()
	if err != nil {
		c.Issue = err.Error()
		return c
	}
	built, err := buildEngine()
	if err != nil {
		c.Issue = fmt.Sprintf("opening %s: %v", dbPath, err)
		return c
	}
	defer func() { _ = built.Close() }()
	c.OK = true
	return c
}

func checkConfig() doctorCheck {
	c := doctorCheck{Name: "config file"}
	if _, _, err := config.Load(""); err != nil {
		c.Issue = err.Error()
		return c
	}
	c.OK = true
	return c
}
