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

	"github.com/spf13/cobra"
)

func newClearCmd(flags *memoryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "delete the cached artifact for a project (ClearProject)",
		RunE: func(cmd *cobra.Command, args []string) error {
			built, err := buildEngine()
			if err != nil {
				return err
			}
			defer func() { _ = built.Close() }()

			if err := built.Engine.ClearProject(cmd.Context(), flags.project); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared cached artifact for %s\n", flags.project)
			return nil
		},
	}
}
