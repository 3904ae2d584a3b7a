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
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/heAdz0r/rtk-sub001/internal/watcher"
)

func newWatchCmd(flags *memoryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "watch a project and trigger delta rebuilds on change",
		RunE: func(cmd *cobra.Command, args []string) error {
			built, err := buildEngine()
			if err != nil {
				return err
			}
			defer func() { _ = built.Close() }()

			req, err := flags.toEngineRequest(cmd, built.Config)
			if err != nil {
				return err
			}

			onChange := func(ctx context.Context) error {
				res, err := built.Engine.Delta(ctx, req)
				if err != nil {
					return err
				}
				log.Info().
					Str("cache_status", string(res.CacheStatus)).
					Int("added", len(res.Delta.Added)).
					Int("modified", len(res.Delta.Modified)).
					Int("removed", len(res.Delta.Removed)).
					Msg("delta rebuilt")
				return nil
			}

			w := watcher.New(flags.project, onChange, watcher.Options{
				Debounce: time.Duration(flags.interval) * time.Second,
			})

			fmt.Fprintf(cmd.OutOrStdout(), "watching %s (debounce %ds), ctrl-c to stop\n", flags.project, flags.interval)
			return w.Run(cmd.Context())
		},
	}
}
