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

	"github.com/heAdz0r/rtk-sub001/internal/model"
)

// statusResult is the `status` verb's JSON shape (SPEC_FULL.md §3.1
// "StoreStats", surfaced here), grounded on cmd/cie/status.go's StatusResult.
type statusResult struct {
	ProjectID   uint64 `json:"project_id"`
	DBPath      string `json:"db_path"`
	Projects    int64  `json:"projects"`
	Artifacts   int64  `json:"artifacts"`
	CacheEvents int64  `json:"cache_events"`
	Events      int64  `json:"events"`
	SizeBytes   int64  `json:"size_bytes"`
}

func newStatusCmd(flags *memoryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "show store statistics and this project's cache id",
		RunE: func(cmd *cobra.Command, args []string) error {
			built, err := buildEngine()
			if err != nil {
				return err
			}
			defer func() { _ = built.Close() }()

			dbPath, err := dbPathForDisplay()
			if err != nil {
				return err
			}

			stats, err := built.Store.StoreStats(cmd.Context())
			if err != nil {
				return err
			}

			res := statusResult{
				ProjectID:   model.ProjectID(flags.project),
				DBPath:      dbPath,
				Projects:    stats.Projects,
				Artifacts:   stats.Artifacts,
				CacheEvents: stats.CacheEvents,
				Events:      stats.Events,
				SizeBytes:   stats.SizeBytes(),
			}

			if flags.format == "json" {
				return printJSON(cmd, res)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "project_id: %d\n", res.ProjectID)
			fmt.Fprintf(out, "db: %s (%d bytes)\n", res.DBPath, res.SizeBytes)
			fmt.Fprintf(out, "projects=%d artifacts=%d cache_events=%d events=%d\n",
				res.Projects, res.Artifacts, res.CacheEvents, res.Events)
			return nil
		},
	}
}
