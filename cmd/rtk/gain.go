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

// gainReport is the `gain` verb's JSON shape: how much the cache has paid
// off for this project so far, derived from the Store's cache_stats history.
type gainReport struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Rebuilds      int64   `json:"rebuilds"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	RawBytes      int64   `json:"raw_bytes"`
	ContextBytes  int64   `json:"context_bytes"`
	BytesAvoided  int64   `json:"bytes_avoided"`
}

func newGainCmd(flags *memoryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "gain",
		Short: "report how much the cache has paid off for this project",
		RunE: func(cmd *cobra.Command, args []string) error {
			built, err := buildEngine()
			if err != nil {
				return err
			}
			defer func() { _ = built.Close() }()

			projectID := model.ProjectID(flags.project)
			report, err := built.Store.CacheGain(cmd.Context(), projectID)
			if err != nil {
				return err
			}

			rebuilds := report.Counts[model.StatusStaleRebuild] + report.Counts[model.StatusDirtyRebuild] + report.Counts[model.StatusRefreshed]
			out := gainReport{
				Hits:         report.Counts[model.StatusHit],
				Misses:       report.Counts[model.StatusMiss],
				Rebuilds:     rebuilds,
				AvgLatencyMs: report.AvgLatencyMs,
				RawBytes:     report.TotalRawBytes,
				ContextBytes: report.TotalContextBytes,
				BytesAvoided: report.TotalRawBytes - report.TotalContextBytes,
			}

			if flags.format == "json" {
				return printJSON(cmd, out)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "hits=%d misses=%d rebuilds=%d avg_latency=%.1fms\n", out.Hits, out.Misses, out.Rebuilds, out.AvgLatencyMs)
			fmt.Fprintf(w, "raw=%d context=%d avoided=%d bytes\n", out.RawBytes, out.ContextBytes, out.BytesAvoided)
			return nil
		},
	}
}
