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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/heAdz0r/rtk-sub001/internal/config"
	"github.com/heAdz0r/rtk-sub001/internal/engine"
	"github.com/heAdz0r/rtk-sub001/internal/renderer"
)

func dbPathForDisplay() (string, error) {
	return config.DefaultDBPath()
}

// retentionWindow bounds how long CacheEvent/Event rows live before
// PruneRetention deletes them (spec §9 "append-only tables ... retention
// must run on first open per process"). spec.md leaves the exact window
// unspecified; 30 days covers a few sprints of history without the tables
// growing unbounded on a long-lived workstation.
const retentionWindow = 30 * 24 * time.Hour

func pruneRetentionCutoff() time.Time {
	return time.Now().Add(-retentionWindow)
}

// printResult renders an Engine Result as either deterministic text
// (color-aware when stdout is a terminal, per fatih/color + mattn/go-isatty,
// teacher-grounded `internal/ui` idiom) or JSON.
func printResult(cmd *cobra.Command, format string, res *engine.Result) error {
	switch format {
	case "json":
		return printJSON(cmd, res)
	case "yaml":
		return printYAML(cmd, res)
	}
	out := cmd.OutOrStdout()
	statusColor := statusColorForString(string(res.CacheStatus))
	fmt.Fprintf(out, "%s  freshness=%s  files=%d  symbols=%d\n",
		statusColor.Sprint(res.CacheStatus), res.Freshness, res.Stats.FileCount, res.Stats.SymbolCount)
	if !res.Delta.IsEmpty() {
		fmt.Fprintf(out, "delta: +%d ~%d -%d\n", len(res.Delta.Added), len(res.Delta.Modified), len(res.Delta.Removed))
	}
	if res.Context != nil {
		fmt.Fprintln(out, renderer.RenderText(res.Context))
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printYAML offers `--format yaml` as a human-diffable fallback alongside
// json/text, mirroring the teacher's own yaml-based project.yaml config
// format (spec.md leaves the output format list open beyond text/json).
func printYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer func() { _ = enc.Close() }()
	return enc.Encode(v)
}

func statusColorForString(status string) *color.Color {
	color.NoColor = color.NoColor || !isatty.IsTerminal(os.Stdout.Fd())
	switch status {
	case "hit":
		return color.New(color.FgGreen)
	case "miss", "stale_rebuild", "dirty_rebuild", "refreshed":
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
