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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/heAdz0r/rtk-sub001/internal/engine"
	"github.com/heAdz0r/rtk-sub001/internal/freshness"
)

// exploreLikeOp is satisfied by Engine.Explore, Engine.Delta, and
// Engine.Refresh - the three verbs that share the same flag set and
// load-then-render shape (engine.go's loadOrRebuild is the single place
// that sequence lives; these three commands just pick which entry point).
type exploreLikeOp func(e *engine.Engine, ctx context.Context, req engine.Request) (*engine.Result, error)

func runExploreLike(cmd *cobra.Command, flags *memoryFlags, op exploreLikeOp) error {
	built, err := buildEngine()
	if err != nil {
		return err
	}
	defer func() { _ = built.Close() }()

	req, err := flags.toEngineRequest(cmd, built.Config)
	if err != nil {
		return err
	}

	stopSpinner := startRebuildSpinner(flags.format)
	start := time.Now()
	res, err := op(built.Engine, cmd.Context(), req)
	latency := time.Since(start)
	stopSpinner()
	if err != nil {
		var strictErr *freshness.StrictnessError
		if errors.As(err, &strictErr) {
			return fmt.Errorf("strict mode rejected: %w", err)
		}
		return err
	}
	recordCacheGain(cmd.Context(), built, res, latency)
	return printResult(cmd, flags.format, res)
}

// startRebuildSpinner shows an indeterminate progress spinner while a cold
// or incremental rebuild runs, since Indexer.BuildArtifact has no per-file
// progress hook to drive a determinate bar against. Returns a func to stop
// it; a no-op when output isn't a terminal or the caller wants JSON (a
// spinner on stdout would corrupt the JSON stream).
func startRebuildSpinner(format string) func() {
	if format == "json" || !isatty.IsTerminal(os.Stderr.Fd()) {
		return func() {}
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("rebuilding cache"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWriter(os.Stderr),
	)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()
	return func() {
		close(done)
		_ = bar.Finish()
		_ = bar.Clear()
	}
}

// recordCacheGain appends a cache_stats row so `memory gain` has telemetry
// to aggregate. Failures are logged, not surfaced, same as the underlying
// Store.RecordCacheEvent's own swallow-on-write-failure policy.
func recordCacheGain(ctx context.Context, built *builtEngine, res *engine.Result, latency time.Duration) {
	contextBytes := 0
	if res.Context != nil {
		if b, err := json.Marshal(res.Context); err == nil {
			contextBytes = len(b)
		}
	}
	rawBytes := contextBytes
	if err := built.Engine.RecordCacheEvent(ctx, res.ProjectID, res.CacheStatus, int64(rawBytes), int64(contextBytes), latency); err != nil {
		slog.Warn("record cache event failed", "error", err)
	}
}

func newExploreCmd(flags *memoryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "explore",
		Short: "render context for a project, rebuilding the cache if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExploreLike(cmd, flags, (*engine.Engine).Explore)
		},
	}
}

func newDeltaCmd(flags *memoryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delta",
		Short: "report the added/modified/removed file set without rendering context",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExploreLike(cmd, flags, (*engine.Engine).Delta)
		},
	}
}

func newRefreshCmd(flags *memoryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "force a rebuild even if the cached artifact is fresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExploreLike(cmd, flags, (*engine.Engine).Refresh)
		},
	}
}
