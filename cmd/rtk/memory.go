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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/heAdz0r/rtk-sub001/internal/config"
	"github.com/heAdz0r/rtk-sub001/internal/daemon"
	"github.com/heAdz0r/rtk-sub001/internal/engine"
	"github.com/heAdz0r/rtk-sub001/internal/extractor"
	"github.com/heAdz0r/rtk-sub001/internal/freshness"
	"github.com/heAdz0r/rtk-sub001/internal/indexer"
	"github.com/heAdz0r/rtk-sub001/internal/planner"
	"github.com/heAdz0r/rtk-sub001/internal/renderer"
	"github.com/heAdz0r/rtk-sub001/internal/store"
)

// memoryFlags holds the common flags shared by every `memory` subcommand
// (spec §6's closed flag set).
type memoryFlags struct {
	project         string
	detail          string
	format          string
	queryType       string
	strict          bool
	since           string
	port            int
	idleSecs        int
	interval        int
	task            string
	tokenBudget     int
	mlMode          string
	latencyBudgetMs int
}

// newMemoryCmd builds the `memory` command group: one *cobra.Command per
// verb in spec §6's closed set (`memory {explore|delta|refresh|watch|
// status|clear|gain|serve|install-hook|plan|doctor|setup}`).
func newMemoryCmd() *cobra.Command {
	flags := &memoryFlags{}

	cmd := &cobra.Command{
		Use:   "memory",
		Short: "operate the local code memory engine",
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.project, "project", ".", "project root directory")
	pf.StringVar(&flags.detail, "detail", "normal", "detail level: compact|normal|verbose")
	pf.StringVar(&flags.format, "format", "text", "output format: text|json|yaml")
	pf.StringVar(&flags.queryType, "query-type", "general", "query type: general|bugfix|feature|refactor|incident")
	pf.BoolVar(&flags.strict, "strict", false, "fail instead of rebuilding on Stale/Dirty")
	pf.StringVar(&flags.since, "since", "", "VCS revision to diff against")
	pf.IntVar(&flags.port, "port", 8717, "daemon port (serve/watch)")
	pf.IntVar(&flags.idleSecs, "idle-secs", int(daemon.DefaultIdleTimeout.Seconds()), "daemon idle shutdown, seconds")
	pf.IntVar(&flags.interval, "interval", 2, "watch debounce interval, seconds")
	pf.StringVar(&flags.task, "task", "", "task description for plan (required)")
	pf.IntVar(&flags.tokenBudget, "token-budget", 0, "plan token budget (0 = planner default)")
	pf.StringVar(&flags.mlMode, "ml-mode", "off", "plan ranking mode: off|fast|full")
	pf.IntVar(&flags.latencyBudgetMs, "latency-budget-ms", 0, "plan latency budget in milliseconds (0 = no limit)")

	cmd.AddCommand(
		newExploreCmd(flags),
		newDeltaCmd(flags),
		newRefreshCmd(flags),
		newWatchCmd(flags),
		newStatusCmd(flags),
		newClearCmd(flags),
		newGainCmd(flags),
		newServeCmd(flags),
		newInstallHookCmd(flags),
		newPlanCmd(flags),
		newDoctorCmd(flags),
		newSetupCmd(flags),
	)
	return cmd
}

func (f *memoryFlags) parseQueryType() (renderer.QueryType, error) {
	switch f.queryType {
	case "", "general":
		return renderer.QueryGeneral, nil
	case "bugfix":
		return renderer.QueryBugfix, nil
	case "feature":
		return renderer.QueryFeature, nil
	case "refactor":
		return renderer.QueryRefactor, nil
	case "incident":
		return renderer.QueryIncident, nil
	default:
		return "", fmt.Errorf("unknown --query-type %q", f.queryType)
	}
}

func (f *memoryFlags) parseDetail() (renderer.DetailLevel, error) {
	switch f.detail {
	case "", "normal":
		return renderer.DetailNormal, nil
	case "compact":
		return renderer.DetailCompact, nil
	case "verbose":
		return renderer.DetailVerbose, nil
	default:
		return "", fmt.Errorf("unknown --detail %q", f.detail)
	}
}

func (f *memoryFlags) parseMLMode() (planner.MLMode, error) {
	switch f.mlMode {
	case "", "off":
		return planner.MLOff, nil
	case "fast":
		return planner.MLFast, nil
	case "full":
		return planner.MLFull, nil
	default:
		return "", fmt.Errorf("unknown --ml-mode %q", f.mlMode)
	}
}

// toEngineRequest validates flags and builds the shared engine.Request.
// strictSet distinguishes "flag passed" from "flag defaulted to false" so
// an unset --strict falls through to the config's strict_by_default
// (DESIGN.md Open Question decision #1: per-call wins only when set).
func (f *memoryFlags) toEngineRequest(cmd *cobra.Command, cfg config.Config) (engine.Request, error) {
	qt, err := f.parseQueryType()
	if err != nil {
		return engine.Request{}, err
	}
	detail, err := f.parseDetail()
	if err != nil {
		return engine.Request{}, err
	}
	req := engine.Request{
		ProjectRoot: f.project,
		QueryType:   qt,
		Detail:      detail,
		Flags:       f.featureFlags(cfg),
		SinceRev:    f.since,
	}
	if cmd.Flags().Changed("strict") {
		strict := f.strict
		req.Strict = &strict
	}
	return req, nil
}

// builtEngine bundles the engine plus the store it owns, so callers close
// the store after use without reaching into engine internals.
type builtEngine struct {
	Engine *engine.Engine
	Store  *store.Store
	Config config.Config
}

func (b *builtEngine) Close() error {
	return b.Store.Close()
}

// buildEngine wires Store/Indexer/Freshness Gate/Renderer/Planner from
// layered config exactly as internal/daemon.Server does, so the CLI and
// the daemon share one construction path in spirit even though the CLI
// runs it per-invocation rather than long-lived.
func buildEngine() (*builtEngine, error) {
	cfg, _, err := config.Load("")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dbPath, err := config.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	if _, err := config.EnsureDataDir(); err != nil {
		return nil, err
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.PruneRetention(context.Background(), pruneRetentionCutoff()); err != nil {
		slog.Warn("retention prune failed", "error", err)
	}

	reg := extractor.NewRegistry()
	reg.SetMaxSymbolsPerFile(cfg.Mem.MaxSymbolsPerFile)
	ix := indexer.New(reg, slog.Default())

	eng := engine.New(st, ix, freshness.New(cfg.Mem.TTL()), renderer.New(), planner.New(), cfg.Mem.CacheMaxProjects)
	return &builtEngine{Engine: eng, Store: st, Config: cfg}, nil
}

func (f *memoryFlags) featureFlags(cfg config.Config) renderer.FeatureFlags {
	return renderer.FeatureFlags{
		TypeGraph:           cfg.Mem.Features.TypeGraph,
		TestMap:             cfg.Mem.Features.TestMap,
		DepManifest:         cfg.Mem.Features.DepManifest,
		CascadeInvalidation: cfg.Mem.Features.CascadeInvalidation,
		GitDelta:            cfg.Mem.Features.GitDelta,
		StrictByDefault:     cfg.Mem.Features.StrictByDefault,
	}
}
