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

// Package engine orchestrates the Store, Indexer, Freshness Gate, Renderer,
// and Planner into the four operations the CLI and Daemon both call through:
// Explore, Delta, Refresh, and PlanContext (spec §4.8's request envelope
// names these one-to-one with the `memory` CLI verbs). Grounded on the
// teacher's cmd/cie/serve.go handlers, which inline this same
// load-evaluate-rebuild-render sequence per request; Engine exists so that
// sequence is written once instead of once per transport.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/heAdz0r/rtk-sub001/internal/freshness"
	"github.com/heAdz0r/rtk-sub001/internal/indexer"
	"github.com/heAdz0r/rtk-sub001/internal/model"
	"github.com/heAdz0r/rtk-sub001/internal/planner"
	"github.com/heAdz0r/rtk-sub001/internal/renderer"
	"github.com/heAdz0r/rtk-sub001/internal/store"
)

// Engine wires the five memory-layer components together. All fields are
// required except Planner, which is optional (PlanContext errors without
// one; Explore/Delta/Refresh never touch it).
type Engine struct {
	Store     *store.Store
	Indexer   *indexer.Indexer
	Freshness *freshness.Gate
	Renderer  *renderer.Renderer
	Planner   *planner.Planner

	// MaxProjects bounds the Store's LRU project cap (spec §3), applied
	// after every write that may have introduced a new project.
	MaxProjects int
}

// New builds an Engine from its five components. maxProjects <= 0 selects
// store.DefaultMaxProjects.
func New(st *store.Store, ix *indexer.Indexer, gate *freshness.Gate, rend *renderer.Renderer, pl *planner.Planner, maxProjects int) *Engine {
	if maxProjects <= 0 {
		maxProjects = store.DefaultMaxProjects
	}
	return &Engine{Store: st, Indexer: ix, Freshness: gate, Renderer: rend, Planner: pl, MaxProjects: maxProjects}
}

// Stats summarizes the artifact backing one response (spec §4.8 "stats").
type Stats struct {
	FileCount   int `json:"file_count"`
	SymbolCount int `json:"symbol_count"`
}

func statsOf(art *model.Artifact) Stats {
	s := Stats{FileCount: len(art.Files)}
	for _, f := range art.Files {
		s.SymbolCount += len(f.Symbols)
	}
	return s
}

// Request is the common envelope shared by Explore/Delta/Refresh (spec §4.8
// / §6's JSON request body, minus the Planner-only fields PlanRequest adds).
type Request struct {
	ProjectRoot string
	QueryType   renderer.QueryType
	Detail      renderer.DetailLevel
	Flags       renderer.FeatureFlags
	// Strict overrides Flags.StrictByDefault for this call when non-nil
	// (spec §4.5: the per-call --strict flag wins over the feature default).
	Strict *bool
	// SinceRev restricts the rebuild, when one is needed, to files git
	// reports changed since this revision (spec §4.4 "git delta"; CLI
	// `--since`). Empty disables it.
	SinceRev string
	// TTL overrides the Freshness Gate's default window when non-zero.
	TTL time.Duration
}

// Result is what Explore/Delta/Refresh all return; Context is nil for Delta
// (spec §4.8: `delta` reports only cache_status/freshness/stats/delta).
type Result struct {
	ProjectID       uint64             `json:"project_id"`
	CacheStatus     model.CacheStatus  `json:"cache_status"`
	Freshness       model.Freshness    `json:"freshness"`
	ArtifactVersion int                `json:"artifact_version"`
	Stats           Stats              `json:"stats"`
	Delta           model.Delta        `json:"delta"`
	Context         *renderer.Context  `json:"context,omitempty"`
}

// Explore loads (and rebuilds if stale/dirty/absent) the project's Artifact
// and renders a Context per req's query type, detail level, and feature
// flags (spec §4.8 POST /v1/explore).
func (e *Engine) Explore(ctx context.Context, req Request) (*Result, error) {
	res, err := e.loadOrRebuild(ctx, req, false)
	if err != nil {
		return nil, err
	}
	res.Context = e.Renderer.Render(res.art, res.edges, &res.Delta, renderer.Options{
		QueryType: req.QueryType, Detail: req.Detail, Flags: req.Flags,
	})
	return res.Result, nil
}

// Delta runs the same freshness/rebuild sequence as Explore but skips
// rendering (spec §4.8 POST /v1/delta: "returns only the delta, no context").
func (e *Engine) Delta(ctx context.Context, req Request) (*Result, error) {
	res, err := e.loadOrRebuild(ctx, req, false)
	if err != nil {
		return nil, err
	}
	return res.Result, nil
}

// Refresh forces a rebuild regardless of freshness state (spec §4.8 POST
// /v1/refresh; CLI `memory refresh`). The `explore` command has no
// --refresh flag.
func (e *Engine) Refresh(ctx context.Context, req Request) (*Result, error) {
	res, err := e.loadOrRebuild(ctx, req, true)
	if err != nil {
		return nil, err
	}
	res.Context = e.Renderer.Render(res.art, res.edges, &res.Delta, renderer.Options{
		QueryType: req.QueryType, Detail: req.Detail, Flags: req.Flags,
	})
	res.CacheStatus = model.StatusRefreshed
	return res.Result, nil
}

// PlanRequest extends Request with the task-conditioned fields the Planner
// needs (spec §4.8 POST /v1/plan-context).
type PlanRequest struct {
	Request
	Task            string
	TokenBudget     int
	LatencyBudgetMs int
	MLMode          planner.MLMode
}

// PlanResult is PlanContext's response: the base Result envelope plus the
// Planner's intent classification, budget report, decision trace, and
// dropped-candidate list (spec §4.8: "plan-context ... additionally returns
// intent, budget_report, decision_trace, dropped_candidates").
type PlanResult struct {
	*Result
	Intent            planner.Intent               `json:"intent"`
	Selected          []string                     `json:"selected"`
	DroppedCandidates []planner.DroppedCandidate   `json:"dropped_candidates"`
	BudgetReport      planner.BudgetReport         `json:"budget_report"`
	DecisionTrace     []planner.DecisionTraceEntry `json:"decision_trace"`
}

// ErrPlannerUnavailable is returned when PlanContext is called on an Engine
// built without a Planner.
var ErrPlannerUnavailable = fmt.Errorf("engine: planner not configured")

// PlanContext loads (rebuilding if needed) the project's Artifact, then runs
// the full Planner pipeline over it to produce a task-conditioned, budget-
// bounded file selection (spec §4.7/§4.8).
func (e *Engine) PlanContext(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	if e.Planner == nil {
		return nil, ErrPlannerUnavailable
	}

	res, err := e.loadOrRebuild(ctx, req.Request, false)
	if err != nil {
		return nil, err
	}

	planReq := planner.Request{
		TaskText:        req.Task,
		ProjectID:       res.ProjectID,
		ProjectRoot:     req.ProjectRoot,
		TokenBudget:     req.TokenBudget,
		LatencyBudgetMs: req.LatencyBudgetMs,
		MLMode:          req.MLMode,
	}
	plan, err := e.Planner.Plan(ctx, planReq, res.art, res.edges, &res.Delta)
	if err != nil {
		return nil, err
	}

	res.Context = e.Renderer.Render(res.art, res.edges, &res.Delta, renderer.Options{
		QueryType: req.QueryType, Detail: req.Detail, Flags: req.Flags,
	})

	return &PlanResult{
		Result:            res.Result,
		Intent:            plan.Intent,
		Selected:          plan.Selected,
		DroppedCandidates: plan.DroppedWithReason,
		BudgetReport:      plan.BudgetReport,
		DecisionTrace:     plan.DecisionTrace,
	}, nil
}

// buildResult bundles a Result with the raw components later stages (render,
// plan) need, without re-deriving them.
type buildResult struct {
	*Result
	art   *model.Artifact
	edges []model.ImportEdge
}

// loadOrRebuild implements the shared sequence: ensure the project row
// exists, load any prior Artifact, evaluate freshness (unless forceRebuild
// is set, which skips straight to an incremental rebuild, or a cold one if
// no prior Artifact exists), and persist the result. This is the one place
// the Store/Indexer/Freshness Gate interaction lives; Explore/Delta/Refresh/
// PlanContext each just decide what to do with the result afterward.
func (e *Engine) loadOrRebuild(ctx context.Context, req Request, forceRebuild bool) (*buildResult, error) {
	projectID := model.ProjectID(req.ProjectRoot)
	if err := e.Store.EnsureProject(ctx, projectID, req.ProjectRoot); err != nil {
		return nil, err
	}

	loaded, err := e.Store.LoadArtifact(ctx, projectID)
	if err != nil {
		return nil, err
	}

	ixOpts := indexer.Options{SinceRev: req.SinceRev}

	if !loaded.Found {
		art, delta, edges, err := e.Indexer.BuildArtifact(ctx, req.ProjectRoot, projectID, nil, ixOpts)
		if err != nil {
			return nil, err
		}
		if err := e.Store.StoreArtifact(ctx, projectID, art, edges); err != nil {
			return nil, err
		}
		e.pruneLRU(ctx)
		return &buildResult{
			Result: &Result{
				ProjectID: projectID, CacheStatus: model.StatusMiss, Freshness: model.Fresh,
				ArtifactVersion: art.ArtifactVer, Stats: statsOf(art), Delta: delta,
			},
			art: art, edges: edges,
		}, nil
	}

	fresOpts := freshness.Options{TTL: req.TTL, StrictOverride: req.Strict, StrictByDefault: req.Flags.StrictByDefault}

	var decision freshness.Decision
	if forceRebuild {
		decision = freshness.Decision{State: model.Stale, Reason: "refresh requested", Rebuild: freshness.RebuildIncremental}
	} else {
		decision, err = e.Freshness.Evaluate(ctx, req.ProjectRoot, loaded.Artifact, loaded.UpdatedAt, loaded.Version, fresOpts)
		if err != nil {
			// A *freshness.StrictnessError under strict mode: the caller
			// (Daemon) maps this to HTTP 409 (spec §4.8).
			return nil, err
		}
	}

	if decision.Rebuild == freshness.RebuildNone {
		edges, err := e.Store.LoadImportEdges(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return &buildResult{
			Result: &Result{
				ProjectID: projectID, CacheStatus: model.StatusHit, Freshness: decision.State,
				ArtifactVersion: loaded.Version, Stats: statsOf(loaded.Artifact),
			},
			art: loaded.Artifact, edges: edges,
		}, nil
	}

	var prior *model.Artifact
	if decision.Rebuild == freshness.RebuildIncremental {
		prior = loaded.Artifact
	}

	art, delta, edges, err := e.Indexer.BuildArtifact(ctx, req.ProjectRoot, projectID, prior, ixOpts)
	if err != nil {
		return nil, err
	}
	if err := e.Store.StoreArtifact(ctx, projectID, art, edges); err != nil {
		return nil, err
	}
	e.pruneLRU(ctx)

	status := model.StatusDirtyRebuild
	if decision.State == model.Stale {
		status = model.StatusStaleRebuild
	}
	return &buildResult{
		Result: &Result{
			ProjectID: projectID, CacheStatus: status, Freshness: decision.State,
			ArtifactVersion: art.ArtifactVer, Stats: statsOf(art), Delta: delta,
		},
		art: art, edges: edges,
	}, nil
}

// pruneLRU evicts least-recently-used projects past the cap. Failures are
// swallowed: eviction is best-effort housekeeping, never a request failure.
func (e *Engine) pruneLRU(ctx context.Context) {
	_, _ = e.Store.PruneLRU(ctx, e.MaxProjects)
}

// RecordEvent appends a lifecycle-trace row for one completed operation,
// swallowing (but returning, for the caller to log) any Store write error -
// telemetry never blocks a response (spec §4.1's RecordEvent contract).
func (e *Engine) RecordEvent(ctx context.Context, projectID uint64, kind string, duration time.Duration, detail string) error {
	return e.Store.RecordEvent(ctx, model.Event{
		Timestamp: time.Now(), ProjectID: projectID, Kind: kind,
		DurationMs: float64(duration.Microseconds()) / 1000.0, Detail: detail,
	})
}

// RecordCacheEvent appends a cache-telemetry row for one completed operation
// (spec §3's CacheEvent table).
func (e *Engine) RecordCacheEvent(ctx context.Context, projectID uint64, status model.CacheStatus, rawBytes, contextBytes int64, latency time.Duration) error {
	return e.Store.RecordCacheEvent(ctx, model.CacheEvent{
		Timestamp: time.Now(), ProjectID: projectID, Event: status,
		RawBytes: rawBytes, ContextBytes: contextBytes,
		LatencyMs: float64(latency.Microseconds()) / 1000.0,
	})
}

// ClearProject deletes a project's Artifact, edges, and telemetry rows (the
// `memory clear` CLI verb; SPEC_FULL.md §3.1).
func (e *Engine) ClearProject(ctx context.Context, projectRoot string) error {
	return e.Store.DeleteArtifact(ctx, model.ProjectID(projectRoot))
}
