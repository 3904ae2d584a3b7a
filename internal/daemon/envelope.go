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

package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/heAdz0r/rtk-sub001/internal/engine"
	"github.com/heAdz0r/rtk-sub001/internal/model"
	"github.com/heAdz0r/rtk-sub001/internal/planner"
	"github.com/heAdz0r/rtk-sub001/internal/renderer"
)

// requestEnvelope is the JSON request body shared by every POST endpoint
// (spec §4.8: "Required input fields: project_root. Optional: query_type,
// detail, format, strict, since, task, token_budget, ml_mode,
// latency_budget_ms").
type requestEnvelope struct {
	ProjectRoot     string `json:"project_root"`
	QueryType       string `json:"query_type"`
	Detail          string `json:"detail"`
	Format          string `json:"format"`
	Strict          *bool  `json:"strict"`
	Since           string `json:"since"`
	Task            string `json:"task"`
	TokenBudget     int    `json:"token_budget"`
	MLMode          string `json:"ml_mode"`
	LatencyBudgetMs int    `json:"latency_budget_ms"`
}

var validQueryTypes = map[string]renderer.QueryType{
	"":         renderer.QueryGeneral,
	"general":  renderer.QueryGeneral,
	"bugfix":   renderer.QueryBugfix,
	"feature":  renderer.QueryFeature,
	"refactor": renderer.QueryRefactor,
	"incident": renderer.QueryIncident,
}

var validDetailLevels = map[string]renderer.DetailLevel{
	"":        renderer.DetailNormal,
	"compact": renderer.DetailCompact,
	"normal":  renderer.DetailNormal,
	"verbose": renderer.DetailVerbose,
}

var validMLModes = map[string]planner.MLMode{
	"":     planner.MLOff,
	"off":  planner.MLOff,
	"fast": planner.MLFast,
	"full": planner.MLFull,
}

// parseRequest decodes and validates the JSON body (spec §7 "Input" errors:
// "malformed project root, unknown query type, invalid detail level" all
// surface as 400).
func parseRequest(r *http.Request) (*requestEnvelope, error) {
	var req requestEnvelope
	if r.Body != nil {
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&req); err != nil {
			return nil, fmt.Errorf("malformed JSON body: %w", err)
		}
	}
	if req.ProjectRoot == "" {
		return nil, fmt.Errorf("project_root is required")
	}
	if _, ok := validQueryTypes[req.QueryType]; !ok {
		return nil, fmt.Errorf("unknown query_type %q", req.QueryType)
	}
	if _, ok := validDetailLevels[req.Detail]; !ok {
		return nil, fmt.Errorf("invalid detail level %q", req.Detail)
	}
	if req.Format != "" && req.Format != "json" && req.Format != "text" {
		return nil, fmt.Errorf("invalid format %q", req.Format)
	}
	if _, ok := validMLModes[req.MLMode]; !ok {
		return nil, fmt.Errorf("unknown ml_mode %q", req.MLMode)
	}
	return &req, nil
}

func (req *requestEnvelope) toEngineRequest() engine.Request {
	return engine.Request{
		ProjectRoot: req.ProjectRoot,
		QueryType:   validQueryTypes[req.QueryType],
		Detail:      validDetailLevels[req.Detail],
		Strict:      req.Strict,
		SinceRev:    req.Since,
	}
}

func (req *requestEnvelope) toPlanRequest() engine.PlanRequest {
	return engine.PlanRequest{
		Request:         req.toEngineRequest(),
		Task:            req.Task,
		TokenBudget:     req.TokenBudget,
		LatencyBudgetMs: req.LatencyBudgetMs,
		MLMode:          validMLModes[req.MLMode],
	}
}

// responseEnvelope is the JSON response body (spec §4.8's response field
// list, with the plan-context-only fields left empty/omitted otherwise).
type responseEnvelope struct {
	ProjectID         uint64                       `json:"project_id"`
	CacheStatus       model.CacheStatus            `json:"cache_status"`
	Freshness         model.Freshness              `json:"freshness"`
	ArtifactVersion   int                          `json:"artifact_version"`
	Stats             engine.Stats                 `json:"stats"`
	Delta             model.Delta                  `json:"delta"`
	Context           *renderer.Context            `json:"context,omitempty"`
	ContextText       string                       `json:"context_text,omitempty"`
	Intent            planner.Intent               `json:"intent,omitempty"`
	Selected          []string                     `json:"selected,omitempty"`
	DroppedCandidates []planner.DroppedCandidate   `json:"dropped_candidates,omitempty"`
	BudgetReport      *planner.BudgetReport        `json:"budget_report,omitempty"`
	DecisionTrace     []planner.DecisionTraceEntry `json:"decision_trace,omitempty"`
}

// toResponseEnvelope builds the JSON body for a result. When format is
// "text" the rendered Context is flattened to ContextText via
// renderer.RenderText instead of being nested as a JSON object, matching
// the CLI's --format text/json split (spec §6).
func toResponseEnvelope(res *engine.Result, plan *engine.PlanResult, format string) *responseEnvelope {
	env := &responseEnvelope{
		ProjectID:       res.ProjectID,
		CacheStatus:     res.CacheStatus,
		Freshness:       res.Freshness,
		ArtifactVersion: res.ArtifactVersion,
		Stats:           res.Stats,
		Delta:           res.Delta,
	}
	if format == "text" && res.Context != nil {
		env.ContextText = renderer.RenderText(res.Context)
	} else {
		env.Context = res.Context
	}
	if plan != nil {
		env.Intent = plan.Intent
		env.Selected = plan.Selected
		env.DroppedCandidates = plan.DroppedCandidates
		env.BudgetReport = &plan.BudgetReport
		env.DecisionTrace = plan.DecisionTrace
	}
	return env
}
