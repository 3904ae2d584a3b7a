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

// Package planner implements task-conditioned retrieval (spec §4.7): intent
// normalization, structural/semantic/affinity candidate generation, feature
// scoring, two-stage ranking, and budget-aware greedy assembly, with the
// process-local ChurnCache/CallGraph caches. Grounded on the teacher's
// pkg/tools/search.go ranking/filter idiom and cmd/cie/query.go's pipeline
// orchestration, with the subprocess contract shape lifted from
// pkg/ingestion/delta.go's os/exec usage.
package planner

import (
	"context"
	"sort"
	"time"

	"github.com/heAdz0r/rtk-sub001/internal/model"
)

// MinTokenCost/MaxTokenCost bound the per-candidate token-cost estimate
// (DESIGN.md Open Question decision #2: spec.md leaves the exact range to
// the implementer; 50,000 tokens covers the largest plausible single-file
// context slice while still bounding pathological estimates).
const (
	MinTokenCost = 1
	MaxTokenCost = 50_000
)

// Intent is the closed set of classified task intents (spec §4.7 step 1).
type Intent string

const (
	IntentBugfix   Intent = "bugfix"
	IntentFeature  Intent = "feature"
	IntentRefactor Intent = "refactor"
	IntentIncident Intent = "incident"
	IntentUnknown  Intent = "unknown"
)

// Request is the Planner's input (spec §4.7: "(task_text, project_root,
// token_budget, latency_budget_ms, ml_mode)").
type Request struct {
	TaskText        string
	ProjectID       uint64
	ProjectRoot     string
	TokenBudget     int
	LatencyBudgetMs int
	MLMode          MLMode
}

// MLMode selects the Stage-2 reranker behavior.
type MLMode string

const (
	MLOff  MLMode = "off"
	MLFast MLMode = "fast"
	MLFull MLMode = "full"
)

// DroppedCandidate records why a scored candidate did not make the cut.
type DroppedCandidate struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// BudgetReport summarizes the greedy assembly pass.
type BudgetReport struct {
	TokenBudget int `json:"token_budget"`
	TokensUsed  int `json:"tokens_used"`
	Selected    int `json:"selected"`
	Dropped     int `json:"dropped"`
}

// DecisionTraceEntry records one pipeline stage's outcome for observability
// and for the Daemon's `plan-context` response (spec §4.8).
type DecisionTraceEntry struct {
	Stage  string `json:"stage"`
	Detail string `json:"detail"`
}

// Result is everything Plan returns (spec §4.7 step 5: "Always returns").
type Result struct {
	TaskFingerprint   uint64               `json:"task_fingerprint"`
	Intent            Intent               `json:"intent"`
	Selected          []string             `json:"selected"`
	DroppedWithReason []DroppedCandidate   `json:"dropped_with_reason"`
	BudgetReport      BudgetReport         `json:"budget_report"`
	DecisionTrace     []DecisionTraceEntry `json:"decision_trace"`
}

// SemanticSearcher is the optional external semantic/grep subprocess
// contract (spec §6: "JSON envelope {hits: [{path, score, snippet}]}").
// Fail-open: a nil Searcher or any error degrades quality, never the call.
type SemanticSearcher interface {
	Search(ctx context.Context, query string, timeout time.Duration) ([]SemanticHit, error)
}

// SemanticHit is one result row from the semantic subprocess.
type SemanticHit struct {
	Path    string  `json:"path"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

// Reranker is the optional Stage-2 subprocess contract (spec §6: JSON in,
// `{scores: [...]}` out; any deviation falls back to Stage-1).
type Reranker interface {
	Rerank(ctx context.Context, taskText string, candidates []string, timeout time.Duration) ([]float64, error)
}

// AffinityLookup resolves historical (task_fingerprint, file) -> weight rows.
type AffinityLookup interface {
	TopAffinity(ctx context.Context, projectID uint64, fingerprint uint64, limit int) (map[string]float64, error)
}

// RiskSet reports whether a file matches a configured high-risk set.
type RiskSet interface {
	IsRisky(path string) bool
}

// Planner wires the pipeline stages together.
type Planner struct {
	Semantic  SemanticSearcher // optional
	Reranker  Reranker         // optional
	Affinity  AffinityLookup   // optional
	Risk      RiskSet          // optional
	Churn     *ChurnCache
	CallGraph *CallGraphCache
	Weights   StageOneWeights
}

// New builds a Planner. Optional collaborators may be left nil; the
// pipeline degrades gracefully per spec §4.7's fail-open contract.
func New() *Planner {
	return &Planner{
		Churn:     NewChurnCache(),
		CallGraph: NewCallGraphCache(),
		Weights:   DefaultStageOneWeights(),
	}
}

// Plan runs the full pipeline over art (the project's current Artifact) and
// edges (its ImportEdge set, feeding the CallGraph cache).
func (p *Planner) Plan(ctx context.Context, req Request, art *model.Artifact, edges []model.ImportEdge, delta *model.Delta) (*Result, error) {
	var trace []DecisionTraceEntry
	addTrace := func(stage, detail string) {
		trace = append(trace, DecisionTraceEntry{Stage: stage, Detail: detail})
	}

	normalized, entities := normalizeIntent(req.TaskText)
	intent := classifyIntent(normalized, entities)
	fingerprint := taskFingerprint(normalized, req.ProjectID, intent)
	addTrace("intent_normalization", string(intent))

	callGraph := p.CallGraph.Get(req.ProjectID, art, edges)

	structural := generateStructuralCandidates(art, delta, intent, entities)
	addTrace("candidate_generation.structural", itoa(len(structural)))

	semantic := p.generateSemanticCandidates(ctx, req, addTrace)
	affinity := p.generateAffinityCandidates(ctx, req, fingerprint, addTrace)

	merged := mergeCandidates(structural, semantic, affinity)

	churn, _ := p.Churn.Get(ctx, req.ProjectRoot)

	scored := make([]scoredCandidate, 0, len(merged))
	for _, c := range merged {
		scored = append(scored, scoreCandidate(c, art, churn, callGraph, p.Risk))
	}

	stage1 := rankStageOne(scored, p.Weights)
	addTrace("rank.stage1", itoa(len(stage1)))

	ranked := stage1
	if req.MLMode != MLOff && p.Reranker != nil {
		reranked, err := p.rerankStageTwo(ctx, req, stage1, addTrace)
		if err == nil {
			ranked = reranked
		}
	}

	selected, dropped, report := assembleBudget(ranked, req.TokenBudget)
	addTrace("budget_assembly", itoa(len(selected))+" selected, "+itoa(len(dropped))+" dropped")

	var selectedPaths []string
	for _, s := range selected {
		selectedPaths = append(selectedPaths, s.candidate.Path)
	}
	var droppedReasons []DroppedCandidate
	for _, d := range dropped {
		droppedReasons = append(droppedReasons, DroppedCandidate{Path: d.candidate.Path, Reason: d.reason})
	}

	return &Result{
		TaskFingerprint:   fingerprint,
		Intent:            intent,
		Selected:          selectedPaths,
		DroppedWithReason: droppedReasons,
		BudgetReport:      report,
		DecisionTrace:     trace,
	}, nil
}

func (p *Planner) generateSemanticCandidates(ctx context.Context, req Request, addTrace func(string, string)) []candidate {
	if p.Semantic == nil {
		addTrace("candidate_generation.semantic", "unavailable, degraded")
		return nil
	}
	budget := time.Duration(req.LatencyBudgetMs) * time.Millisecond / 2
	if budget <= 0 {
		budget = 500 * time.Millisecond
	}
	hits, err := p.Semantic.Search(ctx, req.TaskText, budget)
	if err != nil {
		addTrace("candidate_generation.semantic", "failed (fail-open): "+err.Error())
		return nil
	}
	out := make([]candidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, candidate{Path: h.Path, SemanticScore: h.Score, Source: sourceSemantic})
	}
	addTrace("candidate_generation.semantic", itoa(len(out)))
	return out
}

func (p *Planner) generateAffinityCandidates(ctx context.Context, req Request, fingerprint uint64, addTrace func(string, string)) []candidate {
	if p.Affinity == nil {
		return nil
	}
	weights, err := p.Affinity.TopAffinity(ctx, req.ProjectID, fingerprint, 20)
	if err != nil || len(weights) == 0 {
		addTrace("candidate_generation.affinity", "none")
		return nil
	}
	out := make([]candidate, 0, len(weights))
	for path, w := range weights {
		out = append(out, candidate{Path: path, AffinityScore: w, Source: sourceAffinity})
	}
	addTrace("candidate_generation.affinity", itoa(len(out)))
	return out
}

func (p *Planner) rerankStageTwo(ctx context.Context, req Request, stage1 []scoredCandidate, addTrace func(string, string)) ([]scoredCandidate, error) {
	k := 20
	if k > len(stage1) {
		k = len(stage1)
	}
	top := stage1[:k]
	paths := make([]string, len(top))
	for i, s := range top {
		paths[i] = s.candidate.Path
	}

	budget := time.Duration(req.LatencyBudgetMs) * time.Millisecond / 2
	if budget <= 0 {
		budget = 500 * time.Millisecond
	}
	scores, err := p.Reranker.Rerank(ctx, req.TaskText, paths, budget)
	if err != nil || len(scores) != len(paths) {
		addTrace("rank.stage2", "reranker unavailable or malformed, falling back to stage1")
		return stage1, err
	}

	for i := range top {
		top[i].score = scores[i]
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].score > top[j].score })

	out := append([]scoredCandidate(nil), top...)
	out = append(out, stage1[k:]...)
	addTrace("rank.stage2", "reranked top "+itoa(k))
	return out, nil
}

func itoa(n int) string { return model.ItoA(uint64(n)) }
