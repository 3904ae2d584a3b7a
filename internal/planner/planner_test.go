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

package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/heAdz0r/rtk-sub001/internal/model"
)

func sampleArtifactForPlanner() *model.Artifact {
	return &model.Artifact{
		Files: []model.FileEntry{
			{Path: "internal/auth/login.go", Size: 4000, Symbols: []model.Symbol{{Name: "Login", Kind: model.SymbolFunction}}},
			{Path: "internal/auth/login_test.go", Size: 2000, TestKind: "unit", TestSubjects: []string{"internal/auth/login.go"}},
			{Path: "internal/billing/invoice.go", Size: 200000},
			{Path: "docs/readme.md", Size: 500},
		},
	}
}

func TestNormalizeIntentDropsStopWordsAndFindsEntities(t *testing.T) {
	normalized, entities := normalizeIntent("Please fix the login.go crash in AuthHandler")
	require.NotContains(t, normalized, "please")
	require.Contains(t, normalized, "crash")
	require.Contains(t, entities, "login.go")
	require.Contains(t, entities, "authhandler")
}

func TestClassifyIntentPrioritizesIncidentOverBugfix(t *testing.T) {
	normalized, entities := normalizeIntent("production outage, login is broken and crashing")
	require.Equal(t, IntentIncident, classifyIntent(normalized, entities))
}

func TestClassifyIntentFeatureFallbackWhenEntitiesPresent(t *testing.T) {
	normalized, entities := normalizeIntent("WidgetFactory for mobile")
	require.Equal(t, IntentFeature, classifyIntent(normalized, entities))
}

func TestTaskFingerprintStableForIdenticalInputs(t *testing.T) {
	a := taskFingerprint("fix login crash", 42, IntentBugfix)
	b := taskFingerprint("fix login crash", 42, IntentBugfix)
	c := taskFingerprint("fix login crash", 43, IntentBugfix)
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestGenerateStructuralCandidatesFlagsDeltaTouchedFilesForBugfix(t *testing.T) {
	art := sampleArtifactForPlanner()
	delta := &model.Delta{Modified: []string{"internal/auth/login.go"}}

	cands := generateStructuralCandidates(art, delta, IntentBugfix, nil)
	require.Len(t, cands, len(art.Files))

	var loginHit candidate
	for _, c := range cands {
		if c.Path == "internal/auth/login.go" {
			loginHit = c
		}
	}
	require.Contains(t, loginHit.MatchedEntries, "recently changed")
}

func TestGenerateStructuralCandidatesWidensToTypeRelationNeighborsForFeature(t *testing.T) {
	art := &model.Artifact{
		Files: []model.FileEntry{
			{Path: "internal/auth/querier.go", Symbols: []model.Symbol{{Name: "Querier", Kind: model.SymbolInterface}}},
			{
				Path:    "internal/auth/sql_querier.go",
				Symbols: []model.Symbol{{Name: "SQLQuerier", Kind: model.SymbolType}},
				Relations: []model.TypeRelation{
					{SourceType: "SQLQuerier", Kind: model.RelationImplements, TargetType: "Querier", SourceFile: "internal/auth/sql_querier.go"},
				},
			},
			{Path: "docs/readme.md"},
		},
	}

	cands := generateStructuralCandidates(art, nil, IntentFeature, []string{"Querier"})

	var hit candidate
	for _, c := range cands {
		if c.Path == "internal/auth/sql_querier.go" {
			hit = c
		}
	}
	require.Contains(t, hit.MatchedEntries, "type relation neighbor of Querier")
}

func TestMergeCandidatesCombinesScoresAcrossSources(t *testing.T) {
	structural := []candidate{{Path: "a.go", StructuralHit: true}}
	semantic := []candidate{{Path: "a.go", SemanticScore: 0.8}, {Path: "b.go", SemanticScore: 0.4}}

	merged := mergeCandidates(structural, semantic)
	require.Len(t, merged, 2)

	var a candidate
	for _, c := range merged {
		if c.Path == "a.go" {
			a = c
		}
	}
	require.True(t, a.StructuralHit)
	require.Equal(t, 0.8, a.SemanticScore)
}

func TestEstimateTokenCostClampsToBounds(t *testing.T) {
	require.Equal(t, MinTokenCost, estimateTokenCost(nil))
	require.Equal(t, MinTokenCost, estimateTokenCost(&model.FileEntry{Size: 2}))
	require.Equal(t, MaxTokenCost, estimateTokenCost(&model.FileEntry{Size: 1_000_000}))

	mid := estimateTokenCost(&model.FileEntry{Size: 4000})
	require.Equal(t, 1000, mid)
}

func TestTestProximityScoresTestFilesAndTheirSubjects(t *testing.T) {
	art := sampleArtifactForPlanner()
	require.Equal(t, 1.0, testProximity(art, "internal/auth/login_test.go"))
	require.Equal(t, 0.6, testProximity(art, "internal/auth/login.go"))
	require.Equal(t, 0.0, testProximity(art, "docs/readme.md"))
}

func TestRankStageOneOrdersByWeightedScoreDeterministically(t *testing.T) {
	scored := []scoredCandidate{
		{candidate: candidate{Path: "low.go"}, features: Features{StructuralRelevance: 0.1}},
		{candidate: candidate{Path: "high.go"}, features: Features{StructuralRelevance: 0.9}},
	}
	ranked := rankStageOne(scored, DefaultStageOneWeights())
	require.Equal(t, "high.go", ranked[0].candidate.Path)
	require.Equal(t, "low.go", ranked[1].candidate.Path)
}

func TestAssembleBudgetDropsLowUtilityWhenBudgetExhausted(t *testing.T) {
	ranked := []scoredCandidate{
		{candidate: candidate{Path: "cheap.go"}, score: 0.9, features: Features{TokenCost: 100}},
		{candidate: candidate{Path: "expensive.go"}, score: 0.95, features: Features{TokenCost: 10000}},
	}
	selected, dropped, report := assembleBudget(ranked, 500)

	require.Len(t, selected, 1)
	require.Equal(t, "cheap.go", selected[0].candidate.Path)
	require.Len(t, dropped, 1)
	require.Equal(t, "expensive.go", dropped[0].candidate.Path)
	require.Equal(t, "token budget exhausted", dropped[0].reason)
	require.Equal(t, 100, report.TokensUsed)
}

func TestAssembleBudgetBreaksUtilityTiesByRecencyThenCost(t *testing.T) {
	ranked := []scoredCandidate{
		{candidate: candidate{Path: "stale.go"}, score: 0.5, features: Features{TokenCost: 100, Recency: 0.1}},
		{candidate: candidate{Path: "fresh.go"}, score: 0.5, features: Features{TokenCost: 100, Recency: 0.9}},
	}
	selected, _, _ := assembleBudget(ranked, 100)
	require.Len(t, selected, 1)
	require.Equal(t, "fresh.go", selected[0].candidate.Path)
}

func TestChurnCacheFailsOpenOutsideGitRepo(t *testing.T) {
	cache := NewChurnCache()
	snapshot, err := cache.Get(context.Background(), t.TempDir())
	require.NoError(t, err)
	require.Empty(t, snapshot)
}

func TestCallGraphCacheCountsInboundEdges(t *testing.T) {
	art := &model.Artifact{Files: []model.FileEntry{{Path: "pkg/widgets/button.go"}}}
	edges := []model.ImportEdge{
		{FromID: "1:a.go", ToStem: "pkg.widgets.button"},
		{FromID: "1:b.go", ToStem: "pkg.widgets.button"},
	}
	cache := NewCallGraphCache()
	graph := cache.Get(1, art, edges)
	require.Equal(t, 2, graph.InboundCount["pkg.widgets.button"])

	// Same inputs should hit the cache and return the identical pointer.
	again := cache.Get(1, art, edges)
	require.Same(t, graph, again)
}

type fakeReranker struct {
	scores []float64
	err    error
}

func (f *fakeReranker) Rerank(ctx context.Context, taskText string, candidates []string, timeout time.Duration) ([]float64, error) {
	return f.scores, f.err
}

func TestPlanFallsBackToStageOneWhenRerankerErrors(t *testing.T) {
	p := New()
	p.Reranker = &fakeReranker{err: errors.New("boom")}

	art := sampleArtifactForPlanner()
	result, err := p.Plan(context.Background(), Request{
		TaskText: "fix login crash", ProjectID: 1, ProjectRoot: t.TempDir(),
		TokenBudget: 100000, MLMode: MLFast,
	}, art, nil, nil)

	require.NoError(t, err)
	require.NotEmpty(t, result.Selected)
	require.Equal(t, IntentBugfix, result.Intent)
}

func TestPlanDegradesGracefullyWithNoOptionalCollaborators(t *testing.T) {
	p := New()
	art := sampleArtifactForPlanner()

	result, err := p.Plan(context.Background(), Request{
		TaskText: "add support for WidgetFactory", ProjectID: 7, ProjectRoot: t.TempDir(),
		TokenBudget: 2000,
	}, art, nil, nil)

	require.NoError(t, err)
	require.Equal(t, IntentFeature, result.Intent)
	require.NotZero(t, result.TaskFingerprint)
	require.NotEmpty(t, result.DecisionTrace)
}
