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
	"strings"

	"github.com/heAdz0r/rtk-sub001/internal/model"
)

// Features is the per-candidate feature vector (spec §4.7 step 3): each
// value is normalized to roughly [0, 1] before StageOneWeights combines
// them into a single score.
type Features struct {
	StructuralRelevance float64
	SemanticScore       float64
	AffinityScore       float64
	Recency             float64
	Risk                float64
	TestProximity       float64
	TokenCost           int // raw estimated tokens, not normalized
}

type scoredCandidate struct {
	candidate candidate
	features  Features
	score     float64
}

// scoreCandidate computes the feature vector for one merged candidate.
func scoreCandidate(c candidate, art *model.Artifact, churn map[string]ChurnInfo, graph *CallGraph, risk RiskSet) scoredCandidate {
	entry := findFileEntry(art, c.Path)

	f := Features{
		SemanticScore: clamp01(c.SemanticScore),
		AffinityScore: clamp01(c.AffinityScore),
		TokenCost:     estimateTokenCost(entry),
	}

	f.StructuralRelevance = structuralRelevance(c, entry, graph)
	f.Recency = recencyScore(churn[c.Path])
	f.TestProximity = testProximity(art, c.Path)
	if risk != nil && risk.IsRisky(c.Path) {
		f.Risk = 1.0
	} else if churn != nil {
		// High churn without an explicit risk-set entry still reads as
		// somewhat risky: a frequently-edited file is more likely to need
		// touching again for an incident or bugfix task.
		if info, ok := churn[c.Path]; ok && info.Commits > 10 {
			f.Risk = 0.5
		}
	}

	return scoredCandidate{candidate: c, features: f}
}

func findFileEntry(art *model.Artifact, path string) *model.FileEntry {
	if art == nil {
		return nil
	}
	for i := range art.Files {
		if art.Files[i].Path == path {
			return &art.Files[i]
		}
	}
	return nil
}

func structuralRelevance(c candidate, entry *model.FileEntry, graph *CallGraph) float64 {
	score := 0.0
	if c.StructuralHit {
		score += 0.3
	}
	if len(c.MatchedEntries) > 0 {
		score += 0.3
	}
	if entry != nil && graph != nil {
		stem := stemOf(entry.Path)
		if count := graph.InboundCount[stem]; count > 0 {
			score += clamp01(float64(count) / 10.0)
		}
	}
	return clamp01(score)
}

func stemOf(path string) string {
	trimmed := strings.TrimSuffix(path, extOf(path))
	return strings.ReplaceAll(trimmed, "/", ".")
}

func extOf(path string) string {
	if idx := strings.LastIndex(path, "."); idx >= 0 && idx > strings.LastIndex(path, "/") {
		return path[idx:]
	}
	return ""
}

// recencyScore maps "days since last touch" to a [0,1] decay of
// 1/(1+days/30): a file touched today scores 1.0, one untouched for 30 days
// scores 0.5, and one untouched for 90 days scores 0.25.
func recencyScore(info ChurnInfo) float64 {
	if info.Commits == 0 {
		return 0
	}
	const halfLifeDays = 30.0
	decay := 1.0 / (1.0 + info.DaysSinceTouch/halfLifeDays)
	return clamp01(decay)
}

// testProximity scores 1.0 for a file that is itself a test, and a partial
// score for a non-test file that has at least one test naming it as a
// subject (spec §4.7: "f_test_proximity ... distance to nearest test").
func testProximity(art *model.Artifact, path string) float64 {
	if art == nil {
		return 0
	}
	for _, f := range art.Files {
		if f.Path == path && f.TestKind != "" {
			return 1.0
		}
	}
	for _, f := range art.Files {
		for _, subject := range f.TestSubjects {
			if subject == path {
				return 0.6
			}
		}
	}
	return 0
}

// estimateTokenCost derives a rough token count from file size (~4 bytes
// per token is a common text-to-token heuristic) and clamps it into
// [MinTokenCost, MaxTokenCost].
func estimateTokenCost(entry *model.FileEntry) int {
	if entry == nil || entry.Size <= 0 {
		return MinTokenCost
	}
	tokens := int(entry.Size / 4)
	if tokens < MinTokenCost {
		return MinTokenCost
	}
	if tokens > MaxTokenCost {
		return MaxTokenCost
	}
	return tokens
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
