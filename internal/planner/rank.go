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

import "sort"

// StageOneWeights are the deterministic linear weights combining a
// candidate's feature vector into one Stage-1 score (spec §4.7 step 4:
// "Stage-1: deterministic weighted linear combination of features").
// Token cost and risk are excluded from the positive sum and instead act
// as tie-breakers / budget inputs downstream.
type StageOneWeights struct {
	Structural float64
	Semantic   float64
	Affinity   float64
	Recency    float64
	TestProx   float64
}

// DefaultStageOneWeights sums to 1.0, weighted toward structural and
// semantic relevance since those are the signals available for every task
// regardless of whether a semantic subprocess or affinity history exists.
func DefaultStageOneWeights() StageOneWeights {
	return StageOneWeights{
		Structural: 0.35,
		Semantic:   0.30,
		Affinity:   0.15,
		Recency:    0.10,
		TestProx:   0.10,
	}
}

func (w StageOneWeights) apply(f Features) float64 {
	return w.Structural*f.StructuralRelevance +
		w.Semantic*f.SemanticScore +
		w.Affinity*f.AffinityScore +
		w.Recency*f.Recency +
		w.TestProx*f.TestProximity
}

// rankStageOne scores every candidate and sorts descending by score, with
// ties broken by path for determinism.
func rankStageOne(scored []scoredCandidate, weights StageOneWeights) []scoredCandidate {
	out := make([]scoredCandidate, len(scored))
	copy(out, scored)
	for i := range out {
		out[i].score = weights.apply(out[i].features)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].candidate.Path < out[j].candidate.Path
	})
	return out
}
