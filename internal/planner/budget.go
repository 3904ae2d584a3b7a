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

type droppedScored struct {
	candidate scoredCandidate
	reason    string
}

// assembleBudget greedily fills tokenBudget by descending utility
// (score / token_cost), per spec §4.7 step 5: "utility_i = score_i /
// token_cost_i ... greedily add candidates until budget exhausted". Ties
// break by risk (riskier files first, since they are more likely to need
// touching), then recency (more recently touched first), then by lower
// token cost (cheaper first).
func assembleBudget(ranked []scoredCandidate, tokenBudget int) (selected []scoredCandidate, dropped []droppedScored, report BudgetReport) {
	if tokenBudget <= 0 {
		tokenBudget = MaxTokenCost
	}

	byUtility := make([]scoredCandidate, len(ranked))
	copy(byUtility, ranked)
	sort.SliceStable(byUtility, func(i, j int) bool {
		ui := utilityOf(byUtility[i])
		uj := utilityOf(byUtility[j])
		if ui != uj {
			return ui > uj
		}
		if byUtility[i].features.Risk != byUtility[j].features.Risk {
			return byUtility[i].features.Risk > byUtility[j].features.Risk
		}
		if byUtility[i].features.Recency != byUtility[j].features.Recency {
			return byUtility[i].features.Recency > byUtility[j].features.Recency
		}
		if byUtility[i].features.TokenCost != byUtility[j].features.TokenCost {
			return byUtility[i].features.TokenCost < byUtility[j].features.TokenCost
		}
		return byUtility[i].candidate.Path < byUtility[j].candidate.Path
	})

	remaining := tokenBudget
	for _, c := range byUtility {
		cost := c.features.TokenCost
		if cost <= 0 {
			cost = MinTokenCost
		}
		if cost > remaining {
			dropped = append(dropped, droppedScored{candidate: c, reason: "token budget exhausted"})
			continue
		}
		selected = append(selected, c)
		remaining -= cost
		report.TokensUsed += cost
	}

	report.TokenBudget = tokenBudget
	report.Selected = len(selected)
	report.Dropped = len(dropped)
	return selected, dropped, report
}

func utilityOf(c scoredCandidate) float64 {
	cost := c.features.TokenCost
	if cost <= 0 {
		cost = MinTokenCost
	}
	return c.score / float64(cost)
}
