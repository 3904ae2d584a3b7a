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

type candidateSource string

const (
	sourceStructural candidateSource = "structural"
	sourceSemantic   candidateSource = "semantic"
	sourceAffinity   candidateSource = "affinity"
)

// candidate is a single file under consideration, carrying whichever raw
// per-source scores its generator(s) produced. A file surfaced by more than
// one generator keeps all of them (merged by mergeCandidates).
type candidate struct {
	Path           string
	StructuralHit  bool
	SemanticScore  float64
	AffinityScore  float64
	Source         candidateSource
	MatchedEntries []string // entity/path tokens that matched, for scoring
}

// generateStructuralCandidates returns every indexed file of the Artifact as
// a structural hit, recording in MatchedEntries why a file relates to the
// task: its path containing one of the entities, a symbol named like one,
// or (for bugfix and incident tasks) a change in the active delta (spec
// §4.7 step 2). For feature and refactor tasks it additionally widens
// the seed set across TypeRelation neighborhoods: types implementing or
// extending a type named in the task text.
func generateStructuralCandidates(art *model.Artifact, delta *model.Delta, intent Intent, entities []string) []candidate {
	if art == nil {
		return nil
	}

	changed := map[string]bool{}
	if delta != nil {
		for _, p := range delta.Added {
			changed[p] = true
		}
		for _, p := range delta.Modified {
			changed[p] = true
		}
	}

	var neighbors map[string][]string
	if intent == IntentFeature || intent == IntentRefactor {
		neighbors = typeRelationNeighbors(art, entities)
	}

	out := make([]candidate, 0, len(art.Files))
	for _, f := range art.Files {
		var matched []string
		if (intent == IntentIncident || intent == IntentBugfix) && changed[f.Path] {
			matched = append(matched, "recently changed")
		}
		lowerPath := strings.ToLower(f.Path)
		for _, e := range entities {
			le := strings.ToLower(e)
			if strings.Contains(lowerPath, le) {
				matched = append(matched, "path matches "+le)
			}
			for _, s := range f.Symbols {
				if strings.ToLower(s.Name) == le {
					matched = append(matched, "defines symbol "+s.Name)
				}
			}
		}
		matched = append(matched, neighbors[f.Path]...)
		out = append(out, candidate{Path: f.Path, StructuralHit: true, MatchedEntries: matched, Source: sourceStructural})
	}
	return out
}

// typeRelationNeighbors finds, for each entity token that names a type
// defined somewhere in the Artifact, every file whose type implements or
// extends that seed type, plus (when the entity names the source side of
// a relation) the file defining the target type. This is the "who else
// shares this shape" structural signal, grounded on the teacher's
// pkg/tools/trace.go interface-dispatch neighborhood lookups
// (detectFieldInterfaces/getCalleesViaFields walking the implements index).
func typeRelationNeighbors(art *model.Artifact, entities []string) map[string][]string {
	if len(entities) == 0 {
		return nil
	}
	seeds := make(map[string]bool, len(entities))
	for _, e := range entities {
		seeds[strings.ToLower(e)] = true
	}

	out := map[string][]string{}
	for _, f := range art.Files {
		for _, rel := range f.Relations {
			if rel.Kind != model.RelationImplements && rel.Kind != model.RelationExtends {
				continue
			}
			switch {
			case seeds[strings.ToLower(rel.TargetType)]:
				out[rel.SourceFile] = append(out[rel.SourceFile], "type relation neighbor of "+rel.TargetType)
			case seeds[strings.ToLower(rel.SourceType)]:
				if target := findTypeFile(art, rel.TargetType); target != "" {
					out[target] = append(out[target], "type relation neighbor of "+rel.SourceType)
				}
			}
		}
	}
	return out
}

// findTypeFile returns the path of the file that declares typeName as a
// type or interface symbol, or "" if no file does.
func findTypeFile(art *model.Artifact, typeName string) string {
	for _, f := range art.Files {
		for _, s := range f.Symbols {
			if s.Name == typeName && (s.Kind == model.SymbolType || s.Kind == model.SymbolInterface) {
				return f.Path
			}
		}
	}
	return ""
}

// mergeCandidates unions candidate lists by path, combining per-source
// scores so a file surfaced by both structural and semantic generation
// benefits from both signals during scoring.
func mergeCandidates(lists ...[]candidate) []candidate {
	byPath := make(map[string]*candidate)
	var order []string

	for _, list := range lists {
		for _, c := range list {
			if c.Path == "" {
				continue
			}
			existing, ok := byPath[c.Path]
			if !ok {
				cc := c
				byPath[c.Path] = &cc
				order = append(order, c.Path)
				continue
			}
			if c.StructuralHit {
				existing.StructuralHit = true
			}
			if c.SemanticScore > existing.SemanticScore {
				existing.SemanticScore = c.SemanticScore
			}
			if c.AffinityScore > existing.AffinityScore {
				existing.AffinityScore = c.AffinityScore
			}
			existing.MatchedEntries = append(existing.MatchedEntries, c.MatchedEntries...)
		}
	}

	out := make([]candidate, 0, len(order))
	for _, p := range order {
		out = append(out, *byPath[p])
	}
	return out
}
