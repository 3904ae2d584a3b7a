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
	"regexp"
	"strings"

	"github.com/heAdz0r/rtk-sub001/internal/model"
)

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9_./\-]+`)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "to": true, "of": true, "in": true,
	"on": true, "for": true, "and": true, "is": true, "it": true, "this": true,
	"that": true, "with": true, "we": true, "i": true, "please": true,
}

// normalizeIntent lowercases and tokenizes the raw task text, dropping stop
// words, and pulls out path-like and identifier-like entities (spec §4.7
// step 1: "normalize task text, extract entities: file paths, symbol names,
// error strings").
func normalizeIntent(taskText string) (normalized string, entities []string) {
	tokens := tokenPattern.FindAllString(strings.TrimSpace(taskText), -1)

	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		if stopWords[lower] {
			continue
		}
		kept = append(kept, lower)
		// Case is checked on the original token so CamelCase identifiers count.
		if looksLikeEntity(tok) {
			entities = append(entities, lower)
		}
	}
	return strings.Join(kept, " "), entities
}

func looksLikeEntity(tok string) bool {
	if strings.Contains(tok, "/") || strings.Contains(tok, ".") {
		return true
	}
	// CamelCase or snake_case identifiers read as symbol names.
	if strings.Contains(tok, "_") {
		return true
	}
	hasUpper, hasLower := false, false
	for _, r := range tok {
		if r >= 'A' && r <= 'Z' {
			hasUpper = true
		}
		if r >= 'a' && r <= 'z' {
			hasLower = true
		}
	}
	return hasUpper && hasLower
}

var intentKeywords = map[Intent][]string{
	IntentBugfix:   {"bug", "fix", "broken", "crash", "panic", "error", "fails", "failing", "regression"},
	IntentIncident: {"incident", "outage", "down", "production", "urgent", "sev1", "sev2", "pager"},
	IntentRefactor: {"refactor", "cleanup", "rename", "restructure", "simplify", "extract"},
	IntentFeature:  {"add", "implement", "new", "feature", "support"},
}

// classifyIntent picks the first matching intent in priority order
// (incident > bugfix > refactor > feature), since an incident report that
// also mentions "fix" is still handled as an incident.
func classifyIntent(normalized string, entities []string) Intent {
	order := []Intent{IntentIncident, IntentBugfix, IntentRefactor, IntentFeature}
	for _, intent := range order {
		for _, kw := range intentKeywords[intent] {
			if strings.Contains(normalized, kw) {
				return intent
			}
		}
	}
	if len(entities) > 0 {
		return IntentFeature
	}
	return IntentUnknown
}

// taskFingerprint hashes the normalized text together with the project and
// intent so identical tasks against the same project reuse historical
// affinity rows (spec §4.7: "task_fingerprint = hash(normalized_text,
// project_id, intent)").
func taskFingerprint(normalized string, projectID uint64, intent Intent) uint64 {
	payload := model.ItoA(projectID) + "|" + string(intent) + "|" + normalized
	return model.ContentHash([]byte(payload))
}
