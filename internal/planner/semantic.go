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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

// SubprocessSemanticSearcher invokes an external command that performs
// semantic or embedding-based search over a project and returns JSON hits
// on stdout (spec §6: "semantic subprocess returns {hits: [{path, score,
// snippet}]}"). Any malformed output or non-zero exit fails open to zero
// hits rather than erroring the whole Plan call.
type SubprocessSemanticSearcher struct {
	Command     string
	Args        []string
	ProjectRoot string
}

type semanticResponse struct {
	Hits []SemanticHit `json:"hits"`
}

// Search runs the configured subprocess with the query appended to Args and
// parses its stdout as a semanticResponse.
func (s *SubprocessSemanticSearcher) Search(ctx context.Context, query string, timeout time.Duration) ([]SemanticHit, error) {
	if s.Command == "" {
		return nil, fmt.Errorf("planner: no semantic command configured")
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, s.Args...), query)
	cmd := exec.CommandContext(cctx, s.Command, args...)
	cmd.Dir = s.ProjectRoot

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("planner: semantic subprocess failed: %w", err)
	}

	var resp semanticResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("planner: semantic subprocess returned malformed JSON: %w", err)
	}
	return resp.Hits, nil
}
