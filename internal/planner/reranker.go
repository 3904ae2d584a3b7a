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

// SubprocessReranker invokes an external Stage-2 reranking command: JSON
// request on stdin, `{scores: [...]}` JSON on stdout (spec §6). Any
// deviation from that contract is the caller's signal to fall back to
// Stage-1 ranking; this type only surfaces the error, it never retries.
type SubprocessReranker struct {
	Command     string
	Args        []string
	ProjectRoot string
}

type rerankRequest struct {
	Task       string   `json:"task"`
	Candidates []string `json:"candidates"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Rerank runs the configured subprocess, feeding it a JSON request and
// parsing a JSON response of per-candidate scores in the same order.
func (r *SubprocessReranker) Rerank(ctx context.Context, taskText string, candidates []string, timeout time.Duration) ([]float64, error) {
	if r.Command == "" {
		return nil, fmt.Errorf("planner: no reranker command configured")
	}

	payload, err := json.Marshal(rerankRequest{Task: taskText, Candidates: candidates})
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, r.Command, r.Args...)
	cmd.Dir = r.ProjectRoot
	cmd.Stdin = bytes.NewReader(payload)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("planner: reranker subprocess failed: %w", err)
	}

	var resp rerankResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("planner: reranker subprocess returned malformed JSON: %w", err)
	}
	if len(resp.Scores) != len(candidates) {
		return nil, fmt.Errorf("planner: reranker returned %d scores for %d candidates", len(resp.Scores), len(candidates))
	}
	return resp.Scores, nil
}
