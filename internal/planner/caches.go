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
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/heAdz0r/rtk-sub001/internal/model"
)

// churnSubprocessTimeout bounds the VCS churn subprocess (spec §6: "VCS
// subprocess hard timeout <= 500ms default").
const churnSubprocessTimeout = 500 * time.Millisecond

// ChurnInfo is one file's historical change-frequency signal.
type ChurnInfo struct {
	Commits        int
	DaysSinceTouch float64
}

// ChurnCache memoizes per-repo churn snapshots keyed by the repository's
// current HEAD revision, so repeated Plan calls against an unchanged repo
// don't re-shell out to git (grounded on pkg/ingestion/delta.go's
// os/exec + exec.CommandContext idiom).
type ChurnCache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, map[string]ChurnInfo]
}

// NewChurnCache builds a churn cache holding snapshots for up to 8 distinct
// repos (plenty for a single-daemon process serving a handful of projects).
func NewChurnCache() *ChurnCache {
	c, _ := lru.New[string, map[string]ChurnInfo](8)
	return &ChurnCache{cache: c}
}

// Get returns the churn snapshot for root, computing and caching it keyed by
// HEAD when absent. Any subprocess failure fails open to an empty map
// (spec §6: a VCS failure degrades the recency/risk features, never the
// call).
func (c *ChurnCache) Get(ctx context.Context, root string) (map[string]ChurnInfo, error) {
	head, err := currentHead(ctx, root)
	if err != nil {
		return map[string]ChurnInfo{}, nil
	}

	c.mu.Lock()
	if cached, ok := c.cache.Get(head); ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	snapshot := computeChurn(ctx, root)

	c.mu.Lock()
	c.cache.Add(head, snapshot)
	c.mu.Unlock()
	return snapshot, nil
}

func currentHead(ctx context.Context, root string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, churnSubprocessTimeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, "git", "rev-parse", "HEAD")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// computeChurn runs `git log --all --name-only` (the VCS subprocess
// contract; a %ct format line is interleaved per commit so per-path
// recency can be derived alongside the touch count) and tallies per-path
// commit counts plus days since last touch. Bounded to the most recent
// 500 commits to keep the subprocess within its timeout on large
// histories. Never returns an error: any failure yields an empty snapshot.
func computeChurn(ctx context.Context, root string) map[string]ChurnInfo {
	out := map[string]ChurnInfo{}

	cctx, cancel := context.WithTimeout(ctx, churnSubprocessTimeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, "git", "log", "--all", "--max-count=500", "--name-only", "--format=%ct")
	cmd.Dir = root
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return out
	}
	if err := cmd.Start(); err != nil {
		return out
	}

	var commitUnixSeconds int64
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if ts, err := strconv.ParseInt(line, 10, 64); err == nil && !strings.Contains(line, "/") {
			commitUnixSeconds = ts
			continue
		}
		info := out[line]
		info.Commits++
		daysAgo := float64(time.Now().Unix()-commitUnixSeconds) / 86400.0
		if info.Commits == 1 || daysAgo < info.DaysSinceTouch {
			info.DaysSinceTouch = daysAgo
		}
		out[line] = info
	}
	_ = cmd.Wait()
	return out
}

// CallGraph is a derived, read-only view of a project's import edges: how
// many other files import each stem (used by the structural-relevance
// feature as a proxy for "this file is widely depended upon").
type CallGraph struct {
	InboundCount map[string]int
}

// CallGraphCache memoizes a project's CallGraph keyed by a cheap hash of its
// Artifact + edge set, invalidated whenever the artifact is replaced
// (spec §4.7: "CallGraph cache ... keyed by artifact hash").
type CallGraphCache struct {
	mu    sync.Mutex
	cache *lru.Cache[uint64, *CallGraph]
}

// NewCallGraphCache builds a cache holding call graphs for up to 8 projects.
func NewCallGraphCache() *CallGraphCache {
	c, _ := lru.New[uint64, *CallGraph](8)
	return &CallGraphCache{cache: c}
}

// Get returns the CallGraph for the given artifact/edge set, building and
// caching it on first use.
func (c *CallGraphCache) Get(projectID uint64, art *model.Artifact, edges []model.ImportEdge) *CallGraph {
	key := artifactHash(projectID, art, edges)

	c.mu.Lock()
	if cached, ok := c.cache.Get(key); ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	graph := &CallGraph{InboundCount: map[string]int{}}
	for _, e := range edges {
		graph.InboundCount[e.ToStem]++
	}

	c.mu.Lock()
	c.cache.Add(key, graph)
	c.mu.Unlock()
	return graph
}

func artifactHash(projectID uint64, art *model.Artifact, edges []model.ImportEdge) uint64 {
	var sb strings.Builder
	sb.WriteString(model.ItoA(projectID))
	sb.WriteByte('|')
	if art != nil {
		sb.WriteString(strconv.Itoa(len(art.Files)))
		sb.WriteByte('|')
		sb.WriteString(strconv.FormatInt(art.UpdatedAt.UnixNano(), 10))
	}
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(len(edges)))
	return model.ContentHash([]byte(sb.String()))
}
