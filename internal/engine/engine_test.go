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

package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/heAdz0r/rtk-sub001/internal/extractor"
	"github.com/heAdz0r/rtk-sub001/internal/freshness"
	"github.com/heAdz0r/rtk-sub001/internal/indexer"
	"github.com/heAdz0r/rtk-sub001/internal/model"
	"github.com/heAdz0r/rtk-sub001/internal/planner"
	"github.com/heAdz0r/rtk-sub001/internal/renderer"
	"github.com/heAdz0r/rtk-sub001/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))

	st, err := store.Open(filepath.Join(t.TempDir(), "mem.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ix := indexer.New(extractor.NewRegistry(), nil)
	e := New(st, ix, freshness.New(0), renderer.New(), planner.New(), 0)
	return e, root
}

func TestExploreColdPathMissesThenHitsOnSecondCall(t *testing.T) {
	e, root := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Explore(ctx, Request{ProjectRoot: root, QueryType: renderer.QueryGeneral})
	require.NoError(t, err)
	require.Equal(t, model.StatusMiss, first.CacheStatus)
	require.Equal(t, model.Fresh, first.Freshness)
	require.Equal(t, 1, first.Stats.FileCount)
	require.NotNil(t, first.Context)

	second, err := e.Explore(ctx, Request{ProjectRoot: root, QueryType: renderer.QueryGeneral})
	require.NoError(t, err)
	require.Equal(t, model.StatusHit, second.CacheStatus)
	require.Equal(t, model.Fresh, second.Freshness)
}

func TestExploreRebuildsWhenFileChangesOnDisk(t *testing.T) {
	e, root := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Explore(ctx, Request{ProjectRoot: root})
	require.NoError(t, err)

	// Touch the file so its (size, mtime) disagree with the stored entry.
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() { println(1) }\n"), 0o644))

	res, err := e.Explore(ctx, Request{ProjectRoot: root})
	require.NoError(t, err)
	require.Equal(t, model.StatusDirtyRebuild, res.CacheStatus)
	require.Equal(t, model.Dirty, res.Freshness)
}

func TestExploreReturnsStrictnessErrorUnderStrictMode(t *testing.T) {
	e, root := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Explore(ctx, Request{ProjectRoot: root})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "extra.go"), []byte("package main\n"), 0o644))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() { println(2) }\n"), 0o644))

	strict := true
	_, err = e.Explore(ctx, Request{ProjectRoot: root, Strict: &strict})
	require.Error(t, err)
	var strictErr *freshness.StrictnessError
	require.ErrorAs(t, err, &strictErr)
}

func TestDeltaOmitsRenderedContext(t *testing.T) {
	e, root := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Delta(ctx, Request{ProjectRoot: root})
	require.NoError(t, err)
	require.Nil(t, res.Context)
	require.Equal(t, model.StatusMiss, res.CacheStatus)
}

func TestRefreshForcesRebuildEvenWhenFresh(t *testing.T) {
	e, root := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Explore(ctx, Request{ProjectRoot: root})
	require.NoError(t, err)

	res, err := e.Refresh(ctx, Request{ProjectRoot: root})
	require.NoError(t, err)
	require.Equal(t, model.StatusRefreshed, res.CacheStatus)
	require.NotNil(t, res.Context)
}

func TestPlanContextReturnsPlannerFieldsAlongsideBaseEnvelope(t *testing.T) {
	e, root := newTestEngine(t)
	ctx := context.Background()

	res, err := e.PlanContext(ctx, PlanRequest{
		Request:     Request{ProjectRoot: root},
		Task:        "fix main crash",
		TokenBudget: 10000,
	})
	require.NoError(t, err)
	require.Equal(t, planner.IntentBugfix, res.Intent)
	require.NotEmpty(t, res.Selected)
	require.NotEmpty(t, res.DecisionTrace)
	require.Equal(t, model.StatusMiss, res.CacheStatus)
}

func TestPlanContextErrorsWithoutAPlanner(t *testing.T) {
	e, root := newTestEngine(t)
	e.Planner = nil
	ctx := context.Background()

	_, err := e.PlanContext(ctx, PlanRequest{Request: Request{ProjectRoot: root}, Task: "anything"})
	require.ErrorIs(t, err, ErrPlannerUnavailable)
}

func TestClearProjectRemovesStoredArtifact(t *testing.T) {
	e, root := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Explore(ctx, Request{ProjectRoot: root})
	require.NoError(t, err)

	require.NoError(t, e.ClearProject(ctx, root))

	res, err := e.Explore(ctx, Request{ProjectRoot: root})
	require.NoError(t, err)
	require.Equal(t, model.StatusMiss, res.CacheStatus)
}
