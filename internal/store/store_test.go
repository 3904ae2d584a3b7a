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
package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/heAdz0r/rtk-sub001/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "mem.db")
	s, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreArtifactRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	projectID := model.ProjectID("/tmp/example")
	require.NoError(t, s.EnsureProject(ctx, projectID, "/tmp/example"))

	art := &model.Artifact{
		ProjectID:   projectID,
		ArtifactVer: model.ArtifactVersion,
		Files: []model.FileEntry{
			{Path: "main.go", Size: 10, ContentHash: 42, Language: "go"},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	edges := []model.ImportEdge{
		{FromID: model.ImportEdgeFromID(projectID, "main.go"), ToStem: "fmt"},
	}

	require.NoError(t, s.StoreArtifact(ctx, projectID, art, edges))

	loaded, err := s.LoadArtifact(ctx, projectID)
	require.NoError(t, err)
	require.True(t, loaded.Found)
	require.Equal(t, 1, len(loaded.Artifact.Files))
	require.Equal(t, "main.go", loaded.Artifact.Files[0].Path)

	gotEdges, err := s.LoadImportEdges(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, gotEdges, 1)
	require.Equal(t, "fmt", gotEdges[0].ToStem)

	importers, err := s.ImportersOf(ctx, projectID, "fmt")
	require.NoError(t, err)
	require.Equal(t, []string{"main.go"}, importers)
}

func TestLoadArtifactMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	loaded, err := s.LoadArtifact(context.Background(), 12345)
	require.NoError(t, err)
	require.False(t, loaded.Found)
}

func TestStoreArtifactReplacesEdgesAtomically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	projectID := uint64(7)

	art1 := &model.Artifact{ProjectID: projectID, ArtifactVer: model.ArtifactVersion}
	edges1 := []model.ImportEdge{{FromID: model.ImportEdgeFromID(projectID, "a.go"), ToStem: "fmt"}}
	require.NoError(t, s.StoreArtifact(ctx, projectID, art1, edges1))

	art2 := &model.Artifact{ProjectID: projectID, ArtifactVer: model.ArtifactVersion}
	edges2 := []model.ImportEdge{{FromID: model.ImportEdgeFromID(projectID, "b.go"), ToStem: "os"}}
	require.NoError(t, s.StoreArtifact(ctx, projectID, art2, edges2))

	edges, err := s.LoadImportEdges(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, "os", edges[0].ToStem)
}

func TestPruneLRUEvictsOldest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, s.EnsureProject(ctx, i, "/tmp/p"))
		require.NoError(t, s.StoreArtifact(ctx, i, &model.Artifact{ProjectID: i, ArtifactVer: model.ArtifactVersion}, nil))
		// Space out last_accessed_at so ordering is deterministic.
		_, err := s.db.ExecContext(ctx, `UPDATE projects SET last_accessed_at = ? WHERE project_id = ?`,
			time.Now().Add(time.Duration(i)*time.Minute).UTC().Format(time.RFC3339Nano), int64(i))
		require.NoError(t, err)
	}

	evicted, err := s.PruneLRU(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, evicted)

	loaded, err := s.LoadArtifact(ctx, 1)
	require.NoError(t, err)
	require.False(t, loaded.Found)
}

func TestPruneRetentionDeletesOldEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := model.CacheEvent{Timestamp: time.Now().Add(-48 * time.Hour), ProjectID: 1, Event: model.StatusHit}
	recent := model.CacheEvent{Timestamp: time.Now(), ProjectID: 1, Event: model.StatusMiss}
	require.NoError(t, s.RecordCacheEvent(ctx, old))
	require.NoError(t, s.RecordCacheEvent(ctx, recent))

	require.NoError(t, s.PruneRetention(ctx, time.Now().Add(-24*time.Hour)))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_stats`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestCacheGainAggregatesByEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordCacheEvent(ctx, model.CacheEvent{
		Timestamp: time.Now(), ProjectID: 1, Event: model.StatusHit,
		RawBytes: 1000, ContextBytes: 200, LatencyMs: 5,
	}))
	require.NoError(t, s.RecordCacheEvent(ctx, model.CacheEvent{
		Timestamp: time.Now(), ProjectID: 1, Event: model.StatusHit,
		RawBytes: 1000, ContextBytes: 200, LatencyMs: 15,
	}))
	require.NoError(t, s.RecordCacheEvent(ctx, model.CacheEvent{
		Timestamp: time.Now(), ProjectID: 1, Event: model.StatusMiss,
		RawBytes: 5000, ContextBytes: 4000, LatencyMs: 200,
	}))

	report, err := s.CacheGain(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), report.Counts[model.StatusHit])
	require.Equal(t, int64(1), report.Counts[model.StatusMiss])
	require.Equal(t, int64(7000), report.TotalRawBytes)
	require.InDelta(t, 73.3, report.AvgLatencyMs, 0.5)
}

func TestStoreStatsReportsRowCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureProject(ctx, 1, "/tmp/p"))
	require.NoError(t, s.StoreArtifact(ctx, 1, &model.Artifact{ProjectID: 1, ArtifactVer: model.ArtifactVersion}, nil))
	require.NoError(t, s.RecordCacheEvent(ctx, model.CacheEvent{Timestamp: time.Now(), ProjectID: 1, Event: model.StatusHit}))
	require.NoError(t, s.RecordEvent(ctx, model.Event{Timestamp: time.Now(), ProjectID: 1, Kind: "explore"}))

	stats, err := s.StoreStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Projects)
	require.Equal(t, int64(1), stats.Artifacts)
	require.Equal(t, int64(1), stats.CacheEvents)
	require.Equal(t, int64(1), stats.Events)
	require.Greater(t, stats.SizeBytes(), int64(0))
}
