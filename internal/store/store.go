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
// Package store provides durable persistence for Project, Artifact,
// ImportEdge, CacheEvent, and Event rows in a single local SQLite database,
// following the schema-on-open and mutex-guarded access idiom of the
// teacher's pkg/storage.EmbeddedBackend (grounded on storage/embedded.go),
// adapted from CozoDB/CGO to database/sql + modernc.org/sqlite — see
// DESIGN.md "Dropped dependencies" for why.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/heAdz0r/rtk-sub001/internal/model"
)

// DefaultTTL is the default artifact freshness window (spec §4.1).
const DefaultTTL = 24 * time.Hour

// DefaultMaxProjects bounds the LRU project cap (spec §4.1).
const DefaultMaxProjects = 64

// busyBackoffs implements the bounded-retry contract of spec §4.1/§5.
var busyBackoffs = []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}

// Store is a single-file SQLite-backed store shared by all local agent
// processes and the daemon via WAL journaling (spec §4.1, §5).
type Store struct {
	db *sql.DB
}

// ErrKind is the closed set of store-level error kinds (spec §7).
type ErrKind string

const (
	ErrIO         ErrKind = "IO"
	ErrContention ErrKind = "CONTENTION"
	ErrFatal      ErrKind = "FATAL"
	ErrNotFound   ErrKind = "NOT_FOUND"
)

// StoreError is a typed error carrying a kind per spec §7's propagation policy.
type StoreError struct {
	Kind ErrKind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("store: %s: %s", e.Op, e.Kind)
}

func (e *StoreError) Unwrap() error { return e.Err }

func wrapErr(kind ErrKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Kind: kind, Op: op, Err: err}
}

// Open initializes the schema idempotently, sets WAL journaling, synchronous
// NORMAL, and a busy timeout (spec §4.1 "open()"). Fails only if the path is
// unwritable.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(2500)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, wrapErr(ErrIO, "open", err)
	}
	// Single-writer-per-row semantics over SQLite's single-writer file lock:
	// cap the pool so concurrent writers serialize through database/sql
	// rather than each grabbing their own connection and hitting SQLITE_BUSY
	// more than the retry budget can absorb.
	db.SetMaxOpenConns(8)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, wrapErr(ErrFatal, "migrate", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			project_id INTEGER PRIMARY KEY,
			root_path TEXT NOT NULL,
			created_at TEXT NOT NULL,
			last_accessed_at TEXT NOT NULL,
			artifact_version INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			project_id INTEGER PRIMARY KEY,
			content_json TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			version INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS artifact_edges (
			from_id TEXT NOT NULL,
			to_stem TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cache_stats (
			timestamp TEXT NOT NULL,
			project_id INTEGER NOT NULL,
			event TEXT NOT NULL,
			raw_bytes INTEGER NOT NULL,
			context_bytes INTEGER NOT NULL,
			latency_ms REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			timestamp TEXT NOT NULL,
			project_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			duration_ms REAL NOT NULL,
			detail TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_accessed ON projects(last_accessed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_project ON events(project_id, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_version ON artifacts(version)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_project ON artifact_edges(from_id)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_stem ON artifact_edges(to_stem)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// PruneRetention deletes CacheEvent/Event rows older than cutoff; Open does
// not call it, callers run it after opening the Store (spec §4.1 "prune_retention", idempotent, bounded).
func (s *Store) PruneRetention(ctx context.Context, cutoff time.Time) error {
	cutoffStr := cutoff.UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_stats WHERE timestamp < ?`, cutoffStr); err != nil {
		return wrapErr(ErrIO, "prune_retention.cache_stats", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE timestamp < ?`, cutoffStr); err != nil {
		return wrapErr(ErrIO, "prune_retention.events", err)
	}
	return nil
}

// EnsureProject creates the project row if absent and bumps last_accessed_at.
func (s *Store) EnsureProject(ctx context.Context, projectID uint64, rootPath string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (project_id, root_path, created_at, last_accessed_at, artifact_version)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET last_accessed_at = excluded.last_accessed_at
	`, int64(projectID), rootPath, now, now, model.ArtifactVersion)
	return wrapErr(ErrIO, "ensure_project", err)
}

// LoadResult is what load_artifact returns: the raw artifact plus its
// updated_at, leaving freshness classification to the Freshness Gate
// (spec §4.1: "the Store returns the raw blob plus its updated_at").
type LoadResult struct {
	Artifact  *model.Artifact
	UpdatedAt time.Time
	Version   int
	Found     bool
}

// LoadArtifact loads the raw artifact blob for a project, or Found=false if none.
func (s *Store) LoadArtifact(ctx context.Context, projectID uint64) (*LoadResult, error) {
	var contentJSON string
	var updatedAt string
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT content_json, updated_at, version FROM artifacts WHERE project_id = ?`, int64(projectID)).
		Scan(&contentJSON, &updatedAt, &version)
	if err == sql.ErrNoRows {
		return &LoadResult{Found: false}, nil
	}
	if err != nil {
		return nil, wrapErr(ErrIO, "load_artifact", err)
	}
	var art model.Artifact
	if err := json.Unmarshal([]byte(contentJSON), &art); err != nil {
		// Fatal: corrupted artifact blob (spec §7) - caller deletes row and rebuilds cold.
		return nil, wrapErr(ErrFatal, "load_artifact.unmarshal", err)
	}
	ts, perr := time.Parse(time.RFC3339Nano, updatedAt)
	if perr != nil {
		ts = time.Now().UTC()
	}
	return &LoadResult{Artifact: &art, UpdatedAt: ts, Version: version, Found: true}, nil
}

// StoreArtifact replaces the artifact row and rewrites the edge set for the
// project atomically (spec §4.1 "store_artifact"), retrying up to 3 times
// with exponential backoff on SQLITE_BUSY contention.
func (s *Store) StoreArtifact(ctx context.Context, projectID uint64, art *model.Artifact, edges []model.ImportEdge) error {
	payload, err := json.Marshal(art)
	if err != nil {
		return wrapErr(ErrFatal, "store_artifact.marshal", err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(busyBackoffs); attempt++ {
		lastErr = s.storeArtifactOnce(ctx, projectID, payload, edges)
		if lastErr == nil {
			return nil
		}
		if !isBusy(lastErr) {
			return wrapErr(ErrIO, "store_artifact", lastErr)
		}
		if attempt < len(busyBackoffs) {
			select {
			case <-ctx.Done():
				return wrapErr(ErrContention, "store_artifact", ctx.Err())
			case <-time.After(busyBackoffs[attempt]):
			}
		}
	}
	return wrapErr(ErrContention, "store_artifact", lastErr)
}

func (s *Store) storeArtifactOnce(ctx context.Context, projectID uint64, payload []byte, edges []model.ImportEdge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO artifacts (project_id, content_json, updated_at, version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET content_json = excluded.content_json,
			updated_at = excluded.updated_at, version = excluded.version
	`, int64(projectID), string(payload), now, model.ArtifactVersion); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM artifact_edges WHERE from_id LIKE ?`, model.ItoA(projectID)+":%"); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO artifact_edges (from_id, to_stem) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, e.FromID, e.ToStem); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadImportEdges returns all edges stored for a project.
func (s *Store) LoadImportEdges(ctx context.Context, projectID uint64) ([]model.ImportEdge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT from_id, to_stem FROM artifact_edges WHERE from_id LIKE ?`, model.ItoA(projectID)+":%")
	if err != nil {
		return nil, wrapErr(ErrIO, "load_import_edges", err)
	}
	defer func() { _ = rows.Close() }()
	var edges []model.ImportEdge
	for rows.Next() {
		var e model.ImportEdge
		if err := rows.Scan(&e.FromID, &e.ToStem); err != nil {
			return nil, wrapErr(ErrIO, "load_import_edges.scan", err)
		}
		edges = append(edges, e)
	}
	return edges, wrapErr(ErrIO, "load_import_edges.rows", rows.Err())
}

// ImportersOf returns files whose imports intersect the given module stem,
// used to answer "which files import module M" and drive cascade invalidation.
func (s *Store) ImportersOf(ctx context.Context, projectID uint64, stem string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT from_id FROM artifact_edges WHERE from_id LIKE ? AND to_stem = ?`, model.ItoA(projectID)+":%", stem)
	if err != nil {
		return nil, wrapErr(ErrIO, "importers_of", err)
	}
	defer func() { _ = rows.Close() }()
	prefix := model.ItoA(projectID) + ":"
	var out []string
	for rows.Next() {
		var fromID string
		if err := rows.Scan(&fromID); err != nil {
			return nil, wrapErr(ErrIO, "importers_of.scan", err)
		}
		out = append(out, fromID[len(prefix):])
	}
	return out, wrapErr(ErrIO, "importers_of.rows", rows.Err())
}

// DeleteArtifact removes the Artifact, edges, and project row for a project
// (the `clear` CLI verb; SPEC_FULL.md §3.1 "ClearProject").
func (s *Store) DeleteArtifact(ctx context.Context, projectID uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(ErrIO, "delete_artifact", err)
	}
	defer func() { _ = tx.Rollback() }()

	idStr := int64(projectID)
	if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE project_id = ?`, idStr); err != nil {
		return wrapErr(ErrIO, "delete_artifact.artifacts", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM artifact_edges WHERE from_id LIKE ?`, model.ItoA(projectID)+":%"); err != nil {
		return wrapErr(ErrIO, "delete_artifact.edges", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE project_id = ?`, idStr); err != nil {
		return wrapErr(ErrIO, "delete_artifact.projects", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_stats WHERE project_id = ?`, idStr); err != nil {
		return wrapErr(ErrIO, "delete_artifact.cache_stats", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE project_id = ?`, idStr); err != nil {
		return wrapErr(ErrIO, "delete_artifact.events", err)
	}
	return wrapErr(ErrIO, "delete_artifact.commit", tx.Commit())
}

// RecordCacheEvent appends a telemetry row; failures are swallowed per
// spec §4.1 (non-blocking, never a user-visible failure) after being logged
// by the caller.
func (s *Store) RecordCacheEvent(ctx context.Context, ev model.CacheEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_stats (timestamp, project_id, event, raw_bytes, context_bytes, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.Timestamp.UTC().Format(time.RFC3339Nano), int64(ev.ProjectID), string(ev.Event), ev.RawBytes, ev.ContextBytes, ev.LatencyMs)
	return err
}

// RecordEvent appends a lifecycle-trace row; same swallow-and-log contract.
func (s *Store) RecordEvent(ctx context.Context, ev model.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (timestamp, project_id, kind, duration_ms, detail)
		VALUES (?, ?, ?, ?, ?)
	`, ev.Timestamp.UTC().Format(time.RFC3339Nano), int64(ev.ProjectID), ev.Kind, ev.DurationMs, ev.Detail)
	return err
}

// projectAccess is a lightweight row used by PruneLRU.
type projectAccess struct {
	ID         uint64
	AccessedAt time.Time
}

// PruneLRU deletes least-recently-accessed projects (and all their rows)
// when the project count exceeds maxProjects (spec §3 "Lifecycle: evicted
// by LRU when count exceeds the project cap").
func (s *Store) PruneLRU(ctx context.Context, maxProjects int) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT project_id, last_accessed_at FROM projects ORDER BY last_accessed_at DESC`)
	if err != nil {
		return nil, wrapErr(ErrIO, "prune_lru.select", err)
	}
	var all []projectAccess
	for rows.Next() {
		var id int64
		var accessedAt string
		if err := rows.Scan(&id, &accessedAt); err != nil {
			_ = rows.Close()
			return nil, wrapErr(ErrIO, "prune_lru.scan", err)
		}
		ts, _ := time.Parse(time.RFC3339Nano, accessedAt)
		all = append(all, projectAccess{ID: uint64(id), AccessedAt: ts})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, wrapErr(ErrIO, "prune_lru.rows", err)
	}
	_ = rows.Close()

	if len(all) <= maxProjects {
		return nil, nil
	}

	sort.Slice(all, func(i, j int) bool { return all[i].AccessedAt.After(all[j].AccessedAt) })
	toEvict := all[maxProjects:]
	var evicted []uint64
	for _, p := range toEvict {
		if err := s.DeleteArtifact(ctx, p.ID); err != nil {
			return evicted, err
		}
		evicted = append(evicted, p.ID)
	}
	return evicted, nil
}

// GainReport summarizes a project's cache_stats history: how many calls
// landed on each CacheStatus and the aggregate raw-bytes-vs-context-bytes
// gap, a proxy for how much re-extraction the cache avoided (the `gain`
// CLI verb). Grounded on cmd/cie/status.go's event-count aggregation,
// adapted from CozoDB relation scans to a SQL GROUP BY.
type GainReport struct {
	Counts            map[model.CacheStatus]int64
	TotalRawBytes     int64
	TotalContextBytes int64
	AvgLatencyMs      float64
}

// CacheGain aggregates cache_stats for one project.
func (s *Store) CacheGain(ctx context.Context, projectID uint64) (GainReport, error) {
	report := GainReport{Counts: make(map[model.CacheStatus]int64)}

	rows, err := s.db.QueryContext(ctx, `SELECT event, COUNT(*), SUM(raw_bytes), SUM(context_bytes), AVG(latency_ms)
		FROM cache_stats WHERE project_id = ? GROUP BY event`, int64(projectID))
	if err != nil {
		return GainReport{}, wrapErr(ErrIO, "cache_gain", err)
	}
	defer func() { _ = rows.Close() }()

	var totalCalls int64
	var latencySum float64
	for rows.Next() {
		var event string
		var count int64
		var rawBytes, contextBytes int64
		var avgLatency float64
		if err := rows.Scan(&event, &count, &rawBytes, &contextBytes, &avgLatency); err != nil {
			return GainReport{}, wrapErr(ErrIO, "cache_gain.scan", err)
		}
		report.Counts[model.CacheStatus(event)] = count
		report.TotalRawBytes += rawBytes
		report.TotalContextBytes += contextBytes
		latencySum += avgLatency * float64(count)
		totalCalls += count
	}
	if err := rows.Err(); err != nil {
		return GainReport{}, wrapErr(ErrIO, "cache_gain.rows", err)
	}
	if totalCalls > 0 {
		report.AvgLatencyMs = latencySum / float64(totalCalls)
	}
	return report, nil
}

// Stats is the result of StoreStats: row counts plus the on-disk page
// accounting `doctor`/`status` surface (SPEC_FULL.md §3.1 "StoreStats").
type Stats struct {
	Projects     int64
	Artifacts    int64
	CacheEvents  int64
	Events       int64
	PageCount    int64
	PageSizeByte int64
}

// SizeBytes is the store's approximate on-disk footprint.
func (s Stats) SizeBytes() int64 { return s.PageCount * s.PageSizeByte }

// StoreStats reports row counts and page accounting, grounded on
// cmd/cie/status.go's stats aggregation adapted from CozoDB relation counts
// to SQLite table counts plus PRAGMA page_count/page_size.
func (s *Store) StoreStats(ctx context.Context) (Stats, error) {
	var st Stats
	queries := []struct {
		query string
		dst   *int64
	}{
		{`SELECT COUNT(*) FROM projects`, &st.Projects},
		{`SELECT COUNT(*) FROM artifacts`, &st.Artifacts},
		{`SELECT COUNT(*) FROM cache_stats`, &st.CacheEvents},
		{`SELECT COUNT(*) FROM events`, &st.Events},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return Stats{}, wrapErr(ErrIO, "store_stats", err)
		}
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&st.PageCount); err != nil {
		return Stats{}, wrapErr(ErrIO, "store_stats.page_count", err)
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&st.PageSizeByte); err != nil {
		return Stats{}, wrapErr(ErrIO, "store_stats.page_size", err)
	}
	return st, nil
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "busy") || strings.Contains(msg, "locked")
}
