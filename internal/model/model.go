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
// Package model defines the shared data model for the memory engine: the
// project, file, type-relation, artifact, import-edge, and telemetry event
// records persisted by the Store and produced by the Indexer.
package model

import "time"

// ArtifactVersion is the engine's compiled-in schema tag. A stored Artifact
// whose version does not match this constant is Dirty and triggers a cold
// rebuild (spec §3 "Invariants").
const ArtifactVersion = 3

// SymbolKind is the closed set of public symbol kinds an Extractor reports.
type SymbolKind string

const (
	SymbolFunction  SymbolKind = "function"
	SymbolMethod    SymbolKind = "method"
	SymbolType      SymbolKind = "type"
	SymbolInterface SymbolKind = "interface"
	SymbolConst     SymbolKind = "const"
	SymbolVar       SymbolKind = "var"
)

// Symbol is one public symbol extracted from a file.
type Symbol struct {
	Name              string     `json:"name"`
	Kind              SymbolKind `json:"kind"`
	SignaturePreview  string     `json:"signature_preview"`
	DocPreview        string     `json:"doc_preview,omitempty"`
	Line              int        `json:"line"`
}

// RelationKind is the closed set of TypeRelation kinds (spec §3).
type RelationKind string

const (
	RelationImplements RelationKind = "implements"
	RelationExtends    RelationKind = "extends"
	RelationFieldOf    RelationKind = "field_of"
	RelationAliasOf    RelationKind = "alias_of"
	RelationBaseOf     RelationKind = "base_of"
)

// TypeRelation is one (source_type, relation_kind, target_type, source_file) triple.
type TypeRelation struct {
	SourceType   string       `json:"source_type"`
	Kind         RelationKind `json:"kind"`
	TargetType   string       `json:"target_type"`
	SourceFile   string       `json:"source_file"`
}

// FileEntry describes one file in a project's Artifact.
type FileEntry struct {
	Path         string         `json:"path"` // project-relative
	Size         int64          `json:"size"`
	MtimeNs      int64          `json:"mtime_ns"`
	ContentHash  uint64         `json:"content_hash"`
	Language     string         `json:"language"`
	Binary       bool           `json:"binary"`
	Symbols      []Symbol       `json:"symbols,omitempty"`
	Imports      []string       `json:"imports,omitempty"` // normalized module stems
	Relations    []TypeRelation `json:"relations,omitempty"`
	TestKind     string         `json:"test_kind,omitempty"` // unit|integration|e2e|unknown
	TestSubjects []string       `json:"test_subjects,omitempty"`
}

// Artifact is the full per-project cached description of repository structure.
type Artifact struct {
	ProjectID      uint64      `json:"project_id"`
	ArtifactVer    int         `json:"artifact_version"`
	Files          []FileEntry `json:"files"`
	EntryPoints    []string    `json:"entry_points,omitempty"`
	DepManifest    []DepEntry  `json:"dep_manifest,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// DepEntry is one parsed package-manifest dependency (name, version, role).
type DepEntry struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Role    string `json:"role"` // direct|indirect|dev
}

// ImportEdge is a directed "file references module stem" relation.
type ImportEdge struct {
	FromID string `json:"from_id"` // project_id:rel_path
	ToStem string `json:"to_stem"`
}

// FileChangeKind classifies one file's state across a delta.
type FileChangeKind string

const (
	FileAdded    FileChangeKind = "added"
	FileModified FileChangeKind = "modified"
	FileRemoved  FileChangeKind = "removed"
	FileUnchanged FileChangeKind = "unchanged"
)

// Delta partitions the prior/current file sets (spec §8 round-trip law).
type Delta struct {
	Added     []string `json:"added"`
	Modified  []string `json:"modified"`
	Removed   []string `json:"removed"`
	Unchanged []string `json:"unchanged,omitempty"`
}

func (d *Delta) IsEmpty() bool {
	return d == nil || (len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Removed) == 0)
}

// CacheStatus is the closed set of cache-event/response statuses.
type CacheStatus string

const (
	StatusHit          CacheStatus = "hit"
	StatusMiss         CacheStatus = "miss"
	StatusStaleRebuild CacheStatus = "stale_rebuild"
	StatusDirtyRebuild CacheStatus = "dirty_rebuild"
	StatusRefreshed    CacheStatus = "refreshed"
)

// Freshness is the tri-state classification of a loaded Artifact (spec §4.5).
type Freshness string

const (
	Fresh Freshness = "fresh"
	Stale Freshness = "stale"
	Dirty Freshness = "dirty"
)

// CacheEvent is one append-only telemetry row (spec §3).
type CacheEvent struct {
	Timestamp    time.Time   `json:"timestamp"`
	ProjectID    uint64      `json:"project_id"`
	Event        CacheStatus `json:"event"`
	RawBytes     int64       `json:"raw_bytes"`
	ContextBytes int64       `json:"context_bytes"`
	LatencyMs    float64     `json:"latency_ms"`
}

// Event is one append-only lifecycle-trace row (spec §3).
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	ProjectID  uint64    `json:"project_id"`
	Kind       string    `json:"kind"` // explore|delta|refresh|api:*|watch:*
	DurationMs float64   `json:"duration_ms"`
	Detail     string    `json:"detail,omitempty"`
}

// Project identifies one indexed repository root.
type Project struct {
	ID             uint64    `json:"project_id"`
	RootPath       string    `json:"root_path"`
	FirstSeenAt    time.Time `json:"first_seen_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	ArtifactVer    int       `json:"artifact_version"`
}
