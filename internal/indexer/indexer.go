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

// Package indexer composes the Walker and Extractor with a project's prior
// Artifact to produce a new Artifact and Delta. It implements the cold path
// (full walk/extract), the incremental two-pass path (metadata diff, then
// cascade invalidation over the import graph), and the git-restricted delta
// path. Grounded on the teacher's pkg/ingestion.LocalPipeline orchestration,
// delta.go's git subprocess idiom, and hash_delta.go's content-hash compare.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heAdz0r/rtk-sub001/internal/extractor"
	"github.com/heAdz0r/rtk-sub001/internal/model"
	"github.com/heAdz0r/rtk-sub001/internal/walker"
)

// Options configures one BuildArtifact call.
type Options struct {
	// SinceRev restricts Pass-1 candidates to files git reports changed
	// since this revision (spec §4.4 "Git delta"). Empty disables it.
	SinceRev string
	// Concurrency bounds parallel hashing/extraction; 0 uses runtime.NumCPU().
	Concurrency int
}

// Indexer produces Artifacts for a project root.
type Indexer struct {
	Extractor *extractor.Registry
	Logger    *slog.Logger
}

// New builds an Indexer over the given Extractor registry.
func New(ext *extractor.Registry, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{Extractor: ext, Logger: logger}
}

// BuildArtifact produces a new Artifact for root. prior == nil selects the
// cold path (spec §4.4 "Cold path"); otherwise the incremental two-pass path
// runs (spec §4.4 "Incremental path (two pass)").
func (ix *Indexer) BuildArtifact(ctx context.Context, root string, projectID uint64, prior *model.Artifact, opts Options) (*model.Artifact, model.Delta, []model.ImportEdge, error) {
	w := walker.New(root)
	candidates, err := w.Walk()
	if err != nil {
		return nil, model.Delta{}, nil, fmt.Errorf("walk project root: %w", err)
	}

	if prior == nil {
		return ix.buildCold(ctx, root, projectID, w, candidates, opts)
	}
	return ix.buildIncremental(ctx, root, projectID, w, candidates, prior, opts)
}

func (ix *Indexer) buildCold(ctx context.Context, root string, projectID uint64, w *walker.Walker, candidates []walker.Candidate, opts Options) (*model.Artifact, model.Delta, []model.ImportEdge, error) {
	entries, err := ix.hashAndExtract(ctx, w, candidates, opts)
	if err != nil {
		return nil, model.Delta{}, nil, err
	}

	delta := model.Delta{}
	for _, e := range entries {
		delta.Added = append(delta.Added, e.Path)
	}
	sort.Strings(delta.Added)

	art := assembleArtifact(projectID, entries)
	edges := buildImportEdges(projectID, entries)
	return art, delta, edges, nil
}

func (ix *Indexer) buildIncremental(ctx context.Context, root string, projectID uint64, w *walker.Walker, candidates []walker.Candidate, prior *model.Artifact, opts Options) (*model.Artifact, model.Delta, []model.ImportEdge, error) {
	priorByPath := make(map[string]model.FileEntry, len(prior.Files))
	for _, f := range prior.Files {
		priorByPath[f.Path] = f
	}

	var gitChanged map[string]bool
	if opts.SinceRev != "" {
		changed, err := GitChangedPaths(ctx, root, opts.SinceRev)
		if err != nil {
			ix.Logger.Warn("indexer.git_delta.fallback", "root", root, "since", opts.SinceRev, "err", err)
		} else {
			gitChanged = make(map[string]bool, len(changed))
			for _, p := range changed {
				gitChanged[p] = true
			}
		}
	}

	currentByPath := make(map[string]walker.Candidate, len(candidates))
	for _, c := range candidates {
		currentByPath[c.RelPath] = c
	}

	// Pass 1: metadata diff.
	var toHash []walker.Candidate
	reused := make(map[string]model.FileEntry)
	for _, c := range candidates {
		if gitChanged != nil && !gitChanged[c.RelPath] {
			// Outside the git-restricted delta: trust the prior entry outright.
			if pf, ok := priorByPath[c.RelPath]; ok {
				reused[c.RelPath] = pf
				continue
			}
		}
		pf, ok := priorByPath[c.RelPath]
		if ok && pf.Size == c.Size && pf.MtimeNs == c.MtimeNs {
			reused[c.RelPath] = pf
			continue
		}
		toHash = append(toHash, c)
	}

	var removed []string
	for path := range priorByPath {
		if _, ok := currentByPath[path]; !ok {
			removed = append(removed, path)
		}
	}
	sort.Strings(removed)

	hashed, err := ix.hashAndExtract(ctx, w, toHash, opts)
	if err != nil {
		return nil, model.Delta{}, nil, err
	}

	var modified []string
	hashedByPath := make(map[string]model.FileEntry, len(hashed))
	for _, e := range hashed {
		hashedByPath[e.Path] = e
		if prior, ok := priorByPath[e.Path]; !ok || prior.ContentHash != e.ContentHash {
			modified = append(modified, e.Path)
		}
	}

	// Pass 2: cascade invalidation over the import graph (spec §4.4).
	affected := make(map[string]bool)
	for _, path := range removed {
		affected[stemForPath(path)] = true
	}
	for _, path := range modified {
		affected[stemForPath(path)] = true
	}

	var touched []string
	for path, pf := range reused {
		if !importsIntersectStems(pf.Imports, affected) {
			continue
		}
		cand, ok := currentByPath[path]
		if !ok {
			continue
		}
		fresh, extractErr := ix.hashAndExtractOne(w, cand)
		if extractErr != nil {
			ix.Logger.Warn("indexer.cascade.extract_error", "path", path, "err", extractErr)
			continue
		}
		if !symbolsEqual(pf.Symbols, fresh.Symbols) {
			hashedByPath[path] = fresh
			modified = append(modified, path)
			delete(reused, path)
		} else {
			touched = append(touched, path)
			reused[path] = fresh // metadata refreshed, public surface unchanged
		}
	}
	sort.Strings(modified)
	sort.Strings(touched)

	// Assemble final file list: reused (possibly cascade-refreshed) + hashed, minus removed.
	var finalEntries []model.FileEntry
	for _, e := range reused {
		finalEntries = append(finalEntries, e)
	}
	for _, e := range hashedByPath {
		finalEntries = append(finalEntries, e)
	}
	sort.Slice(finalEntries, func(i, j int) bool { return finalEntries[i].Path < finalEntries[j].Path })

	var added []string
	for _, e := range hashedByPath {
		if _, wasPrior := priorByPath[e.Path]; !wasPrior {
			added = append(added, e.Path)
		}
	}
	sort.Strings(added)
	// added files were also counted as modified above (no prior entry to compare against); separate them out.
	modified = subtractSorted(modified, added)

	delta := model.Delta{Added: added, Modified: modified, Removed: removed, Unchanged: unchangedOf(finalEntries, added, modified, removed)}

	art := assembleArtifact(projectID, finalEntries)
	edges := buildImportEdges(projectID, finalEntries)
	return art, delta, edges, nil
}

func unchangedOf(entries []model.FileEntry, added, modified, removed []string) []string {
	changed := make(map[string]bool, len(added)+len(modified)+len(removed))
	for _, p := range added {
		changed[p] = true
	}
	for _, p := range modified {
		changed[p] = true
	}
	var out []string
	for _, e := range entries {
		if !changed[e.Path] {
			out = append(out, e.Path)
		}
	}
	sort.Strings(out)
	return out
}

func subtractSorted(a, b []string) []string {
	bs := make(map[string]bool, len(b))
	for _, x := range b {
		bs[x] = true
	}
	var out []string
	for _, x := range a {
		if !bs[x] {
			out = append(out, x)
		}
	}
	return out
}

// hashAndExtract computes content hashes and runs the Extractor over each
// candidate, bounded by Options.Concurrency (default runtime.NumCPU()),
// mirroring local_pipeline.go's parseFilesParallel worker-pool idiom via
// golang.org/x/sync/errgroup.
func (ix *Indexer) hashAndExtract(ctx context.Context, w *walker.Walker, candidates []walker.Candidate, opts Options) ([]model.FileEntry, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	n := opts.Concurrency
	if n <= 0 {
		n = runtime.NumCPU()
	}

	entries := make([]model.FileEntry, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n)

	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			entry, err := ix.hashAndExtractOne(w, c)
			if err != nil {
				ix.Logger.Warn("indexer.extract.error", "path", c.RelPath, "err", err)
				entry = model.FileEntry{Path: c.RelPath, Size: c.Size, MtimeNs: c.MtimeNs, Binary: true}
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("hash/extract project files: %w", err)
	}
	return entries, nil
}

func (ix *Indexer) hashAndExtractOne(w *walker.Walker, c walker.Candidate) (model.FileEntry, error) {
	hr, err := w.HashFile(c.FullPath, c.Size)
	if err != nil {
		return model.FileEntry{}, err
	}
	entry := model.FileEntry{
		Path:        c.RelPath,
		Size:        c.Size,
		MtimeNs:     c.MtimeNs,
		ContentHash: hr.Hash,
		Binary:      hr.Binary,
	}
	if hr.Binary {
		entry.Language = "binary"
		return entry, nil
	}

	// Re-read for extraction; HashFile already validated readability/size.
	content, readErr := readFileBytes(c.FullPath)
	if readErr != nil {
		entry.Binary = true
		return entry, nil
	}
	res := ix.Extractor.Extract(c.RelPath, content)
	entry.Language = res.Language
	entry.Symbols = res.Symbols
	entry.Imports = res.Imports
	entry.Relations = res.Relations
	entry.TestKind = res.TestKind
	entry.TestSubjects = res.TestSubjects
	return entry, nil
}

func assembleArtifact(projectID uint64, entries []model.FileEntry) *model.Artifact {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	now := time.Now()
	return &model.Artifact{
		ProjectID:   projectID,
		ArtifactVer: model.ArtifactVersion,
		Files:       entries,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func buildImportEdges(projectID uint64, entries []model.FileEntry) []model.ImportEdge {
	var edges []model.ImportEdge
	for _, e := range entries {
		from := model.ImportEdgeFromID(projectID, e.Path)
		for _, imp := range e.Imports {
			edges = append(edges, model.ImportEdge{FromID: from, ToStem: imp})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].FromID != edges[j].FromID {
			return edges[i].FromID < edges[j].FromID
		}
		return edges[i].ToStem < edges[j].ToStem
	})
	return edges
}

// stemForPath derives the module stem a file is referenced by: its path
// without extension, with path separators normalized to dots (so a Python
// "from .models import X"-style import can intersect "models"-derived stems).
// Only this dotted stem is returned; matching on a bare basename is done on
// the import side, by importsIntersectStems.
func stemForPath(path string) string {
	trimmed := strings.TrimSuffix(path, filepath.Ext(path))
	return strings.ReplaceAll(trimmed, "/", ".")
}

// importsIntersectStems reports whether any import references a changed
// file's stem, directly or by basename (spec §4.4 Pass 2 "cascade").
func importsIntersectStems(imports []string, stems map[string]bool) bool {
	for _, imp := range imports {
		norm := strings.TrimPrefix(imp, ".")
		if stems[norm] {
			return true
		}
		if i := strings.LastIndex(norm, "."); i >= 0 && stems[norm[i+1:]] {
			return true
		}
		if i := strings.LastIndex(norm, "/"); i >= 0 && stems[norm[i+1:]] {
			return true
		}
	}
	return false
}

func readFileBytes(path string) ([]byte, error) {
	return os.ReadFile(path) //nolint:gosec // path originates from a Walk of the project root
}

func symbolsEqual(a, b []model.Symbol) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Kind != b[i].Kind || a[i].SignaturePreview != b[i].SignaturePreview {
			return false
		}
	}
	return true
}
