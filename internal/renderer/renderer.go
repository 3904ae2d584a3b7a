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

// Package renderer turns an Artifact (plus optional ImportEdge set and
// Delta) into the L0-L6 layered response spec §4.6 defines, conditioned on
// query type, detail level, and the AND-only feature-flag mask. Grounded on
// the teacher's pkg/tools/status.go and summary_integration_test.go markdown-
// building idiom for the text format, and pkg/tools/find_type.go's struct
// shape for the JSON format.
package renderer

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/heAdz0r/rtk-sub001/internal/model"
)

// Layer is one of the seven closed-set content layers (spec §4.6).
type Layer string

const (
	LayerProjectMap      Layer = "L0"
	LayerModuleIndex     Layer = "L1"
	LayerTypeGraph       Layer = "L2"
	LayerAPISurface      Layer = "L3"
	LayerDepManifest     Layer = "L4"
	LayerTestMap         Layer = "L5"
	LayerChangeDigest    Layer = "L6"
)

// QueryType is the closed set of query intents driving the default layer set.
type QueryType string

const (
	QueryGeneral  QueryType = "general"
	QueryBugfix   QueryType = "bugfix"
	QueryFeature  QueryType = "feature"
	QueryRefactor QueryType = "refactor"
	QueryIncident QueryType = "incident"
)

// DefaultLayers is the query-type -> default-layer-set relevance mapping
// (spec §4.6 "Relevance mapping").
var DefaultLayers = map[QueryType][]Layer{
	QueryGeneral:  {LayerProjectMap, LayerModuleIndex, LayerAPISurface, LayerTestMap, LayerChangeDigest},
	QueryBugfix:   {LayerModuleIndex, LayerAPISurface, LayerTestMap, LayerChangeDigest},
	QueryFeature:  {LayerProjectMap, LayerModuleIndex, LayerTypeGraph, LayerAPISurface, LayerDepManifest},
	QueryRefactor: {LayerModuleIndex, LayerTypeGraph, LayerAPISurface, LayerTestMap},
	QueryIncident: {LayerAPISurface, LayerDepManifest, LayerChangeDigest},
}

// DetailLevel selects the per-layer caps (spec §4.6 "Detail level").
type DetailLevel string

const (
	DetailCompact DetailLevel = "compact"
	DetailNormal  DetailLevel = "normal"
	DetailVerbose DetailLevel = "verbose"
)

// FeatureFlags is the AND-only mask of the six spec §4.6/§6 flags. Only
// TypeGraph/TestMap/DepManifest gate Renderer layers. StrictByDefault is
// passed by the Engine to the Freshness Gate. CascadeInvalidation and
// GitDelta are carried so config can set all six from one struct, but no
// package reads them: the Indexer always cascades, and uses the git delta
// whenever a since-revision is given.
type FeatureFlags struct {
	TypeGraph           bool
	TestMap             bool
	DepManifest         bool
	CascadeInvalidation bool
	GitDelta            bool
	StrictByDefault     bool
}

// Options configures one Render call.
type Options struct {
	QueryType QueryType
	Detail    DetailLevel
	Flags     FeatureFlags
}

// caps bounds how much of each layer's content is included.
type caps struct {
	maxModules           int
	maxSymbolsPerModule  int
	maxEntryPoints       int
	maxHotPaths          int
	maxTestFiles         int
	includeDocPreviews   bool
	signaturePreviewClip int
}

func capsFor(level DetailLevel) caps {
	base := caps{
		maxModules: 20, maxSymbolsPerModule: 5, maxEntryPoints: 10,
		maxHotPaths: 10, maxTestFiles: 20, includeDocPreviews: false,
		signaturePreviewClip: 80,
	}
	switch level {
	case DetailNormal:
		base.maxModules *= 2
		base.maxSymbolsPerModule *= 2
		base.maxEntryPoints *= 2
		base.maxHotPaths *= 2
		base.maxTestFiles *= 2
		base.includeDocPreviews = true
		base.signaturePreviewClip = 160
	case DetailVerbose:
		base = caps{includeDocPreviews: true} // all int caps 0 == uncapped
	}
	return base
}

func capInt(n, cap int) int {
	if cap <= 0 || n <= cap {
		return n
	}
	return cap
}

func clipString(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// ProjectMap is L0's content.
type ProjectMap struct {
	EntryPoints []string `json:"entry_points"`
	HotPaths    []string `json:"hot_paths"`
	Tree        []string `json:"tree"`
}

// ModuleIndexEntry is one L1 row: a module (directory) and its exports.
type ModuleIndexEntry struct {
	Module  string   `json:"module"`
	Exports []string `json:"exports"`
}

// APISymbol is one L3 row.
type APISymbol struct {
	File       string         `json:"file"`
	Name       string         `json:"name"`
	Kind       model.SymbolKind `json:"kind"`
	Signature  string         `json:"signature"`
	DocPreview string         `json:"doc_preview,omitempty"`
}

// TestMapEntry is one L5 row.
type TestMapEntry struct {
	File     string   `json:"file"`
	Kind     string   `json:"kind"` // unit|integration|e2e|unknown
	Subjects []string `json:"subjects,omitempty"`
}

// ChangeDigestEntry is one L6 row.
type ChangeDigestEntry struct {
	Path        string                `json:"path"`
	Change      model.FileChangeKind  `json:"change"`
	HashPreview string                `json:"hash_preview,omitempty"`
}

// Context is the structured record Render produces; only the layers named
// in Layers are populated, matching the caller's relevance mapping and
// feature-flag mask (spec §4.6).
type Context struct {
	Layers       []Layer             `json:"layers"`
	ProjectMap   *ProjectMap         `json:"project_map,omitempty"`
	ModuleIndex  []ModuleIndexEntry  `json:"module_index,omitempty"`
	TypeGraph    []model.TypeRelation `json:"type_graph,omitempty"`
	APISurface   []APISymbol         `json:"api_surface,omitempty"`
	DepManifest  []model.DepEntry    `json:"dep_manifest,omitempty"`
	TestMap      []TestMapEntry      `json:"test_map,omitempty"`
	ChangeDigest []ChangeDigestEntry `json:"change_digest,omitempty"`
}

// Renderer assembles Contexts from Artifacts.
type Renderer struct{}

// New builds a Renderer. It is stateless; New exists for symmetry with the
// engine's other component constructors.
func New() *Renderer { return &Renderer{} }

// Render assembles the Context for art, gated by opts.QueryType's default
// layer set AND opts.Flags (AND-only: a flag can only drop a layer the
// query type already requested, never add one it didn't — spec §4.6).
// edges and delta are both optional (nil is valid) since L0's hot-path
// ranking and L6's change digest are the only layers that need them.
func (r *Renderer) Render(art *model.Artifact, edges []model.ImportEdge, delta *model.Delta, opts Options) *Context {
	layers := r.activeLayers(opts)
	c := capsFor(opts.Detail)

	ctx := &Context{Layers: layers}
	want := func(l Layer) bool {
		for _, x := range layers {
			if x == l {
				return true
			}
		}
		return false
	}

	if want(LayerProjectMap) {
		ctx.ProjectMap = renderProjectMap(art, edges, c)
	}
	if want(LayerModuleIndex) {
		ctx.ModuleIndex = renderModuleIndex(art, c)
	}
	if want(LayerTypeGraph) {
		ctx.TypeGraph = renderTypeGraph(art)
	}
	if want(LayerAPISurface) {
		ctx.APISurface = renderAPISurface(art, c)
	}
	if want(LayerDepManifest) {
		ctx.DepManifest = art.DepManifest
	}
	if want(LayerTestMap) {
		ctx.TestMap = renderTestMap(art, c)
	}
	if want(LayerChangeDigest) {
		ctx.ChangeDigest = renderChangeDigest(art, delta)
	}
	return ctx
}

// activeLayers applies the AND-only feature-flag mask on top of the default
// layer set for opts.QueryType.
func (r *Renderer) activeLayers(opts Options) []Layer {
	defaults, ok := DefaultLayers[opts.QueryType]
	if !ok {
		defaults = DefaultLayers[QueryGeneral]
	}
	var out []Layer
	for _, l := range defaults {
		switch l {
		case LayerTypeGraph:
			if !opts.Flags.TypeGraph {
				continue
			}
		case LayerTestMap:
			if !opts.Flags.TestMap {
				continue
			}
		case LayerDepManifest:
			if !opts.Flags.DepManifest {
				continue
			}
		}
		out = append(out, l)
	}
	return out
}

func renderProjectMap(art *model.Artifact, edges []model.ImportEdge, c caps) *ProjectMap {
	entryPoints := append([]string(nil), art.EntryPoints...)
	sort.Strings(entryPoints)
	entryPoints = entryPoints[:capInt(len(entryPoints), c.maxEntryPoints)]

	hotPaths := rankHotPaths(art, edges)
	hotPaths = hotPaths[:capInt(len(hotPaths), c.maxHotPaths)]

	tree := topLevelTree(art)

	return &ProjectMap{EntryPoints: entryPoints, HotPaths: hotPaths, Tree: tree}
}

// rankHotPaths orders files by inbound import-edge count (how many other
// files reference this file's stem), the Renderer's proxy for connectivity.
func rankHotPaths(art *model.Artifact, edges []model.ImportEdge) []string {
	inbound := make(map[string]int)
	for _, e := range edges {
		inbound[e.ToStem]++
	}

	type scored struct {
		path  string
		score int
	}
	var ranked []scored
	for _, f := range art.Files {
		stem := strings.ReplaceAll(strings.TrimSuffix(f.Path, path.Ext(f.Path)), "/", ".")
		if n := inbound[stem]; n > 0 {
			ranked = append(ranked, scored{f.Path, n})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].path < ranked[j].path
	})

	out := make([]string, len(ranked))
	for i, s := range ranked {
		out[i] = s.path
	}
	return out
}

func topLevelTree(art *model.Artifact) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range art.Files {
		top := f.Path
		if idx := strings.Index(f.Path, "/"); idx >= 0 {
			top = f.Path[:idx]
		}
		if !seen[top] {
			seen[top] = true
			out = append(out, top)
		}
	}
	sort.Strings(out)
	return out
}

func renderModuleIndex(art *model.Artifact, c caps) []ModuleIndexEntry {
	byModule := make(map[string]map[string]bool)
	var order []string
	for _, f := range art.Files {
		if f.Binary {
			continue
		}
		module := path.Dir(f.Path)
		if _, ok := byModule[module]; !ok {
			byModule[module] = make(map[string]bool)
			order = append(order, module)
		}
		for _, s := range f.Symbols {
			byModule[module][s.Name] = true
		}
	}
	sort.Strings(order)
	order = order[:capInt(len(order), c.maxModules)]

	out := make([]ModuleIndexEntry, 0, len(order))
	for _, module := range order {
		names := make([]string, 0, len(byModule[module]))
		for n := range byModule[module] {
			names = append(names, n)
		}
		sort.Strings(names)
		names = names[:capInt(len(names), c.maxSymbolsPerModule)]
		out = append(out, ModuleIndexEntry{Module: module, Exports: names})
	}
	return out
}

func renderTypeGraph(art *model.Artifact) []model.TypeRelation {
	var out []model.TypeRelation
	for _, f := range art.Files {
		out = append(out, f.Relations...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceFile != out[j].SourceFile {
			return out[i].SourceFile < out[j].SourceFile
		}
		return out[i].SourceType < out[j].SourceType
	})
	return out
}

func renderAPISurface(art *model.Artifact, c caps) []APISymbol {
	var out []APISymbol
	for _, f := range art.Files {
		for _, s := range f.Symbols {
			doc := ""
			if c.includeDocPreviews {
				doc = s.DocPreview
			}
			out = append(out, APISymbol{
				File:       f.Path,
				Name:       s.Name,
				Kind:       s.Kind,
				Signature:  clipString(s.SignaturePreview, c.signaturePreviewClip),
				DocPreview: doc,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func renderTestMap(art *model.Artifact, c caps) []TestMapEntry {
	var out []TestMapEntry
	for _, f := range art.Files {
		kind := f.TestKind
		if kind == "" {
			if !looksLikeTestFile(f.Path) {
				continue
			}
			kind = "unknown"
		}
		out = append(out, TestMapEntry{File: f.Path, Kind: kind, Subjects: f.TestSubjects})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out[:capInt(len(out), c.maxTestFiles)]
}

// looksLikeTestFile is a naming heuristic for files the Indexer/Extractor
// has not explicitly classified via FileEntry.TestKind.
func looksLikeTestFile(p string) bool {
	base := path.Base(p)
	switch {
	case strings.HasSuffix(base, "_test.go"):
		return true
	case strings.HasSuffix(base, ".test.ts") || strings.HasSuffix(base, ".spec.ts"):
		return true
	case strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py"):
		return true
	case strings.HasPrefix(base, "Test") && strings.HasSuffix(base, ".java"):
		return true
	default:
		return false
	}
}

func renderChangeDigest(art *model.Artifact, delta *model.Delta) []ChangeDigestEntry {
	if delta == nil {
		return nil
	}
	byPath := make(map[string]model.FileEntry, len(art.Files))
	for _, f := range art.Files {
		byPath[f.Path] = f
	}

	var out []ChangeDigestEntry
	add := func(paths []string, kind model.FileChangeKind) {
		for _, p := range paths {
			preview := ""
			if f, ok := byPath[p]; ok {
				preview = fmt.Sprintf("%016x", f.ContentHash)[:8]
			}
			out = append(out, ChangeDigestEntry{Path: p, Change: kind, HashPreview: preview})
		}
	}
	add(delta.Added, model.FileAdded)
	add(delta.Modified, model.FileModified)
	add(delta.Removed, model.FileRemoved)

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// RenderJSON encodes ctx deterministically (stable key order via struct
// field order, stable array order already guaranteed by Render's sorts).
func RenderJSON(ctx *Context) ([]byte, error) {
	return json.MarshalIndent(ctx, "", "  ")
}

// RenderText renders ctx as the engine's markdown-flavored text format,
// grounded on pkg/tools/status.go's header+section string-building idiom.
func RenderText(ctx *Context) string {
	var b strings.Builder
	b.WriteString("# Project Context\n\n")

	if ctx.ProjectMap != nil {
		b.WriteString("## Project Map (L0)\n")
		fmt.Fprintf(&b, "- **Entry points:** %s\n", joinOrNone(ctx.ProjectMap.EntryPoints))
		fmt.Fprintf(&b, "- **Hot paths:** %s\n", joinOrNone(ctx.ProjectMap.HotPaths))
		fmt.Fprintf(&b, "- **Tree:** %s\n\n", joinOrNone(ctx.ProjectMap.Tree))
	}

	if len(ctx.ModuleIndex) > 0 {
		b.WriteString("## Module Index (L1)\n")
		for _, m := range ctx.ModuleIndex {
			fmt.Fprintf(&b, "- `%s`: %s\n", m.Module, joinOrNone(m.Exports))
		}
		b.WriteString("\n")
	}

	if len(ctx.TypeGraph) > 0 {
		b.WriteString("## Type Graph (L2)\n")
		for _, r := range ctx.TypeGraph {
			fmt.Fprintf(&b, "- `%s` %s `%s` (%s)\n", r.SourceType, r.Kind, r.TargetType, r.SourceFile)
		}
		b.WriteString("\n")
	}

	if len(ctx.APISurface) > 0 {
		b.WriteString("## API Surface (L3)\n")
		for _, s := range ctx.APISurface {
			fmt.Fprintf(&b, "- `%s` (%s) `%s`\n", s.Name, s.File, s.Signature)
		}
		b.WriteString("\n")
	}

	if len(ctx.DepManifest) > 0 {
		b.WriteString("## Dependency Manifest (L4)\n")
		for _, d := range ctx.DepManifest {
			fmt.Fprintf(&b, "- %s@%s (%s)\n", d.Name, d.Version, d.Role)
		}
		b.WriteString("\n")
	}

	if len(ctx.TestMap) > 0 {
		b.WriteString("## Test Map (L5)\n")
		for _, t := range ctx.TestMap {
			fmt.Fprintf(&b, "- `%s` [%s] subjects: %s\n", t.File, t.Kind, joinOrNone(t.Subjects))
		}
		b.WriteString("\n")
	}

	if len(ctx.ChangeDigest) > 0 {
		b.WriteString("## Change Digest (L6)\n")
		for _, c := range ctx.ChangeDigest {
			fmt.Fprintf(&b, "- %s %s %s\n", c.Change, c.Path, c.HashPreview)
		}
	}

	return b.String()
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
