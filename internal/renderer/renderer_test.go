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

package renderer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/heAdz0r/rtk-sub001/internal/model"
)

func sampleArtifact() *model.Artifact {
	return &model.Artifact{
		EntryPoints: []string{"cmd/app/main.go"},
		Files: []model.FileEntry{
			{
				Path: "pkg/widgets/button.go", ContentHash: 0xdeadbeef, Language: "go",
				Symbols: []model.Symbol{
					{Name: "Button", Kind: model.SymbolType, SignaturePreview: "type Button struct"},
					{Name: "New", Kind: model.SymbolFunction, SignaturePreview: "func New(label string) *Button"},
				},
				Relations: []model.TypeRelation{
					{SourceType: "Button", Kind: model.RelationImplements, TargetType: "Widget", SourceFile: "pkg/widgets/button.go"},
				},
			},
			{
				Path: "pkg/widgets/button_test.go", ContentHash: 0x1, Language: "go",
				TestKind: "unit", TestSubjects: []string{"pkg/widgets/button.go"},
			},
		},
		DepManifest: []model.DepEntry{{Name: "github.com/example/dep", Version: "v1.0.0", Role: "direct"}},
	}
}

func TestRenderGeneralQueryLayers(t *testing.T) {
	r := New()
	ctx := r.Render(sampleArtifact(), nil, nil, Options{QueryType: QueryGeneral, Detail: DetailCompact, Flags: FeatureFlags{TestMap: true}})

	require.ElementsMatch(t, []Layer{LayerProjectMap, LayerModuleIndex, LayerAPISurface, LayerTestMap, LayerChangeDigest}, ctx.Layers)
	require.NotNil(t, ctx.ProjectMap)
	require.Nil(t, ctx.TypeGraph)
	require.Nil(t, ctx.DepManifest)
}

func TestRenderFeatureQueryIncludesTypeGraphOnlyWhenFlagged(t *testing.T) {
	r := New()
	art := sampleArtifact()

	withoutFlag := r.Render(art, nil, nil, Options{QueryType: QueryFeature, Detail: DetailCompact})
	require.Empty(t, withoutFlag.TypeGraph)
	require.Empty(t, withoutFlag.DepManifest)

	withFlag := r.Render(art, nil, nil, Options{
		QueryType: QueryFeature, Detail: DetailCompact,
		Flags: FeatureFlags{TypeGraph: true, DepManifest: true},
	})
	require.NotEmpty(t, withFlag.TypeGraph)
	require.Equal(t, "Button", withFlag.TypeGraph[0].SourceType)
	require.NotEmpty(t, withFlag.DepManifest)
}

func TestFeatureFlagsCannotAddLayersQueryTypeDidNotRequest(t *testing.T) {
	r := New()
	art := sampleArtifact()

	// bugfix's default set has no L4; DepManifest=true must not add it.
	ctx := r.Render(art, nil, nil, Options{
		QueryType: QueryBugfix, Detail: DetailCompact,
		Flags: FeatureFlags{DepManifest: true, TypeGraph: true, TestMap: true},
	})
	require.NotContains(t, ctx.Layers, LayerDepManifest)
	require.NotContains(t, ctx.Layers, LayerTypeGraph)
}

func TestRenderModuleIndexGroupsByDirectory(t *testing.T) {
	r := New()
	ctx := r.Render(sampleArtifact(), nil, nil, Options{QueryType: QueryRefactor, Detail: DetailCompact})

	require.Len(t, ctx.ModuleIndex, 1)
	require.Equal(t, "pkg/widgets", ctx.ModuleIndex[0].Module)
	require.ElementsMatch(t, []string{"Button", "New"}, ctx.ModuleIndex[0].Exports)
}

func TestRenderTestMapUsesExplicitKindAndHeuristicFallback(t *testing.T) {
	r := New()
	ctx := r.Render(sampleArtifact(), nil, nil, Options{
		QueryType: QueryGeneral, Detail: DetailCompact, Flags: FeatureFlags{TestMap: true},
	})

	require.Len(t, ctx.TestMap, 1)
	require.Equal(t, "unit", ctx.TestMap[0].Kind)
	require.Equal(t, []string{"pkg/widgets/button.go"}, ctx.TestMap[0].Subjects)
}

func TestRenderChangeDigestFromDelta(t *testing.T) {
	r := New()
	art := sampleArtifact()
	delta := &model.Delta{Added: []string{"pkg/widgets/button.go"}, Removed: []string{"pkg/widgets/old.go"}}

	ctx := r.Render(art, nil, delta, Options{QueryType: QueryGeneral, Detail: DetailCompact})
	require.Len(t, ctx.ChangeDigest, 2)

	var sawAdded, sawRemoved bool
	for _, c := range ctx.ChangeDigest {
		if c.Path == "pkg/widgets/button.go" {
			sawAdded = c.Change == model.FileAdded
			require.NotEmpty(t, c.HashPreview)
		}
		if c.Path == "pkg/widgets/old.go" {
			sawRemoved = c.Change == model.FileRemoved
			require.Empty(t, c.HashPreview)
		}
	}
	require.True(t, sawAdded)
	require.True(t, sawRemoved)
}

func TestRenderHotPathsRankedByInboundEdges(t *testing.T) {
	r := New()
	art := sampleArtifact()
	edges := []model.ImportEdge{
		{FromID: "1:a.go", ToStem: "pkg.widgets.button"},
		{FromID: "1:b.go", ToStem: "pkg.widgets.button"},
	}
	ctx := r.Render(art, edges, nil, Options{QueryType: QueryGeneral, Detail: DetailCompact})
	require.Contains(t, ctx.ProjectMap.HotPaths, "pkg/widgets/button.go")
}

func TestDetailLevelCapsSymbolsPerModule(t *testing.T) {
	art := &model.Artifact{Files: []model.FileEntry{{Path: "p/f.go"}}}
	for i := 0; i < 10; i++ {
		art.Files[0].Symbols = append(art.Files[0].Symbols, model.Symbol{Name: string(rune('A' + i)), Kind: model.SymbolFunction})
	}

	r := New()
	compact := r.Render(art, nil, nil, Options{QueryType: QueryRefactor, Detail: DetailCompact})
	require.Len(t, compact.ModuleIndex[0].Exports, 5)

	verbose := r.Render(art, nil, nil, Options{QueryType: QueryRefactor, Detail: DetailVerbose})
	require.Len(t, verbose.ModuleIndex[0].Exports, 10)
}

func TestRenderTextIsDeterministic(t *testing.T) {
	r := New()
	ctx := r.Render(sampleArtifact(), nil, nil, Options{QueryType: QueryGeneral, Detail: DetailCompact})
	first := RenderText(ctx)
	second := RenderText(ctx)
	require.Equal(t, first, second)
	require.Contains(t, first, "# Project Context")
}

func TestRenderJSONRoundTrips(t *testing.T) {
	r := New()
	ctx := r.Render(sampleArtifact(), nil, nil, Options{QueryType: QueryGeneral, Detail: DetailCompact})
	data, err := RenderJSON(ctx)
	require.NoError(t, err)
	require.Contains(t, string(data), "\"layers\"")
}
