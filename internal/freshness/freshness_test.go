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

package freshness

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/heAdz0r/rtk-sub001/internal/model"
)

func boolPtr(b bool) *bool { return &b }

func writeTrackedFile(t *testing.T, root, rel, content string) model.FileEntry {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	info, err := os.Stat(full)
	require.NoError(t, err)
	return model.FileEntry{Path: rel, Size: info.Size(), MtimeNs: info.ModTime().UnixNano()}
}

func TestEvaluateFreshWhenNothingChanged(t *testing.T) {
	root := t.TempDir()
	entry := writeTrackedFile(t, root, "main.go", "package main\n")
	art := &model.Artifact{Files: []model.FileEntry{entry}}

	g := New(DefaultTTL)
	d, err := g.Evaluate(context.Background(), root, art, time.Now(), model.ArtifactVersion, Options{})
	require.NoError(t, err)
	require.Equal(t, model.Fresh, d.State)
	require.Equal(t, RebuildNone, d.Rebuild)
}

func TestEvaluateDirtyOnVersionMismatch(t *testing.T) {
	root := t.TempDir()
	art := &model.Artifact{}

	g := New(DefaultTTL)
	d, err := g.Evaluate(context.Background(), root, art, time.Now(), model.ArtifactVersion-1, Options{})
	require.NoError(t, err)
	require.Equal(t, model.Dirty, d.State)
	require.Equal(t, RebuildCold, d.Rebuild)
}

func TestEvaluateStaleOnTTLExpiry(t *testing.T) {
	root := t.TempDir()
	entry := writeTrackedFile(t, root, "main.go", "package main\n")
	art := &model.Artifact{Files: []model.FileEntry{entry}}

	g := New(time.Millisecond)
	d, err := g.Evaluate(context.Background(), root, art, time.Now().Add(-time.Hour), model.ArtifactVersion, Options{})
	require.NoError(t, err)
	require.Equal(t, model.Stale, d.State)
	require.Equal(t, RebuildIncremental, d.Rebuild)
}

func TestEvaluateDirtyOnDiskMismatch(t *testing.T) {
	root := t.TempDir()
	entry := writeTrackedFile(t, root, "main.go", "package main\n")
	entry.Size += 1 // simulate the file having grown on disk since indexing
	art := &model.Artifact{Files: []model.FileEntry{entry}}

	g := New(DefaultTTL)
	d, err := g.Evaluate(context.Background(), root, art, time.Now(), model.ArtifactVersion, Options{})
	require.NoError(t, err)
	require.Equal(t, model.Dirty, d.State)
	require.Equal(t, RebuildIncremental, d.Rebuild)
}

func TestEvaluateDirtyWhenTrackedFileRemoved(t *testing.T) {
	root := t.TempDir()
	art := &model.Artifact{Files: []model.FileEntry{{Path: "gone.go", Size: 10, MtimeNs: 1}}}

	g := New(DefaultTTL)
	d, err := g.Evaluate(context.Background(), root, art, time.Now(), model.ArtifactVersion, Options{})
	require.NoError(t, err)
	require.Equal(t, model.Dirty, d.State)
}

func TestEvaluateStrictModeReturnsErrorInsteadOfRebuilding(t *testing.T) {
	root := t.TempDir()
	entry := writeTrackedFile(t, root, "main.go", "package main\n")
	art := &model.Artifact{Files: []model.FileEntry{entry}}

	g := New(time.Millisecond)
	_, err := g.Evaluate(context.Background(), root, art, time.Now().Add(-time.Hour), model.ArtifactVersion, Options{StrictByDefault: true})
	require.Error(t, err)
	var strictErr *StrictnessError
	require.ErrorAs(t, err, &strictErr)
	require.Equal(t, model.Stale, strictErr.State)
}

func TestEvaluatePerCallStrictOverridesFeatureFlag(t *testing.T) {
	root := t.TempDir()
	entry := writeTrackedFile(t, root, "main.go", "package main\n")
	art := &model.Artifact{Files: []model.FileEntry{entry}}

	g := New(time.Millisecond)

	// Feature flag says strict, but the per-call override explicitly disables it.
	d, err := g.Evaluate(context.Background(), root, art, time.Now().Add(-time.Hour), model.ArtifactVersion,
		Options{StrictByDefault: true, StrictOverride: boolPtr(false)})
	require.NoError(t, err)
	require.Equal(t, model.Stale, d.State)

	// Feature flag says lenient, but the per-call override forces strict.
	_, err = g.Evaluate(context.Background(), root, art, time.Now().Add(-time.Hour), model.ArtifactVersion,
		Options{StrictByDefault: false, StrictOverride: boolPtr(true)})
	require.Error(t, err)
}

func TestEvaluateFreshNeverErrorsEvenUnderStrict(t *testing.T) {
	root := t.TempDir()
	entry := writeTrackedFile(t, root, "main.go", "package main\n")
	art := &model.Artifact{Files: []model.FileEntry{entry}}

	g := New(DefaultTTL)
	d, err := g.Evaluate(context.Background(), root, art, time.Now(), model.ArtifactVersion, Options{StrictByDefault: true})
	require.NoError(t, err)
	require.Equal(t, model.Fresh, d.State)
}
