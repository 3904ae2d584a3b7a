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

// Package freshness classifies a loaded Artifact as Fresh, Stale, or Dirty
// and directs the caller's rebuild policy (spec §4.5). Grounded on the
// teacher's storage/embedded.go project-metadata bookkeeping
// (GetProjectMeta/SetLastIndexedSHA), generalized here into a tri-state
// classifier instead of a single last-SHA comparison.
package freshness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/heAdz0r/rtk-sub001/internal/model"
)

// DefaultTTL mirrors store.DefaultTTL (spec §4.1/§4.5: "TTL default 24h").
const DefaultTTL = 24 * time.Hour

// RebuildKind is the action a Decision recommends to the caller.
type RebuildKind string

const (
	RebuildNone        RebuildKind = "none"
	RebuildCold        RebuildKind = "cold"
	RebuildIncremental RebuildKind = "incremental"
)

// Decision is the Freshness Gate's verdict for one loaded Artifact.
type Decision struct {
	State   model.Freshness
	Reason  string
	Rebuild RebuildKind
}

// StrictnessError is returned instead of a rebuild-directing Decision when
// strict mode is in effect and the artifact is Stale or Dirty (spec §4.5:
// "strict mode ... return a typed error instead of rebuilding").
type StrictnessError struct {
	State  model.Freshness
	Reason string
}

func (e *StrictnessError) Error() string {
	return fmt.Sprintf("freshness: %s under strict mode: %s", e.State, e.Reason)
}

// Options configures one Evaluate call.
type Options struct {
	// TTL overrides the gate's default TTL when non-zero.
	TTL time.Duration
	// StrictOverride is the per-call --strict flag; nil means "not specified"
	// so StrictByDefault applies. A non-nil value always wins (DESIGN.md
	// Open Question decision #1: the more specific per-call signal wins in
	// either direction).
	StrictOverride *bool
	// StrictByDefault mirrors the `strict_by_default` feature flag.
	StrictByDefault bool
}

func (o Options) resolveStrict() bool {
	if o.StrictOverride != nil {
		return *o.StrictOverride
	}
	return o.StrictByDefault
}

// Gate evaluates loaded Artifacts against disk state and TTL.
type Gate struct {
	TTL time.Duration
}

// New builds a Gate with the given default TTL (0 selects DefaultTTL).
func New(ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Gate{TTL: ttl}
}

// Evaluate classifies a loaded artifact per the state table in spec §4.5:
// version mismatch -> Dirty (cold rebuild); TTL expiry -> Stale (rebuild
// before serving, or error under strict); any tracked file's (size, mtime)
// differing from disk -> Dirty (incremental rebuild); otherwise Fresh.
func (g *Gate) Evaluate(ctx context.Context, root string, art *model.Artifact, updatedAt time.Time, version int, opts Options) (Decision, error) {
	ttl := g.TTL
	if opts.TTL > 0 {
		ttl = opts.TTL
	}

	decision := g.classify(ctx, root, art, updatedAt, version, ttl)

	if opts.resolveStrict() && decision.State != model.Fresh {
		return decision, &StrictnessError{State: decision.State, Reason: decision.Reason}
	}
	return decision, nil
}

func (g *Gate) classify(ctx context.Context, root string, art *model.Artifact, updatedAt time.Time, version int, ttl time.Duration) Decision {
	if version != model.ArtifactVersion {
		return Decision{State: model.Dirty, Reason: "artifact_version mismatch", Rebuild: RebuildCold}
	}

	if age := time.Since(updatedAt); age > ttl {
		return Decision{
			State:   model.Stale,
			Reason:  fmt.Sprintf("artifact age %s exceeds ttl %s", age.Round(time.Second), ttl),
			Rebuild: RebuildIncremental,
		}
	}

	if mismatch, reason := diskMismatch(ctx, root, art.Files); mismatch {
		return Decision{State: model.Dirty, Reason: reason, Rebuild: RebuildIncremental}
	}

	return Decision{State: model.Fresh, Reason: "", Rebuild: RebuildNone}
}

// diskMismatch reports the first FileEntry whose (size, mtime) disagrees
// with the file currently on disk, including files that have disappeared.
func diskMismatch(ctx context.Context, root string, files []model.FileEntry) (bool, string) {
	for _, f := range files {
		select {
		case <-ctx.Done():
			return true, "freshness check canceled"
		default:
		}

		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(f.Path)))
		if err != nil {
			return true, fmt.Sprintf("%s: no longer present on disk", f.Path)
		}
		if info.Size() != f.Size || info.ModTime().UnixNano() != f.MtimeNs {
			return true, fmt.Sprintf("%s: (size, mtime) differs from disk", f.Path)
		}
	}
	return false, ""
}
