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

// Package extractor produces public symbols, imports, and type relations
// from a file's bytes given a detected language tag. It is polymorphic over
// {detect_language, extract_symbols, extract_imports, extract_type_relations},
// with a regex-default tier per language, an optional Tree-sitter tier for
// Go, and a null extractor for unsupported languages. Grounded on the
// teacher's pkg/ingestion.Parser dispatch and its per-language parser files.
package extractor

import (
	"path/filepath"
	"strings"

	"github.com/heAdz0r/rtk-sub001/internal/model"
)

// MaxSymbolsPerFile bounds memory per spec §4.3; callers may override via SetMaxSymbolsPerFile.
const MaxSymbolsPerFile = 128

// Result is everything an Extractor produces for one file.
type Result struct {
	Language     string
	Symbols      []model.Symbol
	Imports      []string
	Relations    []model.TypeRelation
	TestKind     string   // unit|integration|e2e, empty for a non-test file
	TestSubjects []string // files this test exercises, by naming convention
}

// Extractor is the polymorphic capability set every language variant implements.
type Extractor interface {
	// DetectLanguage reports whether this extractor claims the given path.
	DetectLanguage(path string) bool
	// Extract runs all four capabilities over content in one pass.
	Extract(path string, content []byte) Result
}

// Registry dispatches a file to the first Extractor that claims it, falling
// back to the null extractor for unsupported languages (spec §4.3).
type Registry struct {
	variants        []Extractor
	maxSymbolsPerFile int
}

// NewRegistry builds the default registry: one regex-default Extractor per
// required language tag, dispatched in this order: go, then
// javascript/typescript-as-one, then python, then java.
func NewRegistry() *Registry {
	return &Registry{
		variants: []Extractor{
			newGoExtractor(),
			newTypeScriptExtractor(),
			newPythonExtractor(),
			newJavaExtractor(),
		},
		maxSymbolsPerFile: MaxSymbolsPerFile,
	}
}

// WithTreeSitter layers a stronger Tree-sitter-backed tier in front of the
// regex tier for languages it supports (currently Go only, grounded on
// parser_treesitter.go/parser_go.go's Tree-sitter path). Optional — the
// caller only wires this in when go-tree-sitter grammars are available.
func (r *Registry) WithTreeSitter(ts Extractor) *Registry {
	r.variants = append([]Extractor{ts}, r.variants...)
	return r
}

// SetMaxSymbolsPerFile overrides the default cap (spec §4.3: "default 128").
func (r *Registry) SetMaxSymbolsPerFile(n int) {
	if n > 0 {
		r.maxSymbolsPerFile = n
	}
}

// DetectLanguage reports the first matching variant's language tag, or ""
// for unsupported languages (treated as a null-extractor, never an error).
func (r *Registry) DetectLanguage(path string) string {
	for _, v := range r.variants {
		if v.DetectLanguage(path) {
			res := v.Extract(path, nil)
			if res.Language != "" {
				return res.Language
			}
		}
	}
	return languageFromExtension(path)
}

// Extract dispatches path/content to the first claiming variant. Unsupported
// languages produce an empty Result with Language == "" (null-extractor).
func (r *Registry) Extract(path string, content []byte) Result {
	for _, v := range r.variants {
		if v.DetectLanguage(path) {
			res := v.Extract(path, content)
			if len(res.Symbols) > r.maxSymbolsPerFile {
				res.Symbols = res.Symbols[:r.maxSymbolsPerFile]
			}
			return res
		}
	}
	return Result{Language: languageFromExtension(path)}
}

// languageFromExtension is the null extractor's best-effort language tag,
// used for reporting only — it never yields symbols/imports/relations.
func languageFromExtension(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "markdown"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".sh", ".bash":
		return "shell"
	case ".sql":
		return "sql"
	default:
		return "unknown"
	}
}
