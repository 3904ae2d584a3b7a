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

package extractor

import (
	"regexp"
	"strings"

	"github.com/heAdz0r/rtk-sub001/internal/model"
)

// typeScriptExtractor is the regex-default tier for "strongly-typed
// scripting language with class syntax" (spec §4.3). Grounded on
// parser_javascript.go's function/class walk, generalized to TypeScript's
// exported-declaration and interface/type-alias syntax.
type typeScriptExtractor struct {
	exportFuncPat  *regexp.Regexp
	exportClassPat *regexp.Regexp
	exportIfacePat *regexp.Regexp
	typeAliasPat   *regexp.Regexp
	extendsPat     *regexp.Regexp
	implementsPat  *regexp.Regexp
	importPat      *regexp.Regexp
}

func newTypeScriptExtractor() *typeScriptExtractor {
	return &typeScriptExtractor{
		exportFuncPat:  regexp.MustCompile(`(?m)^export\s+(?:async\s+)?function\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*(\([^)]*\))\s*(:\s*[^{]+)?\{`),
		exportClassPat: regexp.MustCompile(`(?m)^export\s+(?:default\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)`),
		exportIfacePat: regexp.MustCompile(`(?m)^export\s+interface\s+([A-Za-z_$][A-Za-z0-9_$]*)`),
		typeAliasPat:   regexp.MustCompile(`(?m)^export\s+type\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*([A-Za-z_$][A-Za-z0-9_$.]*)`),
		extendsPat:     regexp.MustCompile(`\bextends\s+([A-Za-z_$][A-Za-z0-9_$.]*)`),
		implementsPat:  regexp.MustCompile(`\bimplements\s+([A-Za-z_$][A-Za-z0-9_$.,\s]*?)\s*\{`),
		importPat:      regexp.MustCompile(`(?m)^import\s+(?:[^'"]+\s+from\s+)?['"]([^'"]+)['"]`),
	}
}

func (t *typeScriptExtractor) DetectLanguage(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".ts") && !strings.HasSuffix(lower, ".d.ts")
}

func (t *typeScriptExtractor) Extract(path string, content []byte) Result {
	res := Result{Language: "typescript"}
	if content == nil {
		return res
	}
	src := string(content)
	clean := stripCLikeCommentsAndStrings(src)

	// Import specifiers are string literals, which clean has blanked out.
	for _, m := range t.importPat.FindAllStringSubmatch(src, -1) {
		res.Imports = append(res.Imports, m[1])
	}

	for _, m := range t.exportFuncPat.FindAllStringSubmatchIndex(clean, -1) {
		name := group(clean, m, 1)
		params := group(clean, m, 2)
		ret := strings.TrimSpace(group(clean, m, 3))
		sig := "function " + name + params
		if ret != "" {
			sig += " " + ret
		}
		res.Symbols = append(res.Symbols, model.Symbol{
			Name:             name,
			Kind:             model.SymbolFunction,
			SignaturePreview: firstLine(sig),
			Line:             lineOf(clean, m[0]),
		})
	}

	for _, m := range t.exportClassPat.FindAllStringSubmatchIndex(clean, -1) {
		name := group(clean, m, 1)
		res.Symbols = append(res.Symbols, model.Symbol{Name: name, Kind: model.SymbolType, Line: lineOf(clean, m[0])})

		classEnd := findBlockEnd(clean, m[1])
		header := clean[m[0]:min(classEnd, m[0]+400)]
		if em := t.extendsPat.FindStringSubmatch(header); em != nil {
			res.Relations = append(res.Relations, model.TypeRelation{
				SourceType: name, Kind: model.RelationExtends, TargetType: strings.TrimSpace(em[1]), SourceFile: path,
			})
		}
		if im := t.implementsPat.FindStringSubmatch(header); im != nil {
			for _, iface := range strings.Split(im[1], ",") {
				iface = strings.TrimSpace(iface)
				if iface == "" {
					continue
				}
				res.Relations = append(res.Relations, model.TypeRelation{
					SourceType: name, Kind: model.RelationImplements, TargetType: iface, SourceFile: path,
				})
			}
		}
	}

	for _, m := range t.exportIfacePat.FindAllStringSubmatchIndex(clean, -1) {
		name := group(clean, m, 1)
		res.Symbols = append(res.Symbols, model.Symbol{Name: name, Kind: model.SymbolInterface, Line: lineOf(clean, m[0])})
	}

	for _, m := range t.typeAliasPat.FindAllStringSubmatchIndex(clean, -1) {
		name := group(clean, m, 1)
		target := group(clean, m, 2)
		res.Symbols = append(res.Symbols, model.Symbol{Name: name, Kind: model.SymbolType, Line: lineOf(clean, m[0])})
		res.Relations = append(res.Relations, model.TypeRelation{SourceType: name, Kind: model.RelationAliasOf, TargetType: target, SourceFile: path})
	}

	res.TestKind, res.TestSubjects = classifyTSTest(path)
	return res
}

// classifyTSTest recognizes the `.test.ts`/`.spec.ts` naming convention
// (Jest/Vitest/Jasmine), deriving the subject by dropping the marker.
func classifyTSTest(path string) (string, []string) {
	lower := strings.ToLower(path)
	var stem string
	switch {
	case strings.HasSuffix(lower, ".test.ts"):
		stem = path[:len(path)-len(".test.ts")]
	case strings.HasSuffix(lower, ".spec.ts"):
		stem = path[:len(path)-len(".spec.ts")]
	default:
		return "", nil
	}
	return classifyTestKind(lower), []string{stem + ".ts"}
}

// findBlockEnd finds the matching "}" for the "{" nearest after from, or
// len(src) if none is found (used to bound a class header scan).
func findBlockEnd(src string, from int) int {
	idx := strings.IndexByte(src[from:], '{')
	if idx == -1 {
		return len(src)
	}
	start := from + idx
	depth := 0
	for i := start; i < len(src); i++ {
		switch src[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(src)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
