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

// goExtractor is the regex-default tier for Go: "system language with
// braces and generics" (spec §4.3). Grounded on parser_go.go's simplified
// pattern-matching path (parseGoFile/extractGoFunctionSignature).
type goExtractor struct {
	funcPattern      *regexp.Regexp
	typePattern      *regexp.Regexp
	ifaceMethodPat   *regexp.Regexp
	importSinglePat  *regexp.Regexp
	importBlockLine  *regexp.Regexp
}

func newGoExtractor() *goExtractor {
	return &goExtractor{
		funcPattern:     regexp.MustCompile(`(?m)^func\s+(?:\(\s*\S+\s+\*?([A-Z][A-Za-z0-9_]*)(?:\[[^\]]*\])?\s*\)\s+)?([A-Z][A-Za-z0-9_]*)(\[[^\]]*\])?(\([^)]*\))\s*([^{]*)\{`),
		typePattern:     regexp.MustCompile(`(?m)^type\s+([A-Z][A-Za-z0-9_]*)\s+(struct|interface)\s*\{`),
		ifaceMethodPat:  regexp.MustCompile(`(?m)^\s*([A-Z][A-Za-z0-9_]*)\s*\(`),
		importSinglePat: regexp.MustCompile(`(?m)^import\s+(?:[A-Za-z_][A-Za-z0-9_]*\s+)?"([^"]+)"`),
		importBlockLine: regexp.MustCompile(`(?m)^\s*(?:[A-Za-z_][A-Za-z0-9_]*\s+)?"([^"]+)"`),
	}
}

func (g *goExtractor) DetectLanguage(path string) bool {
	return strings.HasSuffix(path, ".go")
}

func (g *goExtractor) Extract(path string, content []byte) Result {
	res := Result{Language: "go"}
	if content == nil {
		return res
	}
	src := string(content)
	clean := stripCLikeCommentsAndStrings(src)

	// Import paths are string literals, which clean has blanked out.
	res.Imports = g.extractImports(src)

	var interfaces []model.TypeRelation
	typeKinds := map[string]string{}
	for _, m := range g.typePattern.FindAllStringSubmatchIndex(clean, -1) {
		name := clean[m[2]:m[3]]
		kind := clean[m[4]:m[5]]
		typeKinds[name] = kind
		symKind := model.SymbolType
		if kind == "interface" {
			symKind = model.SymbolInterface
		}
		res.Symbols = append(res.Symbols, model.Symbol{
			Name: name,
			Kind: symKind,
			Line: lineOf(clean, m[0]),
		})
	}

	methodsByType := map[string]map[string]bool{}
	for _, m := range g.funcPattern.FindAllStringSubmatchIndex(clean, -1) {
		receiver := group(clean, m, 2)
		name := group(clean, m, 3)
		typeParams := group(clean, m, 4)
		params := group(clean, m, 5)
		ret := strings.TrimSpace(group(clean, m, 6))

		var sig strings.Builder
		sig.WriteString("func ")
		if receiver != "" {
			sig.WriteString("(" + receiver + ") ")
		}
		sig.WriteString(name + typeParams + params)
		if ret != "" {
			sig.WriteString(" " + ret)
		}

		kind := model.SymbolFunction
		displayName := name
		if receiver != "" {
			kind = model.SymbolMethod
			displayName = receiver + "." + name
			if methodsByType[receiver] == nil {
				methodsByType[receiver] = map[string]bool{}
			}
			methodsByType[receiver][name] = true
		}

		res.Symbols = append(res.Symbols, model.Symbol{
			Name:             displayName,
			Kind:             kind,
			SignaturePreview: firstLine(sig.String()),
			Line:             lineOf(clean, m[0]),
		})
	}

	// implements relation: concrete type's method set is a superset of an
	// interface's method set, grounded on implements.go's BuildImplementsIndex.
	for name, kind := range typeKinds {
		if kind != "interface" {
			continue
		}
		required := g.interfaceMethods(clean, name)
		if len(required) == 0 {
			continue
		}
		for typeName, methods := range methodsByType {
			if typeKinds[typeName] == "interface" {
				continue
			}
			if hasAll(methods, required) {
				interfaces = append(interfaces, model.TypeRelation{
					SourceType: typeName,
					Kind:       model.RelationImplements,
					TargetType: name,
					SourceFile: path,
				})
			}
		}
	}
	res.Relations = interfaces

	if strings.HasSuffix(path, "_test.go") {
		res.TestKind, res.TestSubjects = classifyGoTest(path)
	}
	return res
}

// classifyGoTest applies the `foo_test.go` -> `foo.go` subject convention
// (spec §3 L5 test map), with an `_integration`/`_e2e` stem suffix refining
// the kind beyond the default unit classification.
func classifyGoTest(path string) (string, []string) {
	stem := strings.TrimSuffix(path, "_test.go")
	kind := classifyTestKind(strings.ToLower(path))
	for _, marker := range []string{"_integration", "_e2e"} {
		stem = strings.TrimSuffix(stem, marker)
	}
	return kind, []string{stem + ".go"}
}

func (g *goExtractor) extractImports(src string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, m := range g.importSinglePat.FindAllStringSubmatch(src, -1) {
		add(m[1])
	}
	// import ( ... ) blocks
	blockStart := strings.Index(src, "import (")
	if blockStart == -1 {
		blockStart = strings.Index(src, "import(")
	}
	if blockStart >= 0 {
		rest := src[blockStart:]
		if end := strings.Index(rest, ")"); end >= 0 {
			body := rest[:end]
			for _, m := range g.importBlockLine.FindAllStringSubmatch(body, -1) {
				add(m[1])
			}
		}
	}
	return out
}

func (g *goExtractor) interfaceMethods(clean, name string) []string {
	idx := strings.Index(clean, "type "+name+" interface")
	if idx == -1 {
		return nil
	}
	open := strings.Index(clean[idx:], "{")
	if open == -1 {
		return nil
	}
	start := idx + open + 1
	depth := 1
	end := start
	for end < len(clean) && depth > 0 {
		switch clean[end] {
		case '{':
			depth++
		case '}':
			depth--
		}
		end++
	}
	body := clean[start:end]
	var methods []string
	for _, m := range g.ifaceMethodPat.FindAllStringSubmatch(body, -1) {
		methods = append(methods, m[1])
	}
	return methods
}

func group(s string, m []int, idx int) string {
	lo, hi := m[idx*2], m[idx*2+1]
	if lo < 0 || hi < 0 {
		return ""
	}
	return s[lo:hi]
}

func hasAll(have map[string]bool, want []string) bool {
	for _, w := range want {
		if !have[w] {
			return false
		}
	}
	return true
}
