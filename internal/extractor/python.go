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

// pythonExtractor is the regex-default tier for "dynamic scripting language
// with class and import syntax" (spec §4.3). Grounded on parser_python.go's
// indentation-aware def/class scan, reduced to line-anchored regexes since
// the regex-default tier (unlike Tree-sitter) does not track indentation.
type pythonExtractor struct {
	defPat       *regexp.Regexp
	classPat     *regexp.Regexp
	importPat    *regexp.Regexp
	fromImportPat *regexp.Regexp
}

func newPythonExtractor() *pythonExtractor {
	return &pythonExtractor{
		defPat:        regexp.MustCompile(`(?m)^([ \t]*)def\s+([A-Za-z_][A-Za-z0-9_]*)\s*(\([^)]*\))\s*(->\s*[^:]+)?:`),
		classPat:      regexp.MustCompile(`(?m)^class\s+([A-Za-z_][A-Za-z0-9_]*)\s*(\([^)]*\))?\s*:`),
		importPat:     regexp.MustCompile(`(?m)^import\s+([A-Za-z_][A-Za-z0-9_.]*)`),
		fromImportPat: regexp.MustCompile(`(?m)^from\s+([A-Za-z_.][A-Za-z0-9_.]*)\s+import\s+`),
	}
}

func (py *pythonExtractor) DetectLanguage(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".py")
}

func (py *pythonExtractor) Extract(path string, content []byte) Result {
	res := Result{Language: "python"}
	if content == nil {
		return res
	}
	clean := stripPythonCommentsAndStrings(string(content))

	for _, m := range py.importPat.FindAllStringSubmatch(clean, -1) {
		res.Imports = append(res.Imports, m[1])
	}
	for _, m := range py.fromImportPat.FindAllStringSubmatch(clean, -1) {
		res.Imports = append(res.Imports, m[1])
	}

	var classRanges []struct {
		name       string
		start, end int
	}
	for _, m := range py.classPat.FindAllStringSubmatchIndex(clean, -1) {
		name := group(clean, m, 1)
		bases := group(clean, m, 2)
		res.Symbols = append(res.Symbols, model.Symbol{Name: name, Kind: model.SymbolType, Line: lineOf(clean, m[0])})

		end := pythonBlockEnd(clean, m[0])
		classRanges = append(classRanges, struct {
			name       string
			start, end int
		}{name, m[0], end})

		bases = strings.Trim(bases, "()")
		for _, base := range strings.Split(bases, ",") {
			base = strings.TrimSpace(base)
			if base == "" || base == "object" {
				continue
			}
			res.Relations = append(res.Relations, model.TypeRelation{
				SourceType: name, Kind: model.RelationExtends, TargetType: base, SourceFile: path,
			})
		}
	}

	for _, m := range py.defPat.FindAllStringSubmatchIndex(clean, -1) {
		indent := group(clean, m, 1)
		name := group(clean, m, 2)
		params := group(clean, m, 3)
		ret := strings.TrimSpace(group(clean, m, 4))

		if strings.HasPrefix(name, "_") {
			continue // spec §4.3: public symbols only
		}

		sig := "def " + name + params
		if ret != "" {
			sig += " " + ret
		}

		kind := model.SymbolFunction
		displayName := name
		if indent != "" {
			// Indented def: a method, if within a class range.
			for _, cr := range classRanges {
				if m[0] > cr.start && m[0] < cr.end {
					kind = model.SymbolMethod
					displayName = cr.name + "." + name
					break
				}
			}
		}

		res.Symbols = append(res.Symbols, model.Symbol{
			Name:             displayName,
			Kind:             kind,
			SignaturePreview: firstLine(sig),
			Line:             lineOf(clean, m[0]),
		})
	}

	res.TestKind, res.TestSubjects = classifyPythonTest(path)
	return res
}

// classifyPythonTest recognizes pytest's two naming conventions
// (test_foo.py and foo_test.py) and derives the subject by reversing
// whichever one matched, returning ("", nil) for a non-test file.
func classifyPythonTest(path string) (string, []string) {
	base := baseOf(path)
	lower := strings.ToLower(base)
	dir := dirOf(path)

	var subject string
	switch {
	case strings.HasPrefix(lower, "test_"):
		subject = base[len("test_"):]
	case strings.HasSuffix(lower, "_test.py"):
		subject = strings.TrimSuffix(base, "_test.py") + ".py"
	default:
		return "", nil
	}
	return classifyTestKind(strings.ToLower(path)), []string{dir + subject}
}

// pythonBlockEnd returns the byte offset where the indented block starting
// at a "class Foo:" header (byte offset headerStart) ends, using the
// standard Python convention that a lower-or-equal indentation line at
// column 0 (a top-level statement) closes the block.
func pythonBlockEnd(src string, headerStart int) int {
	lines := strings.Split(src[headerStart:], "\n")
	offset := headerStart + len(lines[0]) + 1
	for _, line := range lines[1:] {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed != "" && len(trimmed) == len(line) {
			// Column-0, non-blank line: back to top level.
			return offset
		}
		offset += len(line) + 1
	}
	return len(src)
}
