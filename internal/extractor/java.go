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

// javaExtractor is the regex-default tier for "compiled managed language
// with package syntax" (spec §4.3). Grounded on the teacher's C-family
// pattern-matching approach in parser_go.go/parser_javascript.go, adapted
// to Java's package/import/class/interface grammar.
type javaExtractor struct {
	packagePat    *regexp.Regexp
	importPat     *regexp.Regexp
	classPat      *regexp.Regexp
	ifacePat      *regexp.Regexp
	methodPat     *regexp.Regexp
	extendsPat    *regexp.Regexp
	implementsPat *regexp.Regexp
}

func newJavaExtractor() *javaExtractor {
	return &javaExtractor{
		packagePat: regexp.MustCompile(`(?m)^package\s+([A-Za-z_][A-Za-z0-9_.]*)\s*;`),
		importPat:  regexp.MustCompile(`(?m)^import\s+(?:static\s+)?([A-Za-z_][A-Za-z0-9_.*]*)\s*;`),
		classPat:   regexp.MustCompile(`(?m)^\s*public\s+(?:final\s+|abstract\s+)?class\s+([A-Za-z_][A-Za-z0-9_]*)`),
		ifacePat:   regexp.MustCompile(`(?m)^\s*public\s+interface\s+([A-Za-z_][A-Za-z0-9_]*)`),
		methodPat:  regexp.MustCompile(`(?m)^\s*public\s+(?:static\s+|final\s+)*(?:[A-Za-z_][A-Za-z0-9_<>\[\],. ]*\s+)([A-Za-z_][A-Za-z0-9_]*)\s*(\([^)]*\))\s*(?:throws\s+[A-Za-z0-9_,.\s]+)?\{`),
		extendsPat: regexp.MustCompile(`\bextends\s+([A-Za-z_][A-Za-z0-9_.]*)`),
		implementsPat: regexp.MustCompile(`\bimplements\s+([A-Za-z_][A-Za-z0-9_.,\s]*?)\s*\{`),
	}
}

func (j *javaExtractor) DetectLanguage(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".java")
}

func (j *javaExtractor) Extract(path string, content []byte) Result {
	res := Result{Language: "java"}
	if content == nil {
		return res
	}
	clean := stripCLikeCommentsAndStrings(string(content))

	for _, m := range j.importPat.FindAllStringSubmatch(clean, -1) {
		res.Imports = append(res.Imports, m[1])
	}

	var classNames []string
	for _, m := range j.classPat.FindAllStringSubmatchIndex(clean, -1) {
		name := group(clean, m, 1)
		classNames = append(classNames, name)
		res.Symbols = append(res.Symbols, model.Symbol{Name: name, Kind: model.SymbolType, Line: lineOf(clean, m[0])})

		headerEnd := findBlockEnd(clean, m[1])
		header := clean[m[0]:min(headerEnd, m[0]+400)]
		if em := j.extendsPat.FindStringSubmatch(header); em != nil {
			res.Relations = append(res.Relations, model.TypeRelation{
				SourceType: name, Kind: model.RelationExtends, TargetType: em[1], SourceFile: path,
			})
		}
		if im := j.implementsPat.FindStringSubmatch(header); im != nil {
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

	for _, m := range j.ifacePat.FindAllStringSubmatchIndex(clean, -1) {
		name := group(clean, m, 1)
		res.Symbols = append(res.Symbols, model.Symbol{Name: name, Kind: model.SymbolInterface, Line: lineOf(clean, m[0])})
	}

	for _, m := range j.methodPat.FindAllStringSubmatchIndex(clean, -1) {
		name := group(clean, m, 1)
		params := group(clean, m, 2)
		res.Symbols = append(res.Symbols, model.Symbol{
			Name:             name,
			Kind:             model.SymbolMethod,
			SignaturePreview: firstLine("public " + name + params),
			Line:             lineOf(clean, m[0]),
		})
	}

	res.TestKind, res.TestSubjects = classifyJavaTest(path, clean, classNames)
	return res
}

// classifyJavaTest recognizes JUnit's `@Test` annotation and the
// Test*/​*Test/*IT class-name conventions (the latter is Maven Failsafe's
// marker for integration tests), deriving each subject by stripping the
// Test prefix/suffix from its class name.
func classifyJavaTest(path, clean string, classNames []string) (string, []string) {
	base := baseOf(path)
	hasAnnotation := strings.Contains(clean, "@Test")
	isNamedTest := strings.HasPrefix(base, "Test") || strings.HasSuffix(strings.TrimSuffix(base, ".java"), "Test")
	isIntegrationTest := strings.HasSuffix(strings.TrimSuffix(base, ".java"), "IT")
	if !hasAnnotation && !isNamedTest && !isIntegrationTest {
		return "", nil
	}

	kind := classifyTestKind(strings.ToLower(path))
	if isIntegrationTest {
		kind = "integration"
	}

	dir := dirOf(path)
	var subjects []string
	for _, name := range classNames {
		subject := javaSubjectFromClass(name)
		if subject != "" {
			subjects = append(subjects, dir+subject+".java")
		}
	}
	return kind, subjects
}

// javaSubjectFromClass strips a Test prefix or suffix from a class name,
// returning "" when the name carries neither marker.
func javaSubjectFromClass(name string) string {
	switch {
	case strings.HasPrefix(name, "Test") && len(name) > len("Test"):
		return name[len("Test"):]
	case strings.HasSuffix(name, "Test") && len(name) > len("Test"):
		return name[:len(name)-len("Test")]
	case strings.HasSuffix(name, "IT") && len(name) > len("IT"):
		return name[:len(name)-len("IT")]
	default:
		return ""
	}
}
