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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/heAdz0r/rtk-sub001/internal/model"
)

const goSample = `package widgets

import (
	"fmt"
	"strings"
)

type Widget interface {
	Render() string
}

type Button struct {
	Label string
}

// func FakeFunc() {} — a commented-out declaration that must not be extracted.

func (b *Button) Render() string {
	return "// not a render: " + b.Label
}

func New(label string) *Button {
	return &Button{Label: label}
}

func unexported() {
	fmt.Println(strings.ToUpper("hi"))
}
`

func TestGoExtractorSymbolsImportsRelations(t *testing.T) {
	reg := NewRegistry()
	res := reg.Extract("widgets/button.go", []byte(goSample))

	require.Equal(t, "go", res.Language)
	require.ElementsMatch(t, []string{"fmt", "strings"}, res.Imports)

	names := map[string]model.SymbolKind{}
	for _, s := range res.Symbols {
		names[s.Name] = s.Kind
	}
	require.Equal(t, model.SymbolInterface, names["Widget"])
	require.Equal(t, model.SymbolType, names["Button"])
	require.Equal(t, model.SymbolMethod, names["Button.Render"])
	require.Equal(t, model.SymbolFunction, names["New"])
	_, hasUnexported := names["unexported"]
	require.False(t, hasUnexported, "extractor reports public symbols only")

	require.Contains(t, res.Relations, model.TypeRelation{
		SourceType: "Button", Kind: model.RelationImplements, TargetType: "Widget", SourceFile: "widgets/button.go",
	})
}

func TestGoExtractorIgnoresCommentedOutDeclarations(t *testing.T) {
	reg := NewRegistry()
	res := reg.Extract("widgets/button.go", []byte(goSample))
	for _, s := range res.Symbols {
		require.NotEqual(t, "FakeFunc", s.Name)
	}
}

const tsSample = `import { Logger } from './logger'

export interface Shape {
  area(): number
}

export class Circle extends Base implements Shape {
  area(): number {
    return 3.14
  }
}

export type Id = string

export function describe(s: Shape): string {
  return 'shape'
}
`

func TestTypeScriptExtractor(t *testing.T) {
	reg := NewRegistry()
	res := reg.Extract("shapes/circle.ts", []byte(tsSample))

	require.Equal(t, "typescript", res.Language)
	require.Contains(t, res.Imports, "./logger")

	var sawExtends, sawImplements bool
	for _, r := range res.Relations {
		if r.Kind == model.RelationExtends && r.SourceType == "Circle" && r.TargetType == "Base" {
			sawExtends = true
		}
		if r.Kind == model.RelationImplements && r.SourceType == "Circle" && r.TargetType == "Shape" {
			sawImplements = true
		}
	}
	require.True(t, sawExtends)
	require.True(t, sawImplements)
}

const pySample = `import os
from collections import OrderedDict


class Base:
    pass


class Widget(Base):
    def render(self):
        return "hi"

    def _private(self):
        pass


def top_level(x):
    return x
`

func TestPythonExtractor(t *testing.T) {
	reg := NewRegistry()
	res := reg.Extract("widgets/widget.py", []byte(pySample))

	require.Equal(t, "python", res.Language)
	require.ElementsMatch(t, []string{"os", "collections"}, res.Imports)

	names := map[string]model.SymbolKind{}
	for _, s := range res.Symbols {
		names[s.Name] = s.Kind
	}
	require.Equal(t, model.SymbolType, names["Base"])
	require.Equal(t, model.SymbolType, names["Widget"])
	require.Equal(t, model.SymbolMethod, names["Widget.render"])
	require.Equal(t, model.SymbolFunction, names["top_level"])
	_, hasPrivate := names["Widget._private"]
	require.False(t, hasPrivate)

	require.Contains(t, res.Relations, model.TypeRelation{
		SourceType: "Widget", Kind: model.RelationExtends, TargetType: "Base", SourceFile: "widgets/widget.py",
	})
}

const javaSample = `package com.example.widgets;

import java.util.List;

public interface Shape {
}

public class Circle implements Shape {
    public double area() {
        return 3.14;
    }
}
`

func TestJavaExtractor(t *testing.T) {
	reg := NewRegistry()
	res := reg.Extract("com/example/widgets/Circle.java", []byte(javaSample))

	require.Equal(t, "java", res.Language)
	require.Contains(t, res.Imports, "java.util.List")

	var sawIface, sawImplements bool
	for _, s := range res.Symbols {
		if s.Name == "Shape" && s.Kind == model.SymbolInterface {
			sawIface = true
		}
	}
	for _, r := range res.Relations {
		if r.Kind == model.RelationImplements && r.SourceType == "Circle" && r.TargetType == "Shape" {
			sawImplements = true
		}
	}
	require.True(t, sawIface)
	require.True(t, sawImplements)
}

func TestRegistryNullExtractorForUnsupportedLanguage(t *testing.T) {
	reg := NewRegistry()
	res := reg.Extract("README.md", []byte("# hello"))
	require.Equal(t, "markdown", res.Language)
	require.Empty(t, res.Symbols)
	require.Empty(t, res.Imports)
	require.Empty(t, res.Relations)
}

func TestGoExtractorClassifiesTestFile(t *testing.T) {
	reg := NewRegistry()
	src := "package widgets\n\nimport \"testing\"\n\nfunc TestRender(t *testing.T) {}\n"
	res := reg.Extract("widgets/button_test.go", []byte(src))

	require.Equal(t, "go", res.Language)
	require.Equal(t, "unit", res.TestKind)
	require.Equal(t, []string{"widgets/button.go"}, res.TestSubjects)

	integration := reg.Extract("widgets/button_integration_test.go", []byte(src))
	require.Equal(t, "integration", integration.TestKind)
	require.Equal(t, []string{"widgets/button.go"}, integration.TestSubjects)
}

func TestPythonExtractorClassifiesTestFile(t *testing.T) {
	reg := NewRegistry()
	src := "import unittest\n\ndef test_render():\n    pass\n"

	prefixed := reg.Extract("widgets/test_widget.py", []byte(src))
	require.Equal(t, "unit", prefixed.TestKind)
	require.Equal(t, []string{"widgets/widget.py"}, prefixed.TestSubjects)

	suffixed := reg.Extract("widgets/widget_test.py", []byte(src))
	require.Equal(t, "unit", suffixed.TestKind)
	require.Equal(t, []string{"widgets/widget.py"}, suffixed.TestSubjects)
}

func TestJavaExtractorClassifiesTestFile(t *testing.T) {
	reg := NewRegistry()
	src := "package com.example.widgets;\n\nimport org.junit.Test;\n\npublic class WidgetTest {\n    @Test\n    public void testRender() {\n    }\n}\n"
	res := reg.Extract("com/example/widgets/WidgetTest.java", []byte(src))

	require.Equal(t, "unit", res.TestKind)
	require.Equal(t, []string{"com/example/widgets/Widget.java"}, res.TestSubjects)

	itSrc := "package com.example.widgets;\n\npublic class WidgetIT {\n}\n"
	it := reg.Extract("com/example/widgets/WidgetIT.java", []byte(itSrc))
	require.Equal(t, "integration", it.TestKind)
	require.Equal(t, []string{"com/example/widgets/Widget.java"}, it.TestSubjects)
}

func TestTypeScriptExtractorClassifiesTestFile(t *testing.T) {
	reg := NewRegistry()
	src := "import { Circle } from './circle'\n"

	res := reg.Extract("shapes/circle.test.ts", []byte(src))
	require.Equal(t, "unit", res.TestKind)
	require.Equal(t, []string{"shapes/circle.ts"}, res.TestSubjects)

	spec := reg.Extract("shapes/circle.spec.ts", []byte(src))
	require.Equal(t, []string{"shapes/circle.ts"}, spec.TestSubjects)
}

func TestRegistrySymbolCap(t *testing.T) {
	reg := NewRegistry()
	reg.SetMaxSymbolsPerFile(2)

	src := "package p\n\nfunc A() {}\nfunc B() {}\nfunc C() {}\n"
	res := reg.Extract("p.go", []byte(src))
	require.Len(t, res.Symbols, 2)
}
