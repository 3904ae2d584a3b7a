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
	"context"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/heAdz0r/rtk-sub001/internal/model"
)

// TreeSitterGo is the optional stronger-parser tier for Go (spec §4.3:
// "tree-sitter-backed (optional, when available)"). Grounded on
// parser_treesitter.go's pooled-parser idiom and parser_go.go's AST walk,
// reduced to the symbol/import/relation surface this engine needs (no
// call-graph extraction — that is a Planner/Indexer concern, not Extractor's).
type TreeSitterGo struct {
	pool sync.Pool
}

// NewTreeSitterGo builds the Go Tree-sitter extractor, pooling parsers the
// same way the teacher's TreeSitterParser.goPool does (sitter.Parser is not
// goroutine-safe).
func NewTreeSitterGo() *TreeSitterGo {
	ts := &TreeSitterGo{}
	ts.pool.New = func() any {
		p := sitter.NewParser()
		p.SetLanguage(golang.GetLanguage())
		return p
	}
	return ts
}

func (ts *TreeSitterGo) DetectLanguage(path string) bool {
	return strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, "_test.go")
}

func (ts *TreeSitterGo) Extract(path string, content []byte) Result {
	res := Result{Language: "go"}
	if content == nil {
		return res
	}

	parser := ts.pool.Get().(*sitter.Parser)
	defer ts.pool.Put(parser)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		// Degrade silently to the null-extractor shape; the regex tier
		// still runs as a registry fallback is not automatic here, so the
		// caller (Registry.WithTreeSitter) should retain the regex variant
		// behind this one. We return what we can.
		return res
	}
	defer tree.Close()

	root := tree.RootNode()
	ifaceMethods := map[string][]string{}
	typeKinds := map[string]string{}
	methodsByType := map[string]map[string]bool{}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "import_declaration":
			ts.collectImports(n, content, &res.Imports)
		case "function_declaration":
			if sym := ts.functionSymbol(n, content); sym != nil {
				res.Symbols = append(res.Symbols, *sym)
			}
		case "method_declaration":
			if sym, recv := ts.methodSymbol(n, content); sym != nil {
				res.Symbols = append(res.Symbols, *sym)
				if methodsByType[recv] == nil {
					methodsByType[recv] = map[string]bool{}
				}
				methodsByType[recv][shortMethodName(sym.Name)] = true
			}
		case "type_declaration":
			ts.collectTypes(n, content, &res.Symbols, typeKinds, ifaceMethods)
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)

	for ifaceName, required := range ifaceMethods {
		if len(required) == 0 {
			continue
		}
		for typeName, methods := range methodsByType {
			if typeKinds[typeName] == "interface" {
				continue
			}
			if hasAll(methods, required) {
				res.Relations = append(res.Relations, model.TypeRelation{
					SourceType: typeName, Kind: model.RelationImplements, TargetType: ifaceName, SourceFile: path,
				})
			}
		}
	}
	return res
}

func (ts *TreeSitterGo) collectImports(n *sitter.Node, content []byte, out *[]string) {
	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}
		if node.Type() == "interpreted_string_literal" {
			raw := string(content[node.StartByte():node.EndByte()])
			*out = append(*out, strings.Trim(raw, `"`))
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}
	walk(n)
}

func (ts *TreeSitterGo) functionSymbol(n *sitter.Node, content []byte) *model.Symbol {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	if !isExportedGo(name) {
		return nil
	}
	return &model.Symbol{
		Name:             name,
		Kind:             model.SymbolFunction,
		SignaturePreview: ts.signaturePreview(n, content),
		Line:             int(n.StartPoint().Row) + 1,
	}
}

func (ts *TreeSitterGo) methodSymbol(n *sitter.Node, content []byte) (*model.Symbol, string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil, ""
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	if !isExportedGo(name) {
		return nil, ""
	}
	receiverType := ""
	if recv := n.ChildByFieldName("receiver"); recv != nil {
		receiverType = receiverBaseType(recv, content)
	}
	display := name
	if receiverType != "" {
		display = receiverType + "." + name
	}
	return &model.Symbol{
		Name:             display,
		Kind:             model.SymbolMethod,
		SignaturePreview: ts.signaturePreview(n, content),
		Line:             int(n.StartPoint().Row) + 1,
	}, receiverType
}

func (ts *TreeSitterGo) signaturePreview(n *sitter.Node, content []byte) string {
	bodyNode := n.ChildByFieldName("body")
	end := n.EndByte()
	if bodyNode != nil {
		end = bodyNode.StartByte()
	}
	sig := string(content[n.StartByte():end])
	return firstLine(strings.TrimSpace(sig))
}

func (ts *TreeSitterGo) collectTypes(n *sitter.Node, content []byte, symbols *[]model.Symbol, typeKinds map[string]string, ifaceMethods map[string][]string) {
	for i := 0; i < int(n.ChildCount()); i++ {
		spec := n.Child(i)
		if spec.Type() != "type_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		typeNode := spec.ChildByFieldName("type")
		if nameNode == nil || typeNode == nil {
			continue
		}
		name := string(content[nameNode.StartByte():nameNode.EndByte()])
		if !isExportedGo(name) {
			continue
		}
		kind := model.SymbolType
		switch typeNode.Type() {
		case "interface_type":
			kind = model.SymbolInterface
			typeKinds[name] = "interface"
			ifaceMethods[name] = ts.interfaceMethodNames(typeNode, content)
		case "struct_type":
			typeKinds[name] = "struct"
		}
		*symbols = append(*symbols, model.Symbol{Name: name, Kind: kind, Line: int(spec.StartPoint().Row) + 1})
	}
}

func (ts *TreeSitterGo) interfaceMethodNames(ifaceNode *sitter.Node, content []byte) []string {
	var out []string
	for i := 0; i < int(ifaceNode.ChildCount()); i++ {
		child := ifaceNode.Child(i)
		if child.Type() == "method_spec" {
			nameNode := child.ChildByFieldName("name")
			if nameNode != nil {
				out = append(out, string(content[nameNode.StartByte():nameNode.EndByte()]))
			}
		}
	}
	return out
}

func receiverBaseType(receiverNode *sitter.Node, content []byte) string {
	for i := 0; i < int(receiverNode.ChildCount()); i++ {
		child := receiverNode.Child(i)
		if child.Type() == "parameter_declaration" {
			typeNode := child.ChildByFieldName("type")
			if typeNode == nil {
				continue
			}
			t := typeNode
			if t.Type() == "pointer_type" {
				for j := 0; j < int(t.ChildCount()); j++ {
					if t.Child(j).Type() != "*" {
						t = t.Child(j)
						break
					}
				}
			}
			return string(content[t.StartByte():t.EndByte()])
		}
	}
	return ""
}

func isExportedGo(name string) bool {
	return name != "" && strings.ToUpper(name[:1]) == name[:1]
}

func shortMethodName(displayName string) string {
	if i := strings.LastIndex(displayName, "."); i >= 0 {
		return displayName[i+1:]
	}
	return displayName
}
