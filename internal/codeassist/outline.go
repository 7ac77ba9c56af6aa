package codeassist

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"
)

// Languages recognised by DetectLanguage.
const (
	LangGo      = "go"
	LangPython  = "python"
	LangUnknown = "unknown"
)

// Symbol is one top-level definition found in a snippet.
type Symbol struct {
	Kind   string // function, method, class, type
	Name   string
	Parent string // enclosing class or receiver type
	Line   int    // 1-based
}

// DetectLanguage reports whether code parses cleanly as Go (with or without a
// package clause) or as Python.
func DetectLanguage(ctx context.Context, code string) string {
	if _, ok := parseGo(ctx, code); ok {
		return LangGo
	}
	if root, tree := parseWith(ctx, python.GetLanguage(), []byte(code)); root != nil {
		defer tree.Close()
		if !root.HasError() {
			return LangPython
		}
	}
	return LangUnknown
}

// Outline extracts the functions, methods, classes and types of a snippet.
func Outline(ctx context.Context, code string) (string, []Symbol) {
	if src, ok := parseGo(ctx, code); ok {
		root, tree := parseWith(ctx, golang.GetLanguage(), src)
		if root == nil {
			return LangGo, nil
		}
		defer tree.Close()
		offset := 0
		if len(src) != len(code) {
			offset = 1 // synthetic package clause
		}
		return LangGo, goSymbols(root, src, offset)
	}

	content := []byte(code)
	root, tree := parseWith(ctx, python.GetLanguage(), content)
	if root == nil {
		return LangUnknown, nil
	}
	defer tree.Close()
	lang := LangPython
	if root.HasError() {
		lang = LangUnknown
	}
	var symbols []Symbol
	pythonSymbols(root, content, "", &symbols)
	return lang, symbols
}

// FormatOutline renders symbols one per line.
func FormatOutline(lang string, symbols []Symbol) string {
	if len(symbols) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Language: %s\n", lang)
	for _, s := range symbols {
		if s.Parent != "" {
			fmt.Fprintf(&sb, "- %s %s.%s (line %d)\n", s.Kind, s.Parent, s.Name, s.Line)
		} else {
			fmt.Fprintf(&sb, "- %s %s (line %d)\n", s.Kind, s.Name, s.Line)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func parseWith(ctx context.Context, lang *sitter.Language, content []byte) (*sitter.Node, *sitter.Tree) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil || tree == nil {
		return nil, nil
	}
	return tree.RootNode(), tree
}

// parseGo returns the source that parsed as Go, adding a package clause to
// bare snippets.
func parseGo(ctx context.Context, code string) ([]byte, bool) {
	for _, src := range []string{code, "package main\n" + code} {
		root, tree := parseWith(ctx, golang.GetLanguage(), []byte(src))
		if root == nil {
			continue
		}
		ok := !root.HasError() && hasChild(root, goOnlyNodes)
		tree.Close()
		if ok {
			return []byte(src), true
		}
	}
	return nil, false
}

// goOnlyNodes are top-level nodes that a Python snippet cannot produce. Bare
// calls and assignments parse in both grammars and are not enough.
var goOnlyNodes = map[string]bool{
	"function_declaration":  true,
	"method_declaration":    true,
	"type_declaration":      true,
	"import_declaration":    true,
	"short_var_declaration": true,
	"var_declaration":       true,
	"const_declaration":     true,
}

func hasChild(n *sitter.Node, types map[string]bool) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if types[n.NamedChild(i).Type()] {
			return true
		}
	}
	return false
}

func goSymbols(root *sitter.Node, content []byte, lineOffset int) []Symbol {
	text := func(n *sitter.Node) string { return string(content[n.StartByte():n.EndByte()]) }
	line := func(n *sitter.Node) int { return int(n.StartPoint().Row) + 1 - lineOffset }

	var symbols []Symbol
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "function_declaration":
			if name := child.ChildByFieldName("name"); name != nil {
				symbols = append(symbols, Symbol{Kind: "function", Name: text(name), Line: line(child)})
			}
		case "method_declaration":
			name := child.ChildByFieldName("name")
			if name == nil {
				continue
			}
			sym := Symbol{Kind: "method", Name: text(name), Line: line(child)}
			if recv := child.ChildByFieldName("receiver"); recv != nil {
				sym.Parent = receiverType(text(recv))
			}
			symbols = append(symbols, sym)
		case "type_declaration":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				spec := child.NamedChild(j)
				if spec.Type() != "type_spec" {
					continue
				}
				if name := spec.ChildByFieldName("name"); name != nil {
					symbols = append(symbols, Symbol{Kind: "type", Name: text(name), Line: line(spec)})
				}
			}
		}
	}
	return symbols
}

// receiverType turns "(s *Server)" into "Server".
func receiverType(recv string) string {
	recv = strings.Trim(recv, "()")
	fields := strings.Fields(recv)
	if len(fields) == 0 {
		return ""
	}
	t := strings.TrimLeft(fields[len(fields)-1], "*")
	if i := strings.Index(t, "["); i > 0 {
		t = t[:i]
	}
	return t
}

func pythonSymbols(node *sitter.Node, content []byte, parent string, out *[]Symbol) {
	text := func(n *sitter.Node) string { return string(content[n.StartByte():n.EndByte()]) }

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		def := child
		if child.Type() == "decorated_definition" {
			if inner := child.ChildByFieldName("definition"); inner != nil {
				def = inner
			}
		}

		switch def.Type() {
		case "class_definition":
			name := def.ChildByFieldName("name")
			if name == nil {
				continue
			}
			*out = append(*out, Symbol{Kind: "class", Name: text(name), Parent: parent, Line: int(child.StartPoint().Row) + 1})
			if body := def.ChildByFieldName("body"); body != nil {
				pythonSymbols(body, content, text(name), out)
			}
		case "function_definition":
			name := def.ChildByFieldName("name")
			if name == nil {
				continue
			}
			kind := "function"
			if parent != "" {
				kind = "method"
			}
			*out = append(*out, Symbol{Kind: kind, Name: text(name), Parent: parent, Line: int(child.StartPoint().Row) + 1})
		}
	}
}
