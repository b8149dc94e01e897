// Package scan extracts namespace declarations (provides, requires and
// forward declarations) from JavaScript source text.
package scan

import (
	"fmt"
	"regexp"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/es6-module-converter/internal/diag"
	"github.com/DeusData/es6-module-converter/internal/lang"
	"github.com/DeusData/es6-module-converter/internal/parser"
)

var namespaceRe = regexp.MustCompile(`^[A-Za-z_$][\w$]*(\.[A-Za-z_$][\w$]*)*$`)

// declaration is a raw declaration call before deduplication.
type declaration struct {
	kind      lang.DeclKind
	namespace string
	line      int
	callee    string
}

// fileScan holds per-file state during one scan.
type fileScan struct {
	spec    *lang.LanguageSpec
	source  []byte
	rec     *Record
	decls   []declaration
	aliases map[string]string // local name -> required namespace
	// declCalls holds the node ids of declaration calls so the usage walk
	// can skip them.
	declCalls map[uintptr]bool
}

// File scans one JavaScript file. relPath identifies the file in the
// record and in warnings. Malformed declarations are skipped and reported
// as warnings; an error is returned only when the source cannot be parsed
// at all.
func File(relPath string, source []byte) (*Record, error) {
	spec := lang.ForLanguage(lang.JavaScript)
	tree, err := parser.Parse(lang.JavaScript, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", relPath, err)
	}
	defer tree.Close()

	fs := &fileScan{
		spec:      spec,
		source:    source,
		rec:       &Record{Path: relPath, Provides: []string{}, Deps: []Dependency{}},
		aliases:   make(map[string]string),
		declCalls: make(map[uintptr]bool),
	}

	root := tree.RootNode()
	if root.HasError() {
		fs.warn(0, "syntax errors in file; declarations may be incomplete")
	}

	fs.collectDeclarations(root)
	fs.buildRecord()
	fs.classifyUsage(root)
	return fs.rec, nil
}

func (fs *fileScan) warn(line int, format string, args ...any) {
	fs.rec.Warnings = append(fs.rec.Warnings, diag.Warning{
		File:    fs.rec.Path,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	})
}

func (fs *fileScan) isCall(kind string) bool {
	for _, k := range fs.spec.CallNodeTypes {
		if k == kind {
			return true
		}
	}
	return false
}

// declarationCallee returns the callee text and kind if node is a
// declaration call such as goog.require('a.b').
func (fs *fileScan) declarationCallee(node *tree_sitter.Node) (string, lang.DeclKind, bool) {
	if !fs.isCall(node.Kind()) {
		return "", 0, false
	}
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return "", 0, false
	}
	callee := parser.CompactText(fn, fs.source)
	kind, ok := fs.spec.DeclarationCallees[callee]
	return callee, kind, ok
}

// collectDeclarations walks the tree in source order and records every
// declaration call.
func (fs *fileScan) collectDeclarations(root *tree_sitter.Node) {
	parser.Walk(root, func(node *tree_sitter.Node) bool {
		callee, kind, ok := fs.declarationCallee(node)
		if !ok {
			return true
		}
		fs.declCalls[node.Id()] = true
		line := parser.Line(node)

		ns, err := fs.singleStringArg(node)
		if err != nil {
			fs.warn(line, "malformed %s: %v", callee, err)
			return false
		}
		if !namespaceRe.MatchString(ns) {
			fs.warn(line, "malformed %s: invalid namespace %q", callee, ns)
			return false
		}
		if callee == "goog.module" {
			fs.rec.Module = true
		}
		fs.decls = append(fs.decls, declaration{kind: kind, namespace: ns, line: line, callee: callee})
		if kind != lang.DeclProvide {
			fs.recordAliases(node, ns)
		}
		return false
	})
}

// singleStringArg returns the value of the only argument of call, which must
// be a plain string literal.
func (fs *fileScan) singleStringArg(call *tree_sitter.Node) (string, error) {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return "", fmt.Errorf("missing arguments")
	}
	var values []*tree_sitter.Node
	for i := uint(0); i < args.NamedChildCount(); i++ {
		child := args.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		values = append(values, child)
	}
	if len(values) != 1 {
		return "", fmt.Errorf("expected one argument, got %d", len(values))
	}
	if values[0].Kind() != "string" {
		return "", fmt.Errorf("argument is %s, not a string literal", values[0].Kind())
	}
	return unquote(parser.NodeText(values[0], fs.source)), nil
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// recordAliases maps local names bound by `const X = goog.require('ns')` or
// `const {a, b: c} = goog.require('ns')` to the required namespace.
func (fs *fileScan) recordAliases(call *tree_sitter.Node, ns string) {
	declarator := call.Parent()
	if declarator == nil || !fs.isDeclarator(declarator.Kind()) {
		return
	}
	name := declarator.ChildByFieldName("name")
	if name == nil {
		return
	}
	switch name.Kind() {
	case "identifier":
		fs.aliases[parser.NodeText(name, fs.source)] = ns
	case "object_pattern":
		for i := uint(0); i < name.NamedChildCount(); i++ {
			child := name.NamedChild(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "shorthand_property_identifier_pattern":
				fs.aliases[parser.NodeText(child, fs.source)] = ns
			case "pair_pattern":
				if v := child.ChildByFieldName("value"); v != nil && v.Kind() == "identifier" {
					fs.aliases[parser.NodeText(v, fs.source)] = ns
				}
			}
		}
	}
}

func (fs *fileScan) isDeclarator(kind string) bool {
	for _, k := range fs.spec.DeclaratorNodeTypes {
		if k == kind {
			return true
		}
	}
	return false
}

// buildRecord deduplicates the raw declarations into the record, keeping
// source order of first appearance.
func (fs *fileScan) buildRecord() {
	provided := make(map[string]bool)
	for _, d := range fs.decls {
		if d.kind != lang.DeclProvide {
			continue
		}
		if provided[d.namespace] {
			fs.warn(d.line, "duplicate %s of %q", d.callee, d.namespace)
			continue
		}
		provided[d.namespace] = true
		fs.rec.Provides = append(fs.rec.Provides, d.namespace)
	}

	index := make(map[string]int)
	for _, d := range fs.decls {
		if d.kind == lang.DeclProvide {
			continue
		}
		if provided[d.namespace] {
			fs.warn(d.line, "file requires %q which it provides itself", d.namespace)
			continue
		}
		kind := Hard
		if d.kind == lang.DeclForward {
			kind = Forward
		}
		if i, ok := index[d.namespace]; ok {
			fs.warn(d.line, "duplicate declaration of %q", d.namespace)
			if kind == Hard {
				fs.rec.Deps[i].Kind = Hard
			}
			continue
		}
		index[d.namespace] = len(fs.rec.Deps)
		fs.rec.Deps = append(fs.rec.Deps, Dependency{Namespace: d.namespace, Kind: kind, Line: d.line})
	}
	if len(fs.rec.Provides) > 1 && fs.rec.Module {
		fs.warn(0, "goog.module file declares %d namespaces", len(fs.rec.Provides))
	}
	if strings.TrimSpace(string(fs.source)) == "" {
		fs.warn(0, "empty file")
	}
}
