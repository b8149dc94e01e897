package scan

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/es6-module-converter/internal/parser"
)

// classifyUsage records, for every dependency, the strongest way the file
// references it. References are namespace member chains (goog.dom.TagName.A),
// local aliases bound by goog.require, and JSDoc comments.
func (fs *fileScan) classifyUsage(root *tree_sitter.Node) {
	if len(fs.rec.Deps) == 0 {
		return
	}
	index := make(map[string]int, len(fs.rec.Deps))
	for i, d := range fs.rec.Deps {
		index[d.Namespace] = i
	}
	raise := func(ns string, u Usage) {
		i, ok := index[ns]
		if ok && fs.rec.Deps[i].Usage < u {
			fs.rec.Deps[i].Usage = u
		}
	}

	var visit func(node *tree_sitter.Node) bool
	visit = func(node *tree_sitter.Node) bool {
		if fs.declCalls[node.Id()] || fs.isRequireBinding(node) {
			return false
		}
		switch node.Kind() {
		case "comment":
			text := parser.NodeText(node, fs.source)
			for ns := range index {
				if containsRef(text, ns) {
					raise(ns, UsageType)
				}
			}
			for alias, ns := range fs.aliases {
				if containsRef(text, alias) {
					raise(ns, UsageType)
				}
			}
			return false
		case "member_expression":
			text := parser.CompactText(node, fs.source)
			ns, own := fs.matchNamespace(text)
			if own {
				// The chain names the file's own namespace. Only a non-chain
				// base such as a call can still hold references.
				if base := chainBase(node); base != nil && base.Kind() != "identifier" {
					parser.Walk(base, visit)
				}
				return false
			}
			if ns != "" {
				raise(ns, fs.context(node))
				return false
			}
			return true
		case "identifier", "shorthand_property_identifier":
			name := parser.NodeText(node, fs.source)
			if ns, ok := fs.aliases[name]; ok {
				raise(ns, fs.context(node))
			} else if _, ok := index[name]; ok {
				// single-segment namespace such as goog.require('jQuery')
				raise(name, fs.context(node))
			}
			return false
		}
		return true
	}
	parser.Walk(root, visit)
}

// matchNamespace returns the longest required namespace that text names or
// is a member of. own is true when a namespace the file provides itself is
// a longer match, as in a.b.c.X for a file providing a.b.c and requiring
// a.b; such a chain is a definition, not a use.
func (fs *fileScan) matchNamespace(text string) (ns string, own bool) {
	best := ""
	for _, d := range fs.rec.Deps {
		if len(d.Namespace) > len(best) && namesOrMember(text, d.Namespace) {
			best = d.Namespace
		}
	}
	for _, p := range fs.rec.Provides {
		if len(p) > len(best) && namesOrMember(text, p) {
			return "", true
		}
	}
	if best != "" {
		return best, false
	}
	// Member access on a local alias: TagName.DIV
	head, _, _ := strings.Cut(text, ".")
	if ns, ok := fs.aliases[head]; ok {
		return ns, false
	}
	return "", false
}

func namesOrMember(text, ns string) bool {
	return text == ns || strings.HasPrefix(text, ns+".")
}

// chainBase follows the object field down a member chain and returns the
// first node that is not a member expression.
func chainBase(node *tree_sitter.Node) *tree_sitter.Node {
	cur := node
	for cur != nil && cur.Kind() == "member_expression" {
		cur = cur.ChildByFieldName("object")
	}
	return cur
}

// isRequireBinding reports whether node is a declarator whose value is a
// declaration call, e.g. `const {a, b: c} = goog.require('ns')`. The bound
// names are not uses of the namespace.
func (fs *fileScan) isRequireBinding(node *tree_sitter.Node) bool {
	if !fs.isDeclarator(node.Kind()) {
		return false
	}
	value := node.ChildByFieldName("value")
	return value != nil && fs.declCalls[value.Id()]
}

// context classifies a reference by where it executes: inside a function
// body that only runs when called it is deferred, anywhere else it runs
// while the file loads.
func (fs *fileScan) context(node *tree_sitter.Node) Usage {
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		if !fs.isFunction(cur.Kind()) {
			continue
		}
		if fs.invokedImmediately(cur) {
			continue
		}
		return UsageDeferred
	}
	return UsageEager
}

func (fs *fileScan) isFunction(kind string) bool {
	for _, k := range fs.spec.FunctionNodeTypes {
		if k == kind {
			return true
		}
	}
	return false
}

// invokedImmediately reports whether fn runs as soon as it is defined:
// (function() {})(), (function() {}).call(this), or a callback handed to a
// call such as goog.scope(function() {}) or xs.forEach(function(x) {}).
func (fs *fileScan) invokedImmediately(fn *tree_sitter.Node) bool {
	cur := fn
	parent := cur.Parent()
	for parent != nil && parent.Kind() == "parenthesized_expression" {
		cur = parent
		parent = cur.Parent()
	}
	if parent == nil {
		return false
	}
	switch {
	case fs.isCall(parent.Kind()):
		callee := parent.ChildByFieldName("function")
		return callee != nil && callee.Id() == cur.Id()
	case parent.Kind() == "member_expression":
		prop := parent.ChildByFieldName("property")
		if prop == nil {
			return false
		}
		switch parser.NodeText(prop, fs.source) {
		case "call", "apply":
		default:
			return false
		}
		call := parent.Parent()
		if call == nil || !fs.isCall(call.Kind()) {
			return false
		}
		callee := call.ChildByFieldName("function")
		return callee != nil && callee.Id() == parent.Id()
	case parent.Kind() == "arguments":
		call := parent.Parent()
		if call == nil {
			return false
		}
		var callee *tree_sitter.Node
		switch {
		case fs.isCall(call.Kind()):
			callee = call.ChildByFieldName("function")
		case call.Kind() == "new_expression":
			callee = call.ChildByFieldName("constructor")
		default:
			return false
		}
		if callee == nil {
			return true
		}
		return !fs.defersCallback(parser.CompactText(callee, fs.source))
	}
	return false
}

// defersCallback reports whether a call to callee stores its function
// argument for later instead of running it. Dotted entries must match the
// whole callee; bare names also match a method of any receiver.
func (fs *fileScan) defersCallback(callee string) bool {
	for _, c := range fs.spec.DeferringCallees {
		if callee == c {
			return true
		}
		if !strings.Contains(c, ".") && strings.HasSuffix(callee, "."+c) {
			return true
		}
	}
	return false
}

// containsRef reports whether text mentions name as a whole dotted
// reference: "{goog.dom.TagName}" mentions goog.dom.TagName and goog.dom,
// but "goog.domx" mentions neither.
func containsRef(text, name string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], name)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(name)
		before := i == 0 || !isIdentByte(text[i-1]) && text[i-1] != '.'
		after := end == len(text) || !isIdentByte(text[end])
		if before && after {
			return true
		}
		start = i + 1
	}
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
