package fqn

import (
	"path"
	"strconv"
	"strings"
	"unicode"
)

// ImportSpecifier returns the relative ES module specifier that file fromRel
// uses to import toRel. Both are slash-separated paths relative to the
// corpus root.
// Examples:
//   - ImportSpecifier("app.js", "dom/dom.js") == "./dom/dom.js"
//   - ImportSpecifier("ui/button.js", "dom/dom.js") == "../dom/dom.js"
func ImportSpecifier(fromRel, toRel string) string {
	fromDir := strings.Split(path.Dir(path.Clean(fromRel)), "/")
	target := strings.Split(path.Clean(toRel), "/")
	if len(fromDir) == 1 && fromDir[0] == "." {
		fromDir = nil
	}

	common := 0
	for common < len(fromDir) && common < len(target)-1 && fromDir[common] == target[common] {
		common++
	}

	ups := len(fromDir) - common
	rest := strings.Join(target[common:], "/")
	if ups == 0 {
		return "./" + rest
	}
	return strings.Repeat("../", ups) + rest
}

// Binding returns the local identifier a namespace is imported as: its last
// segment, made a valid identifier.
func Binding(namespace string) string {
	last := namespace
	if i := strings.LastIndexByte(namespace, '.'); i >= 0 {
		last = namespace[i+1:]
	}
	var b strings.Builder
	for i, r := range last {
		switch {
		case r == '_' || r == '$' || unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// Namer hands out bindings unique within one file.
type Namer struct {
	used map[string]bool
}

// NewNamer reserves the given names (for example the file's own top-level
// namespace roots).
func NewNamer(reserved ...string) *Namer {
	n := &Namer{used: make(map[string]bool, len(reserved))}
	for _, r := range reserved {
		n.used[r] = true
	}
	return n
}

// Next returns Binding(namespace), suffixed with 2, 3, ... on collision.
func (n *Namer) Next(namespace string) string {
	base := Binding(namespace)
	name := base
	for i := 2; n.used[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	n.used[name] = true
	return name
}
