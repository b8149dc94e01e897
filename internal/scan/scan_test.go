package scan

import (
	"slices"
	"strings"
	"testing"
)

func mustScan(t *testing.T, path, src string) *Record {
	t.Helper()
	rec, err := File(path, []byte(src))
	if err != nil {
		t.Fatalf("File(%s): %v", path, err)
	}
	return rec
}

func depByNamespace(t *testing.T, rec *Record, ns string) Dependency {
	t.Helper()
	for _, d := range rec.Deps {
		if d.Namespace == ns {
			return d
		}
	}
	t.Fatalf("dependency %q not found in %v", ns, rec.Deps)
	return Dependency{}
}

func TestScanProvideStyle(t *testing.T) {
	rec := mustScan(t, "dom/dom.js", `// Copyright
goog.provide('goog.dom');
goog.provide('goog.dom.Appendable');

goog.require('goog.array');
goog.require("goog.dom.TagName");
goog.forwardDeclare('goog.events.Event');
goog.requireType('goog.math.Size');

goog.dom.getElement = function(id) {
  return goog.array.find([id], function(x) { return x; });
};
`)
	if !slices.Equal(rec.Provides, []string{"goog.dom", "goog.dom.Appendable"}) {
		t.Errorf("provides: got %v", rec.Provides)
	}
	var got []string
	for _, d := range rec.Deps {
		got = append(got, d.Namespace+":"+d.Kind.String())
	}
	want := []string{
		"goog.array:hard",
		"goog.dom.TagName:hard",
		"goog.events.Event:forward",
		"goog.math.Size:forward",
	}
	if !slices.Equal(got, want) {
		t.Errorf("deps: got %v, want %v", got, want)
	}
	if rec.Module {
		t.Error("provide-style file should not be a module")
	}
	if len(rec.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", rec.Warnings)
	}
	if d := depByNamespace(t, rec, "goog.array"); d.Line != 5 {
		t.Errorf("goog.array line: got %d, want 5", d.Line)
	}
}

func TestScanModuleStyle(t *testing.T) {
	rec := mustScan(t, "ui/button.js", `goog.module('goog.ui.Button');
goog.module.declareLegacyNamespace();

const Component = goog.require('goog.ui.Component');
const {assert, fail: doFail} = goog.require('goog.asserts');
const Size = goog.requireType('goog.math.Size');

class Button extends Component {
  /** @param {!Size} size */
  resize(size) { assert(size); doFail(); }
}

exports = Button;
`)
	if !rec.Module {
		t.Error("expected module record")
	}
	if !slices.Equal(rec.Provides, []string{"goog.ui.Button"}) {
		t.Errorf("provides: got %v", rec.Provides)
	}
	if d := depByNamespace(t, rec, "goog.ui.Component"); d.Usage != UsageEager {
		t.Errorf("superclass usage: got %s, want eager", d.Usage)
	}
	if d := depByNamespace(t, rec, "goog.asserts"); d.Usage != UsageDeferred {
		t.Errorf("method-only usage: got %s, want deferred", d.Usage)
	}
	if d := depByNamespace(t, rec, "goog.math.Size"); d.Kind != Forward || d.Usage != UsageType {
		t.Errorf("type-only dep: got kind=%s usage=%s", d.Kind, d.Usage)
	}
}

func TestScanUsageClassification(t *testing.T) {
	rec := mustScan(t, "a.js", `goog.provide('a');

goog.require('b.eager');
goog.require('b.deferred');
goog.require('b.type');
goog.require('b.unused');
goog.require('b.iife');
goog.require('b.scope');
goog.require('b.inherits');
goog.require('b.loop');
goog.require('b.listen');
goog.require('b.timer');
goog.require('b.nested');

a.CONST = b.eager.make();

/** @return {b.type.Thing} */
a.factory = function() {
  return new b.deferred.Thing();
};

(function() {
  b.iife.init();
})();

goog.scope(function() {
  var x = b.scope.value;
});

a.Child = function() {};
goog.inherits(a.Child, b.inherits.Parent);

[1, 2].forEach(function(k) {
  a.table[k] = b.loop.make(k);
});

goog.events.listen(window, 'load', function() {
  b.listen.start();
});

window.setTimeout(() => b.timer.tick(), 0);

a.later = function() {
  [1].forEach(function(k) { b.nested.use(k); });
};
`)
	tests := []struct {
		ns   string
		want Usage
	}{
		{"b.eager", UsageEager},
		{"b.deferred", UsageDeferred},
		{"b.type", UsageType},
		{"b.unused", UsageNone},
		{"b.iife", UsageEager},
		{"b.scope", UsageEager},
		{"b.inherits", UsageEager},
		{"b.loop", UsageEager},
		{"b.listen", UsageDeferred},
		{"b.timer", UsageDeferred},
		{"b.nested", UsageDeferred},
	}
	for _, tt := range tests {
		if got := depByNamespace(t, rec, tt.ns).Usage; got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.ns, got, tt.want)
		}
	}
}

func TestScanOwnNamespaceIsNotAUse(t *testing.T) {
	rec := mustScan(t, "a/b/c.js", `goog.provide('a.b.c');
goog.require('a.b');

a.b.c.X = function() {
  return a.b.helper();
};
a.b.c.Y = a.b.c.X;
`)
	if d := depByNamespace(t, rec, "a.b"); d.Usage != UsageDeferred {
		t.Errorf("definitions under a.b.c: got %s, want deferred", d.Usage)
	}

	rec = mustScan(t, "a/b/c.js", `goog.provide('a.b.c');
goog.require('a.b');

a.b.c.Z = a.b.DEFAULT;
a.b.c.make(a.b.x);
`)
	if d := depByNamespace(t, rec, "a.b"); d.Usage != UsageEager {
		t.Errorf("direct use of the parent: got %s, want eager", d.Usage)
	}
}

func TestScanMalformedDeclarationsWarn(t *testing.T) {
	rec := mustScan(t, "bad.js", `goog.provide('ok');
goog.require(someVariable);
goog.require('a', 'b');
goog.require('not a namespace');
goog.require();
goog.require('good');
`)
	if !slices.Equal(rec.Provides, []string{"ok"}) {
		t.Errorf("provides: got %v", rec.Provides)
	}
	if len(rec.Deps) != 1 || rec.Deps[0].Namespace != "good" {
		t.Errorf("deps: got %v", rec.Deps)
	}
	if len(rec.Warnings) != 4 {
		t.Fatalf("expected 4 warnings, got %d: %v", len(rec.Warnings), rec.Warnings)
	}
	for _, w := range rec.Warnings {
		if w.File != "bad.js" || !strings.Contains(w.Message, "malformed goog.require") {
			t.Errorf("unexpected warning: %+v", w)
		}
	}
	if rec.Warnings[0].Line != 2 {
		t.Errorf("first warning line: got %d, want 2", rec.Warnings[0].Line)
	}
}

func TestScanDuplicatesAndSelfRequire(t *testing.T) {
	rec := mustScan(t, "dup.js", `goog.provide('x');
goog.provide('x');
goog.forwardDeclare('y');
goog.require('y');
goog.require('x');
`)
	if !slices.Equal(rec.Provides, []string{"x"}) {
		t.Errorf("provides: got %v", rec.Provides)
	}
	if len(rec.Deps) != 1 {
		t.Fatalf("deps: got %v", rec.Deps)
	}
	if rec.Deps[0].Kind != Hard {
		t.Errorf("forward followed by require should be hard, got %s", rec.Deps[0].Kind)
	}
	if rec.Deps[0].Line != 3 {
		t.Errorf("first position should win, got line %d", rec.Deps[0].Line)
	}
	if len(rec.Warnings) != 3 {
		t.Errorf("expected 3 warnings, got %v", rec.Warnings)
	}
}

func TestScanEntryScriptWithoutProvides(t *testing.T) {
	rec := mustScan(t, "main.js", `goog.require('app.App');
new app.App().start();
`)
	if len(rec.Provides) != 0 {
		t.Errorf("expected no provides, got %v", rec.Provides)
	}
	if d := depByNamespace(t, rec, "app.App"); d.Usage != UsageEager {
		t.Errorf("usage: got %s", d.Usage)
	}
}

func TestScanSyntaxErrorWarns(t *testing.T) {
	rec := mustScan(t, "broken.js", `goog.provide('broken');
goog.require('dep');
function (( {
`)
	if len(rec.Deps) != 1 {
		t.Errorf("declarations before the error should survive, got %v", rec.Deps)
	}
	found := false
	for _, w := range rec.Warnings {
		if strings.Contains(w.Message, "syntax errors") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected syntax warning, got %v", rec.Warnings)
	}
}

func TestContainsRef(t *testing.T) {
	tests := []struct {
		text, name string
		want       bool
	}{
		{"@type {goog.dom.TagName}", "goog.dom.TagName", true},
		{"@type {goog.dom.TagName}", "goog.dom", true},
		{"@type {goog.domx}", "goog.dom", false},
		{"@type {my.goog.dom}", "goog.dom", false},
		{"Size", "Size", true},
		{"FontSize", "Size", false},
	}
	for _, tt := range tests {
		if got := containsRef(tt.text, tt.name); got != tt.want {
			t.Errorf("containsRef(%q, %q) = %v, want %v", tt.text, tt.name, got, tt.want)
		}
	}
}

func TestUsageDemotable(t *testing.T) {
	for _, u := range []Usage{UsageNone, UsageType, UsageDeferred} {
		if !u.Demotable() {
			t.Errorf("%s should be demotable", u)
		}
	}
	if UsageEager.Demotable() {
		t.Error("eager should not be demotable")
	}
}
