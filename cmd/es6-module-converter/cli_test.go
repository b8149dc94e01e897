package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/DeusData/es6-module-converter/internal/pipeline"
)

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

var breakableCorpus = map[string]string{
	"a.js":      "goog.provide('a');\ngoog.require('b');\na.x = b.y;\n",
	"b.js":      "goog.provide('b');\ngoog.require('a');\nb.y = function() { return a.x; };\n",
	"c.js":      "goog.provide('c');\ngoog.require('a');\nc.z = a.x;\n",
	"c_test.js": "goog.provide('c.test');\ngoog.require('c');\n",
}

// run executes the CLI in-process and returns stdout, stderr and the error.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestAnalyzeWritesJSONPlan(t *testing.T) {
	dir := writeCorpus(t, breakableCorpus)
	out := filepath.Join(t.TempDir(), "plan.json")

	_, stderr, err := run(t, "analyze", dir, "--no-cache", "-o", out)
	if err != nil {
		t.Fatalf("analyze: %v\n%s", err, stderr)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var plan pipeline.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	var order []string
	for _, f := range plan.Files {
		order = append(order, f.Path)
	}
	if !slices.Equal(order, []string{"b.js", "a.js", "c.js"}) {
		t.Errorf("plan order: %v", order)
	}
	if len(plan.Demotions) != 1 || plan.Demotions[0].From != "b.js" {
		t.Errorf("demotions: %+v", plan.Demotions)
	}
	if !strings.Contains(stderr, "3 files ordered, 1 demotions") {
		t.Errorf("summary missing from stderr:\n%s", stderr)
	}
}

func TestAnalyzeYAMLToStdout(t *testing.T) {
	dir := writeCorpus(t, breakableCorpus)
	stdout, _, err := run(t, "analyze", dir, "--no-cache", "--format", "yaml", "--include-tests")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(stdout, "kind: deferred") || !strings.Contains(stdout, "path: c_test.js") {
		t.Errorf("unexpected yaml plan:\n%s", stdout)
	}
}

func TestAnalyzeUnknownFormat(t *testing.T) {
	dir := writeCorpus(t, breakableCorpus)
	_, _, err := run(t, "analyze", dir, "--no-cache", "--format", "toml")
	if err == nil || !strings.Contains(err.Error(), "toml") {
		t.Errorf("expected format error, got %v", err)
	}
}

func TestAnalyzeReportsEveryError(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"a.js": "goog.provide('x');\ngoog.require('gone.one');\n",
		"b.js": "goog.provide('x');\ngoog.require('gone.two');\n",
	})
	_, stderr, err := run(t, "analyze", dir, "--no-cache")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != exitFailure {
		t.Fatalf("expected exit code %d, got %v", exitFailure, err)
	}
	for _, want := range []string{"ambiguous provider", "gone.one", "gone.two"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr lacks %q:\n%s", want, stderr)
		}
	}
}

func TestAnalyzeConfigAndFlagOverride(t *testing.T) {
	files := map[string]string{
		".es6config": "roots: [c.js]\n",
		"a.js":       "goog.provide('a');\n",
		"b.js":       "goog.provide('b');\n",
		"c.js":       "goog.provide('c');\ngoog.require('a');\n",
	}
	dir := writeCorpus(t, files)

	stdout, _, err := run(t, "analyze", dir, "--no-cache")
	if err != nil {
		t.Fatal(err)
	}
	var plan pipeline.Plan
	if err := json.Unmarshal([]byte(stdout), &plan); err != nil {
		t.Fatal(err)
	}
	if len(plan.Files) != 2 {
		t.Errorf("config roots ignored: %+v", plan.Files)
	}

	stdout, _, err = run(t, "analyze", dir, "--no-cache", "--root", "b.js")
	if err != nil {
		t.Fatal(err)
	}
	plan = pipeline.Plan{}
	if err := json.Unmarshal([]byte(stdout), &plan); err != nil {
		t.Fatal(err)
	}
	if len(plan.Files) != 1 || plan.Files[0].Path != "b.js" {
		t.Errorf("--root did not override config: %+v", plan.Files)
	}
}

func TestAnalyzeUsesCachePath(t *testing.T) {
	dir := writeCorpus(t, breakableCorpus)
	cache := filepath.Join(t.TempDir(), "cache", "scans.db")

	if _, stderr, err := run(t, "analyze", dir, "--cache-path", cache); err != nil {
		t.Fatalf("first run: %v\n%s", err, stderr)
	}
	_, stderr, err := run(t, "analyze", dir, "--cache-path", cache)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !strings.Contains(stderr, "(0 scanned, 4 cached)") {
		t.Errorf("second run did not use the cache:\n%s", stderr)
	}
}

func TestCyclesCommand(t *testing.T) {
	dir := writeCorpus(t, breakableCorpus)
	stdout, _, err := run(t, "cycles", dir, "--no-cache")
	if err != nil {
		t.Fatalf("cycles: %v", err)
	}
	if !strings.Contains(stdout, "a.js, b.js") || !strings.Contains(stdout, "b.js -> a.js") {
		t.Errorf("unexpected output:\n%s", stdout)
	}
}

func TestCyclesCommandNoCycles(t *testing.T) {
	dir := writeCorpus(t, map[string]string{"a.js": "goog.provide('a');\n"})
	stdout, _, err := run(t, "cycles", dir, "--no-cache")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "no cycles") {
		t.Errorf("unexpected output:\n%s", stdout)
	}
}

func TestCyclesCommandUnbreakable(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"a.js": "goog.provide('a');\ngoog.require('b');\na.x = b.y;\n",
		"b.js": "goog.provide('b');\ngoog.require('a');\nb.y = a.z;\n",
	})
	stdout, _, err := run(t, "cycles", dir, "--no-cache")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != exitUnbreakable {
		t.Fatalf("expected exit code %d, got %v", exitUnbreakable, err)
	}
	if !strings.Contains(stdout, "a.js -> b.js -> a.js") {
		t.Errorf("unbreakable path missing:\n%s", stdout)
	}
}

func TestExitError(t *testing.T) {
	inner := errors.New("boom")
	e := &ExitError{Code: 2, Err: inner}
	if !errors.Is(e, inner) || e.Error() != "boom" {
		t.Errorf("wrapped ExitError: %v", e)
	}
	if got := (&ExitError{Code: 3}).Error(); got != "exit status 3" {
		t.Errorf("bare ExitError = %q", got)
	}
}

func TestScanCommand(t *testing.T) {
	dir := writeCorpus(t, breakableCorpus)
	stdout, _, err := run(t, "scan", filepath.Join(dir, "b.js"))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for _, want := range []string{"- b", "namespace: a", "usage: deferred"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("scan output lacks %q:\n%s", want, stdout)
		}
	}

	stdout, _, err = run(t, "scan", "--ast", filepath.Join(dir, "a.js"))
	if err != nil {
		t.Fatalf("scan --ast: %v", err)
	}
	if !strings.Contains(stdout, "program L1") || !strings.Contains(stdout, "call_expression") {
		t.Errorf("unexpected ast output:\n%s", stdout)
	}
}
