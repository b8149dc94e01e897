package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/es6-module-converter/internal/store"
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

var cyclicCorpus = map[string]string{
	"a.js": "goog.provide('a');\ngoog.require('b');\na.x = b.y;\n",
	"b.js": "goog.provide('b');\ngoog.require('a');\nb.y = function() { return a.x; };\n",
	"c.js": "goog.provide('c');\ngoog.require('a');\nc.z = a.x;\n",
}

func call(t *testing.T, h func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	res, err := h(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(raw)},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", res.Content[0])
	}
	return text.Text, res.IsError
}

func decode(t *testing.T, text string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
}

func TestAnalyzeCorpus(t *testing.T) {
	dir := writeCorpus(t, cyclicCorpus)
	srv := NewServer(nil, "test")

	text, isErr := call(t, srv.handleAnalyzeCorpus, map[string]any{
		"corpus_path":  dir,
		"include_plan": true,
	})
	if isErr {
		t.Fatalf("analyze failed: %s", text)
	}
	var out struct {
		Order     []string `json:"order"`
		Demotions []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"demotions"`
		CyclicSets [][]string `json:"cyclic_sets"`
		Plan       *struct {
			Files []struct {
				Path string `json:"path"`
			} `json:"files"`
		} `json:"plan"`
	}
	decode(t, text, &out)

	if !slices.Equal(out.Order, []string{"b.js", "a.js", "c.js"}) {
		t.Errorf("order: %v", out.Order)
	}
	if len(out.Demotions) != 1 || out.Demotions[0].From != "b.js" || out.Demotions[0].To != "a.js" {
		t.Errorf("demotions: %+v", out.Demotions)
	}
	if len(out.CyclicSets) != 1 || !slices.Equal(out.CyclicSets[0], []string{"a.js", "b.js"}) {
		t.Errorf("cyclic sets: %v", out.CyclicSets)
	}
	if out.Plan == nil || len(out.Plan.Files) != 3 {
		t.Errorf("plan: %+v", out.Plan)
	}
}

func TestAnalyzeCorpusRootsArgument(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"a.js": "goog.provide('a');\n",
		"b.js": "goog.provide('b');\ngoog.require('a');\n",
		"c.js": "goog.provide('c');\n",
	})
	srv := NewServer(nil, "test")
	text, isErr := call(t, srv.handleAnalyzeCorpus, map[string]any{
		"corpus_path": dir,
		"roots":       []string{"b.js"},
	})
	if isErr {
		t.Fatalf("analyze failed: %s", text)
	}
	var out struct {
		Order []string `json:"order"`
		Plan  any      `json:"plan"`
	}
	decode(t, text, &out)
	if !slices.Equal(out.Order, []string{"a.js", "b.js"}) {
		t.Errorf("order: %v", out.Order)
	}
	if out.Plan != nil {
		t.Error("plan returned without include_plan")
	}
}

func TestAnalyzeCorpusListsEveryError(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"a.js": "goog.provide('a');\ngoog.require('gone.one');\n",
		"b.js": "goog.provide('b');\ngoog.require('gone.two');\n",
	})
	srv := NewServer(nil, "test")
	text, isErr := call(t, srv.handleAnalyzeCorpus, map[string]any{"corpus_path": dir})
	if !isErr {
		t.Fatalf("expected error result, got %s", text)
	}
	if !strings.Contains(text, "2 error(s)") || !strings.Contains(text, "gone.one") || !strings.Contains(text, "gone.two") {
		t.Errorf("error text: %s", text)
	}
}

func TestAnalyzeCorpusMissingPath(t *testing.T) {
	srv := NewServer(nil, "test")
	text, isErr := call(t, srv.handleAnalyzeCorpus, map[string]any{})
	if !isErr || !strings.Contains(text, "corpus_path") {
		t.Errorf("got %q (isErr=%v)", text, isErr)
	}
}

func TestFindCycles(t *testing.T) {
	dir := writeCorpus(t, cyclicCorpus)
	srv := NewServer(nil, "test")
	text, isErr := call(t, srv.handleFindCycles, map[string]any{"corpus_path": dir})
	if isErr {
		t.Fatalf("find_cycles failed: %s", text)
	}
	var out struct {
		CyclicSets  [][]string `json:"cyclic_sets"`
		Unbreakable []string   `json:"unbreakable"`
		Demotions   []struct {
			From string `json:"from"`
		} `json:"demotions"`
	}
	decode(t, text, &out)
	if len(out.CyclicSets) != 1 || len(out.Demotions) != 1 || out.Unbreakable != nil {
		t.Errorf("unexpected result: %s", text)
	}
}

func TestFindCyclesUnbreakable(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"a.js": "goog.provide('a');\ngoog.require('b');\na.x = b.y;\n",
		"b.js": "goog.provide('b');\ngoog.require('a');\nb.y = a.z;\n",
	})
	srv := NewServer(nil, "test")
	text, isErr := call(t, srv.handleFindCycles, map[string]any{"corpus_path": dir})
	if isErr {
		t.Fatalf("find_cycles failed: %s", text)
	}
	var out struct {
		Unbreakable []string `json:"unbreakable"`
	}
	decode(t, text, &out)
	if !slices.Equal(out.Unbreakable, []string{"a.js", "b.js", "a.js"}) {
		t.Errorf("unbreakable: %v", out.Unbreakable)
	}
}

func TestResolveNamespace(t *testing.T) {
	dir := writeCorpus(t, cyclicCorpus)
	srv := NewServer(nil, "test")
	text, isErr := call(t, srv.handleResolveNamespace, map[string]any{
		"corpus_path": dir,
		"namespace":   "a",
	})
	if isErr {
		t.Fatalf("resolve failed: %s", text)
	}
	var out struct {
		Provider     string `json:"provider"`
		Selected     bool   `json:"selected"`
		Dependencies []struct {
			Namespace string `json:"namespace"`
			Provider  string `json:"provider"`
			Kind      string `json:"kind"`
			Usage     string `json:"usage"`
		} `json:"dependencies"`
		RequiredBy []struct {
			File string `json:"file"`
		} `json:"required_by"`
	}
	decode(t, text, &out)
	if out.Provider != "a.js" || !out.Selected {
		t.Errorf("provider: %s selected=%v", out.Provider, out.Selected)
	}
	if len(out.Dependencies) != 1 || out.Dependencies[0].Provider != "b.js" || out.Dependencies[0].Kind != "hard" || out.Dependencies[0].Usage != "eager" {
		t.Errorf("dependencies: %+v", out.Dependencies)
	}
	if len(out.RequiredBy) != 2 || out.RequiredBy[0].File != "b.js" || out.RequiredBy[1].File != "c.js" {
		t.Errorf("required_by: %+v", out.RequiredBy)
	}

	text, isErr = call(t, srv.handleResolveNamespace, map[string]any{
		"corpus_path": dir,
		"namespace":   "nope",
	})
	if !isErr || !strings.Contains(text, "nope") {
		t.Errorf("unknown namespace: %q", text)
	}
}

func TestCorporaTools(t *testing.T) {
	s, err := store.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	srv := NewServer(s, "test")

	dir := writeCorpus(t, cyclicCorpus)
	if text, isErr := call(t, srv.handleAnalyzeCorpus, map[string]any{"corpus_path": dir}); isErr {
		t.Fatalf("analyze failed: %s", text)
	}

	text, isErr := call(t, srv.handleListCorpora, nil)
	if isErr {
		t.Fatalf("list failed: %s", text)
	}
	var list []corpusInfo
	decode(t, text, &list)
	if len(list) != 1 || list[0].Fingerprint == "" {
		t.Fatalf("corpora: %+v", list)
	}

	if text, isErr := call(t, srv.handleDeleteCorpus, map[string]any{"corpus_name": list[0].Name}); isErr {
		t.Fatalf("delete failed: %s", text)
	}
	text, _ = call(t, srv.handleListCorpora, nil)
	decode(t, text, &list)
	if len(list) != 0 {
		t.Errorf("corpus not deleted: %+v", list)
	}

	if _, isErr := call(t, srv.handleDeleteCorpus, map[string]any{"corpus_name": "missing"}); !isErr {
		t.Error("expected error for unknown corpus")
	}
}

func TestCorporaToolsWithoutCache(t *testing.T) {
	srv := NewServer(nil, "test")
	if _, isErr := call(t, srv.handleListCorpora, nil); !isErr {
		t.Error("expected error when cache is disabled")
	}
}

func TestRescanWritesCache(t *testing.T) {
	ctx := context.Background()
	s, err := store.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	srv := NewServer(s, "test")

	dir := writeCorpus(t, cyclicCorpus)
	if err := srv.Rescan(ctx, "cyclic", dir); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	corpora, err := s.ListCorpora(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(corpora) != 1 || corpora[0].RootPath != dir {
		t.Errorf("corpora after rescan: %+v", corpora)
	}

	bad := writeCorpus(t, map[string]string{"a.js": "goog.provide('a');\ngoog.require('gone');\n"})
	if err := srv.Rescan(ctx, "bad", bad); err == nil {
		t.Error("expected error for inconsistent corpus")
	}
}
