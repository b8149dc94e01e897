package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/es6-module-converter/internal/config"
	"github.com/DeusData/es6-module-converter/internal/diag"
	"github.com/DeusData/es6-module-converter/internal/pipeline"
	"github.com/DeusData/es6-module-converter/internal/store"
)

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp   *mcp.Server
	store *store.Store // nil disables the scan cache
	// runMu serializes pipeline runs; a run mutates its graph and writes the
	// shared cache.
	runMu sync.Mutex
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(s *store.Store, version string) *Server {
	srv := &Server{
		store: s,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "es6-module-converter",
				Version: version,
			},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Run serves the tools over stdio until ctx is done or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// Rescan re-runs the pipeline for a corpus with its .es6config settings,
// serialized with tool calls. Its signature matches watcher.RunFunc.
func (s *Server) Rescan(ctx context.Context, corpusName, rootPath string) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	opts := pipeline.OptionsFromConfig(config.LoadConfig(rootPath))
	if _, err := pipeline.New(ctx, s.store, rootPath, opts).Run(); err != nil {
		slog.Warn("tool.rescan.err", "corpus", corpusName, "err", err)
		return err
	}
	return nil
}

const selectionProps = `
				"corpus_path": {
					"type": "string",
					"description": "Absolute path to the corpus root"
				},
				"roots": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Entry-point files relative to the corpus root. Default: every non-test file"
				},
				"root_namespaces": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Entry points named by provided namespace"
				},
				"include_tests": {
					"type": "boolean",
					"description": "Also select the test files of every selected file"
				},
				"exclude": {
					"type": "array",
					"items": {"type": "string"},
					"description": "Glob patterns of files that must not be selected"
				}`

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "analyze_corpus",
		Description: "Scan a goog.provide/goog.require corpus, validate it, select the closure of the entry points, break hard dependency cycles and return the load order, demotions and warnings. With include_plan the full per-file conversion plan is returned.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {` + selectionProps + `,
				"include_plan": {
					"type": "boolean",
					"description": "Include the per-file import plan"
				}
			},
			"required": ["corpus_path"]
		}`),
	}, s.handleAnalyzeCorpus)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "find_cycles",
		Description: "Report hard dependency cycles among the selected files: cyclic groups, the demotions that would break them, and the first cycle that cannot be broken, if any. Nothing is written to the cache.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {` + selectionProps + `
			},
			"required": ["corpus_path"]
		}`),
	}, s.handleFindCycles)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "resolve_namespace",
		Description: "Return the file providing a namespace, its declarations with resolved providers, and the files that require it.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"corpus_path": {
					"type": "string",
					"description": "Absolute path to the corpus root"
				},
				"namespace": {
					"type": "string",
					"description": "Dotted namespace, e.g. 'goog.dom'"
				}
			},
			"required": ["corpus_path", "namespace"]
		}`),
	}, s.handleResolveNamespace)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_corpora",
		Description: "List corpora in the scan cache with their last scan time and content fingerprint.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleListCorpora)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "delete_corpus",
		Description: "Drop a corpus and its cached scan records from the scan cache.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"corpus_name": {
					"type": "string",
					"description": "Name of the corpus as shown by list_corpora"
				}
			},
			"required": ["corpus_name"]
		}`),
	}, s.handleDeleteCorpus)
}

// jsonResult marshals data to JSON and returns as tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// reportResult lists every error inside err, one per line.
func reportResult(prefix string, err error) *mcp.CallToolResult {
	errs := diag.Flatten(err)
	lines := make([]string, 0, len(errs)+1)
	lines = append(lines, fmt.Sprintf("%s: %d error(s)", prefix, len(errs)))
	for _, e := range errs {
		lines = append(lines, "- "+e.Error())
	}
	return errResult(strings.Join(lines, "\n"))
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

// getStringArg extracts a string argument from parsed args.
func getStringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// getBoolArg extracts a boolean argument; ok is false when absent.
func getBoolArg(args map[string]any, key string) (value, ok bool) {
	value, ok = args[key].(bool)
	return value, ok
}

// getStringSliceArg extracts a list of strings, skipping non-strings.
func getStringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// corpusOptions resolves corpus_path and merges the corpus .es6config with
// the selection arguments; arguments win.
func corpusOptions(args map[string]any) (string, pipeline.Options, error) {
	root := getStringArg(args, "corpus_path")
	if root == "" {
		return "", pipeline.Options{}, fmt.Errorf("corpus_path is required")
	}
	absPath, err := filepath.Abs(root)
	if err != nil {
		return "", pipeline.Options{}, fmt.Errorf("invalid path: %w", err)
	}

	opts := pipeline.OptionsFromConfig(config.LoadConfig(absPath))
	if v := getStringSliceArg(args, "roots"); len(v) > 0 {
		opts.Roots = v
	}
	if v := getStringSliceArg(args, "root_namespaces"); len(v) > 0 {
		opts.RootNamespaces = v
	}
	if v, ok := getBoolArg(args, "include_tests"); ok {
		opts.IncludeTests = v
	}
	if v := getStringSliceArg(args, "exclude"); len(v) > 0 {
		opts.Exclude = v
	}
	return absPath, opts, nil
}
