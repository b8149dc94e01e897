package tools

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/es6-module-converter/internal/cycles"
	"github.com/DeusData/es6-module-converter/internal/diag"
	"github.com/DeusData/es6-module-converter/internal/pipeline"
)

func (s *Server) handleAnalyzeCorpus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	root, opts, err := corpusOptions(args)
	if err != nil {
		return errResult(err.Error()), nil
	}
	includePlan, _ := getBoolArg(args, "include_plan")

	s.runMu.Lock()
	defer s.runMu.Unlock()

	p := pipeline.New(ctx, s.store, root, opts)
	res, err := p.Run()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		slog.Warn("tool.analyze.err", "corpus", p.CorpusName, "err", err)
		return reportResult("analysis failed", err), nil
	}

	out := map[string]any{
		"corpus":      p.CorpusName,
		"path":        p.RepoPath,
		"fingerprint": res.Fingerprint,
		"stats":       res.Stats,
		"roots":       res.Selection.Roots,
		"order":       res.Order,
		"cyclic_sets": nonNilGroups(res.CyclicSets),
		"demotions":   nonNilDemotions(res.Cycles.Demotions),
		"warnings":    warningStrings(res.Warnings),
	}
	if len(res.Selection.SkippedTests) > 0 {
		out["skipped_tests"] = res.Selection.SkippedTests
	}
	if includePlan {
		out["plan"] = res.Plan
	}
	return jsonResult(out), nil
}

func warningStrings(ws []diag.Warning) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.String()
	}
	return out
}

func nonNilGroups(groups [][]string) [][]string {
	if groups == nil {
		return [][]string{}
	}
	return groups
}

func nonNilDemotions(ds []cycles.Demotion) []cycles.Demotion {
	if ds == nil {
		return []cycles.Demotion{}
	}
	return ds
}
