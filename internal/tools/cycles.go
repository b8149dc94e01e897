package tools

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/es6-module-converter/internal/cycles"
	"github.com/DeusData/es6-module-converter/internal/diag"
	"github.com/DeusData/es6-module-converter/internal/pipeline"
)

func (s *Server) handleFindCycles(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	root, opts, err := corpusOptions(args)
	if err != nil {
		return errResult(err.Error()), nil
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	p := pipeline.New(ctx, s.store, root, opts)
	c, err := p.Load()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return reportResult("corpus is inconsistent", err), nil
	}
	sel, err := p.Select(c)
	if err != nil {
		return reportResult("selection failed", err), nil
	}

	out := map[string]any{
		"corpus":      p.CorpusName,
		"selected":    len(sel.Files),
		"cyclic_sets": nonNilGroups(cycles.Find(c.Graph, sel.Files)),
	}
	res, err := cycles.Break(c.Graph, sel.Files)
	var unbreakable *diag.UnbreakableCycleError
	switch {
	case errors.As(err, &unbreakable):
		out["unbreakable"] = unbreakable.Path
	case err != nil:
		return errResult(err.Error()), nil
	}
	if res != nil {
		out["demotions"] = nonNilDemotions(res.Demotions)
	}
	return jsonResult(out), nil
}
