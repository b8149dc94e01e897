package tools

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/es6-module-converter/internal/pipeline"
	"github.com/DeusData/es6-module-converter/internal/scan"
)

type resolvedDep struct {
	Namespace string     `json:"namespace"`
	Provider  string     `json:"provider"`
	Kind      scan.Kind  `json:"kind"`
	Usage     scan.Usage `json:"usage"`
	Line      int        `json:"line"`
}

type requiredBy struct {
	File string    `json:"file"`
	Kind scan.Kind `json:"kind"`
	Line int       `json:"line"`
}

func (s *Server) handleResolveNamespace(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	root, opts, err := corpusOptions(args)
	if err != nil {
		return errResult(err.Error()), nil
	}
	ns := getStringArg(args, "namespace")
	if ns == "" {
		return errResult("namespace is required"), nil
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
	g := c.Graph

	provider, err := g.Resolve(ns)
	if err != nil {
		return errResult(err.Error()), nil
	}
	f := g.File(provider)

	deps := make([]resolvedDep, 0, len(f.Deps))
	for _, d := range f.Deps {
		p, _ := g.Resolve(d.Namespace)
		deps = append(deps, resolvedDep{Namespace: d.Namespace, Provider: p, Kind: d.Kind, Usage: d.Usage, Line: d.Line})
	}

	dependents := []requiredBy{}
	for _, path := range g.AllFiles() {
		for _, d := range g.DependenciesOf(path) {
			if d.Namespace == ns {
				dependents = append(dependents, requiredBy{File: path, Kind: d.Kind, Line: d.Line})
			}
		}
	}

	out := map[string]any{
		"namespace":    ns,
		"provider":     provider,
		"provides":     f.Provides,
		"module":       f.Module,
		"dependencies": deps,
		"required_by":  dependents,
	}
	// omitted when the configured roots cannot be selected
	if sel, err := p.Select(c); err == nil {
		out["selected"] = sel.Contains(provider)
	}
	return jsonResult(out), nil
}
