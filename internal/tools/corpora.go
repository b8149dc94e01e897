package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type corpusInfo struct {
	Name        string `json:"name"`
	RootPath    string `json:"root_path"`
	ScannedAt   string `json:"scanned_at"`
	Fingerprint string `json:"fingerprint"`
}

func (s *Server) handleListCorpora(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return errResult("scan cache is disabled"), nil
	}
	corpora, err := s.store.ListCorpora(ctx)
	if err != nil {
		return errResult(fmt.Sprintf("list corpora: %v", err)), nil
	}
	out := make([]corpusInfo, 0, len(corpora))
	for _, c := range corpora {
		out = append(out, corpusInfo{Name: c.Name, RootPath: c.RootPath, ScannedAt: c.ScannedAt, Fingerprint: c.Fingerprint})
	}
	return jsonResult(out), nil
}

func (s *Server) handleDeleteCorpus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return errResult("scan cache is disabled"), nil
	}
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	name := getStringArg(args, "corpus_name")
	if name == "" {
		return errResult("corpus_name is required"), nil
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	c, err := s.store.GetCorpus(ctx, name)
	if err != nil {
		return errResult(fmt.Sprintf("get corpus: %v", err)), nil
	}
	if c == nil {
		return errResult("corpus not found: " + name), nil
	}
	if err := s.store.DeleteCorpus(ctx, name); err != nil {
		return errResult(fmt.Sprintf("delete corpus: %v", err)), nil
	}
	return jsonResult(map[string]any{"deleted": name}), nil
}
