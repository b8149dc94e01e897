package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/DeusData/es6-module-converter/internal/closure"
	"github.com/DeusData/es6-module-converter/internal/config"
	"github.com/DeusData/es6-module-converter/internal/cycles"
	"github.com/DeusData/es6-module-converter/internal/diag"
	"github.com/DeusData/es6-module-converter/internal/discover"
	"github.com/DeusData/es6-module-converter/internal/graph"
	"github.com/DeusData/es6-module-converter/internal/store"
	"github.com/DeusData/es6-module-converter/internal/validate"
)

// Options configures one run. Zero values mean: every file is a root, no
// tests, no exclusions, NumCPU workers.
type Options struct {
	Roots          []string // relative file paths
	RootNamespaces []string
	IncludeTests   bool
	Exclude        []string
	TestSuffixes   []string
	IgnoreDirs     []string
	Workers        int
}

// OptionsFromConfig maps a corpus config onto run options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Roots:          cfg.Roots,
		RootNamespaces: cfg.RootNamespaces,
		IncludeTests:   cfg.EffectiveIncludeTests(),
		Exclude:        cfg.Exclude,
		TestSuffixes:   cfg.TestSuffixes,
		IgnoreDirs:     cfg.IgnoreDirs,
		Workers:        cfg.EffectiveWorkers(runtime.NumCPU()),
	}
}

// Pipeline orchestrates scanning, graph building, validation, selection and
// cycle breaking for one corpus.
type Pipeline struct {
	ctx        context.Context
	Store      *store.Store // nil disables the scan cache
	RepoPath   string
	CorpusName string
	opts       Options
}

// Stats summarizes a run.
type Stats struct {
	Files     int `json:"files"`
	Scanned   int `json:"scanned"`
	Cached    int `json:"cached"`
	Selected  int `json:"selected"`
	HardEdges int `json:"hard_edges"`
	Demotions int `json:"demotions"`
}

// Result is the outcome of a successful run.
type Result struct {
	Graph       *graph.Graph
	Selection   *closure.Selection
	Cycles      *cycles.Result
	CyclicSets  [][]string // cyclic groups among selected files before breaking
	Order       []string   // selected files, dependencies first
	Plan        *Plan
	Fingerprint string
	Warnings    []diag.Warning
	Stats       Stats
}

// New creates a new Pipeline.
func New(ctx context.Context, s *store.Store, repoPath string, opts Options) *Pipeline {
	if abs, err := filepath.Abs(repoPath); err == nil {
		repoPath = abs
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Pipeline{
		ctx:        ctx,
		Store:      s,
		RepoPath:   repoPath,
		CorpusName: CorpusNameFromPath(repoPath),
		opts:       opts,
	}
}

// CorpusNameFromPath derives a unique corpus name from an absolute path
// by replacing path separators with dashes and trimming the leading dash.
func CorpusNameFromPath(absPath string) string {
	cleaned := filepath.ToSlash(filepath.Clean(absPath))
	name := strings.ReplaceAll(cleaned, "/", "-")
	name = strings.TrimLeft(name, "-")
	if name == "" {
		return "root"
	}
	return name
}

func (p *Pipeline) checkCancel() error {
	return p.ctx.Err()
}

// Corpus is a scanned and validated corpus: every declaration resolves and
// every namespace has one provider.
type Corpus struct {
	Graph       *graph.Graph
	Files       []discover.FileInfo
	Warnings    []diag.Warning
	Fingerprint string
	scans       *scanSet
}

// Load discovers, scans and validates the corpus. Graph consistency errors
// come back together as one *diag.Report.
func (p *Pipeline) Load() (*Corpus, error) {
	t := time.Now()
	files, err := discover.Discover(p.ctx, p.RepoPath, &discover.Options{IgnoreDirs: p.opts.IgnoreDirs})
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	slog.Info("pass.timing", "pass", "discover", "files", len(files), "elapsed", time.Since(t))

	t = time.Now()
	scanned, err := p.scanFiles(files)
	if err != nil {
		return nil, err
	}
	slog.Info("pass.timing", "pass", "scan", "scanned", scanned.fresh, "cached", scanned.cached, "elapsed", time.Since(t))
	if err := p.checkCancel(); err != nil {
		return nil, err
	}

	t = time.Now()
	g, buildErr := graph.Build(scanned.records)
	if err := diag.Merge(buildErr, validate.Validate(g)); err != nil {
		slog.Warn("pipeline.invalid", "errors", len(diag.Flatten(err)))
		return nil, err
	}
	slog.Info("pass.timing", "pass", "graph", "files", g.Len(), "namespaces", len(g.Namespaces()), "elapsed", time.Since(t))

	return &Corpus{
		Graph:       g,
		Files:       files,
		Warnings:    scanned.warnings,
		Fingerprint: scanned.fingerprint(),
		scans:       scanned,
	}, nil
}

// Run executes every pass. Any error leaves the cache untouched.
func (p *Pipeline) Run() (*Result, error) {
	slog.Info("pipeline.start", "corpus", p.CorpusName, "path", p.RepoPath)
	start := time.Now()

	c, err := p.Load()
	if err != nil {
		return nil, err
	}
	g := c.Graph

	t := time.Now()
	sel, err := p.Select(c)
	if err != nil {
		return nil, err
	}
	slog.Info("pass.timing", "pass", "select", "roots", len(sel.Roots), "files", len(sel.Files), "elapsed", time.Since(t))

	t = time.Now()
	cyclic := cycles.Find(g, sel.Files)
	broken, err := cycles.Break(g, sel.Files)
	if err != nil {
		return nil, err
	}
	order, err := g.LoadOrder(sel.Files)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	slog.Info("pass.timing", "pass", "cycles", "groups", len(cyclic), "demotions", len(broken.Demotions), "elapsed", time.Since(t))

	warnings := append(append([]diag.Warning(nil), c.Warnings...), sel.Warnings...)
	diag.SortWarnings(warnings)
	for _, w := range warnings {
		slog.Warn("scan.warning", "file", w.File, "line", w.Line, "msg", w.Message)
	}

	res := &Result{
		Graph:       g,
		Selection:   sel,
		Cycles:      broken,
		CyclicSets:  cyclic,
		Order:       order,
		Fingerprint: c.Fingerprint,
		Warnings:    warnings,
		Stats: Stats{
			Files:     len(c.Files),
			Scanned:   c.scans.fresh,
			Cached:    c.scans.cached,
			Selected:  len(sel.Files),
			HardEdges: g.HardEdgeCount(),
			Demotions: len(broken.Demotions),
		},
	}
	res.Plan = BuildPlan(p.CorpusName, g, order, broken.Demotions, warnings)

	if err := p.saveScans(c.scans, c.Files); err != nil {
		slog.Warn("cache.write.err", "err", err)
	}

	slog.Info("pipeline.done", "selected", len(sel.Files), "demotions", len(broken.Demotions), "elapsed", time.Since(start))
	return res, nil
}

// Select resolves the configured roots and computes the closure. With no
// roots configured every file that is neither excluded nor a test is a root.
func (p *Pipeline) Select(c *Corpus) (*closure.Selection, error) {
	g := c.Graph
	roots := append([]string(nil), p.opts.Roots...)
	for i, r := range roots {
		roots[i] = filepath.ToSlash(filepath.Clean(r))
	}
	if len(p.opts.RootNamespaces) > 0 {
		nsRoots, err := closure.RootsForNamespaces(g, p.opts.RootNamespaces)
		if err != nil {
			return nil, err
		}
		roots = append(roots, nsRoots...)
	}
	if len(roots) == 0 {
		for _, f := range g.AllFiles() {
			if closure.Excluded(f, p.opts.Exclude) || closure.IsTest(f, p.opts.TestSuffixes) {
				continue
			}
			roots = append(roots, f)
		}
	}
	return closure.Select(g, roots, closure.Options{
		IncludeTests: p.opts.IncludeTests,
		Exclude:      p.opts.Exclude,
		TestSuffixes: p.opts.TestSuffixes,
	})
}
