package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/DeusData/es6-module-converter/internal/config"
	"github.com/DeusData/es6-module-converter/internal/diag"
	"github.com/DeusData/es6-module-converter/internal/pipeline"
	"github.com/DeusData/es6-module-converter/internal/store"
)

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:   "es6-module-converter",
		Short: "Plan the conversion of a goog.provide/goog.require corpus to ES modules",
		Long: titleStyle.Render("es6-module-converter") + subtitleStyle.Render(" - goog.provide/goog.require to ES modules") + `

Scans a Closure-style JavaScript corpus, checks that every required
namespace has exactly one provider, selects the files reachable from the
entry points, breaks hard dependency cycles by deferring imports that are
only used at call time, and writes the resulting import plan.

Settings are read from .es6config (YAML) in the corpus root; flags win.

` + subtitleStyle.Render("Examples:") + `
  es6-module-converter analyze ./src -o plan.json
  es6-module-converter analyze ./src --namespace app.main --include-tests
  es6-module-converter cycles ./src
  es6-module-converter scan ./src/app.js
  es6-module-converter watch ./src -o plan.json
  es6-module-converter serve`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(cmd.ErrOrStderr(), verbose)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newCyclesCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newScanCmd())
	return root
}

func setupLogging(w io.Writer, verbose bool) {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          "es6",
		Level:           level,
		ReportTimestamp: verbose,
	})
	slog.SetDefault(slog.New(logger))
}

// selectionFlags are the flags shared by commands that run the pipeline.
type selectionFlags struct {
	roots        []string
	namespaces   []string
	exclude      []string
	includeTests bool
	workers      int
	noCache      bool
	cachePath    string
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringSliceVar(&f.roots, "root", nil, "entry-point file relative to the corpus root (repeatable)")
	fs.StringSliceVar(&f.namespaces, "namespace", nil, "entry point named by a provided namespace (repeatable)")
	fs.StringSliceVar(&f.exclude, "exclude", nil, "glob of files that must not be selected (repeatable)")
	fs.BoolVar(&f.includeTests, "include-tests", false, "also select the test files of selected files")
	fs.IntVar(&f.workers, "workers", 0, "parallel scan workers (default: number of CPUs)")
	fs.BoolVar(&f.noCache, "no-cache", false, "disable the scan cache")
	fs.StringVar(&f.cachePath, "cache-path", "", "scan cache database (default ~/.cache/es6-module-converter/scans.db)")
}

// options merges the corpus config with the flags; flags set on the command
// line win.
func (f *selectionFlags) options(cmd *cobra.Command, cfg *config.Config) pipeline.Options {
	opts := pipeline.OptionsFromConfig(cfg)
	fs := cmd.Flags()
	if fs.Changed("root") {
		opts.Roots = f.roots
	}
	if fs.Changed("namespace") {
		opts.RootNamespaces = f.namespaces
	}
	if fs.Changed("exclude") {
		opts.Exclude = f.exclude
	}
	if fs.Changed("include-tests") {
		opts.IncludeTests = f.includeTests
	}
	if fs.Changed("workers") && f.workers > 0 {
		opts.Workers = f.workers
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return opts
}

// openStore opens the scan cache, or returns nil when it is disabled.
func (f *selectionFlags) openStore(cfg *config.Config) (*store.Store, error) {
	if f.noCache || !cfg.EffectiveCache() {
		return nil, nil
	}
	path := f.cachePath
	if path == "" {
		path = cfg.CachePath
	}
	if path == "" {
		return store.Open()
	}
	return store.OpenPath(path)
}

func corpusDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	return filepath.Abs(dir)
}

// reportFailure prints every error inside err and maps it to an exit code.
func reportFailure(w io.Writer, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	errs := diag.Flatten(err)
	for _, e := range errs {
		fmt.Fprintln(w, errorStyle.Render("✗ ")+e.Error())
	}
	code := exitFailure
	var unbreakable *diag.UnbreakableCycleError
	if errors.As(err, &unbreakable) {
		code = exitUnbreakable
	}
	return &ExitError{Code: code, Err: fmt.Errorf("conversion failed with %d error(s)", len(errs))}
}

func closeStore(s *store.Store) {
	if s == nil {
		return
	}
	if err := s.Close(); err != nil {
		slog.Warn("store.close", "err", err)
	}
}
