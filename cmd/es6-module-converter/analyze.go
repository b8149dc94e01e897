package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/DeusData/es6-module-converter/internal/config"
	"github.com/DeusData/es6-module-converter/internal/pipeline"
	"github.com/DeusData/es6-module-converter/internal/store"
)

// planOutput is where and how a plan is written.
type planOutput struct {
	path   string
	format string
}

func (o *planOutput) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.path, "output", "o", "", "write the plan to this file instead of stdout")
	cmd.Flags().StringVar(&o.format, "format", "json", "plan format: json or yaml")
}

func (o *planOutput) validate() error {
	switch o.format {
	case "json", "yaml", "yml":
		return nil
	}
	return fmt.Errorf("unknown format %q (want json or yaml)", o.format)
}

func (o *planOutput) write(stdout io.Writer, plan *pipeline.Plan) error {
	if o.path == "" {
		return plan.Write(stdout, o.format)
	}
	f, err := os.Create(o.path)
	if err != nil {
		return err
	}
	if err := plan.Write(f, o.format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newAnalyzeCmd() *cobra.Command {
	var sel selectionFlags
	var out planOutput
	cmd := &cobra.Command{
		Use:   "analyze [corpus-dir]",
		Short: "Scan, validate and order a corpus, then write the import plan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := out.validate(); err != nil {
				return err
			}
			dir, err := corpusDir(args)
			if err != nil {
				return err
			}
			cfg := config.LoadConfig(dir)
			s, err := sel.openStore(cfg)
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer closeStore(s)

			_, err = analyze(cmd, s, dir, sel.options(cmd, cfg), &out)
			return err
		},
	}
	sel.register(cmd)
	out.register(cmd)
	return cmd
}

// analyze runs the pipeline once, writes the plan and prints a summary to
// stderr.
func analyze(cmd *cobra.Command, s *store.Store, dir string, opts pipeline.Options, out *planOutput) (*pipeline.Result, error) {
	stderr := cmd.ErrOrStderr()
	res, err := pipeline.New(cmd.Context(), s, dir, opts).Run()
	if err != nil {
		return nil, reportFailure(stderr, err)
	}
	if err := out.write(cmd.OutOrStdout(), res.Plan); err != nil {
		return nil, fmt.Errorf("write plan: %w", err)
	}
	printSummary(stderr, dir, res)
	return res, nil
}

func printSummary(w io.Writer, dir string, res *pipeline.Result) {
	st := res.Stats
	fmt.Fprintln(w, titleStyle.Render("corpus ")+pathStyle.Render(dir))
	fmt.Fprintln(w, subtitleStyle.Render(fmt.Sprintf("  %d files (%d scanned, %d cached), %d selected, %d hard edges",
		st.Files, st.Scanned, st.Cached, st.Selected, st.HardEdges)))
	for _, d := range res.Cycles.Demotions {
		fmt.Fprintln(w, "  deferred "+d.String())
	}
	for _, t := range res.Selection.SkippedTests {
		fmt.Fprintln(w, warningStyle.Render("  skipped test ")+t)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintln(w, warningStyle.Render("  warning ")+warn.String())
	}
	fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("✓ %d files ordered, %d demotions", len(res.Order), st.Demotions)))
}
