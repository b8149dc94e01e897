package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DeusData/es6-module-converter/internal/config"
	"github.com/DeusData/es6-module-converter/internal/cycles"
	"github.com/DeusData/es6-module-converter/internal/diag"
	"github.com/DeusData/es6-module-converter/internal/pipeline"
)

func newCyclesCmd() *cobra.Command {
	var sel selectionFlags
	cmd := &cobra.Command{
		Use:   "cycles [corpus-dir]",
		Short: "List hard dependency cycles and the demotions that break them",
		Long: `List the groups of selected files that depend on each other through hard
requires, and the requires that would be deferred to break them. Exits with
status 2 when a cycle cannot be broken. Nothing is written to the cache.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
			p := pipeline.New(cmd.Context(), s, dir, sel.options(cmd, cfg))
			c, err := p.Load()
			if err != nil {
				return reportFailure(stderr, err)
			}
			selection, err := p.Select(c)
			if err != nil {
				return reportFailure(stderr, err)
			}

			groups := cycles.Find(c.Graph, selection.Files)
			if len(groups) == 0 {
				fmt.Fprintln(stdout, successStyle.Render(fmt.Sprintf("✓ no cycles among %d selected files", len(selection.Files))))
				return nil
			}
			fmt.Fprintln(stdout, titleStyle.Render(fmt.Sprintf("%d cyclic group(s)", len(groups))))
			for _, g := range groups {
				fmt.Fprintln(stdout, "  "+strings.Join(g, ", "))
			}

			res, breakErr := cycles.Break(c.Graph, selection.Files)
			if res != nil && len(res.Demotions) > 0 {
				fmt.Fprintln(stdout, titleStyle.Render("demotions"))
				for _, d := range res.Demotions {
					fmt.Fprintln(stdout, "  "+d.String())
				}
			}
			var unbreakable *diag.UnbreakableCycleError
			if errors.As(breakErr, &unbreakable) {
				fmt.Fprintln(stdout, errorStyle.Render("unbreakable ")+strings.Join(unbreakable.Path, " -> "))
			}
			if breakErr != nil {
				return reportFailure(stderr, breakErr)
			}
			return nil
		},
	}
	sel.register(cmd)
	return cmd
}
