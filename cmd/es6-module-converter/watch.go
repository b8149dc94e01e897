package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/DeusData/es6-module-converter/internal/config"
	"github.com/DeusData/es6-module-converter/internal/pipeline"
	"github.com/DeusData/es6-module-converter/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var sel selectionFlags
	var out planOutput
	cmd := &cobra.Command{
		Use:   "watch [corpus-dir]",
		Short: "Analyze a corpus and re-analyze whenever a source file changes",
		Long: `Run analyze once, then poll the corpus and run it again after every change.
A failed run is reported and the previous plan is left in place until the
next change.`,
		Args: cobra.MaximumNArgs(1),
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

			run := func(_ context.Context, _, root string) error {
				// settings may change between runs
				opts := sel.options(cmd, config.LoadConfig(root))
				if _, err := analyze(cmd, s, root, opts, &out); err != nil {
					if errors.Is(err, context.Canceled) {
						return err
					}
					slog.Warn("watch.run.failed", "corpus", root, "err", err)
				}
				return nil
			}

			ctx := cmd.Context()
			if err := run(ctx, "", dir); err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), subtitleStyle.Render("watching "+dir+" (ctrl-c to stop)"))
			w := watcher.NewForRoot(watcher.Target{Name: pipeline.CorpusNameFromPath(dir), RootPath: dir}, run)
			w.Run(ctx)
			return nil
		},
	}
	sel.register(cmd)
	out.register(cmd)
	return cmd
}
