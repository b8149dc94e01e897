package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DeusData/es6-module-converter/internal/store"
	"github.com/DeusData/es6-module-converter/internal/tools"
	"github.com/DeusData/es6-module-converter/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var (
		noCache   bool
		cachePath string
		watch     bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis tools over MCP on stdio",
		Long: `Serve analyze_corpus, find_cycles, resolve_namespace, list_corpora and
delete_corpus as MCP tools on stdin/stdout. With --watch, every corpus in the
scan cache is re-scanned in the background when its files change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var s *store.Store
			if !noCache {
				var err error
				if cachePath != "" {
					s, err = store.OpenPath(cachePath)
				} else {
					s, err = store.Open()
				}
				if err != nil {
					return fmt.Errorf("open cache: %w", err)
				}
				defer closeStore(s)
			}

			ctx := cmd.Context()
			srv := tools.NewServer(s, version)
			if watch && s != nil {
				go watcher.New(s, srv.Rescan).Run(ctx)
			}
			return srv.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the scan cache")
	cmd.Flags().StringVar(&cachePath, "cache-path", "", "scan cache database (default ~/.cache/es6-module-converter/scans.db)")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-scan cached corpora when their files change")
	return cmd
}
