package main

import (
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/DeusData/callpath-mapper/internal/pipeline"
	"github.com/DeusData/callpath-mapper/internal/store"
	"github.com/DeusData/callpath-mapper/internal/tools"
)

func newServeCmd(a *app) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analyzer as MCP tools over stdio",
		Long: `Serve analyze_call_paths, match_route, list_entities and list_runs as MCP
tools on stdin/stdout. With --db every analysis is also recorded in a SQLite
database and list_runs reports the history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := tools.Options{
				Defaults: pipeline.OptionsFromConfig(a.cfg),
				Version:  version,
			}
			if dbPath != "" {
				s, err := store.OpenPath(dbPath)
				if err != nil {
					return fmt.Errorf("open db: %w", err)
				}
				defer s.Close()
				opts.Store = s
			}

			srv := tools.NewServer(opts)
			slog.Info("serve.start", "version", version, "db", dbPath)
			if err := srv.MCPServer().Run(cmd.Context(), &mcp.StdioTransport{}); err != nil && cmd.Context().Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Record every analysis in this SQLite database")
	return cmd
}
