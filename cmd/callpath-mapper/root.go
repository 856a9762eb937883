package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DeusData/callpath-mapper/internal/config"
)

// app carries state shared by the subcommands of one invocation.
type app struct {
	configPath string
	verbose    bool
	debug      bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "callpath-mapper",
		Short: "Map UI call paths to backend controller operations",
		Long: `callpath-mapper scans Angular/TypeScript UI sources and ASP.NET C# backend
sources, links outbound HTTP calls to route templates, and lists every call
path from a UI entity to the backend operation it reaches.

Examples:
  callpath-mapper analyze --frontend web/src --backend api
  callpath-mapper analyze ./repo --format all --max-depth 3
  callpath-mapper match "/api/orders/${id}" "api/orders/{id}"
  callpath-mapper serve --db call_paths.db`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.setupLogging(cmd)
			return a.loadConfig()
		},
	}
	root.SetVersionTemplate("callpath-mapper {{.Version}}\n")
	root.PersistentFlags().StringVar(&a.configPath, "config", config.FileName, "Path to the YAML configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log progress at info level")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Log per-file detail at debug level")

	root.AddCommand(newAnalyzeCmd(a), newServeCmd(a), newMatchCmd())
	return root
}

// setupLogging installs a text handler on stderr. Stdout stays free for
// results and for the MCP transport.
func (a *app) setupLogging(cmd *cobra.Command) {
	level := slog.LevelWarn
	switch {
	case a.debug:
		level = slog.LevelDebug
	case a.verbose:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
}

func (a *app) loadConfig() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.configPath != config.FileName {
		if _, statErr := os.Stat(a.configPath); statErr != nil {
			slog.Warn("config.missing", "path", a.configPath)
		}
	}
	a.cfg = cfg
	return nil
}
