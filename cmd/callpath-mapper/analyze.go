package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/DeusData/callpath-mapper/internal/config"
	"github.com/DeusData/callpath-mapper/internal/pipeline"
	"github.com/DeusData/callpath-mapper/internal/report"
	"github.com/DeusData/callpath-mapper/internal/watcher"
)

var errNoRoots = errors.New("no source roots: pass --frontend/--backend or a directory")

type analyzeFlags struct {
	frontend     []string
	backend      []string
	maxDepth     int
	outputDir    string
	formats      []string
	excludeTests bool
	includeTests bool
	excludeDirs  []string
	excludeGlobs []string
	workers      int
	watch        bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	f := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "analyze [dir...]",
		Short: "Resolve call paths and write them to the output directory",
		Long: `Resolve every call path from a UI entity to a backend operation.

Roots given with --frontend and --backend are scanned as that layer only.
Positional directories are scanned with each file's layer taken from its
extension (.ts/.js are UI, .cs is backend).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, formats, outDir, err := f.resolve(cmd, a.cfg, args)
			if err != nil {
				return err
			}
			if err := analyzeOnce(cmd.Context(), cmd.OutOrStdout(), opts, formats, outDir); err != nil {
				return err
			}
			if !f.watch {
				return nil
			}
			return watch(cmd.Context(), cmd.OutOrStdout(), opts, formats, outDir)
		},
	}

	fl := cmd.Flags()
	fl.StringSliceVar(&f.frontend, "frontend", nil, "UI source root (repeatable)")
	fl.StringSliceVar(&f.backend, "backend", nil, "Backend source root (repeatable)")
	fl.IntVar(&f.maxDepth, "max-depth", 5, "Maximum collaborator hops for indirect paths")
	fl.StringVarP(&f.outputDir, "output-dir", "o", "call_path_analysis", "Output directory")
	fl.StringSliceVar(&f.formats, "format", nil, "Output formats: json, csv, html, sqlite, all (default json)")
	fl.StringSliceVar(&f.formats, "output-formats", nil, "Alias of --format")
	_ = fl.MarkHidden("output-formats")
	fl.BoolVar(&f.excludeTests, "exclude-tests", true, "Skip spec/test files")
	fl.BoolVar(&f.includeTests, "include-tests", false, "Scan spec/test files too")
	fl.StringSliceVar(&f.excludeDirs, "exclude-dirs", nil, "Additional directory names to skip")
	fl.StringSliceVar(&f.excludeGlobs, "exclude-globs", nil, "Root-relative glob patterns to skip")
	fl.IntVar(&f.workers, "workers", 0, "Parallel file readers (default: number of CPUs)")
	fl.BoolVar(&f.watch, "watch", false, "Re-run whenever a source file changes")
	return cmd
}

// resolve merges the configuration file with the flags that were set.
func (f *analyzeFlags) resolve(cmd *cobra.Command, cfg *config.Config, args []string) (pipeline.Options, []report.Format, string, error) {
	fl := cmd.Flags()
	if fl.Changed("max-depth") {
		cfg.SetMaxDepth(f.maxDepth)
	}
	if fl.Changed("exclude-tests") {
		cfg.SetExcludeTests(f.excludeTests)
	}
	if fl.Changed("include-tests") {
		cfg.SetExcludeTests(!f.includeTests)
	}
	if fl.Changed("workers") {
		cfg.SetWorkers(f.workers)
	}
	if fl.Changed("output-dir") {
		cfg.SetOutputDir(f.outputDir)
	}
	if err := cfg.Validate(); err != nil {
		return pipeline.Options{}, nil, "", err
	}

	names := cfg.EffectiveFormats()
	if fl.Changed("format") || fl.Changed("output-formats") {
		names = f.formats
	}
	formats, err := report.ParseFormats(names)
	if err != nil {
		return pipeline.Options{}, nil, "", err
	}

	opts := pipeline.OptionsFromConfig(cfg)
	opts.Frontend = f.frontend
	opts.Backend = f.backend
	opts.Roots = args
	opts.ExcludeDirs = append(append([]string(nil), opts.ExcludeDirs...), f.excludeDirs...)
	opts.ExcludeGlobs = append(append([]string(nil), opts.ExcludeGlobs...), f.excludeGlobs...)
	if len(opts.ScanRoots()) == 0 {
		return pipeline.Options{}, nil, "", errNoRoots
	}
	return opts, formats, cfg.EffectiveOutputDir(), nil
}

func analyzeOnce(ctx context.Context, out io.Writer, opts pipeline.Options, formats []report.Format, outDir string) error {
	res, err := pipeline.New(ctx, opts).Run()
	if err != nil {
		return err
	}
	if _, err := report.Write(outDir, res, formats); err != nil {
		return err
	}
	printSummary(out, res, outDir)
	return nil
}

func printSummary(out io.Writer, res *pipeline.Result, outDir string) {
	s := res.Summary
	fmt.Fprintln(out, "Analysis complete!")
	fmt.Fprintf(out, "Found %d call paths:\n", s.TotalPaths)
	fmt.Fprintf(out, "  - %d direct paths\n", s.DirectPathsCount)
	fmt.Fprintf(out, "  - %d indirect paths\n", s.IndirectPathsCount)
	if s.Warnings > 0 {
		fmt.Fprintf(out, "Skipped %d of %d files (see warnings in the output)\n", s.Warnings, s.FilesScanned)
	}
	fmt.Fprintf(out, "Results saved to: %s\n", outDir)
}

func watch(ctx context.Context, out io.Writer, opts pipeline.Options, formats []report.Format, outDir string) error {
	w, err := watcher.New(watcher.Config{
		Roots:    opts.ScanRoots(),
		Discover: opts.DiscoverOptions(),
	}, func(ctx context.Context) error {
		return analyzeOnce(ctx, out, opts, formats, outDir)
	})
	if err != nil {
		return err
	}
	defer w.Close()
	fmt.Fprintln(out, "Watching for changes (Ctrl+C to stop)...")
	return w.Run(ctx)
}
