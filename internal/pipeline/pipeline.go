package pipeline

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/DeusData/callpath-mapper/internal/config"
	"github.com/DeusData/callpath-mapper/internal/discover"
	"github.com/DeusData/callpath-mapper/internal/extract"
	"github.com/DeusData/callpath-mapper/internal/graph"
	"github.com/DeusData/callpath-mapper/internal/lang"
	"github.com/DeusData/callpath-mapper/internal/resolve"
)

// ErrRootInaccessible is the only fatal run condition: a scan root that does
// not exist or cannot be listed. It is reported before any extraction.
var ErrRootInaccessible = discover.ErrRootInaccessible

// errUndecodable marks a file whose bytes are not UTF-8 text.
var errUndecodable = errors.New("not valid UTF-8 text")

// Reader supplies file contents. The default reads from disk.
type Reader interface {
	ReadFile(path string) ([]byte, error)
}

type osReader struct{}

func (osReader) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

// Options configures one run.
type Options struct {
	// Frontend and Backend roots are scanned with their layer fixed. Roots
	// scans a directory inferring each file's layer from its extension.
	Frontend []string
	Backend  []string
	Roots    []string

	MaxDepth     int
	ExcludeTests bool
	Workers      int
	ExcludeDirs  []string
	ExcludeGlobs []string
	Extensions   map[string]lang.Layer

	// Reader overrides how file contents are read. Nil reads from disk.
	Reader Reader
}

// OptionsFromConfig builds run options from a loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxDepth:     cfg.EffectiveMaxDepth(),
		ExcludeTests: cfg.EffectiveExcludeTests(),
		Workers:      cfg.EffectiveWorkers(),
		ExcludeDirs:  cfg.Discovery.ExcludeDirs,
		ExcludeGlobs: cfg.Discovery.ExcludeGlobs,
		Extensions:   cfg.Extensions(),
	}
}

// ScanRoots lists every configured root with its layer.
func (o Options) ScanRoots() []discover.Root {
	var roots []discover.Root
	for _, p := range o.Frontend {
		roots = append(roots, discover.Root{Path: p, Layer: lang.Frontend})
	}
	for _, p := range o.Backend {
		roots = append(roots, discover.Root{Path: p, Layer: lang.Backend})
	}
	for _, p := range o.Roots {
		roots = append(roots, discover.Root{Path: p})
	}
	return roots
}

// DiscoverOptions returns the discovery settings of o.
func (o Options) DiscoverOptions() *discover.Options {
	return &discover.Options{
		ExcludeDirs:  o.ExcludeDirs,
		ExcludeGlobs: o.ExcludeGlobs,
		ExcludeTests: o.ExcludeTests,
		Extensions:   o.Extensions,
	}
}

// Warning is a recovered per-file problem. It never aborts a run.
type Warning struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result is everything one run produced. It is discarded by the caller after
// output; nothing persists between runs unless a sink writes it.
type Result struct {
	RunID    string
	Files    []discover.FileInfo
	Entities []*extract.Entity
	Graph    *graph.Graph
	Paths    []resolve.CallPath
	Summary  resolve.Summary
	Warnings []Warning
	// Digest is an xxh3 over every scanned path and content hash; equal
	// digests mean the same input.
	Digest   string
	Duration time.Duration
}

// Pipeline is the per-run context: discover, read and extract, build, resolve.
// A Pipeline is used for one run and holds no state shared with other runs.
type Pipeline struct {
	ctx    context.Context
	opts   Options
	reader Reader
}

// New creates a Pipeline for one run.
func New(ctx context.Context, opts Options) *Pipeline {
	reader := opts.Reader
	if reader == nil {
		reader = osReader{}
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.MaxDepth < 0 {
		opts.MaxDepth = 0
	}
	return &Pipeline{ctx: ctx, opts: opts, reader: reader}
}

// Run discovers files under the configured roots and analyzes them.
func (p *Pipeline) Run() (*Result, error) {
	start := time.Now()
	roots := p.opts.ScanRoots()
	slog.Info("pipeline.start", "roots", len(roots), "max_depth", p.opts.MaxDepth)

	if err := discover.CheckRoots(roots); err != nil {
		return nil, err
	}

	files, err := discover.Discover(p.ctx, roots, p.opts.DiscoverOptions())
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	slog.Info("pipeline.discovered", "files", len(files))

	res, err := p.Analyze(files)
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	return res, nil
}

// Analyze extracts, builds and resolves an already discovered file list. The
// files must be ordered by path; Discover returns them that way.
func (p *Pipeline) Analyze(files []discover.FileInfo) (*Result, error) {
	start := time.Now()

	extracted, err := p.extractFiles(files)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID: uuid.NewString(),
		Files: files,
	}
	digest := xxh3.New()
	for i, r := range extracted {
		_, _ = digest.WriteString(files[i].Path)
		_, _ = digest.WriteString("\x00" + r.hash + "\n")
		if r.warning != nil {
			res.Warnings = append(res.Warnings, *r.warning)
			continue
		}
		if r.entity != nil {
			res.Entities = append(res.Entities, r.entity)
		}
	}
	res.Digest = hex.EncodeToString(digest.Sum(nil))

	// Sequential single writer: registration follows file order so duplicate
	// names resolve the same way every run.
	res.Graph = graph.Build(res.Entities)
	slog.Info("pipeline.graph",
		"frontend", len(res.Graph.FrontendEntities()),
		"backend", len(res.Graph.BackendEntities()),
		"replaced", res.Graph.Replaced())

	if err := p.ctx.Err(); err != nil {
		return nil, err
	}
	res.Paths = resolve.Resolve(res.Graph, p.opts.MaxDepth)

	res.Summary = resolve.Summarize(res.Graph, res.Paths, p.opts.MaxDepth)
	res.Summary.RunID = res.RunID
	res.Summary.FilesScanned = len(files)
	res.Summary.Warnings = len(res.Warnings)
	res.Summary.TestsExcluded = p.opts.ExcludeTests
	res.Duration = time.Since(start)

	slog.Info("pipeline.done",
		"paths", res.Summary.TotalPaths,
		"direct", res.Summary.DirectPathsCount,
		"indirect", res.Summary.IndirectPathsCount,
		"warnings", len(res.Warnings),
		"elapsed", res.Duration)
	return res, nil
}

type fileResult struct {
	entity  *extract.Entity
	hash    string
	warning *Warning
}

// extractFiles reads and extracts every file in parallel. Results are written
// by index so their order matches files regardless of scheduling.
func (p *Pipeline) extractFiles(files []discover.FileInfo) ([]fileResult, error) {
	results := make([]fileResult, len(files))
	numWorkers := p.opts.Workers
	if numWorkers > len(files) {
		numWorkers = len(files)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	g, gctx := errgroup.WithContext(p.ctx)
	g.SetLimit(numWorkers)
	for i, f := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = p.extractFile(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// extractFile never fails: unreadable or undecodable files become warnings.
func (p *Pipeline) extractFile(f discover.FileInfo) fileResult {
	data, err := p.reader.ReadFile(f.Path)
	if err == nil {
		data, err = decodeText(data)
	}
	if err != nil {
		slog.Warn("extract.skip", "path", f.Path, "err", err)
		return fileResult{warning: &Warning{Path: f.Path, Reason: err.Error()}}
	}

	hash := contentHash(data)
	e := extract.Extract(f.Path, f.Layer, string(data))
	if e == nil {
		slog.Debug("extract.nomatch", "path", f.RelPath)
		return fileResult{hash: hash}
	}
	e.ContentHash = hash
	slog.Debug("extract.entity", "path", f.RelPath, "name", e.Name, "kind", e.Kind,
		"ops", len(e.Operations), "calls", len(e.NetworkCalls), "routes", len(e.Routes))
	return fileResult{entity: e, hash: hash}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText strips a UTF-8 byte order mark and rejects binary or non-UTF-8
// content.
func decodeText(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return nil, errUndecodable
	}
	return data, nil
}

// contentHash returns the hex xxh3 digest of data.
func contentHash(data []byte) string {
	h := xxh3.Hash128(data).Bytes()
	return hex.EncodeToString(h[:])
}
