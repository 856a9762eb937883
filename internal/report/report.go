// Package report writes a run's call paths to the output directory in the
// requested formats.
package report

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/DeusData/callpath-mapper/internal/pipeline"
)

// Format names one output sink.
type Format string

const (
	JSON   Format = "json"
	CSV    Format = "csv"
	HTML   Format = "html"
	SQLite Format = "sqlite"

	// All selects the three text formats. SQLite must be asked for by name.
	All = "all"
)

// ErrUnknownFormat is returned by ParseFormats for a name it does not know.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormats turns user-supplied names into formats, first occurrence
// order, without duplicates. Names are case-insensitive and may be comma
// separated. An empty list selects JSON.
func ParseFormats(names []string) ([]Format, error) {
	var out []Format
	add := func(f Format) {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	for _, raw := range names {
		for _, name := range strings.Split(raw, ",") {
			switch name = strings.ToLower(strings.TrimSpace(name)); name {
			case "":
			case All:
				add(JSON)
				add(CSV)
				add(HTML)
			case string(JSON), string(CSV), string(HTML), string(SQLite):
				add(Format(name))
			default:
				return nil, fmt.Errorf("%w: %q (want json, csv, html, sqlite or all)", ErrUnknownFormat, name)
			}
		}
	}
	if len(out) == 0 {
		out = []Format{JSON}
	}
	return out, nil
}

// FileName is the file a format is written to inside the output directory.
func (f Format) FileName() string {
	if f == SQLite {
		return "call_paths.db"
	}
	return "call_paths." + string(f)
}

// Write creates dir and writes res once per format. It returns the written
// file paths in format order.
func Write(dir string, res *pipeline.Result, formats []Format) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir output: %w", err)
	}

	var written []string
	for _, f := range formats {
		path := filepath.Join(dir, f.FileName())
		var err error
		switch f {
		case JSON:
			err = writeFile(path, func(w io.Writer) error { return WriteJSON(w, res) })
		case CSV:
			err = writeFile(path, func(w io.Writer) error { return WriteCSV(w, res) })
		case HTML:
			err = writeFile(path, func(w io.Writer) error { return WriteHTML(w, res) })
		case SQLite:
			err = WriteSQLite(path, res)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownFormat, f)
		}
		if err != nil {
			return written, fmt.Errorf("write %s: %w", f, err)
		}
		slog.Info("report.write", "format", f, "path", path)
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
