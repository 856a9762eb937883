package report

import (
	"encoding/csv"
	"encoding/json"
	"html/template"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/DeusData/callpath-mapper/internal/pipeline"
	"github.com/DeusData/callpath-mapper/internal/resolve"
)

// Document is the JSON shape of a run.
type Document struct {
	Summary       resolve.Summary    `json:"summary"`
	DirectPaths   []resolve.CallPath `json:"direct_paths"`
	IndirectPaths []resolve.CallPath `json:"indirect_paths"`
	Warnings      []pipeline.Warning `json:"warnings"`
}

// NewDocument splits the run's paths by type. Empty lists encode as [].
func NewDocument(res *pipeline.Result) Document {
	direct, indirect := resolve.Split(res.Paths)
	doc := Document{
		Summary:       res.Summary,
		DirectPaths:   direct,
		IndirectPaths: indirect,
		Warnings:      res.Warnings,
	}
	if doc.DirectPaths == nil {
		doc.DirectPaths = []resolve.CallPath{}
	}
	if doc.IndirectPaths == nil {
		doc.IndirectPaths = []resolve.CallPath{}
	}
	if doc.Warnings == nil {
		doc.Warnings = []pipeline.Warning{}
	}
	return doc
}

// WriteJSON writes the summary and the direct and indirect paths.
func WriteJSON(w io.Writer, res *pipeline.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(NewDocument(res))
}

var csvHeader = []string{
	"Screen", "Service Method", "Class Name", "Method Name",
	"Path Type", "Call Chain", "File Path", "Line Number", "Depth", "Confidence",
}

// WriteCSV writes one row per path, direct paths first.
func WriteCSV(w io.Writer, res *pipeline.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	direct, indirect := resolve.Split(res.Paths)
	for _, p := range append(direct, indirect...) {
		row := []string{
			p.Screen, p.ServiceMethod, p.ClassName, p.MethodName,
			string(p.PathType), strings.Join(p.Chain, " -> "), p.FilePath,
			strconv.Itoa(p.Line), strconv.Itoa(p.Depth), strconv.FormatFloat(p.Confidence, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"chain": func(hops []string) string { return strings.Join(hops, " → ") },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Call Path Analysis</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; }
.summary { background: #f5f5f5; padding: 15px; border-radius: 5px; margin-bottom: 20px; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
th { background-color: #4CAF50; color: white; }
.direct { background-color: #e8f5e8; }
.indirect { background-color: #fff3cd; }
.call-chain { font-family: monospace; font-size: 0.9em; }
</style>
</head>
<body>
<h1>Call Path Analysis</h1>
<div class="summary">
<h2>Summary</h2>
<p><strong>Total Screens:</strong> {{.Summary.TotalScreens}}</p>
<p><strong>Total Services:</strong> {{.Summary.TotalServices}}</p>
<p><strong>Screens with Paths:</strong> {{.Summary.ScreensWithPaths}}</p>
<p><strong>Services Called:</strong> {{.Summary.ServicesCalled}}</p>
<p><strong>Direct Paths:</strong> {{.Summary.DirectPathsCount}}</p>
<p><strong>Indirect Paths:</strong> {{.Summary.IndirectPathsCount}}</p>
<p><strong>Total Paths:</strong> {{.Summary.TotalPaths}}</p>
<p><strong>Files Scanned:</strong> {{.Summary.FilesScanned}} ({{.Summary.Warnings}} skipped)</p>
</div>
<h2>Call Paths</h2>
<table>
<thead>
<tr><th>Screen</th><th>Service Method</th><th>Class Name</th><th>Method Name</th><th>Path Type</th><th>Call Chain</th><th>File Path</th><th>Line</th></tr>
</thead>
<tbody>
{{- range .Paths}}
<tr class="{{.PathType}}"><td>{{.Screen}}</td><td>{{.ServiceMethod}}</td><td>{{.ClassName}}</td><td>{{.MethodName}}</td><td>{{.PathType}}</td><td class="call-chain">{{chain .Chain}}</td><td>{{.FilePath}}</td><td>{{.Line}}</td></tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

// WriteHTML writes a standalone page with the summary and a table of paths
// ordered by screen, path type and class name.
func WriteHTML(w io.Writer, res *pipeline.Result) error {
	paths := make([]resolve.CallPath, len(res.Paths))
	copy(paths, res.Paths)
	sort.SliceStable(paths, func(i, j int) bool {
		a, b := paths[i], paths[j]
		if a.Screen != b.Screen {
			return a.Screen < b.Screen
		}
		if a.PathType != b.PathType {
			return a.PathType < b.PathType
		}
		return a.ClassName < b.ClassName
	})
	return htmlTemplate.Execute(w, struct {
		Summary resolve.Summary
		Paths   []resolve.CallPath
	}{res.Summary, paths})
}
