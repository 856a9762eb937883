package resolve

import (
	"github.com/DeusData/callpath-mapper/internal/extract"
	"github.com/DeusData/callpath-mapper/internal/graph"
)

// Summary is the small record handed to output sinks with the paths.
// Run-level fields (RunID, FilesScanned, Warnings, TestsExcluded) are filled
// by the caller that owns the run.
type Summary struct {
	RunID              string `json:"run_id"`
	TotalScreens       int    `json:"total_screens"`
	FrontendEntities   int    `json:"frontend_entities"`
	BackendEntities    int    `json:"backend_entities"`
	TotalServices      int    `json:"total_services"`
	ScreensWithPaths   int    `json:"screens_with_paths"`
	ServicesCalled     int    `json:"services_called"`
	DirectPathsCount   int    `json:"direct_paths_count"`
	IndirectPathsCount int    `json:"indirect_paths_count"`
	TotalPaths         int    `json:"total_paths"`
	FilesScanned       int    `json:"files_scanned"`
	Warnings           int    `json:"warnings"`
	MaxDepth           int    `json:"max_depth"`
	TestsExcluded      bool   `json:"tests_excluded"`
}

// Summarize counts entities and paths. Screens are UI components; services
// called are the distinct backend entities reached.
func Summarize(g *graph.Graph, paths []CallPath, maxDepth int) Summary {
	s := Summary{MaxDepth: maxDepth}

	for _, e := range g.FrontendEntities() {
		s.FrontendEntities++
		if e.Kind == extract.KindComponent {
			s.TotalScreens++
		}
	}
	s.BackendEntities = len(g.BackendEntities())
	s.TotalServices = s.BackendEntities

	screens := make(map[string]bool)
	services := make(map[string]bool)
	for _, p := range paths {
		screens[p.Screen] = true
		services[p.ClassName] = true
		if p.PathType == Direct {
			s.DirectPathsCount++
		} else {
			s.IndirectPathsCount++
		}
	}
	s.ScreensWithPaths = len(screens)
	s.ServicesCalled = len(services)
	s.TotalPaths = len(paths)
	return s
}

// Split partitions paths by type, preserving order.
func Split(paths []CallPath) (direct, indirect []CallPath) {
	for _, p := range paths {
		if p.PathType == Direct {
			direct = append(direct, p)
		} else {
			indirect = append(indirect, p)
		}
	}
	return direct, indirect
}
