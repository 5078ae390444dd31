// Package batch runs whole-building analyses described by a YAML manifest:
// one floor plan per entry, optionally repeated across identical floors,
// extracted concurrently and aggregated into a single building report.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/chaoyuebeta/areacalc-hk/pkg/extract"
	"github.com/chaoyuebeta/areacalc-hk/pkg/report"
	"github.com/chaoyuebeta/areacalc-hk/pkg/rules"
)

// FloorSpec is one manifest entry: a drawing file and the floor(s) it
// represents.
type FloorSpec struct {
	Path        string   `yaml:"path"`
	Floor       string   `yaml:"floor"`
	Description string   `yaml:"description,omitempty"`
	Scale       int      `yaml:"scale,omitempty"`
	// RepeatFor lists additional floor labels sharing this drawing, the
	// usual shape of a typical-floor tower block.
	RepeatFor []string `yaml:"repeat_for,omitempty"`
}

// Manifest describes a whole-building batch run.
type Manifest struct {
	Building     string      `yaml:"building"`
	BuildingType string      `yaml:"building_type"`
	DefaultScale int         `yaml:"default_scale,omitempty"`
	Floors       []FloorSpec `yaml:"floors"`

	dir string // manifest location; relative drawing paths resolve against it
}

// LoadManifest reads and validates a batch manifest. Relative drawing
// paths are resolved against the manifest's own directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

// Validate checks the manifest for structural problems before any file IO.
func (m *Manifest) Validate() error {
	if len(m.Floors) == 0 {
		return fmt.Errorf("no floors defined")
	}
	if m.BuildingType != "" {
		if _, err := rules.ParseBuildingType(m.BuildingType); err != nil {
			return err
		}
	}
	for i, f := range m.Floors {
		if f.Path == "" {
			return fmt.Errorf("floor %d: path is required", i+1)
		}
		if f.Floor == "" {
			return fmt.Errorf("floor %d (%s): floor label is required", i+1, f.Path)
		}
	}
	return nil
}

// Expand flattens repeat_for entries into one FloorSpec per physical
// floor, resolving drawing paths.
func (m *Manifest) Expand() []FloorSpec {
	var out []FloorSpec
	for _, f := range m.Floors {
		if f.Scale == 0 {
			f.Scale = m.DefaultScale
		}
		if m.dir != "" && !filepath.IsAbs(f.Path) {
			f.Path = filepath.Join(m.dir, f.Path)
		}
		out = append(out, f)
		for _, label := range f.RepeatFor {
			dup := f
			dup.Floor = label
			dup.RepeatFor = nil
			dup.Description = f.Description
			out = append(out, dup)
		}
	}
	return out
}

// FloorResult is the outcome for one physical floor. A failed floor
// carries its error and contributes nothing to the building totals.
type FloorResult struct {
	Spec     FloorSpec
	Units    []extract.Unit
	Rooms    []report.RoomInput
	Warnings []string
	Err      error
}

// Result is a whole-building batch outcome.
type Result struct {
	Building string
	Floors   []FloorResult
	Report   *report.BuildingReport
	// Failed counts floors whose extraction errored.
	Failed int
}

// Runner executes batch manifests with bounded concurrency.
type Runner struct {
	// Concurrency bounds simultaneous floor extractions. Zero means
	// GOMAXPROCS.
	Concurrency int
	// Table overrides the embedded classification table.
	Table *rules.Table

	// parse is swappable for tests.
	parse func(path string, opts extract.Options) ([]extract.Unit, error)
}

func (r *Runner) parseFunc() func(string, extract.Options) ([]extract.Unit, error) {
	if r.parse != nil {
		return r.parse
	}
	return extract.Parse
}

// Run extracts every floor in the manifest concurrently and aggregates
// the successful ones into a building report. One floor failing never
// aborts the others; failures are reported per floor.
func (r *Runner) Run(ctx context.Context, m *Manifest) (*Result, error) {
	floors := m.Expand()
	results := make([]FloorResult, len(floors))

	limit := r.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	parse := r.parseFunc()

	for i, spec := range floors {
		i, spec := i, spec
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = FloorResult{Spec: spec, Err: err}
				return nil
			}
			res := FloorResult{Spec: spec}
			units, err := parse(spec.Path, extract.Options{Floor: spec.Floor, Scale: spec.Scale})
			if err != nil {
				res.Err = fmt.Errorf("floor %s: %w", spec.Floor, err)
			} else {
				res.Units = units
				res.Rooms, res.Warnings = extract.RoomInputs(units)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bt := rules.Residential
	if m.BuildingType != "" {
		bt, _ = rules.ParseBuildingType(m.BuildingType)
	}

	var rooms []report.RoomInput
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		rooms = append(rooms, res.Rooms...)
	}

	rep := report.Aggregate(rooms, bt, r.Table)
	rep.Building = m.Building
	for _, res := range results {
		if res.Err != nil {
			rep.Warnings = append(rep.Warnings, res.Err.Error())
		}
	}
	sortFloors(results)

	return &Result{
		Building: m.Building,
		Floors:   results,
		Report:   rep,
		Failed:   failed,
	}, nil
}

// sortFloors keeps manifest order for equal floors but groups repeats of
// the same drawing together for readable output.
func sortFloors(results []FloorResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Spec.Path < results[j].Spec.Path
	})
}
