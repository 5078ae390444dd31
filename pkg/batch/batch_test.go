package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chaoyuebeta/areacalc-hk/pkg/extract"
)

const sampleManifest = `
building: Harbour View Tower
building_type: residential
default_scale: 100
floors:
  - path: gf.dxf
    floor: G/F
    description: entrance and lobby
  - path: typical.dxf
    floor: 2/F
    scale: 50
    repeat_for: [3/F, 5/F, 6/F]
`

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "building.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	m, err := LoadManifest(writeManifest(t, sampleManifest))
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}

	if m.Building != "Harbour View Tower" {
		t.Errorf("building = %q", m.Building)
	}
	if m.BuildingType != "residential" {
		t.Errorf("building_type = %q", m.BuildingType)
	}
	if len(m.Floors) != 2 {
		t.Fatalf("floors = %d, want 2", len(m.Floors))
	}
	if len(m.Floors[1].RepeatFor) != 3 {
		t.Errorf("repeat_for = %v", m.Floors[1].RepeatFor)
	}
}

func TestLoadManifestRejectsBadInput(t *testing.T) {
	cases := []struct{ name, body string }{
		{"no floors", "building: X\n"},
		{"missing path", "floors:\n  - floor: G/F\n"},
		{"missing floor", "floors:\n  - path: a.dxf\n"},
		{"bad building type", "building_type: warehouse\nfloors:\n  - path: a.dxf\n    floor: G/F\n"},
	}
	for _, tc := range cases {
		if _, err := LoadManifest(writeManifest(t, tc.body)); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestExpandRepeats(t *testing.T) {
	m, err := LoadManifest(writeManifest(t, sampleManifest))
	if err != nil {
		t.Fatal(err)
	}

	floors := m.Expand()
	if len(floors) != 5 {
		t.Fatalf("expanded floors = %d, want 5", len(floors))
	}

	var labels []string
	for _, f := range floors {
		labels = append(labels, f.Floor)
	}
	want := []string{"G/F", "2/F", "3/F", "5/F", "6/F"}
	if strings.Join(labels, ",") != strings.Join(want, ",") {
		t.Errorf("floors = %v, want %v", labels, want)
	}

	// default scale applies where no explicit scale was set
	if floors[0].Scale != 100 {
		t.Errorf("G/F scale = %d, want default 100", floors[0].Scale)
	}
	// repeats inherit the parent's explicit scale and drawing
	for _, f := range floors[1:] {
		if f.Scale != 50 {
			t.Errorf("floor %s scale = %d, want 50", f.Floor, f.Scale)
		}
		if filepath.Base(f.Path) != "typical.dxf" {
			t.Errorf("floor %s path = %q", f.Floor, f.Path)
		}
	}
	// paths resolve against the manifest directory
	if !filepath.IsAbs(floors[0].Path) {
		t.Errorf("path %q not resolved against manifest dir", floors[0].Path)
	}
}

func stubParse(units map[string][]extract.Unit, fail map[string]error) func(string, extract.Options) ([]extract.Unit, error) {
	return func(path string, opts extract.Options) ([]extract.Unit, error) {
		base := filepath.Base(path)
		if err, ok := fail[base]; ok {
			return nil, err
		}
		out := make([]extract.Unit, 0, len(units[base]))
		for _, u := range units[base] {
			u.Floor = opts.Floor
			out = append(out, u)
		}
		return out, nil
	}
}

func TestRunAggregatesAllFloors(t *testing.T) {
	m, err := LoadManifest(writeManifest(t, sampleManifest))
	if err != nil {
		t.Fatal(err)
	}

	runner := &Runner{
		Concurrency: 2,
		parse: stubParse(map[string][]extract.Unit{
			"gf.dxf":      {{Label: "Entrance Lobby", AreaM2: 40, Confidence: 1}},
			"typical.dxf": {{Label: "Flat A", AreaM2: 60, Confidence: 1}},
		}, nil),
	}

	res, err := runner.Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Failed != 0 {
		t.Errorf("failed = %d, want 0", res.Failed)
	}
	if len(res.Floors) != 5 {
		t.Fatalf("floor results = %d, want 5", len(res.Floors))
	}
	if len(res.Report.Rooms) != 5 {
		t.Fatalf("rooms = %d, want 5", len(res.Report.Rooms))
	}
	// lobby 40 + four typical floors at 60
	if got := res.Report.TotalGFAM2; got != 280 {
		t.Errorf("total gfa = %v, want 280", got)
	}
	if res.Report.Building != "Harbour View Tower" {
		t.Errorf("report building = %q", res.Report.Building)
	}

	// every repeated floor carries its own label
	seen := map[string]bool{}
	for _, r := range res.Report.Rooms {
		seen[r.Input.Floor] = true
	}
	for _, f := range []string{"G/F", "2/F", "3/F", "5/F", "6/F"} {
		if !seen[f] {
			t.Errorf("no room for floor %s", f)
		}
	}
}

func TestRunIsolatesFloorFailures(t *testing.T) {
	m, err := LoadManifest(writeManifest(t, sampleManifest))
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("corrupt drawing")
	runner := &Runner{
		parse: stubParse(map[string][]extract.Unit{
			"typical.dxf": {{Label: "Flat A", AreaM2: 60, Confidence: 1}},
		}, map[string]error{"gf.dxf": boom}),
	}

	res, err := runner.Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Failed != 1 {
		t.Errorf("failed = %d, want 1", res.Failed)
	}
	// the four typical floors still aggregate
	if len(res.Report.Rooms) != 4 {
		t.Errorf("rooms = %d, want 4", len(res.Report.Rooms))
	}

	var failedFloor *FloorResult
	for i := range res.Floors {
		if res.Floors[i].Err != nil {
			failedFloor = &res.Floors[i]
		}
	}
	if failedFloor == nil {
		t.Fatal("no failed floor recorded")
	}
	if !errors.Is(failedFloor.Err, boom) {
		t.Errorf("floor err = %v, want wrapped %v", failedFloor.Err, boom)
	}

	found := false
	for _, w := range res.Report.Warnings {
		if strings.Contains(w, "corrupt drawing") {
			found = true
		}
	}
	if !found {
		t.Errorf("failure not surfaced in report warnings: %v", res.Report.Warnings)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	m, err := LoadManifest(writeManifest(t, sampleManifest))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &Runner{
		parse: func(string, extract.Options) ([]extract.Unit, error) {
			return nil, fmt.Errorf("parse should not run after cancel")
		},
	}
	res, err := runner.Run(ctx, m)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Failed != len(res.Floors) {
		t.Errorf("failed = %d, want all %d floors", res.Failed, len(res.Floors))
	}
}
