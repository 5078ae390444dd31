package export

import (
	"bytes"
	"testing"

	"github.com/chaoyuebeta/areacalc-hk/pkg/report"
	"github.com/chaoyuebeta/areacalc-hk/pkg/rules"
)

func sampleReport() *report.BuildingReport {
	rooms := []report.RoomInput{
		{Label: "Master Bedroom", AreaM2: 14.2, Floor: "3/F", RoomID: "3/F-0000"},
		{Label: "Balcony", AreaM2: 4.5, Floor: "3/F", RoomID: "3/F-0001"},
		{Label: "Bathroom", AreaM2: 5.0, Floor: "3/F", RoomID: "3/F-0002"},
	}
	rep := report.Aggregate(rooms, rules.Residential, nil)
	rep.Building = "Harbour View Tower"
	return rep
}

func TestWorkbookSheets(t *testing.T) {
	f, err := Workbook(sampleReport())
	if err != nil {
		t.Fatalf("Workbook failed: %v", err)
	}
	defer f.Close()

	for _, sheet := range []string{sheetRooms, sheetSummary, sheetConcessions} {
		if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
			t.Errorf("missing sheet %q", sheet)
		}
	}
}

func TestWorkbookRoomSchedule(t *testing.T) {
	f, err := Workbook(sampleReport())
	if err != nil {
		t.Fatalf("Workbook failed: %v", err)
	}
	defer f.Close()

	label, err := f.GetCellValue(sheetRooms, "C2")
	if err != nil {
		t.Fatal(err)
	}
	if label != "Master Bedroom" {
		t.Errorf("C2 = %q, want Master Bedroom", label)
	}

	area, err := f.GetCellValue(sheetRooms, "D2")
	if err != nil {
		t.Fatal(err)
	}
	if area != "14.2" {
		t.Errorf("D2 = %q, want 14.2", area)
	}
}

func TestWorkbookSummaryValues(t *testing.T) {
	f, err := Workbook(sampleReport())
	if err != nil {
		t.Fatalf("Workbook failed: %v", err)
	}
	defer f.Close()

	building, err := f.GetCellValue(sheetSummary, "B1")
	if err != nil {
		t.Fatal(err)
	}
	if building != "Harbour View Tower" {
		t.Errorf("B1 = %q, want building name", building)
	}

	gfa, err := f.GetCellValue(sheetSummary, "B4")
	if err != nil {
		t.Fatal(err)
	}
	if gfa != "21.45" {
		t.Errorf("B4 = %q, want 21.45", gfa)
	}
}

func TestWorkbookConcessionRow(t *testing.T) {
	f, err := Workbook(sampleReport())
	if err != nil {
		t.Fatalf("Workbook failed: %v", err)
	}
	defer f.Close()

	item, err := f.GetCellValue(sheetConcessions, "A2")
	if err != nil {
		t.Fatal(err)
	}
	if item != "5" {
		t.Errorf("A2 = %q, want balcony item 5", item)
	}
	capped, err := f.GetCellValue(sheetConcessions, "G2")
	if err != nil {
		t.Fatal(err)
	}
	if capped != "Yes" {
		t.Errorf("G2 = %q, want Yes", capped)
	}
}

func TestWriteProducesXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(sampleReport(), &buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	// xlsx is a zip container
	if buf.Len() < 4 || buf.Bytes()[0] != 'P' || buf.Bytes()[1] != 'K' {
		t.Error("output does not look like an xlsx archive")
	}
}
