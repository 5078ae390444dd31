// Package export renders building reports as Excel workbooks in the layout
// authorized persons submit alongside BD applications: a room schedule, an
// area summary and a concession breakdown.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/chaoyuebeta/areacalc-hk/pkg/report"
)

const (
	sheetRooms       = "Room Schedule"
	sheetSummary     = "Area Summary"
	sheetConcessions = "Concessions"
)

// Workbook builds an in-memory workbook from a report. The caller owns the
// returned file and must Close it.
func Workbook(rep *report.BuildingReport) (*excelize.File, error) {
	f := excelize.NewFile()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}
	warn, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Color: "9C0006"}})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", sheetRooms); err != nil {
		return nil, err
	}
	if err := writeRooms(f, rep, header); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return nil, err
	}
	if err := writeSummary(f, rep, header, warn); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(sheetConcessions); err != nil {
		return nil, err
	}
	if err := writeConcessions(f, rep, header); err != nil {
		return nil, err
	}

	if idx, err := f.GetSheetIndex(sheetSummary); err == nil {
		f.SetActiveSheet(idx)
	}
	return f, nil
}

// WriteFile renders the report to an .xlsx file on disk.
func WriteFile(rep *report.BuildingReport, path string) error {
	f, err := Workbook(rep)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// Write streams the rendered workbook, for HTTP download responses.
func Write(rep *report.BuildingReport, w io.Writer) error {
	f, err := Workbook(rep)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRooms(f *excelize.File, rep *report.BuildingReport, header int) error {
	cols := []string{"Floor", "Room", "Label", "Area (m²)", "Classification", "GFA (m²)", "NOFA (m²)", "Concession Item", "Notes"}
	if err := setRow(f, sheetRooms, 1, toAny(cols)); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetRooms, "A1", cellName(len(cols), 1), header); err != nil {
		return err
	}

	for i, r := range rep.Rooms {
		row := []any{
			r.Input.Floor,
			r.Input.RoomID,
			r.Input.Label,
			r.Input.AreaM2,
			r.Classification.RuleLabel,
			r.GFAAreaM2(),
			r.NOFAAreaM2(),
			r.Classification.ConcessionItem,
			r.Classification.GFANote,
		}
		if err := setRow(f, sheetRooms, i+2, row); err != nil {
			return err
		}
	}

	widths := []float64{10, 12, 28, 12, 28, 12, 12, 22, 40}
	return setWidths(f, sheetRooms, widths)
}

func writeSummary(f *excelize.File, rep *report.BuildingReport, header, warn int) error {
	rows := [][]any{
		{"Building", rep.Building},
		{"Building type", string(rep.BuildingType)},
		{"Total measured area (m²)", rep.TotalRawM2},
		{"Total GFA (m²)", rep.TotalGFAM2},
		{"Total NOFA (m²)", rep.TotalNOFAM2},
		{"NOFA / GFA ratio", rep.NOFAGFARatio},
		{"Concessions subject to cap (m²)", rep.CappedTotalM2},
		{"APP-151 cap limit (m²)", rep.CapLimitM2},
		{"Cap utilisation (%)", rep.CapUtilisationPct},
	}
	for i, row := range rows {
		if err := setRow(f, sheetSummary, i+1, row); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetSummary, cellName(1, i+1), cellName(1, i+1), header); err != nil {
			return err
		}
	}

	at := len(rows) + 2
	for _, w := range rep.Warnings {
		if err := f.SetCellValue(sheetSummary, cellName(1, at), w); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetSummary, cellName(1, at), cellName(1, at), warn); err != nil {
			return err
		}
		at++
	}

	return setWidths(f, sheetSummary, []float64{34, 60})
}

func writeConcessions(f *excelize.File, rep *report.BuildingReport, header int) error {
	cols := []string{"Item", "Concession", "PNAP", "Area (m²)", "Effective GFA (m²)", "Exempted (m²)", "Subject to 10% Cap", "BD Approval Needed"}
	if err := setRow(f, sheetConcessions, 1, toAny(cols)); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetConcessions, "A1", cellName(len(cols), 1), header); err != nil {
		return err
	}

	for i, b := range rep.Concessions {
		row := []any{
			b.ItemNo,
			b.Item,
			b.PNAPRef,
			b.TotalAreaM2,
			b.EffectiveGFAM2,
			b.ExemptedGFAM2,
			yesNo(b.SubjectToCap),
			yesNo(b.RequiresApproval),
		}
		if err := setRow(f, sheetConcessions, i+2, row); err != nil {
			return err
		}
	}
	return setWidths(f, sheetConcessions, []float64{8, 36, 14, 12, 16, 14, 18, 18})
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	return f.SetSheetRow(sheet, cellName(1, row), &values)
}

func setWidths(f *excelize.File, sheet string, widths []float64) error {
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
