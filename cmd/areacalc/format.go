package main

import (
	"fmt"

	"github.com/chaoyuebeta/areacalc-hk/pkg/batch"
	"github.com/chaoyuebeta/areacalc-hk/pkg/extract"
	"github.com/chaoyuebeta/areacalc-hk/pkg/report"
	"github.com/chaoyuebeta/areacalc-hk/pkg/rules"
)

func printUnits(units []extract.Unit) {
	fmt.Printf("Extracted %d unit(s)\n", len(units))
	fmt.Println("--------------------")
	for _, u := range units {
		area := "     ?"
		if u.AreaM2 > 0 {
			area = fmt.Sprintf("%8.2f", u.AreaM2)
		}
		fmt.Printf("  %-28s %s m²  [%s", u.Label, area, u.Source)
		if u.Confidence < 1.0 {
			fmt.Printf(" %.0f%%", u.Confidence*100)
		}
		fmt.Print("]")
		if u.Floor != "" {
			fmt.Printf("  floor %s", u.Floor)
		}
		if u.Notes != "" {
			fmt.Printf("  (%s)", u.Notes)
		}
		fmt.Println()
	}
	fmt.Println()
}

func printReport(r *report.BuildingReport) {
	fmt.Println("GFA / NOFA Report")
	fmt.Println("=================")
	if r.Building != "" {
		fmt.Printf("Building:       %s\n", r.Building)
	}
	fmt.Printf("Building type:  %s\n", r.BuildingType)
	fmt.Println()

	fmt.Printf("  %-28s %10s %12s %12s\n", "Room", "Area m²", "GFA m²", "NOFA m²")
	for _, room := range r.Rooms {
		marker := " "
		if room.Classification.ReviewRequired {
			marker = "?"
		}
		fmt.Printf("%s %-28s %10.2f %12.2f %12.2f\n",
			marker, room.Input.Label, room.AreaM2(), room.GFAAreaM2(), room.NOFAAreaM2())
	}
	fmt.Println()

	fmt.Printf("Total measured: %10.2f m²\n", r.TotalRawM2)
	fmt.Printf("Total GFA:      %10.2f m²\n", r.TotalGFAM2)
	fmt.Printf("Total NOFA:     %10.2f m²\n", r.TotalNOFAM2)
	fmt.Printf("NOFA/GFA:       %10.4f\n", r.NOFAGFARatio)

	if len(r.Concessions) > 0 {
		fmt.Println()
		fmt.Println("Concessions")
		fmt.Println("-----------")
		for _, b := range r.Concessions {
			capped := ""
			if b.SubjectToCap {
				capped = "  [10% cap]"
			}
			if b.CapWarning {
				capped = "  [10% CAP EXCEEDED]"
			}
			fmt.Printf("  Item %-5s %-36s %8.2f m² -> %8.2f m²%s\n",
				b.ItemNo, b.Item, b.TotalAreaM2, b.EffectiveGFAM2, capped)
		}
		fmt.Printf("\n  Capped concessions: %.2f m² of %.2f m² limit (%.1f%%)\n",
			r.CappedTotalM2, r.CapLimitM2, r.CapUtilisationPct)
	}

	if len(r.Warnings) > 0 {
		fmt.Println()
		fmt.Printf("WARNINGS (%d):\n", len(r.Warnings))
		for _, w := range r.Warnings {
			fmt.Printf("  ! %s\n", w)
		}
	}
}

func printBatchResult(res *batch.Result) {
	fmt.Printf("Batch: %s\n", res.Building)
	fmt.Println("------")
	for _, f := range res.Floors {
		if f.Err != nil {
			fmt.Printf("  %-8s %-32s FAILED: %v\n", f.Spec.Floor, f.Spec.Path, f.Err)
			continue
		}
		fmt.Printf("  %-8s %-32s %d room(s)\n", f.Spec.Floor, f.Spec.Path, len(f.Rooms))
	}
	fmt.Println()
	printReport(res.Report)
}

func printClassification(c rules.Classification) {
	fmt.Printf("Label:          %s\n", c.RuleLabel)
	fmt.Printf("Building type:  %s\n", c.BuildingType)
	fmt.Printf("GFA:            %s x%.2f", c.GFAPolicy, c.GFAMultiplier)
	if c.AreaM2 > 0 {
		fmt.Printf(" = %.4f m²", c.GFAAreaM2)
	}
	fmt.Println()
	if c.GFANote != "" {
		fmt.Printf("                %s\n", c.GFANote)
	}
	fmt.Printf("NOFA:           %s x%.2f", c.NOFAPolicy, c.NOFAMultiplier)
	if c.AreaM2 > 0 {
		fmt.Printf(" = %.4f m²", c.NOFAAreaM2)
	}
	fmt.Println()
	if c.NOFANote != "" {
		fmt.Printf("                %s\n", c.NOFANote)
	}
	if c.Concession {
		fmt.Printf("Concession:     Item %s  %s (%s)\n", c.ItemNo, c.ConcessionItem, c.PNAPRef)
		fmt.Printf("  Subject to 10%% cap: %v\n", c.SubjectToCap)
		fmt.Printf("  BEAM Plus required: %v\n", c.RequiresBEAMPlus)
		fmt.Printf("  Prerequisites:      %v\n", c.RequiresPrereq)
	}
	if c.ReviewRequired {
		fmt.Println("! Unrecognised label: defaulted to full GFA, manual review required")
	}
}

func printRules(t *rules.Table) {
	fmt.Printf("Classification table: %d rule(s)\n", len(t.Rules))
	fmt.Println("--------------------------------")
	for _, r := range t.Rules {
		item := ""
		if r.ItemNo != "" {
			item = fmt.Sprintf("  [Item %s]", r.ItemNo)
		}
		fmt.Printf("  %-40s GFA %s x%.2f%s\n", r.Label, r.GFAPolicy, r.GFAMultiplier, item)
	}
}
