// Package report aggregates per-room classifications into building totals
// and enforces the APP-151 10% concession cap.
package report

import (
	"fmt"
	"math"
	"sort"

	"github.com/chaoyuebeta/areacalc-hk/pkg/rules"
)

// CapRate is the APP-151 overall concession cap: 10% of total GFA.
const CapRate = 0.10

// approachingCapThreshold triggers the early warning before the cap is hit.
const approachingCapThreshold = 0.80

// RoomInput is one room to classify and aggregate.
type RoomInput struct {
	Label  string  `json:"label" yaml:"label"`
	AreaM2 float64 `json:"area_m2" yaml:"area_m2"`
	Floor  string  `json:"floor,omitempty" yaml:"floor,omitempty"`
	RoomID string  `json:"room_id,omitempty" yaml:"room_id,omitempty"`
}

// RoomResult pairs a room with its resolved classification.
type RoomResult struct {
	Input          RoomInput            `json:"input"`
	Classification rules.Classification `json:"classification"`
}

// AreaM2 returns the room's raw polygon area.
func (r RoomResult) AreaM2() float64 { return r.Input.AreaM2 }

// GFAAreaM2 returns the room's effective GFA contribution.
func (r RoomResult) GFAAreaM2() float64 { return r.Classification.GFAAreaM2 }

// NOFAAreaM2 returns the room's effective NOFA contribution.
func (r RoomResult) NOFAAreaM2() float64 { return r.Classification.NOFAAreaM2 }

// ConcessionBucket aggregates all rooms sharing one APP-151 concession item.
type ConcessionBucket struct {
	ItemNo           string  `json:"item_no"`
	Item             string  `json:"item"`
	Description      string  `json:"description"`
	PNAPRef          string  `json:"pnap_ref,omitempty"`
	TotalAreaM2      float64 `json:"total_area_m2"`
	EffectiveGFAM2   float64 `json:"effective_gfa_m2"`
	ExemptedGFAM2    float64 `json:"exempted_gfa_m2"`
	SubjectToCap     bool    `json:"subject_to_cap"`
	RequiresApproval bool    `json:"requires_approval"`
	CapWarning       bool    `json:"cap_warning"`
}

// BuildingReport is the complete area schedule for one building (or one
// building part). Immutable after construction.
type BuildingReport struct {
	Building     string             `json:"building,omitempty"`
	BuildingType rules.BuildingType `json:"building_type"`
	Rooms        []RoomResult       `json:"rooms"`

	TotalRawM2  float64 `json:"total_raw_m2"`
	TotalGFAM2  float64 `json:"total_gfa_m2"`
	TotalNOFAM2 float64 `json:"total_nofa_m2"`

	Concessions       []ConcessionBucket `json:"concessions"`
	CappedTotalM2     float64            `json:"capped_total_m2"`
	CapLimitM2        float64            `json:"cap_limit_m2"`
	CapExceeded       bool               `json:"cap_exceeded"`
	CapUtilisationPct float64            `json:"cap_utilisation_pct"`

	NOFAGFARatio float64 `json:"nofa_gfa_ratio"`

	Warnings []string `json:"warnings"`
}

// Aggregate classifies every room against the table and produces a
// BuildingReport. Totals, buckets and the cap decision are invariant under
// permutation of the input list.
func Aggregate(rooms []RoomInput, bt rules.BuildingType, table *rules.Table) *BuildingReport {
	if table == nil {
		table = rules.Default()
	}

	var warnings []string
	results := make([]RoomResult, 0, len(rooms))
	for _, rm := range rooms {
		if rm.AreaM2 < 0 {
			warnings = append(warnings, fmt.Sprintf(
				"Room %q (floor %s): negative area %.2f m² treated as 0.",
				rm.Label, floorOrDash(rm.Floor), rm.AreaM2))
			rm.AreaM2 = 0
		}
		cls := table.Classify(rm.Label, rm.AreaM2, bt)
		results = append(results, RoomResult{Input: rm, Classification: cls})
		if cls.ReviewRequired {
			warnings = append(warnings, fmt.Sprintf(
				"Room %q (floor %s): unrecognised room type, manual review required.",
				rm.Label, floorOrDash(rm.Floor)))
		}
	}

	var totalRaw, totalGFA, totalNOFA float64
	for _, r := range results {
		totalRaw += r.AreaM2()
		totalGFA += r.GFAAreaM2()
		totalNOFA += r.NOFAAreaM2()
	}

	buckets := groupConcessions(results)

	// Cap-subject buckets contribute their effective GFA to the capped total.
	capLimit := totalGFA * CapRate
	var cappedTotal float64
	for _, b := range buckets {
		if b.SubjectToCap {
			cappedTotal += b.EffectiveGFAM2
		}
	}
	capExceeded := cappedTotal > capLimit
	for i := range buckets {
		buckets[i].CapWarning = buckets[i].SubjectToCap && capExceeded
		buckets[i].TotalAreaM2 = round4(buckets[i].TotalAreaM2)
		buckets[i].EffectiveGFAM2 = round4(buckets[i].EffectiveGFAM2)
		buckets[i].ExemptedGFAM2 = round4(buckets[i].ExemptedGFAM2)
	}

	if capExceeded {
		warnings = append(warnings, fmt.Sprintf(
			"APP-151 10%% cap exceeded: capped concessions = %.2f m² vs limit %.2f m². BD approval required before submission.",
			cappedTotal, capLimit))
	} else if capLimit > 0 && cappedTotal/capLimit >= approachingCapThreshold {
		warnings = append(warnings, fmt.Sprintf(
			"Approaching APP-151 10%% cap: %.1f%% utilised (%.2f m² of %.2f m²).",
			cappedTotal/capLimit*100, cappedTotal, capLimit))
	}

	ratio := 0.0
	if totalGFA > 0 {
		ratio = totalNOFA / totalGFA
	}
	utilisation := 0.0
	if capLimit > 0 {
		utilisation = cappedTotal / capLimit * 100
	}

	return &BuildingReport{
		BuildingType:      bt,
		Rooms:             results,
		TotalRawM2:        round4(totalRaw),
		TotalGFAM2:        round4(totalGFA),
		TotalNOFAM2:       round4(totalNOFA),
		Concessions:       buckets,
		CappedTotalM2:     round4(cappedTotal),
		CapLimitM2:        round4(capLimit),
		CapExceeded:       capExceeded,
		CapUtilisationPct: round2(utilisation),
		NOFAGFARatio:      round4(ratio),
		Warnings:          warnings,
	}
}

// groupConcessions buckets room results by concession item number. Buckets
// are sorted by item number so output order does not depend on input order.
func groupConcessions(results []RoomResult) []ConcessionBucket {
	byItem := make(map[string]*ConcessionBucket)
	for _, r := range results {
		c := r.Classification
		if !c.Concession || c.ConcessionItem == "" {
			continue
		}
		b, ok := byItem[c.ConcessionItem]
		if !ok {
			b = &ConcessionBucket{
				ItemNo:           c.ItemNo,
				Item:             c.ConcessionItem,
				Description:      c.GFANote,
				PNAPRef:          c.PNAPRef,
				SubjectToCap:     c.SubjectToCap,
				RequiresApproval: c.RequiresApproval(),
			}
			byItem[c.ConcessionItem] = b
		}
		b.TotalAreaM2 += r.AreaM2()
		b.EffectiveGFAM2 += r.GFAAreaM2()
		b.ExemptedGFAM2 += r.AreaM2() - r.GFAAreaM2()
	}

	buckets := make([]ConcessionBucket, 0, len(byItem))
	for _, b := range byItem {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].ItemNo != buckets[j].ItemNo {
			return buckets[i].ItemNo < buckets[j].ItemNo
		}
		return buckets[i].Item < buckets[j].Item
	})
	return buckets
}

func floorOrDash(floor string) string {
	if floor == "" {
		return "-"
	}
	return floor
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func round2(v float64) float64 {
	return math.Round(v*1e2) / 1e2
}
