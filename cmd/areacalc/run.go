package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/chaoyuebeta/areacalc-hk/internal/convert"
	"github.com/chaoyuebeta/areacalc-hk/pkg/batch"
	"github.com/chaoyuebeta/areacalc-hk/pkg/export"
	"github.com/chaoyuebeta/areacalc-hk/pkg/extract"
	"github.com/chaoyuebeta/areacalc-hk/pkg/report"
	"github.com/chaoyuebeta/areacalc-hk/pkg/rules"
)

type analyseOptions struct {
	buildingType string
	floor        string
	scale        int
	forceOCR     bool
	jsonOut      bool
	excelPath    string
}

func runAnalyse(path string, opts analyseOptions) error {
	bt, err := rules.ParseBuildingType(opts.buildingType)
	if err != nil {
		return err
	}

	units, err := extract.Parse(path, extract.Options{
		Floor:    opts.floor,
		Scale:    opts.scale,
		ForceOCR: opts.forceOCR,
	})
	if err != nil {
		return fmt.Errorf("extracting %s: %w", path, err)
	}

	rooms, warnings := extract.RoomInputs(units)
	rep := report.Aggregate(rooms, bt, nil)
	rep.Warnings = append(warnings, rep.Warnings...)

	if opts.excelPath != "" {
		if err := export.WriteFile(rep, opts.excelPath); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n\n", opts.excelPath)
	}

	if opts.jsonOut {
		return writeJSON(map[string]any{"units": units, "report": rep})
	}
	printUnits(units)
	printReport(rep)
	return nil
}

type batchOptions struct {
	concurrency int
	jsonOut     bool
	excelPath   string
}

func runBatch(ctx context.Context, manifestPath string, opts batchOptions) error {
	manifest, err := batch.LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	runner := &batch.Runner{Concurrency: opts.concurrency}
	result, err := runner.Run(ctx, manifest)
	if err != nil {
		return err
	}

	if opts.excelPath != "" {
		if err := export.WriteFile(result.Report, opts.excelPath); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n\n", opts.excelPath)
	}

	if opts.jsonOut {
		return writeJSON(result)
	}
	printBatchResult(result)
	if result.Failed > 0 {
		return fmt.Errorf("%d floor(s) failed", result.Failed)
	}
	return nil
}

func runClassify(labelParts []string, buildingType string, area float64, jsonOut bool) error {
	bt, err := rules.ParseBuildingType(buildingType)
	if err != nil {
		return err
	}

	label := strings.Join(labelParts, " ")
	cls := rules.Default().Classify(label, area, bt)

	if jsonOut {
		return writeJSON(cls)
	}
	printClassification(cls)
	return nil
}

func runRules(jsonOut bool) error {
	table := rules.Default()
	if jsonOut {
		return writeJSON(table.Rules)
	}
	printRules(table)
	return nil
}

func runConvert(ctx context.Context, path, outDir string) error {
	result, err := convert.New().DWGToDXF(ctx, path, outDir)
	if err != nil {
		return err
	}
	fmt.Printf("Converted %s -> %s (%s)\n", result.Input, result.Output, result.Backend)
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
