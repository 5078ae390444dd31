package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/chaoyuebeta/areacalc-hk/internal/server"
	"github.com/chaoyuebeta/areacalc-hk/pkg/rules"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "areacalc",
		Short: "Floor-plan area extraction and HK GFA/NOFA classification",
	}

	rootCmd.AddCommand(analyseCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(convertCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func analyseCmd() *cobra.Command {
	var opts analyseOptions

	cmd := &cobra.Command{
		Use:   "analyse [drawing]",
		Short: "Extract rooms from one drawing and produce a GFA/NOFA report",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runAnalyse(args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.buildingType, "type", "t", "residential", "building type (residential, non_domestic, composite, hotel)")
	cmd.Flags().StringVarP(&opts.floor, "floor", "f", "", "floor label for extracted rooms")
	cmd.Flags().IntVarP(&opts.scale, "scale", "s", 0, "fallback drawing scale denominator (default 100)")
	cmd.Flags().BoolVar(&opts.forceOCR, "force-ocr", false, "run OCR even when the PDF has a text layer")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "emit the full report as JSON")
	cmd.Flags().StringVar(&opts.excelPath, "excel", "", "also write an .xlsx report to this path")
	return cmd
}

func batchCmd() *cobra.Command {
	var opts batchOptions

	cmd := &cobra.Command{
		Use:   "batch [manifest.yaml]",
		Short: "Analyse a whole building from a floor manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 0, "max concurrent floor extractions (default GOMAXPROCS)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "emit the full report as JSON")
	cmd.Flags().StringVar(&opts.excelPath, "excel", "", "also write an .xlsx report to this path")
	return cmd
}

func classifyCmd() *cobra.Command {
	var (
		buildingType string
		area         float64
		jsonOut      bool
	)

	cmd := &cobra.Command{
		Use:   "classify [room label]",
		Short: "Look up the GFA/NOFA treatment of a single room label",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runClassify(args, buildingType, area, jsonOut)
		},
	}

	cmd.Flags().StringVarP(&buildingType, "type", "t", "residential", "building type")
	cmd.Flags().Float64VarP(&area, "area", "a", 0, "room area in m²")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the classification as JSON")
	return cmd
}

func rulesCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the built-in classification table",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runRules(jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the table as JSON")
	return cmd
}

func convertCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "convert [drawing.dwg]",
		Short: "Convert a DWG drawing to DXF using an installed CAD backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.Context(), args[0], outDir)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "output directory (default: next to the input)")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local analysis HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			srv := server.New(port, rules.Default())
			return srv.Start()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP server port")
	return cmd
}
