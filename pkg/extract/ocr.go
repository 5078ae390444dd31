package extract

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/otiai10/gosseract/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/chaoyuebeta/areacalc-hk/pkg/geo"
)

const (
	// rasterDPI is the resolution PDFs are rasterised at, and the assumed
	// resolution of standalone scan images.
	rasterDPI = 200

	// minWordConfidence drops OCR words Tesseract itself doubts.
	// Tesseract reports confidence on a 0 to 100 scale.
	minWordConfidence = 30

	ocrLineTol = 8.0  // pixels at 200 dpi
	ocrWordGap = 40.0 // pixels; gaps wider than this split phrases
)

// parseImageOCR extracts labels from a scanned raster image via Tesseract.
func parseImageOCR(path string, opts Options) ([]Unit, error) {
	return ocrImage(path, SourceImageOCR, opts)
}

// parsePDFOCR rasterises a scanned PDF with pdftoppm and runs each page
// through Tesseract.
func parsePDFOCR(path string, opts Options) ([]Unit, error) {
	pages, cleanup, err := rasterizePDF(path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var units []Unit
	for _, img := range pages {
		pageUnits, err := ocrImage(img, SourcePDFOCR, opts)
		if err != nil {
			return nil, err
		}
		units = append(units, pageUnits...)
	}
	return units, nil
}

func ocrImage(path string, source SourceKind, opts Options) ([]Unit, error) {
	pageW, pageH, err := imageSize(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	words, err := ocrWords(path)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, nil
	}

	cfg := opts.filter()
	cal := Calibrate(words, pageW, pageH, cfg, opts.scale(), 25.4/rasterDPI)
	scaleNote := fmt.Sprintf("drawing scale 1:%d (%s)", cal.Denominator, cal.Source)

	var units []Unit
	for _, phrase := range groupWords(words, ocrLineTol, ocrWordGap) {
		c := phrase.BBox.Center()
		if cfg.IsTitleBlock(phrase.Text, c.X, c.Y, pageW, pageH) {
			continue
		}
		area, hasArea := AreaAnnotation(phrase.Text)
		label := CleanLabel(phrase.Text)
		if isNoiseLabel(label) {
			continue
		}
		u := Unit{
			Label:      label,
			AreaM2:     area,
			Source:     source,
			Confidence: phrase.Confidence,
			BBox:       phrase.BBox,
			Floor:      opts.Floor,
		}
		if !hasArea {
			u.Notes = "no printed area; measure manually (" + scaleNote + ")"
		}
		units = append(units, u)
	}
	return units, nil
}

// ocrWords runs Tesseract over one image and returns confident words with
// top-left origin pixel coordinates. Sparse segmentation suits floor plans,
// where text is scattered labels rather than paragraphs.
func ocrWords(path string) ([]Word, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage("eng"); err != nil {
		return nil, &CapabilityError{
			Capability: "ocr",
			Hint:       "install tesseract-ocr with the eng language pack",
			Err:        err,
		}
	}
	client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT)
	if err := client.SetImage(path); err != nil {
		return nil, fmt.Errorf("set ocr image %s: %w", path, err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, &CapabilityError{
			Capability: "ocr",
			Hint:       "install tesseract-ocr and its development headers",
			Err:        err,
		}
	}

	var words []Word
	for _, b := range boxes {
		if b.Confidence < minWordConfidence || b.Word == "" {
			continue
		}
		words = append(words, Word{
			Text: b.Word,
			BBox: geo.Rect{
				X0: float64(b.Box.Min.X),
				Y0: float64(b.Box.Min.Y),
				X1: float64(b.Box.Max.X),
				Y1: float64(b.Box.Max.Y),
			},
			Confidence: b.Confidence / 100.0,
		})
	}
	return words, nil
}

func imageSize(path string) (w, h float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return float64(cfg.Width), float64(cfg.Height), nil
}

// rasterizePDF renders every page of a PDF to PNG via the poppler
// pdftoppm tool, returning page image paths in order and a cleanup func.
func rasterizePDF(path string) ([]string, func(), error) {
	bin, err := exec.LookPath("pdftoppm")
	if err != nil {
		return nil, nil, &CapabilityError{
			Capability: "pdf rasterisation",
			Hint:       "install poppler-utils (pdftoppm) to process scanned PDFs",
			Err:        err,
		}
	}

	dir, err := os.MkdirTemp("", "areacalc-raster-*")
	if err != nil {
		return nil, nil, fmt.Errorf("create raster dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	prefix := filepath.Join(dir, "page")
	cmd := exec.Command(bin, "-r", fmt.Sprint(rasterDPI), "-png", path, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("pdftoppm %s: %w: %s", path, err, out)
	}

	pages, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(pages) == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("pdftoppm produced no pages for %s", path)
	}
	sort.Strings(pages)
	return pages, cleanup, nil
}
