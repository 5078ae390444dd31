// Package convert shells out to external CAD tools to turn proprietary DWG
// drawings into DXF the extraction pipeline can read. The binary formats
// are undocumented, so conversion delegates to whichever supported backend
// is installed rather than parsing DWG directly.
package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/chaoyuebeta/areacalc-hk/pkg/extract"
)

// Backend identifies the external tool used for a conversion.
type Backend string

const (
	BackendODA         Backend = "oda"
	BackendLibreOffice Backend = "libreoffice"
)

// Environment overrides for backends installed outside PATH.
const (
	envODA         = "ODA_FILE_CONVERTER"
	envLibreOffice = "LIBREOFFICE_PATH"
)

// Result describes a completed conversion.
type Result struct {
	Input   string
	Output  string
	Backend Backend
}

// Converter locates and drives an installed DWG conversion backend.
type Converter struct {
	// lookPath is swappable for tests.
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// New returns a Converter using the real environment.
func New() *Converter {
	return &Converter{
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// DWGToDXF converts one DWG file, writing the DXF next to it (or to outDir
// when non-empty). The ODA File Converter is preferred; LibreOffice Draw is
// the fallback.
func (c *Converter) DWGToDXF(ctx context.Context, path, outDir string) (*Result, error) {
	if strings.ToLower(filepath.Ext(path)) != ".dwg" {
		return nil, fmt.Errorf("not a dwg file: %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if outDir == "" {
		outDir = filepath.Dir(path)
	}

	if bin, ok := c.find(envODA, "ODAFileConverter"); ok {
		res, err := c.runODA(ctx, bin, path, outDir)
		if err == nil {
			return res, nil
		}
		return nil, err
	}
	if bin, ok := c.find(envLibreOffice, "libreoffice", "soffice"); ok {
		return c.runLibreOffice(ctx, bin, path, outDir)
	}

	return nil, &extract.CapabilityError{
		Capability: "dwg conversion",
		Hint:       "install the ODA File Converter or LibreOffice, or set " + envODA,
	}
}

// find resolves a backend binary: env override first, then PATH names.
func (c *Converter) find(envVar string, names ...string) (string, bool) {
	if p := os.Getenv(envVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	for _, n := range names {
		if p, err := c.lookPath(n); err == nil {
			return p, true
		}
	}
	return "", false
}

// runODA drives the ODA File Converter. It converts whole directories, so
// the input is staged alone in a temp dir to avoid touching sibling files.
func (c *Converter) runODA(ctx context.Context, bin, path, outDir string) (*Result, error) {
	stage, err := os.MkdirTemp("", "areacalc-dwg-*")
	if err != nil {
		return nil, fmt.Errorf("stage dir: %w", err)
	}
	defer os.RemoveAll(stage)

	staged := filepath.Join(stage, filepath.Base(path))
	if err := copyFile(path, staged); err != nil {
		return nil, err
	}

	// in dir, out dir, output version, output type, recurse, audit, filter
	out, err := c.run(ctx, bin, stage, outDir, "ACAD2018", "DXF", "0", "1", "*.DWG")
	if err != nil {
		return nil, fmt.Errorf("oda converter: %w: %s", err, out)
	}

	produced := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+".dxf")
	if _, err := os.Stat(produced); err != nil {
		return nil, fmt.Errorf("oda converter produced no output for %s", path)
	}
	return &Result{Input: path, Output: produced, Backend: BackendODA}, nil
}

func (c *Converter) runLibreOffice(ctx context.Context, bin, path, outDir string) (*Result, error) {
	out, err := c.run(ctx, bin, "--headless", "--convert-to", "dxf", "--outdir", outDir, path)
	if err != nil {
		return nil, fmt.Errorf("libreoffice convert: %w: %s", err, out)
	}
	produced := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+".dxf")
	if _, err := os.Stat(produced); err != nil {
		return nil, fmt.Errorf("libreoffice produced no output for %s", path)
	}
	return &Result{Input: path, Output: produced, Backend: BackendLibreOffice}, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}
