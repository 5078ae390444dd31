// Package server exposes the extraction and classification pipeline over a
// local HTTP API, for plugging into drawing-review front ends.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chaoyuebeta/areacalc-hk/pkg/export"
	"github.com/chaoyuebeta/areacalc-hk/pkg/extract"
	"github.com/chaoyuebeta/areacalc-hk/pkg/report"
	"github.com/chaoyuebeta/areacalc-hk/pkg/rules"
)

// maxUploadBytes bounds drawing uploads. A1 scans at 200 dpi run tens of
// megabytes.
const maxUploadBytes = 100 << 20

// downloadTTL is how long a prepared workbook stays available.
const downloadTTL = 15 * time.Minute

type download struct {
	name    string
	data    []byte
	expires time.Time
}

// Server is the local analysis server.
type Server struct {
	port  int
	table *rules.Table

	mu        sync.Mutex
	downloads map[string]download
}

// New creates a server. A nil table means the embedded rules.
func New(port int, table *rules.Table) *Server {
	if table == nil {
		table = rules.Default()
	}
	return &Server{
		port:      port,
		table:     table,
		downloads: make(map[string]download),
	}
}

// Handler builds the API mux. Split from Start so tests can drive it with
// httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/rules", s.handleRules)
	mux.HandleFunc("POST /api/classify", s.handleClassify)
	mux.HandleFunc("POST /api/analyse", s.handleAnalyse)
	mux.HandleFunc("GET /api/download/{id}", s.handleDownload)

	return mux
}

// Start launches the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	log.Printf("areacalc server starting on http://localhost%s", addr)
	log.Printf("Rules loaded: %d", len(s.table.Rules))

	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(s.table.Rules),
		"rules": s.table.Rules,
	})
}

// classifyRequest is the POST /api/classify body.
type classifyRequest struct {
	BuildingType string             `json:"building_type"`
	Rooms        []report.RoomInput `json:"rooms"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Rooms) == 0 {
		writeError(w, http.StatusBadRequest, "rooms is required")
		return
	}
	for _, rm := range req.Rooms {
		if rm.AreaM2 < 0 {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("room %q: area_m2 must be >= 0", rm.Label))
			return
		}
	}
	bt, err := buildingType(req.BuildingType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report.Aggregate(req.Rooms, bt, s.table))
}

// handleAnalyse accepts a multipart drawing upload, runs the full pipeline
// and returns the building report. With excel=true an .xlsx download link
// is included in the response.
func (s *Server) handleAnalyse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	bt, err := buildingType(r.FormValue("building_type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := extract.Options{
		Floor:    r.FormValue("floor"),
		ForceOCR: r.FormValue("force_ocr") == "true",
	}
	if v := r.FormValue("scale"); v != "" {
		scale, err := strconv.Atoi(v)
		if err != nil || scale <= 0 {
			writeError(w, http.StatusBadRequest, "scale must be a positive integer")
			return
		}
		opts.Scale = scale
	}

	// The adapters dispatch on extension, so the upload is staged under
	// its original file name.
	tmpDir, err := os.MkdirTemp("", "areacalc-upload-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not stage upload")
		return
	}
	defer os.RemoveAll(tmpDir)

	staged := filepath.Join(tmpDir, filepath.Base(hdr.Filename))
	dst, err := os.Create(staged)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not stage upload")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		writeError(w, http.StatusInternalServerError, "could not stage upload")
		return
	}
	dst.Close()

	units, err := extract.Parse(staged, opts)
	if err != nil {
		writeError(w, statusForExtractError(err), err.Error())
		return
	}
	rooms, warnings := extract.RoomInputs(units)
	rep := report.Aggregate(rooms, bt, s.table)
	rep.Warnings = append(warnings, rep.Warnings...)

	resp := map[string]any{
		"units":  units,
		"report": rep,
	}
	if r.FormValue("excel") == "true" {
		id, err := s.stashWorkbook(rep, hdr.Filename)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("excel export failed: %v", err))
			return
		}
		resp["download_url"] = "/api/download/" + id
	}

	log.Printf("analysed %s: %d units, GFA %.2f m²", hdr.Filename, len(units), rep.TotalGFAM2)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	d, ok := s.downloads[id]
	if ok && time.Now().After(d.expires) {
		delete(s.downloads, id)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "download not found or expired")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.name))
	w.Write(d.data)
}

// stashWorkbook renders the report to xlsx and parks it for download.
func (s *Server) stashWorkbook(rep *report.BuildingReport, source string) (string, error) {
	var buf bytes.Buffer
	if err := export.Write(rep, &buf); err != nil {
		return "", err
	}

	id := uuid.NewString()
	base := source[:len(source)-len(filepath.Ext(source))]

	s.mu.Lock()
	now := time.Now()
	for k, d := range s.downloads {
		if now.After(d.expires) {
			delete(s.downloads, k)
		}
	}
	s.downloads[id] = download{
		name:    base + "-areas.xlsx",
		data:    buf.Bytes(),
		expires: now.Add(downloadTTL),
	}
	s.mu.Unlock()

	return id, nil
}

func buildingType(v string) (rules.BuildingType, error) {
	if v == "" {
		return rules.Residential, nil
	}
	return rules.ParseBuildingType(v)
}

func statusForExtractError(err error) int {
	var unsupported *extract.UnsupportedFormatError
	var capability *extract.CapabilityError
	switch {
	case errors.As(err, &unsupported):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &capability):
		return http.StatusNotImplemented
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
