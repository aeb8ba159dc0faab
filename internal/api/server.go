package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/balance.report/internal/artifact"
	"github.com/banshee-data/balance.report/internal/display"
	"github.com/banshee-data/balance.report/internal/engine"
	"github.com/banshee-data/balance.report/internal/monitoring"
	"github.com/banshee-data/balance.report/internal/sample"
	"github.com/banshee-data/balance.report/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	loop      *engine.Loop
	store     *engine.Store
	artifacts *artifact.Store
	hub       *display.Hub
	units     string
}

// NewServer wires the API over the acquisition engine. artifacts and hub
// may be nil; the corresponding endpoints report service unavailable.
func NewServer(loop *engine.Loop, store *engine.Store, artifacts *artifact.Store, hub *display.Hub, targetUnits string) *Server {
	return &Server{
		loop:      loop,
		store:     store,
		artifacts: artifacts,
		hub:       hub,
		units:     targetUnits,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/samples/recent", s.listRecentSamples)
	mux.HandleFunc("/api/balance_stats", s.showBalanceStats)
	mux.HandleFunc("/api/export/session", s.exportSession)
	mux.HandleFunc("/api/export/trial", s.exportTrial)
	mux.HandleFunc("/api/trial/clear", s.clearTrial)
	mux.HandleFunc("/api/artifacts", s.listArtifacts)
	mux.HandleFunc("/api/display/clear", s.clearDisplay)
	mux.HandleFunc("/api/display/focus", s.focusDisplay)
	mux.HandleFunc("/api/config", s.showConfig)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	status := map[string]interface{}{
		"loop":         s.loop.Stats(),
		"session_rows": s.store.SessionRows(),
		"trial_rows":   s.store.TrialRows(),
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write status")
		return
	}
}

func (s *Server) listRecentSamples(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	n := 100 // default value
	if q := r.URL.Query().Get("n"); q != "" {
		parsed, err := strconv.Atoi(q)
		if err != nil || parsed < 0 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'n' parameter")
			return
		}
		n = parsed
	}
	if rows := s.store.SessionRows(); n > rows {
		n = rows
	}

	allCols := []int{
		sample.ColCogX, sample.ColCogY,
		sample.ColSensor1, sample.ColSensor2, sample.ColSensor3, sample.ColSensor4,
		sample.ColBattery, sample.ColTimestamp,
	}
	rows, err := s.store.LastN(n, allCols)
	if err != nil {
		if errors.Is(err, sample.ErrOutOfRange) {
			s.writeJSONError(w, http.StatusBadRequest, "Requested more samples than buffered")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve samples: %v", err))
		return
	}

	out := make([]sample.Sample, len(rows))
	for i, row := range rows {
		smp := sample.FromRow(row)
		smp.CogX = units.ConvertLength(smp.CogX, s.units)
		smp.CogY = units.ConvertLength(smp.CogY, s.units)
		out[i] = smp
	}

	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write samples")
		return
	}
}

// BalanceStats summarises recent sway. Lengths are in the server's
// configured units.
type BalanceStats struct {
	Rows       int     `json:"rows"`
	MeanX      float64 `json:"mean_x"`
	MeanY      float64 `json:"mean_y"`
	StdDevX    float64 `json:"stddev_x"`
	StdDevY    float64 `json:"stddev_y"`
	PathLength float64 `json:"path_length"`
	Units      string  `json:"units"`
}

func (s *Server) showBalanceStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	n := s.store.SessionRows() // default: whole session
	if q := r.URL.Query().Get("n"); q != "" {
		parsed, err := strconv.Atoi(q)
		if err != nil || parsed < 0 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'n' parameter")
			return
		}
		if parsed < n {
			n = parsed
		}
	}

	rows, err := s.store.LastN(n, []int{sample.ColCogX, sample.ColCogY})
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve samples: %v", err))
		return
	}

	stats := BalanceStats{Rows: len(rows), Units: s.units}
	if len(rows) > 0 {
		xs := make([]float64, len(rows))
		ys := make([]float64, len(rows))
		for i, row := range rows {
			xs[i] = units.ConvertLength(row[0], s.units)
			ys[i] = units.ConvertLength(row[1], s.units)
		}
		stats.MeanX, stats.StdDevX = stat.MeanStdDev(xs, nil)
		stats.MeanY, stats.StdDevY = stat.MeanStdDev(ys, nil)
		// gonum reports NaN stddev for a single sample; report zero instead
		if math.IsNaN(stats.StdDevX) {
			stats.StdDevX = 0
		}
		if math.IsNaN(stats.StdDevY) {
			stats.StdDevY = 0
		}
		for i := 1; i < len(rows); i++ {
			stats.PathLength += math.Hypot(xs[i]-xs[i-1], ys[i]-ys[i-1])
		}
	}

	if err := json.NewEncoder(w).Encode(stats); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write balance stats")
		return
	}
}

func (s *Server) exportSession(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, artifact.KindSession, s.store.ExportSession)
}

func (s *Server) exportTrial(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, artifact.KindTrial, s.store.ExportTrial)
}

// export runs one export-and-clear through the store. The buffer clears
// only if the artifact write commits, so a failed save keeps the samples.
func (s *Server) export(w http.ResponseWriter, r *http.Request, kind string, run func(func(sample.Snapshot) error) error) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.artifacts == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "artifact store not configured")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = artifact.DefaultName(kind, time.Now())
	}

	var saved artifact.Artifact
	err := run(func(snap sample.Snapshot) error {
		var werr error
		saved, werr = s.artifacts.WriteArtifact(name, kind, snap)
		return werr
	})
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to export %s: %v", kind, err))
		return
	}

	if err := json.NewEncoder(w).Encode(saved); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write artifact")
		return
	}
}

func (s *Server) clearTrial(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.store.ClearTrial()
	json.NewEncoder(w).Encode(map[string]string{"status": "trial cleared"})
}

func (s *Server) listArtifacts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.artifacts == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "artifact store not configured")
		return
	}

	artifacts, err := s.artifacts.ListArtifacts()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list artifacts: %v", err))
		return
	}
	if artifacts == nil {
		artifacts = []artifact.Artifact{}
	}

	if err := json.NewEncoder(w).Encode(artifacts); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write artifacts")
		return
	}
}

func (s *Server) clearDisplay(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.hub == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "display not configured")
		return
	}

	s.hub.Clear()
	json.NewEncoder(w).Encode(map[string]string{"status": "display cleared"})
}

func (s *Server) focusDisplay(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.hub == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "display not configured")
		return
	}

	s.hub.BringToFront()
	json.NewEncoder(w).Encode(map[string]string{"status": "display focused"})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	config := map[string]interface{}{
		"units":          s.units,
		"sample_rate_hz": 1 / s.loop.Period().Seconds(),
	}

	if err := json.NewEncoder(w).Encode(config); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}
