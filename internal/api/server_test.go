package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/balance.report/internal/artifact"
	"github.com/banshee-data/balance.report/internal/board"
	"github.com/banshee-data/balance.report/internal/display"
	"github.com/banshee-data/balance.report/internal/engine"
	"github.com/banshee-data/balance.report/internal/monitoring"
	"github.com/banshee-data/balance.report/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

type serverFixture struct {
	srv   *Server
	store *engine.Store
	mux   *http.ServeMux
}

func newFixture(t *testing.T, targetUnits string, withArtifacts bool) *serverFixture {
	t.Helper()

	store := engine.NewStore(64, 32)
	loop, err := engine.NewLoop(board.NewMockBoard(), store, nil, nil, 44, true)
	testutil.AssertNoError(t, err)

	var artifacts *artifact.Store
	if withArtifacts {
		artifacts, err = artifact.NewStore(filepath.Join(t.TempDir(), "balance.db"))
		testutil.AssertNoError(t, err)
		t.Cleanup(func() { artifacts.Close() })
		testutil.AssertNoError(t, artifacts.MigrateUp("../../migrations"))
	}

	srv := NewServer(loop, store, artifacts, display.NewHub(16), targetUnits)
	return &serverFixture{srv: srv, store: store, mux: srv.ServeMux()}
}

func (f *serverFixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (f *serverFixture) post(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func fill(f *serverFixture, n int) {
	for i := 0; i < n; i++ {
		f.store.Accept(testutil.SwaySample(i))
	}
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t, "cm", false)
	fill(f, 3)

	rec := f.get(t, "/api/status")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var status struct {
		Loop        engine.Stats `json:"loop"`
		SessionRows int          `json:"session_rows"`
		TrialRows   int          `json:"trial_rows"`
	}
	testutil.DecodeJSON(t, rec, &status)
	if status.SessionRows != 3 || status.TrialRows != 3 {
		t.Errorf("rows = (%d, %d), want (3, 3)", status.SessionRows, status.TrialRows)
	}
	if status.Loop.State != "idle" {
		t.Errorf("loop state = %q, want idle", status.Loop.State)
	}
}

func TestRecentSamplesDefaultsAndClamps(t *testing.T) {
	f := newFixture(t, "cm", false)
	fill(f, 5)

	rec := f.get(t, "/api/samples/recent")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var samples []map[string]float64
	testutil.DecodeJSON(t, rec, &samples)
	// default n=100 clamps to the 5 buffered rows
	if len(samples) != 5 {
		t.Fatalf("got %d samples, want 5", len(samples))
	}
	if got := samples[4]["cog_x"]; got != 4 {
		t.Errorf("latest cog_x = %v, want 4", got)
	}
}

func TestRecentSamplesUnitConversion(t *testing.T) {
	f := newFixture(t, "mm", false)
	fill(f, 2)

	rec := f.get(t, "/api/samples/recent?n=1")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var samples []map[string]float64
	testutil.DecodeJSON(t, rec, &samples)
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	// sample 1 sits at (1, -1) cm, reported in mm
	if got := samples[0]["cog_x"]; got != 10 {
		t.Errorf("cog_x = %v, want 10 (1 cm in mm)", got)
	}
	if got := samples[0]["cog_y"]; got != -10 {
		t.Errorf("cog_y = %v, want -10", got)
	}
	// sensor loads are kilograms, not lengths; they stay raw
	if got := samples[0]["sensor1"]; got != 18 {
		t.Errorf("sensor1 = %v, want raw 18", got)
	}
}

func TestRecentSamplesBadParam(t *testing.T) {
	f := newFixture(t, "cm", false)
	testutil.AssertStatusCode(t, f.get(t, "/api/samples/recent?n=-1").Code, http.StatusBadRequest)
	testutil.AssertStatusCode(t, f.get(t, "/api/samples/recent?n=abc").Code, http.StatusBadRequest)
}

func TestBalanceStats(t *testing.T) {
	f := newFixture(t, "cm", false)
	// Two points: (0, 0) and (1, -1).
	fill(f, 2)

	rec := f.get(t, "/api/balance_stats")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var stats BalanceStats
	testutil.DecodeJSON(t, rec, &stats)
	if stats.Rows != 2 {
		t.Fatalf("rows = %d, want 2", stats.Rows)
	}
	if stats.MeanX != 0.5 || stats.MeanY != -0.5 {
		t.Errorf("means = (%v, %v), want (0.5, -0.5)", stats.MeanX, stats.MeanY)
	}
	// path from (0,0) to (1,-1) is sqrt(2)
	if stats.PathLength < 1.414 || stats.PathLength > 1.415 {
		t.Errorf("path length = %v, want ~1.4142", stats.PathLength)
	}
	if stats.Units != "cm" {
		t.Errorf("units = %q, want cm", stats.Units)
	}
}

func TestBalanceStatsSingleSample(t *testing.T) {
	f := newFixture(t, "cm", false)
	fill(f, 1)

	rec := f.get(t, "/api/balance_stats?n=1")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var stats BalanceStats
	testutil.DecodeJSON(t, rec, &stats)
	if stats.StdDevX != 0 || stats.StdDevY != 0 {
		t.Errorf("stddev = (%v, %v), want zero for a single sample", stats.StdDevX, stats.StdDevY)
	}
}

func TestExportSessionClearsBuffers(t *testing.T) {
	f := newFixture(t, "cm", true)
	fill(f, 4)

	rec := f.post(t, "/api/export/session", url.Values{"name": {"morning_session"}})
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var saved artifact.Artifact
	testutil.DecodeJSON(t, rec, &saved)
	if saved.Name != "morning_session" || saved.Kind != artifact.KindSession || saved.RowCount != 4 {
		t.Errorf("artifact = %+v, want morning_session/session/4", saved)
	}
	if f.store.SessionRows() != 0 || f.store.TrialRows() != 0 {
		t.Errorf("rows after export = (%d, %d), want (0, 0)", f.store.SessionRows(), f.store.TrialRows())
	}
}

func TestExportTrialLeavesSession(t *testing.T) {
	f := newFixture(t, "cm", true)
	fill(f, 4)

	rec := f.post(t, "/api/export/trial", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var saved artifact.Artifact
	testutil.DecodeJSON(t, rec, &saved)
	if saved.Kind != artifact.KindTrial {
		t.Errorf("kind = %q, want trial", saved.Kind)
	}
	if !strings.HasPrefix(saved.Name, "trial_") {
		t.Errorf("default name = %q, want trial_ prefix", saved.Name)
	}
	if f.store.SessionRows() != 4 {
		t.Errorf("SessionRows() = %d, want 4 after trial export", f.store.SessionRows())
	}
	if f.store.TrialRows() != 0 {
		t.Errorf("TrialRows() = %d, want 0 after trial export", f.store.TrialRows())
	}
}

func TestExportRequiresPost(t *testing.T) {
	f := newFixture(t, "cm", true)
	testutil.AssertStatusCode(t, f.get(t, "/api/export/session").Code, http.StatusMethodNotAllowed)
	testutil.AssertStatusCode(t, f.get(t, "/api/export/trial").Code, http.StatusMethodNotAllowed)
}

func TestExportWithoutArtifactStore(t *testing.T) {
	f := newFixture(t, "cm", false)
	fill(f, 2)

	rec := f.post(t, "/api/export/session", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusServiceUnavailable)
	// failed export leaves the buffers untouched
	if f.store.SessionRows() != 2 {
		t.Errorf("SessionRows() = %d, want 2", f.store.SessionRows())
	}
}

func TestClearTrial(t *testing.T) {
	f := newFixture(t, "cm", false)
	fill(f, 3)

	rec := f.post(t, "/api/trial/clear", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if f.store.TrialRows() != 0 {
		t.Errorf("TrialRows() = %d, want 0", f.store.TrialRows())
	}
	if f.store.SessionRows() != 3 {
		t.Errorf("SessionRows() = %d, want 3", f.store.SessionRows())
	}
}

func TestListArtifacts(t *testing.T) {
	f := newFixture(t, "cm", true)
	fill(f, 2)
	testutil.AssertStatusCode(t, f.post(t, "/api/export/session", nil).Code, http.StatusOK)

	rec := f.get(t, "/api/artifacts")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var list []artifact.Artifact
	testutil.DecodeJSON(t, rec, &list)
	if len(list) != 1 {
		t.Errorf("got %d artifacts, want 1", len(list))
	}
}

func TestDisplayControls(t *testing.T) {
	f := newFixture(t, "cm", false)
	f.srv.hub.Plot(1, 1)

	testutil.AssertStatusCode(t, f.post(t, "/api/display/clear", nil).Code, http.StatusOK)
	if got := len(f.srv.hub.History()); got != 0 {
		t.Errorf("hub history = %d points after clear, want 0", got)
	}
	testutil.AssertStatusCode(t, f.post(t, "/api/display/focus", nil).Code, http.StatusOK)
	testutil.AssertStatusCode(t, f.get(t, "/api/display/clear").Code, http.StatusMethodNotAllowed)
}

func TestShowConfig(t *testing.T) {
	f := newFixture(t, "in", false)

	rec := f.get(t, "/api/config")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var cfg struct {
		Units        string  `json:"units"`
		SampleRateHz float64 `json:"sample_rate_hz"`
	}
	testutil.DecodeJSON(t, rec, &cfg)
	if cfg.Units != "in" {
		t.Errorf("units = %q, want in", cfg.Units)
	}
	if cfg.SampleRateHz < 43.9 || cfg.SampleRateHz > 44.1 {
		t.Errorf("sample_rate_hz = %v, want ~44", cfg.SampleRateHz)
	}
}
