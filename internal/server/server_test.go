package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/summaryqc/internal/database"
	"github.com/TobiSchelling/summaryqc/internal/overlap"
	"github.com/TobiSchelling/summaryqc/internal/quality"
	"github.com/TobiSchelling/summaryqc/internal/report"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err, "failed to open test db")
	t.Cleanup(func() { db.Close() })
	return db
}

func storeRun(t *testing.T, db *database.DB, id string) {
	t.Helper()
	m := overlap.Metrics{Unigram: 0.52, Bigram: 0.31, LCS: 0.44, Mean: 0.4233}
	r := &report.Report{
		RunID:     id,
		CreatedAt: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
		Baseline:  "raw",
		Best:      "raw+moderate",
		Variants: []report.Variant{
			{Name: "raw+moderate", Profile: "moderate", Rows: 2, Changed: 1, Metrics: &m},
			{Name: "raw", Rows: 2},
		},
		Changes: []report.Change{{Variant: "raw+moderate", ID: "test_0", Before: "하고 있습니다.", After: "합니다.", Stages: []string{"verbosity"}}},
		Suspicious: []report.Defect{{Variant: "raw+moderate", ID: "test_1", Score: 85,
			Triggered: []quality.Category{quality.Speculation}, Text: "올 것으로 보입니다."}},
	}
	require.NoError(t, db.Write(context.Background(), r))
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexRoute(t *testing.T) {
	db := openTestDB(t)
	srv, err := New(db, nil)
	require.NoError(t, err, "failed to create server")

	rec := get(t, srv, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No runs yet")

	storeRun(t, db, "run-1")
	rec = get(t, srv, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="/runs/run-1"`)
	assert.Contains(t, rec.Body.String(), "1 runs stored")
}

func TestRunRoute(t *testing.T) {
	db := openTestDB(t)
	storeRun(t, db, "run-1")
	srv, err := New(db, nil)
	require.NoError(t, err)

	rec := get(t, srv, "/runs/run-1")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Run run-1 - summaryqc</title>")
	assert.Contains(t, body, "<td>52.00</td>")
	assert.Contains(t, body, "<td>-</td>", "raw has no overlap metrics")
	assert.Contains(t, body, "<h1>Comparison run run-1</h1>")
	assert.Contains(t, body, `<span class="tag">speculation</span>`)
	assert.Contains(t, body, "합니다.")
}

func TestRunRouteIsCached(t *testing.T) {
	db := openTestDB(t)
	storeRun(t, db, "run-1")
	srv, err := New(db, nil)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, get(t, srv, "/runs/run-1").Code)
	first, cached := srv.cache.Get("run-1")
	require.True(t, cached)

	require.Equal(t, http.StatusOK, get(t, srv, "/runs/run-1").Code)
	second, cached := srv.cache.Get("run-1")
	require.True(t, cached)
	assert.Same(t, first.(*runPage), second.(*runPage))
}

func TestRunRouteDropsDeletedRun(t *testing.T) {
	db := openTestDB(t)
	storeRun(t, db, "run-1")
	srv, err := New(db, nil)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, get(t, srv, "/runs/run-1").Code)
	require.NoError(t, db.DeleteRun("run-1"))

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/runs/run-1").Code)
	_, cached := srv.cache.Get("run-1")
	assert.False(t, cached)
}

func TestRunRouteReloadsReplacedRun(t *testing.T) {
	db := openTestDB(t)
	storeRun(t, db, "run-1")
	srv, err := New(db, nil)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, get(t, srv, "/runs/run-1").Code)

	replacement := &report.Report{
		RunID:     "run-1",
		CreatedAt: time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC),
		Best:      "raw",
		Variants:  []report.Variant{{Name: "raw", Rows: 2}},
	}
	require.NoError(t, db.Write(context.Background(), replacement))

	rec := get(t, srv, "/runs/run-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<strong>raw</strong>")
	assert.NotContains(t, rec.Body.String(), "raw+moderate")
}

func TestRunRouteNotFound(t *testing.T) {
	srv, err := New(openTestDB(t), nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/runs/missing").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/elsewhere").Code)
}

func TestStaticAssets(t *testing.T) {
	srv, err := New(openTestDB(t), nil)
	require.NoError(t, err)

	rec := get(t, srv, "/static/style.css")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "--accent")
}

func TestRejectsPost(t *testing.T) {
	srv, err := New(openTestDB(t), nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
