package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/parkcheck/conditions-engine/internal/adapter/http"
	"github.com/parkcheck/conditions-engine/internal/domain"
	"github.com/parkcheck/conditions-engine/internal/store"
)

var testNow = time.Date(2025, time.May, 14, 15, 30, 0, 0, time.UTC)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func newTestServer(t *testing.T, readyErr error) (*httpadapter.Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := clockwork.NewFakeClockAt(testNow)
	srv := httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, st, slog.Default(), clock)
	return srv, st
}

func get(srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := get(srv, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := get(srv, "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv, _ := newTestServer(t, fmt.Errorf("not ready yet"))
	rec := get(srv, "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := get(srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestConditionsBySlug(t *testing.T) {
	srv, st := newTestServer(t, nil)
	ctx := context.Background()

	status := domain.StatusDry
	cond := domain.NewSiteConditions("riverside")
	cond.CompositeStatus = &status
	cond.ReportCount = 3
	cond.UpdatedAt = testNow
	require.NoError(t, st.PutConditions(ctx, cond))

	rec := get(srv, "/conditions/riverside")
	assert.Equal(t, http.StatusOK, rec.Code)

	var got domain.SiteConditions
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.CompositeStatus)
	assert.Equal(t, domain.StatusDry, *got.CompositeStatus)
	assert.Equal(t, 3, got.ReportCount)
}

func TestConditionsUnknownSlugReturns404(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := get(srv, "/conditions/nowhere")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConditionsIndex(t *testing.T) {
	srv, st := newTestServer(t, nil)
	ctx := context.Background()

	require.NoError(t, st.PutSite(ctx, domain.Site{Slug: "riverside", Name: "Riverside Park"}))
	require.NoError(t, st.PutSite(ctx, domain.Site{Slug: "shadegrove", Name: "Shade Grove"}))

	status := domain.StatusWet
	cond := domain.NewSiteConditions("riverside")
	cond.CompositeStatus = &status
	cond.ReportCount = 2
	cond.UpdatedAt = testNow
	require.NoError(t, st.PutConditions(ctx, cond))

	rec := get(srv, "/conditions")
	assert.Equal(t, http.StatusOK, rec.Code)

	var got []struct {
		Slug            string         `json:"slug"`
		CompositeStatus *domain.Status `json:"compositeStatus"`
		ReportCount     int            `json:"reportCount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "riverside", got[0].Slug)
	require.NotNil(t, got[0].CompositeStatus)
	assert.Equal(t, domain.StatusWet, *got[0].CompositeStatus)
	// No conditions record yet: composite is null, not an error.
	assert.Equal(t, "shadegrove", got[1].Slug)
	assert.Nil(t, got[1].CompositeStatus)
}

func TestEstimates(t *testing.T) {
	srv, st := newTestServer(t, nil)

	rec := get(srv, "/estimates")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, st.PutEstimates(context.Background(), &domain.DryEstimates{
		ComputedAt: testNow,
		Estimates:  map[string]domain.DryEstimate{"riverside": {IsDry: true}},
	}))

	rec = get(srv, "/estimates")
	assert.Equal(t, http.StatusOK, rec.Code)

	var got domain.DryEstimates
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Estimates["riverside"].IsDry)
}

func TestLeaderboard(t *testing.T) {
	srv, st := newTestServer(t, nil)

	recent := testNow.Add(-2 * 24 * time.Hour)
	old := testNow.Add(-40 * 24 * time.Hour)
	ledger := &domain.StatsLedger{Reporters: []*domain.ReporterProfile{
		{ID: "alice", Reputation: 120, Level: domain.LevelRegular, LastReportAt: &recent},
		{ID: "bob", Reputation: 600, Level: domain.LevelLocal, LastReportAt: &old},
	}}
	require.NoError(t, st.PutLedger(context.Background(), ledger))

	rec := get(srv, "/leaderboard")
	assert.Equal(t, http.StatusOK, rec.Code)

	var got []struct {
		ID          string `json:"id"`
		Reputation  int    `json:"reputation"`
		NextLevelAt *int   `json:"nextLevelAt"`
		ProgressPct int    `json:"progressPct"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "bob", got[0].ID)
	require.NotNil(t, got[0].NextLevelAt)
	assert.Equal(t, 2000, *got[0].NextLevelAt)

	// Weekly view drops reporters inactive for over a week.
	rec = get(srv, "/leaderboard?period=week")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].ID)
}
