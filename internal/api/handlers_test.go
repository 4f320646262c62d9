package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/maltedev/spa-slots/internal/appointment"
	"github.com/maltedev/spa-slots/internal/jobs"
	"github.com/maltedev/spa-slots/internal/metrics"
	"github.com/maltedev/spa-slots/internal/settings"
	"github.com/maltedev/spa-slots/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// 10 Jan 2026, 12:00 local time
var testNow = time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)

type MockScraper struct {
	mock.Mock
}

func (m *MockScraper) Scrape(ctx context.Context) (*appointment.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appointment.Snapshot), args.Error(1)
}

type MockJobRunner struct {
	mock.Mock
}

func (m *MockJobRunner) Trigger(ctx context.Context) (*jobs.Job, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jobs.Job), args.Error(1)
}

func (m *MockJobRunner) Get(id string) (*jobs.Job, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jobs.Job), args.Error(1)
}

func (m *MockJobRunner) List() []*jobs.Job {
	args := m.Called()
	return args.Get(0).([]*jobs.Job)
}

type testServer struct {
	handler  http.Handler
	store    *storage.SnapshotStore
	scraper  *MockScraper
	jobs     *MockJobRunner
	settings *settings.Store
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := storage.NewSnapshotStore(filepath.Join(t.TempDir(), "appointments.json"))
	require.NoError(t, err)

	ts := &testServer{
		store:    store,
		scraper:  new(MockScraper),
		jobs:     new(MockJobRunner),
		settings: settings.NewStore(filepath.Join(t.TempDir(), "settings.json"), testLogger()),
	}

	reg := prometheus.NewRegistry()
	metrics.New(reg, "test")

	h := NewHandlers(ts.store, ts.scraper, ts.jobs, ts.settings, appointment.FixedClock(testNow), testLogger())
	ts.handler = NewRouter(h, RouterOptions{
		AllowedOrigins: []string{"*"},
		RequestTimeout: 5 * time.Second,
		Gatherer:       reg,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// mixedSnapshot holds two past and eight upcoming appointments.
func mixedSnapshot() *appointment.Snapshot {
	apts := []appointment.Appointment{
		{Date: "09.01.2026", Time: "10:00", Treatment: "Past"},
		{Date: "10.01.2026", Time: "11:59", Treatment: "Just missed"},
		{Date: "10.01.2026", Time: "12:00", Treatment: "Now"},
	}
	for i := 0; i < 7; i++ {
		apts = append(apts, appointment.Appointment{Date: "11.01.", Time: "1" + string(rune('0'+i)) + ":00", Treatment: "Future"})
	}
	return appointment.NewSnapshot(apts, testNow.Add(-time.Hour))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no_data", decode[HealthResponse](t, rec).Status)

	require.NoError(t, ts.store.Save(mixedSnapshot()))
	rec = ts.do(t, http.MethodGet, "/health", nil)
	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 10, resp.Count)
	assert.NotNil(t, resp.LastUpdated)
}

func TestGetAppointments(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.Save(mixedSnapshot()))

	t.Run("stored snapshot", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/appointments", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		snap := decode[appointment.Snapshot](t, rec)
		assert.True(t, snap.Success)
		assert.Equal(t, 10, snap.Count)
	})

	t.Run("future only", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/appointments?future=true", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		snap := decode[appointment.Snapshot](t, rec)
		assert.Equal(t, 8, snap.Count)
		assert.Len(t, snap.Appointments, 8)
		assert.Equal(t, "Now", snap.Appointments[0].Treatment)
	})

	ts.scraper.AssertNotCalled(t, "Scrape", mock.Anything)
}

func TestGetAppointments_NoSnapshot(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/appointments", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	snap := decode[appointment.Snapshot](t, rec)
	assert.False(t, snap.Success)
	assert.NotEmpty(t, snap.Error)
	assert.NotNil(t, snap.Appointments)
	assert.Empty(t, snap.Appointments)
}

func TestGetAppointments_Live(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.Save(mixedSnapshot()))

	fresh := appointment.NewSnapshot([]appointment.Appointment{
		{Date: "12.01.2026", Time: "09:00", Treatment: "Fresh"},
	}, testNow)
	ts.scraper.On("Scrape", mock.Anything).Return(fresh, nil).Once()

	rec := ts.do(t, http.MethodGet, "/api/appointments?live=true", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	snap := decode[appointment.Snapshot](t, rec)
	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, "Fresh", snap.Appointments[0].Treatment)

	stored, err := ts.store.Current()
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Count, "live result replaces the stored snapshot")

	ts.scraper.AssertExpectations(t)
}

func TestGetAppointments_LiveFallsBack(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.Save(mixedSnapshot()))
	ts.scraper.On("Scrape", mock.Anything).Return(nil, errors.New("navigation timeout"))

	rec := ts.do(t, http.MethodGet, "/api/appointments?live=true&future=true", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 8, decode[appointment.Snapshot](t, rec).Count)
}

func TestGetAppointments_LiveFailsWithoutSnapshot(t *testing.T) {
	ts := newTestServer(t)
	ts.scraper.On("Scrape", mock.Anything).Return(nil, errors.New("navigation timeout"))

	rec := ts.do(t, http.MethodGet, "/api/appointments?live=true", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, decode[appointment.Snapshot](t, rec).Success)
}

func TestGetSnapshotFile(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/appointments.json", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, ts.store.Save(mixedSnapshot()))
	rec = ts.do(t, http.MethodGet, "/appointments.json", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	raw, err := ts.store.Raw()
	require.NoError(t, err)
	assert.Equal(t, string(raw), rec.Body.String())
}

func TestListView(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.Save(mixedSnapshot()))

	rec := ts.do(t, http.MethodGet, "/api/views/list?page=2", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decode[ListViewResponse](t, rec)
	assert.Equal(t, 2, resp.Page.Page)
	assert.Equal(t, 2, resp.TotalPages)
	assert.Equal(t, 8, resp.TotalItems)
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, settings.DefaultEmptyStateText, resp.EmptyStateText)

	rec = ts.do(t, http.MethodGet, "/api/views/list?page=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListView_NoSnapshot(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/views/list", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decode[ListViewResponse](t, rec)
	assert.Empty(t, resp.Items)
	assert.Equal(t, 0, resp.TotalItems)
	assert.Equal(t, settings.DefaultEmptyStateText, resp.EmptyStateText)
}

func TestSignageView(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.Save(mixedSnapshot()))

	rec := ts.do(t, http.MethodGet, "/api/views/signage", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SignageViewResponse](t, rec)
	assert.Len(t, resp.Appointments, 6)
	assert.Equal(t, 0, resp.Start)
	assert.Equal(t, 6, resp.NextStart)
	assert.Equal(t, 8, resp.Total)
	assert.Equal(t, 140, resp.Settings.SignageImageWidth)

	rec = ts.do(t, http.MethodGet, "/api/views/signage?start=6", nil)
	resp = decode[SignageViewResponse](t, rec)
	assert.Len(t, resp.Appointments, 2)
	assert.Equal(t, 0, resp.NextStart, "wraps to the first window")

	rec = ts.do(t, http.MethodGet, "/api/views/signage?start=99", nil)
	resp = decode[SignageViewResponse](t, rec)
	assert.Equal(t, 0, resp.Start)
}

func TestRefresh(t *testing.T) {
	ts := newTestServer(t)
	ts.jobs.On("Trigger", mock.Anything).Return(&jobs.Job{ID: "job-1", Status: jobs.StatusPending}, nil)

	rec := ts.do(t, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	resp := decode[RefreshResponse](t, rec)
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, jobs.StatusPending, resp.Status)
}

func TestRefresh_Error(t *testing.T) {
	ts := newTestServer(t)
	ts.jobs.On("Trigger", mock.Anything).Return(nil, errors.New("job manager stopped"))

	rec := ts.do(t, http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestJobs(t *testing.T) {
	ts := newTestServer(t)
	job := &jobs.Job{ID: "job-1", Status: jobs.StatusCompleted, Count: 4}
	ts.jobs.On("Get", "job-1").Return(job, nil)
	ts.jobs.On("Get", "missing").Return(nil, jobs.ErrJobNotFound)
	ts.jobs.On("List").Return([]*jobs.Job{job})

	rec := ts.do(t, http.MethodGet, "/api/jobs/job-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decode[jobs.Job](t, rec).Count)

	rec = ts.do(t, http.MethodGet, "/api/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/jobs", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]jobs.Job](t, rec), 1)
}

func TestSettings(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/settings", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, settings.Defaults(), decode[settings.Settings](t, rec))

	rec = ts.do(t, http.MethodPut, "/api/settings", []byte(`{"signageImageWidth": 200}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	got := decode[settings.Settings](t, rec)
	assert.Equal(t, 200, got.SignageImageWidth)
	assert.Equal(t, 8, got.SignageRotationInterval)

	rec = ts.do(t, http.MethodPut, "/api/settings", []byte(`{"signageRotationInterval": 0}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/settings", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/settings", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, settings.Defaults(), ts.settings.Get())
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_appointments")
}
