package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/maltedev/spa-slots/internal/appointment"
	"github.com/maltedev/spa-slots/internal/jobs"
	"github.com/maltedev/spa-slots/internal/settings"
	"github.com/maltedev/spa-slots/internal/storage"
	"github.com/maltedev/spa-slots/internal/views"
)

type SnapshotStore interface {
	Current() (*appointment.Snapshot, error)
	Raw() ([]byte, error)
	Save(snap *appointment.Snapshot) error
}

type Scraper interface {
	Scrape(ctx context.Context) (*appointment.Snapshot, error)
}

type JobRunner interface {
	Trigger(ctx context.Context) (*jobs.Job, error)
	Get(id string) (*jobs.Job, error)
	List() []*jobs.Job
}

type SettingsStore interface {
	Get() settings.Settings
	Update(u settings.Update) (settings.Settings, error)
	Reset() (settings.Settings, error)
}

type Handlers struct {
	snapshots SnapshotStore
	scraper   Scraper
	jobs      JobRunner
	settings  SettingsStore
	clock     appointment.Clock
	logger    *slog.Logger
}

func NewHandlers(snapshots SnapshotStore, scraper Scraper, jobs JobRunner, settings SettingsStore, clock appointment.Clock, logger *slog.Logger) *Handlers {
	if clock == nil {
		clock = appointment.SystemClock()
	}
	return &Handlers{
		snapshots: snapshots,
		scraper:   scraper,
		jobs:      jobs,
		settings:  settings,
		clock:     clock,
		logger:    logger.With("component", "api"),
	}
}

// HealthResponse reports whether a snapshot is being served.
type HealthResponse struct {
	Status      string     `json:"status"`
	LastUpdated *time.Time `json:"lastUpdated"`
	Count       int        `json:"count"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}

	snap, err := h.snapshots.Current()
	if err != nil {
		resp.Status = "no_data"
	} else {
		resp.LastUpdated = snap.LastUpdated
		resp.Count = snap.Count
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// GetAppointments serves the current snapshot. With live=true it scrapes
// first and falls back to the stored snapshot on failure; future=true drops
// appointments that already started.
func (h *Handlers) GetAppointments(w http.ResponseWriter, r *http.Request) {
	future := boolParam(r, "future")

	var snap *appointment.Snapshot
	if boolParam(r, "live") {
		snap = h.liveSnapshot(r.Context())
	}

	if snap == nil {
		current, err := h.snapshots.Current()
		if err != nil {
			if !errors.Is(err, storage.ErrNoSnapshot) {
				h.logger.Error("failed to read snapshot", "error", err)
			}
			h.respondJSON(w, http.StatusInternalServerError, appointment.FailedSnapshot(nil))
			return
		}
		snap = current
	}

	if future {
		snap.Appointments = appointment.FilterPast(snap.Appointments, h.clock.Now())
		snap.Count = len(snap.Appointments)
	}

	h.respondJSON(w, http.StatusOK, snap)
}

func (h *Handlers) liveSnapshot(ctx context.Context) *appointment.Snapshot {
	if h.scraper == nil {
		return nil
	}

	snap, err := h.scraper.Scrape(ctx)
	if err != nil {
		h.logger.Warn("live scrape failed, serving stored snapshot", "error", err)
		return nil
	}

	if err := h.snapshots.Save(snap); err != nil {
		h.logger.Error("failed to save live snapshot", "error", err)
	}
	return snap
}

// GetSnapshotFile serves the snapshot file as written.
func (h *Handlers) GetSnapshotFile(w http.ResponseWriter, r *http.Request) {
	data, err := h.snapshots.Raw()
	if err != nil {
		h.respondError(w, http.StatusNotFound, "no snapshot available")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write snapshot", "error", err)
	}
}

// ListViewResponse is one page of the appointment list.
type ListViewResponse struct {
	views.Page[appointment.Appointment]
	LastUpdated    *time.Time `json:"lastUpdated"`
	EmptyStateText string     `json:"emptyStateText"`
}

func (h *Handlers) GetListView(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", 1)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "page must be a number")
		return
	}

	upcoming, lastUpdated := h.upcoming()
	h.respondJSON(w, http.StatusOK, ListViewResponse{
		Page:           views.Paginate(upcoming, page, views.DefaultPerPage),
		LastUpdated:    lastUpdated,
		EmptyStateText: h.settings.Get().EmptyStateText,
	})
}

// SignageViewResponse is the window the signage screen shows next.
type SignageViewResponse struct {
	Appointments   []appointment.Appointment `json:"appointments"`
	Start          int                       `json:"start"`
	NextStart      int                       `json:"nextStart"`
	Total          int                       `json:"total"`
	LastUpdated    *time.Time                `json:"lastUpdated"`
	EmptyStateText string                    `json:"emptyStateText"`
	Settings       settings.Settings         `json:"settings"`
}

func (h *Handlers) GetSignageView(w http.ResponseWriter, r *http.Request) {
	start, err := intParam(r, "start", 0)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "start must be a number")
		return
	}

	upcoming, lastUpdated := h.upcoming()
	if start < 0 || start >= len(upcoming) {
		start = 0
	}

	rotation := views.Rotation{VisibleCount: views.DefaultVisibleCount}
	current := h.settings.Get()

	h.respondJSON(w, http.StatusOK, SignageViewResponse{
		Appointments:   views.Window(rotation, upcoming, start),
		Start:          start,
		NextStart:      rotation.Next(start, len(upcoming)),
		Total:          len(upcoming),
		LastUpdated:    lastUpdated,
		EmptyStateText: current.EmptyStateText,
		Settings:       current,
	})
}

// upcoming returns the stored appointments that have not started yet. With
// no snapshot the list is empty so the front ends show their empty state.
func (h *Handlers) upcoming() ([]appointment.Appointment, *time.Time) {
	snap, err := h.snapshots.Current()
	if err != nil {
		return []appointment.Appointment{}, nil
	}
	return appointment.FilterPast(snap.Appointments, h.clock.Now()), snap.LastUpdated
}

// RefreshResponse acknowledges a refresh request.
type RefreshResponse struct {
	JobID  string      `json:"jobId"`
	Status jobs.Status `json:"status"`
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Trigger(r.Context())
	if err != nil {
		h.logger.Error("failed to trigger refresh", "error", err)
		h.respondError(w, http.StatusServiceUnavailable, "failed to start refresh")
		return
	}

	h.respondJSON(w, http.StatusAccepted, RefreshResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		h.respondError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	job, err := h.jobs.Get(jobID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.List())
}

func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.settings.Get())
}

func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settings.Update
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.settings.Update(req)
	if err != nil {
		if errors.Is(err, settings.ErrInvalid) {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to update settings", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	h.respondJSON(w, http.StatusOK, updated)
}

func (h *Handlers) ResetSettings(w http.ResponseWriter, r *http.Request) {
	def, err := h.settings.Reset()
	if err != nil {
		h.logger.Error("failed to reset settings", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	h.respondJSON(w, http.StatusOK, def)
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func boolParam(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
