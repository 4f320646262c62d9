package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/spa-slots/internal/appointment"
)

const maxRetainedJobs = 50

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

var ErrJobNotFound = errors.New("job not found")

// Scraper produces a fresh snapshot.
type Scraper interface {
	Scrape(ctx context.Context) (*appointment.Snapshot, error)
}

type SnapshotSaver interface {
	Save(snap *appointment.Snapshot) error
}

type EventPublisher interface {
	PublishSnapshotUpdated(ctx context.Context, snap *appointment.Snapshot) error
}

// Job represents a refresh run
type Job struct {
	ID          string     `json:"id"`
	Trigger     Trigger    `json:"trigger"`
	Status      Status     `json:"status"`
	Count       int        `json:"count"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Manager runs at most one refresh at a time and remembers recent jobs.
type Manager struct {
	scraper   Scraper
	store     SnapshotSaver
	publisher EventPublisher
	logger    *slog.Logger

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	jobs    map[string]*Job
	running *Job
	now     func() time.Time
}

func NewManager(scraper Scraper, store SnapshotSaver, publisher EventPublisher, logger *slog.Logger) *Manager {
	root, cancel := context.WithCancel(context.Background())
	return &Manager{
		scraper:   scraper,
		store:     store,
		publisher: publisher,
		logger:    logger.With("component", "job_manager"),
		root:      root,
		cancel:    cancel,
		jobs:      make(map[string]*Job),
		now:       time.Now,
	}
}

// Trigger starts a refresh in the background. If one is already running that
// job is returned instead.
func (m *Manager) Trigger(ctx context.Context) (*Job, error) {
	return m.trigger(ctx, TriggerManual)
}

func (m *Manager) trigger(ctx context.Context, trigger Trigger) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if err := m.root.Err(); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("job manager stopped: %w", err)
	}
	if m.running != nil {
		job := *m.running
		m.mu.Unlock()
		m.logger.Info("refresh already running", "id", job.ID)
		return &job, nil
	}

	job := &Job{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		Status:    StatusPending,
		CreatedAt: m.now(),
	}
	m.jobs[job.ID] = job
	m.running = job
	m.prune()
	snapshot := *job
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("job created", "id", job.ID, "trigger", trigger)

	go m.run(job)

	return &snapshot, nil
}

func (m *Manager) run(job *Job) {
	defer m.wg.Done()

	m.update(job, func(j *Job) {
		started := m.now()
		j.Status = StatusRunning
		j.StartedAt = &started
	})

	count, err := m.refresh(m.root)

	m.update(job, func(j *Job) {
		completed := m.now()
		j.CompletedAt = &completed
		if err != nil {
			j.Status = StatusFailed
			j.Error = err.Error()
			return
		}
		j.Status = StatusCompleted
		j.Count = count
	})

	m.mu.Lock()
	if m.running == job {
		m.running = nil
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("job failed", "id", job.ID, "error", err)
		return
	}
	m.logger.Info("job completed", "id", job.ID, "appointments", count)
}

// refresh scrapes, stores and announces one snapshot.
func (m *Manager) refresh(ctx context.Context) (int, error) {
	snap, err := m.scraper.Scrape(ctx)
	if err != nil {
		return 0, err
	}

	if err := m.store.Save(snap); err != nil {
		return 0, fmt.Errorf("failed to save snapshot: %w", err)
	}

	if m.publisher != nil {
		if err := m.publisher.PublishSnapshotUpdated(ctx, snap); err != nil {
			m.logger.Warn("failed to publish snapshot event", "error", err)
		}
	}

	return snap.Count, nil
}

func (m *Manager) update(job *Job, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(job)
}

// prune drops the oldest finished jobs beyond the retention limit. Callers
// hold m.mu.
func (m *Manager) prune() {
	if len(m.jobs) <= maxRetainedJobs {
		return
	}
	all := m.sorted()
	for _, j := range all[maxRetainedJobs:] {
		if j == m.running {
			continue
		}
		delete(m.jobs, j.ID)
	}
}

// sorted returns jobs newest first. Callers hold m.mu.
func (m *Manager) sorted() []*Job {
	all := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		all = append(all, j)
	}
	sort.SliceStable(all, func(a, b int) bool {
		return all[a].CreatedAt.After(all[b].CreatedAt)
	})
	return all
}

func (m *Manager) Get(id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	out := *job
	return &out, nil
}

// List returns retained jobs, newest first.
func (m *Manager) List() []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.sorted()
	out := make([]*Job, len(all))
	for i, j := range all {
		c := *j
		out[i] = &c
	}
	return out
}

// Wait blocks until no job is running.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown cancels a running refresh and waits for it to finish.
func (m *Manager) Shutdown(ctx context.Context) error {
	// Under mu so no trigger can add to wg once Wait may have started.
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
