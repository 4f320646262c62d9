package jobs

import (
	"context"
	"time"
)

// StartScheduler refreshes once immediately and then on every tick until ctx
// is cancelled. A non-positive interval only runs the initial refresh.
func (m *Manager) StartScheduler(ctx context.Context, interval time.Duration) {
	m.logger.Info("refresh scheduler started", "interval", interval)

	m.scheduled(ctx)

	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("refresh scheduler stopping")
			return
		case <-ticker.C:
			m.scheduled(ctx)
		}
	}
}

func (m *Manager) scheduled(ctx context.Context) {
	if _, err := m.trigger(ctx, TriggerScheduled); err != nil {
		m.logger.Warn("scheduled refresh not started", "error", err)
	}
}
