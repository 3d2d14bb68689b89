package manager

import (
	"context"

	"github.com/go-co-op/gocron/v2"
)

// StartSweep schedules a periodic job that trims each LogWatch's
// recent-hits buffer back down to cfg.RecentHitsCap. Hits are appended on
// every fan-out without a bound check on that hot path; this job is what
// actually keeps long-lived, high-traffic LogWatches from growing an
// unbounded recent-hits backlog.
func (m *Manager) StartSweep(ctx context.Context) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(m.cfg.SweepInterval),
		gocron.NewTask(m.sweepOnce),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	go func() {
		<-ctx.Done()
		_ = sched.Shutdown()
	}()
	return sched, nil
}

func (m *Manager) sweepOnce() {
	m.mu.RLock()
	entries := make([]*watcherEntry, len(m.watchers))
	copy(entries, m.watchers)
	m.mu.RUnlock()

	limit := m.cfg.RecentHitsCap
	if limit <= 0 {
		return
	}
	for _, e := range entries {
		e.mu.Lock()
		if len(e.recentHits) > limit {
			trimmed := make([]string, limit)
			copy(trimmed, e.recentHits[len(e.recentHits)-limit:])
			e.recentHits = trimmed
		}
		e.mu.Unlock()
	}
}
