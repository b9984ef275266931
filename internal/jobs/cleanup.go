package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yearbook/picker-server-go/internal/audit"
)

const cleanupTimeout = 30 * time.Second

// IdleSessionEvicter drops browser sessions that have not been used recently.
type IdleSessionEvicter interface {
	DeleteIdle(ctx context.Context) (int64, error)
}

type CleanupJob struct {
	sessions IdleSessionEvicter
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
}

func NewCleanupJob(sessions IdleSessionEvicter, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

// Stop ends the loop and waits for an in-progress pass to finish.
func (j *CleanupJob) Stop() {
	close(j.done)
	<-j.stopped
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	defer close(j.stopped)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	count := j.runCleanup(ctx, "idle browser sessions", j.sessions.DeleteIdle)
	if count > 0 {
		audit.Log(ctx, audit.Event{
			Type:    audit.EventSessionEvict,
			Details: map[string]interface{}{"count": count},
		})
	}
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) int64 {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
		return count
	}
	if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
	return count
}
