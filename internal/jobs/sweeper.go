package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/alimatrix/alimatrix/internal/metrics"
	"github.com/alimatrix/alimatrix/internal/security"
)

// Sweeper evicts stale security entries and compacts the draft store.
type Sweeper struct {
	Tokens     *security.Tokens
	Limiter    *security.Limiter
	RateWindow time.Duration
	Debounce   *security.Debouncer

	// DraftGC is called last; nil skips it.
	DraftGC func() error

	Log     *zap.Logger
	Metrics *metrics.Metrics
}

// RunOnce performs one sweep. A failing part is logged and the rest still
// runs.
func (s *Sweeper) RunOnce(ctx context.Context) {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	parts := []struct {
		name string
		fn   func(context.Context) (int, error)
	}{
		{"csrf", s.Tokens.Sweep},
		{"ratelimit", func(ctx context.Context) (int, error) { return s.Limiter.Sweep(ctx, s.RateWindow) }},
		{"debounce", s.Debounce.Sweep},
	}
	for _, p := range parts {
		n, err := p.fn(ctx)
		if err != nil {
			log.Warn("sweep failed", zap.String("store", p.name), zap.Error(err))
			continue
		}
		s.Metrics.Swept(p.name, n)
		if n > 0 {
			log.Debug("swept", zap.String("store", p.name), zap.Int("removed", n))
		}
	}
	if s.DraftGC != nil {
		if err := s.DraftGC(); err != nil {
			log.Warn("draft gc failed", zap.Error(err))
		}
	}
}

// Scheduler runs the sweeper on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler registers sw under spec, e.g. "@every 5m".
func NewScheduler(spec string, sw *Sweeper) (*Scheduler, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { sw.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule sweeper %q: %w", spec, err)
	}
	return &Scheduler{cron: c}, nil
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running sweep to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}
