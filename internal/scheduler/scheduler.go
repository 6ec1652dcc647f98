// Package scheduler runs each registered source adapter on its own
// cron expression, wrapping internal/adapter's Registry.Run the same
// way the manual POST /trigger/<source> endpoint does: a synchronous
// fetch/transform/publish cycle over the adapter's default lookback
// window.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/stdin/venezuelawatch/internal/adapter"
)

// fetchLimit bounds a scheduled run's batch size -- generous relative
// to the manual-trigger default since scheduled runs cover the
// adapter's own steady-state cadence rather than an ad hoc window.
const fetchLimit = 2000

// Scheduler drives Registry.Run for every registered adapter according
// to that adapter's own ScheduleFrequency, via a single shared
// *cron.Cron instance.
type Scheduler struct {
	cron      *cron.Cron
	registry  *adapter.Registry
	publisher adapter.Publisher
	opts      adapter.PublishOptions
	log       zerolog.Logger
}

// New builds a Scheduler over registry. It does not start anything
// until Start is called.
func New(registry *adapter.Registry, publisher adapter.Publisher, opts adapter.PublishOptions, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		registry:  registry,
		publisher: publisher,
		opts:      opts,
		log:       log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers a cron entry for every adapter in the registry (at
// its own ScheduleFrequency, a 5-field cron expression that gets a
// leading "0" seconds field) and starts the underlying cron.Cron. A
// malformed ScheduleFrequency is logged and that adapter is skipped
// rather than aborting the whole scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	for _, src := range s.registry.All() {
		spec := "0 " + src.ScheduleFrequency()
		_, err := s.cron.AddFunc(spec, func() { s.runOnce(ctx, src) })
		if err != nil {
			s.log.Error().Err(err).Str("source", string(src.SourceName())).Str("schedule", spec).
				Msg("scheduler: bad cron expression, adapter will not run on a schedule")
			continue
		}
		s.log.Info().Str("source", string(src.SourceName())).Str("schedule", spec).Msg("scheduler: adapter scheduled")
	}
	s.cron.Start()
	s.log.Info().Msg("scheduler: started")
}

// Stop blocks until any in-flight run finishes, then stops the cron.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info().Msg("scheduler: stopped")
}

// runOnce runs one scheduled fetch/transform/publish cycle for src over
// its default lookback window, mirroring the manual-trigger endpoint.
func (s *Scheduler) runOnce(ctx context.Context, src adapter.Source) {
	name := src.SourceName()
	lookback := src.DefaultLookbackMinutes()
	end := time.Now().UTC()
	start := end.Add(-time.Duration(lookback) * time.Minute)

	result, err := s.registry.Run(ctx, name, start, end, fetchLimit, s.publisher, s.opts)
	if err != nil {
		s.log.Error().Err(err).Str("source", string(name)).Msg("scheduler: run failed")
		return
	}
	s.log.Info().Str("source", string(name)).
		Int("published", result.Published).Int("failed", result.Failed).Int("duplicates", result.Duplicates).
		Msg("scheduler: run complete")
}
