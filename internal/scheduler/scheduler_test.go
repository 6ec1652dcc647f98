package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdin/venezuelawatch/internal/adapter"
	"github.com/stdin/venezuelawatch/internal/domain"
)

type fakeAdapter struct {
	name     domain.Source
	schedule string
	runs     atomic.Int32
}

func (f *fakeAdapter) SourceName() domain.Source  { return f.name }
func (f *fakeAdapter) ScheduleFrequency() string  { return f.schedule }
func (f *fakeAdapter) DefaultLookbackMinutes() int { return 15 }

func (f *fakeAdapter) Fetch(ctx context.Context, start, end time.Time, limit int) ([]adapter.RawRecord, error) {
	f.runs.Add(1)
	return nil, nil
}

func (f *fakeAdapter) Transform(raw []adapter.RawRecord) ([]domain.Event, []adapter.TransformFailure) {
	return nil, nil
}

func (f *fakeAdapter) Validate(ctx context.Context, e *domain.Event) (bool, string) {
	return true, ""
}

type fakePublisher struct{}

func (fakePublisher) PublishIngest(ctx context.Context, e domain.Event) error { return nil }

func TestScheduler_RunsAdapterOnItsOwnCadence(t *testing.T) {
	src := &fakeAdapter{name: "gdelt", schedule: "* * * * *"}
	registry := adapter.NewRegistry()
	registry.Register(src)

	s := New(registry, fakePublisher{}, adapter.PublishOptions{}, zerolog.Nop())
	s.Start(context.Background())
	defer s.Stop()

	s.runOnce(context.Background(), src)

	assert.Equal(t, int32(1), src.runs.Load())
}

func TestScheduler_SkipsMalformedSchedule(t *testing.T) {
	src := &fakeAdapter{name: "gdelt", schedule: "not-a-cron-expr"}
	registry := adapter.NewRegistry()
	registry.Register(src)

	s := New(registry, fakePublisher{}, adapter.PublishOptions{}, zerolog.Nop())
	require.NotPanics(t, func() { s.Start(context.Background()) })
	s.Stop()
}

func TestScheduler_RecordsRunResultOnRegistry(t *testing.T) {
	src := &fakeAdapter{name: "gdelt", schedule: "* * * * *"}
	registry := adapter.NewRegistry()
	registry.Register(src)

	s := New(registry, fakePublisher{}, adapter.PublishOptions{}, zerolog.Nop())
	s.runOnce(context.Background(), src)

	health := registry.GetHealth("gdelt")
	assert.Equal(t, 1, health.TotalRuns)
	assert.Equal(t, 1, health.SuccessfulRuns)
}
