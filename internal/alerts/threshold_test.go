package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdin/venezuelawatch/internal/domain"
)

type fakePublisher struct {
	published []domain.Event
}

func (f *fakePublisher) PublishIngest(ctx context.Context, e domain.Event) error {
	f.published = append(f.published, e)
	return nil
}

func TestObserve_NoAlertOnFirstObservation(t *testing.T) {
	cs := NewCrossingState()
	pub := &fakePublisher{}
	ind := Indicator{SeriesID: "fx_reserves", ThresholdLow: f(10), RuleKey: "fx_reserves"}

	fired, err := cs.Observe(context.Background(), ind, 5, time.Now(), pub)
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Empty(t, pub.published)
}

func TestObserve_FiresOnCrossingBelowLow(t *testing.T) {
	cs := NewCrossingState()
	pub := &fakePublisher{}
	ind := Indicator{SeriesID: "fx_reserves", ThresholdLow: f(10), RuleKey: "fx_reserves"}
	now := time.Now()

	_, err := cs.Observe(context.Background(), ind, 15, now, pub) // establish baseline: between
	require.NoError(t, err)

	fired, err := cs.Observe(context.Background(), ind, 5, now.Add(time.Hour), pub) // crosses below
	require.NoError(t, err)
	assert.True(t, fired)
	require.Len(t, pub.published, 1)
	assert.Equal(t, domain.P1, pub.published[0].Severity)
}

func TestObserve_DoesNotRefireWhileStayingBeyondThreshold(t *testing.T) {
	cs := NewCrossingState()
	pub := &fakePublisher{}
	ind := Indicator{SeriesID: "fx_reserves", ThresholdLow: f(10), RuleKey: "fx_reserves"}
	now := time.Now()

	_, _ = cs.Observe(context.Background(), ind, 15, now, pub)
	_, _ = cs.Observe(context.Background(), ind, 5, now.Add(time.Hour), pub)
	fired, err := cs.Observe(context.Background(), ind, 3, now.Add(2*time.Hour), pub) // still below
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Len(t, pub.published, 1) // only the original crossing fired
}

func TestObserve_FiresOnCrossingAboveHigh(t *testing.T) {
	cs := NewCrossingState()
	pub := &fakePublisher{}
	ind := Indicator{SeriesID: "oil_production", ThresholdHigh: f(100), RuleKey: "oil_production"}
	now := time.Now()

	_, _ = cs.Observe(context.Background(), ind, 50, now, pub)
	fired, err := cs.Observe(context.Background(), ind, 150, now.Add(time.Hour), pub)
	require.NoError(t, err)
	assert.True(t, fired)
	require.Len(t, pub.published, 1)
	assert.Equal(t, domain.P2, pub.published[0].Severity)
}

func TestObserve_UnknownRuleKeyDefaultsP3(t *testing.T) {
	cs := NewCrossingState()
	pub := &fakePublisher{}
	ind := Indicator{SeriesID: "mystery_metric", ThresholdHigh: f(10), RuleKey: "mystery_metric"}
	now := time.Now()

	_, _ = cs.Observe(context.Background(), ind, 5, now, pub)
	_, err := cs.Observe(context.Background(), ind, 20, now.Add(time.Hour), pub)
	require.NoError(t, err)
	require.Len(t, pub.published, 1)
	assert.Equal(t, domain.P3, pub.published[0].Severity)
}
