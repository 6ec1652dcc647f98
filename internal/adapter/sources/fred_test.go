package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdin/venezuelawatch/internal/domain"
)

func TestFREDAdapter_FetchSkipsMissingObservations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"observations":[{"date":"2026-01-01","value":"."},{"date":"2026-01-02","value":"42.5"}]}`))
	}))
	defer srv.Close()

	a := NewFREDAdapter(nil, srv.URL, "key", nil)
	raw, err := a.Fetch(context.Background(), time.Now().Add(-7*24*time.Hour), time.Now(), 10)
	require.NoError(t, err)
	// one series endpoint hit per tracked series, each contributing the one valid observation
	assert.Len(t, raw, len(fredTrackedSeries))
	for _, rec := range raw {
		assert.Equal(t, "2026-01-02", rec["date"])
		assert.InDelta(t, 42.5, rec["value"], 1e-9)
	}
}

func TestFREDAdapter_FetchSkipsDiscontinuedSeriesOn4xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	a := NewFREDAdapter(nil, srv.URL, "key", nil)
	raw, err := a.Fetch(context.Background(), time.Now(), time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestDetectThresholdBreach_EdgeTriggersOnLowCrossing(t *testing.T) {
	cfg := &fredSeries{ID: "TRESEGVEA634N", ThresholdLow: ptr(10000.0)}

	prev := 10500.0
	threshold, value, breached := detectThresholdBreach(9800, &prev, cfg)
	assert.True(t, breached)
	assert.Equal(t, "low", threshold)
	assert.InDelta(t, 10000.0, value, 1e-9)

	// already below on the previous observation: no repeat alert
	prevBelow := 9900.0
	_, _, breachedAgain := detectThresholdBreach(9800, &prevBelow, cfg)
	assert.False(t, breachedAgain)
}

func TestDetectThresholdBreach_EdgeTriggersOnHighCrossing(t *testing.T) {
	cfg := &fredSeries{ID: "FPCPITOTLZGVEN", ThresholdHigh: ptr(100.0)}

	prev := 90.0
	threshold, value, breached := detectThresholdBreach(120, &prev, cfg)
	assert.True(t, breached)
	assert.Equal(t, "high", threshold)
	assert.InDelta(t, 100.0, value, 1e-9)
}

func TestDetectThresholdBreach_NilPreviousTreatsFirstObservationAsNotBreached(t *testing.T) {
	cfg := &fredSeries{ID: "TRESEGVEA634N", ThresholdLow: ptr(10000.0)}
	threshold, _, breached := detectThresholdBreach(9000, nil, cfg)
	assert.True(t, breached)
	assert.Equal(t, "low", threshold)
}

func TestFREDAdapter_TransformEmitsOnlyOnBreach(t *testing.T) {
	a := NewFREDAdapter(nil, "", "key", nil)
	raw := []RawRecord{
		{"series_id": "TRESEGVEA634N", "date": "2026-01-01", "value": 10500.0},
		{"series_id": "TRESEGVEA634N", "date": "2026-01-02", "value": 9800.0},
		{"series_id": "TRESEGVEA634N", "date": "2026-01-03", "value": 9700.0},
	}

	events, failures := a.Transform(raw)
	require.Empty(t, failures)
	require.Len(t, events, 1)
	assert.Equal(t, domain.DirectionNegative, events[0].Direction)
	assert.Equal(t, "low", events[0].Metadata["threshold_type"])
}

func TestFREDAdapter_ValidateAcceptsCompleteEvent(t *testing.T) {
	a := NewFREDAdapter(nil, "", "key", nil)
	e := &domain.Event{ID: "x", EventTimestamp: time.Now()}
	ok, _ := a.Validate(context.Background(), e)
	assert.True(t, ok)
}
