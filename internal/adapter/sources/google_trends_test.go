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

func TestGoogleTrendsAdapter_FetchParsesTrendsArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"trends":[{"term":"PDVSA oil","rank":1,"score":80,"refresh_date":"2026-01-05","country_name":"Venezuela","region_name":"Zulia"}]}`))
	}))
	defer srv.Close()

	a := NewGoogleTrendsAdapter(nil, srv.URL, nil)
	raw, err := a.Fetch(context.Background(), time.Now().Add(-24*time.Hour), time.Now(), 100)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, "PDVSA oil", raw[0]["term"])
}

func TestGoogleTrendsAdapter_TransformFlagsSpikeEventType(t *testing.T) {
	a := NewGoogleTrendsAdapter(nil, "", nil)
	raw := []RawRecord{{
		"term": "PDVSA oil", "rank": int64(1), "score": 80.0, "refresh_date": "2026-01-05",
		"country_name": "Venezuela", "region_name": "Zulia",
	}}

	events, failures := a.Transform(raw)
	require.Empty(t, failures)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, "SEARCH_SPIKE", e.EventType) // 80/25 = 3.2x baseline, > 2x threshold
	assert.Equal(t, domain.DirectionNegative, e.Direction)
	assert.Equal(t, []string{"OIL"}, e.Commodities)
	assert.Equal(t, []string{"ENERGY"}, e.Sectors)
	assert.Equal(t, "gt-2026-01-05-pdvsa-oil", e.SourceEventID)
}

func TestGoogleTrendsAdapter_TransformSkipsMissingTerm(t *testing.T) {
	a := NewGoogleTrendsAdapter(nil, "", nil)
	events, failures := a.Transform([]RawRecord{{"score": 50.0}})
	assert.Empty(t, events)
	require.Len(t, failures, 1)
}

func TestGoogleTrendsAdapter_ValidateRejectsBadIDPattern(t *testing.T) {
	a := NewGoogleTrendsAdapter(nil, "", nil)
	e := &domain.Event{
		SourceEventID: "bad-id", Title: "t", SourceURL: "https://x", EventTimestamp: time.Now(),
		Metadata: map[string]any{"rank": 1, "score": 50.0},
	}
	ok, reason := a.Validate(context.Background(), e)
	assert.False(t, ok)
	assert.Contains(t, reason, "event id pattern")
}

func TestGoogleTrendsAdapter_ValidateAcceptsCompleteEvent(t *testing.T) {
	a := NewGoogleTrendsAdapter(nil, "", nil)
	e := &domain.Event{
		SourceEventID: "gt-2026-01-05-pdvsa-oil", Title: "PDVSA oil", SourceURL: "https://x", EventTimestamp: time.Now(),
		Metadata: map[string]any{"rank": 1, "score": 80.0},
	}
	ok, _ := a.Validate(context.Background(), e)
	assert.True(t, ok)
}
