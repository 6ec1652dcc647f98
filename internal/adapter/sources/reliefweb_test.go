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

func TestReliefWebAdapter_FetchParsesReportsWrapper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"987","fields":{"title":"Flood update","body":"Heavy rains","url":"https://reliefweb.int/report/987","date":{"created":"2026-01-05T00:00:00+00:00"},"country":[{"name":"Venezuela"}],"source":[{"name":"OCHA"}]}}]}`))
	}))
	defer srv.Close()

	a := NewReliefWebAdapter(nil, srv.URL, nil)
	raw, err := a.Fetch(context.Background(), time.Now().Add(-24*time.Hour), time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, "987", raw[0]["id"])
	assert.Equal(t, "https://reliefweb.int/report/987", raw[0]["url"])
}

func TestReliefWebAdapter_TransformMapsCanonicalFields(t *testing.T) {
	a := NewReliefWebAdapter(nil, "", nil)
	raw := []RawRecord{{
		"id":        "987",
		"title":     "Flood update",
		"body":      "Heavy rains across the north",
		"url":       "https://reliefweb.int/report/987",
		"created":   "2026-01-05T00:00:00+00:00",
		"countries": []string{"Venezuela"},
		"sources":   []string{"OCHA", "UNICEF"},
	}}

	events, failures := a.Transform(raw)
	require.Empty(t, failures)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, domain.SourceReliefWeb, e.Source)
	assert.Equal(t, "humanitarian", e.EventType)
	assert.Equal(t, domain.DirectionNegative, e.Direction)
	assert.Equal(t, 2, e.NumSources)
	assert.Equal(t, domain.CategoryPolitical, e.Category) // falls through to the unknown-source default
}

func TestReliefWebAdapter_TransformSkipsRecordMissingURL(t *testing.T) {
	a := NewReliefWebAdapter(nil, "", nil)
	events, failures := a.Transform([]RawRecord{{"id": "1", "title": "x"}})
	assert.Empty(t, events)
	require.Len(t, failures, 1)
}

func TestReliefWebAdapter_ValidateRejectsMissingTitle(t *testing.T) {
	a := NewReliefWebAdapter(nil, "", nil)
	e := &domain.Event{SourceURL: "https://x", EventTimestamp: time.Now()}
	ok, reason := a.Validate(context.Background(), e)
	assert.False(t, ok)
	assert.Equal(t, "missing title", reason)
}

func TestReliefWebAdapter_ValidateRejectsDuplicateWithin30Days(t *testing.T) {
	dup := &fakeDupChecker{seen: map[string]bool{"https://reliefweb.int/report/987": true}}
	a := NewReliefWebAdapter(nil, "", dup)
	e := &domain.Event{SourceEventID: "987", SourceURL: "https://reliefweb.int/report/987", Title: "t", EventTimestamp: time.Now()}
	ok, reason := a.Validate(context.Background(), e)
	assert.False(t, ok)
	assert.Equal(t, "duplicate", reason)
}
