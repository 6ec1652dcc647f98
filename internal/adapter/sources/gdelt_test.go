package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdin/venezuelawatch/internal/adapter"
	"github.com/stdin/venezuelawatch/internal/domain"
)

// RawRecord lets this package's tests build raw batches without
// qualifying the adapter package's type at every call site.
type RawRecord = adapter.RawRecord

type fakeDupChecker struct {
	seen map[string]bool
}

func (f *fakeDupChecker) SeenWithinWindow(ctx context.Context, source domain.Source, sourceEventID, sourceURL string, window time.Duration) (bool, error) {
	return f.seen[sourceEventID] || f.seen[sourceURL], nil
}

func TestGDELTAdapter_FetchParsesJSONArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"GLOBALEVENTID":"123","EventCode":"190","GoldsteinScale":-5,"AvgTone":-3.2,"NumSources":4,"SOURCEURL":"https://example.com/a","Actor1Name":"GOV","DATEADDED":"20260101120000"}]`))
	}))
	defer srv.Close()

	a := NewGDELTAdapter(nil, srv.URL, nil)
	raw, err := a.Fetch(context.Background(), time.Now().Add(-time.Hour), time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, "123", raw[0]["GLOBALEVENTID"])
}

func TestGDELTAdapter_FetchUpstream5xxIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewGDELTAdapter(nil, srv.URL, nil)
	_, err := a.Fetch(context.Background(), time.Now(), time.Now(), 10)
	require.Error(t, err)
}

func TestGDELTAdapter_FetchUpstream4xxIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := NewGDELTAdapter(nil, srv.URL, nil)
	_, err := a.Fetch(context.Background(), time.Now(), time.Now(), 10)
	require.Error(t, err)
}

func TestGDELTAdapter_TransformMapsCanonicalFields(t *testing.T) {
	a := NewGDELTAdapter(nil, "", nil)
	raw := []RawRecord{{
		"GLOBALEVENTID":  "123",
		"EventCode":      "190",
		"GoldsteinScale": -5.0,
		"AvgTone":        -3.2,
		"NumSources":     4.0,
		"SOURCEURL":      "https://example.com/a",
		"Actor1Name":     "Government of Venezuela",
		"Actor1Code":     "GOVVEN",
		"DATEADDED":      "20260101120000",
	}}

	events, failures := a.Transform(raw)
	require.Empty(t, failures)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, domain.SourceGDELT, e.Source)
	assert.Equal(t, "123", e.SourceEventID)
	assert.Equal(t, domain.UnitGoldstein, e.MagnitudeUnit)
	assert.InDelta(t, 0.25, e.MagnitudeNorm, 1e-9)
	assert.Equal(t, domain.DirectionNegative, e.Direction)
	require.NotNil(t, e.Actor1)
	assert.Equal(t, domain.ActorGovernment, e.Actor1.Type)
}

func TestGDELTAdapter_TransformSkipsRecordMissingGlobalEventID(t *testing.T) {
	a := NewGDELTAdapter(nil, "", nil)
	events, failures := a.Transform([]RawRecord{{"EventCode": "190"}})
	assert.Empty(t, events)
	require.Len(t, failures, 1)
}

func TestGDELTAdapter_ValidateRejectsMissingURL(t *testing.T) {
	a := NewGDELTAdapter(nil, "", nil)
	e := &domain.Event{ID: "x", EventTimestamp: time.Now()}
	ok, reason := a.Validate(context.Background(), e)
	assert.False(t, ok)
	assert.Equal(t, "missing source_url", reason)
}

func TestGDELTAdapter_ValidateRejectsDuplicate(t *testing.T) {
	dup := &fakeDupChecker{seen: map[string]bool{"evt-1": true}}
	a := NewGDELTAdapter(nil, "", dup)
	e := &domain.Event{ID: "x", SourceEventID: "evt-1", SourceURL: "https://x", EventTimestamp: time.Now()}
	ok, reason := a.Validate(context.Background(), e)
	assert.False(t, ok)
	assert.Equal(t, "duplicate", reason)
}

func TestGDELTAdapter_ValidateAcceptsCompleteEvent(t *testing.T) {
	a := NewGDELTAdapter(nil, "", nil)
	e := &domain.Event{ID: "x", SourceEventID: "evt-1", SourceURL: "https://x", EventTimestamp: time.Now()}
	ok, _ := a.Validate(context.Background(), e)
	assert.True(t, ok)
}
