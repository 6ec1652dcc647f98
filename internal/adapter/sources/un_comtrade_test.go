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

func TestUNComtradeAdapter_FetchParsesDataArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"period":"202601","reporterCode":"862","primaryValue":25000000}]}`))
	}))
	defer srv.Close()

	a := NewUNComtradeAdapter(nil, srv.URL, "key", nil)
	raw, err := a.Fetch(context.Background(), time.Now().Add(-90*24*time.Hour), time.Now(), 10)
	require.NoError(t, err)
	// one commodity/flow pair per (commodity, flow) combination hits the stub server
	assert.Len(t, raw, len(venezuelaCommodities)*len(unComtradeFlows))
	assert.InDelta(t, 25000000.0, raw[0]["value_usd"], 1e-9)
}

func TestUNComtradeAdapter_TransformFiltersBelowMinimumValue(t *testing.T) {
	a := NewUNComtradeAdapter(nil, "", "key", nil)
	raw := []RawRecord{
		{"period": "202601", "commodity_code": "2709", "trade_flow": "exports", "value_usd": 5_000_000.0},
		{"period": "202601", "commodity_code": "2709", "trade_flow": "exports", "value_usd": 50_000_000.0},
	}

	events, failures := a.Transform(raw)
	require.Empty(t, failures)
	require.Len(t, events, 1)
	assert.Equal(t, domain.CategoryEnergy, events[0].Category)
}

func TestUNComtradeAdapter_TransformSkipsMissingCommodityCode(t *testing.T) {
	a := NewUNComtradeAdapter(nil, "", "key", nil)
	events, failures := a.Transform([]RawRecord{{"period": "202601", "value_usd": 50_000_000.0}})
	assert.Empty(t, events)
	require.Len(t, failures, 1)
}

func TestUNComtradeAdapter_ValidateAcceptsCompleteEvent(t *testing.T) {
	a := NewUNComtradeAdapter(nil, "", "key", nil)
	e := &domain.Event{ID: "x", EventTimestamp: time.Now()}
	ok, _ := a.Validate(context.Background(), e)
	assert.True(t, ok)
}

func TestUNComtradeAdapter_ValidateRejectsDuplicate(t *testing.T) {
	dup := &fakeDupChecker{seen: map[string]bool{"comtrade-2709-exports-202601": true}}
	a := NewUNComtradeAdapter(nil, "", "key", dup)
	e := &domain.Event{ID: "x", SourceEventID: "comtrade-2709-exports-202601", EventTimestamp: time.Now()}
	ok, reason := a.Validate(context.Background(), e)
	assert.False(t, ok)
	assert.Equal(t, "duplicate", reason)
}
