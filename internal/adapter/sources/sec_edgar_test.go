package sources

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdin/venezuelawatch/internal/domain"
)

func TestSECEdgarAdapter_FetchReturnsEmptyBatch(t *testing.T) {
	a := NewSECEdgarAdapter(nil)
	raw, err := a.Fetch(context.Background(), time.Now(), time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestSECEdgarAdapter_TransformIsANoOp(t *testing.T) {
	a := NewSECEdgarAdapter(nil)
	events, failures := a.Transform([]RawRecord{{"x": "y"}})
	assert.Empty(t, events)
	assert.Empty(t, failures)
}

func TestSECEdgarAdapter_ValidateRejectsMissingAccessionID(t *testing.T) {
	a := NewSECEdgarAdapter(nil)
	e := &domain.Event{Title: "t", SourceURL: "https://x"}
	ok, reason := a.Validate(context.Background(), e)
	assert.False(t, ok)
	assert.Equal(t, "missing source_event_id", reason)
}

func TestSECEdgarAdapter_SourceNameIsSECEdgar(t *testing.T) {
	a := NewSECEdgarAdapter(nil)
	assert.Equal(t, domain.SourceSECEDGAR, a.SourceName())
}
