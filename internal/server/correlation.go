package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stdin/venezuelawatch/internal/correlation"
	"github.com/stdin/venezuelawatch/internal/storage"
)

// correlationRequest is the POST /correlation/compute body. Variables
// are addressed by a "<kind>:<id>" convention this
// front door defines to resolve a named variable into a dated series:
// "entity:<canonical_id>" (C15's entity risk history) and
// "event_type:<event_type>" (daily event-type counts). A third kind,
// the macro indicator, isn't resolvable yet -- see resolveSeries.
type correlationRequest struct {
	Variables     []string           `json:"variables"`
	StartDate     string             `json:"start_date"`
	EndDate       string             `json:"end_date"`
	Method        correlation.Method `json:"method"`
	MinEffectSize float64            `json:"min_effect_size"`
	Alpha         float64            `json:"alpha"`
}

const dateLayout = "2006-01-02"

// handleCorrelationCompute implements POST /correlation/compute: resolve
// every requested variable name to a dated series, then hand the whole
// batch to C15. An unresolvable variable is dropped with a warning
// rather than failing the whole request -- correlation and
// graph endpoints return empty results rather than errors.
func (s *Server) handleCorrelationCompute(w http.ResponseWriter, r *http.Request) {
	var req correlationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		http.Error(w, "invalid start_date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		http.Error(w, "invalid end_date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if req.Alpha <= 0 {
		req.Alpha = 0.05
	}

	series := make([]correlation.Series, 0, len(req.Variables))
	for _, name := range req.Variables {
		sr, err := s.resolveSeries(r.Context(), name, start, end)
		if err != nil {
			s.log.Warn().Err(err).Str("variable", name).Msg("server: correlation variable unresolvable, dropping")
			continue
		}
		series = append(series, sr)
	}

	result, err := correlation.Compute(correlation.Input{
		Series:        series,
		Method:        req.Method,
		Alpha:         req.Alpha,
		MinEffectSize: req.MinEffectSize,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// resolveSeries turns one "<kind>:<id>" variable name into a
// correlation.Series. The "indicator" kind (a macro series like a FRED
// observation run) is deliberately unresolved here: the FRED/World Bank
// adapters as built only persist sparse threshold-breach alert events
// (see internal/adapter/sources/fred.go's Transform), not the dense
// per-date observation row a full indicator-series table would need,
// so there is no store this front door can query for a full series yet.
func (s *Server) resolveSeries(ctx context.Context, name string, start, end time.Time) (correlation.Series, error) {
	kind, value, ok := strings.Cut(name, ":")
	if !ok {
		return correlation.Series{}, fmt.Errorf("server: variable %q missing \"<kind>:<id>\" prefix", name)
	}

	var points []storage.DailyPoint
	var err error
	switch kind {
	case "entity":
		points, err = s.mentions.EntityRiskDaily(ctx, value, start, end)
	case "event_type":
		points, err = s.events.EventTypeDailyCounts(ctx, value, start, end)
	default:
		return correlation.Series{}, fmt.Errorf("server: variable kind %q has no resolvable series", kind)
	}
	if err != nil {
		return correlation.Series{}, err
	}

	dates := make([]string, len(points))
	values := make([]float64, len(points))
	for i, p := range points {
		dates[i] = p.Date.Format(dateLayout)
		values[i] = p.Value
	}
	return correlation.Series{Name: name, Dates: dates, Values: values}, nil
}
