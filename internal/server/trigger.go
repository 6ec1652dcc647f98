package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stdin/venezuelawatch/internal/adapter"
	"github.com/stdin/venezuelawatch/internal/domain"
)

// triggerRequest carries an optional lookback override: the one
// concrete lookback field this front door supports is minutes, since that's the
// unit adapter.Source.DefaultLookbackMinutes already works in.
type triggerRequest struct {
	LookbackMinutes int `json:"lookback_minutes"`
}

type triggerResponse struct {
	Status   string `json:"status"`
	TaskID   string `json:"task_id"`
	TaskName string `json:"task_name"`
	Message  string `json:"message"`
}

// defaultTriggerFetchLimit bounds a manually triggered run's fetch size.
// Scheduled runs (internal/scheduler) use that package's own fetchLimit,
// the same for every source.
const defaultTriggerFetchLimit = 500

// handleTrigger implements POST /trigger/<source>: runs one synchronous
// fetch/transform/publish cycle for the named adapter over the
// requested (or adapter-default) lookback window.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	sourceName := domain.Source(chi.URLParam(r, "source"))
	taskID := uuid.NewString()

	src, ok := s.registry.Get(sourceName)
	if !ok {
		writeJSON(w, http.StatusNotFound, triggerResponse{
			Status: "error", TaskID: taskID, TaskName: string(sourceName),
			Message: "unknown source",
		})
		return
	}

	var req triggerRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // absent/malformed body falls back to the adapter default
	}
	lookback := req.LookbackMinutes
	if lookback <= 0 {
		lookback = src.DefaultLookbackMinutes()
	}

	end := time.Now().UTC()
	start := end.Add(-time.Duration(lookback) * time.Minute)

	result, err := s.registry.Run(r.Context(), sourceName, start, end, defaultTriggerFetchLimit, s.publisher, adapter.PublishOptions{})
	if err != nil {
		s.log.Error().Err(err).Str("source", string(sourceName)).Msg("server: trigger run failed")
		writeJSON(w, http.StatusOK, triggerResponse{
			Status: "error", TaskID: taskID, TaskName: string(sourceName),
			Message: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, triggerResponse{
		Status: "completed", TaskID: taskID, TaskName: string(sourceName),
		Message: fmt.Sprintf("published %d, failed %d", result.Published, result.Failed),
	})
}

// handleAdaptersHealth implements the supplemented GET /adapters/health:
// a per-source snapshot of adapter.Registry's run history, matching
// adapters/registry.py's get_all_health() surface.
func (s *Server) handleAdaptersHealth(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]adapter.Health)
	for _, src := range s.registry.All() {
		name := src.SourceName()
		out[string(name)] = s.registry.GetHealth(name)
	}
	writeJSON(w, http.StatusOK, out)
}
