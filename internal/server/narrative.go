package server

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stdin/venezuelawatch/internal/domain"
)

type EventSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	RiskScore float64   `json:"risk_score"`
	Source    string    `json:"source"`
}

type EntityInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type EventLineage struct {
	Events             []EventSummary `json:"events"`
	TimelineSpanDays   float64        `json:"timeline_span_days"`
	EscalationDetected bool           `json:"escalation_detected"`
	DominantThemes     []string       `json:"dominant_themes"`
}

type NarrativeResponse struct {
	Narrative string       `json:"narrative"`
	Events    []EventSummary `json:"events"`
	EntityA   EntityInfo   `json:"entity_a"`
	EntityB   EntityInfo   `json:"entity_b"`
	Lineage   EventLineage `json:"lineage"`
}

// maxConnectingEvents bounds both the SQL query and the narrative
// prompt's size -- graph.py's NarrativeGenerator applies a similar cap
// when fetching connecting events.
const maxConnectingEvents = 20

// escalationRiskDelta is the minimum rise in risk_score between a
// connection's first and last event before lineage calls it an
// escalation, a deliberately coarse proxy for graph.py's trend-line fit.
const escalationRiskDelta = 10.0

const dominantThemeCount = 3

// handleGraphNarrative implements GET /graph/narrative/{a}/{b}: resolve
// the events connecting two entities, ask the narrator for a freeform
// relationship summary, and build a lineage (span, escalation, dominant
// themes) off the same event set. Grounded on graph.py's
// NarrativeGenerator + LineageBuilder pairing, including its canned
// "no connection" and "narrative generation failed" fallbacks.
func (s *Server) handleGraphNarrative(w http.ResponseWriter, r *http.Request) {
	a := chi.URLParam(r, "a")
	b := chi.URLParam(r, "b")

	metas, err := s.entities.EntitiesWithMetadata(r.Context(), []string{a, b})
	if err != nil {
		http.Error(w, "entity lookup failed", http.StatusInternalServerError)
		return
	}
	entityA := EntityInfo{ID: a, Name: metas[a].PrimaryName}
	entityB := EntityInfo{ID: b, Name: metas[b].PrimaryName}

	eventIDs, err := s.mentions.ConnectingEvents(r.Context(), a, b, maxConnectingEvents)
	if err != nil {
		http.Error(w, "connecting events lookup failed", http.StatusInternalServerError)
		return
	}
	if len(eventIDs) == 0 {
		writeJSON(w, http.StatusOK, NarrativeResponse{
			Narrative: fmt.Sprintf("No direct connection found between %s and %s in recent events.", nameOrID(entityA), nameOrID(entityB)),
			EntityA:   entityA,
			EntityB:   entityB,
		})
		return
	}

	events, err := s.events.GetEvents(r.Context(), eventIDs)
	if err != nil {
		http.Error(w, "event lookup failed", http.StatusInternalServerError)
		return
	}
	sort.Slice(events, func(i, j int) bool { return events[i].EventTimestamp.Before(events[j].EventTimestamp) })

	summaries := make([]EventSummary, len(events))
	for i, e := range events {
		summaries[i] = EventSummary{ID: e.ID, Title: e.Title, Timestamp: e.EventTimestamp, RiskScore: e.RiskScore, Source: string(e.Source)}
	}
	lineage := buildLineage(events, summaries)

	narrative, err := s.narrator.Complete(r.Context(),
		"You are an intelligence analyst. In two or three sentences, explain factually how the two named entities are connected based only on the listed events.",
		narrativePrompt(entityA, entityB, summaries),
	)
	if err != nil {
		s.log.Warn().Err(err).Str("entity_a", a).Str("entity_b", b).Msg("server: narrative generation failed")
		narrative = "Unable to generate narrative at this time. Please try again later."
	}

	writeJSON(w, http.StatusOK, NarrativeResponse{
		Narrative: narrative,
		Events:    summaries,
		EntityA:   entityA,
		EntityB:   entityB,
		Lineage:   lineage,
	})
}

func nameOrID(e EntityInfo) string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}

func buildLineage(events []domain.Event, summaries []EventSummary) EventLineage {
	span := events[len(events)-1].EventTimestamp.Sub(events[0].EventTimestamp).Hours() / 24
	escalation := events[len(events)-1].RiskScore-events[0].RiskScore >= escalationRiskDelta

	themeCounts := make(map[string]int)
	for _, e := range events {
		for _, t := range e.Themes {
			themeCounts[t]++
		}
	}
	type ranked struct {
		theme string
		count int
	}
	themes := make([]ranked, 0, len(themeCounts))
	for t, c := range themeCounts {
		themes = append(themes, ranked{t, c})
	}
	sort.Slice(themes, func(i, j int) bool {
		if themes[i].count != themes[j].count {
			return themes[i].count > themes[j].count
		}
		return themes[i].theme < themes[j].theme
	})

	dominant := make([]string, 0, dominantThemeCount)
	for i := 0; i < len(themes) && i < dominantThemeCount; i++ {
		dominant = append(dominant, themes[i].theme)
	}

	return EventLineage{
		Events:             summaries,
		TimelineSpanDays:   span,
		EscalationDetected: escalation,
		DominantThemes:     dominant,
	}
}

func narrativePrompt(a, b EntityInfo, events []EventSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Entity A: %s\nEntity B: %s\nConnecting events:\n", nameOrID(a), nameOrID(b))
	for _, e := range events {
		fmt.Fprintf(&sb, "- [%s] %s (risk %.0f)\n", e.Timestamp.Format(dateLayout), e.Title, e.RiskScore)
	}
	return sb.String()
}
