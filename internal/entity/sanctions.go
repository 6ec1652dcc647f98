package entity

import (
	"context"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog"

	"github.com/stdin/venezuelawatch/internal/domain"
)

// matchThreshold is the lower bar below which a candidate's similarity
// is discarded as no match; recordThreshold is the higher bar at which
// a match is persisted as an audit record and sets the binary sanctions
// dimension. Carried from sanctions_screener.py (see DESIGN.md).
const (
	matchThreshold  = 0.6
	recordThreshold = 0.7
)

// Watchlist is the sanctions-list lookup port; OFAC (free) by default,
// OpenSanctions (premium) when credentials are configured. Concrete
// implementations are external-collaborator HTTP clients.
type Watchlist interface {
	// Candidates returns watchlist entries plausibly matching name, for
	// the caller to score by fuzzy similarity.
	Candidates(ctx context.Context, name string) ([]WatchlistEntry, error)
	// Name identifies which list this watchlist represents, e.g.
	// "OFAC_SDN" or "OPENSANCTIONS".
	Name() string
}

// WatchlistEntry is one candidate name from a sanctions list.
type WatchlistEntry struct {
	Name       string
	RawPayload map[string]any
}

// MatchRecorder persists SanctionsMatch audit records.
type MatchRecorder interface {
	RecordMatch(ctx context.Context, m domain.SanctionsMatch) error
}

// Screener implements C13: fuzzy name matching against a watchlist with
// a Levenshtein-based normalized similarity metric.
type Screener struct {
	watchlist Watchlist
	recorder  MatchRecorder
	log       zerolog.Logger
	now       func() time.Time
}

// NewScreener builds a Screener over watchlist and recorder.
func NewScreener(watchlist Watchlist, recorder MatchRecorder, log zerolog.Logger) *Screener {
	return &Screener{watchlist: watchlist, recorder: recorder, log: log, now: time.Now}
}

// ScreenEntities screens all person/organization names extracted for an
// event and returns the binary sanctions dimension for C10: 1.0 if any
// name scores >= recordThreshold, 0.0 otherwise. Matches >= recordThreshold
// are persisted as SanctionsMatch audit records; matches in
// [matchThreshold, recordThreshold) are neither recorded nor counted
// toward the dimension.
func (s *Screener) ScreenEntities(ctx context.Context, eventID string, people, orgs []domain.NamedEntity) (float64, error) {
	maxScore := 0.0

	screenOne := func(name string, entityType domain.EntityType) error {
		if name == "" {
			return nil
		}
		score, payload, err := s.bestMatch(ctx, name)
		if err != nil {
			return err
		}
		if score > maxScore {
			maxScore = score
		}
		if score >= recordThreshold {
			if err := s.recorder.RecordMatch(ctx, domain.SanctionsMatch{
				EventID:    eventID,
				EntityName: name,
				EntityType: entityType,
				List:       s.watchlist.Name(),
				MatchScore: score,
				RawPayload: payload,
				MatchedAt:  s.now(),
			}); err != nil {
				s.log.Warn().Err(err).Str("entity", name).Msg("sanctions: failed to record match")
			}
		}
		return nil
	}

	for _, p := range people {
		if err := screenOne(p.Name, domain.EntityPerson); err != nil {
			return 0, err
		}
	}
	for _, o := range orgs {
		if err := screenOne(o.Name, domain.EntityOrganization); err != nil {
			return 0, err
		}
	}

	if maxScore >= recordThreshold {
		return 1.0, nil
	}
	return 0.0, nil
}

func (s *Screener) bestMatch(ctx context.Context, name string) (float64, map[string]any, error) {
	candidates, err := s.watchlist.Candidates(ctx, name)
	if err != nil {
		return 0, nil, err
	}
	best := 0.0
	var bestPayload map[string]any
	for _, c := range candidates {
		score := similarity(name, c.Name)
		if score > best {
			best = score
			bestPayload = c.RawPayload
		}
	}
	if best < matchThreshold {
		return 0, nil, nil
	}
	return best, bestPayload, nil
}

// similarity computes a normalized [0,1] Levenshtein similarity between
// a and b, with a 0.8 floor when one fully contains the other (handles
// "PDVSA" vs "Petroleos de Venezuela S.A. (PDVSA)" style containment).
func similarity(a, b string) float64 {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la == lb {
		return 1.0
	}
	if strings.Contains(la, lb) || strings.Contains(lb, la) {
		return 0.8
	}
	dist := levenshtein.ComputeDistance(la, lb)
	maxLen := len(la)
	if len(lb) > maxLen {
		maxLen = len(lb)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(dist)/float64(maxLen)
}
