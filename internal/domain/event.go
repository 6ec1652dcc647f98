package domain

import (
	"time"

	"github.com/google/uuid"
)

// Actor describes one side of an event (actor1/actor2 in spec terms).
type Actor struct {
	Name string     `json:"name"`
	Type ActorType  `json:"type,omitempty"`
}

// LLMAnalysis is the full structured intelligence bundle C8 produces.
// Its fields mirror the closed schema verbatim; Entities/Relationships
// feed C12/C13, Risk.Score feeds C9, Themes feed C10's supply-chain
// dimension.
type LLMAnalysis struct {
	Sentiment     Sentiment      `json:"sentiment"`
	Summary       Summary        `json:"summary"`
	Entities      EntityBlock    `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	Risk          RiskAssessment `json:"risk"`
	Themes        []string       `json:"themes"`
	Urgency       Urgency        `json:"urgency"`
	Language      string         `json:"language"`

	// FromCache records a cache hit so callers/tests can assert no
	// external call was made (idempotency property, spec §8.5).
	FromCache bool `json:"from_cache,omitempty"`
	// Fallback marks a degraded, neutral-scored object produced because
	// the model call failed or returned unparseable output.
	Fallback bool `json:"fallback,omitempty"`
}

// Sentiment is the LLM's sentiment judgment.
type Sentiment struct {
	Score      float64  `json:"score"` // [-1,1]
	Label      string   `json:"label"` // positive|neutral|negative
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Nuances    []string `json:"nuances,omitempty"`
}

// Summary is the LLM's narrative summary.
type Summary struct {
	Short     string   `json:"short"`
	KeyPoints []string `json:"key_points"` // 3..5
	Full      string   `json:"full,omitempty"`
}

// NamedEntity is one person/organization/location the LLM extracted.
type NamedEntity struct {
	Name     string  `json:"name"`
	Role     string  `json:"role,omitempty"` // people/organizations
	Type     string  `json:"type,omitempty"` // locations
	Relevance float64 `json:"relevance"`      // [0,1]
}

// EntityBlock groups extracted entities by kind.
type EntityBlock struct {
	People        []NamedEntity `json:"people"`
	Organizations []NamedEntity `json:"organizations"`
	Locations     []NamedEntity `json:"locations"`
}

// Relationship is one subject-predicate-object triple the LLM inferred.
type Relationship struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

// RiskAssessment is the LLM's own qualitative risk read.
type RiskAssessment struct {
	Score      float64  `json:"score"` // [0,1]
	Level      string   `json:"level"` // low|medium|high|critical
	Reasoning  string   `json:"reasoning"`
	Factors    []string `json:"factors,omitempty"`
	Mitigation []string `json:"mitigation,omitempty"`
}

// Event is the canonical value object every adapter, scorer, and
// analyzer shares. It is immutable after insert except for the
// enrichment fields, which only the analyze stage mutates.
type Event struct {
	// Identity
	ID            string `json:"id"`
	Source        Source `json:"source"`
	SourceEventID string `json:"source_event_id"`
	SourceURL     string `json:"source_url,omitempty"`

	// Temporal
	EventTimestamp time.Time `json:"event_timestamp"`
	IngestedAt     time.Time `json:"ingested_at"`
	CreatedAt      time.Time `json:"created_at"`

	// Classification
	Category    Category `json:"category"`
	Subcategory string   `json:"subcategory,omitempty"`
	EventType   string   `json:"event_type,omitempty"`

	// Raw text, as supplied by the adapter; Title/Content feed the C3
	// keyword auto-triggers and are the C8 LLM analyzer's primary input.
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`

	// Location
	CountryCode string   `json:"country_code,omitempty"`
	Admin1      string   `json:"admin1,omitempty"`
	Admin2      string   `json:"admin2,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`

	// Magnitude
	MagnitudeRaw  *float64      `json:"magnitude_raw,omitempty"`
	MagnitudeUnit MagnitudeUnit `json:"magnitude_unit,omitempty"`
	MagnitudeNorm float64       `json:"magnitude_norm"` // [0,1]

	Direction Direction `json:"direction"`

	// Tone
	ToneRaw  *float64 `json:"tone_raw,omitempty"`
	ToneNorm float64  `json:"tone_norm"` // [0,1], 1 = most negative

	// Confidence
	NumSources        int     `json:"num_sources"` // >=1
	SourceCredibility float64 `json:"source_credibility"`
	Confidence        float64 `json:"confidence"`

	// Actors
	Actor1 *Actor `json:"actor1,omitempty"`
	Actor2 *Actor `json:"actor2,omitempty"`

	// Taxonomic arrays
	Commodities []string `json:"commodities,omitempty"`
	Sectors     []string `json:"sectors,omitempty"`
	Themes      []string `json:"themes,omitempty"`

	// Enrichment (owned exclusively by the analyze stage)
	Sentiment     *float64      `json:"sentiment,omitempty"` // [-1,1]
	RiskScore     float64       `json:"risk_score"`          // [0,100]
	Severity      Severity      `json:"severity,omitempty"`
	SeverityBand  SeverityBand  `json:"severity_band,omitempty"`
	Urgency       Urgency       `json:"urgency,omitempty"`
	Language      string        `json:"language,omitempty"`
	Summary       string        `json:"summary,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
	LLMAnalysis   *LLMAnalysis  `json:"llm_analysis,omitempty"`
	ScoringMethod ScoringMethod `json:"scoring_method,omitempty"`

	// Metadata is open; the core never relies on its contents.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewID derives the deterministic canonical id for (source,
// source_event_id): re-ingestion of the
// same (source, source_event_id) pair is idempotent, while the same
// source_event_id under a different source tag is a distinct event.
func NewID(source Source, sourceEventID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(string(source)+"/"+sourceEventID)).String()
}

// ClampUnit clips x to [0,1].
func ClampUnit(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Clamp100 clips x to [0,100].
func Clamp100(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 100 {
		return 100
	}
	return x
}
