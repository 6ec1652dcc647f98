// Package domain holds the canonical value types every pipeline stage
// shares: the event, entity/alias/mention/spike/sanctions-match records,
// and their closed enumerations.
package domain

// Source is the closed set of adapter tags.
type Source string

const (
	SourceGDELT        Source = "gdelt"
	SourceReliefWeb     Source = "reliefweb"
	SourceFRED          Source = "fred"
	SourceUNComtrade    Source = "un_comtrade"
	SourceWorldBank     Source = "world_bank"
	SourceGoogleTrends  Source = "google_trends"
	SourceSECEDGAR      Source = "sec_edgar"
)

// Category is the closed 10-member taxonomy every event is classified into.
type Category string

const (
	CategoryPolitical     Category = "POLITICAL"
	CategoryConflict      Category = "CONFLICT"
	CategoryEconomic      Category = "ECONOMIC"
	CategoryTrade         Category = "TRADE"
	CategoryRegulatory    Category = "REGULATORY"
	CategoryInfrastructure Category = "INFRASTRUCTURE"
	CategoryHealthcare    Category = "HEALTHCARE"
	CategorySocial        Category = "SOCIAL"
	CategoryEnvironmental Category = "ENVIRONMENTAL"
	CategoryEnergy        Category = "ENERGY"
)

// Categories is the closed set, in a stable order, for validation and
// for iterating category sub-scores (C11).
var Categories = []Category{
	CategoryPolitical, CategoryConflict, CategoryEconomic, CategoryTrade,
	CategoryRegulatory, CategoryInfrastructure, CategoryHealthcare,
	CategorySocial, CategoryEnvironmental, CategoryEnergy,
}

// IsValidCategory reports whether c is one of the 10 canonical categories.
func IsValidCategory(c Category) bool {
	for _, candidate := range Categories {
		if candidate == c {
			return true
		}
	}
	return false
}

// Direction is the signed interpretation of an event's magnitude.
type Direction string

const (
	DirectionPositive Direction = "POSITIVE"
	DirectionNegative Direction = "NEGATIVE"
	DirectionNeutral  Direction = "NEUTRAL"
)

// MagnitudeUnit is the closed set of native magnitude units adapters emit.
type MagnitudeUnit string

const (
	UnitFatalities    MagnitudeUnit = "fatalities"
	UnitPercent       MagnitudeUnit = "percent"
	UnitGoldstein     MagnitudeUnit = "goldstein"
	UnitUSD           MagnitudeUnit = "usd"
	UnitInterestScore MagnitudeUnit = "interest_score"
	UnitPercentChange MagnitudeUnit = "percent_change"
)

// ActorType is the closed set of actor classifications.
type ActorType string

const (
	ActorGovernment ActorType = "GOVERNMENT"
	ActorMilitary   ActorType = "MILITARY"
	ActorRebel      ActorType = "REBEL"
	ActorCivilian   ActorType = "CIVILIAN"
	ActorCorporate  ActorType = "CORPORATE"
)

// Severity is the deterministic P1-P4 priority class (C3) used for
// routing/alerting, distinct from the hybrid-derived SEV1-SEV5 band (C9).
type Severity string

const (
	P1 Severity = "P1"
	P2 Severity = "P2"
	P3 Severity = "P3"
	P4 Severity = "P4"
)

// SeverityWeight maps P1-P4 to the weight used by C11's category
// sub-score aggregation.
var SeverityWeight = map[Severity]float64{
	P1: 4,
	P2: 3,
	P3: 2,
	P4: 1,
}

// SeverityBand is the H-derived SEV1-SEV5 band produced by C9.
type SeverityBand string

const (
	SEV1 SeverityBand = "SEV1"
	SEV2 SeverityBand = "SEV2"
	SEV3 SeverityBand = "SEV3"
	SEV4 SeverityBand = "SEV4"
	SEV5 SeverityBand = "SEV5"
)

// Urgency is the closed urgency vocabulary the LLM analyzer emits.
type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyImmediate Urgency = "immediate"
)

// EntityType is the closed set of resolvable entity kinds.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityGovernment   EntityType = "government"
	EntityLocation     EntityType = "location"
)

// ResolutionMethod records which tier of C12 produced an alias/mention.
type ResolutionMethod string

const (
	ResolutionExact         ResolutionMethod = "exact"
	ResolutionProbabilistic ResolutionMethod = "probabilistic"
	ResolutionLLM           ResolutionMethod = "llm"
)

// SpikeConfidence is the z-score-derived confidence band from C17.
type SpikeConfidence string

const (
	SpikeMedium   SpikeConfidence = "MEDIUM"
	SpikeHigh     SpikeConfidence = "HIGH"
	SpikeCritical SpikeConfidence = "CRITICAL"
)

// ScoringMethod records whether C9 produced a hybrid or llm_only score.
type ScoringMethod string

const (
	ScoringHybrid  ScoringMethod = "hybrid"
	ScoringLLMOnly ScoringMethod = "llm_only"
)
