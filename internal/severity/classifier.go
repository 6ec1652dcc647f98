// Package severity implements C3: deterministic P1-P4 severity
// classification. Rules are evaluated top-down, first hit wins, and
// consult no LLM output, so P1 is reliable for alerting even when the
// analyze stage has not yet run.
package severity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/stdin/venezuelawatch/internal/domain"
)

// p1EventTypes is the fixed auto-trigger set of event_type values.
var p1EventTypes = map[string]bool{
	"COUP":                   true,
	"COUP_ATTEMPT":           true,
	"NATIONALIZATION":        true,
	"EXPROPRIATION":          true,
	"SOVEREIGN_DEFAULT":      true,
	"MILITARY_INTERVENTION":  true,
	"HEAD_OF_STATE_REMOVED":  true,
	"OIL_EXPORT_HALT":        true,
}

// p1CAMEOCodes is the fixed auto-trigger set of GDELT CAMEO codes.
var p1CAMEOCodes = map[string]bool{
	"192":  true, // ethnic cleansing
	"193":  true, // bombing
	"194":  true, // weapons of mass destruction
	"195":  true, // assassination
	"1031": true, // coup d'état
}

// p1KeywordPatterns is the fixed regex list matched against title+content.
var p1KeywordPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)coup\s+(attempt|d'état)?`),
	regexp.MustCompile(`(?i)nationali[sz](e|ation)`),
	regexp.MustCompile(`(?i)expropriate?`),
	regexp.MustCompile(`(?i)sovereign\s+default`),
	regexp.MustCompile(`(?i)sanctions?\s+(announced|imposed)`),
	regexp.MustCompile(`(?i)oil\s+export\s+(halt|stop|ban)`),
	regexp.MustCompile(`(?i)pdvsa\s+(seize|shutdown|halt)`),
}

const fatalityThreshold = 10.0

// Assign classifies e into P1-P4 and returns a human-readable reason.
func Assign(e *domain.Event) (domain.Severity, string) {
	// ============ P1: CRITICAL ============

	if e.EventType != "" && p1EventTypes[strings.ToUpper(e.EventType)] {
		return domain.P1, fmt.Sprintf("Auto-trigger: %s", e.EventType)
	}

	var cameoCode string
	if e.Source == domain.SourceGDELT {
		cameoCode = e.Subcategory
		if cameoCode == "" && e.Metadata != nil {
			if v, ok := e.Metadata["event_code"].(string); ok {
				cameoCode = v
			}
		}
	}
	if cameoCode != "" && p1CAMEOCodes[cameoCode] {
		return domain.P1, fmt.Sprintf("Auto-trigger: CAMEO %s", cameoCode)
	}

	searchText := strings.ToLower(e.Title + " " + e.Content)
	for _, pattern := range p1KeywordPatterns {
		if pattern.MatchString(searchText) {
			return domain.P1, fmt.Sprintf("Auto-trigger: %s", pattern.String())
		}
	}

	if e.MagnitudeUnit == domain.UnitFatalities && e.MagnitudeRaw != nil && *e.MagnitudeRaw >= fatalityThreshold {
		return domain.P1, fmt.Sprintf("High fatalities: %d", int(*e.MagnitudeRaw))
	}

	if e.Category == domain.CategoryEnergy && containsCI(e.Commodities, "OIL") &&
		e.Direction == domain.DirectionNegative && e.MagnitudeNorm > 0.8 {
		return domain.P1, "Major oil/energy disruption"
	}

	// ============ P2: HIGH ============

	if e.MagnitudeUnit == domain.UnitFatalities && e.MagnitudeRaw != nil &&
		*e.MagnitudeRaw >= 1 && *e.MagnitudeRaw < fatalityThreshold {
		return domain.P2, fmt.Sprintf("Fatalities: %d", int(*e.MagnitudeRaw))
	}

	if (e.Category == domain.CategoryPolitical || e.Category == domain.CategoryRegulatory) &&
		e.MagnitudeNorm > 0.7 && e.Direction == domain.DirectionNegative {
		return domain.P2, "Significant policy/regulatory event"
	}

	if e.MagnitudeUnit == domain.UnitPercentChange && e.MagnitudeRaw != nil && absf(*e.MagnitudeRaw) > 10 {
		return domain.P2, fmt.Sprintf("Major economic shift: %.1f%%", *e.MagnitudeRaw)
	}

	if e.Category == domain.CategoryConflict && e.MagnitudeNorm > 0.5 && e.Admin1 != "" {
		return domain.P2, "Significant regional conflict event"
	}

	// ============ P3: MODERATE ============

	if e.Direction == domain.DirectionNegative && e.MagnitudeNorm > 0.3 && e.MagnitudeNorm <= 0.7 {
		return domain.P3, "Moderate negative event"
	}

	if strings.EqualFold(e.EventType, "PROTESTS") || strings.EqualFold(e.EventType, "PROTEST") {
		if e.MagnitudeRaw == nil || *e.MagnitudeRaw == 0 {
			return domain.P3, "Protest activity (no casualties)"
		}
	}

	if e.Category == domain.CategoryRegulatory && e.MagnitudeNorm <= 0.5 {
		return domain.P3, "Minor regulatory event"
	}

	// ============ P4: LOW ============
	return domain.P4, "Low impact / informational"
}

func containsCI(items []string, target string) bool {
	for _, item := range items {
		if strings.EqualFold(item, target) {
			return true
		}
	}
	return false
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
