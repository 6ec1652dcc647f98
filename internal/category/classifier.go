// Package category implements C2: a deterministic, source-keyed mapping
// from raw source data to the canonical 10-category taxonomy. Every
// table here is carried from the original platform's category_classifier
// (see DESIGN.md) rather than re-derived, so the exact CAMEO/indicator/
// keyword cutoffs match the system this spec was distilled from.
package category

import (
	"strings"

	"github.com/stdin/venezuelawatch/internal/domain"
)

// gdeltCAMEORoot maps a GDELT CAMEO 2-digit root code to a category.
var gdeltCAMEORoot = map[string]domain.Category{
	"01": domain.CategoryPolitical,
	"02": domain.CategoryPolitical,
	"03": domain.CategoryPolitical,
	"04": domain.CategoryPolitical,
	"05": domain.CategoryPolitical,
	"06": domain.CategoryEconomic,
	"07": domain.CategoryEconomic,
	"08": domain.CategoryPolitical,
	"09": domain.CategoryPolitical,
	"10": domain.CategoryPolitical,
	"11": domain.CategoryPolitical,
	"12": domain.CategoryPolitical,
	"13": domain.CategoryConflict,
	"14": domain.CategorySocial, // protest: SOCIAL, not CONFLICT
	"15": domain.CategoryRegulatory,
	"16": domain.CategoryEconomic,
	"17": domain.CategoryConflict,
	"18": domain.CategoryConflict,
	"19": domain.CategoryConflict,
	"20": domain.CategoryConflict,
}

// worldBankPrefix maps a World Bank indicator-code prefix to a category.
// Order matters: the first matching prefix wins, so more specific
// prefixes (NY.GDP, NE.EXP) are listed before broader single-letter ones.
var worldBankPrefix = []struct {
	Prefix   string
	Category domain.Category
}{
	{"NY.GDP", domain.CategoryEconomic},
	{"FP.CPI", domain.CategoryEconomic},
	{"BX.KLT", domain.CategoryEconomic},
	{"NE.EXP", domain.CategoryTrade},
	{"NE.IMP", domain.CategoryTrade},
	{"SH.", domain.CategoryHealthcare},
	{"EG.", domain.CategoryEnergy},
	{"SP.POP", domain.CategorySocial},
	{"SE.", domain.CategorySocial},
	{"EN.", domain.CategoryEnvironmental},
	{"IS.", domain.CategoryInfrastructure},
}

// googleTrendsKeyword maps a Google Trends search term to a category,
// checked by exact match first, then substring containment.
var googleTrendsKeyword = []struct {
	Keyword  string
	Category domain.Category
}{
	{"venezuela sanctions", domain.CategoryRegulatory},
	{"venezuela oil", domain.CategoryEnergy},
	{"venezuela crisis", domain.CategoryPolitical},
	{"venezuela inflation", domain.CategoryEconomic},
	{"venezuela protests", domain.CategorySocial},
	{"pdvsa", domain.CategoryEnergy},
	{"maduro", domain.CategoryPolitical},
	{"guaido", domain.CategoryPolitical},
	{"oil", domain.CategoryEnergy},
	{"sanctions", domain.CategoryRegulatory},
	{"inflation", domain.CategoryEconomic},
	{"protests", domain.CategorySocial},
	{"blackout", domain.CategoryInfrastructure},
	{"gold", domain.CategoryTrade},
	{"citgo", domain.CategoryEnergy},
	{"military", domain.CategoryConflict},
}

// secEdgarKeyword maps SEC-filing context keywords (substring match) to
// a category.
var secEdgarKeyword = []struct {
	Keyword  string
	Category domain.Category
}{
	{"sanction", domain.CategoryRegulatory},
	{"nationalization", domain.CategoryRegulatory},
	{"expropriation", domain.CategoryRegulatory},
	{"currency", domain.CategoryEconomic},
	{"hyperinflation", domain.CategoryEconomic},
	{"oil", domain.CategoryEnergy},
	{"pdvsa", domain.CategoryEnergy},
	{"default", domain.CategoryEconomic},
	{"debt", domain.CategoryEconomic},
}

// fredSeriesPrefix maps a FRED series-ID prefix to a category.
var fredSeriesPrefix = []struct {
	Prefix   string
	Category domain.Category
}{
	{"EXVZUS", domain.CategoryEconomic},
	{"VENEZUEL", domain.CategoryEconomic},
}

// unComtradeHS2 maps a UN Comtrade HS 2-digit commodity code to a
// category; unmatched codes default to TRADE.
var unComtradeHS2 = map[string]domain.Category{
	"27": domain.CategoryEnergy, // mineral fuels, oils (crude oil)
	"71": domain.CategoryTrade,  // precious stones/metals (gold)
	"26": domain.CategoryTrade,  // ores, slag, ash
}

// Classify returns (category, subcategory) for a raw record from the
// given source. subcategory is the source-native code, preserved for
// display/debugging; it participates in no downstream invariant.
func Classify(source domain.Source, data map[string]any) (domain.Category, string) {
	switch source {
	case domain.SourceGDELT:
		return classifyGDELT(data)
	case domain.Source("acled"):
		return classifyACLED(data)
	case domain.SourceWorldBank:
		return classifyWorldBank(data)
	case domain.SourceGoogleTrends:
		return classifyGoogleTrends(data)
	case domain.SourceSECEDGAR:
		return classifySECEdgar(data)
	case domain.SourceFRED:
		return classifyFRED(data)
	case domain.SourceUNComtrade:
		return classifyUNComtrade(data)
	default:
		return domain.CategoryPolitical, ""
	}
}

func classifyGDELT(data map[string]any) (domain.Category, string) {
	eventCode, _ := data["event_code"].(string)
	if eventCode == "" {
		return domain.CategoryPolitical, ""
	}
	root := eventCode
	if len(eventCode) >= 2 {
		root = eventCode[:2]
	}
	if cat, ok := gdeltCAMEORoot[root]; ok {
		return cat, eventCode
	}
	return domain.CategoryPolitical, eventCode
}

// acledEventType maps ACLED's labeled event types to a category. ACLED
// is not one of the closed set of source tags this adapter currently
// registers, but C2's table is kept so a future adapter addition needs
// no new classifier logic.
var acledEventType = map[string]domain.Category{
	"Battles":                    domain.CategoryConflict,
	"Explosions/Remote violence": domain.CategoryConflict,
	"Violence against civilians": domain.CategoryConflict,
	"Protests":                   domain.CategorySocial,
	"Riots":                      domain.CategoryConflict,
	"Strategic developments":     domain.CategoryPolitical,
}

func classifyACLED(data map[string]any) (domain.Category, string) {
	eventType, _ := data["event_type"].(string)
	if cat, ok := acledEventType[eventType]; ok {
		return cat, eventType
	}
	return domain.CategoryConflict, eventType
}

func classifyWorldBank(data map[string]any) (domain.Category, string) {
	indicatorCode, _ := data["indicator_code"].(string)
	if indicatorCode == "" {
		return domain.CategoryEconomic, ""
	}
	for _, m := range worldBankPrefix {
		if strings.HasPrefix(indicatorCode, m.Prefix) {
			return m.Category, indicatorCode
		}
	}
	return domain.CategoryEconomic, indicatorCode
}

func classifyGoogleTrends(data map[string]any) (domain.Category, string) {
	term, _ := data["term"].(string)
	term = strings.ToLower(term)
	if term == "" {
		return domain.CategoryPolitical, ""
	}
	for _, m := range googleTrendsKeyword {
		if term == m.Keyword {
			return m.Category, term
		}
	}
	for _, m := range googleTrendsKeyword {
		if strings.Contains(term, m.Keyword) {
			return m.Category, term
		}
	}
	return domain.CategoryPolitical, term
}

func classifySECEdgar(data map[string]any) (domain.Category, string) {
	contextText, _ := data["context_text"].(string)
	filingType, _ := data["filing_type"].(string)
	contextText = strings.ToLower(contextText)
	if contextText == "" {
		return domain.CategoryRegulatory, filingType
	}
	for _, m := range secEdgarKeyword {
		if strings.Contains(contextText, m.Keyword) {
			return m.Category, filingType
		}
	}
	return domain.CategoryRegulatory, filingType
}

func classifyFRED(data map[string]any) (domain.Category, string) {
	seriesID, _ := data["series_id"].(string)
	if seriesID == "" {
		return domain.CategoryEconomic, ""
	}
	for _, m := range fredSeriesPrefix {
		if strings.HasPrefix(seriesID, m.Prefix) {
			return m.Category, seriesID
		}
	}
	return domain.CategoryEconomic, seriesID
}

func classifyUNComtrade(data map[string]any) (domain.Category, string) {
	commodityCode, _ := data["commodity_code"].(string)
	if commodityCode == "" {
		return domain.CategoryTrade, ""
	}
	hs2 := commodityCode
	if len(commodityCode) >= 2 {
		hs2 = commodityCode[:2]
	}
	if cat, ok := unComtradeHS2[hs2]; ok {
		return cat, commodityCode
	}
	return domain.CategoryTrade, commodityCode
}
