package category

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stdin/venezuelawatch/internal/domain"
)

func TestClassify_GDELTProtestIsSocial(t *testing.T) {
	cat, sub := Classify(domain.SourceGDELT, map[string]any{"event_code": "14"})
	assert.Equal(t, domain.CategorySocial, cat)
	assert.Equal(t, "14", sub)
}

func TestClassify_WorldBankGDPPrefix(t *testing.T) {
	cat, sub := Classify(domain.SourceWorldBank, map[string]any{"indicator_code": "NY.GDP.MKTP.CD"})
	assert.Equal(t, domain.CategoryEconomic, cat)
	assert.Equal(t, "NY.GDP.MKTP.CD", sub)
}

func TestClassify_UNComtradeOil(t *testing.T) {
	cat, _ := Classify(domain.SourceUNComtrade, map[string]any{"commodity_code": "2709"})
	assert.Equal(t, domain.CategoryEnergy, cat)
}

func TestClassify_UNComtradeDefaultTrade(t *testing.T) {
	cat, _ := Classify(domain.SourceUNComtrade, map[string]any{"commodity_code": "9999"})
	assert.Equal(t, domain.CategoryTrade, cat)
}

func TestClassify_GoogleTrendsSubstring(t *testing.T) {
	cat, _ := Classify(domain.SourceGoogleTrends, map[string]any{"term": "Venezuela Oil Exports"})
	assert.Equal(t, domain.CategoryEnergy, cat)
}

func TestClassify_UnknownSourceDefaultsPolitical(t *testing.T) {
	cat, _ := Classify(domain.Source("unknown"), map[string]any{})
	assert.Equal(t, domain.CategoryPolitical, cat)
}
