package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt_IncludesContextWhenPresent(t *testing.T) {
	in := AnalyzeInput{Title: "t", Content: "c", Context: "prior related events"}
	assert.Contains(t, buildPrompt(in), "Additional context: prior related events")
}

func TestBuildPrompt_OmitsContextWhenEmpty(t *testing.T) {
	in := AnalyzeInput{Title: "t", Content: "c"}
	assert.NotContains(t, buildPrompt(in), "Additional context")
}

func TestBuildPrompt_TruncatesLongContent(t *testing.T) {
	long := strings.Repeat("a", maxContentRunes+500)
	in := AnalyzeInput{Title: "t", Content: long}
	prompt := buildPrompt(in)
	assert.NotContains(t, prompt, strings.Repeat("a", maxContentRunes+1))
	assert.Contains(t, prompt, strings.Repeat("a", maxContentRunes))
}

func TestTruncateContent_LeavesShortContentUntouched(t *testing.T) {
	assert.Equal(t, "short content", truncateContent("short content"))
}

func TestTruncateContent_CutsOnRuneBoundary(t *testing.T) {
	content := strings.Repeat("é", maxContentRunes+10)
	out := truncateContent(content)
	assert.Equal(t, maxContentRunes, len([]rune(out)))
}
