package llm

import "fmt"

// maxContentRunes caps how much event content enters the prompt, bounding
// per-call token cost regardless of how much raw content an adapter collected.
const maxContentRunes = 5000

// systemPrompt pins the model to the closed JSON schema domain.LLMAnalysis
// decodes into. Field names mirror the struct's json tags exactly so
// extractJSON can unmarshal the response without a translation layer.
const systemPrompt = `You are an intelligence analyst reviewing a single news/data event about Venezuela.
Respond with ONLY a JSON object (no prose, no markdown fence) matching this shape:
{
  "sentiment": {"score": -1..1, "label": "positive|neutral|negative", "confidence": 0..1, "reasoning": "", "nuances": []},
  "summary": {"short": "", "key_points": ["", "", ""], "full": ""},
  "entities": {"people": [{"name": "", "role": "", "relevance": 0..1}], "organizations": [{"name": "", "role": "", "relevance": 0..1}], "locations": [{"name": "", "type": "", "relevance": 0..1}]},
  "relationships": [{"subject": "", "predicate": "", "object": "", "confidence": 0..1}],
  "risk": {"score": 0..1, "level": "low|medium|high|critical", "reasoning": "", "factors": [], "mitigation": []},
  "themes": [],
  "urgency": "low|medium|high|immediate",
  "language": "en"
}
Be concise. Ground every field in the text provided; do not invent entities or relationships absent from it.`

func buildPrompt(in AnalyzeInput) string {
	content := truncateContent(in.Content)
	if in.Context != "" {
		return fmt.Sprintf("Title: %s\n\nContent: %s\n\nAdditional context: %s", in.Title, content, in.Context)
	}
	return fmt.Sprintf("Title: %s\n\nContent: %s", in.Title, content)
}

// truncateContent caps content at maxContentRunes, cutting on rune
// boundaries so multi-byte characters are never split.
func truncateContent(content string) string {
	runes := []rune(content)
	if len(runes) <= maxContentRunes {
		return content
	}
	return string(runes[:maxContentRunes])
}
