package nodes

import "regexp"

// filteredToken replaces prompt fragments that match a known injection
// phrasing. Defense in depth only: this filter narrows the easy attack
// surface, it does not make user input safe.
const filteredToken = "[FILTERED]"

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|rules)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|rules)`),
	regexp.MustCompile(`(?i)forget\s+(everything|all)\s+(you|above|before)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an)\s+different`),
	regexp.MustCompile(`(?i)pretend\s+(to\s+be|you\s+are)\s+(a|an)?\s*(different|new)`),
	regexp.MustCompile(`(?i)act\s+as\s+if\s+you\s+(have\s+no|had\s+no)\s+(instructions|restrictions|rules)`),
	regexp.MustCompile(`(?i)(reveal|show|print|output)\s+(your|the)\s+(system\s+)?(prompt|instructions)`),
	regexp.MustCompile(`(?i)new\s+(system\s+)?instructions?\s*:`),
	regexp.MustCompile(`(?i)override\s+(your|all)\s+(instructions|settings|rules)`),
}

// sanitizePrompt replaces common prompt-injection phrasings with a literal
// marker before the text reaches a provider.
func sanitizePrompt(text string) string {
	for _, pattern := range injectionPatterns {
		text = pattern.ReplaceAllString(text, filteredToken)
	}
	return text
}
