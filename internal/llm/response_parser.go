package llm

import (
	"encoding/json"
	"strings"

	"github.com/scrypster/companion/pkg/types"
)

// extractJSON extracts the first JSON object from a reply that may wrap it
// in markdown fences or surround it with prose.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text // No JSON found, return as-is and let parser fail
	}

	braceCount := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		// Only count braces outside of strings
		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text // No complete JSON found, return as-is
}

// analysisResponse mirrors types.Analysis but tolerates loosely typed
// fields: a list may come back as a single string and optionals as null.
type analysisResponse struct {
	Topic         string          `json:"topic"`
	Emotion       *string         `json:"emotion"`
	TimeReference *string         `json:"timeReference"`
	ActionItems   flexibleStrings `json:"actionItems"`
	KeyDetails    flexibleStrings `json:"keyDetails"`
	Summary       string          `json:"summary"`
}

// flexibleStrings decodes a JSON array of strings, a single string, or null.
type flexibleStrings []string

func (f *flexibleStrings) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if strings.TrimSpace(single) != "" {
			*f = []string{single}
		}
		return nil
	}
	// Anything else (numbers, objects) is dropped rather than failing the reply.
	*f = nil
	return nil
}

// ParseAnalysis decodes a model reply into an Analysis. Fences and prose
// around the JSON object are ignored. A reply that cannot be decoded yields
// an empty Analysis and ok=false; it never fails.
func ParseAnalysis(reply string) (analysis types.Analysis, ok bool) {
	var resp analysisResponse
	if err := json.Unmarshal([]byte(extractJSON(reply)), &resp); err != nil {
		empty := types.Analysis{}
		empty.Normalize()
		return empty, false
	}

	analysis = types.Analysis{
		Topic:         resp.Topic,
		Emotion:       resp.Emotion,
		TimeReference: resp.TimeReference,
		ActionItems:   resp.ActionItems,
		KeyDetails:    resp.KeyDetails,
		Summary:       resp.Summary,
	}
	analysis.Normalize()
	return analysis, true
}
