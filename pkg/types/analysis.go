package types

import "strings"

// Analysis is the structured result of a single AI analysis call.
// JSON field names match the keys requested in the analysis prompt.
type Analysis struct {
	Topic         string   `json:"topic"`
	Emotion       *string  `json:"emotion"`
	TimeReference *string  `json:"timeReference"`
	ActionItems   []string `json:"actionItems"`
	KeyDetails    []string `json:"keyDetails"`
	Summary       string   `json:"summary"`
}

// IsEmpty reports whether the analysis carries no usable information.
func (a *Analysis) IsEmpty() bool {
	emotion := ""
	if a.Emotion != nil {
		emotion = strings.TrimSpace(*a.Emotion)
	}
	return strings.TrimSpace(a.Topic) == "" &&
		emotion == "" &&
		len(a.ActionItems) == 0 &&
		len(a.KeyDetails) == 0
}

// Clone returns a deep copy of a. Lists in the copy are never nil.
func (a Analysis) Clone() Analysis {
	a.Emotion = clonePtr(a.Emotion)
	a.TimeReference = clonePtr(a.TimeReference)
	a.ActionItems = append([]string{}, a.ActionItems...)
	a.KeyDetails = append([]string{}, a.KeyDetails...)
	return a
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Normalize trims every field, maps blank or "null" optionals to nil,
// drops blank list entries and replaces nil lists with empty ones.
func (a *Analysis) Normalize() {
	a.Topic = strings.TrimSpace(a.Topic)
	a.Summary = strings.TrimSpace(a.Summary)
	a.Emotion = trimOptional(a.Emotion)
	a.TimeReference = trimOptional(a.TimeReference)
	a.ActionItems = compact(a.ActionItems)
	a.KeyDetails = compact(a.KeyDetails)
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if v := strings.TrimSpace(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// StringPtr returns a pointer to s, or nil when s is blank.
func StringPtr(s string) *string {
	return trimOptional(&s)
}
