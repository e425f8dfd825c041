package importer

import (
	"bufio"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scrypster/companion/pkg/types"
)

// JournalEntry is one Markdown journal file, ready to become a memory.
type JournalEntry struct {
	// RelativePath is the path relative to the import root directory.
	RelativePath string

	// Person is the name of the person the entry is about.
	Person string

	// Body is the Markdown body with frontmatter stripped and wiki links
	// turned into plain text.
	Body string

	// CreatedAt is from the frontmatter date, or the file modification time.
	CreatedAt time.Time

	// Analysis is a pre-made analysis from the frontmatter, or nil.
	Analysis *types.Analysis
}

// ParseJournalEntry parses a journal file. relativePath picks the person when
// the frontmatter has none; modTime is the fallback creation time.
func ParseJournalEntry(content []byte, relativePath string, modTime time.Time) (*JournalEntry, error) {
	fm, body, err := splitFrontmatter(string(content))
	if err != nil {
		return nil, fmt.Errorf("frontmatter parse error in %s: %w", relativePath, err)
	}

	person := extractString(fm, "person", "")
	if person == "" {
		person = personFromPath(relativePath)
	}
	if person == "" {
		if names := linkedPersons(body); len(names) > 0 {
			person = names[0]
		}
	}

	createdAt := extractTimestamp(fm)
	if createdAt.IsZero() {
		createdAt = modTime
	}

	return &JournalEntry{
		RelativePath: relativePath,
		Person:       person,
		Body:         strings.TrimSpace(unlink(body)),
		CreatedAt:    createdAt.UTC(),
		Analysis:     extractAnalysis(fm),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between --- delimiters) from
// the Markdown body. Returns empty map and full text when no frontmatter found.
func splitFrontmatter(text string) (map[string]interface{}, string, error) {
	scanner := bufio.NewScanner(strings.NewReader(text))

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if len(lines) == 0 {
		return map[string]interface{}{}, text, nil
	}

	// Frontmatter must start with "---" on the first line.
	if strings.TrimSpace(lines[0]) != "---" {
		return map[string]interface{}{}, text, nil
	}

	closeIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			closeIdx = i
			break
		}
	}

	if closeIdx == -1 {
		// No closing delimiter - treat entire file as body.
		return map[string]interface{}{}, text, nil
	}

	fmText := strings.Join(lines[1:closeIdx], "\n")
	fm := make(map[string]interface{})
	if err := yaml.Unmarshal([]byte(fmText), &fm); err != nil {
		return map[string]interface{}{}, text, fmt.Errorf("invalid YAML: %w", err)
	}

	body := strings.Join(lines[closeIdx+1:], "\n")
	return fm, body, nil
}

// personFromPath returns the name of the directory holding the file, or ""
// for files at the import root.
func personFromPath(rel string) string {
	dir := filepath.Dir(filepath.ToSlash(rel))
	if dir == "." || dir == "/" {
		return ""
	}
	return strings.TrimSpace(filepath.Base(dir))
}

// extractAnalysis builds an analysis from frontmatter keys. It returns nil
// when the frontmatter carries no usable analysis.
func extractAnalysis(fm map[string]interface{}) *types.Analysis {
	a := types.Analysis{
		Topic:         extractString(fm, "topic", ""),
		Emotion:       types.StringPtr(extractString(fm, "emotion", "")),
		TimeReference: types.StringPtr(extractString(fm, "time_reference", "")),
		ActionItems:   extractList(fm, "action_items"),
		KeyDetails:    extractList(fm, "key_details"),
		Summary:       extractString(fm, "summary", ""),
	}
	a.Normalize()
	if a.IsEmpty() {
		return nil
	}
	return &a
}

// extractList reads a list from frontmatter. Handles both list and
// comma-separated string forms.
func extractList(fm map[string]interface{}, key string) []string {
	raw, ok := fm[key]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case []interface{}:
		var items []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				items = append(items, s)
			}
		}
		return items
	case string:
		var items []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
		return items
	}
	return nil
}

// extractTimestamp reads a date field from frontmatter and attempts several
// common layouts.
func extractTimestamp(fm map[string]interface{}) time.Time {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"January 2, 2006",
		"Jan 2, 2006",
	}

	for _, key := range []string{"date", "created", "created_at"} {
		raw, ok := fm[key]
		if !ok {
			continue
		}
		var s string
		switch v := raw.(type) {
		case string:
			s = v
		case time.Time:
			return v
		default:
			s = fmt.Sprintf("%v", v)
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// extractString pulls a string value from frontmatter by key with a default.
func extractString(fm map[string]interface{}, key, defaultVal string) string {
	v, ok := fm[key]
	if !ok {
		return defaultVal
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return defaultVal
}
