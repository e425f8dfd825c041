package importer

import (
	"regexp"
	"strings"
)

// personLink matches [[Name]] and [[Name|shown text]].
var personLink = regexp.MustCompile(`\[\[([^\[\]|]+?)(?:\|([^\[\]]+?))?\]\]`)

// linkedPersons returns the names linked in body, first mention first, with
// case-insensitive duplicates dropped.
func linkedPersons(body string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range personLink.FindAllStringSubmatch(body, -1) {
		name := strings.TrimSpace(m[1])
		if key := strings.ToLower(name); !seen[key] {
			seen[key] = true
			names = append(names, name)
		}
	}
	return names
}

// unlink replaces each link with its shown text, or the name when it has
// none.
func unlink(body string) string {
	return personLink.ReplaceAllStringFunc(body, func(link string) string {
		m := personLink.FindStringSubmatch(link)
		if shown := strings.TrimSpace(m[2]); shown != "" {
			return shown
		}
		return strings.TrimSpace(m[1])
	})
}
