package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJournalEntry_Frontmatter(t *testing.T) {
	content := []byte(`---
person: Grandma Rose
date: 2024-03-05
topic: Garden
emotion: content
action_items: [water the roses, buy compost]
key_details: "planted tulips, new shed"
---

Spent the afternoon in the garden with [[Grandma Rose|Grandma]].
`)
	mod := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	entry, err := ParseJournalEntry(content, "misc/note.md", mod)
	require.NoError(t, err)

	assert.Equal(t, "Grandma Rose", entry.Person)
	assert.Equal(t, "Spent the afternoon in the garden with Grandma.", entry.Body)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), entry.CreatedAt)
	require.NotNil(t, entry.Analysis)
	assert.Equal(t, "Garden", entry.Analysis.Topic)
	assert.Equal(t, []string{"water the roses", "buy compost"}, entry.Analysis.ActionItems)
	assert.Equal(t, []string{"planted tulips", "new shed"}, entry.Analysis.KeyDetails)
}

func TestParseJournalEntry_Fallbacks(t *testing.T) {
	mod := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

	entry, err := ParseJournalEntry([]byte("Lunch downtown."), "Sam/lunch.md", mod)
	require.NoError(t, err)
	assert.Equal(t, "Sam", entry.Person)
	assert.Equal(t, mod, entry.CreatedAt)
	assert.Nil(t, entry.Analysis)

	entry, err = ParseJournalEntry([]byte("Called [[Alex]] about the move."), "call.md", mod)
	require.NoError(t, err)
	assert.Equal(t, "Alex", entry.Person)
	assert.Equal(t, "Called Alex about the move.", entry.Body)

	entry, err = ParseJournalEntry([]byte("No one in particular."), "loose.md", mod)
	require.NoError(t, err)
	assert.Empty(t, entry.Person)
}

func TestParseJournalEntry_SummaryOnlyIsNotAnAnalysis(t *testing.T) {
	entry, err := ParseJournalEntry([]byte("---\nsummary: just a summary\n---\nbody"), "Sam/x.md", time.Now())
	require.NoError(t, err)
	assert.Nil(t, entry.Analysis)
}

func TestParseJournalEntry_InvalidYAML(t *testing.T) {
	_, err := ParseJournalEntry([]byte("---\n: : bad\n  - [\n---\nbody"), "Sam/x.md", time.Now())
	assert.Error(t, err)
}

func TestSplitFrontmatter_Unclosed(t *testing.T) {
	fm, body, err := splitFrontmatter("---\nperson: Sam\nno closing")
	require.NoError(t, err)
	assert.Empty(t, fm)
	assert.Contains(t, body, "no closing")
}

func TestPersonFromPath(t *testing.T) {
	assert.Equal(t, "", personFromPath("note.md"))
	assert.Equal(t, "Sam", personFromPath("Sam/note.md"))
	assert.Equal(t, "Sam", personFromPath("family/Sam/note.md"))
}

func TestPersonLinks(t *testing.T) {
	assert.Equal(t, "see Alex and Bee", unlink("see [[Alex]] and [[Beatrice|Bee]]"))
	assert.Equal(t, "no links here", unlink("no links here"))
	assert.Equal(t, []string{"Alex", "Sam"}, linkedPersons("[[Alex]] [[alex]] [[ Sam |Sammy]]"))
	assert.Empty(t, linkedPersons("[[]] [not a link]"))
}
