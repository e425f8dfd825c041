package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"strings"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// PersonQuery filters the person list.
type PersonQuery struct {
	// Search matches persons whose name contains the text (case-insensitive).
	// Empty string means no filter.
	Search string
}

// MemoryQuery filters the memory list.
type MemoryQuery struct {
	// PersonID restricts results to one person. Empty string means all persons.
	PersonID string

	// Processed filters on the processed flag. Nil means no filter.
	Processed *bool

	// Search matches memories whose raw input, summary or topic contains the
	// text (case-insensitive). Empty string means no filter.
	Search string

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// Normalize applies limits to the query.
func (q *MemoryQuery) Normalize() {
	if q.Limit < 0 {
		q.Limit = 0
	}
	if q.Limit > MaxListLimit {
		q.Limit = MaxListLimit
	}
}

// MaxListLimit is the largest page a single list call returns.
const MaxListLimit = 1000

// ScoredID is a memory ID with its similarity score.
type ScoredID struct {
	MemoryID string
	Score    float64
}

// Bool is a helper for building optional boolean filters.
func Bool(v bool) *bool {
	return &v
}

// EncodeList serializes a string list as a JSON array. Nil becomes "[]".
func EncodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeList parses a stored JSON array. Malformed or empty values decode to
// an empty list so that a bad row never fails a read.
func DecodeList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil || items == nil {
		return []string{}
	}
	return items
}

// CosineSimilarity returns the cosine similarity of two vectors, or 0 when
// their dimensions differ or either is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// LikePattern wraps a search term for a LIKE ... ESCAPE '\' clause, escaping
// the wildcard characters it contains.
func LikePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

// EncodeVector packs a float32 vector as little-endian bytes.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector unpacks bytes written by EncodeVector. Trailing bytes that do
// not form a full float are ignored.
func DecodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
