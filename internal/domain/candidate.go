package domain

import (
	"fmt"
	"strings"
)

// MoodQuery identifies what the user asked for. Mood and language together
// form the cache key, so two languages of the same mood never share cached
// candidates.
type MoodQuery struct {
	Mood     string `json:"mood"`
	Language string `json:"language"`
}

// Normalized lowercases and trims the query and defaults the language.
func (q MoodQuery) Normalized() MoodQuery {
	q.Mood = strings.ToLower(strings.TrimSpace(q.Mood))
	q.Language = strings.ToLower(strings.TrimSpace(q.Language))
	if q.Language == "" {
		q.Language = "english"
	}
	return q
}

// Key is the cache key for the query.
func (q MoodQuery) Key() string {
	n := q.Normalized()
	return fmt.Sprintf("%s|%s", n.Mood, n.Language)
}

// Candidate is a retrievable piece of content proposed by a source. The
// reference is the stable identity: exclusion sets, the cache, and the
// recently-used window all key on it.
type Candidate struct {
	SourceID        string            `json:"source_id"`
	Reference       string            `json:"reference"`
	Title           string            `json:"title,omitempty"`
	DurationSeconds float64           `json:"duration_seconds,omitempty"`
	RawMetadata     map[string]string `json:"raw_metadata,omitempty"`
}

// ValidationReport is the outcome of validating one fetched artifact.
// Issues holds human-readable reasons; Measurements holds the raw numbers
// behind them (duration, bitrate, loudness).
type ValidationReport struct {
	Accepted     bool               `json:"accepted"`
	Issues       []string           `json:"issues,omitempty"`
	Measurements map[string]float64 `json:"measurements,omitempty"`
}
