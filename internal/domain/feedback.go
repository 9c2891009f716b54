package domain

import (
	"fmt"
	"time"
)

// FeedbackEntry is one user rating for a served candidate. Entries are
// append-only; aggregation happens over the full log.
type FeedbackEntry struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id,omitempty"`
	Reference string    `json:"reference"`
	Mood      string    `json:"mood"`
	SourceID  string    `json:"source_id,omitempty"`
	// DurationSeconds of the served artifact, used for duration bucketing.
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Rating          int     `json:"rating"`
	Comment         string  `json:"comment,omitempty"`
}

// Positive reports whether the rating counts toward positive preference.
func (e FeedbackEntry) Positive() bool { return e.Rating >= 4 }

// Negative reports whether the rating counts toward negative preference.
func (e FeedbackEntry) Negative() bool { return e.Rating >= 1 && e.Rating <= 2 }

// PreferenceCount aggregates ratings for one mood, source or duration bucket.
type PreferenceCount struct {
	Key      string `json:"key"`
	Total    int    `json:"total"`
	Positive int    `json:"positive"`
	Negative int    `json:"negative"`
}

// PreferenceSummary is the top-N preferred moods, sources and duration
// buckets, each sorted by positive count descending.
type PreferenceSummary struct {
	Moods     []PreferenceCount `json:"moods"`
	Sources   []PreferenceCount `json:"sources"`
	Durations []PreferenceCount `json:"durations"`
}

// DurationBucket groups a duration into one-minute buckets like "9-10min".
func DurationBucket(seconds float64) string {
	if seconds <= 0 {
		return "unknown"
	}
	min := int(seconds / 60)
	return fmt.Sprintf("%d-%dmin", min, min+1)
}
