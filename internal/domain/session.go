package domain

import "time"

// Session records one served meditation: the reference that was handed
// out and the query that produced it.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Mood      string    `json:"mood"`
	Language  string    `json:"language"`
	Reference string    `json:"reference"`
	Title     string    `json:"title,omitempty"`
	SourceID  string    `json:"source_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
