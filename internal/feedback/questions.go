package feedback

import (
	"context"
	"fmt"
	"math"
	"time"
)

// baseQuestions are asked after every session.
var baseQuestions = []string{
	"How would you rate today's meditation from 1-5?",
	"Did this meditation help with your mood?",
	"Would you like more meditations like this one?",
	"What would make your meditation experience better?",
}

// Questions returns the feedback questions for a session, adding a
// duration question when the served artifact's length is known.
func Questions(durationSeconds float64) []string {
	questions := append([]string(nil), baseQuestions...)
	if durationSeconds > 0 {
		minutes := int(math.Round(durationSeconds / 60))
		questions = append(questions,
			fmt.Sprintf("Was %d minutes a good length for your meditation?", minutes))
	}
	return questions
}

// minFormInterval is how long after a rating the form stays hidden.
const minFormInterval = 24 * time.Hour

// ShouldShowForm reports whether the feedback form should be shown: always
// for users who never rated, otherwise at most once a day.
func ShouldShowForm(ctx context.Context, store Store, userID string) bool {
	last, err := store.LastFeedbackAt(ctx, userID)
	if err != nil || last.IsZero() {
		return true
	}
	return time.Since(last) >= minFormInterval
}
