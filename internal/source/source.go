// Package source defines the content-source contract and its
// implementations: curated static lists, the archive.org search API,
// scraped search pages and an OpenAI lookup.
package source

import (
	"context"
	"errors"

	"github.com/calmstack/mantra/internal/domain"
)

// ErrNotFound is returned when a source has no qualifying result for a
// query. It is the only error a Client is expected to return: transport and
// parse failures are logged inside the implementation and mapped to it, so
// a failing source can never abort a retrieval run.
var ErrNotFound = errors.New("no qualifying candidate found")

// Client is a single acquisition strategy. Find returns a candidate whose
// reference is not in excluded, or ErrNotFound.
type Client interface {
	ID() string
	Find(ctx context.Context, query domain.MoodQuery, excluded Excluded) (*domain.Candidate, error)
}

// Excluded is the set of references known to be unsuitable for the current
// retrieval run.
type Excluded map[string]struct{}

// NewExcluded builds an exclusion set from the given references.
func NewExcluded(refs ...string) Excluded {
	e := make(Excluded, len(refs))
	for _, r := range refs {
		e.Add(r)
	}
	return e
}

func (e Excluded) Has(ref string) bool {
	_, ok := e[ref]
	return ok
}

func (e Excluded) Add(ref string) {
	if ref != "" {
		e[ref] = struct{}{}
	}
}

// Values returns the excluded references in unspecified order.
func (e Excluded) Values() []string {
	out := make([]string, 0, len(e))
	for ref := range e {
		out = append(out, ref)
	}
	return out
}
