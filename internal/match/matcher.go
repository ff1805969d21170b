package match

import (
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/catalog"
	"github.com/starford/ansuz/internal/models"
)

// Match tier scores and the fuzzy qualification threshold. The tier pass
// always outranks fuzzy hits; 0.6 was tuned against the bag heuristic in
// Score.
const (
	MinQueryLen    = 2
	scoreQueryIn   = 1.0
	scoreTitleIn   = 0.9
	fuzzyThreshold = 0.6
)

// Candidate is one ranked match produced by the matcher. Candidates are
// transient; they are never persisted.
type Candidate struct {
	Title  string        `json:"title"`
	Record models.Record `json:"record"`
	Score  float64       `json:"score"`
}

// Source supplies the catalog snapshot the matcher ranks against,
// in insertion order.
type Source interface {
	All() []catalog.Entry
}

// Matcher ranks catalog entries against queries.
type Matcher struct {
	src Source
}

// New creates a matcher over the given catalog source.
func New(src Source) *Matcher {
	return &Matcher{src: src}
}

// Match returns the full ranked candidate list for a query, empty if
// nothing qualifies. Truncation for presentation is the caller's concern.
//
// Two passes: the tier pass emits 1.0 when the query is a substring of a
// title and 0.9 when a title is a substring of the query (checked
// independently per title); the fuzzy fallback runs only when the tier pass
// produced nothing and keeps entries scoring above the threshold. The final
// sort is descending by score and stable, so equal scores keep catalog
// insertion order.
func (m *Matcher) Match(query string) []Candidate {
	q := catalog.Normalize(query)
	if len([]rune(q)) < MinQueryLen {
		return nil
	}

	entries := m.src.All()

	var out []Candidate
	for _, e := range entries {
		if strings.Contains(e.Title, q) {
			out = append(out, Candidate{Title: e.Title, Record: e.Record, Score: scoreQueryIn})
		} else if strings.Contains(q, e.Title) {
			out = append(out, Candidate{Title: e.Title, Record: e.Record, Score: scoreTitleIn})
		}
	}

	if len(out) == 0 {
		for _, e := range entries {
			if s := Score(q, e.Title); s > fuzzyThreshold {
				out = append(out, Candidate{Title: e.Title, Record: e.Record, Score: s})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
