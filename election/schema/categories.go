package schema

import (
	"strings"

	"go.dedis.ch/ballot/election"
)

const (
	// MinCategories is the minimum number of positions of an election.
	MinCategories = 1
	// MaxCategories is the maximum number of positions of an election.
	MaxCategories = 100
)

var categoryBounds = bounds{min: 2, max: 400}

// ValidateCategories validates the list of positions. The names are trimmed
// and must be unique regardless of the case.
func ValidateCategories(in []string) ([]string, Errors) {
	c := newCollector(election.SectionCategories)

	if len(in) < MinCategories {
		c.list("at least %d category is required", MinCategories)
	}

	if len(in) > MaxCategories {
		c.list("at most %d categories are allowed, got %d", MaxCategories, len(in))
	}

	out := make([]string, len(in))

	for i, name := range in {
		out[i] = strings.TrimSpace(name)

		msg := text(out[i], categoryBounds, categoryRe)
		if msg != "" {
			c.entry("", i, "name", "%s", msg)
		}
	}

	for _, dup := range duplicates(len(out), func(i int) string { return out[i] }) {
		c.entry("", dup.indices[1], "name", "duplicate category %q used by entries %s",
			dup.value, dup.entries())
	}

	return out, c.errs
}
