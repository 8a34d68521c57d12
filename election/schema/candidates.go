package schema

import (
	"strings"

	"go.dedis.ch/ballot/election"
)

const (
	// MinCandidates is the minimum number of candidates of an election.
	MinCandidates = 1
	// MaxCandidates is the maximum number of candidates of an election.
	MaxCandidates = 100
	// MaxCandidatesPerCategory is the maximum number of candidates running
	// for the same position.
	MaxCandidatesPerCategory = 20
)

var (
	personNameBounds = bounds{min: 2, max: 100}
	externalIDBounds = bounds{min: 2, max: 50}
)

// CandidateValidator validates the candidates against a fixed set of
// categories. It is immutable: when the categories change, a new validator
// must be created with NewCandidateValidator.
type CandidateValidator struct {
	// canonical maps the folded category to its spelling in the set.
	canonical map[string]string
	order     []string
}

// NewCandidateValidator returns a validator bound to a copy of the given
// categories. The categories are expected to be the output of a successful
// ValidateCategories.
func NewCandidateValidator(validCategories []string) CandidateValidator {
	v := CandidateValidator{
		canonical: make(map[string]string, len(validCategories)),
		order:     make([]string, 0, len(validCategories)),
	}

	for _, name := range validCategories {
		name = strings.TrimSpace(name)

		key := fold(name)
		if key == "" {
			continue
		}

		_, found := v.canonical[key]
		if found {
			continue
		}

		v.canonical[key] = name
		v.order = append(v.order, name)
	}

	return v
}

// Categories returns the categories the validator is bound to.
func (v CandidateValidator) Categories() []string {
	return append([]string(nil), v.order...)
}

// Validate checks the candidates. The category of each candidate is rewritten
// with the spelling of the category set.
func (v CandidateValidator) Validate(in []election.Candidate) ([]election.Candidate, Errors) {
	c := newCollector(election.SectionCandidates)

	if len(in) < MinCandidates {
		c.list("at least %d candidate is required", MinCandidates)
	}

	if len(in) > MaxCandidates {
		c.list("at most %d candidates are allowed, got %d", MaxCandidates, len(in))
	}

	out := make([]election.Candidate, len(in))
	counts := make(map[string]int, len(v.order))

	for i, cand := range in {
		out[i] = election.Candidate{
			Name:       strings.TrimSpace(cand.Name),
			ExternalID: strings.TrimSpace(cand.ExternalID),
			Category:   strings.TrimSpace(cand.Category),
		}

		msg := text(out[i].Name, personNameBounds, personRe)
		if msg != "" {
			c.entry("", i, "name", "%s", msg)
		}

		msg = text(out[i].ExternalID, externalIDBounds, externalIDRe)
		if msg != "" {
			c.entry("", i, "id", "%s", msg)
		}

		if out[i].Category == "" {
			c.entry("", i, "category", "is required")
			continue
		}

		canonical, found := v.canonical[fold(out[i].Category)]
		if !found {
			c.entry("", i, "category", "unknown category %q", out[i].Category)
			continue
		}

		out[i].Category = canonical
		counts[canonical]++
	}

	for _, dup := range duplicates(len(out), func(i int) string { return out[i].ExternalID }) {
		c.entry("", dup.indices[1], "id", "duplicate id %q used by entries %s",
			dup.value, dup.entries())
	}

	for _, dup := range duplicates(len(out), func(i int) string { return out[i].Name }) {
		c.entry("", dup.indices[1], "name", "duplicate name %q used by entries %s",
			dup.value, dup.entries())
	}

	for _, category := range v.order {
		n := counts[category]

		if n == 0 {
			c.list("category %q has no candidate", category)
		}

		if n > MaxCandidatesPerCategory {
			c.list("category %q has %d candidates, at most %d are allowed",
				category, n, MaxCandidatesPerCategory)
		}
	}

	return out, c.errs
}
