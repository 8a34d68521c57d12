package schema

import (
	"strings"

	"go.dedis.ch/ballot/election"
)

// MaxVoters is the maximum size of the voter register.
const MaxVoters = 10000

var (
	levelBounds      = bounds{min: 1, max: 50}
	departmentBounds = bounds{min: 0, max: 100}
)

// ValidateVoters validates the voter register of a new election, which may be
// empty as voters can be added later.
func ValidateVoters(in []election.Voter) ([]election.Voter, Errors) {
	c := newCollector(election.SectionVoters)

	out := validateVoters(c, in)

	return out, c.errs
}

// ValidateVotersStrict validates a list of voters to add to an existing
// election. The list must not be empty.
func ValidateVotersStrict(in []election.Voter) ([]election.Voter, Errors) {
	c := newCollector(election.SectionVoters)

	if len(in) == 0 {
		c.list("at least one voter is required")
	}

	out := validateVoters(c, in)

	return out, c.errs
}

func validateVoters(c *collector, in []election.Voter) []election.Voter {
	if len(in) > MaxVoters {
		c.list("at most %d voters are allowed, got %d", MaxVoters, len(in))
	}

	out := make([]election.Voter, len(in))

	for i, voter := range in {
		out[i] = election.Voter{
			Name:       strings.TrimSpace(voter.Name),
			ExternalID: strings.TrimSpace(voter.ExternalID),
			Level:      strings.TrimSpace(voter.Level),
			Department: strings.TrimSpace(voter.Department),
		}

		msg := text(out[i].Name, personNameBounds, personRe)
		if msg != "" {
			c.entry("", i, "name", "%s", msg)
		}

		msg = text(out[i].ExternalID, externalIDBounds, externalIDRe)
		if msg != "" {
			c.entry("", i, "id", "%s", msg)
		}

		msg = text(out[i].Level, levelBounds, levelRe)
		if msg != "" {
			c.entry("", i, "level", "%s", msg)
		}

		if out[i].Department != "" {
			msg = text(out[i].Department, departmentBounds, labelRe)
			if msg != "" {
				c.entry("", i, "department", "%s", msg)
			}
		}
	}

	for _, dup := range duplicates(len(out), func(i int) string { return out[i].ExternalID }) {
		c.entry("", dup.indices[1], "id", "duplicate id %q used by entries %s",
			dup.value, dup.entries())
	}

	return out
}
