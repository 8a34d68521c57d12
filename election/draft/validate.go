package draft

import (
	"fmt"
	"strings"
	"time"

	"go.dedis.ch/ballot/election"
	"go.dedis.ch/ballot/election/schema"
)

// Validate runs every validator in the order of the sections and returns the
// normalized draft with the errors of each section. The candidates are
// validated against the categories only when those are valid.
func Validate(d election.Draft) (election.Draft, map[election.Section]schema.Errors) {
	perSection := make(map[election.Section]schema.Errors, len(election.Sections))
	out := election.Draft{}

	basic, errs := schema.ValidateBasicInfo(d.BasicInfo)
	perSection[election.SectionBasicInfo] = errs

	out.BasicInfo = election.BasicInfo{
		Name:        basic.Name,
		Description: basic.Description,
		Start:       strings.TrimSpace(d.BasicInfo.Start),
		End:         strings.TrimSpace(d.BasicInfo.End),
		Timezone:    strings.TrimSpace(d.BasicInfo.Timezone),
	}

	if errs.Valid() {
		out.BasicInfo.Start = basic.Start.In(basic.Location).Format(time.RFC3339)
		out.BasicInfo.End = basic.End.In(basic.Location).Format(time.RFC3339)
	}

	categories, errs := schema.ValidateCategories(d.Categories)
	perSection[election.SectionCategories] = errs
	out.Categories = categories

	if errs.Valid() {
		candidates, errs := schema.NewCandidateValidator(categories).Validate(d.Candidates)
		perSection[election.SectionCandidates] = errs
		out.Candidates = candidates
	} else {
		perSection[election.SectionCandidates] = schema.Errors{{
			Section: election.SectionCandidates,
			Index:   -1,
			Message: "the categories must be valid first",
		}}
		out.Candidates = append([]election.Candidate(nil), d.Candidates...)
	}

	voters, errs := schema.ValidateVoters(d.Voters)
	perSection[election.SectionVoters] = errs
	out.Voters = voters

	polling, errs := schema.ValidatePolling(d.Polling)
	perSection[election.SectionPolling] = errs
	out.Polling = polling

	for sec, errs := range perSection {
		if len(errs) == 0 {
			perSection[sec] = nil
		}
	}

	return out, perSection
}

// References checks the constraints that span several sections of a
// normalized draft: every candidate runs for a known category and every
// category has at least one candidate.
func References(d election.Draft) schema.Errors {
	var errs schema.Errors

	known := make(map[string]bool, len(d.Categories))
	for _, c := range d.Categories {
		known[c] = false
	}

	for i, cand := range d.Candidates {
		_, found := known[cand.Category]
		if !found {
			errs = append(errs, schema.Error{
				Section: election.SectionCandidates,
				Index:   i,
				Field:   "category",
				Message: fmt.Sprintf("category %q is not part of the election", cand.Category),
			})

			continue
		}

		known[cand.Category] = true
	}

	for _, c := range d.Categories {
		if !known[c] {
			errs = append(errs, schema.Error{
				Section: election.SectionCandidates,
				Index:   -1,
				Message: fmt.Sprintf("category %q has no candidate", c),
			})
		}
	}

	return errs
}
