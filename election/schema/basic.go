package schema

import (
	"strings"
	"time"

	"go.dedis.ch/ballot/election"
)

// MinDuration is the shortest election window accepted.
const MinDuration = time.Hour

var (
	electionNameBounds = bounds{min: 3, max: 300}
	descriptionBounds  = bounds{min: 10, max: 900}
)

// BasicInfo is the validated form of the basic information.
type BasicInfo struct {
	Name        string
	Description string
	Start       time.Time
	End         time.Time
	Location    *time.Location
}

// ValidateBasicInfo validates the first section of a draft. The instants are
// interpreted in the timezone of the section.
func ValidateBasicInfo(in election.BasicInfo) (BasicInfo, Errors) {
	c := newCollector(election.SectionBasicInfo)

	out := BasicInfo{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
	}

	msg := text(out.Name, electionNameBounds, electionNameRe)
	if msg != "" {
		c.field("name", "%s", msg)
	}

	msg = text(out.Description, descriptionBounds, nil)
	if msg == "" && !printable(out.Description) {
		msg = "contains characters that are not allowed"
	}
	if msg != "" {
		c.field("description", "%s", msg)
	}

	loc, err := election.LoadTimezone(in.Timezone)
	if err != nil {
		c.field("timezone", "unknown timezone %q", strings.TrimSpace(in.Timezone))

		return out, c.errs
	}

	out.Location = loc

	start, err := election.ParseInstant(in.Start, in.Timezone)
	if err != nil {
		c.field("start", "invalid instant: %v", err)
	}

	end, errEnd := election.ParseInstant(in.End, in.Timezone)
	if errEnd != nil {
		c.field("end", "invalid instant: %v", errEnd)
	}

	if err != nil || errEnd != nil {
		return out, c.errs
	}

	out.Start = start
	out.End = end

	if !end.After(start) {
		c.field("end", "must be after the start")
	} else if end.Sub(start) < MinDuration {
		c.field("end", "the election must last at least %v", MinDuration)
	}

	return out, c.errs
}
