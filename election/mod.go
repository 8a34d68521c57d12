// Package election defines the data model of an election draft as it is
// entered by an organizer, section after section.
//
// Every value is kept as entered (strings) so that the later stages can decide
// how strict they want to be: the schema rejects, the marshaller coerces.
package election

import (
	"strconv"
	"strings"
	"time"
	// Timezone labels must resolve on hosts without a zoneinfo database.
	_ "time/tzdata"

	"golang.org/x/xerrors"
)

// Section is the identifier of one of the independently validated slices of a
// draft.
type Section int

const (
	// SectionBasicInfo is the schedule and description of the election.
	SectionBasicInfo Section = iota
	// SectionCategories is the list of positions.
	SectionCategories
	// SectionCandidates is the list of candidates per position.
	SectionCandidates
	// SectionVoters is the register of voters.
	SectionVoters
	// SectionPolling is the list of polling officers and units.
	SectionPolling
	// SectionComplete is the final pseudo-section reached when every other
	// section is valid.
	SectionComplete
)

// Sections is the fixed order in which the sections must be filled.
var Sections = []Section{
	SectionBasicInfo,
	SectionCategories,
	SectionCandidates,
	SectionVoters,
	SectionPolling,
	SectionComplete,
}

// String returns the name of the section.
func (s Section) String() string {
	switch s {
	case SectionBasicInfo:
		return "basicInfo"
	case SectionCategories:
		return "categories"
	case SectionCandidates:
		return "candidates"
	case SectionVoters:
		return "voters"
	case SectionPolling:
		return "polling"
	case SectionComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// BasicInfo is the first section of a draft.
type BasicInfo struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Start       string `yaml:"start"`
	End         string `yaml:"end"`
	Timezone    string `yaml:"timezone"`
}

// Candidate is an entry of the candidates section.
type Candidate struct {
	Name       string `yaml:"name"`
	ExternalID string `yaml:"id"`
	Category   string `yaml:"category"`
}

// Voter is an entry of the voters section. The department is optional.
type Voter struct {
	Name       string `yaml:"name"`
	ExternalID string `yaml:"id"`
	Level      string `yaml:"level"`
	Department string `yaml:"department,omitempty"`
}

// Staff is a polling officer or a polling unit. The label is the role of an
// officer or the name of a unit.
type Staff struct {
	Address string `yaml:"address"`
	Label   string `yaml:"label"`
}

// Polling is the last section of a draft.
type Polling struct {
	Officers []Staff `yaml:"officers"`
	Units    []Staff `yaml:"units"`
}

// Draft is the working election definition built across all the sections.
type Draft struct {
	BasicInfo  BasicInfo   `yaml:"basicInfo"`
	Categories []string    `yaml:"categories"`
	Candidates []Candidate `yaml:"candidates"`
	Voters     []Voter     `yaml:"voters"`
	Polling    Polling     `yaml:"polling"`
}

// Clone returns a deep copy of the draft.
func (d Draft) Clone() Draft {
	return Draft{
		BasicInfo:  d.BasicInfo,
		Categories: append([]string(nil), d.Categories...),
		Candidates: append([]Candidate(nil), d.Candidates...),
		Voters:     append([]Voter(nil), d.Voters...),
		Polling: Polling{
			Officers: append([]Staff(nil), d.Polling.Officers...),
			Units:    append([]Staff(nil), d.Polling.Units...),
		},
	}
}

// instantLayouts are the accepted layouts of an instant, tried in order.
var instantLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseInstant parses an instant entered in a form. It accepts RFC3339, a
// local date-time interpreted in the timezone, or integer unix seconds. An
// empty timezone means UTC.
func ParseInstant(value, timezone string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, xerrors.New("empty instant")
	}

	loc, err := LoadTimezone(timezone)
	if err != nil {
		return time.Time{}, err
	}

	secs, err := strconv.ParseInt(value, 10, 64)
	if err == nil {
		if secs <= 0 {
			return time.Time{}, xerrors.Errorf("invalid unix time '%s'", value)
		}

		return time.Unix(secs, 0).In(loc), nil
	}

	for _, layout := range instantLayouts {
		t, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, xerrors.Errorf("unrecognized instant '%s'", value)
}

// LoadTimezone returns the location of the timezone label, or UTC if it is
// empty.
func LoadTimezone(timezone string) (*time.Location, error) {
	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, xerrors.Errorf("unknown timezone '%s': %v", timezone, err)
	}

	return loc, nil
}
