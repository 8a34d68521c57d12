// Package draft implements the aggregator that owns the election draft while
// it is being assembled.
//
// The aggregator is the single writer of the draft. Each section is replaced
// atomically by its update operation, after which every section is validated
// again so that a change upstream immediately invalidates the sections that
// depend on it. The gate controller is refreshed with the outcome.
//
// Documentation Last Review: 15.10.2026
//
package draft

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.dedis.ch/ballot"
	"go.dedis.ch/ballot/election"
	"go.dedis.ch/ballot/election/gate"
	"go.dedis.ch/ballot/election/schema"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// OrphanPolicy defines what happens to the candidates of a category that
// disappears from the categories section.
type OrphanPolicy int

const (
	// FlagOrphans keeps the candidates, which are then reported as invalid.
	FlagOrphans OrphanPolicy = iota
	// PruneOrphans removes the candidates.
	PruneOrphans
)

// Status is the validity of a section.
type Status struct {
	Section election.Section
	Valid   bool
	Errors  schema.Errors
}

// Aggregator holds the draft and the status of each section.
type Aggregator struct {
	sync.Mutex

	logger   zerolog.Logger
	policy   OrphanPolicy
	draft    election.Draft
	statuses map[election.Section]Status
	gate     *gate.Controller
}

// Option is the type of the options to create an aggregator.
type Option func(*Aggregator)

// WithOrphanPolicy sets the policy applied when categories change.
func WithOrphanPolicy(p OrphanPolicy) Option {
	return func(a *Aggregator) {
		a.policy = p
	}
}

// WithLogger sets the logger of the aggregator.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = l
	}
}

// NewAggregator returns an aggregator with an empty draft.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		logger: ballot.Logger.With().Str("component", "draft").Logger(),
		policy: FlagOrphans,
		gate:   gate.NewController(),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.Lock()
	a.refresh()
	a.Unlock()

	return a
}

// UpdateBasicInfo replaces the basic information.
func (a *Aggregator) UpdateBasicInfo(in election.BasicInfo) Status {
	return a.update(election.SectionBasicInfo, func(d *election.Draft) {
		d.BasicInfo = in
	})
}

// UpdateCategories replaces the categories and applies the orphan policy to
// the candidates.
func (a *Aggregator) UpdateCategories(in []string) Status {
	return a.update(election.SectionCategories, func(d *election.Draft) {
		d.Categories = append([]string(nil), in...)

		if a.policy == PruneOrphans {
			d.Candidates = a.prune(d.Candidates, d.Categories)
		}
	})
}

// UpdateCandidates replaces the candidates.
func (a *Aggregator) UpdateCandidates(in []election.Candidate) Status {
	return a.update(election.SectionCandidates, func(d *election.Draft) {
		d.Candidates = append([]election.Candidate(nil), in...)
	})
}

// UpdateVoters replaces the voters.
func (a *Aggregator) UpdateVoters(in []election.Voter) Status {
	return a.update(election.SectionVoters, func(d *election.Draft) {
		d.Voters = append([]election.Voter(nil), in...)
	})
}

// UpdatePolling replaces the polling officers and units.
func (a *Aggregator) UpdatePolling(in election.Polling) Status {
	return a.update(election.SectionPolling, func(d *election.Draft) {
		d.Polling = election.Polling{
			Officers: append([]election.Staff(nil), in.Officers...),
			Units:    append([]election.Staff(nil), in.Units...),
		}
	})
}

// Load fills every section with the draft, in the order a user would.
func (a *Aggregator) Load(d election.Draft) map[election.Section]Status {
	a.UpdateBasicInfo(d.BasicInfo)
	a.UpdateCategories(d.Categories)
	a.UpdateCandidates(d.Candidates)
	a.UpdateVoters(d.Voters)
	a.UpdatePolling(d.Polling)

	return a.Statuses()
}

// Status returns the current status of the section.
func (a *Aggregator) Status(section election.Section) Status {
	a.Lock()
	defer a.Unlock()

	return a.statuses[section]
}

// Statuses returns the current status of every section.
func (a *Aggregator) Statuses() map[election.Section]Status {
	a.Lock()
	defer a.Unlock()

	res := make(map[election.Section]Status, len(a.statuses))
	for k, v := range a.statuses {
		res[k] = v
	}

	return res
}

// Gate returns the gate controller refreshed by the aggregator.
func (a *Aggregator) Gate() *gate.Controller {
	return a.gate
}

// Draft returns a copy of the current draft.
func (a *Aggregator) Draft() election.Draft {
	a.Lock()
	defer a.Unlock()

	return a.draft.Clone()
}

// Materialize validates the whole draft again, independently of the statuses
// computed incrementally, and returns the normalized draft if everything is
// valid, including the references between the sections.
func (a *Aggregator) Materialize() (election.Draft, schema.Errors) {
	a.Lock()
	current := a.draft.Clone()
	a.Unlock()

	normalized, perSection := Validate(current)

	var errs schema.Errors
	for _, sec := range election.Sections {
		errs = append(errs, perSection[sec]...)
	}

	if len(errs) == 0 {
		errs = append(errs, References(normalized)...)
	}

	if len(errs) > 0 {
		a.logger.Debug().Int("errors", len(errs)).Msg("draft not materialized")
		return election.Draft{}, errs
	}

	return normalized, nil
}

func (a *Aggregator) update(section election.Section, apply func(*election.Draft)) Status {
	a.Lock()
	defer a.Unlock()

	next := a.draft.Clone()
	apply(&next)
	a.draft = next

	a.refresh()

	status := a.statuses[section]

	a.logger.Debug().
		Stringer("section", section).
		Bool("valid", status.Valid).
		Int("errors", len(status.Errors)).
		Msg("section updated")

	return status
}

// refresh validates every section and updates the gate. The lock must be held
// by the caller.
func (a *Aggregator) refresh() {
	_, perSection := Validate(a.draft)

	statuses := make(map[election.Section]Status, len(election.Sections))
	valid := make(map[election.Section]bool, len(election.Sections))

	for _, sec := range election.Sections {
		if sec == election.SectionComplete {
			continue
		}

		errs := perSection[sec]

		statuses[sec] = Status{
			Section: sec,
			Valid:   len(errs) == 0,
			Errors:  errs,
		}

		valid[sec] = len(errs) == 0
	}

	snap := a.gate.Update(valid)

	statuses[election.SectionComplete] = Status{
		Section: election.SectionComplete,
		Valid:   snap.Get(election.SectionComplete).Valid,
	}

	a.statuses = statuses
}

func (a *Aggregator) prune(cands []election.Candidate, categories []string) []election.Candidate {
	known := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		known[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}

	kept := make([]election.Candidate, 0, len(cands))
	for _, c := range cands {
		_, found := known[strings.ToLower(strings.TrimSpace(c.Category))]
		if found {
			kept = append(kept, c)
		}
	}

	if len(kept) < len(cands) {
		a.logger.Warn().
			Int("pruned", len(cands)-len(kept)).
			Msg("candidates of removed categories pruned")
	}

	return kept
}

// LoadYAML reads a draft from a YAML document. Unknown keys are rejected.
func LoadYAML(data []byte) (election.Draft, error) {
	var d election.Draft

	err := yaml.UnmarshalStrict(data, &d)
	if err != nil {
		return d, xerrors.Errorf("failed to decode draft: %v", err)
	}

	return d, nil
}
