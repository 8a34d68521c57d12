// Package presubmit implements the last verification of the contract
// parameters before a transaction is spent.
//
// The marshaller is lenient and never fails, so these checks are strict and
// exhaustive: every violation is returned instead of stopping at the first
// one.
package presubmit

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.dedis.ch/ballot/contract/evm"
	"go.dedis.ch/ballot/contract/marshal"
	"golang.org/x/xerrors"
)

// Mode selects the rules that depend on the flow.
type Mode int

const (
	// ModeCreate is the creation of an election, where the voter register
	// may be empty.
	ModeCreate Mode = iota
	// ModeAddVoters requires at least one voter.
	ModeAddVoters
)

// Violation is a parameter that would make the call invalid.
type Violation struct {
	Field   string
	Message string
}

// Error implements error.
func (v Violation) Error() string {
	return v.Field + ": " + v.Message
}

// Violations is the list of every violation found.
type Violations []Violation

// Valid returns true if there is no violation.
func (vs Violations) Valid() bool {
	return len(vs) == 0
}

// Error implements error.
func (vs Violations) Error() string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.Error()
	}

	return strings.Join(parts, "; ")
}

// Err returns nil if there is no violation, otherwise the list as an error.
func (vs Violations) Err() error {
	if vs.Valid() {
		return nil
	}

	return xerrors.Errorf("invalid parameters: %v", vs.Error())
}

type checker struct {
	vs Violations
}

func (c *checker) add(field, format string, args ...interface{}) {
	c.vs = append(c.vs, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Check verifies the parameters of the election creation.
func Check(p marshal.Parameters, mode Mode) Violations {
	c := &checker{}

	if strings.TrimSpace(p.Name()) == "" {
		c.add("electionName", "must not be empty")
	}

	start, end := p.Start(), p.End()

	if start.Sign() <= 0 {
		c.add("startTime", "must be positive")
	}

	if end.Sign() <= 0 {
		c.add("endTime", "must be positive")
	}

	if start.Cmp(end) >= 0 {
		c.add("endTime", "must be after the start time")
	}

	categories := p.Categories()
	if len(categories) == 0 {
		c.add("categories", "at least one category is required")
	}

	known := make(map[string]struct{}, len(categories))
	for i, category := range categories {
		if strings.TrimSpace(category) == "" {
			c.add(fmt.Sprintf("categories[%d]", i), "must not be empty")
		}

		known[category] = struct{}{}
	}

	candidates := p.Candidates()
	if len(candidates) == 0 {
		c.add("candidatesList", "at least one candidate is required")
	}

	for i, cand := range candidates {
		c.candidate(i, cand, known)
	}

	c.voters(p.Voters(), mode == ModeAddVoters)

	c.addresses("pollingUnitAddresses", p.Units(), p.UnitSources())
	c.addresses("pollingOfficerAddresses", p.Officers(), p.OfficerSources())

	return c.vs
}

// CheckVoters verifies the parameters of a call adding voters to an existing
// election.
func CheckVoters(electionID *big.Int, voters []evm.VoterTuple) Violations {
	c := &checker{}

	if electionID == nil || electionID.Sign() <= 0 {
		c.add("electionId", "must be positive")
	}

	c.voters(voters, true)

	return c.vs
}

func (c *checker) candidate(i int, cand evm.CandidateTuple, known map[string]struct{}) {
	field := fmt.Sprintf("candidatesList[%d]", i)

	if cand.Name == "" {
		c.add(field+".name", "must not be empty")
	}

	if cand.MatricNo == "" {
		c.add(field+".matricNo", "must not be empty")
	}

	if cand.Category == "" {
		c.add(field+".category", "must not be empty")
		return
	}

	_, found := known[cand.Category]
	if !found {
		c.add(field+".category", "unknown category %q", cand.Category)
	}
}

func (c *checker) voters(voters []evm.VoterTuple, required bool) {
	if required && len(voters) == 0 {
		c.add("votersList", "at least one voter is required")
	}

	for i, v := range voters {
		field := fmt.Sprintf("votersList[%d]", i)

		if v.Name == "" {
			c.add(field+".name", "must not be empty")
		}

		if v.MatricNo == "" {
			c.add(field+".matricNo", "must not be empty")
		}

		if v.Level == "" {
			c.add(field+".level", "must not be empty")
		}
	}
}

func (c *checker) addresses(field string, addrs []common.Address, sources int) {
	if sources == 0 && len(addrs) == 0 {
		c.add(field, "at least one address is required")
	}

	if len(addrs) != sources {
		c.add(field, "invalid address: %d of %d entries could not be converted",
			sources-len(addrs), sources)
	}

	for i, addr := range addrs {
		if addr == (common.Address{}) {
			c.add(fmt.Sprintf("%s[%d]", field, i), "invalid address: zero address")
		}
	}
}
