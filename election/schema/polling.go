package schema

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.dedis.ch/ballot/election"
)

const (
	// ListOfficers is the name of the polling officers list in the errors.
	ListOfficers = "officers"
	// ListUnits is the name of the polling units list in the errors.
	ListUnits = "units"
)

// staffRules are the bounds of one of the polling lists.
type staffRules struct {
	name     string
	min, max int
}

var (
	officerRules = staffRules{name: ListOfficers, min: 1, max: 200}
	unitRules    = staffRules{name: ListUnits, min: 1, max: 500}

	labelBounds = bounds{min: 2, max: 100}
)

// IsAddress returns true if the value is a 40 hexadecimal characters address,
// with or without the 0x prefix.
func IsAddress(value string) bool {
	return common.IsHexAddress(strings.TrimSpace(value))
}

// ValidatePolling validates the polling officers and the polling units.
func ValidatePolling(in election.Polling) (election.Polling, Errors) {
	c := newCollector(election.SectionPolling)

	out := election.Polling{
		Officers: validateStaff(c, officerRules, in.Officers),
		Units:    validateStaff(c, unitRules, in.Units),
	}

	return out, c.errs
}

func validateStaff(c *collector, rules staffRules, in []election.Staff) []election.Staff {
	if len(in) < rules.min {
		c.entry(rules.name, -1, "", "at least %d entry is required", rules.min)
	}

	if len(in) > rules.max {
		c.entry(rules.name, -1, "", "at most %d entries are allowed, got %d", rules.max, len(in))
	}

	out := make([]election.Staff, len(in))

	for i, staff := range in {
		out[i] = election.Staff{
			Address: strings.TrimSpace(staff.Address),
			Label:   strings.TrimSpace(staff.Label),
		}

		if !IsAddress(out[i].Address) {
			c.entry(rules.name, i, "address", "invalid address %q", out[i].Address)
		}

		msg := text(out[i].Label, labelBounds, labelRe)
		if msg != "" {
			c.entry(rules.name, i, "label", "%s", msg)
		}
	}

	addrKey := func(i int) string {
		if !IsAddress(out[i].Address) {
			return ""
		}

		return common.HexToAddress(out[i].Address).Hex()
	}

	for _, dup := range duplicates(len(out), addrKey) {
		c.entry(rules.name, dup.indices[1], "address", "duplicate address used by entries %s",
			dup.entries())
	}

	return out
}
