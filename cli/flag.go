package cli

import (
	"math/big"
	"strings"

	"golang.org/x/xerrors"
)

const (
	// ElectionFlagName is the name of the flag of an election identifier.
	ElectionFlagName = "election"
	// VoterFlagName is the name of the flag of a voter identifier.
	VoterFlagName = "id"
)

// StringFlag is the definition of a flag parsed as a string. The value can
// also come from the first environment variable that is set.
//
// - implements cli.Flag
type StringFlag struct {
	Name     string
	Aliases  []string
	Usage    string
	EnvVars  []string
	Required bool
	Value    string
}

// Flag implements cli.Flag.
func (flag StringFlag) Flag() {}

// PathFlag is the definition of a flag naming a file, like the configuration
// or a YAML document.
//
// - implements cli.Flag
type PathFlag struct {
	Name     string
	Aliases  []string
	Usage    string
	EnvVars  []string
	Required bool
	Value    string
}

// Flag implements cli.Flag.
func (flag PathFlag) Flag() {}

// StringSliceFlag is the definition of a flag that can be repeated.
//
// - implements cli.Flag
type StringSliceFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    []string
}

// Flag implements cli.Flag.
func (flag StringSliceFlag) Flag() {}

// BoolFlag is the definition of a switch.
//
// - implements cli.Flag
type BoolFlag struct {
	Name    string
	Aliases []string
	Usage   string
	EnvVars []string
	Value   bool
}

// Flag implements cli.Flag.
func (flag BoolFlag) Flag() {}

// CheckedFlag is a flag whose value is checked before the action of its
// command runs.
type CheckedFlag interface {
	Flag

	Check(flags Flags) error
}

// ElectionFlag is the required flag of the identifier of an election.
//
// - implements cli.CheckedFlag
type ElectionFlag struct {
	Usage string
}

// Flag implements cli.Flag.
func (flag ElectionFlag) Flag() {}

// Check implements cli.CheckedFlag. The identifier must be a positive decimal
// integer.
func (flag ElectionFlag) Check(flags Flags) error {
	_, err := ElectionID(flags)
	return err
}

// VoterFlag is the flag of the identifier of a voter, as written in the
// register. A repeated flag accepts several voters.
//
// - implements cli.CheckedFlag
type VoterFlag struct {
	Usage    string
	Repeated bool
	Required bool
}

// Flag implements cli.Flag.
func (flag VoterFlag) Flag() {}

// Check implements cli.CheckedFlag. A given identifier must not be blank.
func (flag VoterFlag) Check(flags Flags) error {
	ids := flags.StringSlice(VoterFlagName)
	if !flag.Repeated {
		ids = nil

		if flags.IsSet(VoterFlagName) {
			ids = []string{flags.String(VoterFlagName)}
		}
	}

	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return xerrors.New("voter identifier must not be blank")
		}
	}

	return nil
}

// ElectionID returns the identifier of the election flag.
func ElectionID(flags Flags) (*big.Int, error) {
	value := strings.TrimSpace(flags.String(ElectionFlagName))

	id, ok := new(big.Int).SetString(value, 10)
	if !ok || id.Sign() <= 0 {
		return nil, xerrors.Errorf("invalid election identifier '%s'", value)
	}

	return id, nil
}
