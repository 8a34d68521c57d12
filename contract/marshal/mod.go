// Package marshal converts an election draft into the parameters of the
// contract call that creates the election.
//
// The conversion is total: it never fails and never panics, whatever the
// draft holds. Values that cannot be converted are replaced or dropped and
// each replacement is reported as an anomaly, which the pre-submission checks
// then turn into errors when needed. For a fixed clock, the same draft always
// produces the same parameters.
//
// Documentation Last Review: 15.10.2026
//
package marshal

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"go.dedis.ch/ballot"
	"go.dedis.ch/ballot/contract/evm"
	"go.dedis.ch/ballot/election"
	"golang.org/x/xerrors"
)

const (
	// FallbackDelay is the delay between the marshalling and the start of the
	// fallback window.
	FallbackDelay = 5 * time.Minute
	// FallbackDuration is the duration of the fallback window.
	FallbackDuration = time.Hour
)

// AnomalyKind is the kind of substitution made by the marshaller.
type AnomalyKind int

const (
	// AddressDropped is reported when an address cannot be converted.
	AddressDropped AnomalyKind = iota
	// ScheduleReplaced is reported when the fallback window is used.
	ScheduleReplaced
)

func (k AnomalyKind) String() string {
	switch k {
	case AddressDropped:
		return "address dropped"
	case ScheduleReplaced:
		return "schedule replaced"
	default:
		return "unknown"
	}
}

// Anomaly is a value of the draft that has been replaced or dropped.
type Anomaly struct {
	Kind    AnomalyKind
	Field   string
	Value   string
	Message string
}

// String returns a human readable description of the anomaly.
func (a Anomaly) String() string {
	return fmt.Sprintf("%s: %s", a.Field, a.Message)
}

// Parameters are the arguments of the contract call creating the election.
// The value is immutable and the accessors return copies.
type Parameters struct {
	start          *big.Int
	end            *big.Int
	name           string
	candidates     []evm.CandidateTuple
	voters         []evm.VoterTuple
	units          []common.Address
	officers       []common.Address
	categories     []string
	unitSources    int
	officerSources int
	anomalies      []Anomaly
}

// Start returns the start of the election in unix seconds.
func (p Parameters) Start() *big.Int {
	return copyInt(p.start)
}

// End returns the end of the election in unix seconds.
func (p Parameters) End() *big.Int {
	return copyInt(p.end)
}

// Name returns the name of the election.
func (p Parameters) Name() string {
	return p.name
}

// Candidates returns the candidates in the order of the draft.
func (p Parameters) Candidates() []evm.CandidateTuple {
	return append([]evm.CandidateTuple{}, p.candidates...)
}

// Voters returns the voters in the order of the draft.
func (p Parameters) Voters() []evm.VoterTuple {
	return append([]evm.VoterTuple{}, p.voters...)
}

// Units returns the addresses of the polling units that could be converted.
func (p Parameters) Units() []common.Address {
	return append([]common.Address{}, p.units...)
}

// Officers returns the addresses of the polling officers that could be
// converted.
func (p Parameters) Officers() []common.Address {
	return append([]common.Address{}, p.officers...)
}

// Categories returns the categories in the order of the draft.
func (p Parameters) Categories() []string {
	return append([]string{}, p.categories...)
}

// UnitSources returns the number of polling units in the draft.
func (p Parameters) UnitSources() int {
	return p.unitSources
}

// OfficerSources returns the number of polling officers in the draft.
func (p Parameters) OfficerSources() int {
	return p.officerSources
}

// Anomalies returns the substitutions made during the conversion.
func (p Parameters) Anomalies() []Anomaly {
	return append([]Anomaly{}, p.anomalies...)
}

// ScheduleReplaced returns true if the fallback window has been used.
func (p Parameters) ScheduleReplaced() bool {
	for _, a := range p.anomalies {
		if a.Kind == ScheduleReplaced {
			return true
		}
	}

	return false
}

// Args returns the arguments of the createElection method in order.
func (p Parameters) Args() []interface{} {
	return []interface{}{
		p.Start(),
		p.End(),
		p.name,
		p.Candidates(),
		p.Voters(),
		p.Units(),
		p.Officers(),
		p.Categories(),
	}
}

type marshaller struct {
	now    func() time.Time
	logger zerolog.Logger
}

// Option is the type of options of the marshaller.
type Option func(*marshaller)

// WithClock sets the clock used to decide if the schedule is in the future.
func WithClock(now func() time.Time) Option {
	return func(m *marshaller) {
		m.now = now
	}
}

// WithLogger sets the logger that reports the anomalies.
func WithLogger(l zerolog.Logger) Option {
	return func(m *marshaller) {
		m.logger = l
	}
}

// Marshal converts the draft into the parameters of the contract call.
func Marshal(d election.Draft, opts ...Option) Parameters {
	m := marshaller{
		now:    time.Now,
		logger: ballot.Logger,
	}

	for _, opt := range opts {
		opt(&m)
	}

	p := Parameters{
		name:           strings.TrimSpace(d.BasicInfo.Name),
		candidates:     Candidates(d.Candidates),
		voters:         Voters(d.Voters),
		categories:     make([]string, len(d.Categories)),
		unitSources:    len(d.Polling.Units),
		officerSources: len(d.Polling.Officers),
	}

	for i, c := range d.Categories {
		p.categories[i] = strings.TrimSpace(c)
	}

	p.units = m.addresses(&p, "pollingUnitAddresses", d.Polling.Units)
	p.officers = m.addresses(&p, "pollingOfficerAddresses", d.Polling.Officers)

	m.schedule(&p, d.BasicInfo)

	return p
}

// Candidates converts the candidates into their contract representation.
func Candidates(in []election.Candidate) []evm.CandidateTuple {
	out := make([]evm.CandidateTuple, len(in))
	for i, c := range in {
		out[i] = evm.CandidateTuple{
			Name:     strings.TrimSpace(c.Name),
			MatricNo: strings.TrimSpace(c.ExternalID),
			Category: strings.TrimSpace(c.Category),
		}
	}

	return out
}

// Voters converts the voters into their contract representation. A missing
// department becomes an empty string.
func Voters(in []election.Voter) []evm.VoterTuple {
	out := make([]evm.VoterTuple, len(in))
	for i, v := range in {
		out[i] = evm.VoterTuple{
			Name:       strings.TrimSpace(v.Name),
			MatricNo:   strings.TrimSpace(v.ExternalID),
			Level:      strings.TrimSpace(v.Level),
			Department: strings.TrimSpace(v.Department),
		}
	}

	return out
}

// Address converts a hexadecimal address, with or without the 0x prefix. It
// returns false when the value is not 40 hexadecimal characters.
func Address(value string) (common.Address, bool) {
	value = strings.TrimSpace(value)

	if !common.IsHexAddress(value) {
		return common.Address{}, false
	}

	return common.HexToAddress(value), true
}

// CoerceUint converts a decimal string into a non-negative integer. Any
// value that is not a non-negative decimal integer becomes zero.
func CoerceUint(value string) *big.Int {
	n, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || n.Sign() < 0 {
		return new(big.Int)
	}

	return n
}

func (m marshaller) addresses(p *Parameters, field string, staff []election.Staff) []common.Address {
	out := make([]common.Address, 0, len(staff))

	for i, s := range staff {
		addr, ok := Address(s.Address)
		if !ok {
			p.anomalies = append(p.anomalies, Anomaly{
				Kind:    AddressDropped,
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Value:   s.Address,
				Message: fmt.Sprintf("invalid address %q dropped", strings.TrimSpace(s.Address)),
			})

			m.logger.Warn().
				Str("field", field).
				Int("index", i).
				Str("value", s.Address).
				Msg("invalid address dropped")

			continue
		}

		out = append(out, addr)
	}

	return out
}

func (m marshaller) schedule(p *Parameters, info election.BasicInfo) {
	now := m.now()

	start, errStart := instant(info.Start, info.Timezone)
	end, errEnd := instant(info.End, info.Timezone)

	var reason string

	switch {
	case errStart != nil:
		reason = fmt.Sprintf("start: %v", errStart)
	case errEnd != nil:
		reason = fmt.Sprintf("end: %v", errEnd)
	case end.Cmp(start) <= 0:
		reason = "the end is not after the start"
	case start.Cmp(big.NewInt(now.Unix())) <= 0:
		reason = "the start is not in the future"
	}

	if reason == "" {
		p.start = start
		p.end = end

		return
	}

	fallback := now.Add(FallbackDelay).Unix()

	p.start = big.NewInt(fallback)
	p.end = big.NewInt(fallback + int64(FallbackDuration/time.Second))

	p.anomalies = append(p.anomalies, Anomaly{
		Kind:    ScheduleReplaced,
		Field:   "startTime",
		Value:   info.Start + " - " + info.End,
		Message: "schedule replaced by the fallback window: " + reason,
	})

	m.logger.Warn().
		Str("reason", reason).
		Int64("start", p.start.Int64()).
		Int64("end", p.end.Int64()).
		Msg("schedule replaced by the fallback window")
}

// instant returns the unix seconds of an instant of the form. A decimal value
// is already in unix seconds and keeps its full precision.
func instant(value, timezone string) (*big.Int, error) {
	if isDecimal(value) {
		secs := CoerceUint(value)
		if secs.Sign() == 0 {
			return nil, xerrors.Errorf("invalid unix time '%s'", strings.TrimSpace(value))
		}

		return secs, nil
	}

	t, err := election.ParseInstant(value, timezone)
	if err != nil {
		return nil, err
	}

	return big.NewInt(t.Unix()), nil
}

func isDecimal(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}

	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}

	return new(big.Int).Set(v)
}
