// Package contract implements the client of the election contract. It builds
// the calls that an agent signs and decodes the read-only queries.
//
// Documentation Last Review: 15.10.2026
//
package contract

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.dedis.ch/ballot/contract/evm"
	"go.dedis.ch/ballot/contract/marshal"
	"go.dedis.ch/ballot/ledger"
	"golang.org/x/xerrors"
)

// Gas is the gas schedule of the contract methods. The limit of a call is the
// base cost of the method plus the cost of each item it carries.
type Gas struct {
	Base    uint64
	PerItem uint64
}

// Limit returns the gas limit for the number of items.
func (g Gas) Limit(items int) uint64 {
	return g.Base + g.PerItem*uint64(items)
}

// GasSchedule is the gas schedule per method.
var GasSchedule = map[string]Gas{
	evm.MethodCreateElection: {Base: 500_000, PerItem: 40_000},
	evm.MethodAddVoters:      {Base: 100_000, PerItem: 40_000},
	evm.MethodAccreditVoter:  {Base: 80_000},
	evm.MethodValidateVoter:  {Base: 60_000},
	evm.MethodVoteCandidates: {Base: 100_000, PerItem: 30_000},
}

// Client builds the calls of the election contract deployed at an address.
type Client struct {
	address common.Address
	codec   evm.Codec
	reader  ledger.Reader
}

// NewClient returns a client of the contract at the address. The reader is
// used for the read-only queries.
func NewClient(address common.Address, reader ledger.Reader) Client {
	return Client{
		address: address,
		codec:   evm.MustCodec(),
		reader:  reader,
	}
}

// Address returns the address of the contract.
func (c Client) Address() common.Address {
	return c.address
}

// CreateElection returns the call creating the election with the parameters.
func (c Client) CreateElection(p marshal.Parameters) (ledger.Call, error) {
	items := len(p.Candidates()) + len(p.Voters()) + len(p.Units()) + len(p.Officers())

	return c.call(evm.MethodCreateElection, items, p.Args()...)
}

// AddVoters returns the call adding the voters to an election.
func (c Client) AddVoters(electionID *big.Int, voters []evm.VoterTuple) (ledger.Call, error) {
	return c.call(evm.MethodAddVoters, len(voters), electionID, voters)
}

// AccreditVoter returns the call accrediting a voter.
func (c Client) AccreditVoter(matricNo string, electionID *big.Int) (ledger.Call, error) {
	return c.call(evm.MethodAccreditVoter, 0, matricNo, electionID)
}

// ValidateVoter returns the call verifying that an accredited voter can vote.
func (c Client) ValidateVoter(matricNo, name string, electionID *big.Int) (ledger.Call, error) {
	return c.call(evm.MethodValidateVoter, 0, matricNo, name, electionID)
}

// VoteCandidates returns the call recording the votes of a voter.
func (c Client) VoteCandidates(matricNo, name string, candidates []evm.CandidateTuple,
	electionID *big.Int) (ledger.Call, error) {

	return c.call(evm.MethodVoteCandidates, len(candidates), matricNo, name, candidates, electionID)
}

// ElectionCount returns the number of elections created so far, which is
// also the identifier of the latest one.
func (c Client) ElectionCount(ctx context.Context) (*big.Int, error) {
	values, err := c.query(ctx, evm.MethodElectionCount)
	if err != nil {
		return nil, err
	}

	count, ok := values[0].(*big.Int)
	if !ok {
		return nil, xerrors.Errorf("invalid count of type %T", values[0])
	}

	return count, nil
}

// Summary returns the summary of an election.
func (c Client) Summary(ctx context.Context, electionID *big.Int) (evm.Summary, error) {
	out, err := c.raw(ctx, evm.MethodElectionSummary, electionID)
	if err != nil {
		return evm.Summary{}, err
	}

	summary, err := c.codec.UnpackSummary(out)
	if err != nil {
		return summary, xerrors.Errorf("failed to decode summary: %v", err)
	}

	return summary, nil
}

// IsAccredited returns true if the voter is accredited for the election.
func (c Client) IsAccredited(ctx context.Context, electionID *big.Int, matricNo string) (bool, error) {
	values, err := c.query(ctx, evm.MethodIsAccredited, electionID, matricNo)
	if err != nil {
		return false, err
	}

	accredited, ok := values[0].(bool)
	if !ok {
		return false, xerrors.Errorf("invalid accreditation of type %T", values[0])
	}

	return accredited, nil
}

// Voters returns the voter register of an election.
func (c Client) Voters(ctx context.Context, electionID *big.Int) ([]evm.VoterTuple, error) {
	values, err := c.query(ctx, evm.MethodGetVoters, electionID)
	if err != nil {
		return nil, err
	}

	return evm.Voters(values[0]), nil
}

func (c Client) call(method string, items int, args ...interface{}) (ledger.Call, error) {
	data, err := c.pack(method, args...)
	if err != nil {
		return ledger.Call{}, xerrors.Errorf("failed to build call: %v", err)
	}

	return ledger.Call{
		Method: method,
		To:     c.address,
		Data:   data,
		Gas:    GasSchedule[method].Limit(items),
	}, nil
}

// pack rejects the nil integers, which the ABI encoder does not support.
func (c Client) pack(method string, args ...interface{}) ([]byte, error) {
	for i, arg := range args {
		n, ok := arg.(*big.Int)
		if ok && n == nil {
			return nil, xerrors.Errorf("argument %d is nil", i)
		}
	}

	return c.codec.Pack(method, args...)
}

func (c Client) raw(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	data, err := c.pack(method, args...)
	if err != nil {
		return nil, xerrors.Errorf("failed to build query: %v", err)
	}

	out, err := c.reader.Query(ctx, ledger.Call{Method: method, To: c.address, Data: data})
	if err != nil {
		return nil, xerrors.Errorf("failed to query %s: %v", method, err)
	}

	return out, nil
}

func (c Client) query(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	out, err := c.raw(ctx, method, args...)
	if err != nil {
		return nil, err
	}

	values, err := c.codec.UnpackOutput(method, out)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode %s: %v", method, err)
	}

	if len(values) == 0 {
		return nil, xerrors.Errorf("did not get output from %s", method)
	}

	return values, nil
}
