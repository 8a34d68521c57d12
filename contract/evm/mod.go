// Package evm defines the binary interface of the election contract and the
// codec to encode and decode its calls with the Ethereum ABI.
//
// Documentation Last Review: 15.10.2026
//
package evm

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/xerrors"
)

// The methods of the election contract.
const (
	MethodCreateElection  = "createElection"
	MethodAddVoters       = "addVoters"
	MethodAccreditVoter   = "accreditVoter"
	MethodValidateVoter   = "validateVoterForVoting"
	MethodVoteCandidates  = "voteCandidates"
	MethodElectionCount   = "electionCount"
	MethodElectionSummary = "getElectionSummary"
	MethodIsAccredited    = "isAccredited"
	MethodGetVoters       = "getVoters"
)

const candidateTuple = `{"type":"tuple[]","components":[` +
	`{"name":"name","type":"string"},` +
	`{"name":"matricNo","type":"string"},` +
	`{"name":"category","type":"string"}]}`

const voterTuple = `{"type":"tuple[]","components":[` +
	`{"name":"name","type":"string"},` +
	`{"name":"matricNo","type":"string"},` +
	`{"name":"level","type":"string"},` +
	`{"name":"department","type":"string"}]}`

// ElectionABI is the JSON description of the contract interface.
var ElectionABI = `[
{"type":"function","name":"createElection","stateMutability":"nonpayable","inputs":[
	{"name":"startTime","type":"uint256"},
	{"name":"endTime","type":"uint256"},
	{"name":"electionName","type":"string"},
	` + named("candidatesList", candidateTuple) + `,
	` + named("votersList", voterTuple) + `,
	{"name":"pollingUnitAddresses","type":"address[]"},
	{"name":"pollingOfficerAddresses","type":"address[]"},
	{"name":"categories","type":"string[]"}],"outputs":[]},
{"type":"function","name":"addVoters","stateMutability":"nonpayable","inputs":[
	{"name":"electionId","type":"uint256"},
	` + named("votersList", voterTuple) + `],"outputs":[]},
{"type":"function","name":"accreditVoter","stateMutability":"nonpayable","inputs":[
	{"name":"matricNo","type":"string"},
	{"name":"electionId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"validateVoterForVoting","stateMutability":"nonpayable","inputs":[
	{"name":"matricNo","type":"string"},
	{"name":"name","type":"string"},
	{"name":"electionId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"voteCandidates","stateMutability":"nonpayable","inputs":[
	{"name":"matricNo","type":"string"},
	{"name":"name","type":"string"},
	` + named("candidatesList", candidateTuple) + `,
	{"name":"electionId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"electionCount","stateMutability":"view","inputs":[],"outputs":[
	{"name":"count","type":"uint256"}]},
{"type":"function","name":"getElectionSummary","stateMutability":"view","inputs":[
	{"name":"electionId","type":"uint256"}],"outputs":[
	{"name":"electionName","type":"string"},
	{"name":"startTime","type":"uint256"},
	{"name":"endTime","type":"uint256"},
	{"name":"candidatesCount","type":"uint256"},
	{"name":"votersCount","type":"uint256"},
	{"name":"accreditedCount","type":"uint256"},
	{"name":"votesCount","type":"uint256"}]},
{"type":"function","name":"isAccredited","stateMutability":"view","inputs":[
	{"name":"electionId","type":"uint256"},
	{"name":"matricNo","type":"string"}],"outputs":[
	{"name":"accredited","type":"bool"}]},
{"type":"function","name":"getVoters","stateMutability":"view","inputs":[
	{"name":"electionId","type":"uint256"}],"outputs":[
	` + named("voters", voterTuple) + `]}
]`

func named(name, tuple string) string {
	return `{"name":"` + name + `",` + strings.TrimPrefix(tuple, "{")
}

// CandidateTuple is the contract representation of a candidate.
type CandidateTuple struct {
	Name     string `abi:"name"`
	MatricNo string `abi:"matricNo"`
	Category string `abi:"category"`
}

// VoterTuple is the contract representation of a voter.
type VoterTuple struct {
	Name       string `abi:"name"`
	MatricNo   string `abi:"matricNo"`
	Level      string `abi:"level"`
	Department string `abi:"department"`
}

// Summary is the output of the summary view of an election.
type Summary struct {
	ElectionName    string
	StartTime       *big.Int
	EndTime         *big.Int
	CandidatesCount *big.Int
	VotersCount     *big.Int
	AccreditedCount *big.Int
	VotesCount      *big.Int
}

// Codec encodes and decodes the calls of the election contract.
type Codec struct {
	abi abi.ABI
}

// NewCodec parses the interface of the contract and returns a codec.
func NewCodec() (Codec, error) {
	contractAbi, err := abi.JSON(strings.NewReader(ElectionABI))
	if err != nil {
		return Codec{}, xerrors.Errorf("failed to parse election contract abi: %v", err)
	}

	return Codec{abi: contractAbi}, nil
}

// MustCodec returns a codec and panics if the interface cannot be parsed,
// which only happens if the constant is broken.
func MustCodec() Codec {
	codec, err := NewCodec()
	if err != nil {
		panic(err)
	}

	return codec
}

// Pack returns the call data of the method with the arguments.
func (c Codec) Pack(method string, args ...interface{}) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, xerrors.Errorf("failed to pack method `%s`: %v", method, err)
	}

	return data, nil
}

// Decode returns the name of the method and the arguments of the call data.
func (c Codec) Decode(data []byte) (string, []interface{}, error) {
	if len(data) < 4 {
		return "", nil, xerrors.Errorf("call data too short: %d bytes", len(data))
	}

	method, err := c.abi.MethodById(data[:4])
	if err != nil {
		return "", nil, xerrors.Errorf("failed to find method: %v", err)
	}

	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return "", nil, xerrors.Errorf("failed to unpack method `%s`: %v", method.Name, err)
	}

	return method.Name, args, nil
}

// PackOutput returns the encoded return values of the method.
func (c Codec) PackOutput(method string, values ...interface{}) ([]byte, error) {
	m, ok := c.abi.Methods[method]
	if !ok {
		return nil, xerrors.Errorf("method `%s` does not exist for this contract", method)
	}

	data, err := m.Outputs.Pack(values...)
	if err != nil {
		return nil, xerrors.Errorf("failed to pack output of `%s`: %v", method, err)
	}

	return data, nil
}

// UnpackOutput returns the decoded return values of the method.
func (c Codec) UnpackOutput(method string, data []byte) ([]interface{}, error) {
	values, err := c.abi.Unpack(method, data)
	if err != nil {
		return nil, xerrors.Errorf("failed to unpack output of `%s`: %v", method, err)
	}

	return values, nil
}

// UnpackSummary decodes the output of the summary view.
func (c Codec) UnpackSummary(data []byte) (Summary, error) {
	var summary Summary

	err := c.abi.UnpackIntoInterface(&summary, MethodElectionSummary, data)
	if err != nil {
		return summary, xerrors.Errorf("failed to unpack summary: %v", err)
	}

	return summary, nil
}

// Candidates converts a decoded candidate list.
func Candidates(v interface{}) []CandidateTuple {
	return *abi.ConvertType(v, new([]CandidateTuple)).(*[]CandidateTuple)
}

// Voters converts a decoded voter list.
func Voters(v interface{}) []VoterTuple {
	return *abi.ConvertType(v, new([]VoterTuple)).(*[]VoterTuple)
}

var revertSelector = crypto.Keccak256([]byte("Error(string)"))[:4]

// PackRevert encodes the reason the same way a contract does when it reverts
// with a message.
func PackRevert(reason string) []byte {
	stringType, _ := abi.NewType("string", "", nil)

	data, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	if err != nil {
		// A string is always encodable.
		panic(err)
	}

	return append(append([]byte{}, revertSelector...), data...)
}

// UnpackRevert returns the reason of a revert. It returns an error when the
// data does not carry a message.
func UnpackRevert(data []byte) (string, error) {
	reason, err := abi.UnpackRevert(data)
	if err != nil {
		return "", xerrors.Errorf("failed to unpack revert: %v", err)
	}

	return reason, nil
}
