package local

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"go.dedis.ch/ballot/contract/evm"
	"go.dedis.ch/ballot/core/store/kv"
	"golang.org/x/xerrors"
)

// The revert reasons of the contract.
const (
	ReasonNotAccredited  = "Voter not accredited"
	ReasonAlreadyVoted   = "Already voted"
	ReasonNotActive      = "Election not active"
	ReasonInvalidDetails = "Invalid voter details"
	ReasonAccredited     = "Already accredited"
	ReasonNotRegistered  = "Voter not registered"
	ReasonNotAuthorized  = "Not authorized"
	ReasonInvalidCand    = "Invalid candidate"
	ReasonUnknown        = "Election does not exist"
)

// election is the state of an election stored by the contract.
type election struct {
	Name       string
	Start      uint64
	End        uint64
	Creator    common.Address
	Units      []common.Address
	Officers   []common.Address
	Categories []string
	Candidates []evm.CandidateTuple
	Voters     []evm.VoterTuple
	Accredited []string
	Validated  []string
	Voted      []string
	Votes      []uint64
}

func (e *election) voter(matricNo string) (evm.VoterTuple, bool) {
	for _, v := range e.Voters {
		if strings.EqualFold(v.MatricNo, matricNo) {
			return v, true
		}
	}

	return evm.VoterTuple{}, false
}

func (e *election) staff(addr common.Address) bool {
	if addr == e.Creator {
		return true
	}

	for _, a := range append(append([]common.Address{}, e.Officers...), e.Units...) {
		if a == addr {
			return true
		}
	}

	return false
}

func (e *election) active(now uint64) bool {
	return now >= e.Start && now < e.End
}

func (e *election) summary() []interface{} {
	var votes uint64
	for _, n := range e.Votes {
		votes += n
	}

	return []interface{}{
		e.Name,
		new(big.Int).SetUint64(e.Start),
		new(big.Int).SetUint64(e.End),
		big.NewInt(int64(len(e.Candidates))),
		big.NewInt(int64(len(e.Voters))),
		big.NewInt(int64(len(e.Accredited))),
		new(big.Int).SetUint64(votes),
	}
}

// revert is the error of a call rejected by the contract.
type revert struct {
	reason string
}

func (r revert) Error() string {
	return r.reason
}

// state gives access to the contract storage during a transaction.
type state struct {
	bucket kv.Bucket
	sender common.Address
	now    uint64
}

// execute applies the call to the contract storage. It returns a revert when
// the contract rejects the call.
func (s state) execute(method string, args []interface{}) error {
	var err error

	switch method {
	case evm.MethodCreateElection:
		err = s.createElection(args)
	case evm.MethodAddVoters:
		err = s.addVoters(args)
	case evm.MethodAccreditVoter:
		err = s.accreditVoter(args)
	case evm.MethodValidateVoter:
		err = s.validateVoter(args)
	case evm.MethodVoteCandidates:
		err = s.voteCandidates(args)
	default:
		return revert{reason: "unknown method " + method}
	}

	if err != nil {
		return xerrors.Errorf("%s: %w", method, err)
	}

	return nil
}

func (s state) createElection(args []interface{}) error {
	count := s.count()

	e := &election{
		Name:       args[2].(string),
		Start:      args[0].(*big.Int).Uint64(),
		End:        args[1].(*big.Int).Uint64(),
		Creator:    s.sender,
		Candidates: evm.Candidates(args[3]),
		Voters:     evm.Voters(args[4]),
		Units:      args[5].([]common.Address),
		Officers:   args[6].([]common.Address),
		Categories: args[7].([]string),
	}

	e.Votes = make([]uint64, len(e.Candidates))

	id := new(big.Int).Add(count, big.NewInt(1))

	err := s.store(id, e)
	if err != nil {
		return err
	}

	return s.bucket.Set(countKey, id.Bytes())
}

func (s state) addVoters(args []interface{}) error {
	id := args[0].(*big.Int)

	e, err := s.load(id)
	if err != nil {
		return err
	}

	if s.sender != e.Creator {
		return revert{reason: ReasonNotAuthorized}
	}

	for _, v := range evm.Voters(args[1]) {
		_, found := e.voter(v.MatricNo)
		if !found {
			e.Voters = append(e.Voters, v)
		}
	}

	return s.store(id, e)
}

func (s state) accreditVoter(args []interface{}) error {
	matricNo := args[0].(string)
	id := args[1].(*big.Int)

	e, err := s.load(id)
	if err != nil {
		return err
	}

	switch {
	case !e.staff(s.sender):
		return revert{reason: ReasonNotAuthorized}
	case !e.active(s.now):
		return revert{reason: ReasonNotActive}
	}

	voter, found := e.voter(matricNo)
	if !found {
		return revert{reason: ReasonNotRegistered}
	}

	if contains(e.Accredited, voter.MatricNo) {
		return revert{reason: ReasonAccredited}
	}

	e.Accredited = append(e.Accredited, voter.MatricNo)

	return s.store(id, e)
}

func (s state) validateVoter(args []interface{}) error {
	matricNo, name := args[0].(string), args[1].(string)
	id := args[2].(*big.Int)

	e, err := s.load(id)
	if err != nil {
		return err
	}

	voter, err := s.eligible(e, matricNo, name)
	if err != nil {
		return err
	}

	if !contains(e.Validated, voter.MatricNo) {
		e.Validated = append(e.Validated, voter.MatricNo)
	}

	return s.store(id, e)
}

func (s state) voteCandidates(args []interface{}) error {
	matricNo, name := args[0].(string), args[1].(string)
	candidates := evm.Candidates(args[2])
	id := args[3].(*big.Int)

	e, err := s.load(id)
	if err != nil {
		return err
	}

	voter, err := s.eligible(e, matricNo, name)
	if err != nil {
		return err
	}

	if len(candidates) == 0 {
		return revert{reason: ReasonInvalidCand}
	}

	indices := make([]int, len(candidates))

	for i, cand := range candidates {
		indices[i] = -1

		for j, known := range e.Candidates {
			if strings.EqualFold(known.Name, cand.Name) && strings.EqualFold(known.Category, cand.Category) {
				indices[i] = j
				break
			}
		}

		if indices[i] < 0 {
			return revert{reason: ReasonInvalidCand}
		}
	}

	for _, j := range indices {
		e.Votes[j]++
	}

	e.Voted = append(e.Voted, voter.MatricNo)

	return s.store(id, e)
}

// eligible returns the voter if it can vote in the election.
func (s state) eligible(e *election, matricNo, name string) (evm.VoterTuple, error) {
	if !e.active(s.now) {
		return evm.VoterTuple{}, revert{reason: ReasonNotActive}
	}

	voter, found := e.voter(matricNo)
	if !found {
		return evm.VoterTuple{}, revert{reason: ReasonNotRegistered}
	}

	if !contains(e.Accredited, voter.MatricNo) {
		return evm.VoterTuple{}, revert{reason: ReasonNotAccredited}
	}

	if !strings.EqualFold(strings.TrimSpace(voter.Name), strings.TrimSpace(name)) {
		return evm.VoterTuple{}, revert{reason: ReasonInvalidDetails}
	}

	if contains(e.Voted, voter.MatricNo) {
		return evm.VoterTuple{}, revert{reason: ReasonAlreadyVoted}
	}

	return voter, nil
}

func (s state) count() *big.Int {
	return new(big.Int).SetBytes(s.bucket.Get(countKey))
}

func (s state) load(id *big.Int) (*election, error) {
	data := s.bucket.Get(electionKey(id))
	if data == nil {
		return nil, revert{reason: ReasonUnknown}
	}

	e := new(election)

	err := rlp.DecodeBytes(data, e)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode election: %v", err)
	}

	return e, nil
}

func (s state) store(id *big.Int, e *election) error {
	data, err := rlp.EncodeToBytes(e)
	if err != nil {
		return xerrors.Errorf("failed to encode election: %v", err)
	}

	return s.bucket.Set(electionKey(id), data)
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if strings.EqualFold(v, value) {
			return true
		}
	}

	return false
}
