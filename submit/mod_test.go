package submit

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/ballot/contract"
	"go.dedis.ch/ballot/contract/evm"
	"go.dedis.ch/ballot/election"
	"go.dedis.ch/ballot/election/draft"
	"go.dedis.ch/ballot/internal/testing/fake"
	"go.dedis.ch/ballot/ledger"
	"go.dedis.ch/ballot/txn/batch"
	"go.dedis.ch/ballot/txn/lifecycle"
)

func TestService_SubmitElection(t *testing.T) {
	backend := fake.NewBackend()
	srvc := makeService(makeDraft(), backend)

	params, states, err := srvc.SubmitElection(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Student Union 2030", params.Name())

	phases := collect(states)
	require.Equal(t, []lifecycle.Phase{
		lifecycle.Submitting,
		lifecycle.AwaitingConfirmation,
		lifecycle.Succeeded,
	}, phases)

	require.Equal(t, 1, backend.Sent.Len())

	tx := backend.Sent.Get(0, 0).(ledger.Transaction)

	method, args, err := evm.MustCodec().Decode(tx.Data)
	require.NoError(t, err)
	require.Equal(t, evm.MethodCreateElection, method)

	start := time.Date(2030, 3, 1, 7, 0, 0, 0, time.UTC).Unix()
	require.Equal(t, big.NewInt(start), args[0])
	require.Equal(t, "Student Union 2030", args[2])
	require.Len(t, evm.Candidates(args[3]), 3)
}

// The parameters returned are the ones of the call, even when the schedule
// is replaced by a window anchored on the clock.
func TestService_SubmitFallbackSchedule(t *testing.T) {
	d := makeDraft()
	d.BasicInfo.Start = "2020-03-01T08:00"
	d.BasicInfo.End = "2020-03-01T18:00"

	agg := draft.NewAggregator()
	agg.Load(d)

	tick := fixedClock()
	clock := func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}

	backend := fake.NewBackend()
	srvc := NewService(agg, fake.NewAgent(), backend, makeClient(), WithClock(clock))

	before, err := srvc.Parameters()
	require.NoError(t, err)

	params, states, err := srvc.SubmitElection(context.Background())
	require.NoError(t, err)
	require.True(t, params.ScheduleReplaced())
	require.NotEqual(t, before.Start(), params.Start())

	collect(states)

	tx := backend.Sent.Get(0, 0).(ledger.Transaction)

	_, args, err := evm.MustCodec().Decode(tx.Data)
	require.NoError(t, err)
	require.Equal(t, params.Start(), args[0])
	require.Equal(t, params.End(), args[1])
}

func TestService_SubmitIncompleteDraft(t *testing.T) {
	d := makeDraft()
	d.Candidates = nil

	backend := fake.NewBackend()

	_, _, err := makeService(d, backend).SubmitElection(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "draft is not complete: ")

	require.Equal(t, 0, backend.Sent.Len())
}

func TestService_SubmitDeclined(t *testing.T) {
	agg := draft.NewAggregator()
	agg.Load(makeDraft())

	srvc := NewService(agg, fake.NewDecliningAgent(), fake.NewBackend(), makeClient(),
		WithClock(fixedClock))

	_, states, err := srvc.SubmitElection(context.Background())
	require.NoError(t, err)

	var last lifecycle.State
	for state := range states {
		last = state
	}

	require.Equal(t, lifecycle.Failed, last.Phase)
	require.Equal(t, lifecycle.UserDeclined, last.Failure.Kind)
}

func TestService_AddVoters(t *testing.T) {
	backend := fake.NewBackend()
	srvc := makeService(makeDraft(), backend)

	_, err := srvc.AddVoters(context.Background(), big.NewInt(1), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid voters: ")

	voters := []election.Voter{{Name: "Bola Ade", ExternalID: "CSC/2", Level: "200"}}

	_, err = srvc.AddVoters(context.Background(), big.NewInt(0), voters)
	require.EqualError(t, err, "invalid parameters: electionId: must be positive")

	states, err := srvc.AddVoters(context.Background(), big.NewInt(1), voters)
	require.NoError(t, err)
	require.Equal(t, lifecycle.Succeeded, collect(states)[2])

	tx := backend.Sent.Get(0, 0).(ledger.Transaction)

	_, args, err := evm.MustCodec().Decode(tx.Data)
	require.NoError(t, err)
	require.Equal(t, []evm.VoterTuple{{Name: "Bola Ade", MatricNo: "CSC/2", Level: "200"}},
		evm.Voters(args[1]))
}

func TestService_SingleCalls(t *testing.T) {
	backend := fake.NewBackend()
	backend.Receipt = func(tx ledger.Transaction) ledger.Receipt {
		return ledger.Receipt{Status: ledger.ReceiptFailed, Revert: evm.PackRevert("Voter not accredited")}
	}

	srvc := makeService(makeDraft(), backend)
	ctx := context.Background()

	_, err := srvc.AccreditVoter(ctx, big.NewInt(1), " ")
	require.EqualError(t, err, "voter identifier is required")

	_, err = srvc.ValidateVoter(ctx, big.NewInt(1), "CSC/1", "")
	require.EqualError(t, err, "voter identifier and name are required")

	_, err = srvc.CastVote(ctx, big.NewInt(1), "CSC/1", "Ada Obi", nil)
	require.EqualError(t, err, "at least one candidate is required")

	_, err = srvc.AccreditVoter(ctx, nil, "CSC/1")
	require.EqualError(t, err, "failed to create call: failed to build call: argument 1 is nil")

	states, err := srvc.ValidateVoter(ctx, big.NewInt(1), "CSC/1", "Ada Obi")
	require.NoError(t, err)

	last := lastState(states)
	require.Equal(t, lifecycle.ContractRejected, last.Failure.Kind)
	require.Equal(t, "voter not accredited", last.Failure.Reason)

	states, err = srvc.CastVote(ctx, big.NewInt(1), "CSC/1", "Ada Obi", []election.Candidate{
		{Name: "Jane Doe", ExternalID: "C1", Category: "President"},
	})
	require.NoError(t, err)
	require.Equal(t, lifecycle.Failed, lastState(states).Phase)

	states, err = srvc.AccreditVoter(ctx, big.NewInt(1), "CSC/1")
	require.NoError(t, err)
	require.Equal(t, lifecycle.Failed, lastState(states).Phase)

	require.Equal(t, 3, backend.Sent.Len())
}

func TestService_AccreditBatch(t *testing.T) {
	backend := fake.NewBackend()
	srvc := makeService(makeDraft(), backend)

	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprintf("CSC/%d", i+1)
	}

	_, _, err := srvc.AccreditBatch(context.Background(), big.NewInt(1), ids)
	require.Equal(t, ErrNotConfirmed, err)

	_, _, err = srvc.AccreditBatch(context.Background(), big.NewInt(1), nil)
	require.EqualError(t, err, "failed to prepare batch: no voter to accredit")

	confirmed := 0
	srvc = makeService(makeDraft(), backend, WithConfirmer(func(ctx context.Context, job *batch.Job) (bool, error) {
		confirmed++
		return true, nil
	}))

	job, progress, err := srvc.AccreditBatch(context.Background(), big.NewInt(1), ids)
	require.NoError(t, err)
	require.Equal(t, 1, confirmed)

	var last batch.Progress
	for p := range progress {
		last = p
	}

	require.True(t, last.Done)
	require.Equal(t, 12, last.Cursor)
	require.Len(t, job.Summary().Succeeded, 12)
	require.Equal(t, 12, backend.Sent.Len())

	srvc = makeService(makeDraft(), backend, WithConfirmer(func(context.Context, *batch.Job) (bool, error) {
		return false, fake.GetError()
	}))

	_, _, err = srvc.AccreditBatch(context.Background(), big.NewInt(1), ids)
	require.EqualError(t, err, fake.Err("failed to confirm"))
}

// -----------------------------------------------------------------------------
// Utility functions

func fixedClock() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func makeClient() contract.Client {
	return contract.NewClient(common.HexToAddress("0xc0"), fake.NewBackend())
}

func makeService(d election.Draft, backend *fake.Backend, opts ...Option) *Service {
	agg := draft.NewAggregator()
	agg.Load(d)

	opts = append([]Option{WithClock(fixedClock)}, opts...)

	return NewService(agg, fake.NewAgent(), backend, makeClient(), opts...)
}

func collect(states <-chan lifecycle.State) []lifecycle.Phase {
	var phases []lifecycle.Phase
	for state := range states {
		phases = append(phases, state.Phase)
	}

	return phases
}

func lastState(states <-chan lifecycle.State) lifecycle.State {
	var last lifecycle.State
	for state := range states {
		last = state
	}

	return last
}

func makeDraft() election.Draft {
	return election.Draft{
		BasicInfo: election.BasicInfo{
			Name:        " Student Union 2030 ",
			Description: "Yearly election of the student union.",
			Start:       "2030-03-01T08:00",
			End:         "2030-03-01T18:00",
			Timezone:    "Africa/Lagos",
		},
		Categories: []string{"President", "Secretary"},
		Candidates: []election.Candidate{
			{Name: "Jane Doe", ExternalID: "C1", Category: "President"},
			{Name: "John Roe", ExternalID: "C2", Category: "President"},
			{Name: "Amaka Eze", ExternalID: "C3", Category: "Secretary"},
		},
		Voters: []election.Voter{
			{Name: "Ada Obi", ExternalID: "CSC/1", Level: "100", Department: "Computer Science"},
		},
		Polling: election.Polling{
			Officers: []election.Staff{
				{Address: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", Label: "Returning officer"},
			},
			Units: []election.Staff{
				{Address: "fB6916095ca1df60bB79Ce92cE3Ea74c37c5d359", Label: "Main hall"},
			},
		},
	}
}
