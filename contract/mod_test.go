package contract

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/ballot/contract/evm"
	"go.dedis.ch/ballot/contract/marshal"
	"go.dedis.ch/ballot/election"
	"go.dedis.ch/ballot/internal/testing/fake"
)

var contractAddr = common.HexToAddress("0xc0")

func TestClient_CreateElection(t *testing.T) {
	client := NewClient(contractAddr, fake.NewBackend())
	require.Equal(t, contractAddr, client.Address())

	p := marshal.Marshal(election.Draft{
		BasicInfo:  election.BasicInfo{Name: "Union", Start: "2100-01-01T10:00", End: "2100-01-01T12:00"},
		Categories: []string{"President"},
		Candidates: []election.Candidate{{Name: "Jane Doe", ExternalID: "C1", Category: "President"}},
		Polling: election.Polling{
			Units:    []election.Staff{{Address: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"}},
			Officers: []election.Staff{{Address: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"}},
		},
	}, marshal.WithClock(func() time.Time { return time.Unix(0, 0) }))

	call, err := client.CreateElection(p)
	require.NoError(t, err)
	require.Equal(t, evm.MethodCreateElection, call.Method)
	require.Equal(t, contractAddr, call.To)
	require.Equal(t, uint64(500_000+3*40_000), call.Gas)

	method, args, err := evm.MustCodec().Decode(call.Data)
	require.NoError(t, err)
	require.Equal(t, evm.MethodCreateElection, method)
	require.Equal(t, "Union", args[2])
}

func TestClient_Calls(t *testing.T) {
	client := NewClient(contractAddr, fake.NewBackend())
	id := big.NewInt(1)

	call, err := client.AccreditVoter("CSC/1", id)
	require.NoError(t, err)
	require.Equal(t, uint64(80_000), call.Gas)

	call, err = client.ValidateVoter("CSC/1", "Ada Obi", id)
	require.NoError(t, err)
	require.Equal(t, evm.MethodValidateVoter, call.Method)

	call, err = client.VoteCandidates("CSC/1", "Ada Obi", []evm.CandidateTuple{{Name: "Jane Doe"}}, id)
	require.NoError(t, err)
	require.Equal(t, uint64(130_000), call.Gas)

	call, err = client.AddVoters(id, []evm.VoterTuple{{Name: "Ada Obi"}, {Name: "Bola Ade"}})
	require.NoError(t, err)
	require.Equal(t, uint64(180_000), call.Gas)

	_, err = client.AccreditVoter("CSC/1", nil)
	require.EqualError(t, err, "failed to build call: argument 1 is nil")
}

func TestClient_Reads(t *testing.T) {
	codec := evm.MustCodec()
	backend := fake.NewBackend()
	client := NewClient(contractAddr, backend)

	var err error

	backend.Output, err = codec.PackOutput(evm.MethodElectionCount, big.NewInt(3))
	require.NoError(t, err)

	count, err := client.ElectionCount(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), count.Int64())

	backend.Output, err = codec.PackOutput(evm.MethodIsAccredited, true)
	require.NoError(t, err)

	ok, err := client.IsAccredited(context.Background(), big.NewInt(1), "CSC/1")
	require.NoError(t, err)
	require.True(t, ok)

	voters := []evm.VoterTuple{{Name: "Ada Obi", MatricNo: "CSC/1", Level: "100"}}
	backend.Output, err = codec.PackOutput(evm.MethodGetVoters, voters)
	require.NoError(t, err)

	res, err := client.Voters(context.Background(), big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, voters, res)

	backend.Output, err = codec.PackOutput(evm.MethodElectionSummary, "Union",
		big.NewInt(1), big.NewInt(2), big.NewInt(1), big.NewInt(1), big.NewInt(0), big.NewInt(0))
	require.NoError(t, err)

	summary, err := client.Summary(context.Background(), big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, "Union", summary.ElectionName)
}

func TestClient_ReadFailures(t *testing.T) {
	client := NewClient(contractAddr, fake.NewBackend(fake.WithQueryError(fake.GetError())))

	_, err := client.ElectionCount(context.Background())
	require.EqualError(t, err, fake.Err("failed to query electionCount"))

	client = NewClient(contractAddr, fake.NewBackend())

	_, err = client.IsAccredited(context.Background(), big.NewInt(1), "CSC/1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to decode isAccredited: ")

	_, err = client.Summary(context.Background(), big.NewInt(1))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to decode summary: ")

	_, err = client.Voters(context.Background(), nil)
	require.EqualError(t, err, "failed to build query: argument 0 is nil")
}
