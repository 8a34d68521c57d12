package controller

import (
	"bytes"
	"context"
	"io/ioutil"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/ballot/cli/node"
	"go.dedis.ch/ballot/contract"
	"go.dedis.ch/ballot/internal/testing/fake"
	"go.dedis.ch/ballot/ledger"
	"go.dedis.ch/ballot/ledger/wallet"
	"go.dedis.ch/ballot/txn/batch"
	"go.dedis.ch/ballot/txn/lifecycle"
)

func TestMiniController_SetCommands(t *testing.T) {
	builder := node.NewBuilder()

	NewController().SetCommands(builder)
}

func TestMiniController_Lifecycle(t *testing.T) {
	inj := node.NewInjector()

	require.NoError(t, NewController().OnStart(fake.Flags{}, inj))
	require.NoError(t, NewController().OnStop(inj))
}

func TestElectionID(t *testing.T) {
	id, err := electionID(makeContext(fake.Flags{"election": " 42 "}, nil))
	require.NoError(t, err)
	require.Equal(t, int64(42), id.Int64())

	for _, value := range []string{"", "abc", "0", "-3"} {
		_, err = electionID(makeContext(fake.Flags{"election": value}, nil))
		require.EqualError(t, err, "invalid election identifier '"+value+"'")
	}
}

func TestVoterIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voters.txt")
	require.NoError(t, ioutil.WriteFile(path, []byte("# register\nCSC/2\n\n  CSC/3  \n"), 0600))

	ids, err := voterIDs(makeContext(fake.Flags{"id": []string{"CSC/1"}, "file": path}, nil))
	require.NoError(t, err)
	require.Equal(t, []string{"CSC/1", "CSC/2", "CSC/3"}, ids)

	_, err = voterIDs(makeContext(fake.Flags{}, nil))
	require.EqualError(t, err, "no voter to accredit")

	_, err = voterIDs(makeContext(fake.Flags{"file": filepath.Join(t.TempDir(), "missing")}, nil))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read file: ")
}

func TestReport(t *testing.T) {
	out := new(bytes.Buffer)
	hash := common.HexToHash("0xaa")

	err := report(makeContext(fake.Flags{}, out), makeStates(
		lifecycle.State{Phase: lifecycle.Submitting},
		lifecycle.State{Phase: lifecycle.AwaitingConfirmation, Hash: hash},
		lifecycle.State{Phase: lifecycle.Succeeded, Hash: hash},
	))
	require.NoError(t, err)
	require.Equal(t, "transaction "+hash.Hex()+" sent\ntransaction succeeded\n", out.String())

	failed := lifecycle.State{
		Phase: lifecycle.Failed,
		Failure: lifecycle.Failure{
			Kind:    lifecycle.UserDeclined,
			Message: "The request was declined.",
			Raw:     "declined",
		},
	}

	out.Reset()
	err = report(makeContext(fake.Flags{}, out), makeStates(failed))
	require.EqualError(t, err, "transaction not executed: The request was declined.")
	require.Equal(t, "transaction failed: The request was declined.\n", out.String())

	out.Reset()
	err = report(makeContext(fake.Flags{"verbose": true}, out), makeStates(failed))
	require.Error(t, err)
	require.Contains(t, out.String(), "  raw: declined\n")
}

func TestConfirmer(t *testing.T) {
	job := makeJob(t)

	ok, err := confirmer(makeContext(fake.Flags{"yes": true}, nil), nil)(context.Background(), job)
	require.NoError(t, err)
	require.True(t, ok)

	out := new(bytes.Buffer)
	ctx := makeContext(fake.Flags{}, out)

	ok, err = confirmer(ctx, wallet.NewPrompt(strings.NewReader("Yes\n"), out))(context.Background(), job)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, out.String(), "Accredit 2 voters for at most ")

	ok, err = confirmer(ctx, wallet.NewPrompt(new(bytes.Buffer), out))(context.Background(), job)
	require.NoError(t, err)
	require.False(t, ok)
}

// The confirmation of a batch and the approvals of its transactions read the
// same input.
func TestConfirmer_SharedWithWallet(t *testing.T) {
	job := makeJob(t)

	out := new(bytes.Buffer)
	prompt := wallet.NewPrompt(strings.NewReader("y\ny\n"), out)

	ok, err := confirmer(makeContext(fake.Flags{}, out), prompt)(context.Background(), job)
	require.NoError(t, err)
	require.True(t, ok)

	req := wallet.Request{
		Call: ledger.Call{Method: "accreditVoter", To: common.HexToAddress("0xc0")},
		Cost: big.NewInt(1),
	}

	ok, err = prompt.Approve(context.Background(), req)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestInstant(t *testing.T) {
	require.Equal(t, "-", instant(nil))
	require.Equal(t, "2030-03-01T07:00:00Z", instant(big.NewInt(1898578800)))
}

// -----------------------------------------------------------------------------
// Utility functions

func makeContext(flags fake.Flags, out *bytes.Buffer) node.Context {
	if out == nil {
		out = new(bytes.Buffer)
	}

	return node.Context{
		Ctx:      context.Background(),
		Injector: node.NewInjector(),
		Flags:    flags,
		In:       new(bytes.Buffer),
		Out:      out,
	}
}

func makeJob(t *testing.T) *batch.Job {
	orch := batch.NewOrchestrator(fake.NewAgent(), fake.NewBackend(),
		contract.NewClient(common.HexToAddress("0xc0"), fake.NewBackend()))

	job, err := orch.Prepare(big.NewInt(1), []string{"CSC/1", "CSC/2"})
	require.NoError(t, err)

	return job
}

func makeStates(states ...lifecycle.State) <-chan lifecycle.State {
	ch := make(chan lifecycle.State, len(states))
	for _, s := range states {
		ch <- s
	}

	close(ch)

	return ch
}
