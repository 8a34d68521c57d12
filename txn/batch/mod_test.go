package batch

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
	"go.dedis.ch/ballot/internal/testing/fake"
	"go.dedis.ch/ballot/ledger"
	"go.dedis.ch/ballot/txn/lifecycle"
)

func TestOrchestrator_Prepare(t *testing.T) {
	orch := NewOrchestrator(fake.NewAgent(), fake.NewBackend(), makeClient(fake.NewBackend()),
		WithGasPrice(big.NewInt(2)))

	job, err := orch.Prepare(big.NewInt(1), []string{" CSC/1", "csc/1", "", "CSC/2"})
	require.NoError(t, err)
	require.Equal(t, []string{"CSC/1", "CSC/2"}, job.Items())
	require.Equal(t, int64(2*2*80_000), job.Cost().Int64())
	require.False(t, job.NeedsConfirmation())
	require.Equal(t, int64(1), job.ElectionID().Int64())
	require.False(t, job.ID().IsNil())

	_, err = orch.Prepare(nil, []string{"CSC/1"})
	require.EqualError(t, err, "invalid election identifier")

	_, err = orch.Prepare(big.NewInt(1), []string{" ", ""})
	require.EqualError(t, err, "no voter to accredit")
}

func TestOrchestrator_Confirmation(t *testing.T) {
	orch := NewOrchestrator(fake.NewAgent(), fake.NewBackend(), makeClient(fake.NewBackend()))

	job, err := orch.Prepare(big.NewInt(1), makeIDs(10))
	require.NoError(t, err)
	require.False(t, job.NeedsConfirmation())

	job, err = orch.Prepare(big.NewInt(1), makeIDs(11))
	require.NoError(t, err)
	require.True(t, job.NeedsConfirmation())

	_, err = orch.Run(context.Background(), job)
	require.Equal(t, ErrNotConfirmed, err)
	require.Equal(t, 0, job.Cursor())

	job.Confirm()

	sum, err := orch.Run(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, sum.Succeeded, 11)

	_, err = orch.Run(context.Background(), job)
	require.Equal(t, ErrAlreadyRun, err)

	orch = NewOrchestrator(fake.NewAgent(), fake.NewBackend(), makeClient(fake.NewBackend()),
		WithThreshold(3))

	job, err = orch.Prepare(big.NewInt(1), makeIDs(4))
	require.NoError(t, err)
	require.True(t, job.NeedsConfirmation())
}

// A batch of fifteen voters where the contract rejects the seventh one.
func TestOrchestrator_PartialFailure(t *testing.T) {
	ids := makeIDs(15)

	backend := fake.NewBackend()
	backend.Receipt = rejectVoter(t, ids[6], "already accredited")

	logger, check := fake.CheckLog("batch item failed")

	orch := NewOrchestrator(fake.NewAgent(), backend, makeClient(backend), WithLogger(logger))

	job, err := orch.Prepare(big.NewInt(1), ids)
	require.NoError(t, err)

	job.Confirm()

	sum, err := orch.Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, 15, sum.Total)
	require.False(t, sum.Cancelled)
	require.Empty(t, sum.Pending)
	require.Equal(t, append(append([]string{}, ids[:6]...), ids[7:]...), sum.Succeeded)
	require.Len(t, sum.Failed, 1)
	require.Equal(t, ids[6], sum.Failed[0].ID)
	require.Equal(t, Transaction, sum.Failed[0].Err.Kind)
	require.Equal(t, lifecycle.ContractRejected, sum.Failed[0].Err.Failure.Kind)
	require.Equal(t, "already accredited", sum.Failed[0].Err.Reason())

	// Every item spent one transaction.
	require.Equal(t, 15, backend.Sent.Len())
	require.Equal(t, 15, job.Cursor())
	require.True(t, job.Done())

	// The rejected voter is known to be accredited from now on.
	require.True(t, orch.Accredited(ids[6]))

	check(t)
}

func TestOrchestrator_Sequencing(t *testing.T) {
	backend := fake.NewBackend()
	orch := NewOrchestrator(fake.NewAgent(), backend, makeClient(backend), WithThreshold(100))

	job, err := orch.Prepare(big.NewInt(1), makeIDs(20))
	require.NoError(t, err)

	_, err = orch.Run(context.Background(), job)
	require.NoError(t, err)

	require.Equal(t, 20, backend.Sent.Len())
	require.Equal(t, 1, backend.MaxInflight())

	// Nonces are used in the order of the items.
	for i := 0; i < backend.Sent.Len(); i++ {
		tx := backend.Sent.Get(i, 0).(ledger.Transaction)
		require.Equal(t, uint64(i), tx.Nonce)
	}
}

func TestOrchestrator_ShortCircuit(t *testing.T) {
	backend := fake.NewBackend()
	orch := NewOrchestrator(fake.NewAgent(), backend, makeClient(backend),
		WithAccredited("csc/1"),
		WithRegistered("CSC/1", "CSC/2"))

	job, err := orch.Prepare(big.NewInt(1), []string{"CSC/1", "CSC/2", "CSC/3"})
	require.NoError(t, err)

	sum, err := orch.Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, []string{"CSC/2"}, sum.Succeeded)
	require.Len(t, sum.Failed, 2)
	require.Equal(t, AlreadyAccredited, sum.Failed[0].Err.Kind)
	require.Equal(t, NotRegistered, sum.Failed[1].Err.Kind)
	require.Equal(t, "The voter is already accredited.", sum.Failed[0].Err.Error())

	// Only the registered voter spent a transaction.
	require.Equal(t, 1, backend.Sent.Len())

	o, found := job.Result("csc/3")
	require.True(t, found)
	require.Equal(t, lifecycle.Idle, o.State.Phase)

	// A second job skips the voter accredited by the first one.
	job, err = orch.Prepare(big.NewInt(1), []string{"CSC/2"})
	require.NoError(t, err)

	sum, err = orch.Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, AlreadyAccredited, sum.Failed[0].Err.Kind)
	require.Equal(t, 1, backend.Sent.Len())
}

func TestOrchestrator_Declined(t *testing.T) {
	backend := fake.NewBackend()
	orch := NewOrchestrator(fake.NewDecliningAgent(), backend, makeClient(backend))

	job, err := orch.Prepare(big.NewInt(1), makeIDs(3))
	require.NoError(t, err)

	sum, err := orch.Run(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, sum.Failed, 3)
	require.Equal(t, "user_declined", sum.Failed[0].Err.Reason())
	require.Equal(t, lifecycle.UserDeclined, sum.Failed[2].Err.Failure.Kind)
}

func TestOrchestrator_Cancel(t *testing.T) {
	backend := fake.NewBackend()
	backend.Hold = make(chan struct{})

	orch := NewOrchestrator(fake.NewAgent(), backend, makeClient(backend))

	job, err := orch.Prepare(big.NewInt(1), makeIDs(5))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan Summary)
	go func() {
		sum, _ := orch.Run(ctx, job)
		done <- sum
	}()

	waitSent(t, backend, 1)

	// The first item is awaited to its end even if the context is done.
	cancel()
	backend.Hold <- struct{}{}

	sum := <-done
	require.True(t, sum.Cancelled)
	require.Equal(t, []string{"CSC/1"}, sum.Succeeded)
	require.Equal(t, makeIDs(5)[1:], sum.Pending)
	require.Equal(t, 1, backend.Sent.Len())
}

func TestJob_Cancel(t *testing.T) {
	backend := fake.NewBackend()
	backend.Hold = make(chan struct{})

	orch := NewOrchestrator(fake.NewAgent(), backend, makeClient(backend))

	job, err := orch.Prepare(big.NewInt(1), makeIDs(3))
	require.NoError(t, err)

	done := make(chan Summary)
	go func() {
		sum, _ := orch.Run(context.Background(), job)
		done <- sum
	}()

	waitSent(t, backend, 1)
	job.Cancel()
	backend.Hold <- struct{}{}

	sum := <-done
	require.True(t, sum.Cancelled)
	require.Len(t, sum.Succeeded, 1)
	require.Len(t, sum.Pending, 2)
	require.Equal(t, 1, job.Cursor())
}

func TestJob_Watch(t *testing.T) {
	backend := fake.NewBackend()
	orch := NewOrchestrator(fake.NewAgent(), backend, makeClient(backend))

	job, err := orch.Prepare(big.NewInt(1), makeIDs(3))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := job.Watch(ctx)

	_, err = orch.Run(context.Background(), job)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		p := <-events
		require.Equal(t, i, p.Cursor)
		require.Equal(t, 3, p.Total)
		require.False(t, p.Done)
		require.True(t, p.Outcome.Succeeded())
		require.Equal(t, lifecycle.Succeeded, p.Outcome.State.Phase)
	}

	p := <-events
	require.True(t, p.Done)
	require.Equal(t, job.ID(), p.Job)
}

func TestItemError_Reason(t *testing.T) {
	require.Equal(t, "voter not registered", ItemError{Kind: NotRegistered}.Reason())
	require.Equal(t, "unknown", ItemError{Kind: Transaction}.Reason())
	require.Equal(t, "already voted", ItemError{
		Kind:    Transaction,
		Failure: lifecycle.Failure{Reason: "already voted"},
	}.Reason())

	require.Equal(t, "transaction", Transaction.String())
	require.Equal(t, "not_registered", NotRegistered.String())
}

func TestOutcome(t *testing.T) {
	done := lifecycle.State{Phase: lifecycle.Succeeded}

	res := outcome("CSC/1", done, nil)
	require.True(t, res.Succeeded())

	failed := lifecycle.State{Phase: lifecycle.Failed, Failure: lifecycle.Failure{Reason: "already voted"}}

	res = outcome("CSC/1", failed, nil)
	require.False(t, res.Succeeded())
	require.Equal(t, Transaction, res.Err.Kind)
	require.Equal(t, "already voted", res.Err.Reason())

	// A controller that was already run does not count as a success, whatever
	// its state.
	res = outcome("CSC/1", done, lifecycle.ErrAlreadyRun)
	require.False(t, res.Succeeded())
	require.Equal(t, Transaction, res.Err.Kind)
	require.Equal(t, lifecycle.Unknown, res.Err.Failure.Kind)
	require.Equal(t, "failed to run: controller already run", res.Err.Failure.Raw)
}

// -----------------------------------------------------------------------------
// Utility functions

func makeClient(reader ledger.Reader) contract.Client {
	return contract.NewClient(common.HexToAddress("0xc0"), reader)
}

func makeIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("CSC/%d", i+1)
	}

	return ids
}

func rejectVoter(t *testing.T, matricNo, reason string) func(ledger.Transaction) ledger.Receipt {
	codec := evm.MustCodec()

	return func(tx ledger.Transaction) ledger.Receipt {
		_, args, err := codec.Decode(tx.Data)
		require.NoError(t, err)

		if args[0].(string) == matricNo {
			return ledger.Receipt{Status: ledger.ReceiptFailed, Revert: evm.PackRevert(reason)}
		}

		return ledger.Receipt{Status: ledger.ReceiptSuccess}
	}
}

func waitSent(t *testing.T, backend *fake.Backend, n int) {
	timeout := time.After(5 * time.Second)

	for backend.Sent.Len() < n {
		select {
		case <-timeout:
			t.Fatal("transaction never sent")
		case <-time.After(time.Millisecond):
		}
	}
}
