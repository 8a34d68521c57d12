package fake

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.dedis.ch/ballot/ledger"
)

// Agent is a fake implementation of a signing agent.
//
// - implements ledger.Agent
// - implements ledger.Syncer
type Agent struct {
	sync.Mutex

	Addr  common.Address
	Calls *Call
	// Syncs records the synchronizations.
	Syncs *Call

	err   error
	nonce uint64
}

// NewAgent returns a fake agent that approves every call.
func NewAgent() *Agent {
	return &Agent{
		Addr:  common.HexToAddress("0xa1"),
		Calls: &Call{},
		Syncs: &Call{},
	}
}

// NewDecliningAgent returns a fake agent that declines every call.
func NewDecliningAgent() *Agent {
	agent := NewAgent()
	agent.err = ledger.ErrDeclined

	return agent
}

// NewBadAgent returns a fake agent that fails to sign.
func NewBadAgent() *Agent {
	agent := NewAgent()
	agent.err = GetError()

	return agent
}

// Address implements ledger.Agent.
func (a *Agent) Address() common.Address {
	return a.Addr
}

// Sign implements ledger.Agent. It returns a transaction with an increasing
// nonce, or the configured error.
func (a *Agent) Sign(ctx context.Context, call ledger.Call) (ledger.Transaction, error) {
	a.Calls.Add(call)

	if a.err != nil {
		return ledger.Transaction{}, a.err
	}

	a.Lock()
	defer a.Unlock()

	tx := ledger.Transaction{
		Nonce:     a.nonce,
		Gas:       call.Gas,
		To:        call.To,
		Data:      call.Data,
		Signature: []byte{0xbe, 0xef},
	}

	a.nonce++

	return tx, nil
}

// Sync implements ledger.Syncer.
func (a *Agent) Sync(ctx context.Context) error {
	a.Syncs.Add(a.nonce)
	return nil
}

// Backend is a fake implementation of a ledger backend. Every transaction
// succeeds unless a receipt function or errors are configured. It records the
// highest number of transactions simultaneously in flight, which is the time
// between Send and the end of Await.
//
// - implements ledger.Backend
type Backend struct {
	sync.Mutex

	Sent *Call
	// Receipt returns the receipt of a transaction, which is a success by
	// default.
	Receipt func(tx ledger.Transaction) ledger.Receipt
	// Hold blocks Await until a value is received, or the context is done.
	Hold chan struct{}
	// Output is returned by Query.
	Output []byte

	errSend  error
	errAwait error
	errQuery error
	errNonce error

	txs         map[common.Hash]ledger.Transaction
	inflight    int
	maxInflight int
	nonce       uint64
}

// BackendOption is the type of options to create a fake backend.
type BackendOption func(*Backend)

// WithSendError makes Send return the error.
func WithSendError(err error) BackendOption {
	return func(b *Backend) {
		b.errSend = err
	}
}

// WithAwaitError makes Await return the error.
func WithAwaitError(err error) BackendOption {
	return func(b *Backend) {
		b.errAwait = err
	}
}

// WithQueryError makes Query return the error.
func WithQueryError(err error) BackendOption {
	return func(b *Backend) {
		b.errQuery = err
	}
}

// WithNonce sets the nonce returned by the backend, or its error.
func WithNonce(nonce uint64, err error) BackendOption {
	return func(b *Backend) {
		b.nonce = nonce
		b.errNonce = err
	}
}

// NewBackend returns a fake backend.
func NewBackend(opts ...BackendOption) *Backend {
	b := &Backend{
		Sent: &Call{},
		txs:  make(map[common.Hash]ledger.Transaction),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// MaxInflight returns the highest number of transactions that were in flight
// at the same time.
func (b *Backend) MaxInflight() int {
	b.Lock()
	defer b.Unlock()

	return b.maxInflight
}

// Query implements ledger.Reader.
func (b *Backend) Query(ctx context.Context, call ledger.Call) ([]byte, error) {
	if b.errQuery != nil {
		return nil, b.errQuery
	}

	return b.Output, nil
}

// Send implements ledger.Backend.
func (b *Backend) Send(ctx context.Context, tx ledger.Transaction) (common.Hash, error) {
	b.Sent.Add(tx)

	if b.errSend != nil {
		return common.Hash{}, b.errSend
	}

	b.Lock()
	defer b.Unlock()

	hash := tx.Hash()
	b.txs[hash] = tx

	b.inflight++
	if b.inflight > b.maxInflight {
		b.maxInflight = b.inflight
	}

	return hash, nil
}

// Await implements ledger.Backend.
func (b *Backend) Await(ctx context.Context, hash common.Hash) (ledger.Receipt, error) {
	defer func() {
		b.Lock()
		b.inflight--
		b.Unlock()
	}()

	if b.Hold != nil {
		select {
		case <-b.Hold:
		case <-ctx.Done():
			return ledger.Receipt{}, ctx.Err()
		}
	}

	if b.errAwait != nil {
		return ledger.Receipt{}, b.errAwait
	}

	b.Lock()
	tx := b.txs[hash]
	b.Unlock()

	if b.Receipt != nil {
		receipt := b.Receipt(tx)
		receipt.Hash = hash

		return receipt, nil
	}

	return ledger.Receipt{Hash: hash, Status: ledger.ReceiptSuccess, GasUsed: tx.Gas}, nil
}

// Nonce implements ledger.Backend.
func (b *Backend) Nonce(ctx context.Context, addr common.Address) (uint64, error) {
	return b.nonce, b.errNonce
}
