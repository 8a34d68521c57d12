// Package local implements a development ledger hosting the election contract
// in a key/value database.
//
// The ledger verifies the signature and the nonce of a transaction, charges
// the gas to the sender and includes the transaction immediately. The
// contract only implements the rules needed to reject the calls with the
// reasons of the real contract. It is meant for the command line client and
// the tests, not as a definition of the contract.
//
// Documentation Last Review: 15.10.2026
//
package local

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethcore "github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/rs/zerolog"
	"go.dedis.ch/ballot"
	"go.dedis.ch/ballot/contract/evm"
	"go.dedis.ch/ballot/core"
	"go.dedis.ch/ballot/core/store/kv"
	"go.dedis.ch/ballot/ledger"
	"golang.org/x/xerrors"
)

var (
	bucketName = []byte("ledger")

	countKey = []byte("count")
)

func accountKey(addr common.Address) []byte {
	return append([]byte("account:"), addr.Bytes()...)
}

func receiptKey(hash common.Hash) []byte {
	return append([]byte("receipt:"), hash.Bytes()...)
}

func electionKey(id *big.Int) []byte {
	return append([]byte("election:"), common.BigToHash(id).Bytes()...)
}

// account is the state of an account.
type account struct {
	Nonce   uint64
	Balance *big.Int
}

// Ledger is a local ledger hosting the election contract.
//
// - implements ledger.Backend
type Ledger struct {
	sync.Mutex

	db       kv.DB
	codec    evm.Codec
	contract common.Address
	now      func() time.Time
	watcher  *core.Watcher[ledger.Receipt]
	logger   zerolog.Logger
}

// Option is the type of options to create a ledger.
type Option func(*Ledger)

// WithDeployer sets the account that deployed the contract, which defines
// the address of the contract.
func WithDeployer(addr common.Address) Option {
	return func(l *Ledger) {
		l.contract = crypto.CreateAddress(addr, 0)
	}
}

// WithClock sets the clock that defines the time of the blocks.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithLogger sets the logger of the ledger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// NewLedger returns a ledger persisted in the database.
func NewLedger(db kv.DB, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		db:       db,
		codec:    evm.MustCodec(),
		contract: crypto.CreateAddress(common.Address{}, 0),
		now:      time.Now,
		watcher:  core.NewWatcher[ledger.Receipt](),
		logger:   ballot.Logger,
	}

	for _, opt := range opts {
		opt(l)
	}

	err := db.Update(bucketName, func(kv.Bucket) error { return nil })
	if err != nil {
		return nil, xerrors.Errorf("failed to create bucket: %v", err)
	}

	return l, nil
}

// Contract returns the address of the election contract.
func (l *Ledger) Contract() common.Address {
	return l.contract
}

// Fund credits the account with the amount.
func (l *Ledger) Fund(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return xerrors.New("amount must be positive")
	}

	l.Lock()
	defer l.Unlock()

	return l.db.Update(bucketName, func(b kv.Bucket) error {
		acc, err := readAccount(b, addr)
		if err != nil {
			return err
		}

		acc.Balance.Add(acc.Balance, amount)

		return writeAccount(b, addr, acc)
	})
}

// Balance returns the balance of the account.
func (l *Ledger) Balance(addr common.Address) (*big.Int, error) {
	var acc account

	err := l.view(func(b kv.Bucket) error {
		var err error
		acc, err = readAccount(b, addr)
		return err
	})
	if err != nil {
		return nil, err
	}

	return acc.Balance, nil
}

// Nonce implements ledger.Backend. It returns the next nonce of the account.
func (l *Ledger) Nonce(ctx context.Context, addr common.Address) (uint64, error) {
	var acc account

	err := l.view(func(b kv.Bucket) error {
		var err error
		acc, err = readAccount(b, addr)
		return err
	})
	if err != nil {
		return 0, err
	}

	return acc.Nonce, nil
}

// Send implements ledger.Backend. It verifies and includes the transaction.
// A transaction rejected by the contract is included with a failed receipt
// and still pays for its gas.
func (l *Ledger) Send(ctx context.Context, tx ledger.Transaction) (common.Hash, error) {
	sender, err := tx.Sender()
	if err != nil {
		return common.Hash{}, xerrors.Errorf("invalid signature: %v", err)
	}

	if tx.To != l.contract {
		return common.Hash{}, xerrors.Errorf("unknown contract %s", tx.To.Hex())
	}

	intrinsic, err := gethcore.IntrinsicGas(tx.Data, nil, false, true, true)
	if err != nil {
		return common.Hash{}, xerrors.Errorf("failed to compute gas: %v", err)
	}

	if tx.Gas < intrinsic {
		return common.Hash{}, xerrors.Errorf("intrinsic gas too low: have %d, want %d",
			tx.Gas, intrinsic)
	}

	method, args, err := l.codec.Decode(tx.Data)
	if err != nil {
		return common.Hash{}, xerrors.Errorf("failed to decode call: %v", err)
	}

	l.Lock()
	defer l.Unlock()

	receipt := ledger.Receipt{
		Hash:    tx.Hash(),
		Status:  ledger.ReceiptSuccess,
		GasUsed: intrinsic,
	}

	err = l.db.Update(bucketName, func(b kv.Bucket) error {
		acc, err := readAccount(b, sender)
		if err != nil {
			return err
		}

		if tx.Nonce != acc.Nonce {
			return xerrors.Errorf("nonce %d, expected %d: %w", tx.Nonce, acc.Nonce, ledger.ErrNonce)
		}

		cost := tx.Cost()
		if acc.Balance.Cmp(cost) < 0 {
			return xerrors.Errorf("balance %v below %v: %w", acc.Balance, cost,
				ledger.ErrInsufficientFunds)
		}

		st := state{
			bucket: b,
			sender: sender,
			now:    uint64(l.now().Unix()),
		}

		err = st.execute(method, args)

		var rev revert
		if xerrors.As(err, &rev) {
			receipt.Status = ledger.ReceiptFailed
			receipt.Revert = evm.PackRevert(rev.reason)
		} else if err != nil {
			return xerrors.Errorf("failed to execute: %v", err)
		}

		price := tx.GasPrice
		if price == nil {
			price = new(big.Int)
		}

		fee := new(big.Int).Mul(price, new(big.Int).SetUint64(receipt.GasUsed))

		acc.Nonce++
		acc.Balance.Sub(acc.Balance, fee)

		err = writeAccount(b, sender, acc)
		if err != nil {
			return err
		}

		data, err := rlp.EncodeToBytes(receipt)
		if err != nil {
			return xerrors.Errorf("failed to encode receipt: %v", err)
		}

		return b.Set(receiptKey(receipt.Hash), data)
	})
	if err != nil {
		return common.Hash{}, err
	}

	l.logger.Debug().
		Str("method", method).
		Stringer("sender", sender).
		Uint64("nonce", tx.Nonce).
		Uint64("status", receipt.Status).
		Msg("transaction included")

	l.watcher.Notify(receipt)

	return receipt.Hash, nil
}

// Await implements ledger.Backend. It returns the receipt of the transaction
// once it is included.
func (l *Ledger) Await(ctx context.Context, hash common.Hash) (ledger.Receipt, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := l.watcher.Watch(ctx)

	receipt, found, err := l.receipt(hash)
	if err != nil {
		return receipt, err
	}

	if found {
		return receipt, nil
	}

	for receipt := range events {
		if receipt.Hash == hash {
			return receipt, nil
		}
	}

	return ledger.Receipt{}, ctx.Err()
}

// Query implements ledger.Reader. Only the view methods of the contract are
// allowed.
func (l *Ledger) Query(ctx context.Context, call ledger.Call) ([]byte, error) {
	if call.To != l.contract {
		return nil, xerrors.Errorf("unknown contract %s", call.To.Hex())
	}

	method, args, err := l.codec.Decode(call.Data)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode call: %v", err)
	}

	var out []byte

	err = l.view(func(b kv.Bucket) error {
		st := state{bucket: b}

		var values []interface{}

		switch method {
		case evm.MethodElectionCount:
			values = []interface{}{st.count()}
		case evm.MethodElectionSummary:
			e, err := st.load(args[0].(*big.Int))
			if err != nil {
				return err
			}

			values = e.summary()
		case evm.MethodIsAccredited:
			e, err := st.load(args[0].(*big.Int))
			if err != nil {
				return err
			}

			values = []interface{}{contains(e.Accredited, args[1].(string))}
		case evm.MethodGetVoters:
			e, err := st.load(args[0].(*big.Int))
			if err != nil {
				return err
			}

			values = []interface{}{e.Voters}
		default:
			return xerrors.Errorf("method '%s' is not a view", method)
		}

		out, err = l.codec.PackOutput(method, values...)
		return err
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to query %s: %v", method, err)
	}

	return out, nil
}

func (l *Ledger) receipt(hash common.Hash) (ledger.Receipt, bool, error) {
	var data []byte

	err := l.view(func(b kv.Bucket) error {
		data = b.Get(receiptKey(hash))
		return nil
	})
	if err != nil || data == nil {
		return ledger.Receipt{}, false, err
	}

	var receipt ledger.Receipt

	err = rlp.DecodeBytes(data, &receipt)
	if err != nil {
		return receipt, false, xerrors.Errorf("failed to decode receipt: %v", err)
	}

	return receipt, true, nil
}

func (l *Ledger) view(fn func(kv.Bucket) error) error {
	return l.db.View(bucketName, fn)
}

func readAccount(b kv.Bucket, addr common.Address) (account, error) {
	acc := account{Balance: new(big.Int)}

	data := b.Get(accountKey(addr))
	if data == nil {
		return acc, nil
	}

	err := rlp.DecodeBytes(data, &acc)
	if err != nil {
		return acc, xerrors.Errorf("failed to decode account: %v", err)
	}

	return acc, nil
}

func writeAccount(b kv.Bucket, addr common.Address, acc account) error {
	data, err := rlp.EncodeToBytes(acc)
	if err != nil {
		return xerrors.Errorf("failed to encode account: %v", err)
	}

	return b.Set(accountKey(addr), data)
}
