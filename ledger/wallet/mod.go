// Package wallet implements a signing agent holding a secp256k1 key.
//
// The wallet manages the nonce of its account by itself. It starts from the
// nonce of the backend and increments it for each signed transaction, except
// when a transaction is refused by the backend, in which case the wallet
// needs to be synchronized again.
//
// Documentation Last Review: 15.10.2026
//
package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"go.dedis.ch/ballot"
	"go.dedis.ch/ballot/ledger"
	"golang.org/x/xerrors"
)

// DefaultGasPrice is the price per unit of gas when none is configured.
var DefaultGasPrice = big.NewInt(1)

// NonceClient is the interface the wallet is using to get the nonce of its
// account.
type NonceClient interface {
	Nonce(ctx context.Context, addr common.Address) (uint64, error)
}

// Request is the description of a call presented for approval.
type Request struct {
	Call ledger.Call
	From common.Address
	// Cost is the maximum amount the call can spend.
	Cost *big.Int
}

// Approver decides if a call can be signed. It may block until a human
// answers.
type Approver interface {
	Approve(ctx context.Context, req Request) (bool, error)
}

// ApproverFunc is an adapter to use a function as an approver.
type ApproverFunc func(ctx context.Context, req Request) (bool, error)

// Approve implements wallet.Approver.
func (fn ApproverFunc) Approve(ctx context.Context, req Request) (bool, error) {
	return fn(ctx, req)
}

// AutoApprove is an approver that approves every call.
var AutoApprove = ApproverFunc(func(context.Context, Request) (bool, error) {
	return true, nil
})

// Wallet is a signing agent.
//
// - implements ledger.Agent
// - implements ledger.Syncer
type Wallet struct {
	sync.Mutex

	key      *ecdsa.PrivateKey
	addr     common.Address
	client   NonceClient
	approver Approver
	gasPrice *big.Int
	nonce    uint64
	synced   bool
	logger   zerolog.Logger
}

// Option is the type of options to create a wallet.
type Option func(*Wallet)

// WithApprover sets the approval policy. The default approves every call.
func WithApprover(a Approver) Option {
	return func(w *Wallet) {
		w.approver = a
	}
}

// WithGasPrice sets the price per unit of gas of the transactions.
func WithGasPrice(price *big.Int) Option {
	return func(w *Wallet) {
		w.gasPrice = new(big.Int).Set(price)
	}
}

// NewWallet creates a wallet for the key. The nonce is synchronized with the
// client before the first transaction.
func NewWallet(key *ecdsa.PrivateKey, client NonceClient, opts ...Option) *Wallet {
	w := &Wallet{
		key:      key,
		addr:     crypto.PubkeyToAddress(key.PublicKey),
		client:   client,
		approver: AutoApprove,
		gasPrice: DefaultGasPrice,
	}

	for _, opt := range opts {
		opt(w)
	}

	w.logger = ballot.Logger.With().Str("account", w.addr.Hex()).Logger()

	return w
}

// Address implements ledger.Agent. It returns the address of the key.
func (w *Wallet) Address() common.Address {
	return w.addr
}

// Sign implements ledger.Agent. It asks the approver and signs the call with
// the next nonce.
func (w *Wallet) Sign(ctx context.Context, call ledger.Call) (ledger.Transaction, error) {
	tx := ledger.Transaction{
		GasPrice: new(big.Int).Set(w.gasPrice),
		Gas:      call.Gas,
		To:       call.To,
		Data:     append([]byte{}, call.Data...),
	}

	req := Request{Call: call, From: w.addr, Cost: tx.Cost()}

	approved, err := w.approver.Approve(ctx, req)
	if err != nil {
		return tx, xerrors.Errorf("failed to get approval: %v", err)
	}

	if !approved {
		w.logger.Info().Str("method", call.Method).Msg("call declined")
		return tx, ledger.ErrDeclined
	}

	w.Lock()
	defer w.Unlock()

	if !w.synced {
		err = w.sync(ctx)
		if err != nil {
			return tx, xerrors.Errorf("failed to sync: %v", err)
		}
	}

	tx.Nonce = w.nonce

	digest := tx.Digest()

	tx.Signature, err = crypto.Sign(digest[:], w.key)
	if err != nil {
		return tx, xerrors.Errorf("failed to sign: %v", err)
	}

	w.nonce++

	return tx, nil
}

// Sync implements ledger.Syncer. It fetches the latest nonce of the account
// to create valid transactions.
func (w *Wallet) Sync(ctx context.Context) error {
	w.Lock()
	defer w.Unlock()

	return w.sync(ctx)
}

func (w *Wallet) sync(ctx context.Context) error {
	nonce, err := w.client.Nonce(ctx, w.addr)
	if err != nil {
		return xerrors.Errorf("client: %v", err)
	}

	w.nonce = nonce
	w.synced = true

	w.logger.Debug().Uint64("nonce", nonce).Msg("wallet synchronized")

	return nil
}

// GenerateKey returns a new random key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, xerrors.Errorf("failed to generate key: %v", err)
	}

	return key, nil
}

// LoadKey decodes a hexadecimal private key, with or without the 0x prefix.
func LoadKey(value string) (*ecdsa.PrivateKey, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "0x")

	key, err := crypto.HexToECDSA(value)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode private key: %v", err)
	}

	return key, nil
}

// ExportKey returns the hexadecimal encoding of the private key.
func ExportKey(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(crypto.FromECDSA(key))
}
