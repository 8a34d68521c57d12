// Package ledger defines the abstractions to reach the ledger hosting the
// election contract.
//
// A call is first signed by an agent, which may involve a human approving it,
// then sent to a backend that includes it and eventually returns a receipt.
//
// Documentation Last Review: 15.10.2026
//
package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/xerrors"
)

// ErrDeclined is returned by an agent when the call is not approved.
var ErrDeclined = xerrors.New("declined by the signing agent")

// ErrInsufficientFunds is returned by a backend when the sender cannot pay
// for the gas of a transaction.
var ErrInsufficientFunds = xerrors.New("insufficient funds for gas * price")

// ErrNonce is returned by a backend when the nonce of a transaction is not
// the next one of the sender.
var ErrNonce = xerrors.New("invalid nonce")

// Call is a contract call that is not yet signed.
type Call struct {
	// Method is the name of the contract method, only used for display.
	Method string
	To     common.Address
	Data   []byte
	Gas    uint64
}

// Transaction is a call signed by an agent.
type Transaction struct {
	Nonce     uint64
	GasPrice  *big.Int
	Gas       uint64
	To        common.Address
	Data      []byte
	Signature []byte
}

// Cost returns the maximum amount the sender pays for the transaction.
func (tx Transaction) Cost() *big.Int {
	price := tx.GasPrice
	if price == nil {
		price = new(big.Int)
	}

	return new(big.Int).Mul(price, new(big.Int).SetUint64(tx.Gas))
}

// Digest returns the hash signed by the sender.
func (tx Transaction) Digest() common.Hash {
	data, err := rlp.EncodeToBytes([]interface{}{
		tx.Nonce, bigOrZero(tx.GasPrice), tx.Gas, tx.To, tx.Data,
	})
	if err != nil {
		// Every field is encodable.
		panic(err)
	}

	return crypto.Keccak256Hash(data)
}

// Hash returns the identifier of the signed transaction.
func (tx Transaction) Hash() common.Hash {
	data, err := rlp.EncodeToBytes([]interface{}{
		tx.Nonce, bigOrZero(tx.GasPrice), tx.Gas, tx.To, tx.Data, tx.Signature,
	})
	if err != nil {
		panic(err)
	}

	return crypto.Keccak256Hash(data)
}

// Sender recovers the address that signed the transaction.
func (tx Transaction) Sender() (common.Address, error) {
	digest := tx.Digest()

	pub, err := crypto.SigToPub(digest[:], tx.Signature)
	if err != nil {
		return common.Address{}, xerrors.Errorf("failed to recover signer: %v", err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// The status of a receipt.
const (
	ReceiptFailed  uint64 = 0
	ReceiptSuccess uint64 = 1
)

// Receipt is the outcome of an included transaction.
type Receipt struct {
	Hash    common.Hash
	Status  uint64
	GasUsed uint64
	// Revert holds the revert data when the transaction failed.
	Revert []byte
}

// Err returns nil if the transaction succeeded, otherwise an error carrying
// the reason of the revert.
func (r Receipt) Err() error {
	if r.Status == ReceiptSuccess {
		return nil
	}

	reason, err := abi.UnpackRevert(r.Revert)
	if err != nil {
		reason = ""
	}

	return RevertError{Reason: reason}
}

// RevertError is the error of a transaction rejected by the contract.
type RevertError struct {
	Reason string
}

// Error implements error.
func (e RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}

	return "execution reverted: " + e.Reason
}

// Agent signs calls on behalf of an account.
type Agent interface {
	// Address returns the account of the agent.
	Address() common.Address

	// Sign returns the signed transaction of the call, or ErrDeclined if the
	// call is not approved. It blocks until a decision is made or the
	// context is done.
	Sign(ctx context.Context, call Call) (Transaction, error)
}

// Syncer is implemented by the agents that manage a nonce. A sync is needed
// when a transaction has been refused by the backend.
type Syncer interface {
	Sync(ctx context.Context) error
}

// Reader provides the read-only queries of the contract state.
type Reader interface {
	// Query executes the call without a transaction and returns the output.
	Query(ctx context.Context, call Call) ([]byte, error)
}

// Backend is the ledger hosting the contract.
type Backend interface {
	Reader

	// Send submits the transaction and returns its hash.
	Send(ctx context.Context, tx Transaction) (common.Hash, error)

	// Await blocks until the transaction is included, or the context is
	// done, and returns its receipt.
	Await(ctx context.Context, hash common.Hash) (Receipt, error)

	// Nonce returns the next nonce of the account.
	Nonce(ctx context.Context, addr common.Address) (uint64, error)
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}

	return v
}
