package controller

import (
	"fmt"
	"io/ioutil"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.dedis.ch/ballot/cli/node"
	"go.dedis.ch/ballot/config"
	"go.dedis.ch/ballot/contract/marshal"
	"go.dedis.ch/ballot/ledger/local"
	"go.dedis.ch/ballot/ledger/wallet"
	"go.dedis.ch/ballot/offchain"
	"golang.org/x/xerrors"
)

// fundAction is an action to credit an account.
//
// - implements node.ActionTemplate
type fundAction struct{}

// Execute implements node.ActionTemplate.
func (fundAction) Execute(ctx node.Context) error {
	var cfg config.Config
	err := ctx.Injector.Resolve(&cfg)
	if err != nil {
		return xerrors.Errorf("failed to resolve config: %v", err)
	}

	var lg *local.Ledger
	err = ctx.Injector.Resolve(&lg)
	if err != nil {
		return xerrors.Errorf("failed to resolve ledger: %v", err)
	}

	addr, err := account(ctx)
	if err != nil {
		return err
	}

	var amount *big.Int

	value := ctx.Flags.String("amount")
	if value != "" {
		v, ok := new(big.Int).SetString(value, 10)
		if !ok {
			return xerrors.Errorf("invalid amount '%s'", value)
		}

		amount = v
	} else {
		amount, err = cfg.Funding()
		if err != nil {
			return xerrors.Errorf("no funding configured: %v", err)
		}
	}

	err = lg.Fund(addr, amount)
	if err != nil {
		return xerrors.Errorf("failed to fund: %v", err)
	}

	fmt.Fprintf(ctx.Out, "credited %v to %s\n", amount, addr.Hex())

	return nil
}

// balanceAction is an action to print the state of an account.
//
// - implements node.ActionTemplate
type balanceAction struct{}

// Execute implements node.ActionTemplate.
func (balanceAction) Execute(ctx node.Context) error {
	var lg *local.Ledger
	err := ctx.Injector.Resolve(&lg)
	if err != nil {
		return xerrors.Errorf("failed to resolve ledger: %v", err)
	}

	addr, err := account(ctx)
	if err != nil {
		return err
	}

	balance, err := lg.Balance(addr)
	if err != nil {
		return xerrors.Errorf("failed to read balance: %v", err)
	}

	nonce, err := lg.Nonce(ctx.Ctx, addr)
	if err != nil {
		return xerrors.Errorf("failed to read nonce: %v", err)
	}

	fmt.Fprintf(ctx.Out, "account: %s\nbalance: %v\nnonce: %d\ncontract: %s\n",
		addr.Hex(), balance, nonce, lg.Contract().Hex())

	return nil
}

// metadataAction is an action to import the metadata of elections.
//
// - implements node.ActionTemplate
type metadataAction struct{}

// Execute implements node.ActionTemplate.
func (metadataAction) Execute(ctx node.Context) error {
	var store offchain.DiskStore
	err := ctx.Injector.Resolve(&store)
	if err != nil {
		return xerrors.Errorf("failed to resolve store: %v", err)
	}

	data, err := ioutil.ReadFile(ctx.Flags.Path("file"))
	if err != nil {
		return xerrors.Errorf("failed to read file: %v", err)
	}

	entries, err := offchain.LoadYAML(data)
	if err != nil {
		return err
	}

	err = store.Import(entries)
	if err != nil {
		return xerrors.Errorf("failed to import: %v", err)
	}

	fmt.Fprintf(ctx.Out, "imported %d entries\n", len(entries))

	return nil
}

// newWalletAction is an action to generate a key.
//
// - implements node.ActionTemplate
type newWalletAction struct{}

// Execute implements node.ActionTemplate. An existing key file is never
// overwritten.
func (newWalletAction) Execute(ctx node.Context) error {
	var cfg config.Config
	err := ctx.Injector.Resolve(&cfg)
	if err != nil {
		return xerrors.Errorf("failed to resolve config: %v", err)
	}

	path := cfg.Wallet.KeyFile
	if path == "" {
		return xerrors.New("no key file configured")
	}

	_, err = os.Stat(path)
	if err == nil {
		return xerrors.Errorf("key file '%s' already exists", path)
	}

	key, err := wallet.GenerateKey()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(path), 0700)
	if err != nil {
		return xerrors.Errorf("couldn't make path: %v", err)
	}

	err = ioutil.WriteFile(path, []byte(wallet.ExportKey(key)+"\n"), 0600)
	if err != nil {
		return xerrors.Errorf("failed to write key: %v", err)
	}

	fmt.Fprintf(ctx.Out, "address: %s\nkey file: %s\n",
		crypto.PubkeyToAddress(key.PublicKey).Hex(), path)

	return nil
}

// account returns the account of the address flag, or the one of the wallet.
func account(ctx node.Context) (common.Address, error) {
	value := strings.TrimSpace(ctx.Flags.String("address"))
	if value != "" {
		addr, ok := marshal.Address(value)
		if !ok {
			return common.Address{}, xerrors.Errorf("invalid address '%s'", value)
		}

		return addr, nil
	}

	w, err := Signer(ctx.Injector)
	if err != nil {
		return common.Address{}, err
	}

	return w.Address(), nil
}
