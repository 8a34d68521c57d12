package controller

import (
	"bytes"
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/ballot/cli/node"
	"go.dedis.ch/ballot/config"
	"go.dedis.ch/ballot/internal/testing/fake"
	"go.dedis.ch/ballot/offchain"
)

const testKey = "c87509a1c067bbde78beb793e6fa76530b6382a4c0241e5e4a9ec0a0f44dc0d3"

func TestMiniController_SetCommands(t *testing.T) {
	builder := node.NewBuilder()

	NewController().SetCommands(builder)
}

func TestMiniController_OnStart(t *testing.T) {
	dir := t.TempDir()

	inj := node.NewInjector()
	inj.Inject(config.Default(dir))

	err := NewController().OnStart(fake.Flags{}, inj)
	require.NoError(t, err)

	lg, err := Backend(inj)
	require.NoError(t, err)
	require.NotNil(t, lg)

	var store offchain.DiskStore
	require.NoError(t, inj.Resolve(&store))

	// The key file does not exist yet.
	_, err = Signer(inj)
	require.EqualError(t, err, "no wallet configured, run 'wallet new' first")

	// Without a terminal, nothing can be asked to the user.
	_, err = Prompt(inj)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to resolve prompt: ")

	require.NoError(t, NewController().OnStop(inj))
}

func TestMiniController_Wallet(t *testing.T) {
	dir := t.TempDir()

	cfg := config.Default(dir)
	cfg.Wallet.Key = testKey
	cfg.Offchain.Path = filepath.Join(dir, "offchain.db")

	inj := node.NewInjector()
	inj.Inject(cfg)
	inj.Inject(node.Terminal{In: new(bytes.Buffer), Out: new(bytes.Buffer)})

	err := NewController().OnStart(fake.Flags{}, inj)
	require.NoError(t, err)

	w, err := Signer(inj)
	require.NoError(t, err)

	prompt, err := Prompt(inj)
	require.NoError(t, err)
	require.NotNil(t, prompt)

	var dbs databases
	require.NoError(t, inj.Resolve(&dbs))
	require.Len(t, dbs, 2)

	ctx := node.Context{Ctx: context.Background(), Injector: inj, Flags: fake.Flags{}}

	addr, err := account(ctx)
	require.NoError(t, err)
	require.Equal(t, w.Address(), addr)

	ctx.Flags = fake.Flags{"address": "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"}

	addr, err = account(ctx)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"), addr)

	ctx.Flags = fake.Flags{"address": "0x12"}

	_, err = account(ctx)
	require.EqualError(t, err, "invalid address '0x12'")

	require.NoError(t, NewController().OnStop(inj))
}

func TestMiniController_OnStartFailures(t *testing.T) {
	err := NewController().OnStart(fake.Flags{}, node.NewInjector())
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to resolve config: ")

	dir := t.TempDir()

	blocker := filepath.Join(dir, "file")
	require.NoError(t, ioutil.WriteFile(blocker, nil, 0600))

	cfg := config.Default(dir)
	cfg.Ledger.Path = filepath.Join(blocker, "ledger.db")

	inj := node.NewInjector()
	inj.Inject(cfg)

	err = NewController().OnStart(fake.Flags{}, inj)
	require.Error(t, err)
	require.Contains(t, err.Error(), "couldn't make path: ")

	// Without a terminal the wallet cannot ask for approvals, and the ledger
	// opened so far is closed again.
	cfg = config.Default(dir)
	cfg.Wallet.Key = testKey

	inj = node.NewInjector()
	inj.Inject(cfg)

	err = NewController().OnStart(fake.Flags{}, inj)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to resolve terminal: ")

	inj = node.NewInjector()
	inj.Inject(cfg)
	inj.Inject(node.Terminal{In: new(bytes.Buffer), Out: new(bytes.Buffer)})

	require.NoError(t, NewController().OnStart(fake.Flags{}, inj))
	require.NoError(t, NewController().OnStop(inj))

	err = NewController().OnStop(node.NewInjector())
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to resolve databases: ")
}
