// Package controller implements the initializer of the local ledger. It opens
// the database, the ledger and the wallet of the configuration, and defines
// the commands to manage the accounts.
//
// Documentation Last Review: 15.10.2026
//
package controller

import (
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"go.dedis.ch/ballot"
	"go.dedis.ch/ballot/cli"
	"go.dedis.ch/ballot/cli/node"
	"go.dedis.ch/ballot/config"
	"go.dedis.ch/ballot/contract"
	"go.dedis.ch/ballot/core/store/kv"
	"go.dedis.ch/ballot/ledger"
	"go.dedis.ch/ballot/ledger/local"
	"go.dedis.ch/ballot/ledger/wallet"
	"go.dedis.ch/ballot/offchain"
	"golang.org/x/xerrors"
)

// databases are the databases opened by the controller, closed when it stops.
type databases []kv.DB

// miniController is the initializer of the local ledger.
//
// - implements node.Initializer
type miniController struct{}

// NewController returns the initializer of the local ledger.
func NewController() node.Initializer {
	return miniController{}
}

// SetCommands implements node.Initializer.
func (miniController) SetCommands(builder node.Builder) {
	cmd := builder.SetCommand("ledger")
	cmd.SetDescription("manage the local ledger")

	sub := cmd.SetSubCommand("fund")
	sub.SetDescription("credit an account of the local ledger")
	sub.SetFlags(
		cli.StringFlag{
			Name:  "address",
			Usage: "account to credit, the wallet by default",
		},
		cli.StringFlag{
			Name:  "amount",
			Usage: "amount to credit, the configured funding by default",
		},
	)
	sub.SetAction(builder.MakeAction(fundAction{}))

	sub = cmd.SetSubCommand("balance")
	sub.SetDescription("print the balance and the nonce of an account")
	sub.SetFlags(cli.StringFlag{
		Name:  "address",
		Usage: "account to inspect, the wallet by default",
	})
	sub.SetAction(builder.MakeAction(balanceAction{}))

	sub = cmd.SetSubCommand("metadata")
	sub.SetDescription("import the descriptive metadata of elections")
	sub.SetFlags(cli.PathFlag{
		Name:     "file",
		Usage:    "YAML document with the list of metadata",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(metadataAction{}))

	cmd = builder.SetCommand("wallet")
	cmd.SetDescription("manage the signing key")

	sub = cmd.SetSubCommand("new")
	sub.SetDescription("generate a key in the configured key file")
	sub.SetAction(builder.MakeAction(newWalletAction{}))
}

// OnStart implements node.Initializer. It opens the ledger of the
// configuration and, when a key is configured, the wallet.
func (m miniController) OnStart(flags cli.Flags, inj node.Injector) error {
	var cfg config.Config
	err := inj.Resolve(&cfg)
	if err != nil {
		return xerrors.Errorf("failed to resolve config: %v", err)
	}

	err = m.start(cfg, inj)
	if err != nil {
		// The databases opened so far are closed as the controller is not
		// stopped when it fails to start.
		m.OnStop(inj)

		return err
	}

	return nil
}

func (miniController) start(cfg config.Config, inj node.Injector) error {
	db, err := open(cfg.Ledger.Path)
	if err != nil {
		return err
	}

	dbs := databases{db}
	inj.Inject(dbs)

	opts := []local.Option{}

	if cfg.Ledger.Deployer != "" {
		opts = append(opts, local.WithDeployer(common.HexToAddress(cfg.Ledger.Deployer)))
	}

	lg, err := local.NewLedger(db, opts...)
	if err != nil {
		return xerrors.Errorf("failed to create ledger: %v", err)
	}

	inj.Inject(lg)
	inj.Inject(contract.NewClient(lg.Contract(), lg))

	metaDB := db

	if cfg.Offchain.Path != "" && cfg.Offchain.Path != cfg.Ledger.Path {
		metaDB, err = open(cfg.Offchain.Path)
		if err != nil {
			return err
		}

		inj.Inject(append(dbs, metaDB))
	}

	inj.Inject(offchain.NewDiskStore(metaDB))

	// Every question of the command shares the same prompt on the terminal.
	var term node.Terminal
	termErr := inj.Resolve(&term)
	if termErr == nil {
		inj.Inject(wallet.NewPrompt(term.In, term.Out))
	}

	key, err := cfg.Key()
	if err != nil {
		// Commands that do not sign still work without a key.
		ballot.Logger.Debug().Err(err).Msg("wallet not available")
		return nil
	}

	price, err := cfg.GasPrice()
	if err != nil {
		return xerrors.Errorf("invalid gas price: %v", err)
	}

	var approver wallet.Approver = wallet.AutoApprove

	if !cfg.Wallet.AutoApprove {
		if termErr != nil {
			return xerrors.Errorf("failed to resolve terminal: %v", termErr)
		}

		approver, err = Prompt(inj)
		if err != nil {
			return err
		}
	}

	inj.Inject(wallet.NewWallet(key, lg, wallet.WithApprover(approver), wallet.WithGasPrice(price)))

	return nil
}

// OnStop implements node.Initializer. It closes the databases.
func (miniController) OnStop(inj node.Injector) error {
	var dbs databases
	err := inj.Resolve(&dbs)
	if err != nil {
		return xerrors.Errorf("failed to resolve databases: %v", err)
	}

	for _, db := range dbs {
		err = db.Close()
		if err != nil {
			return xerrors.Errorf("failed to close db: %v", err)
		}
	}

	return nil
}

// Signer returns the wallet of the configuration, or an error explaining how
// to create one.
func Signer(inj node.Injector) (*wallet.Wallet, error) {
	var w *wallet.Wallet
	err := inj.Resolve(&w)
	if err != nil {
		return nil, xerrors.New("no wallet configured, run 'wallet new' first")
	}

	return w, nil
}

// Prompt returns the prompt shared by the questions asked on the terminal.
func Prompt(inj node.Injector) (*wallet.Prompt, error) {
	var prompt *wallet.Prompt
	err := inj.Resolve(&prompt)
	if err != nil {
		return nil, xerrors.Errorf("failed to resolve prompt: %v", err)
	}

	return prompt, nil
}

// Backend returns the backend of the ledger.
func Backend(inj node.Injector) (ledger.Backend, error) {
	var lg *local.Ledger
	err := inj.Resolve(&lg)
	if err != nil {
		return nil, xerrors.Errorf("failed to resolve ledger: %v", err)
	}

	return lg, nil
}

func open(path string) (kv.DB, error) {
	err := os.MkdirAll(filepath.Dir(path), 0700)
	if err != nil {
		return nil, xerrors.Errorf("couldn't make path: %v", err)
	}

	db, err := kv.New(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open database: %v", err)
	}

	return db, nil
}
