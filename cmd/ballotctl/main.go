// Package main implements the command line client of the election contract,
// backed by the local ledger.
//
//	ballotctl wallet new
//	ballotctl ledger fund
//	ballotctl draft check --file draft.yml
//	ballotctl election create --file draft.yml
//	ballotctl election show --election 1 --voters
//	ballotctl voter accredit --election 1 --id CSC/1 --id CSC/2
//	ballotctl vote cast --election 1 --id CSC/1 --name "Ada Obi"\
//	  --candidate "President:Jane Doe"
//
package main

import (
	"fmt"
	"io"
	"os"

	"go.dedis.ch/ballot/cli/node"
	configctrl "go.dedis.ch/ballot/config/controller"
	localctrl "go.dedis.ch/ballot/ledger/local/controller"
	submitctrl "go.dedis.ch/ballot/submit/controller"
)

type config struct {
	In  io.Reader
	Out io.Writer
}

func main() {
	err := run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	return runWithCfg(args, config{In: os.Stdin, Out: os.Stdout})
}

func runWithCfg(args []string, cfg config) error {
	// The order matters: the configuration is loaded first, then the ledger
	// that the election commands are using.
	builder := node.NewBuilderWithCfg(cfg.In, cfg.Out,
		configctrl.NewController(),
		localctrl.NewController(),
		submitctrl.NewController(),
	)

	app := builder.Build()

	return app.Run(args)
}
