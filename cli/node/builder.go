// This file contains the implementation of a CLI builder.
//
// Documentation Last Review: 15.10.2026
//

package node

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.dedis.ch/ballot"
	"go.dedis.ch/ballot/cli"
	"go.dedis.ch/ballot/cli/ucli"
	"golang.org/x/xerrors"
)

// CLIBuilder is an application builder that runs the actions with the
// components of the initializers.
//
// - implements node.Builder
// - implements cli.Builder
type CLIBuilder struct {
	cli.Builder

	inits []Initializer
	in    io.Reader
	out   io.Writer
}

// NewBuilder returns a new builder that reads and writes on the standard
// input and output.
func NewBuilder(inits ...Initializer) *CLIBuilder {
	return NewBuilderWithCfg(nil, nil, inits...)
}

// NewBuilderWithCfg returns a new builder with a specific input and output.
func NewBuilderWithCfg(in io.Reader, out io.Writer, inits ...Initializer) *CLIBuilder {
	if in == nil {
		in = os.Stdin
	}

	if out == nil {
		out = os.Stdout
	}

	builder := ucli.NewBuilder("ballotctl", nil,
		cli.PathFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to the configuration file",
			EnvVars: []string{"BALLOT_CONFIG"},
			Value:   defaultConfig(),
		},
		cli.BoolFlag{
			Name:    "verbose",
			Usage:   "print the raw errors of the failed transactions",
			EnvVars: []string{"BALLOT_VERBOSE"},
		},
		cli.StringFlag{
			Name:    "metrics",
			Usage:   "address of the Prometheus endpoint while the command runs",
			EnvVars: []string{"BALLOT_METRICS"},
		},
	)

	builder.SetUsage("draft, create and run elections on the ledger")

	return &CLIBuilder{
		Builder: builder,
		inits:   inits,
		in:      in,
		out:     out,
	}
}

// MakeAction implements node.Builder. It creates a CLI action that starts the
// initializers, executes the template and stops the initializers.
func (b *CLIBuilder) MakeAction(tmpl ActionTemplate) cli.Action {
	return func(flags cli.Flags) error {
		injector := NewInjector()
		injector.Inject(Terminal{In: b.in, Out: b.out})

		started := 0

		// Initializers are stopped in reverse order so that high level
		// components are stopped before lower level ones.
		defer func() {
			for i := started - 1; i >= 0; i-- {
				err := b.inits[i].OnStop(injector)
				if err != nil {
					ballot.Logger.Warn().Err(err).Msg("couldn't stop controller")
				}
			}
		}()

		for _, init := range b.inits {
			err := init.OnStart(flags, injector)
			if err != nil {
				return xerrors.Errorf("couldn't run the controller: %v", err)
			}

			started++
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return tmpl.Execute(Context{
			Ctx:      ctx,
			Injector: injector,
			Flags:    flags,
			In:       b.in,
			Out:      b.out,
		})
	}
}

// Build implements cli.Builder. It returns the application.
func (b *CLIBuilder) Build() cli.Application {
	for _, controller := range b.inits {
		controller.SetCommands(b)
	}

	return b.Builder.Build()
}

func defaultConfig() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yml"
	}

	return filepath.Join(home, ".ballot", "config.yml")
}
