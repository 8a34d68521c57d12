// Package controller implements the initializer of the election commands. The
// commands check a draft, create elections and drive the polling operations
// on the ledger opened by the ledger initializer.
//
// Documentation Last Review: 15.10.2026
//
package controller

import (
	"go.dedis.ch/ballot/cli"
	"go.dedis.ch/ballot/cli/node"
)

// miniController is the initializer of the election commands.
//
// - implements node.Initializer
type miniController struct{}

// NewController returns the initializer of the election commands.
func NewController() node.Initializer {
	return miniController{}
}

// SetCommands implements node.Initializer.
func (miniController) SetCommands(builder node.Builder) {
	electionFlag := cli.ElectionFlag{Usage: "identifier of the election"}

	voterFlag := cli.VoterFlag{
		Usage:    "identifier of the voter",
		Required: true,
	}

	nameFlag := cli.StringFlag{
		Name:     "name",
		Usage:    "name of the voter, as in the register",
		Required: true,
	}

	cmd := builder.SetCommand("draft")
	cmd.SetDescription("work on election drafts")

	sub := cmd.SetSubCommand("check")
	sub.SetDescription("validate a draft and print the parameters of its creation")
	sub.SetFlags(
		cli.PathFlag{
			Name:     "file",
			Usage:    "YAML document of the draft",
			Required: true,
		},
		cli.BoolFlag{
			Name:  "prune",
			Usage: "remove the candidates of unknown categories",
		},
	)
	sub.SetAction(builder.MakeAction(checkAction{}))

	cmd = builder.SetCommand("election")
	cmd.SetDescription("manage the elections")

	sub = cmd.SetSubCommand("create")
	sub.SetDescription("create the election of a draft")
	sub.SetFlags(
		cli.PathFlag{
			Name:     "file",
			Usage:    "YAML document of the draft",
			Required: true,
		},
		cli.BoolFlag{
			Name:  "prune",
			Usage: "remove the candidates of unknown categories",
		},
	)
	sub.SetAction(builder.MakeAction(createAction{}))

	sub = cmd.SetSubCommand("show")
	sub.SetDescription("print the summary of an election")
	sub.SetFlags(electionFlag, cli.BoolFlag{
		Name:  "voters",
		Usage: "print the register of voters",
	})
	sub.SetAction(builder.MakeAction(showAction{}))

	sub = cmd.SetSubCommand("add-voters")
	sub.SetDescription("add voters to the register of an election")
	sub.SetFlags(electionFlag, cli.PathFlag{
		Name:     "file",
		Usage:    "YAML document with the list of voters",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(addVotersAction{}))

	cmd = builder.SetCommand("voter")
	cmd.SetDescription("perform the polling operations on voters")

	sub = cmd.SetSubCommand("accredit")
	sub.SetDescription("accredit one or several voters")
	sub.SetFlags(
		electionFlag,
		cli.VoterFlag{
			Usage:    "identifier of a voter, can be repeated",
			Repeated: true,
		},
		cli.PathFlag{
			Name:  "file",
			Usage: "file with one voter identifier per line",
		},
		cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "run a large batch without asking",
			EnvVars: []string{"BALLOT_ASSUME_YES"},
		},
	)
	sub.SetAction(builder.MakeAction(accreditAction{}))

	sub = cmd.SetSubCommand("validate")
	sub.SetDescription("validate an accredited voter")
	sub.SetFlags(electionFlag, voterFlag, nameFlag)
	sub.SetAction(builder.MakeAction(validateAction{}))

	cmd = builder.SetCommand("vote")
	cmd.SetDescription("record the votes")

	sub = cmd.SetSubCommand("cast")
	sub.SetDescription("cast the vote of a validated voter")
	sub.SetFlags(electionFlag, voterFlag, nameFlag, cli.StringSliceFlag{
		Name:     "candidate",
		Usage:    "candidate as category:name, can be repeated",
		Required: true,
	})
	sub.SetAction(builder.MakeAction(castAction{}))
}

// OnStart implements node.Initializer. The components are created by the
// actions, which know the draft.
func (miniController) OnStart(cli.Flags, node.Injector) error {
	return nil
}

// OnStop implements node.Initializer.
func (miniController) OnStop(node.Injector) error {
	return nil
}
