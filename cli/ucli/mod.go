// Package ucli implements the cli builder with the urfave/cli library.
//
// The identifiers of elections and voters are declared with dedicated flags,
// which are checked before the action of the command runs, so that a
// malformed identifier never reaches a component.
//
// Documentation Last Review: 15.10.2026
//
package ucli

import (
	"fmt"

	urfave "github.com/urfave/cli/v2"
	"go.dedis.ch/ballot/cli"
)

// Builder is a cli builder producing a urfave/cli application.
//
// - implements cli.Builder
type Builder struct {
	name     string
	usage    string
	action   cli.Action
	flags    []cli.Flag
	commands []*cmdBuilder
}

// NewBuilder returns a new builder. The action runs when no command is given
// and can be nil. The flags are global and visible to every command.
func NewBuilder(name string, action cli.Action, flags ...cli.Flag) *Builder {
	return &Builder{
		name:   name,
		action: action,
		flags:  flags,
	}
}

// SetUsage sets the one-line description of the application.
func (b *Builder) SetUsage(value string) {
	b.usage = value
}

// SetCommand implements cli.Builder.
func (b *Builder) SetCommand(name string) cli.CommandBuilder {
	cmd := &cmdBuilder{name: name}
	b.commands = append(b.commands, cmd)

	return cmd
}

// Build implements cli.Builder.
func (b *Builder) Build() cli.Application {
	app := &urfave.App{
		Name:                 b.name,
		Usage:                b.usage,
		HideVersion:          true,
		EnableBashCompletion: true,
		Flags:                buildFlags(b.flags),
		Action:               makeAction(b.action, checkedFlags(b.flags)),
		Commands:             buildCommands(b.commands),
	}

	app.Setup()

	return app
}

// cmdBuilder collects the definition of a command.
//
// - implements cli.CommandBuilder
type cmdBuilder struct {
	name        string
	description string
	action      cli.Action
	flags       []cli.Flag
	subcommands []*cmdBuilder
}

// SetDescription implements cli.CommandBuilder.
func (b *cmdBuilder) SetDescription(value string) {
	b.description = value
}

// SetFlags implements cli.CommandBuilder.
func (b *cmdBuilder) SetFlags(flags ...cli.Flag) {
	b.flags = flags
}

// SetAction implements cli.CommandBuilder.
func (b *cmdBuilder) SetAction(action cli.Action) {
	b.action = action
}

// SetSubCommand implements cli.CommandBuilder.
func (b *cmdBuilder) SetSubCommand(name string) cli.CommandBuilder {
	sub := &cmdBuilder{name: name}
	b.subcommands = append(b.subcommands, sub)

	return sub
}

func buildCommands(cmds []*cmdBuilder) []*urfave.Command {
	out := make([]*urfave.Command, len(cmds))

	for i, cmd := range cmds {
		out[i] = &urfave.Command{
			Name:        cmd.name,
			Usage:       cmd.description,
			Flags:       buildFlags(cmd.flags),
			Action:      makeAction(cmd.action, checkedFlags(cmd.flags)),
			Subcommands: buildCommands(cmd.subcommands),
		}
	}

	return out
}

// buildFlags converts the definitions into urfave/cli flags. It panics for a
// definition it does not know, which is a programming error.
func buildFlags(flags []cli.Flag) []urfave.Flag {
	out := make([]urfave.Flag, len(flags))

	for i, f := range flags {
		switch e := f.(type) {
		case cli.StringFlag:
			out[i] = &urfave.StringFlag{
				Name:     e.Name,
				Aliases:  e.Aliases,
				Usage:    e.Usage,
				EnvVars:  e.EnvVars,
				Required: e.Required,
				Value:    e.Value,
			}
		case cli.PathFlag:
			out[i] = &urfave.PathFlag{
				Name:      e.Name,
				Aliases:   e.Aliases,
				Usage:     e.Usage,
				EnvVars:   e.EnvVars,
				Required:  e.Required,
				TakesFile: true,
				Value:     e.Value,
			}
		case cli.StringSliceFlag:
			out[i] = &urfave.StringSliceFlag{
				Name:     e.Name,
				Usage:    e.Usage,
				Required: e.Required,
				Value:    urfave.NewStringSlice(e.Value...),
			}
		case cli.BoolFlag:
			out[i] = &urfave.BoolFlag{
				Name:    e.Name,
				Aliases: e.Aliases,
				Usage:   e.Usage,
				EnvVars: e.EnvVars,
				Value:   e.Value,
			}
		case cli.ElectionFlag:
			out[i] = &urfave.StringFlag{
				Name:     cli.ElectionFlagName,
				Aliases:  []string{"e"},
				Usage:    e.Usage,
				Required: true,
			}
		case cli.VoterFlag:
			if e.Repeated {
				out[i] = &urfave.StringSliceFlag{
					Name:     cli.VoterFlagName,
					Usage:    e.Usage,
					Required: e.Required,
				}
			} else {
				out[i] = &urfave.StringFlag{
					Name:     cli.VoterFlagName,
					Usage:    e.Usage,
					Required: e.Required,
				}
			}
		default:
			panic(fmt.Sprintf("flag type '%T' not supported", f))
		}
	}

	return out
}

func checkedFlags(flags []cli.Flag) []cli.CheckedFlag {
	var out []cli.CheckedFlag

	for _, f := range flags {
		checked, ok := f.(cli.CheckedFlag)
		if ok {
			out = append(out, checked)
		}
	}

	return out
}

// makeAction returns the urfave/cli form of the action, which first checks
// the values of the flags.
func makeAction(action cli.Action, checks []cli.CheckedFlag) urfave.ActionFunc {
	if action == nil {
		return nil
	}

	return func(ctx *urfave.Context) error {
		for _, flag := range checks {
			err := flag.Check(ctx)
			if err != nil {
				return err
			}
		}

		return action(ctx)
	}
}
