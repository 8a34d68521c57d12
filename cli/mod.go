// Package cli defines the Builder type, which allows one to build the command
// line client from independent groups of commands.
//
//	cmd := builder.SetCommand("election")
//	sub := cmd.SetSubCommand("show")
//	sub.SetDescription("show the summary of an election")
//	sub.SetFlags(cli.ElectionFlag{Usage: "identifier of the election"})
//	sub.SetAction(func(flags Flags) error {
//		fmt.Printf("election %s\n", flags.String(cli.ElectionFlagName))
//		return nil
//	})
//
//	builder.Build().Run(os.Args)
//
// Documentation Last Review: 15.10.2026
//
package cli

// Builder is an application builder interface. One can set properties of an
// application then build it.
type Builder interface {
	// SetCommand creates a new command with the given name and returns its
	// builder.
	SetCommand(name string) CommandBuilder

	// Build returns the application.
	Build() Application
}

// Application is the main interface to run the CLI.
type Application interface {
	Run(arguments []string) error
}

// CommandBuilder is a command builder interface. One can set properties of a
// specific command like its name and description and what it should do when
// invoked.
type CommandBuilder interface {
	// SetDescription sets the value of the description for this command.
	SetDescription(value string)

	// SetFlags sets the flags for this command.
	SetFlags(...Flag)

	// SetAction sets the action for this command.
	SetAction(Action)

	// SetSubCommand creates a subcommand for this command.
	SetSubCommand(name string) CommandBuilder
}

// Action is a function that will be executed when a command is invoked.
type Action func(Flags) error

// Flag is an identifier for the definition of the flags.
type Flag interface {
	Flag()
}

// Flags provides the primitives to an action to read the flags. A flag of a
// parent command is visible to its subcommands.
type Flags interface {
	String(name string) string

	StringSlice(name string) []string

	Path(name string) string

	Bool(name string) bool

	// IsSet returns true if the flag has been set on the command line.
	IsSet(name string) bool
}
