// Package node defines the Builder type, which builds the command line client
// from a list of initializers.
//
// An initializer declares its commands and, every time a command runs, starts
// its components and injects them so that the actions of the other
// initializers can resolve them. The components are stopped in reverse order
// once the action returns. See the example.
//
// Documentation Last Review: 15.10.2026
//
package node

import (
	"context"
	"io"

	"go.dedis.ch/ballot/cli"
)

// Builder is the builder that will be provided to the initializers, which can
// create commands and actions.
type Builder interface {
	// SetCommand creates a new command and returns its builder.
	SetCommand(name string) cli.CommandBuilder

	// MakeAction creates a CLI action from a given template. The components of
	// the initializers are started before the template is executed.
	MakeAction(ActionTemplate) cli.Action
}

// ActionTemplate is an action executed with the components of the
// initializers.
type ActionTemplate interface {
	// Execute processes a command received from the CLI.
	Execute(Context) error
}

// Context is the context available to the action when being invoked. It
// provides the dependency injector alongside with the input and output.
type Context struct {
	// Ctx is done when the user interrupts the command.
	Ctx      context.Context
	Injector Injector
	Flags    cli.Flags
	In       io.Reader
	Out      io.Writer
}

// Terminal is the input and output of the command. It is injected before the
// initializers start.
type Terminal struct {
	In  io.Reader
	Out io.Writer
}

// Injector is a dependency injection abstraction.
type Injector interface {
	// Resolve populates the input with the dependency if any compatible exists.
	Resolve(interface{}) error

	// Inject stores the dependency to be resolved later on.
	Inject(interface{})
}

// Initializer is the interface that a module can implement to set its own
// commands and inject the dependencies that will be resolved in the actions.
type Initializer interface {
	// SetCommands populates the builder with the commands of the controller.
	SetCommands(Builder)

	// OnStart starts the components of the initializer and populates the
	// injector.
	OnStart(cli.Flags, Injector) error

	// OnStop stops the components and cleans the resources.
	OnStop(Injector) error
}
