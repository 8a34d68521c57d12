// Package controller implements the initializer of the configuration. It
// loads the configuration of the client, applies its log level and exposes
// the metrics while a command runs.
//
// Documentation Last Review: 15.10.2026
//
package controller

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.dedis.ch/ballot"
	"go.dedis.ch/ballot/cli"
	"go.dedis.ch/ballot/cli/node"
	"go.dedis.ch/ballot/config"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// metricsPath is the path of the Prometheus handler.
const metricsPath = "/metrics"

// miniController is the initializer of the configuration.
//
// - implements node.Initializer
type miniController struct{}

// NewController returns the initializer of the configuration.
func NewController() node.Initializer {
	return miniController{}
}

// SetCommands implements node.Initializer. It defines the commands to
// inspect and create the configuration.
func (miniController) SetCommands(builder node.Builder) {
	cmd := builder.SetCommand("config")
	cmd.SetDescription("manage the configuration of the client")

	sub := cmd.SetSubCommand("init")
	sub.SetDescription("write the default configuration")
	sub.SetAction(builder.MakeAction(initAction{}))

	sub = cmd.SetSubCommand("show")
	sub.SetDescription("print the configuration in use")
	sub.SetAction(builder.MakeAction(showAction{}))
}

// OnStart implements node.Initializer. It loads the configuration and starts
// the metrics endpoint when an address is given.
func (miniController) OnStart(flags cli.Flags, inj node.Injector) error {
	cfg, err := config.Load(flags.Path("config"))
	if err != nil {
		return xerrors.Errorf("failed to load config: %v", err)
	}

	ballot.SetLevel(cfg.LogLevel)

	inj.Inject(cfg)

	addr := flags.String("metrics")
	if addr == "" {
		addr = cfg.Metrics.Addr
	}

	if addr == "" {
		return nil
	}

	srv, err := listenMetrics(addr)
	if err != nil {
		return xerrors.Errorf("failed to start metrics: %v", err)
	}

	inj.Inject(srv)

	return nil
}

// OnStop implements node.Initializer. It stops the metrics endpoint.
func (miniController) OnStop(inj node.Injector) error {
	var srv *metricsServer
	err := inj.Resolve(&srv)
	if err != nil {
		// No endpoint has been started.
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = srv.Shutdown(ctx)
	if err != nil {
		return xerrors.Errorf("failed to stop metrics: %v", err)
	}

	return nil
}

// metricsServer serves the collectors of the packages.
type metricsServer struct {
	*http.Server

	addr net.Addr
}

func listenMetrics(addr string) (*metricsServer, error) {
	// A registry per endpoint so that the collectors can be registered again
	// by the next command of the same process.
	registry := prometheus.NewRegistry()

	for _, c := range ballot.PromCollectors {
		err := registry.Register(c)
		if err != nil {
			return nil, xerrors.Errorf("failed to register: %v", err)
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, xerrors.Errorf("failed to listen: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &metricsServer{
		Server: &http.Server{Handler: mux},
		addr:   ln.Addr(),
	}

	go func() {
		err := srv.Serve(ln)
		if err != nil && err != http.ErrServerClosed {
			ballot.Logger.Err(err).Msg("metrics endpoint failed")
		}
	}()

	ballot.Logger.Info().Stringer("addr", ln.Addr()).Msg("metrics endpoint started")

	return srv, nil
}

// initAction is an action to write the default configuration.
//
// - implements node.ActionTemplate
type initAction struct{}

// Execute implements node.ActionTemplate. It writes the configuration in use,
// which is the default one on a fresh machine, unless the file exists.
func (initAction) Execute(ctx node.Context) error {
	path := ctx.Flags.Path("config")

	_, err := os.Stat(path)
	if err == nil {
		return xerrors.Errorf("config '%s' already exists", path)
	}

	var cfg config.Config
	err = ctx.Injector.Resolve(&cfg)
	if err != nil {
		return xerrors.Errorf("failed to resolve config: %v", err)
	}

	err = cfg.Save(path)
	if err != nil {
		return xerrors.Errorf("failed to save: %v", err)
	}

	fmt.Fprintf(ctx.Out, "configuration written to %s\n", path)

	return nil
}

// showAction is an action to print the configuration.
//
// - implements node.ActionTemplate
type showAction struct{}

// Execute implements node.ActionTemplate. The inline key of the wallet is not
// printed.
func (showAction) Execute(ctx node.Context) error {
	var cfg config.Config
	err := ctx.Injector.Resolve(&cfg)
	if err != nil {
		return xerrors.Errorf("failed to resolve config: %v", err)
	}

	if cfg.Wallet.Key != "" {
		cfg.Wallet.Key = "<hidden>"
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return xerrors.Errorf("failed to encode config: %v", err)
	}

	_, err = ctx.Out.Write(data)

	return err
}
