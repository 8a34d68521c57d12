package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/ballot"
	"go.dedis.ch/ballot/core"
	"go.dedis.ch/ballot/ledger"
	"golang.org/x/xerrors"
)

// ErrAlreadyRun is returned when a controller is run a second time. A new
// attempt needs a new controller, see Retry.
var ErrAlreadyRun = xerrors.New("controller already run")

// defines prometheus metrics
var (
	promOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ballot_lifecycle_transactions_total",
		Help: "total number of transactions per outcome and failure kind",
	}, []string{"method", "outcome", "kind"})

	promConfirmation = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ballot_lifecycle_confirmation_seconds",
		Help:    "time between the submission and the receipt of a transaction",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})
)

func init() {
	ballot.PromCollectors = append(ballot.PromCollectors, promOutcomes, promConfirmation)
}

// Controller drives one contract call through the lifecycle. It is
// single-use: Run can only be called once.
type Controller struct {
	sync.Mutex

	agent   ledger.Agent
	backend ledger.Backend
	call    ledger.Call
	opts    []Option

	state   State
	since   time.Time
	started bool
	watcher *core.Watcher[State]
	now     func() time.Time
	logger  zerolog.Logger
}

// Option is the type of options to create a controller.
type Option func(*Controller)

// WithClock sets the clock used to measure the time spent in a state.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithLogger sets the logger of the controller.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// NewController creates a controller in the Idle state for the call.
func NewController(agent ledger.Agent, backend ledger.Backend, call ledger.Call,
	opts ...Option) *Controller {

	c := &Controller{
		agent:   agent,
		backend: backend,
		call:    call,
		opts:    opts,
		watcher: core.NewWatcher[State](),
		now:     time.Now,
		logger:  ballot.Logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With().
		Str("attempt", xid.New().String()).
		Str("method", call.Method).
		Logger()

	c.since = c.now()

	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.Lock()
	defer c.Unlock()

	return c.state
}

// Elapsed returns the time spent in the current state.
func (c *Controller) Elapsed() time.Duration {
	c.Lock()
	defer c.Unlock()

	return c.now().Sub(c.since)
}

// Watch returns a channel populated with the new states until the context is
// done.
func (c *Controller) Watch(ctx context.Context) <-chan State {
	return c.watcher.Watch(ctx)
}

// Retry returns a new controller for the same call. The call is signed
// again, so a new nonce is used.
func (c *Controller) Retry() *Controller {
	return NewController(c.agent, c.backend, c.call, c.opts...)
}

// Run submits the call and waits for the receipt. It returns the terminal
// state, which carries the classified failure if the transaction did not
// succeed. An error is returned only if the controller has already been run.
func (c *Controller) Run(ctx context.Context) (State, error) {
	c.Lock()
	if c.started {
		c.Unlock()
		return c.State(), ErrAlreadyRun
	}
	c.started = true
	c.Unlock()

	c.apply(Submit())

	tx, err := c.agent.Sign(ctx, c.call)
	if err != nil {
		return c.fail(xerrors.Errorf("failed to sign: %w", err)), nil
	}

	hash, err := c.backend.Send(ctx, tx)
	if err != nil {
		c.resync(ctx)

		return c.fail(xerrors.Errorf("failed to send: %w", err)), nil
	}

	c.apply(Sent(hash))

	start := c.now()

	receipt, err := c.backend.Await(ctx, hash)
	if err != nil {
		return c.fail(xerrors.Errorf("failed to await: %w", err)), nil
	}

	promConfirmation.Observe(c.now().Sub(start).Seconds())

	err = receipt.Err()
	if err != nil {
		return c.fail(err), nil
	}

	state := c.apply(Confirmed())

	promOutcomes.WithLabelValues(c.call.Method, Succeeded.String(), "").Inc()

	return state, nil
}

func (c *Controller) fail(err error) State {
	f := Classify(err)

	c.logger.Warn().
		Stringer("kind", f.Kind).
		Str("raw", f.Raw).
		Msg("transaction failed")

	promOutcomes.WithLabelValues(c.call.Method, Failed.String(), f.Kind.String()).Inc()

	return c.apply(Fail(f))
}

// resync synchronizes the nonce of the agent after the backend refused a
// transaction, as the nonce has not been consumed.
func (c *Controller) resync(ctx context.Context) {
	syncer, ok := c.agent.(ledger.Syncer)
	if !ok {
		return
	}

	err := syncer.Sync(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to synchronize the agent")
	}
}

// apply moves the state machine. The controller only produces valid events,
// so a failing transition is a programming error.
func (c *Controller) apply(e Event) State {
	c.Lock()

	next, err := Transition(c.state, e)
	if err != nil {
		c.Unlock()
		panic(err)
	}

	c.state = next
	c.since = c.now()

	c.Unlock()

	c.logger.Debug().Stringer("state", next).Msg("transaction state changed")

	c.watcher.Notify(next)

	return next
}
