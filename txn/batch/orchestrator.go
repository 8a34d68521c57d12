package batch

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/ballot"
	"go.dedis.ch/ballot/contract"
	"go.dedis.ch/ballot/contract/evm"
	"go.dedis.ch/ballot/ledger"
	"go.dedis.ch/ballot/ledger/wallet"
	"go.dedis.ch/ballot/txn/lifecycle"
	"golang.org/x/xerrors"
)

// DefaultThreshold is the number of items above which a job needs to be
// confirmed.
const DefaultThreshold = 10

// defines prometheus metrics
var (
	promItems = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ballot_batch_items_total",
		Help: "total number of batch items per outcome",
	}, []string{"outcome"})

	promCursor = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ballot_batch_cursor",
		Help: "cursor of the batch job being run",
	})
)

func init() {
	ballot.PromCollectors = append(ballot.PromCollectors, promItems, promCursor)
}

// Orchestrator prepares and runs batches of accreditations. It keeps the set
// of voters known to be accredited across jobs.
type Orchestrator struct {
	sync.Mutex

	agent   ledger.Agent
	backend ledger.Backend
	client  contract.Client

	threshold int
	units     uint64
	price     *big.Int

	accredited map[string]struct{}
	registered map[string]struct{}

	ctrlOpts []lifecycle.Option
	logger   zerolog.Logger
}

// Option is the type of options to create an orchestrator.
type Option func(*Orchestrator)

// WithThreshold sets the number of items above which a job needs a
// confirmation.
func WithThreshold(n int) Option {
	return func(o *Orchestrator) {
		o.threshold = n
	}
}

// WithUnitsPerItem sets the number of gas units assumed for one item.
func WithUnitsPerItem(units uint64) Option {
	return func(o *Orchestrator) {
		o.units = units
	}
}

// WithGasPrice sets the price assumed for one gas unit.
func WithGasPrice(price *big.Int) Option {
	return func(o *Orchestrator) {
		o.price = new(big.Int).Set(price)
	}
}

// WithAccredited sets the voters already known to be accredited.
func WithAccredited(ids ...string) Option {
	return func(o *Orchestrator) {
		for _, id := range ids {
			o.accredited[fold(id)] = struct{}{}
		}
	}
}

// WithRegistered sets the register of the election. When it is set, the
// voters outside of it are skipped.
func WithRegistered(ids ...string) Option {
	return func(o *Orchestrator) {
		o.registered = make(map[string]struct{}, len(ids))

		for _, id := range ids {
			o.registered[fold(id)] = struct{}{}
		}
	}
}

// WithLifecycleOptions sets the options of the controller of every item.
func WithLifecycleOptions(opts ...lifecycle.Option) Option {
	return func(o *Orchestrator) {
		o.ctrlOpts = opts
	}
}

// WithLogger sets the logger of the orchestrator.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(agent ledger.Agent, backend ledger.Backend, client contract.Client,
	opts ...Option) *Orchestrator {

	o := &Orchestrator{
		agent:      agent,
		backend:    backend,
		client:     client,
		threshold:  DefaultThreshold,
		units:      contract.GasSchedule[evm.MethodAccreditVoter].Limit(1),
		price:      new(big.Int).Set(wallet.DefaultGasPrice),
		accredited: make(map[string]struct{}),
		logger:     ballot.Logger,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Accredited returns true if the voter is known to be accredited.
func (o *Orchestrator) Accredited(id string) bool {
	o.Lock()
	defer o.Unlock()

	_, found := o.accredited[fold(id)]
	return found
}

// Prepare creates a job for the voters of the election. Empty and duplicated
// identifiers are removed, the first occurrence is kept.
func (o *Orchestrator) Prepare(electionID *big.Int, ids []string) (*Job, error) {
	if electionID == nil || electionID.Sign() < 0 {
		return nil, xerrors.New("invalid election identifier")
	}

	items := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))

	for _, id := range ids {
		key := fold(id)
		if key == "" {
			continue
		}

		_, found := seen[key]
		if found {
			continue
		}

		seen[key] = struct{}{}
		items = append(items, strings.TrimSpace(id))
	}

	if len(items) == 0 {
		return nil, xerrors.New("no voter to accredit")
	}

	cost := new(big.Int).SetUint64(o.units)
	cost.Mul(cost, o.price)
	cost.Mul(cost, big.NewInt(int64(len(items))))

	job := newJob(electionID, items, cost, len(items) > o.threshold)

	o.logger.Info().
		Stringer("job", job.id).
		Int("items", len(items)).
		Stringer("cost", cost).
		Bool("confirmation", job.needsConf).
		Msg("batch prepared")

	return job, nil
}

// Run processes the items of the job in sequence and returns the summary. The
// job stops at the next item boundary when the context is done or the job is
// cancelled. Failing items are reported in the summary.
func (o *Orchestrator) Run(ctx context.Context, job *Job) (Summary, error) {
	err := job.start()
	if err != nil {
		return Summary{}, err
	}

	logger := o.logger.With().Stringer("job", job.id).Logger()

	for {
		if ctx.Err() != nil {
			job.cancel()
		}

		item, ok := job.next()
		if !ok {
			break
		}

		outcome := o.process(ctx, job.electionID, item)

		p := job.record(outcome)

		promCursor.Set(float64(p.Cursor))

		if outcome.Succeeded() {
			promItems.WithLabelValues("succeeded").Inc()
			logger.Debug().Str("voter", item).Msg("voter accredited")
		} else {
			promItems.WithLabelValues(outcome.Err.Kind.String()).Inc()
			logger.Warn().
				Str("voter", item).
				Str("reason", outcome.Err.Reason()).
				Msg("batch item failed")
		}
	}

	job.finish()

	sum := job.Summary()

	logger.Info().
		Int("succeeded", len(sum.Succeeded)).
		Int("failed", len(sum.Failed)).
		Int("pending", len(sum.Pending)).
		Msg("batch over")

	return sum, nil
}

func (o *Orchestrator) process(ctx context.Context, electionID *big.Int, item string) Outcome {
	key := fold(item)

	o.Lock()
	_, accredited := o.accredited[key]
	_, registered := o.registered[key]
	known := o.registered == nil || registered
	o.Unlock()

	if accredited {
		return Outcome{ID: item, Err: &ItemError{Kind: AlreadyAccredited}}
	}

	if !known {
		return Outcome{ID: item, Err: &ItemError{Kind: NotRegistered}}
	}

	call, err := o.client.AccreditVoter(item, electionID)
	if err != nil {
		return Outcome{ID: item, Err: &ItemError{Kind: Transaction, Failure: lifecycle.Classify(err)}}
	}

	ctrl := lifecycle.NewController(o.agent, o.backend, call, o.ctrlOpts...)

	state, err := ctrl.Run(detached{parent: ctx})

	res := outcome(item, state, err)

	if res.Succeeded() || (res.Err.Kind == Transaction && res.Err.Failure.Reason == "already accredited") {
		o.remember(key)
	}

	return res
}

// outcome returns the outcome of an item from the result of its controller.
func outcome(item string, state lifecycle.State, err error) Outcome {
	// Only a controller run twice returns an error, see lifecycle.ErrAlreadyRun.
	if err != nil {
		return Outcome{ID: item, State: state, Err: &ItemError{
			Kind:    Transaction,
			Failure: lifecycle.Classify(xerrors.Errorf("failed to run: %w", err)),
		}}
	}

	if state.Phase == lifecycle.Succeeded {
		return Outcome{ID: item, State: state}
	}

	return Outcome{ID: item, State: state, Err: &ItemError{Kind: Transaction, Failure: state.Failure}}
}

func (o *Orchestrator) remember(key string) {
	o.Lock()
	o.accredited[key] = struct{}{}
	o.Unlock()
}
