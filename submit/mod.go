// Package submit implements the service that turns a draft and the polling
// operations into ledger transactions.
//
// Every operation checks its input before a transaction is built: a draft is
// materialized, marshalled and checked again at the parameter level, so that
// no transaction is spent on a call the contract would reject for its shape.
// The transactions are then driven by a lifecycle controller whose states are
// streamed to the caller.
//
// Documentation Last Review: 15.10.2026
//
package submit

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.dedis.ch/ballot"
	"go.dedis.ch/ballot/contract"
	"go.dedis.ch/ballot/contract/marshal"
	"go.dedis.ch/ballot/contract/presubmit"
	"go.dedis.ch/ballot/election"
	"go.dedis.ch/ballot/election/draft"
	"go.dedis.ch/ballot/election/schema"
	"go.dedis.ch/ballot/ledger"
	"go.dedis.ch/ballot/txn/batch"
	"go.dedis.ch/ballot/txn/lifecycle"
	"golang.org/x/xerrors"
)

// ErrNotConfirmed is returned when a batch that needs a confirmation is not
// confirmed.
var ErrNotConfirmed = xerrors.New("batch not confirmed")

// Confirmer is called for a batch that needs a confirmation before it is run.
type Confirmer func(ctx context.Context, job *batch.Job) (bool, error)

// Service is the entry point of the operations that spend transactions.
type Service struct {
	drafts  *draft.Aggregator
	agent   ledger.Agent
	backend ledger.Backend
	client  contract.Client
	orch    *batch.Orchestrator

	confirm   Confirmer
	now       func() time.Time
	logger    zerolog.Logger
	batchOpts []batch.Option
	ctrlOpts  []lifecycle.Option
}

// Option is the type of options to create a service.
type Option func(*Service)

// WithClock sets the clock used by the marshaller.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger of the service and of the components it creates.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithConfirmer sets the function that confirms large batches. By default
// they are refused.
func WithConfirmer(c Confirmer) Option {
	return func(s *Service) {
		s.confirm = c
	}
}

// WithBatchOptions sets the options of the batch orchestrator.
func WithBatchOptions(opts ...batch.Option) Option {
	return func(s *Service) {
		s.batchOpts = opts
	}
}

// NewService creates a service for the draft. The agent signs the
// transactions and the backend submits them to the contract of the client.
func NewService(drafts *draft.Aggregator, agent ledger.Agent, backend ledger.Backend,
	client contract.Client, opts ...Option) *Service {

	s := &Service{
		drafts:  drafts,
		agent:   agent,
		backend: backend,
		client:  client,
		confirm: func(context.Context, *batch.Job) (bool, error) { return false, nil },
		now:     time.Now,
		logger:  ballot.Logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.ctrlOpts = []lifecycle.Option{lifecycle.WithLogger(s.logger)}

	batchOpts := append([]batch.Option{
		batch.WithLogger(s.logger),
		batch.WithLifecycleOptions(s.ctrlOpts...),
	}, s.batchOpts...)

	s.orch = batch.NewOrchestrator(agent, backend, client, batchOpts...)

	return s
}

// Parameters materializes the draft and returns the parameters of the
// creation of the election, or the errors preventing it.
func (s *Service) Parameters() (marshal.Parameters, error) {
	return Parameters(s.drafts, marshal.WithClock(s.now), marshal.WithLogger(s.logger))
}

// Parameters materializes the draft of the aggregator and returns the
// parameters of the creation of the election. It does not need a ledger.
func Parameters(drafts *draft.Aggregator, opts ...marshal.Option) (marshal.Parameters, error) {
	d, errs := drafts.Materialize()
	if !errs.Valid() {
		return marshal.Parameters{}, xerrors.Errorf("draft is not complete: %v", errs)
	}

	params := marshal.Marshal(d, opts...)

	vs := presubmit.Check(params, presubmit.ModeCreate)
	if !vs.Valid() {
		return marshal.Parameters{}, vs.Err()
	}

	return params, nil
}

// SubmitElection creates the election of the draft. It returns the
// parameters of the call and the stream of the states of the transaction,
// which is closed after the terminal state.
func (s *Service) SubmitElection(ctx context.Context) (marshal.Parameters,
	<-chan lifecycle.State, error) {

	params, err := s.Parameters()
	if err != nil {
		return params, nil, err
	}

	for _, a := range params.Anomalies() {
		s.logger.Info().Stringer("anomaly", a).Msg("parameters adjusted")
	}

	call, err := s.client.CreateElection(params)
	if err != nil {
		return params, nil, xerrors.Errorf("failed to create call: %v", err)
	}

	return params, s.run(ctx, call), nil
}

// AddVoters adds voters to an existing election. At least one voter is
// required.
func (s *Service) AddVoters(ctx context.Context, electionID *big.Int,
	voters []election.Voter) (<-chan lifecycle.State, error) {

	valid, errs := schema.ValidateVotersStrict(voters)
	if !errs.Valid() {
		return nil, xerrors.Errorf("invalid voters: %v", errs)
	}

	tuples := marshal.Voters(valid)

	vs := presubmit.CheckVoters(electionID, tuples)
	if !vs.Valid() {
		return nil, vs.Err()
	}

	call, err := s.client.AddVoters(electionID, tuples)
	if err != nil {
		return nil, xerrors.Errorf("failed to create call: %v", err)
	}

	return s.run(ctx, call), nil
}

// AccreditVoter accredits a single voter.
func (s *Service) AccreditVoter(ctx context.Context, electionID *big.Int,
	matricNo string) (<-chan lifecycle.State, error) {

	id := strings.TrimSpace(matricNo)
	if id == "" {
		return nil, xerrors.New("voter identifier is required")
	}

	call, err := s.client.AccreditVoter(id, electionID)
	if err != nil {
		return nil, xerrors.Errorf("failed to create call: %v", err)
	}

	return s.run(ctx, call), nil
}

// AccreditBatch accredits the voters in sequence. It returns the job and the
// stream of its progress, which is closed once the job is over. A large batch
// is only run if the confirmer accepts it.
func (s *Service) AccreditBatch(ctx context.Context, electionID *big.Int,
	ids []string) (*batch.Job, <-chan batch.Progress, error) {

	job, err := s.orch.Prepare(electionID, ids)
	if err != nil {
		return nil, nil, xerrors.Errorf("failed to prepare batch: %v", err)
	}

	if job.NeedsConfirmation() {
		ok, err := s.confirm(ctx, job)
		if err != nil {
			return nil, nil, xerrors.Errorf("failed to confirm: %v", err)
		}

		if !ok {
			return nil, nil, ErrNotConfirmed
		}

		job.Confirm()
	}

	watchCtx, stop := context.WithCancel(context.Background())
	events := job.Watch(watchCtx)

	out := make(chan batch.Progress, len(job.Items())+1)

	go func() {
		defer close(out)
		defer stop()

		for p := range events {
			out <- p

			if p.Done {
				return
			}
		}
	}()

	go func() {
		_, err := s.orch.Run(ctx, job)
		if err != nil {
			s.logger.Err(err).Msg("batch failed to run")
			stop()
		}
	}()

	return job, out, nil
}

// ValidateVoter validates an accredited voter for voting.
func (s *Service) ValidateVoter(ctx context.Context, electionID *big.Int,
	matricNo, name string) (<-chan lifecycle.State, error) {

	id, name := strings.TrimSpace(matricNo), strings.TrimSpace(name)
	if id == "" || name == "" {
		return nil, xerrors.New("voter identifier and name are required")
	}

	call, err := s.client.ValidateVoter(id, name, electionID)
	if err != nil {
		return nil, xerrors.Errorf("failed to create call: %v", err)
	}

	return s.run(ctx, call), nil
}

// CastVote records the vote of a validated voter for the candidates.
func (s *Service) CastVote(ctx context.Context, electionID *big.Int, matricNo, name string,
	candidates []election.Candidate) (<-chan lifecycle.State, error) {

	id, name := strings.TrimSpace(matricNo), strings.TrimSpace(name)
	if id == "" || name == "" {
		return nil, xerrors.New("voter identifier and name are required")
	}

	tuples := marshal.Candidates(candidates)
	if len(tuples) == 0 {
		return nil, xerrors.New("at least one candidate is required")
	}

	call, err := s.client.VoteCandidates(id, name, tuples, electionID)
	if err != nil {
		return nil, xerrors.Errorf("failed to create call: %v", err)
	}

	return s.run(ctx, call), nil
}

// run drives the call with a new controller and streams its states until the
// terminal one.
func (s *Service) run(ctx context.Context, call ledger.Call) <-chan lifecycle.State {
	ctrl := lifecycle.NewController(s.agent, s.backend, call, s.ctrlOpts...)

	watchCtx, stop := context.WithCancel(context.Background())
	states := ctrl.Watch(watchCtx)

	// Submitting, awaiting and the terminal state at most.
	out := make(chan lifecycle.State, 3)

	go func() {
		defer close(out)
		defer stop()

		for state := range states {
			out <- state

			if state.Terminal() {
				return
			}
		}
	}()

	go ctrl.Run(ctx)

	return out
}
