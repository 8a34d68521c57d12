package controller

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"math/big"
	"strings"
	"time"

	"go.dedis.ch/ballot"
	"go.dedis.ch/ballot/cli"
	"go.dedis.ch/ballot/cli/node"
	"go.dedis.ch/ballot/config"
	"go.dedis.ch/ballot/contract"
	"go.dedis.ch/ballot/contract/marshal"
	"go.dedis.ch/ballot/election"
	"go.dedis.ch/ballot/election/draft"
	localctrl "go.dedis.ch/ballot/ledger/local/controller"
	"go.dedis.ch/ballot/ledger/wallet"
	"go.dedis.ch/ballot/offchain"
	"go.dedis.ch/ballot/submit"
	"go.dedis.ch/ballot/txn/batch"
	"go.dedis.ch/ballot/txn/lifecycle"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// checkAction is an action to validate a draft.
//
// - implements node.ActionTemplate
type checkAction struct{}

// Execute implements node.ActionTemplate. It prints the status of every
// section and, for a complete draft, the parameters of the creation.
func (checkAction) Execute(ctx node.Context) error {
	drafts, err := loadDraft(ctx)
	if err != nil {
		return err
	}

	statuses := drafts.Statuses()

	for _, section := range election.Sections[:len(election.Sections)-1] {
		status := statuses[section]

		if status.Valid {
			fmt.Fprintf(ctx.Out, "%s: valid\n", section)
			continue
		}

		fmt.Fprintf(ctx.Out, "%s: %d error(s)\n", section, len(status.Errors))

		for _, e := range status.Errors {
			fmt.Fprintf(ctx.Out, "  - %v\n", e)
		}
	}

	params, err := submit.Parameters(drafts)
	if err != nil {
		return err
	}

	printParameters(ctx.Out, params)

	return nil
}

// createAction is an action to create the election of a draft.
//
// - implements node.ActionTemplate
type createAction struct{}

// Execute implements node.ActionTemplate.
func (createAction) Execute(ctx node.Context) error {
	drafts, err := loadDraft(ctx)
	if err != nil {
		return err
	}

	svc, client, err := newService(ctx, drafts)
	if err != nil {
		return err
	}

	params, states, err := svc.SubmitElection(ctx.Ctx)
	if err != nil {
		return err
	}

	printParameters(ctx.Out, params)

	err = report(ctx, states)
	if err != nil {
		return err
	}

	count, err := client.ElectionCount(ctx.Ctx)
	if err != nil {
		return xerrors.Errorf("failed to read election count: %v", err)
	}

	fmt.Fprintf(ctx.Out, "election %v created\n", count)

	return nil
}

// showAction is an action to print the summary of an election.
//
// - implements node.ActionTemplate
type showAction struct{}

// Execute implements node.ActionTemplate.
func (showAction) Execute(ctx node.Context) error {
	var client contract.Client
	err := ctx.Injector.Resolve(&client)
	if err != nil {
		return xerrors.Errorf("failed to resolve client: %v", err)
	}

	id, err := electionID(ctx)
	if err != nil {
		return err
	}

	sum, err := client.Summary(ctx.Ctx, id)
	if err != nil {
		return xerrors.Errorf("failed to read election: %v", err)
	}

	fmt.Fprintf(ctx.Out, "name: %s\nstart: %s\nend: %s\ncandidates: %v\nvoters: %v\n"+
		"accredited: %v\nvotes: %v\n",
		sum.ElectionName, instant(sum.StartTime), instant(sum.EndTime), sum.CandidatesCount,
		sum.VotersCount, sum.AccreditedCount, sum.VotesCount)

	var store offchain.DiskStore
	err = ctx.Injector.Resolve(&store)
	if err == nil {
		meta, err := store.Lookup(ctx.Ctx, id)
		if err == nil {
			fmt.Fprintf(ctx.Out, "banner: %s\ndescription: %s\n", meta.Banner, meta.Description)
		} else if !xerrors.Is(err, offchain.ErrNotFound) {
			ballot.Logger.Warn().Err(err).Msg("metadata not available")
		}
	}

	if !ctx.Flags.Bool("voters") {
		return nil
	}

	voters, err := client.Voters(ctx.Ctx, id)
	if err != nil {
		return xerrors.Errorf("failed to read voters: %v", err)
	}

	for _, v := range voters {
		fmt.Fprintf(ctx.Out, "- %s %s (%s)\n", v.MatricNo, v.Name, v.Level)
	}

	return nil
}

// addVotersAction is an action to add voters to an election.
//
// - implements node.ActionTemplate
type addVotersAction struct{}

// Execute implements node.ActionTemplate.
func (addVotersAction) Execute(ctx node.Context) error {
	id, err := electionID(ctx)
	if err != nil {
		return err
	}

	data, err := ioutil.ReadFile(ctx.Flags.Path("file"))
	if err != nil {
		return xerrors.Errorf("failed to read file: %v", err)
	}

	var voters []election.Voter

	err = yaml.UnmarshalStrict(data, &voters)
	if err != nil {
		return xerrors.Errorf("failed to decode voters: %v", err)
	}

	svc, _, err := newService(ctx, draft.NewAggregator())
	if err != nil {
		return err
	}

	states, err := svc.AddVoters(ctx.Ctx, id, voters)
	if err != nil {
		return err
	}

	err = report(ctx, states)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "%d voter(s) added\n", len(voters))

	return nil
}

// accreditAction is an action to accredit voters. Several voters are
// accredited in a batch.
//
// - implements node.ActionTemplate
type accreditAction struct{}

// Execute implements node.ActionTemplate.
func (accreditAction) Execute(ctx node.Context) error {
	id, err := electionID(ctx)
	if err != nil {
		return err
	}

	ids, err := voterIDs(ctx)
	if err != nil {
		return err
	}

	if len(ids) == 1 {
		svc, _, err := newService(ctx, draft.NewAggregator())
		if err != nil {
			return err
		}

		states, err := svc.AccreditVoter(ctx.Ctx, id, ids[0])
		if err != nil {
			return err
		}

		return report(ctx, states)
	}

	var client contract.Client
	err = ctx.Injector.Resolve(&client)
	if err != nil {
		return xerrors.Errorf("failed to resolve client: %v", err)
	}

	// Voters missing from the register are skipped without a transaction.
	voters, err := client.Voters(ctx.Ctx, id)
	if err != nil {
		return xerrors.Errorf("failed to read voters: %v", err)
	}

	registered := make([]string, len(voters))
	for i, v := range voters {
		registered[i] = v.MatricNo
	}

	svc, _, err := newService(ctx, draft.NewAggregator(), batch.WithRegistered(registered...))
	if err != nil {
		return err
	}

	job, progress, err := svc.AccreditBatch(ctx.Ctx, id, ids)
	if err != nil {
		return err
	}

	for p := range progress {
		if p.Done {
			break
		}

		if p.Outcome.Succeeded() {
			fmt.Fprintf(ctx.Out, "[%d/%d] %s: accredited\n", p.Cursor, p.Total, p.Outcome.ID)
			continue
		}

		fmt.Fprintf(ctx.Out, "[%d/%d] %s: %v\n", p.Cursor, p.Total, p.Outcome.ID, p.Outcome.Err)

		if ctx.Flags.Bool("verbose") && p.Outcome.Err.Failure.Raw != "" {
			fmt.Fprintf(ctx.Out, "  raw: %s\n", p.Outcome.Err.Failure.Raw)
		}
	}

	sum := job.Summary()

	fmt.Fprintf(ctx.Out, "batch %s: %d accredited, %d failed, %d pending\n",
		sum.Job, len(sum.Succeeded), len(sum.Failed), len(sum.Pending))

	if len(sum.Failed) > 0 || len(sum.Pending) > 0 {
		return xerrors.Errorf("%d of %d voter(s) not accredited",
			len(sum.Failed)+len(sum.Pending), sum.Total)
	}

	return nil
}

// validateAction is an action to validate a voter.
//
// - implements node.ActionTemplate
type validateAction struct{}

// Execute implements node.ActionTemplate.
func (validateAction) Execute(ctx node.Context) error {
	id, err := electionID(ctx)
	if err != nil {
		return err
	}

	svc, _, err := newService(ctx, draft.NewAggregator())
	if err != nil {
		return err
	}

	states, err := svc.ValidateVoter(ctx.Ctx, id, ctx.Flags.String(cli.VoterFlagName), ctx.Flags.String("name"))
	if err != nil {
		return err
	}

	return report(ctx, states)
}

// castAction is an action to cast a vote.
//
// - implements node.ActionTemplate
type castAction struct{}

// Execute implements node.ActionTemplate.
func (castAction) Execute(ctx node.Context) error {
	id, err := electionID(ctx)
	if err != nil {
		return err
	}

	values := ctx.Flags.StringSlice("candidate")
	candidates := make([]election.Candidate, len(values))

	for i, value := range values {
		parts := strings.SplitN(value, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return xerrors.Errorf("invalid candidate '%s', expected category:name", value)
		}

		candidates[i] = election.Candidate{
			Category: strings.TrimSpace(parts[0]),
			Name:     strings.TrimSpace(parts[1]),
		}
	}

	svc, _, err := newService(ctx, draft.NewAggregator())
	if err != nil {
		return err
	}

	states, err := svc.CastVote(ctx.Ctx, id, ctx.Flags.String(cli.VoterFlagName), ctx.Flags.String("name"),
		candidates)
	if err != nil {
		return err
	}

	return report(ctx, states)
}

// newService creates the service for the draft with the components of the
// ledger initializer.
func newService(ctx node.Context, drafts *draft.Aggregator,
	opts ...batch.Option) (*submit.Service, contract.Client, error) {

	var cfg config.Config
	err := ctx.Injector.Resolve(&cfg)
	if err != nil {
		return nil, contract.Client{}, xerrors.Errorf("failed to resolve config: %v", err)
	}

	var client contract.Client
	err = ctx.Injector.Resolve(&client)
	if err != nil {
		return nil, client, xerrors.Errorf("failed to resolve client: %v", err)
	}

	agent, err := localctrl.Signer(ctx.Injector)
	if err != nil {
		return nil, client, err
	}

	backend, err := localctrl.Backend(ctx.Injector)
	if err != nil {
		return nil, client, err
	}

	prompt, err := localctrl.Prompt(ctx.Injector)
	if err != nil {
		return nil, client, err
	}

	price, err := cfg.GasPrice()
	if err != nil {
		return nil, client, xerrors.Errorf("invalid gas price: %v", err)
	}

	batchOpts := []batch.Option{
		batch.WithThreshold(cfg.Batch.Threshold),
		batch.WithGasPrice(price),
	}

	if cfg.Batch.UnitsPerItem > 0 {
		batchOpts = append(batchOpts, batch.WithUnitsPerItem(cfg.Batch.UnitsPerItem))
	}

	svc := submit.NewService(drafts, agent, backend, client,
		submit.WithBatchOptions(append(batchOpts, opts...)...),
		submit.WithConfirmer(confirmer(ctx, prompt)),
	)

	return svc, client, nil
}

// confirmer returns the confirmation of the large batches, which asks the
// user on the shared prompt unless the yes flag is set.
func confirmer(ctx node.Context, prompt *wallet.Prompt) submit.Confirmer {
	return func(c context.Context, job *batch.Job) (bool, error) {
		if ctx.Flags.Bool("yes") {
			return true, nil
		}

		return prompt.Ask(c, fmt.Sprintf("Accredit %d voters for at most %v? [y/N] ",
			len(job.Items()), job.Cost()))
	}
}

// report prints the states of a transaction and returns an error if it
// failed.
func report(ctx node.Context, states <-chan lifecycle.State) error {
	var last lifecycle.State

	for state := range states {
		last = state

		switch state.Phase {
		case lifecycle.AwaitingConfirmation:
			fmt.Fprintf(ctx.Out, "transaction %s sent\n", state.Hash.Hex())
		case lifecycle.Succeeded:
			fmt.Fprintln(ctx.Out, "transaction succeeded")
		case lifecycle.Failed:
			fmt.Fprintf(ctx.Out, "transaction failed: %s\n", state.Failure.Message)

			if ctx.Flags.Bool("verbose") {
				fmt.Fprintf(ctx.Out, "  raw: %s\n", state.Failure.Raw)
			}
		}
	}

	if last.Phase != lifecycle.Succeeded {
		return xerrors.Errorf("transaction not executed: %s", last.Failure.Message)
	}

	return nil
}

func loadDraft(ctx node.Context) (*draft.Aggregator, error) {
	data, err := ioutil.ReadFile(ctx.Flags.Path("file"))
	if err != nil {
		return nil, xerrors.Errorf("failed to read file: %v", err)
	}

	d, err := draft.LoadYAML(data)
	if err != nil {
		return nil, err
	}

	policy := draft.FlagOrphans
	if ctx.Flags.Bool("prune") {
		policy = draft.PruneOrphans
	}

	drafts := draft.NewAggregator(draft.WithOrphanPolicy(policy))
	drafts.Load(d)

	return drafts, nil
}

func electionID(ctx node.Context) (*big.Int, error) {
	return cli.ElectionID(ctx.Flags)
}

// voterIDs returns the identifiers of the flags followed by the ones of the
// file.
func voterIDs(ctx node.Context) ([]string, error) {
	ids := append([]string{}, ctx.Flags.StringSlice(cli.VoterFlagName)...)

	path := ctx.Flags.Path("file")
	if path != "" {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, xerrors.Errorf("failed to read file: %v", err)
		}

		scanner := bufio.NewScanner(strings.NewReader(string(data)))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" && !strings.HasPrefix(line, "#") {
				ids = append(ids, line)
			}
		}
	}

	if len(ids) == 0 {
		return nil, xerrors.New("no voter to accredit")
	}

	return ids, nil
}

func printParameters(out io.Writer, params marshal.Parameters) {
	fmt.Fprintf(out, "name: %s\nstart: %s\nend: %s\ncategories: %d\ncandidates: %d\n"+
		"voters: %d\nofficers: %d\nunits: %d\n",
		params.Name(), instant(params.Start()), instant(params.End()), len(params.Categories()),
		len(params.Candidates()), len(params.Voters()), len(params.Officers()), len(params.Units()))

	for _, a := range params.Anomalies() {
		fmt.Fprintf(out, "warning: %v\n", a)
	}
}

func instant(v *big.Int) string {
	if v == nil {
		return "-"
	}

	return time.Unix(v.Int64(), 0).UTC().Format(time.RFC3339)
}
