// Package batch implements the orchestrator that accredits a list of voters,
// one transaction at a time.
//
// Items are processed strictly in sequence: the next item starts only once
// the transaction of the current one reached a terminal state, so that two
// transactions of the same account never compete for a nonce. A failing item
// never aborts the batch.
//
// Cancellation is cooperative. A cancelled job stops at the next item
// boundary and a transaction already submitted is awaited to its end.
//
// Documentation Last Review: 15.10.2026
//
package batch

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.dedis.ch/ballot/core"
	"go.dedis.ch/ballot/txn/lifecycle"
	"golang.org/x/xerrors"
)

var (
	// ErrNotConfirmed is returned when a job that needs a confirmation is run
	// before being confirmed.
	ErrNotConfirmed = xerrors.New("job must be confirmed first")

	// ErrAlreadyRun is returned when a job is run a second time.
	ErrAlreadyRun = xerrors.New("job already run")
)

// ItemKind is the category of an item failure.
type ItemKind int

const (
	// Transaction is a failure of the transaction of the item.
	Transaction ItemKind = iota
	// AlreadyAccredited is an item skipped because the voter is known to be
	// accredited.
	AlreadyAccredited
	// NotRegistered is an item skipped because the voter is not in the
	// register of the election.
	NotRegistered
)

func (k ItemKind) String() string {
	switch k {
	case AlreadyAccredited:
		return "already_accredited"
	case NotRegistered:
		return "not_registered"
	default:
		return "transaction"
	}
}

// ItemError is the failure of an item. The failure of the transaction is only
// set for the Transaction kind.
type ItemError struct {
	Kind    ItemKind
	Failure lifecycle.Failure
}

// Error implements error.
func (e ItemError) Error() string {
	switch e.Kind {
	case AlreadyAccredited:
		return "The voter is already accredited."
	case NotRegistered:
		return "The voter is not in the register of this election."
	default:
		return e.Failure.Message
	}
}

// Reason returns a short reason of the failure.
func (e ItemError) Reason() string {
	switch e.Kind {
	case AlreadyAccredited:
		return "already accredited"
	case NotRegistered:
		return "voter not registered"
	}

	if e.Failure.Reason != "" {
		return e.Failure.Reason
	}

	return e.Failure.Kind.String()
}

// Outcome is the terminal result of an item. The state is empty when the item
// was skipped without a transaction.
type Outcome struct {
	ID    string
	State lifecycle.State
	Err   *ItemError
}

// Succeeded returns true if the voter has been accredited.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Progress is published after each item and once the job is over.
type Progress struct {
	Job     xid.ID
	Cursor  int
	Total   int
	Outcome Outcome
	Done    bool
}

// Failed is a failed item of a summary.
type Failed struct {
	ID  string
	Err ItemError
}

// Summary is the report of a job.
type Summary struct {
	Job       xid.ID
	Total     int
	Succeeded []string
	Failed    []Failed
	// Pending are the items that were not processed because the job was
	// cancelled.
	Pending   []string
	Cancelled bool
}

// Job is a batch of accreditations for one election.
type Job struct {
	sync.Mutex

	id         xid.ID
	electionID *big.Int
	items      []string
	cost       *big.Int
	needsConf  bool

	cursor    int
	results   map[string]Outcome
	confirmed bool
	started   bool
	cancelled bool
	done      bool

	watcher *core.Watcher[Progress]
}

func newJob(electionID *big.Int, items []string, cost *big.Int, needsConf bool) *Job {
	return &Job{
		id:         xid.New(),
		electionID: new(big.Int).Set(electionID),
		items:      items,
		cost:       cost,
		needsConf:  needsConf,
		results:    make(map[string]Outcome),
		watcher:    core.NewWatcher[Progress](),
	}
}

// ID returns the identifier of the job.
func (j *Job) ID() xid.ID {
	return j.id
}

// ElectionID returns the election of the job.
func (j *Job) ElectionID() *big.Int {
	return new(big.Int).Set(j.electionID)
}

// Items returns the deduplicated identifiers in the order of processing.
func (j *Job) Items() []string {
	return append([]string{}, j.items...)
}

// Cost returns the estimated cost of the whole job.
func (j *Job) Cost() *big.Int {
	return new(big.Int).Set(j.cost)
}

// NeedsConfirmation returns true if the job is large enough to require an
// explicit confirmation before running.
func (j *Job) NeedsConfirmation() bool {
	return j.needsConf
}

// Confirm acknowledges the cost of the job.
func (j *Job) Confirm() {
	j.Lock()
	j.confirmed = true
	j.Unlock()
}

// Cancel stops the job at the next item boundary.
func (j *Job) Cancel() {
	j.Lock()
	j.cancelled = true
	j.Unlock()
}

// Cursor returns the index of the next item to process.
func (j *Job) Cursor() int {
	j.Lock()
	defer j.Unlock()

	return j.cursor
}

// Result returns the outcome of an item if it has been processed.
func (j *Job) Result(id string) (Outcome, bool) {
	j.Lock()
	defer j.Unlock()

	o, found := j.results[fold(id)]
	return o, found
}

// Done returns true when the job is over.
func (j *Job) Done() bool {
	j.Lock()
	defer j.Unlock()

	return j.done
}

// Watch returns a channel populated with the progress of the job until the
// context is done.
func (j *Job) Watch(ctx context.Context) <-chan Progress {
	return j.watcher.Watch(ctx)
}

// Summary returns the report of the items processed so far.
func (j *Job) Summary() Summary {
	j.Lock()
	defer j.Unlock()

	sum := Summary{
		Job:       j.id,
		Total:     len(j.items),
		Succeeded: []string{},
		Failed:    []Failed{},
		Pending:   []string{},
		Cancelled: j.cancelled && j.cursor < len(j.items),
	}

	for _, item := range j.items {
		o, found := j.results[fold(item)]
		switch {
		case !found:
			sum.Pending = append(sum.Pending, item)
		case o.Succeeded():
			sum.Succeeded = append(sum.Succeeded, item)
		default:
			sum.Failed = append(sum.Failed, Failed{ID: item, Err: *o.Err})
		}
	}

	return sum
}

// start marks the job as running if it is allowed to.
func (j *Job) start() error {
	j.Lock()
	defer j.Unlock()

	if j.started {
		return ErrAlreadyRun
	}

	if j.needsConf && !j.confirmed {
		return ErrNotConfirmed
	}

	j.started = true

	return nil
}

// next returns the next item, or false if the job is over or cancelled.
func (j *Job) next() (string, bool) {
	j.Lock()
	defer j.Unlock()

	if j.cancelled || j.cursor >= len(j.items) {
		return "", false
	}

	return j.items[j.cursor], true
}

// record stores the terminal outcome of the current item and advances the
// cursor.
func (j *Job) record(o Outcome) Progress {
	j.Lock()

	j.results[fold(o.ID)] = o
	j.cursor++

	p := Progress{
		Job:     j.id,
		Cursor:  j.cursor,
		Total:   len(j.items),
		Outcome: o,
	}

	j.Unlock()

	j.watcher.Notify(p)

	return p
}

func (j *Job) finish() {
	j.Lock()

	j.done = true

	p := Progress{
		Job:    j.id,
		Cursor: j.cursor,
		Total:  len(j.items),
		Done:   true,
	}

	j.Unlock()

	j.watcher.Notify(p)
}

func (j *Job) cancel() {
	j.Lock()
	j.cancelled = true
	j.Unlock()
}

// fold returns the key of an identifier. Identifiers are compared
// case-insensitively.
func fold(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// detached is a context that keeps the values of its parent but is never
// cancelled. Items are run with it so that a submitted transaction is always
// awaited to its end.
type detached struct {
	parent context.Context
}

func (detached) Deadline() (time.Time, bool) {
	return time.Time{}, false
}

func (detached) Done() <-chan struct{} {
	return nil
}

func (detached) Err() error {
	return nil
}

func (d detached) Value(key interface{}) interface{} {
	return d.parent.Value(key)
}
