package lifecycle

import (
	"context"
	"strings"

	"go.dedis.ch/ballot/ledger"
	"golang.org/x/xerrors"
)

// Kind is the category of a failure.
type Kind byte

const (
	// Unknown is a failure that does not match any known pattern.
	Unknown Kind = iota
	// UserDeclined is a call refused by the signing agent.
	UserDeclined
	// InsufficientResources is a transaction the account cannot pay for.
	InsufficientResources
	// ContractRejected is a transaction reverted by the contract.
	ContractRejected
)

func (k Kind) String() string {
	switch k {
	case UserDeclined:
		return "user_declined"
	case InsufficientResources:
		return "insufficient_resources"
	case ContractRejected:
		return "contract_rejected"
	default:
		return "unknown"
	}
}

// Failure is the classified reason of a failed transaction. The raw message
// of the original error is always preserved for diagnostics.
type Failure struct {
	Kind Kind
	// Reason is the reason given by the contract, when there is one.
	Reason string
	// Message is the message meant for the user.
	Message string
	Raw     string
}

// Error implements error. It returns the message for the user.
func (f Failure) Error() string {
	return f.Message
}

// knownReasons are the revert reasons of the contract with their message,
// matched in order.
var knownReasons = []struct {
	reason  string
	message string
}{
	{"voter not accredited", "The voter is not accredited for this election."},
	{"already voted", "The voter has already voted."},
	{"election not active", "The election is not active at this time."},
	{"invalid voter details", "The voter details do not match the register."},
	{"already accredited", "The voter is already accredited."},
	{"voter not registered", "The voter is not in the register of this election."},
	{"not authorized", "This account is not authorized to perform the operation."},
	{"invalid candidate", "One of the selected candidates is not valid."},
}

// rule is an entry of the classification table. It returns the failure if
// the error matches.
type rule func(err error, msg string) (Failure, bool)

// rules is the classification table, evaluated in order. The first match
// wins and an error matching nothing is Unknown.
var rules = []rule{
	declined,
	insufficient,
	reverted,
	interrupted,
}

// Classify maps an error returned while submitting or confirming a
// transaction to a failure.
func Classify(err error) Failure {
	if err == nil {
		return Failure{Kind: Unknown, Message: "The transaction failed for an unknown reason."}
	}

	raw := err.Error()
	msg := strings.ToLower(raw)

	for _, match := range rules {
		f, ok := match(err, msg)
		if ok {
			f.Raw = raw
			return f
		}
	}

	return Failure{
		Kind:    Unknown,
		Message: "The transaction failed: " + raw,
		Raw:     raw,
	}
}

func declined(err error, msg string) (Failure, bool) {
	if !xerrors.Is(err, ledger.ErrDeclined) && !containsAny(msg,
		ledger.ErrDeclined.Error(), "user rejected", "user denied") {

		return Failure{}, false
	}

	return Failure{
		Kind:    UserDeclined,
		Message: "The request was declined in the wallet.",
	}, true
}

func insufficient(err error, msg string) (Failure, bool) {
	if !xerrors.Is(err, ledger.ErrInsufficientFunds) && !containsAny(msg,
		"insufficient funds", "insufficient balance", "out of gas") {

		return Failure{}, false
	}

	return Failure{
		Kind:    InsufficientResources,
		Message: "The account does not have enough funds to pay for the transaction.",
	}, true
}

// reverted matches the known revert reasons of the contract. A revert with a
// reason missing from the table is left to the Unknown fallback, keeping the
// reason for diagnostics.
func reverted(err error, msg string) (Failure, bool) {
	var reason string

	var revert ledger.RevertError
	if xerrors.As(err, &revert) {
		reason = revert.Reason
	} else if idx := strings.Index(msg, "execution reverted"); idx >= 0 {
		reason = strings.TrimSpace(strings.TrimPrefix(msg[idx+len("execution reverted"):], ":"))
	} else {
		return Failure{}, false
	}

	lower := strings.ToLower(reason)

	for _, known := range knownReasons {
		if strings.Contains(lower, known.reason) {
			return Failure{
				Kind:    ContractRejected,
				Reason:  known.reason,
				Message: known.message,
			}, true
		}
	}

	return Failure{
		Kind:    Unknown,
		Reason:  reason,
		Message: "The transaction failed: " + err.Error(),
	}, true
}

func interrupted(err error, msg string) (Failure, bool) {
	if !xerrors.Is(err, context.Canceled) && !xerrors.Is(err, context.DeadlineExceeded) &&
		!containsAny(msg, context.Canceled.Error(), context.DeadlineExceeded.Error()) {

		return Failure{}, false
	}

	return Failure{
		Kind:    Unknown,
		Message: "The operation was interrupted. A submitted transaction may still be confirmed.",
	}, true
}

func containsAny(msg string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(msg, strings.ToLower(p)) {
			return true
		}
	}

	return false
}
