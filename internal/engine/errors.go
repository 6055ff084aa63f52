package engine

import (
	"errors"

	"payledger/internal/command"
	"payledger/internal/history"
	"payledger/internal/ledger"
)

// Referential validation errors for dispute-family commands.
var (
	// ErrReferenceNotFound: the named transaction was never posted.
	ErrReferenceNotFound = errors.New("referenced transaction not found")

	// ErrReferenceTypeIncorrect: only deposits are disputable.
	ErrReferenceTypeIncorrect = errors.New("referenced transaction type incorrect")

	// ErrReferenceClientIncorrect: the dispute names a client that does not
	// own the referenced transaction.
	ErrReferenceClientIncorrect = errors.New("referenced transaction client incorrect")

	// ErrReferenceStateIncorrect: resolve/chargeback on a transaction that is
	// not under dispute.
	ErrReferenceStateIncorrect = errors.New("referenced transaction state incorrect")

	// ErrAlreadyInDispute: dispute on a transaction already under dispute.
	ErrAlreadyInDispute = errors.New("transaction already in dispute")
)

// RejectionReason maps a per-command error to a stable label for metrics.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrLockedAccount):
		return "locked_account"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, history.ErrTransactionExists):
		return "transaction_exists"
	case errors.Is(err, ErrReferenceNotFound):
		return "reference_not_found"
	case errors.Is(err, ErrReferenceTypeIncorrect):
		return "reference_type_incorrect"
	case errors.Is(err, ErrReferenceClientIncorrect):
		return "reference_client_incorrect"
	case errors.Is(err, ErrReferenceStateIncorrect):
		return "reference_state_incorrect"
	case errors.Is(err, ErrAlreadyInDispute):
		return "already_in_dispute"
	case errors.Is(err, command.ErrAmountNotPositive):
		return "amount_not_positive"
	case errors.Is(err, command.ErrDecimalFormat):
		return "decimal_format"
	case errors.Is(err, command.ErrUnknownCommandType):
		return "unknown_type"
	default:
		return "other"
	}
}
