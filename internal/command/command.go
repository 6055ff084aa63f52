package command

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ClientID identifies an account. IDs arrive on the wire as unsigned 16-bit
// integers and are never reused for a different client within a run.
type ClientID uint16

// TxID identifies a posted transaction, globally unique across all clients.
type TxID uint32

// Kind is the closed set of command kinds. Unknown input strings never map
// to a Kind — ParseKind rejects them at the ingestion boundary.
type Kind int32

const (
	KindUnknown Kind = iota
	KindDeposit
	KindWithdrawal
	KindDispute
	KindResolve
	KindChargeback
)

// ErrUnknownCommandType rejects a command whose kind is not in the closed
// enumeration, or a deposit/withdrawal that carries no amount literal.
var ErrUnknownCommandType = errors.New("unknown transaction type")

// ParseKind maps an input type string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "deposit":
		return KindDeposit, nil
	case "withdrawal":
		return KindWithdrawal, nil
	case "dispute":
		return KindDispute, nil
	case "resolve":
		return KindResolve, nil
	case "chargeback":
		return KindChargeback, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownCommandType, s)
	}
}

func (k Kind) String() string {
	switch k {
	case KindDeposit:
		return "deposit"
	case KindWithdrawal:
		return "withdrawal"
	case KindDispute:
		return "dispute"
	case KindResolve:
		return "resolve"
	case KindChargeback:
		return "chargeback"
	default:
		return "unknown"
	}
}

// Posting reports whether the kind posts a new transaction (deposit or
// withdrawal) as opposed to referencing an existing one.
func (k Kind) Posting() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// Command is a single ingested operation. Amount holds the raw decimal
// literal for deposit/withdrawal; dispute-family commands leave it empty and
// recover the amount from the referenced transaction record instead.
type Command struct {
	Kind   Kind
	Client ClientID
	Tx     TxID
	Amount string
}

func (c Command) String() string {
	if c.Amount == "" {
		return fmt.Sprintf("%s client=%d tx=%d", c.Kind, c.Client, c.Tx)
	}
	return fmt.Sprintf("%s client=%d tx=%d amount=%s", c.Kind, c.Client, c.Tx, c.Amount)
}

// Amount policy errors. The precision cutoff is ledger policy: no value with
// more than MaxScale fractional digits may reach balance arithmetic.
var (
	ErrDecimalFormat     = errors.New("decimal format error")
	ErrAmountNotPositive = errors.New("amount not positive")
)

// MaxScale is the maximum number of fractional digits an amount may carry.
const MaxScale = 4

// ParseAmount converts an amount literal into an exact decimal, enforcing
// the scale policy. It does not check positivity — CheckAmount does, after
// dispute-family amounts have been resolved from history.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrDecimalFormat, s)
	}
	if d.Exponent() < -MaxScale {
		return decimal.Zero, fmt.Errorf("%w: %q exceeds %d fractional digits", ErrDecimalFormat, s, MaxScale)
	}
	return d, nil
}

// CheckAmount rejects zero and negative amounts.
func CheckAmount(d decimal.Decimal) error {
	if d.Sign() <= 0 {
		return fmt.Errorf("%w: %s", ErrAmountNotPositive, d)
	}
	return nil
}
