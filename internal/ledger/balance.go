package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrLockedAccount rejects every operation on a locked account.
	ErrLockedAccount = errors.New("account locked")

	// ErrInsufficientFunds rejects a transition the current balance cannot cover.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Balance is one client's account state. It is a value: the five operations
// never mutate the receiver, they return the successor balance and the caller
// decides when to commit it. Invariants: Available >= 0, Held >= 0, and
// Locked is monotonic false -> true.
type Balance struct {
	Available decimal.Decimal
	Held      decimal.Decimal
	Locked    bool
}

// NewBalance returns the zero balance every client starts from.
func NewBalance() Balance {
	return Balance{
		Available: decimal.Zero,
		Held:      decimal.Zero,
	}
}

// Total is the sum of available and held funds.
func (b Balance) Total() decimal.Decimal {
	return b.Available.Add(b.Held)
}

// AmountString renders an amount without losing its scale: decimal.String
// trims trailing zeros, but a balance built from four-digit inputs must
// report four digits back (1000.0001 + 499.9999 is "1500.0000", not "1500").
// Integer-scale values stay plain ("1500", "0").
func AmountString(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

func (b Balance) String() string {
	return fmt.Sprintf("%s,%s,%s,%t",
		AmountString(b.Available), AmountString(b.Held), AmountString(b.Total()), b.Locked)
}

func (b Balance) bailIfLocked() error {
	if b.Locked {
		return ErrLockedAccount
	}
	return nil
}

// Deposit credits available funds.
func (b Balance) Deposit(amount decimal.Decimal) (Balance, error) {
	if err := b.bailIfLocked(); err != nil {
		return b, err
	}
	b.Available = b.Available.Add(amount)
	return b, nil
}

// Withdrawal debits available funds.
func (b Balance) Withdrawal(amount decimal.Decimal) (Balance, error) {
	if err := b.bailIfLocked(); err != nil {
		return b, err
	}
	if b.Available.LessThan(amount) {
		return b, fmt.Errorf("%w: available=%s, need=%s", ErrInsufficientFunds, b.Available, amount)
	}
	b.Available = b.Available.Sub(amount)
	return b, nil
}

// Dispute freezes the disputed amount: available -> held.
func (b Balance) Dispute(amount decimal.Decimal) (Balance, error) {
	if err := b.bailIfLocked(); err != nil {
		return b, err
	}
	if b.Available.LessThan(amount) {
		return b, fmt.Errorf("%w: available=%s, need=%s", ErrInsufficientFunds, b.Available, amount)
	}
	b.Available = b.Available.Sub(amount)
	b.Held = b.Held.Add(amount)
	return b, nil
}

// Resolve releases a disputed amount back: held -> available.
func (b Balance) Resolve(amount decimal.Decimal) (Balance, error) {
	if err := b.bailIfLocked(); err != nil {
		return b, err
	}
	if b.Held.LessThan(amount) {
		return b, fmt.Errorf("%w: held=%s, need=%s", ErrInsufficientFunds, b.Held, amount)
	}
	b.Available = b.Available.Add(amount)
	b.Held = b.Held.Sub(amount)
	return b, nil
}

// Chargeback withdraws a disputed amount from held funds and permanently
// locks the account. Available is untouched.
func (b Balance) Chargeback(amount decimal.Decimal) (Balance, error) {
	if err := b.bailIfLocked(); err != nil {
		return b, err
	}
	if b.Held.LessThan(amount) {
		return b, fmt.Errorf("%w: held=%s, need=%s", ErrInsufficientFunds, b.Held, amount)
	}
	b.Held = b.Held.Sub(amount)
	b.Locked = true
	return b, nil
}
