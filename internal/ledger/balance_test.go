package ledger_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"payledger/internal/ledger"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

// ============================================================================
// Test: Balance transitions
// ============================================================================

func TestBalance_Deposit(t *testing.T) {
	b := ledger.NewBalance()

	next, err := b.Deposit(dec(t, "1000"))
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if !next.Available.Equal(dec(t, "1000")) {
		t.Errorf("available: got %s, want 1000", next.Available)
	}
	if !b.Available.IsZero() {
		t.Error("receiver balance mutated")
	}
}

func TestBalance_Withdrawal(t *testing.T) {
	b := ledger.NewBalance()
	b, _ = b.Deposit(dec(t, "1000"))

	next, err := b.Withdrawal(dec(t, "400"))
	if err != nil {
		t.Fatalf("withdrawal failed: %v", err)
	}
	if !next.Available.Equal(dec(t, "600")) {
		t.Errorf("available: got %s, want 600", next.Available)
	}
}

func TestBalance_Withdrawal_Insufficient(t *testing.T) {
	b := ledger.NewBalance()
	b, _ = b.Deposit(dec(t, "100"))

	_, err := b.Withdrawal(dec(t, "100.0001"))
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Errorf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestBalance_Dispute_MovesAvailableToHeld(t *testing.T) {
	b := ledger.NewBalance()
	b, _ = b.Deposit(dec(t, "1000"))

	next, err := b.Dispute(dec(t, "300"))
	if err != nil {
		t.Fatalf("dispute failed: %v", err)
	}
	if !next.Available.Equal(dec(t, "700")) {
		t.Errorf("available: got %s, want 700", next.Available)
	}
	if !next.Held.Equal(dec(t, "300")) {
		t.Errorf("held: got %s, want 300", next.Held)
	}
	if !next.Total().Equal(dec(t, "1000")) {
		t.Errorf("total: got %s, want 1000", next.Total())
	}
}

func TestBalance_Dispute_Insufficient(t *testing.T) {
	b := ledger.NewBalance()
	b, _ = b.Deposit(dec(t, "100"))
	b, _ = b.Withdrawal(dec(t, "50"))

	_, err := b.Dispute(dec(t, "100"))
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Errorf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestBalance_Resolve_ReleasesHeld(t *testing.T) {
	b := ledger.NewBalance()
	b, _ = b.Deposit(dec(t, "1000"))
	b, _ = b.Dispute(dec(t, "300"))

	next, err := b.Resolve(dec(t, "300"))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !next.Available.Equal(dec(t, "1000")) {
		t.Errorf("available: got %s, want 1000", next.Available)
	}
	if !next.Held.IsZero() {
		t.Errorf("held: got %s, want 0", next.Held)
	}
}

func TestBalance_Resolve_InsufficientHeld(t *testing.T) {
	b := ledger.NewBalance()
	b, _ = b.Deposit(dec(t, "1000"))

	_, err := b.Resolve(dec(t, "1"))
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Errorf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestBalance_Chargeback_RemovesHeldAndLocks(t *testing.T) {
	b := ledger.NewBalance()
	b, _ = b.Deposit(dec(t, "1000"))
	b, _ = b.Dispute(dec(t, "1000"))

	next, err := b.Chargeback(dec(t, "1000"))
	if err != nil {
		t.Fatalf("chargeback failed: %v", err)
	}
	if !next.Available.IsZero() || !next.Held.IsZero() {
		t.Errorf("balance not drained: available=%s held=%s", next.Available, next.Held)
	}
	if !next.Locked {
		t.Error("account should be locked after chargeback")
	}
}

func TestBalance_Locked_RejectsEverything(t *testing.T) {
	b := ledger.NewBalance()
	b, _ = b.Deposit(dec(t, "1000"))
	b, _ = b.Dispute(dec(t, "1000"))
	b, _ = b.Chargeback(dec(t, "1000"))

	amount := dec(t, "1")
	ops := map[string]func(decimal.Decimal) (ledger.Balance, error){
		"deposit":    b.Deposit,
		"withdrawal": b.Withdrawal,
		"dispute":    b.Dispute,
		"resolve":    b.Resolve,
		"chargeback": b.Chargeback,
	}
	for name, op := range ops {
		if _, err := op(amount); !errors.Is(err, ledger.ErrLockedAccount) {
			t.Errorf("%s on locked account: err = %v, want ErrLockedAccount", name, err)
		}
	}
}

func TestAmountString_PreservesScale(t *testing.T) {
	cases := map[string]string{
		"1500.0000": "1500.0000", // trailing zeros survive rendering
		"1000.0001": "1000.0001",
		"0.1000":    "0.1000",
		"110.5":     "110.5",
		"1500":      "1500", // integer-scale inputs stay plain
		"0":         "0",
	}
	for input, want := range cases {
		if got := ledger.AmountString(dec(t, input)); got != want {
			t.Errorf("AmountString(%q) = %q, want %q", input, got, want)
		}
	}

	// The sum of four-digit inputs renders at four digits.
	sum := dec(t, "1000.0001").Add(dec(t, "499.9999"))
	if got := ledger.AmountString(sum); got != "1500.0000" {
		t.Errorf("AmountString(sum) = %q, want 1500.0000", got)
	}
}

func TestBalance_String(t *testing.T) {
	b := ledger.NewBalance()
	b, _ = b.Deposit(dec(t, "1000.0001"))
	b, _ = b.Dispute(dec(t, "0.0001"))

	if got := b.String(); got != "1000.0000,0.0001,1000.0001,false" {
		t.Errorf("got %q", got)
	}
}

// ============================================================================
// Test: Ledger map
// ============================================================================

func TestLedger_LazyZeroBalance(t *testing.T) {
	l := ledger.New()

	b := l.Get(1)
	if !b.Available.IsZero() || !b.Held.IsZero() || b.Locked {
		t.Errorf("initial balance not zero: %s", b)
	}
	if l.Len() != 1 {
		t.Errorf("Len: got %d, want 1", l.Len())
	}
}

func TestLedger_CommitThenGet(t *testing.T) {
	l := ledger.New()

	b := l.Get(7)
	next, err := b.Deposit(dec(t, "42.5"))
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	l.Commit(7, next)

	if got := l.Get(7); !got.Available.Equal(dec(t, "42.5")) {
		t.Errorf("available: got %s, want 42.5", got.Available)
	}
}

func TestLedger_SnapshotIsolation(t *testing.T) {
	l := ledger.New()
	b, _ := l.Get(1).Deposit(dec(t, "10"))
	l.Commit(1, b)

	snap := l.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot size: got %d, want 1", len(snap))
	}

	snap[1] = ledger.NewBalance()
	if !l.Get(1).Available.Equal(dec(t, "10")) {
		t.Error("ledger affected by snapshot mutation")
	}
}
