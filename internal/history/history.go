// Package history is the authoritative registry of posted transactions and
// their dispute state. It answers the referential-integrity questions the
// command processor asks before any balance mutation.
package history

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"payledger/internal/command"
)

// ErrTransactionExists rejects a posting that reuses a known transaction ID.
var ErrTransactionExists = errors.New("transaction already exists")

// Record is one posted deposit or withdrawal. Everything but InDispute is
// immutable after insertion. Records are retained for the process lifetime
// to prevent ID reuse and to support the dispute lifecycle.
type Record struct {
	Kind      command.Kind
	Client    command.ClientID
	Amount    decimal.Decimal
	InDispute bool
}

// Store is the transaction history, guarded by a reader/writer lock for the
// same reason as the ledger map: one serial writer, concurrent readers.
type Store struct {
	mu      sync.RWMutex
	records map[command.TxID]Record
}

func NewStore() *Store {
	return &Store{
		records: make(map[command.TxID]Record),
	}
}

// Exists reports whether a transaction ID has been posted.
func (s *Store) Exists(tx command.TxID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[tx]
	return ok
}

// Lookup returns the record for a transaction ID, if any.
func (s *Store) Lookup(tx command.TxID) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[tx]
	return rec, ok
}

// Insert registers a newly posted transaction, not in dispute.
func (s *Store) Insert(tx command.TxID, kind command.Kind, client command.ClientID, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[tx]; ok {
		return fmt.Errorf("%w: tx=%d", ErrTransactionExists, tx)
	}
	s.records[tx] = Record{
		Kind:   kind,
		Client: client,
		Amount: amount,
	}
	return nil
}

// MarkDisputed flags a transaction as under dispute. The caller has already
// validated the state transition; this is an unconditional write.
func (s *Store) MarkDisputed(tx command.TxID) {
	s.setDispute(tx, true)
}

// MarkResolved clears the dispute flag after a resolve or chargeback.
func (s *Store) MarkResolved(tx command.TxID) {
	s.setDispute(tx, false)
}

func (s *Store) setDispute(tx command.TxID, disputed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[tx]
	if !ok {
		return
	}
	rec.InDispute = disputed
	s.records[tx] = rec
}

// Len returns the number of posted transactions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
