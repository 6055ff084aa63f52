package ledger

import (
	"sync"

	"payledger/internal/command"
)

// Ledger maps clients to balances. Balances are created lazily with a zero
// balance on first reference and are never deleted.
//
// The map is guarded by a reader/writer lock. The command processor runs as
// a single serial consumer, so at most one writer is ever active in
// practice, but readers (report renderer, admin snapshot) may run
// concurrently with it and must never observe a partially applied commit.
type Ledger struct {
	mu       sync.RWMutex
	balances map[command.ClientID]Balance
}

func New() *Ledger {
	return &Ledger{
		balances: make(map[command.ClientID]Balance),
	}
}

// Get returns the client's current balance, creating the zero balance if the
// client has not been seen before.
func (l *Ledger) Get(client command.ClientID) Balance {
	l.mu.RLock()
	b, ok := l.balances[client]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok = l.balances[client]
	if !ok {
		b = NewBalance()
		l.balances[client] = b
	}
	return b
}

// Commit writes the successor balance produced by one of the Balance
// operations. The caller has already validated the transition.
func (l *Ledger) Commit(client command.ClientID, b Balance) {
	l.mu.Lock()
	l.balances[client] = b
	l.mu.Unlock()
}

// Len returns the number of tracked clients.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.balances)
}

// Snapshot returns a copy of all balances. Mutating the returned map does
// not affect the ledger. Iteration order is not defined.
func (l *Ledger) Snapshot() map[command.ClientID]Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snapshot := make(map[command.ClientID]Balance, len(l.balances))
	for client, b := range l.balances {
		snapshot[client] = b
	}
	return snapshot
}
