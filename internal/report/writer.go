// Package report renders the final balance report from ledger state.
package report

import (
	"fmt"
	"io"

	"payledger/internal/ledger"
)

// Header is emitted byte for byte, odd spacing included; downstream
// consumers already parse this exact line.
const Header = "client,available,held, total, locked"

// Write renders one row per client after the header. Rows come out in map
// iteration order; no ordering is promised to consumers.
func Write(w io.Writer, l *ledger.Ledger) error {
	if _, err := fmt.Fprintln(w, Header); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}

	for client, balance := range l.Snapshot() {
		if _, err := fmt.Fprintf(w, "%d,%s\n", client, balance); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}

	return nil
}
