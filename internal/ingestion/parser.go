package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"

	"payledger/internal/command"
)

// ParseRawCommand converts a RawCommand (JSON bytes plus its subject) into a
// typed command.Command. The command kind is the last subject token:
// pay.cmd.deposit, pay.cmd.withdrawal, pay.cmd.dispute, pay.cmd.resolve,
// pay.cmd.chargeback.
func ParseRawCommand(raw RawCommand) (command.Command, error) {
	idx := strings.LastIndex(raw.Subject, ".")
	if idx < 0 || idx == len(raw.Subject)-1 {
		return command.Command{}, fmt.Errorf("subject %q carries no command kind", raw.Subject)
	}

	kind, err := command.ParseKind(raw.Subject[idx+1:])
	if err != nil {
		return command.Command{}, err
	}

	var j commandJSON
	if err := json.Unmarshal(raw.Data, &j); err != nil {
		return command.Command{}, fmt.Errorf("parse %s payload: %w", kind, err)
	}

	return command.Command{
		Kind:   kind,
		Client: command.ClientID(j.Client),
		Tx:     command.TxID(j.Tx),
		Amount: j.Amount,
	}, nil
}

// commandJSON is the wire format received on pay.cmd.> subjects. Field names
// match the CSV column names; amount stays a string literal so the engine
// applies the same precision policy on both ingestion surfaces.
type commandJSON struct {
	Client uint16 `json:"client"`
	Tx     uint32 `json:"tx"`
	Amount string `json:"amount,omitempty"`
}
