package ingestion

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payledger/internal/command"
)

// readAll runs the source to EOF and collects everything it produced.
func readAll(t *testing.T, input string) []command.Command {
	t.Helper()

	out := make(chan command.Command, 64)
	source := NewCSVSource(strings.NewReader(input), out, zerolog.Nop(), nil)

	require.NoError(t, source.Run(context.Background()))
	close(out)

	var cmds []command.Command
	for cmd := range out {
		cmds = append(cmds, cmd)
	}
	return cmds
}

func TestCSVSource_HeaderSkipped(t *testing.T) {
	cmds := readAll(t, "type,client,tx,amount\ndeposit,1,1,1000\n")

	require.Len(t, cmds, 1)
	assert.Equal(t, command.KindDeposit, cmds[0].Kind)
	assert.Equal(t, command.ClientID(1), cmds[0].Client)
	assert.Equal(t, command.TxID(1), cmds[0].Tx)
	assert.Equal(t, "1000", cmds[0].Amount)
}

func TestCSVSource_NoHeader(t *testing.T) {
	// A file that starts straight with data must not lose its first row.
	cmds := readAll(t, "deposit,1,1,1000\nwithdrawal,1,2,500\n")

	require.Len(t, cmds, 2)
	assert.Equal(t, command.KindDeposit, cmds[0].Kind)
	assert.Equal(t, command.KindWithdrawal, cmds[1].Kind)
}

func TestCSVSource_WhitespaceTrimmed(t *testing.T) {
	cmds := readAll(t, "type, client, tx, amount\ndeposit,  1 ,  2 ,  3.5\n")

	require.Len(t, cmds, 1)
	assert.Equal(t, command.ClientID(1), cmds[0].Client)
	assert.Equal(t, command.TxID(2), cmds[0].Tx)
	assert.Equal(t, "3.5", cmds[0].Amount)
}

func TestCSVSource_DisputeRowWithoutAmount(t *testing.T) {
	cmds := readAll(t, "deposit,1,1,1000\ndispute,1,1\n")

	require.Len(t, cmds, 2)
	assert.Equal(t, command.KindDispute, cmds[1].Kind)
	assert.Empty(t, cmds[1].Amount)
}

func TestCSVSource_MalformedRowsSkipped(t *testing.T) {
	input := strings.Join([]string{
		"type,client,tx,amount",
		"deposit,1,1,1000",
		"teleport,1,2,5",  // unknown type
		"deposit,notnum,3,5", // bad client
		"deposit,1",       // too few columns
		"withdrawal,1,4,250",
	}, "\n") + "\n"

	cmds := readAll(t, input)

	require.Len(t, cmds, 2)
	assert.Equal(t, command.TxID(1), cmds[0].Tx)
	assert.Equal(t, command.TxID(4), cmds[1].Tx)
}

func TestCSVSource_ClientRangeEnforced(t *testing.T) {
	// 70000 does not fit uint16; the row is dropped, not wrapped.
	cmds := readAll(t, "deposit,70000,1,1000\ndeposit,65535,2,1000\n")

	require.Len(t, cmds, 1)
	assert.Equal(t, command.ClientID(65535), cmds[0].Client)
}

func TestCSVSource_EmptyInput(t *testing.T) {
	assert.Empty(t, readAll(t, ""))
}

func TestCSVSource_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unbuffered output channel with nobody reading: the send must yield to
	// the cancelled context instead of blocking forever.
	out := make(chan command.Command)
	source := NewCSVSource(strings.NewReader("deposit,1,1,1000\n"), out, zerolog.Nop(), nil)

	err := source.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
