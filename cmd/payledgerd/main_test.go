package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"

	"payledger/internal/engine"
	"payledger/internal/history"
	"payledger/internal/ingestion"
	"payledger/internal/ledger"
	"payledger/internal/observability"
)

func newTestProcessor() (*engine.Processor, *ledger.Ledger) {
	balances := ledger.New()
	return engine.NewProcessor(balances, history.NewStore(), zerolog.Nop(), nil), balances
}

func rawDeposit(client uint16, tx uint32, amount string, ack func()) ingestion.RawCommand {
	return ingestion.RawCommand{
		Subject:   "pay.cmd.deposit",
		Data:      []byte(fmt.Sprintf(`{"client":%d,"tx":%d,"amount":%q}`, client, tx, amount)),
		Timestamp: time.Now(),
		AckFunc:   ack,
	}
}

// ============================================================================
// Test: acknowledgement discipline
// ============================================================================

func TestIngestLoop_AckAfterEngine(t *testing.T) {
	processor, balances := newTestProcessor()

	// The ACK callback snapshots the ledger: if the message were ACKed before
	// the engine ran, the deposit would not be visible here yet.
	var availableAtAck string
	rawChan := make(chan ingestion.RawCommand, 4)
	rawChan <- rawDeposit(1, 1, "1000", func() {
		availableAtAck = ledger.AmountString(balances.Get(1).Available)
	})
	close(rawChan)

	runIngestLoop(context.Background(), rawChan, processor, nil)

	if availableAtAck != "1000" {
		t.Errorf("available at ACK time: got %q, want 1000", availableAtAck)
	}
}

func TestIngestLoop_RejectedCommandStillAcked(t *testing.T) {
	processor, _ := newTestProcessor()

	// A rejection is a terminal decision; redelivery would only re-reject.
	acked := false
	rawChan := make(chan ingestion.RawCommand, 4)
	rawChan <- ingestion.RawCommand{
		Subject:   "pay.cmd.withdrawal",
		Data:      []byte(`{"client":1,"tx":1,"amount":"50"}`),
		Timestamp: time.Now(),
		AckFunc:   func() { acked = true },
	}
	close(rawChan)

	runIngestLoop(context.Background(), rawChan, processor, nil)

	if !acked {
		t.Error("rejected command was not ACKed")
	}
	if got := processor.Rejected(); got != 1 {
		t.Errorf("rejected: got %d, want 1", got)
	}
}

func TestIngestLoop_PoisonAcked(t *testing.T) {
	processor, _ := newTestProcessor()

	acked := false
	rawChan := make(chan ingestion.RawCommand, 4)
	rawChan <- ingestion.RawCommand{
		Subject:   "pay.cmd.deposit",
		Data:      []byte(`{"client":`),
		Timestamp: time.Now(),
		AckFunc:   func() { acked = true },
	}
	close(rawChan)

	runIngestLoop(context.Background(), rawChan, processor, nil)

	if !acked {
		t.Error("poison payload was not ACKed")
	}
	if processor.Applied() != 0 || processor.Rejected() != 0 {
		t.Errorf("engine touched by poison payload: applied=%d rejected=%d",
			processor.Applied(), processor.Rejected())
	}
}

// ============================================================================
// Test: shutdown drain
// ============================================================================

func TestIngestLoop_DrainsBufferedOnCancel(t *testing.T) {
	processor, balances := newTestProcessor()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	acked := 0
	rawChan := make(chan ingestion.RawCommand, 8)
	for tx := uint32(1); tx <= 3; tx++ {
		rawChan <- rawDeposit(1, tx, "100", func() { acked++ })
	}

	// The loop must process everything already buffered before returning, so
	// the stats read after it are complete.
	runIngestLoop(ctx, rawChan, processor, nil)

	if acked != 3 {
		t.Errorf("acked: got %d, want 3", acked)
	}
	if got := processor.Applied(); got != 3 {
		t.Errorf("applied: got %d, want 3", got)
	}
	if got := ledger.AmountString(balances.Get(1).Available); got != "300" {
		t.Errorf("available: got %s, want 300", got)
	}
}

// ============================================================================
// Test: ingest latency metric
// ============================================================================

func TestIngestLoop_ObservesIngestLatency(t *testing.T) {
	processor, _ := newTestProcessor()
	metrics := observability.NewMetrics()

	rawChan := make(chan ingestion.RawCommand, 4)
	raw := rawDeposit(1, 1, "100", func() {})
	raw.Timestamp = time.Now().Add(-time.Millisecond)
	rawChan <- raw
	close(rawChan)

	runIngestLoop(context.Background(), rawChan, processor, metrics)

	var m dto.Metric
	if err := metrics.IngestLatency.Write(&m); err != nil {
		t.Fatalf("read histogram: %v", err)
	}
	if got := m.GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("latency samples: got %d, want 1", got)
	}
	if m.GetHistogram().GetSampleSum() <= 0 {
		t.Error("latency sum should be positive")
	}
}
