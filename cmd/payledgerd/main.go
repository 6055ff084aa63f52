// payledgerd is the long-running variant of the ledger engine: commands
// arrive on NATS JetStream subjects instead of a file, per-command outcomes
// are published downstream, and an admin HTTP server exposes health probes,
// a balances snapshot, and Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"payledger/internal/engine"
	"payledger/internal/history"
	"payledger/internal/ingestion"
	"payledger/internal/ledger"
	"payledger/internal/observability"
	"payledger/internal/server"
)

// Config holds all daemon configuration, loaded from environment variables.
type Config struct {
	NATSURL         string
	AdminAddr       string
	CommandChanSize int
	OutcomeChanSize int
}

func DefaultConfig() Config {
	return Config{
		NATSURL:         envOrDefault("PAYLEDGER_NATS_URL", "nats://localhost:4222"),
		AdminAddr:       envOrDefault("PAYLEDGER_ADMIN_ADDR", ":8080"),
		CommandChanSize: envIntOrDefault("PAYLEDGER_CHAN_SIZE", 4096),
		OutcomeChanSize: envIntOrDefault("PAYLEDGER_OUTCOME_CHAN_SIZE", 4096),
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("INFO: payledgerd starting...")

	cfg := DefaultConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("FATAL: nats connect: %v", err)
	}
	defer nc.Close()
	log.Println("INFO: NATS connected")

	if err := ingestion.EnsureStreams(ctx, js); err != nil {
		log.Fatalf("FATAL: ensure command stream: %v", err)
	}
	if err := ingestion.EnsureOutcomeStream(ctx, js); err != nil {
		log.Fatalf("FATAL: ensure outcome stream: %v", err)
	}

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()
	logger := observability.NewLogger("engine").
		With().
		Str("run_id", uuid.NewString()).
		Logger()

	// --- Engine ---
	balances := ledger.New()
	txHistory := history.NewStore()
	processor := engine.NewProcessor(balances, txHistory, logger, metrics)

	outcomeChan := make(chan engine.Outcome, cfg.OutcomeChanSize)
	processor.SetOutcomeSink(outcomeChan)

	// --- Subscriber ---
	rawChan := make(chan ingestion.RawCommand, cfg.CommandChanSize)

	subscriber := ingestion.NewNATSSubscriber(js, rawChan)
	if err := subscriber.Subscribe(ctx, ingestion.DefaultSubjects()); err != nil {
		log.Fatalf("FATAL: nats subscribe: %v", err)
	}

	publisher := ingestion.NewOutcomePublisher(js, outcomeChan)

	errChan := make(chan error, 4)

	// 1. Ingest loop: the single serial writer. Parses raw NATS messages,
	// runs each through the engine, and ACKs only after the engine returns —
	// an unprocessed command stays un-ACKed and redelivers after a restart.
	ingestDone := make(chan struct{})
	go func() {
		defer close(ingestDone)
		runIngestLoop(ctx, rawChan, processor, metrics)
	}()

	// 2. Outcome publisher.
	go func() {
		errChan <- publisher.Run(ctx)
	}()

	// 3. Admin HTTP server.
	adminServer := server.NewAdminServer(cfg.AdminAddr, balances, healthChecker)
	go func() {
		errChan <- adminServer.Run(ctx)
	}()

	healthChecker.SetReady(true)
	log.Printf("INFO: payledgerd ready (nats=%s, admin=%s)", cfg.NATSURL, cfg.AdminAddr)

	select {
	case sig := <-sigChan:
		log.Printf("INFO: received signal %s, shutting down...", sig)
	case err := <-errChan:
		log.Printf("ERROR: goroutine failed: %v, shutting down...", err)
	}

	// Stop deliveries, release any callback blocked on the channel, then wait
	// for the ingest loop to drain what it already buffered. The final stats
	// are read only after the drain so they count every handled command.
	healthChecker.SetReady(false)
	subscriber.Stop()
	cancel()
	<-ingestDone

	log.Printf("INFO: payledgerd shutdown complete (applied=%d, rejected=%d, clients=%d)",
		processor.Applied(), processor.Rejected(), balances.Len())
}

// runIngestLoop is the daemon's consumer: one goroutine parsing and applying
// commands in delivery order. Each message is ACKed after the engine has
// fully handled it, accepted or rejected — a slow engine exerts backpressure
// on NATS through the bounded channel instead of tripping AckWait
// redeliveries on commands it already owns. Unparseable payloads are ACKed
// and counted so a poison message cannot redeliver forever. On context
// cancellation the already-buffered messages are drained before returning.
func runIngestLoop(ctx context.Context, rawChan <-chan ingestion.RawCommand, processor *engine.Processor, metrics *observability.Metrics) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case raw, ok := <-rawChan:
					if !ok {
						return
					}
					handleRaw(raw, rawChan, processor, metrics)
				default:
					return
				}
			}

		case raw, ok := <-rawChan:
			if !ok {
				return
			}
			handleRaw(raw, rawChan, processor, metrics)
		}
	}
}

func handleRaw(raw ingestion.RawCommand, rawChan <-chan ingestion.RawCommand, processor *engine.Processor, metrics *observability.Metrics) {
	if metrics != nil {
		metrics.CommandChanSize.Set(float64(len(rawChan)))
		metrics.IngestLatency.Observe(time.Since(raw.Timestamp).Seconds())
	}

	cmd, err := ingestion.ParseRawCommand(raw)
	if err != nil {
		log.Printf("WARN: parse command failed (subject=%s): %v", raw.Subject, err)
		if metrics != nil {
			metrics.RowsMalformed.Inc()
		}
		raw.AckFunc()
		return
	}

	processor.Handle(cmd)
	raw.AckFunc()
}

// --- Helpers ---

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var i int
	if _, err := fmt.Sscanf(v, "%d", &i); err != nil {
		return defaultVal
	}
	return i
}
