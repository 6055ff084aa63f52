// payledger reads a delimited command stream (deposit, withdrawal, dispute,
// resolve, chargeback), applies it to an in-memory ledger, and prints the
// final per-client balance report to stdout.
//
// Usage: payledger [input.csv]
//
// With no argument, commands are read from stdin. Logs go to stderr so the
// report stays clean on stdout.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"payledger/internal/command"
	"payledger/internal/engine"
	"payledger/internal/history"
	"payledger/internal/ingestion"
	"payledger/internal/ledger"
	"payledger/internal/observability"
	"payledger/internal/report"
)

// Config holds the CLI configuration, loaded from environment variables.
type Config struct {
	CommandChanSize int
}

func DefaultConfig() Config {
	return Config{
		CommandChanSize: envIntOrDefault("PAYLEDGER_CHAN_SIZE", 4096),
	}
}

func main() {
	if len(os.Args) > 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s [input.csv]\n", os.Args[0])
		os.Exit(1)
	}

	cfg := DefaultConfig()

	logger := observability.NewLogger("payledger").
		With().
		Str("run_id", uuid.NewString()).
		Logger()

	input := os.Stdin
	if len(os.Args) == 2 {
		f, err := os.Open(os.Args[1])
		if err != nil {
			logger.Error().Err(err).Str("path", os.Args[1]).Msg("cannot open input")
			os.Exit(1)
		}
		defer f.Close()
		input = f
	}

	balances := ledger.New()
	txHistory := history.NewStore()
	processor := engine.NewProcessor(balances, txHistory, logger, nil)

	commands := make(chan command.Command, cfg.CommandChanSize)
	source := ingestion.NewCSVSource(input, commands, logger, nil)

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		defer close(commands)
		return source.Run(ctx)
	})
	g.Go(func() error {
		return processor.Run(ctx, commands)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("run aborted")
		os.Exit(1)
	}

	logger.Info().
		Int64("applied", processor.Applied()).
		Int64("rejected", processor.Rejected()).
		Int("clients", balances.Len()).
		Int("transactions", txHistory.Len()).
		Msg("stream drained")

	if err := report.Write(os.Stdout, balances); err != nil {
		logger.Error().Err(err).Msg("write report")
		os.Exit(1)
	}
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
