package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"payledger/internal/command"
	"payledger/internal/observability"
)

// CSVSource reads the delimited command stream and feeds parsed commands
// into the engine's channel. Individual malformed rows are logged and
// skipped; only failures of the underlying reader abort the run.
//
// The format is header-tolerant, whitespace-trimmed, and flexible in column
// count: dispute-family rows carry no amount column at all.
type CSVSource struct {
	r       io.Reader
	out     chan<- command.Command
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewCSVSource(r io.Reader, out chan<- command.Command, logger zerolog.Logger, metrics *observability.Metrics) *CSVSource {
	return &CSVSource{
		r:       r,
		out:     out,
		logger:  logger,
		metrics: metrics,
	}
}

// Run reads rows until EOF, sending each parsed command downstream. It does
// not close the output channel; the caller owns it.
func (s *CSVSource) Run(ctx context.Context) error {
	rdr := csv.NewReader(s.r)
	rdr.FieldsPerRecord = -1
	rdr.TrimLeadingSpace = true

	first := true
	for {
		record, err := rdr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				s.skipRow(record, err)
				continue
			}
			return fmt.Errorf("read input: %w", err)
		}

		if first {
			first = false
			if isHeader(record) {
				continue
			}
		}

		cmd, err := parseRow(record)
		if err != nil {
			s.skipRow(record, err)
			continue
		}

		select {
		case s.out <- cmd:
			if s.metrics != nil {
				s.metrics.CommandChanSize.Set(float64(len(s.out)))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *CSVSource) skipRow(record []string, err error) {
	if s.metrics != nil {
		s.metrics.RowsMalformed.Inc()
	}
	s.logger.Warn().
		Strs("row", record).
		Err(err).
		Msg("malformed row skipped")
}

func isHeader(record []string) bool {
	return len(record) > 0 && strings.TrimSpace(record[0]) == "type"
}

// parseRow converts one trimmed CSV record into a Command. Expected columns:
// type, client, tx, amount — amount present only for deposit/withdrawal.
func parseRow(record []string) (command.Command, error) {
	if len(record) < 3 {
		return command.Command{}, fmt.Errorf("row has %d columns, need at least 3", len(record))
	}

	kind, err := command.ParseKind(strings.TrimSpace(record[0]))
	if err != nil {
		return command.Command{}, err
	}

	client, err := strconv.ParseUint(strings.TrimSpace(record[1]), 10, 16)
	if err != nil {
		return command.Command{}, fmt.Errorf("parse client: %w", err)
	}

	tx, err := strconv.ParseUint(strings.TrimSpace(record[2]), 10, 32)
	if err != nil {
		return command.Command{}, fmt.Errorf("parse tx: %w", err)
	}

	var amount string
	if len(record) > 3 {
		amount = strings.TrimSpace(record[3])
	}

	return command.Command{
		Kind:   kind,
		Client: command.ClientID(client),
		Tx:     command.TxID(tx),
		Amount: amount,
	}, nil
}
