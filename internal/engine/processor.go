// Package engine is the command processor: the validation and orchestration
// state machine that sequences reads and writes across the transaction
// history store and the balance ledger.
//
// Every command runs through three phases, each of which can short-circuit
// with an error that aborts all mutation for that command:
//
//  1. referential validation — reads history only
//  2. amount resolution — command literal or referenced record
//  3. apply + commit — one balance transition, then the history write
//
// The processor runs as a single serial consumer, so a command never begins
// before the previous one has completed or failed entirely.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"payledger/internal/command"
	"payledger/internal/history"
	"payledger/internal/ledger"
	"payledger/internal/observability"
)

// Outcome reports how one command was handled. Daemon mode publishes these
// downstream; CLI mode ignores them.
type Outcome struct {
	Command  command.Command
	Accepted bool
	Reason   string
}

// Processor applies commands to the ledger and history store.
type Processor struct {
	ledger  *ledger.Ledger
	history *history.Store
	logger  zerolog.Logger
	metrics *observability.Metrics

	// Optional sink for per-command outcomes. Sends must not block the
	// consumer: when the sink is full the outcome is dropped.
	outcomes chan<- Outcome

	applied  atomic.Int64
	rejected atomic.Int64
}

func NewProcessor(l *ledger.Ledger, h *history.Store, logger zerolog.Logger, metrics *observability.Metrics) *Processor {
	return &Processor{
		ledger:  l,
		history: h,
		logger:  logger,
		metrics: metrics,
	}
}

// SetOutcomeSink directs per-command outcomes to ch. Must be called before Run.
func (p *Processor) SetOutcomeSink(ch chan<- Outcome) {
	p.outcomes = ch
}

// Applied returns the number of successfully committed commands.
func (p *Processor) Applied() int64 { return p.applied.Load() }

// Rejected returns the number of rejected commands.
func (p *Processor) Rejected() int64 { return p.rejected.Load() }

// Run drains the command channel until the producer closes it, processing
// strictly one command at a time. Per-command errors are logged with the
// offending command and never halt the run. On context cancellation the
// already-buffered commands are drained before returning.
func (p *Processor) Run(ctx context.Context, commands <-chan command.Command) error {
	for {
		select {
		case cmd, ok := <-commands:
			if !ok {
				return nil
			}
			p.Handle(cmd)

		case <-ctx.Done():
			for {
				select {
				case cmd, ok := <-commands:
					if !ok {
						return ctx.Err()
					}
					p.Handle(cmd)
				default:
					return ctx.Err()
				}
			}
		}
	}
}

// Handle processes one command with full accounting: counters, metrics,
// rejection logging, and outcome emission. It returns the processing error
// so callers that own delivery (the NATS loop) can sequence acknowledgement
// on completion; rejections are terminal decisions, not retryable failures.
func (p *Processor) Handle(cmd command.Command) error {
	start := time.Now()
	err := p.Process(cmd)

	kind := cmd.Kind.String()
	if p.metrics != nil {
		p.metrics.CommandDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		p.rejected.Add(1)
		if p.metrics != nil {
			p.metrics.CommandsRejected.WithLabelValues(kind, RejectionReason(err)).Inc()
		}
		p.logger.Warn().
			Str("command", cmd.String()).
			Err(err).
			Msg("command rejected")
		p.emit(cmd, false, RejectionReason(err))
		return err
	}

	p.applied.Add(1)
	if p.metrics != nil {
		p.metrics.CommandsApplied.WithLabelValues(kind).Inc()
		p.metrics.ClientsTracked.Set(float64(p.ledger.Len()))
		switch cmd.Kind {
		case command.KindDeposit, command.KindWithdrawal:
			p.metrics.TxRecorded.Inc()
		case command.KindDispute:
			p.metrics.DisputesOpen.Inc()
		case command.KindResolve:
			p.metrics.DisputesOpen.Dec()
		case command.KindChargeback:
			p.metrics.DisputesOpen.Dec()
			p.metrics.AccountsLocked.Inc()
		}
	}
	p.logger.Debug().
		Str("command", cmd.String()).
		Msg("command applied")
	p.emit(cmd, true, "")
	return nil
}

func (p *Processor) emit(cmd command.Command, accepted bool, reason string) {
	if p.outcomes == nil {
		return
	}
	select {
	case p.outcomes <- Outcome{Command: cmd, Accepted: accepted, Reason: reason}:
	default:
	}
}

// Process validates and applies a single command. At most one balance
// mutation and one history write happen, and only if every check passed.
func (p *Processor) Process(cmd command.Command) error {
	// Phase 1 — referential validation against the history store.
	rec, err := p.validate(cmd)
	if err != nil {
		return err
	}

	// Phase 2 — amount resolution.
	amount, err := p.resolveAmount(cmd, rec)
	if err != nil {
		return err
	}
	if err := command.CheckAmount(amount); err != nil {
		return err
	}

	// Phase 3 — apply the balance transition, then commit both stores.
	balance := p.ledger.Get(cmd.Client)

	var next ledger.Balance
	switch cmd.Kind {
	case command.KindDeposit:
		next, err = balance.Deposit(amount)
	case command.KindWithdrawal:
		next, err = balance.Withdrawal(amount)
	case command.KindDispute:
		next, err = balance.Dispute(amount)
	case command.KindResolve:
		next, err = balance.Resolve(amount)
	case command.KindChargeback:
		next, err = balance.Chargeback(amount)
	default:
		return command.ErrUnknownCommandType
	}
	if err != nil {
		return err
	}

	p.ledger.Commit(cmd.Client, next)

	switch cmd.Kind {
	case command.KindDeposit, command.KindWithdrawal:
		if err := p.history.Insert(cmd.Tx, cmd.Kind, cmd.Client, amount); err != nil {
			// Unreachable with a single consumer: phase 1 held the ID free.
			return err
		}
	case command.KindDispute:
		p.history.MarkDisputed(cmd.Tx)
	case command.KindResolve, command.KindChargeback:
		p.history.MarkResolved(cmd.Tx)
	}

	return nil
}

// validate is phase 1. For dispute-family commands it returns the referenced
// record so phase 2 can recover the amount without a second lookup.
func (p *Processor) validate(cmd command.Command) (history.Record, error) {
	switch cmd.Kind {
	case command.KindDeposit, command.KindWithdrawal:
		if p.history.Exists(cmd.Tx) {
			return history.Record{}, fmt.Errorf("%w: tx=%d", history.ErrTransactionExists, cmd.Tx)
		}
		return history.Record{}, nil

	case command.KindDispute:
		rec, ok := p.history.Lookup(cmd.Tx)
		if !ok {
			return history.Record{}, fmt.Errorf("%w: tx=%d", ErrReferenceNotFound, cmd.Tx)
		}
		if rec.Kind != command.KindDeposit {
			return history.Record{}, fmt.Errorf("%w: tx=%d is a %s", ErrReferenceTypeIncorrect, cmd.Tx, rec.Kind)
		}
		if rec.Client != cmd.Client {
			return history.Record{}, fmt.Errorf("%w: tx=%d belongs to client %d", ErrReferenceClientIncorrect, cmd.Tx, rec.Client)
		}
		if rec.InDispute {
			return history.Record{}, fmt.Errorf("%w: tx=%d", ErrAlreadyInDispute, cmd.Tx)
		}
		return rec, nil

	case command.KindResolve, command.KindChargeback:
		rec, ok := p.history.Lookup(cmd.Tx)
		if !ok {
			return history.Record{}, fmt.Errorf("%w: tx=%d", ErrReferenceNotFound, cmd.Tx)
		}
		if !rec.InDispute {
			return history.Record{}, fmt.Errorf("%w: tx=%d not in dispute", ErrReferenceStateIncorrect, cmd.Tx)
		}
		return rec, nil

	default:
		return history.Record{}, command.ErrUnknownCommandType
	}
}

// resolveAmount is phase 2. Posting commands parse their literal;
// dispute-family commands take the amount from the referenced record, never
// from the command payload.
func (p *Processor) resolveAmount(cmd command.Command, rec history.Record) (decimal.Decimal, error) {
	if cmd.Kind.Posting() {
		if cmd.Amount == "" {
			// An absent amount falls through to the unknown-type
			// rejection rather than a dedicated error.
			return decimal.Zero, fmt.Errorf("%w: missing amount", command.ErrUnknownCommandType)
		}
		return command.ParseAmount(cmd.Amount)
	}
	return rec.Amount, nil
}
