package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"payledger/internal/engine"
)

// OutcomePublisher publishes per-command outcomes to NATS for downstream
// consumers (settlement, alerting). Subjects follow the pattern
// pay.outcome.{kind}.
type OutcomePublisher struct {
	js        jetstream.JetStream
	inputChan <-chan engine.Outcome
}

// outcomeJSON is the published wire format.
type outcomeJSON struct {
	OutcomeID string    `json:"outcome_id"`
	Type      string    `json:"type"`
	Client    uint16    `json:"client"`
	Tx        uint32    `json:"tx"`
	Accepted  bool      `json:"accepted"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewOutcomePublisher(js jetstream.JetStream, inputChan <-chan engine.Outcome) *OutcomePublisher {
	return &OutcomePublisher{
		js:        js,
		inputChan: inputChan,
	}
}

// Run starts the publisher loop. Publish failures are non-fatal: an outcome
// stream gap is tolerable, the ledger itself is unaffected.
func (op *OutcomePublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, out); err != nil {
				log.Printf("WARN: outcome publish failed tx=%d: %v", out.Command.Tx, err)
			}
		}
	}
}

func (op *OutcomePublisher) publish(ctx context.Context, out engine.Outcome) error {
	data, err := json.Marshal(outcomeJSON{
		OutcomeID: uuid.NewString(),
		Type:      out.Command.Kind.String(),
		Client:    uint16(out.Command.Client),
		Tx:        uint32(out.Command.Tx),
		Accepted:  out.Accepted,
		Reason:    out.Reason,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	subject := fmt.Sprintf("pay.outcome.%s", out.Command.Kind)
	_, err = op.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutcomeStream creates the outcome stream.
func EnsureOutcomeStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "PAY_OUTCOMES",
		Subjects:  []string{"pay.outcome.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outcome stream: %w", err)
	}
	log.Println("INFO: ensured outcome stream PAY_OUTCOMES")
	return nil
}
