// Package events handles event emission for reconciliation run lifecycle
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// EventRunCompleted is published after every finished run, including
// contract-mismatch short circuits
const EventRunCompleted = "reconciliation.completed"

// Emitter publishes reconciliation run events
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitRunCompleted emits a reconciliation.completed event for the report
func (e *Emitter) EmitRunCompleted(ctx context.Context, report models.ReconciliationReport) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunCompleted")
	defer span.End()

	var errorsJSON json.RawMessage
	if len(report.Errors) > 0 {
		errorsJSON, _ = json.Marshal(report.Errors)
	}

	event := &kafka.ReconciliationEvent{
		EventType: EventRunCompleted,
		RunID:     report.RunID,
		Fetched:   report.Fetched,
		Updated:   report.Updated,
		Skipped:   report.Skipped,
		Errors:    errorsJSON,
	}

	if err := e.producer.PublishReconciliationEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit reconciliation.completed event")
		return err
	}

	return nil
}
