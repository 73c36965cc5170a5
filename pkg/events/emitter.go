// Package events handles event emission for sync run lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/lukmanhidayah/siasn-sync/pkg/kafka"
	"github.com/lukmanhidayah/siasn-sync/pkg/models"
	"github.com/lukmanhidayah/siasn-sync/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes run lifecycle events. Every event is also logged, so the
// run history stays observable when Kafka is disabled (nil producer).
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter. producer may be nil.
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitRunStarted emits a run started event
func (e *Emitter) EmitRunStarted(ctx context.Context, runID string) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunStarted")
	defer span.End()

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id": runID,
	}).Info("sync run started")

	if e.producer == nil {
		return
	}

	event := &kafka.RunEvent{
		EventType: "run.started",
		RunID:     runID,
	}
	if err := e.producer.PublishRunEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit run.started event")
	}
}

// EmitRunFinished emits a run completed or run failed event with the summary
func (e *Emitter) EmitRunFinished(ctx context.Context, summary *models.RunSummary) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunFinished")
	defer span.End()

	fields := map[string]any{
		"run_id":          summary.RunID,
		"status":          string(summary.Status),
		"records_fetched": summary.RecordsFetched,
		"rows_written":    summary.RowsWritten,
		"gap_filled":      summary.GapFilled,
		"merged":          summary.Merged,
		"documents_saved": summary.DocumentsSaved,
		"duration":        summary.Duration.String(),
	}
	if summary.Error != "" {
		fields["error"] = summary.Error
	}
	e.logger.WithContext(ctx).WithFields(fields).Info("sync run finished")

	if e.producer == nil {
		return
	}

	if err := e.producer.PublishRunSummary(ctx, summary); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit run summary event")
	}
}

// EmitStageError emits a diagnostic event for an isolated stage failure
func (e *Emitter) EmitStageError(ctx context.Context, runID, stage string, stageErr error) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitStageError")
	defer span.End()

	e.logger.WithContext(ctx).WithError(stageErr).WithFields(map[string]any{
		"run_id": runID,
		"stage":  stage,
	}).Warn("sync stage failed")

	if e.producer == nil {
		return
	}

	detail, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"stage":          stage,
		"error":          stageErr.Error(),
	})

	event := &kafka.RunEvent{
		EventType: "run.stage_error",
		RunID:     runID,
		Summary:   detail,
	}
	if err := e.producer.PublishRunEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit stage error event")
	}
}
