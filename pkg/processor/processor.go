// Package processor orchestrates one reconciliation run: preflight the store
// contract, normalize and validate the batch, apply the accepted records
// through the bulk update, and aggregate the outcome into a single report.
package processor

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/appcontext"
	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizer"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validator"
)

// DefaultStoreTimeout bounds the bulk update call
const DefaultStoreTimeout = 60 * time.Second

// FeedClient fetches the raw batch to reconcile
type FeedClient interface {
	Fetch(ctx context.Context) ([]models.RawRecord, error)
}

// RecordStore is the gateway to the store-side bulk update contract
type RecordStore interface {
	Preflight(ctx context.Context) ([]string, error)
	Apply(ctx context.Context, records []models.CanonicalRecord) (models.ReconcileStats, error)
}

// EventEmitter publishes the report of a completed run
type EventEmitter interface {
	EmitRunCompleted(ctx context.Context, report models.ReconciliationReport) error
}

// Config holds processor configuration
type Config struct {
	StoreTimeout time.Duration
}

// Processor runs the reconciliation pipeline
type Processor struct {
	logger  ectologger.Logger
	feed    FeedClient
	store   RecordStore
	emitter EventEmitter
	cfg     Config
}

// NewProcessor creates a new processor. The emitter may be nil when event
// publishing is disabled.
func NewProcessor(logger ectologger.Logger, feed FeedClient, store RecordStore, emitter EventEmitter, cfg Config) *Processor {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	return &Processor{
		logger:  logger,
		feed:    feed,
		store:   store,
		emitter: emitter,
		cfg:     cfg,
	}
}

// RunFromFeed fetches the current batch from the feed and reconciles it
func (p *Processor) RunFromFeed(ctx context.Context) (*models.ReconciliationReport, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.RunFromFeed")
	defer span.End()

	raw, err := p.feed.Fetch(ctx)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Feed fetch failed")
		metrics.RecordRun("feed_error", 0)
		return nil, err
	}

	return p.Run(ctx, raw)
}

// Run reconciles one raw batch end to end and returns the report. Validation
// rejections are data in the report; feed, store, and preflight query failures
// abort the run with a classified error. A verified contract mismatch does not
// abort: it produces a short-circuit report whose errors list the issues, and
// no data is sent to the store.
func (p *Processor) Run(ctx context.Context, raw []models.RawRecord) (*models.ReconciliationReport, error) {
	runID := uuid.New().String()
	ctx = appcontext.SetRunID(ctx, runID)

	ctx, span := tracing.StartSpan(ctx, "processor.Run")
	defer span.End()

	start := time.Now()
	log := p.logger.WithContext(ctx).WithField("run_id", runID)
	log.Infof("Starting reconciliation run with %d records", len(raw))

	issues, err := p.store.Preflight(ctx)
	if err != nil {
		metrics.RecordRun("preflight_error", time.Since(start).Seconds())
		return nil, err
	}
	if len(issues) > 0 {
		report := &models.ReconciliationReport{
			RunID:   runID,
			Fetched: len(raw),
			Skipped: len(raw),
			Errors:  issues,
		}
		log.WithField("issues", issues).Warn("Store contract mismatch, batch not applied")
		p.finishRun(ctx, log, "contract_mismatch", start, report)
		return report, nil
	}

	normalized := normalizer.Normalize(raw)
	accepted, rejected := validator.Validate(normalized)

	runErrors := make([]string, 0, len(rejected))
	for _, rej := range rejected {
		runErrors = append(runErrors, rej.Message())
	}

	if len(accepted) == 0 {
		report := &models.ReconciliationReport{
			RunID:   runID,
			Fetched: len(raw),
			Skipped: len(rejected),
			Errors:  runErrors,
		}
		log.Info("No records eligible for reconciliation, store not called")
		p.finishRun(ctx, log, "success", start, report)
		return report, nil
	}

	if err := ctx.Err(); err != nil {
		metrics.RecordRun("cancelled", time.Since(start).Seconds())
		return nil, err
	}

	applyCtx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()

	stats, err := p.store.Apply(applyCtx, accepted)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = ferrors.Newf(ferrors.ClassStore, "reconcile.apply", "bulk update exceeded the %s store timeout", p.cfg.StoreTimeout)
		}
		log.WithError(err).Error("Bulk update failed, run aborted")
		metrics.RecordRun("store_error", time.Since(start).Seconds())
		return nil, err
	}

	report := &models.ReconciliationReport{
		RunID:   runID,
		Fetched: len(raw),
		Updated: stats.Updated,
		Skipped: stats.Skipped + len(rejected),
		Errors:  runErrors,
	}

	metrics.RecordDispositions(stats.Updated, report.Skipped, len(runErrors))
	p.finishRun(ctx, log, "success", start, report)

	return report, nil
}

// finishRun records run metrics, logs the outcome, and publishes the
// completion event. Emit failures are logged and swallowed: the report is
// already final and the run outcome must not depend on the broker.
func (p *Processor) finishRun(ctx context.Context, log ectologger.Logger, outcome string, start time.Time, report *models.ReconciliationReport) {
	duration := time.Since(start)
	metrics.RecordRun(outcome, duration.Seconds())

	log.WithFields(map[string]any{
		"outcome": outcome,
		"fetched": report.Fetched,
		"updated": report.Updated,
		"skipped": report.Skipped,
		"errors":  len(report.Errors),
	}).Infof("Reconciliation run completed in %v", duration)

	if p.emitter == nil {
		return
	}
	if err := p.emitter.EmitRunCompleted(ctx, *report); err != nil {
		log.WithError(err).Warn("Failed to publish run completion event")
	}
}
