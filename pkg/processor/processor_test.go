package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeFeed struct {
	records []models.RawRecord
	err     error
}

func (f *fakeFeed) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	return f.records, f.err
}

type fakeStore struct {
	issues       []string
	preflightErr error
	stats        models.ReconcileStats
	applyErr     error
	applyFn      func(ctx context.Context, records []models.CanonicalRecord) (models.ReconcileStats, error)

	applyCalls int
	applied    []models.CanonicalRecord
}

func (s *fakeStore) Preflight(ctx context.Context) ([]string, error) {
	return s.issues, s.preflightErr
}

func (s *fakeStore) Apply(ctx context.Context, records []models.CanonicalRecord) (models.ReconcileStats, error) {
	s.applyCalls++
	s.applied = records
	if s.applyFn != nil {
		return s.applyFn(ctx, records)
	}
	return s.stats, s.applyErr
}

type fakeEmitter struct {
	reports []models.ReconciliationReport
	err     error
}

func (e *fakeEmitter) EmitRunCompleted(ctx context.Context, report models.ReconciliationReport) error {
	e.reports = append(e.reports, report)
	return e.err
}

func rawRecord(id int, name string, value float64, status string) models.RawRecord {
	return models.RawRecord{
		"id":        id,
		"name":      name,
		"value":     value,
		"status":    status,
		"updatedAt": "2024-03-01T12:00:00Z",
	}
}

func newTestProcessor(feed *fakeFeed, store *fakeStore, emitter *fakeEmitter) *Processor {
	var e EventEmitter
	if emitter != nil {
		e = emitter
	}
	return NewProcessor(testLogger(), feed, store, e, Config{StoreTimeout: time.Second})
}

func TestRun_SuccessfulBatch(t *testing.T) {
	store := &fakeStore{stats: models.ReconcileStats{Updated: 2, Skipped: 1, TotalInput: 3}}
	emitter := &fakeEmitter{}
	p := newTestProcessor(&fakeFeed{}, store, emitter)

	report, err := p.Run(context.Background(), []models.RawRecord{
		rawRecord(1, "A", 10, "Active"),
		rawRecord(2, "B", 20, "Pending"),
		rawRecord(3, "C", 30, "Closed"),
	})

	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, report.Errors)

	assert.Equal(t, 1, store.applyCalls)
	require.Len(t, store.applied, 3)

	// every record is accounted for
	assert.Equal(t, report.Fetched, report.Updated+report.Skipped)

	require.Len(t, emitter.reports, 1)
	assert.Equal(t, report.RunID, emitter.reports[0].RunID)
}

func TestRun_RejectionsAreReportedNotFatal(t *testing.T) {
	store := &fakeStore{stats: models.ReconcileStats{Updated: 1, Skipped: 0, TotalInput: 1}}
	p := newTestProcessor(&fakeFeed{}, store, nil)

	report, err := p.Run(context.Background(), []models.RawRecord{
		rawRecord(1, "A", 10, "Active"),
		rawRecord(0, "B", 20, "Active"),
		rawRecord(1, "C", 30, "Active"),
	})

	require.NoError(t, err)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 1, report.Updated)
	// store skipped plus the two rejected records
	assert.Equal(t, 2, report.Skipped)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, "Record 2 (ID 0): Invalid or missing ID", report.Errors[0])
	assert.Equal(t, "Record 3 (ID 1): Duplicate ID found at index 1", report.Errors[1])

	// only the accepted record reaches the store
	require.Len(t, store.applied, 1)
	assert.Equal(t, int64(1), store.applied[0].ID)
}

func TestRun_ContractMismatchShortCircuits(t *testing.T) {
	store := &fakeStore{issues: []string{
		"composite type public.record_change does not exist",
		"function public.reconcile_records does not exist",
	}}
	emitter := &fakeEmitter{}
	p := newTestProcessor(&fakeFeed{}, store, emitter)

	report, err := p.Run(context.Background(), []models.RawRecord{rawRecord(1, "A", 10, "Active")})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Fetched)
	assert.Zero(t, report.Updated)
	assert.Equal(t, 1, report.Skipped, "the whole batch counts as skipped")
	assert.Equal(t, store.issues, report.Errors)
	assert.Zero(t, store.applyCalls, "store must not receive data on a contract mismatch")
	assert.Len(t, emitter.reports, 1)
}

func TestRun_PreflightQueryFailureAbortsRun(t *testing.T) {
	store := &fakeStore{preflightErr: ferrors.Newf(ferrors.ClassStore, "preflight.type", "connection refused")}
	p := newTestProcessor(&fakeFeed{}, store, nil)

	report, err := p.Run(context.Background(), []models.RawRecord{rawRecord(1, "A", 10, "Active")})

	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, ferrors.Is(err, ferrors.ClassStore))
	assert.Zero(t, store.applyCalls)
}

func TestRun_EmptyAcceptedSkipsStoreCall(t *testing.T) {
	store := &fakeStore{}
	p := newTestProcessor(&fakeFeed{}, store, nil)

	report, err := p.Run(context.Background(), []models.RawRecord{
		rawRecord(0, "A", 10, "Active"),
		rawRecord(-1, "B", 20, "Active"),
	})

	require.NoError(t, err)
	assert.Equal(t, 2, report.Fetched)
	assert.Zero(t, report.Updated)
	assert.Equal(t, 2, report.Skipped)
	assert.Len(t, report.Errors, 2)
	assert.Zero(t, store.applyCalls)
}

func TestRun_EmptyBatch(t *testing.T) {
	store := &fakeStore{}
	p := newTestProcessor(&fakeFeed{}, store, nil)

	report, err := p.Run(context.Background(), nil)

	require.NoError(t, err)
	assert.Zero(t, report.Fetched)
	assert.Zero(t, report.Updated)
	assert.Zero(t, report.Skipped)
	assert.Empty(t, report.Errors)
	assert.Zero(t, store.applyCalls)
}

func TestRun_StoreErrorAbortsRun(t *testing.T) {
	store := &fakeStore{applyErr: ferrors.Newf(ferrors.ClassStore, "reconcile.apply", "deadlock detected")}
	p := newTestProcessor(&fakeFeed{}, store, nil)

	report, err := p.Run(context.Background(), []models.RawRecord{rawRecord(1, "A", 10, "Active")})

	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, ferrors.Is(err, ferrors.ClassStore))
}

func TestRun_StoreTimeoutIsClassified(t *testing.T) {
	store := &fakeStore{applyFn: func(ctx context.Context, _ []models.CanonicalRecord) (models.ReconcileStats, error) {
		<-ctx.Done()
		return models.ReconcileStats{}, ctx.Err()
	}}
	p := NewProcessor(testLogger(), &fakeFeed{}, store, nil, Config{StoreTimeout: 10 * time.Millisecond})

	_, err := p.Run(context.Background(), []models.RawRecord{rawRecord(1, "A", 10, "Active")})

	require.Error(t, err)
	assert.True(t, ferrors.Is(err, ferrors.ClassStore))
	assert.Contains(t, err.Error(), "store timeout")
}

func TestRun_CancelledContext(t *testing.T) {
	store := &fakeStore{}
	p := newTestProcessor(&fakeFeed{}, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, []models.RawRecord{rawRecord(1, "A", 10, "Active")})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.applyCalls)
}

func TestRun_EmitterFailureDoesNotFailRun(t *testing.T) {
	store := &fakeStore{stats: models.ReconcileStats{Updated: 1, TotalInput: 1}}
	emitter := &fakeEmitter{err: errors.New("broker unavailable")}
	p := newTestProcessor(&fakeFeed{}, store, emitter)

	report, err := p.Run(context.Background(), []models.RawRecord{rawRecord(1, "A", 10, "Active")})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
}

func TestRunFromFeed_FetchesAndReconciles(t *testing.T) {
	feed := &fakeFeed{records: []models.RawRecord{
		rawRecord(1, "A", 10, "Active"),
		rawRecord(2, "B", 20, "Active"),
	}}
	store := &fakeStore{stats: models.ReconcileStats{Updated: 2, TotalInput: 2}}
	p := newTestProcessor(feed, store, nil)

	report, err := p.RunFromFeed(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 2, report.Updated)
}

func TestRunFromFeed_FeedFailurePropagates(t *testing.T) {
	feed := &fakeFeed{err: ferrors.Newf(ferrors.ClassTransportTimeout, "feed.fetch", "deadline exceeded")}
	store := &fakeStore{}
	p := newTestProcessor(feed, store, nil)

	report, err := p.RunFromFeed(context.Background())

	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, ferrors.Is(err, ferrors.ClassTransportTimeout))
	assert.Zero(t, store.applyCalls)
}
