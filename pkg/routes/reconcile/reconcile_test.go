package reconcile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/processor"
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
	stats models.ReconcileStats
}

func (s *fakeStore) Preflight(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (s *fakeStore) Apply(ctx context.Context, records []models.CanonicalRecord) (models.ReconcileStats, error) {
	return s.stats, nil
}

func newTestHandler(feed *fakeFeed, store *fakeStore) *Handler {
	return NewHandler(processor.NewProcessor(testLogger(), feed, store, nil, processor.Config{StoreTimeout: time.Second}))
}

func makeRequest(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(testLogger())

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(http.MethodPost, "/api/v1/reconcile", nil)
	} else {
		req = httptest.NewRequest(http.MethodPost, "/api/v1/reconcile", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/reconcile")

	err := h.Run(c)
	if err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestRun_NoBodyFetchesFromFeed(t *testing.T) {
	feed := &fakeFeed{records: []models.RawRecord{
		{"id": 1, "name": "A", "value": 10, "status": "Active"},
	}}
	h := newTestHandler(feed, &fakeStore{stats: models.ReconcileStats{Updated: 1, TotalInput: 1}})

	rec := makeRequest(t, h, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fetched":1`)
	assert.Contains(t, rec.Body.String(), `"updated":1`)
}

func TestRun_BodyBatchBypassesFeed(t *testing.T) {
	feed := &fakeFeed{err: ferrors.Newf(ferrors.ClassTransportHTTP, "feed.fetch", "should not be called")}
	h := newTestHandler(feed, &fakeStore{stats: models.ReconcileStats{Updated: 1, TotalInput: 1}})

	rec := makeRequest(t, h, `{"records": [{"id": 1, "name": "A", "value": 10, "status": "Active"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"updated":1`)
}

func TestRun_FeedFailureIsBadGateway(t *testing.T) {
	feed := &fakeFeed{err: ferrors.Newf(ferrors.ClassTransportTimeout, "feed.fetch", "deadline exceeded")}
	h := newTestHandler(feed, &fakeStore{})

	rec := makeRequest(t, h, "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRun_MalformedBodyIsBadRequest(t *testing.T) {
	h := newTestHandler(&fakeFeed{}, &fakeStore{})

	rec := makeRequest(t, h, `{"records": [`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
