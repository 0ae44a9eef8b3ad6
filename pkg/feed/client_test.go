package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Config{
		URL:     server.URL,
		Timeout: timeout,
		Headers: map[string]string{"Authorization": "Bearer test-token"},
	}, testLogger())

	return client, server
}

func TestFetch_ReturnsRecordsInFeedOrder(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 1, "name": "First", "value": 10.5, "status": "Active", "updatedAt": "2024-01-01T00:00:00Z"},
			{"id": 2, "name": "Second", "value": 20, "status": "Pending", "updatedAt": "2024-01-02T00:00:00Z"}
		]`))
	}, 0)

	records, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "First", records[0]["name"])
	assert.Equal(t, "Second", records[1]["name"])
}

func TestFetch_ForwardsConfiguredHeaders(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}, 0)

	_, err := client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestFetch_EmptyArrayIsNotAnError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, 0)

	records, err := client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetch_NonSuccessStatusIsTransportError(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusInternalServerError, http.StatusBadGateway} {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}, 0)

		_, err := client.Fetch(context.Background())
		require.Error(t, err)
		assert.True(t, ferrors.Is(err, ferrors.ClassTransportHTTP), "status %d should classify as transport-http", status)
	}
}

func TestFetch_NonArrayBodyIsFormatError(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "object body", body: `{"records": []}`},
		{name: "scalar body", body: `42`},
		{name: "truncated body", body: `[{"id": 1`},
		{name: "not json at all", body: `<html>oops</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}, 0)

			_, err := client.Fetch(context.Background())
			require.Error(t, err)
			assert.True(t, ferrors.Is(err, ferrors.ClassFormat))
		})
	}
}

func TestFetch_TimeoutIsClassified(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	}, 20*time.Millisecond)

	_, err := client.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.Is(err, ferrors.ClassTransportTimeout))
}

func TestFetch_CancelledContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Fetch(ctx)
	require.Error(t, err)
}
