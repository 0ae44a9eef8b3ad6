// Package feed fetches the external batch of raw records to reconcile.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	// DefaultTimeout is the default request timeout
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum response body size (10MB)
	MaxResponseSize = 10 * 1024 * 1024
)

// Config holds feed client configuration
type Config struct {
	URL             string
	Headers         map[string]string
	Timeout         time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// Client fetches record batches from the feed endpoint. Failures are
// classified at this boundary: deadline overruns, non-success statuses, and
// payloads that are not a JSON array each get their own class.
type Client struct {
	client *http.Client
	cfg    Config
	logger ectologger.Logger
}

// NewClient creates a feed client
func NewClient(cfg Config, logger ectologger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:    cfg.MaxIdleConns,
		IdleConnTimeout: cfg.IdleConnTimeout,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Fetch retrieves the current batch from the feed. The returned slice
// preserves feed order. Records are returned as raw maps; shaping them is the
// normalizer's job, so a well-formed array of odd objects is not an error here.
func (c *Client) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "feed.Fetch")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, ferrors.New(ferrors.ClassTransportHTTP, "feed.fetch", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range c.cfg.Headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Errorf("feed request failed: %s", c.cfg.URL)
		if isTimeout(err) {
			metrics.RecordFeedRequest("timeout", duration.Seconds())
			return nil, ferrors.New(ferrors.ClassTransportTimeout, "feed.fetch", err)
		}
		metrics.RecordFeedRequest("error", duration.Seconds())
		return nil, ferrors.New(ferrors.ClassTransportHTTP, "feed.fetch", err)
	}
	defer resp.Body.Close()

	metrics.RecordFeedRequest(strconv.Itoa(resp.StatusCode), duration.Seconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, ferrors.New(ferrors.ClassTransportHTTP, "feed.fetch", err)
	}
	if len(body) > MaxResponseSize {
		return nil, ferrors.Newf(ferrors.ClassTransportHTTP, "feed.fetch", "response body too large (max %d bytes)", MaxResponseSize)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.WithContext(ctx).Warnf("feed returned status %d", resp.StatusCode)
		return nil, ferrors.Newf(ferrors.ClassTransportHTTP, "feed.fetch", "feed returned status %d", resp.StatusCode)
	}

	var records []models.RawRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, ferrors.New(ferrors.ClassFormat, "feed.decode", fmt.Errorf("feed payload is not a JSON array of records: %w", err))
	}

	c.logger.WithContext(ctx).Debugf("fetched %d records from feed (%s)", len(records), duration)

	return records, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
