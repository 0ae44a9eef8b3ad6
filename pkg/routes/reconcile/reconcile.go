package reconcile

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/processor"
	"github.com/Ramsey-B/fern/pkg/utils"
)

// Handler triggers reconciliation runs
type Handler struct {
	processor *processor.Processor
}

// NewHandler creates a new reconcile handler
func NewHandler(p *processor.Processor) *Handler {
	return &Handler{processor: p}
}

// Register registers reconcile routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("", h.Run)
}

// Run starts a reconciliation run and returns its report. With no request
// body the batch is fetched from the configured feed; a body with records
// reconciles the supplied batch instead.
func (h *Handler) Run(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.ReconcileRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "request body must be JSON")
		}
		if _, err := utils.Validate(req); err != nil {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid request: %v", err)
		}
	}

	var report *models.ReconciliationReport
	var err error
	if req.Records != nil {
		report, err = h.processor.Run(ctx, req.Records)
	} else {
		report, err = h.processor.RunFromFeed(ctx)
	}
	if err != nil {
		return runError(err)
	}

	return c.JSON(http.StatusOK, report)
}

// runError maps classified pipeline failures onto HTTP statuses. Feed
// problems are the upstream's fault, store problems are ours.
func runError(err error) error {
	switch ferrors.ClassOf(err) {
	case ferrors.ClassFormat, ferrors.ClassTransportHTTP, ferrors.ClassTransportTimeout:
		return httperror.NewHTTPErrorf(http.StatusBadGateway, "feed is unavailable: %v", err)
	case ferrors.ClassStore, ferrors.ClassContract:
		return httperror.NewHTTPError(http.StatusInternalServerError, "reconciliation failed")
	}
	return err
}
