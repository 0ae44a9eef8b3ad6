package record

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	recordrepo "github.com/Ramsey-B/fern/internal/repositories/record"
)

// Handler serves read access to stored records
type Handler struct {
	repo *recordrepo.Repository
}

// NewHandler creates a new record handler
func NewHandler(repo *recordrepo.Repository) *Handler {
	return &Handler{repo: repo}
}

// Register registers record routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
}

// List returns a page of records. Supports status, open, page, and page_size
// query parameters.
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()

	var status *string
	if s := c.QueryParam("status"); s != "" {
		status = &s
	}

	var isOpen *bool
	if s := c.QueryParam("open"); s != "" {
		open, err := strconv.ParseBool(s)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "open must be a boolean")
		}
		isOpen = &open
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	resp, err := h.repo.List(ctx, status, isOpen, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// Get returns a single record by ID
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "id must be a positive integer")
	}

	rec, err := h.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "record %d not found", id)
	}

	return c.JSON(http.StatusOK, rec)
}
