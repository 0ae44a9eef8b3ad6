package record

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var recordColumns = []string{"id", "name", "value", "status", "is_open", "created_at", "updated_at"}

// Repository handles record persistence and the bulk reconciliation contract
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new record repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a record by ID. Returns nil when no record exists.
func (r *Repository) Get(ctx context.Context, id int64) (*models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "record.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(recordColumns...)
	sb.From("records")
	sb.Where(sb.Equal("id", id))
	sb.Limit(1)

	query, args := sb.Build()
	var rec models.Record
	if err := r.db.GetContext(ctx, &rec, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get record")
	}
	return &rec, nil
}

// List returns a page of records, optionally filtered by status and openness
func (r *Repository) List(ctx context.Context, status *string, isOpen *bool, page, pageSize int) (*models.RecordListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "record.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	// Count total
	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From("records")
	var countWhere []string
	if status != nil {
		countWhere = append(countWhere, countSb.Equal("status", *status))
	}
	if isOpen != nil {
		countWhere = append(countWhere, countSb.Equal("is_open", *isOpen))
	}
	if len(countWhere) > 0 {
		countSb.Where(countWhere...)
	}

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"status": status, "is_open": isOpen, "page": page, "page_size": pageSize}).Error("Failed to count records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count records")
	}

	// Fetch page
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(recordColumns...)
	sb.From("records")
	var where []string
	if status != nil {
		where = append(where, sb.Equal("status", *status))
	}
	if isOpen != nil {
		where = append(where, sb.Equal("is_open", *isOpen))
	}
	if len(where) > 0 {
		sb.Where(where...)
	}
	sb.OrderBy("id ASC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var records []models.Record
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"status": status, "is_open": isOpen, "page": page, "page_size": pageSize}).Error("Failed to list records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list records")
	}

	return &models.RecordListResponse{
		Items:      records,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}
