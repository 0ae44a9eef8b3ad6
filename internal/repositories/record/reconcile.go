package record

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	// ChangeTypeName is the composite type the bulk update call populates
	ChangeTypeName = "record_change"
	// ReconcileFunctionName is the store-side bulk update function
	ReconcileFunctionName = "reconcile_records"
)

// expectedChangeAttributes is the attribute list the composite type must
// expose, in declaration order, as rendered by format_type.
var expectedChangeAttributes = []compositeAttribute{
	{Name: "id", Type: "bigint"},
	{Name: "name", Type: "text"},
	{Name: "value", Type: "numeric(18,2)"},
	{Name: "status", Type: "text"},
	{Name: "updated_at", Type: "timestamp with time zone"},
}

const expectedFunctionArgs = "changes jsonb"

type compositeAttribute struct {
	Name string `db:"attname"`
	Type string `db:"atttype"`
}

const changeTypeQuery = `
	SELECT a.attname, pg_catalog.format_type(a.atttypid, a.atttypmod) AS atttype
	FROM pg_catalog.pg_type t
	JOIN pg_catalog.pg_namespace n ON n.oid = t.typnamespace
	JOIN pg_catalog.pg_class c ON c.oid = t.typrelid
	JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid
	WHERE n.nspname = 'public'
	  AND t.typname = $1
	  AND a.attnum > 0
	  AND NOT a.attisdropped
	ORDER BY a.attnum
`

const functionArgsQuery = `
	SELECT pg_catalog.pg_get_function_identity_arguments(p.oid)
	FROM pg_catalog.pg_proc p
	JOIN pg_catalog.pg_namespace n ON n.oid = p.pronamespace
	WHERE n.nspname = 'public'
	  AND p.proname = $1
`

// Preflight verifies the store-side bulk update contract before any data is
// sent: the composite type must exist with the expected attributes and the
// function must exist with the expected signature. Contract mismatches come
// back as issues; a failure to read the catalog at all comes back as an error.
func (r *Repository) Preflight(ctx context.Context) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "record.Repository.Preflight")
	defer span.End()

	var attrs []compositeAttribute
	if err := r.db.SelectContext(ctx, &attrs, changeTypeQuery, ChangeTypeName); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read composite type metadata")
		return nil, ferrors.New(ferrors.ClassStore, "preflight.type", err).WithObject(ChangeTypeName)
	}

	issues := checkChangeType(attrs)

	var argLists []string
	if err := r.db.SelectContext(ctx, &argLists, functionArgsQuery, ReconcileFunctionName); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read function metadata")
		return nil, ferrors.New(ferrors.ClassStore, "preflight.function", err).WithObject(ReconcileFunctionName)
	}

	issues = append(issues, checkFunctionSignature(argLists)...)

	if len(issues) > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{"issues": issues}).Warn("Store contract preflight failed")
	}

	return issues, nil
}

// checkChangeType compares the discovered composite attributes against the
// expected layout. An empty attrs slice means the type does not exist.
func checkChangeType(attrs []compositeAttribute) []string {
	if len(attrs) == 0 {
		return []string{fmt.Sprintf("composite type public.%s does not exist", ChangeTypeName)}
	}

	var issues []string
	if len(attrs) != len(expectedChangeAttributes) {
		issues = append(issues, fmt.Sprintf("composite type public.%s has %d attributes, expected %d", ChangeTypeName, len(attrs), len(expectedChangeAttributes)))
	}

	for i, expected := range expectedChangeAttributes {
		if i >= len(attrs) {
			issues = append(issues, fmt.Sprintf("composite type public.%s is missing attribute %q (%s)", ChangeTypeName, expected.Name, expected.Type))
			continue
		}
		actual := attrs[i]
		if actual.Name != expected.Name || actual.Type != expected.Type {
			issues = append(issues, fmt.Sprintf("composite type public.%s attribute %d is %q (%s), expected %q (%s)", ChangeTypeName, i+1, actual.Name, actual.Type, expected.Name, expected.Type))
		}
	}

	return issues
}

// checkFunctionSignature compares the discovered function argument lists
// against the expected signature. No rows means the function does not exist;
// multiple rows mean ambiguous overloads, which the call site cannot resolve.
func checkFunctionSignature(argLists []string) []string {
	switch {
	case len(argLists) == 0:
		return []string{fmt.Sprintf("function public.%s does not exist", ReconcileFunctionName)}
	case len(argLists) > 1:
		return []string{fmt.Sprintf("function public.%s has %d overloads, expected exactly one", ReconcileFunctionName, len(argLists))}
	case argLists[0] != expectedFunctionArgs:
		return []string{fmt.Sprintf("function public.%s has signature (%s), expected (%s)", ReconcileFunctionName, argLists[0], expectedFunctionArgs)}
	}
	return nil
}

const reconcileQuery = `SELECT updated_count, skipped_count, total_input FROM public.reconcile_records($1::jsonb)`

// Apply sends the accepted batch through the store-side bulk update in a
// single transaction and returns the store-reported counts. The function
// only touches rows that exist and are open; everything else counts as
// skipped. Rows are never partially applied: any error rolls the call back.
func (r *Repository) Apply(ctx context.Context, records []models.CanonicalRecord) (models.ReconcileStats, error) {
	ctx, span := tracing.StartSpan(ctx, "record.Repository.Apply")
	defer span.End()

	if len(records) == 0 {
		return models.ReconcileStats{}, nil
	}

	payload, err := json.Marshal(records)
	if err != nil {
		return models.ReconcileStats{}, ferrors.New(ferrors.ClassStore, "reconcile.encode", err)
	}

	start := time.Now()
	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return models.ReconcileStats{}, ferrors.New(ferrors.ClassStore, "reconcile.begin", err)
	}

	var stats models.ReconcileStats
	if err := tx.GetContext(ctx, &stats, reconcileQuery, payload); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			r.logger.WithContext(ctx).WithError(rbErr).Error("Failed to roll back reconcile transaction")
		}
		return models.ReconcileStats{}, r.classifyStoreError(ctx, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.ReconcileStats{}, ferrors.New(ferrors.ClassStore, "reconcile.commit", err)
	}

	metrics.StoreApplyDuration.Observe(time.Since(start).Seconds())

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"updated":     stats.Updated,
		"skipped":     stats.Skipped,
		"total_input": stats.TotalInput,
	}).Info("Applied reconcile batch")

	return stats, nil
}

// classifyStoreError maps known Postgres failures onto stable messages so
// callers never see raw driver text for recognizable conditions. Failures
// that mean the store-side bulk update contract is broken (missing function
// or type, unreadable payload) are classified as contract failures; data
// errors and everything else stay store failures.
func (r *Repository) classifyStoreError(ctx context.Context, err error) error {
	r.logger.WithContext(ctx).WithError(err).Error("Bulk update call failed")

	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "42883": // undefined_function
			return ferrors.Newf(ferrors.ClassContract, "reconcile.apply", "bulk update function is missing or has an unexpected signature").WithObject(ReconcileFunctionName)
		case "42704": // undefined_object
			return ferrors.Newf(ferrors.ClassContract, "reconcile.apply", "bulk update composite type is missing").WithObject(ChangeTypeName)
		case "22P02": // invalid_text_representation
			return ferrors.Newf(ferrors.ClassContract, "reconcile.apply", "batch payload could not be read as the change type").WithObject(ChangeTypeName)
		case "22001": // string_data_right_truncation
			return ferrors.Newf(ferrors.ClassStore, "reconcile.apply", "record field exceeds the store's length limit").WithObject(ChangeTypeName)
		case "22003": // numeric_value_out_of_range
			return ferrors.Newf(ferrors.ClassStore, "reconcile.apply", "record value exceeds the store's numeric range").WithObject(ChangeTypeName)
		}
	}

	return ferrors.New(ferrors.ClassStore, "reconcile.apply", err).WithObject(ReconcileFunctionName)
}
