package models

import (
	"fmt"
	"strings"
	"time"
)

// RawRecord is a single record as it arrives from the feed, before any
// normalization. Field types are whatever the source happened to send.
type RawRecord map[string]any

// CanonicalRecord is the normalized unit of reconciliation.
// Field order matches schema: id, name, value, status, updated_at
type CanonicalRecord struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Value     float64   `json:"value" db:"value"`
	Status    string    `json:"status" db:"status"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Record is a stored record row. The is_open flag is owned by the store;
// the reconciliation pipeline only ever reads it through the bulk update
// predicate and never writes it.
type Record struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Value     float64   `json:"value" db:"value"`
	Status    string    `json:"status" db:"status"`
	IsOpen    bool      `json:"is_open" db:"is_open"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RecordListResponse is the response for listing records
type RecordListResponse struct {
	Items      []Record `json:"items"`
	TotalCount int      `json:"total_count"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
}

// RejectedRecord is a record dropped by validation, with every reason it
// was dropped. Index is the 1-based position of the record in the input batch.
type RejectedRecord struct {
	Index   int      `json:"index"`
	ID      int64    `json:"id"`
	Reasons []string `json:"reasons"`
}

// Message renders the rejection as a single diagnostic string
func (r RejectedRecord) Message() string {
	return fmt.Sprintf("Record %d (ID %d): %s", r.Index, r.ID, strings.Join(r.Reasons, "; "))
}

// ReconcileStats is the store-reported result of one bulk update call.
// Skipped covers both "id not found" and "id found but closed"; the store
// contract does not distinguish the two.
type ReconcileStats struct {
	Updated    int `json:"updated" db:"updated_count"`
	Skipped    int `json:"skipped" db:"skipped_count"`
	TotalInput int `json:"total_input" db:"total_input"`
}

// ReconciliationReport is the aggregate result of one pipeline run
type ReconciliationReport struct {
	RunID   string   `json:"run_id"`
	Fetched int      `json:"fetched"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// ReconcileRequest is the optional request body for a reconcile run.
// When Records is present the pipeline reconciles the supplied batch
// instead of fetching from the feed.
type ReconcileRequest struct {
	Records []RawRecord `json:"records,omitempty" validate:"omitempty,max=10000"`
}
