// Package validator partitions a normalized batch into accepted and rejected
// records. Violations are data, not errors: every check runs for every record
// and reasons accumulate in a fixed order.
package validator

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/Ramsey-B/fern/pkg/models"
)

// MaxNameLength is the longest name the store accepts, in characters
// (the column is varchar(255), which counts characters, not bytes)
const MaxNameLength = 255

// Validate evaluates each record independently and returns the accepted
// records in input order plus the rejected records with their reasons.
// The duplicate-id check compares against records already accepted: the
// first occurrence of an id is eligible, every later occurrence is rejected.
func Validate(records []models.CanonicalRecord) ([]models.CanonicalRecord, []models.RejectedRecord) {
	accepted := make([]models.CanonicalRecord, 0, len(records))
	var rejected []models.RejectedRecord

	// id -> 1-based input position of the first accepted occurrence
	acceptedIndex := make(map[int64]int, len(records))

	for i, rec := range records {
		position := i + 1
		reasons := checkRecord(rec)

		if firstIndex, seen := acceptedIndex[rec.ID]; seen {
			reasons = append(reasons, fmt.Sprintf("Duplicate ID found at index %d", firstIndex))
		}

		if len(reasons) > 0 {
			rejected = append(rejected, models.RejectedRecord{
				Index:   position,
				ID:      rec.ID,
				Reasons: reasons,
			})
			continue
		}

		acceptedIndex[rec.ID] = position
		accepted = append(accepted, rec)
	}

	return accepted, rejected
}

// checkRecord runs the per-field checks in reporting order
func checkRecord(rec models.CanonicalRecord) []string {
	var reasons []string

	if rec.ID <= 0 {
		reasons = append(reasons, "Invalid or missing ID")
	}
	if rec.Name == "" {
		reasons = append(reasons, "Name is required")
	}
	if utf8.RuneCountInString(rec.Name) > MaxNameLength {
		reasons = append(reasons, fmt.Sprintf("Name exceeds maximum length (%d characters)", MaxNameLength))
	}
	if math.IsNaN(rec.Value) || math.IsInf(rec.Value, 0) {
		reasons = append(reasons, "Invalid value format")
	}
	if rec.Status == "" {
		reasons = append(reasons, "Status is required")
	}

	return reasons
}
