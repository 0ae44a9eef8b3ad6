// Package normalizer converts raw feed records into canonical records.
// Normalization is total: any input produces a best-effort canonical value,
// and anything unusable is left for the validator to reject.
package normalizer

import (
	"strconv"
	"strings"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// DefaultStatus is assigned when the source omits the status field
const DefaultStatus = "Unknown"

// timestampLayouts are tried in order when parsing the source timestamp
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize converts a raw feed batch into canonical records, preserving
// order. It never fails; invalid fields become zero values (id, value) or
// defaults (status, updated_at) and are dealt with downstream.
func Normalize(raw []models.RawRecord) []models.CanonicalRecord {
	now := time.Now().UTC()
	records := make([]models.CanonicalRecord, 0, len(raw))
	for _, r := range raw {
		records = append(records, normalizeOne(r, now))
	}
	return records
}

func normalizeOne(raw models.RawRecord, now time.Time) models.CanonicalRecord {
	return models.CanonicalRecord{
		ID:        toInt64(raw["id"]),
		Name:      strings.TrimSpace(toString(raw["name"])),
		Value:     toFloat64(raw["value"]),
		Status:    statusOrDefault(raw["status"]),
		UpdatedAt: toTimestamp(raw["updatedAt"], now),
	}
}

func statusOrDefault(v any) string {
	if v == nil {
		return DefaultStatus
	}
	s := strings.TrimSpace(toString(v))
	if s == "" {
		return DefaultStatus
	}
	return s
}

// toString renders scalar values as strings; non-scalars become ""
func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// toInt64 coerces numeric-ish values to int64; anything else is 0
func toInt64(v any) int64 {
	switch val := v.(type) {
	case float64:
		return int64(val)
	case int:
		return int64(val)
	case int64:
		return val
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// toFloat64 coerces numeric-ish values to float64; anything else is 0
func toFloat64(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// toTimestamp parses the source timestamp, falling back to now when the
// field is absent or unparsable
func toTimestamp(v any, now time.Time) time.Time {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return now
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC()
		}
	}
	return now
}
