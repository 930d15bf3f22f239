package search

import (
	"context"
	"fmt"
	"time"

	"civicdesk/models"
)

// Complexity labels a query for guardrails and backpressure. It is derived
// purely from the filter shape and never persisted.
type Complexity string

const (
	Simple  Complexity = "simple"
	Complex Complexity = "complex"
)

// Guardrail limits. Violations reject the request outright; nothing is
// truncated silently.
const (
	MaxBulkIDs     = 1000
	MaxDateRanges  = 10
	MaxURLLength   = 2000
	MaxExportRows  = 10000
	MaxSuggestions = 10

	// A query is complex when it uses any advanced filter or more than
	// simpleKeyLimit top-level keys. Past loadShedKeyLimit keys a complex
	// query additionally pays the load-shedding delay.
	simpleKeyLimit   = 5
	loadShedKeyLimit = 10

	loadShedDelay = 150 * time.Millisecond
)

// Classify labels a filter set simple or complex. The key-count threshold is
// a heuristic, not a cost model.
func Classify(f models.FilterSet) Complexity {
	if f.HasAdvanced() || f.KeyCount() > simpleKeyLimit {
		return Complex
	}
	return Simple
}

// Validate enforces the hard guardrails before compilation. It returns a
// ValidationError naming the violated constraint, or nil.
func Validate(f models.FilterSet) error {
	if len(f.BulkIDs) > MaxBulkIDs {
		return &ValidationError{
			Field:  "bulkIds",
			Reason: fmt.Sprintf("at most %d ids allowed, got %d", MaxBulkIDs, len(f.BulkIDs)),
		}
	}
	if len(f.DateRanges) > MaxDateRanges {
		return &ValidationError{
			Field:  "dateRanges",
			Reason: fmt.Sprintf("at most %d range items allowed, got %d", MaxDateRanges, len(f.DateRanges)),
		}
	}
	for i, r := range f.DateRanges {
		if !dateRangeFields[r.Field] {
			return &ValidationError{
				Field:  "dateRanges",
				Reason: fmt.Sprintf("item %d targets unknown date field %q", i, r.Field),
			}
		}
		switch r.Operator {
		case "", "AND", "OR":
		default:
			return &ValidationError{
				Field:  "dateRanges",
				Reason: fmt.Sprintf("item %d has unknown operator %q", i, r.Operator),
			}
		}
	}
	if f.Geo != nil && f.Geo.RadiusKm <= 0 {
		return &ValidationError{Field: "geo.radiusKm", Reason: "radius must be positive"}
	}
	if f.TextSearch != nil {
		if f.TextSearch.Query == "" {
			return &ValidationError{Field: "textSearch.query", Reason: "query must not be empty"}
		}
		for _, field := range f.TextSearch.Fields {
			if !textSearchFields[field] {
				return &ValidationError{
					Field:  "textSearch.fields",
					Reason: fmt.Sprintf("field %q is not searchable", field),
				}
			}
		}
	}
	if f.Reporting != nil && f.Reporting.MinUpvotes != nil {
		// Count thresholds need aggregate post-filtering the engine does
		// not do; reject rather than drop.
		return &ValidationError{Field: "reporting.minUpvotes", Reason: "count-threshold filters are not supported"}
	}
	for name := range f.CustomFields {
		if !customFilterFields[name] {
			return &ValidationError{
				Field:  "customFields",
				Reason: fmt.Sprintf("unsupported field %q", name),
			}
		}
	}
	return nil
}

// ValidateOptions checks the per-call options that name record fields.
func ValidateOptions(opts models.SearchOptions) error {
	for _, field := range opts.FieldSelection {
		if !selectableFields[field] {
			return &ValidationError{
				Field:  "fieldSelection",
				Reason: fmt.Sprintf("field %q is not selectable", field),
			}
		}
	}
	return nil
}

// ShedDelay returns the artificial delay an unusually broad complex query
// must pay before execution, or zero.
func ShedDelay(f models.FilterSet, c Complexity) time.Duration {
	if c == Complex && f.KeyCount() > loadShedKeyLimit {
		return loadShedDelay
	}
	return 0
}

// sleep waits for d or until ctx is done. The delay is coarse backpressure
// against pathological queries, not a fairness mechanism.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var dateRangeFields = map[string]bool{
	FieldCreatedAt:  true,
	FieldUpdatedAt:  true,
	FieldResolvedAt: true,
	FieldClosedAt:   true,
}

var textSearchFields = map[string]bool{
	FieldTitle:       true,
	FieldDescription: true,
	FieldCode:        true,
	FieldLocation:    true,
}

var selectableFields = map[string]bool{
	FieldID:          true,
	FieldCode:        true,
	FieldTitle:       true,
	FieldDescription: true,
	FieldCategory:    true,
	FieldStatus:      true,
	FieldPriority:    true,
	FieldLocation:    true,
	FieldLatitude:    true,
	FieldLongitude:   true,
	FieldIsEmergency: true,
	FieldIsRecurring: true,
	FieldCreatedAt:   true,
	FieldUpdatedAt:   true,
	FieldResolvedAt:  true,
	FieldClosedAt:    true,
}

var customFilterFields = map[string]bool{
	FieldCode:     true,
	FieldCategory: true,
	FieldLocation: true,
	FieldStatus:   true,
	FieldPriority: true,
}
