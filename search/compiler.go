package search

import (
	"fmt"
	"math"
	"time"

	"civicdesk/models"

	"github.com/google/uuid"
)

// Degrees-per-kilometer approximation used for geo bounding boxes.
// 1 degree of latitude is ~111 km; longitude shrinks with cos(latitude).
// Intentionally not geodesic distance; fine for city-scale radii.
const kmPerDegree = 111.0

// Compile translates a validated filter set into a backend-neutral
// predicate tree. Callers must run Validate first; Compile still rejects
// shapes it cannot express (malformed ids, degenerate geo boxes) rather
// than dropping them.
//
// Citizen callers without the showAll flag are scoped to records they
// created before any other condition applies.
func Compile(f models.FilterSet, caller models.Caller) (*Predicate, error) {
	var parts []*Predicate

	if caller.Role == models.RoleCitizen && !f.ShowAll {
		parts = append(parts, Eq(FieldCreatedBy, caller.ID))
	}

	parts = append(parts,
		multiValue(FieldStatus, f.Status),
		multiValue(FieldPriority, f.Priority),
		multiValue(FieldDepartment, f.Department),
		multiValue(FieldAssignedTo, f.AssignedTo),
	)

	// Category and free-text location match by containment, not equality.
	if f.Category != "" {
		parts = append(parts, Contains(FieldCategory, f.Category))
	}
	if f.Location != "" {
		parts = append(parts, Contains(FieldLocation, f.Location))
	}

	parts = append(parts,
		dateRange(FieldCreatedAt, f.CreatedFrom, f.CreatedTo),
		dateRange(FieldUpdatedAt, f.UpdatedFrom, f.UpdatedTo),
		dateRange(FieldResolvedAt, f.ResolvedFrom, f.ResolvedTo),
	)

	if f.Keyword != "" {
		parts = append(parts, keywordGroup(f.Keyword))
	}

	if len(f.DateRanges) > 0 {
		parts = append(parts, complexDateRanges(f.DateRanges))
	}

	if len(f.BulkIDs) > 0 {
		p, err := bulkIDs(f.BulkIDs)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}

	if f.Geo != nil {
		p, err := geoBox(*f.Geo)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}

	if f.TextSearch != nil {
		parts = append(parts, textSearchGroup(*f.TextSearch))
	}

	if f.Citizen != nil {
		parts = append(parts, citizenFilters(*f.Citizen, caller)...)
	}

	if f.Reporting != nil {
		parts = append(parts, reportingFilters(*f.Reporting)...)
	}

	for field, value := range f.CustomFields {
		if !customFilterFields[field] {
			return nil, &ValidationError{Field: "customFields", Reason: fmt.Sprintf("unsupported field %q", field)}
		}
		parts = append(parts, Eq(field, value))
	}

	return And(parts...), nil
}

// multiValue compiles one value to equality and several to membership.
func multiValue(field string, values models.StringList) *Predicate {
	switch len(values) {
	case 0:
		return nil
	case 1:
		return Eq(field, values[0])
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return In(field, vals)
}

// dateRange compiles a pair of optional bounds; absent bounds are omitted,
// never zero-filled.
func dateRange(field string, from, to *time.Time) *Predicate {
	if from == nil && to == nil {
		return nil
	}
	var min, max any
	if from != nil {
		min = *from
	}
	if to != nil {
		max = *to
	}
	return Range(field, min, max)
}

// keywordGroup spans the keyword over title, description, code, and
// location. The OR-group joins other conditions via AND so keyword search
// and structured filters compose instead of overriding each other.
func keywordGroup(keyword string) *Predicate {
	return Or(
		Contains(FieldTitle, keyword),
		Contains(FieldDescription, keyword),
		Contains(FieldCode, keyword),
		Contains(FieldLocation, keyword),
	)
}

// complexDateRanges attaches the advanced range items as one top-level
// branch. Items default to AND; if any item requests OR the whole set
// collapses to a single OR group. That collapse is the documented contract
// for mixed operators.
func complexDateRanges(items []models.DateRangeFilter) *Predicate {
	anyOr := false
	ranges := make([]*Predicate, 0, len(items))
	for _, item := range items {
		if item.Operator == "OR" {
			anyOr = true
		}
		ranges = append(ranges, dateRange(item.Field, item.From, item.To))
	}
	if anyOr {
		return Or(ranges...)
	}
	return And(ranges...)
}

func bulkIDs(raw []string) (*Predicate, error) {
	ids := make([]any, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, &ValidationError{Field: "bulkIds", Reason: fmt.Sprintf("%q is not a valid id", s)}
		}
		ids = append(ids, id)
	}
	return In(FieldID, ids), nil
}

// geoBox compiles a center+radius to a flat lat/lng rectangle.
func geoBox(g models.GeoFilter) (*Predicate, error) {
	latDelta := g.RadiusKm / kmPerDegree
	cosLat := math.Cos(g.Latitude * math.Pi / 180)
	if math.Abs(cosLat) < 1e-6 {
		return nil, &ValidationError{Field: "geo.latitude", Reason: "latitude too close to a pole for a bounding box"}
	}
	lngDelta := g.RadiusKm / (kmPerDegree * math.Abs(cosLat))
	return And(
		Range(FieldLatitude, g.Latitude-latDelta, g.Latitude+latDelta),
		Range(FieldLongitude, g.Longitude-lngDelta, g.Longitude+lngDelta),
	), nil
}

// textSearchGroup compiles the advanced free-text filter. The fuzzy flag is
// accepted but carries no semantic beyond substring containment.
func textSearchGroup(ts models.TextSearchFilter) *Predicate {
	fields := ts.Fields
	if len(fields) == 0 {
		fields = []string{FieldTitle, FieldDescription, FieldCode, FieldLocation}
	}
	tests := make([]*Predicate, 0, len(fields))
	for _, field := range fields {
		tests = append(tests, ContainsCase(field, ts.Query, ts.CaseSensitive))
	}
	return Or(tests...)
}

// citizenFilters always scope to the calling user, never a third party.
func citizenFilters(c models.CitizenFilter, caller models.Caller) []*Predicate {
	var parts []*Predicate
	if c.CreatedByMe {
		parts = append(parts, Eq(FieldCreatedBy, caller.ID))
	}
	if c.HasUpvoted {
		callerID := caller.ID
		parts = append(parts, Exists(RelationUpvotes, &callerID))
	}
	if c.HasCommented {
		callerID := caller.ID
		parts = append(parts, Exists(RelationComments, &callerID))
	}
	return parts
}

func reportingFilters(r models.ReportingFilter) []*Predicate {
	var parts []*Predicate
	if r.HasAttachments != nil {
		if *r.HasAttachments {
			parts = append(parts, Exists(RelationAttachments, nil))
		} else {
			parts = append(parts, NotExists(RelationAttachments, nil))
		}
	}
	if r.IsEmergency != nil {
		parts = append(parts, Eq(FieldIsEmergency, *r.IsEmergency))
	}
	if r.IsRecurring != nil {
		parts = append(parts, Eq(FieldIsRecurring, *r.IsRecurring))
	}
	return parts
}
