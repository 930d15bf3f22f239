package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// StringList accepts either a single JSON string or an array of strings, so
// the rich search form can send "status": "SUBMITTED" and
// "status": ["SUBMITTED", "TRIAGED"] interchangeably.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*s = StringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// DateRangeFilter is one item of the advanced complex-date-range filter.
// Operator is "AND" (default) or "OR" and controls how the item combines
// with its siblings.
type DateRangeFilter struct {
	Field    string     `json:"field"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
	Operator string     `json:"operator,omitempty"`
}

// GeoFilter bounds results to a rectangle approximating a radius around a
// center point.
type GeoFilter struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusKm  float64 `json:"radiusKm"`
}

// TextSearchFilter is the advanced multi-field free-text filter. Fields
// defaults to title, description, code, and location. Fuzzy is accepted for
// forward compatibility but currently has no semantic beyond substring
// containment.
type TextSearchFilter struct {
	Query         string   `json:"query"`
	Fields        []string `json:"fields,omitempty"`
	CaseSensitive bool     `json:"caseSensitive,omitempty"`
	Fuzzy         bool     `json:"fuzzy,omitempty"`
}

// CitizenFilter narrows results by the calling user's relationship to the
// record. These always scope to the caller, never a third party.
type CitizenFilter struct {
	CreatedByMe  bool `json:"createdByMe,omitempty"`
	HasUpvoted   bool `json:"hasUpvoted,omitempty"`
	HasCommented bool `json:"hasCommented,omitempty"`
}

// ReportingFilter covers attachment presence and the emergency/recurring
// flags. MinUpvotes is parsed but not supported by the engine; validation
// rejects it explicitly rather than dropping it.
type ReportingFilter struct {
	HasAttachments *bool `json:"hasAttachments,omitempty"`
	IsEmergency    *bool `json:"isEmergency,omitempty"`
	IsRecurring    *bool `json:"isRecurring,omitempty"`
	MinUpvotes     *int  `json:"minUpvotes,omitempty"`
}

// FilterSet is the declarative filter object. The basic tier is reachable
// from the bookmarkable GET form; the advanced tier only from the rich POST
// form. All fields are optional and independently combinable; an empty
// FilterSet matches every record visible to the caller's role.
type FilterSet struct {
	Status     StringList `json:"status,omitempty"`
	Priority   StringList `json:"priority,omitempty"`
	Category   string     `json:"category,omitempty"`
	Department StringList `json:"department,omitempty"`
	AssignedTo StringList `json:"assignedTo,omitempty"`
	Location   string     `json:"location,omitempty"`
	Keyword    string     `json:"keyword,omitempty"`

	CreatedFrom  *time.Time `json:"createdFrom,omitempty"`
	CreatedTo    *time.Time `json:"createdTo,omitempty"`
	UpdatedFrom  *time.Time `json:"updatedFrom,omitempty"`
	UpdatedTo    *time.Time `json:"updatedTo,omitempty"`
	ResolvedFrom *time.Time `json:"resolvedFrom,omitempty"`
	ResolvedTo   *time.Time `json:"resolvedTo,omitempty"`

	// ShowAll lifts the created-by-me scoping for citizen callers.
	ShowAll bool `json:"showAll,omitempty"`

	DateRanges   []DateRangeFilter `json:"dateRanges,omitempty"`
	BulkIDs      []string          `json:"bulkIds,omitempty"`
	Geo          *GeoFilter        `json:"geo,omitempty"`
	TextSearch   *TextSearchFilter `json:"textSearch,omitempty"`
	Citizen      *CitizenFilter    `json:"citizen,omitempty"`
	Reporting    *ReportingFilter  `json:"reporting,omitempty"`
	CustomFields map[string]string `json:"customFields,omitempty"`
}

// KeyCount returns the number of top-level filter keys that carry a value.
// Each populated field counts as one key regardless of how many values it
// holds; the complexity classifier thresholds on this number.
func (f FilterSet) KeyCount() int {
	n := 0
	if len(f.Status) > 0 {
		n++
	}
	if len(f.Priority) > 0 {
		n++
	}
	if f.Category != "" {
		n++
	}
	if len(f.Department) > 0 {
		n++
	}
	if len(f.AssignedTo) > 0 {
		n++
	}
	if f.Location != "" {
		n++
	}
	if f.Keyword != "" {
		n++
	}
	for _, t := range []*time.Time{f.CreatedFrom, f.CreatedTo, f.UpdatedFrom, f.UpdatedTo, f.ResolvedFrom, f.ResolvedTo} {
		if t != nil {
			n++
		}
	}
	if len(f.DateRanges) > 0 {
		n++
	}
	if len(f.BulkIDs) > 0 {
		n++
	}
	if f.Geo != nil {
		n++
	}
	if f.TextSearch != nil {
		n++
	}
	if f.Citizen != nil {
		n++
	}
	if f.Reporting != nil {
		n++
	}
	if len(f.CustomFields) > 0 {
		n++
	}
	return n
}

// HasAdvanced reports whether any advanced-tier filter is present.
func (f FilterSet) HasAdvanced() bool {
	return len(f.DateRanges) > 0 || len(f.BulkIDs) > 0 || f.Geo != nil ||
		f.TextSearch != nil || f.Citizen != nil || f.Reporting != nil ||
		len(f.CustomFields) > 0
}

// Pagination is the requested page window. The planner clamps both values.
type Pagination struct {
	Page  int `json:"page" form:"page"`
	Limit int `json:"limit" form:"limit"`
}

// Sorting is the requested ordering.
type Sorting struct {
	SortBy    string `json:"sortBy" form:"sortBy"`
	SortOrder string `json:"sortOrder" form:"sortOrder"`
}

// SearchOptions tune a single search call without affecting which records
// match.
type SearchOptions struct {
	IncludeAggregations bool     `json:"includeAggregations,omitempty"`
	IncludeRelations    bool     `json:"includeRelations,omitempty"`
	FieldSelection      []string `json:"fieldSelection,omitempty"`
	SkipCache           bool     `json:"skipCache,omitempty"`
	CacheKey            string   `json:"cacheKey,omitempty"`
}

// SearchRequest is the full rich-form request body. Treated as immutable
// once bound.
type SearchRequest struct {
	Filters    FilterSet     `json:"filters"`
	Pagination Pagination    `json:"pagination"`
	Sorting    Sorting       `json:"sorting"`
	Options    SearchOptions `json:"options"`
}

// Page is one window of transformed results plus pagination metadata.
type Page struct {
	Records    []ApiRecord `json:"records"`
	TotalCount int64       `json:"totalCount"`
	PageIndex  int         `json:"page"`
	PageSize   int         `json:"limit"`
	TotalPages int         `json:"totalPages"`
}

// Aggregations maps a dimension (status, priority, category, department) to
// per-value counts. Records with no value for the dimension are counted
// under the UNSPECIFIED sentinel.
type Aggregations map[string]map[string]int64

// AggregationUnspecified is the sentinel bucket for null/unset group values.
const AggregationUnspecified = "UNSPECIFIED"
