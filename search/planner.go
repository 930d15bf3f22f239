package search

import (
	"github.com/rs/zerolog"
)

const (
	defaultSortKey = SortByCreatedAt
	defaultLimit   = 20
	maxLimit       = 100
)

// Allow-listed sort keys. The count keys order by relation cardinality
// rather than a scalar column.
const (
	SortByCreatedAt    = "createdAt"
	SortByUpdatedAt    = "updatedAt"
	SortByClosedAt     = "closedAt"
	SortByPriority     = "priority"
	SortByStatus       = "status"
	SortByTitle        = "title"
	SortByCategory     = "category"
	SortByUpvoteCount  = "upvoteCount"
	SortByCommentCount = "commentCount"
)

var sortKeys = map[string]bool{
	SortByCreatedAt:    true,
	SortByUpdatedAt:    true,
	SortByClosedAt:     true,
	SortByPriority:     true,
	SortByStatus:       true,
	SortByTitle:        true,
	SortByCategory:     true,
	SortByUpvoteCount:  true,
	SortByCommentCount: true,
}

// FeatureToggles are consulted by the planner. WrongDefaultSort reproduces
// a known wrong-default-sort condition for testing: callers asking for the
// default creation-time sort get title ascending instead.
type FeatureToggles struct {
	WrongDefaultSort bool
}

// Plan is the resolved, safe execution window: a vetted sort key, direction,
// and clamped skip/take.
type Plan struct {
	OrderBy    string
	Descending bool
	Skip       int
	Take       int

	// As-clamped request values, echoed into the Page.
	Page  int
	Limit int
}

// PlanQuery resolves the requested sort and page window into deterministic
// parameters. Unknown sort keys fall back to creation time descending
// (fail-soft); the fallback is logged. Limit is clamped into [1, maxLimit]
// and page floors at 1 regardless of what the caller sent.
func PlanQuery(sortBy, sortOrder string, page, limit int, toggles FeatureToggles, logger zerolog.Logger) Plan {
	key := sortBy
	if key == "" {
		key = defaultSortKey
	}
	if !sortKeys[key] {
		logger.Warn().Str("sortBy", sortBy).Msg("unknown sort key, falling back to createdAt desc")
		key = defaultSortKey
		sortOrder = "desc"
	}

	descending := sortOrder != "asc"

	if toggles.WrongDefaultSort && key == defaultSortKey && (sortBy == "" || sortBy == defaultSortKey) {
		key = SortByTitle
		descending = false
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	return Plan{
		OrderBy:    key,
		Descending: descending,
		Skip:       (page - 1) * limit,
		Take:       limit,
		Page:       page,
		Limit:      limit,
	}
}
