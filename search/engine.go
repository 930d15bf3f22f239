package search

import (
	"context"
	"time"

	"civicdesk/models"

	"github.com/rs/zerolog"
)

// QueryOptions tell the store what shape to fetch.
type QueryOptions struct {
	// FieldSelection restricts the fetch to the named fields plus identity.
	FieldSelection []string
	// IncludeRelations loads full comment/attachment/upvote lists for the
	// page instead of counts only.
	IncludeRelations bool
}

// Store runs compiled predicates against the record store. database.DB is
// the production implementation; tests substitute a fake.
type Store interface {
	// SearchRequests returns one page of transformed records and the total
	// matching count. Count and fetch share the same predicate.
	SearchRequests(ctx context.Context, pred *Predicate, plan Plan, opts QueryOptions) ([]models.ApiRecord, int64, error)

	// Aggregations returns group-by counts over status, priority, category,
	// and department for the predicate.
	Aggregations(ctx context.Context, pred *Predicate) (models.Aggregations, error)
}

// Result is the outcome of one search call.
type Result struct {
	Page         models.Page
	Aggregations models.Aggregations
	Complexity   Complexity
	FromCache    bool
	Duration     time.Duration
}

// Engine ties the compiler, planner, classifier, cache, and store together
// into the single search path.
type Engine struct {
	store   Store
	cache   *ResultCache
	toggles FeatureToggles
	logger  zerolog.Logger
}

func NewEngine(store Store, cache *ResultCache, toggles FeatureToggles, logger zerolog.Logger) *Engine {
	return &Engine{
		store:   store,
		cache:   cache,
		toggles: toggles,
		logger:  logger,
	}
}

// Search validates, classifies, and executes one request. Validation and
// guardrail failures surface before any cache or store access. A cache hit
// within the TTL short-circuits execution unless skipCache is set. Results
// of failed executions are never cached.
func (e *Engine) Search(ctx context.Context, req models.SearchRequest, caller models.Caller) (*Result, error) {
	start := time.Now()

	if err := Validate(req.Filters); err != nil {
		return nil, err
	}
	if err := ValidateOptions(req.Options); err != nil {
		return nil, err
	}
	complexity := Classify(req.Filters)

	pred, err := Compile(req.Filters, caller)
	if err != nil {
		return nil, err
	}
	if req.Filters.TextSearch != nil && req.Filters.TextSearch.Fuzzy {
		e.logger.Debug().Msg("fuzzy text search requested; matching by substring containment only")
	}

	plan := PlanQuery(req.Sorting.SortBy, req.Sorting.SortOrder, req.Pagination.Page, req.Pagination.Limit, e.toggles, e.logger)

	key := req.Options.CacheKey
	if key == "" {
		key = Fingerprint(req, caller)
	}

	if !req.Options.SkipCache {
		if entry, ok := e.cache.Get(key); ok {
			e.logger.Debug().
				Str("key", key).
				Str("caller", caller.ID.String()).
				Dur("duration", time.Since(start)).
				Msg("search served from cache")
			return &Result{
				Page:         entry.Page,
				Aggregations: entry.Aggregations,
				Complexity:   complexity,
				FromCache:    true,
				Duration:     time.Since(start),
			}, nil
		}
	}

	if delay := ShedDelay(req.Filters, complexity); delay > 0 {
		e.logger.Info().
			Dur("delay", delay).
			Int("filterKeys", req.Filters.KeyCount()).
			Msg("load shedding broad complex query")
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	opts := QueryOptions{
		FieldSelection:   req.Options.FieldSelection,
		IncludeRelations: req.Options.IncludeRelations,
	}
	records, total, err := e.store.SearchRequests(ctx, pred, plan, opts)
	if err != nil {
		e.logger.Error().
			Err(err).
			Str("caller", caller.ID.String()).
			Interface("filters", req.Filters).
			Msg("search execution failed")
		return nil, &ExecutionError{Err: err}
	}

	var aggs models.Aggregations
	if req.Options.IncludeAggregations {
		aggs, err = e.store.Aggregations(ctx, pred)
		if err != nil {
			e.logger.Error().
				Err(err).
				Str("caller", caller.ID.String()).
				Msg("aggregation execution failed")
			return nil, &ExecutionError{Err: err}
		}
	}

	page := models.Page{
		Records:    records,
		TotalCount: total,
		PageIndex:  plan.Page,
		PageSize:   plan.Limit,
		TotalPages: totalPages(total, plan.Limit),
	}

	e.cache.Put(key, page, aggs)

	duration := time.Since(start)
	e.logger.Info().
		Str("complexity", string(complexity)).
		Int64("total", total).
		Dur("duration", duration).
		Str("caller", caller.ID.String()).
		Msg("search executed")

	return &Result{
		Page:         page,
		Aggregations: aggs,
		Complexity:   complexity,
		Duration:     duration,
	}, nil
}

// Export runs the same filter path with the elevated export ceiling and no
// cache involvement, so exported data is always current. Staff only;
// permission is checked here as well as at the handler.
func (e *Engine) Export(ctx context.Context, filters models.FilterSet, sorting models.Sorting, caller models.Caller) ([]models.ApiRecord, error) {
	if !caller.IsStaff() {
		return nil, ErrForbidden
	}
	if err := Validate(filters); err != nil {
		return nil, err
	}

	pred, err := Compile(filters, caller)
	if err != nil {
		return nil, err
	}

	plan := PlanQuery(sorting.SortBy, sorting.SortOrder, 1, maxLimit, e.toggles, e.logger)
	plan.Take = MaxExportRows
	plan.Skip = 0

	records, total, err := e.store.SearchRequests(ctx, pred, plan, QueryOptions{})
	if err != nil {
		e.logger.Error().
			Err(err).
			Str("caller", caller.ID.String()).
			Msg("export execution failed")
		return nil, &ExecutionError{Err: err}
	}

	e.logger.Info().
		Int("records", len(records)).
		Int64("total", total).
		Str("caller", caller.ID.String()).
		Msg("export executed")
	return records, nil
}

// ClearCache drops all cached results and returns how many were evicted.
func (e *Engine) ClearCache(caller models.Caller) (int, error) {
	if caller.Role != models.RoleAdmin {
		return 0, ErrForbidden
	}
	n := e.cache.Clear()
	e.logger.Info().Int("evicted", n).Str("caller", caller.ID.String()).Msg("search cache cleared")
	return n, nil
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
