package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"civicdesk/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore records calls and serves canned results.
type fakeStore struct {
	records  []models.ApiRecord
	total    int64
	err      error
	aggs     models.Aggregations
	aggsErr  error
	calls    int
	aggCalls int
	lastPlan Plan
	lastPred *Predicate
}

func (s *fakeStore) SearchRequests(ctx context.Context, pred *Predicate, plan Plan, opts QueryOptions) ([]models.ApiRecord, int64, error) {
	s.calls++
	s.lastPlan = plan
	s.lastPred = pred
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.records, s.total, nil
}

func (s *fakeStore) Aggregations(ctx context.Context, pred *Predicate) (models.Aggregations, error) {
	s.aggCalls++
	if s.aggsErr != nil {
		return nil, s.aggsErr
	}
	return s.aggs, nil
}

func newTestEngine(store *fakeStore) *Engine {
	return NewEngine(store, NewResultCache(time.Minute), FeatureToggles{}, zerolog.Nop())
}

func testRequest() models.SearchRequest {
	return models.SearchRequest{
		Filters:    models.FilterSet{Status: models.StringList{"SUBMITTED"}},
		Pagination: models.Pagination{Page: 1, Limit: 10},
		Sorting:    models.Sorting{SortBy: "createdAt", SortOrder: "desc"},
	}
}

func TestEngine_SecondCallServedFromCache(t *testing.T) {
	store := &fakeStore{
		records: []models.ApiRecord{{ID: uuid.New(), Title: "Pothole on Main St"}},
		total:   1,
	}
	engine := newTestEngine(store)
	caller := models.Caller{ID: uuid.New(), Role: models.RoleClerk}

	first, err := engine.Search(context.Background(), testRequest(), caller)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := engine.Search(context.Background(), testRequest(), caller)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Page, second.Page)
	assert.Equal(t, 1, store.calls, "second call must not reach the store")
}

func TestEngine_SkipCacheReExecutes(t *testing.T) {
	store := &fakeStore{total: 3}
	engine := newTestEngine(store)
	caller := models.Caller{ID: uuid.New(), Role: models.RoleClerk}

	_, err := engine.Search(context.Background(), testRequest(), caller)
	require.NoError(t, err)

	req := testRequest()
	req.Options.SkipCache = true
	result, err := engine.Search(context.Background(), req, caller)
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, 2, store.calls)
}

func TestEngine_CallersDoNotShareCacheEntries(t *testing.T) {
	store := &fakeStore{total: 1}
	engine := newTestEngine(store)

	_, err := engine.Search(context.Background(), testRequest(), models.Caller{ID: uuid.New(), Role: models.RoleClerk})
	require.NoError(t, err)

	result, err := engine.Search(context.Background(), testRequest(), models.Caller{ID: uuid.New(), Role: models.RoleClerk})
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, 2, store.calls)
}

func TestEngine_TotalPages(t *testing.T) {
	tests := []struct {
		total     int64
		limit     int
		wantPages int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.total, tt.limit), func(t *testing.T) {
			store := &fakeStore{total: tt.total}
			engine := newTestEngine(store)

			req := testRequest()
			req.Pagination.Limit = tt.limit
			req.Options.SkipCache = true
			result, err := engine.Search(context.Background(), req, models.Caller{ID: uuid.New(), Role: models.RoleClerk})
			require.NoError(t, err)
			assert.Equal(t, tt.wantPages, result.Page.TotalPages)
		})
	}
}

func TestEngine_ValidationFailsBeforeStore(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(store)

	req := testRequest()
	req.Filters.BulkIDs = make([]string, MaxBulkIDs+1)
	_, err := engine.Search(context.Background(), req, models.Caller{ID: uuid.New(), Role: models.RoleClerk})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, 0, store.calls, "guardrail violations must never reach the store")
}

func TestEngine_ExecutionFailureNotCached(t *testing.T) {
	store := &fakeStore{err: errors.New("connection reset")}
	engine := newTestEngine(store)
	caller := models.Caller{ID: uuid.New(), Role: models.RoleClerk}

	_, err := engine.Search(context.Background(), testRequest(), caller)
	require.Error(t, err)
	var execErr *ExecutionError
	assert.ErrorAs(t, err, &execErr)

	// Once the store recovers the next identical call executes fresh
	// instead of finding a cached failure.
	store.err = nil
	store.total = 7
	result, err := engine.Search(context.Background(), testRequest(), caller)
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, int64(7), result.Page.TotalCount)
}

func TestEngine_AggregationsOnlyWhenRequested(t *testing.T) {
	store := &fakeStore{
		total: 2,
		aggs:  models.Aggregations{"status": {"SUBMITTED": 2}},
	}
	engine := newTestEngine(store)
	caller := models.Caller{ID: uuid.New(), Role: models.RoleClerk}

	result, err := engine.Search(context.Background(), testRequest(), caller)
	require.NoError(t, err)
	assert.Nil(t, result.Aggregations)
	assert.Equal(t, 0, store.aggCalls)

	req := testRequest()
	req.Options.IncludeAggregations = true
	result, err = engine.Search(context.Background(), req, caller)
	require.NoError(t, err)
	assert.Equal(t, store.aggs, result.Aggregations)
	assert.Equal(t, 1, store.aggCalls)
}

func TestEngine_ComplexityReported(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(store)
	caller := models.Caller{ID: uuid.New(), Role: models.RoleClerk}

	simple, err := engine.Search(context.Background(), testRequest(), caller)
	require.NoError(t, err)
	assert.Equal(t, Simple, simple.Complexity)

	req := testRequest()
	req.Filters.Geo = &models.GeoFilter{Latitude: 42, Longitude: 23, RadiusKm: 3}
	complexResult, err := engine.Search(context.Background(), req, caller)
	require.NoError(t, err)
	assert.Equal(t, Complex, complexResult.Complexity)
}

func TestEngine_ExplicitCacheKeyOverridesFingerprint(t *testing.T) {
	store := &fakeStore{total: 5}
	engine := newTestEngine(store)
	caller := models.Caller{ID: uuid.New(), Role: models.RoleClerk}

	req := testRequest()
	req.Options.CacheKey = "pinned"
	_, err := engine.Search(context.Background(), req, caller)
	require.NoError(t, err)

	// A different filter set under the same explicit key hits the pinned
	// entry.
	other := testRequest()
	other.Filters.Keyword = "flooding"
	other.Options.CacheKey = "pinned"
	result, err := engine.Search(context.Background(), other, caller)
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Equal(t, 1, store.calls)
}

func TestEngine_ExportRequiresStaff(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(store)

	_, err := engine.Export(context.Background(), models.FilterSet{}, models.Sorting{}, models.Caller{ID: uuid.New(), Role: models.RoleCitizen})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 0, store.calls)
}

func TestEngine_ExportUsesElevatedCeilingAndNoCache(t *testing.T) {
	store := &fakeStore{total: 12000}
	engine := newTestEngine(store)
	caller := models.Caller{ID: uuid.New(), Role: models.RoleSupervisor}

	_, err := engine.Export(context.Background(), models.FilterSet{}, models.Sorting{}, caller)
	require.NoError(t, err)
	assert.Equal(t, MaxExportRows, store.lastPlan.Take)
	assert.Equal(t, 0, store.lastPlan.Skip)

	_, err = engine.Export(context.Background(), models.FilterSet{}, models.Sorting{}, caller)
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls, "export always executes fresh")
}

func TestEngine_ClearCachePermissions(t *testing.T) {
	store := &fakeStore{total: 1}
	engine := newTestEngine(store)
	caller := models.Caller{ID: uuid.New(), Role: models.RoleClerk}

	_, err := engine.Search(context.Background(), testRequest(), caller)
	require.NoError(t, err)

	_, err = engine.ClearCache(models.Caller{ID: uuid.New(), Role: models.RoleSupervisor})
	assert.ErrorIs(t, err, ErrForbidden)

	evicted, err := engine.ClearCache(models.Caller{ID: uuid.New(), Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	result, err := engine.Search(context.Background(), testRequest(), caller)
	require.NoError(t, err)
	assert.False(t, result.FromCache)
}
