package search

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestPlanQuery_LimitClamping(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{"zero falls back to default", 0, defaultLimit},
		{"negative falls back to default", -5, defaultLimit},
		{"over max clamps to max", 1000, maxLimit},
		{"in range passes through", 50, 50},
		{"minimum allowed", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanQuery("createdAt", "desc", 1, tt.limit, FeatureToggles{}, zerolog.Nop())
			assert.Equal(t, tt.wantLimit, plan.Limit)
			assert.Equal(t, tt.wantLimit, plan.Take)
			assert.GreaterOrEqual(t, plan.Limit, 1)
			assert.LessOrEqual(t, plan.Limit, 100)
		})
	}
}

func TestPlanQuery_PageFloorsAtOne(t *testing.T) {
	for _, page := range []int{-3, 0, 1} {
		plan := PlanQuery("createdAt", "desc", page, 10, FeatureToggles{}, zerolog.Nop())
		assert.Equal(t, 1, plan.Page)
		assert.Equal(t, 0, plan.Skip)
	}
}

func TestPlanQuery_SkipComputation(t *testing.T) {
	plan := PlanQuery("createdAt", "desc", 3, 25, FeatureToggles{}, zerolog.Nop())
	assert.Equal(t, 50, plan.Skip)
	assert.Equal(t, 25, plan.Take)
}

func TestPlanQuery_UnknownSortKeyFallsBack(t *testing.T) {
	plan := PlanQuery("secretColumn", "asc", 1, 10, FeatureToggles{}, zerolog.Nop())
	assert.Equal(t, SortByCreatedAt, plan.OrderBy)
	assert.True(t, plan.Descending)
}

func TestPlanQuery_RelationCardinalityKeys(t *testing.T) {
	for _, key := range []string{SortByUpvoteCount, SortByCommentCount} {
		plan := PlanQuery(key, "desc", 1, 10, FeatureToggles{}, zerolog.Nop())
		assert.Equal(t, key, plan.OrderBy)
	}
}

func TestPlanQuery_WrongDefaultSortToggle(t *testing.T) {
	toggles := FeatureToggles{WrongDefaultSort: true}

	t.Run("overrides the default sort", func(t *testing.T) {
		for _, requested := range []string{"", SortByCreatedAt} {
			plan := PlanQuery(requested, "desc", 1, 10, toggles, zerolog.Nop())
			assert.Equal(t, SortByTitle, plan.OrderBy)
			assert.False(t, plan.Descending)
		}
	})

	t.Run("leaves explicit non-default sorts alone", func(t *testing.T) {
		plan := PlanQuery(SortByPriority, "desc", 1, 10, toggles, zerolog.Nop())
		assert.Equal(t, SortByPriority, plan.OrderBy)
		assert.True(t, plan.Descending)
	})
}

func TestPlanQuery_SortDirection(t *testing.T) {
	asc := PlanQuery(SortByTitle, "asc", 1, 10, FeatureToggles{}, zerolog.Nop())
	assert.False(t, asc.Descending)

	desc := PlanQuery(SortByTitle, "desc", 1, 10, FeatureToggles{}, zerolog.Nop())
	assert.True(t, desc.Descending)

	unspecified := PlanQuery(SortByTitle, "", 1, 10, FeatureToggles{}, zerolog.Nop())
	assert.True(t, unspecified.Descending)
}
