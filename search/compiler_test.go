package search

import (
	"testing"
	"time"

	"civicdesk/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func citizen() models.Caller {
	return models.Caller{ID: uuid.New(), Role: models.RoleCitizen}
}

func staff() models.Caller {
	return models.Caller{ID: uuid.New(), Role: models.RoleClerk}
}

func TestCompile_EmptyFilterSet(t *testing.T) {
	pred, err := Compile(models.FilterSet{}, staff())
	require.NoError(t, err)
	assert.Nil(t, pred, "staff with no filters should match all records")
}

func TestCompile_CitizenScoping(t *testing.T) {
	caller := citizen()

	pred, err := Compile(models.FilterSet{}, caller)
	require.NoError(t, err)
	require.NotNil(t, pred)
	assert.Equal(t, OpEq, pred.Op)
	assert.Equal(t, FieldCreatedBy, pred.Field)
	assert.Equal(t, caller.ID, pred.Value)
}

func TestCompile_CitizenShowAll(t *testing.T) {
	pred, err := Compile(models.FilterSet{ShowAll: true}, citizen())
	require.NoError(t, err)
	assert.Nil(t, pred)
}

func TestCompile_MultiValueFields(t *testing.T) {
	tests := []struct {
		name   string
		values models.StringList
		wantOp Op
	}{
		{"single value compiles to equality", models.StringList{"SUBMITTED"}, OpEq},
		{"multiple values compile to membership", models.StringList{"SUBMITTED", "TRIAGED"}, OpIn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := Compile(models.FilterSet{Status: tt.values}, staff())
			require.NoError(t, err)
			require.NotNil(t, pred)
			assert.Equal(t, tt.wantOp, pred.Op)
			assert.Equal(t, FieldStatus, pred.Field)
		})
	}
}

func TestCompile_CategoryUsesContainment(t *testing.T) {
	pred, err := Compile(models.FilterSet{Category: "roads"}, staff())
	require.NoError(t, err)
	require.NotNil(t, pred)
	assert.Equal(t, OpContains, pred.Op)
	assert.Equal(t, FieldCategory, pred.Field)
	assert.Equal(t, "roads", pred.Value)
}

func TestCompile_DateRangeBounds(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		filters models.FilterSet
		wantMin any
		wantMax any
	}{
		{"lower bound only", models.FilterSet{CreatedFrom: &from}, from, nil},
		{"upper bound only", models.FilterSet{CreatedTo: &to}, nil, to},
		{"both bounds", models.FilterSet{CreatedFrom: &from, CreatedTo: &to}, from, to},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := Compile(tt.filters, staff())
			require.NoError(t, err)
			require.NotNil(t, pred)
			assert.Equal(t, OpRange, pred.Op)
			assert.Equal(t, FieldCreatedAt, pred.Field)
			assert.Equal(t, tt.wantMin, pred.Min)
			assert.Equal(t, tt.wantMax, pred.Max)
		})
	}
}

func TestCompile_KeywordComposesWithStructuredFilters(t *testing.T) {
	pred, err := Compile(models.FilterSet{
		Category: "roads-transportation",
		Keyword:  "pothole",
	}, staff())
	require.NoError(t, err)
	require.NotNil(t, pred)

	// Category and the keyword OR-group must combine via AND so neither
	// side overrides the other.
	require.Equal(t, OpAnd, pred.Op)
	require.Len(t, pred.Children, 2)

	category := pred.Children[0]
	assert.Equal(t, OpContains, category.Op)
	assert.Equal(t, FieldCategory, category.Field)

	keyword := pred.Children[1]
	require.Equal(t, OpOr, keyword.Op)
	require.Len(t, keyword.Children, 4)
	fields := []string{}
	for _, child := range keyword.Children {
		assert.Equal(t, OpContains, child.Op)
		assert.Equal(t, "pothole", child.Value)
		fields = append(fields, child.Field)
	}
	assert.ElementsMatch(t, []string{FieldTitle, FieldDescription, FieldCode, FieldLocation}, fields)
}

func TestCompile_ComplexDateRanges(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		items  []models.DateRangeFilter
		wantOp Op
	}{
		{
			name: "all AND items stay conjunctive",
			items: []models.DateRangeFilter{
				{Field: FieldCreatedAt, From: &from},
				{Field: FieldUpdatedAt, To: &to},
			},
			wantOp: OpAnd,
		},
		{
			name: "any OR item collapses the set to one OR group",
			items: []models.DateRangeFilter{
				{Field: FieldCreatedAt, From: &from},
				{Field: FieldUpdatedAt, To: &to, Operator: "OR"},
				{Field: FieldResolvedAt, From: &from},
			},
			wantOp: OpOr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := Compile(models.FilterSet{DateRanges: tt.items}, staff())
			require.NoError(t, err)
			require.NotNil(t, pred)
			assert.Equal(t, tt.wantOp, pred.Op)
			assert.Len(t, pred.Children, len(tt.items))
		})
	}
}

func TestCompile_BulkIDs(t *testing.T) {
	id := uuid.New()

	pred, err := Compile(models.FilterSet{BulkIDs: []string{id.String()}}, staff())
	require.NoError(t, err)
	require.NotNil(t, pred)
	assert.Equal(t, OpIn, pred.Op)
	assert.Equal(t, FieldID, pred.Field)
	assert.Equal(t, []any{id}, pred.Values)
}

func TestCompile_BulkIDsMalformed(t *testing.T) {
	_, err := Compile(models.FilterSet{BulkIDs: []string{"not-an-id"}}, staff())
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestCompile_GeoBoundingBox(t *testing.T) {
	// At the equator one degree is ~111 km in both directions, so a 111 km
	// radius becomes a one-degree delta.
	pred, err := Compile(models.FilterSet{
		Geo: &models.GeoFilter{Latitude: 0, Longitude: 10, RadiusKm: 111},
	}, staff())
	require.NoError(t, err)
	require.NotNil(t, pred)
	require.Equal(t, OpAnd, pred.Op)
	require.Len(t, pred.Children, 2)

	lat := pred.Children[0]
	assert.Equal(t, FieldLatitude, lat.Field)
	assert.InDelta(t, -1.0, lat.Min.(float64), 1e-9)
	assert.InDelta(t, 1.0, lat.Max.(float64), 1e-9)

	lng := pred.Children[1]
	assert.Equal(t, FieldLongitude, lng.Field)
	assert.InDelta(t, 9.0, lng.Min.(float64), 1e-9)
	assert.InDelta(t, 11.0, lng.Max.(float64), 1e-9)
}

func TestCompile_TextSearchDefaultsAndCase(t *testing.T) {
	pred, err := Compile(models.FilterSet{
		TextSearch: &models.TextSearchFilter{Query: "water main", CaseSensitive: true},
	}, staff())
	require.NoError(t, err)
	require.NotNil(t, pred)
	require.Equal(t, OpOr, pred.Op)
	require.Len(t, pred.Children, 4)
	for _, child := range pred.Children {
		assert.True(t, child.CaseSensitive)
	}
}

func TestCompile_CitizenRelationFiltersScopeToCaller(t *testing.T) {
	caller := citizen()

	pred, err := Compile(models.FilterSet{
		ShowAll: true,
		Citizen: &models.CitizenFilter{HasUpvoted: true, HasCommented: true},
	}, caller)
	require.NoError(t, err)
	require.NotNil(t, pred)
	require.Equal(t, OpAnd, pred.Op)
	require.Len(t, pred.Children, 2)

	for _, child := range pred.Children {
		assert.Equal(t, OpExists, child.Op)
		require.NotNil(t, child.UserID)
		assert.Equal(t, caller.ID, *child.UserID)
	}
}

func TestCompile_ReportingFilters(t *testing.T) {
	no := false
	yes := true

	pred, err := Compile(models.FilterSet{
		Reporting: &models.ReportingFilter{HasAttachments: &no, IsEmergency: &yes},
	}, staff())
	require.NoError(t, err)
	require.NotNil(t, pred)
	require.Equal(t, OpAnd, pred.Op)
	require.Len(t, pred.Children, 2)

	attachments := pred.Children[0]
	assert.Equal(t, OpExists, attachments.Op)
	assert.Equal(t, RelationAttachments, attachments.Relation)
	assert.True(t, attachments.Negate)
	assert.Nil(t, attachments.UserID)

	emergency := pred.Children[1]
	assert.Equal(t, OpEq, emergency.Op)
	assert.Equal(t, FieldIsEmergency, emergency.Field)
	assert.Equal(t, true, emergency.Value)
}
