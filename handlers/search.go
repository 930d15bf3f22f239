package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"civicdesk/middleware"
	"civicdesk/models"
	"civicdesk/search"

	"github.com/gin-gonic/gin"
)

// SearchResponse is the body shared by both search forms.
type SearchResponse struct {
	Records      []models.ApiRecord  `json:"records"`
	TotalCount   int64               `json:"totalCount"`
	Page         int                 `json:"page"`
	Limit        int                 `json:"limit"`
	TotalPages   int                 `json:"totalPages"`
	Aggregations models.Aggregations `json:"aggregations,omitempty"`
	Complexity   string              `json:"complexity"`
	FromCache    bool                `json:"fromCache"`
	DurationMs   int64               `json:"durationMs"`
}

// simpleSearchParams is the flat, bookmarkable GET form. Multi-value
// filters arrive comma-separated; date bounds as RFC3339 strings.
type simpleSearchParams struct {
	Status       string `form:"status"`
	Priority     string `form:"priority"`
	Category     string `form:"category"`
	Department   string `form:"department"`
	AssignedTo   string `form:"assignedTo"`
	Location     string `form:"location"`
	Keyword      string `form:"keyword"`
	CreatedFrom  string `form:"createdFrom"`
	CreatedTo    string `form:"createdTo"`
	UpdatedFrom  string `form:"updatedFrom"`
	UpdatedTo    string `form:"updatedTo"`
	ResolvedFrom string `form:"resolvedFrom"`
	ResolvedTo   string `form:"resolvedTo"`
	ShowAll      bool   `form:"showAll"`
	Page         int    `form:"page"`
	Limit        int    `form:"limit"`
	SortBy       string `form:"sortBy"`
	SortOrder    string `form:"sortOrder"`
	SkipCache    bool   `form:"skipCache"`
}

// SimpleSearch serves the GET form: scalar/comma-separated filters, short
// public cacheability, and a hard cap on the encoded URL length. Longer
// queries are redirected toward the rich POST form via the url_too_long
// error.
func SimpleSearch(engine *search.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(c.Request.URL.RequestURI()) > search.MaxURLLength {
			respondError(c, search.ErrURLTooLong)
			return
		}

		var params simpleSearchParams
		if err := c.ShouldBindQuery(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		req, err := params.toSearchRequest()
		if err != nil {
			respondError(c, err)
			return
		}

		caller, ok := middleware.CallerFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "caller identity missing"})
			return
		}

		result, err := engine.Search(c.Request.Context(), req, caller)
		if err != nil {
			respondError(c, err)
			return
		}

		c.Header("Cache-Control", "public, max-age=60")
		writeSearchResult(c, result)
	}
}

// RichSearch serves the POST form: nested filters including the advanced
// tier, structured pagination/sorting/options. Never cached at the
// transport layer.
func RichSearch(engine *search.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		caller, ok := middleware.CallerFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "caller identity missing"})
			return
		}

		result, err := engine.Search(c.Request.Context(), req, caller)
		if err != nil {
			respondError(c, err)
			return
		}

		c.Header("Cache-Control", "no-store")
		c.Header("X-Query-Complexity", string(result.Complexity))
		c.Header("X-Search-Cache", cacheHeader(result.FromCache))
		writeSearchResult(c, result)
	}
}

// SuggestionStore provides literal field-value suggestions from stored
// records.
type SuggestionStore interface {
	Suggestions(ctx context.Context, field, partial string) ([]string, error)
}

// Suggestions completes an allow-listed field from stored values, capped at
// ten entries.
func Suggestions(store SuggestionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		field := c.Query("field")
		partial := c.Query("q")
		if field == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "field parameter required"})
			return
		}

		values, err := store.Suggestions(c.Request.Context(), field, partial)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"field":       field,
			"suggestions": values,
		})
	}
}

// CacheClear drops every cached search result. Privileged operators only.
func CacheClear(engine *search.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := middleware.CallerFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "caller identity missing"})
			return
		}

		evicted, err := engine.ClearCache(caller)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "search cache cleared",
			"evicted": evicted,
		})
	}
}

func writeSearchResult(c *gin.Context, result *search.Result) {
	c.Header("X-Total-Count", strconv.FormatInt(result.Page.TotalCount, 10))
	c.Header("X-Search-Duration", fmt.Sprintf("%dms", result.Duration.Milliseconds()))

	c.JSON(http.StatusOK, SearchResponse{
		Records:      result.Page.Records,
		TotalCount:   result.Page.TotalCount,
		Page:         result.Page.PageIndex,
		Limit:        result.Page.PageSize,
		TotalPages:   result.Page.TotalPages,
		Aggregations: result.Aggregations,
		Complexity:   string(result.Complexity),
		FromCache:    result.FromCache,
		DurationMs:   result.Duration.Milliseconds(),
	})
}

func cacheHeader(fromCache bool) string {
	if fromCache {
		return "hit"
	}
	return "miss"
}

func (p simpleSearchParams) toSearchRequest() (models.SearchRequest, error) {
	filters := models.FilterSet{
		Status:     splitCSV(p.Status),
		Priority:   splitCSV(p.Priority),
		Category:   p.Category,
		Department: splitCSV(p.Department),
		AssignedTo: splitCSV(p.AssignedTo),
		Location:   p.Location,
		Keyword:    p.Keyword,
		ShowAll:    p.ShowAll,
	}

	for _, bound := range []struct {
		name  string
		raw   string
		field **time.Time
	}{
		{"createdFrom", p.CreatedFrom, &filters.CreatedFrom},
		{"createdTo", p.CreatedTo, &filters.CreatedTo},
		{"updatedFrom", p.UpdatedFrom, &filters.UpdatedFrom},
		{"updatedTo", p.UpdatedTo, &filters.UpdatedTo},
		{"resolvedFrom", p.ResolvedFrom, &filters.ResolvedFrom},
		{"resolvedTo", p.ResolvedTo, &filters.ResolvedTo},
	} {
		if bound.raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, bound.raw)
		if err != nil {
			return models.SearchRequest{}, &search.ValidationError{
				Field:  bound.name,
				Reason: "expected RFC3339 timestamp",
			}
		}
		*bound.field = &t
	}

	return models.SearchRequest{
		Filters:    filters,
		Pagination: models.Pagination{Page: p.Page, Limit: p.Limit},
		Sorting:    models.Sorting{SortBy: p.SortBy, SortOrder: p.SortOrder},
		Options:    models.SearchOptions{SkipCache: p.SkipCache},
	}, nil
}

func splitCSV(raw string) models.StringList {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make(models.StringList, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return nil
	}
	return values
}
