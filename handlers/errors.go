package handlers

import (
	"errors"
	"net/http"

	"civicdesk/search"

	"github.com/gin-gonic/gin"
)

// respondError maps engine errors onto the API error taxonomy. Validation
// and permission failures carry structured detail; execution failures stay
// generic so store internals never leak to the caller.
func respondError(c *gin.Context, err error) {
	var ve *search.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation_failed",
			"field":  ve.Field,
			"reason": ve.Reason,
		})
	case errors.Is(err, search.ErrURLTooLong):
		c.JSON(http.StatusRequestURITooLong, gin.H{
			"error": "url_too_long",
			"hint":  "use POST /api/v1/requests/search for complex queries",
		})
	case errors.Is(err, search.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, search.ErrNotImplemented):
		c.JSON(http.StatusNotImplemented, gin.H{
			"error": "not_implemented",
			"hint":  "supported export formats: csv, json",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search execution failed"})
	}
}
