package database

import (
	"context"
	"fmt"

	"civicdesk/search"
)

// Fields the suggestions endpoint may complete. Values come straight from
// the stored records.
var suggestionColumns = map[string]string{
	search.FieldCategory: "category",
	search.FieldLocation: "location",
	search.FieldTitle:    "title",
	search.FieldCode:     "code",
}

// Suggestions returns up to MaxSuggestions distinct values of an
// allow-listed field matching the partial query, in alphabetical order.
func (db *DB) Suggestions(ctx context.Context, field, partial string) ([]string, error) {
	column, ok := suggestionColumns[field]
	if !ok {
		return nil, &search.ValidationError{
			Field:  "field",
			Reason: fmt.Sprintf("suggestions are not available for %q", field),
		}
	}

	pattern := "%" + escapeLike(partial) + "%"
	query := fmt.Sprintf(`
		SELECT DISTINCT %s
		FROM service_requests
		WHERE %s ILIKE $1 AND %s <> ''
		ORDER BY %s
		LIMIT %d
	`, column, column, column, column, search.MaxSuggestions)

	rows, err := db.Pool.Query(ctx, query, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer rows.Close()

	suggestions := []string{}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		suggestions = append(suggestions, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suggestions: %w", err)
	}
	return suggestions, nil
}
