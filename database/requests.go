package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"civicdesk/models"
	"civicdesk/search"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Select list for the default fetch. Order must match scanFullRecord.
// Relation counts are computed by the store so cost stays bounded no matter
// how large the relations grow.
const fullSelectList = `
	r.id, r.code, r.title, r.description, r.category,
	r.status, r.priority, r.location, r.latitude, r.longitude,
	r.is_emergency, r.is_recurring, r.affected_services, r.additional_contacts,
	r.created_at, r.updated_at, r.resolved_at, r.closed_at,
	u.id, u.name, a.id, a.name, d.id, d.name,
	(SELECT COUNT(*) FROM request_comments c WHERE c.request_id = r.id) AS comment_count,
	(SELECT COUNT(*) FROM request_attachments att WHERE att.request_id = r.id) AS attachment_count,
	(SELECT COUNT(*) FROM request_upvotes up WHERE up.request_id = r.id) AS upvote_count`

const fullFromClause = `
	FROM service_requests r
	JOIN users u ON u.id = r.created_by
	LEFT JOIN users a ON a.id = r.assigned_to
	LEFT JOIN departments d ON d.id = r.department_id`

// SearchRequests runs the compiled predicate against the store: a count of
// all matches and a bounded fetch of the current page, issued concurrently
// over the identical WHERE clause. A failure in either aborts the whole
// operation; no partial result is returned.
func (db *DB) SearchRequests(ctx context.Context, pred *search.Predicate, plan search.Plan, opts search.QueryOptions) ([]models.ApiRecord, int64, error) {
	start := time.Now()
	defer func() {
		db.logger.Debug().
			Dur("duration", time.Since(start)).
			Str("orderBy", plan.OrderBy).
			Int("take", plan.Take).
			Msg("SearchRequests")
	}()

	qb := NewQueryBuilder()
	whereClause, err := qb.WhereClause(pred)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to render predicate: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM service_requests r %s", whereClause)
	countArgs := qb.Args()

	var pageQuery string
	if len(opts.FieldSelection) > 0 {
		cols, err := selectedColumns(opts.FieldSelection)
		if err != nil {
			return nil, 0, err
		}
		pageQuery = fmt.Sprintf(`
			SELECT %s
			FROM service_requests r
			%s
			ORDER BY %s
			LIMIT $%d OFFSET $%d
		`, strings.Join(cols, ", "), whereClause, orderByExpr(plan), qb.NextArgNum(), qb.NextArgNum()+1)
	} else {
		pageQuery = fmt.Sprintf(`
			SELECT %s
			%s
			%s
			ORDER BY %s
			LIMIT $%d OFFSET $%d
		`, fullSelectList, fullFromClause, whereClause, orderByExpr(plan), qb.NextArgNum(), qb.NextArgNum()+1)
	}
	pageArgs := append(append([]any{}, qb.Args()...), plan.Take, plan.Skip)

	var (
		records []models.ApiRecord
		total   int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := db.Pool.QueryRow(gctx, countQuery, countArgs...).Scan(&total); err != nil {
			return fmt.Errorf("failed to count requests: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		rows, err := db.Pool.Query(gctx, pageQuery, pageArgs...)
		if err != nil {
			return fmt.Errorf("failed to fetch requests: %w", err)
		}
		defer rows.Close()

		if len(opts.FieldSelection) > 0 {
			records, err = scanSelectedRecords(rows, opts.FieldSelection)
		} else {
			records, err = scanFullRecords(rows)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	if opts.IncludeRelations && len(records) > 0 {
		if err := db.loadRelations(ctx, records); err != nil {
			return nil, 0, err
		}
	}

	return records, total, nil
}

// Aggregation dimensions, each a group-by-count over the same predicate.
var aggregationDimensions = []struct {
	name string
	expr string
}{
	{"status", "r.status"},
	{"priority", "r.priority"},
	{"category", "r.category"},
	{"department", "d.name"},
}

// Aggregations runs the four group-by-count queries concurrently. Null or
// unset group values land in the UNSPECIFIED bucket.
func (db *DB) Aggregations(ctx context.Context, pred *search.Predicate) (models.Aggregations, error) {
	results := make([]map[string]int64, len(aggregationDimensions))

	g, gctx := errgroup.WithContext(ctx)
	for i, dim := range aggregationDimensions {
		g.Go(func() error {
			qb := NewQueryBuilder()
			whereClause, err := qb.WhereClause(pred)
			if err != nil {
				return fmt.Errorf("failed to render predicate: %w", err)
			}

			query := fmt.Sprintf(`
				SELECT COALESCE(%s, '%s') AS bucket, COUNT(*)
				FROM service_requests r
				LEFT JOIN departments d ON d.id = r.department_id
				%s
				GROUP BY bucket
			`, dim.expr, models.AggregationUnspecified, whereClause)

			rows, err := db.Pool.Query(gctx, query, qb.Args()...)
			if err != nil {
				return fmt.Errorf("failed to aggregate by %s: %w", dim.name, err)
			}
			defer rows.Close()

			buckets := map[string]int64{}
			for rows.Next() {
				var value string
				var count int64
				if err := rows.Scan(&value, &count); err != nil {
					return fmt.Errorf("failed to scan %s aggregation: %w", dim.name, err)
				}
				buckets[value] = count
			}
			if err := rows.Err(); err != nil {
				return fmt.Errorf("error iterating %s aggregation: %w", dim.name, err)
			}
			results[i] = buckets
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	aggs := models.Aggregations{}
	for i, dim := range aggregationDimensions {
		aggs[dim.name] = results[i]
	}
	return aggs, nil
}

// loadRelations fetches full comment, attachment, and upvote lists for the
// page's records in three bulk queries and attaches them in place.
func (db *DB) loadRelations(ctx context.Context, records []models.ApiRecord) error {
	ids := make([]uuid.UUID, len(records))
	index := make(map[uuid.UUID]*models.ApiRecord, len(records))
	for i := range records {
		ids[i] = records[i].ID
		index[records[i].ID] = &records[i]
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := db.Pool.Query(gctx, `
			SELECT request_id, id, author_id, body, created_at
			FROM request_comments
			WHERE request_id = ANY($1)
			ORDER BY created_at
		`, ids)
		if err != nil {
			return fmt.Errorf("failed to load comments: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var requestID uuid.UUID
			var c models.Comment
			if err := rows.Scan(&requestID, &c.ID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
				return fmt.Errorf("failed to scan comment: %w", err)
			}
			if rec := index[requestID]; rec != nil {
				rec.Comments = append(rec.Comments, c)
			}
		}
		return rows.Err()
	})
	g.Go(func() error {
		rows, err := db.Pool.Query(gctx, `
			SELECT request_id, id, file_name, created_at
			FROM request_attachments
			WHERE request_id = ANY($1)
			ORDER BY created_at
		`, ids)
		if err != nil {
			return fmt.Errorf("failed to load attachments: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var requestID uuid.UUID
			var a models.Attachment
			if err := rows.Scan(&requestID, &a.ID, &a.FileName, &a.CreatedAt); err != nil {
				return fmt.Errorf("failed to scan attachment: %w", err)
			}
			if rec := index[requestID]; rec != nil {
				rec.Attachments = append(rec.Attachments, a)
			}
		}
		return rows.Err()
	})
	g.Go(func() error {
		rows, err := db.Pool.Query(gctx, `
			SELECT request_id, user_id, created_at
			FROM request_upvotes
			WHERE request_id = ANY($1)
			ORDER BY created_at
		`, ids)
		if err != nil {
			return fmt.Errorf("failed to load upvotes: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var requestID uuid.UUID
			var u models.Upvote
			if err := rows.Scan(&requestID, &u.UserID, &u.CreatedAt); err != nil {
				return fmt.Errorf("failed to scan upvote: %w", err)
			}
			if rec := index[requestID]; rec != nil {
				rec.Upvotes = append(rec.Upvotes, u)
			}
		}
		return rows.Err()
	})
	return g.Wait()
}

// Scalar fields available to fieldSelection, keyed by API name.
var selectableColumns = map[string]string{
	search.FieldCode:        "r.code",
	search.FieldTitle:       "r.title",
	search.FieldDescription: "r.description",
	search.FieldCategory:    "r.category",
	search.FieldStatus:      "r.status",
	search.FieldPriority:    "r.priority",
	search.FieldLocation:    "r.location",
	search.FieldLatitude:    "r.latitude",
	search.FieldLongitude:   "r.longitude",
	search.FieldIsEmergency: "r.is_emergency",
	search.FieldIsRecurring: "r.is_recurring",
	search.FieldCreatedAt:   "r.created_at",
	search.FieldUpdatedAt:   "r.updated_at",
	search.FieldResolvedAt:  "r.resolved_at",
	search.FieldClosedAt:    "r.closed_at",
}

// selectedColumns builds the reduced select list: identity first, then the
// requested fields in order, duplicates dropped.
func selectedColumns(fields []string) ([]string, error) {
	cols := []string{"r.id"}
	seen := map[string]bool{search.FieldID: true}
	for _, field := range fields {
		if seen[field] {
			continue
		}
		col, ok := selectableColumns[field]
		if !ok {
			return nil, fmt.Errorf("field %q is not selectable", field)
		}
		cols = append(cols, col)
		seen[field] = true
	}
	return cols, nil
}

// fieldDest maps an API field to its scan destination within a record.
func fieldDest(rec *models.ApiRecord, field string) (any, error) {
	switch field {
	case search.FieldID:
		return &rec.ID, nil
	case search.FieldCode:
		return &rec.Code, nil
	case search.FieldTitle:
		return &rec.Title, nil
	case search.FieldDescription:
		return &rec.Description, nil
	case search.FieldCategory:
		return &rec.Category, nil
	case search.FieldStatus:
		return &rec.Status, nil
	case search.FieldPriority:
		return &rec.Priority, nil
	case search.FieldLocation:
		return &rec.Location, nil
	case search.FieldLatitude:
		return &rec.Latitude, nil
	case search.FieldLongitude:
		return &rec.Longitude, nil
	case search.FieldIsEmergency:
		return &rec.IsEmergency, nil
	case search.FieldIsRecurring:
		return &rec.IsRecurring, nil
	case search.FieldCreatedAt:
		return &rec.CreatedAt, nil
	case search.FieldUpdatedAt:
		return &rec.UpdatedAt, nil
	case search.FieldResolvedAt:
		return &rec.ResolvedAt, nil
	case search.FieldClosedAt:
		return &rec.ClosedAt, nil
	default:
		return nil, fmt.Errorf("field %q is not selectable", field)
	}
}

func scanSelectedRecords(rows rowsScanner, fields []string) ([]models.ApiRecord, error) {
	ordered := []string{search.FieldID}
	seen := map[string]bool{search.FieldID: true}
	for _, field := range fields {
		if !seen[field] {
			ordered = append(ordered, field)
			seen[field] = true
		}
	}

	records := []models.ApiRecord{}
	for rows.Next() {
		var rec models.ApiRecord
		dests := make([]any, 0, len(ordered))
		for _, field := range ordered {
			dest, err := fieldDest(&rec, field)
			if err != nil {
				return nil, err
			}
			dests = append(dests, dest)
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}
	return records, nil
}
