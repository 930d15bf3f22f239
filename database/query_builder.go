package database

import (
	"fmt"
	"strings"

	"civicdesk/search"

	"github.com/google/uuid"
)

// Column mapping for predicate fields. The renderer refuses anything not
// listed here, so a compiled predicate can never name an arbitrary column.
var fieldColumns = map[string]string{
	search.FieldID:          "r.id",
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
	search.FieldCreatedBy:   "r.created_by",
	search.FieldAssignedTo:  "r.assigned_to",
	search.FieldDepartment:  "r.department_id",
	search.FieldCreatedAt:   "r.created_at",
	search.FieldUpdatedAt:   "r.updated_at",
	search.FieldResolvedAt:  "r.resolved_at",
	search.FieldClosedAt:    "r.closed_at",
}

type relationSpec struct {
	table      string
	userColumn string
}

var relationSpecs = map[string]relationSpec{
	search.RelationComments:    {table: "request_comments", userColumn: "author_id"},
	search.RelationAttachments: {table: "request_attachments", userColumn: "uploaded_by"},
	search.RelationUpvotes:     {table: "request_upvotes", userColumn: "user_id"},
}

// Sort key to ORDER BY expression. The count keys order by relation
// cardinality via a correlated subquery so the cost stays with the store.
var sortColumns = map[string]string{
	search.SortByCreatedAt:    "r.created_at",
	search.SortByUpdatedAt:    "r.updated_at",
	search.SortByClosedAt:     "r.closed_at",
	search.SortByPriority:     "r.priority",
	search.SortByStatus:       "r.status",
	search.SortByTitle:        "r.title",
	search.SortByCategory:     "r.category",
	search.SortByUpvoteCount:  "(SELECT COUNT(*) FROM request_upvotes su WHERE su.request_id = r.id)",
	search.SortByCommentCount: "(SELECT COUNT(*) FROM request_comments sc WHERE sc.request_id = r.id)",
}

// QueryBuilder renders a compiled predicate tree into a parameterized SQL
// fragment. All user-supplied values travel as $N arguments; the generated
// text contains only allow-listed columns and operators.
type QueryBuilder struct {
	args     []any
	argCount int
}

func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		args:     []any{},
		argCount: 1,
	}
}

// WhereClause renders the predicate as a full WHERE clause, or an empty
// string for a nil predicate (match all).
func (qb *QueryBuilder) WhereClause(p *search.Predicate) (string, error) {
	if p == nil {
		return "", nil
	}
	cond, err := qb.Render(p)
	if err != nil {
		return "", err
	}
	return "WHERE " + cond, nil
}

// Render renders one predicate node, recursing into groups.
func (qb *QueryBuilder) Render(p *search.Predicate) (string, error) {
	switch p.Op {
	case search.OpAnd, search.OpOr:
		return qb.renderGroup(p)
	case search.OpEq:
		col, err := column(p.Field)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %s", col, qb.bind(p.Value)), nil
	case search.OpIn:
		col, err := column(p.Field)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = ANY(%s)", col, qb.bind(typedSlice(p.Values))), nil
	case search.OpContains:
		return qb.renderContains(p)
	case search.OpRange:
		return qb.renderRange(p)
	case search.OpExists:
		return qb.renderExists(p)
	default:
		return "", fmt.Errorf("unsupported predicate op %d", p.Op)
	}
}

func (qb *QueryBuilder) renderGroup(p *search.Predicate) (string, error) {
	join := " AND "
	if p.Op == search.OpOr {
		join = " OR "
	}
	parts := make([]string, 0, len(p.Children))
	for _, child := range p.Children {
		cond, err := qb.Render(child)
		if err != nil {
			return "", err
		}
		parts = append(parts, cond)
	}
	return "(" + strings.Join(parts, join) + ")", nil
}

func (qb *QueryBuilder) renderContains(p *search.Predicate) (string, error) {
	col, err := column(p.Field)
	if err != nil {
		return "", err
	}
	substr, ok := p.Value.(string)
	if !ok {
		return "", fmt.Errorf("contains value for %s is not a string", p.Field)
	}
	op := "ILIKE"
	if p.CaseSensitive {
		op = "LIKE"
	}
	return fmt.Sprintf("%s %s %s", col, op, qb.bind("%"+escapeLike(substr)+"%")), nil
}

func (qb *QueryBuilder) renderRange(p *search.Predicate) (string, error) {
	col, err := column(p.Field)
	if err != nil {
		return "", err
	}
	var parts []string
	if p.Min != nil {
		parts = append(parts, fmt.Sprintf("%s >= %s", col, qb.bind(p.Min)))
	}
	if p.Max != nil {
		parts = append(parts, fmt.Sprintf("%s <= %s", col, qb.bind(p.Max)))
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("range on %s has no bounds", p.Field)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func (qb *QueryBuilder) renderExists(p *search.Predicate) (string, error) {
	spec, ok := relationSpecs[p.Relation]
	if !ok {
		return "", fmt.Errorf("unknown relation %q", p.Relation)
	}
	inner := fmt.Sprintf("SELECT 1 FROM %s x WHERE x.request_id = r.id", spec.table)
	if p.UserID != nil {
		inner += fmt.Sprintf(" AND x.%s = %s", spec.userColumn, qb.bind(*p.UserID))
	}
	if p.Negate {
		return fmt.Sprintf("NOT EXISTS (%s)", inner), nil
	}
	return fmt.Sprintf("EXISTS (%s)", inner), nil
}

// Args returns the accumulated positional arguments.
func (qb *QueryBuilder) Args() []any {
	return qb.args
}

// NextArgNum returns the placeholder number the next bind would get, for
// appending LIMIT/OFFSET parameters after the rendered clause.
func (qb *QueryBuilder) NextArgNum() int {
	return qb.argCount
}

func (qb *QueryBuilder) bind(value any) string {
	qb.args = append(qb.args, value)
	placeholder := fmt.Sprintf("$%d", qb.argCount)
	qb.argCount++
	return placeholder
}

func column(field string) (string, error) {
	col, ok := fieldColumns[field]
	if !ok {
		return "", fmt.Errorf("unknown record field %q", field)
	}
	return col, nil
}

// orderByExpr resolves the plan's vetted sort key to an ORDER BY
// expression. Unlisted keys resolve to creation time.
func orderByExpr(plan search.Plan) string {
	expr, ok := sortColumns[plan.OrderBy]
	if !ok {
		expr = sortColumns[search.SortByCreatedAt]
	}
	dir := "ASC"
	if plan.Descending {
		dir = "DESC"
	}
	return expr + " " + dir
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// typedSlice converts the AST's []any values into a concretely typed slice
// pgx can encode as a Postgres array.
func typedSlice(values []any) any {
	if len(values) == 0 {
		return []string{}
	}
	switch values[0].(type) {
	case uuid.UUID:
		out := make([]uuid.UUID, 0, len(values))
		for _, v := range values {
			if id, ok := v.(uuid.UUID); ok {
				out = append(out, id)
			}
		}
		return out
	case string:
		out := make([]string, 0, len(values))
		for _, v := range values {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return values
	}
}
