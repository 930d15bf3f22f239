package search

import "github.com/google/uuid"

// Op identifies a predicate node variant.
type Op int

const (
	// Group operators
	OpAnd Op = iota
	OpOr

	// Atomic comparisons
	OpEq       // field equals value
	OpIn       // field is a member of Values
	OpContains // field contains substring Value
	OpRange    // field within [Min, Max]; nil bound means unbounded
	OpExists   // a related row exists for the record
)

// Record fields a predicate may reference. The store maps these to columns;
// the compiler only ever emits names from this set.
const (
	FieldID          = "id"
	FieldCode        = "code"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldCategory    = "category"
	FieldStatus      = "status"
	FieldPriority    = "priority"
	FieldLocation    = "location"
	FieldLatitude    = "latitude"
	FieldLongitude   = "longitude"
	FieldIsEmergency = "isEmergency"
	FieldIsRecurring = "isRecurring"
	FieldCreatedBy   = "createdBy"
	FieldAssignedTo  = "assignedTo"
	FieldDepartment  = "department"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
	FieldResolvedAt  = "resolvedAt"
	FieldClosedAt    = "closedAt"
)

// Relations an OpExists node may reference.
const (
	RelationComments    = "comments"
	RelationAttachments = "attachments"
	RelationUpvotes     = "upvotes"
)

// Predicate is a backend-neutral boolean expression over record fields:
// a tagged-variant tree of atomic comparisons combined with AND/OR groups.
// Every atomic node references exactly one known field or relation.
type Predicate struct {
	Op    Op
	Field string

	Value  any   // OpEq, OpContains
	Values []any // OpIn
	Min    any   // OpRange lower bound, nil if absent
	Max    any   // OpRange upper bound, nil if absent

	Relation string     // OpExists
	UserID   *uuid.UUID // OpExists: scope to rows by this user; nil = any row
	Negate   bool       // OpExists: require absence instead of presence

	CaseSensitive bool // OpContains

	Children []*Predicate // OpAnd, OpOr
}

// Eq builds an equality test.
func Eq(field string, value any) *Predicate {
	return &Predicate{Op: OpEq, Field: field, Value: value}
}

// In builds a set-membership test.
func In(field string, values []any) *Predicate {
	return &Predicate{Op: OpIn, Field: field, Values: values}
}

// Contains builds a case-insensitive substring test.
func Contains(field, substr string) *Predicate {
	return &Predicate{Op: OpContains, Field: field, Value: substr}
}

// ContainsCase builds a substring test honoring a case-sensitivity flag.
func ContainsCase(field, substr string, caseSensitive bool) *Predicate {
	return &Predicate{Op: OpContains, Field: field, Value: substr, CaseSensitive: caseSensitive}
}

// Range builds a bounded test; a nil bound is omitted, not zero-filled.
func Range(field string, min, max any) *Predicate {
	return &Predicate{Op: OpRange, Field: field, Min: min, Max: max}
}

// Exists builds a relation-existence test, optionally scoped to one user.
func Exists(relation string, userID *uuid.UUID) *Predicate {
	return &Predicate{Op: OpExists, Relation: relation, UserID: userID}
}

// NotExists builds a relation-absence test.
func NotExists(relation string, userID *uuid.UUID) *Predicate {
	return &Predicate{Op: OpExists, Relation: relation, UserID: userID, Negate: true}
}

// And combines predicates conjunctively. Nil children are dropped, a single
// survivor is returned unwrapped, and no survivors yields nil (match all).
func And(children ...*Predicate) *Predicate {
	return group(OpAnd, children)
}

// Or combines predicates disjunctively with the same nil handling as And.
func Or(children ...*Predicate) *Predicate {
	return group(OpOr, children)
}

func group(op Op, children []*Predicate) *Predicate {
	kept := make([]*Predicate, 0, len(children))
	for _, c := range children {
		if c != nil {
			kept = append(kept, c)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &Predicate{Op: op, Children: kept}
}
