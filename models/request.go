package models

import (
	"time"

	"github.com/google/uuid"
)

// Service request lifecycle states.
const (
	StatusSubmitted  = "SUBMITTED"
	StatusTriaged    = "TRIAGED"
	StatusInProgress = "IN_PROGRESS"
	StatusResolved   = "RESOLVED"
	StatusClosed     = "CLOSED"
	StatusRejected   = "REJECTED"
)

// Priorities, lowest to highest.
const (
	PriorityLow      = "LOW"
	PriorityMedium   = "MEDIUM"
	PriorityHigh     = "HIGH"
	PriorityCritical = "CRITICAL"
)

// Caller roles. CITIZEN is the least privileged; everything else is staff.
const (
	RoleCitizen    = "CITIZEN"
	RoleClerk      = "CLERK"
	RoleFieldAgent = "FIELD_AGENT"
	RoleSupervisor = "SUPERVISOR"
	RoleAdmin      = "ADMIN"
)

// Caller is the authenticated identity attached to every search request.
// It is supplied by the auth middleware, never by the request body.
type Caller struct {
	ID           uuid.UUID  `json:"id"`
	Role         string     `json:"role"`
	DepartmentID *uuid.UUID `json:"departmentId,omitempty"`
}

// IsStaff reports whether the caller holds any role above CITIZEN.
func (c Caller) IsStaff() bool {
	return c.Role != "" && c.Role != RoleCitizen
}

// UserRef is the minimal denormalized user reference embedded in results.
type UserRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// DepartmentRef is the minimal denormalized department reference.
type DepartmentRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Contact is one entry of the additional_contacts embedded sub-document.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Comment is a loaded relation row, present only when full relation data
// was requested.
type Comment struct {
	ID        uuid.UUID `json:"id"`
	AuthorID  uuid.UUID `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Attachment is a loaded relation row.
type Attachment struct {
	ID        uuid.UUID `json:"id"`
	FileName  string    `json:"fileName"`
	CreatedAt time.Time `json:"createdAt"`
}

// Upvote is a loaded relation row.
type Upvote struct {
	UserID    uuid.UUID `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ApiRecord is the API-shaped view of a service request. Embedded JSON
// sub-documents are decoded into structured values; a sub-document that was
// never recorded stays nil and serializes as an explicit null, which is
// distinct from a recorded-but-empty list.
//
// CommentCount/AttachmentCount/UpvoteCount are always store-computed.
// The Comments/Attachments/Upvotes lists are populated only when the caller
// asked for full relation data; they are omitted otherwise so the output
// shape reflects what was actually fetched.
type ApiRecord struct {
	ID                 uuid.UUID      `json:"id"`
	Code               string         `json:"code,omitempty"`
	Title              string         `json:"title,omitempty"`
	Description        string         `json:"description,omitempty"`
	Category           string         `json:"category,omitempty"`
	Status             string         `json:"status,omitempty"`
	Priority           string         `json:"priority,omitempty"`
	Location           string         `json:"location,omitempty"`
	Latitude           *float64       `json:"latitude,omitempty"`
	Longitude          *float64       `json:"longitude,omitempty"`
	IsEmergency        bool           `json:"isEmergency,omitempty"`
	IsRecurring        bool           `json:"isRecurring,omitempty"`
	AffectedServices   []string       `json:"affectedServices"`
	AdditionalContacts []Contact      `json:"additionalContacts"`
	CreatedBy          *UserRef       `json:"createdBy,omitempty"`
	AssignedTo         *UserRef       `json:"assignedTo,omitempty"`
	Department         *DepartmentRef `json:"department,omitempty"`
	CreatedAt          time.Time      `json:"createdAt,omitzero"`
	UpdatedAt          time.Time      `json:"updatedAt,omitzero"`
	ResolvedAt         *time.Time     `json:"resolvedAt,omitempty"`
	ClosedAt           *time.Time     `json:"closedAt,omitempty"`
	CommentCount       int            `json:"commentCount"`
	AttachmentCount    int            `json:"attachmentCount"`
	UpvoteCount        int            `json:"upvoteCount"`
	Comments           []Comment      `json:"comments,omitempty"`
	Attachments        []Attachment   `json:"attachments,omitempty"`
	Upvotes            []Upvote       `json:"upvotes,omitempty"`
}
