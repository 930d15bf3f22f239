package database

import (
	"encoding/json"
	"fmt"

	"civicdesk/models"

	"github.com/google/uuid"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type rowsScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanFullRecord reads one row of the default fetch into an API-shaped
// record: denormalized creator/assignee/department references, store-computed
// relation counts, and decoded embedded sub-documents.
func scanFullRecord(row rowScanner) (*models.ApiRecord, error) {
	var rec models.ApiRecord
	var affectedServices, additionalContacts *string
	var creatorID uuid.UUID
	var creatorName string
	var assigneeID *uuid.UUID
	var assigneeName *string
	var departmentID *uuid.UUID
	var departmentName *string

	err := row.Scan(
		&rec.ID, &rec.Code, &rec.Title, &rec.Description, &rec.Category,
		&rec.Status, &rec.Priority, &rec.Location, &rec.Latitude, &rec.Longitude,
		&rec.IsEmergency, &rec.IsRecurring, &affectedServices, &additionalContacts,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.ResolvedAt, &rec.ClosedAt,
		&creatorID, &creatorName, &assigneeID, &assigneeName, &departmentID, &departmentName,
		&rec.CommentCount, &rec.AttachmentCount, &rec.UpvoteCount,
	)
	if err != nil {
		return nil, err
	}

	rec.CreatedBy = &models.UserRef{ID: creatorID, Name: creatorName}
	if assigneeID != nil {
		name := ""
		if assigneeName != nil {
			name = *assigneeName
		}
		rec.AssignedTo = &models.UserRef{ID: *assigneeID, Name: name}
	}
	if departmentID != nil {
		name := ""
		if departmentName != nil {
			name = *departmentName
		}
		rec.Department = &models.DepartmentRef{ID: *departmentID, Name: name}
	}

	if rec.AffectedServices, err = decodeServices(affectedServices); err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	if rec.AdditionalContacts, err = decodeContacts(additionalContacts); err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, err)
	}

	return &rec, nil
}

func scanFullRecords(rows rowsScanner) ([]models.ApiRecord, error) {
	records := []models.ApiRecord{}
	for rows.Next() {
		rec, err := scanFullRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}
	return records, nil
}

// decodeServices turns the stored JSON text into a string list. A NULL
// column stays nil so the API emits an explicit null: "not recorded" is
// distinct from "recorded empty".
func decodeServices(raw *string) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	services := []string{}
	if err := json.Unmarshal([]byte(*raw), &services); err != nil {
		return nil, fmt.Errorf("malformed affected_services document: %w", err)
	}
	return services, nil
}

// decodeContacts decodes the additional_contacts sub-document with the same
// NULL-vs-empty distinction as decodeServices.
func decodeContacts(raw *string) ([]models.Contact, error) {
	if raw == nil {
		return nil, nil
	}
	contacts := []models.Contact{}
	if err := json.Unmarshal([]byte(*raw), &contacts); err != nil {
		return nil, fmt.Errorf("malformed additional_contacts document: %w", err)
	}
	return contacts, nil
}
