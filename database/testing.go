package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var (
	testDB *DB
)

// GetTestDB returns the shared test database connection.
// Available after TestMain has run and SetupTestDB succeeded.
// Returns nil if called before TestMain.
func GetTestDB() *DB {
	return testDB
}

// SetupTestDB creates a test database connection and runs migrations.
// Should be called once in TestMain, not in individual tests.
// Migrations are embedded inline (not read from files) for test isolation.
// Returns error if connection fails or migrations fail.
func SetupTestDB(dbURL string) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := Connect(ctx, dbURL, zerolog.Nop())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	if err := runTestMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func runTestMigrations(db *DB) error {
	ctx := context.Background()

	migrations := []string{
		`
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'CITIZEN',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS departments (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS service_requests (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			code VARCHAR(32) UNIQUE NOT NULL,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category VARCHAR(100) NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL DEFAULT 'SUBMITTED',
			priority VARCHAR(20) NOT NULL DEFAULT 'MEDIUM',
			location VARCHAR(255) NOT NULL DEFAULT '',
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			is_emergency BOOLEAN NOT NULL DEFAULT FALSE,
			is_recurring BOOLEAN NOT NULL DEFAULT FALSE,
			affected_services TEXT,
			additional_contacts TEXT,
			created_by UUID NOT NULL REFERENCES users(id),
			assigned_to UUID REFERENCES users(id),
			department_id UUID REFERENCES departments(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at TIMESTAMPTZ,
			closed_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_requests_status ON service_requests(status);
		CREATE INDEX IF NOT EXISTS idx_requests_created_at ON service_requests(created_at DESC);
		`,
		`
		CREATE TABLE IF NOT EXISTS request_comments (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			request_id UUID NOT NULL REFERENCES service_requests(id) ON DELETE CASCADE,
			author_id UUID NOT NULL REFERENCES users(id),
			body TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS request_attachments (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			request_id UUID NOT NULL REFERENCES service_requests(id) ON DELETE CASCADE,
			uploaded_by UUID NOT NULL REFERENCES users(id),
			file_name VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS request_upvotes (
			request_id UUID NOT NULL REFERENCES service_requests(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (request_id, user_id)
		);
		`,
	}

	for _, migration := range migrations {
		_, err := db.Pool.Exec(ctx, migration)
		if err != nil {
			return err
		}
	}

	return nil
}

// CleanupTestDB truncates all tables for a fresh test state.
// Call this at the start of each integration test.
// Uses CASCADE to handle foreign key dependencies.
// Fails the test if truncation fails.
func CleanupTestDB(t *testing.T, db *DB) {
	t.Helper()

	ctx := context.Background()
	_, err := db.Pool.Exec(ctx,
		"TRUNCATE TABLE request_upvotes, request_attachments, request_comments, service_requests, departments, users CASCADE")
	require.NoError(t, err)
}

// TeardownTestDB closes the test database connection.
// Should be called once in TestMain after all tests complete.
// Safe to call with nil DB (no-op).
func TeardownTestDB(db *DB) {
	if db != nil {
		db.Close()
	}
}

// seedUser inserts a user row and returns its id.
func seedUser(t *testing.T, db *DB, name, role string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Pool.Exec(context.Background(),
		"INSERT INTO users (id, name, role) VALUES ($1, $2, $3)", id, name, role)
	require.NoError(t, err)
	return id
}

// seedDepartment inserts a department row and returns its id.
func seedDepartment(t *testing.T, db *DB, name string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Pool.Exec(context.Background(),
		"INSERT INTO departments (id, name) VALUES ($1, $2)", id, name)
	require.NoError(t, err)
	return id
}

// seedRequest describes one service request row to insert.
type seedRequest struct {
	Code         string
	Title        string
	Description  string
	Category     string
	Status       string
	Priority     string
	Location     string
	IsEmergency  bool
	CreatedBy    uuid.UUID
	DepartmentID *uuid.UUID
	CreatedAt    time.Time
}

func insertRequest(t *testing.T, db *DB, req seedRequest) uuid.UUID {
	t.Helper()

	if req.Status == "" {
		req.Status = "SUBMITTED"
	}
	if req.Priority == "" {
		req.Priority = "MEDIUM"
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	id := uuid.New()
	_, err := db.Pool.Exec(context.Background(), `
		INSERT INTO service_requests
			(id, code, title, description, category, status, priority, location,
			 is_emergency, created_by, department_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	`, id, req.Code, req.Title, req.Description, req.Category, req.Status,
		req.Priority, req.Location, req.IsEmergency, req.CreatedBy,
		req.DepartmentID, req.CreatedAt)
	require.NoError(t, err)
	return id
}

func insertUpvote(t *testing.T, db *DB, requestID, userID uuid.UUID) {
	t.Helper()

	_, err := db.Pool.Exec(context.Background(),
		"INSERT INTO request_upvotes (request_id, user_id) VALUES ($1, $2)", requestID, userID)
	require.NoError(t, err)
}

func insertComment(t *testing.T, db *DB, requestID, authorID uuid.UUID, body string) {
	t.Helper()

	_, err := db.Pool.Exec(context.Background(),
		"INSERT INTO request_comments (request_id, author_id, body) VALUES ($1, $2, $3)",
		requestID, authorID, body)
	require.NoError(t, err)
}
