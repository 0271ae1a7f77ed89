package models

import (
	"time"

	"github.com/google/uuid"
)

type GoogleConnection struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	UserID       string
	GoogleEmail  string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	Scopes       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ImportBatch struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	UserID            string
	SourceType        string
	SourceID          *string
	SourceName        *string
	Status            string
	TotalRows         int
	ImportedCount     int
	SkippedCount      int
	ErrorCount        int
	ErrorDetails      []byte
	ColumnMapping     []byte
	DuplicateStrategy string
	CreatedAt         time.Time
	CompletedAt       *time.Time
}

type Lead struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	FirstName      string
	LastName       string
	Email          string
	Phone          *string
	Company        *string
	Source         string
	Status         string
	Notes          *string
	ImportBatchID  *uuid.UUID
	ImportSourceID *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
