package persistence

import (
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/aggregates/contact"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/aggregates/importbatch"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/connection"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/value_objects/columnmapping"
	"github.com/jacksonlee411/leadimport/modules/leadimport/infrastructure/persistence/models"
)

func toDBConnection(c *connection.Connection) *models.GoogleConnection {
	scopes := c.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	return &models.GoogleConnection{
		ID:           c.ID,
		TenantID:     c.TenantID,
		UserID:       c.UserID,
		GoogleEmail:  c.GoogleEmail,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		// timestamptz keeps microseconds; the optimistic token update compares on it.
		TokenExpiry: c.TokenExpiry.Truncate(time.Microsecond),
		Scopes:      scopes,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func toDomainConnection(m *models.GoogleConnection) *connection.Connection {
	return &connection.Connection{
		ID:           m.ID,
		TenantID:     m.TenantID,
		UserID:       m.UserID,
		GoogleEmail:  m.GoogleEmail,
		AccessToken:  m.AccessToken,
		RefreshToken: m.RefreshToken,
		TokenExpiry:  m.TokenExpiry,
		Scopes:       m.Scopes,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toDBImportBatch(b *importbatch.ImportBatch) (*models.ImportBatch, error) {
	mapping, err := json.Marshal(b.ColumnMapping().Strings())
	if err != nil {
		return nil, errors.Wrap(err, "marshal column mapping")
	}
	var details []byte
	if errs := b.Errors(); len(errs) > 0 {
		details, err = json.Marshal(errs)
		if err != nil {
			return nil, errors.Wrap(err, "marshal error details")
		}
	}
	return &models.ImportBatch{
		ID:                b.ID(),
		TenantID:          b.TenantID(),
		UserID:            b.UserID(),
		SourceType:        b.SourceType(),
		SourceID:          optionalString(b.SourceID()),
		SourceName:        optionalString(b.SourceName()),
		Status:            string(b.Status()),
		TotalRows:         b.TotalRows(),
		ImportedCount:     b.ImportedCount(),
		SkippedCount:      b.SkippedCount(),
		ErrorCount:        b.ErrorCount(),
		ErrorDetails:      details,
		ColumnMapping:     mapping,
		DuplicateStrategy: string(b.DuplicateStrategy()),
		CreatedAt:         b.CreatedAt(),
		CompletedAt:       b.CompletedAt(),
	}, nil
}

func toDomainImportBatch(m *models.ImportBatch) (*importbatch.ImportBatch, error) {
	var rowErrors []importbatch.RowError
	if len(m.ErrorDetails) > 0 {
		if err := json.Unmarshal(m.ErrorDetails, &rowErrors); err != nil {
			return nil, errors.Wrap(err, "unmarshal error details")
		}
	}
	mapping := columnmapping.Mapping{}
	if len(m.ColumnMapping) > 0 {
		raw := map[string]string{}
		if err := json.Unmarshal(m.ColumnMapping, &raw); err != nil {
			return nil, errors.Wrap(err, "unmarshal column mapping")
		}
		// Stored mappings were validated on the way in; unknown targets are dropped.
		mapping, _ = columnmapping.FromStrings(raw)
	}
	return importbatch.Hydrate(importbatch.HydrateParams{
		ID:                m.ID,
		TenantID:          m.TenantID,
		UserID:            m.UserID,
		SourceType:        m.SourceType,
		SourceID:          derefString(m.SourceID),
		SourceName:        derefString(m.SourceName),
		Status:            importbatch.Status(m.Status),
		TotalRows:         m.TotalRows,
		ImportedCount:     m.ImportedCount,
		SkippedCount:      m.SkippedCount,
		ErrorCount:        m.ErrorCount,
		Errors:            rowErrors,
		ColumnMapping:     mapping,
		DuplicateStrategy: importbatch.DuplicateStrategy(m.DuplicateStrategy),
		CreatedAt:         m.CreatedAt,
		CompletedAt:       m.CompletedAt,
	}), nil
}

func toDBLead(c contact.Contact) *models.Lead {
	f := c.Fields()
	var batchID *uuid.UUID
	if id := c.ImportBatchID(); id != uuid.Nil {
		batchID = &id
	}
	return &models.Lead{
		ID:             c.ID(),
		TenantID:       c.TenantID(),
		FirstName:      f.FirstName,
		LastName:       f.LastName,
		Email:          f.Email,
		Phone:          optionalString(f.Phone),
		Company:        optionalString(f.Company),
		Source:         string(c.Source()),
		Status:         string(c.Status()),
		Notes:          optionalString(f.Notes),
		ImportBatchID:  batchID,
		ImportSourceID: optionalString(c.ImportSourceID()),
		CreatedAt:      c.CreatedAt(),
		UpdatedAt:      c.UpdatedAt(),
	}
}

func toDomainLead(m *models.Lead) contact.Contact {
	batchID := uuid.Nil
	if m.ImportBatchID != nil {
		batchID = *m.ImportBatchID
	}
	return contact.Hydrate(
		m.ID,
		m.TenantID,
		contact.Fields{
			FirstName: m.FirstName,
			LastName:  m.LastName,
			Email:     m.Email,
			Phone:     derefString(m.Phone),
			Company:   derefString(m.Company),
			Notes:     derefString(m.Notes),
		},
		contact.Source(m.Source),
		contact.Status(m.Status),
		batchID,
		derefString(m.ImportSourceID),
		m.CreatedAt,
		m.UpdatedAt,
	)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
