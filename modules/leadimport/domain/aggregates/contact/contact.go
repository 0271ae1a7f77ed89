package contact

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/spreadsheet"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/value_objects/columnmapping"
)

type Status string

const StatusNew Status = "New"

// PlaceholderName fills first and last name when a row leaves them unset.
const PlaceholderName = "Unknown"

type Source string

const (
	SourceWebsite       Source = "Website"
	SourceReferral      Source = "Referral"
	SourceGoogleSheets  Source = "GoogleSheets"
	SourceManual        Source = "Manual"
	SourceAdvertisement Source = "Advertisement"
	SourceOther         Source = "Other"
)

var Sources = []Source{
	SourceWebsite,
	SourceReferral,
	SourceGoogleSheets,
	SourceManual,
	SourceAdvertisement,
	SourceOther,
}

func ParseSource(raw string) (Source, error) {
	for _, s := range Sources {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("invalid source %q", raw)
}

// Fields is the projection of one spreadsheet row onto the contact fields.
type Fields struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Company   string
	Notes     string
}

// Project reads each mapped field from the row. Blank cells are ignored, the
// email is lower-cased and names left unset become PlaceholderName.
func Project(row spreadsheet.Row, mapping columnmapping.Mapping) Fields {
	value := func(f columnmapping.Field) string {
		header, ok := mapping.HeaderFor(f)
		if !ok {
			return ""
		}
		v, _ := row.Value(header)
		return strings.TrimSpace(v)
	}
	fields := Fields{
		FirstName: value(columnmapping.FirstName),
		LastName:  value(columnmapping.LastName),
		Email:     strings.ToLower(value(columnmapping.Email)),
		Phone:     value(columnmapping.Phone),
		Company:   value(columnmapping.Company),
		Notes:     value(columnmapping.Notes),
	}
	if fields.FirstName == "" {
		fields.FirstName = PlaceholderName
	}
	if fields.LastName == "" {
		fields.LastName = PlaceholderName
	}
	return fields
}

type Contact struct {
	id             uuid.UUID
	tenantID       uuid.UUID
	fields         Fields
	source         Source
	status         Status
	importBatchID  uuid.UUID
	importSourceID string
	createdAt      time.Time
	updatedAt      time.Time
}

// New builds an imported contact with status New.
func New(tenantID uuid.UUID, fields Fields, source Source, batchID uuid.UUID, sourceID string, now time.Time) Contact {
	return Contact{
		id:             uuid.New(),
		tenantID:       tenantID,
		fields:         fields,
		source:         source,
		status:         StatusNew,
		importBatchID:  batchID,
		importSourceID: sourceID,
		createdAt:      now,
		updatedAt:      now,
	}
}

func Hydrate(
	id uuid.UUID,
	tenantID uuid.UUID,
	fields Fields,
	source Source,
	status Status,
	importBatchID uuid.UUID,
	importSourceID string,
	createdAt time.Time,
	updatedAt time.Time,
) Contact {
	return Contact{
		id:             id,
		tenantID:       tenantID,
		fields:         fields,
		source:         source,
		status:         status,
		importBatchID:  importBatchID,
		importSourceID: importSourceID,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// ApplyUpdate overwrites the descriptive fields with an imported row. The
// email, source, status and import provenance are left untouched.
func (c Contact) ApplyUpdate(f Fields, now time.Time) Contact {
	c.fields.FirstName = f.FirstName
	c.fields.LastName = f.LastName
	c.fields.Phone = f.Phone
	c.fields.Company = f.Company
	c.fields.Notes = f.Notes
	c.updatedAt = now
	return c
}

func (c Contact) ID() uuid.UUID            { return c.id }
func (c Contact) TenantID() uuid.UUID      { return c.tenantID }
func (c Contact) Fields() Fields           { return c.fields }
func (c Contact) Email() string            { return c.fields.Email }
func (c Contact) Source() Source           { return c.source }
func (c Contact) Status() Status           { return c.status }
func (c Contact) ImportBatchID() uuid.UUID { return c.importBatchID }
func (c Contact) ImportSourceID() string   { return c.importSourceID }
func (c Contact) CreatedAt() time.Time     { return c.createdAt }
func (c Contact) UpdatedAt() time.Time     { return c.updatedAt }
