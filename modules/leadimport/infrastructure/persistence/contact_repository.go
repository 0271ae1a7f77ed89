package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/aggregates/contact"
	"github.com/jacksonlee411/leadimport/modules/leadimport/infrastructure/persistence/models"
	"github.com/jacksonlee411/leadimport/pkg/composables"
)

const leadColumns = `id, tenant_id, first_name, last_name, email, phone, company, source,
	status, notes, import_batch_id, import_source_id, created_at, updated_at`

type ContactRepository struct{}

func NewContactRepository() contact.Repository {
	return &ContactRepository{}
}

func (r *ContactRepository) FindByEmail(ctx context.Context, email string) (contact.Contact, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return contact.Contact{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return contact.Contact{}, err
	}

	var m models.Lead
	err = tx.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE tenant_id = $1 AND email = $2
		ORDER BY created_at, id
		LIMIT 1
	`, tenantID, email).Scan(
		&m.ID, &m.TenantID, &m.FirstName, &m.LastName, &m.Email, &m.Phone, &m.Company, &m.Source,
		&m.Status, &m.Notes, &m.ImportBatchID, &m.ImportSourceID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return contact.Contact{}, contact.ErrContactNotFound
		}
		return contact.Contact{}, errors.Wrap(err, "select lead by email")
	}
	return toDomainLead(&m), nil
}

func (r *ContactRepository) Create(ctx context.Context, c contact.Contact) (contact.Contact, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return contact.Contact{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return contact.Contact{}, err
	}
	m := toDBLead(c)
	m.TenantID = tenantID
	if _, err := tx.Exec(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		m.ID, m.TenantID, m.FirstName, m.LastName, m.Email, m.Phone, m.Company, m.Source,
		m.Status, m.Notes, m.ImportBatchID, m.ImportSourceID, m.CreatedAt, m.UpdatedAt,
	); err != nil {
		return contact.Contact{}, errors.Wrap(err, "insert lead")
	}
	return toDomainLead(m), nil
}

func (r *ContactRepository) Update(ctx context.Context, c contact.Contact) (contact.Contact, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return contact.Contact{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return contact.Contact{}, err
	}
	m := toDBLead(c)
	tag, err := tx.Exec(ctx, `
		UPDATE leads
		SET first_name = $3, last_name = $4, phone = $5, company = $6, notes = $7, updated_at = $8
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, m.ID, m.FirstName, m.LastName, m.Phone, m.Company, m.Notes, m.UpdatedAt)
	if err != nil {
		return contact.Contact{}, errors.Wrap(err, "update lead")
	}
	if tag.RowsAffected() == 0 {
		return contact.Contact{}, contact.ErrContactNotFound
	}
	return c, nil
}
