package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/aggregates/importbatch"
	"github.com/jacksonlee411/leadimport/modules/leadimport/infrastructure/persistence/models"
	"github.com/jacksonlee411/leadimport/pkg/composables"
	"github.com/jacksonlee411/leadimport/pkg/repo"
)

const batchColumns = `id, tenant_id, user_id, source_type, source_id, source_name, status,
	total_rows, imported_count, skipped_count, error_count, error_details,
	column_mapping, duplicate_strategy, created_at, completed_at`

type BatchRepository struct{}

func NewBatchRepository() importbatch.Repository {
	return &BatchRepository{}
}

func (r *BatchRepository) Create(ctx context.Context, b *importbatch.ImportBatch) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	m, err := toDBImportBatch(b)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO lead_import_batches (`+batchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		m.ID, tenantID, m.UserID, m.SourceType, m.SourceID, m.SourceName, m.Status,
		m.TotalRows, m.ImportedCount, m.SkippedCount, m.ErrorCount, m.ErrorDetails,
		m.ColumnMapping, m.DuplicateStrategy, m.CreatedAt, m.CompletedAt,
	); err != nil {
		return errors.Wrap(err, "insert import batch")
	}
	return nil
}

func (r *BatchRepository) Update(ctx context.Context, b *importbatch.ImportBatch) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	m, err := toDBImportBatch(b)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		UPDATE lead_import_batches
		SET status = $3, imported_count = $4, skipped_count = $5, error_count = $6,
			error_details = $7, completed_at = $8
		WHERE tenant_id = $1 AND id = $2 AND status IN ('Pending', 'Processing')
	`, tenantID, m.ID, m.Status, m.ImportedCount, m.SkippedCount, m.ErrorCount, m.ErrorDetails, m.CompletedAt)
	if err != nil {
		return errors.Wrap(err, "update import batch")
	}
	if tag.RowsAffected() == 0 {
		return importbatch.ErrBatchFinalized
	}
	return nil
}

func (r *BatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*importbatch.ImportBatch, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	var row models.ImportBatch
	err = scanBatch(tx.QueryRow(ctx, `
		SELECT `+batchColumns+`
		FROM lead_import_batches
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id), &row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, importbatch.ErrBatchNotFound
		}
		return nil, errors.Wrap(err, "select import batch")
	}
	return toDomainImportBatch(&row)
}

func (r *BatchRepository) List(ctx context.Context, params *importbatch.FindParams) ([]*importbatch.ImportBatch, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + batchColumns + `
		FROM lead_import_batches
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id
	`
	if params != nil {
		query += " " + repo.FormatLimitOffset(params.Limit, params.Offset)
	}

	rows, err := tx.Query(ctx, query, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "list import batches")
	}
	defer rows.Close()

	var out []*importbatch.ImportBatch
	for rows.Next() {
		var row models.ImportBatch
		if err := scanBatch(rows, &row); err != nil {
			return nil, errors.Wrap(err, "scan import batch")
		}
		b, err := toDomainImportBatch(&row)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate import batches")
	}
	return out, nil
}

func scanBatch(row pgx.Row, m *models.ImportBatch) error {
	return row.Scan(
		&m.ID, &m.TenantID, &m.UserID, &m.SourceType, &m.SourceID, &m.SourceName, &m.Status,
		&m.TotalRows, &m.ImportedCount, &m.SkippedCount, &m.ErrorCount, &m.ErrorDetails,
		&m.ColumnMapping, &m.DuplicateStrategy, &m.CreatedAt, &m.CompletedAt,
	)
}
