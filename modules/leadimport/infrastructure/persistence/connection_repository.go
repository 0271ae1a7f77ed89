package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/connection"
	"github.com/jacksonlee411/leadimport/modules/leadimport/infrastructure/persistence/models"
	"github.com/jacksonlee411/leadimport/pkg/composables"
)

const connectionColumns = `id, tenant_id, user_id, google_email, access_token, refresh_token,
	token_expiry, scopes, created_at, updated_at`

type ConnectionRepository struct{}

func NewConnectionRepository() connection.Repository {
	return &ConnectionRepository{}
}

func (r *ConnectionRepository) GetByUser(ctx context.Context, userID string) (*connection.Connection, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	var row models.GoogleConnection
	err = tx.QueryRow(ctx, `
		SELECT `+connectionColumns+`
		FROM google_connections
		WHERE tenant_id = $1 AND user_id = $2
	`, tenantID, userID).Scan(
		&row.ID, &row.TenantID, &row.UserID, &row.GoogleEmail, &row.AccessToken, &row.RefreshToken,
		&row.TokenExpiry, &row.Scopes, &row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, connection.ErrConnectionNotFound
		}
		return nil, errors.Wrap(err, "select google connection")
	}
	return toDomainConnection(&row), nil
}

func (r *ConnectionRepository) Upsert(ctx context.Context, c *connection.Connection) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	c.TenantID = tenantID
	m := toDBConnection(c)

	if err := tx.QueryRow(ctx, `
		INSERT INTO google_connections (`+connectionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET
			google_email = EXCLUDED.google_email,
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), google_connections.refresh_token),
			token_expiry = EXCLUDED.token_expiry,
			scopes = EXCLUDED.scopes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, refresh_token, created_at
	`,
		m.ID, m.TenantID, m.UserID, m.GoogleEmail, m.AccessToken, m.RefreshToken,
		m.TokenExpiry, m.Scopes, m.CreatedAt, m.UpdatedAt,
	).Scan(&c.ID, &c.RefreshToken, &c.CreatedAt); err != nil {
		return errors.Wrap(err, "upsert google connection")
	}
	c.TokenExpiry = m.TokenExpiry
	return nil
}

func (r *ConnectionRepository) UpdateToken(ctx context.Context, c *connection.Connection, prevExpiry time.Time) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return false, err
	}
	m := toDBConnection(c)

	tag, err := tx.Exec(ctx, `
		UPDATE google_connections
		SET access_token = $3, refresh_token = $4, token_expiry = $5, updated_at = $6
		WHERE tenant_id = $1 AND user_id = $2 AND token_expiry = $7
	`, tenantID, m.UserID, m.AccessToken, m.RefreshToken, m.TokenExpiry, m.UpdatedAt, prevExpiry)
	if err != nil {
		return false, errors.Wrap(err, "update google connection token")
	}
	c.TokenExpiry = m.TokenExpiry
	return tag.RowsAffected() == 1, nil
}

func (r *ConnectionRepository) Delete(ctx context.Context, userID string) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM google_connections WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID)
	if err != nil {
		return false, errors.Wrap(err, "delete google connection")
	}
	return tag.RowsAffected() > 0, nil
}
