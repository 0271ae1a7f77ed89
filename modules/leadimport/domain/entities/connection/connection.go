package connection

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/spreadsheet"
)

var ErrConnectionNotFound = errors.New("google connection not found")

// UnknownEmail is stored when the account email cannot be fetched.
const UnknownEmail = "unknown"

// Connection is a user's delegated grant to their Google account. There is at
// most one per (tenant, user).
type Connection struct {
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

func New(tenantID uuid.UUID, userID, email string, tok *spreadsheet.Token, now time.Time) *Connection {
	c := &Connection{
		ID:          uuid.New(),
		TenantID:    tenantID,
		UserID:      userID,
		GoogleEmail: email,
		CreatedAt:   now,
	}
	c.ApplyToken(tok, now)
	return c
}

// NeedsRefresh reports whether the access token expires within skew of now.
func (c *Connection) NeedsRefresh(now time.Time, skew time.Duration) bool {
	return c.TokenExpiry.Before(now.Add(skew))
}

// ApplyToken stores a fresh grant. Google omits the refresh token on most
// refreshes and some re-authorizations, so an empty one keeps the current.
func (c *Connection) ApplyToken(tok *spreadsheet.Token, now time.Time) {
	c.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		c.RefreshToken = tok.RefreshToken
	}
	c.TokenExpiry = tok.Expiry
	if len(tok.Scopes) > 0 {
		c.Scopes = append([]string(nil), tok.Scopes...)
	}
	c.UpdatedAt = now
}

// Repository persists connections of the tenant carried by ctx.
type Repository interface {
	GetByUser(ctx context.Context, userID string) (*Connection, error)
	// Upsert inserts c or overwrites the existing row for (tenant, user),
	// keeping the stored refresh token when c has none.
	Upsert(ctx context.Context, c *Connection) error
	// UpdateToken persists c's token fields only if the stored expiry still
	// equals prevExpiry. It reports whether the row was updated.
	UpdateToken(ctx context.Context, c *Connection, prevExpiry time.Time) (bool, error)
	Delete(ctx context.Context, userID string) (bool, error)
}

type ConnectedEvent struct {
	TenantID uuid.UUID
	UserID   string
	Email    string
}

type DisconnectedEvent struct {
	TenantID uuid.UUID
	UserID   string
}

type RefreshedEvent struct {
	TenantID uuid.UUID
	UserID   string
	Success  bool
}
