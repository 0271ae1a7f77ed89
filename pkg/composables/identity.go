package composables

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/jacksonlee411/leadimport/pkg/constants"
)

var (
	ErrNoTenantID = errors.New("tenant id not found in context")
	ErrNoUser     = errors.New("user not found in context")
)

// User is the caller identity asserted by the upstream gateway.
type User struct {
	ID       string
	TenantID uuid.UUID
	Role     string
}

// HasRole reports whether the user holds one of roles, compared case-insensitively.
func (u *User) HasRole(roles ...string) bool {
	for _, role := range roles {
		if strings.EqualFold(u.Role, role) {
			return true
		}
	}
	return false
}

func WithTenantID(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.TenantIDKey, tenantID)
}

func UseTenantID(ctx context.Context) (uuid.UUID, error) {
	tenantID, ok := ctx.Value(constants.TenantIDKey).(uuid.UUID)
	if !ok || tenantID == uuid.Nil {
		return uuid.Nil, ErrNoTenantID
	}
	return tenantID, nil
}

// WithUser stores the user and its tenant in ctx.
func WithUser(ctx context.Context, user *User) context.Context {
	ctx = context.WithValue(ctx, constants.UserKey, user)
	return WithTenantID(ctx, user.TenantID)
}

func UseUser(ctx context.Context) (*User, error) {
	user, ok := ctx.Value(constants.UserKey).(*User)
	if !ok || user == nil {
		return nil, ErrNoUser
	}
	return user, nil
}
