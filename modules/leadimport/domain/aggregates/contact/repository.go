package contact

import (
	"context"
	"errors"
)

var ErrContactNotFound = errors.New("contact not found")

// Repository is scoped to the tenant carried by ctx.
type Repository interface {
	// FindByEmail returns the oldest contact with the given normalized email.
	FindByEmail(ctx context.Context, email string) (Contact, error)
	Create(ctx context.Context, c Contact) (Contact, error)
	Update(ctx context.Context, c Contact) (Contact, error)
}
