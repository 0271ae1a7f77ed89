package importbatch

import (
	"context"

	"github.com/google/uuid"
)

type FindParams struct {
	Limit  int
	Offset int
}

// Repository is scoped to the tenant carried by ctx.
type Repository interface {
	Create(ctx context.Context, b *ImportBatch) error
	// Update persists counters, status and errors. It returns
	// ErrBatchFinalized when the stored batch is already terminal.
	Update(ctx context.Context, b *ImportBatch) error
	GetByID(ctx context.Context, id uuid.UUID) (*ImportBatch, error)
	// List returns batches newest first.
	List(ctx context.Context, params *FindParams) ([]*ImportBatch, error)
}

type CompletedEvent struct {
	BatchID       uuid.UUID
	TenantID      uuid.UUID
	UserID        string
	Status        Status
	TotalRows     int
	ImportedCount int
	SkippedCount  int
	ErrorCount    int
}

func NewCompletedEvent(b *ImportBatch) CompletedEvent {
	return CompletedEvent{
		BatchID:       b.ID(),
		TenantID:      b.TenantID(),
		UserID:        b.UserID(),
		Status:        b.Status(),
		TotalRows:     b.TotalRows(),
		ImportedCount: b.ImportedCount(),
		SkippedCount:  b.SkippedCount(),
		ErrorCount:    b.ErrorCount(),
	}
}
