package importbatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/spreadsheet"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/value_objects/columnmapping"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type DuplicateStrategy string

const (
	StrategySkip   DuplicateStrategy = "Skip"
	StrategyUpdate DuplicateStrategy = "Update"
	StrategyCreate DuplicateStrategy = "Create"
)

func ParseDuplicateStrategy(raw string) (DuplicateStrategy, error) {
	switch s := DuplicateStrategy(raw); s {
	case StrategySkip, StrategyUpdate, StrategyCreate:
		return s, nil
	}
	return "", fmt.Errorf("invalid duplicate strategy %q", raw)
}

const (
	SourceTypeGoogleSheets = "GoogleSheets"

	// MaxStoredErrors caps the error records persisted on a batch.
	MaxStoredErrors = 100

	MessageMissingEmail = "Missing email address"
	MessageAborted      = "Import aborted"
)

var (
	ErrBatchNotFound  = errors.New("import batch not found")
	ErrBatchFinalized = errors.New("import batch is already finalized")
	ErrRowOverflow    = errors.New("more row outcomes than rows")
)

// RowError describes why a row was skipped or failed.
type RowError struct {
	Row   int                `json:"row"`
	Error string             `json:"error"`
	Data  []spreadsheet.Cell `json:"data"`
}

type CreateParams struct {
	TenantID          uuid.UUID
	UserID            string
	SourceID          string
	SourceName        string
	TotalRows         int
	ColumnMapping     columnmapping.Mapping
	DuplicateStrategy DuplicateStrategy
	// ErrorLimit overrides MaxStoredErrors when positive.
	ErrorLimit int
}

type ImportBatch struct {
	id                uuid.UUID
	tenantID          uuid.UUID
	userID            string
	sourceType        string
	sourceID          string
	sourceName        string
	status            Status
	totalRows         int
	importedCount     int
	skippedCount      int
	errorCount        int
	errors            []RowError
	errorLimit        int
	columnMapping     columnmapping.Mapping
	duplicateStrategy DuplicateStrategy
	aborted           bool
	createdAt         time.Time
	completedAt       *time.Time
}

// New starts a batch in Processing with all counters at zero.
func New(p CreateParams, now time.Time) *ImportBatch {
	limit := p.ErrorLimit
	if limit <= 0 {
		limit = MaxStoredErrors
	}
	return &ImportBatch{
		id:                uuid.New(),
		tenantID:          p.TenantID,
		userID:            p.UserID,
		sourceType:        SourceTypeGoogleSheets,
		sourceID:          p.SourceID,
		sourceName:        p.SourceName,
		status:            StatusProcessing,
		totalRows:         p.TotalRows,
		errorLimit:        limit,
		columnMapping:     p.ColumnMapping.Clone(),
		duplicateStrategy: p.DuplicateStrategy,
		createdAt:         now,
	}
}

type HydrateParams struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	UserID            string
	SourceType        string
	SourceID          string
	SourceName        string
	Status            Status
	TotalRows         int
	ImportedCount     int
	SkippedCount      int
	ErrorCount        int
	Errors            []RowError
	ColumnMapping     columnmapping.Mapping
	DuplicateStrategy DuplicateStrategy
	CreatedAt         time.Time
	CompletedAt       *time.Time
}

func Hydrate(p HydrateParams) *ImportBatch {
	return &ImportBatch{
		id:                p.ID,
		tenantID:          p.TenantID,
		userID:            p.UserID,
		sourceType:        p.SourceType,
		sourceID:          p.SourceID,
		sourceName:        p.SourceName,
		status:            p.Status,
		totalRows:         p.TotalRows,
		importedCount:     p.ImportedCount,
		skippedCount:      p.SkippedCount,
		errorCount:        p.ErrorCount,
		errors:            p.Errors,
		errorLimit:        MaxStoredErrors,
		columnMapping:     p.ColumnMapping,
		duplicateStrategy: p.DuplicateStrategy,
		createdAt:         p.CreatedAt,
		completedAt:       p.CompletedAt,
	}
}

// Record folds one row outcome into the counters.
func (b *ImportBatch) Record(o RowOutcome) error {
	if b.status.IsTerminal() {
		return ErrBatchFinalized
	}
	if b.Processed() >= b.totalRows {
		return ErrRowOverflow
	}
	switch o.kind {
	case outcomeImported:
		b.importedCount++
	case outcomeSkipped:
		b.skippedCount++
	case outcomeFailed:
		b.errorCount++
	default:
		return fmt.Errorf("unknown row outcome %d", o.kind)
	}
	if o.err != nil {
		b.appendError(*o.err)
	}
	return nil
}

func (b *ImportBatch) appendError(e RowError) {
	if len(b.errors) < b.errorLimit {
		b.errors = append(b.errors, e)
	}
}

// Abort counts every row not yet recorded as an error. nextRow is the sheet
// row number of the first unprocessed row.
func (b *ImportBatch) Abort(nextRow int) error {
	if b.status.IsTerminal() {
		return ErrBatchFinalized
	}
	remaining := b.Remaining()
	for i := 0; i < remaining; i++ {
		b.appendError(RowError{Row: nextRow + i, Error: MessageAborted})
	}
	b.errorCount += remaining
	b.aborted = true
	return nil
}

// Finish moves the batch to its terminal status. An aborted batch, or one
// where every row failed, ends Failed.
func (b *ImportBatch) Finish(now time.Time) error {
	if b.status.IsTerminal() {
		return ErrBatchFinalized
	}
	if b.Remaining() > 0 {
		return fmt.Errorf("%d row(s) not accounted for", b.Remaining())
	}
	b.status = StatusCompleted
	if b.aborted || (b.totalRows > 0 && b.errorCount == b.totalRows) {
		b.status = StatusFailed
	}
	b.completedAt = &now
	return nil
}

func (b *ImportBatch) Processed() int {
	return b.importedCount + b.skippedCount + b.errorCount
}

func (b *ImportBatch) Remaining() int {
	return b.totalRows - b.Processed()
}

// FirstErrors returns up to n stored error records.
func (b *ImportBatch) FirstErrors(n int) []RowError {
	if n > len(b.errors) {
		n = len(b.errors)
	}
	return append([]RowError(nil), b.errors[:n]...)
}

func (b *ImportBatch) ID() uuid.UUID                        { return b.id }
func (b *ImportBatch) TenantID() uuid.UUID                  { return b.tenantID }
func (b *ImportBatch) UserID() string                       { return b.userID }
func (b *ImportBatch) SourceType() string                   { return b.sourceType }
func (b *ImportBatch) SourceID() string                     { return b.sourceID }
func (b *ImportBatch) SourceName() string                   { return b.sourceName }
func (b *ImportBatch) Status() Status                       { return b.status }
func (b *ImportBatch) TotalRows() int                       { return b.totalRows }
func (b *ImportBatch) ImportedCount() int                   { return b.importedCount }
func (b *ImportBatch) SkippedCount() int                    { return b.skippedCount }
func (b *ImportBatch) ErrorCount() int                      { return b.errorCount }
func (b *ImportBatch) Errors() []RowError                   { return append([]RowError(nil), b.errors...) }
func (b *ImportBatch) ColumnMapping() columnmapping.Mapping { return b.columnMapping.Clone() }
func (b *ImportBatch) DuplicateStrategy() DuplicateStrategy { return b.duplicateStrategy }
func (b *ImportBatch) CreatedAt() time.Time                 { return b.createdAt }
func (b *ImportBatch) CompletedAt() *time.Time              { return b.completedAt }
