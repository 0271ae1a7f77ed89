package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sirupsen/logrus"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/aggregates/contact"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/aggregates/importbatch"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/spreadsheet"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/value_objects/columnmapping"
	"github.com/jacksonlee411/leadimport/pkg/composables"
	"github.com/jacksonlee411/leadimport/pkg/configuration"
	"github.com/jacksonlee411/leadimport/pkg/eventbus"
)

// TokenSource hands out provider access tokens for a user.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, userID string, tenantID uuid.UUID) (string, bool, error)
}

type ImportOptions struct {
	configuration.ImportOptions
	Aliases  columnmapping.AliasTable
	TxRunner TxRunner
	Now      func() time.Time
}

type PreviewParams struct {
	UserID        string
	TenantID      uuid.UUID
	SpreadsheetID string
	SheetName     string
	HeaderRow     int
	ColumnMapping map[string]string
}

type PreviewResult struct {
	SpreadsheetName  string
	SheetNames       []string
	Headers          []string
	SuggestedMapping columnmapping.Mapping
	SampleRows       [][]spreadsheet.Cell
	TotalRows        int
}

type ExecuteParams struct {
	UserID            string
	TenantID          uuid.UUID
	SpreadsheetID     string
	SheetName         string
	HeaderRow         int
	ColumnMapping     map[string]string
	DuplicateStrategy string
	DefaultSource     string
}

type ImportResult struct {
	BatchID       uuid.UUID
	Status        importbatch.Status
	TotalRows     int
	ImportedCount int
	SkippedCount  int
	ErrorCount    int
	Errors        []importbatch.RowError
}

type importPlan struct {
	mapping  columnmapping.Mapping
	strategy importbatch.DuplicateStrategy
	source   contact.Source
}

// ImportService previews spreadsheets and imports their rows as contacts.
type ImportService struct {
	tokens    TokenSource
	provider  spreadsheet.Provider
	batches   importbatch.Repository
	contacts  contact.Repository
	publisher eventbus.EventBus
	opts      ImportOptions
	inTx      TxRunner
}

func NewImportService(
	tokens TokenSource,
	provider spreadsheet.Provider,
	batches importbatch.Repository,
	contacts contact.Repository,
	publisher eventbus.EventBus,
	opts ImportOptions,
) *ImportService {
	if opts.Aliases.IsZero() {
		opts.Aliases = columnmapping.DefaultAliases()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = time.Minute
	}
	if opts.FinalizeTimeout <= 0 {
		opts.FinalizeTimeout = 15 * time.Second
	}
	if opts.SampleRows <= 0 {
		opts.SampleRows = 5
	}
	if opts.StoredErrors <= 0 {
		opts.StoredErrors = importbatch.MaxStoredErrors
	}
	if opts.ReturnedErrors <= 0 {
		opts.ReturnedErrors = 10
	}
	if opts.BatchListDefault <= 0 {
		opts.BatchListDefault = 20
	}
	if opts.BatchListMax <= 0 {
		opts.BatchListMax = 100
	}
	if opts.DefaultSource == "" {
		opts.DefaultSource = string(contact.SourceGoogleSheets)
	}
	return &ImportService{
		tokens:    tokens,
		provider:  provider,
		batches:   batches,
		contacts:  contacts,
		publisher: publisher,
		opts:      opts,
		inTx:      defaultTxRunner(opts.TxRunner),
	}
}

// Preview reads the sheet and proposes a column mapping. Nothing is stored.
func (s *ImportService) Preview(ctx context.Context, p PreviewParams) (*PreviewResult, error) {
	v := &ValidationError{}
	headerRow := validateSource(v, p.UserID, p.TenantID, p.SpreadsheetID, p.HeaderRow)
	explicit, problems := columnmapping.FromStrings(p.ColumnMapping)
	for header, msg := range problems {
		v.add("columnMapping["+header+"]", msg)
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	info, table, err := s.readTable(ctx, p.UserID, p.TenantID, p.SpreadsheetID, p.SheetName, headerRow)
	if err != nil {
		return nil, err
	}
	mapping := explicit
	if len(mapping) == 0 {
		mapping = s.opts.Aliases.Suggest(table.Headers)
	}
	return &PreviewResult{
		SpreadsheetName:  info.Title,
		SheetNames:       info.SheetNames,
		Headers:          table.Headers,
		SuggestedMapping: mapping,
		SampleRows:       table.Sample(s.opts.SampleRows),
		TotalRows:        table.TotalRows(),
	}, nil
}

// Execute imports every data row into a new batch. Once the batch exists it
// is always finalized, even when ctx is cancelled half way through.
func (s *ImportService) Execute(ctx context.Context, p ExecuteParams) (result *ImportResult, err error) {
	plan, headerRow, err := s.validateExecute(p)
	if err != nil {
		return nil, err
	}
	info, table, err := s.readTable(ctx, p.UserID, p.TenantID, p.SpreadsheetID, p.SheetName, headerRow)
	if err != nil {
		return nil, err
	}

	ctx = composables.WithTenantID(ctx, p.TenantID)
	batch := importbatch.New(importbatch.CreateParams{
		TenantID:          p.TenantID,
		UserID:            p.UserID,
		SourceID:          p.SpreadsheetID,
		SourceName:        info.Title,
		TotalRows:         table.TotalRows(),
		ColumnMapping:     plan.mapping,
		DuplicateStrategy: plan.strategy,
		ErrorLimit:        s.opts.StoredErrors,
	}, s.opts.Now())
	if err := s.inTx(ctx, func(txCtx context.Context) error {
		return s.batches.Create(txCtx, batch)
	}); err != nil {
		composables.UseLogger(ctx).WithError(err).Error("failed to create import batch")
		return nil, fmt.Errorf("%w: %w", ErrImportFailed, err)
	}

	logger := composables.UseLogger(ctx).WithFields(logrus.Fields{
		"tenant-id": p.TenantID,
		"batch-id":  batch.ID(),
	})
	logger.WithField("rows", batch.TotalRows()).Info("lead import started")

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("lead import loop panicked")
			err = ErrImportFailed
		}
		if ferr := s.finalize(ctx, logger, batch, table.HeaderRow); ferr != nil {
			logger.WithError(ferr).Error("failed to finalize import batch")
			result, err = nil, fmt.Errorf("%w: %w", ErrImportFailed, ferr)
			return
		}
		if err == nil {
			result = s.toResult(batch)
		}
	}()

	return nil, s.processRows(ctx, logger, batch, table, plan)
}

func (s *ImportService) processRows(
	ctx context.Context,
	logger *logrus.Entry,
	batch *importbatch.ImportBatch,
	table *spreadsheet.Table,
	plan importPlan,
) error {
	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			logger.WithError(err).Warn("lead import cancelled")
			return err
		}
		outcome := s.processRow(ctx, batch, row, plan)
		if err := batch.Record(outcome); err != nil {
			return err
		}
		rowsTotal.WithLabelValues(outcome.Label()).Inc()
		if outcome.IsFailed() {
			logger.WithFields(logrus.Fields{
				"row":   row.Number,
				"error": outcome.Error().Error,
			}).Warn("lead import row failed")
		}
	}
	return nil
}

// processRow reconciles one row inside its own transaction. Any error or
// panic rolls the row back and is reported as a failed row.
func (s *ImportService) processRow(
	ctx context.Context,
	batch *importbatch.ImportBatch,
	row spreadsheet.Row,
	plan importPlan,
) (outcome importbatch.RowOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = importbatch.Failed(rowError(row, fmt.Sprintf("unexpected error: %v", r)))
		}
	}()

	if err := row.Validate(); err != nil {
		return importbatch.Failed(rowError(row, err.Error()))
	}
	fields := contact.Project(row, plan.mapping)
	if fields.Email == "" {
		re := rowError(row, importbatch.MessageMissingEmail)
		return importbatch.Skipped(&re)
	}

	err := s.inTx(ctx, func(txCtx context.Context) (txErr error) {
		defer func() {
			if r := recover(); r != nil {
				txErr = fmt.Errorf("unexpected error: %v", r)
			}
		}()
		outcome, txErr = s.reconcile(txCtx, batch, fields, plan)
		return txErr
	})
	if err != nil {
		return importbatch.Failed(rowError(row, err.Error()))
	}
	return outcome
}

func (s *ImportService) reconcile(
	ctx context.Context,
	batch *importbatch.ImportBatch,
	fields contact.Fields,
	plan importPlan,
) (importbatch.RowOutcome, error) {
	now := s.opts.Now()
	existing, err := s.contacts.FindByEmail(ctx, fields.Email)
	if err != nil && !errors.Is(err, contact.ErrContactNotFound) {
		return importbatch.RowOutcome{}, err
	}
	if err == nil {
		switch plan.strategy {
		case importbatch.StrategySkip:
			return importbatch.Skipped(nil), nil
		case importbatch.StrategyUpdate:
			if _, err := s.contacts.Update(ctx, existing.ApplyUpdate(fields, now)); err != nil {
				return importbatch.RowOutcome{}, err
			}
			return importbatch.Imported(), nil
		}
	}
	c := contact.New(batch.TenantID(), fields, plan.source, batch.ID(), batch.SourceID(), now)
	if _, err := s.contacts.Create(ctx, c); err != nil {
		return importbatch.RowOutcome{}, err
	}
	return importbatch.Imported(), nil
}

// finalize accounts for rows never reached, closes the batch and stores it.
// It runs detached from ctx so a cancelled request still leaves a terminal
// batch behind.
func (s *ImportService) finalize(ctx context.Context, logger *logrus.Entry, batch *importbatch.ImportBatch, headerRow int) error {
	if batch.Remaining() > 0 {
		if err := batch.Abort(headerRow + 1 + batch.Processed()); err != nil {
			return err
		}
	}
	if err := batch.Finish(s.opts.Now()); err != nil {
		return err
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.FinalizeTimeout)
	defer cancel()
	if err := s.inTx(fctx, func(txCtx context.Context) error {
		return s.batches.Update(txCtx, batch)
	}); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"status":   batch.Status(),
		"imported": batch.ImportedCount(),
		"skipped":  batch.SkippedCount(),
		"errors":   batch.ErrorCount(),
	}).Info("lead import finalized")
	event := importbatch.NewCompletedEvent(batch)
	s.publisher.Publish(&event)
	return nil
}

func (s *ImportService) toResult(b *importbatch.ImportBatch) *ImportResult {
	return &ImportResult{
		BatchID:       b.ID(),
		Status:        b.Status(),
		TotalRows:     b.TotalRows(),
		ImportedCount: b.ImportedCount(),
		SkippedCount:  b.SkippedCount(),
		ErrorCount:    b.ErrorCount(),
		Errors:        b.FirstErrors(s.opts.ReturnedErrors),
	}
}

func (s *ImportService) validateExecute(p ExecuteParams) (importPlan, int, error) {
	v := &ValidationError{}
	headerRow := validateSource(v, p.UserID, p.TenantID, p.SpreadsheetID, p.HeaderRow)

	mapping, problems := columnmapping.FromStrings(p.ColumnMapping)
	for header, msg := range problems {
		v.add("columnMapping["+header+"]", msg)
	}
	if len(mapping) == 0 && len(problems) == 0 {
		v.add("columnMapping", "at least one column must be mapped")
	}

	rawStrategy := p.DuplicateStrategy
	if rawStrategy == "" {
		rawStrategy = string(importbatch.StrategySkip)
	}
	strategy, err := importbatch.ParseDuplicateStrategy(rawStrategy)
	if err != nil {
		v.add("duplicateStrategy", "must be one of Skip, Update, Create")
	}

	rawSource := p.DefaultSource
	if rawSource == "" {
		rawSource = s.opts.DefaultSource
	}
	source, err := contact.ParseSource(rawSource)
	if err != nil {
		v.add("defaultSource", "must be one of Website, Referral, GoogleSheets, Manual, Advertisement, Other")
	}

	if err := v.orNil(); err != nil {
		return importPlan{}, 0, err
	}
	return importPlan{mapping: mapping, strategy: strategy, source: source}, headerRow, nil
}

// readTable fetches sheet metadata and values with the user's token.
func (s *ImportService) readTable(
	ctx context.Context,
	userID string,
	tenantID uuid.UUID,
	spreadsheetID, sheetName string,
	headerRow int,
) (*spreadsheet.Info, *spreadsheet.Table, error) {
	token, err := s.accessToken(ctx, userID, tenantID)
	if err != nil {
		return nil, nil, err
	}
	logger := composables.UseLogger(ctx).WithField("spreadsheet-id", spreadsheetID)

	pctx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()
	info, err := s.provider.Metadata(pctx, token, spreadsheetID)
	if err != nil {
		logger.WithError(err).Error("failed to read spreadsheet metadata")
		return nil, nil, external(err)
	}
	values, err := s.provider.ReadValues(pctx, token, spreadsheetID, sheetName)
	if err != nil {
		logger.WithError(err).Error("failed to read spreadsheet values")
		return nil, nil, external(err)
	}
	table, err := spreadsheet.NewTable(values, headerRow)
	if err != nil {
		return nil, nil, err
	}
	return info, table, nil
}

func (s *ImportService) accessToken(ctx context.Context, userID string, tenantID uuid.UUID) (string, error) {
	token, ok, err := s.tokens.GetValidAccessToken(ctx, userID, tenantID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotConnected
	}
	return token, nil
}

// ListBatches returns the tenant's batches newest first. limit is clamped to
// [1, BatchListMax].
func (s *ImportService) ListBatches(ctx context.Context, limit int) ([]*importbatch.ImportBatch, error) {
	limit = max(1, min(limit, s.opts.BatchListMax))
	var out []*importbatch.ImportBatch
	err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		out, err = s.batches.List(txCtx, &importbatch.FindParams{Limit: limit})
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "list import batches")
	}
	return out, nil
}

// DefaultBatchListLimit is used when a caller gives no limit.
func (s *ImportService) DefaultBatchListLimit() int {
	return s.opts.BatchListDefault
}

func (s *ImportService) GetBatch(ctx context.Context, id uuid.UUID) (*importbatch.ImportBatch, error) {
	var out *importbatch.ImportBatch
	err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		out, err = s.batches.GetByID(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListSpreadsheets lists the user's most recently modified spreadsheets,
// optionally narrowed to names fuzzily matching query.
func (s *ImportService) ListSpreadsheets(ctx context.Context, userID string, tenantID uuid.UUID, query string) ([]spreadsheet.File, error) {
	if err := identityError(userID, tenantID); err != nil {
		return nil, err
	}
	token, err := s.accessToken(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()
	files, err := s.provider.ListSpreadsheets(pctx, token)
	if err != nil {
		composables.UseLogger(ctx).WithError(err).Error("failed to list spreadsheets")
		return nil, external(err)
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return files, nil
	}
	out := make([]spreadsheet.File, 0, len(files))
	for _, f := range files {
		if fuzzy.MatchNormalizedFold(query, f.Name) {
			out = append(out, f)
		}
	}
	return out, nil
}

func validateSource(v *ValidationError, userID string, tenantID uuid.UUID, spreadsheetID string, headerRow int) int {
	if err := identityError(userID, tenantID); err != nil {
		for k, msg := range err.(*ValidationError).Fields {
			v.add(k, msg)
		}
	}
	if strings.TrimSpace(spreadsheetID) == "" {
		v.add("spreadsheetId", "is required")
	}
	if headerRow == 0 {
		headerRow = 1
	}
	if headerRow < 1 {
		v.add("headerRow", "must be at least 1")
	}
	return headerRow
}

func rowError(row spreadsheet.Row, msg string) importbatch.RowError {
	return importbatch.RowError{Row: row.Number, Error: msg, Data: row.Record()}
}
