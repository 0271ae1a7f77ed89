package mappers

import (
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/aggregates/importbatch"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/spreadsheet"
	"github.com/jacksonlee411/leadimport/modules/leadimport/presentation/viewmodels"
	"github.com/jacksonlee411/leadimport/modules/leadimport/services"
)

func ConnectionStatusToViewModel(s *services.ConnectionStatus) *viewmodels.ConnectionStatus {
	vm := &viewmodels.ConnectionStatus{IsConnected: s.IsConnected, ConnectedAt: s.ConnectedAt}
	if s.IsConnected {
		email := s.GoogleEmail
		vm.GoogleEmail = &email
	}
	return vm
}

func SheetsToViewModels(files []spreadsheet.File) []viewmodels.SheetListItem {
	out := make([]viewmodels.SheetListItem, 0, len(files))
	for _, f := range files {
		out = append(out, viewmodels.SheetListItem{ID: f.ID, Name: f.Name, ModifiedTime: f.ModifiedTime})
	}
	return out
}

func PreviewToViewModel(p *services.PreviewResult) *viewmodels.Preview {
	rows := make([]viewmodels.Record, 0, len(p.SampleRows))
	for _, r := range p.SampleRows {
		rows = append(rows, viewmodels.Record(r))
	}
	return &viewmodels.Preview{
		SpreadsheetName:  p.SpreadsheetName,
		AvailableSheets:  nonNil(p.SheetNames),
		DetectedColumns:  nonNil(p.Headers),
		SuggestedMapping: p.SuggestedMapping.Strings(),
		SampleRows:       rows,
		TotalRows:        p.TotalRows,
	}
}

func ImportResultToViewModel(r *services.ImportResult) *viewmodels.ImportResult {
	return &viewmodels.ImportResult{
		BatchID:       r.BatchID.String(),
		Status:        string(r.Status),
		TotalRows:     r.TotalRows,
		ImportedCount: r.ImportedCount,
		SkippedCount:  r.SkippedCount,
		ErrorCount:    r.ErrorCount,
		Errors:        RowErrorsToViewModels(r.Errors),
	}
}

func RowErrorsToViewModels(errs []importbatch.RowError) []viewmodels.RowError {
	out := make([]viewmodels.RowError, 0, len(errs))
	for _, e := range errs {
		out = append(out, viewmodels.RowError{Row: e.Row, Error: e.Error, Data: viewmodels.Record(e.Data)})
	}
	return out
}

func BatchToViewModel(b *importbatch.ImportBatch) viewmodels.ImportBatch {
	return viewmodels.ImportBatch{
		ID:                b.ID().String(),
		SourceType:        b.SourceType(),
		SourceID:          b.SourceID(),
		SourceName:        b.SourceName(),
		Status:            string(b.Status()),
		DuplicateStrategy: string(b.DuplicateStrategy()),
		TotalRows:         b.TotalRows(),
		ImportedCount:     b.ImportedCount(),
		SkippedCount:      b.SkippedCount(),
		ErrorCount:        b.ErrorCount(),
		CreatedAt:         b.CreatedAt(),
		CompletedAt:       b.CompletedAt(),
	}
}

func BatchesToViewModels(batches []*importbatch.ImportBatch) []viewmodels.ImportBatch {
	out := make([]viewmodels.ImportBatch, 0, len(batches))
	for _, b := range batches {
		out = append(out, BatchToViewModel(b))
	}
	return out
}

func BatchToDetailViewModel(b *importbatch.ImportBatch) *viewmodels.ImportBatchDetail {
	return &viewmodels.ImportBatchDetail{
		ImportBatch:   BatchToViewModel(b),
		ColumnMapping: b.ColumnMapping().Strings(),
		Errors:        RowErrorsToViewModels(b.Errors()),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
