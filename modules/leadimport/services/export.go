package services

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/aggregates/importbatch"
)

const errorsSheet = "Errors"

// ExportErrors renders the batch's stored row errors as an XLSX workbook:
// row number, message, then one column per original header.
func (s *ImportService) ExportErrors(ctx context.Context, id uuid.UUID) ([]byte, error) {
	batch, err := s.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	return buildErrorWorkbook(batch.Errors())
}

func buildErrorWorkbook(rowErrors []importbatch.RowError) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), errorsSheet); err != nil {
		return nil, errors.Wrap(err, "rename sheet")
	}

	headers := []string{}
	column := map[string]int{}
	for _, re := range rowErrors {
		for _, c := range re.Data {
			if _, ok := column[c.Header]; !ok {
				column[c.Header] = len(headers)
				headers = append(headers, c.Header)
			}
		}
	}

	title := append([]any{"Row", "Error"}, toAny(headers)...)
	if err := f.SetSheetRow(errorsSheet, "A1", &title); err != nil {
		return nil, errors.Wrap(err, "write header row")
	}
	for i, re := range rowErrors {
		values := make([]any, 2+len(headers))
		values[0] = re.Row
		values[1] = re.Error
		for _, c := range re.Data {
			values[2+column[c.Header]] = c.Value
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, errors.Wrap(err, "cell name")
		}
		if err := f.SetSheetRow(errorsSheet, cell, &values); err != nil {
			return nil, errors.Wrapf(err, "write row %d", re.Row)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "encode workbook")
	}
	return buf.Bytes(), nil
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
