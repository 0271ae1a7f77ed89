package spreadsheet

import (
	"fmt"
	"strings"
)

// Cell is one header/value pair of a data row.
type Cell struct {
	Header string `json:"header"`
	Value  string `json:"value"`
}

// Row is a data row aligned to the table headers. Cells always has one entry
// per header; values past the last header are kept in Overflow.
type Row struct {
	Number   int
	Cells    []Cell
	Overflow []string
}

// Value returns the first cell value under header.
func (r Row) Value(header string) (string, bool) {
	for _, c := range r.Cells {
		if c.Header == header {
			return c.Value, true
		}
	}
	return "", false
}

// Validate rejects rows carrying non-blank values beyond the header count.
func (r Row) Validate() error {
	extra := 0
	for _, v := range r.Overflow {
		if strings.TrimSpace(v) != "" {
			extra++
		}
	}
	if extra > 0 {
		return fmt.Errorf("row has %d value(s) beyond the %d header columns", extra, len(r.Cells))
	}
	return nil
}

// Record returns a copy of the row's cells in header order, which is how a
// row is echoed back in previews and error reports.
func (r Row) Record() []Cell {
	return append([]Cell(nil), r.Cells...)
}

// Table is a grid split into headers and data rows.
type Table struct {
	HeaderRow int
	Headers   []string
	Rows      []Row
}

// NewTable treats values[headerRow-1] as the header row and every following
// row as data. Rows above the header are ignored. Data rows are numbered as
// the sheet shows them.
func NewTable(values [][]string, headerRow int) (*Table, error) {
	if headerRow < 1 {
		return nil, fmt.Errorf("header row must be at least 1, got %d", headerRow)
	}
	t := &Table{HeaderRow: headerRow}
	if len(values) < headerRow {
		return t, nil
	}
	t.Headers = make([]string, len(values[headerRow-1]))
	for i, h := range values[headerRow-1] {
		t.Headers[i] = strings.TrimSpace(h)
	}

	data := values[headerRow:]
	t.Rows = make([]Row, 0, len(data))
	for i, raw := range data {
		row := Row{
			Number: headerRow + i + 1,
			Cells:  make([]Cell, len(t.Headers)),
		}
		for j, h := range t.Headers {
			row.Cells[j].Header = h
			if j < len(raw) {
				row.Cells[j].Value = raw[j]
			}
		}
		if len(raw) > len(t.Headers) {
			row.Overflow = append([]string(nil), raw[len(t.Headers):]...)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func (t *Table) TotalRows() int {
	return len(t.Rows)
}

// Sample returns the first n rows as header/value records.
func (t *Table) Sample(n int) [][]Cell {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	out := make([][]Cell, 0, n)
	for _, r := range t.Rows[:n] {
		out = append(out, r.Record())
	}
	return out
}
