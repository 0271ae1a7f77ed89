package importbatch

type outcomeKind int

const (
	outcomeImported outcomeKind = iota + 1
	outcomeSkipped
	outcomeFailed
)

// RowOutcome is the result of reconciling one row. Build it with Imported,
// Skipped or Failed.
type RowOutcome struct {
	kind outcomeKind
	err  *RowError
}

func Imported() RowOutcome {
	return RowOutcome{kind: outcomeImported}
}

// Skipped marks a row left alone. rowErr is nil for a quiet skip such as an
// existing contact under the Skip strategy.
func Skipped(rowErr *RowError) RowOutcome {
	return RowOutcome{kind: outcomeSkipped, err: rowErr}
}

func Failed(rowErr RowError) RowOutcome {
	return RowOutcome{kind: outcomeFailed, err: &rowErr}
}

func (o RowOutcome) IsImported() bool { return o.kind == outcomeImported }
func (o RowOutcome) IsSkipped() bool  { return o.kind == outcomeSkipped }
func (o RowOutcome) IsFailed() bool   { return o.kind == outcomeFailed }

// Label names the outcome for logs and metrics.
func (o RowOutcome) Label() string {
	switch o.kind {
	case outcomeImported:
		return "imported"
	case outcomeSkipped:
		return "skipped"
	case outcomeFailed:
		return "failed"
	}
	return "unknown"
}

func (o RowOutcome) Error() *RowError {
	return o.err
}
