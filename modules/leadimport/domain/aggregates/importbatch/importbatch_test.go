package importbatch

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/value_objects/columnmapping"
)

func newBatch(total int) *ImportBatch {
	return New(CreateParams{
		TenantID:          uuid.New(),
		UserID:            "sub-1",
		SourceID:          "sheet-1",
		SourceName:        "Leads",
		TotalRows:         total,
		ColumnMapping:     columnmapping.Mapping{"Email": columnmapping.Email},
		DuplicateStrategy: StrategySkip,
	}, time.Now())
}

func TestNew_StartsProcessing(t *testing.T) {
	b := newBatch(3)
	require.Equal(t, StatusProcessing, b.Status())
	require.Equal(t, SourceTypeGoogleSheets, b.SourceType())
	require.Equal(t, 3, b.Remaining())
	require.Nil(t, b.CompletedAt())
}

func TestRecord_FoldsOutcomes(t *testing.T) {
	b := newBatch(4)
	require.NoError(t, b.Record(Imported()))
	require.NoError(t, b.Record(Skipped(nil)))
	require.NoError(t, b.Record(Skipped(&RowError{Row: 4, Error: MessageMissingEmail})))
	require.NoError(t, b.Record(Failed(RowError{Row: 5, Error: "boom"})))
	require.ErrorIs(t, b.Record(Imported()), ErrRowOverflow)

	require.Equal(t, 1, b.ImportedCount())
	require.Equal(t, 2, b.SkippedCount())
	require.Equal(t, 1, b.ErrorCount())
	require.Len(t, b.Errors(), 2)

	require.NoError(t, b.Finish(time.Now()))
	require.Equal(t, StatusCompleted, b.Status())
	require.NotNil(t, b.CompletedAt())
}

func TestFinish_RequiresAllRowsAccounted(t *testing.T) {
	b := newBatch(2)
	require.NoError(t, b.Record(Imported()))
	require.Error(t, b.Finish(time.Now()))
	require.Equal(t, StatusProcessing, b.Status())
}

func TestFinish_StatusPolicy(t *testing.T) {
	t.Run("all rows failed", func(t *testing.T) {
		b := newBatch(2)
		require.NoError(t, b.Record(Failed(RowError{Row: 2, Error: "x"})))
		require.NoError(t, b.Record(Failed(RowError{Row: 3, Error: "y"})))
		require.NoError(t, b.Finish(time.Now()))
		require.Equal(t, StatusFailed, b.Status())
	})

	t.Run("all rows skipped", func(t *testing.T) {
		b := newBatch(1)
		require.NoError(t, b.Record(Skipped(&RowError{Row: 2, Error: MessageMissingEmail})))
		require.NoError(t, b.Finish(time.Now()))
		require.Equal(t, StatusCompleted, b.Status())
	})

	t.Run("empty sheet", func(t *testing.T) {
		b := newBatch(0)
		require.NoError(t, b.Finish(time.Now()))
		require.Equal(t, StatusCompleted, b.Status())
	})
}

func TestAbort_CountsRemainingRows(t *testing.T) {
	b := newBatch(5)
	require.NoError(t, b.Record(Imported()))
	require.NoError(t, b.Record(Skipped(nil)))
	require.NoError(t, b.Abort(4))
	require.NoError(t, b.Finish(time.Now()))

	require.Equal(t, StatusFailed, b.Status())
	require.Equal(t, 3, b.ErrorCount())
	require.Equal(t, b.TotalRows(), b.ImportedCount()+b.SkippedCount()+b.ErrorCount())
	errs := b.Errors()
	require.Len(t, errs, 3)
	require.Equal(t, RowError{Row: 4, Error: MessageAborted}, errs[0])
	require.Equal(t, 6, errs[2].Row)
}

func TestTerminalBatchIsImmutable(t *testing.T) {
	b := newBatch(1)
	require.NoError(t, b.Record(Imported()))
	require.NoError(t, b.Finish(time.Now()))
	completedAt := b.CompletedAt()

	require.ErrorIs(t, b.Record(Imported()), ErrBatchFinalized)
	require.ErrorIs(t, b.Abort(3), ErrBatchFinalized)
	require.ErrorIs(t, b.Finish(time.Now().Add(time.Hour)), ErrBatchFinalized)
	require.Equal(t, 1, b.ImportedCount())
	require.Equal(t, completedAt, b.CompletedAt())
}

func TestErrorsAreCapped(t *testing.T) {
	b := newBatch(MaxStoredErrors + 20)
	for i := 0; i < b.TotalRows(); i++ {
		require.NoError(t, b.Record(Failed(RowError{Row: i + 2, Error: "bad"})))
	}
	require.Len(t, b.Errors(), MaxStoredErrors)
	require.Equal(t, MaxStoredErrors+20, b.ErrorCount())
	require.Len(t, b.FirstErrors(10), 10)
	require.Equal(t, 2, b.FirstErrors(10)[0].Row)
}

func TestAccountingInvariant_RandomOutcomes(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		total := r.Intn(30)
		b := newBatch(total)
		done := r.Intn(total + 1)
		for row := 0; row < done; row++ {
			var o RowOutcome
			switch r.Intn(3) {
			case 0:
				o = Imported()
			case 1:
				o = Skipped(nil)
			default:
				o = Failed(RowError{Row: row + 2, Error: "e"})
			}
			require.NoError(t, b.Record(o))
		}
		if done < total {
			require.NoError(t, b.Abort(done+2))
		}
		require.NoError(t, b.Finish(time.Now()))
		require.True(t, b.Status().IsTerminal())
		require.Equal(t, total, b.ImportedCount()+b.SkippedCount()+b.ErrorCount())
	}
}

func TestParseDuplicateStrategy(t *testing.T) {
	for _, raw := range []string{"Skip", "Update", "Create"} {
		s, err := ParseDuplicateStrategy(raw)
		require.NoError(t, err)
		require.Equal(t, raw, string(s))
	}
	_, err := ParseDuplicateStrategy("skip")
	require.Error(t, err)
}

func TestRowOutcome_Label(t *testing.T) {
	require.Equal(t, "imported", Imported().Label())
	require.Equal(t, "skipped", Skipped(nil).Label())
	require.Equal(t, "failed", Failed(RowError{}).Label())
	require.Nil(t, Imported().Error())
	require.True(t, Failed(RowError{}).IsFailed())
}
