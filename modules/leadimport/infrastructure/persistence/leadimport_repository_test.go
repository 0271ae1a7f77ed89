package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/aggregates/contact"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/aggregates/importbatch"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/connection"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/entities/spreadsheet"
	"github.com/jacksonlee411/leadimport/modules/leadimport/domain/value_objects/columnmapping"
	"github.com/jacksonlee411/leadimport/pkg/composables"
	"github.com/jacksonlee411/leadimport/pkg/constants"
)

func txContext(tenantID uuid.UUID, tx *stubTx) context.Context {
	return context.WithValue(composables.WithTenantID(context.Background(), tenantID), constants.TxKey, tx)
}

func strPtr(s string) *string { return &s }

func TestConnectionRepository_GetByUser_ScopesByTenant(t *testing.T) {
	tenantID := uuid.New()
	connID := uuid.New()
	expiry := time.Now().Add(time.Hour).UTC()

	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "FROM google_connections")
			require.Contains(t, sql, "tenant_id = $1 AND user_id = $2")
			require.Equal(t, tenantID, args[0])
			require.Equal(t, "sub-1", args[1])
			return rowOf(connID, tenantID, "sub-1", "ann@x.com", "at", "rt",
				expiry, []string{"scope"}, expiry, expiry)
		},
	}

	c, err := NewConnectionRepository().GetByUser(txContext(tenantID, tx), "sub-1")
	require.NoError(t, err)
	require.Equal(t, connID, c.ID)
	require.Equal(t, "rt", c.RefreshToken)
	require.Equal(t, expiry, c.TokenExpiry)
	require.Equal(t, []string{"scope"}, c.Scopes)
}

func TestConnectionRepository_GetByUser_NotFound(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			return stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}
	_, err := NewConnectionRepository().GetByUser(txContext(uuid.New(), tx), "sub-1")
	require.ErrorIs(t, err, connection.ErrConnectionNotFound)
}

func TestConnectionRepository_RequiresTenant(t *testing.T) {
	ctx := context.WithValue(context.Background(), constants.TxKey, &stubTx{})
	_, err := NewConnectionRepository().GetByUser(ctx, "sub-1")
	require.ErrorIs(t, err, composables.ErrNoTenantID)
}

func TestConnectionRepository_UpsertKeepsStoredRefreshToken(t *testing.T) {
	tenantID := uuid.New()
	storedID := uuid.New()
	createdAt := time.Now().Add(-24 * time.Hour)
	c := &connection.Connection{
		ID:          uuid.New(),
		UserID:      "sub-1",
		GoogleEmail: "ann@x.com",
		AccessToken: "at-2",
		TokenExpiry: time.Now().Add(time.Hour),
	}

	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "ON CONFLICT (tenant_id, user_id)")
			require.Contains(t, sql, "NULLIF(EXCLUDED.refresh_token, '')")
			require.Equal(t, tenantID, args[1])
			require.Equal(t, "", args[5])
			require.Equal(t, []string{}, args[7])
			return rowOf(storedID, "rt-1", createdAt)
		},
	}

	require.NoError(t, NewConnectionRepository().Upsert(txContext(tenantID, tx), c))
	require.Equal(t, storedID, c.ID)
	require.Equal(t, tenantID, c.TenantID)
	require.Equal(t, "rt-1", c.RefreshToken)
	require.Equal(t, createdAt, c.CreatedAt)
}

func TestConnectionRepository_UpdateTokenIsOptimistic(t *testing.T) {
	tenantID := uuid.New()
	prev := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := &connection.Connection{UserID: "sub-1", AccessToken: "at-2", RefreshToken: "rt", TokenExpiry: prev.Add(time.Hour)}

	for _, tc := range []struct {
		tag  string
		want bool
	}{{"UPDATE 1", true}, {"UPDATE 0", false}} {
		tx := &stubTx{
			execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
				require.Contains(t, sql, "token_expiry = $7")
				require.Equal(t, prev, args[6])
				require.Equal(t, "at-2", args[2])
				return tag(tc.tag), nil
			},
		}
		ok, err := NewConnectionRepository().UpdateToken(txContext(tenantID, tx), c, prev)
		require.NoError(t, err)
		require.Equal(t, tc.want, ok)
	}
}

func TestConnectionRepository_Delete(t *testing.T) {
	tenantID := uuid.New()
	tx := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			require.Contains(t, sql, "DELETE FROM google_connections")
			require.Equal(t, tenantID, args[0])
			return tag("DELETE 0"), nil
		},
	}
	removed, err := NewConnectionRepository().Delete(txContext(tenantID, tx), "sub-1")
	require.NoError(t, err)
	require.False(t, removed)
}

func TestBatchRepository_UpdateRefusesTerminalBatch(t *testing.T) {
	tenantID := uuid.New()
	b := importbatch.New(importbatch.CreateParams{TenantID: tenantID, UserID: "sub-1", TotalRows: 1}, time.Now())
	require.NoError(t, b.Record(importbatch.Imported()))
	require.NoError(t, b.Finish(time.Now()))

	tx := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			require.Contains(t, sql, "status IN ('Pending', 'Processing')")
			require.Equal(t, tenantID, args[0])
			require.Equal(t, b.ID(), args[1])
			require.Equal(t, "Completed", args[2])
			require.Nil(t, args[6])
			return tag("UPDATE 0"), nil
		},
	}
	err := NewBatchRepository().Update(txContext(tenantID, tx), b)
	require.ErrorIs(t, err, importbatch.ErrBatchFinalized)
}

func TestBatchRepository_CreateStoresMappingAndErrors(t *testing.T) {
	tenantID := uuid.New()
	b := importbatch.New(importbatch.CreateParams{
		TenantID:          tenantID,
		UserID:            "sub-1",
		SourceID:          "sheet-1",
		TotalRows:         1,
		ColumnMapping:     columnmapping.Mapping{"Email": columnmapping.Email},
		DuplicateStrategy: importbatch.StrategyUpdate,
	}, time.Now())

	called := false
	tx := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			called = true
			require.Contains(t, sql, "INSERT INTO lead_import_batches")
			require.Len(t, args, 16)
			require.Equal(t, tenantID, args[1])
			require.Equal(t, strPtr("sheet-1"), args[4])
			require.Nil(t, args[5])
			require.Equal(t, "Processing", args[6])
			require.JSONEq(t, `{"Email":"email"}`, string(args[12].([]byte)))
			require.Equal(t, "Update", args[13])
			return tag("INSERT 0 1"), nil
		},
	}
	require.NoError(t, NewBatchRepository().Create(txContext(tenantID, tx), b))
	require.True(t, called)
}

func TestBatchRepository_ListMapsRows(t *testing.T) {
	tenantID := uuid.New()
	id := uuid.New()
	now := time.Now()
	details := []byte(`[{"row":3,"error":"Missing email address","data":[{"header":"Email","value":""}]}]`)

	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "ORDER BY created_at DESC")
			require.Contains(t, sql, "LIMIT 20")
			require.Equal(t, []any{tenantID}, args)
			return &stubRows{data: [][]any{{
				id, tenantID, "sub-1", "GoogleSheets", strPtr("sheet-1"), strPtr("Leads"), "Completed",
				2, 1, 1, 0, details,
				[]byte(`{"Email":"email","Bogus":"nope"}`), "Skip", now, &now,
			}}}, nil
		},
	}

	out, err := NewBatchRepository().List(txContext(tenantID, tx), &importbatch.FindParams{Limit: 20})
	require.NoError(t, err)
	require.Len(t, out, 1)
	b := out[0]
	require.Equal(t, id, b.ID())
	require.Equal(t, "Leads", b.SourceName())
	require.Equal(t, importbatch.StatusCompleted, b.Status())
	require.Equal(t, columnmapping.Mapping{"Email": columnmapping.Email}, b.ColumnMapping())
	require.Equal(t, []importbatch.RowError{{
		Row:   3,
		Error: "Missing email address",
		Data:  []spreadsheet.Cell{{Header: "Email", Value: ""}},
	}}, b.Errors())
}

func TestBatchRepository_GetByIDNotFound(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "tenant_id = $1 AND id = $2")
			return stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}
	_, err := NewBatchRepository().GetByID(txContext(uuid.New(), tx), uuid.New())
	require.ErrorIs(t, err, importbatch.ErrBatchNotFound)
}

func TestContactRepository_FindByEmail(t *testing.T) {
	tenantID := uuid.New()
	id := uuid.New()
	batchID := uuid.New()
	now := time.Now()

	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "FROM leads")
			require.Contains(t, sql, "LIMIT 1")
			require.Equal(t, tenantID, args[0])
			require.Equal(t, "ann@x.com", args[1])
			return rowOf(id, tenantID, "Ann", "Lee", "ann@x.com", nil, strPtr("Acme"), "GoogleSheets",
				"New", nil, &batchID, strPtr("sheet-1"), now, now)
		},
	}

	c, err := NewContactRepository().FindByEmail(txContext(tenantID, tx), "ann@x.com")
	require.NoError(t, err)
	require.Equal(t, id, c.ID())
	require.Equal(t, contact.Fields{FirstName: "Ann", LastName: "Lee", Email: "ann@x.com", Company: "Acme"}, c.Fields())
	require.Equal(t, batchID, c.ImportBatchID())
	require.Equal(t, contact.StatusNew, c.Status())
}

func TestContactRepository_CreateWritesNullsForBlankFields(t *testing.T) {
	tenantID := uuid.New()
	c := contact.New(uuid.Nil, contact.Fields{FirstName: "Ann", LastName: "Lee", Email: "ann@x.com"},
		contact.SourceGoogleSheets, uuid.New(), "sheet-1", time.Now())

	tx := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			require.Contains(t, sql, "INSERT INTO leads")
			require.Equal(t, tenantID, args[1])
			require.Nil(t, args[5])
			require.Nil(t, args[6])
			require.Equal(t, "New", args[8])
			return tag("INSERT 0 1"), nil
		},
	}
	created, err := NewContactRepository().Create(txContext(tenantID, tx), c)
	require.NoError(t, err)
	require.Equal(t, tenantID, created.TenantID())
}

func TestContactRepository_UpdateMissingRow(t *testing.T) {
	tx := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			require.Contains(t, sql, "UPDATE leads")
			return tag("UPDATE 0"), nil
		},
	}
	c := contact.New(uuid.New(), contact.Fields{Email: "a@b.c"}, contact.SourceManual, uuid.Nil, "", time.Now())
	_, err := NewContactRepository().Update(txContext(uuid.New(), tx), c)
	require.ErrorIs(t, err, contact.ErrContactNotFound)
}
