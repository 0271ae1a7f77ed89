package services

import (
	"context"

	"github.com/jacksonlee411/leadimport/pkg/composables"
)

// TxRunner runs fn in a transaction bound to the tenant carried by ctx.
type TxRunner func(ctx context.Context, fn func(context.Context) error) error

func defaultTxRunner(r TxRunner) TxRunner {
	if r == nil {
		return composables.InTenantTx
	}
	return r
}
