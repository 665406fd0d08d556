package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes fn within a database transaction, passing the
// underlying handle as tx.
//
// Repository methods accept tx as `any`. When it carries a live transaction,
// finders lock the rows they return (SELECT ... FOR UPDATE) so that the
// status check and the conditional update that follows cannot interleave with
// a concurrent verify call or webhook for the same gateway order.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx Tx) error {
//		p, err := payments.FindByGatewayOrderID(ctx, tx, orderID)
//		...
//		return err
//	})
//
// The concrete type of tx is infra-defined (pgx.Tx for Postgres).
// Repositories MUST accept a nil tx (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
