package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes fn inside a database transaction and passes the
// transaction handle through `tx`.
//
// Repositories detect a live tx on the implementation side and switch to
// SELECT ... FOR UPDATE / tx-bound Exec. They MUST accept NoTX (nil) as the
// non-transactional path.
//
// USAGE
// tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
// p, err := payments.FindByID(ctx, tx, id)
// ...
// return err
// })
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
