package storage

import (
	"context"
	"fmt"

	"ecommerce/internal/domain/baskets"
	"ecommerce/internal/domain/paymentsrepo"
	"ecommerce/internal/domain/users"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Container struct {
	pool      *pgxpool.Pool
	static    bool
	Users     users.Store
	Baskets   baskets.Store
	Responses paymentsrepo.ResponsesStore
	Ledger    paymentsrepo.LedgerStore
}

func NewContainer(db *pgxpool.Pool) *Container {
	return &Container{
		pool:      db,
		Users:     users.NewRepository(db),
		Baskets:   baskets.NewRepository(db),
		Responses: paymentsrepo.NewResponsesRepository(db),
		Ledger:    paymentsrepo.NewLedgerRepository(db),
	}
}

// NewStaticContainer wraps already built stores. WithLedgerTx on it runs fn
// against Baskets and Ledger directly, without a database transaction.
func NewStaticContainer(u users.Store, b baskets.Store, resp paymentsrepo.ResponsesStore, l paymentsrepo.LedgerStore) *Container {
	return &Container{
		static:    true,
		Users:     u,
		Baskets:   b,
		Responses: resp,
		Ledger:    l,
	}
}

// LedgerTx is a tx-scoped set of repos for settling a payment.
type LedgerTx struct {
	Baskets baskets.Store
	Ledger  paymentsrepo.LedgerStore
}

// WithLedgerTx writes payment sources, events and the basket status change
// atomically. Audit rows are written outside it and survive a rollback.
func (c *Container) WithLedgerTx(ctx context.Context, fn func(s *LedgerTx) error) error {
	if c.static {
		return fn(&LedgerTx{Baskets: c.Baskets, Ledger: c.Ledger})
	}
	if c.pool == nil {
		return fmt.Errorf("storage container pool is nil")
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	s := &LedgerTx{
		Baskets: baskets.NewRepository(tx),
		Ledger:  paymentsrepo.NewLedgerRepository(tx),
	}

	if err := fn(s); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
