package baskets

import (
	"context"
	"errors"
	"fmt"

	"ecommerce/internal/infra/dbx"
	"ecommerce/internal/payments"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{db: q}
}

// GetByID loads a basket with its lines. TotalInclTax is the sum of the
// line prices times quantities.
func (r *Repository) GetByID(ctx context.Context, id int64) (*payments.Basket, error) {
	b := payments.Basket{ID: id, TotalInclTax: decimal.Zero}
	err := r.db.QueryRow(ctx, `
SELECT owner_id, status, currency
FROM baskets
WHERE id = $1
`, id).Scan(&b.OwnerID, &b.Status, &b.Currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get basket: %w", err)
	}

	rows, err := r.db.Query(ctx, `
SELECT bl.quantity, p.title, bl.price_incl_tax::text, bl.price_currency
FROM basket_lines bl
JOIN products p ON p.id = bl.product_id
WHERE bl.basket_id = $1
ORDER BY bl.id ASC
`, id)
	if err != nil {
		return nil, fmt.Errorf("list basket lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line  payments.BasketLine
			price string
		)
		if err := rows.Scan(&line.Quantity, &line.Title, &price, &line.Currency); err != nil {
			return nil, fmt.Errorf("scan basket line: %w", err)
		}
		line.PriceInclTax, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("basket line price %q: %w", price, err)
		}
		b.TotalInclTax = b.TotalInclTax.Add(line.PriceInclTax.Mul(decimal.NewFromInt(int64(line.Quantity))))
		b.Lines = append(b.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Freeze locks an open basket before a payment is created for it.
// Freezing an already frozen basket is a no-op so the buyer can retry.
func (r *Repository) Freeze(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `
UPDATE baskets
SET status = 'frozen', updated_at = now()
WHERE id = $1 AND status = 'open'
`, id)
	if err != nil {
		return fmt.Errorf("freeze basket: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	status, err := r.status(ctx, id)
	if err != nil {
		return err
	}
	if status == StatusFrozen {
		return nil
	}
	return ErrNotOpen
}

// Submit marks a frozen basket as paid for.
func (r *Repository) Submit(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `
UPDATE baskets
SET status = 'submitted', updated_at = now()
WHERE id = $1 AND status = 'frozen'
`, id)
	if err != nil {
		return fmt.Errorf("submit basket: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.status(ctx, id); err != nil {
		return err
	}
	return ErrNotFrozen
}

func (r *Repository) status(ctx context.Context, id int64) (string, error) {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM baskets WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("basket status: %w", err)
	}
	return status, nil
}
