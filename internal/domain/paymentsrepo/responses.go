package paymentsrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ecommerce/internal/infra/dbx"
	"ecommerce/internal/payments"

	"github.com/jackc/pgx/v5"
)

type ResponsesRepository struct{ q dbx.Querier }

func NewResponsesRepository(q dbx.Querier) *ResponsesRepository {
	return &ResponsesRepository{q: q}
}

// RecordProcessorResponse appends one gateway exchange. Rows are never
// updated or deleted.
func (r *ResponsesRepository) RecordProcessorResponse(
	ctx context.Context,
	processor, transactionID string,
	basketID *int64,
	payload any,
) (int64, error) {
	jb, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal processor response: %w", err)
	}

	var id int64
	if err := r.q.QueryRow(ctx, `
		INSERT INTO payment_processor_responses (processor_name, transaction_id, basket_id, response)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, processor, transactionID, basketID, jb).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert processor response: %w", err)
	}
	return id, nil
}

// GetBasketIDByTransaction finds the basket a gateway transaction was
// created for, using the earliest audit row that carries a basket.
func (r *ResponsesRepository) GetBasketIDByTransaction(ctx context.Context, processor, transactionID string) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		SELECT basket_id
		FROM payment_processor_responses
		WHERE processor_name = $1
		  AND transaction_id = $2
		  AND basket_id IS NOT NULL
		ORDER BY id ASC
		LIMIT 1
	`, processor, transactionID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("get basket by transaction: %w", err)
	}
	return id, nil
}

// List returns audit rows newest first, optionally for one basket, with
// the total count for pagination.
func (r *ResponsesRepository) List(
	ctx context.Context,
	basketID *int64,
	limit, offset int,
) ([]*payments.ProcessorResponse, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.q.Query(ctx, `
SELECT
  id,
  processor_name,
  transaction_id,
  basket_id,
  response,
  created_at,
  COUNT(*) OVER() AS total_count
FROM payment_processor_responses
WHERE ($1::bigint IS NULL OR basket_id = $1::bigint)
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`, basketID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list processor responses: %w", err)
	}
	defer rows.Close()

	var (
		out   []*payments.ProcessorResponse
		total int
	)
	for rows.Next() {
		var (
			p   payments.ProcessorResponse
			raw []byte
		)
		if err := rows.Scan(
			&p.ID,
			&p.Processor,
			&p.TransactionID,
			&p.BasketID,
			&raw,
			&p.CreatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan processor response: %w", err)
		}
		p.Response = json.RawMessage(raw)
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
