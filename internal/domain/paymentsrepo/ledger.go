package paymentsrepo

import (
	"context"
	"fmt"

	"ecommerce/internal/infra/dbx"
	"ecommerce/internal/payments"
)

type LedgerRepository struct{ q dbx.Querier }

func NewLedgerRepository(q dbx.Querier) *LedgerRepository {
	return &LedgerRepository{q: q}
}

// GetOrCreateSourceType is an explicit upsert keyed on the unique name.
func (r *LedgerRepository) GetOrCreateSourceType(ctx context.Context, name string) (payments.SourceType, error) {
	st := payments.SourceType{Name: name}
	id, err := r.getOrCreateNamed(ctx, "payment_source_types", name)
	if err != nil {
		return st, fmt.Errorf("source type %q: %w", name, err)
	}
	st.ID = id
	return st, nil
}

func (r *LedgerRepository) GetOrCreatePaymentEventType(ctx context.Context, name string) (payments.PaymentEventType, error) {
	et := payments.PaymentEventType{Name: name}
	id, err := r.getOrCreateNamed(ctx, "payment_event_types", name)
	if err != nil {
		return et, fmt.Errorf("payment event type %q: %w", name, err)
	}
	et.ID = id
	return et, nil
}

// table is always one of the two constants above.
func (r *LedgerRepository) getOrCreateNamed(ctx context.Context, table, name string) (int64, error) {
	if _, err := r.q.Exec(ctx,
		`INSERT INTO `+table+` (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name); err != nil {
		return 0, err
	}

	var id int64
	if err := r.q.QueryRow(ctx,
		`SELECT id FROM `+table+` WHERE name = $1`, name).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *LedgerRepository) CreateSource(ctx context.Context, basketID int64, src *payments.PaymentSource) error {
	if err := r.q.QueryRow(ctx, `
		INSERT INTO payment_sources (
			basket_id, source_type_id, currency, amount_allocated, amount_debited,
			reference, label, card_type
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		basketID,
		src.SourceType.ID,
		src.Currency,
		src.AmountAllocated.StringFixed(2),
		src.AmountDebited.StringFixed(2),
		src.Reference,
		src.Label,
		src.CardType,
	).Scan(&src.ID); err != nil {
		return fmt.Errorf("create payment source: %w", err)
	}
	return nil
}

func (r *LedgerRepository) CreatePaymentEvent(ctx context.Context, basketID int64, ev *payments.PaymentEvent) error {
	if err := r.q.QueryRow(ctx, `
		INSERT INTO payment_events (basket_id, event_type_id, amount, reference, processor_name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`,
		basketID,
		ev.EventType.ID,
		ev.Amount.StringFixed(2),
		ev.Reference,
		ev.ProcessorName,
	).Scan(&ev.ID); err != nil {
		return fmt.Errorf("create payment event: %w", err)
	}
	return nil
}
