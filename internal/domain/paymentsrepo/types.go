package paymentsrepo

import (
	"context"
	"errors"

	"ecommerce/internal/payments"
)

var ErrNotFound = errors.New("resource not found")

// ResponsesStore is the append-only audit trail of gateway exchanges.
type ResponsesStore interface {
	RecordProcessorResponse(ctx context.Context, processor, transactionID string, basketID *int64, payload any) (int64, error)
	GetBasketIDByTransaction(ctx context.Context, processor, transactionID string) (int64, error)
	List(ctx context.Context, basketID *int64, limit, offset int) ([]*payments.ProcessorResponse, int, error)
}

// LedgerStore persists payment sources and events against a basket.
type LedgerStore interface {
	GetOrCreateSourceType(ctx context.Context, name string) (payments.SourceType, error)
	GetOrCreatePaymentEventType(ctx context.Context, name string) (payments.PaymentEventType, error)
	CreateSource(ctx context.Context, basketID int64, src *payments.PaymentSource) error
	CreatePaymentEvent(ctx context.Context, basketID int64, ev *payments.PaymentEvent) error
}
