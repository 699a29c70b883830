package payments

import "context"

// Client is the subset of the PayPal REST payments API the processor uses.
type Client interface {
	CreatePayment(ctx context.Context, p *Payment) (*Payment, error)
	FindPayment(ctx context.Context, id string) (*Payment, error)
	ExecutePayment(ctx context.Context, id, payerID string) (*Payment, error)
}

// ResponseRecorder appends raw gateway exchanges to the audit trail and
// returns the id of the new entry.
type ResponseRecorder interface {
	RecordProcessorResponse(ctx context.Context, processor, transactionID string, basketID *int64, payload any) (int64, error)
}

// Ledger resolves the source and event types payments are booked against,
// creating them on first use.
type Ledger interface {
	GetOrCreateSourceType(ctx context.Context, name string) (SourceType, error)
	GetOrCreatePaymentEventType(ctx context.Context, name string) (PaymentEventType, error)
}
