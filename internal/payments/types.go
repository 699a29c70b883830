package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventTypePaid names the payment event type recorded for a settled payment.
const EventTypePaid = "paid"

// PaymentPageURLKey is the transaction parameter holding the URL the buyer
// must be sent to in order to approve a payment.
const PaymentPageURLKey = "payment_page_url"

type Basket struct {
	ID           int64           `json:"id"`
	OwnerID      int64           `json:"owner_id"`
	Status       string          `json:"status"`
	Currency     string          `json:"currency" validate:"required,iso4217"`
	TotalInclTax decimal.Decimal `json:"total_incl_tax"`
	Lines        []BasketLine    `json:"lines" validate:"dive"`
}

type BasketLine struct {
	Quantity     int             `json:"quantity" validate:"min=1"`
	Title        string          `json:"title" validate:"required"`
	PriceInclTax decimal.Decimal `json:"price_incl_tax"`
	Currency     string          `json:"currency" validate:"required,iso4217"`
}

// TransactionParameters are the gateway-specific values handed back to the
// checkout flow after a payment has been created.
type TransactionParameters map[string]string

type SourceType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type PaymentEventType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PaymentSource is a confirmed payment's claim against a basket.
type PaymentSource struct {
	ID              int64           `json:"id"`
	SourceType      SourceType      `json:"source_type"`
	Currency        string          `json:"currency"`
	AmountAllocated decimal.Decimal `json:"amount_allocated"`
	AmountDebited   decimal.Decimal `json:"amount_debited"`
	Reference       string          `json:"reference"`
	Label           string          `json:"label"`
	CardType        *string         `json:"card_type"`
}

// PaymentEvent records that a payment of Amount occurred.
type PaymentEvent struct {
	ID            int64            `json:"id"`
	EventType     PaymentEventType `json:"event_type"`
	Amount        decimal.Decimal  `json:"amount"`
	Reference     string           `json:"reference"`
	ProcessorName string           `json:"processor_name"`
}

// ProcessorResponse is one audited exchange with a gateway.
type ProcessorResponse struct {
	ID            int64     `json:"id"`
	Processor     string    `json:"processor"`
	TransactionID string    `json:"transaction_id"`
	BasketID      *int64    `json:"basket_id"`
	Response      any       `json:"response,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
