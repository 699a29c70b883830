package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaypalName is both the processor name and the payer payment method.
const PaypalName = "paypal"

// DefaultExecutePath is the route PayPal sends the buyer back to after approval.
const DefaultExecutePath = "/v1/payments/paypal/execute"

var (
	errMissingApprovalURL = errors.New("approval_url link missing from payment")
	errNoTransactionTotal = errors.New("executed payment has no transaction amount")
)

var basketValidator = validator.New(validator.WithRequiredStructEnabled())

type PaypalConfig struct {
	// URLRoot is the public root of this service; the return URL is built
	// by joining it with ExecutePath.
	URLRoot     string
	ExecutePath string
	ReceiptURL  string
	CancelURL   string
	// Timeout bounds each gateway round trip. Zero leaves it to the transport.
	Timeout time.Duration
}

// Paypal creates and executes PayPal REST payments for baskets.
//
// For reference, see https://developer.paypal.com/docs/api/payments/v1/.
type Paypal struct {
	client    Client
	recorder  ResponseRecorder
	ledger    Ledger
	logger    *zap.SugaredLogger
	returnURL string
	cfg       PaypalConfig
}

func NewPaypal(cfg PaypalConfig, client Client, recorder ResponseRecorder, ledger Ledger, logger *zap.SugaredLogger) (*Paypal, error) {
	if cfg.ReceiptURL == "" {
		return nil, fmt.Errorf("paypal: receipt url is not configured")
	}
	if cfg.CancelURL == "" {
		return nil, fmt.Errorf("paypal: cancel url is not configured")
	}
	if cfg.URLRoot == "" {
		return nil, fmt.Errorf("paypal: url root is not configured")
	}
	if cfg.ExecutePath == "" {
		cfg.ExecutePath = DefaultExecutePath
	}
	returnURL, err := joinURL(cfg.URLRoot, cfg.ExecutePath)
	if err != nil {
		return nil, fmt.Errorf("paypal: build return url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Paypal{
		client:    client,
		recorder:  recorder,
		ledger:    ledger,
		logger:    logger,
		returnURL: returnURL,
		cfg:       cfg,
	}, nil
}

func (p *Paypal) Name() string { return PaypalName }

// ReturnURL is the absolute URL PayPal redirects approved payments to.
func (p *Paypal) ReturnURL() string { return p.returnURL }

// ReceiptURL is where buyers land after a payment has been executed.
func (p *Paypal) ReceiptURL() string { return p.cfg.ReceiptURL }

// GetTransactionParameters creates a PayPal payment for the basket and
// returns the approval URL the buyer must be redirected to.
func (p *Paypal) GetTransactionParameters(ctx context.Context, basket *Basket) (TransactionParameters, error) {
	if err := ValidateBasket(basket); err != nil {
		return nil, err
	}

	gctx, cancel := p.gatewayContext(ctx)
	defer cancel()

	basketID := basket.ID
	payment, err := p.client.CreatePayment(gctx, p.buildPayment(basket))
	if err != nil {
		entryID := p.recordFailure(ctx, err, &basketID)
		p.logger.Errorw("failed to create paypal payment; response recorded",
			"basket_id", basket.ID, "entry_id", entryID, "err", err)
		return nil, &GatewayError{Op: "create", BasketID: basket.ID, EntryID: entryID, Err: err}
	}

	entryID, err := p.record(ctx, payment.ID, &basketID, payment)
	if err != nil {
		return nil, err
	}
	p.logger.Infow("created paypal payment", "payment_id", payment.ID, "basket_id", basket.ID)

	approvalURL, ok := payment.Link("approval_url")
	if !ok {
		p.logger.Errorw("approval url missing from paypal payment; response recorded",
			"payment_id", payment.ID, "entry_id", entryID)
		return nil, &GatewayError{Op: "create", BasketID: basket.ID, EntryID: entryID, Err: errMissingApprovalURL}
	}

	return TransactionParameters{PaymentPageURLKey: approvalURL}, nil
}

// HandleProcessorResponse executes an approved payment using the query
// PayPal appended to the return URL. The returned source and event are not
// persisted; booking them is up to the caller.
func (p *Paypal) HandleProcessorResponse(ctx context.Context, query url.Values, basket *Basket) (*PaymentSource, *PaymentEvent, error) {
	paymentID := strings.TrimSpace(query.Get("paymentId"))
	payerID := strings.TrimSpace(query.Get("PayerID"))
	if paymentID == "" {
		return nil, nil, &ValidationError{Field: "paymentId", Reason: "missing from return query"}
	}
	if payerID == "" {
		return nil, nil, &ValidationError{Field: "PayerID", Reason: "missing from return query"}
	}

	var basketID *int64
	var logBasketID int64
	if basket != nil {
		id := basket.ID
		basketID = &id
		logBasketID = id
	}

	payment, err := p.execute(ctx, paymentID, payerID)
	if err != nil {
		entryID := p.recordFailure(ctx, err, basketID)
		p.logger.Errorw("failed to execute paypal payment; response recorded",
			"payment_id", paymentID, "entry_id", entryID, "err", err)
		return nil, nil, &GatewayError{Op: "execute", BasketID: logBasketID, EntryID: entryID, Err: err}
	}

	entryID, err := p.record(ctx, payment.ID, basketID, payment)
	if err != nil {
		return nil, nil, err
	}
	p.logger.Infow("executed paypal payment", "payment_id", payment.ID, "basket_id", logBasketID)

	if len(payment.Transactions) == 0 || payment.Transactions[0].Amount == nil {
		p.logger.Errorw("executed paypal payment carries no amount", "payment_id", payment.ID, "entry_id", entryID)
		return nil, nil, &GatewayError{Op: "execute", BasketID: logBasketID, EntryID: entryID, Err: errNoTransactionTotal}
	}
	amount := payment.Transactions[0].Amount
	total, err := decimal.NewFromString(amount.Total)
	if err != nil {
		p.logger.Errorw("executed paypal payment has malformed total",
			"payment_id", payment.ID, "entry_id", entryID, "total", amount.Total)
		return nil, nil, &GatewayError{Op: "execute", BasketID: logBasketID, EntryID: entryID,
			Err: fmt.Errorf("parse total %q: %w", amount.Total, err)}
	}

	var email string
	if payment.Payer != nil && payment.Payer.PayerInfo != nil {
		email = payment.Payer.PayerInfo.Email
	}

	sourceType, err := p.ledger.GetOrCreateSourceType(ctx, PaypalName)
	if err != nil {
		return nil, nil, fmt.Errorf("get or create source type: %w", err)
	}
	eventType, err := p.ledger.GetOrCreatePaymentEventType(ctx, EventTypePaid)
	if err != nil {
		return nil, nil, fmt.Errorf("get or create payment event type: %w", err)
	}

	source := &PaymentSource{
		SourceType:      sourceType,
		Currency:        amount.Currency,
		AmountAllocated: total,
		AmountDebited:   total,
		Reference:       payment.ID,
		Label:           email,
	}
	event := &PaymentEvent{
		EventType:     eventType,
		Amount:        total,
		Reference:     payment.ID,
		ProcessorName: PaypalName,
	}
	return source, event, nil
}

func (p *Paypal) execute(ctx context.Context, paymentID, payerID string) (*Payment, error) {
	gctx, cancel := p.gatewayContext(ctx)
	defer cancel()

	pending, err := p.client.FindPayment(gctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("find payment %s: %w", paymentID, err)
	}
	return p.client.ExecutePayment(gctx, pending.ID, payerID)
}

func (p *Paypal) buildPayment(basket *Basket) *Payment {
	items := make([]Item, 0, len(basket.Lines))
	for _, line := range basket.Lines {
		items = append(items, Item{
			Quantity: strconv.Itoa(line.Quantity),
			Name:     line.Title,
			Price:    line.PriceInclTax.StringFixed(2),
			Currency: line.Currency,
		})
	}

	return &Payment{
		Intent: "sale",
		RedirectURLs: &RedirectURLs{
			ReturnURL: p.returnURL,
			CancelURL: p.cfg.CancelURL,
		},
		Payer: &Payer{PaymentMethod: PaypalName},
		Transactions: []Transaction{{
			Amount: &Amount{
				Total:    basket.TotalInclTax.StringFixed(2),
				Currency: basket.Currency,
			},
			ItemList:      &ItemList{Items: items},
			InvoiceNumber: strconv.FormatInt(basket.ID, 10),
		}},
	}
}

// record writes a successful exchange. Audit writes use a context detached
// from cancellation so a timed out or abandoned request is still recorded.
func (p *Paypal) record(ctx context.Context, transactionID string, basketID *int64, payload any) (int64, error) {
	entryID, err := p.recorder.RecordProcessorResponse(context.WithoutCancel(ctx), PaypalName, transactionID, basketID, payload)
	if err != nil {
		return 0, fmt.Errorf("record processor response: %w", err)
	}
	return entryID, nil
}

// recordFailure audits a failed exchange keyed by PayPal's debug id. A
// failing audit write is logged; the gateway error still wins.
func (p *Paypal) recordFailure(ctx context.Context, cause error, basketID *int64) int64 {
	var (
		transactionID string
		payload       any
	)
	var apiErr *APIError
	if errors.As(cause, &apiErr) {
		transactionID = apiErr.DebugID
		payload = apiErr
	} else {
		payload = map[string]string{"error": cause.Error()}
	}

	entryID, err := p.recorder.RecordProcessorResponse(context.WithoutCancel(ctx), PaypalName, transactionID, basketID, payload)
	if err != nil {
		p.logger.Errorw("failed to record paypal error response", "transaction_id", transactionID, "err", err)
		return 0
	}
	return entryID
}

func (p *Paypal) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, p.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// ValidateBasket reports whether basket can be paid for: at least one line,
// a positive total and well formed currencies and lines.
func ValidateBasket(b *Basket) error {
	if b == nil {
		return &ValidationError{Field: "basket", Reason: "is nil"}
	}
	if len(b.Lines) == 0 {
		return &ValidationError{Field: "lines", Reason: "basket has no lines"}
	}
	if !b.TotalInclTax.IsPositive() {
		return &ValidationError{Field: "total_incl_tax", Reason: "must be greater than zero"}
	}
	if err := basketValidator.Struct(b); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ValidationError{Field: verrs[0].Namespace(), Reason: "failed " + verrs[0].Tag()}
		}
		return &ValidationError{Field: "basket", Reason: err.Error()}
	}
	return nil
}

// joinURL resolves ref against base the way a browser would.
func joinURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
