package main

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ecommerce/internal/auth"
	"ecommerce/internal/domain/baskets"
	"ecommerce/internal/domain/paymentsrepo"
	"ecommerce/internal/domain/storage"
	"ecommerce/internal/domain/users"
	"ecommerce/internal/inspect"
	"ecommerce/internal/payments"
	"ecommerce/internal/ratelimiter"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret     = "test-secret"
	testIssuer     = "ecommerce"
	testAdminUser  = "admin"
	testAdminPass  = "s3cret"
	testReceiptURL = "https://shop.example.com/checkout/receipt/"
	testErrorURL   = "https://shop.example.com/checkout/error/"
)

type fakeUsers struct {
	users map[int64]*users.User
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*users.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return u, nil
}

type fakeBaskets struct {
	mu        sync.Mutex
	baskets   map[int64]*payments.Basket
	submitErr error
}

func (f *fakeBaskets) GetByID(_ context.Context, id int64) (*payments.Basket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.baskets[id]
	if !ok {
		return nil, baskets.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBaskets) Freeze(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.baskets[id]
	if !ok {
		return baskets.ErrNotFound
	}
	switch b.Status {
	case baskets.StatusOpen:
		b.Status = baskets.StatusFrozen
		return nil
	case baskets.StatusFrozen:
		return nil
	}
	return baskets.ErrNotOpen
}

func (f *fakeBaskets) Submit(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	b, ok := f.baskets[id]
	if !ok {
		return baskets.ErrNotFound
	}
	if b.Status != baskets.StatusFrozen {
		return baskets.ErrNotFrozen
	}
	b.Status = baskets.StatusSubmitted
	return nil
}

func (f *fakeBaskets) status(id int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.baskets[id].Status
}

type fakeResponses struct {
	mu      sync.Mutex
	entries []payments.ProcessorResponse
}

func (f *fakeResponses) RecordProcessorResponse(_ context.Context, processor, txnID string, basketID *int64, payload any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := int64(len(f.entries) + 1)
	f.entries = append(f.entries, payments.ProcessorResponse{
		ID: id, Processor: processor, TransactionID: txnID, BasketID: basketID, Response: payload,
	})
	return id, nil
}

func (f *fakeResponses) GetBasketIDByTransaction(_ context.Context, processor, txnID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.Processor == processor && e.TransactionID == txnID && e.BasketID != nil {
			return *e.BasketID, nil
		}
	}
	return 0, paymentsrepo.ErrNotFound
}

func (f *fakeResponses) List(_ context.Context, basketID *int64, limit, offset int) ([]*payments.ProcessorResponse, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*payments.ProcessorResponse
	for i := range f.entries {
		e := f.entries[i]
		if basketID != nil && (e.BasketID == nil || *e.BasketID != *basketID) {
			continue
		}
		out = append(out, &e)
	}
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (f *fakeResponses) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeLedger struct {
	mu      sync.Mutex
	sources []*payments.PaymentSource
	events  []*payments.PaymentEvent
}

func (f *fakeLedger) GetOrCreateSourceType(_ context.Context, name string) (payments.SourceType, error) {
	return payments.SourceType{ID: 1, Name: name}, nil
}

func (f *fakeLedger) GetOrCreatePaymentEventType(_ context.Context, name string) (payments.PaymentEventType, error) {
	return payments.PaymentEventType{ID: 2, Name: name}, nil
}

func (f *fakeLedger) CreateSource(_ context.Context, _ int64, src *payments.PaymentSource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, src)
	return nil
}

func (f *fakeLedger) CreatePaymentEvent(_ context.Context, _ int64, ev *payments.PaymentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

// fakeGateway stands in for the PayPal REST API.
type fakeGateway struct {
	mu         sync.Mutex
	createErr  error
	executeErr error
	executed   int
}

func (f *fakeGateway) CreatePayment(_ context.Context, p *payments.Payment) (*payments.Payment, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	out := *p
	out.ID = "PAY-" + p.Transactions[0].InvoiceNumber
	out.State = "created"
	out.Links = []payments.Link{{Rel: "approval_url", Href: "https://paypal.test/approve?token=EC-1"}}
	return &out, nil
}

func (f *fakeGateway) FindPayment(_ context.Context, id string) (*payments.Payment, error) {
	return &payments.Payment{ID: id, State: "created"}, nil
}

func (f *fakeGateway) ExecutePayment(_ context.Context, id, _ string) (*payments.Payment, error) {
	f.mu.Lock()
	f.executed++
	f.mu.Unlock()
	if f.executeErr != nil {
		return nil, f.executeErr
	}
	return &payments.Payment{
		ID:    id,
		State: "approved",
		Payer: &payments.Payer{PaymentMethod: "paypal", PayerInfo: &payments.PayerInfo{Email: "buyer@example.com"}},
		Transactions: []payments.Transaction{{
			Amount: &payments.Amount{Total: "25.00", Currency: "USD"},
		}},
	}, nil
}

type sentMail struct {
	template string
	email    string
	data     any
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, templateFile, email string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{template: templateFile, email: email, data: data})
	return nil
}

type testEnv struct {
	app       *application
	handler   http.Handler
	baskets   *fakeBaskets
	responses *fakeResponses
	ledger    *fakeLedger
	gateway   *fakeGateway
	mailer    *fakeMailer
	jwt       *auth.JWTAuthenticator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPass), bcrypt.MinCost)
	require.NoError(t, err)

	env := &testEnv{
		baskets: &fakeBaskets{baskets: map[int64]*payments.Basket{
			42: {
				ID: 42, OwnerID: 5, Status: baskets.StatusOpen, Currency: "USD",
				TotalInclTax: decimal.RequireFromString("25.00"),
				Lines: []payments.BasketLine{{
					Quantity: 1, Title: "Course X", PriceInclTax: decimal.RequireFromString("25.00"), Currency: "USD",
				}},
			},
			43: {ID: 43, OwnerID: 5, Status: baskets.StatusOpen, Currency: "USD", TotalInclTax: decimal.Zero},
			44: {ID: 44, OwnerID: 6, Status: baskets.StatusOpen, Currency: "USD"},
		}},
		responses: &fakeResponses{},
		ledger:    &fakeLedger{},
		gateway:   &fakeGateway{},
		mailer:    &fakeMailer{},
		jwt:       auth.NewJWTAuthenticator(testSecret, testIssuer, testIssuer),
	}

	usersStore := &fakeUsers{users: map[int64]*users.User{
		5: {ID: 5, Email: "ada@example.com", IsActive: true},
		6: {ID: 6, Email: "bob@example.com", IsActive: true},
		7: {ID: 7, Email: "gone@example.com", IsActive: false},
	}}

	logger := zap.NewNop().Sugar()
	processor, err := payments.NewPaypal(payments.PaypalConfig{
		URLRoot:    "https://ecommerce.example.com",
		ReceiptURL: testReceiptURL,
		CancelURL:  "https://shop.example.com/basket/",
	}, env.gateway, env.responses, env.ledger, logger)
	require.NoError(t, err)

	switches := inspect.NewSwitches(map[string]bool{inspect.EnableSessionInspect: false})

	env.app = &application{
		config: config{
			env: "test",
			paypal: paypalConfig{
				receiptURL: testReceiptURL,
				errorURL:   testErrorURL,
			},
			auth: authConfig{
				basic: basicConfig{user: testAdminUser, passHash: string(hash)},
			},
			rateLimiter: ratelimiter.Config{RequestsPerTimeFrame: 2, TimeFrame: time.Minute, Enabled: true},
		},
		store:         storage.NewStaticContainer(usersStore, env.baskets, env.responses, env.ledger),
		logger:        logger,
		mailer:        env.mailer,
		authenticator: env.jwt,
		rateLimiter:   ratelimiter.NewFixedWindowLimiter(2, time.Minute),
		paypal:        processor,
		switches:      switches,
		inspector:     inspect.New(switches, logger, "sessionid", userIdentity),
	}
	env.handler = env.app.mount()
	return env
}

func (e *testEnv) token(t *testing.T, userID int64) string {
	t.Helper()
	tok, err := e.jwt.GenerateToken(e.jwt.UserClaims(userID, time.Hour))
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func bearer(tok string) http.Header {
	return http.Header{"Authorization": {"Bearer " + tok}}
}

func basic(user, pass string) http.Header {
	return http.Header{"Authorization": {"Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))}}
}

var errUpstream = errors.New("dial tcp: i/o timeout")
