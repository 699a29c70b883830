package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePaypalAPI struct {
	tokenCalls   atomic.Int32
	paymentCalls atomic.Int32
	mu           sync.Mutex
	requestIDs   []string
	lastExecute  executeRequest
	paymentCode  int
	paymentBody  string
}

func (f *fakePaypalAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"Client Authentication failed"}`))
			return
		}
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		_, _ = w.Write([]byte(`{"access_token":"A21AA","token_type":"Bearer","expires_in":32400}`))
	})
	mux.HandleFunc("POST /v1/payments/payment", func(w http.ResponseWriter, r *http.Request) {
		f.paymentCalls.Add(1)
		assert.Equal(t, "Bearer A21AA", r.Header.Get("Authorization"))
		f.mu.Lock()
		f.requestIDs = append(f.requestIDs, r.Header.Get("PayPal-Request-Id"))
		f.mu.Unlock()
		if f.paymentCode != 0 {
			w.WriteHeader(f.paymentCode)
			_, _ = w.Write([]byte(f.paymentBody))
			return
		}
		var p Payment
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		p.ID = "PAY-1"
		p.State = "created"
		p.Links = []Link{{Rel: "approval_url", Href: "https://paypal.test/approve"}}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(p)
	})
	mux.HandleFunc("GET /v1/payments/payment/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.paymentCalls.Add(1)
		_ = json.NewEncoder(w).Encode(Payment{ID: r.PathValue("id"), State: "created"})
	})
	mux.HandleFunc("POST /v1/payments/payment/{id}/execute", func(w http.ResponseWriter, r *http.Request) {
		f.paymentCalls.Add(1)
		f.mu.Lock()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastExecute))
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{
			"id": "` + r.PathValue("id") + `",
			"state": "approved",
			"payer": {"payment_method": "paypal", "payer_info": {"email": "buyer@example.com"}},
			"transactions": [{"amount": {"total": "19.99", "currency": "USD"}}]
		}`))
	})
	return mux
}

func newTestClient(t *testing.T, api *fakePaypalAPI, secret string) *PaypalClient {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	c, err := NewPaypalClient(PaypalClientConfig{
		BaseURL:      srv.URL,
		ClientID:     "client-id",
		ClientSecret: secret,
		HTTPClient:   srv.Client(),
	})
	require.NoError(t, err)
	return c
}

func TestNewPaypalClient_Config(t *testing.T) {
	tests := []struct {
		name    string
		cfg     PaypalClientConfig
		wantURL string
		wantErr bool
	}{
		{name: "sandbox default", cfg: PaypalClientConfig{ClientID: "a", ClientSecret: "b"}, wantURL: SandboxBaseURL},
		{name: "live", cfg: PaypalClientConfig{Mode: "live", ClientID: "a", ClientSecret: "b"}, wantURL: LiveBaseURL},
		{name: "unknown mode", cfg: PaypalClientConfig{Mode: "prod", ClientID: "a", ClientSecret: "b"}, wantErr: true},
		{name: "missing credentials", cfg: PaypalClientConfig{Mode: "sandbox"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewPaypalClient(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, c.baseURL)
		})
	}
}

func TestPaypalClient_CreateFindExecute(t *testing.T) {
	api := &fakePaypalAPI{}
	c := newTestClient(t, api, "secret")
	ctx := context.Background()

	created, err := c.CreatePayment(ctx, &Payment{Intent: "sale"})
	require.NoError(t, err)
	assert.Equal(t, "PAY-1", created.ID)
	href, ok := created.Link("approval_url")
	assert.True(t, ok)
	assert.Equal(t, "https://paypal.test/approve", href)

	found, err := c.FindPayment(ctx, "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, "PAY-1", found.ID)

	executed, err := c.ExecutePayment(ctx, "PAY-1", "PAYER1")
	require.NoError(t, err)
	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, "PAYER1", api.lastExecute.PayerID)
	require.Len(t, executed.Transactions, 1)
	assert.Equal(t, "19.99", executed.Transactions[0].Amount.Total)
	assert.Equal(t, "buyer@example.com", executed.Payer.PayerInfo.Email)

	// one token for all three calls
	assert.Equal(t, int32(1), api.tokenCalls.Load())
	require.Len(t, api.requestIDs, 1)
	assert.NotEmpty(t, api.requestIDs[0])
}

func TestPaypalClient_APIError(t *testing.T) {
	api := &fakePaypalAPI{
		paymentCode: http.StatusBadRequest,
		paymentBody: `{"name":"VALIDATION_ERROR","message":"Invalid request","debug_id":"ERR1","details":[{"field":"transactions[0].amount","issue":"Amount cannot be zero"}]}`,
	}
	c := newTestClient(t, api, "secret")

	_, err := c.CreatePayment(context.Background(), &Payment{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Name)
	assert.Equal(t, "ERR1", apiErr.DebugID)
	require.Len(t, apiErr.Details, 1)
	assert.Equal(t, "transactions[0].amount", apiErr.Details[0].Field)
}

func TestPaypalClient_TokenRejected(t *testing.T) {
	api := &fakePaypalAPI{}
	c := newTestClient(t, api, "wrong")

	_, err := c.CreatePayment(context.Background(), &Payment{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid_client", apiErr.Name)
	assert.Zero(t, api.paymentCalls.Load())
}

func TestPaypalClient_UnauthorizedDropsToken(t *testing.T) {
	api := &fakePaypalAPI{paymentCode: http.StatusUnauthorized, paymentBody: `{"name":"AUTHENTICATION_FAILURE"}`}
	c := newTestClient(t, api, "secret")
	ctx := context.Background()

	_, err := c.CreatePayment(ctx, &Payment{})
	require.Error(t, err)
	_, ok, _ := c.tokens.Get(ctx, c.tokenKey())
	assert.False(t, ok)

	_, err = c.CreatePayment(ctx, &Payment{})
	require.Error(t, err)
	assert.Equal(t, int32(2), api.tokenCalls.Load())
}

func TestPaypalClient_BreakerOpensOnServerErrors(t *testing.T) {
	api := &fakePaypalAPI{paymentCode: http.StatusInternalServerError, paymentBody: `{"name":"INTERNAL_SERVICE_ERROR","debug_id":"E5"}`}
	c := newTestClient(t, api, "secret")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := c.CreatePayment(ctx, &Payment{})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
	}

	_, err := c.CreatePayment(ctx, &Payment{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(5), api.paymentCalls.Load())
}

func TestPaypalClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	api := &fakePaypalAPI{paymentCode: http.StatusBadRequest, paymentBody: `{"name":"VALIDATION_ERROR"}`}
	c := newTestClient(t, api, "secret")
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := c.CreatePayment(ctx, &Payment{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	assert.Equal(t, int32(8), api.paymentCalls.Load())
}
