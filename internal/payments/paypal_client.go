package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

const (
	SandboxBaseURL = "https://api.sandbox.paypal.com"
	LiveBaseURL    = "https://api.paypal.com"

	// tokens are dropped from the cache this long before PayPal expires them
	tokenExpiryMargin = 60 * time.Second
)

type PaypalClientConfig struct {
	Mode         string // sandbox | live
	BaseURL      string // overrides Mode when set
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
	Tokens       TokenCache
	// OnBreakerChange is called when the circuit breaker changes state.
	OnBreakerChange func(from, to gobreaker.State)
}

// PaypalClient talks to the PayPal REST payments API. Calls go through a
// circuit breaker that opens after consecutive transport or 5xx failures.
type PaypalClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	tokens       TokenCache
	breaker      *gobreaker.CircuitBreaker[[]byte]
}

func NewPaypalClient(cfg PaypalClientConfig) (*PaypalClient, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("paypal client: client id and secret are required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		switch strings.ToLower(cfg.Mode) {
		case "", "sandbox":
			baseURL = SandboxBaseURL
		case "live":
			baseURL = LiveBaseURL
		default:
			return nil, fmt.Errorf("paypal client: unknown mode %q", cfg.Mode)
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = NewMemoryTokenCache()
	}

	settings := gobreaker.Settings{
		Name:    "paypal",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 4xx answers are PayPal working correctly and rejecting the request.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError
		},
	}
	if cfg.OnBreakerChange != nil {
		settings.OnStateChange = func(_ string, from, to gobreaker.State) {
			cfg.OnBreakerChange(from, to)
		}
	}

	return &PaypalClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   httpClient,
		tokens:       tokens,
		breaker:      gobreaker.NewCircuitBreaker[[]byte](settings),
	}, nil
}

func (c *PaypalClient) CreatePayment(ctx context.Context, p *Payment) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodPost, "/v1/payments/payment", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *PaypalClient) FindPayment(ctx context.Context, id string) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/payment/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *PaypalClient) ExecutePayment(ctx context.Context, id, payerID string) (*Payment, error) {
	var out Payment
	path := "/v1/payments/payment/" + url.PathEscape(id) + "/execute"
	if err := c.do(ctx, http.MethodPost, path, executeRequest{PayerID: payerID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *PaypalClient) do(ctx context.Context, method, path string, in, out any) error {
	raw, err := c.breaker.Execute(func() ([]byte, error) {
		return c.send(ctx, method, path, in)
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("paypal decode %s: %w", path, err)
	}
	return nil
}

func (c *PaypalClient) send(ctx context.Context, method, path string, in any) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("paypal encode %s: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("paypal build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		req.Header.Set("PayPal-Request-Id", uuid.NewString())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("paypal read %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized {
			_ = c.tokens.Delete(ctx, c.tokenKey())
		}
		return nil, decodeAPIError(resp.StatusCode, raw)
	}
	return raw, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *PaypalClient) accessToken(ctx context.Context) (string, error) {
	if tok, ok, err := c.tokens.Get(ctx, c.tokenKey()); err == nil && ok {
		return tok, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("paypal build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("paypal read token: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp.StatusCode, raw)
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return "", fmt.Errorf("paypal decode token: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("paypal token response has no access_token")
	}

	if ttl := time.Duration(tr.ExpiresIn)*time.Second - tokenExpiryMargin; ttl > 0 {
		_ = c.tokens.Set(ctx, c.tokenKey(), tr.AccessToken, ttl)
	}
	return tr.AccessToken, nil
}

func (c *PaypalClient) tokenKey() string {
	return "paypal:token:" + c.clientID
}

// decodeAPIError builds an APIError from an error body. OAuth failures use
// error/error_description instead of name/message.
func decodeAPIError(status int, raw []byte) error {
	apiErr := &APIError{StatusCode: status}
	var oauth struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(raw, apiErr); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}
	if apiErr.Name == "" && json.Unmarshal(raw, &oauth) == nil && oauth.Error != "" {
		apiErr.Name = oauth.Error
		apiErr.Message = oauth.Description
	}
	return apiErr
}
