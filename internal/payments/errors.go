package payments

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrGateway    = errors.New("payment gateway error")
	ErrValidation = errors.New("invalid payment input")
)

// GatewayError is returned when the gateway rejected or failed a call. The
// exchange has already been written to the audit trail when this is returned;
// EntryID is zero only if that write itself failed.
type GatewayError struct {
	Op       string
	BasketID int64
	EntryID  int64
	Err      error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("paypal %s failed (basket=%d entry=%d)", e.Op, e.BasketID, e.EntryID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool { return target == ErrGateway }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// APIError is the error body PayPal returns with a non-2xx status.
type APIError struct {
	StatusCode int             `json:"-"`
	Name       string          `json:"name"`
	Message    string          `json:"message"`
	DebugID    string          `json:"debug_id"`
	InfoLink   string          `json:"information_link,omitempty"`
	Details    []APIErrorField `json:"details,omitempty"`
}

type APIErrorField struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "paypal api: http=%d", e.StatusCode)
	if e.Name != "" {
		fmt.Fprintf(&b, " name=%s", e.Name)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " message=%q", e.Message)
	}
	if e.DebugID != "" {
		fmt.Fprintf(&b, " debug_id=%s", e.DebugID)
	}
	return b.String()
}
