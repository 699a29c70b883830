package baskets

import (
	"context"
	"errors"

	"ecommerce/internal/payments"
)

const (
	StatusOpen      = "open"
	StatusFrozen    = "frozen"
	StatusSubmitted = "submitted"
)

var (
	ErrNotFound  = errors.New("basket not found")
	ErrNotOpen   = errors.New("basket is not open")
	ErrNotFrozen = errors.New("basket is not frozen")
)

type Store interface {
	GetByID(ctx context.Context, id int64) (*payments.Basket, error)
	Freeze(ctx context.Context, id int64) error
	Submit(ctx context.Context, id int64) error
}
