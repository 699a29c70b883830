package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ecommerce/internal/domain/baskets"
	"ecommerce/internal/domain/paymentsrepo"
	"ecommerce/internal/domain/storage"
	"ecommerce/internal/payments"

	"github.com/go-chi/chi/v5"
)

// createPaypalPaymentHandler godoc
//
//	@Summary		Start a PayPal payment
//	@Description	Freezes the basket, creates a PayPal payment for it and returns the approval page URL.
//	@Tags			payments
//	@Produce		json
//	@Param			basketID	path		int				true	"Basket ID"
//	@Success		200			{object}	map[string]any	"Envelope: { data: { payment_page_url } }"
//	@Failure		400			{object}	error			"Invalid basket"
//	@Failure		401			{object}	error			"Unauthorized"
//	@Failure		403			{object}	error			"Basket belongs to another user"
//	@Failure		404			{object}	error			"Basket not found"
//	@Failure		409			{object}	error			"Basket already submitted"
//	@Failure		502			{object}	error			"PayPal rejected or did not answer"
//	@Security		ApiKeyAuth
//	@Router			/baskets/{basketID}/payments/paypal [post]
func (app *application) createPaypalPaymentHandler(w http.ResponseWriter, r *http.Request) {
	basketID, err := strconv.ParseInt(chi.URLParam(r, "basketID"), 10, 64)
	if err != nil || basketID <= 0 {
		app.badRequestResponse(w, r, fmt.Errorf("invalid basket id"))
		return
	}

	user := getUserFromContext(r)
	if user == nil {
		app.unauthorizedErrorResponse(w, r, errors.New("not authorized"))
		return
	}

	ctx := r.Context()

	basket, err := app.store.Baskets.GetByID(ctx, basketID)
	if err != nil {
		if errors.Is(err, baskets.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}
	if basket.OwnerID != user.ID {
		app.forbiddenResponse(w, r)
		return
	}

	// an unpayable basket stays open so the buyer can still edit it
	if err := payments.ValidateBasket(basket); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.store.Baskets.Freeze(ctx, basketID); err != nil {
		if errors.Is(err, baskets.ErrNotOpen) {
			app.conflictResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	params, err := app.paypal.GetTransactionParameters(ctx, basket)
	switch {
	case errors.Is(err, payments.ErrValidation):
		app.badRequestResponse(w, r, err)
		return
	case errors.Is(err, payments.ErrGateway):
		app.badGatewayResponse(w, r, err)
		return
	case err != nil:
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, params); err != nil {
		app.internalServerError(w, r, err)
	}
}

// executePaypalPaymentHandler godoc
//
//	@Summary		PayPal return URL
//	@Description	Executes the approved payment, books it against the basket and redirects to the receipt page.
//	@Tags			payments
//	@Param			paymentId	query	string	true	"PayPal payment id"
//	@Param			PayerID		query	string	true	"PayPal payer id"
//	@Success		302
//	@Router			/payments/paypal/execute [get]
func (app *application) executePaypalPaymentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	paymentID := strings.TrimSpace(q.Get("paymentId"))
	if paymentID == "" {
		app.paymentErrorRedirect(w, r, "", errors.New("missing paymentId"))
		return
	}

	basketID, err := app.store.Responses.GetBasketIDByTransaction(ctx, payments.PaypalName, paymentID)
	if err != nil {
		if !errors.Is(err, paymentsrepo.ErrNotFound) {
			err = fmt.Errorf("look up basket: %w", err)
		}
		app.paymentErrorRedirect(w, r, paymentID, err)
		return
	}

	basket, err := app.store.Baskets.GetByID(ctx, basketID)
	if err != nil {
		app.paymentErrorRedirect(w, r, paymentID, err)
		return
	}

	// a reload of the return URL after the payment was booked
	if basket.Status == baskets.StatusSubmitted {
		http.Redirect(w, r, withQuery(app.paypal.ReceiptURL(), "basket_id", basket.ID), http.StatusFound)
		return
	}

	source, event, err := app.paypal.HandleProcessorResponse(ctx, q, basket)
	if err != nil {
		app.paymentErrorRedirect(w, r, paymentID, err)
		return
	}

	err = app.store.WithLedgerTx(ctx, func(tx *storage.LedgerTx) error {
		if err := tx.Ledger.CreateSource(ctx, basket.ID, source); err != nil {
			return err
		}
		if err := tx.Ledger.CreatePaymentEvent(ctx, basket.ID, event); err != nil {
			return err
		}
		return tx.Baskets.Submit(ctx, basket.ID)
	})
	if err != nil {
		app.logger.Errorw("paypal payment executed but not booked",
			"payment_id", paymentID, "basket_id", basket.ID, "err", err)
		app.paymentErrorRedirect(w, r, paymentID, err)
		return
	}

	app.logger.Infow("paypal payment booked",
		"payment_id", paymentID, "basket_id", basket.ID, "amount", event.Amount.StringFixed(2))
	http.Redirect(w, r, withQuery(app.paypal.ReceiptURL(), "basket_id", basket.ID), http.StatusFound)
}

func (app *application) paymentErrorRedirect(w http.ResponseWriter, r *http.Request, paymentID string, err error) {
	app.logger.Warnw("paypal return failed", "payment_id", paymentID, "err", err)
	http.Redirect(w, r, app.config.paypal.errorURL, http.StatusFound)
}

func withQuery(raw, key string, id int64) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, strconv.FormatInt(id, 10))
	u.RawQuery = q.Encode()
	return u.String()
}
