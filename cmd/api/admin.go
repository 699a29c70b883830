package main

import (
	"errors"
	"net/http"

	"ecommerce/internal/inspect"
	"ecommerce/internal/params"

	"github.com/go-chi/chi/v5"
)

// listProcessorResponsesHandler godoc
//
//	@Summary		List gateway responses (admin)
//	@Description	Returns the processor response audit trail, newest first. Optional filter: basket_id.
//	@Tags			admin
//	@Produce		json
//	@Param			basket_id	query		int				false	"Only responses for this basket"
//	@Param			page		query		int				false	"Page number (default: 1)"
//	@Param			limit		query		int				false	"Items per page (default 20, max 100)"
//	@Success		200			{object}	map[string]any	"Envelope: { data: { responses, pagination } }"
//	@Failure		400			{object}	error			"Bad Request"
//	@Failure		401			{object}	error			"Unauthorized"
//	@Router			/admin/payments/responses [get]
func (app *application) listProcessorResponsesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	basketID, err := params.OptionalID(q, "basket_id")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	pg := params.ParsePagination(q)

	responses, total, err := app.store.Responses.List(r.Context(), basketID, pg.Limit, pg.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	pg.ComputeMeta(total)

	if err := app.jsonResponse(w, http.StatusOK, map[string]any{
		"responses":  responses,
		"pagination": pg,
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}

type switchPayload struct {
	Active *bool `json:"active" validate:"required"`
}

// setSwitchHandler godoc
//
//	@Summary		Toggle a runtime switch (admin)
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string			true	"Switch name, e.g. enable_session_inspect"
//	@Param			payload	body		switchPayload	true	"New value"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	error	"Bad Request"
//	@Failure		404		{object}	error	"Unknown switch"
//	@Router			/admin/switches/{name} [put]
func (app *application) setSwitchHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var payload switchPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.switches.Set(name, *payload.Active); err != nil {
		if errors.Is(err, inspect.ErrUnknownSwitch) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	app.logger.Infow("switch toggled", "name", name, "active", *payload.Active)

	if err := app.jsonResponse(w, http.StatusOK, map[string]any{
		"name":   name,
		"active": *payload.Active,
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}
