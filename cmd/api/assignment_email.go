package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ecommerce/internal/mailer"
)

const missingParamsMsg = "Some required parameter(s) missing: %s"

type assignmentEmailPayload struct {
	UserEmail      string `json:"user_email"`
	EnterpriseName string `json:"enterprise_name"`
	Code           string `json:"code"`
	EnrollmentURL  string `json:"enrollment_url"`
}

// assignmentEmailHandler godoc
//
//	@Summary		Send a code assignment email
//	@Description	Emails an enterprise code and enrollment URL to a learner. Each field is read from the JSON body, falling back to the query string when the body does not carry the key. Other body keys are ignored.
//	@Tags			enterprise
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		assignmentEmailPayload	false	"Assignment details"
//	@Success		200		{object}	assignmentEmailPayload
//	@Failure		400		{object}	map[string]string	"Some required parameter(s) missing"
//	@Failure		500		{object}	map[string]string	"Assignment code email could not be sent"
//	@Security		ApiKeyAuth
//	@Router			/enterprise/assignment-email [post]
func (app *application) assignmentEmailHandler(w http.ResponseWriter, r *http.Request) {
	var body assignmentEmailBody
	if err := readLooseJSON(w, r, &body); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	q := r.URL.Query()
	payload := assignmentEmailPayload{
		UserEmail:      pick(body.UserEmail, q.Get("user_email")),
		EnterpriseName: pick(body.EnterpriseName, q.Get("enterprise_name")),
		Code:           pick(body.Code, q.Get("code")),
		EnrollmentURL:  pick(body.EnrollmentURL, q.Get("enrollment_url")),
	}

	app.logger.Infow("assignment email requested",
		"enterprise_name", payload.EnterpriseName, "code", payload.Code)

	if missing := payload.missing(); len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf(missingParamsMsg, strings.Join(missing, ", ")),
		})
		return
	}

	err := app.mailer.Send(r.Context(), mailer.AssignmentCodeTemplate, payload.UserEmail, mailer.AssignmentData{
		EnterpriseName: payload.EnterpriseName,
		Code:           payload.Code,
		EnrollmentURL:  payload.EnrollmentURL,
	})
	if err != nil {
		app.logger.Errorw(fmt.Sprintf("[Ecommerce API] Failure in sending e-mail to %s for %s from %s",
			payload.UserEmail, payload.Code, payload.EnterpriseName), "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Assignment code email could not be sent",
		})
		return
	}

	if err := writeJSON(w, http.StatusOK, payload); err != nil {
		app.internalServerError(w, r, err)
	}
}

// assignmentEmailBody tells a key sent empty apart from one not sent at all.
type assignmentEmailBody struct {
	UserEmail      *string `json:"user_email"`
	EnterpriseName *string `json:"enterprise_name"`
	Code           *string `json:"code"`
	EnrollmentURL  *string `json:"enrollment_url"`
}

// pick prefers a key present in the body, even when empty, over the query.
func pick(body *string, query string) string {
	if body != nil {
		return strings.TrimSpace(*body)
	}
	return strings.TrimSpace(query)
}

// missing lists absent fields in a fixed order.
func (p assignmentEmailPayload) missing() []string {
	var out []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"user_email", p.UserEmail},
		{"enterprise_name", p.EnterpriseName},
		{"code", p.Code},
		{"enrollment_url", p.EnrollmentURL},
	} {
		if f.value == "" {
			out = append(out, f.name)
		}
	}
	return out
}
