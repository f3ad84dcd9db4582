package main

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/hnzhou16/cocraft-notify/internal/mailer"
)

type SendEmailPayload struct {
	From     string         `json:"from" validate:"required,valid_mailbox"`
	To       []string       `json:"to" validate:"required,min=1,max=1000,dive,required,valid_mailbox"`
	Subject  string         `json:"subject" validate:"max=998"`
	Template string         `json:"template" validate:"required_without=Body,max=255"`
	Data     map[string]any `json:"data"`
	Body     string         `json:"body" validate:"required_without=Template"`
}

type SendEmailResponse struct {
	SendID     string `json:"send_id"`
	ProviderID string `json:"provider_id"`
	Message    string `json:"message"`
}

// sendEmailHandler - a "data" key that is present (even {}) renders the template over any literal body
func (app *application) sendEmailHandler(w http.ResponseWriter, r *http.Request) {
	var payload SendEmailPayload
	if err := ReadJSON(w, r, &payload); err != nil {
		app.badRequestError(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestError(w, r, err)
		return
	}

	sendID := uuid.NewString()

	resp, err := app.mailer.Send(r.Context(), &mailer.Message{
		From:      payload.From,
		To:        payload.To,
		Subject:   payload.Subject,
		Template:  payload.Template,
		Data:      payload.Data,
		Body:      payload.Body,
		Variables: map[string]string{"send-id": sendID},
	})
	if err != nil {
		var (
			validationErr *mailer.ValidationError
			templateErr   *mailer.TemplateError
			deliveryErr   *mailer.DeliveryError
		)

		switch {
		case errors.As(err, &validationErr), errors.As(err, &templateErr):
			app.badRequestError(w, r, err)
		case errors.As(err, &deliveryErr) && deliveryErr.Kind == mailer.KindRejected:
			app.badGatewayError(w, r, err)
		case errors.As(err, &deliveryErr):
			app.serviceUnavailableError(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.logger.Infow("email sent", "send_id", sendID, "provider_id", resp.ID, "recipients", len(payload.To))

	app.OutputJSON(w, http.StatusAccepted, &SendEmailResponse{
		SendID:     sendID,
		ProviderID: resp.ID,
		Message:    resp.Message,
	})
}
