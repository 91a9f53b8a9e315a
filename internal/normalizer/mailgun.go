package normalizer

import (
	"hookrelay/pkg/models"
)

// Mailgun events are only useful when they carry a recipient; without one
// there is no identity to attach and the webhook produces nothing.
func normalizeMailgun(payload Object) []models.Operation {
	recipient, ok := payload.String("recipient")
	if !ok {
		return nil
	}

	eventName := "mailgun.webhook"
	if event, ok := payload.String("event"); ok {
		eventName = "mailgun." + event
	}

	return []models.Operation{
		models.NewIdentify(recipient, map[string]interface{}{"email": recipient}),
		models.NewEvent(recipient, eventName, map[string]interface{}(payload)),
	}
}
