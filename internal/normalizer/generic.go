package normalizer

import (
	"hookrelay/internal/constants"
	"hookrelay/pkg/models"
)

// genericIdentifierKeys is probed in order; the first present value becomes
// the distinct id.
var genericIdentifierKeys = []string{"user_id", "userId", "email", "id", "customer_id", "customerId"}

// Unknown sources get a best-effort treatment: probe for a user identifier,
// identify when any profile fields ride along, and always record the event.
func normalizeGeneric(payload Object) []models.Operation {
	var ops []models.Operation

	distinctID, found := payload.FirstString(genericIdentifierKeys...)
	if !found {
		distinctID = constants.UnknownDistinctID
	}

	if found {
		props := make(map[string]interface{})
		putValue(props, "email", payload, "email")
		putValue(props, "name", payload, "name")
		putValue(props, "first_name", payload, "first_name")
		putValue(props, "last_name", payload, "last_name")

		if len(props) > 0 {
			ops = append(ops, models.NewIdentify(distinctID, props))
		}
	}

	eventName, ok := payload.String("event")
	if !ok {
		eventName = "webhook.received"
	}

	ops = append(ops, models.NewEvent(distinctID, eventName, map[string]interface{}(payload)))
	return ops
}
