package normalizer

import (
	"hookrelay/pkg/models"
)

// Stripe events wrap the affected resource in data.object. Customer objects
// carry identity; everything else is keyed by the customer reference on the
// resource, falling back to the resource's own id.
func normalizeStripe(payload Object) []models.Operation {
	eventType, ok := payload.String("type")
	if !ok {
		return nil
	}

	data, ok := payload.Object("data")
	if !ok {
		return nil
	}

	obj, ok := data.Object("object")
	if !ok {
		return nil
	}

	eventName := "stripe." + eventType

	if kind, _ := obj.String("object"); kind == "customer" {
		customerID, _ := obj.Stringify("id")
		customerID = orUnknown(customerID)

		props := make(map[string]interface{})
		putValue(props, "email", obj, "email")
		putValue(props, "name", obj, "name")
		putValue(props, "created", obj, "created")

		return []models.Operation{
			models.NewIdentify(customerID, props),
			models.NewEvent(customerID, eventName, map[string]interface{}(obj)),
		}
	}

	distinctID, ok := obj.Stringify("customer")
	if !ok {
		distinctID, _ = obj.Stringify("id")
	}

	return []models.Operation{
		models.NewEvent(orUnknown(distinctID), eventName, map[string]interface{}(obj)),
	}
}
