package normalizer

import (
	"hookrelay/internal/constants"
	"hookrelay/pkg/models"
)

// Calendly wraps the interesting data in a nested payload object and names
// the event type at the top level. Known event types map to curated property
// sets; anything else passes the nested payload through untouched.
func normalizeCalendly(payload Object) []models.Operation {
	eventType, _ := payload.String("event")
	nested, ok := payload.Object("payload")
	if !ok {
		return nil
	}

	distinctID := constants.UnknownDistinctID
	userProps := make(map[string]interface{})

	if invitee, ok := nested.Object("invitee"); ok {
		if id, ok := invitee.FirstString("email", "uuid"); ok {
			distinctID = id
		}

		putValue(userProps, "email", invitee, "email")
		putValue(userProps, "name", invitee, "name")
		putValue(userProps, "timezone", invitee, "timezone")
		putValue(userProps, "calendly_uuid", invitee, "uuid")

		if qas, ok := invitee.Slice("questions_and_answers"); ok {
			for _, item := range qas {
				qa, ok := AsObject(item)
				if !ok {
					continue
				}
				question, ok := qa.String("question")
				if !ok {
					continue
				}
				if answer, ok := qa.Value("answer"); ok {
					userProps["custom_"+slugKey(question)] = answer
				}
			}
		}
	} else if email, ok := nested.String("email"); ok {
		distinctID = email
		userProps["email"] = email
	}

	var ops []models.Operation
	if distinctID != constants.UnknownDistinctID && len(userProps) > 0 {
		ops = append(ops, models.NewIdentify(distinctID, userProps))
	}

	eventName, eventProps := calendlyEvent(eventType, nested)
	ops = append(ops, models.NewEvent(distinctID, eventName, eventProps))

	if et, ok := nested.Object("event_type"); ok {
		if org, ok := et.Object("organization"); ok {
			orgUUID, _ := org.Stringify("uuid")
			groupProps := make(map[string]interface{})
			putValue(groupProps, "name", org, "name")
			putValue(groupProps, "calendly_uuid", org, "uuid")
			ops = append(ops, models.NewGroup("organization", "calendly:"+orUnknown(orgUUID), groupProps, distinctID))
		}
	}

	return ops
}

func calendlyEvent(eventType string, nested Object) (string, map[string]interface{}) {
	eventTypeObj, _ := nested.Object("event_type")

	switch eventType {
	case "invitee.created":
		props := make(map[string]interface{})
		putValue(props, "event_type_name", eventTypeObj, "name")
		putValue(props, "event_type_uuid", eventTypeObj, "uuid")
		putValue(props, "start_time", nested, "start_time")
		putValue(props, "end_time", nested, "end_time")
		putValue(props, "location", nested, "location")
		putValue(props, "status", nested, "status")
		putValue(props, "created_at", nested, "created_at")
		putValue(props, "updated_at", nested, "updated_at")
		if tracking, ok := nested.Object("tracking"); ok {
			putValue(props, "utm_source", tracking, "utm_source")
			putValue(props, "utm_medium", tracking, "utm_medium")
			putValue(props, "utm_campaign", tracking, "utm_campaign")
			putValue(props, "utm_term", tracking, "utm_term")
			putValue(props, "utm_content", tracking, "utm_content")
			putValue(props, "salesforce_uuid", tracking, "salesforce_uuid")
		}
		return "calendly.meeting_scheduled", props

	case "invitee.canceled":
		props := make(map[string]interface{})
		putValue(props, "event_type_name", eventTypeObj, "name")
		if cancellation, ok := nested.Object("cancellation"); ok {
			putValue(props, "cancellation_reason", cancellation, "reason")
			putValue(props, "canceled_by", cancellation, "canceled_by")
		}
		putValue(props, "canceled_at", nested, "canceled_at")
		return "calendly.meeting_canceled", props

	case "invitee.rescheduled":
		props := make(map[string]interface{})
		putValue(props, "event_type_name", eventTypeObj, "name")
		putValue(props, "old_start_time", nested, "old_start_time")
		putValue(props, "old_end_time", nested, "old_end_time")
		putValue(props, "new_start_time", nested, "new_start_time")
		putValue(props, "new_end_time", nested, "new_end_time")
		return "calendly.meeting_rescheduled", props

	case "invitee_no_show.created":
		props := make(map[string]interface{})
		putValue(props, "event_type_name", eventTypeObj, "name")
		if noShow, ok := nested.Object("no_show"); ok {
			putValue(props, "no_show_uuid", noShow, "uuid")
		}
		return "calendly.meeting_no_show", props

	case "":
		return "calendly.webhook", map[string]interface{}(nested)

	default:
		// Unknown event types pass the whole nested payload through; named
		// cases above use curated subsets. Kept as-is for sink parity.
		return "calendly." + eventType, map[string]interface{}(nested)
	}
}
