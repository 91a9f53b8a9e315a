package normalizer

import (
	"github.com/google/uuid"

	"hookrelay/pkg/models"
)

// LinkedIn lead webhooks arrive in three shapes: a leads array, a single
// lead/contact object, or lead fields directly on the payload. Field names
// vary by export path, so identity fields are probed under every known
// spelling.
func normalizeLinkedIn(payload Object) []models.Operation {
	var ops []models.Operation

	if leads, ok := payload.Slice("leads"); ok {
		for _, item := range leads {
			if lead, ok := AsObject(item); ok {
				ops = append(ops, normalizeLinkedInLead(lead)...)
			}
		}
		return ops
	}

	if lead, ok := payload.Object("lead"); ok {
		return normalizeLinkedInLead(lead)
	}
	if lead, ok := payload.Object("contact"); ok {
		return normalizeLinkedInLead(lead)
	}

	if payload.Has("email") || payload.Has("firstName") || payload.Has("lastName") {
		return normalizeLinkedInLead(payload)
	}

	return nil
}

func normalizeLinkedInLead(lead Object) []models.Operation {
	email, _ := lead.FirstString("email", "emailAddress")
	firstName, _ := lead.FirstString("firstName", "first_name")
	lastName, _ := lead.FirstString("lastName", "last_name")
	company, _ := lead.FirstString("company", "companyName")
	jobTitle, _ := lead.FirstString("jobTitle", "title")
	phoneNumber, _ := lead.FirstString("phoneNumber", "phone")

	fullName, _ := lead.String("fullName")
	if fullName == "" {
		switch {
		case firstName != "" && lastName != "":
			fullName = firstName + " " + lastName
		case firstName != "":
			fullName = firstName
		default:
			fullName = lastName
		}
	}

	distinctID, ok := lead.FirstString("email", "emailAddress", "memberId", "id")
	if !ok {
		distinctID = "linkedin:" + uuid.NewString()
	}

	identifyProps := make(map[string]interface{})
	putString(identifyProps, "email", email)
	putString(identifyProps, "name", fullName)
	putString(identifyProps, "first_name", firstName)
	putString(identifyProps, "last_name", lastName)
	putString(identifyProps, "company", company)
	putString(identifyProps, "job_title", jobTitle)
	putString(identifyProps, "phone_number", phoneNumber)
	putValue(identifyProps, "linkedin_url", lead, "linkedInUrl")
	putValue(identifyProps, "location", lead, "location")

	ops := []models.Operation{models.NewIdentify(distinctID, identifyProps)}

	if company != "" {
		groupProps := map[string]interface{}{"name": company}
		putValue(groupProps, "size", lead, "companySize")
		putValue(groupProps, "industry", lead, "industry")
		ops = append(ops, models.NewGroup("company", "company:"+kebabCase(company), groupProps, distinctID))
	}

	eventProps := make(map[string]interface{}, len(lead)+4)
	eventProps["source"] = "linkedin_lead_sync"
	putValue(eventProps, "campaign_id", lead, "campaignId")
	putValue(eventProps, "form_id", lead, "formId")
	putValue(eventProps, "creative_id", lead, "creativeId")
	for k, v := range lead {
		eventProps[k] = v
	}

	ops = append(ops, models.NewEvent(distinctID, "linkedin.lead_captured", eventProps))
	return ops
}
