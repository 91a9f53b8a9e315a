package normalizer

import (
	"hookrelay/internal/constants"
	"hookrelay/pkg/models"
)

// GitHub delivers a sender (acting user) and usually a repository on every
// event. Identify the sender, group by repository, then emit the event keyed
// by the sender identity.
func normalizeGitHub(payload Object) []models.Operation {
	var ops []models.Operation

	senderID := constants.UnknownDistinctID
	if sender, ok := payload.Object("sender"); ok {
		if login, ok := sender.String("login"); ok {
			senderID = "github:" + login

			props := make(map[string]interface{})
			props["github_login"] = login
			putValue(props, "github_id", sender, "id")
			putValue(props, "github_type", sender, "type")
			ops = append(ops, models.NewIdentify(senderID, props))
		}
	}

	if repo, ok := payload.Object("repository"); ok {
		if fullName, ok := repo.String("full_name"); ok {
			props := make(map[string]interface{})
			putValue(props, "name", repo, "name")
			props["full_name"] = fullName
			putValue(props, "private", repo, "private")
			if owner, ok := repo.Object("owner"); ok {
				putValue(props, "owner", owner, "login")
			}
			ops = append(ops, models.NewGroup("repository", "github:"+fullName, props, senderID))
		}
	}

	eventName := "github.webhook"
	if action, ok := payload.String("action"); ok {
		eventName = "github." + action
	}

	ops = append(ops, models.NewEvent(senderID, eventName, map[string]interface{}(payload)))
	return ops
}
