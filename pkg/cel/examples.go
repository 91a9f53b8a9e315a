package cel

// FilterExpressionExamples documents the suppression expressions the source
// registry accepts. True passes the webhook, false suppresses it.
var FilterExpressionExamples = map[string]string{
	"skip_pings":          `payload.action != "ping"`,
	"only_customer_types": `payload.type.startsWith("customer.")`,
	"skip_test_mode":      `!has(payload.livemode) || payload.livemode == true`,
	"only_delivered":      `payload.event in ["delivered", "opened", "clicked"]`,
	"by_source":           `source == "stripe"`,
	"has_recipient":       `has(payload.recipient) && payload.recipient != ""`,
	"combined":            `source == "github" && payload.action != "ping" && has(payload.sender)`,
}
