package normalizer

// Source is the closed set of providers with dedicated transform rules.
// Unrecognized source names map to SourceGeneric, so a typo degrades to the
// generic rule instead of vanishing into a default branch.
type Source int

const (
	SourceGeneric Source = iota
	SourceStripe
	SourceGitHub
	SourceMailgun
	SourceLinkedIn
	SourceCalendly
)

var sourceNames = map[Source]string{
	SourceGeneric:  "generic",
	SourceStripe:   "stripe",
	SourceGitHub:   "github",
	SourceMailgun:  "mailgun",
	SourceLinkedIn: "linkedin",
	SourceCalendly: "calendly",
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return "generic"
}

// ParseSource maps a source path segment to its transform rule.
func ParseSource(name string) Source {
	switch name {
	case "stripe":
		return SourceStripe
	case "github":
		return SourceGitHub
	case "mailgun":
		return SourceMailgun
	case "linkedin":
		return SourceLinkedIn
	case "calendly":
		return SourceCalendly
	default:
		return SourceGeneric
	}
}
