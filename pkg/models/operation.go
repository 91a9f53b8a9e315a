package models

// OperationKind discriminates the canonical analytics primitives.
type OperationKind string

const (
	KindIdentify OperationKind = "identify"
	KindEvent    OperationKind = "event"
	KindGroup    OperationKind = "group"
)

// Operation is the closed union of the three primitives the analytics sink
// accepts. Exactly one of the payload fields is non-nil, matching Kind.
type Operation struct {
	Kind     OperationKind `json:"kind"`
	Identify *Identify     `json:"identify,omitempty"`
	Event    *Event        `json:"event,omitempty"`
	Group    *Group        `json:"group,omitempty"`
}

// Identify attaches properties to a tracked individual.
type Identify struct {
	DistinctID string                 `json:"distinct_id"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// Event records a named action performed by an individual.
type Event struct {
	DistinctID string                 `json:"distinct_id"`
	Name       string                 `json:"name"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// Group attaches properties to a named collection (company, repository,
// organization). DistinctID links the group to the individual that produced
// it; it is carried explicitly rather than inferred from a preceding
// identify.
type Group struct {
	Type       string                 `json:"type"`
	Key        string                 `json:"key"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	DistinctID string                 `json:"distinct_id,omitempty"`
}

func NewIdentify(distinctID string, props map[string]interface{}) Operation {
	return Operation{Kind: KindIdentify, Identify: &Identify{DistinctID: distinctID, Properties: props}}
}

func NewEvent(distinctID, name string, props map[string]interface{}) Operation {
	return Operation{Kind: KindEvent, Event: &Event{DistinctID: distinctID, Name: name, Properties: props}}
}

func NewGroup(groupType, key string, props map[string]interface{}, distinctID string) Operation {
	return Operation{Kind: KindGroup, Group: &Group{Type: groupType, Key: key, Properties: props, DistinctID: distinctID}}
}
