package activitypub

import "encoding/json"

// Message is the inbound/outbound wire shape the processor dispatches on.
// Object is kept raw because it is sometimes a bare string id (Follow,
// Undo's inner reference) and sometimes a nested object (Create, Delete).
type Message struct {
	Context json.RawMessage `json:"@context,omitempty"`
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Actor   string          `json:"actor"`
	To      json.RawMessage `json:"to,omitempty"`
	Object  json.RawMessage `json:"object"`
}

// ObjectID returns the object's id whether Object is a bare string or a
// nested document with its own "id" field.
func (m Message) ObjectID() string {
	var s string
	if err := json.Unmarshal(m.Object, &s); err == nil {
		return s
	}
	var nested struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(m.Object, &nested); err == nil {
		return nested.ID
	}
	return ""
}

// ObjectType returns the nested object's type, empty if Object is a bare
// string (no type to report).
func (m Message) ObjectType() string {
	var nested struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(m.Object, &nested); err == nil {
		return nested.Type
	}
	return ""
}

// ObjectHost returns the hostname of the object id, used by
// distill_inboxes' exclusion rule.
func (m Message) ObjectHost() string {
	return hostOf(m.ObjectID())
}
