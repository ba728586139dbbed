package model

import "time"

// Contact is a stored address-book entry. ID is assigned by the contact store;
// contacts parsed out of an upload carry an empty ID until imported.
type Contact struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Recipient is a contact selected to receive the outgoing message in the
// current session. When ID is empty the display phone acts as the key.
type Recipient struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Key is the identifier UI controls are keyed by: the contact ID when known,
// otherwise the raw display phone.
func (r Recipient) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Phone
}
