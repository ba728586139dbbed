package session

import (
	"smsbridge-backend/internal/model"
	"smsbridge-backend/internal/phone"
)

// RecipientSet holds the recipients selected for the outgoing message.
// Membership is keyed by normalized phone: no two members ever share a
// digit-only phone value. The set is not safe for concurrent use; the owning
// Session serializes access.
type RecipientSet struct {
	members []model.Recipient
	index   map[string]int
}

func NewRecipientSet() *RecipientSet {
	return &RecipientSet{index: make(map[string]int)}
}

// Add inserts r unless a member with the same normalized phone exists.
// It never fails; a duplicate is reported so the caller can surface an
// "already present" notice.
func (s *RecipientSet) Add(r model.Recipient) bool {
	key := phone.Normalize(r.Phone)
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = len(s.members)
	s.members = append(s.members, r)
	return true
}

// Contains reports whether a member normalizes to the same phone as p.
func (s *RecipientSet) Contains(p string) bool {
	_, ok := s.index[phone.Normalize(p)]
	return ok
}

// Remove deletes the member matching r's normalized phone.
func (s *RecipientSet) Remove(r model.Recipient) bool {
	return s.removeAt(phone.Normalize(r.Phone))
}

// Deselect removes the member whose id (or phone, when the id is empty)
// equals key. The UI control cannot be re-shown once removed, so this only
// ever deletes; an unknown key is a no-op, not an error.
func (s *RecipientSet) Deselect(key string) bool {
	for _, m := range s.members {
		if m.Key() == key {
			return s.removeAt(phone.Normalize(m.Phone))
		}
	}
	return false
}

func (s *RecipientSet) removeAt(normalized string) bool {
	pos, ok := s.index[normalized]
	if !ok {
		return false
	}
	s.members = append(s.members[:pos], s.members[pos+1:]...)
	delete(s.index, normalized)
	for i := pos; i < len(s.members); i++ {
		s.index[phone.Normalize(s.members[i].Phone)] = i
	}
	return true
}

func (s *RecipientSet) Clear() {
	s.members = nil
	s.index = make(map[string]int)
}

func (s *RecipientSet) Size() int {
	return len(s.members)
}

// Members returns the recipients in insertion order. The slice is a copy.
func (s *RecipientSet) Members() []model.Recipient {
	out := make([]model.Recipient, len(s.members))
	copy(out, s.members)
	return out
}

// Merge folds every parsed contact of an upload into the set, skipping
// entries already present by normalized phone, either in the set or earlier
// in the same batch. It returns how many were added.
func (s *RecipientSet) Merge(parsed []model.Contact) int {
	added := 0
	for _, c := range parsed {
		if s.Add(model.Recipient{ID: c.ID, Name: c.Name, Phone: c.Phone}) {
			added++
		}
	}
	return added
}
