package service

import (
	"errors"
	"fmt"

	"smsbridge-backend/internal/model"
	"smsbridge-backend/internal/phone"
	"smsbridge-backend/internal/repository"
)

var ErrInvalidPhone = errors.New("invalid phone number")

type ContactService struct {
	Repo repository.ContactRepository
	Plan phone.Plan
}

func NewContactService(repo repository.ContactRepository, plan phone.Plan) *ContactService {
	return &ContactService{Repo: repo, Plan: plan}
}

func (s *ContactService) List() ([]model.Contact, error) {
	return s.Repo.List()
}

// Create validates and normalizes a contact for the recipient list. The
// contact is not persisted here; the durable store is only written by an
// explicit import. The normalized phone doubles as the contact ID.
func (s *ContactService) Create(name, rawPhone string) (model.Contact, error) {
	if name == "" || rawPhone == "" {
		return model.Contact{}, errors.New("name and phone number are both required")
	}
	if !s.Plan.Valid(rawPhone) {
		return model.Contact{}, fmt.Errorf("%w: %q", ErrInvalidPhone, rawPhone)
	}

	return model.Contact{
		ID:    phone.Normalize(rawPhone),
		Name:  name,
		Phone: phone.Format(rawPhone),
	}, nil
}

func (s *ContactService) Delete(id string) error {
	return s.Repo.Delete(id)
}

// Import persists a batch of contacts.
func (s *ContactService) Import(contacts []model.Contact) (int, error) {
	if len(contacts) == 0 {
		return 0, errors.New("no contacts to import")
	}
	return s.Repo.Import(contacts)
}
