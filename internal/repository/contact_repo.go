package repository

import "smsbridge-backend/internal/model"

// ContactRepository is the stored address book. Two implementations exist:
// a JSON file for the default single-user setup and Postgres for deployments
// that already run one.
type ContactRepository interface {
	List() ([]model.Contact, error)
	Create(contact model.Contact) (model.Contact, error)
	Delete(id string) error
	// Import stores a batch in one operation and returns how many were added.
	Import(contacts []model.Contact) (int, error)
}
