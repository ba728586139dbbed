package service

import (
	"context"

	"smsbridge-backend/internal/model"
)

// Gateway bundles the services behind the interface the session controller
// consumes.
type Gateway struct {
	Contacts *ContactService
	SMS      *SMSService
}

func NewGateway(contacts *ContactService, sms *SMSService) *Gateway {
	return &Gateway{Contacts: contacts, SMS: sms}
}

func (g *Gateway) ListContacts(_ context.Context) ([]model.Contact, error) {
	return g.Contacts.List()
}

func (g *Gateway) CreateContact(_ context.Context, name, phone string) (model.Contact, error) {
	return g.Contacts.Create(name, phone)
}

func (g *Gateway) ImportContacts(_ context.Context, contacts []model.Contact) (int, error) {
	return g.Contacts.Import(contacts)
}

func (g *Gateway) SendSMS(ctx context.Context, recipients []model.Recipient, message string) (*model.SendReport, error) {
	return g.SMS.Send(ctx, recipients, message)
}
