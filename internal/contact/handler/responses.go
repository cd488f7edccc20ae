package handler

import (
	"time"

	"identity-recon/internal/contact/models"
)

// IdentifyResponse is the HTTP response for POST /identify and GET /identity/{id}.
type IdentifyResponse struct {
	Contact ContactView `json:"contact"`
}

// ContactView is the consolidated identity portion of the response.
type ContactView struct {
	PrimaryContactID    int64    `json:"primaryContactId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []int64  `json:"secondaryContactIds"`
}

// ContactResponse is one stored contact in GET /identity.
type ContactResponse struct {
	ID             int64     `json:"id"`
	Email          *string   `json:"email"`
	PhoneNumber    *string   `json:"phoneNumber"`
	LinkedID       *int64    `json:"linkedId"`
	LinkPrecedence string    `json:"linkPrecedence"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// FromView converts a consolidated view to an HTTP response.
func FromView(view *models.ConsolidatedView) *IdentifyResponse {
	return &IdentifyResponse{Contact: ContactView{
		PrimaryContactID:    view.PrimaryContactID,
		Emails:              nonNil(view.Emails),
		PhoneNumbers:        nonNil(view.PhoneNumbers),
		SecondaryContactIDs: nonNil(view.SecondaryContactIDs),
	}}
}

// FromContacts converts stored contacts to their list representation.
func FromContacts(contacts []*models.Contact) []ContactResponse {
	out := make([]ContactResponse, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, ContactResponse{
			ID:             c.ID,
			Email:          c.Email,
			PhoneNumber:    c.PhoneNumber,
			LinkedID:       c.LinkedID,
			LinkPrecedence: string(c.LinkPrecedence),
			CreatedAt:      c.CreatedAt,
			UpdatedAt:      c.UpdatedAt,
		})
	}
	return out
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
